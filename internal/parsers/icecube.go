package parsers

import (
	"context"
	"fmt"
	"strings"

	"github.com/hermes-mma/hermes-backend/internal/types"
)

// IcecubeNoticePlaintextParser handles IceCube Gold/Bronze and Cascade
// neutrino notices (GCN/AMON). The event id is run number + event number,
// the source position comes from SRC_RA/SRC_DEC, and REVISION drives the
// sequence number.
type IcecubeNoticePlaintextParser struct {
	*Linker
}

func NewIcecubeNoticePlaintextParser(linker *Linker) *IcecubeNoticePlaintextParser {
	return &IcecubeNoticePlaintextParser{Linker: linker}
}

func (p *IcecubeNoticePlaintextParser) Name() string {
	return "Icecube Notice Plaintext Parser v1"
}

func (p *IcecubeNoticePlaintextParser) Parse(ctx context.Context, message *types.Message) (bool, error) {
	fields := parseNoticeFields(message.MessageText, appendToLast)
	if !titleContainsAll(fields, "GCN", "AMON", "NOTICE") {
		return false, nil
	}

	if urls := p.generateURLs(fields); len(urls) > 0 {
		fields["urls"] = urls
	}
	if err := setData(message, fields); err != nil {
		return false, err
	}
	if title := stringField(fields, "title"); title != "" {
		message.Title = title
	}
	if published, ok := parseObsTimestamp(fields); ok {
		message.Published = published
	} else if noticeDate, ok := fields["notice_date"].(string); ok {
		if parsed, err := parseNoticeDate(noticeDate); err == nil {
			message.Published = parsed
		}
	}
	message.MessageParser = p.Name()
	if err := p.messages.Save(ctx, nil, message); err != nil {
		return false, err
	}
	return true, p.link(ctx, message, fields)
}

func (p *IcecubeNoticePlaintextParser) link(ctx context.Context, message *types.Message, fields map[string]interface{}) error {
	runNum := stringField(fields, "run_num")
	eventNum := stringField(fields, "event_num")
	if runNum == "" || eventNum == "" {
		return nil
	}
	eventID := fmt.Sprintf("%s_%s", runNum, eventNum)
	event, err := p.linkEvent(ctx, message, eventID, types.EventTypeNeutrino)
	if err != nil {
		return err
	}

	sequenceNumber, _ := intField(fields, "revision")
	sequenceType := types.SequenceTypeInitial
	if sequenceNumber > 0 {
		sequenceType = types.SequenceTypeUpdate
	}
	sequence := &types.NonLocalizedEventSequence{
		EventID:        event.ID,
		MessageID:      message.ID,
		SequenceNumber: sequenceNumber,
		SequenceType:   sequenceType,
	}
	if _, _, err := p.sequences.GetOrCreate(ctx, nil, sequence); err != nil {
		return err
	}

	rawRA, okRA := fields["src_ra"].(string)
	rawDec, okDec := fields["src_dec"].(string)
	if !okRA || !okDec {
		return nil
	}
	ra, errRA := parseDegrees(rawRA)
	dec, errDec := parseDegrees(rawDec)
	if errRA != nil || errDec != nil {
		p.log.Warn("Unable to parse source coordinates for icecube notice", "message_id", message.ID.String())
		return nil
	}
	name := fmt.Sprintf("icecube_%s_src", eventID)
	return p.linkTarget(ctx, message, name, ra, dec)
}

func (p *IcecubeNoticePlaintextParser) generateURLs(fields map[string]interface{}) map[string]interface{} {
	runNum := stringField(fields, "run_num")
	eventNum := stringField(fields, "event_num")
	if runNum == "" || eventNum == "" {
		return nil
	}
	noticeKind := "notices_amon_g_b"
	if strings.Contains(strings.ToLower(stringField(fields, "notice_type")), "cascade") {
		noticeKind = "notices_amon_icecube_cascade"
	}
	return map[string]interface{}{
		"gcn": fmt.Sprintf("https://gcn.gsfc.nasa.gov/%s/%s_%s.amon", noticeKind, runNum, eventNum),
	}
}
