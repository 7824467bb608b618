package parsers

import (
	"context"
	"fmt"

	"github.com/hermes-mma/hermes-backend/internal/types"
)

// GCNNoticePlaintextParser is the catch-all for GCN Classic plaintext
// notices ("TITLE: GCN/... NOTICE" key-value text). Subclass-style parsers
// override the target extraction and linking through the hook fields.
type GCNNoticePlaintextParser struct {
	*Linker
}

func NewGCNNoticePlaintextParser(linker *Linker) *GCNNoticePlaintextParser {
	return &GCNNoticePlaintextParser{Linker: linker}
}

func (p *GCNNoticePlaintextParser) Name() string {
	return "GCN Notice Plaintext Parser v1"
}

func (p *GCNNoticePlaintextParser) Parse(ctx context.Context, message *types.Message) (bool, error) {
	fields := dataMap(message)
	if fields == nil {
		fields = parseNoticeFields(message.MessageText, appendToLast)
	}
	if !titleContainsAll(fields, "GCN", "NOTICE") {
		return false, nil
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
	if submitter := stringField(fields, "submitter"); submitter != "" {
		message.Submitter = submitter
		if message.Authors == "" {
			message.Authors = submitter
		}
	}
	message.MessageParser = p.Name()
	if err := p.messages.Save(ctx, nil, message); err != nil {
		return false, err
	}
	return true, p.link(ctx, message, fields)
}

func (p *GCNNoticePlaintextParser) link(ctx context.Context, message *types.Message, fields map[string]interface{}) error {
	eventID := stringField(fields, "event_trig_num")
	if eventID != "" {
		if _, err := p.linkEvent(ctx, message, eventID, ""); err != nil {
			return err
		}
	}
	name, ra, dec, ok := p.parseTarget(fields, eventID)
	if !ok {
		return nil
	}
	return p.linkTarget(ctx, message, name, ra, dec)
}

// parseTarget extracts a counterpart source position. Only LVC counterpart
// style notices carry one (SOURCE_SERNUM plus CNTRPART coordinates).
func (p *GCNNoticePlaintextParser) parseTarget(fields map[string]interface{}, eventID string) (string, float64, float64, bool) {
	serial := stringField(fields, "source_sernum")
	if serial == "" || eventID == "" {
		return "", 0, 0, false
	}
	name := fmt.Sprintf("%s_X%s", eventID, serial)

	rawRA, okRA := fields["cntrpart_ra"].(string)
	rawDec, okDec := fields["cntrpart_dec"].(string)
	if !okRA || !okDec {
		return "", 0, 0, false
	}
	ra, errRA := parseDegrees(rawRA)
	dec, errDec := parseDegrees(rawDec)
	if errRA != nil || errDec != nil {
		p.log.Warn("Unable to parse counterpart coordinates", "ra", rawRA, "dec", rawDec)
		return "", 0, 0, false
	}
	return name, ra, dec, true
}
