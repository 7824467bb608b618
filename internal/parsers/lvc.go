package parsers

import (
	"context"

	"github.com/hermes-mma/hermes-backend/internal/types"
)

// GCNLVCNoticeParser handles LVC gravitational wave notices in plaintext
// form. Beyond the generic field parse, it rewrites the skymap url to its
// multiorder version and records an event sequence per SEQUENCE_NUM.
type GCNLVCNoticeParser struct {
	*Linker
}

func NewGCNLVCNoticeParser(linker *Linker) *GCNLVCNoticeParser {
	return &GCNLVCNoticeParser{Linker: linker}
}

func (p *GCNLVCNoticeParser) Name() string {
	return "GCN/LVC Notice Parser v1"
}

func (p *GCNLVCNoticeParser) Parse(ctx context.Context, message *types.Message) (bool, error) {
	fields := parseNoticeFields(message.MessageText, appendComments)
	if !titleContainsAll(fields, "GCN", "LVC", "NOTICE") {
		return false, nil
	}

	if skymapURL, ok := fields["skymap_fits_url"].(string); ok {
		fields["skymap_fits_url"] = MOCURLFromSkymapURL(skymapURL)
	}
	if err := setData(message, fields); err != nil {
		return false, err
	}
	if noticeDate, ok := fields["notice_date"].(string); ok {
		if parsed, err := parseNoticeDate(noticeDate); err == nil {
			message.Published = parsed
		}
	}
	message.Title = stringField(fields, "title")
	message.MessageParser = p.Name()
	if err := p.messages.Save(ctx, nil, message); err != nil {
		return false, err
	}
	return true, p.link(ctx, message, fields)
}

func (p *GCNLVCNoticeParser) link(ctx context.Context, message *types.Message, fields map[string]interface{}) error {
	eventID := stringField(fields, "trigger_num")
	if eventID == "" {
		return nil
	}
	event, err := p.linkEvent(ctx, message, eventID, "")
	if err != nil {
		return err
	}
	sequenceNumber, ok := intField(fields, "sequence_num")
	if !ok {
		return nil
	}
	sequence := &types.NonLocalizedEventSequence{
		EventID:        event.ID,
		MessageID:      message.ID,
		SequenceNumber: sequenceNumber,
		SequenceType:   ConvertNoticeType(stringField(fields, "notice_type")),
	}
	_, _, err = p.sequences.GetOrCreate(ctx, nil, sequence)
	return err
}
