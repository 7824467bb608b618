package parsers

import (
	"context"
	"fmt"

	"github.com/hermes-mma/hermes-backend/internal/types"
)

// GCNLVCCounterpartNoticeParser handles LVC counterpart notices, which
// report an electromagnetic source possibly associated with a gravitational
// wave event. Source names combine the event trigger number with the source
// serial number, like S190426_X2.
type GCNLVCCounterpartNoticeParser struct {
	*Linker
}

func NewGCNLVCCounterpartNoticeParser(linker *Linker) *GCNLVCCounterpartNoticeParser {
	return &GCNLVCCounterpartNoticeParser{Linker: linker}
}

func (p *GCNLVCCounterpartNoticeParser) Name() string {
	return "GCN/LVC Counterpart Notice Parser v1"
}

func (p *GCNLVCCounterpartNoticeParser) Parse(ctx context.Context, message *types.Message) (bool, error) {
	fields := parseNoticeFields(message.MessageText, appendComments)
	if !titleContainsAll(fields, "GCN", "LVC", "COUNTERPART", "NOTICE") {
		return false, nil
	}

	if err := setData(message, fields); err != nil {
		return false, err
	}
	if published, ok := parseObsTimestamp(fields); ok {
		message.Published = published
	}
	message.MessageParser = p.Name()
	if err := p.messages.Save(ctx, nil, message); err != nil {
		return false, err
	}
	return true, p.link(ctx, message, fields)
}

func (p *GCNLVCCounterpartNoticeParser) link(ctx context.Context, message *types.Message, fields map[string]interface{}) error {
	eventID := stringField(fields, "event_trig_num")
	if eventID == "" {
		return nil
	}
	if _, err := p.linkEvent(ctx, message, eventID, ""); err != nil {
		return err
	}

	rawRA, okRA := fields["cntrpart_ra"].(string)
	rawDec, okDec := fields["cntrpart_dec"].(string)
	if !okRA || !okDec {
		return nil
	}
	ra, errRA := parseDegrees(rawRA)
	dec, errDec := parseDegrees(rawDec)
	if errRA != nil || errDec != nil {
		p.log.Warn("Unable to parse coordinates for lvc counterpart", "message_id", message.ID.String())
		return nil
	}

	// Counterpart notices historically misspell the serial number key.
	serial := stringField(fields, "sourse_sernum")
	if serial == "" {
		serial = stringField(fields, "source_sernum")
	}
	if serial == "" {
		return nil
	}
	name := fmt.Sprintf("%s_X%s", eventID, serial)
	return p.linkTarget(ctx, message, name, ra, dec)
}
