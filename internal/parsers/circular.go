package parsers

import (
	"context"
	"fmt"

	"github.com/hermes-mma/hermes-backend/internal/types"
)

// GCNCircularParser handles circulars delivered as JSON, with keys like
// subject, eventId, circularId, submitter and body. It records the public
// circular url and links any superevent ids found in eventId.
type GCNCircularParser struct {
	*Linker
}

func NewGCNCircularParser(linker *Linker) *GCNCircularParser {
	return &GCNCircularParser{Linker: linker}
}

func (p *GCNCircularParser) Name() string {
	return "GCN Circular Parser v2"
}

func (p *GCNCircularParser) Parse(ctx context.Context, message *types.Message) (bool, error) {
	data := dataMap(message)
	if data == nil {
		return false, nil
	}
	circularID, ok := intField(data, "circularId")
	if !ok {
		return false, nil
	}

	data["urls"] = map[string]interface{}{
		"gcn_circular": fmt.Sprintf("https://gcn.nasa.gov/circulars/%d", circularID),
	}
	if err := setData(message, data); err != nil {
		return false, err
	}
	message.MessageParser = p.Name()
	if err := p.messages.Save(ctx, nil, message); err != nil {
		return false, err
	}

	for _, eventID := range superEventRegex.FindAllString(stringField(data, "eventId"), -1) {
		if _, err := p.linkEvent(ctx, message, eventID, ""); err != nil {
			return false, err
		}
	}
	return true, nil
}
