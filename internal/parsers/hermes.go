package parsers

import (
	"context"
	"strconv"

	"github.com/hermes-mma/hermes-backend/internal/types"
)

// HermesMessageParser handles messages we published ourselves, which arrive
// already structured. It links a nonlocalized event when the data carries an
// event_id, and links a target for every target_name/ra/dec triple found at
// any depth of the data section.
type HermesMessageParser struct {
	*Linker
}

func NewHermesMessageParser(linker *Linker) *HermesMessageParser {
	return &HermesMessageParser{Linker: linker}
}

func (p *HermesMessageParser) Name() string {
	return "Hermes Message Parser v1"
}

func (p *HermesMessageParser) Parse(ctx context.Context, message *types.Message) (bool, error) {
	message.MessageParser = p.Name()
	if err := p.messages.Save(ctx, nil, message); err != nil {
		return false, err
	}

	data := dataMap(message)
	if data == nil {
		return true, nil
	}
	if eventID := stringField(data, "event_id"); eventID != "" {
		if _, err := p.linkEvent(ctx, message, eventID, ""); err != nil {
			return false, err
		}
	}
	if err := p.findAndLinkTargets(ctx, data, message); err != nil {
		return false, err
	}
	return true, nil
}

func (p *HermesMessageParser) findAndLinkTargets(ctx context.Context, structure interface{}, message *types.Message) error {
	switch node := structure.(type) {
	case map[string]interface{}:
		name, hasName := node["target_name"].(string)
		ra, okRA := coordinate(node["ra"])
		dec, okDec := coordinate(node["dec"])
		if hasName && okRA && okDec {
			return p.linkTarget(ctx, message, name, ra, dec)
		}
		for _, value := range node {
			if err := p.findAndLinkTargets(ctx, value, message); err != nil {
				return err
			}
		}
	case []interface{}:
		for _, value := range node {
			if err := p.findAndLinkTargets(ctx, value, message); err != nil {
				return err
			}
		}
	}
	return nil
}

func coordinate(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	}
	return 0, false
}
