package parsers

import (
	"context"

	"github.com/google/uuid"

	"github.com/hermes-mma/hermes-backend/internal/types"
)

// igwnRequiredKeys must all be present in the data section for a message to
// count as an IGWN alert.
var igwnRequiredKeys = []string{"alert_type", "time_created", "superevent_id", "sequence_num"}

// IGWNAlertParser handles IGWN gravitational wave alerts, delivered as avro
// and decoded into the data section before parsing. Each alert becomes an
// event sequence carrying the skymap version and hash the ingest recorded.
type IGWNAlertParser struct {
	*Linker
}

func NewIGWNAlertParser(linker *Linker) *IGWNAlertParser {
	return &IGWNAlertParser{Linker: linker}
}

func (p *IGWNAlertParser) Name() string {
	return "IGWN Alert Avro Parser v1"
}

func (p *IGWNAlertParser) Parse(ctx context.Context, message *types.Message) (bool, error) {
	alert := dataMap(message)
	if alert == nil {
		return false, nil
	}
	for _, key := range igwnRequiredKeys {
		if _, ok := alert[key]; !ok {
			return false, nil
		}
	}

	message.MessageParser = p.Name()
	if err := p.messages.Save(ctx, nil, message); err != nil {
		return false, err
	}
	return true, p.link(ctx, message, alert)
}

func (p *IGWNAlertParser) link(ctx context.Context, message *types.Message, alert map[string]interface{}) error {
	event, err := p.linkEvent(ctx, message, stringField(alert, "superevent_id"), "")
	if err != nil {
		return err
	}

	sequenceNumber, _ := intField(alert, "sequence_num")
	sequence := &types.NonLocalizedEventSequence{
		EventID:        event.ID,
		MessageID:      message.ID,
		SequenceNumber: sequenceNumber,
		SequenceType:   ConvertNoticeType(stringField(alert, "alert_type")),
	}

	if eventSection, ok := alert["event"].(map[string]interface{}); ok {
		if rawHash, ok := eventSection["skymap_hash"].(string); ok {
			if hash, err := uuid.Parse(rawHash); err == nil {
				sequence.SkymapHash = &hash
			}
		}
		if version, ok := intField(eventSection, "skymap_version"); ok {
			sequence.SkymapVersion = &version
		}
	}
	if coinc, ok := alert["external_coinc"].(map[string]interface{}); ok {
		if rawHash, ok := coinc["combined_skymap_hash"].(string); ok {
			if hash, err := uuid.Parse(rawHash); err == nil {
				sequence.CombinedSkymapHash = &hash
			}
		}
		if version, ok := intField(coinc, "combined_skymap_version"); ok {
			sequence.CombinedSkymapVersion = &version
		}
	}

	_, _, err = p.sequences.GetOrCreate(ctx, nil, sequence)
	return err
}
