package parsers

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hermes-mma/hermes-backend/internal/logger"
	"github.com/hermes-mma/hermes-backend/internal/repos"
	"github.com/hermes-mma/hermes-backend/internal/types"
)

// Parser fills in a message's data section from its raw content and links
// related models (targets, nonlocalized events, sequences). Parse reports
// whether the message matched this parser's format.
type Parser interface {
	Name() string
	Parse(ctx context.Context, message *types.Message) (bool, error)
}

// Linker bundles the repos parsers need to attach targets and events to a
// message. All parsers share one.
type Linker struct {
	log       *logger.Logger
	messages  repos.MessageRepo
	targets   repos.TargetRepo
	events    repos.NonLocalizedEventRepo
	sequences repos.NonLocalizedEventSequenceRepo
}

func NewLinker(
	log *logger.Logger,
	messages repos.MessageRepo,
	targets repos.TargetRepo,
	events repos.NonLocalizedEventRepo,
	sequences repos.NonLocalizedEventSequenceRepo,
) *Linker {
	return &Linker{
		log:       log.With("component", "MessageLinker"),
		messages:  messages,
		targets:   targets,
		events:    events,
		sequences: sequences,
	}
}

func (l *Linker) linkEvent(ctx context.Context, message *types.Message, eventID, eventType string) (*types.NonLocalizedEvent, error) {
	event, _, err := l.events.GetOrCreate(ctx, nil, eventID, eventType)
	if err != nil {
		return nil, err
	}
	if err := l.events.AddReference(ctx, nil, event, message); err != nil {
		return nil, err
	}
	return event, nil
}

func (l *Linker) linkTarget(ctx context.Context, message *types.Message, name string, ra, dec float64) error {
	target, _, err := l.targets.GetOrCreate(ctx, nil, name, ra, dec)
	if err != nil {
		return err
	}
	return l.targets.AddMessage(ctx, nil, target, message)
}

// superEventRegex matches LIGO/Virgo/KAGRA superevent ids like S240830gn.
var superEventRegex = regexp.MustCompile(`S\d{6}[a-z]*`)

// ConvertNoticeType maps the free-form notice type from an alert to a
// sequence type. Unrecognized types map to the empty string.
func ConvertNoticeType(noticeType string) string {
	lower := strings.ToLower(noticeType)
	switch {
	case strings.Contains(lower, "warning"):
		return types.SequenceTypeEarlyWarning
	case strings.Contains(lower, "initial"):
		return types.SequenceTypeInitial
	case strings.Contains(lower, "preliminary"):
		return types.SequenceTypePreliminary
	case strings.Contains(lower, "update"):
		return types.SequenceTypeUpdate
	case strings.Contains(lower, "retraction"):
		return types.SequenceTypeRetraction
	}
	return ""
}

// MOCURLFromSkymapURL rewrites a flat skymap url to its multiorder (MOC)
// version, keeping any ,version suffix. Also repairs the truncated .fit
// extension some mock alerts carry.
func MOCURLFromSkymapURL(skymapURL string) string {
	base, filename := path.Split(skymapURL)
	if strings.HasSuffix(filename, ".fit") {
		filename += "s"
	}
	filename = strings.Replace(filename, "LALInference.fits.gz", "LALInference.multiorder.fits", 1)
	filename = strings.Replace(filename, "bayestar.fits.gz", "bayestar.multiorder.fits", 1)
	return base + filename
}

// continuationMode controls how a line without a "KEY:" prefix is folded
// into the previous field while parsing plaintext notices.
type continuationMode int

const (
	// appendToLast appends continuation lines to whatever key came last.
	appendToLast continuationMode = iota
	// appendComments only accumulates repeated COMMENTS lines.
	appendComments
)

// parseNoticeFields splits "KEY:  value" plaintext notices into a field map
// with lowercased keys. Multi-line values (coordinates across epochs,
// repeated COMMENTS) are folded according to mode.
func parseNoticeFields(text string, mode continuationMode) map[string]interface{} {
	fields := map[string]interface{}{}
	lastKey := ""
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		parts := strings.SplitN(line, ":", 2)
		if len(parts) > 1 {
			key := strings.ToLower(strings.TrimSpace(parts[0]))
			value := strings.TrimSpace(parts[1])
			existing, seen := fields[key]
			switch {
			case mode == appendComments && key == "comments" && seen:
				fields[key] = existing.(string) + strings.TrimLeft(parts[1], " \t")
			case mode == appendToLast && key == lastKey && seen:
				fields[key] = existing.(string) + "\n" + strings.TrimLeft(parts[1], " \t")
			default:
				fields[key] = value
			}
			lastKey = key
		} else if mode == appendToLast && lastKey != "" {
			if existing, seen := fields[lastKey]; seen {
				fields[lastKey] = existing.(string) + " " + strings.TrimSpace(parts[0])
			}
		}
	}
	return fields
}

var (
	noticeDatestampRegex = regexp.MustCompile(`\d{2}/\d{2}/\d{2}`)
	noticeTimestampRegex = regexp.MustCompile(`\d{2}:\d{2}:\d{2}\.\d{2,}`)
)

// parseNoticeDate handles the "Fri 26 Apr 19 23:13:39 UT" style stamps the
// GCN notices carry. The UT suffix is not a zone Go knows, so it is
// stripped and the result treated as UTC.
func parseNoticeDate(raw string) (time.Time, error) {
	cleaned := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "UT"))
	layouts := []string{
		"Mon 02 Jan 06 15:04:05",
		"Mon 2 Jan 06 15:04:05",
		"02 Jan 06 15:04:05",
		"06/01/02 15:04:05 GMT",
		time.RFC3339,
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, cleaned); err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized notice date %q", raw)
}

// parseObsTimestamp combines the yearfirst yy/mm/dd date buried in OBS_DATE
// with the seconds-of-day clock time in OBS_TIME.
func parseObsTimestamp(fields map[string]interface{}) (time.Time, bool) {
	rawDate, okDate := fields["obs_date"].(string)
	rawTime, okTime := fields["obs_time"].(string)
	if !okDate || !okTime {
		return time.Time{}, false
	}
	datestamp := noticeDatestampRegex.FindString(rawDate)
	timestamp := noticeTimestampRegex.FindString(rawTime)
	if datestamp == "" || timestamp == "" {
		return time.Time{}, false
	}
	day, err := time.Parse("06/01/02", datestamp)
	if err != nil {
		return time.Time{}, false
	}
	clock, err := time.Parse("15:04:05.00", timestamp)
	if err != nil {
		return time.Time{}, false
	}
	combined := time.Date(day.Year(), day.Month(), day.Day(),
		clock.Hour(), clock.Minute(), clock.Second(), clock.Nanosecond(), time.UTC)
	return combined, true
}

// parseDegrees extracts the leading J2000 decimal degrees from a multi-epoch
// coordinate value like "299.8851d {+19h 59m 32.4s} (J2000), ...".
func parseDegrees(raw string) (float64, error) {
	first := strings.SplitN(raw, ",", 2)[0]
	degrees := strings.SplitN(first, "d", 2)[0]
	return strconv.ParseFloat(strings.TrimSpace(degrees), 64)
}

func titleContainsAll(fields map[string]interface{}, required ...string) bool {
	title, _ := fields["title"].(string)
	lower := strings.ToLower(title)
	for _, piece := range required {
		if !strings.Contains(lower, strings.ToLower(piece)) {
			return false
		}
	}
	return len(lower) > 0
}

func dataMap(message *types.Message) map[string]interface{} {
	if len(message.Data) == 0 {
		return nil
	}
	var data map[string]interface{}
	if err := json.Unmarshal(message.Data, &data); err != nil {
		return nil
	}
	return data
}

func setData(message *types.Message, data map[string]interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	message.Data = raw
	return nil
}

func stringField(data map[string]interface{}, key string) string {
	value, _ := data[key].(string)
	return value
}

// intField tolerates JSON numbers and numeric strings, which the upstream
// notices mix freely.
func intField(data map[string]interface{}, key string) (int, bool) {
	switch value := data[key].(type) {
	case float64:
		return int(value), true
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return 0, false
		}
		return parsed, true
	case json.Number:
		parsed, err := value.Int64()
		if err != nil {
			return 0, false
		}
		return int(parsed), true
	}
	return 0, false
}
