package services

import (
  "fmt"
  "strconv"
  "strings"
  "time"
)

// Brightness units accepted on photometry and candidate reports.
var BrightnessUnits = []string{"AB mag", "Vega mag", "mJy", "erg / s / cm² / Å"}

// CandidateBrightnessUnits is the narrower set candidate reports accept.
var CandidateBrightnessUnits = []string{"AB mag", "Vega mag"}

// SubmittedMessage is the wire form of a message submission.
type SubmittedMessage struct {
  Title       string                 `json:"title"`
  Topic       string                 `json:"topic"`
  Submitter   string                 `json:"submitter"`
  Authors     string                 `json:"authors"`
  MessageText string                 `json:"message_text"`
  EventID     string                 `json:"event_id"`
  Data        map[string]interface{} `json:"data"`
  SubmitToTNS bool                   `json:"submit_to_tns"`
  SubmitToGCN bool                   `json:"submit_to_gcn"`
  SubmitToMPC bool                   `json:"submit_to_mpc"`
}

// ValidationErrors maps a field path to the problems found there.
type ValidationErrors map[string][]string

func (ve ValidationErrors) add(field, problem string) {
  ve[field] = append(ve[field], problem)
}

func (ve ValidationErrors) Empty() bool {
  return len(ve) == 0
}

// ValidateMessage checks the universal message fields. Every submission
// endpoint runs this first.
func ValidateMessage(message *SubmittedMessage) ValidationErrors {
  errs := ValidationErrors{}
  if strings.TrimSpace(message.Title) == "" {
    errs.add("title", "This field is required.")
  }
  if strings.TrimSpace(message.Topic) == "" {
    errs.add("topic", "This field is required.")
  }
  if strings.TrimSpace(message.Submitter) == "" {
    errs.add("submitter", "This field is required.")
  }
  if strings.TrimSpace(message.MessageText) == "" {
    errs.add("message_text", "This field is required.")
  }
  return errs
}

// ValidatePhotometry checks the data.photometry rows: required fields, known
// brightness units, parseable coordinates and observation dates, and that
// each row's target_name matches a row in data.targets.
func ValidatePhotometry(message *SubmittedMessage) ValidationErrors {
  errs := ValidateMessage(message)

  targetNames := map[string]bool{}
  targets, _ := message.Data["targets"].([]interface{})
  for i, entry := range targets {
    target, ok := entry.(map[string]interface{})
    if !ok {
      errs.add(fmt.Sprintf("data.targets.%d", i), "Expected an object.")
      continue
    }
    name, _ := target["name"].(string)
    if name == "" {
      errs.add(fmt.Sprintf("data.targets.%d.name", i), "This field is required.")
    } else {
      targetNames[name] = true
    }
    validateCoordinates(errs, fmt.Sprintf("data.targets.%d", i), target["ra"], target["dec"])
  }

  photometry, _ := message.Data["photometry"].([]interface{})
  for i, entry := range photometry {
    row, ok := entry.(map[string]interface{})
    if !ok {
      errs.add(fmt.Sprintf("data.photometry.%d", i), "Expected an object.")
      continue
    }
    prefix := fmt.Sprintf("data.photometry.%d", i)

    name, _ := row["target_name"].(string)
    if name == "" {
      errs.add(prefix+".target_name", "This field is required.")
    } else if len(targetNames) > 0 && !targetNames[name] {
      errs.add(prefix+".target_name", fmt.Sprintf("Target %s must appear in the targets table.", name))
    }
    for _, field := range []string{"telescope", "bandpass"} {
      if value, _ := row[field].(string); value == "" {
        if _, present := row[field]; !present {
          errs.add(prefix+"."+field, "This field is required.")
        }
      }
    }
    if _, ok := numeric(row["brightness"]); !ok {
      if _, limiting := numeric(row["limiting_brightness"]); !limiting {
        errs.add(prefix+".brightness", "Either brightness or limiting_brightness is required.")
      }
    }
    validateBrightnessUnit(errs, prefix, row, BrightnessUnits)
    validateDateObserved(errs, prefix, row)
  }
  return errs
}

// ValidateCandidates checks the data.candidates rows on candidate reports.
func ValidateCandidates(message *SubmittedMessage) ValidationErrors {
  errs := ValidateMessage(message)

  candidates, _ := message.Data["candidates"].([]interface{})
  for i, entry := range candidates {
    row, ok := entry.(map[string]interface{})
    if !ok {
      errs.add(fmt.Sprintf("data.candidates.%d", i), "Expected an object.")
      continue
    }
    prefix := fmt.Sprintf("data.candidates.%d", i)
    if id, _ := row["candidate_id"].(string); id == "" {
      errs.add(prefix+".candidate_id", "This field is required.")
    }
    if date, _ := row["discovery_date"].(string); date == "" {
      errs.add(prefix+".discovery_date", "This field is required.")
    }
    if band, _ := row["band"].(string); band == "" {
      errs.add(prefix+".band", "This field is required.")
    }
    validateCoordinates(errs, prefix, row["ra"], row["dec"])
    validateBrightnessUnit(errs, prefix, row, CandidateBrightnessUnits)
  }
  return errs
}

func validateCoordinates(errs ValidationErrors, prefix string, rawRA, rawDec interface{}) {
  if rawRA == nil && rawDec == nil {
    return
  }
  ra, err := ParseRA(rawRA)
  if err != nil {
    errs.add(prefix+".ra", err.Error())
  } else if ra < 0 || ra >= 360 {
    errs.add(prefix+".ra", "RA must be in the range [0, 360) degrees.")
  }
  dec, err := ParseDec(rawDec)
  if err != nil {
    errs.add(prefix+".dec", err.Error())
  } else if dec < -90 || dec > 90 {
    errs.add(prefix+".dec", "Dec must be in the range [-90, 90] degrees.")
  }
}

func validateBrightnessUnit(errs ValidationErrors, prefix string, row map[string]interface{}, accepted []string) {
  unit, present := row["brightness_unit"].(string)
  if !present {
    return
  }
  for _, candidate := range accepted {
    if unit == candidate {
      return
    }
  }
  errs.add(prefix+".brightness_unit",
    fmt.Sprintf("Unrecognized brightness unit. Accepted brightness units are %v", accepted))
}

func validateDateObserved(errs ValidationErrors, prefix string, row map[string]interface{}) {
  rawDate, _ := row["date_obs"].(string)
  if rawDate == "" {
    if rawDate, _ = row["date_observed"].(string); rawDate == "" {
      errs.add(prefix+".date_obs", "This field is required.")
      return
    }
  }
  format, _ := row["date_format"].(string)
  if format != "" {
    if strings.Contains(strings.ToLower(format), "jd") {
      if _, err := strconv.ParseFloat(rawDate, 64); err != nil {
        errs.add(prefix+".date_obs",
          fmt.Sprintf("Date observed: %s does not parse based on provided date format: %s", rawDate, format))
      }
      return
    }
    // Any other format string is taken as a reference layout.
    if _, err := time.Parse(format, rawDate); err != nil {
      errs.add(prefix+".date_obs",
        fmt.Sprintf("Date observed: %s does not parse based on provided date format: %s", rawDate, format))
    }
    return
  }
  if _, err := ParseObservationDate(rawDate); err != nil {
    errs.add(prefix+".date_obs",
      fmt.Sprintf("Date observed: %s does not parse and no expected date format was provided.", rawDate))
  }
}

// ParseObservationDate accepts the ISO-ish formats observers actually send.
func ParseObservationDate(raw string) (time.Time, error) {
  layouts := []string{
    time.RFC3339Nano,
    time.RFC3339,
    "2006-01-02T15:04:05.999999999",
    "2006-01-02 15:04:05.999999999",
    "2006-01-02 15:04:05",
    "2006-01-02",
  }
  cleaned := strings.TrimSpace(raw)
  for _, layout := range layouts {
    if parsed, err := time.Parse(layout, cleaned); err == nil {
      return parsed.UTC(), nil
    }
  }
  return time.Time{}, fmt.Errorf("unrecognized observation date %q", raw)
}

// ParseRA accepts decimal degrees (number or string) or sexagesimal
// hours (hh:mm:ss.sss) and returns decimal degrees.
func ParseRA(raw interface{}) (float64, error) {
  switch value := raw.(type) {
  case float64:
    return value, nil
  case string:
    cleaned := strings.TrimSpace(value)
    if decimal, err := strconv.ParseFloat(cleaned, 64); err == nil {
      return decimal, nil
    }
    hours, err := parseSexagesimal(cleaned)
    if err != nil {
      return 0, fmt.Errorf("coordinates do not all have valid RA and Dec")
    }
    return hours * 15, nil
  }
  return 0, fmt.Errorf("coordinates do not all have valid RA and Dec")
}

// ParseDec accepts decimal degrees (number or string) or sexagesimal
// degrees (dd:mm:ss.sss, optionally signed) and returns decimal degrees.
func ParseDec(raw interface{}) (float64, error) {
  switch value := raw.(type) {
  case float64:
    return value, nil
  case string:
    cleaned := strings.TrimSpace(value)
    if decimal, err := strconv.ParseFloat(cleaned, 64); err == nil {
      return decimal, nil
    }
    degrees, err := parseSexagesimal(cleaned)
    if err != nil {
      return 0, fmt.Errorf("coordinates do not all have valid RA and Dec")
    }
    return degrees, nil
  }
  return 0, fmt.Errorf("coordinates do not all have valid RA and Dec")
}

// parseSexagesimal parses "[+-]a:b:c.ccc" (or space separated) into a signed
// decimal value.
func parseSexagesimal(raw string) (float64, error) {
  cleaned := strings.ReplaceAll(strings.TrimSpace(raw), " ", ":")
  sign := 1.0
  if strings.HasPrefix(cleaned, "-") {
    sign = -1.0
    cleaned = cleaned[1:]
  } else if strings.HasPrefix(cleaned, "+") {
    cleaned = cleaned[1:]
  }
  parts := strings.Split(cleaned, ":")
  if len(parts) < 2 || len(parts) > 3 {
    return 0, fmt.Errorf("not a sexagesimal value: %q", raw)
  }
  total := 0.0
  divisors := []float64{1, 60, 3600}
  for i, part := range parts {
    value, err := strconv.ParseFloat(part, 64)
    if err != nil {
      return 0, fmt.Errorf("not a sexagesimal value: %q", raw)
    }
    total += value / divisors[i]
  }
  return sign * total, nil
}

func numeric(raw interface{}) (float64, bool) {
  switch value := raw.(type) {
  case float64:
    return value, true
  case string:
    parsed, err := strconv.ParseFloat(value, 64)
    if err != nil {
      return 0, false
    }
    return parsed, true
  }
  return 0, false
}
