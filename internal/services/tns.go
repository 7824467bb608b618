package services

import (
  "context"
  "encoding/json"
  "fmt"
  "strconv"
  "strings"
  "time"

  "github.com/hermes-mma/hermes-backend/internal/cache"
  "github.com/hermes-mma/hermes-backend/internal/clients/tns"
  "github.com/hermes-mma/hermes-backend/internal/logger"
  "github.com/hermes-mma/hermes-backend/internal/utils"
)

const (
  tnsValuesCacheKey        = "all_tns_values"
  tnsReverseValuesCacheKey = "reverse_tns_values"
  tnsValuesCacheTTL        = time.Hour
  tnsDateFormat            = "2006-01-02 15:04:05"
)

type TNSService interface {
  Values(ctx context.Context) (map[string]interface{}, error)
  ReverseValues(ctx context.Context) (map[string]map[string]interface{}, error)
  ConvertDiscoveryMessage(ctx context.Context, message map[string]interface{}) (map[string]interface{}, error)
}

type tnsService struct {
  log    *logger.Logger
  client tns.Client
  store  cache.Cache
}

func NewTNSService(log *logger.Logger, client tns.Client, store cache.Cache) TNSService {
  serviceLog := log.With("service", "TNSService")
  return &tnsService{
    log:    serviceLog,
    client: client,
    store:  store,
  }
}

// Values returns the TNS option values, cached for one hour.
func (ts *tnsService) Values(ctx context.Context) (map[string]interface{}, error) {
  if cached, hit, err := ts.store.Get(ctx, tnsValuesCacheKey); err == nil && hit {
    var values map[string]interface{}
    if err := json.Unmarshal([]byte(cached), &values); err == nil {
      return values, nil
    }
  }
  return ts.populate(ctx)
}

// ReverseValues returns the option-name-to-value mapping used to build AT
// reports, e.g. ReverseValues()["groups"]["SNEX"] == 1.
func (ts *tnsService) ReverseValues(ctx context.Context) (map[string]map[string]interface{}, error) {
  if cached, hit, err := ts.store.Get(ctx, tnsReverseValuesCacheKey); err == nil && hit {
    var reversed map[string]map[string]interface{}
    if err := json.Unmarshal([]byte(cached), &reversed); err == nil {
      return reversed, nil
    }
  }
  values, err := ts.populate(ctx)
  if err != nil {
    return nil, err
  }
  return ReverseTNSValues(values), nil
}

func (ts *tnsService) populate(ctx context.Context) (map[string]interface{}, error) {
  values, err := ts.client.FetchValues(ctx)
  if err != nil {
    ts.log.Warn("Failed to retrieve tns values", "error", err)
    return nil, err
  }
  reversed := ReverseTNSValues(values)
  if encoded, err := json.Marshal(values); err == nil {
    _ = ts.store.Set(ctx, tnsValuesCacheKey, string(encoded), tnsValuesCacheTTL)
  }
  if encoded, err := json.Marshal(reversed); err == nil {
    _ = ts.store.Set(ctx, tnsReverseValuesCacheKey, string(encoded), tnsValuesCacheTTL)
  }
  return values, nil
}

// ConvertDiscoveryMessage converts a hermes message document into the TNS
// AT (astronomical transient) report format, one report per target.
func (ts *tnsService) ConvertDiscoveryMessage(ctx context.Context, message map[string]interface{}) (map[string]interface{}, error) {
  reverse, err := ts.ReverseValues(ctx)
  if err != nil {
    return nil, err
  }
  return ConvertDiscoveryMessageToTNS(message, reverse), nil
}

// ReverseTNSValues inverts the TNS option values: lists map value to its
// index, objects map value to its key.
func ReverseTNSValues(values map[string]interface{}) map[string]map[string]interface{} {
  reversed := map[string]map[string]interface{}{}
  for key, raw := range values {
    switch options := raw.(type) {
    case []interface{}:
      entry := map[string]interface{}{}
      for index, option := range options {
        entry[fmt.Sprintf("%v", option)] = index
      }
      reversed[key] = entry
    case map[string]interface{}:
      entry := map[string]interface{}{}
      for optionKey, option := range options {
        entry[fmt.Sprintf("%v", option)] = optionKey
      }
      reversed[key] = entry
    }
  }
  return reversed
}

// ConvertFluxUnits maps hermes brightness units onto TNS flux unit codes.
func ConvertFluxUnits(units string) string {
  switch units {
  case "AB mag":
    return "1"
  case "Vega mag":
    return "3"
  case "mJy":
    return "9"
  case "erg / s / cm² / Å":
    return "6"
  }
  return ""
}

// photometryDateKey turns date_obs into something comparable: JD-style
// floats sort as themselves, everything else as unix seconds.
func photometryDateKey(raw interface{}) (float64, bool) {
  switch value := raw.(type) {
  case float64:
    return value, true
  case string:
    if parsed, err := strconv.ParseFloat(value, 64); err == nil {
      return parsed, true
    }
    if parsed, err := ParseObservationDate(value); err == nil {
      return float64(parsed.Unix()), true
    }
  }
  return 0, false
}

// EarliestPhotometry returns the earliest detection (or nondetection) row
// from a photometry list.
func EarliestPhotometry(rows []map[string]interface{}, nondetection bool) map[string]interface{} {
  if len(rows) == 0 {
    return nil
  }
  earliest := rows[0]
  earliestKey, _ := photometryDateKey(rows[0]["date_obs"])
  for _, row := range rows[1:] {
    if !nondetection {
      if _, ok := numeric(row["brightness"]); !ok {
        continue
      }
    } else {
      if _, ok := numeric(row["limiting_brightness"]); !ok {
        continue
      }
    }
    key, ok := photometryDateKey(row["date_obs"])
    if !ok {
      continue
    }
    if key < earliestKey {
      earliestKey = key
      earliest = row
    }
  }
  return earliest
}

// formatTNSDate renders date_obs the way TNS wants it. JD floats pass
// through unchanged.
func formatTNSDate(raw interface{}) string {
  switch value := raw.(type) {
  case float64:
    return fmt.Sprintf("%v", value)
  case string:
    if _, err := strconv.ParseFloat(value, 64); err == nil {
      return value
    }
    if parsed, err := ParseObservationDate(value); err == nil {
      return parsed.Format(tnsDateFormat)
    }
  }
  return ""
}

func reverseLookup(reverse map[string]map[string]interface{}, section, option string) string {
  if entries, ok := reverse[section]; ok {
    if value, ok := entries[option]; ok {
      return fmt.Sprintf("%v", value)
    }
  }
  return "-1"
}

// ConvertDiscoveryMessageToTNS builds one AT report per target in the
// message's data section, keyed by report index.
func ConvertDiscoveryMessageToTNS(message map[string]interface{}, reverse map[string]map[string]interface{}) map[string]interface{} {
  atReport := map[string]interface{}{}
  data, _ := message["data"].(map[string]interface{})

  allPhotometry := utils.ListOfMaps(data["photometry"])
  for _, target := range utils.ListOfMaps(data["targets"]) {
    targetName, _ := target["name"].(string)

    var photometry []map[string]interface{}
    for _, row := range allPhotometry {
      if name, _ := row["target_name"].(string); name == targetName {
        photometry = append(photometry, row)
      }
    }

    report := map[string]interface{}{}
    report["ra"] = map[string]interface{}{
      "value": target["ra"],
      "error": target["ra_error"],
      "units": target["ra_error_units"],
    }
    report["dec"] = map[string]interface{}{
      "value": target["dec"],
      "error": target["dec_error"],
      "units": target["dec_error_units"],
    }

    discoveryInfo, _ := target["discovery_info"].(map[string]interface{})
    report["reporting_group_id"] = reverseLookup(reverse, "groups", stringOf(discoveryInfo["reporting_group"]))
    report["discovery_data_source_id"] = reverseLookup(reverse, "groups", stringOf(discoveryInfo["discovery_source"]))
    report["reporter"] = message["authors"]
    report["at_type"] = reverseLookup(reverse, "at_types", stringOf(discoveryInfo["transient_type"]))
    report["host_name"] = target["host_name"]
    report["host_redshift"] = target["host_redshift"]
    report["transient_redshift"] = target["redshift"]
    report["internal_name"] = targetName
    report["remarks"] = target["comments"]
    report["related_files"] = map[string]interface{}{}

    var groupIDs []string
    for _, group := range toStringList(target["group_associations"]) {
      groupIDs = append(groupIDs, reverseLookup(reverse, "groups", group))
    }
    report["proprietary_period_groups"] = groupIDs
    report["proprietary_period"] = map[string]interface{}{
      "proprietary_period_value": stringOf(discoveryInfo["proprietary_period"]),
      "proprietary_period_units": strings.ToLower(stringOf(discoveryInfo["proprietary_period_units"])),
    }

    if earliest := EarliestPhotometry(photometry, false); earliest != nil {
      report["discovery_datetime"] = formatTNSDate(earliest["date_obs"])
    }

    if nondetection := EarliestPhotometry(photometry, true); nondetection != nil {
      if _, ok := numeric(nondetection["limiting_brightness"]); ok {
        unit := stringOf(nondetection["limiting_brightness_unit"])
        if unit == "" {
          unit = "AB mag"
        }
        report["non_detection"] = map[string]interface{}{
          "obsdate":          formatTNSDate(nondetection["date_obs"]),
          "limiting_flux":    nondetection["limiting_brightness"],
          "flux_units":       ConvertFluxUnits(unit),
          "filter_value":     reverseLookup(reverse, "filters", stringOf(nondetection["bandpass"])),
          "instrument_value": reverseLookup(reverse, "instruments", stringOf(nondetection["instrument"])),
          "exptime":          stringOf(nondetection["exposure_time"]),
          "observer":         stringOf(nondetection["observer"]),
          "comments":         stringOf(nondetection["comments"]),
          "archiveid":        "",
          "archival_remarks": "",
        }
      }
    }

    group := map[string]interface{}{}
    index := 0
    for _, row := range photometry {
      if _, ok := numeric(row["brightness"]); !ok {
        continue
      }
      limitingFlux := row["limiting_brightness"]
      if limitingFlux == nil {
        limitingFlux = ""
      }
      group[strconv.Itoa(index)] = map[string]interface{}{
        "obsdate":          formatTNSDate(row["date_obs"]),
        "flux":             row["brightness"],
        "flux_error":       row["brightness_error"],
        "limiting_flux":    limitingFlux,
        "flux_units":       ConvertFluxUnits(stringOf(row["brightness_unit"])),
        "filter_value":     reverseLookup(reverse, "filters", stringOf(row["bandpass"])),
        "instrument_value": reverseLookup(reverse, "instruments", stringOf(row["instrument"])),
        "exptime":          stringOf(row["exposure_time"]),
        "observer":         stringOf(row["observer"]),
        "comments":         stringOf(row["comments"]),
      }
      index++
    }
    report["photometry"] = map[string]interface{}{"photometry_group": group}

    atReport[strconv.Itoa(len(atReport))] = report
  }
  return atReport
}

func toStringList(raw interface{}) []string {
  switch values := raw.(type) {
  case []string:
    return values
  case []interface{}:
    out := make([]string, 0, len(values))
    for _, value := range values {
      out = append(out, fmt.Sprintf("%v", value))
    }
    return out
  }
  return nil
}

func stringOf(raw interface{}) string {
  if raw == nil {
    return ""
  }
  return fmt.Sprintf("%v", raw)
}
