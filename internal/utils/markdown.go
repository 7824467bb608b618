package utils

import (
  "fmt"
  "sort"
  "strings"
)

// Column orderings for the markdown tables rendered from a message's data
// section. Keys absent from an ordering are left out of the table.
var (
  TargetOrder = []string{
    "name", "ra", "dec", "pm_ra", "pm_dec", "epoch", "new_discovery",
    "redshift", "host_name", "host_redshift",
  }
  AstrometryOrder = []string{
    "target_name", "date_obs", "ra", "ra_error", "dec", "dec_error",
    "telescope", "instrument",
  }
  PhotometryOrder = []string{
    "target_name", "date_obs", "brightness", "brightness_error",
    "limiting_brightness", "limiting_brightness_error", "bandpass",
    "telescope", "instrument",
  }
  ReferencesOrder = []string{"source", "citation", "url"}
)

func ConvertListToMarkdownTable(name string, data []map[string]interface{}, keyOrdering []string) string {
  var b strings.Builder
  fmt.Fprintf(&b, "#### %s:\n", name)

  ordering := make(map[string]int, len(keyOrdering))
  for i, key := range keyOrdering {
    ordering[key] = i
  }

  keysPresent := map[string]bool{}
  for _, datum := range data {
    for key := range datum {
      if _, ok := ordering[key]; ok {
        keysPresent[key] = true
      }
    }
  }
  orderedKeys := make([]string, 0, len(keysPresent))
  for key := range keysPresent {
    orderedKeys = append(orderedKeys, key)
  }
  sort.Slice(orderedKeys, func(i, j int) bool {
    return ordering[orderedKeys[i]] < ordering[orderedKeys[j]]
  })

  fmt.Fprintf(&b, "| %s |\n", strings.Join(orderedKeys, " | "))

  dashes := make([]string, len(orderedKeys))
  for i := range dashes {
    dashes[i] = "---"
  }
  fmt.Fprintf(&b, "| %s |\n", strings.Join(dashes, " | "))

  for _, datum := range data {
    b.WriteString("|")
    for _, key := range orderedKeys {
      value := ""
      if v, ok := datum[key]; ok && v != nil {
        value = fmt.Sprintf("%v", v)
      }
      fmt.Fprintf(&b, " %s |", value)
    }
    b.WriteString("\n")
  }

  return b.String()
}

// ConvertToPlaintext renders a hermes message document as plaintext with
// markdown tables for its targets, photometry, astrometry and references.
// Used for TNS remarks and email bodies.
func ConvertToPlaintext(message map[string]interface{}) string {
  var b strings.Builder
  fmt.Fprintf(&b, "%s\n\n%s\n\n", stringValue(message, "authors"), stringValue(message, "message_text"))

  data, _ := message["data"].(map[string]interface{})
  sections := []struct {
    key      string
    name     string
    ordering []string
  }{
    {"targets", "Targets", TargetOrder},
    {"photometry", "Photometry", PhotometryOrder},
    {"astrometry", "Astrometry", AstrometryOrder},
    {"references", "References", ReferencesOrder},
  }
  for _, section := range sections {
    rows := ListOfMaps(data[section.key])
    if len(rows) == 0 {
      continue
    }
    b.WriteString(ConvertListToMarkdownTable(section.name, rows, section.ordering))
    b.WriteString("\n")
  }

  return b.String()
}

// ListOfMaps coerces a decoded JSON array into []map[string]interface{},
// dropping entries of any other shape.
func ListOfMaps(v interface{}) []map[string]interface{} {
  switch rows := v.(type) {
  case []map[string]interface{}:
    return rows
  case []interface{}:
    out := make([]map[string]interface{}, 0, len(rows))
    for _, row := range rows {
      if m, ok := row.(map[string]interface{}); ok {
        out = append(out, m)
      }
    }
    return out
  }
  return nil
}

func stringValue(m map[string]interface{}, key string) string {
  if m == nil {
    return ""
  }
  if v, ok := m[key]; ok && v != nil {
    return fmt.Sprintf("%v", v)
  }
  return ""
}
