package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertListToMarkdownTable(t *testing.T) {
	rows := []map[string]interface{}{
		{"name": "AT2024abc", "ra": 150.25, "dec": 22.5, "unlisted": "dropped"},
		{"name": "AT2024abd", "ra": 151.0},
	}
	table := ConvertListToMarkdownTable("Targets", rows, TargetOrder)

	lines := strings.Split(strings.TrimRight(table, "\n"), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "#### Targets:", lines[0])
	assert.Equal(t, "| name | ra | dec |", lines[1])
	assert.Equal(t, "| --- | --- | --- |", lines[2])
	assert.Equal(t, "| AT2024abc | 150.25 | 22.5 |", lines[3])
	assert.Equal(t, "| AT2024abd | 151 |  |", lines[4])
	assert.NotContains(t, table, "unlisted")
	assert.NotContains(t, table, "dropped")
}

func TestConvertListToMarkdownTableColumnOrder(t *testing.T) {
	rows := []map[string]interface{}{
		{"telescope": "LCO 1m", "target_name": "AT2024abc", "brightness": 18.5, "date_obs": "2024-02-11"},
	}
	table := ConvertListToMarkdownTable("Photometry", rows, PhotometryOrder)
	assert.Contains(t, table, "| target_name | date_obs | brightness | telescope |")
}

func TestConvertToPlaintext(t *testing.T) {
	message := map[string]interface{}{
		"authors":      "A. Observer (Example Observatory)",
		"message_text": "We report new photometry.",
		"data": map[string]interface{}{
			"targets": []interface{}{
				map[string]interface{}{"name": "AT2024abc", "ra": 150.25, "dec": 22.5},
			},
			"photometry": []interface{}{
				map[string]interface{}{
					"target_name": "AT2024abc",
					"date_obs":    "2024-02-11T01:02:03Z",
					"brightness":  18.5,
					"bandpass":    "r",
				},
			},
		},
	}
	text := ConvertToPlaintext(message)
	assert.True(t, strings.HasPrefix(text, "A. Observer (Example Observatory)\n\nWe report new photometry.\n\n"))
	assert.Contains(t, text, "#### Targets:")
	assert.Contains(t, text, "#### Photometry:")
	assert.NotContains(t, text, "#### Astrometry:")
	assert.NotContains(t, text, "#### References:")
}

func TestConvertToPlaintextWithoutData(t *testing.T) {
	text := ConvertToPlaintext(map[string]interface{}{
		"authors":      "A. Observer",
		"message_text": "Free text only.",
	})
	assert.Equal(t, "A. Observer\n\nFree text only.\n\n", text)
}

func TestListOfMaps(t *testing.T) {
	mixed := []interface{}{
		map[string]interface{}{"a": 1},
		"not a map",
		map[string]interface{}{"b": 2},
	}
	rows := ListOfMaps(mixed)
	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[0]["a"])

	assert.Nil(t, ListOfMaps("scalar"))
	assert.Nil(t, ListOfMaps(nil))
}
