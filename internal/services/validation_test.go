package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func photometryMessage(data map[string]interface{}) *SubmittedMessage {
	return &SubmittedMessage{
		Title:       "Candidate followup",
		Topic:       "hermes.test",
		Submitter:   "observer",
		MessageText: "Photometry attached.",
		Data:        data,
	}
}

func TestValidateMessageRequiredFields(t *testing.T) {
	errs := ValidateMessage(&SubmittedMessage{})
	assert.Contains(t, errs, "title")
	assert.Contains(t, errs, "topic")
	assert.Contains(t, errs, "submitter")
	assert.Contains(t, errs, "message_text")

	errs = ValidateMessage(photometryMessage(nil))
	assert.True(t, errs.Empty())
}

func TestValidatePhotometryAcceptsGoodRows(t *testing.T) {
	msg := photometryMessage(map[string]interface{}{
		"targets": []interface{}{
			map[string]interface{}{"name": "AT2024abc", "ra": "10:00:00", "dec": "-20:30:00"},
		},
		"photometry": []interface{}{
			map[string]interface{}{
				"target_name":     "AT2024abc",
				"telescope":       "LCO 1m",
				"bandpass":        "r",
				"brightness":      18.5,
				"brightness_unit": "AB mag",
				"date_obs":        "2024-02-11T01:02:03Z",
			},
		},
	})
	errs := ValidatePhotometry(msg)
	assert.True(t, errs.Empty(), "unexpected errors: %v", errs)
}

func TestValidatePhotometryRejectsBadRows(t *testing.T) {
	msg := photometryMessage(map[string]interface{}{
		"targets": []interface{}{
			map[string]interface{}{"name": "AT2024abc", "ra": 400.0, "dec": -95.0},
		},
		"photometry": []interface{}{
			map[string]interface{}{
				"target_name":     "somethingelse",
				"telescope":       "LCO 1m",
				"bandpass":        "r",
				"brightness_unit": "parsecs",
				"date_obs":        "not a date",
			},
		},
	})
	errs := ValidatePhotometry(msg)
	assert.Contains(t, errs, "data.targets.0.ra")
	assert.Contains(t, errs, "data.targets.0.dec")
	assert.Contains(t, errs, "data.photometry.0.target_name")
	assert.Contains(t, errs, "data.photometry.0.brightness")
	assert.Contains(t, errs, "data.photometry.0.brightness_unit")
	assert.Contains(t, errs, "data.photometry.0.date_obs")
}

func TestValidatePhotometryJulianDateFormat(t *testing.T) {
	msg := photometryMessage(map[string]interface{}{
		"photometry": []interface{}{
			map[string]interface{}{
				"target_name": "AT2024abc",
				"telescope":   "LCO 1m",
				"bandpass":    "r",
				"brightness":  "19.1",
				"date_obs":    "2460352.51",
				"date_format": "jd",
			},
		},
	})
	errs := ValidatePhotometry(msg)
	assert.True(t, errs.Empty(), "unexpected errors: %v", errs)

	bad := photometryMessage(map[string]interface{}{
		"photometry": []interface{}{
			map[string]interface{}{
				"target_name": "AT2024abc",
				"telescope":   "LCO 1m",
				"bandpass":    "r",
				"brightness":  "19.1",
				"date_obs":    "yesterday",
				"date_format": "jd",
			},
		},
	})
	errs = ValidatePhotometry(bad)
	assert.Contains(t, errs, "data.photometry.0.date_obs")
}

func TestValidateCandidates(t *testing.T) {
	msg := photometryMessage(map[string]interface{}{
		"candidates": []interface{}{
			map[string]interface{}{
				"candidate_id":    "ZTF24aaa",
				"discovery_date":  "2024-02-11 01:02:03",
				"band":            "g",
				"ra":              150.25,
				"dec":             22.5,
				"brightness_unit": "Vega mag",
			},
		},
	})
	errs := ValidateCandidates(msg)
	assert.True(t, errs.Empty(), "unexpected errors: %v", errs)

	bad := photometryMessage(map[string]interface{}{
		"candidates": []interface{}{
			map[string]interface{}{"ra": 150.25, "dec": 22.5, "brightness_unit": "mJy"},
		},
	})
	errs = ValidateCandidates(bad)
	assert.Contains(t, errs, "data.candidates.0.candidate_id")
	assert.Contains(t, errs, "data.candidates.0.discovery_date")
	assert.Contains(t, errs, "data.candidates.0.band")
	assert.Contains(t, errs, "data.candidates.0.brightness_unit")
}

func TestParseRA(t *testing.T) {
	ra, err := ParseRA("10:00:00")
	require.NoError(t, err)
	assert.InDelta(t, 150.0, ra, 1e-9)

	ra, err = ParseRA("23.65")
	require.NoError(t, err)
	assert.InDelta(t, 23.65, ra, 1e-9)

	ra, err = ParseRA(359.9)
	require.NoError(t, err)
	assert.InDelta(t, 359.9, ra, 1e-9)

	_, err = ParseRA("ten hours")
	assert.Error(t, err)
}

func TestParseDec(t *testing.T) {
	dec, err := ParseDec("-20:30:00")
	require.NoError(t, err)
	assert.InDelta(t, -20.5, dec, 1e-9)

	dec, err = ParseDec("+41 16 9")
	require.NoError(t, err)
	assert.InDelta(t, 41.269166666, dec, 1e-6)

	_, err = ParseDec("north")
	assert.Error(t, err)
}

func TestParseObservationDate(t *testing.T) {
	for _, raw := range []string{
		"2024-02-11T01:02:03Z",
		"2024-02-11T01:02:03.25",
		"2024-02-11 01:02:03",
		"2024-02-11",
	} {
		_, err := ParseObservationDate(raw)
		assert.NoError(t, err, raw)
	}
	_, err := ParseObservationDate("02/11/2024")
	assert.Error(t, err)
}
