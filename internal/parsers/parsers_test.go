package parsers

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hermes-mma/hermes-backend/internal/types"
)

const lvcNoticeText = `TITLE:            GCN/LVC NOTICE
NOTICE_DATE:      Mon 16 Mar 20 22:01:09 UT
NOTICE_TYPE:      LVC Preliminary
TRIGGER_NUM:      S200316bj
TRIGGER_DATE:     18924 TJD;    76 DOY;   2020/03/16 (yyyy/mm/dd)
TRIGGER_TIME:     79076.157221 SOD {21:57:56.157221} UT
SEQUENCE_NUM:     1
GROUP_TYPE:       1 = CBC
FAR:              7.099e-11 [Hz]  (one per 163037.0 days)  (one per 446.68 years)
PROB_BNS:         0.00 [range is 0.0-1.0]
SKYMAP_FITS_URL:  https://gracedb.ligo.org/api/superevents/S200316bj/files/bayestar.fits.gz,0
EVENTPAGE_URL:    https://gracedb.ligo.org/superevents/S200316bj/view/
COMMENTS:         LVC Preliminary Trigger Alert.
COMMENTS:         This event is an OpenAlert.`

const lvcCounterpartText = `TITLE:            GCN/LVC COUNTERPART NOTICE
NOTICE_DATE:      Fri 26 Apr 19 23:13:39 UT
NOTICE_TYPE:      Other
CNTRPART_RA:      299.8851d {+19h 59m 32.4s} (J2000),
                  300.0523d {+20h 00m 12.5s} (current),
                  299.4524d {+19h 57m 48.5s} (1950)
CNTRPART_DEC:     +40.7310d {+40d 43' 51.6"} (J2000),
                  +40.7847d {+40d 47' 04.9"} (current),
                  +40.5932d {+40d 35' 35.4"} (1950)
CNTRPART_ERROR:   7.6 [arcsec, radius]
EVENT_TRIG_NUM:   S190426
EVENT_DATE:       18599 TJD;   116 DOY;   2019/04/26 (yy/mm/dd)
EVENT_TIME:       55315.00 SOD {15:21:55.00} UT
OBS_DATE:         18599 TJD;   116 DOY;   19/04/26
OBS_TIME:         73448.0 SOD {20:24:08.00} UT
TELESCOPE:        Swift-XRT
SOURSE_SERNUM:    2
RANK:             2
SUBMITTER:        Phil_Evans
COMMENTS:         LVC Counterpart.
COMMENTS:         This matches a catalogued X-ray source: 1RXH J195932.6+404351`

const icecubeNoticeText = `TITLE:            GCN/AMON NOTICE
NOTICE_DATE:      Wed 23 Aug 23 08:27:06 UT
NOTICE_TYPE:      ICECUBE Astrotrack Gold
STREAM:           24
RUN_NUM:          138283
EVENT_NUM:        14780365
SRC_RA:           19.4330d {+01h 17m 44s} (J2000),
                  19.7270d {+01h 18m 54s} (current),
                  18.8112d {+01h 15m 15s} (1950)
SRC_DEC:          11.4977d {-11d 29' 51"} (J2000),
                  -11.3737d {-11d 22' 24"} (current),
                  -11.7607d {-11d 45' 38"} (1950)
SRC_ERROR:        30.80 [arcmin radius, stat-only, 90% containment]
DISCOVERY_DATE:   20179 TJD;   235 DOY;   23/08/23 (yy/mm/dd)
DISCOVERY_TIME:   30374 SOD {08:26:14.59} UT
REVISION:         0
ENERGY:           3.4127e+03 [TeV]
COMMENTS:         IceCube Gold event.`

func mustData(t *testing.T, data map[string]interface{}) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return raw
}

func TestGCNLVCNoticeParser(t *testing.T) {
	f := newFixture()
	parser := NewGCNLVCNoticeParser(f.linker)

	message := &types.Message{ID: uuid.New(), Topic: "test_topic", MessageText: lvcNoticeText}
	matched, err := parser.Parse(context.Background(), message)
	require.NoError(t, err)
	require.True(t, matched)

	assert.Equal(t, "GCN/LVC NOTICE", message.Title)
	assert.Equal(t, parser.Name(), message.MessageParser)
	expectedPublished := time.Date(2020, 3, 16, 22, 1, 9, 0, time.UTC)
	assert.Equal(t, expectedPublished, message.Published)

	data := dataMap(message)
	require.NotNil(t, data)
	assert.Equal(t,
		"https://gracedb.ligo.org/api/superevents/S200316bj/files/bayestar.multiorder.fits,0",
		data["skymap_fits_url"])
	// Repeated COMMENTS lines accumulate into one field.
	assert.Contains(t, data["comments"], "OpenAlert")

	event, ok := f.events.events["S200316bj"]
	require.True(t, ok)
	assert.Equal(t, types.EventTypeGravitationalWave, event.EventType)
	require.Len(t, f.sequences.sequences, 1)
	assert.Equal(t, 1, f.sequences.sequences[0].SequenceNumber)
	assert.Equal(t, types.SequenceTypePreliminary, f.sequences.sequences[0].SequenceType)
}

func TestGCNLVCNoticeParserDeduplicatesSequences(t *testing.T) {
	f := newFixture()
	parser := NewGCNLVCNoticeParser(f.linker)

	for i := 0; i < 2; i++ {
		message := &types.Message{ID: uuid.New(), Topic: "test_topic", MessageText: lvcNoticeText}
		matched, err := parser.Parse(context.Background(), message)
		require.NoError(t, err)
		require.True(t, matched)
	}
	assert.Len(t, f.sequences.sequences, 1)
}

func TestGCNLVCNoticeParserRejectsBadTitle(t *testing.T) {
	f := newFixture()
	parser := NewGCNLVCNoticeParser(f.linker)

	message := &types.Message{
		ID:          uuid.New(),
		Topic:       "test_topic",
		MessageText: "TITLE:            BAD NOTICE\nTRIGGER_NUM:       S112233\nSEQUENCE_NUM:      1",
	}
	matched, err := parser.Parse(context.Background(), message)
	require.NoError(t, err)
	assert.False(t, matched)
	assert.Empty(t, message.Data)
	assert.Empty(t, f.sequences.sequences)
}

func TestGCNLVCCounterpartNoticeParser(t *testing.T) {
	f := newFixture()
	parser := NewGCNLVCCounterpartNoticeParser(f.linker)

	message := &types.Message{ID: uuid.New(), Topic: "test_topic", MessageText: lvcCounterpartText}
	matched, err := parser.Parse(context.Background(), message)
	require.NoError(t, err)
	require.True(t, matched)

	// Published comes from OBS_DATE and OBS_TIME, not NOTICE_DATE.
	expectedPublished := time.Date(2019, 4, 26, 20, 24, 8, 0, time.UTC)
	assert.Equal(t, expectedPublished, message.Published)

	_, ok := f.events.events["S190426"]
	assert.True(t, ok)

	target, ok := f.targets.targets["S190426_X2|299.885100|40.731000"]
	require.True(t, ok)
	assert.Equal(t, "S190426_X2", target.Name)
	assert.InDelta(t, 299.8851, target.RA, 1e-9)
	assert.InDelta(t, 40.7310, target.Dec, 1e-9)
	assert.Len(t, f.targets.links["S190426_X2"], 1)
}

func TestGCNCircularParser(t *testing.T) {
	f := newFixture()
	parser := NewGCNCircularParser(f.linker)

	message := &types.Message{
		ID:    uuid.New(),
		Topic: "gcn.circular",
		Data: mustData(t, map[string]interface{}{
			"subject":    "LIGO/Virgo/KAGRA S240830gn: Identification of a GW compact binary merger candidate",
			"eventId":    "LIGO/Virgo/KAGRA S240830gn",
			"circularId": float64(37354),
			"submitter":  "Person at Institution <email@domain>",
			"body":       "The LIGO Scientific Collaboration reports...",
		}),
	}
	matched, err := parser.Parse(context.Background(), message)
	require.NoError(t, err)
	require.True(t, matched)

	data := dataMap(message)
	urls, ok := data["urls"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "https://gcn.nasa.gov/circulars/37354", urls["gcn_circular"])

	_, ok = f.events.events["S240830gn"]
	assert.True(t, ok)
}

func TestGCNCircularParserIgnoresNonCirculars(t *testing.T) {
	f := newFixture()
	parser := NewGCNCircularParser(f.linker)

	message := &types.Message{
		ID:    uuid.New(),
		Topic: "gcn.circular",
		Data:  mustData(t, map[string]interface{}{"subject": "no circular id here"}),
	}
	matched, err := parser.Parse(context.Background(), message)
	require.NoError(t, err)
	assert.False(t, matched)
}

func TestIcecubeNoticePlaintextParser(t *testing.T) {
	f := newFixture()
	parser := NewIcecubeNoticePlaintextParser(f.linker)

	message := &types.Message{ID: uuid.New(), Topic: "gcn.notice", MessageText: icecubeNoticeText}
	matched, err := parser.Parse(context.Background(), message)
	require.NoError(t, err)
	require.True(t, matched)

	event, ok := f.events.events["138283_14780365"]
	require.True(t, ok)
	assert.Equal(t, types.EventTypeNeutrino, event.EventType)

	require.Len(t, f.sequences.sequences, 1)
	assert.Equal(t, 0, f.sequences.sequences[0].SequenceNumber)
	assert.Equal(t, types.SequenceTypeInitial, f.sequences.sequences[0].SequenceType)

	target, ok := f.targets.targets["icecube_138283_14780365_src|19.433000|11.497700"]
	require.True(t, ok)
	assert.Equal(t, "icecube_138283_14780365_src", target.Name)

	data := dataMap(message)
	urls, ok := data["urls"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "https://gcn.gsfc.nasa.gov/notices_amon_g_b/138283_14780365.amon", urls["gcn"])
}

func TestHermesMessageParserLinksNestedTargets(t *testing.T) {
	f := newFixture()
	parser := NewHermesMessageParser(f.linker)

	message := &types.Message{
		ID:    uuid.New(),
		Topic: "hermes.test",
		Data: mustData(t, map[string]interface{}{
			"event_id": "S112233",
			"photometry": []interface{}{
				map[string]interface{}{
					"target_name": "m44",
					"ra":          "130.0",
					"dec":         "19.67",
					"brightness":  22.5,
				},
			},
		}),
	}
	matched, err := parser.Parse(context.Background(), message)
	require.NoError(t, err)
	require.True(t, matched)

	_, ok := f.events.events["S112233"]
	assert.True(t, ok)
	target, ok := f.targets.targets["m44|130.000000|19.670000"]
	require.True(t, ok)
	assert.Equal(t, "m44", target.Name)
}

func TestIGWNAlertParser(t *testing.T) {
	f := newFixture()
	parser := NewIGWNAlertParser(f.linker)

	skymapHash := uuid.New()
	message := &types.Message{
		ID:    uuid.New(),
		Topic: "igwn.gwalert",
		Data: mustData(t, map[string]interface{}{
			"alert_type":    "PRELIMINARY",
			"time_created":  "2018-11-01T22:34:49Z",
			"superevent_id": "MS181101ab",
			"sequence_num":  float64(1),
			"event": map[string]interface{}{
				"skymap_version": float64(1),
				"skymap_hash":    skymapHash.String(),
			},
		}),
	}
	matched, err := parser.Parse(context.Background(), message)
	require.NoError(t, err)
	require.True(t, matched)

	_, ok := f.events.events["MS181101ab"]
	assert.True(t, ok)
	require.Len(t, f.sequences.sequences, 1)
	sequence := f.sequences.sequences[0]
	assert.Equal(t, 1, sequence.SequenceNumber)
	assert.Equal(t, types.SequenceTypePreliminary, sequence.SequenceType)
	require.NotNil(t, sequence.SkymapHash)
	assert.Equal(t, skymapHash, *sequence.SkymapHash)
	require.NotNil(t, sequence.SkymapVersion)
	assert.Equal(t, 1, *sequence.SkymapVersion)
}

func TestIGWNAlertParserRequiresAllKeys(t *testing.T) {
	f := newFixture()
	parser := NewIGWNAlertParser(f.linker)

	message := &types.Message{
		ID:    uuid.New(),
		Topic: "igwn.gwalert",
		Data:  mustData(t, map[string]interface{}{"alert_type": "PRELIMINARY"}),
	}
	matched, err := parser.Parse(context.Background(), message)
	require.NoError(t, err)
	assert.False(t, matched)
}

func TestConvertNoticeType(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"LVC Early Warning", types.SequenceTypeEarlyWarning},
		{"LVC Preliminary", types.SequenceTypePreliminary},
		{"LVC Initial", types.SequenceTypeInitial},
		{"UPDATE", types.SequenceTypeUpdate},
		{"LVC Retraction", types.SequenceTypeRetraction},
		{"Other", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ConvertNoticeType(tc.in), tc.in)
	}
}

func TestMOCURLFromSkymapURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{
			"https://gracedb.ligo.org/api/superevents/S1/files/bayestar.fits.gz,0",
			"https://gracedb.ligo.org/api/superevents/S1/files/bayestar.multiorder.fits,0",
		},
		{
			"https://gracedb.ligo.org/api/superevents/S1/files/LALInference.fits.gz,2",
			"https://gracedb.ligo.org/api/superevents/S1/files/LALInference.multiorder.fits,2",
		},
		{
			"https://gracedb.ligo.org/api/superevents/S1/files/bayestar.multiorder.fit",
			"https://gracedb.ligo.org/api/superevents/S1/files/bayestar.multiorder.fits",
		},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, MOCURLFromSkymapURL(tc.in))
	}
}

func TestParseNoticeFieldsContinuationLines(t *testing.T) {
	text := "TITLE:   GCN/TEST NOTICE\nCNTRPART_RA:  299.8851d (J2000),\n     300.0523d (current)\nCOMMENTS:  first.\nCOMMENTS:  second."
	fields := parseNoticeFields(text, appendToLast)
	assert.Equal(t, "GCN/TEST NOTICE", fields["title"])
	assert.Equal(t, "299.8851d (J2000), 300.0523d (current)", fields["cntrpart_ra"])
	assert.Equal(t, "first.\nsecond.", fields["comments"])
}
