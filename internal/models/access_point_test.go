package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func stringPtr(s string) *string { return &s }

func TestAccessPoint_ToPayload(t *testing.T) {
	ap := &AccessPoint{
		BSSID:            "AA:BB:CC:DD:EE:FF",
		Frequency:        2412,
		RSSI:             -50,
		SSID:             "TestNet",
		Timestamp:        1707708416,
		ChannelBandwidth: "20",
		Capabilities:     "WPA2",
		Gateway:          stringPtr("192.168.1.1"),
		Floor:            intPtr(2),
	}

	p := ap.ToPayload()

	assert.Equal(t, "AA:BB:CC:DD:EE:FF", p[FieldBSSID])
	assert.Equal(t, json.Number("2412"), p[FieldFrequency])
	assert.Equal(t, json.Number("-50"), p[FieldRSSI])
	assert.Equal(t, json.Number("1707708416"), p[FieldTimestamp])
	assert.Equal(t, "192.168.1.1", p[FieldGateway])
	assert.Equal(t, json.Number("2"), p[FieldFloor])

	_, hasPassword := p[FieldPassword]
	assert.False(t, hasPassword, "nil optional fields must be omitted")
	_, hasPavilion := p[FieldPavilionNumber]
	assert.False(t, hasPavilion)
}

func TestAccessPoint_WithEnrichment(t *testing.T) {
	ap := &AccessPoint{
		BSSID:     "AA:BB:CC:DD:EE:FF",
		SSID:      "TestNet",
		DNSServer: stringPtr("8.8.8.8"),
		Password:  stringPtr("old"),
	}

	merged := ap.WithEnrichment(intPtr(12), nil)

	require.NotNil(t, merged.PavilionNumber)
	assert.Equal(t, 12, *merged.PavilionNumber)
	assert.Nil(t, merged.Password)
	assert.Equal(t, "8.8.8.8", *merged.DNSServer)

	// original untouched
	assert.Nil(t, ap.PavilionNumber)
	assert.Equal(t, "old", *ap.Password)
}

func TestAccessPoint_Redacted(t *testing.T) {
	ap := &AccessPoint{
		BSSID:    "AA:BB:CC:DD:EE:FF",
		SSID:     "TestNet",
		Gateway:  stringPtr("192.168.1.1"),
		Password: stringPtr("secret"),
	}

	redacted := ap.Redacted()

	assert.Nil(t, redacted.Password)
	assert.Equal(t, "TestNet", redacted.SSID)
	assert.Equal(t, "192.168.1.1", *redacted.Gateway)
	assert.Equal(t, "secret", *ap.Password)
}

func TestPayload_Clone(t *testing.T) {
	p := Payload{"ssid": "a"}
	c := p.Clone()
	c["ssid"] = "b"
	assert.Equal(t, "a", p["ssid"])
}

func TestBatchResult(t *testing.T) {
	r := NewBatchResult(5, 2)

	r.AddSuccess("11:22:33:44:55:66")
	r.AddDuplicate()
	r.AddFailure(2, "", "structural_error", "element is not an object")
	r.AddFailure(3, "AA:BB:CC:DD:EE:FF", "conflict", "already exists")
	r.AddFailure(4, "", "parse_error", "bad")

	assert.Equal(t, 5, r.Total)
	assert.Equal(t, 1, r.Succeeded)
	assert.Equal(t, 3, r.Failed)
	assert.Equal(t, 1, r.Duplicates)
	assert.Equal(t, 5, r.Processed())
	assert.Len(t, r.Errors, 2, "failure sample is bounded")
	assert.Equal(t, 2, r.Errors[0].Index)
	assert.Equal(t, []string{"11:22:33:44:55:66"}, r.Stored)
	assert.Equal(t, "Successful: 1/5, Errors: 3/5, Duplicates: 1/5", r.Summary())
}

func TestNewBatchResult_DefaultBound(t *testing.T) {
	r := NewBatchResult(20, 0)
	for i := 0; i < 20; i++ {
		r.AddFailure(i, "", "validation_error", "bad")
	}
	assert.Len(t, r.Errors, DefaultMaxReportedErrors)
	assert.Equal(t, "Successful: 0/20, Errors: 20/20", r.Summary())
}
