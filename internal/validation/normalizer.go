// Package validation normalizes raw access point payloads and checks them
// against the canonical record rules.
package validation

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/sebasr/wifi-registry/internal/models"
)

// Alias keys accepted from scanners that report units in the key name
const (
	AliasFrequencyMHz        = "frequency_mhz"
	AliasChannelBandwidthMHz = "channel_bandwidth_mhz"
)

// millisecondThreshold separates epoch seconds from epoch milliseconds
const millisecondThreshold = int64(1_000_000_000_000)

var canonicalFields = func() map[string]struct{} {
	m := make(map[string]struct{})
	for _, group := range [][]string{models.RequiredFields, models.OptionalStringFields, models.OptionalIntFields} {
		for _, f := range group {
			m[f] = struct{}{}
		}
	}
	return m
}()

// Normalize maps alias keys onto canonical fields, converts millisecond
// timestamps to seconds and drops unknown keys. The input is not modified and
// nothing is rejected here.
func Normalize(raw models.Payload) models.Payload {
	out := make(models.Payload, len(raw))
	for k, v := range raw {
		if _, ok := canonicalFields[k]; ok {
			out[k] = v
		}
	}

	if _, ok := raw[models.FieldFrequency]; !ok {
		if v, ok := raw[AliasFrequencyMHz]; ok {
			out[models.FieldFrequency] = v
		}
	}

	if _, ok := raw[models.FieldChannelBandwidth]; !ok {
		if v, ok := raw[AliasChannelBandwidthMHz]; ok {
			out[models.FieldChannelBandwidth] = bandwidthString(v)
		}
	}

	if ts, ok := out[models.FieldTimestamp]; ok {
		if n, ok := numericInt(ts); ok && n > millisecondThreshold {
			out[models.FieldTimestamp] = n / 1000
		}
	}

	return out
}

// NormalizeLenient runs Normalize and then fills missing or null required
// fields with zero values. An empty bssid becomes the all-zero MAC. Used by
// transports that accept hand-typed input.
func NormalizeLenient(raw models.Payload) models.Payload {
	out := Normalize(raw)

	for _, f := range []string{models.FieldFrequency, models.FieldRSSI, models.FieldTimestamp} {
		if isBlank(out[f]) {
			out[f] = int64(0)
		}
	}
	for _, f := range []string{models.FieldSSID, models.FieldChannelBandwidth, models.FieldCapabilities, models.FieldBSSID} {
		if out[f] == nil {
			out[f] = ""
		}
	}
	if s, ok := out[models.FieldBSSID].(string); ok && s == "" {
		out[models.FieldBSSID] = models.ZeroBSSID
	}

	return out
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

// bandwidthString renders an alias bandwidth value as a decimal string
func bandwidthString(v any) string {
	if n, ok := asInt(v); ok {
		return strconv.FormatInt(n, 10)
	}
	if s, ok := v.(string); ok {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return strconv.FormatInt(n, 10)
		}
		return s
	}
	if f, ok := asFloat(v); ok {
		return strconv.FormatInt(int64(f), 10)
	}
	return fmt.Sprint(v)
}

// numericInt returns the integer part of any numeric value
func numericInt(v any) (int64, bool) {
	if n, ok := asInt(v); ok {
		return n, true
	}
	if f, ok := asFloat(v); ok {
		return int64(f), true
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
