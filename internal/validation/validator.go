package validation

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/sebasr/wifi-registry/internal/models"
)

var bssidPattern = regexp.MustCompile(`^([0-9a-fA-F]{2}:){5}[0-9a-fA-F]{2}$`)

// AllowedChannelBandwidths are the accepted channel widths in MHz
var AllowedChannelBandwidths = []string{"20", "40", "80", "160"}

// ValidationError reports the first rule a payload breaks
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func fieldError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// Validate checks a normalized payload. Rules run in a fixed order and the
// first failure is returned as a *ValidationError.
func Validate(p models.Payload) error {
	for _, f := range models.RequiredFields {
		if _, ok := p[f]; !ok {
			return fieldError(f, "required field is missing")
		}
	}

	for _, f := range models.OptionalStringFields {
		if v, ok := p[f]; ok && v != nil {
			if _, isString := v.(string); !isString {
				return fieldError(f, "must be a string")
			}
		}
	}
	for _, f := range models.OptionalIntFields {
		if v, ok := p[f]; ok && v != nil {
			if _, isInt := asInt(v); !isInt {
				return fieldError(f, "must be an integer")
			}
		}
	}

	bssid, ok := p[models.FieldBSSID].(string)
	if !ok || !bssidPattern.MatchString(bssid) {
		return fieldError(models.FieldBSSID, "expected format XX:XX:XX:XX:XX:XX")
	}

	if n, ok := asInt(p[models.FieldFrequency]); !ok || n <= 0 {
		return fieldError(models.FieldFrequency, "must be a positive integer")
	}

	if n, ok := asInt(p[models.FieldRSSI]); !ok || n < -100 || n > 0 {
		return fieldError(models.FieldRSSI, "must be an integer between -100 and 0")
	}

	if n, ok := asInt(p[models.FieldTimestamp]); !ok || n < 0 {
		return fieldError(models.FieldTimestamp, "must be a non-negative integer")
	}

	if s, ok := p[models.FieldSSID].(string); !ok || s == "" {
		return fieldError(models.FieldSSID, "must be a non-empty string")
	}

	bw, ok := p[models.FieldChannelBandwidth].(string)
	if !ok || !allowedBandwidth(bw) {
		return fieldError(models.FieldChannelBandwidth, "must be one of '20', '40', '80' or '160'")
	}

	if _, ok := p[models.FieldCapabilities].(string); !ok {
		return fieldError(models.FieldCapabilities, "must be a string")
	}

	return nil
}

// ValidateRecord runs a typed record through the same rules as Validate
func ValidateRecord(ap *models.AccessPoint) error {
	if ap == nil {
		return fieldError(models.FieldBSSID, "record is nil")
	}
	return Validate(ap.ToPayload())
}

// Record validates a normalized payload and converts it into a typed record.
// Empty optional strings and a zero pavilion number are stored as unset.
// The BSSID is upper-cased so identity is case-insensitive.
func Record(p models.Payload) (*models.AccessPoint, error) {
	if err := Validate(p); err != nil {
		return nil, err
	}

	frequency, _ := asInt(p[models.FieldFrequency])
	rssi, _ := asInt(p[models.FieldRSSI])
	timestamp, _ := asInt(p[models.FieldTimestamp])

	ap := &models.AccessPoint{
		BSSID:            strings.ToUpper(p[models.FieldBSSID].(string)),
		Frequency:        int(frequency),
		RSSI:             int(rssi),
		SSID:             p[models.FieldSSID].(string),
		Timestamp:        timestamp,
		ChannelBandwidth: p[models.FieldChannelBandwidth].(string),
		Capabilities:     p[models.FieldCapabilities].(string),
		Password:         optionalString(p, models.FieldPassword),
		DNSServer:        optionalString(p, models.FieldDNSServer),
		Gateway:          optionalString(p, models.FieldGateway),
		MyIP:             optionalString(p, models.FieldMyIP),
		SignalLevel:      optionalInt(p, models.FieldSignalLevel),
		PavilionNumber:   optionalInt(p, models.FieldPavilionNumber),
		Floor:            optionalInt(p, models.FieldFloor),
	}
	if ap.PavilionNumber != nil && *ap.PavilionNumber == 0 {
		ap.PavilionNumber = nil
	}

	return ap, nil
}

func optionalString(p models.Payload, key string) *string {
	s, ok := p[key].(string)
	if !ok || s == "" {
		return nil
	}
	return &s
}

func optionalInt(p models.Payload, key string) *int {
	n, ok := asInt(p[key])
	if !ok {
		return nil
	}
	v := int(n)
	return &v
}

func allowedBandwidth(bw string) bool {
	for _, allowed := range AllowedChannelBandwidths {
		if bw == allowed {
			return true
		}
	}
	return false
}

// asInt reports whether v is an integer value. Booleans, strings and
// numbers with a fractional part are not integers.
func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case uint:
		if uint64(n) > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || math.Abs(n) > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}
