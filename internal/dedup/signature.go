// Package dedup removes repeated access point observations using a
// deterministic signature over a configurable list of fields.
package dedup

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sebasr/wifi-registry/internal/models"
)

const (
	fieldSeparator = "\x1f"
	missingToken   = "<missing>"
	nullToken      = "<null>"
)

// DefaultFields is the identity rule used when no fields are configured
var DefaultFields = []string{
	models.FieldBSSID,
	models.FieldFrequency,
	models.FieldRSSI,
	models.FieldSSID,
	models.FieldTimestamp,
	models.FieldChannelBandwidth,
	models.FieldCapabilities,
}

// Signature returns the SHA-256 hex digest identifying p under fields.
// Missing and null values hash to distinct tokens and nested values are
// encoded as JSON with sorted keys.
func Signature(p models.Payload, fields []string) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		v, ok := p[f]
		switch {
		case !ok:
			parts[i] = missingToken
		case v == nil:
			parts[i] = nullToken
		default:
			parts[i] = canonical(v)
		}
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, fieldSeparator)))
	return hex.EncodeToString(sum[:])
}

func canonical(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Sprintf("%v", v)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
