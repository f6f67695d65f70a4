// Package models contains data models for the WiFi registry service.
package models

import (
	"encoding/json"
	"strconv"
	"time"
)

// Canonical field names of an access point observation
const (
	FieldBSSID            = "bssid"
	FieldFrequency        = "frequency"
	FieldRSSI             = "rssi"
	FieldSSID             = "ssid"
	FieldTimestamp        = "timestamp"
	FieldChannelBandwidth = "channel_bandwidth"
	FieldCapabilities     = "capabilities"
	FieldPassword         = "password"
	FieldDNSServer        = "dns_server"
	FieldGateway          = "gateway"
	FieldMyIP             = "my_ip"
	FieldSignalLevel      = "signal_level"
	FieldPavilionNumber   = "pavilion_number"
	FieldFloor            = "floor"
)

// RequiredFields lists the fields every observation must carry, in validation order.
var RequiredFields = []string{
	FieldBSSID,
	FieldFrequency,
	FieldRSSI,
	FieldSSID,
	FieldTimestamp,
	FieldChannelBandwidth,
	FieldCapabilities,
}

// OptionalStringFields are nullable text columns.
var OptionalStringFields = []string{FieldPassword, FieldDNSServer, FieldGateway, FieldMyIP}

// OptionalIntFields are nullable integer columns.
var OptionalIntFields = []string{FieldSignalLevel, FieldPavilionNumber, FieldFloor}

// ZeroBSSID is substituted for an empty BSSID by the lenient normalizer.
const ZeroBSSID = "00:00:00:00:00:00"

// AccessPoint represents a stored wireless access point observation.
// BSSID is the primary key and never changes once stored.
type AccessPoint struct {
	BSSID            string `json:"bssid" db:"bssid"`
	Frequency        int    `json:"frequency" db:"frequency"` // MHz
	RSSI             int    `json:"rssi" db:"rssi"`           // dBm, -100..0
	SSID             string `json:"ssid" db:"ssid"`
	Timestamp        int64  `json:"timestamp" db:"timestamp"` // epoch seconds
	ChannelBandwidth string `json:"channel_bandwidth" db:"channel_bandwidth"`
	Capabilities     string `json:"capabilities" db:"capabilities"`

	Password       *string `json:"password" db:"password"`
	DNSServer      *string `json:"dns_server" db:"dns_server"`
	Gateway        *string `json:"gateway" db:"gateway"`
	MyIP           *string `json:"my_ip" db:"my_ip"`
	SignalLevel    *int    `json:"signal_level" db:"signal_level"`
	PavilionNumber *int    `json:"pavilion_number" db:"pavilion_number"`
	Floor          *int    `json:"floor" db:"floor"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Payload is a decoded JSON object before normalization and validation.
// Numbers are expected as json.Number (decoder UseNumber), but Go integer
// types are accepted as well.
type Payload map[string]any

// Clone returns a shallow copy of the payload
func (p Payload) Clone() Payload {
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// ToPayload converts a typed record back into its canonical payload form.
// Nil optional fields are omitted.
func (a *AccessPoint) ToPayload() Payload {
	p := Payload{
		FieldBSSID:            a.BSSID,
		FieldFrequency:        json.Number(itoa(int64(a.Frequency))),
		FieldRSSI:             json.Number(itoa(int64(a.RSSI))),
		FieldSSID:             a.SSID,
		FieldTimestamp:        json.Number(itoa(a.Timestamp)),
		FieldChannelBandwidth: a.ChannelBandwidth,
		FieldCapabilities:     a.Capabilities,
	}

	setString := func(key string, v *string) {
		if v != nil {
			p[key] = *v
		}
	}
	setInt := func(key string, v *int) {
		if v != nil {
			p[key] = json.Number(itoa(int64(*v)))
		}
	}

	setString(FieldPassword, a.Password)
	setString(FieldDNSServer, a.DNSServer)
	setString(FieldGateway, a.Gateway)
	setString(FieldMyIP, a.MyIP)
	setInt(FieldSignalLevel, a.SignalLevel)
	setInt(FieldPavilionNumber, a.PavilionNumber)
	setInt(FieldFloor, a.Floor)

	return p
}

// WithEnrichment returns a copy of the record with pavilion and password replaced.
// All other fields keep their stored values.
func (a *AccessPoint) WithEnrichment(pavilion *int, password *string) *AccessPoint {
	merged := *a
	merged.PavilionNumber = pavilion
	merged.Password = password
	return &merged
}

// Redacted returns a copy of the record without its password
func (a *AccessPoint) Redacted() *AccessPoint {
	redacted := *a
	redacted.Password = nil
	return &redacted
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
