// Package model defines shared configuration and reading structures for the
// JeeLink reader.
package model

import "time"

// Variant identifies which LaCrosse frame format a reading was decoded from.
type Variant int

const (
	VariantUnknown Variant = iota
	VariantITPlus          // "OK 9 ..." lines pre-decoded by the sketch
	VariantRaw             // raw 5-byte IT+ datagrams with trailing CRC
)

// String returns a short name for the variant.
func (v Variant) String() string {
	switch v {
	case VariantITPlus:
		return "it+"
	case VariantRaw:
		return "raw"
	default:
		return "unknown"
	}
}

// SensorReading is one decoded measurement from a LaCrosse sensor.
// Humidity is only meaningful when HasHumidity is set; temperature-only
// sensors report a humidity marker value instead of a measurement.
type SensorReading struct {
	SensorID    int       `json:"sensor_id"`
	Variant     Variant   `json:"variant"`
	SensorType  int       `json:"sensor_type"`
	Temperature float64   `json:"temperature_celsius"`
	Humidity    float64   `json:"humidity_percent,omitempty"`
	HasHumidity bool      `json:"has_humidity"`
	WeakBattery bool      `json:"weak_battery"`
	NewBattery  bool      `json:"new_battery"`
	Timestamp   time.Time `json:"timestamp"`
}
