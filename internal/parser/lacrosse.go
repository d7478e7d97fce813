// Package parser classifies JeeLink frames against the known LaCrosse frame
// formats and extracts typed sensor readings.
//
// Two formats are recognized:
//
//	OK 9 ID T1 T2 T3 T4            decoded IT+ line printed by the sketch
//	B0 B1 B2 B3 CRC                raw 5-byte IT+ datagram in hex
//
// The decoded line carries decimal byte values; the sketch has already
// validated the RF checksum before printing it. The raw datagram carries the
// on-air payload and is validated here with CRC-8 (polynomial 0x31).
//
// The package is pure: no I/O, no mutable state.
package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sigurn/crc8"

	"github.com/martinclaus/read-jeelink/internal/frame"
	"github.com/martinclaus/read-jeelink/internal/model"
)

var (
	// ErrChecksumMismatch reports a raw datagram whose CRC byte does not
	// match its payload. Expected on a noisy RF channel; never fatal.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrUnrecognizedFrame reports a frame matching no known format, such
	// as the sketch's boot banner or command echoes.
	ErrUnrecognizedFrame = errors.New("unrecognized frame")

	// ErrImplausibleValue reports a frame that decoded to a physically
	// impossible measurement.
	ErrImplausibleValue = errors.New("value out of plausible range")
)

// IT+ fixed-point encoding: temperature is transmitted as an offset integer,
// (raw - 1000) / 10 on decoded lines and BCD digits with offset 400 on the
// raw datagram. A humidity field of 106 marks a sensor without a humidity
// element.
const (
	itPlusPrefix   = "OK 9 "
	decodedOffset  = 1000
	rawOffset      = 400
	tempScale      = 10
	noHumidity     = 106
	rawStartNibble = 0x9
)

// Plausible physical ranges; anything outside is a decode error.
const (
	minTempC = -40.0
	maxTempC = 60.0
	maxHum   = 100.0
)

// lacrosseCRC is the IT+ check byte: CRC-8, polynomial 0x31, no reflection.
var lacrosseCRC = crc8.MakeTable(crc8.Params{
	Poly: 0x31, Init: 0x00, Check: 0xA2, Name: "CRC-8/LACROSSE",
})

// Parse classifies one frame and extracts a sensor reading from it.
// The reading's timestamp is the frame's arrival time.
func Parse(f frame.Frame) (model.SensorReading, error) {
	line := strings.TrimRight(f.Text(), "\r\n ")
	switch {
	case strings.HasPrefix(line, itPlusPrefix):
		return parseDecoded(strings.TrimPrefix(line, itPlusPrefix), f.At)
	case looksLikeRawHex(line):
		return parseRaw(line, f.At)
	default:
		return model.SensorReading{}, fmt.Errorf("%w: %q", ErrUnrecognizedFrame, line)
	}
}

// parseDecoded handles "OK 9" lines. Field layout, after the prefix:
//
//	ID  TYPE|NEWBAT  TEMP_HI  TEMP_LO  HUM|WEAKBAT
//
// with the new-battery flag in bit 7 of the second field and the
// weak-battery flag in bit 7 of the last.
func parseDecoded(body string, at time.Time) (model.SensorReading, error) {
	fields := strings.Fields(body)
	if len(fields) != 5 {
		return model.SensorReading{}, fmt.Errorf("%w: want 5 fields, got %d", ErrUnrecognizedFrame, len(fields))
	}

	var vals [5]int
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil || v < 0 || v > 255 {
			return model.SensorReading{}, fmt.Errorf("%w: field %d %q", ErrUnrecognizedFrame, i, f)
		}
		vals[i] = v
	}

	r := model.SensorReading{
		SensorID:    vals[0],
		Variant:     model.VariantITPlus,
		SensorType:  vals[1] & 0x7F,
		NewBattery:  vals[1]&0x80 != 0,
		Temperature: (float64(vals[2]<<8+vals[3]) - decodedOffset) / tempScale,
		WeakBattery: vals[4]&0x80 != 0,
		Timestamp:   at,
	}
	setHumidity(&r, vals[4]&0x7F)
	return r, checkRanges(r)
}

// parseRaw handles raw 5-byte IT+ datagrams printed as hex byte pairs.
// Layout per the LaCrosseITPlusReader sketch:
//
//	b0: 1001 iiii        start nibble, sensor id high bits
//	b1: ii n b tttt      id low bits, new-battery, reserved, temp hundreds (BCD)
//	b2: tttt tttt        temp tens and ones (BCD), offset 40.0 C
//	b3: w hhhhhhh        weak-battery, humidity
//	b4: CRC-8 over b0..b3
func parseRaw(line string, at time.Time) (model.SensorReading, error) {
	var data [5]byte
	for i, f := range strings.Fields(line) {
		v, err := strconv.ParseUint(f, 16, 8)
		if err != nil {
			return model.SensorReading{}, fmt.Errorf("%w: hex field %q", ErrUnrecognizedFrame, f)
		}
		data[i] = byte(v)
	}
	if data[0]>>4 != rawStartNibble {
		return model.SensorReading{}, fmt.Errorf("%w: start nibble %x", ErrUnrecognizedFrame, data[0]>>4)
	}
	if crc8.Checksum(data[:4], lacrosseCRC) != data[4] {
		return model.SensorReading{}, fmt.Errorf("%w: crc %02X", ErrChecksumMismatch, data[4])
	}

	hundreds := int(data[1] & 0x0F)
	tens := int(data[2] >> 4)
	ones := int(data[2] & 0x0F)
	if hundreds > 9 || tens > 9 || ones > 9 {
		return model.SensorReading{}, fmt.Errorf("%w: temperature digits not BCD", ErrUnrecognizedFrame)
	}

	r := model.SensorReading{
		SensorID:    int(data[0]&0x0F)<<2 | int(data[1]>>6),
		Variant:     model.VariantRaw,
		NewBattery:  data[1]&0x20 != 0,
		Temperature: (float64(hundreds*100+tens*10+ones) - rawOffset) / tempScale,
		WeakBattery: data[3]&0x80 != 0,
		Timestamp:   at,
	}
	setHumidity(&r, int(data[3]&0x7F))
	return r, checkRanges(r)
}

// looksLikeRawHex reports whether line is five space-separated hex byte pairs.
func looksLikeRawHex(line string) bool {
	fields := strings.Fields(line)
	if len(fields) != 5 {
		return false
	}
	for _, f := range fields {
		if len(f) != 2 {
			return false
		}
		if _, err := strconv.ParseUint(f, 16, 8); err != nil {
			return false
		}
	}
	return true
}

func setHumidity(r *model.SensorReading, h int) {
	if h == noHumidity {
		return
	}
	r.Humidity = float64(h)
	r.HasHumidity = true
}

func checkRanges(r model.SensorReading) error {
	if r.Temperature < minTempC || r.Temperature > maxTempC {
		return fmt.Errorf("%w: %.1f°C", ErrImplausibleValue, r.Temperature)
	}
	if r.HasHumidity && (r.Humidity < 0 || r.Humidity > maxHum) {
		return fmt.Errorf("%w: %.0f%%", ErrImplausibleValue, r.Humidity)
	}
	return nil
}
