// Package frame turns the raw JeeLink byte stream into terminator-delimited
// frames. The terminator is matched on byte values only; frames may carry
// arbitrary binary payloads.
package frame

import "time"

// Frame is one terminator-delimited record received from the device, with
// the terminator stripped. Immutable once emitted by the decoder.
type Frame struct {
	Raw []byte
	At  time.Time
}

// Text returns the payload interpreted as a string.
func (f Frame) Text() string {
	return string(f.Raw)
}
