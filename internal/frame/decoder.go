package frame

import (
	"bytes"
	"errors"
	"fmt"
	"time"
)

// ErrFrameTooLong reports a frame that exceeded the decoder's maximum
// length. The partial data is discarded and decoding resynchronizes at the
// next terminator; the error never invalidates later frames.
var ErrFrameTooLong = errors.New("frame exceeds maximum length")

// terminator is the record separator emitted by the JeeLink sketch.
var terminator = []byte{'\r', '\n'}

// Decoder splits an incoming byte stream into Frames. Bytes may arrive in
// arbitrary chunk sizes; the decoder buffers partial data between calls, so
// the emitted frames do not depend on where the chunks were cut.
type Decoder struct {
	maxLen   int
	buf      []byte
	skipping bool // overlong frame in progress, drop bytes until the next terminator
	now      func() time.Time
}

// NewDecoder creates a Decoder that rejects payloads longer than maxLen bytes.
func NewDecoder(maxLen int) *Decoder {
	return &Decoder{maxLen: maxLen, now: time.Now}
}

// Push consumes one chunk of bytes and returns the frames it completed.
// When a frame overruns the maximum length, the buffered partial data is
// dropped and the overrun is reported through the returned error alongside
// any frames completed earlier in the chunk; decoding always continues.
func (d *Decoder) Push(chunk []byte) ([]Frame, error) {
	var frames []Frame
	overruns := 0

	for _, b := range chunk {
		d.buf = append(d.buf, b)

		if n := len(d.buf); n >= len(terminator) && bytes.Equal(d.buf[n-len(terminator):], terminator) {
			if d.skipping {
				d.skipping = false
			} else {
				payload := d.buf[:n-len(terminator)]
				raw := make([]byte, len(payload))
				copy(raw, payload)
				frames = append(frames, Frame{Raw: raw, At: d.now()})
			}
			d.buf = d.buf[:0]
			continue
		}

		// A buffer longer than maxLen plus a partial terminator can no
		// longer complete into a legal frame.
		if len(d.buf) > d.maxLen+len(terminator)-1 {
			if !d.skipping {
				d.skipping = true
				overruns++
			}
			// Keep just enough tail to match a terminator split
			// across chunk boundaries.
			keep := len(terminator) - 1
			d.buf = append(d.buf[:0], d.buf[len(d.buf)-keep:]...)
		}
	}

	if overruns > 0 {
		return frames, fmt.Errorf("%w (max %d bytes, %d dropped)", ErrFrameTooLong, d.maxLen, overruns)
	}
	return frames, nil
}
