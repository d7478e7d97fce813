// Package device defines the transport abstraction for the JeeLink serial
// link and its go.bug.st/serial implementation.
package device

import "time"

// Transport is a byte-stream duplex connection to the JeeLink.
// Implementations must make Read honor SetReadTimeout: a Read that sees no
// data for the timeout returns n == 0 with a nil error so the caller can
// poll for silence and shutdown without blocking forever.
type Transport interface {
	// Read fills p with whatever bytes are available, blocking up to the
	// configured read timeout.
	Read(p []byte) (int, error)

	// WriteLine writes s followed by '\n' to the device.
	WriteLine(s string) error

	// SetReadTimeout bounds how long a single Read may block.
	SetReadTimeout(d time.Duration) error

	// Close closes the device and releases the underlying port.
	Close() error
}
