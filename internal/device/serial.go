// Package device implements Transport using go.bug.st/serial, which provides
// real serial communication support for the JeeLink USB stick.
package device

import (
	"errors"
	"fmt"
	"sync"
	"time"

	serial "go.bug.st/serial"
)

// SerialPort implements Transport using go.bug.st/serial.
// Close may be called from another goroutine to unblock a pending Read, so
// access to the underlying port is guarded.
type SerialPort struct {
	mu   sync.Mutex
	port serial.Port
}

// Open opens a serial device with the given path and baudrate.
func Open(dev string, baud int) (*SerialPort, error) {
	p, err := serial.Open(dev, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial %s: %w", dev, err)
	}
	return &SerialPort{port: p}, nil
}

// get returns the current port handle, or nil after Close.
func (s *SerialPort) get() serial.Port {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// Read reads available bytes from the port. With a read timeout set, a quiet
// port returns n == 0 and a nil error after the timeout elapses.
func (s *SerialPort) Read(p []byte) (int, error) {
	port := s.get()
	if port == nil {
		return 0, errors.New("serial port not open")
	}
	return port.Read(p)
}

// WriteLine writes a single line followed by '\n' to the serial port.
func (s *SerialPort) WriteLine(line string) error {
	port := s.get()
	if port == nil {
		return errors.New("serial port not open")
	}
	_, err := port.Write(append([]byte(line), '\n'))
	return err
}

// SetReadTimeout bounds how long a single Read may block.
func (s *SerialPort) SetReadTimeout(d time.Duration) error {
	port := s.get()
	if port == nil {
		return errors.New("serial port not open")
	}
	return port.SetReadTimeout(d)
}

// Close closes the underlying serial connection, unblocking any pending
// Read. Safe to call more than once.
func (s *SerialPort) Close() error {
	s.mu.Lock()
	port := s.port
	s.port = nil
	s.mu.Unlock()
	if port == nil {
		return nil
	}
	return port.Close()
}
