// Package stream exposes decoded sensor readings as a single cancellable
// pull-based sequence. Parse-level errors are absorbed here; the consumer
// only ever sees valid readings, with silent gaps while the underlying
// session reconnects.
package stream

import (
	"context"
	"errors"
	"sync"

	"github.com/martinclaus/read-jeelink/internal/device"
	"github.com/martinclaus/read-jeelink/internal/diag"
	"github.com/martinclaus/read-jeelink/internal/model"
	"github.com/martinclaus/read-jeelink/internal/parser"
	"github.com/martinclaus/read-jeelink/internal/session"
	"github.com/martinclaus/read-jeelink/internal/util"
)

// ErrClosed is returned by Next after the stream has been closed.
var ErrClosed = errors.New("reading stream closed")

// ReadingStream wraps a device session and yields parsed sensor readings.
// The stream is infinite: session faults are retried internally and never
// surface; it ends only through Close.
type ReadingStream struct {
	sess    *session.Session
	metrics *diag.Metrics
	out     chan model.SensorReading

	closeOnce sync.Once
	closed    chan struct{}
}

// Open starts a stream reading from the configured serial device.
func Open(cfg model.Config, m *diag.Metrics) (*ReadingStream, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dial := func() (device.Transport, error) {
		return device.Open(cfg.Device, cfg.Baud)
	}
	return New(cfg, dial, m), nil
}

// New wires a stream over an explicit dial function. Used by tests and by
// callers with a non-serial transport.
func New(cfg model.Config, dial session.DialFunc, m *diag.Metrics) *ReadingStream {
	s := &ReadingStream{
		sess:    session.New(cfg, dial, m),
		metrics: m,
		out:     make(chan model.SensorReading, 64),
		closed:  make(chan struct{}),
	}
	s.sess.Start()
	go s.pump()
	return s
}

// pump parses frames off the session channel and forwards good readings.
// Checksum mismatches and unrecognized frames are counted and dropped; they
// are expected RF-noise artifacts.
func (s *ReadingStream) pump() {
	defer close(s.out)
	for f := range s.sess.Frames() {
		r, err := parser.Parse(f)
		if err != nil {
			s.metrics.Dropped(dropReason(err))
			util.Info("stream: dropped frame: %v", err)
			continue
		}
		s.metrics.Reading()
		select {
		case s.out <- r:
		case <-s.closed:
			// Keep draining so the session is never blocked on delivery
			// during teardown.
		}
	}
}

func dropReason(err error) string {
	switch {
	case errors.Is(err, parser.ErrChecksumMismatch):
		return diag.ReasonChecksum
	case errors.Is(err, parser.ErrImplausibleValue):
		return diag.ReasonImplausible
	default:
		return diag.ReasonUnrecognized
	}
}

// Next returns the next reading. It blocks until a reading arrives, the
// context is done, or the stream is closed.
func (s *ReadingStream) Next(ctx context.Context) (model.SensorReading, error) {
	select {
	case r, ok := <-s.out:
		if !ok {
			return model.SensorReading{}, ErrClosed
		}
		return r, nil
	case <-ctx.Done():
		return model.SensorReading{}, ctx.Err()
	}
}

// Readings returns the delivery channel for range-style consumption.
// The channel is closed when the stream is closed.
func (s *ReadingStream) Readings() <-chan model.SensorReading {
	return s.out
}

// State reports the underlying session state.
func (s *ReadingStream) State() session.State {
	return s.sess.State()
}

// Close tears down the session, releasing the port and stopping any pending
// backoff timer. Safe to call more than once.
func (s *ReadingStream) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.sess.Stop()
	})
	return nil
}
