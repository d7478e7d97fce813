// Package session owns the JeeLink connection lifecycle: open, configure,
// stream, fault and reconnect. It produces raw frames into a single delivery
// channel and keeps retrying forever until explicitly stopped.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/martinclaus/read-jeelink/internal/device"
	"github.com/martinclaus/read-jeelink/internal/diag"
	"github.com/martinclaus/read-jeelink/internal/frame"
	"github.com/martinclaus/read-jeelink/internal/model"
	"github.com/martinclaus/read-jeelink/internal/util"
)

// State enumerates the connection lifecycle. Only the session's own run loop
// moves between states; Stop is the single externally driven transition.
type State int

const (
	Disconnected State = iota
	Connecting
	Configuring
	Streaming
	Faulted
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Configuring:
		return "configuring"
	case Streaming:
		return "streaming"
	case Faulted:
		return "faulted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrConfigurationFailed reports that the post-connect handshake with the
// sketch did not complete. Treated like any I/O fault: backoff and retry.
var ErrConfigurationFailed = errors.New("configuration handshake failed")

// DialFunc opens a transport to the device. Injected so tests can run the
// full state machine against a fake port.
type DialFunc func() (device.Transport, error)

// Session manages one JeeLink connection and its reconnect behavior.
type Session struct {
	cfg     model.Config
	dial    DialFunc
	metrics *diag.Metrics

	frames chan frame.Frame
	stop   chan struct{}
	wg     sync.WaitGroup

	mu    sync.Mutex
	state State
	port  device.Transport

	stopOnce sync.Once
}

// New constructs a session. The metrics handle may be nil.
func New(cfg model.Config, dial DialFunc, m *diag.Metrics) *Session {
	return &Session{
		cfg:     cfg,
		dial:    dial,
		metrics: m,
		frames:  make(chan frame.Frame, 16),
		stop:    make(chan struct{}),
	}
}

// Start launches the connection loop in a background goroutine.
func (s *Session) Start() {
	s.wg.Add(1)
	go s.run()
}

// Frames returns the delivery channel. It is closed after Stop, once the
// run loop has released the port.
func (s *Session) Frames() <-chan frame.Frame {
	return s.frames
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stop requests shutdown, closes the port to unblock a pending read and
// waits for the run loop to exit. Idempotent.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
		s.closePort()
	})
	s.wg.Wait()
}

func (s *Session) run() {
	defer s.wg.Done()
	defer close(s.frames)
	defer s.setState(Disconnected)

	bo := newBackoff(s.cfg.InitialBackoff(), s.cfg.MaxBackoff())

	for {
		if s.stopped() {
			return
		}

		s.setState(Connecting)
		port, err := s.dial()
		if err != nil {
			util.Error("session: connect %s: %v", s.cfg.Device, err)
			if !s.fault(bo) {
				return
			}
			continue
		}
		s.setPort(port)

		s.setState(Configuring)
		if err := s.configure(port); err != nil {
			util.Error("session: %v", err)
			s.closePort()
			if !s.fault(bo) {
				return
			}
			continue
		}

		s.setState(Streaming)
		util.Info("session: streaming from %s", s.cfg.Device)
		err = s.streamFrom(port, bo)
		s.closePort()
		if s.stopped() {
			return
		}
		util.Error("session: stream ended: %v", err)
		if !s.fault(bo) {
			return
		}
	}
}

// configure writes the sketch init command lines (enable receiver options,
// select data rate) and waits the settle delay. The firmware prints a banner
// instead of a structured ack, so completion is time-based.
func (s *Session) configure(port device.Transport) error {
	for _, cmd := range s.cfg.InitCommands {
		if err := port.WriteLine(cmd); err != nil {
			return fmt.Errorf("%w: write %q: %v", ErrConfigurationFailed, cmd, err)
		}
	}
	select {
	case <-time.After(s.cfg.SettleDelay()):
		return nil
	case <-s.stop:
		return nil
	}
}

// streamFrom runs the read loop until an I/O error, a silence timeout or
// shutdown. Returns nil only on shutdown.
func (s *Session) streamFrom(port device.Transport, bo *backoff) error {
	if err := port.SetReadTimeout(s.pollInterval()); err != nil {
		return fmt.Errorf("set read timeout: %w", err)
	}

	dec := frame.NewDecoder(s.cfg.MaxFrameLen)
	buf := make([]byte, 512)
	silence := s.cfg.SilenceTimeout()
	lastFrame := time.Now()

	for {
		if s.stopped() {
			return nil
		}

		n, err := port.Read(buf)
		if err != nil {
			return fmt.Errorf("port read: %w", err)
		}
		// Silence is measured in frames, not bytes: a port chattering
		// noise that never completes a frame is just as dead.
		if time.Since(lastFrame) > silence {
			return fmt.Errorf("no frame for %s", silence)
		}
		if n == 0 {
			continue
		}

		frames, derr := dec.Push(buf[:n])
		if derr != nil {
			util.Error("session: %v", derr)
			s.metrics.Dropped(diag.ReasonOverlong)
		}
		for _, f := range frames {
			lastFrame = f.At
			bo.Reset()
			s.metrics.Frame()
			select {
			case s.frames <- f:
			case <-s.stop:
				return nil
			}
		}
	}
}

// fault enters the Faulted state and waits out the backoff delay.
// Returns false when shutdown was requested during the wait.
func (s *Session) fault(bo *backoff) bool {
	s.setState(Faulted)
	s.metrics.Reconnect()
	delay := bo.Next()
	util.Info("session: reconnecting in %s", delay.Round(time.Millisecond))
	select {
	case <-time.After(delay):
		return true
	case <-s.stop:
		return false
	}
}

// pollInterval is the single-read timeout used to check silence and
// shutdown; a fraction of the silence timeout, bounded to stay responsive.
func (s *Session) pollInterval() time.Duration {
	p := s.cfg.SilenceTimeout() / 4
	if p > time.Second {
		p = time.Second
	}
	if p < 10*time.Millisecond {
		p = 10 * time.Millisecond
	}
	return p
}

func (s *Session) stopped() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	s.metrics.SessionState(int(st))
}

func (s *Session) setPort(p device.Transport) {
	s.mu.Lock()
	s.port = p
	s.mu.Unlock()
}

func (s *Session) closePort() {
	s.mu.Lock()
	p := s.port
	s.port = nil
	s.mu.Unlock()
	if p != nil {
		if err := p.Close(); err != nil {
			util.Error("session: close port: %v", err)
		}
	}
}
