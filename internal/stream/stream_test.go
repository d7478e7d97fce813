package stream

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/martinclaus/read-jeelink/internal/device"
	"github.com/martinclaus/read-jeelink/internal/model"
)

// scriptPort replays one fixed byte script, then stays silent.
type scriptPort struct {
	mu      sync.Mutex
	script  [][]byte
	timeout time.Duration
	closed  chan struct{}
}

func newScriptPort(chunks ...[]byte) *scriptPort {
	return &scriptPort{script: chunks, timeout: 20 * time.Millisecond, closed: make(chan struct{})}
}

func (p *scriptPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	var c []byte
	if len(p.script) > 0 {
		c = p.script[0]
		p.script = p.script[1:]
	}
	p.mu.Unlock()
	if c != nil {
		return copy(b, c), nil
	}
	select {
	case <-p.closed:
		return 0, errors.New("port closed")
	case <-time.After(p.timeout):
		return 0, nil
	}
}

func (p *scriptPort) WriteLine(string) error { return nil }

func (p *scriptPort) SetReadTimeout(d time.Duration) error {
	p.timeout = d
	return nil
}

func (p *scriptPort) Close() error {
	select {
	case <-p.closed:
	default:
		close(p.closed)
	}
	return nil
}

func (p *scriptPort) isClosed() bool {
	select {
	case <-p.closed:
		return true
	default:
		return false
	}
}

func testConfig() model.Config {
	return model.Config{
		Device:           "/dev/fake",
		Baud:             model.DefaultBaud,
		SilenceTimeoutS:  2,
		InitialBackoffMs: 10,
		MaxBackoffS:      1,
		SettleDelayMs:    1,
		InitCommands:     []string{"v"},
		MaxFrameLen:      128,
	}
}

// Corrupt and unrecognized frames must be swallowed: the consumer sees only
// the valid readings, in order.
func TestStreamYieldsOnlyValidReadings(t *testing.T) {
	port := newScriptPort(
		[]byte("[LaCrosseITPlusReader.10.1s (RFM69CW f:868300 t:30~3)]\r\n"),
		[]byte("OK 9 32 1 4 150 93\r\n"),
		[]byte("95 C6 16 2D 0D\r\n"), // corrupted CRC
		[]byte("OK 9 50 1 4 193 106\r\n"),
	)
	s := New(testConfig(), func() (device.Transport, error) { return port, nil }, nil)
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	r1, err := s.Next(ctx)
	if err != nil {
		t.Fatalf("first Next: %v", err)
	}
	if r1.SensorID != 32 || r1.Temperature != 17.4 || !r1.HasHumidity || r1.Humidity != 93 {
		t.Fatalf("first reading = %+v", r1)
	}
	if r1.WeakBattery {
		t.Error("WeakBattery = true, want false")
	}

	r2, err := s.Next(ctx)
	if err != nil {
		t.Fatalf("second Next: %v", err)
	}
	if r2.SensorID != 50 || r2.HasHumidity {
		t.Fatalf("second reading = %+v", r2)
	}
}

func TestStreamSurvivesSessionFault(t *testing.T) {
	var mu sync.Mutex
	var ports []*scriptPort
	dial := func() (device.Transport, error) {
		mu.Lock()
		defer mu.Unlock()
		var p *scriptPort
		if len(ports) == 0 {
			p = newScriptPort([]byte("OK 9 32 1 4 150 93\r\n"))
		} else {
			p = newScriptPort([]byte("OK 9 33 1 4 160 93\r\n"))
		}
		ports = append(ports, p)
		return p, nil
	}

	cfg := testConfig()
	s := New(cfg, dial, nil)
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	r1, err := s.Next(ctx)
	if err != nil {
		t.Fatalf("first Next: %v", err)
	}
	// force the first port into an error so the session reconnects
	mu.Lock()
	ports[0].Close()
	mu.Unlock()

	r2, err := s.Next(ctx)
	if err != nil {
		t.Fatalf("second Next: %v", err)
	}
	if r1.SensorID != 32 || r2.SensorID != 33 {
		t.Fatalf("readings = %d then %d, want 32 then 33", r1.SensorID, r2.SensorID)
	}
}

func TestStreamCloseReleasesPort(t *testing.T) {
	port := newScriptPort([]byte("OK 9 32 1 4 150 93\r\n"))
	cfg := testConfig()
	s := New(cfg, func() (device.Transport, error) { return port, nil }, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := s.Next(ctx); err != nil {
		t.Fatalf("Next: %v", err)
	}

	done := make(chan struct{})
	go func() {
		_ = s.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(cfg.SilenceTimeout()):
		t.Fatal("Close did not return within one silence timeout")
	}
	if !port.isClosed() {
		t.Error("port still open after Close")
	}

	if _, err := s.Next(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("Next after Close: %v, want ErrClosed", err)
	}
	if _, ok := <-s.Readings(); ok {
		t.Error("Readings channel not closed")
	}
}

func TestNextHonorsContext(t *testing.T) {
	port := newScriptPort() // silent forever
	s := New(testConfig(), func() (device.Transport, error) { return port, nil }, nil)
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := s.Next(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Next = %v, want DeadlineExceeded", err)
	}
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	if _, err := Open(model.Config{}, nil); err == nil {
		t.Fatal("Open accepted a config without a device path")
	}
}
