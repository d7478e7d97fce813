package frame

import (
	"bytes"
	"errors"
	"testing"
)

func collect(t *testing.T, d *Decoder, chunks ...[]byte) ([]Frame, error) {
	t.Helper()
	var frames []Frame
	var errs error
	for _, c := range chunks {
		fs, err := d.Push(c)
		frames = append(frames, fs...)
		if err != nil {
			errs = err
		}
	}
	return frames, errs
}

func TestPushSplitsOnTerminator(t *testing.T) {
	d := NewDecoder(64)
	frames, err := collect(t, d, []byte("OK 9 50 1 4 193 65\r\nOK 9 58 1 4 189 67\r\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"OK 9 50 1 4 193 65", "OK 9 58 1 4 189 67"}
	if len(frames) != len(want) {
		t.Fatalf("got %d frames, want %d", len(frames), len(want))
	}
	for i, f := range frames {
		if f.Text() != want[i] {
			t.Errorf("frame %d = %q, want %q", i, f.Text(), want[i])
		}
		if f.At.IsZero() {
			t.Errorf("frame %d has no arrival timestamp", i)
		}
	}
}

// Frames must not depend on where the input was cut into chunks, including
// a terminator split across two chunks and a banner line arriving in pieces.
func TestPushChunkBoundaryIndependence(t *testing.T) {
	data := []byte("OK 9 50 1 4 193 65\r\nOK 9 58 1 4 189 67\r\n" +
		"[LaCrosseITPlusReader.10.1s (RFM69CW f:868300 t:30~3)]\r\n" +
		"OK 9 13 1 4 181 65\r\nOK 9 18 1 4 193 61\r\n")

	whole, err := NewDecoder(256).Push(data)
	if err != nil {
		t.Fatalf("unsplit decode: %v", err)
	}

	for _, size := range []int{1, 2, 3, 7, 19, len(data)} {
		d := NewDecoder(256)
		var split []Frame
		for i := 0; i < len(data); i += size {
			end := min(i+size, len(data))
			fs, err := d.Push(data[i:end])
			if err != nil {
				t.Fatalf("chunk size %d: %v", size, err)
			}
			split = append(split, fs...)
		}
		if len(split) != len(whole) {
			t.Fatalf("chunk size %d: got %d frames, want %d", size, len(split), len(whole))
		}
		for i := range whole {
			if !bytes.Equal(split[i].Raw, whole[i].Raw) {
				t.Errorf("chunk size %d frame %d = %q, want %q", size, i, split[i].Raw, whole[i].Raw)
			}
		}
	}
}

func TestPushToleratesBinaryPayload(t *testing.T) {
	d := NewDecoder(64)
	payload := []byte{0x00, 0xFF, 0x1B, 'x', 0x80}
	frames, err := collect(t, d, payload, []byte("\r\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(frames) != 1 || !bytes.Equal(frames[0].Raw, payload) {
		t.Fatalf("got %v, want one frame %v", frames, payload)
	}
}

func TestPushOverlongFrameRecovers(t *testing.T) {
	d := NewDecoder(8)
	frames, err := d.Push([]byte("this line is far too long to keep\r\nOK done\r\n"))
	if !errors.Is(err, ErrFrameTooLong) {
		t.Fatalf("err = %v, want ErrFrameTooLong", err)
	}
	if len(frames) != 1 || frames[0].Text() != "OK done" {
		t.Fatalf("frames = %v, want only the well-formed follower", frames)
	}

	// Decoding must continue cleanly afterwards.
	frames, err = d.Push([]byte("again\r\n"))
	if err != nil {
		t.Fatalf("post-overrun push: %v", err)
	}
	if len(frames) != 1 || frames[0].Text() != "again" {
		t.Fatalf("post-overrun frames = %v", frames)
	}
}

func TestPushOverlongSpansChunks(t *testing.T) {
	d := NewDecoder(4)
	var all []Frame
	sawOverrun := false
	for _, c := range [][]byte{[]byte("abcdefgh"), []byte("ijkl"), []byte("mn\r\nok\r\n")} {
		fs, err := d.Push(c)
		all = append(all, fs...)
		if errors.Is(err, ErrFrameTooLong) {
			sawOverrun = true
		}
	}
	if !sawOverrun {
		t.Fatal("expected a FrameTooLong error")
	}
	if len(all) != 1 || all[0].Text() != "ok" {
		t.Fatalf("frames = %v, want only %q", all, "ok")
	}
}

func TestPushExactMaxLengthAccepted(t *testing.T) {
	d := NewDecoder(4)
	frames, err := d.Push([]byte("abcd\r\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(frames) != 1 || frames[0].Text() != "abcd" {
		t.Fatalf("frames = %v, want %q", frames, "abcd")
	}
}
