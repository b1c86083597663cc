package main

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cbegin/midifm-go"
	"github.com/cbegin/midifm-go/internal/effects"
	"github.com/cbegin/midifm-go/internal/midisrc"
)

func testOptions() options {
	return options{
		profile:    "bright",
		backend:    "null",
		sampleRate: 8000,
		block:      128,
		overflow:   "drop",
		drain:      50 * time.Millisecond,
		speed:      1,
	}
}

// fakeOpener serves a short in-memory source and records whether it was
// released.
type fakeOpener struct {
	opened, closed bool
}

func (f *fakeOpener) open(string, string, float64, *slog.Logger) (midifm.Source, func(), error) {
	f.opened = true
	src := midisrc.Slice(
		midifm.Event{Kind: midifm.NoteOn, Note: 60, Velocity: 90},
		midifm.Event{Kind: midifm.NoteOff, Note: 60, Wait: 20 * time.Millisecond},
	)
	return src, func() { f.closed = true }, nil
}

var quiet = slog.New(slog.DiscardHandler)

func TestRunPlaysAndClosesSource(t *testing.T) {
	var f fakeOpener
	if err := run(testOptions(), f.open, quiet); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !f.opened || !f.closed {
		t.Fatalf("source opened=%v closed=%v, want both", f.opened, f.closed)
	}
}

func TestRunClosesSourceWhenPlayFails(t *testing.T) {
	o := testOptions()
	o.delay = effects.MaxEchoDelay + time.Second
	var f fakeOpener
	err := run(o, f.open, quiet)
	if !errors.Is(err, effects.ErrInvalidParam) {
		t.Fatalf("run = %v, want ErrInvalidParam", err)
	}
	if !f.closed {
		t.Fatalf("source left open after a failed start")
	}
}

func TestRunRejectsBadOptions(t *testing.T) {
	cases := []struct {
		name   string
		modify func(*options)
	}{
		{"profile", func(o *options) { o.profile = "organ" }},
		{"overflow", func(o *options) { o.overflow = "round-robin" }},
		{"backend", func(o *options) { o.backend = "alsa" }},
		{"speed", func(o *options) { o.speed = 0 }},
		{"wav with port", func(o *options) { o.wavPath, o.portName = "x.wav", "keys" }},
		{"sample rate", func(o *options) { o.sampleRate = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o := testOptions()
			tc.modify(&o)
			var f fakeOpener
			if err := run(o, f.open, quiet); err == nil {
				t.Fatalf("expected error")
			}
			if f.opened {
				t.Fatalf("source opened despite invalid options")
			}
		})
	}
}

func TestRunWritesWAV(t *testing.T) {
	o := testOptions()
	o.wavPath = filepath.Join(t.TempDir(), "demo.wav")
	o.limit = true
	o.delay = 100 * time.Millisecond
	var f fakeOpener
	if err := run(o, f.open, quiet); err != nil {
		t.Fatalf("run: %v", err)
	}
	if f.opened {
		t.Fatalf("offline render should not open a live source")
	}
	info, err := os.Stat(o.wavPath)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() <= 44 {
		t.Fatalf("wav has no audio: %d bytes", info.Size())
	}
}
