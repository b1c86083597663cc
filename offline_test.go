package midifm

import (
	"math"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/go-audio/wav"
)

func peak(samples []float32) float64 {
	var m float64
	for _, s := range samples {
		m = max(m, math.Abs(float64(s)))
	}
	return m
}

func TestRenderOfflineTiming(t *testing.T) {
	const sr = 8000
	p := nullPlayer(t, WithDrain(time.Second))
	events := []Event{
		{Kind: NoteOn, Note: 69, Velocity: 100},
		{Kind: NoteOff, Note: 69, Wait: 500 * time.Millisecond},
	}
	out, err := p.RenderOffline(events)
	if err != nil {
		t.Fatalf("RenderOffline: %v", err)
	}
	if len(out)%2 != 0 {
		t.Fatalf("odd sample count %d", len(out))
	}
	frames := len(out) / 2
	// The note sounds for half a second, then the 0.2 s release plays out.
	minFrames := sr / 2
	maxFrames := sr/2 + sr/5 + 2*128
	if frames < minFrames || frames > maxFrames {
		t.Fatalf("frames = %d, want between %d and %d", frames, minFrames, maxFrames)
	}
	if peak(out[:sr/2]) < 0.1 {
		t.Fatalf("held note is too quiet: peak %f", peak(out[:sr/2]))
	}
	if tail := peak(out[len(out)-20:]); tail > 0.01 {
		t.Fatalf("tail did not decay: peak %f", tail)
	}
}

func TestRenderOfflineDeterministic(t *testing.T) {
	p := nullPlayer(t)
	events := []Event{
		{Kind: NoteOn, Note: 60, Velocity: 90},
		{Kind: NoteOn, Note: 64, Velocity: 70, Wait: 30 * time.Millisecond},
		{Kind: NoteOff, Note: 60, Wait: 100 * time.Millisecond},
		{Kind: NoteOff, Note: 64, Wait: 10 * time.Millisecond},
	}
	a, err := p.RenderOffline(events)
	if err != nil {
		t.Fatalf("RenderOffline: %v", err)
	}
	b, err := p.RenderOffline(events)
	if err != nil {
		t.Fatalf("RenderOffline: %v", err)
	}
	if !slices.Equal(a, b) {
		t.Fatalf("renders differ")
	}
}

func TestRenderOfflineCutsTailAtDrain(t *testing.T) {
	const sr = 8000
	p := nullPlayer(t, WithDrain(50*time.Millisecond))
	out, err := p.RenderOffline([]Event{{Kind: NoteOn, Note: 69, Velocity: 100}})
	if err != nil {
		t.Fatalf("RenderOffline: %v", err)
	}
	if got, want := len(out)/2, sr/20; got != want {
		t.Fatalf("frames = %d, want %d", got, want)
	}
}

func TestRenderOfflineEmpty(t *testing.T) {
	p := nullPlayer(t)
	out, err := p.RenderOffline(nil)
	if err != nil {
		t.Fatalf("RenderOffline: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("len = %d, want 0", len(out))
	}
}

func TestWriteWAV(t *testing.T) {
	samples := []float32{0, 0, 0.5, -0.5, 2, -2, 1, -1}
	path := filepath.Join(t.TempDir(), "out.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := WriteWAV(f, samples, 22050); err != nil {
		t.Fatalf("WriteWAV: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	r, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer r.Close()
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		t.Fatalf("invalid wav file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dec.SampleRate != 22050 || dec.NumChans != 2 || dec.BitDepth != 16 {
		t.Fatalf("header = %d Hz %d ch %d bit", dec.SampleRate, dec.NumChans, dec.BitDepth)
	}
	want := []int{0, 0, 16384, -16384, 32767, -32767, 32767, -32767}
	if !slices.Equal(buf.Data, want) {
		t.Fatalf("data = %v, want %v", buf.Data, want)
	}
}
