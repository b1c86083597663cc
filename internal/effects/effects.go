// Package effects holds the optional master processing run on each mixed
// block inside the audio callback. The voice pool writes the same signal to
// both channels; effects may widen it. Apply never allocates.
package effects

import "errors"

// ErrInvalidParam is wrapped by every constructor validation failure.
var ErrInvalidParam = errors.New("invalid effect parameter")

// Effect processes a block of interleaved stereo frames in place.
type Effect interface {
	Apply(frames []float32)
	Reset()
}

// Chain runs its effects over a block in order. Build one per session; the
// effects carry per-stream state.
type Chain []Effect

func (c Chain) Apply(frames []float32) {
	for _, e := range c {
		e.Apply(frames)
	}
}

func (c Chain) Reset() {
	for _, e := range c {
		e.Reset()
	}
}

func clamp(v, lo, hi float32) float32 {
	return min(max(v, lo), hi)
}
