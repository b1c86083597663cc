package audio

import (
	"sync/atomic"

	"github.com/cbegin/midifm-go/internal/effects"
)

// BlockRenderer mixes one block of interleaved stereo audio.
type BlockRenderer interface {
	RenderBlock(dst []float32)
}

// Renderer is the audio callback: it asks the voice pool for each block,
// runs the optional master chain and sample tap, and counts frames.
type Renderer struct {
	blocks BlockRenderer
	chain  effects.Chain
	tap    func([]float32)
	frames atomic.Int64
}

type RendererOption func(*Renderer)

// WithChain runs every rendered block through chain.
func WithChain(chain effects.Chain) RendererOption {
	return func(r *Renderer) { r.chain = chain }
}

// WithTap installs a callback invoked with each rendered block. It runs on
// the audio thread; keep it brief and non-blocking.
func WithTap(tap func([]float32)) RendererOption {
	return func(r *Renderer) { r.tap = tap }
}

func NewRenderer(blocks BlockRenderer, opts ...RendererOption) *Renderer {
	r := &Renderer{blocks: blocks}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Renderer) Process(dst []float32) {
	r.blocks.RenderBlock(dst)
	r.chain.Apply(dst)
	if r.tap != nil {
		r.tap(dst)
	}
	r.frames.Add(int64(len(dst) / 2))
}

// Frames returns how many stereo frames have been rendered so far.
func (r *Renderer) Frames() int64 {
	return r.frames.Load()
}
