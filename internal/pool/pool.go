package pool

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/cbegin/midifm-go/internal/fm"
)

var ErrUnknownPolicy = errors.New("unknown overflow policy")

// OverflowPolicy decides what TryAdd does when the pool is full.
type OverflowPolicy int

const (
	// DropNewest releases the oldest voice so a slot frees up soon, and
	// drops the incoming note.
	DropNewest OverflowPolicy = iota
	// StealOldest removes the oldest voice immediately and adds the new one.
	StealOldest
)

func (p OverflowPolicy) String() string {
	switch p {
	case DropNewest:
		return "drop"
	case StealOldest:
		return "steal"
	default:
		return fmt.Sprintf("OverflowPolicy(%d)", int(p))
	}
}

func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "drop":
		return DropNewest, nil
	case "steal":
		return StealOldest, nil
	default:
		return 0, fmt.Errorf("%w: %q (expected drop|steal)", ErrUnknownPolicy, s)
	}
}

// Pool is the set of sounding voices shared by the event goroutine and the
// audio callback. Every method takes the lock; the voice slice never escapes.
type Pool struct {
	mu     sync.Mutex
	voices []*fm.Voice // arrival order, oldest first
	max    int
	policy OverflowPolicy
	mono   []float64
	scr    []float64
}

// New creates a pool holding at most maxVoices voices.
func New(maxVoices int, policy OverflowPolicy) *Pool {
	if maxVoices < 1 {
		maxVoices = 1
	}
	return &Pool{
		voices: make([]*fm.Voice, 0, maxVoices),
		max:    maxVoices,
		policy: policy,
	}
}

// TryAdd inserts v if there is room and reports whether it was added. When
// the pool is full the overflow policy applies.
func (p *Pool) TryAdd(v *fm.Voice) bool {
	if v == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, existing := range p.voices {
		if existing == v {
			return false
		}
	}
	if len(p.voices) < p.max {
		p.voices = append(p.voices, v)
		return true
	}
	switch p.policy {
	case StealOldest:
		copy(p.voices, p.voices[1:])
		p.voices[len(p.voices)-1] = v
		return true
	default:
		// NoteOff is a no-op when the oldest voice is already fading.
		p.voices[0].NoteOff()
		return false
	}
}

// ReleaseMatching releases every voice whose frequency is within tolerance
// of freq and returns how many matched.
func (p *Pool) ReleaseMatching(freq, tolerance float64) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, v := range p.voices {
		if math.Abs(v.Freq()-freq) < tolerance {
			v.NoteOff()
			n++
		}
	}
	return n
}

// ReleaseAll moves every voice into release.
func (p *Pool) ReleaseAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, v := range p.voices {
		v.NoteOff()
	}
}

// RenderBlock mixes all voices into dst, which holds len(dst)/2 interleaved
// stereo frames, then drops voices whose release has finished.
func (p *Pool) RenderBlock(dst []float32) {
	n := len(dst) / 2
	p.mu.Lock()
	defer p.mu.Unlock()
	if cap(p.mono) < n {
		p.mono = make([]float64, n)
		p.scr = make([]float64, n)
	}
	mono := p.mono[:n]
	scr := p.scr[:n]
	clear(mono)
	for _, v := range p.voices {
		v.Generate(scr)
		for i, s := range scr {
			mono[i] += s
		}
	}
	live := p.voices[:0]
	for _, v := range p.voices {
		if !v.Terminal() {
			live = append(live, v)
		}
	}
	clear(p.voices[len(live):])
	p.voices = live
	for i, s := range mono {
		dst[2*i] = float32(s)
		dst[2*i+1] = float32(s)
	}
	if len(dst)%2 == 1 {
		dst[len(dst)-1] = 0
	}
}

// Len returns the number of live voices.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.voices)
}

func (p *Pool) Cap() int { return p.max }

func (p *Pool) Policy() OverflowPolicy { return p.policy }
