package effects

import (
	"fmt"
	"math"
	"time"
)

// MaxEchoDelay bounds the delay line so a session never allocates more than
// a few seconds of audio.
const MaxEchoDelay = 2 * time.Second

// Echo widens the mono voice mix. The mid signal feeds one delay line that
// returns to the left channel after delay and to the right channel after
// delay+spread. Repeats recirculate from the left tap.
type Echo struct {
	line     []float32
	pos      int
	tapL     int
	tapR     int
	feedback float32
	wet      float32
}

func NewEcho(sampleRate int, delay, spread time.Duration, feedback, wet float32) (*Echo, error) {
	switch {
	case sampleRate <= 0:
		return nil, fmt.Errorf("%w: echo sample rate %d", ErrInvalidParam, sampleRate)
	case delay <= 0 || delay > MaxEchoDelay:
		return nil, fmt.Errorf("%w: echo delay %s outside (0, %s]", ErrInvalidParam, delay, MaxEchoDelay)
	case spread < 0 || spread > delay:
		return nil, fmt.Errorf("%w: echo spread %s outside [0, %s]", ErrInvalidParam, spread, delay)
	case !(feedback >= 0 && feedback < 1):
		return nil, fmt.Errorf("%w: echo feedback %v outside [0, 1)", ErrInvalidParam, feedback)
	case !(wet >= 0 && wet <= 1):
		return nil, fmt.Errorf("%w: echo wet %v outside [0, 1]", ErrInvalidParam, wet)
	}
	sr := float64(sampleRate)
	tapL := max(1, int(math.Round(delay.Seconds()*sr)))
	tapR := tapL + int(math.Round(spread.Seconds()*sr))
	return &Echo{
		line:     make([]float32, tapR),
		tapL:     tapL,
		tapR:     tapR,
		feedback: feedback,
		wet:      wet,
	}, nil
}

func (e *Echo) at(back int) float32 {
	i := e.pos - back
	if i < 0 {
		i += len(e.line)
	}
	return e.line[i]
}

func (e *Echo) Apply(frames []float32) {
	for i := 0; i+1 < len(frames); i += 2 {
		l, r := frames[i], frames[i+1]
		// Taps are read before the write: the right tap may be the slot
		// about to be overwritten.
		el, er := e.at(e.tapL), e.at(e.tapR)
		e.line[e.pos] = (l+r)*0.5 + el*e.feedback
		if e.pos++; e.pos == len(e.line) {
			e.pos = 0
		}
		frames[i] = l + el*e.wet
		frames[i+1] = r + er*e.wet
	}
}

func (e *Echo) Reset() {
	clear(e.line)
	e.pos = 0
}
