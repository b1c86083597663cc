package effects

import "math"

// Limiter keeps dense chords under a ceiling. A linked-channel peak follower
// with instant attack and exponential release drives the gain, so the stereo
// image (identical channels here) is never skewed.
type Limiter struct {
	threshold float32
	ceiling   float32
	release   float32 // per-sample coefficient
	env       float32
}

// NewLimiter creates a limiter that starts reducing gain above thresholdDB
// and never lets the output exceed ceilingDB. releaseMs sets how fast the
// gain recovers.
func NewLimiter(sampleRate int, thresholdDB, ceilingDB, releaseMs float32) *Limiter {
	if ceilingDB < thresholdDB {
		ceilingDB = thresholdDB
	}
	if releaseMs <= 0 {
		releaseMs = 1
	}
	return &Limiter{
		threshold: dbToGain(thresholdDB),
		ceiling:   dbToGain(ceilingDB),
		release:   float32(1.0 - math.Exp(-1.0/(float64(releaseMs)*float64(sampleRate)/1000.0))),
	}
}

func (l *Limiter) Apply(frames []float32) {
	for i := 0; i+1 < len(frames); i += 2 {
		peak := max(abs32(frames[i]), abs32(frames[i+1]))
		if peak > l.env {
			l.env = peak
		} else {
			l.env += l.release * (peak - l.env)
		}
		gain := float32(1)
		if l.env > l.threshold {
			gain = l.threshold / l.env
		}
		frames[i] = clamp(frames[i]*gain, -l.ceiling, l.ceiling)
		frames[i+1] = clamp(frames[i+1]*gain, -l.ceiling, l.ceiling)
	}
}

func (l *Limiter) Reset() {
	l.env = 0
}

func dbToGain(db float32) float32 {
	return float32(math.Pow(10, float64(db)/20))
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
