package fm

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrInvalidProfile is wrapped by every Profile validation failure.
var ErrInvalidProfile = errors.New("invalid synthesis profile")

// Profile holds the tuned constants of one voice character. Profiles only
// change these numbers; the oscillator and envelope algorithms are shared.
type Profile struct {
	Name          string
	Ratio         float64 // modulator frequency / carrier frequency
	ModIndexBase  float64
	ModIndexScale float64 // added per unit of normalized velocity
	AttackSec     float64
	DecaySec      float64
	SustainLvl    float64
	ReleaseSec    float64
	Gain          float64
	Polyphony     int
}

// BrightProfile is a brighter, more metallic voice.
func BrightProfile() Profile {
	return Profile{
		Name:          "bright",
		Ratio:         2.0,
		ModIndexBase:  4.0,
		ModIndexScale: 3.0,
		AttackSec:     0.005,
		DecaySec:      0.1,
		SustainLvl:    0.6,
		ReleaseSec:    0.2,
		Gain:          0.6,
		Polyphony:     32,
	}
}

// PianoProfile trades sustain for a stronger, velocity-sensitive attack.
func PianoProfile() Profile {
	return Profile{
		Name:          "piano",
		Ratio:         2.0,
		ModIndexBase:  7.0,
		ModIndexScale: 4.0,
		AttackSec:     0.005,
		DecaySec:      0.1,
		SustainLvl:    0.4,
		ReleaseSec:    0.15,
		Gain:          0.6,
		Polyphony:     32,
	}
}

func ProfileByName(name string) (Profile, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "bright":
		return BrightProfile(), nil
	case "piano":
		return PianoProfile(), nil
	default:
		return Profile{}, fmt.Errorf("%w: unknown profile %q (expected bright|piano)", ErrInvalidProfile, name)
	}
}

// Validate rejects constants that would divide by zero or leave the
// envelope outside [0,1] at render time.
func (p Profile) Validate() error {
	for _, c := range []struct {
		name string
		v    float64
	}{
		{"attack", p.AttackSec},
		{"decay", p.DecaySec},
		{"release", p.ReleaseSec},
		{"ratio", p.Ratio},
	} {
		if !(c.v > 0) || math.IsInf(c.v, 0) {
			return fmt.Errorf("%w: %s must be positive and finite, got %v", ErrInvalidProfile, c.name, c.v)
		}
	}
	if !(p.SustainLvl >= 0 && p.SustainLvl <= 1) {
		return fmt.Errorf("%w: sustain level must be within [0,1], got %v", ErrInvalidProfile, p.SustainLvl)
	}
	if !(p.Gain >= 0) || math.IsInf(p.Gain, 0) {
		return fmt.Errorf("%w: gain must be non-negative, got %v", ErrInvalidProfile, p.Gain)
	}
	if math.IsNaN(p.ModIndexBase) || math.IsNaN(p.ModIndexScale) ||
		math.IsInf(p.ModIndexBase, 0) || math.IsInf(p.ModIndexScale, 0) {
		return fmt.Errorf("%w: modulation index must be finite", ErrInvalidProfile)
	}
	if p.Polyphony < 1 {
		return fmt.Errorf("%w: polyphony must be at least 1, got %d", ErrInvalidProfile, p.Polyphony)
	}
	return nil
}

// MaxRelease is the longest time a released voice keeps sounding.
func (p Profile) MaxRelease() time.Duration {
	return time.Duration(p.ReleaseSec * float64(time.Second))
}

func errInvalidSampleRate(sr float64) error {
	return fmt.Errorf("%w: sample rate must be positive, got %v", ErrInvalidProfile, sr)
}
