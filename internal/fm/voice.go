package fm

import "math"

const twoPi = math.Pi * 2

// Voice is one sounding note: a sine carrier phase-modulated by a sine
// modulator, shaped by an ADSR envelope. A Voice is not safe for concurrent
// use; the pool serialises access to it.
type Voice struct {
	sampleRate float64
	freq       float64
	velocity   float64
	modFreq    float64
	modIndex   float64
	gain       float64
	phase      float64
	modPhase   float64
	env        envelope
}

// NewVoice builds a voice for a carrier frequency and a MIDI velocity (0-127).
// The profile is validated here so that rendering never divides by zero.
func NewVoice(p Profile, sampleRate float64, freq float64, velocity int) (*Voice, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if !(sampleRate > 0) {
		return nil, errInvalidSampleRate(sampleRate)
	}
	vel := clamp(float64(velocity)/127.0, 0, 1)
	return &Voice{
		sampleRate: sampleRate,
		freq:       freq,
		velocity:   vel,
		modFreq:    freq * p.Ratio,
		modIndex:   p.ModIndexBase + p.ModIndexScale*vel,
		gain:       p.Gain,
		env:        newEnvelope(p, sampleRate),
	}, nil
}

// Generate overwrites dst with the next len(dst) mono samples.
func (v *Voice) Generate(dst []float64) {
	n := len(dst)
	if n == 0 {
		return
	}
	carInc := twoPi * v.freq / v.sampleRate
	modInc := twoPi * v.modFreq / v.sampleRate
	amp := v.velocity * v.gain
	for i := range dst {
		// The envelope can change stage mid-block, so it is stepped in order.
		level := v.env.step()
		t := float64(i)
		mod := math.Sin(modInc*t+v.modPhase) * v.modIndex
		dst[i] = math.Sin(carInc*t+v.phase+mod) * level * amp
	}
	v.phase = wrapPhase(v.phase + carInc*float64(n))
	v.modPhase = wrapPhase(v.modPhase + modInc*float64(n))
}

// NoteOff moves the voice into release. Calling it again is a no-op.
func (v *Voice) NoteOff() {
	v.env.release()
}

// Terminal reports whether the release has reached silence.
func (v *Voice) Terminal() bool {
	return v.env.terminal
}

func (v *Voice) Freq() float64     { return v.freq }
func (v *Voice) Velocity() float64 { return v.velocity }
func (v *Voice) ModFreq() float64  { return v.modFreq }
func (v *Voice) ModIndex() float64 { return v.modIndex }
func (v *Voice) Stage() Stage      { return v.env.stage }
func (v *Voice) Level() float64    { return v.env.level }

// Phases returns the carrier and modulator phases in radians.
func (v *Voice) Phases() (carrier, modulator float64) {
	return v.phase, v.modPhase
}

// NoteToFreq converts a MIDI note number to Hz in twelve-tone equal
// temperament with A4 (note 69) at 440 Hz.
func NoteToFreq(note int) float64 {
	return 440 * math.Pow(2, float64(note-69)/12)
}

func wrapPhase(p float64) float64 {
	p = math.Mod(p, twoPi)
	if p < 0 {
		p += twoPi
	}
	return p
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
