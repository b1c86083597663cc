package fm

// Stage is the envelope state of a voice.
type Stage int

const (
	StageAttack Stage = iota
	StageDecay
	StageSustain
	StageRelease
)

func (s Stage) String() string {
	switch s {
	case StageAttack:
		return "attack"
	case StageDecay:
		return "decay"
	case StageSustain:
		return "sustain"
	case StageRelease:
		return "release"
	default:
		return "unknown"
	}
}

// envelope is a linear ADSR stepped one sample at a time. The release slope
// is derived from the level captured at note-off, so notes released during
// attack or decay fade out over the same release time as sustained ones.
type envelope struct {
	stage          Stage
	level          float64
	releaseStart   float64
	releaseStep    float64
	terminal       bool
	attackStep     float64
	decayStep      float64
	sustain        float64
	releaseSamples float64
}

func newEnvelope(p Profile, sampleRate float64) envelope {
	return envelope{
		stage:          StageAttack,
		attackStep:     1.0 / (p.AttackSec * sampleRate),
		decayStep:      (1.0 - p.SustainLvl) / (p.DecaySec * sampleRate),
		sustain:        p.SustainLvl,
		releaseSamples: p.ReleaseSec * sampleRate,
	}
}

// step advances one sample and returns the new level.
func (e *envelope) step() float64 {
	switch e.stage {
	case StageAttack:
		e.level += e.attackStep
		if e.level >= 1 {
			e.level = 1
			e.stage = StageDecay
		}
	case StageDecay:
		e.level -= e.decayStep
		if e.level <= e.sustain {
			e.level = e.sustain
			e.stage = StageSustain
		}
	case StageSustain:
	case StageRelease:
		if e.terminal {
			break
		}
		e.level -= e.releaseStep
		if e.level <= 0 {
			e.level = 0
			e.terminal = true
		}
	}
	return e.level
}

func (e *envelope) release() {
	if e.stage == StageRelease {
		return
	}
	e.releaseStart = e.level
	e.releaseStep = e.releaseStart / e.releaseSamples
	e.stage = StageRelease
}
