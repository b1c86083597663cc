package midifm

import (
	"github.com/cbegin/midifm-go/internal/audio"
	"github.com/cbegin/midifm-go/internal/dispatch"
	"github.com/cbegin/midifm-go/internal/fm"
	"github.com/cbegin/midifm-go/internal/pool"
)

type (
	Profile        = fm.Profile
	Event          = dispatch.Event
	Source         = dispatch.Source
	Stats          = dispatch.Stats
	OverflowPolicy = pool.OverflowPolicy
	Backend        = audio.Backend
)

const (
	NoteOn  = dispatch.NoteOn
	NoteOff = dispatch.NoteOff

	DropNewest  = pool.DropNewest
	StealOldest = pool.StealOldest

	BackendEbiten = audio.BackendEbiten
	BackendOto    = audio.BackendOto
	BackendBeep   = audio.BackendBeep
	BackendNull   = audio.BackendNull
)

var (
	BrightProfile = fm.BrightProfile
	PianoProfile  = fm.PianoProfile
	NoteToFreq    = fm.NoteToFreq
)
