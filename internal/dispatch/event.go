package dispatch

import (
	"context"
	"fmt"
	"time"
)

// Kind identifies a note event.
type Kind int

const (
	NoteOn Kind = iota
	NoteOff
)

func (k Kind) String() string {
	switch k {
	case NoteOn:
		return "note_on"
	case NoteOff:
		return "note_off"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Event is one note message. Wait is the time the source waits before
// delivering the event; real-time sources leave it zero.
type Event struct {
	Kind     Kind
	Channel  int
	Note     int
	Velocity int
	Wait     time.Duration
}

// IsRelease reports whether the event ends a note. A note-on with velocity
// zero is a note-off by MIDI convention.
func (e Event) IsRelease() bool {
	return e.Kind == NoteOff || (e.Kind == NoteOn && e.Velocity == 0)
}

func (e Event) String() string {
	return fmt.Sprintf("%s ch=%d note=%d vel=%d wait=%s", e.Kind, e.Channel, e.Note, e.Velocity, e.Wait)
}

// Source yields events in playback order. Next blocks until the next event
// is due and returns io.EOF after the last one.
type Source interface {
	Next(ctx context.Context) (Event, error)
}
