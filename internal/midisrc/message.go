package midisrc

import (
	"gitlab.com/gomidi/midi/v2"

	"github.com/cbegin/midifm-go/internal/dispatch"
)

// FromMessage converts a raw MIDI message into a note event. Messages other
// than note-on and note-off report false.
func FromMessage(msg midi.Message) (dispatch.Event, bool) {
	var ch, key, vel uint8
	switch {
	case msg.GetNoteOn(&ch, &key, &vel):
		return dispatch.Event{Kind: dispatch.NoteOn, Channel: int(ch), Note: int(key), Velocity: int(vel)}, true
	case msg.GetNoteOff(&ch, &key, &vel):
		return dispatch.Event{Kind: dispatch.NoteOff, Channel: int(ch), Note: int(key), Velocity: int(vel)}, true
	default:
		return dispatch.Event{}, false
	}
}
