package midisrc

import (
	"fmt"
	"io"
	"slices"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/cbegin/midifm-go/internal/dispatch"
)

// EventList is the note content of a Standard MIDI File, merged across
// tracks in playback order with tempo changes applied.
type EventList struct {
	Events   []dispatch.Event
	Duration time.Duration
}

// LoadFile reads the SMF at path.
func LoadFile(path string) (*EventList, error) {
	return collect(smf.ReadTracks(path), path)
}

// Load reads an SMF from r.
func Load(r io.Reader) (*EventList, error) {
	return collect(smf.ReadTracksFrom(r), "reader")
}

type timedEvent struct {
	at    int64 // microseconds
	track int
	seq   int
	ev    dispatch.Event
}

func collect(tr *smf.TracksReader, name string) (*EventList, error) {
	var timed []timedEvent
	seq := 0
	tr.Do(func(te smf.TrackEvent) {
		ev, ok := FromMessage(midi.Message(te.Message))
		if !ok {
			return
		}
		timed = append(timed, timedEvent{at: te.AbsMicroSeconds, track: te.TrackNo, seq: seq, ev: ev})
		seq++
	})
	if err := tr.Error(); err != nil {
		return nil, fmt.Errorf("read midi %s: %w", name, err)
	}
	slices.SortStableFunc(timed, func(a, b timedEvent) int {
		if a.at != b.at {
			if a.at < b.at {
				return -1
			}
			return 1
		}
		return a.seq - b.seq
	})
	list := &EventList{Events: make([]dispatch.Event, 0, len(timed))}
	var prev int64
	for _, te := range timed {
		ev := te.ev
		ev.Wait = time.Duration(te.at-prev) * time.Microsecond
		prev = te.at
		list.Events = append(list.Events, ev)
	}
	list.Duration = time.Duration(prev) * time.Microsecond
	return list, nil
}

// Source plays the list in real time. speed scales the tempo; 2 plays twice
// as fast.
func (l *EventList) Source(speed float64) dispatch.Source {
	return newTimedSource(l.Events, speed)
}
