package midisrc

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/cbegin/midifm-go/internal/dispatch"
)

// timedSource yields pre-timed events, sleeping each event's Wait before it
// is returned. Deadlines are measured from the first call to Next so that
// slow consumers do not accumulate drift.
type timedSource struct {
	mu      sync.Mutex
	events  []dispatch.Event
	idx     int
	speed   float64
	start   time.Time
	elapsed time.Duration
}

func newTimedSource(events []dispatch.Event, speed float64) *timedSource {
	if !(speed > 0) {
		speed = 1
	}
	return &timedSource{events: events, speed: speed}
}

// Slice returns a source that plays events in order, honouring their Wait
// intervals in real time.
func Slice(events ...dispatch.Event) dispatch.Source {
	return newTimedSource(append([]dispatch.Event(nil), events...), 1)
}

func (s *timedSource) Next(ctx context.Context) (dispatch.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idx >= len(s.events) {
		return dispatch.Event{}, io.EOF
	}
	if s.start.IsZero() {
		s.start = time.Now()
	}
	ev := s.events[s.idx]
	elapsed := s.elapsed + time.Duration(float64(ev.Wait)/s.speed)
	if d := time.Until(s.start.Add(elapsed)); d > 0 {
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return dispatch.Event{}, ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return dispatch.Event{}, err
	}
	s.elapsed = elapsed
	s.idx++
	return ev, nil
}
