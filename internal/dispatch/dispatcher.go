package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cbegin/midifm-go/internal/fm"
	"github.com/cbegin/midifm-go/internal/pool"
)

const (
	DefaultDrain     = 2 * time.Second
	DefaultTolerance = 1e-3
)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithDrain sets how long Run waits after releasing all voices.
func WithDrain(d time.Duration) Option {
	return func(d2 *Dispatcher) {
		if d >= 0 {
			d2.drain = d
		}
	}
}

// WithTolerance sets the frequency tolerance in Hz used to match note-offs.
func WithTolerance(hz float64) Option {
	return func(d *Dispatcher) {
		if hz > 0 {
			d.tolerance = hz
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.log = l
		}
	}
}

// WithTranspose shifts every note by the given number of semitones.
func WithTranspose(semitones int) Option {
	return func(d *Dispatcher) {
		d.transpose = semitones
	}
}

// Stats counts what the dispatcher did with incoming notes.
type Stats struct {
	Started  int64
	Dropped  int64
	Released int64
	Ignored  int64
}

// Dispatcher turns note events into pool operations.
type Dispatcher struct {
	pool       *pool.Pool
	profile    fm.Profile
	sampleRate float64
	drain      time.Duration
	tolerance  float64
	transpose  int
	log        *slog.Logger
	stopped    atomic.Bool

	started  atomic.Int64
	dropped  atomic.Int64
	released atomic.Int64
	ignored  atomic.Int64
}

// New creates a dispatcher feeding p with voices built from profile.
func New(p *pool.Pool, profile fm.Profile, sampleRate int, opts ...Option) (*Dispatcher, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	d := &Dispatcher{
		pool:       p,
		profile:    profile,
		sampleRate: float64(sampleRate),
		drain:      DefaultDrain,
		tolerance:  DefaultTolerance,
		log:        slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Handle applies a single event to the pool. Dropped notes and releases
// without a matching voice are normal outcomes, not errors.
func (d *Dispatcher) Handle(ev Event) error {
	note := ev.Note + d.transpose
	if note < 0 || note > 127 {
		d.ignored.Add(1)
		return nil
	}
	freq := fm.NoteToFreq(note)
	if ev.IsRelease() {
		if d.pool.ReleaseMatching(freq, d.tolerance) > 0 {
			d.released.Add(1)
		}
		return nil
	}
	v, err := fm.NewVoice(d.profile, d.sampleRate, freq, ev.Velocity)
	if err != nil {
		return err
	}
	if d.pool.TryAdd(v) {
		d.started.Add(1)
		return nil
	}
	d.dropped.Add(1)
	d.log.Debug("note dropped at polyphony ceiling", "note", note, "velocity", ev.Velocity, "voices", d.pool.Cap())
	return nil
}

// Run consumes src until it is exhausted, ctx is cancelled or Stop is called.
// It then releases every voice and waits for the drain interval so release
// tails play out before returning. Errors other than io.EOF and cancellation
// are returned after the drain.
func (d *Dispatcher) Run(ctx context.Context, src Source) error {
	var runErr error
	for !d.stopped.Load() {
		ev, err := src.Next(ctx)
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				runErr = err
			}
			break
		}
		if d.stopped.Load() {
			break
		}
		if err := d.Handle(ev); err != nil {
			runErr = err
			break
		}
	}
	d.pool.ReleaseAll()
	d.log.Debug("event stream finished, draining", "drain", d.drain, "voices", d.pool.Len())
	if d.drain > 0 {
		timer := time.NewTimer(d.drain)
		<-timer.C
	}
	s := d.Stats()
	d.log.Info("playback finished", "started", s.Started, "dropped", s.Dropped, "released", s.Released)
	return runErr
}

// Stop asks Run to finish after the current event.
func (d *Dispatcher) Stop() {
	d.stopped.Store(true)
}

func (d *Dispatcher) Stats() Stats {
	return Stats{
		Started:  d.started.Load(),
		Dropped:  d.dropped.Load(),
		Released: d.released.Load(),
		Ignored:  d.ignored.Load(),
	}
}
