package midisrc

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"gitlab.com/gomidi/midi/v2"

	"github.com/cbegin/midifm-go/internal/dispatch"
)

const defaultPortBuffer = 1024

// Port is a live MIDI input. Messages arrive on the driver's goroutine and
// are queued until the dispatcher asks for them.
type Port struct {
	name      string
	events    chan dispatch.Event
	done      chan struct{}
	closeOnce sync.Once
	stop      func()
	overflow  atomic.Int64
}

// NewPort creates an unconnected port; feed it with Feed.
func NewPort(name string, buffer int) *Port {
	if buffer <= 0 {
		buffer = defaultPortBuffer
	}
	return &Port{
		name:   name,
		events: make(chan dispatch.Event, buffer),
		done:   make(chan struct{}),
	}
}

// OpenPort connects to the named input port of the registered MIDI driver.
func OpenPort(name string, log *slog.Logger) (*Port, error) {
	in, err := midi.FindInPort(name)
	if err != nil {
		return nil, fmt.Errorf("find midi input %q: %w", name, err)
	}
	p := NewPort(in.String(), defaultPortBuffer)
	stop, err := midi.ListenTo(in, func(msg midi.Message, _ int32) {
		p.Feed(msg)
	}, midi.HandleError(func(err error) {
		if log != nil {
			log.Warn("midi input error", "port", p.name, "err", err)
		}
	}))
	if err != nil {
		return nil, fmt.Errorf("listen on midi input %q: %w", name, err)
	}
	p.stop = stop
	return p, nil
}

// InPorts lists the input ports of the registered MIDI driver.
func InPorts() []string {
	var names []string
	for _, in := range midi.GetInPorts() {
		names = append(names, in.String())
	}
	return names
}

// Feed queues a raw message. It never blocks: when the queue is full the
// message is counted and discarded.
func (p *Port) Feed(msg midi.Message) {
	ev, ok := FromMessage(msg)
	if !ok {
		return
	}
	select {
	case <-p.done:
		return
	default:
	}
	select {
	case p.events <- ev:
	default:
		p.overflow.Add(1)
	}
}

func (p *Port) Next(ctx context.Context) (dispatch.Event, error) {
	select {
	case ev := <-p.events:
		return ev, nil
	case <-p.done:
		return dispatch.Event{}, io.EOF
	case <-ctx.Done():
		return dispatch.Event{}, ctx.Err()
	}
}

// Close stops listening; Next returns io.EOF afterwards.
func (p *Port) Close() error {
	p.closeOnce.Do(func() {
		if p.stop != nil {
			p.stop()
		}
		close(p.done)
	})
	return nil
}

func (p *Port) Name() string { return p.name }

// Overflow returns how many messages were discarded because the queue was full.
func (p *Port) Overflow() int64 { return p.overflow.Load() }
