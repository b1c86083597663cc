package audio

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrUnknownBackend = errors.New("unknown audio backend")

// Backend names an audio output implementation.
type Backend string

const (
	BackendEbiten Backend = "ebiten"
	BackendOto    Backend = "oto"
	BackendBeep   Backend = "beep"
	BackendNull   Backend = "null"
)

func ParseBackend(name string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(name))); b {
	case "":
		return BackendEbiten, nil
	case BackendEbiten, BackendOto, BackendBeep, BackendNull:
		return b, nil
	default:
		return "", fmt.Errorf("%w: %q (expected ebiten|oto|beep|null)", ErrUnknownBackend, name)
	}
}

// ErrRateMismatch reports a session asking a process-wide audio context
// for a different sample rate than the one it was created with.
var ErrRateMismatch = errors.New("audio context sample rate mismatch")

func checkSharedRate(backend string, have, want int) error {
	if have != want {
		return fmt.Errorf("%w: %s context runs at %d Hz, requested %d Hz", ErrRateMismatch, backend, have, want)
	}
	return nil
}

// Sink pulls audio from a SampleSource on its own schedule once Play is called.
type Sink interface {
	Play()
	Pause()
	Close() error
}

// Config describes the stream requested from a sink. The sinks always
// open two channels.
type Config struct {
	SampleRate int
	BlockSize  int // frames per callback
}

func (c Config) blockDuration() time.Duration {
	return time.Duration(float64(c.BlockSize) / float64(c.SampleRate) * float64(time.Second))
}

// Open creates the sink for backend, rendering from src.
func Open(backend Backend, cfg Config, src SampleSource) (Sink, error) {
	if cfg.SampleRate <= 0 || cfg.BlockSize <= 0 {
		return nil, fmt.Errorf("invalid audio config: %d Hz, %d frames", cfg.SampleRate, cfg.BlockSize)
	}
	switch backend {
	case BackendEbiten, "":
		return newEbitenSink(cfg, src)
	case BackendOto:
		return newOtoSink(cfg, src)
	case BackendBeep:
		return newBeepSink(cfg, src)
	case BackendNull:
		return NewNullSink(cfg, src), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}
