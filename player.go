package midifm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	intaudio "github.com/cbegin/midifm-go/internal/audio"
	intdisp "github.com/cbegin/midifm-go/internal/dispatch"
	intfx "github.com/cbegin/midifm-go/internal/effects"
	intfm "github.com/cbegin/midifm-go/internal/fm"
	intpool "github.com/cbegin/midifm-go/internal/pool"
)

const (
	DefaultSampleRate = 44100
	DefaultBlockSize  = 512
)

var ErrPlaying = errors.New("playback already in progress")

type PlayerOption func(*playerConfig)

type playerConfig struct {
	profile    intfm.Profile
	sampleRate int
	blockSize  int
	backend    intaudio.Backend
	overflow   intpool.OverflowPolicy
	polyphony  int
	drain      time.Duration
	transpose  int
	log        *slog.Logger
	sampleTap  func([]float32)
	effects    func(sampleRate int) (intfx.Chain, error)
}

func defaultPlayerConfig() playerConfig {
	return playerConfig{
		profile:    intfm.BrightProfile(),
		sampleRate: DefaultSampleRate,
		blockSize:  DefaultBlockSize,
		backend:    intaudio.BackendEbiten,
		overflow:   intpool.DropNewest,
		drain:      intdisp.DefaultDrain,
		log:        slog.New(slog.DiscardHandler),
	}
}

func WithProfile(p Profile) PlayerOption {
	return func(cfg *playerConfig) { cfg.profile = p }
}

func WithSampleRate(hz int) PlayerOption {
	return func(cfg *playerConfig) { cfg.sampleRate = hz }
}

// WithBlockSize sets the number of frames the sink requests per callback.
func WithBlockSize(frames int) PlayerOption {
	return func(cfg *playerConfig) { cfg.blockSize = frames }
}

func WithBackend(b Backend) PlayerOption {
	return func(cfg *playerConfig) { cfg.backend = b }
}

func WithOverflowPolicy(p OverflowPolicy) PlayerOption {
	return func(cfg *playerConfig) { cfg.overflow = p }
}

// WithPolyphony overrides the profile's voice ceiling.
func WithPolyphony(n int) PlayerOption {
	return func(cfg *playerConfig) { cfg.polyphony = n }
}

// WithDrain sets how long playback keeps rendering after the last event so
// release tails can finish.
func WithDrain(d time.Duration) PlayerOption {
	return func(cfg *playerConfig) { cfg.drain = d }
}

// WithTranspose shifts all notes by semitones.
func WithTranspose(semitones int) PlayerOption {
	return func(cfg *playerConfig) { cfg.transpose = semitones }
}

func WithLogger(l *slog.Logger) PlayerOption {
	return func(cfg *playerConfig) {
		if l != nil {
			cfg.log = l
		}
	}
}

// WithSampleTap installs a callback invoked with each rendered stereo block.
// The callback runs on the audio thread; keep work brief and non-blocking.
func WithSampleTap(tap func([]float32)) PlayerOption {
	return func(cfg *playerConfig) { cfg.sampleTap = tap }
}

// WithEffects builds a fresh master chain for every session at the
// session's sample rate.
func WithEffects(build func(sampleRate int) (intfx.Chain, error)) PlayerOption {
	return func(cfg *playerConfig) { cfg.effects = build }
}

func (cfg playerConfig) validate() (intfm.Profile, error) {
	if cfg.sampleRate <= 0 {
		return intfm.Profile{}, errors.New("sampleRate must be positive")
	}
	if cfg.blockSize <= 0 {
		return intfm.Profile{}, errors.New("blockSize must be positive")
	}
	if cfg.drain < 0 {
		return intfm.Profile{}, errors.New("drain must not be negative")
	}
	p := cfg.profile
	if cfg.polyphony > 0 {
		p.Polyphony = cfg.polyphony
	}
	if err := p.Validate(); err != nil {
		return intfm.Profile{}, err
	}
	return p, nil
}

// session is one playback: its own pool, dispatcher, renderer and sink.
type session struct {
	pool     *intpool.Pool
	disp     *intdisp.Dispatcher
	renderer *intaudio.Renderer
	sink     intaudio.Sink
	group    *errgroup.Group
	cancel   context.CancelFunc
}

// Player plays note sources through the FM voice engine. One session runs
// at a time.
type Player struct {
	mu      sync.Mutex
	cfg     playerConfig
	profile intfm.Profile
	current *session
	last    *session
}

func NewPlayer(opts ...PlayerOption) (*Player, error) {
	cfg := defaultPlayerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	profile, err := cfg.validate()
	if err != nil {
		return nil, err
	}
	if cfg.drain < profile.MaxRelease() {
		cfg.log.Warn("drain shorter than release, tails will be cut", "drain", cfg.drain, "release", profile.MaxRelease())
	}
	return &Player{cfg: cfg, profile: profile}, nil
}

func (p *Player) newEngine() (*intpool.Pool, *intdisp.Dispatcher, *intaudio.Renderer, error) {
	vp := intpool.New(p.profile.Polyphony, p.cfg.overflow)
	disp, err := intdisp.New(vp, p.profile, p.cfg.sampleRate,
		intdisp.WithDrain(p.cfg.drain),
		intdisp.WithTranspose(p.cfg.transpose),
		intdisp.WithLogger(p.cfg.log),
	)
	if err != nil {
		return nil, nil, nil, err
	}
	var ropts []intaudio.RendererOption
	if p.cfg.effects != nil {
		chain, err := p.cfg.effects(p.cfg.sampleRate)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("build effects: %w", err)
		}
		ropts = append(ropts, intaudio.WithChain(chain))
	}
	if p.cfg.sampleTap != nil {
		ropts = append(ropts, intaudio.WithTap(p.cfg.sampleTap))
	}
	return vp, disp, intaudio.NewRenderer(vp, ropts...), nil
}

// Play starts a session that feeds src into a fresh voice pool while the
// audio sink renders it. It returns once audio is running; use Wait to
// block until the session has drained.
func (p *Player) Play(ctx context.Context, src Source) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != nil {
		return ErrPlaying
	}
	vp, disp, renderer, err := p.newEngine()
	if err != nil {
		return err
	}
	sink, err := intaudio.Open(p.cfg.backend, intaudio.Config{
		SampleRate: p.cfg.sampleRate,
		BlockSize:  p.cfg.blockSize,
	}, renderer)
	if err != nil {
		return fmt.Errorf("open %s audio: %w", p.cfg.backend, err)
	}
	runCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(runCtx)
	s := &session{pool: vp, disp: disp, renderer: renderer, sink: sink, group: g, cancel: cancel}
	p.current = s
	p.last = s

	p.cfg.log.Info("playback started",
		"profile", p.profile.Name,
		"backend", p.cfg.backend,
		"sample_rate", p.cfg.sampleRate,
		"block", p.cfg.blockSize,
		"polyphony", p.profile.Polyphony,
		"overflow", p.cfg.overflow,
	)
	sink.Play()
	g.Go(func() error {
		return disp.Run(gctx, src)
	})
	return nil
}

// Wait blocks until the current session has consumed its source and drained,
// then closes the audio sink. It returns immediately when nothing is playing.
func (p *Player) Wait() error {
	p.mu.Lock()
	s := p.current
	p.mu.Unlock()
	if s == nil {
		return nil
	}
	err := s.group.Wait()
	s.cancel()
	closeErr := s.sink.Close()

	p.mu.Lock()
	if p.current == s {
		p.current = nil
	}
	p.mu.Unlock()
	return errors.Join(err, closeErr)
}

// Stop ends the event stream. Sounding notes are released and the session
// still drains; call Wait to join it.
func (p *Player) Stop() {
	p.mu.Lock()
	s := p.current
	p.mu.Unlock()
	if s == nil {
		return
	}
	s.disp.Stop()
	s.cancel()
}

// Run plays src and waits for it to finish.
func (p *Player) Run(ctx context.Context, src Source) error {
	if err := p.Play(ctx, src); err != nil {
		return err
	}
	return p.Wait()
}

// ActiveVoices returns the number of voices in the most recent session.
func (p *Player) ActiveVoices() int {
	p.mu.Lock()
	s := p.last
	p.mu.Unlock()
	if s == nil {
		return 0
	}
	return s.pool.Len()
}

// FramesRendered returns how many frames the most recent session produced.
func (p *Player) FramesRendered() int64 {
	p.mu.Lock()
	s := p.last
	p.mu.Unlock()
	if s == nil {
		return 0
	}
	return s.renderer.Frames()
}

// Stats reports what the most recent session did with its notes.
func (p *Player) Stats() Stats {
	p.mu.Lock()
	s := p.last
	p.mu.Unlock()
	if s == nil {
		return Stats{}
	}
	return s.disp.Stats()
}

func (p *Player) Profile() Profile { return p.profile }

func (p *Player) SampleRate() int { return p.cfg.sampleRate }
