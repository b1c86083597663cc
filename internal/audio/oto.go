package audio

import (
	"sync"

	"github.com/ebitengine/oto/v3"
)

var (
	otoOnce sync.Once
	otoCtx  *oto.Context
	otoRate int
	otoErr  error
)

type otoSink struct {
	mu     sync.Mutex
	player *oto.Player
}

// sharedOtoContext returns the process-wide oto context. oto allows one
// context, so every session must use the rate of the first.
func sharedOtoContext(cfg Config) (*oto.Context, error) {
	otoOnce.Do(func() {
		otoRate = cfg.SampleRate
		var ready chan struct{}
		otoCtx, ready, otoErr = oto.NewContext(&oto.NewContextOptions{
			SampleRate:   cfg.SampleRate,
			ChannelCount: 2,
			Format:       oto.FormatFloat32LE,
			BufferSize:   cfg.blockDuration(),
		})
		if otoErr == nil {
			<-ready
		}
	})
	if otoErr != nil {
		return nil, otoErr
	}
	if err := checkSharedRate("oto", otoRate, cfg.SampleRate); err != nil {
		return nil, err
	}
	return otoCtx, nil
}

func newOtoSink(cfg Config, src SampleSource) (*otoSink, error) {
	ctx, err := sharedOtoContext(cfg)
	if err != nil {
		return nil, err
	}
	pl := ctx.NewPlayer(NewStreamReader(src))
	pl.SetBufferSize(cfg.BlockSize * 2 * 4)
	return &otoSink{player: pl}, nil
}

func (s *otoSink) Play() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.player.Play()
}

func (s *otoSink) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.player.Pause()
}

func (s *otoSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.player.Close()
}
