package audio

import (
	"sync"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

var (
	audioContextOnce sync.Once
	audioContext     *ebitaudio.Context
	audioSampleRate  int
)

// ebiten allows a single audio context per process.
func sharedAudioContext(sampleRate int) (*ebitaudio.Context, error) {
	audioContextOnce.Do(func() {
		audioSampleRate = sampleRate
		audioContext = ebitaudio.NewContext(sampleRate)
	})
	if err := checkSharedRate("ebiten", audioSampleRate, sampleRate); err != nil {
		return nil, err
	}
	return audioContext, nil
}

type ebitenSink struct {
	player *ebitaudio.Player
	reader *StreamReader
}

func newEbitenSink(cfg Config, src SampleSource) (*ebitenSink, error) {
	ctx, err := sharedAudioContext(cfg.SampleRate)
	if err != nil {
		return nil, err
	}
	reader := NewStreamReader(src)
	pl, err := ctx.NewPlayerF32(reader)
	if err != nil {
		return nil, err
	}
	pl.SetBufferSize(cfg.blockDuration())
	return &ebitenSink{player: pl, reader: reader}, nil
}

func (s *ebitenSink) Play()  { s.player.Play() }
func (s *ebitenSink) Pause() { s.player.Pause() }

func (s *ebitenSink) Close() error {
	s.player.Pause()
	if err := s.player.Close(); err != nil {
		return err
	}
	return s.reader.Close()
}
