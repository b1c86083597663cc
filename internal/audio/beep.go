package audio

import (
	"sync"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"
)

// beepStreamer adapts a SampleSource to beep's float64 frame format.
type beepStreamer struct {
	src SampleSource
	buf []float32
}

func (s *beepStreamer) Stream(samples [][2]float64) (int, bool) {
	need := len(samples) * 2
	if cap(s.buf) < need {
		s.buf = make([]float32, need)
	}
	buf := s.buf[:need]
	s.src.Process(buf)
	for i := range samples {
		samples[i][0] = float64(buf[2*i])
		samples[i][1] = float64(buf[2*i+1])
	}
	return len(samples), true
}

func (s *beepStreamer) Err() error { return nil }

var (
	speakerOnce sync.Once
	speakerRate int
	speakerErr  error
)

type beepSink struct {
	mu       sync.Mutex
	streamer beep.Streamer
	started  bool
}

func newBeepSink(cfg Config, src SampleSource) (*beepSink, error) {
	speakerOnce.Do(func() {
		speakerRate = cfg.SampleRate
		speakerErr = speaker.Init(beep.SampleRate(cfg.SampleRate), cfg.BlockSize)
	})
	if speakerErr != nil {
		return nil, speakerErr
	}
	if err := checkSharedRate("beep", speakerRate, cfg.SampleRate); err != nil {
		return nil, err
	}
	return &beepSink{streamer: &beepStreamer{src: src}}, nil
}

func (s *beepSink) Play() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		speaker.Play(s.streamer)
		s.started = true
		return
	}
	speaker.Resume()
}

func (s *beepSink) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		speaker.Suspend()
	}
}

func (s *beepSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	speaker.Clear()
	s.started = false
	return nil
}
