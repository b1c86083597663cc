package audio

import (
	"sync"
	"time"
)

// NullSink renders blocks at the real-time cadence and discards them. It
// stands in for a sound card on headless machines.
type NullSink struct {
	cfg  Config
	src  SampleSource
	mu   sync.Mutex
	stop chan struct{}
	wg   sync.WaitGroup
}

func NewNullSink(cfg Config, src SampleSource) *NullSink {
	return &NullSink{cfg: cfg, src: src}
}

func (s *NullSink) Play() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return
	}
	s.stop = make(chan struct{})
	s.wg.Add(1)
	go s.loop(s.stop)
}

func (s *NullSink) loop(stop chan struct{}) {
	defer s.wg.Done()
	buf := make([]float32, 2*s.cfg.BlockSize)
	ticker := time.NewTicker(s.cfg.blockDuration())
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.src.Process(buf)
		}
	}
}

func (s *NullSink) Pause() {
	s.mu.Lock()
	stop := s.stop
	s.stop = nil
	s.mu.Unlock()
	if stop != nil {
		close(stop)
		s.wg.Wait()
	}
}

func (s *NullSink) Close() error {
	s.Pause()
	return nil
}
