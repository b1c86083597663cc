package midifm

import (
	"io"
	"math"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// RenderOffline renders pre-timed events without an audio device. Each
// event's Wait is converted to frames, blocks are rendered up to the event
// and the event is applied, exactly as the real-time session would. After
// the last event all voices are released and rendering continues until they
// finish or the drain interval elapses. The result is interleaved stereo.
func (p *Player) RenderOffline(events []Event) ([]float32, error) {
	vp, disp, renderer, err := p.newEngine()
	if err != nil {
		return nil, err
	}
	sr := float64(p.cfg.sampleRate)
	block := p.cfg.blockSize
	var out []float32
	renderFrames := func(frames int) {
		for frames > 0 {
			n := min(frames, block)
			start := len(out)
			out = append(out, make([]float32, 2*n)...)
			renderer.Process(out[start:])
			frames -= n
		}
	}

	var due time.Duration
	rendered := 0
	for _, ev := range events {
		due += ev.Wait
		target := int(math.Round(due.Seconds() * sr))
		renderFrames(target - rendered)
		rendered = max(rendered, target)
		if err := disp.Handle(ev); err != nil {
			return nil, err
		}
	}
	vp.ReleaseAll()
	tail := int(math.Round(p.cfg.drain.Seconds() * sr))
	for tail > 0 && vp.Len() > 0 {
		n := min(tail, block)
		renderFrames(n)
		tail -= n
	}
	return out, nil
}

// WriteWAV encodes interleaved stereo samples as 16-bit PCM.
func WriteWAV(w io.WriteSeeker, samples []float32, sampleRate int) error {
	const channels = 2
	enc := wav.NewEncoder(w, sampleRate, 16, channels, 1)
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: channels,
			SampleRate:  sampleRate,
		},
		Data:           make([]int, len(samples)),
		SourceBitDepth: 16,
	}
	for i, s := range samples {
		buf.Data[i] = int(math.Round(float64(clampSample(s)) * 32767))
	}
	if err := enc.Write(buf); err != nil {
		return err
	}
	return enc.Close()
}

func clampSample(s float32) float32 {
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}
