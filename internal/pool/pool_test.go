package pool

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/cbegin/midifm-go/internal/fm"
)

const testRate = 44100.0

func newVoice(t testing.TB, note int) *fm.Voice {
	t.Helper()
	v, err := fm.NewVoice(fm.BrightProfile(), testRate, fm.NoteToFreq(note), 100)
	if err != nil {
		t.Fatalf("new voice: %v", err)
	}
	return v
}

func TestTryAddRespectsCeilingAndDropsNewest(t *testing.T) {
	p := New(2, DropNewest)
	a, b, c := newVoice(t, 60), newVoice(t, 64), newVoice(t, 67)
	if !p.TryAdd(a) || !p.TryAdd(b) {
		t.Fatalf("first two voices should be added")
	}
	if p.TryAdd(c) {
		t.Fatalf("third voice should be dropped")
	}
	if p.Len() != 2 {
		t.Fatalf("len = %d, want 2", p.Len())
	}
	if a.Stage() != fm.StageRelease {
		t.Fatalf("oldest voice stage = %v, want release", a.Stage())
	}
	if b.Stage() == fm.StageRelease {
		t.Fatalf("second voice should still be sounding")
	}

	// The oldest voice is still fading, so another overflow leaves the held
	// voice alone.
	if p.TryAdd(newVoice(t, 72)) {
		t.Fatalf("fourth voice should be dropped")
	}
	if b.Stage() == fm.StageRelease {
		t.Fatalf("held voice stage = %v, want it still sounding", b.Stage())
	}
	if p.Len() != 2 {
		t.Fatalf("len = %d, want 2", p.Len())
	}
}

func TestOverflowLeavesHeldVoiceWhenOldestReleasing(t *testing.T) {
	p := New(2, DropNewest)
	a, b := newVoice(t, 60), newVoice(t, 64)
	p.TryAdd(a)
	p.TryAdd(b)
	a.NoteOff()
	if p.TryAdd(newVoice(t, 67)) {
		t.Fatalf("overflowing voice should be dropped")
	}
	if a.Stage() != fm.StageRelease {
		t.Fatalf("oldest stage = %v, want release", a.Stage())
	}
	if b.Stage() == fm.StageRelease {
		t.Fatalf("held voice was released by overflow")
	}
}

func TestTryAddStealOldest(t *testing.T) {
	p := New(2, StealOldest)
	a, b, c := newVoice(t, 60), newVoice(t, 64), newVoice(t, 67)
	p.TryAdd(a)
	p.TryAdd(b)
	if !p.TryAdd(c) {
		t.Fatalf("stealing policy should add the new voice")
	}
	if p.Len() != 2 {
		t.Fatalf("len = %d, want 2", p.Len())
	}
	if n := p.ReleaseMatching(fm.NoteToFreq(60), 1e-3); n != 0 {
		t.Fatalf("oldest voice should have been evicted, matched %d", n)
	}
	if n := p.ReleaseMatching(fm.NoteToFreq(67), 1e-3); n != 1 {
		t.Fatalf("new voice should be present, matched %d", n)
	}
}

func TestTryAddRefusesDuplicatesAndNil(t *testing.T) {
	p := New(4, DropNewest)
	v := newVoice(t, 60)
	if !p.TryAdd(v) {
		t.Fatalf("first add failed")
	}
	if p.TryAdd(v) {
		t.Fatalf("same voice added twice")
	}
	if p.TryAdd(nil) {
		t.Fatalf("nil voice added")
	}
	if p.Len() != 1 {
		t.Fatalf("len = %d, want 1", p.Len())
	}
}

func TestReleaseMatching(t *testing.T) {
	p := New(8, DropNewest)
	first, retrig, other := newVoice(t, 69), newVoice(t, 69), newVoice(t, 70)
	p.TryAdd(first)
	p.TryAdd(retrig)
	p.TryAdd(other)

	if n := p.ReleaseMatching(fm.NoteToFreq(71), 1e-3); n != 0 {
		t.Fatalf("unmatched release matched %d voices", n)
	}
	if n := p.ReleaseMatching(440, 1e-3); n != 2 {
		t.Fatalf("matched %d voices, want 2", n)
	}
	if first.Stage() != fm.StageRelease || retrig.Stage() != fm.StageRelease {
		t.Fatalf("retriggered voices should both release")
	}
	if other.Stage() == fm.StageRelease {
		t.Fatalf("neighbouring note released")
	}
}

func TestReleaseAll(t *testing.T) {
	p := New(4, DropNewest)
	vs := []*fm.Voice{newVoice(t, 48), newVoice(t, 52), newVoice(t, 55)}
	for _, v := range vs {
		p.TryAdd(v)
	}
	p.ReleaseAll()
	for i, v := range vs {
		if v.Stage() != fm.StageRelease {
			t.Fatalf("voice %d stage = %v, want release", i, v.Stage())
		}
	}
}

func TestRenderBlockLengthAndSilence(t *testing.T) {
	for _, n := range []int{1, 7, 64, 512, 4096} {
		p := New(4, DropNewest)
		dst := make([]float32, 2*n)
		for i := range dst {
			dst[i] = 1
		}
		p.RenderBlock(dst)
		for i, s := range dst {
			if s != 0 {
				t.Fatalf("n=%d: empty pool sample %d = %v, want 0", n, i, s)
			}
		}

		p.TryAdd(newVoice(t, 69))
		p.RenderBlock(dst)
		var peak float64
		for i := 0; i < n; i++ {
			if dst[2*i] != dst[2*i+1] {
				t.Fatalf("n=%d: channels differ at frame %d", n, i)
			}
			peak = math.Max(peak, math.Abs(float64(dst[2*i])))
		}
		if n >= 64 && peak == 0 {
			t.Fatalf("n=%d: expected audio from one voice", n)
		}
	}
}

func TestRenderBlockSumsVoices(t *testing.T) {
	single := New(4, DropNewest)
	double := New(4, DropNewest)
	single.TryAdd(newVoice(t, 60))
	double.TryAdd(newVoice(t, 60))
	double.TryAdd(newVoice(t, 60))
	a := make([]float32, 1024)
	b := make([]float32, 1024)
	single.RenderBlock(a)
	double.RenderBlock(b)
	for i := range a {
		if math.Abs(float64(2*a[i]-b[i])) > 1e-6 {
			t.Fatalf("sample %d: two identical voices %v, want %v", i, b[i], 2*a[i])
		}
	}
}

func TestRenderBlockReapsTerminalVoices(t *testing.T) {
	p := New(4, DropNewest)
	held, released := newVoice(t, 60), newVoice(t, 64)
	p.TryAdd(held)
	p.TryAdd(released)
	buf := make([]float32, 2*512)
	p.RenderBlock(buf)
	p.ReleaseMatching(fm.NoteToFreq(64), 1e-3)

	blocks := int(math.Ceil(fm.BrightProfile().ReleaseSec*testRate/512)) + 1
	for i := 0; i < blocks; i++ {
		p.RenderBlock(buf)
	}
	if p.Len() != 1 {
		t.Fatalf("len = %d, want 1 after release finished", p.Len())
	}
	if p.ReleaseMatching(fm.NoteToFreq(60), 1e-3) != 1 {
		t.Fatalf("held voice should remain")
	}
}

func TestConcurrentAccessKeepsCeiling(t *testing.T) {
	const max = 6
	p := New(max, DropNewest)
	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		buf := make([]float32, 2*256)
		for {
			select {
			case <-stop:
				return
			default:
			}
			p.RenderBlock(buf)
			if n := p.Len(); n > max {
				t.Errorf("len %d exceeds ceiling", n)
				return
			}
		}
	}()
	for i := 0; i < 2000; i++ {
		note := 40 + i%30
		p.TryAdd(newVoice(t, note))
		if i%3 == 0 {
			p.ReleaseMatching(fm.NoteToFreq(note-2), 1e-3)
		}
		if n := p.Len(); n > max {
			t.Fatalf("len %d exceeds ceiling", n)
		}
	}
	p.ReleaseAll()
	close(stop)
	wg.Wait()
}

func TestParseOverflowPolicy(t *testing.T) {
	for in, want := range map[string]OverflowPolicy{"drop": DropNewest, "STEAL": StealOldest, "": DropNewest} {
		got, err := ParseOverflowPolicy(in)
		if err != nil || got != want {
			t.Fatalf("ParseOverflowPolicy(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseOverflowPolicy("lifo"); !errors.Is(err, ErrUnknownPolicy) {
		t.Fatalf("expected ErrUnknownPolicy, got %v", err)
	}
}

func BenchmarkRenderBlock32Voices(b *testing.B) {
	p := New(32, DropNewest)
	for i := 0; i < 32; i++ {
		p.TryAdd(newVoice(b, 36+i))
	}
	buf := make([]float32, 2*512)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p.RenderBlock(buf)
	}
}
