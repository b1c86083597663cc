package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
	"golang.org/x/term"

	"github.com/cbegin/midifm-go"
	"github.com/cbegin/midifm-go/internal/audio"
	"github.com/cbegin/midifm-go/internal/effects"
	"github.com/cbegin/midifm-go/internal/fm"
	"github.com/cbegin/midifm-go/internal/midisrc"
	"github.com/cbegin/midifm-go/internal/pool"
)

// demoEvents is a short arpeggio played when no file or port is given.
func demoEvents() []midifm.Event {
	notes := []int{60, 64, 67, 72}
	var evs []midifm.Event
	for i, n := range notes {
		wait := 250 * time.Millisecond
		if i == 0 {
			wait = 0
		}
		evs = append(evs, midifm.Event{Kind: midifm.NoteOn, Note: n, Velocity: 100, Wait: wait})
	}
	evs = append(evs, midifm.Event{Kind: midifm.NoteOff, Note: 72, Wait: time.Second})
	for _, n := range notes[:3] {
		evs = append(evs, midifm.Event{Kind: midifm.NoteOff, Note: n})
	}
	return evs
}

type options struct {
	filePath   string
	portName   string
	listPorts  bool
	profile    string
	backend    string
	sampleRate int
	block      int
	polyphony  int
	overflow   string
	drain      time.Duration
	speed      float64
	transpose  int
	limit      bool
	delay      time.Duration
	wavPath    string
	debug      bool
}

// sourceOpener returns the event source and a func that releases it.
type sourceOpener func(port, file string, speed float64, logger *slog.Logger) (midifm.Source, func(), error)

func main() {
	var o options
	flag.StringVar(&o.filePath, "file", "", "path to a Standard MIDI File")
	flag.StringVar(&o.portName, "port", "", "live MIDI input port (substring match)")
	flag.BoolVar(&o.listPorts, "list-ports", false, "list MIDI input ports and exit")
	flag.StringVar(&o.profile, "profile", "bright", "voice profile: bright|piano")
	flag.StringVar(&o.backend, "backend", "ebiten", "audio backend: ebiten|oto|beep|null")
	flag.IntVar(&o.sampleRate, "sample-rate", midifm.DefaultSampleRate, "output sample rate")
	flag.IntVar(&o.block, "block", midifm.DefaultBlockSize, "frames per audio block")
	flag.IntVar(&o.polyphony, "polyphony", 0, "voice ceiling (0 = profile default)")
	flag.StringVar(&o.overflow, "overflow", "drop", "policy at the voice ceiling: drop|steal")
	flag.DurationVar(&o.drain, "drain", 2*time.Second, "render time after the last event")
	flag.Float64Var(&o.speed, "speed", 1.0, "tempo multiplier for -file")
	flag.IntVar(&o.transpose, "transpose", 0, "transpose in semitones")
	flag.BoolVar(&o.limit, "limit", false, "apply a master limiter")
	flag.DurationVar(&o.delay, "delay", 0, "stereo echo delay, e.g. 250ms (0 = off)")
	flag.StringVar(&o.wavPath, "wav", "", "render offline to this WAV file instead of playing")
	flag.BoolVar(&o.debug, "debug", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if o.debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	err := run(o, openSource, logger)
	midi.CloseDriver()
	if err != nil {
		log.Fatal(err)
	}
}

// run does all the work so deferred cleanup happens before main exits.
func run(o options, open sourceOpener, logger *slog.Logger) error {
	if o.listPorts {
		ports := midisrc.InPorts()
		if len(ports) == 0 {
			fmt.Println("no MIDI input ports")
		}
		for i, name := range ports {
			fmt.Printf("%d: %s\n", i, name)
		}
		return nil
	}

	prof, err := fm.ProfileByName(o.profile)
	if err != nil {
		return err
	}
	policy, err := pool.ParseOverflowPolicy(o.overflow)
	if err != nil {
		return err
	}
	be, err := audio.ParseBackend(o.backend)
	if err != nil {
		return err
	}
	if !(o.speed > 0) {
		return fmt.Errorf("invalid -speed %v (must be positive)", o.speed)
	}
	if o.wavPath != "" && o.portName != "" {
		return errors.New("-wav cannot be combined with -port")
	}

	pl, err := midifm.NewPlayer(
		midifm.WithProfile(prof),
		midifm.WithSampleRate(o.sampleRate),
		midifm.WithBlockSize(o.block),
		midifm.WithBackend(be),
		midifm.WithOverflowPolicy(policy),
		midifm.WithPolyphony(o.polyphony),
		midifm.WithDrain(o.drain),
		midifm.WithTranspose(o.transpose),
		midifm.WithLogger(logger),
		midifm.WithEffects(effectChain(o.limit, o.delay)),
	)
	if err != nil {
		return err
	}

	if o.wavPath != "" {
		return renderWAV(pl, o.filePath, o.speed, o.wavPath, logger)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	src, closeSrc, err := open(o.portName, o.filePath, o.speed, logger)
	if err != nil {
		return err
	}
	defer closeSrc()

	if err := pl.Play(ctx, src); err != nil {
		return err
	}
	stopStatus := startStatus(pl)
	err = pl.Wait()
	stopStatus()
	if err != nil {
		return err
	}
	st := pl.Stats()
	fmt.Printf("playback completed: %d notes, %d dropped\n", st.Started, st.Dropped)
	return nil
}

func effectChain(limit bool, delay time.Duration) func(int) (effects.Chain, error) {
	if !limit && delay <= 0 {
		return nil
	}
	return func(sr int) (effects.Chain, error) {
		var chain effects.Chain
		if delay > 0 {
			echo, err := effects.NewEcho(sr, delay, delay/4, 0.35, 0.25)
			if err != nil {
				return nil, err
			}
			chain = append(chain, echo)
		}
		if limit {
			chain = append(chain, effects.NewLimiter(sr, -3, -0.3, 80))
		}
		return chain, nil
	}
}

func openSource(port, file string, speed float64, logger *slog.Logger) (midifm.Source, func(), error) {
	switch {
	case strings.TrimSpace(port) != "":
		p, err := midisrc.OpenPort(port, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("listening", "port", p.Name())
		return p, func() {
			if n := p.Overflow(); n > 0 {
				logger.Warn("midi input overflowed", "dropped", n)
			}
			p.Close()
		}, nil
	case strings.TrimSpace(file) != "":
		list, err := midisrc.LoadFile(file)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("loaded", "file", file, "events", len(list.Events), "duration", list.Duration)
		return list.Source(speed), func() {}, nil
	default:
		return midisrc.Slice(demoEvents()...), func() {}, nil
	}
}

func renderWAV(pl *midifm.Player, file string, speed float64, out string, logger *slog.Logger) error {
	events := demoEvents()
	if strings.TrimSpace(file) != "" {
		list, err := midisrc.LoadFile(file)
		if err != nil {
			return err
		}
		events = list.Events
	}
	for i := range events {
		events[i].Wait = time.Duration(float64(events[i].Wait) / speed)
	}
	samples, err := pl.RenderOffline(events)
	if err != nil {
		return err
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := midifm.WriteWAV(f, samples, pl.SampleRate()); err != nil {
		return errors.Join(err, f.Close())
	}
	if err := f.Close(); err != nil {
		return err
	}
	logger.Info("wrote wav", "path", out, "frames", len(samples)/2)
	return nil
}

// startStatus prints a live voice count while stderr is a terminal.
func startStatus(pl *midifm.Player) func() {
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		return func() {}
	}
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				fmt.Fprint(os.Stderr, "\r\033[K")
				return
			case <-ticker.C:
				secs := float64(pl.FramesRendered()) / float64(pl.SampleRate())
				fmt.Fprintf(os.Stderr, "\rvoices %3d  %7.1fs", pl.ActiveVoices(), secs)
			}
		}
	}()
	return func() {
		close(done)
		<-finished
	}
}
