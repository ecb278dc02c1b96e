package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/url"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jinjor/polysynth/src/audio"
	"github.com/jinjor/polysynth/src/synth"
	"golang.org/x/sync/errgroup"
)

var (
	sockFileName = flag.String("sock", "/tmp/polysynth.sock", "unix socket for commands and reports")
	presetDir    = flag.String("presets", "presets", "preset directory")
	presetName   = flag.String("preset", "", "preset to load at startup")
	polyphony    = flag.Int("poly", synth.DefaultPolyphony, "number of voices (1-32)")
	keyMode      = flag.String("mode", "poly", "key mode: poly or choke")
	filterModel  = flag.String("filter", "biquad", "voice filter: biquad or ladder")
	midiIn       = flag.String("midi", "", "MIDI IN port name (substring); empty picks the first hardware port")
	noMidi       = flag.Bool("no-midi", false, "disable MIDI IN")
	scaleName    = flag.String("scale", "major", "scale for the 18-key layout")
	rootFreq     = flag.Float64("root", synth.NoteToFrequency(60), "frequency of the first key")
)

func main() {
	flag.Parse()
	log.SetFlags(log.Lshortfile)
	log.Printf("NumCPU: %v\n", runtime.NumCPU())

	ctx := context.Background()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a, err := newApp()
	if err != nil {
		log.Fatalf("error: %v\n", err)
	}
	pool := a.Pool()
	engine := a.Engine

	output, err := audio.NewOutput(engine)
	if err != nil {
		log.Fatalf("error: %v\n", err)
	}
	defer output.Close()
	pool.Initialize()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	defer func() {
		signal.Stop(signalCh)
		cancel()
	}()
	go func() {
		sig := <-signalCh
		log.Printf("Caught signal %s: shutting down...\n", sig)
		cancel()
	}()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return output.Start(ctx)
	})
	g.Go(func() error {
		return pool.Run(ctx)
	})
	if !*noMidi {
		g.Go(func() error {
			return audio.PlayMidi(ctx, a.Keyboard, audio.ListenToMidiIn(ctx, *midiIn))
		})
	}
	g.Go(func() error {
		// the session ends with the client
		defer cancel()
		return withIPCConnection(ctx, func(conn net.Conn) error {
			ctx, cancelConn := context.WithCancel(ctx)
			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				defer cancelConn()
				return receiveCommands(ctx, conn, a.Keyboard)
			})
			g.Go(func() error {
				return sendReports(ctx, conn, a)
			})
			return g.Wait()
		})
	})
	if err := g.Wait(); err != nil {
		log.Fatalf("error: %v\n", err)
	}
	log.Println("main() ended.")
}

type app struct {
	*synth.Keyboard
	Engine *audio.Engine
}

func newApp() (*app, error) {
	params := synth.DefaultVoiceParameters()
	if *presetName != "" {
		p, err := synth.NewPresetManager(*presetDir).Load(*presetName)
		if err != nil {
			return nil, err
		}
		params = p
		log.Printf("loaded preset %s\n", *presetName)
	}
	if *polyphony < 1 || *polyphony > synth.MaxPolyphony {
		return nil, fmt.Errorf("-poly should be between 1 and %d: %d", synth.MaxPolyphony, *polyphony)
	}
	mode, err := synth.KeyModeFromString(*keyMode)
	if err != nil {
		return nil, err
	}
	scale, err := synth.ScaleByName(*scaleName)
	if err != nil {
		return nil, err
	}
	model, err := audio.FilterModelFromString(*filterModel)
	if err != nil {
		return nil, err
	}
	engine := audio.NewEngine(audio.WithFilterModel(model))
	keyboard := synth.NewKeyboard(synth.NewPool(engine, params, *polyphony))
	keyboard.SetMode(mode)
	keyboard.ApplyScale(scale.Frequencies(*rootFreq, synth.NumKeys))
	return &app{Keyboard: keyboard, Engine: engine}, nil
}

func withIPCConnection(ctx context.Context, f func(net.Conn) error) error {
	os.Remove(*sockFileName)
	listener, err := new(net.ListenConfig).Listen(ctx, "unix", *sockFileName)
	if err != nil {
		return err
	}
	defer func() {
		log.Println("Closing IPC...")
		err := listener.Close()
		if err != nil {
			log.Printf("error while closing listener: %v", err)
		}
		os.Remove(*sockFileName)
	}()
	go func() {
		<-ctx.Done()
		listener.Close()
	}()
	log.Printf("start listening on %s...\n", *sockFileName)
	conn, err := listener.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	defer func() {
		err := conn.Close()
		if err != nil {
			log.Printf("error while closing connection: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		conn.SetReadDeadline(time.Now())
	}()
	return f(conn)
}

func receiveCommands(ctx context.Context, conn net.Conn, keyboard *synth.Keyboard) error {
	reader := bufio.NewReader(conn)
	var line []byte
loop:
	for {
		select {
		case <-ctx.Done():
			log.Println("Connection interrupted")
			break loop
		default:
		}
		next, isPrefix, err := reader.ReadLine()
		if err == io.EOF {
			break loop
		}
		if err != nil {
			if ctx.Err() != nil {
				break loop
			}
			return err
		}
		line = append(line, next...)
		if isPrefix {
			continue
		}
		command, err := parseCommand(string(line))
		if err != nil {
			return err
		}
		log.Printf("received: %s\n", string(line))
		if err := keyboard.Update(command); err != nil {
			log.Printf("failed to apply %v: %v\n", command, err)
		}
		line = []byte{}
	}
	log.Println("receiveCommands() ended.")
	return nil
}

func parseCommand(line string) ([]string, error) {
	lineStr := strings.Split(strings.TrimSpace(line), " ")
	for i, item := range lineStr {
		escaped, err := url.QueryUnescape(item)
		if err != nil {
			return nil, err
		}
		lineStr[i] = escaped
	}
	return lineStr, nil
}

func formatVoices(voices []synth.VoiceStatus) string {
	s := "voices"
	for _, v := range voices {
		busy := 1
		if v.Available {
			busy = 0
		}
		s += fmt.Sprintf(" %d:%d:%s:%s", v.ID, busy,
			strconv.FormatFloat(v.Frequency, 'f', 2, 64),
			strconv.FormatFloat(v.Cutoff, 'f', 2, 64))
	}
	return s
}

func formatValues(name string, values []float64) string {
	s := name
	for _, value := range values {
		s += " " + strconv.FormatFloat(value, 'f', 6, 64)
	}
	return s
}

func sendReports(ctx context.Context, conn net.Conn, a *app) error {
	t := time.NewTicker(time.Second / 60)
	defer t.Stop()
	var lastFilter synth.FilterParameters
loop:
	for {
		select {
		case <-ctx.Done():
			log.Println("sendReports() interrupted")
			break loop
		case <-t.C:
			lines := []string{
				formatVoices(a.Pool().Voices()),
				formatValues("fft", a.Engine.GetFFT()),
			}
			if f := a.Parameters().Filter; f != lastFilter {
				lastFilter = f
				lines = append(lines, formatValues("filter_shape", a.Engine.FilterShape(f)))
			}
			for _, s := range lines {
				if _, err := conn.Write([]byte(s + "\n")); err != nil {
					if ctx.Err() != nil {
						break loop
					}
					return err
				}
			}
		}
	}
	log.Println("sendReports() ended.")
	return nil
}
