package audio

import (
	"context"
	"io"
	"math"
	"testing"

	"github.com/jinjor/polysynth/src/synth"
)

type constNode struct {
	left  float64
	right float64
}

func (c *constNode) Tick() (float64, float64) {
	return c.left, c.right
}

func sineParams() synth.OscillatorParameters {
	return synth.OscillatorParameters{
		Waveform:             synth.WaveSine,
		CarrierMultiplier:    1,
		ModulatingMultiplier: 1,
		Amplitude:            1,
	}
}

func readFrame(buf []byte, i int) (int16, int16) {
	l := int16(uint16(buf[4*i]) | uint16(buf[4*i+1])<<8)
	r := int16(uint16(buf[4*i+2]) | uint16(buf[4*i+3])<<8)
	return l, r
}

func peak(buf []byte) int {
	max := 0
	for i := 0; i < len(buf)/bytesPerSample; i++ {
		l, r := readFrame(buf, i)
		for _, v := range []int16{l, r} {
			a := int(v)
			if a < 0 {
				a = -a
			}
			if a > max {
				max = a
			}
		}
	}
	return max
}

func TestEngineSilentWithoutNodes(t *testing.T) {
	e := NewEngine()
	buf := make([]byte, bufferSizeInBytes)
	n, err := e.Read(buf)
	expectNoError(t, err)
	expectEqual(t, n, len(buf))
	expectEqual(t, peak(buf), 0)
}

func TestEngineWritesInterleavedFrames(t *testing.T) {
	e := NewEngine()
	e.Connect(&constNode{left: 1, right: -2})
	buf := make([]byte, 8*bytesPerSample)
	_, err := e.Read(buf)
	expectNoError(t, err)
	l, r := readFrame(buf, 3)
	gain := masterGain * 32767.0
	expectEqual(t, l, int16(gain))
	expectEqual(t, r, int16(-2*gain))
}

func TestEngineClipsOutput(t *testing.T) {
	e := NewEngine()
	e.Connect(&constNode{left: 100, right: -100})
	buf := make([]byte, bytesPerSample)
	e.Read(buf)
	l, r := readFrame(buf, 0)
	expectEqual(t, l, int16(32767))
	expectEqual(t, r, int16(-32767))
}

func TestEngineConnectAndDisconnect(t *testing.T) {
	e := NewEngine()
	o := e.CreateOscillator(sineParams(), 440)
	o.Start()
	e.Connect(o)
	e.Connect(o)
	expectEqual(t, e.Connected(), 1)
	buf := make([]byte, bufferSizeInBytes)
	e.Read(buf)
	if peak(buf) == 0 {
		t.Fatalf("expected sound from a connected oscillator")
	}
	e.Disconnect(o)
	expectEqual(t, e.Connected(), 0)
	e.Read(buf)
	expectEqual(t, peak(buf), 0)
}

func TestEngineSpectrumPeak(t *testing.T) {
	e := NewEngine()
	// 1500 Hz sits exactly on bin 64 for 2048 points at 48 kHz
	o := e.CreateOscillator(sineParams(), 1500)
	o.Start()
	e.Connect(o)
	e.Read(make([]byte, fftSize*bytesPerSample))
	spectrum := e.GetFFT()
	expectEqual(t, len(spectrum), fftSize/2)
	best := 1
	for i := 1; i < len(spectrum); i++ {
		if spectrum[i] > spectrum[best] {
			best = i
		}
	}
	expectEqual(t, best, 64)
}

func TestStreamEndsWhenCancelled(t *testing.T) {
	e := NewEngine()
	ctx, cancel := context.WithCancel(context.Background())
	r := e.Stream(ctx)
	buf := make([]byte, bufferSizeInBytes)
	_, err := r.Read(buf)
	expectNoError(t, err)
	cancel()
	_, err = r.Read(buf)
	expectEqual(t, err, io.EOF)
}

func TestEnginePlaysPoolVoice(t *testing.T) {
	e := NewEngine()
	params := synth.DefaultVoiceParameters()
	p := synth.NewPool(e, params, 2)
	p.Initialize()
	expectEqual(t, e.Connected(), 2)
	defer p.Close()

	buf := make([]byte, bufferSizeInBytes)
	e.Read(buf)
	expectEqual(t, peak(buf), 0)

	h := p.Acquire(440)
	e.Read(buf)
	if peak(buf) == 0 {
		t.Fatalf("expected a triggered voice to sound")
	}
	p.Release(h)
	// render past the release time
	release := int(math.Ceil(params.Envelope.Release*sampleRate)) + samplesPerCycle
	e.Read(make([]byte, release*bytesPerSample))
	e.Read(buf)
	expectEqual(t, peak(buf), 0)
}
