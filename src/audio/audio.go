package audio

import (
	"context"
	"io"
	"log"
	"math"
	"sync"

	"github.com/cwbudde/algo-dsp/dsp/window"
	"github.com/jinjor/polysynth/src/synth"
)

const (
	sampleRate      = 48000
	channelNum      = 2
	bitDepthInBytes = 2
	samplesPerCycle = 1024
	fftSize         = 2048
)
const bytesPerSample = bitDepthInBytes * channelNum
const bufferSizeInBytes = samplesPerCycle * bytesPerSample // should be >= 4096
const secPerSample = 1.0 / sampleRate
const masterGain = 0.25

// ----- Utility ----- //

func positiveMod(a float64, b float64) float64 {
	if b < 0 {
		panic("b should not be negative")
	}
	for a < 0 {
		a += b
	}
	return math.Mod(a, b)
}
func freqToNote(freq float64) int {
	if freq <= 0 {
		return 0
	}
	note := int(math.Log2(freq/440)*12.0) + 69
	if note < 0 {
		note = 0
	}
	if note >= 128 {
		note = 127
	}
	return note
}
func clamp(value float64, min float64, max float64) float64 {
	return math.Max(min, math.Min(max, value))
}

// ----- Engine ----- //

// Engine is a software synth.Backend. Nodes it creates are pulled one frame at a
// time by Read; every setter on those nodes takes the engine lock so control
// goroutines never race the renderer.
type Engine struct {
	mu          sync.Mutex
	filterModel FilterModel
	outputs     []synth.Node
	out         []float64 // mono mix ring, length: fftSize
	pos         int64
	fftResult   []float64
	fft         *FFT
	hann        []float64
}

var _ io.Reader = (*Engine)(nil)
var _ synth.Backend = (*Engine)(nil)

// EngineOption ...
type EngineOption func(*Engine)

// WithFilterModel selects the low-pass used by CreateFilter. The default is
// FilterBiquad.
func WithFilterModel(m FilterModel) EngineOption {
	return func(e *Engine) {
		e.filterModel = m
	}
}

// NewEngine ...
func NewEngine(opts ...EngineOption) *Engine {
	hann, err := window.Hann(fftSize, window.WithPeriodic())
	if err != nil {
		log.Panicf("failed to make window: %v", err)
	}
	e := &Engine{
		filterModel: FilterBiquad,
		out:         make([]float64, fftSize),
		fftResult:   make([]float64, fftSize),
		fft:         NewFFT(fftSize, false),
		hann:        hann,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FilterModel ...
func (e *Engine) FilterModel() FilterModel {
	return e.filterModel
}

// Connect routes n to the output.
func (e *Engine) Connect(n synth.Node) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, o := range e.outputs {
		if o == n {
			return
		}
	}
	e.outputs = append(e.outputs, n)
}

// Disconnect ...
func (e *Engine) Disconnect(n synth.Node) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, o := range e.outputs {
		if o == n {
			e.outputs = append(e.outputs[:i], e.outputs[i+1:]...)
			return
		}
	}
}

// Connected returns the number of nodes routed to the output.
func (e *Engine) Connected() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.outputs)
}

// CreateOscillator ...
func (e *Engine) CreateOscillator(p synth.OscillatorParameters, baseFrequency float64) synth.Oscillator {
	return newOsc(e, p, baseFrequency)
}

// CreateFilter ...
func (e *Engine) CreateFilter(input synth.Node, cutoff float64, resonance float64) synth.Filter {
	if e.filterModel == FilterLadder {
		return newLadder(e, input, cutoff, resonance)
	}
	return newLowpass(e, input, cutoff, resonance)
}

// CreateEnvelope ...
func (e *Engine) CreateEnvelope(input synth.Node, p synth.EnvelopeParameters) synth.Envelope {
	return newADSR(e, input, p)
}

// CreatePanner ...
func (e *Engine) CreatePanner(input synth.Node, pan float64) synth.Panner {
	return newPanner(input, pan)
}

// CreateMixer ...
func (e *Engine) CreateMixer(inputs ...synth.Node) synth.Mixer {
	return newMixer(inputs...)
}

// Read renders len(buf)/4 frames of interleaved 16-bit little-endian stereo.
func (e *Engine) Read(buf []byte) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	frames := len(buf) / bytesPerSample
	for i := 0; i < frames; i++ {
		left, right := 0.0, 0.0
		for _, n := range e.outputs {
			l, r := n.Tick()
			left += l
			right += r
		}
		left = clamp(left*masterGain, -1, 1)
		right = clamp(right*masterGain, -1, 1)
		writeFrame(buf, i, left, right)
		e.out[e.pos%fftSize] = (left + right) / 2
		e.pos++
	}
	return frames * bytesPerSample, nil
}

func writeFrame(buf []byte, i int, left float64, right float64) {
	for ch, value := range [channelNum]float64{left, right} {
		const max = 32767
		b := int16(value * max)
		buf[bytesPerSample*i+2*ch] = byte(b)
		buf[bytesPerSample*i+2*ch+1] = byte(b >> 8)
	}
}

// Stream returns a reader over the engine that ends once ctx is done.
func (e *Engine) Stream(ctx context.Context) io.Reader {
	return &streamReader{ctx: ctx, engine: e}
}

type streamReader struct {
	ctx    context.Context
	engine *Engine
}

func (s *streamReader) Read(buf []byte) (int, error) {
	select {
	case <-s.ctx.Done():
		log.Println("Read() interrupted.")
		return 0, io.EOF
	default:
		return s.engine.Read(buf)
	}
}

// GetFFT returns the magnitude spectrum of the last fftSize output samples.
func (e *Engine) GetFFT() []float64 {
	e.mu.Lock()
	// out:       | 4 | 1 | 2 | 3 |
	// offset:        ^
	// fftResult: | 1 | 2 | 3 | 4 |
	// return:    |<----->|
	offset := e.pos % fftSize
	copy(e.fftResult, e.out[offset:])
	copy(e.fftResult[fftSize-offset:], e.out[:offset])
	result := make([]float64, fftSize)
	copy(result, e.fftResult)
	e.mu.Unlock()
	if err := window.ApplyCoefficientsInPlace(result, e.hann); err != nil {
		log.Panicf("failed to apply window: %v", err)
	}
	e.fft.CalcAbs(result)
	for i, value := range result {
		result[i] = value * 2 / fftSize
	}
	return result[:fftSize/2]
}
