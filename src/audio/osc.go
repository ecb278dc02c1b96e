package audio

import (
	"math"
	"math/rand"

	"github.com/jinjor/polysynth/src/synth"
)

// ----- OSC ----- //

// osc is a two-operator FM oscillator: a sine modulator running at
// freq*modulatingMultiplier bends the phase of a carrier at freq*carrierMultiplier.
type osc struct {
	engine               *Engine
	kind                 synth.Waveform
	running              bool
	freq                 transitiveValue
	rampDuration         float64 // sec
	level                float64
	carrierMultiplier    float64
	modulatingMultiplier float64
	modulationIndex      float64
	phase                float64
	modPhase             float64
}

func newOsc(e *Engine, p synth.OscillatorParameters, baseFrequency float64) *osc {
	if p.Waveform == synth.WaveSquare || p.Waveform == synth.WaveSaw {
		loadWavetables()
	}
	o := &osc{
		engine:               e,
		kind:                 p.Waveform,
		level:                p.Amplitude,
		carrierMultiplier:    p.CarrierMultiplier,
		modulatingMultiplier: p.ModulatingMultiplier,
		modulationIndex:      p.ModulationIndex,
	}
	o.freq.init(baseFrequency)
	return o
}

func (o *osc) Start() {
	o.engine.mu.Lock()
	defer o.engine.mu.Unlock()
	o.running = true
	o.phase = rand.Float64() * 2.0 * math.Pi
	o.modPhase = 0
}

func (o *osc) Stop() {
	o.engine.mu.Lock()
	defer o.engine.mu.Unlock()
	o.running = false
}

// SetFrequency glides to hz over rampSeconds, or over the default ramp
// duration when rampSeconds is not positive.
func (o *osc) SetFrequency(hz float64, rampSeconds float64) {
	o.engine.mu.Lock()
	defer o.engine.mu.Unlock()
	if rampSeconds <= 0 {
		rampSeconds = o.rampDuration
	}
	o.freq.linear(rampSeconds, hz)
}

func (o *osc) SetAmplitude(v float64) {
	o.engine.mu.Lock()
	defer o.engine.mu.Unlock()
	o.level = v
}

func (o *osc) SetRampDuration(seconds float64) {
	o.engine.mu.Lock()
	defer o.engine.mu.Unlock()
	o.rampDuration = math.Max(seconds, 0)
}

func (o *osc) SetModulation(carrierMultiplier, modulatingMultiplier, modulationIndex float64) {
	o.engine.mu.Lock()
	defer o.engine.mu.Unlock()
	o.carrierMultiplier = carrierMultiplier
	o.modulatingMultiplier = modulatingMultiplier
	o.modulationIndex = modulationIndex
}

func (o *osc) step() float64 {
	if !o.running {
		return 0.0
	}
	o.freq.step()
	freq := o.freq.value * o.carrierMultiplier
	phase := o.phase
	if o.modulationIndex != 0 {
		phase += o.modulationIndex * math.Sin(o.modPhase)
	}
	value := 0.0
	switch o.kind {
	case synth.WaveSine:
		value = math.Sin(phase)
	case synth.WaveTriangle:
		p := positiveMod(phase/(2.0*math.Pi), 1)
		if p < 0.5 {
			value = p*4 - 1
		} else {
			value = p*(-4) + 3
		}
	case synth.WaveSquare:
		value = blsquareWT.getAtNote(freqToNote(freq), phase)
	case synth.WaveSaw:
		value = blsawWT.getAtNote(freqToNote(freq), phase)
	}
	o.phase = math.Mod(o.phase+2.0*math.Pi*freq*secPerSample, 2.0*math.Pi)
	o.modPhase = math.Mod(o.modPhase+2.0*math.Pi*o.freq.value*o.modulatingMultiplier*secPerSample, 2.0*math.Pi)
	return value * o.level
}

func (o *osc) Tick() (float64, float64) {
	v := o.step()
	return v, v
}
