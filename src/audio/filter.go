package audio

import (
	"fmt"
	"log"
	"math"

	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
	"github.com/cwbudde/algo-dsp/dsp/filter/design"
	"github.com/cwbudde/algo-dsp/dsp/filter/moog"
	"github.com/jinjor/polysynth/src/synth"
)

const (
	minCutoff    = 10.0
	maxCutoff    = sampleRate * 0.45
	minResonance = 0.1
	// the ladder self-oscillates at 4
	maxLadderFeedback = 3.9
)

// ----- Filter Model ----- //

// FilterModel selects the low-pass the engine builds for every voice.
type FilterModel int

const (
	// FilterBiquad is a 12 dB/oct RBJ low-pass.
	FilterBiquad FilterModel = iota
	// FilterLadder is a nonlinear 24 dB/oct Moog ladder.
	FilterLadder
)

func (m FilterModel) String() string {
	switch m {
	case FilterBiquad:
		return "biquad"
	case FilterLadder:
		return "ladder"
	}
	return "unknown"
}

// FilterModelFromString ...
func FilterModelFromString(s string) (FilterModel, error) {
	switch s {
	case "biquad":
		return FilterBiquad, nil
	case "ladder", "moog":
		return FilterLadder, nil
	}
	return FilterBiquad, fmt.Errorf("unknown filter model %q", s)
}

func lowpassCoefficients(cutoff float64, q float64) biquad.Coefficients {
	return design.Lowpass(clamp(cutoff, minCutoff, maxCutoff), math.Max(q, minResonance), sampleRate)
}

// ----- Lowpass ----- //

// lowpass is a resonant biquad with independent state per channel.
type lowpass struct {
	engine    *Engine
	input     synth.Node
	cutoff    float64
	resonance float64
	left      *biquad.Section
	right     *biquad.Section
}

func newLowpass(e *Engine, input synth.Node, cutoff float64, resonance float64) *lowpass {
	c := lowpassCoefficients(cutoff, resonance)
	return &lowpass{
		engine:    e,
		input:     input,
		cutoff:    cutoff,
		resonance: resonance,
		left:      biquad.NewSection(c),
		right:     biquad.NewSection(c),
	}
}

func (f *lowpass) updateH() {
	c := lowpassCoefficients(f.cutoff, f.resonance)
	f.left.Coefficients = c
	f.right.Coefficients = c
}

func (f *lowpass) SetCutoff(hz float64) {
	f.engine.mu.Lock()
	defer f.engine.mu.Unlock()
	f.cutoff = hz
	f.updateH()
}

func (f *lowpass) SetResonance(v float64) {
	f.engine.mu.Lock()
	defer f.engine.mu.Unlock()
	f.resonance = v
	f.updateH()
}

func (f *lowpass) Tick() (float64, float64) {
	l, r := f.input.Tick()
	return f.left.ProcessSample(l), f.right.ProcessSample(r)
}

// ----- Ladder ----- //

// ladderFeedback maps a biquad-style Q onto the ladder's feedback amount, so
// that both models read the same parameters. Q 0.5 is flat.
func ladderFeedback(q float64) float64 {
	q = math.Max(q, minResonance)
	return clamp(4*(1-1/(2*q)), 0, maxLadderFeedback)
}

func ladderOptions(cutoff float64, q float64) []moog.Option {
	return []moog.Option{
		moog.WithCutoffHz(clamp(cutoff, minCutoff, maxCutoff)),
		moog.WithResonance(ladderFeedback(q)),
	}
}

type ladder struct {
	engine    *Engine
	input     synth.Node
	cutoff    float64
	resonance float64
	stereo    *moog.Stereo
}

func newLadder(e *Engine, input synth.Node, cutoff float64, resonance float64) *ladder {
	stereo, err := moog.NewStereo(sampleRate, ladderOptions(cutoff, resonance)...)
	if err != nil {
		log.Panicf("failed to create ladder filter: %v", err)
	}
	return &ladder{
		engine:    e,
		input:     input,
		cutoff:    cutoff,
		resonance: resonance,
		stereo:    stereo,
	}
}

func (f *ladder) update() {
	for _, ch := range []*moog.Filter{f.stereo.Left(), f.stereo.Right()} {
		if err := ch.SetCutoffHz(clamp(f.cutoff, minCutoff, maxCutoff)); err != nil {
			log.Printf("failed to set ladder cutoff: %v\n", err)
		}
		if err := ch.SetResonance(ladderFeedback(f.resonance)); err != nil {
			log.Printf("failed to set ladder resonance: %v\n", err)
		}
	}
}

func (f *ladder) SetCutoff(hz float64) {
	f.engine.mu.Lock()
	defer f.engine.mu.Unlock()
	f.cutoff = hz
	f.update()
}

func (f *ladder) SetResonance(v float64) {
	f.engine.mu.Lock()
	defer f.engine.mu.Unlock()
	f.resonance = v
	f.update()
}

func (f *ladder) Tick() (float64, float64) {
	l, r := f.input.Tick()
	return f.stereo.ProcessSample(l, r)
}

// ----- Filter Shape ----- //

// FilterShape returns the magnitude response of the engine's low-pass for p
// at the centers of the fftSize/2 spectrum bins.
func (e *Engine) FilterShape(p synth.FilterParameters) []float64 {
	if e.filterModel == FilterLadder {
		return ladderShape(p)
	}
	c := lowpassCoefficients(p.CutoffFrequency, p.Resonance)
	shape := make([]float64, fftSize/2)
	for i := range shape {
		shape[i] = math.Sqrt(c.MagnitudeSquared(float64(i)*sampleRate/fftSize, sampleRate))
	}
	return shape
}

// ladderShape measures the ladder from a small impulse, where it is close to
// linear.
func ladderShape(p synth.FilterParameters) []float64 {
	const impulse = 1e-3
	f, err := moog.New(sampleRate, ladderOptions(p.CutoffFrequency, p.Resonance)...)
	if err != nil {
		log.Panicf("failed to create ladder filter: %v", err)
	}
	h := make([]float64, fftSize)
	in := impulse
	for i := range h {
		h[i] = f.ProcessSample(in) / impulse
		in = 0
	}
	NewFFT(fftSize, false).CalcAbs(h)
	return h[:fftSize/2]
}
