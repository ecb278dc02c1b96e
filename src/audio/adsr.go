package audio

import (
	"github.com/jinjor/polysynth/src/synth"
)

const (
	phaseNone = iota
	phaseAttack
	phaseDecay
	phaseSustain
	phaseRelease
)

// ----- ADSR ----- //

/*
  1 +     x
    |    / \
    |   /   \
  s +  /     x------x
    | /              \
    |/                \
  0 +-----+--+------+--+---
    |a    |d |      |r |
*/
// Release is linear so the voice is silent exactly when its release time ends
// and the pool hands it out again.
type adsr struct {
	engine  *Engine
	input   synth.Node
	attack  float64 // sec
	decay   float64 // sec, time constant
	sustain float64 // 0-1
	release float64 // sec
	value   transitiveValue
	phase   int
}

func newADSR(e *Engine, input synth.Node, p synth.EnvelopeParameters) *adsr {
	a := &adsr{
		engine: e,
		input:  input,
	}
	a.setParams(p)
	a.value.init(0)
	return a
}

func (a *adsr) setParams(p synth.EnvelopeParameters) {
	a.attack = p.Attack
	a.decay = p.Decay
	a.sustain = clamp(p.Sustain, 0, 1)
	a.release = p.Release
}

// SetParameters applies to the next stage change; a running stage keeps its timing.
func (a *adsr) SetParameters(p synth.EnvelopeParameters) {
	a.engine.mu.Lock()
	defer a.engine.mu.Unlock()
	a.setParams(p)
	if a.phase == phaseSustain {
		a.value.init(a.sustain)
	}
}

func (a *adsr) Reset() {
	a.engine.mu.Lock()
	defer a.engine.mu.Unlock()
	a.phase = phaseNone
	a.value.init(0)
}

func (a *adsr) OpenGate() {
	a.engine.mu.Lock()
	defer a.engine.mu.Unlock()
	a.phase = phaseAttack
	a.value.linear(a.attack, 1)
}

func (a *adsr) CloseGate() {
	a.engine.mu.Lock()
	defer a.engine.mu.Unlock()
	a.phase = phaseRelease
	a.value.linear(a.release, 0)
}

func (a *adsr) step() float64 {
	switch a.phase {
	case phaseAttack:
		if a.value.step() || !a.value.transitioning() {
			a.phase = phaseDecay
			a.value.exponential(a.decay, a.sustain, 0.001)
		}
	case phaseDecay:
		if a.value.step() || !a.value.transitioning() {
			a.phase = phaseSustain
		}
	case phaseSustain:
	case phaseRelease:
		if a.value.step() || !a.value.transitioning() {
			a.phase = phaseNone
		}
	default:
	}
	return a.value.value
}

func (a *adsr) Tick() (float64, float64) {
	l, r := a.input.Tick()
	g := a.step()
	return l * g, r * g
}
