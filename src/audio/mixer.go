package audio

import (
	"math"

	"github.com/jinjor/polysynth/src/synth"
)

// ----- Panner ----- //

// panner folds its input to mono and places it with an equal-power law,
// -1 is hard left and +1 hard right.
type panner struct {
	input synth.Node
	gainL float64
	gainR float64
}

func newPanner(input synth.Node, pan float64) *panner {
	p := &panner{input: input}
	p.setPan(pan)
	return p
}

func (p *panner) setPan(pan float64) {
	theta := (clamp(pan, -1, 1) + 1) * math.Pi / 4
	p.gainL = math.Cos(theta)
	p.gainR = math.Sin(theta)
	// exact silence on the far side
	if pan <= -1 {
		p.gainR = 0
	}
	if pan >= 1 {
		p.gainL = 0
	}
}

func (p *panner) Tick() (float64, float64) {
	l, r := p.input.Tick()
	m := (l + r) / 2
	return m * p.gainL, m * p.gainR
}

// ----- Mixer ----- //

type mixer struct {
	inputs []synth.Node
}

func newMixer(inputs ...synth.Node) *mixer {
	return &mixer{
		inputs: append([]synth.Node(nil), inputs...),
	}
}

func (m *mixer) Tick() (float64, float64) {
	left, right := 0.0, 0.0
	for _, n := range m.inputs {
		l, r := n.Tick()
		left += l
		right += r
	}
	return left, right
}
