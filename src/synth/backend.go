package synth

// ----- Backend ----- //

// Node is anything that yields one stereo frame per tick.
type Node interface {
	Tick() (left float64, right float64)
}

// Oscillator ...
type Oscillator interface {
	Node
	Start()
	Stop()
	SetFrequency(hz float64, rampSeconds float64)
	SetAmplitude(v float64)
	SetRampDuration(seconds float64)
	SetModulation(carrierMultiplier, modulatingMultiplier, modulationIndex float64)
}

// Filter is a resonant low-pass filter.
type Filter interface {
	Node
	SetCutoff(hz float64)
	SetResonance(v float64)
}

// Envelope is an ADSR amplitude envelope.
type Envelope interface {
	Node
	Reset()
	OpenGate()
	CloseGate()
	SetParameters(p EnvelopeParameters)
}

// Panner places its input in the stereo field at a fixed position.
type Panner interface {
	Node
}

// Mixer sums the inputs it was created with.
type Mixer interface {
	Node
}

// Backend creates signal nodes and routes them to the output.
type Backend interface {
	CreateOscillator(p OscillatorParameters, baseFrequency float64) Oscillator
	CreateFilter(input Node, cutoff float64, resonance float64) Filter
	CreateEnvelope(input Node, p EnvelopeParameters) Envelope
	CreatePanner(input Node, pan float64) Panner
	CreateMixer(inputs ...Node) Mixer
	Connect(n Node)
	Disconnect(n Node)
}
