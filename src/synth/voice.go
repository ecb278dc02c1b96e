package synth

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrWaveformChange is returned when a live voice is asked to switch waveform.
// The voice has to be rebuilt instead.
var ErrWaveformChange = errors.New("waveform cannot change on a live voice")

const defaultFrequency = 440.0

// ----- Voice ----- //

/*
  osc(left)  -> pan(-1) -+
                         +-> mixer -> low-pass -> envelope -> out
  osc(right) -> pan(+1) -+
*/

// Voice is one playable note: two detuned oscillators panned hard left and
// right, summed, filtered and enveloped.
type Voice struct {
	mu sync.Mutex

	id       int
	backend  Backend
	params   VoiceParameters
	left     Oscillator
	right    Oscillator
	leftPan  Panner
	rightPan Panner
	mixer    Mixer
	filter   Filter
	envelope Envelope

	available        bool
	initialized      bool
	currentFrequency float64
	cutoff           float64
	triggerTime      time.Time
	generation       uint64
	releasedFrom     uint64 // generation the last release ended

	detuneMode  DetuneMode
	offsetRatio float64 // >= 1
	offsetHz    float64 // >= 0
}

// VoiceStatus is a point-in-time copy of a voice's lifecycle state.
type VoiceStatus struct {
	ID          int
	Available   bool
	Frequency   float64
	Cutoff      float64
	TriggerTime time.Time
}

func newVoice(id int, backend Backend, params VoiceParameters) *Voice {
	v := &Voice{
		id:               id,
		backend:          backend,
		params:           params.Clone(),
		available:        true,
		currentFrequency: defaultFrequency,
		cutoff:           params.Filter.CutoffFrequency,
		detuneMode:       DetuneProportional,
		offsetRatio:      1,
	}
	v.build()
	return v
}

func (v *Voice) build() {
	p := v.params
	v.left = v.backend.CreateOscillator(p.Oscillator, v.currentFrequency)
	v.right = v.backend.CreateOscillator(p.Oscillator, v.currentFrequency)
	v.leftPan = v.backend.CreatePanner(v.left, -1)
	v.rightPan = v.backend.CreatePanner(v.right, 1)
	v.mixer = v.backend.CreateMixer(v.leftPan, v.rightPan)
	v.filter = v.backend.CreateFilter(v.mixer, p.Filter.CutoffFrequency, p.Filter.Resonance)
	v.envelope = v.backend.CreateEnvelope(v.filter, p.Envelope)
	v.backend.Connect(v.envelope)
	v.cutoff = p.Filter.CutoffFrequency
}

// rebuild replaces the whole signal chain, used for waveform changes. The
// voice is cut and becomes available.
func (v *Voice) rebuild(params VoiceParameters) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.backend.Disconnect(v.envelope)
	v.left.Stop()
	v.right.Stop()
	v.params = params.Clone()
	v.build()
	v.available = true
	v.generation++
	if v.initialized {
		v.initialized = false
		v.initializeLocked()
	}
}

// ID ...
func (v *Voice) ID() int {
	return v.id
}

// Initialize starts the oscillators. It must be called once the backend is
// running; later calls are no-ops.
func (v *Voice) Initialize() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.initializeLocked()
}

func (v *Voice) initializeLocked() {
	if v.initialized {
		return
	}
	// frequency changes are instantaneous: no portamento
	v.left.SetRampDuration(0)
	v.right.SetRampDuration(0)
	v.left.Start()
	v.right.Start()
	v.initialized = true
	v.applyFrequencyLocked()
}

// SetFrequency stores the note frequency and retunes both oscillators.
func (v *Voice) SetFrequency(freq float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.currentFrequency = freq
	v.applyFrequencyLocked()
}

// Frequency ...
func (v *Voice) Frequency() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.currentFrequency
}

// StereoFrequencies returns the left and right oscillator frequencies for the
// current note.
func (v *Voice) StereoFrequencies() (float64, float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stereoFrequenciesLocked()
}

func (v *Voice) stereoFrequenciesLocked() (float64, float64) {
	return DetunedFrequencies(v.currentFrequency, v.detuneMode, v.offsetRatio, v.offsetHz)
}

func (v *Voice) applyFrequencyLocked() {
	if !v.initialized {
		return
	}
	l, r := v.stereoFrequenciesLocked()
	v.left.SetFrequency(l, 0)
	v.right.SetFrequency(r, 0)
}

// DetunedFrequencies spreads freq into a left/right pair.
func DetunedFrequencies(freq float64, mode DetuneMode, ratio float64, hz float64) (float64, float64) {
	switch mode {
	case DetuneConstant:
		return freq + hz, freq - hz
	default:
		return freq * ratio, freq / ratio
	}
}

// SetDetuneMode ...
func (v *Voice) SetDetuneMode(mode DetuneMode) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.detuneMode = mode
	v.applyFrequencyLocked()
}

// SetFrequencyOffsetRatio sets the proportional spread; values below 1 are
// treated as 1.
func (v *Voice) SetFrequencyOffsetRatio(ratio float64) {
	if ratio < 1 {
		ratio = 1
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.offsetRatio = ratio
	v.applyFrequencyLocked()
}

// SetFrequencyOffsetHz sets the constant spread; negative values are treated
// as 0.
func (v *Voice) SetFrequencyOffsetHz(hz float64) {
	if hz < 0 {
		hz = 0
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.offsetHz = hz
	v.applyFrequencyLocked()
}

// Trigger restarts the envelope from zero, puts the cutoff back to the
// template and marks the voice busy. It panics if the voice was never
// initialized.
func (v *Voice) Trigger(now time.Time) uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.initialized {
		panic(fmt.Sprintf("voice %d triggered before Initialize", v.id))
	}
	v.cutoff = v.params.Filter.CutoffFrequency
	v.filter.SetCutoff(v.cutoff)
	v.envelope.Reset()
	v.envelope.OpenGate()
	v.available = false
	v.triggerTime = now
	v.generation++
	return v.generation
}

// Release closes the gate. The returned generation must be handed back to
// CompleteRelease once the release duration has elapsed.
func (v *Voice) Release() (uint64, time.Duration) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.releaseLocked()
}

// releaseIfCurrent releases only when nothing happened to the voice since the
// trigger that produced generation.
func (v *Voice) releaseIfCurrent(generation uint64) (uint64, time.Duration, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.generation != generation {
		return 0, 0, false
	}
	gen, d := v.releaseLocked()
	return gen, d, true
}

func (v *Voice) releaseLocked() (uint64, time.Duration) {
	v.envelope.CloseGate()
	v.releasedFrom = v.generation
	v.generation++
	return v.generation, secondsToDuration(v.params.Envelope.Release)
}

// CompleteRelease marks the voice available unless it was triggered (or
// released again) after the release that produced generation.
func (v *Voice) CompleteRelease(generation uint64) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.generation != generation {
		return false
	}
	v.available = true
	return true
}

// IsAvailable ...
func (v *Voice) IsAvailable() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.available
}

// TriggerTime ...
func (v *Voice) TriggerTime() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.triggerTime
}

// ReleaseDuration ...
func (v *Voice) ReleaseDuration() time.Duration {
	v.mu.Lock()
	defer v.mu.Unlock()
	return secondsToDuration(v.params.Envelope.Release)
}

// Status ...
func (v *Voice) Status() VoiceStatus {
	v.mu.Lock()
	defer v.mu.Unlock()
	return VoiceStatus{
		ID:          v.id,
		Available:   v.available,
		Frequency:   v.currentFrequency,
		Cutoff:      v.cutoff,
		TriggerTime: v.triggerTime,
	}
}

// UpdateOscillatorParameters applies amplitude and FM settings live. Changing
// the waveform is rejected with ErrWaveformChange.
func (v *Voice) UpdateOscillatorParameters(p OscillatorParameters) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if p.Waveform != v.params.Oscillator.Waveform {
		return ErrWaveformChange
	}
	for _, o := range []Oscillator{v.left, v.right} {
		o.SetAmplitude(p.Amplitude)
		o.SetModulation(p.CarrierMultiplier, p.ModulatingMultiplier, p.ModulationIndex)
	}
	v.params.Oscillator = p
	return nil
}

// UpdateFilterParameters ...
func (v *Voice) UpdateFilterParameters(p FilterParameters) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.filter.SetCutoff(p.CutoffFrequency)
	v.filter.SetResonance(p.Resonance)
	v.cutoff = p.CutoffFrequency
	v.params.Filter = p
}

// SetFilterCutoff moves only the live cutoff.
func (v *Voice) SetFilterCutoff(hz float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.filter.SetCutoff(hz)
	v.cutoff = hz
}

// Cutoff returns the live filter cutoff.
func (v *Voice) Cutoff() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cutoff
}

// UpdateEnvelopeParameters ...
func (v *Voice) UpdateEnvelopeParameters(p EnvelopeParameters) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.envelope.SetParameters(p)
	v.params.Envelope = p
}

// ownedBy reports whether nothing but the note of generation, and that
// note's own release, happened to the voice since it was triggered.
func (v *Voice) ownedBy(generation uint64) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.generation == generation {
		return !v.available
	}
	return v.generation == generation+1 && v.releasedFrom == generation
}
