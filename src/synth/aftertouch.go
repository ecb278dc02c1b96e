package synth

import (
	"math"
	"sync"
)

const (
	// DefaultSensitivity is octaves per 100 units of touch movement.
	DefaultSensitivity = 2.5
	// DefaultSmoothingFactor is the share of the remaining distance covered
	// per sample.
	DefaultSmoothingFactor = 0.5
)

// ----- Aftertouch Phase ----- //

const (
	aftertouchIdle = iota
	aftertouchArmed
	aftertouchSmoothing
)

// ----- Aftertouch ----- //

/*
  Idle --Arm--> Armed --Update--> Smoothing --Update--> Smoothing
    ^                                |
    +-------------Disarm-------------+
*/

type aftertouchState struct {
	voice              *Voice
	initialTouchX      float64
	lastSmoothedCutoff *float64 // nil until the first sample after Arm
	phase              int
}

// Aftertouch turns horizontal touch movement on a held key into filter
// cutoff modulation of that key's voice.
type Aftertouch struct {
	mu              sync.Mutex
	sensitivity     float64
	smoothingFactor float64
	baseCutoff      float64
	keys            map[int]*aftertouchState
}

// NewAftertouch ...
func NewAftertouch(baseCutoff float64) *Aftertouch {
	return &Aftertouch{
		sensitivity:     DefaultSensitivity,
		smoothingFactor: DefaultSmoothingFactor,
		baseCutoff:      baseCutoff,
		keys:            make(map[int]*aftertouchState),
	}
}

// TargetCutoff maps a touch movement to an absolute cutoff, anchored to base
// so that the same finger position always yields the same target.
func TargetCutoff(base float64, movementDelta float64, sensitivity float64) float64 {
	octaveChange := movementDelta * (sensitivity / 100.0)
	return base * math.Pow(2, octaveChange)
}

// SmoothCutoff moves reference toward target by factor.
func SmoothCutoff(reference float64, target float64, factor float64) float64 {
	return reference + (target-reference)*factor
}

// SetSensitivity ...
func (a *Aftertouch) SetSensitivity(v float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sensitivity = v
}

// SetSmoothingFactor accepts values in (0, 1]; anything else restores the
// default.
func (a *Aftertouch) SetSmoothingFactor(v float64) {
	if !(v > 0 && v <= 1) {
		v = DefaultSmoothingFactor
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.smoothingFactor = v
}

// SetBaseCutoff follows the template cutoff.
func (a *Aftertouch) SetBaseCutoff(hz float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.baseCutoff = hz
}

// BaseCutoff ...
func (a *Aftertouch) BaseCutoff() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.baseCutoff
}

// Arm starts tracking key on voice. The voice's cutoff goes back to the
// template value so every note starts from the same timbre.
func (a *Aftertouch) Arm(key int, v *Voice, touchX float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	v.SetFilterCutoff(a.baseCutoff)
	a.keys[key] = &aftertouchState{
		voice:         v,
		initialTouchX: touchX,
		phase:         aftertouchArmed,
	}
}

// Update feeds one touch sample for key and returns the cutoff applied to its
// voice. It returns false when key is not armed.
func (a *Aftertouch) Update(key int, touchX float64) (float64, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.keys[key]
	if !ok || s.phase == aftertouchIdle {
		return 0, false
	}
	target := TargetCutoff(a.baseCutoff, touchX-s.initialTouchX, a.sensitivity)
	reference := a.baseCutoff
	if s.lastSmoothedCutoff != nil {
		reference = *s.lastSmoothedCutoff
	}
	smoothed := SmoothCutoff(reference, target, a.smoothingFactor)
	s.lastSmoothedCutoff = &smoothed
	s.phase = aftertouchSmoothing
	s.voice.SetFilterCutoff(smoothed)
	return smoothed, true
}

// Disarm stops tracking key.
func (a *Aftertouch) Disarm(key int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if s, ok := a.keys[key]; ok {
		s.lastSmoothedCutoff = nil
		s.phase = aftertouchIdle
		delete(a.keys, key)
	}
}

// LastSmoothedCutoff returns the last value applied for key, or false if none
// was computed since it was armed.
func (a *Aftertouch) LastSmoothedCutoff(key int) (float64, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.keys[key]
	if !ok || s.lastSmoothedCutoff == nil {
		return 0, false
	}
	return *s.lastSmoothedCutoff, true
}

// Active reports whether key is armed.
func (a *Aftertouch) Active(key int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.keys[key]
	return ok
}
