package synth

import (
	"encoding/json"
	"fmt"
)

// ----- Waveform ----- //

// Waveform selects the carrier/modulator table of an oscillator.
type Waveform int

const (
	WaveSine Waveform = iota
	WaveTriangle
	WaveSquare
	WaveSaw
)

var waveformNames = []string{
	WaveSine:     "sine",
	WaveTriangle: "triangle",
	WaveSquare:   "square",
	WaveSaw:      "saw",
}

func (w Waveform) String() string {
	if int(w) < 0 || int(w) >= len(waveformNames) {
		return "unknown"
	}
	return waveformNames[w]
}

// WaveformFromString ...
func WaveformFromString(s string) (Waveform, error) {
	for i, name := range waveformNames {
		if name == s {
			return Waveform(i), nil
		}
	}
	return WaveSine, fmt.Errorf("unknown waveform %q", s)
}

// MarshalJSON ...
func (w Waveform) MarshalJSON() ([]byte, error) {
	return json.Marshal(w.String())
}

// UnmarshalJSON ...
func (w *Waveform) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := WaveformFromString(s)
	if err != nil {
		return err
	}
	*w = v
	return nil
}

// ----- Detune Mode ----- //

// DetuneMode decides how far the two stereo oscillators drift apart.
type DetuneMode int

const (
	// DetuneProportional multiplies/divides by a ratio: constant cents, beat
	// rate grows with pitch.
	DetuneProportional DetuneMode = iota
	// DetuneConstant adds/subtracts a fixed number of Hz: uniform beat rate.
	DetuneConstant
)

func (m DetuneMode) String() string {
	switch m {
	case DetuneProportional:
		return "proportional"
	case DetuneConstant:
		return "constant"
	}
	return "unknown"
}

// DetuneModeFromString ...
func DetuneModeFromString(s string) (DetuneMode, error) {
	switch s {
	case "proportional":
		return DetuneProportional, nil
	case "constant":
		return DetuneConstant, nil
	}
	return DetuneProportional, fmt.Errorf("unknown detune mode %q", s)
}
