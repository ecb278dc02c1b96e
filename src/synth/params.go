package synth

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ----- Oscillator Params ----- //

// OscillatorParameters describes one FM oscillator.
type OscillatorParameters struct {
	Waveform             Waveform `json:"waveform"`
	CarrierMultiplier    float64  `json:"carrierMultiplier"`
	ModulatingMultiplier float64  `json:"modulatingMultiplier"`
	ModulationIndex      float64  `json:"modulationIndex"`
	Amplitude            float64  `json:"amplitude"` // 0-1
}

func (o *OscillatorParameters) set(key string, value string) error {
	if key == "waveform" {
		w, err := WaveformFromString(value)
		if err != nil {
			return err
		}
		o.Waveform = w
		return nil
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return err
	}
	switch key {
	case "carrierMultiplier":
		o.CarrierMultiplier = v
	case "modulatingMultiplier":
		o.ModulatingMultiplier = v
	case "modulationIndex":
		o.ModulationIndex = v
	case "amplitude":
		o.Amplitude = v
	default:
		return fmt.Errorf("unknown oscillator parameter %q", key)
	}
	return nil
}

// ----- Filter Params ----- //

// FilterParameters describes the resonant low-pass filter.
type FilterParameters struct {
	CutoffFrequency float64 `json:"cutoffFrequency"` // Hz
	Resonance       float64 `json:"resonance"`       // Q
}

func (f *FilterParameters) set(key string, value string) error {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return err
	}
	switch key {
	case "cutoffFrequency", "cutoff":
		f.CutoffFrequency = v
	case "resonance":
		f.Resonance = v
	default:
		return fmt.Errorf("unknown filter parameter %q", key)
	}
	return nil
}

// ----- Envelope Params ----- //

// EnvelopeParameters is an ADSR in seconds (sustain is a level).
type EnvelopeParameters struct {
	Attack  float64 `json:"attack"`  // sec
	Decay   float64 `json:"decay"`   // sec
	Sustain float64 `json:"sustain"` // 0-1
	Release float64 `json:"release"` // sec
}

func (e *EnvelopeParameters) set(key string, value string) error {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return err
	}
	switch key {
	case "attack":
		e.Attack = v
	case "decay":
		e.Decay = v
	case "sustain":
		e.Sustain = v
	case "release":
		e.Release = v
	default:
		return fmt.Errorf("unknown envelope parameter %q", key)
	}
	return nil
}

// ----- Voice Params ----- //

// VoiceParameters is the template every voice is built from. It is a value
// type; voices keep their own copy.
type VoiceParameters struct {
	Oscillator OscillatorParameters `json:"oscillator"`
	Filter     FilterParameters     `json:"filter"`
	Envelope   EnvelopeParameters   `json:"envelope"`
}

// DefaultVoiceParameters ...
func DefaultVoiceParameters() VoiceParameters {
	return VoiceParameters{
		Oscillator: OscillatorParameters{
			Waveform:             WaveSine,
			CarrierMultiplier:    1,
			ModulatingMultiplier: 1,
			ModulationIndex:      0,
			Amplitude:            0.5,
		},
		Filter:   FilterParameters{CutoffFrequency: 1200, Resonance: 0.707},
		Envelope: EnvelopeParameters{Attack: 0.01, Decay: 0.1, Sustain: 0.8, Release: 0.3},
	}
}

// Clone returns an independent copy.
func (p VoiceParameters) Clone() VoiceParameters {
	return p
}

// ApplyJSON overwrites the fields present in data.
func (p *VoiceParameters) ApplyJSON(data []byte) error {
	next := *p
	if err := json.Unmarshal(data, &next); err != nil {
		return fmt.Errorf("failed to apply JSON to voice parameters: %w", err)
	}
	*p = next
	return nil
}

// ToJSON ...
func (p *VoiceParameters) ToJSON() json.RawMessage {
	bytes, err := json.Marshal(p)
	if err != nil {
		panic(err)
	}
	return json.RawMessage(bytes)
}

// Set updates a single field, e.g. Set("filter", "cutoff", "800").
func (p *VoiceParameters) Set(group string, key string, value string) error {
	switch group {
	case "osc", "oscillator":
		return p.Oscillator.set(key, value)
	case "filter":
		return p.Filter.set(key, value)
	case "envelope", "adsr":
		return p.Envelope.set(key, value)
	}
	return fmt.Errorf("unknown parameter group %q", group)
}
