package synth

import (
	"math"
	"testing"
)

func TestVoiceParametersSet(t *testing.T) {
	p := DefaultVoiceParameters()
	expectNoError(t, p.Set("osc", "waveform", "saw"))
	expectNoError(t, p.Set("osc", "modulationIndex", "2.5"))
	expectNoError(t, p.Set("filter", "resonance", "3"))
	expectNoError(t, p.Set("adsr", "attack", "0.2"))
	expectEqual(t, p.Oscillator.Waveform, WaveSaw)
	expectEqual(t, p.Oscillator.ModulationIndex, 2.5)
	expectEqual(t, p.Filter.Resonance, 3.0)
	expectEqual(t, p.Envelope.Attack, 0.2)

	if err := p.Set("lfo", "rate", "1"); err == nil {
		t.Errorf("expected error for unknown group")
	}
	if err := p.Set("envelope", "sustain", "loud"); err == nil {
		t.Errorf("expected error for bad number")
	}
}

func TestVoiceParametersCloneIsIndependent(t *testing.T) {
	p := DefaultVoiceParameters()
	q := p.Clone()
	q.Filter.CutoffFrequency = 50
	expectEqual(t, p.Filter.CutoffFrequency, 1200.0)
}

func TestVoiceParametersApplyJSON(t *testing.T) {
	p := DefaultVoiceParameters()
	expectNoError(t, p.ApplyJSON([]byte(`{"oscillator":{"waveform":"square","amplitude":0.3},"envelope":{"release":2}}`)))
	expectEqual(t, p.Oscillator.Waveform, WaveSquare)
	expectEqual(t, p.Oscillator.Amplitude, 0.3)
	expectEqual(t, p.Envelope.Release, 2.0)
	// untouched fields keep their values
	expectEqual(t, p.Filter.CutoffFrequency, 1200.0)
	expectEqual(t, p.Oscillator.CarrierMultiplier, 1.0)

	before := p
	if err := p.ApplyJSON([]byte(`{"oscillator":{"waveform":"organ"}}`)); err == nil {
		t.Errorf("expected error for unknown waveform")
	}
	expectEqual(t, p, before)
}

func TestVoiceParametersToJSON(t *testing.T) {
	p := DefaultVoiceParameters()
	q := VoiceParameters{}
	expectNoError(t, q.ApplyJSON(p.ToJSON()))
	expectEqual(t, q, p)
}

func TestWaveformNames(t *testing.T) {
	for _, w := range []Waveform{WaveSine, WaveTriangle, WaveSquare, WaveSaw} {
		parsed, err := WaveformFromString(w.String())
		expectNoError(t, err)
		expectEqual(t, parsed, w)
	}
	expectEqual(t, Waveform(42).String(), "unknown")
}

func TestScaleFrequencies(t *testing.T) {
	s, err := ScaleByName("major")
	expectNoError(t, err)
	freqs := s.Frequencies(261.63, NumKeys)
	expectEqual(t, len(freqs), NumKeys)
	expectEqual(t, freqs[0], 261.63)
	expectNearlyEqual(t, freqs[7], 523.26)
	expectNearlyEqual(t, freqs[14], 1046.52)
	expectNearlyEqual(t, freqs[4], 261.63*math.Pow(2, 7.0/12))
	for i := 1; i < len(freqs); i++ {
		if freqs[i] <= freqs[i-1] {
			t.Fatalf("frequencies should ascend: %v", freqs)
		}
	}
}

func TestScaleRatioBelowRoot(t *testing.T) {
	s, _ := ScaleByName("pentatonic-minor")
	expectNearlyEqual(t, s.Ratio(-5), 0.5)
	expectNearlyEqual(t, s.Ratio(-1), math.Pow(2, 10.0/12)/2)
}

func TestScaleNames(t *testing.T) {
	names := ScaleNames()
	expectEqual(t, len(names), 7)
	expectEqual(t, names[0], "blues")
	if _, err := ScaleByName("lydian"); err == nil {
		t.Errorf("expected error for unknown scale")
	}
}

func TestNoteToFrequency(t *testing.T) {
	expectEqual(t, NoteToFrequency(69), 440.0)
	expectNearlyEqual(t, NoteToFrequency(81), 880)
	expectNearlyEqual(t, NoteToFrequency(60), 261.6256)
}
