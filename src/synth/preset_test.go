package synth

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPresetManagerSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	pm := NewPresetManager(dir)
	p := DefaultVoiceParameters()
	p.Oscillator.Waveform = WaveTriangle
	p.Filter.CutoffFrequency = 640
	expectNoError(t, pm.Save("pad", p))
	expectNoError(t, pm.Save("lead", DefaultVoiceParameters()))
	expectNoError(t, pm.Save("pad", p))

	names, err := pm.List()
	expectNoError(t, err)
	expectEqual(t, len(names), 2)
	expectEqual(t, names[0], "pad")
	expectEqual(t, names[1], "lead")

	loaded, err := pm.Load("pad")
	expectNoError(t, err)
	expectEqual(t, loaded, p)
}

func TestPresetManagerPartialPreset(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "bright.json"), []byte(`{"filter":{"cutoffFrequency":5000}}`), 0o644)
	expectNoError(t, err)
	p, err := NewPresetManager(dir).Load("bright")
	expectNoError(t, err)
	expectEqual(t, p.Filter.CutoffFrequency, 5000.0)
	expectEqual(t, p.Envelope, DefaultVoiceParameters().Envelope)
}

func TestPresetManagerMissing(t *testing.T) {
	pm := NewPresetManager(t.TempDir())
	if _, err := pm.Load("nothing"); err == nil {
		t.Errorf("expected error for missing preset")
	}
	if _, err := pm.List(); err == nil {
		t.Errorf("expected error for missing list")
	}
}
