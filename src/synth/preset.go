package synth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ----- Preset ----- //

type presetMetaJSON struct {
	Name string `json:"name"`
}
type presetMetaListJSON struct {
	Items []presetMetaJSON `json:"items"`
}

// PresetManager reads voice templates from a directory laid out as
//
//	dir/_list.json   {"items": [{"name": "pad"}, ...]}
//	dir/pad.json     VoiceParameters
type PresetManager struct {
	dir string
}

// NewPresetManager ...
func NewPresetManager(dir string) *PresetManager {
	return &PresetManager{dir: dir}
}

// List returns the preset names in _list.json order.
func (pm *PresetManager) List() ([]string, error) {
	bytes, err := os.ReadFile(filepath.Join(pm.dir, "_list.json"))
	if err != nil {
		return nil, err
	}
	var list presetMetaListJSON
	if err := json.Unmarshal(bytes, &list); err != nil {
		return nil, fmt.Errorf("invalid preset list: %w", err)
	}
	names := make([]string, len(list.Items))
	for i, item := range list.Items {
		names[i] = item.Name
	}
	return names, nil
}

// Load applies the named preset on top of the defaults.
func (pm *PresetManager) Load(name string) (VoiceParameters, error) {
	p := DefaultVoiceParameters()
	bytes, err := os.ReadFile(filepath.Join(pm.dir, name+".json"))
	if err != nil {
		return p, err
	}
	if err := p.ApplyJSON(bytes); err != nil {
		return p, fmt.Errorf("preset %s: %w", name, err)
	}
	return p, nil
}

// Save writes p as the named preset and adds it to _list.json.
func (pm *PresetManager) Save(name string, p VoiceParameters) error {
	if err := os.MkdirAll(pm.dir, 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(pm.dir, name+".json"), p.ToJSON(), 0o644); err != nil {
		return err
	}
	names, err := pm.List()
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	for _, n := range names {
		if n == name {
			return nil
		}
	}
	list := presetMetaListJSON{}
	for _, n := range append(names, name) {
		list.Items = append(list.Items, presetMetaJSON{Name: n})
	}
	bytes, err := json.Marshal(&list)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(pm.dir, "_list.json"), bytes, 0o644)
}
