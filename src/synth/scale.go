package synth

import (
	"fmt"
	"math"
	"sort"
)

// NumKeys is the size of the on-screen key layout.
const NumKeys = 18

// ----- Scale ----- //

// Scale maps a degree within one octave to a frequency ratio above the root.
type Scale struct {
	Name   string
	Ratios []float64
}

func equalTempered(semitones ...int) []float64 {
	ratios := make([]float64, len(semitones))
	for i, s := range semitones {
		ratios[i] = math.Pow(2, float64(s)/12)
	}
	return ratios
}

var scales = map[string]Scale{
	"chromatic":        {Name: "chromatic", Ratios: equalTempered(0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11)},
	"major":            {Name: "major", Ratios: equalTempered(0, 2, 4, 5, 7, 9, 11)},
	"minor":            {Name: "minor", Ratios: equalTempered(0, 2, 3, 5, 7, 8, 10)},
	"dorian":           {Name: "dorian", Ratios: equalTempered(0, 2, 3, 5, 7, 9, 10)},
	"pentatonic-major": {Name: "pentatonic-major", Ratios: equalTempered(0, 2, 4, 7, 9)},
	"pentatonic-minor": {Name: "pentatonic-minor", Ratios: equalTempered(0, 3, 5, 7, 10)},
	"blues":            {Name: "blues", Ratios: equalTempered(0, 3, 5, 6, 7, 10)},
}

// ScaleByName ...
func ScaleByName(name string) (Scale, error) {
	s, ok := scales[name]
	if !ok {
		return Scale{}, fmt.Errorf("unknown scale %q", name)
	}
	return s, nil
}

// ScaleNames lists the built-in scales in alphabetical order.
func ScaleNames() []string {
	names := make([]string, 0, len(scales))
	for name := range scales {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Ratio returns the ratio of degree counted upward from the root, wrapping
// into higher octaves.
func (s Scale) Ratio(degree int) float64 {
	n := len(s.Ratios)
	octave := degree / n
	index := degree % n
	if index < 0 {
		index += n
		octave--
	}
	return s.Ratios[index] * math.Pow(2, float64(octave))
}

// Frequencies returns n ascending frequencies starting at root.
func (s Scale) Frequencies(root float64, n int) []float64 {
	freqs := make([]float64, n)
	for i := range freqs {
		freqs[i] = root * s.Ratio(i)
	}
	return freqs
}

// NoteToFrequency converts a MIDI note number with A4 = 440 Hz.
func NoteToFrequency(note int) float64 {
	return 440.0 * math.Pow(2, float64(note-69)/12)
}
