package audio

import (
	"fmt"
	"math"
	"sync"

	"golang.org/x/sync/errgroup"
)

const (
	wavetableSamples = 1024
	maxPartials      = 512
)

type wavetable struct {
	values []float64
}

func newWavetable(cap int) *wavetable {
	return &wavetable{
		values: make([]float64, 0, cap),
	}
}
func (wt *wavetable) generate(samples int, phaseToValue func(phase float64) float64) error {
	if samples > cap(wt.values) {
		return fmt.Errorf("capacity exceeded")
	}
	wt.values = wt.values[0:samples]
	for i := 0; i < samples; i++ {
		phase := 2.0 * math.Pi / float64(samples) * float64(i)
		wt.values[i] = phaseToValue(phase)
	}
	return nil
}
func (wt *wavetable) getAtPhase(phase float64) float64 {
	phase = positiveMod(phase, 2.0*math.Pi)
	length := len(wt.values)
	phasePerSample := 2.0 * math.Pi / float64(length)
	index := int(phase / phasePerSample)
	if index >= length {
		index = length - 1
	}
	nextIndex := index + 1
	if nextIndex >= length {
		nextIndex = 0
	}
	mod := math.Mod(phase, phasePerSample) / phasePerSample
	return wt.values[index]*(1-mod) + wt.values[nextIndex]*mod
}
func (wt *wavetable) makeBandLimitedTableForGivenNumberOfPartials(samples int, partials int, calcFourierPartialAtPhase func(n int, phase float64) float64) error {
	return wt.generate(samples, func(phase float64) float64 {
		value := 0.0
		for i := 1; i <= partials; i++ {
			value += calcFourierPartialAtPhase(i, phase)
		}
		return value
	})
}
func (wt *wavetable) makeBandLimitedTableWithMaxNumbersOfPartialsAtNote(samples int, note int, calcFourierPartialAtPhase func(n int, phase float64) float64) error {
	freq := 440 * math.Pow(2, float64(note-69)/12)
	partials := int(sampleRate / 2 / freq)
	if partials > maxPartials {
		partials = maxPartials
	}
	return wt.makeBandLimitedTableForGivenNumberOfPartials(samples, partials, calcFourierPartialAtPhase)
}

// WavetableSet holds one band-limited table per MIDI note.
type WavetableSet struct {
	tables []*wavetable
}

// NewWavetableSet ...
func NewWavetableSet(tableCap int, sampleCap int) *WavetableSet {
	tables := make([]*wavetable, tableCap)
	for i := 0; i < tableCap; i++ {
		tables[i] = newWavetable(sampleCap)
	}
	return &WavetableSet{
		tables: tables,
	}
}

// MakeBandLimitedTablesForAllNotes builds the 128 tables concurrently.
func (wts *WavetableSet) MakeBandLimitedTablesForAllNotes(samples int, calcFourierPartialAtPhase func(n int, phase float64) float64) error {
	if cap(wts.tables) < 128 {
		return fmt.Errorf("capacity of tables exceeded")
	}
	wts.tables = wts.tables[0:128]
	var g errgroup.Group
	for i := 0; i < 128; i++ {
		g.Go(func() error {
			return wts.tables[i].makeBandLimitedTableWithMaxNumbersOfPartialsAtNote(samples, i, calcFourierPartialAtPhase)
		})
	}
	return g.Wait()
}

func (wts *WavetableSet) getAtNote(note int, phase float64) float64 {
	return wts.tables[note].getAtPhase(phase)
}

// square: 4/pi * sum(sin(n*phase)/n) over odd n
func squarePartial(n int, phase float64) float64 {
	if n%2 == 0 {
		return 0
	}
	return 4 / math.Pi * math.Sin(float64(n)*phase) / float64(n)
}

// saw: -2/pi * sum(sin(n*phase)/n), rising from -1 to 1
func sawPartial(n int, phase float64) float64 {
	return -2 / math.Pi * math.Sin(float64(n)*phase) / float64(n)
}

var (
	wavetablesOnce sync.Once
	blsquareWT     *WavetableSet
	blsawWT        *WavetableSet
)

func loadWavetables() {
	wavetablesOnce.Do(func() {
		square := NewWavetableSet(128, wavetableSamples)
		saw := NewWavetableSet(128, wavetableSamples)
		if err := square.MakeBandLimitedTablesForAllNotes(wavetableSamples, squarePartial); err != nil {
			panic(err)
		}
		if err := saw.MakeBandLimitedTablesForAllNotes(wavetableSamples, sawPartial); err != nil {
			panic(err)
		}
		blsquareWT = square
		blsawWT = saw
	})
}
