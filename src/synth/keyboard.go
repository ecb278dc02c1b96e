package synth

import (
	"fmt"
	"sync"
)

// ----- Key Mode ----- //

// KeyMode decides what a key gets when it is pressed again.
type KeyMode int

const (
	// KeyModePoly gives every key-down a fresh voice, so a retriggered key
	// can overlap its own release tail.
	KeyModePoly KeyMode = iota
	// KeyModeChoke reuses the voice the key played last, if it still has it.
	KeyModeChoke
)

func (m KeyMode) String() string {
	if m == KeyModeChoke {
		return "choke"
	}
	return "poly"
}

// KeyModeFromString ...
func KeyModeFromString(s string) (KeyMode, error) {
	switch s {
	case "poly":
		return KeyModePoly, nil
	case "choke", "mono":
		return KeyModeChoke, nil
	}
	return KeyModePoly, fmt.Errorf("unknown key mode %q", s)
}

// ----- Keyboard ----- //

// Keyboard is the surface the UI, MIDI and IPC layers play through. It maps
// keys to pooled voices and routes touch movement to aftertouch.
type Keyboard struct {
	mu          sync.Mutex
	pool        *Pool
	aftertouch  *Aftertouch
	mode        KeyMode
	held        map[int]Handle
	last        map[int]Handle
	frequencies []float64
}

// NewKeyboard lays a C major scale over NumKeys keys.
func NewKeyboard(pool *Pool) *Keyboard {
	major, _ := ScaleByName("major")
	return &Keyboard{
		pool:        pool,
		aftertouch:  NewAftertouch(pool.Parameters().Filter.CutoffFrequency),
		held:        make(map[int]Handle),
		last:        make(map[int]Handle),
		frequencies: major.Frequencies(NoteToFrequency(60), NumKeys),
	}
}

// Pool ...
func (k *Keyboard) Pool() *Pool {
	return k.pool
}

// Aftertouch ...
func (k *Keyboard) Aftertouch() *Aftertouch {
	return k.aftertouch
}

// SetMode ...
func (k *Keyboard) SetMode(m KeyMode) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.mode = m
}

// Mode ...
func (k *Keyboard) Mode() KeyMode {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.mode
}

// OnKeyDown plays freq for key with the touch anchored at 0.
func (k *Keyboard) OnKeyDown(key int, freq float64) Handle {
	return k.OnTouchDown(key, freq, 0)
}

// OnTouchDown plays freq for key and anchors aftertouch at touchX.
func (k *Keyboard) OnTouchDown(key int, freq float64, touchX float64) Handle {
	k.mu.Lock()
	defer k.mu.Unlock()
	if h, ok := k.held[key]; ok {
		k.pool.Release(h)
		k.aftertouch.Disarm(key)
		delete(k.held, key)
	}
	var h Handle
	if last, ok := k.last[key]; ok && k.mode == KeyModeChoke {
		h = k.pool.Retrigger(last, freq)
	} else {
		h = k.pool.Acquire(freq)
	}
	// the voice may have been stolen from another held key
	for other, oh := range k.held {
		if oh.voice == h.voice {
			k.aftertouch.Disarm(other)
			delete(k.held, other)
		}
	}
	k.held[key] = h
	k.last[key] = h
	k.aftertouch.Arm(key, k.pool.Voice(h.voice), touchX)
	return h
}

// OnKeyUp releases the note held on key.
func (k *Keyboard) OnKeyUp(key int) {
	k.mu.Lock()
	defer k.mu.Unlock()
	h, ok := k.held[key]
	if !ok {
		return
	}
	k.pool.Release(h)
	k.aftertouch.Disarm(key)
	delete(k.held, key)
}

// UpdateAftertouch ...
func (k *Keyboard) UpdateAftertouch(key int, touchX float64) (float64, bool) {
	return k.aftertouch.Update(key, touchX)
}

// Held returns the handle currently held on key.
func (k *Keyboard) Held(key int) (Handle, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	h, ok := k.held[key]
	return h, ok
}

// AcquireVoice plays freq without tying it to a key.
func (k *Keyboard) AcquireVoice(freq float64) Handle {
	return k.pool.Acquire(freq)
}

// ReleaseVoice ...
func (k *Keyboard) ReleaseVoice(h Handle) bool {
	return k.pool.Release(h)
}

// SetDetuneMode ...
func (k *Keyboard) SetDetuneMode(mode DetuneMode) {
	k.pool.SetDetuneMode(mode)
}

// SetFrequencyOffsetRatio ...
func (k *Keyboard) SetFrequencyOffsetRatio(ratio float64) {
	k.pool.SetFrequencyOffsetRatio(ratio)
}

// SetFrequencyOffsetHz ...
func (k *Keyboard) SetFrequencyOffsetHz(hz float64) {
	k.pool.SetFrequencyOffsetHz(hz)
}

// Parameters ...
func (k *Keyboard) Parameters() VoiceParameters {
	return k.pool.Parameters()
}

// UpdateParameters replaces the voice template. Aftertouch follows the new
// base cutoff.
func (k *Keyboard) UpdateParameters(p VoiceParameters) {
	k.mu.Lock()
	defer k.mu.Unlock()
	rebuild := p.Oscillator.Waveform != k.pool.Parameters().Oscillator.Waveform
	k.pool.UpdateParameters(p)
	k.aftertouch.SetBaseCutoff(p.Filter.CutoffFrequency)
	if rebuild {
		// rebuilt voices no longer belong to the keys holding them
		for key := range k.held {
			k.aftertouch.Disarm(key)
			delete(k.held, key)
		}
		k.last = make(map[int]Handle)
	}
}

// ApplyScale sets the frequency of every key. It panics when fewer than
// NumKeys frequencies are supplied.
func (k *Keyboard) ApplyScale(freqs []float64) {
	if len(freqs) < NumKeys {
		panic(fmt.Sprintf("scale needs %d frequencies, got %d", NumKeys, len(freqs)))
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	copy(k.frequencies, freqs)
}

// KeyFrequency returns the frequency assigned to key index i.
func (k *Keyboard) KeyFrequency(i int) float64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.frequencies[i]
}

// PressKey plays the key at layout index i.
func (k *Keyboard) PressKey(i int, touchX float64) Handle {
	return k.OnTouchDown(i, k.KeyFrequency(i), touchX)
}
