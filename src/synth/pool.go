package synth

import (
	"context"
	"fmt"
	"log"
	"sync"
)

const (
	// DefaultPolyphony matches the 18-key layout.
	DefaultPolyphony = 18
	// MaxPolyphony bounds the linear allocation scan.
	MaxPolyphony = 32
)

// ----- Handle ----- //

// Handle identifies one note played on a voice. It goes stale as soon as the
// voice is released or stolen.
type Handle struct {
	voice      int
	generation uint64
}

// Voice returns the index of the voice the note was played on.
func (h Handle) Voice() int {
	return h.voice
}

// Valid reports whether the handle came from Acquire.
func (h Handle) Valid() bool {
	return h.generation != 0
}

type completion struct {
	voice      int
	generation uint64
}

// ----- Pool ----- //

// Pool owns a fixed set of voices and hands them out for notes, stealing the
// oldest-triggered voice when none is free.
type Pool struct {
	mu          sync.Mutex
	backend     Backend
	clock       Clock
	params      VoiceParameters
	voices      []*Voice
	timers      []Timer
	completions chan completion
	done        chan struct{}
	closeOnce   sync.Once

	detuneMode  DetuneMode
	offsetRatio float64
	offsetHz    float64
}

// PoolOption ...
type PoolOption func(*Pool)

// WithClock replaces the wall clock used for trigger times and release timers.
func WithClock(c Clock) PoolOption {
	return func(p *Pool) {
		p.clock = c
	}
}

// WithDetuneMode ...
func WithDetuneMode(mode DetuneMode) PoolOption {
	return func(p *Pool) {
		p.detuneMode = mode
	}
}

// WithFrequencyOffsetRatio ...
func WithFrequencyOffsetRatio(ratio float64) PoolOption {
	return func(p *Pool) {
		p.offsetRatio = ratio
	}
}

// WithFrequencyOffsetHz ...
func WithFrequencyOffsetHz(hz float64) PoolOption {
	return func(p *Pool) {
		p.offsetHz = hz
	}
}

// NewPool builds n voices from params. n must be within [1, MaxPolyphony].
func NewPool(backend Backend, params VoiceParameters, n int, opts ...PoolOption) *Pool {
	if n < 1 || n > MaxPolyphony {
		panic(fmt.Sprintf("polyphony should be in [1, %d], got %d", MaxPolyphony, n))
	}
	p := &Pool{
		backend:     backend,
		clock:       RealClock,
		params:      params.Clone(),
		voices:      make([]*Voice, n),
		timers:      make([]Timer, n),
		completions: make(chan completion, 4*n),
		done:        make(chan struct{}),
		detuneMode:  DetuneProportional,
		offsetRatio: 1,
	}
	for _, opt := range opts {
		opt(p)
	}
	for i := range p.voices {
		v := newVoice(i, backend, p.params)
		v.SetDetuneMode(p.detuneMode)
		v.SetFrequencyOffsetRatio(p.offsetRatio)
		v.SetFrequencyOffsetHz(p.offsetHz)
		p.voices[i] = v
	}
	return p
}

// Initialize starts every voice. Call it after the backend is running.
func (p *Pool) Initialize() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, v := range p.voices {
		v.Initialize()
	}
}

// Size ...
func (p *Pool) Size() int {
	return len(p.voices)
}

// Voice returns the voice at index i.
func (p *Pool) Voice(i int) *Voice {
	return p.voices[i]
}

// Acquire plays freq on a free voice, or on the oldest busy one.
func (p *Pool) Acquire(freq float64) Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.drainLocked()
	v := p.pickLocked()
	return p.triggerLocked(v, freq)
}

// Retrigger plays freq again on the voice h was played on, as long as no other
// note took the voice in the meantime. Otherwise it behaves like Acquire.
func (p *Pool) Retrigger(h Handle, freq float64) Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.drainLocked()
	if h.voice >= 0 && h.voice < len(p.voices) && h.Valid() {
		if v := p.voices[h.voice]; v.ownedBy(h.generation) {
			return p.triggerLocked(v, freq)
		}
	}
	v := p.pickLocked()
	return p.triggerLocked(v, freq)
}

func (p *Pool) triggerLocked(v *Voice, freq float64) Handle {
	p.cancelTimerLocked(v.id)
	v.SetFrequency(freq)
	gen := v.Trigger(p.clock.Now())
	return Handle{voice: v.id, generation: gen}
}

func (p *Pool) pickLocked() *Voice {
	var oldest *Voice
	var oldestStatus VoiceStatus
	for _, v := range p.voices {
		s := v.Status()
		if s.Available {
			return v
		}
		if oldest == nil || s.TriggerTime.Before(oldestStatus.TriggerTime) {
			oldest = v
			oldestStatus = s
		}
	}
	log.Printf("no voice available, stealing voice %d\n", oldest.id)
	return oldest
}

// Release starts the release phase of the note h. The voice becomes
// available again once its release duration has elapsed. Stale handles are
// ignored and false is returned.
func (p *Pool) Release(h Handle) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.drainLocked()
	if h.voice < 0 || h.voice >= len(p.voices) || !h.Valid() {
		return false
	}
	v := p.voices[h.voice]
	gen, d, ok := v.releaseIfCurrent(h.generation)
	if !ok {
		return false
	}
	p.cancelTimerLocked(h.voice)
	c := completion{voice: h.voice, generation: gen}
	p.timers[h.voice] = p.clock.AfterFunc(d, func() {
		select {
		case p.completions <- c:
		case <-p.done:
		}
	})
	return true
}

func (p *Pool) cancelTimerLocked(i int) {
	if t := p.timers[i]; t != nil {
		t.Stop()
		p.timers[i] = nil
	}
}

func (p *Pool) drainLocked() {
	for {
		select {
		case c := <-p.completions:
			p.completeLocked(c)
		default:
			return
		}
	}
}

func (p *Pool) completeLocked(c completion) {
	if p.voices[c.voice].CompleteRelease(c.generation) {
		p.timers[c.voice] = nil
	}
}

// Run applies release completions as they arrive until ctx is done.
func (p *Pool) Run(ctx context.Context) error {
	defer p.Close()
	for {
		select {
		case <-ctx.Done():
			log.Println("Pool.Run() ended.")
			return nil
		case c := <-p.completions:
			p.mu.Lock()
			p.completeLocked(c)
			p.mu.Unlock()
		}
	}
}

// Close stops pending release timers.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		for i := range p.timers {
			p.cancelTimerLocked(i)
		}
		p.mu.Unlock()
		close(p.done)
	})
}

// Available reports whether voice i can take a new note without stealing.
func (p *Pool) Available(i int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.drainLocked()
	return p.voices[i].IsAvailable()
}

// Voices returns a snapshot of every voice.
func (p *Pool) Voices() []VoiceStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.drainLocked()
	statuses := make([]VoiceStatus, len(p.voices))
	for i, v := range p.voices {
		statuses[i] = v.Status()
	}
	return statuses
}

// ----- Pool-wide settings ----- //

// SetDetuneMode ...
func (p *Pool) SetDetuneMode(mode DetuneMode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.detuneMode = mode
	for _, v := range p.voices {
		v.SetDetuneMode(mode)
	}
}

// SetFrequencyOffsetRatio ...
func (p *Pool) SetFrequencyOffsetRatio(ratio float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.offsetRatio = ratio
	for _, v := range p.voices {
		v.SetFrequencyOffsetRatio(ratio)
	}
}

// SetFrequencyOffsetHz ...
func (p *Pool) SetFrequencyOffsetHz(hz float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.offsetHz = hz
	for _, v := range p.voices {
		v.SetFrequencyOffsetHz(hz)
	}
}

// Parameters returns the template voices are built from.
func (p *Pool) Parameters() VoiceParameters {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.params.Clone()
}

// UpdateParameters applies params to every voice. A waveform change rebuilds
// all voices, cutting whatever is playing.
func (p *Pool) UpdateParameters(params VoiceParameters) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.drainLocked()
	rebuild := params.Oscillator.Waveform != p.params.Oscillator.Waveform
	p.params = params.Clone()
	for i, v := range p.voices {
		if rebuild {
			p.cancelTimerLocked(i)
			v.rebuild(p.params)
			continue
		}
		if err := v.UpdateOscillatorParameters(params.Oscillator); err != nil {
			log.Printf("voice %d: %v\n", i, err)
		}
		v.UpdateFilterParameters(params.Filter)
		v.UpdateEnvelopeParameters(params.Envelope)
	}
	if rebuild {
		log.Printf("rebuilt %d voices for waveform %v\n", len(p.voices), params.Oscillator.Waveform)
	}
}
