package synth

import (
	"math"
	"sort"
	"sync"
	"testing"
	"time"
)

func expectNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Errorf("expected no error, but got: %v", err)
	}
}

func expectEqual(t *testing.T, actual, expected interface{}) {
	t.Helper()
	if actual != expected {
		t.Errorf("expected %v, but got: %v", expected, actual)
	}
}

func expectNearlyEqual(t *testing.T, actual, expected float64) {
	t.Helper()
	if math.Abs(actual-expected) > 0.0001 {
		t.Errorf("expected %v, but got: %v", expected, actual)
	}
}

func expectPanic(t *testing.T, f func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("expected panic")
		}
	}()
	f()
}

// ----- Fake Clock ----- //

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward and runs due callbacks in order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	pending := c.timers[:0]
	for _, t := range c.timers {
		switch {
		case t.stopped:
		case !t.at.After(c.now):
			t.fired = true
			due = append(due, t)
		default:
			pending = append(pending, t)
		}
	}
	c.timers = pending
	c.mu.Unlock()
	sort.SliceStable(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}

// ----- Fake Backend ----- //

type fakeNode struct{}

func (fakeNode) Tick() (float64, float64) { return 0, 0 }

type fakeOscillator struct {
	fakeNode
	params    OscillatorParameters
	starts    int
	stops     int
	freq      float64
	ramp      float64
	lastRamp  float64
	amplitude float64
}

func (o *fakeOscillator) Start()                   { o.starts++ }
func (o *fakeOscillator) Stop()                    { o.stops++ }
func (o *fakeOscillator) SetAmplitude(v float64)   { o.amplitude = v }
func (o *fakeOscillator) SetRampDuration(s float64) { o.ramp = s }
func (o *fakeOscillator) SetFrequency(hz float64, ramp float64) {
	o.freq = hz
	o.lastRamp = ramp
}
func (o *fakeOscillator) SetModulation(c, m, i float64) {
	o.params.CarrierMultiplier = c
	o.params.ModulatingMultiplier = m
	o.params.ModulationIndex = i
}

type fakeFilter struct {
	fakeNode
	input     Node
	cutoff    float64
	resonance float64
}

func (f *fakeFilter) SetCutoff(hz float64)   { f.cutoff = hz }
func (f *fakeFilter) SetResonance(v float64) { f.resonance = v }

type fakeEnvelope struct {
	fakeNode
	input  Node
	params EnvelopeParameters
	events []string
	gate   bool
}

func (e *fakeEnvelope) Reset()     { e.events = append(e.events, "reset") }
func (e *fakeEnvelope) OpenGate()  { e.events = append(e.events, "open"); e.gate = true }
func (e *fakeEnvelope) CloseGate() { e.events = append(e.events, "close"); e.gate = false }
func (e *fakeEnvelope) SetParameters(p EnvelopeParameters) {
	e.params = p
}

type fakePanner struct {
	fakeNode
	input Node
	pan   float64
}

type fakeMixer struct {
	fakeNode
	inputs []Node
}

type fakeBackend struct {
	oscillators  []*fakeOscillator
	filters      []*fakeFilter
	envelopes    []*fakeEnvelope
	panners      []*fakePanner
	connected    map[Node]bool
	disconnected int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{connected: make(map[Node]bool)}
}

func (b *fakeBackend) CreateOscillator(p OscillatorParameters, base float64) Oscillator {
	o := &fakeOscillator{params: p, freq: base, ramp: 0.02, amplitude: p.Amplitude}
	b.oscillators = append(b.oscillators, o)
	return o
}
func (b *fakeBackend) CreateFilter(input Node, cutoff float64, resonance float64) Filter {
	f := &fakeFilter{input: input, cutoff: cutoff, resonance: resonance}
	b.filters = append(b.filters, f)
	return f
}
func (b *fakeBackend) CreateEnvelope(input Node, p EnvelopeParameters) Envelope {
	e := &fakeEnvelope{input: input, params: p}
	b.envelopes = append(b.envelopes, e)
	return e
}
func (b *fakeBackend) CreatePanner(input Node, pan float64) Panner {
	p := &fakePanner{input: input, pan: pan}
	b.panners = append(b.panners, p)
	return p
}
func (b *fakeBackend) CreateMixer(inputs ...Node) Mixer {
	return &fakeMixer{inputs: inputs}
}
func (b *fakeBackend) Connect(n Node) { b.connected[n] = true }
func (b *fakeBackend) Disconnect(n Node) {
	delete(b.connected, n)
	b.disconnected++
}

func newTestVoice() (*Voice, *fakeBackend) {
	b := newFakeBackend()
	return newVoice(0, b, DefaultVoiceParameters()), b
}

func newTestPool(n int) (*Pool, *fakeBackend, *fakeClock) {
	b := newFakeBackend()
	c := newFakeClock()
	p := NewPool(b, DefaultVoiceParameters(), n, WithClock(c))
	p.Initialize()
	return p, b, c
}

func oscillatorsOf(v *Voice) (*fakeOscillator, *fakeOscillator) {
	return v.left.(*fakeOscillator), v.right.(*fakeOscillator)
}
