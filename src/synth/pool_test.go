package synth

import (
	"context"
	"testing"
	"time"
)

func TestPoolAcquirePrefersAvailable(t *testing.T) {
	p, _, c := newTestPool(3)
	h0 := p.Acquire(220)
	c.Advance(time.Millisecond)
	h1 := p.Acquire(330)
	expectEqual(t, h0.Voice(), 0)
	expectEqual(t, h1.Voice(), 1)
	expectEqual(t, p.Voice(1).Frequency(), 330.0)
	expectEqual(t, p.Available(2), true)
}

func TestPoolStealsOldest(t *testing.T) {
	p, _, c := newTestPool(4)
	handles := make([]Handle, 4)
	for i := range handles {
		handles[i] = p.Acquire(float64(100 * (i + 1)))
		c.Advance(time.Millisecond)
	}
	// re-trigger voice 0 so that voice 1 becomes the oldest
	p.Release(handles[0])
	c.Advance(time.Second)
	h := p.Acquire(500)
	expectEqual(t, h.Voice(), 0)
	c.Advance(time.Millisecond)

	oldest := p.Voices()[1].TriggerTime
	for _, s := range p.Voices() {
		if s.Available {
			t.Fatalf("voice %d should be busy", s.ID)
		}
		if s.TriggerTime.Before(oldest) {
			t.Fatalf("voice %d is older than voice 1", s.ID)
		}
	}
	stolen := p.Acquire(600)
	expectEqual(t, stolen.Voice(), 1)
	expectEqual(t, p.Voice(1).Frequency(), 600.0)
}

func TestPoolOfTwoStealsEarlier(t *testing.T) {
	p, _, c := newTestPool(2)
	first := p.Acquire(440)
	c.Advance(10 * time.Millisecond)
	second := p.Acquire(550)
	c.Advance(10 * time.Millisecond)
	third := p.Acquire(660)
	expectEqual(t, third.Voice(), first.Voice())
	expectEqual(t, p.Voice(first.Voice()).Frequency(), 660.0)
	expectEqual(t, p.Voice(second.Voice()).Frequency(), 550.0)

	// the stolen note's handle is stale now
	expectEqual(t, p.Release(first), false)
	expectEqual(t, p.Available(third.Voice()), false)
}

func TestPoolReleaseCompletesAfterDuration(t *testing.T) {
	p, _, c := newTestPool(1)
	h := p.Acquire(440)
	expectEqual(t, p.Release(h), true)
	c.Advance(299 * time.Millisecond)
	expectEqual(t, p.Available(0), false)
	c.Advance(time.Millisecond)
	expectEqual(t, p.Available(0), true)
}

func TestPoolRetriggerBeforeReleaseTimer(t *testing.T) {
	p, _, c := newTestPool(1)
	h := p.Acquire(440)
	p.Release(h)
	c.Advance(100 * time.Millisecond)
	h2 := p.Acquire(880)
	expectEqual(t, h2.Voice(), 0)
	c.Advance(time.Second)
	expectEqual(t, p.Available(0), false)
}

func TestPoolIgnoresQueuedStaleCompletion(t *testing.T) {
	p, _, c := newTestPool(1)
	h := p.Acquire(440)
	p.Release(h)
	// the timer fires and its completion waits in the queue
	c.Advance(300 * time.Millisecond)
	p.Voice(0).Trigger(c.Now())
	expectEqual(t, p.Available(0), false)
}

func TestPoolDoubleRelease(t *testing.T) {
	p, _, c := newTestPool(1)
	h := p.Acquire(440)
	expectEqual(t, p.Release(h), true)
	expectEqual(t, p.Release(h), false)
	c.Advance(time.Second)
	expectEqual(t, p.Available(0), true)
}

func TestPoolReleaseZeroHandle(t *testing.T) {
	p, b, _ := newTestPool(1)
	expectEqual(t, p.Release(Handle{}), false)
	expectEqual(t, len(b.envelopes[0].events), 0)

	h := p.Acquire(440)
	expectEqual(t, p.Release(Handle{}), false)
	expectEqual(t, b.envelopes[0].gate, true)
	expectEqual(t, p.Release(h), true)
}

func TestPoolRetriggerReusesVoice(t *testing.T) {
	p, _, c := newTestPool(3)
	h := p.Acquire(440)
	p.Release(h)
	c.Advance(10 * time.Millisecond)
	h2 := p.Retrigger(h, 440)
	expectEqual(t, h2.Voice(), h.Voice())
	c.Advance(time.Second)
	expectEqual(t, p.Available(h.Voice()), false)
}

func TestPoolRetriggerFallsBackWhenTaken(t *testing.T) {
	p, _, c := newTestPool(1)
	h := p.Acquire(440)
	p.Release(h)
	c.Advance(time.Second)
	other := p.Acquire(550)
	c.Advance(time.Millisecond)
	h2 := p.Retrigger(h, 440)
	// only one voice: it is stolen from the other note
	expectEqual(t, h2.Voice(), 0)
	expectEqual(t, p.Release(other), false)
}

func TestPoolRunAppliesCompletions(t *testing.T) {
	p, _, c := newTestPool(1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- p.Run(ctx)
	}()
	h := p.Acquire(440)
	p.Release(h)
	c.Advance(time.Second)
	deadline := time.Now().Add(time.Second)
	for !p.Voice(0).IsAvailable() {
		if time.Now().After(deadline) {
			t.Fatal("completion was not applied")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	expectNoError(t, <-done)
}

func TestPoolDetuneSettingsReachVoices(t *testing.T) {
	p, _, _ := newTestPool(2)
	p.SetFrequencyOffsetRatio(1.5)
	h := p.Acquire(300)
	l, r := p.Voice(h.Voice()).StereoFrequencies()
	expectEqual(t, l, 450.0)
	expectEqual(t, r, 200.0)

	p.SetDetuneMode(DetuneConstant)
	p.SetFrequencyOffsetHz(2)
	l, r = p.Voice(h.Voice()).StereoFrequencies()
	expectEqual(t, l, 302.0)
	expectEqual(t, r, 298.0)
}

func TestPoolOptions(t *testing.T) {
	b := newFakeBackend()
	p := NewPool(b, DefaultVoiceParameters(), 1,
		WithClock(newFakeClock()),
		WithDetuneMode(DetuneConstant),
		WithFrequencyOffsetHz(1),
	)
	p.Initialize()
	p.Acquire(100)
	l, r := p.Voice(0).StereoFrequencies()
	expectEqual(t, l, 101.0)
	expectEqual(t, r, 99.0)
}

func TestPoolUpdateParameters(t *testing.T) {
	p, b, _ := newTestPool(2)
	params := p.Parameters()
	params.Filter.CutoffFrequency = 900
	params.Envelope.Release = 1
	p.UpdateParameters(params)
	expectEqual(t, len(b.oscillators), 4)
	for _, f := range b.filters {
		expectEqual(t, f.cutoff, 900.0)
	}
	expectEqual(t, p.Voice(0).ReleaseDuration(), time.Second)
}

func TestPoolWaveformChangeRebuildsVoices(t *testing.T) {
	p, b, c := newTestPool(2)
	h := p.Acquire(440)
	c.Advance(time.Millisecond)
	params := p.Parameters()
	params.Oscillator.Waveform = WaveSquare
	p.UpdateParameters(params)
	expectEqual(t, len(b.oscillators), 8)
	expectEqual(t, b.disconnected, 2)
	expectEqual(t, len(b.connected), 2)
	for _, o := range b.oscillators[4:] {
		expectEqual(t, o.params.Waveform, WaveSquare)
		expectEqual(t, o.starts, 1)
	}
	expectEqual(t, p.Available(h.Voice()), true)
	expectEqual(t, p.Release(h), false)
}

func TestNewPoolRejectsSize(t *testing.T) {
	expectPanic(t, func() {
		NewPool(newFakeBackend(), DefaultVoiceParameters(), 0)
	})
	expectPanic(t, func() {
		NewPool(newFakeBackend(), DefaultVoiceParameters(), MaxPolyphony+1)
	})
}

func TestPoolAcquireBeforeInitializePanics(t *testing.T) {
	p := NewPool(newFakeBackend(), DefaultVoiceParameters(), 1)
	expectPanic(t, func() {
		p.Acquire(440)
	})
}
