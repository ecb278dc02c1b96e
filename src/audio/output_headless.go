//go:build headless

package audio

import (
	"context"
	"io"
	"log"
	"time"
)

// ----- Output ----- //

// Output renders an Engine in real time and discards the samples. It keeps
// timers and reports running where no audio device exists.
type Output struct {
	engine *Engine
}

// NewOutput ...
func NewOutput(e *Engine) (*Output, error) {
	return &Output{engine: e}, nil
}

// Start blocks until ctx is done.
func (o *Output) Start(ctx context.Context) error {
	t := time.NewTicker(time.Second * samplesPerCycle / sampleRate)
	defer t.Stop()
	buf := make([]byte, bufferSizeInBytes)
	r := o.engine.Stream(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Println("Start() ended.")
			return nil
		case <-t.C:
			if _, err := r.Read(buf); err != nil && err != io.EOF {
				return err
			}
		}
	}
}

// Close ...
func (o *Output) Close() error {
	log.Println("Closing Output...")
	return nil
}
