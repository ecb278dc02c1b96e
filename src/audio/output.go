//go:build !headless

package audio

import (
	"context"
	"io"
	"log"

	"github.com/hajimehoshi/oto"
)

// ----- Output ----- //

// Output plays an Engine on the default audio device.
type Output struct {
	otoContext *oto.Context
	engine     *Engine
}

// NewOutput ...
func NewOutput(e *Engine) (*Output, error) {
	otoContext, err := oto.NewContext(sampleRate, channelNum, bitDepthInBytes, bufferSizeInBytes)
	if err != nil {
		return nil, err
	}
	return &Output{
		otoContext: otoContext,
		engine:     e,
	}, nil
}

// Start blocks until ctx is done.
func (o *Output) Start(ctx context.Context) error {
	p := o.otoContext.NewPlayer()
	defer func() {
		if err := p.Close(); err != nil {
			log.Printf("error: %v", err)
		}
	}()
	if _, err := io.CopyBuffer(p, o.engine.Stream(ctx), make([]byte, bufferSizeInBytes)); err != nil {
		return err
	}
	log.Println("Start() ended.")
	return nil
}

// Close ...
func (o *Output) Close() error {
	log.Println("Closing Output...")
	return o.otoContext.Close()
}
