package audio

import (
	"context"
	"log"
	"strings"

	"github.com/jinjor/polysynth/src/synth"
	"gitlab.com/gomidi/midi"
	"gitlab.com/gomidi/rtmididrv"
)

// ports that are never picked automatically
var excludedPortPatterns = []string{"Midi Through", "Through Port", "Dummy"}

// ----- MIDI Message ----- //

const (
	midiNoteOff      = 0x8
	midiNoteOn       = 0x9
	midiPolyPressure = 0xA
)

// MidiMessage is a decoded channel voice message.
type MidiMessage struct {
	Kind     int
	Channel  int
	Note     int
	Value    int // velocity or pressure
	Released bool
}

// ParseMidiMessage decodes note on/off and polyphonic key pressure. A note-on
// with velocity 0 is a note-off.
func ParseMidiMessage(data []byte) (MidiMessage, bool) {
	if len(data) < 3 {
		return MidiMessage{}, false
	}
	m := MidiMessage{
		Kind:    int(data[0] >> 4),
		Channel: int(data[0] & 0x0F),
		Note:    int(data[1] & 0x7F),
		Value:   int(data[2] & 0x7F),
	}
	switch m.Kind {
	case midiNoteOff:
		m.Released = true
	case midiNoteOn:
		if m.Value == 0 {
			m.Kind = midiNoteOff
			m.Released = true
		}
	case midiPolyPressure:
	default:
		return MidiMessage{}, false
	}
	return m, true
}

// HandleMidi plays data on k. The key index is the note number.
func HandleMidi(k *synth.Keyboard, data []byte) {
	m, ok := ParseMidiMessage(data)
	if !ok {
		return
	}
	switch m.Kind {
	case midiNoteOn:
		log.Printf("got note-on: %v\n", data)
		k.OnKeyDown(m.Note, synth.NoteToFrequency(m.Note))
	case midiNoteOff:
		log.Printf("got note-off: %v\n", data)
		k.OnKeyUp(m.Note)
	case midiPolyPressure:
		k.UpdateAftertouch(m.Note, float64(m.Value))
	}
}

// ----- MIDI IN ----- //

func containsCI(s string, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// pickMidiIn returns the first port whose name contains name, or the first
// non-virtual port when name is empty.
func pickMidiIn(ins []midi.In, name string) (midi.In, bool) {
	for _, in := range ins {
		if name != "" {
			if containsCI(in.String(), name) {
				return in, true
			}
			continue
		}
		excluded := false
		for _, pat := range excludedPortPatterns {
			if containsCI(in.String(), pat) {
				excluded = true
				break
			}
		}
		if !excluded {
			return in, true
		}
	}
	return nil, false
}

// ListenToMidiIn streams raw messages from the selected MIDI IN port until ctx
// is done. The channel is closed on exit; it is closed immediately if no port
// can be opened.
func ListenToMidiIn(ctx context.Context, name string) <-chan []byte {
	ch := make(chan []byte, 65536)
	go func() {
		defer close(ch)
		drv, err := rtmididrv.New()
		if err != nil {
			log.Printf("failed to initialize MIDI driver: %v\n", err)
			return
		}
		defer func() {
			err := drv.Close()
			if err != nil {
				log.Printf("failed to close MIDI driver: %v\n", err)
			}
		}()
		ins, err := drv.Ins()
		if err != nil {
			log.Printf("failed to get MIDI IN: %v\n", err)
			return
		}
		log.Printf("MIDI IN: %v\n", ins)

		in, ok := pickMidiIn(ins, name)
		if !ok {
			log.Println("WARN: MIDI IN not found")
			return
		}
		if err := in.Open(); err != nil {
			log.Printf("failed to open MIDI IN: %v\n", err)
			return
		}
		log.Println("opened " + in.String())
		defer func() {
			err := in.Close()
			if err != nil {
				log.Printf("failed to close MIDI IN: %v\n", err)
			}
		}()
		log.Println("start listening MIDI IN...")
		if err := in.SetListener(func(data []byte, deltaMicroseconds int64) {
			msg := make([]byte, len(data))
			copy(msg, data)
			select {
			case ch <- msg:
			default:
				log.Println("[WARN] MIDI IN buffer full")
			}
		}); err != nil {
			log.Println("failed to set listener: " + err.Error())
			return
		}
		defer func() {
			log.Println("stop listening MIDI IN...")
			err := in.StopListening()
			if err != nil {
				log.Printf("failed to stop listening: %v\n", err)
			}
		}()
		<-ctx.Done()
	}()
	return ch
}

// PlayMidi feeds messages from ch to k until ch is closed or ctx is done.
func PlayMidi(ctx context.Context, k *synth.Keyboard, ch <-chan []byte) error {
	for {
		select {
		case <-ctx.Done():
			log.Println("PlayMidi() interrupted")
			return nil
		case data, ok := <-ch:
			if !ok {
				log.Println("PlayMidi() ended.")
				return nil
			}
			HandleMidi(k, data)
		}
	}
}
