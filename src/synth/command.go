package synth

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrUnknownCommand ...
var ErrUnknownCommand = errors.New("unknown command")

func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return v, nil
}

func parseInt(s string) (int, error) {
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q: %w", s, err)
	}
	return int(v), nil
}

func expectArgs(command []string, n int) error {
	if len(command) < n+1 {
		return fmt.Errorf("%s: expected %d arguments, got %v", command[0], n, command[1:])
	}
	return nil
}

// Update executes one IPC command, such as
//
//	key_down 3 440 12.5
//	touch 3 60
//	set filter cutoff 900
func (k *Keyboard) Update(command []string) error {
	if len(command) == 0 {
		return fmt.Errorf("%w: empty", ErrUnknownCommand)
	}
	switch command[0] {
	case "key_down":
		if err := expectArgs(command, 2); err != nil {
			return err
		}
		key, err := parseInt(command[1])
		if err != nil {
			return err
		}
		freq, err := parseFloat(command[2])
		if err != nil {
			return err
		}
		x := 0.0
		if len(command) > 3 {
			if x, err = parseFloat(command[3]); err != nil {
				return err
			}
		}
		k.OnTouchDown(key, freq, x)
	case "key_up", "note_off":
		if err := expectArgs(command, 1); err != nil {
			return err
		}
		key, err := parseInt(command[1])
		if err != nil {
			return err
		}
		k.OnKeyUp(key)
	case "note_on":
		if err := expectArgs(command, 1); err != nil {
			return err
		}
		note, err := parseInt(command[1])
		if err != nil {
			return err
		}
		k.OnKeyDown(note, NoteToFrequency(note))
	case "press":
		if err := expectArgs(command, 1); err != nil {
			return err
		}
		i, err := parseInt(command[1])
		if err != nil {
			return err
		}
		if i < 0 || i >= NumKeys {
			return fmt.Errorf("press: key index %d out of range", i)
		}
		x := 0.0
		if len(command) > 2 {
			if x, err = parseFloat(command[2]); err != nil {
				return err
			}
		}
		k.PressKey(i, x)
	case "touch":
		if err := expectArgs(command, 2); err != nil {
			return err
		}
		key, err := parseInt(command[1])
		if err != nil {
			return err
		}
		x, err := parseFloat(command[2])
		if err != nil {
			return err
		}
		k.UpdateAftertouch(key, x)
	case "detune":
		if err := expectArgs(command, 1); err != nil {
			return err
		}
		mode, err := DetuneModeFromString(command[1])
		if err != nil {
			return err
		}
		k.SetDetuneMode(mode)
	case "offset":
		if err := expectArgs(command, 2); err != nil {
			return err
		}
		v, err := parseFloat(command[2])
		if err != nil {
			return err
		}
		switch command[1] {
		case "ratio":
			k.SetFrequencyOffsetRatio(v)
		case "hz":
			k.SetFrequencyOffsetHz(v)
		default:
			return fmt.Errorf("offset: unknown unit %q", command[1])
		}
	case "mode":
		if err := expectArgs(command, 1); err != nil {
			return err
		}
		m, err := KeyModeFromString(command[1])
		if err != nil {
			return err
		}
		k.SetMode(m)
	case "scale":
		if err := expectArgs(command, 2); err != nil {
			return err
		}
		s, err := ScaleByName(command[1])
		if err != nil {
			return err
		}
		root, err := parseFloat(command[2])
		if err != nil {
			return err
		}
		k.ApplyScale(s.Frequencies(root, NumKeys))
	case "set":
		return k.updateSetting(command[1:])
	default:
		return fmt.Errorf("%w %q", ErrUnknownCommand, command[0])
	}
	return nil
}

func (k *Keyboard) updateSetting(command []string) error {
	if len(command) != 3 {
		return fmt.Errorf("set: invalid key-value pair %v", command)
	}
	if command[0] == "aftertouch" {
		v, err := parseFloat(command[2])
		if err != nil {
			return err
		}
		switch command[1] {
		case "sensitivity":
			k.aftertouch.SetSensitivity(v)
		case "smoothing":
			k.aftertouch.SetSmoothingFactor(v)
		default:
			return fmt.Errorf("set aftertouch: unknown parameter %q", command[1])
		}
		return nil
	}
	p := k.Parameters()
	if err := p.Set(command[0], command[1], command[2]); err != nil {
		return err
	}
	k.UpdateParameters(p)
	return nil
}
