package control

import (
	"fmt"
	"strings"
)

// Mode is the controller operating mode.
type Mode int

const (
	Auto Mode = iota
	Manual
	Tracking
)

var modeNames = map[Mode]string{
	Auto:     "auto",
	Manual:   "manual",
	Tracking: "tracking",
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

func (m Mode) MarshalText() ([]byte, error) {
	if _, ok := modeNames[m]; !ok {
		return nil, fmt.Errorf("control: unknown mode %d", int(m))
	}
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(text []byte) error {
	v, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// ParseMode accepts the lower-case names used in scenario files.
func ParseMode(s string) (Mode, error) {
	for m, name := range modeNames {
		if strings.EqualFold(s, name) {
			return m, nil
		}
	}
	return Auto, fmt.Errorf("control: unknown mode %q", s)
}

// FreezeMode selects the anti-windup policy applied in Auto.
type FreezeMode int

const (
	// NoFreeze back-corrects the integral whenever the output saturates.
	NoFreeze FreezeMode = iota
	// FreezeUp stops integration that would push the output further above UMax.
	FreezeUp
	// FreezeDown stops integration that would push the output further below UMin.
	FreezeDown
)

var freezeNames = map[FreezeMode]string{
	NoFreeze:   "no_freeze",
	FreezeUp:   "freeze_up",
	FreezeDown: "freeze_down",
}

func (f FreezeMode) String() string {
	if s, ok := freezeNames[f]; ok {
		return s
	}
	return fmt.Sprintf("FreezeMode(%d)", int(f))
}

func (f FreezeMode) MarshalText() ([]byte, error) {
	if _, ok := freezeNames[f]; !ok {
		return nil, fmt.Errorf("control: unknown freeze mode %d", int(f))
	}
	return []byte(f.String()), nil
}

func (f *FreezeMode) UnmarshalText(text []byte) error {
	v, err := ParseFreezeMode(string(text))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

func ParseFreezeMode(s string) (FreezeMode, error) {
	for f, name := range freezeNames {
		if strings.EqualFold(s, name) {
			return f, nil
		}
	}
	return NoFreeze, fmt.Errorf("control: unknown freeze mode %q", s)
}
