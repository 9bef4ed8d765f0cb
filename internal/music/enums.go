package music

import (
	"encoding/json"
	"fmt"
)

// Vocals describes a singer's role in a band.
type Vocals string

// Known vocals values. The string value is both the display and wire form.
const (
	LeadVocals       Vocals = "lead vocals"
	BackgroundVocals Vocals = "background vocals"
)

// ParseVocals converts a string value to a Vocals, erroring on unknown input.
func ParseVocals(s string) (Vocals, error) {
	v := Vocals(s)
	if !v.Valid() {
		return "", fmt.Errorf("unknown vocals kind: %q", s)
	}
	return v, nil
}

// Valid reports whether v is a recognized vocals kind.
func (v Vocals) Valid() bool {
	switch v {
	case LeadVocals, BackgroundVocals:
		return true
	}
	return false
}

// String returns the display form.
func (v Vocals) String() string { return string(v) }

// UnmarshalJSON decodes and validates a vocals value.
func (v *Vocals) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseVocals(s)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Instrument describes the instrument a songwriter plays.
type Instrument string

// Known instrument values.
const (
	LeadGuitar   Instrument = "lead guitar"
	RhythmGuitar Instrument = "rhythm guitar"
	Bass         Instrument = "bass"
	Drums        Instrument = "drums"
	Keyboards    Instrument = "keyboards"
	Vocal        Instrument = "vocals"
)

// ParseInstrument converts a string value to an Instrument, erroring on unknown input.
func ParseInstrument(s string) (Instrument, error) {
	i := Instrument(s)
	if !i.Valid() {
		return "", fmt.Errorf("unknown instrument kind: %q", s)
	}
	return i, nil
}

// Valid reports whether i is a recognized instrument kind.
func (i Instrument) Valid() bool {
	switch i {
	case LeadGuitar, RhythmGuitar, Bass, Drums, Keyboards, Vocal:
		return true
	}
	return false
}

// String returns the display form.
func (i Instrument) String() string { return string(i) }

// UnmarshalJSON decodes and validates an instrument value.
func (i *Instrument) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseInstrument(s)
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}
