package music

import (
	"encoding/json"
	"fmt"
	"iter"
	"strings"
	"time"
	"unicode/utf8"
)

// earliestValidDate bounds a band's active range: no band in the catalog
// performs since before 1960.
var earliestValidDate = NewDate(1960, time.January, 1)

// Band is a named aggregate of musicians active over a date range. Members
// preserve insertion order; equality ignores it (see Equal).
type Band struct {
	Name    string     `json:"name"`
	Members []Musician `json:"members"`
	Start   Date       `json:"start"`
	End     Date       `json:"end"`
}

// BandOption configures optional band fields at construction.
type BandOption func(*Band)

// WithStart sets the date the band started performing together.
func WithStart(d Date) BandOption {
	return func(b *Band) { b.Start = d }
}

// WithEnd sets the date the band stopped performing together.
func WithEnd(d Date) BandOption {
	return func(b *Band) { b.End = d }
}

// NewBand constructs a band. The name must be at least two characters;
// start and end both default to today. The member slice is copied.
func NewBand(name string, members []Musician, opts ...BandOption) (Band, error) {
	if utf8.RuneCountInString(name) < 2 {
		return Band{}, &InvalidBandNameError{Name: name}
	}

	copied := make([]Musician, len(members))
	copy(copied, members)

	b := Band{
		Name:    name,
		Members: copied,
		Start:   Today(),
		End:     Today(),
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b, nil
}

// IsDateValid reports whether d is a plausible band career date: between
// January 1, 1960 and today, inclusive.
func IsDateValid(d Date) bool {
	if d.IsZero() {
		return false
	}
	return !d.Before(earliestValidDate) && !d.After(Today())
}

// DisplayString renders the band in its canonical one-line form, e.g.
// "The Beatles: John Lennon (band member), Paul McCartney (band member) (1962-1970)".
// The colon and member list are omitted when the band has no members.
func (b Band) DisplayString() string {
	years := fmt.Sprintf("(%d-%d)", b.Start.Year, b.End.Year)
	if len(b.Members) == 0 {
		return b.Name + " " + years
	}

	parts := make([]string, len(b.Members))
	for i, m := range b.Members {
		parts[i] = m.DisplayString()
	}
	return fmt.Sprintf("%s: %s %s", b.Name, strings.Join(parts, ", "), years)
}

// All returns the members as a sequence in insertion order. Each call
// produces an independent iterator, so nested and repeated iteration are
// safe and always restart from the first member.
func (b Band) All() iter.Seq[Musician] {
	return func(yield func(Musician) bool) {
		for _, m := range b.Members {
			if !yield(m) {
				return
			}
		}
	}
}

// Equal reports band equality: same name, same start and end year, and the
// same members regardless of order. Membership is compared by double
// containment, so duplicate members do not contribute multiplicity.
func (b Band) Equal(other Band) bool {
	if b.Name != other.Name ||
		b.Start.Year != other.Start.Year ||
		b.End.Year != other.End.Year {
		return false
	}
	return containsAll(b.Members, other.Members) && containsAll(other.Members, b.Members)
}

// containsAll reports whether every musician in want has an equal member in have.
func containsAll(have, want []Musician) bool {
	for _, w := range want {
		found := false
		for _, h := range have {
			if h.Equal(w) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// UnmarshalJSON decodes a band and applies construction validation. Missing
// dates default to today, mirroring NewBand.
func (b *Band) UnmarshalJSON(data []byte) error {
	type alias Band
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	decoded := Band(a)
	if utf8.RuneCountInString(decoded.Name) < 2 {
		return &InvalidBandNameError{Name: decoded.Name}
	}
	if decoded.Start.IsZero() {
		decoded.Start = Today()
	}
	if decoded.End.IsZero() {
		decoded.End = Today()
	}
	*b = decoded
	return nil
}
