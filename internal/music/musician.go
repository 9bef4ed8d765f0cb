package music

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Role classifies a musician by which capabilities are set.
type Role string

// Musician roles.
const (
	RoleMusician         Role = "musician"
	RoleSinger           Role = "singer"
	RoleSongwriter       Role = "songwriter"
	RoleSingerSongwriter Role = "singer-songwriter"
)

// Musician represents a person participating in music performance. Vocals
// and Instrument are optional capabilities: a musician with vocals is a
// singer, one with an instrument is a songwriter, and one with both is a
// singer-songwriter.
type Musician struct {
	Name       string      `json:"name"`
	BandMember bool        `json:"is_band_member"`
	Vocals     *Vocals     `json:"vocals,omitempty"`
	Instrument *Instrument `json:"instrument,omitempty"`
}

// MusicianOption configures optional musician fields at construction.
type MusicianOption func(*Musician)

// Solo marks the musician as a solo act rather than a band member.
func Solo() MusicianOption {
	return func(m *Musician) { m.BandMember = false }
}

// WithVocals gives the musician a singing role.
func WithVocals(v Vocals) MusicianOption {
	return func(m *Musician) { m.Vocals = &v }
}

// WithInstrument gives the musician a songwriting role.
func WithInstrument(i Instrument) MusicianOption {
	return func(m *Musician) { m.Instrument = &i }
}

// NewMusician constructs a musician. The name must be non-blank; band
// membership defaults to true.
func NewMusician(name string, opts ...MusicianOption) (Musician, error) {
	m := Musician{Name: name, BandMember: true}
	for _, opt := range opts {
		opt(&m)
	}
	if err := m.validate(); err != nil {
		return Musician{}, err
	}
	return m, nil
}

func (m Musician) validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return &InvalidMusicianNameError{Name: m.Name}
	}
	if m.Vocals != nil && !m.Vocals.Valid() {
		return fmt.Errorf("unknown vocals kind: %q", *m.Vocals)
	}
	if m.Instrument != nil && !m.Instrument.Valid() {
		return fmt.Errorf("unknown instrument kind: %q", *m.Instrument)
	}
	return nil
}

// Rename changes the musician's name, applying the same validation as
// construction.
func (m *Musician) Rename(name string) error {
	if strings.TrimSpace(name) == "" {
		return &InvalidMusicianNameError{Name: name}
	}
	m.Name = name
	return nil
}

// Role returns the musician's role derived from the optional capabilities.
func (m Musician) Role() Role {
	switch {
	case m.Vocals != nil && m.Instrument != nil:
		return RoleSingerSongwriter
	case m.Vocals != nil:
		return RoleSinger
	case m.Instrument != nil:
		return RoleSongwriter
	default:
		return RoleMusician
	}
}

const (
	bandMemberLabel   = "band member"
	soloMusicianLabel = "solo musician"
)

// DisplayString renders the musician in its canonical one-line form, e.g.
// "George Harrison (band member), lead vocals". The instrument suffix, when
// present, precedes the vocals suffix.
func (m Musician) DisplayString() string {
	var b strings.Builder
	b.WriteString(m.Name)
	if m.BandMember {
		b.WriteString(" (" + bandMemberLabel + ")")
	} else {
		b.WriteString(" (" + soloMusicianLabel + ")")
	}
	if m.Instrument != nil {
		b.WriteString(", " + m.Instrument.String())
	}
	if m.Vocals != nil {
		b.WriteString(", " + m.Vocals.String())
	}
	return b.String()
}

// ParseMusician is the inverse of DisplayString. Malformed input is a parse
// error, never silently coerced.
func ParseMusician(s string) (Musician, error) {
	name, rest, found := strings.Cut(s, " (")
	if !found || name == "" {
		return Musician{}, fmt.Errorf("malformed musician display string: %q", s)
	}

	membership, suffix, found := strings.Cut(rest, ")")
	if !found {
		return Musician{}, fmt.Errorf("malformed musician display string: %q", s)
	}

	m := Musician{Name: name}
	switch membership {
	case bandMemberLabel:
		m.BandMember = true
	case soloMusicianLabel:
		m.BandMember = false
	default:
		return Musician{}, fmt.Errorf("malformed musician display string: unknown membership %q", membership)
	}

	for _, part := range strings.Split(suffix, ", ") {
		if part == "" {
			continue
		}
		if i, err := ParseInstrument(part); err == nil {
			m.Instrument = &i
			continue
		}
		if v, err := ParseVocals(part); err == nil {
			m.Vocals = &v
			continue
		}
		return Musician{}, fmt.Errorf("malformed musician display string: unknown role %q", part)
	}

	if err := m.validate(); err != nil {
		return Musician{}, err
	}
	return m, nil
}

// Equal reports structural equality: same role, name, membership, and role
// fields.
func (m Musician) Equal(other Musician) bool {
	return m.Name == other.Name &&
		m.BandMember == other.BandMember &&
		equalPtr(m.Vocals, other.Vocals) &&
		equalPtr(m.Instrument, other.Instrument)
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Performance carries the optional trappings of a played song.
type Performance struct {
	// Gratitude phrases spoken during the song, in order.
	Gratitude []string
	// RhythmCount is the count-in, e.g. "One, two, three, four!".
	RhythmCount string
	// Messages are extra callouts to the audience. Values are emitted in
	// sorted-key order so the output is deterministic.
	Messages map[string]string
}

// Play renders a performance line for the song. Singers close with an extra
// "Yeah!" line. Pure function: printing is the caller's concern.
func (m Musician) Play(songTitle string, p Performance) string {
	gratitude := strings.Join(p.Gratitude, " ")

	keys := make([]string, 0, len(p.Messages))
	for k := range p.Messages {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	values := make([]string, 0, len(keys))
	for _, k := range keys {
		values = append(values, p.Messages[k])
	}
	messages := strings.Join(values, " ")

	out := fmt.Sprintf("%s playing %q: %s ...playing... %s %s",
		m.Name, songTitle, p.RhythmCount, gratitude, messages)
	if m.Vocals != nil {
		out += "\nYeah!"
	}
	return out
}

// UnmarshalJSON decodes a musician and applies construction validation, so
// invalid names or role values cannot enter through the wire. A document
// that omits is_band_member gets the constructor default of true.
func (m *Musician) UnmarshalJSON(data []byte) error {
	type alias Musician
	a := alias{BandMember: true}
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	decoded := Musician(a)
	if err := decoded.validate(); err != nil {
		return err
	}
	*m = decoded
	return nil
}
