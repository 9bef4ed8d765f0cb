package music

import "fmt"

// InvalidBandNameError is returned when a band is constructed with a name
// shorter than two characters.
type InvalidBandNameError struct {
	Name string
}

func (e *InvalidBandNameError) Error() string {
	return fmt.Sprintf("%q is not a valid band name", e.Name)
}

// InvalidMusicianNameError is returned when a musician is constructed or
// renamed with an empty or blank name.
type InvalidMusicianNameError struct {
	Name string
}

func (e *InvalidMusicianNameError) Error() string {
	return fmt.Sprintf("%q is not a valid musician name", e.Name)
}
