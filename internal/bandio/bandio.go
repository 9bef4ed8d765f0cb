// Package bandio reads and writes the portable band file formats: a plain
// text listing (one display line per band) and a versioned JSON document.
package bandio

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mveselin/backbeat/internal/filesystem"
	"github.com/mveselin/backbeat/internal/music"
	"github.com/mveselin/backbeat/internal/version"
)

// FormatVersion is the JSON document format version. Import rejects
// documents written with a different version.
const FormatVersion = "1"

// Envelope is the outer JSON wrapper for an exported band document.
type Envelope struct {
	Version    string       `json:"version"`
	AppVersion string       `json:"app_version"`
	CreatedAt  string       `json:"created_at"`
	Bands      []music.Band `json:"bands"`
}

// Export writes bands to w as an indented JSON document.
func Export(w io.Writer, bands []music.Band) error {
	env := Envelope{
		Version:    FormatVersion,
		AppVersion: version.Version,
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
		Bands:      bands,
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(env); err != nil {
		return fmt.Errorf("encoding band document: %w", err)
	}
	return nil
}

// Import reads a JSON band document from r, validating the format version.
func Import(r io.Reader) ([]music.Band, error) {
	var env Envelope
	dec := json.NewDecoder(r)
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("decoding band document: %w", err)
	}
	if env.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported band document version %q (want %q)", env.Version, FormatVersion)
	}
	return env.Bands, nil
}

// WriteJSON exports bands to a JSON document at path, written atomically.
func WriteJSON(path string, bands []music.Band) error {
	var buf bytes.Buffer
	if err := Export(&buf, bands); err != nil {
		return err
	}
	if err := filesystem.WriteFileAtomic(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing band document: %w", err)
	}
	return nil
}

// ReadJSON imports a JSON band document from path.
func ReadJSON(path string) ([]music.Band, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path comes from operator input
	if err != nil {
		return nil, fmt.Errorf("opening band document: %w", err)
	}
	defer f.Close() //nolint:errcheck
	return Import(f)
}

// DecodeBands decodes band JSON in any of the accepted shapes: a versioned
// envelope, a bare array of bands, or a single band object. Used by the
// inbox so drop files do not have to be full export documents.
func DecodeBands(data []byte) ([]music.Band, error) {
	trimmed := bytes.TrimLeftFunc(data, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty band document")
	}

	if trimmed[0] == '[' {
		var bands []music.Band
		if err := json.Unmarshal(trimmed, &bands); err != nil {
			return nil, fmt.Errorf("decoding band array: %w", err)
		}
		return bands, nil
	}

	// An object is an envelope if it carries a version field, otherwise a
	// single band.
	var probe struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return nil, fmt.Errorf("decoding band document: %w", err)
	}
	if probe.Version != "" {
		return Import(bytes.NewReader(trimmed))
	}

	var band music.Band
	if err := json.Unmarshal(trimmed, &band); err != nil {
		return nil, fmt.Errorf("decoding band: %w", err)
	}
	return []music.Band{band}, nil
}

// WriteText writes one display line per band, newline-terminated, UTF-8,
// atomically.
func WriteText(path string, bands []music.Band) error {
	var b strings.Builder
	for _, band := range bands {
		b.WriteString(band.DisplayString())
		b.WriteByte('\n')
	}
	if err := filesystem.WriteFileAtomic(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("writing band listing: %w", err)
	}
	return nil
}

// ReadText returns the non-empty lines of a band listing file.
func ReadText(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path comes from operator input
	if err != nil {
		return nil, fmt.Errorf("opening band listing: %w", err)
	}
	defer f.Close() //nolint:errcheck

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading band listing: %w", err)
	}
	return lines, nil
}
