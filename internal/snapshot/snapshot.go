// Package snapshot persists a sequence of bands as a single opaque blob.
// The format is private to backbeat: a fixed magic, a BLAKE2b-256 checksum
// of the payload, and a gob-encoded payload. Snapshots written by one
// version of the program are only guaranteed readable by the same program.
package snapshot

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/mveselin/backbeat/internal/filesystem"
	"github.com/mveselin/backbeat/internal/music"
)

// magic identifies a backbeat snapshot file.
const magic = "BBSNAP01"

// ErrNotSnapshot is returned when a file does not start with the snapshot magic.
var ErrNotSnapshot = errors.New("not a backbeat snapshot file")

// ErrChecksum is returned when the payload checksum does not match, which
// means the file was truncated or corrupted after writing.
var ErrChecksum = errors.New("snapshot checksum mismatch")

// payload is the gob-encoded body of a snapshot.
type payload struct {
	CreatedAt time.Time
	Bands     []music.Band
}

// Encode serializes bands into the snapshot wire form.
func Encode(bands []music.Band) ([]byte, error) {
	var body bytes.Buffer
	enc := gob.NewEncoder(&body)
	if err := enc.Encode(payload{CreatedAt: time.Now().UTC(), Bands: bands}); err != nil {
		return nil, fmt.Errorf("encoding snapshot payload: %w", err)
	}

	sum := blake2b.Sum256(body.Bytes())

	out := make([]byte, 0, len(magic)+len(sum)+body.Len())
	out = append(out, magic...)
	out = append(out, sum[:]...)
	out = append(out, body.Bytes()...)
	return out, nil
}

// Decode parses the snapshot wire form, verifying the magic and checksum
// before trusting the payload.
func Decode(data []byte) ([]music.Band, error) {
	headerLen := len(magic) + blake2b.Size256
	if len(data) < headerLen || string(data[:len(magic)]) != magic {
		return nil, ErrNotSnapshot
	}

	var sum [blake2b.Size256]byte
	copy(sum[:], data[len(magic):headerLen])
	body := data[headerLen:]

	if blake2b.Sum256(body) != sum {
		return nil, ErrChecksum
	}

	var p payload
	dec := gob.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decoding snapshot payload: %w", err)
	}
	return p.Bands, nil
}

// Write encodes bands and writes the snapshot to path atomically.
func Write(path string, bands []music.Band) error {
	data, err := Encode(bands)
	if err != nil {
		return err
	}
	if err := filesystem.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}

// Read loads and decodes the snapshot at path.
func Read(path string) ([]music.Band, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from operator input
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	return Decode(data)
}
