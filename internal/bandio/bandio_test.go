package bandio

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mveselin/backbeat/internal/music"
)

func testBands(t *testing.T) []music.Band {
	t.Helper()

	lennon, err := music.NewMusician("John Lennon")
	if err != nil {
		t.Fatalf("NewMusician: %v", err)
	}
	mccartney, err := music.NewMusician("Paul McCartney")
	if err != nil {
		t.Fatalf("NewMusician: %v", err)
	}

	beatles, err := music.NewBand("The Beatles", []music.Musician{lennon, mccartney},
		music.WithStart(music.NewDate(1962, time.October, 5)),
		music.WithEnd(music.NewDate(1970, time.April, 11)),
	)
	if err != nil {
		t.Fatalf("NewBand: %v", err)
	}
	floyd, err := music.NewBand("Pink Floyd", nil,
		music.WithStart(music.NewDate(1965, time.January, 1)),
		music.WithEnd(music.NewDate(1995, time.January, 1)),
	)
	if err != nil {
		t.Fatalf("NewBand: %v", err)
	}
	return []music.Band{beatles, floyd}
}

func TestExportImport_RoundTrip(t *testing.T) {
	bands := testBands(t)

	var buf bytes.Buffer
	if err := Export(&buf, bands); err != nil {
		t.Fatalf("Export: %v", err)
	}

	got, err := Import(&buf)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(got) != len(bands) {
		t.Fatalf("Import returned %d bands, want %d", len(got), len(bands))
	}
	for i := range bands {
		if !got[i].Equal(bands[i]) {
			t.Errorf("band %d: round trip = %+v, want %+v", i, got[i], bands[i])
		}
	}
}

func TestImport_RejectsWrongVersion(t *testing.T) {
	doc := `{"version":"99","app_version":"x","created_at":"2026-01-01T00:00:00Z","bands":[]}`
	if _, err := Import(strings.NewReader(doc)); err == nil {
		t.Fatal("expected error for unsupported version")
	}
}

func TestWriteReadJSON(t *testing.T) {
	bands := testBands(t)
	path := filepath.Join(t.TempDir(), "bands.json")

	if err := WriteJSON(path, bands); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	got, err := ReadJSON(path)
	if err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	for i := range bands {
		if !got[i].Equal(bands[i]) {
			t.Errorf("band %d: round trip = %+v, want %+v", i, got[i], bands[i])
		}
	}
}

func TestDecodeBands_Shapes(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    int
		wantErr bool
	}{
		{
			"bare array",
			`[{"name":"The Beatles","members":[],"start":"1962-10-05","end":"1970-04-11"}]`,
			1, false,
		},
		{
			"single object",
			`{"name":"Pink Floyd","members":[],"start":"1965-01-01","end":"1995-01-01"}`,
			1, false,
		},
		{
			"envelope",
			`{"version":"1","bands":[{"name":"The Who","members":[],"start":"1964-01-01","end":"1983-01-01"}]}`,
			1, false,
		},
		{"empty input", "   \n", 0, true},
		{"invalid band name", `{"name":"x","members":[]}`, 0, true},
		{"garbage", "not json", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeBands([]byte(tt.in))
			if tt.wantErr {
				if err == nil {
					t.Errorf("DecodeBands succeeded, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeBands: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("DecodeBands returned %d bands, want %d", len(got), tt.want)
			}
		})
	}
}

func TestWriteReadText(t *testing.T) {
	bands := testBands(t)
	path := filepath.Join(t.TempDir(), "bands.txt")

	if err := WriteText(path, bands); err != nil {
		t.Fatalf("WriteText: %v", err)
	}

	lines, err := ReadText(path)
	if err != nil {
		t.Fatalf("ReadText: %v", err)
	}
	want := []string{
		"The Beatles: John Lennon (band member), Paul McCartney (band member) (1962-1970)",
		"Pink Floyd (1965-1995)",
	}
	if len(lines) != len(want) {
		t.Fatalf("ReadText returned %d lines, want %d", len(lines), len(want))
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}
