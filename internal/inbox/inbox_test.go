package inbox

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mveselin/backbeat/internal/catalog"
	"github.com/mveselin/backbeat/internal/database"
	"github.com/mveselin/backbeat/internal/event"
	"github.com/mveselin/backbeat/internal/music"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupInbox(t *testing.T) (*Service, *catalog.Service, string) {
	t.Helper()

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}

	cat := catalog.NewService(db)
	dir := t.TempDir()
	svc := NewService(dir, cat, nil, 100, 10*time.Millisecond, testLogger())
	return svc, cat, dir
}

func dropFile(t *testing.T, dir, name, contents string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o600); err != nil {
		t.Fatalf("writing drop file: %v", err)
	}
}

func TestProcessPending_ImportsSingleBand(t *testing.T) {
	svc, cat, dir := setupInbox(t)
	ctx := context.Background()

	dropFile(t, dir, "metallica.json", `{
		"name": "Metallica",
		"members": [{"name": "James Hetfield", "is_band_member": true, "vocals": "lead vocals"}],
		"start": "1981-10-28"
	}`)

	if err := svc.ProcessPending(ctx); err != nil {
		t.Fatalf("ProcessPending: %v", err)
	}

	rec, err := cat.GetByName(ctx, "Metallica")
	if err != nil {
		t.Fatalf("GetByName: %v", err)
	}
	if rec == nil {
		t.Fatal("band was not imported")
	}
	if len(rec.Band.Members) != 1 || rec.Band.Members[0].Name != "James Hetfield" {
		t.Errorf("imported members = %+v", rec.Band.Members)
	}

	if _, err := os.Stat(filepath.Join(dir, processedDir, "metallica.json")); err != nil {
		t.Errorf("drop file not moved to processed/: %v", err)
	}
}

func TestProcessPending_ImportsArray(t *testing.T) {
	svc, cat, dir := setupInbox(t)
	ctx := context.Background()

	dropFile(t, dir, "batch.json", `[
		{"name": "The Beatles", "start": "1962-10-05", "end": "1970-04-11"},
		{"name": "The Kinks", "start": "1964-01-01"}
	]`)

	if err := svc.ProcessPending(ctx); err != nil {
		t.Fatalf("ProcessPending: %v", err)
	}

	n, err := cat.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 2 {
		t.Errorf("catalog count = %d, want 2", n)
	}
}

func TestProcessPending_RejectsMalformedJSON(t *testing.T) {
	svc, cat, dir := setupInbox(t)
	ctx := context.Background()

	dropFile(t, dir, "broken.json", `{not json`)

	if err := svc.ProcessPending(ctx); err != nil {
		t.Fatalf("ProcessPending: %v", err)
	}

	n, err := cat.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 0 {
		t.Errorf("catalog count = %d, want 0", n)
	}
	if _, err := os.Stat(filepath.Join(dir, failedDir, "broken.json")); err != nil {
		t.Errorf("drop file not moved to failed/: %v", err)
	}
}

func TestProcessPending_RejectsInvalidBandName(t *testing.T) {
	svc, cat, dir := setupInbox(t)
	ctx := context.Background()

	dropFile(t, dir, "short.json", `{"name": "X"}`)

	if err := svc.ProcessPending(ctx); err != nil {
		t.Fatalf("ProcessPending: %v", err)
	}

	n, err := cat.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 0 {
		t.Errorf("catalog count = %d, want 0", n)
	}
	if _, err := os.Stat(filepath.Join(dir, failedDir, "short.json")); err != nil {
		t.Errorf("drop file not moved to failed/: %v", err)
	}
}

func TestProcessPending_UpdatesExistingBand(t *testing.T) {
	svc, cat, dir := setupInbox(t)
	ctx := context.Background()

	ringo := mustMusician(t, "Ringo Starr", music.WithInstrument(music.Drums))
	original, err := music.NewBand("The Beatles", []music.Musician{ringo},
		music.WithStart(music.NewDate(1962, time.October, 5)))
	if err != nil {
		t.Fatalf("NewBand: %v", err)
	}
	if _, err := cat.Create(ctx, original); err != nil {
		t.Fatalf("Create: %v", err)
	}

	dropFile(t, dir, "beatles.json", `{
		"name": "The Beatles",
		"members": [
			{"name": "Ringo Starr", "is_band_member": true, "instrument": "drums"},
			{"name": "John Lennon", "is_band_member": true, "vocals": "lead vocals"}
		],
		"start": "1962-10-05",
		"end": "1970-04-11"
	}`)

	if err := svc.ProcessPending(ctx); err != nil {
		t.Fatalf("ProcessPending: %v", err)
	}

	rec, err := cat.GetByName(ctx, "The Beatles")
	if err != nil {
		t.Fatalf("GetByName: %v", err)
	}
	if rec == nil {
		t.Fatal("band missing after update")
	}
	if len(rec.Band.Members) != 2 {
		t.Errorf("got %d members after update, want 2", len(rec.Band.Members))
	}

	n, err := cat.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Errorf("catalog count = %d, want 1", n)
	}
}

func TestProcessPending_PublishesBandCreated(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.Migrate(db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}

	bus := event.NewBus(testLogger(), 16)
	busCtx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go bus.Run(busCtx)

	var mu sync.Mutex
	var created []string
	bus.Subscribe(event.BandCreated, func(e event.Event) {
		mu.Lock()
		created = append(created, e.Data["band"].(string))
		mu.Unlock()
	})

	dir := t.TempDir()
	svc := NewService(dir, catalog.NewService(db), bus, 100, 10*time.Millisecond, testLogger())
	dropFile(t, dir, "cream.json", `{"name": "Cream", "start": "1966-07-01"}`)

	if err := svc.ProcessPending(context.Background()); err != nil {
		t.Fatalf("ProcessPending: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(created)
		mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for band.created event")
		}
		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if created[0] != "Cream" {
		t.Errorf("band.created payload = %q, want %q", created[0], "Cream")
	}
}

func TestProcessPending_SkipsNonJSONAndHiddenFiles(t *testing.T) {
	svc, _, dir := setupInbox(t)
	ctx := context.Background()

	dropFile(t, dir, "notes.txt", "not a band")
	dropFile(t, dir, ".hidden.json", `{"name": "The Hidden"}`)

	if err := svc.ProcessPending(ctx); err != nil {
		t.Fatalf("ProcessPending: %v", err)
	}

	// Neither file should have been touched.
	if _, err := os.Stat(filepath.Join(dir, "notes.txt")); err != nil {
		t.Errorf("notes.txt was moved: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".hidden.json")); err != nil {
		t.Errorf(".hidden.json was moved: %v", err)
	}
}

func TestStart_PicksUpDroppedFile(t *testing.T) {
	svc, cat, dir := setupInbox(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := svc.Start(ctx); err != nil {
			t.Errorf("Start: %v", err)
		}
	}()

	// Give the watcher a moment to register before dropping the file.
	time.Sleep(100 * time.Millisecond)
	dropFile(t, dir, "cream.json", `{"name": "Cream", "start": "1966-07-01"}`)

	deadline := time.Now().Add(5 * time.Second)
	for {
		rec, err := cat.GetByName(context.Background(), "Cream")
		if err != nil {
			t.Fatalf("GetByName: %v", err)
		}
		if rec != nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for watcher import")
		}
		time.Sleep(25 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop after cancel")
	}
}

func mustMusician(t *testing.T, name string, opts ...music.MusicianOption) music.Musician {
	t.Helper()
	m, err := music.NewMusician(name, opts...)
	if err != nil {
		t.Fatalf("NewMusician(%q): %v", name, err)
	}
	return m
}

func TestIsBandFile(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"bands.json", true},
		{"BANDS.JSON", true},
		{"/inbox/drop.json", true},
		{"notes.txt", false},
		{".partial.json", false},
		{"bands.json.tmp", false},
	}
	for _, tt := range tests {
		if got := isBandFile(tt.path); got != tt.want {
			t.Errorf("isBandFile(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
