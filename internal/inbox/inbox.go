// Package inbox watches a drop directory for band JSON files and imports
// them into the catalog. Processed files move to a processed/ subdirectory,
// rejects to failed/.
package inbox

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"github.com/mveselin/backbeat/internal/bandio"
	"github.com/mveselin/backbeat/internal/catalog"
	"github.com/mveselin/backbeat/internal/event"
)

const (
	processedDir = "processed"
	failedDir    = "failed"
)

// Service watches an inbox directory and imports dropped band files.
type Service struct {
	inboxPath string
	catalog   *catalog.Service
	bus       *event.Bus
	limiter   *rate.Limiter
	debounce  time.Duration
	logger    *slog.Logger

	mu    sync.Mutex
	timer *time.Timer
}

// NewService creates an inbox service. importsPerSecond caps the sustained
// rate of catalog writes during a sweep; bus may be nil.
func NewService(inboxPath string, cat *catalog.Service, bus *event.Bus, importsPerSecond int, debounce time.Duration, logger *slog.Logger) *Service {
	if importsPerSecond <= 0 {
		importsPerSecond = 10
	}
	return &Service{
		inboxPath: inboxPath,
		catalog:   cat,
		bus:       bus,
		limiter:   rate.NewLimiter(rate.Limit(importsPerSecond), importsPerSecond),
		debounce:  debounce,
		logger:    logger.With(slog.String("component", "inbox")),
	}
}

// Start sweeps any files already in the inbox, then watches for new ones
// until the context is canceled.
func (s *Service) Start(ctx context.Context) error {
	for _, dir := range []string{s.inboxPath, filepath.Join(s.inboxPath, processedDir), filepath.Join(s.inboxPath, failedDir)} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("creating inbox directory: %w", err)
		}
	}

	if err := s.ProcessPending(ctx); err != nil {
		s.logger.Error("initial inbox sweep failed", slog.Any("error", err))
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close() //nolint:errcheck

	if err := watcher.Add(s.inboxPath); err != nil {
		return fmt.Errorf("watching inbox: %w", err)
	}

	s.logger.Info("inbox watcher started", slog.String("path", s.inboxPath))

	for {
		select {
		case <-ctx.Done():
			s.stopTimer()
			s.logger.Info("inbox watcher stopped")
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if !isBandFile(ev.Name) {
				continue
			}
			s.scheduleSweep(ctx)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watcher error", slog.Any("error", err))
		}
	}
}

// scheduleSweep resets the debounce timer so a burst of file events
// triggers a single sweep.
func (s *Service) scheduleSweep(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, func() {
		if err := s.ProcessPending(ctx); err != nil {
			s.logger.Error("inbox sweep failed", slog.Any("error", err))
		}
	})
}

func (s *Service) stopTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// ProcessPending imports every band file currently in the inbox directory.
func (s *Service) ProcessPending(ctx context.Context) error {
	entries, err := os.ReadDir(s.inboxPath)
	if err != nil {
		return fmt.Errorf("reading inbox: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !isBandFile(entry.Name()) {
			continue
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
		s.processFile(ctx, filepath.Join(s.inboxPath, entry.Name()))
	}
	return nil
}

// processFile imports one drop file, then moves it to processed/ or failed/.
func (s *Service) processFile(ctx context.Context, path string) {
	name := filepath.Base(path)
	logger := s.logger.With(slog.String("file", name))

	data, err := os.ReadFile(path) //nolint:gosec // G304: path is inside the inbox
	if err != nil {
		logger.Error("reading drop file", slog.Any("error", err))
		return
	}

	bands, err := bandio.DecodeBands(data)
	if err != nil {
		logger.Warn("rejecting drop file", slog.Any("error", err))
		s.reject(path, err)
		return
	}

	var imported, updated int
	for _, band := range bands {
		existing, err := s.catalog.GetByName(ctx, band.Name)
		if err != nil {
			logger.Error("looking up band", slog.String("band", band.Name), slog.Any("error", err))
			s.reject(path, err)
			return
		}
		if existing != nil {
			if existing.Band.Equal(band) {
				continue
			}
			if err := s.catalog.Update(ctx, existing.ID, band); err != nil {
				logger.Error("updating band", slog.String("band", band.Name), slog.Any("error", err))
				s.reject(path, err)
				return
			}
			updated++
			continue
		}
		if _, err := s.catalog.Create(ctx, band); err != nil {
			logger.Warn("rejecting band", slog.String("band", band.Name), slog.Any("error", err))
			s.reject(path, err)
			return
		}
		imported++
		if s.bus != nil {
			s.bus.Publish(event.Event{
				Type: event.BandCreated,
				Data: map[string]any{"band": band.Name, "file": name},
			})
		}
	}

	s.moveTo(path, processedDir)
	logger.Info("drop file imported",
		slog.Int("imported", imported),
		slog.Int("updated", updated))

	if s.bus != nil {
		s.bus.Publish(event.Event{
			Type: event.BandImported,
			Data: map[string]any{"file": name, "imported": imported, "updated": updated},
		})
	}
}

// reject moves a drop file to failed/ and publishes an inbox.rejected event.
func (s *Service) reject(path string, cause error) {
	s.moveTo(path, failedDir)
	if s.bus != nil {
		s.bus.Publish(event.Event{
			Type: event.InboxRejected,
			Data: map[string]any{"file": filepath.Base(path), "error": cause.Error()},
		})
	}
}

func (s *Service) moveTo(path, subdir string) {
	dest := filepath.Join(s.inboxPath, subdir, filepath.Base(path))
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		s.logger.Error("creating inbox subdirectory", slog.Any("error", err))
		return
	}
	if err := os.Rename(path, dest); err != nil {
		s.logger.Error("moving drop file", slog.String("dest", dest), slog.Any("error", err))
	}
}

// isBandFile reports whether a filename looks like an importable drop file.
// Hidden files and partial uploads are skipped.
func isBandFile(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return false
	}
	return strings.EqualFold(filepath.Ext(name), ".json")
}
