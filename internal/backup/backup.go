// Package backup snapshots the catalog database with SQLite's VACUUM INTO
// and keeps the backup directory pruned by count and age.
package backup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mveselin/backbeat/internal/event"
)

const filenameTimeLayout = "20060102-150405"

// backupPattern matches backup filenames: backbeat-YYYYMMDD-HHMMSS.db
var backupPattern = regexp.MustCompile(`^backbeat-\d{8}-\d{6}\.db$`)

// Info describes a backup file.
type Info struct {
	Filename  string    `json:"filename"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Service manages catalog database backups.
type Service struct {
	db        *sql.DB
	backupDir string
	bus       *event.Bus
	logger    *slog.Logger

	mu         sync.RWMutex
	retention  int
	maxAgeDays int
}

// NewService creates a backup service. bus may be nil when no event
// consumers exist (e.g. one-shot CLI runs).
func NewService(db *sql.DB, backupDir string, retention int, bus *event.Bus, logger *slog.Logger) *Service {
	return &Service{
		db:        db,
		backupDir: backupDir,
		retention: retention,
		bus:       bus,
		logger:    logger.With(slog.String("component", "backup")),
	}
}

// SetMaxAgeDays enables age-based pruning; zero disables it.
func (s *Service) SetMaxAgeDays(days int) {
	s.mu.Lock()
	s.maxAgeDays = days
	s.mu.Unlock()
}

// Backup writes a point-in-time copy of the database into the backup
// directory using VACUUM INTO, which produces a compact, consistent file
// without blocking readers.
func (s *Service) Backup(ctx context.Context) (*Info, error) {
	if err := os.MkdirAll(s.backupDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating backup directory: %w", err)
	}

	now := time.Now().UTC()
	filename := "backbeat-" + now.Format(filenameTimeLayout) + ".db"
	dest := filepath.Join(s.backupDir, filename)

	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", dest); err != nil {
		return nil, fmt.Errorf("VACUUM INTO: %w", err)
	}

	stat, err := os.Stat(dest)
	if err != nil {
		return nil, fmt.Errorf("stat backup file: %w", err)
	}

	s.logger.Info("backup complete",
		slog.String("filename", filename),
		slog.Int64("size", stat.Size()))

	if s.bus != nil {
		s.bus.Publish(event.Event{
			Type: event.BackupCompleted,
			Data: map[string]any{"filename": filename, "size": stat.Size()},
		})
	}

	return &Info{Filename: filename, Size: stat.Size(), CreatedAt: now}, nil
}

// List returns the backup files, newest first. A missing backup directory is
// an empty list, not an error.
func (s *Service) List() ([]Info, error) {
	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading backup directory: %w", err)
	}

	var backups []Info
	for _, entry := range entries {
		if entry.IsDir() || !backupPattern.MatchString(entry.Name()) {
			continue
		}
		stat, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, Info{
			Filename:  entry.Name(),
			Size:      stat.Size(),
			CreatedAt: backupTime(entry.Name(), stat.ModTime()),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})
	return backups, nil
}

// backupTime extracts the creation time encoded in a backup filename,
// falling back to the file mtime when the name does not parse.
func backupTime(filename string, fallback time.Time) time.Time {
	stamp := strings.TrimSuffix(strings.TrimPrefix(filename, "backbeat-"), ".db")
	ts, err := time.Parse(filenameTimeLayout, stamp)
	if err != nil {
		return fallback
	}
	return ts
}

// Delete removes a single backup file by filename.
func (s *Service) Delete(filename string) error {
	if !IsValidBackupFilename(filename) {
		return fmt.Errorf("invalid backup filename")
	}
	if err := os.Remove(filepath.Join(s.backupDir, filename)); err != nil {
		return fmt.Errorf("removing backup: %w", err)
	}
	s.logger.Info("backup deleted", slog.String("filename", filename))
	return nil
}

// Prune deletes backups past the retention count, and any older than the max
// age when one is set. One pass over the listing decides both.
func (s *Service) Prune() error {
	s.mu.RLock()
	retention := s.retention
	maxAge := s.maxAgeDays
	s.mu.RUnlock()

	backups, err := s.List()
	if err != nil {
		return err
	}

	var cutoff time.Time
	if maxAge > 0 {
		cutoff = time.Now().UTC().AddDate(0, 0, -maxAge)
	}

	for i, b := range backups {
		overCount := i >= retention
		overAge := maxAge > 0 && b.CreatedAt.Before(cutoff)
		if !overCount && !overAge {
			continue
		}
		if err := os.Remove(filepath.Join(s.backupDir, b.Filename)); err != nil {
			s.logger.Warn("failed to prune backup",
				slog.String("filename", b.Filename),
				slog.Any("error", err))
			continue
		}
		s.logger.Info("pruned backup",
			slog.String("filename", b.Filename),
			slog.Bool("over_count", overCount),
			slog.Bool("over_age", overAge))
	}
	return nil
}

// StartScheduler backs up immediately, then on every interval tick until the
// context is canceled. Each backup is followed by a prune.
func (s *Service) StartScheduler(ctx context.Context, interval time.Duration) {
	s.logger.Info("backup scheduler started",
		slog.String("interval", interval.String()))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.Backup(ctx); err != nil {
			s.logger.Error("scheduled backup failed", slog.Any("error", err))
		} else if err := s.Prune(); err != nil {
			s.logger.Error("backup prune failed", slog.Any("error", err))
		}

		select {
		case <-ctx.Done():
			s.logger.Info("backup scheduler stopped")
			return
		case <-ticker.C:
		}
	}
}

// IsValidBackupFilename reports whether filename matches the backup naming
// pattern and contains no path separators.
func IsValidBackupFilename(filename string) bool {
	if strings.ContainsAny(filename, `/\`) || strings.Contains(filename, "..") {
		return false
	}
	return backupPattern.MatchString(filename)
}
