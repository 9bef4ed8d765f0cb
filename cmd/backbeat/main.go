package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mveselin/backbeat/internal/backup"
	"github.com/mveselin/backbeat/internal/bandio"
	"github.com/mveselin/backbeat/internal/catalog"
	"github.com/mveselin/backbeat/internal/config"
	"github.com/mveselin/backbeat/internal/database"
	"github.com/mveselin/backbeat/internal/event"
	"github.com/mveselin/backbeat/internal/inbox"
	"github.com/mveselin/backbeat/internal/logging"
	"github.com/mveselin/backbeat/internal/snapshot"
	"github.com/mveselin/backbeat/internal/version"
)

const usage = `backbeat - band catalog manager

Usage:
  backbeat <command> [arguments]

Commands:
  list                 print every band in the catalog
  import <file>        import bands from a JSON document
  export-json <file>   export the catalog as a JSON document
  export-text <file>   export the catalog as a plain text listing
  snapshot <file>      write a checksummed snapshot of the catalog
  restore <file>       restore bands from a snapshot
  backup               back up the database and prune old backups
  watch                watch the inbox directory and import drop files
  version              print the version
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if os.Args[1] == "version" {
		fmt.Printf("backbeat %s (%s)\n", version.Version, version.Commit)
		return
	}
	if err := run(os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(command string, args []string) error {
	configPath := os.Getenv("BB_CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logManager, logger := logging.NewManager(logging.Config{
		Level:          cfg.Logging.Level,
		Format:         cfg.Logging.Format,
		FilePath:       cfg.Logging.FilePath,
		FileMaxSizeMB:  cfg.Logging.FileMaxSizeMB,
		FileMaxFiles:   cfg.Logging.FileMaxFiles,
		FileMaxAgeDays: cfg.Logging.FileMaxAgeDays,
	})
	defer logManager.Close() //nolint:errcheck
	slog.SetDefault(logger)

	if dir := filepath.Dir(cfg.Database.Path); dir != "." && cfg.Database.Path != ":memory:" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("closing database", "error", err)
		}
	}()

	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	if v, err := database.SchemaVersion(db); err == nil {
		logger.Info("database ready",
			slog.String("path", cfg.Database.Path),
			slog.Int64("schema_version", v))
	}

	cat := catalog.NewService(db)
	ctx := context.Background()

	switch command {
	case "list":
		return listBands(ctx, cat)
	case "import":
		return importBands(ctx, cat, logger, requireArg(args))
	case "export-json":
		return exportJSON(ctx, cat, requireArg(args))
	case "export-text":
		return exportText(ctx, cat, requireArg(args))
	case "snapshot":
		return writeSnapshot(ctx, cat, logger, requireArg(args))
	case "restore":
		return restoreSnapshot(ctx, cat, logger, requireArg(args))
	case "backup":
		return runBackup(ctx, db, cfg, logger)
	case "watch":
		return watch(db, cat, cfg, logger)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

// requireArg returns the first argument or an empty string; the file
// operations report a clear error on an empty path.
func requireArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func listBands(ctx context.Context, cat *catalog.Service) error {
	bands, err := cat.Bands(ctx)
	if err != nil {
		return err
	}
	for _, b := range bands {
		fmt.Println(b.DisplayString())
	}
	return nil
}

func importBands(ctx context.Context, cat *catalog.Service, logger *slog.Logger, path string) error {
	if path == "" {
		return fmt.Errorf("import requires a file path")
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from operator input
	if err != nil {
		return fmt.Errorf("reading import file: %w", err)
	}
	bands, err := bandio.DecodeBands(data)
	if err != nil {
		return err
	}

	var created, updated, unchanged int
	for _, band := range bands {
		existing, err := cat.GetByName(ctx, band.Name)
		if err != nil {
			return err
		}
		switch {
		case existing == nil:
			if _, err := cat.Create(ctx, band); err != nil {
				return fmt.Errorf("importing %q: %w", band.Name, err)
			}
			created++
		case existing.Band.Equal(band):
			unchanged++
		default:
			if err := cat.Update(ctx, existing.ID, band); err != nil {
				return fmt.Errorf("updating %q: %w", band.Name, err)
			}
			updated++
		}
	}

	logger.Info("import complete",
		slog.Int("created", created),
		slog.Int("updated", updated),
		slog.Int("unchanged", unchanged))
	return nil
}

func exportJSON(ctx context.Context, cat *catalog.Service, path string) error {
	if path == "" {
		return fmt.Errorf("export-json requires a file path")
	}
	bands, err := cat.Bands(ctx)
	if err != nil {
		return err
	}
	return bandio.WriteJSON(path, bands)
}

func exportText(ctx context.Context, cat *catalog.Service, path string) error {
	if path == "" {
		return fmt.Errorf("export-text requires a file path")
	}
	bands, err := cat.Bands(ctx)
	if err != nil {
		return err
	}
	return bandio.WriteText(path, bands)
}

func writeSnapshot(ctx context.Context, cat *catalog.Service, logger *slog.Logger, path string) error {
	if path == "" {
		return fmt.Errorf("snapshot requires a file path")
	}
	bands, err := cat.Bands(ctx)
	if err != nil {
		return err
	}
	if err := snapshot.Write(path, bands); err != nil {
		return err
	}
	logger.Info("snapshot written",
		slog.String("path", path),
		slog.Int("bands", len(bands)))
	return nil
}

func restoreSnapshot(ctx context.Context, cat *catalog.Service, logger *slog.Logger, path string) error {
	if path == "" {
		return fmt.Errorf("restore requires a file path")
	}
	bands, err := snapshot.Read(path)
	if err != nil {
		return err
	}

	var restored int
	for _, band := range bands {
		existing, err := cat.GetByName(ctx, band.Name)
		if err != nil {
			return err
		}
		if existing != nil {
			if err := cat.Update(ctx, existing.ID, band); err != nil {
				return fmt.Errorf("restoring %q: %w", band.Name, err)
			}
		} else {
			if _, err := cat.Create(ctx, band); err != nil {
				return fmt.Errorf("restoring %q: %w", band.Name, err)
			}
		}
		restored++
	}

	logger.Info("snapshot restored",
		slog.String("path", path),
		slog.Int("bands", restored))
	return nil
}

func runBackup(ctx context.Context, db *sql.DB, cfg *config.Config, logger *slog.Logger) error {
	svc := backup.NewService(db, backupDir(cfg), cfg.Backup.RetentionCount, nil, logger)
	svc.SetMaxAgeDays(cfg.Backup.MaxAgeDays)
	info, err := svc.Backup(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("wrote %s (%d bytes)\n", info.Filename, info.Size)
	return svc.Prune()
}

func watch(db *sql.DB, cat *catalog.Service, cfg *config.Config, logger *slog.Logger) error {
	if !cfg.Inbox.Enabled {
		return fmt.Errorf("inbox is not enabled; set inbox.enabled or BB_INBOX_PATH")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bus := event.NewBus(logger, 256)
	go bus.Run(ctx)

	for _, t := range []event.Type{event.BandCreated, event.BandImported, event.InboxRejected, event.BackupCompleted} {
		bus.Subscribe(t, func(e event.Event) {
			logger.Info("event", slog.String("type", string(e.Type)), slog.Any("data", e.Data))
		})
	}

	if cfg.Backup.Enabled {
		backupSvc := backup.NewService(db, backupDir(cfg), cfg.Backup.RetentionCount, bus, logger)
		backupSvc.SetMaxAgeDays(cfg.Backup.MaxAgeDays)
		go backupSvc.StartScheduler(ctx, time.Duration(cfg.Backup.IntervalHours)*time.Hour)
	}

	inboxSvc := inbox.NewService(
		cfg.Inbox.Path,
		cat,
		bus,
		cfg.Inbox.MaxImportsPerSecond,
		time.Duration(cfg.Inbox.DebounceSeconds)*time.Second,
		logger,
	)
	return inboxSvc.Start(ctx)
}

func backupDir(cfg *config.Config) string {
	if cfg.Backup.Path != "" {
		return cfg.Backup.Path
	}
	return filepath.Join(filepath.Dir(cfg.Database.Path), "backups")
}
