package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mveselin/backbeat/internal/music"
)

const bandColumns = `id, name, start_date, end_date, created_at, updated_at`

const memberColumns = `name, is_band_member, vocals, instrument`

// Service provides band catalog data operations.
type Service struct {
	db *sql.DB
}

// NewService creates a catalog service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// Create inserts a band and its members. The band is re-validated through
// the domain constructor so invalid rows can never enter the catalog.
func (s *Service) Create(ctx context.Context, band music.Band) (*Record, error) {
	validated, err := music.NewBand(band.Name, band.Members, dateOptions(band)...)
	if err != nil {
		return nil, err
	}

	rec := &Record{
		ID:   uuid.New().String(),
		Band: validated,
	}
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `
		INSERT INTO bands (id, name, start_date, end_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		rec.ID, validated.Name, validated.Start.String(), validated.End.String(),
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("creating band: %w", err)
	}

	if err := insertMembers(ctx, tx, rec.ID, validated.Members); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing create: %w", err)
	}
	return rec, nil
}

// GetByID retrieves a band by primary key.
func (s *Service) GetByID(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+bandColumns+` FROM bands WHERE id = ?`, id)
	rec, err := scanBand(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("band not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting band by id: %w", err)
	}
	if err := s.loadMembers(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// GetByName retrieves a band by name. Returns nil, nil when no band matches.
func (s *Service) GetByName(ctx context.Context, name string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+bandColumns+` FROM bands WHERE name = ?`, name)
	rec, err := scanBand(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting band by name: %w", err)
	}
	if err := s.loadMembers(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// List returns all bands with their members, ordered by name.
func (s *Service) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bandColumns+` FROM bands ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing bands: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var recs []Record
	for rows.Next() {
		rec, err := scanBand(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning band: %w", err)
		}
		recs = append(recs, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range recs {
		if err := s.loadMembers(ctx, &recs[i]); err != nil {
			return nil, err
		}
	}
	return recs, nil
}

// Bands returns the stored bands as bare domain values, ordered by name.
func (s *Service) Bands(ctx context.Context) ([]music.Band, error) {
	recs, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	bands := make([]music.Band, len(recs))
	for i, rec := range recs {
		bands[i] = rec.Band
	}
	return bands, nil
}

// Update replaces a band's fields and members.
func (s *Service) Update(ctx context.Context, id string, band music.Band) error {
	validated, err := music.NewBand(band.Name, band.Members, dateOptions(band)...)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	result, err := tx.ExecContext(ctx, `
		UPDATE bands SET name = ?, start_date = ?, end_date = ?, updated_at = ?
		WHERE id = ?
	`,
		validated.Name, validated.Start.String(), validated.End.String(),
		time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("updating band: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("band not found: %s", id)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM band_members WHERE band_id = ?`, id); err != nil {
		return fmt.Errorf("clearing band members: %w", err)
	}
	if err := insertMembers(ctx, tx, id, validated.Members); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing update: %w", err)
	}
	return nil
}

// Delete removes a band by ID. Members are cleaned up by ON DELETE CASCADE.
func (s *Service) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM bands WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting band: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("band not found: %s", id)
	}
	return nil
}

// Count returns the number of bands in the catalog.
func (s *Service) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bands`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting bands: %w", err)
	}
	return count, nil
}

// insertMembers writes a band's members with sort_order preserving the
// domain value's insertion order.
func insertMembers(ctx context.Context, tx *sql.Tx, bandID string, members []music.Musician) error {
	for i, m := range members {
		var vocals, instrument any
		if m.Vocals != nil {
			vocals = m.Vocals.String()
		}
		if m.Instrument != nil {
			instrument = m.Instrument.String()
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO band_members (id, band_id, name, is_band_member, vocals, instrument, sort_order)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`,
			uuid.New().String(), bandID, m.Name, boolToInt(m.BandMember),
			vocals, instrument, i,
		)
		if err != nil {
			return fmt.Errorf("creating band member: %w", err)
		}
	}
	return nil
}

// loadMembers fills in a record's members in stored order.
func (s *Service) loadMembers(ctx context.Context, rec *Record) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+memberColumns+` FROM band_members WHERE band_id = ? ORDER BY sort_order`,
		rec.ID)
	if err != nil {
		return fmt.Errorf("loading band members: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	members := []music.Musician{}
	for rows.Next() {
		var (
			m          music.Musician
			isMember   int
			vocals     sql.NullString
			instrument sql.NullString
		)
		if err := rows.Scan(&m.Name, &isMember, &vocals, &instrument); err != nil {
			return fmt.Errorf("scanning band member: %w", err)
		}
		m.BandMember = isMember != 0
		if vocals.Valid {
			v, err := music.ParseVocals(vocals.String)
			if err != nil {
				return fmt.Errorf("band %s member %q: %w", rec.ID, m.Name, err)
			}
			m.Vocals = &v
		}
		if instrument.Valid {
			i, err := music.ParseInstrument(instrument.String)
			if err != nil {
				return fmt.Errorf("band %s member %q: %w", rec.ID, m.Name, err)
			}
			m.Instrument = &i
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	rec.Band.Members = members
	return nil
}

// scanBand scans a database row into a Record. Members are loaded separately.
func scanBand(row interface{ Scan(...any) error }) (*Record, error) {
	var (
		rec                  Record
		startDate, endDate   string
		createdAt, updatedAt string
	)
	if err := row.Scan(&rec.ID, &rec.Band.Name, &startDate, &endDate, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if rec.Band.Start, err = music.ParseDate(startDate); err != nil {
		return nil, fmt.Errorf("band %s start date: %w", rec.ID, err)
	}
	if rec.Band.End, err = music.ParseDate(endDate); err != nil {
		return nil, fmt.Errorf("band %s end date: %w", rec.ID, err)
	}
	rec.CreatedAt = parseTime(createdAt)
	rec.UpdatedAt = parseTime(updatedAt)

	return &rec, nil
}

// dateOptions carries a band's dates into the domain constructor, leaving
// zero dates to the constructor's today-default.
func dateOptions(band music.Band) []music.BandOption {
	var opts []music.BandOption
	if !band.Start.IsZero() {
		opts = append(opts, music.WithStart(band.Start))
	}
	if !band.End.IsZero() {
		opts = append(opts, music.WithEnd(band.End))
	}
	return opts
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// parseTime parses a time string, handling both RFC3339 and SQLite datetime formats.
func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t
	}
	return time.Time{}
}
