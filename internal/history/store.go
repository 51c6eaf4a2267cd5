// Package history persists analyzed labels so past scans can be listed and
// exported.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/nutrigood/internal/nutrition"
	"github.com/MeKo-Tech/nutrigood/internal/report"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "modernc.org/sqlite"             // registers the "sqlite" driver
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

var (
	// ErrNotFound is returned by Get for an unknown scan id.
	ErrNotFound = errors.New("scan not found")
	// ErrFatalReport is returned by Save for reports of failed analyses.
	ErrFatalReport = errors.New("failed analyses are not recorded")
)

// Config selects the database.
type Config struct {
	Driver string // sqlite (default) or pgx
	DSN    string
}

// Record is one stored scan.
type Record struct {
	ID             string                `json:"id"`
	Source         string                `json:"source"`
	Outcome        nutrition.OutcomeKind `json:"outcome"`
	Message        string                `json:"message"`
	Servings       *float64              `json:"servings,omitempty"`
	Sugars         *float64              `json:"sugars,omitempty"`
	TotalSugar     *float64              `json:"total_sugar,omitempty"`
	SugarCategory  string                `json:"sugar_category,omitempty"`
	Recommendation string                `json:"recommendation,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
}

// RecordFromReport flattens r into a Record.
func RecordFromReport(r *report.Report) Record {
	rec := Record{
		ID:         r.ID,
		Source:     r.Source,
		Outcome:    r.Outcome,
		Message:    r.Message,
		Servings:   r.NutritionInfo.ServingsPerContainer,
		Sugars:     r.NutritionInfo.Sugars,
		TotalSugar: r.NutritionInfo.TotalSugar,
		CreatedAt:  r.CreatedAt.UTC(),
	}
	if r.Analysis != nil {
		rec.SugarCategory = r.Analysis.SugarCategory
		rec.Recommendation = r.Analysis.Recommendation
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	return rec
}

// Store is a scan history backed by database/sql. It is safe for concurrent
// use.
type Store struct {
	db     *sql.DB
	driver string
	logger *slog.Logger
}

// Open connects to the database and applies the schema.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	driver := cfg.Driver
	if driver == "" {
		driver = DriverSQLite
	}
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported history driver %q", cfg.Driver)
	}
	if cfg.DSN == "" {
		return nil, errors.New("history DSN is required")
	}

	logger.Debug("Opening history database", "driver", driver)
	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// SQLite allows a single writer.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	s := &Store{db: db, driver: driver, logger: logger}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS scans (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		outcome TEXT NOT NULL,
		message TEXT NOT NULL,
		servings DOUBLE PRECISION,
		sugars DOUBLE PRECISION,
		total_sugar DOUBLE PRECISION,
		sugar_category TEXT NOT NULL DEFAULT '',
		recommendation TEXT NOT NULL DEFAULT '',
		created_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS scans_created_at ON scans (created_at)`,
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate history schema: %w", err)
		}
	}
	if s.driver == DriverSQLite {
		if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
			return fmt.Errorf("configure sqlite: %w", err)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Save records a non-fatal report and returns the stored record.
func (s *Store) Save(ctx context.Context, r *report.Report) (Record, error) {
	if r == nil || r.Fatal() {
		return Record{}, ErrFatalReport
	}
	rec := RecordFromReport(r)
	_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO scans
		(id, source, outcome, message, servings, sugars, total_sugar, sugar_category, recommendation, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		rec.ID, rec.Source, string(rec.Outcome), rec.Message,
		nullFloat(rec.Servings), nullFloat(rec.Sugars), nullFloat(rec.TotalSugar),
		rec.SugarCategory, rec.Recommendation, rec.CreatedAt.UnixNano())
	if err != nil {
		return Record{}, fmt.Errorf("save scan %s: %w", rec.ID, err)
	}
	s.logger.Debug("Scan recorded", "id", rec.ID, "source", rec.Source, "outcome", rec.Outcome)
	return rec, nil
}

const selectColumns = `SELECT id, source, outcome, message, servings, sugars, total_sugar,
	sugar_category, recommendation, created_at FROM scans`

// Get returns the scan with id.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(selectColumns+` WHERE id = ?`), id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec, err
}

// List returns the most recent scans, newest first. A limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	query := selectColumns + ` ORDER BY created_at DESC, id`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (Record, error) {
	var (
		rec                          Record
		outcome                      string
		servings, sugars, totalSugar sql.NullFloat64
		createdAt                    int64
	)
	err := sc.Scan(&rec.ID, &rec.Source, &outcome, &rec.Message,
		&servings, &sugars, &totalSugar,
		&rec.SugarCategory, &rec.Recommendation, &createdAt)
	if err != nil {
		return Record{}, err
	}
	rec.Outcome = nutrition.OutcomeKind(outcome)
	rec.Servings = floatPtr(servings)
	rec.Sugars = floatPtr(sugars)
	rec.TotalSugar = floatPtr(totalSugar)
	rec.CreatedAt = time.Unix(0, createdAt).UTC()
	return rec, nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
