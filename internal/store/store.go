// Package store persists generated lattices in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"crosswarped.com/lattice/pkg/primitives"
)

var ErrRunNotFound = errors.New("store: run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id      TEXT PRIMARY KEY,
	pattern     TEXT NOT NULL,
	radius      INTEGER NOT NULL,
	seed_value  INTEGER NOT NULL,
	steps       INTEGER NOT NULL,
	backtracks  INTEGER NOT NULL,
	created_at  INTEGER NOT NULL -- unix nanoseconds, UTC
);
CREATE TABLE IF NOT EXISTS cells (
	run_id      TEXT NOT NULL,
	x           INTEGER NOT NULL,
	y           INTEGER NOT NULL,
	z           INTEGER NOT NULL,
	value       INTEGER NOT NULL,
	PRIMARY KEY (run_id, x, y, z),
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);
`

// Run is one generated lattice and how it was produced.
type Run struct {
	ID         uuid.UUID
	Pattern    string
	Radius     int
	Seed       primitives.Value
	Steps      int
	Backtracks int
	CreatedAt  time.Time
	Cells      []primitives.Placement
}

type DB struct {
	*sql.DB
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases alive and serialises writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &DB{db}, nil
}

// SaveRun stores run and its cells. A zero ID or CreatedAt is filled in.
func (db *DB) SaveRun(ctx context.Context, run *Run) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, pattern, radius, seed_value, steps, backtracks, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID.String(), run.Pattern, run.Radius, int(run.Seed), run.Steps, run.Backtracks, run.CreatedAt.UnixNano(),
	); err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO cells (run_id, x, y, z, value) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare cells: %w", err)
	}
	defer stmt.Close()

	for _, c := range run.Cells {
		if _, err := stmt.ExecContext(ctx, run.ID.String(), c.Position.X, c.Position.Y, c.Position.Z, int(c.Value)); err != nil {
			return fmt.Errorf("insert cell %v: %w", c.Position, err)
		}
	}
	return tx.Commit()
}

// LoadRun returns the run with id, cells sorted by position.
func (db *DB) LoadRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	run := &Run{ID: id}
	var seed int
	var created int64
	err := db.QueryRowContext(ctx,
		`SELECT pattern, radius, seed_value, steps, backtracks, created_at FROM runs WHERE run_id = ?`, id.String(),
	).Scan(&run.Pattern, &run.Radius, &seed, &run.Steps, &run.Backtracks, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", id, err)
	}
	run.Seed = primitives.Value(seed)
	run.CreatedAt = time.Unix(0, created).UTC()

	rows, err := db.QueryContext(ctx,
		`SELECT x, y, z, value FROM cells WHERE run_id = ? ORDER BY x, y, z`, id.String())
	if err != nil {
		return nil, fmt.Errorf("load cells %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var c primitives.Placement
		var v int
		if err := rows.Scan(&c.Position.X, &c.Position.Y, &c.Position.Z, &v); err != nil {
			return nil, fmt.Errorf("scan cell: %w", err)
		}
		c.Value = primitives.Value(v)
		run.Cells = append(run.Cells, c)
	}
	return run, rows.Err()
}

// RunSummary is a run without its cells.
type RunSummary struct {
	ID        uuid.UUID
	Pattern   string
	Radius    int
	Cells     int
	CreatedAt time.Time
}

// ListRuns returns every stored run, newest first.
func (db *DB) ListRuns(ctx context.Context) ([]RunSummary, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT r.run_id, r.pattern, r.radius, COUNT(c.run_id), r.created_at
		FROM runs r LEFT JOIN cells c ON c.run_id = r.run_id
		GROUP BY r.run_id
		ORDER BY r.created_at DESC, r.run_id`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var s RunSummary
		var id string
		var created int64
		if err := rows.Scan(&id, &s.Pattern, &s.Radius, &s.Cells, &created); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		s.CreatedAt = time.Unix(0, created).UTC()
		if s.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("run id %q: %w", id, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
