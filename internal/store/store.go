// Package store persists the last good snapshot across restarts. The
// bridge keeps no history; the single stored row only seeds the poller's
// last-known value at startup.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/scalebridge/bf700/internal/scale"
)

// Store wraps the SQLite database connection and schema lifecycle.
type Store struct {
	db *sql.DB
}

// Open initializes the database connection, creating directories as needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS last_snapshot (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		weight_kg REAL NOT NULL,
		body_fat REAL,
		body_water REAL,
		muscle_mass REAL,
		bone_mass REAL,
		captured_at TEXT NOT NULL
	);`)
	if err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Save replaces the stored snapshot.
func (s *Store) Save(ctx context.Context, snap scale.Snapshot) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO last_snapshot (id, weight_kg, body_fat, body_water, muscle_mass, bone_mass, captured_at)
		 VALUES (1, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			weight_kg = excluded.weight_kg,
			body_fat = excluded.body_fat,
			body_water = excluded.body_water,
			muscle_mass = excluded.muscle_mass,
			bone_mass = excluded.bone_mass,
			captured_at = excluded.captured_at;`,
		snap.Weight,
		nullable(snap.BodyFat),
		nullable(snap.BodyWater),
		nullable(snap.MuscleMass),
		nullable(snap.BoneMass),
		snap.CapturedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Latest returns the stored snapshot, or (nil, nil) if none was ever saved.
func (s *Store) Latest(ctx context.Context) (*scale.Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT weight_kg, body_fat, body_water, muscle_mass, bone_mass, captured_at
		 FROM last_snapshot WHERE id = 1;`)

	var (
		weight        float64
		fat           sql.NullFloat64
		water         sql.NullFloat64
		muscle        sql.NullFloat64
		bone          sql.NullFloat64
		capturedAtStr string
	)
	err := row.Scan(&weight, &fat, &water, &muscle, &bone, &capturedAtStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	capturedAt, err := time.Parse(time.RFC3339Nano, capturedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parse captured_at: %w", err)
	}

	return &scale.Snapshot{
		Measurement: scale.Measurement{
			Weight:     weight,
			BodyFat:    optional(fat),
			BodyWater:  optional(water),
			MuscleMass: optional(muscle),
			BoneMass:   optional(bone),
		},
		CapturedAt: capturedAt,
	}, nil
}

func nullable(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func optional(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
