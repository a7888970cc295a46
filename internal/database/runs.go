package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrDuplicateRun is returned when a run ID is recorded twice.
var ErrDuplicateRun = errors.New("run already recorded")

// Run is one ledger row: the outcome of a generate-then-search session.
type Run struct {
	ID          string     `json:"id"`
	Size        int        `json:"size"`
	Seed        int64      `json:"seed"`
	Carves      int        `json:"carves"`
	Backtracks  int        `json:"backtracks"`
	Searched    bool       `json:"searched"`
	Found       bool       `json:"found"`
	Visited     int        `json:"visited"`
	PathLength  int        `json:"path_length"`
	IgnoreWalls bool       `json:"ignore_walls"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

const runColumns = `id, size, seed, carves, backtracks, searched, found, visited, path_length, ignore_walls, started_at, finished_at`

// RecordRun inserts r.
func (d *Database) RecordRun(r Run) error {
	var finished any
	if r.FinishedAt != nil {
		finished = r.FinishedAt.UTC()
	}

	_, err := d.db.Exec(d.qb.Build(`
		INSERT INTO runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), r.ID, r.Size, r.Seed, r.Carves, r.Backtracks, r.Searched, r.Found,
		r.Visited, r.PathLength, r.IgnoreWalls, r.StartedAt.UTC(), finished)
	if d.dialect.IsDuplicateKeyError(err) {
		return fmt.Errorf("run %s: %w", r.ID, ErrDuplicateRun)
	}
	return err
}

// GetRun returns the run with id, or nil if none.
func (d *Database) GetRun(id string) (*Run, error) {
	row := d.db.QueryRow(d.qb.Build(`SELECT `+runColumns+` FROM runs WHERE id = ?`), id)

	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ListRuns returns up to limit runs, newest first. A non-zero size keeps only
// runs of that size.
func (d *Database) ListRuns(limit, size int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows *sql.Rows
	var err error
	if size == 0 {
		rows, err = d.db.Query(d.qb.Build(`
			SELECT `+runColumns+`
			FROM runs
			ORDER BY started_at DESC, id ASC
			LIMIT ?
		`), limit)
	} else {
		rows, err = d.db.Query(d.qb.Build(`
			SELECT `+runColumns+`
			FROM runs
			WHERE size = ?
			ORDER BY started_at DESC, id ASC
			LIMIT ?
		`), size, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// CountRuns returns how many runs the ledger holds for size, or for every
// size when size is 0.
func (d *Database) CountRuns(size int) (int, error) {
	var count int
	var err error
	if size == 0 {
		err = d.db.QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&count)
	} else {
		err = d.db.QueryRow(d.qb.Build(`SELECT COUNT(*) FROM runs WHERE size = ?`), size).Scan(&count)
	}
	return count, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var r Run
	var finished sql.NullTime
	if err := s.Scan(&r.ID, &r.Size, &r.Seed, &r.Carves, &r.Backtracks, &r.Searched, &r.Found,
		&r.Visited, &r.PathLength, &r.IgnoreWalls, &r.StartedAt, &finished); err != nil {
		return nil, err
	}
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	return &r, nil
}

// CopyRuns copies every run in src into dst, skipping IDs dst already holds.
// With dryRun set nothing is written and the counts report what would happen.
func CopyRuns(src, dst *Database, dryRun bool) (copied, skipped int, err error) {
	total, err := src.CountRuns(0)
	if err != nil {
		return 0, 0, fmt.Errorf("count source runs: %w", err)
	}
	if total == 0 {
		return 0, 0, nil
	}
	runs, err := src.ListRuns(total, 0)
	if err != nil {
		return 0, 0, fmt.Errorf("list source runs: %w", err)
	}

	for _, r := range runs {
		if dryRun {
			existing, err := dst.GetRun(r.ID)
			if err != nil {
				return copied, skipped, err
			}
			if existing != nil {
				skipped++
			} else {
				copied++
			}
			continue
		}

		err := dst.RecordRun(r)
		switch {
		case errors.Is(err, ErrDuplicateRun):
			skipped++
		case err != nil:
			return copied, skipped, err
		default:
			copied++
		}
	}
	return copied, skipped, nil
}
