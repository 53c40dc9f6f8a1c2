package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"camserver/internal/model"
)

// SweepRepository implements repository.SweepRepository for SQLite.
type SweepRepository struct {
	db *DB
}

// NewSweepRepository creates a new SQLite sweep repository.
func NewSweepRepository(db *DB) *SweepRepository {
	return &SweepRepository{db: db}
}

// Insert stores a sweep and its jobs in one transaction.
func (r *SweepRepository) Insert(sweep *model.Sweep) error {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO sweeps (id, created_at, camera, exposure, gain, aperture, focus_min, focus_max, focus_step)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sweep.ID, sweep.CreatedAt.UTC(), string(sweep.CameraType), sweep.Exposure, sweep.Gain,
		nullInt(sweep.Aperture), sweep.FocusMin, nullInt(sweep.FocusMax), nullInt(sweep.FocusStep))
	if err != nil {
		return fmt.Errorf("failed to insert sweep: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO sweep_jobs (sweep_id, image_id, sequence, focus) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, job := range sweep.Jobs {
		if _, err := stmt.Exec(sweep.ID, job.ImageID, job.Sequence, job.Focus); err != nil {
			return fmt.Errorf("failed to insert sweep job: %w", err)
		}
	}

	return tx.Commit()
}

// GetByID retrieves a sweep by its ID. It returns nil when none exists.
func (r *SweepRepository) GetByID(id string) (*model.Sweep, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	row := r.db.Conn().QueryRow(`
		SELECT id, created_at, camera, exposure, gain, aperture, focus_min, focus_max, focus_step
		FROM sweeps WHERE id = ?
	`, id)
	sweep, err := scanSweep(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sweep: %w", err)
	}

	jobs, err := r.jobs(sweep.ID)
	if err != nil {
		return nil, err
	}
	sweep.Jobs = jobs
	return sweep, nil
}

// List returns the most recent sweeps first. A non-positive limit returns all of them.
func (r *SweepRepository) List(limit int) ([]model.Sweep, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query := `
		SELECT id, created_at, camera, exposure, gain, aperture, focus_min, focus_max, focus_step
		FROM sweeps ORDER BY created_at DESC, id DESC`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sweeps: %w", err)
	}

	var sweeps []model.Sweep
	for rows.Next() {
		sweep, err := scanSweep(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan sweep: %w", err)
		}
		sweeps = append(sweeps, *sweep)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range sweeps {
		jobs, err := r.jobs(sweeps[i].ID)
		if err != nil {
			return nil, err
		}
		sweeps[i].Jobs = jobs
	}
	return sweeps, nil
}

// DeleteAll removes all sweeps and their jobs.
func (r *SweepRepository) DeleteAll() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM sweep_jobs`); err != nil {
		return fmt.Errorf("failed to delete sweep jobs: %w", err)
	}
	if _, err := r.db.Conn().Exec(`DELETE FROM sweeps`); err != nil {
		return fmt.Errorf("failed to delete sweeps: %w", err)
	}
	return nil
}

func (r *SweepRepository) jobs(sweepID string) ([]model.SweepJob, error) {
	rows, err := r.db.Conn().Query(`
		SELECT image_id, sequence, focus FROM sweep_jobs
		WHERE sweep_id = ? ORDER BY sequence
	`, sweepID)
	if err != nil {
		return nil, fmt.Errorf("failed to get sweep jobs: %w", err)
	}
	defer rows.Close()

	jobs := []model.SweepJob{}
	for rows.Next() {
		var job model.SweepJob
		if err := rows.Scan(&job.ImageID, &job.Sequence, &job.Focus); err != nil {
			return nil, fmt.Errorf("failed to scan sweep job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSweep(s scanner) (*model.Sweep, error) {
	var (
		sweep                         model.Sweep
		camera                        string
		createdAt                     time.Time
		aperture, focusMax, focusStep sql.NullInt64
	)
	err := s.Scan(&sweep.ID, &createdAt, &camera, &sweep.Exposure, &sweep.Gain,
		&aperture, &sweep.FocusMin, &focusMax, &focusStep)
	if err != nil {
		return nil, err
	}
	sweep.CreatedAt = createdAt.Local()
	sweep.CameraType = model.CameraType(camera)
	sweep.Aperture = intPtr(aperture)
	sweep.FocusMax = intPtr(focusMax)
	sweep.FocusStep = intPtr(focusStep)
	return &sweep, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
