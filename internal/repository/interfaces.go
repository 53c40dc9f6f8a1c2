package repository

import "camserver/internal/model"

// SweepRepository defines the interface for sweep history operations.
type SweepRepository interface {
	// Create operations
	Insert(sweep *model.Sweep) error

	// Read operations
	GetByID(id string) (*model.Sweep, error)
	List(limit int) ([]model.Sweep, error)

	// Delete operations
	DeleteAll() error
}
