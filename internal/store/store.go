// Package store persists organizations, templates and invoices.
package store

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a unique constraint rejects a write.
	ErrConflict = errors.New("record already exists")
)

// Store wraps a gorm connection with the queries the service needs.
type Store struct {
	db  *gorm.DB
	now func() time.Time

	// createTries bounds how often an invoice insert is retried after a
	// duplicate number.
	createTries uint
}

func New(db *gorm.DB) *Store {
	return &Store{
		db:          db,
		now:         time.Now,
		createTries: 5,
	}
}

// DB exposes the underlying connection for health checks and migrations.
func (s *Store) DB() *gorm.DB {
	return s.db
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrConflict
	default:
		return err
	}
}
