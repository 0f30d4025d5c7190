// Package store is the PostGIS implementation of the capabilities the loaders
// and the query layer are written against.
package store

import (
	"context"
	"fmt"

	"github.com/EmpoweredVote/EV-Geo/internal/apperr"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

type Options struct {
	// AdvisoryLock serializes concurrent first loads of the same table and
	// re-checks emptiness under the lock.
	AdvisoryLock bool
	BatchSize    int
}

type Store struct {
	db   *gorm.DB
	opts Options
}

func New(db *gorm.DB, opts Options) *Store {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	return &Store{db: db, opts: opts}
}

// Exists reports whether table holds at least one row.
func (s *Store) Exists(ctx context.Context, table string) (bool, error) {
	return exists(s.db.WithContext(ctx), table)
}

func exists(db *gorm.DB, table string) (bool, error) {
	var ok bool
	row := db.Raw(`SELECT EXISTS (SELECT 1 FROM ` + pq.QuoteIdentifier(table) + `)`).Row()
	if err := row.Scan(&ok); err != nil {
		return false, fmt.Errorf("probe %s: %w", table, err)
	}
	return ok, nil
}

// InsertBatch writes rows (a pointer to a slice of models) to table in one
// transaction. With AdvisoryLock set it returns apperr.ErrAlreadyLoaded when
// another load committed first.
func (s *Store) InsertBatch(ctx context.Context, table string, rows any) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if s.opts.AdvisoryLock {
			if err := tx.Exec(`SELECT pg_advisory_xact_lock(hashtext(?))`, "evgeo:load:"+table).Error; err != nil {
				return fmt.Errorf("lock %s: %w", table, err)
			}
			loaded, err := exists(tx, table)
			if err != nil {
				return err
			}
			if loaded {
				return apperr.ErrAlreadyLoaded
			}
		}

		if err := tx.Table(table).CreateInBatches(rows, s.opts.BatchSize).Error; err != nil {
			return fmt.Errorf("insert %s: %w", table, err)
		}
		return nil
	})
}
