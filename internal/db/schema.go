package db

import (
	"context"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// EnsureExtension enables a Postgres extension (postgis for this service).
func EnsureExtension(ctx context.Context, d *gorm.DB, name string) error {
	return d.WithContext(ctx).Exec(`CREATE EXTENSION IF NOT EXISTS ` + pq.QuoteIdentifier(name)).Error
}
