// Package store persists analysis results in Postgres behind a bounded
// connection pool.
package store

import (
	"context"
	"errors"

	"github.com/mfscpayload-690/commons-depicts-analyzer/pkg/models"
)

var ErrNotFound = errors.New("resource not found")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	UpsertFile(ctx context.Context, rec *models.FileRecord) error
	FilesByCategory(ctx context.Context, category string) ([]*models.FileRecord, error)
	CategoryStats(ctx context.Context, category string) (models.CategoryStats, error)
	ClearCategory(ctx context.Context, category string) (int, error)
	ListCategories(ctx context.Context) ([]*models.CategorySummary, error)
}
