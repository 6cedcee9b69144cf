package store

import (
	"context"
	"fmt"

	"github.com/mfscpayload-690/commons-depicts-analyzer/pkg/models"
)

// PostgresStore implements the Store interface on top of a Pool.
type PostgresStore struct {
	pool *Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// UpsertFile inserts a file's analysis result, replacing any previous row for
// the same file and category. Re-running an analysis therefore overwrites
// rather than duplicates.
func (s *PostgresStore) UpsertFile(ctx context.Context, rec *models.FileRecord) error {
	return s.pool.WithConn(ctx, func(c Conn) error {
		_, err := c.Exec(ctx,
			`INSERT INTO files (file_name, category, depicts, has_depicts, analyzed_at)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (file_name, category) DO UPDATE SET
			   depicts = EXCLUDED.depicts,
			   has_depicts = EXCLUDED.has_depicts,
			   analyzed_at = EXCLUDED.analyzed_at`,
			rec.FileName, rec.Category, rec.Depicts, rec.HasDepicts, rec.AnalyzedAt)
		if err != nil {
			return fmt.Errorf("upsert file: %w", err)
		}
		return nil
	})
}

// FilesByCategory returns all analyzed files for a category, most recently
// analyzed first.
func (s *PostgresStore) FilesByCategory(ctx context.Context, category string) ([]*models.FileRecord, error) {
	var files []*models.FileRecord
	err := s.pool.WithConn(ctx, func(c Conn) error {
		rows, err := c.Query(ctx,
			`SELECT file_name, category, depicts, has_depicts, analyzed_at
			 FROM files WHERE category = $1 ORDER BY analyzed_at DESC, file_name`, category)
		if err != nil {
			return fmt.Errorf("list files by category: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var f models.FileRecord
			if err := rows.Scan(&f.FileName, &f.Category, &f.Depicts, &f.HasDepicts, &f.AnalyzedAt); err != nil {
				return fmt.Errorf("scan file: %w", err)
			}
			files = append(files, &f)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// CategoryStats counts analyzed files in a category, split by whether they
// carry depicts statements.
func (s *PostgresStore) CategoryStats(ctx context.Context, category string) (models.CategoryStats, error) {
	var stats models.CategoryStats
	err := s.pool.WithConn(ctx, func(c Conn) error {
		err := c.QueryRow(ctx,
			`SELECT COUNT(*),
			        COUNT(*) FILTER (WHERE has_depicts),
			        COUNT(*) FILTER (WHERE NOT has_depicts)
			 FROM files WHERE category = $1`, category,
		).Scan(&stats.Total, &stats.WithDepicts, &stats.WithoutDepicts)
		if err != nil {
			return fmt.Errorf("category stats: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.CategoryStats{}, err
	}
	return stats, nil
}

// ClearCategory removes all rows for a category and reports how many were
// deleted.
func (s *PostgresStore) ClearCategory(ctx context.Context, category string) (int, error) {
	var deleted int
	err := s.pool.WithConn(ctx, func(c Conn) error {
		tag, err := c.Exec(ctx, `DELETE FROM files WHERE category = $1`, category)
		if err != nil {
			return fmt.Errorf("clear category: %w", err)
		}
		deleted = int(tag.RowsAffected())
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// ListCategories summarizes every analyzed category, most recent first.
func (s *PostgresStore) ListCategories(ctx context.Context) ([]*models.CategorySummary, error) {
	var summaries []*models.CategorySummary
	err := s.pool.WithConn(ctx, func(c Conn) error {
		rows, err := c.Query(ctx,
			`SELECT category,
			        COUNT(*),
			        COUNT(*) FILTER (WHERE has_depicts),
			        MAX(analyzed_at)
			 FROM files GROUP BY category ORDER BY MAX(analyzed_at) DESC`)
		if err != nil {
			return fmt.Errorf("list categories: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var s models.CategorySummary
			if err := rows.Scan(&s.Category, &s.TotalFiles, &s.WithDepicts, &s.LastAnalyzed); err != nil {
				return fmt.Errorf("scan category summary: %w", err)
			}
			summaries = append(summaries, &s)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return summaries, nil
}

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)
