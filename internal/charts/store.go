// Package charts keeps the list of charts offered for each Superset dataset,
// fetched from Superset and cached in SQLite so the page still renders when
// Superset is briefly unreachable.
package charts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ziadkadry99/chartembed/internal/db"
	"github.com/ziadkadry99/chartembed/internal/superset"
)

// Store provides persistence for cached chart lists and dataset ids.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Replace atomically swaps the cached chart list of a dataset for charts,
// keeping their order.
func (s *Store) Replace(ctx context.Context, datasetID int64, charts []superset.Chart) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chart_options WHERE dataset_id = ?`, datasetID); err != nil {
		return fmt.Errorf("clearing charts for dataset %d: %w", datasetID, err)
	}
	now := time.Now().UTC()
	for i, c := range charts {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO chart_options (id, dataset_id, position, name, url, fetched_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), datasetID, i, c.Name, c.URL, now)
		if err != nil {
			return fmt.Errorf("inserting chart %q: %w", c.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing charts: %w", err)
	}
	return nil
}

// List returns the cached charts of a dataset in the order Superset returned them.
func (s *Store) List(ctx context.Context, datasetID int64) ([]superset.Chart, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, url FROM chart_options
		WHERE dataset_id = ?
		ORDER BY position`, datasetID)
	if err != nil {
		return nil, fmt.Errorf("querying charts: %w", err)
	}
	defer rows.Close()

	var out []superset.Chart
	for rows.Next() {
		var c superset.Chart
		if err := rows.Scan(&c.Name, &c.URL); err != nil {
			return nil, fmt.Errorf("scanning chart: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SaveDataset remembers the dataset id resolved for a table name.
func (s *Store) SaveDataset(ctx context.Context, name, fileURL string, datasetID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO datasets (name, dataset_id, file_url, resolved_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			dataset_id = excluded.dataset_id,
			file_url = excluded.file_url,
			resolved_at = excluded.resolved_at`,
		name, datasetID, fileURL, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("saving dataset %s: %w", name, err)
	}
	return nil
}

// LookupDataset returns the cached dataset id for a table name.
func (s *Store) LookupDataset(ctx context.Context, name string) (int64, bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT dataset_id FROM datasets WHERE name = ?`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("looking up dataset %s: %w", name, err)
	}
	return id, true, nil
}
