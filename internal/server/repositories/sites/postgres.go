// Package sites stores the tower site catalog and its equipment inventory.
package sites

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/inspectsync/internal/dbx"
	"github.com/dmitrijs2005/inspectsync/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) ReplaceAll(ctx context.Context, sites []*models.Site, items []*models.InventoryItem) error {
	return dbx.RunInTx(ctx, r.db, func(ctx context.Context, tx dbx.DBTX) error {
		// inventory goes with its sites via ON DELETE CASCADE
		if _, err := tx.ExecContext(ctx, `DELETE FROM sites`); err != nil {
			return fmt.Errorf("db error: %w", err)
		}

		for _, s := range sites {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO sites (id, code, name, address, latitude, longitude, updated_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				s.ID, s.Code, s.Name, s.Address, s.Latitude, s.Longitude, s.UpdatedAt)
			if err != nil {
				return fmt.Errorf("db error: %w", err)
			}
		}

		for _, it := range items {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO inventory (id, site_id, kind, name, model, serial_number, quantity)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				it.ID, it.SiteID, it.Kind, it.Name, it.Model, it.SerialNumber, it.Quantity)
			if err != nil {
				return fmt.Errorf("db error: %w", err)
			}
		}
		return nil
	})
}

func (r *PostgresRepository) ListSites(ctx context.Context) ([]*models.Site, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, code, name, address, latitude, longitude, updated_at FROM sites ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.Site
	for rows.Next() {
		var s models.Site
		if err := rows.Scan(&s.ID, &s.Code, &s.Name, &s.Address, &s.Latitude, &s.Longitude, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		out = append(out, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) ListInventory(ctx context.Context, kind string) ([]*models.InventoryItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, site_id, kind, name, model, serial_number, quantity
		   FROM inventory WHERE kind = $1 ORDER BY site_id, name, id`, kind)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.InventoryItem
	for rows.Next() {
		var it models.InventoryItem
		if err := rows.Scan(&it.ID, &it.SiteID, &it.Kind, &it.Name, &it.Model, &it.SerialNumber, &it.Quantity); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		out = append(out, &it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}
