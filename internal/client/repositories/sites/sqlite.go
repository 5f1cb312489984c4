package sites

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/inspectsync/internal/client/models"
	"github.com/dmitrijs2005/inspectsync/internal/common"
	"github.com/dmitrijs2005/inspectsync/internal/dbx"
)

var ErrUnknownInventoryKind = errors.New("unknown inventory kind")

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func inventoryTable(kind models.InventoryKind) (string, error) {
	switch kind {
	case models.InventoryElectrical:
		return "inventory_ee", nil
	case models.InventoryPassive:
		return "inventory_ep", nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownInventoryKind, kind)
}

func (r *SQLiteRepository) ReplaceAll(ctx context.Context, bundle models.SiteBundle) error {
	return dbx.RunInTx(ctx, r.db, func(ctx context.Context, tx dbx.DBTX) error {
		// Inventory rows follow through the cascade.
		if _, err := tx.ExecContext(ctx, `DELETE FROM sites`); err != nil {
			return fmt.Errorf("failed to clear sites: %w", err)
		}

		for _, s := range bundle.Sites {
			_, err := tx.ExecContext(ctx, `INSERT INTO sites (id, code, name, address, latitude, longitude, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				s.ID, s.Code, s.Name, s.Address, s.Latitude, s.Longitude, common.FormatTime(s.UpdatedAt))
			if err != nil {
				return fmt.Errorf("failed to insert site %s: %w", s.ID, err)
			}
		}

		for _, it := range bundle.Inventory {
			table, err := inventoryTable(it.Kind)
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, `INSERT INTO `+table+` (id, site_id, name, model, serial_number, quantity)
				VALUES (?, ?, ?, ?, ?, ?)`,
				it.ID, it.SiteID, it.Name, it.Model, it.SerialNumber, it.Quantity)
			if err != nil {
				return fmt.Errorf("failed to insert inventory %s: %w", it.ID, err)
			}
		}
		return nil
	})
}

const siteColumns = `id, code, name, address, latitude, longitude, updated_at`

func (r *SQLiteRepository) FindAll(ctx context.Context) ([]*models.Site, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+siteColumns+` FROM sites ORDER BY code, id`)
	if err != nil {
		return nil, fmt.Errorf("error selecting sites: %w", err)
	}
	defer rows.Close()

	var result []*models.Site
	for rows.Next() {
		s, err := scanSite(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) FindByID(ctx context.Context, id string) (*models.Site, error) {
	return scanSite(r.db.QueryRowContext(ctx, `SELECT `+siteColumns+` FROM sites WHERE id = ?`, id))
}

func (r *SQLiteRepository) FindByCode(ctx context.Context, code string) (*models.Site, error) {
	return scanSite(r.db.QueryRowContext(ctx, `SELECT `+siteColumns+` FROM sites WHERE code = ?`, code))
}

func (r *SQLiteRepository) Inventory(ctx context.Context, siteID string, kind models.InventoryKind) ([]*models.InventoryItem, error) {
	table, err := inventoryTable(kind)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `SELECT id, site_id, name, model, serial_number, quantity FROM `+table+`
		WHERE site_id = ? ORDER BY name, id`, siteID)
	if err != nil {
		return nil, fmt.Errorf("error selecting %s: %w", table, err)
	}
	defer rows.Close()

	var result []*models.InventoryItem
	for rows.Next() {
		it := &models.InventoryItem{Kind: kind}
		if err := rows.Scan(&it.ID, &it.SiteID, &it.Name, &it.Model, &it.SerialNumber, &it.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan inventory: %w", err)
		}
		result = append(result, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sites`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count sites: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSite(sc scanner) (*models.Site, error) {
	var s models.Site
	var updatedAt string
	err := sc.Scan(&s.ID, &s.Code, &s.Name, &s.Address, &s.Latitude, &s.Longitude, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan site: %w", err)
	}
	if s.UpdatedAt, err = common.ParseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("site %s updated_at: %w", s.ID, err)
	}
	return &s, nil
}
