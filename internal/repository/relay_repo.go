package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"powersense/internal/models"
)

type RelaySQLite struct {
	db *sql.DB
}

func NewRelaySQLite(db *sql.DB) *RelaySQLite {
	return &RelaySQLite{db: db}
}

var _ RelayRepo = (*RelaySQLite)(nil)

const (
	relayColumns = `id, owner_id, name, description, control_endpoint, is_on, is_favorite, pin, threshold, threshold_unit`

	selectRelaysByOwnerSQL = `SELECT ` + relayColumns + ` FROM relays WHERE owner_id = ? ORDER BY name ASC, id ASC`
	selectRelayByIDSQL     = `SELECT ` + relayColumns + ` FROM relays WHERE id = ?`

	insertRelaySQL = `
		INSERT INTO relays (` + relayColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	updateRelaySQL = `
		UPDATE relays SET
			name=?, description=?, control_endpoint=?, threshold=?, threshold_unit=?
		WHERE id=?
	`

	deleteRelaySQL      = `DELETE FROM relays WHERE id = ? AND owner_id = ?`
	updateRelayOnSQL    = `UPDATE relays SET is_on = ? WHERE id = ?`
	updateRelayFavorSQL = `UPDATE relays SET is_favorite = ? WHERE id = ?`
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRelay(row rowScanner) (models.RelayDevice, error) {
	var (
		d         models.RelayDevice
		threshold sql.NullFloat64
	)
	if err := row.Scan(
		&d.ID,
		&d.OwnerID,
		&d.Name,
		&d.Description,
		&d.ControlEndpoint,
		&d.IsOn,
		&d.IsFavorite,
		&d.Pin,
		&threshold,
		&d.ThresholdUnit,
	); err != nil {
		return models.RelayDevice{}, err
	}
	if threshold.Valid {
		v := threshold.Float64
		d.Threshold = &v
	}
	return d, nil
}

func nullableThreshold(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

// List returns all switches owned by ownerID.
func (r *RelaySQLite) List(ctx context.Context, ownerID int) ([]models.RelayDevice, error) {
	rows, err := r.db.QueryContext(ctx, selectRelaysByOwnerSQL, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list relays for owner %d: %w", ownerID, err)
	}
	defer rows.Close()

	out := make([]models.RelayDevice, 0, 8)
	for rows.Next() {
		d, err := scanRelay(rows)
		if err != nil {
			return nil, fmt.Errorf("scan relay: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Get fetches one switch. Returns ErrNotFound if it does not exist.
func (r *RelaySQLite) Get(ctx context.Context, id string) (models.RelayDevice, error) {
	d, err := scanRelay(r.db.QueryRowContext(ctx, selectRelayByIDSQL, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.RelayDevice{}, ErrNotFound
		}
		return models.RelayDevice{}, fmt.Errorf("select relay %q: %w", id, err)
	}
	return d, nil
}

// Create inserts a new switch; the caller assigns the id.
func (r *RelaySQLite) Create(ctx context.Context, d models.RelayDevice) error {
	_, err := r.db.ExecContext(ctx, insertRelaySQL,
		d.ID,
		d.OwnerID,
		d.Name,
		d.Description,
		d.ControlEndpoint,
		d.IsOn,
		d.IsFavorite,
		d.Pin,
		nullableThreshold(d.Threshold),
		d.ThresholdUnit,
	)
	if err != nil {
		return fmt.Errorf("insert relay %q: %w", d.ID, err)
	}
	return nil
}

// Update rewrites the user-editable fields of a switch.
func (r *RelaySQLite) Update(ctx context.Context, d models.RelayDevice) error {
	res, err := r.db.ExecContext(ctx, updateRelaySQL,
		d.Name,
		d.Description,
		d.ControlEndpoint,
		nullableThreshold(d.Threshold),
		d.ThresholdUnit,
		d.ID,
	)
	if err != nil {
		return fmt.Errorf("update relay %q: %w", d.ID, err)
	}
	return expectOneRow(res)
}

func (r *RelaySQLite) Delete(ctx context.Context, ownerID int, id string) error {
	res, err := r.db.ExecContext(ctx, deleteRelaySQL, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete relay %q: %w", id, err)
	}
	return expectOneRow(res)
}

func (r *RelaySQLite) SetOn(ctx context.Context, id string, on bool) error {
	res, err := r.db.ExecContext(ctx, updateRelayOnSQL, on, id)
	if err != nil {
		return fmt.Errorf("set relay %q on=%t: %w", id, on, err)
	}
	return expectOneRow(res)
}

func (r *RelaySQLite) SetFavorite(ctx context.Context, id string, favorite bool) error {
	res, err := r.db.ExecContext(ctx, updateRelayFavorSQL, favorite, id)
	if err != nil {
		return fmt.Errorf("set relay %q favorite=%t: %w", id, favorite, err)
	}
	return expectOneRow(res)
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
