package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Fantasim/hdwallet/internal/models"
)

const addressColumns = "user_id, asset, family, address_index, address, derivation_path, created_at"

// AddressFilter narrows ListUserAddresses. Zero values mean no filter.
type AddressFilter struct {
	Asset  models.Asset
	Offset int
	Limit  int
}

// InsertAddresses stores derived rows for userID in one transaction.
// Rows that already exist with the same address are skipped, so re-running a
// derivation at the same index is a no-op. A row whose stored address differs,
// or an address already owned by another row, fails with ErrAddressConflict.
func (d *DB) InsertAddresses(ctx context.Context, userID string, addrs []models.DerivedAddress) (int, error) {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", classify(err))
	}
	defer tx.Rollback()

	inserted, err := insertAddressesTx(ctx, tx, userID, addrs)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit addresses: %w", classify(err))
	}
	return inserted, nil
}

func insertAddressesTx(ctx context.Context, tx *sql.Tx, userID string, addrs []models.DerivedAddress) (int, error) {
	inserted := 0
	for _, a := range addrs {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO derived_addresses (user_id, asset, family, address_index, address, derivation_path)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(user_id, asset, address_index) DO NOTHING`,
			userID, string(a.Asset), string(a.Family), a.AddressIndex, a.Address, a.DerivationPath,
		)
		if err != nil {
			if isConstraint(err) {
				return 0, fmt.Errorf("insert %s/%d for %s: %w: %w", a.Asset, a.AddressIndex, userID, ErrAddressConflict, err)
			}
			return 0, fmt.Errorf("insert %s/%d for %s: %w", a.Asset, a.AddressIndex, userID, classify(err))
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("insert address rows affected: %w", err)
		}
		if affected > 0 {
			inserted++
			continue
		}

		var existing string
		if err := tx.QueryRowContext(ctx,
			"SELECT address FROM derived_addresses WHERE user_id = ? AND asset = ? AND address_index = ?",
			userID, string(a.Asset), a.AddressIndex,
		).Scan(&existing); err != nil {
			return 0, fmt.Errorf("read existing %s/%d: %w", a.Asset, a.AddressIndex, classify(err))
		}
		if existing != a.Address {
			return 0, fmt.Errorf("%s/%d for %s already stored with a different address: %w",
				a.Asset, a.AddressIndex, userID, ErrAddressConflict)
		}
	}
	return inserted, nil
}

// CountUserAddresses returns the number of addresses stored for a user.
func (d *DB) CountUserAddresses(ctx context.Context, userID string) (int, error) {
	var count int
	err := d.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM derived_addresses WHERE user_id = ?", userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count addresses for %s: %w", userID, classify(err))
	}

	slog.Debug("counted addresses", "userID", userID, "count", count)
	return count, nil
}

// ListUserAddresses returns a page of a user's addresses ordered by index, then asset.
func (d *DB) ListUserAddresses(ctx context.Context, userID string, f AddressFilter) ([]models.StoredAddress, int, error) {
	where := "WHERE user_id = ?"
	args := []any{userID}
	if f.Asset != "" {
		where += " AND asset = ?"
		args = append(args, string(f.Asset))
	}

	var total int
	if err := d.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM derived_addresses "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count addresses for %s: %w", userID, classify(err))
	}

	limit := f.Limit
	if limit <= 0 {
		limit = -1
	}
	query := "SELECT " + addressColumns + " FROM derived_addresses " + where +
		" ORDER BY address_index, id LIMIT ? OFFSET ?"
	rows, err := d.conn.QueryContext(ctx, query, append(args, limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("query addresses for %s: %w", userID, classify(err))
	}
	defer rows.Close()

	addrs, err := scanAddresses(rows)
	if err != nil {
		return nil, 0, err
	}
	return addrs, total, nil
}

// AddressesAtIndex returns every stored row of userID at index.
func (d *DB) AddressesAtIndex(ctx context.Context, userID string, index uint32) ([]models.StoredAddress, error) {
	rows, err := d.conn.QueryContext(ctx,
		"SELECT "+addressColumns+" FROM derived_addresses WHERE user_id = ? AND address_index = ? ORDER BY id",
		userID, index,
	)
	if err != nil {
		return nil, fmt.Errorf("query addresses at %d for %s: %w", index, userID, classify(err))
	}
	defer rows.Close()
	return scanAddresses(rows)
}

// FindAddress returns the row owning address for asset.
func (d *DB) FindAddress(ctx context.Context, asset models.Asset, address string) (*models.StoredAddress, error) {
	rows, err := d.conn.QueryContext(ctx,
		"SELECT "+addressColumns+" FROM derived_addresses WHERE asset = ? AND address = ?",
		string(asset), address,
	)
	if err != nil {
		return nil, fmt.Errorf("find address: %w", classify(err))
	}
	defer rows.Close()

	addrs, err := scanAddresses(rows)
	if err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("find %s address: %w", asset, sql.ErrNoRows)
	}
	return &addrs[0], nil
}

// StreamUserAddresses streams a user's addresses via a callback, avoiding loading all into memory.
func (d *DB) StreamUserAddresses(ctx context.Context, userID string, fn func(addr models.StoredAddress) error) error {
	rows, err := d.conn.QueryContext(ctx,
		"SELECT "+addressColumns+" FROM derived_addresses WHERE user_id = ? ORDER BY address_index, id",
		userID,
	)
	if err != nil {
		return fmt.Errorf("query addresses for streaming %s: %w", userID, classify(err))
	}
	defer rows.Close()

	for rows.Next() {
		addr, err := scanAddress(rows)
		if err != nil {
			return err
		}
		if err := fn(addr); err != nil {
			return fmt.Errorf("stream callback error: %w", err)
		}
	}
	return rows.Err()
}

func scanAddresses(rows *sql.Rows) ([]models.StoredAddress, error) {
	var out []models.StoredAddress
	for rows.Next() {
		addr, err := scanAddress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate address rows: %w", err)
	}
	return out, nil
}

func scanAddress(rows *sql.Rows) (models.StoredAddress, error) {
	var a models.StoredAddress
	if err := rows.Scan(&a.UserID, &a.Asset, &a.Family, &a.AddressIndex, &a.Address, &a.DerivationPath, &a.CreatedAt); err != nil {
		return a, fmt.Errorf("scan address row: %w", err)
	}
	return a, nil
}

// IsNotFound reports whether err means a lookup matched no row.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || errors.Is(err, ErrMnemonicNotFound)
}
