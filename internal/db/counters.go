package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/Fantasim/hdwallet/internal/models"
)

// AllocateFunc derives the rows to store at index. It runs inside the
// allocation transaction and must not touch the database itself.
type AllocateFunc func(index uint32) ([]models.DerivedAddress, error)

// Allocation is the outcome of one allocation transaction.
type Allocation struct {
	Index     uint32                 `json:"index"`
	Addresses []models.StoredAddress `json:"addresses"`
	// Created is false when AllocateFirst found the user already initialized.
	Created bool `json:"created"`
}

// AllocateNext claims index = max(current index of families) + 1, or 0 when
// none of the families has a counter yet, calls fn with it, stores the rows fn
// returns and advances every family counter to the index. All of it happens in
// one BEGIN IMMEDIATE transaction, so concurrent callers for the same user are
// serialized and never see the same index.
func (d *DB) AllocateNext(ctx context.Context, userID string, families []models.Family, fn AllocateFunc) (*Allocation, error) {
	return d.allocate(ctx, userID, families, fn, false)
}

// AllocateFirst is AllocateNext for a user's first addresses. If any of the
// families already has a counter it stores nothing and returns the existing
// rows at index 0 with Created false.
func (d *DB) AllocateFirst(ctx context.Context, userID string, families []models.Family, fn AllocateFunc) (*Allocation, error) {
	return d.allocate(ctx, userID, families, fn, true)
}

func (d *DB) allocate(ctx context.Context, userID string, families []models.Family, fn AllocateFunc, firstOnly bool) (*Allocation, error) {
	if len(families) == 0 {
		return nil, fmt.Errorf("allocate index for %s: no asset families given", userID)
	}

	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin allocation: %w", classify(err))
	}
	defer tx.Rollback()

	current, found, err := maxCounterTx(ctx, tx, userID, families)
	if err != nil {
		return nil, err
	}

	if firstOnly && found {
		rows, err := addressesAtIndexTx(ctx, tx, userID, 0)
		if err != nil {
			return nil, err
		}
		return &Allocation{Index: 0, Addresses: rows}, nil
	}

	var index uint32
	if found {
		index = current + 1
	}

	addrs, err := fn(index)
	if err != nil {
		return nil, fmt.Errorf("derive addresses at index %d: %w", index, err)
	}
	for _, a := range addrs {
		if a.AddressIndex != index {
			return nil, fmt.Errorf("derived %s at index %d, want %d", a.Asset, a.AddressIndex, index)
		}
		if !slices.Contains(families, a.Family) {
			return nil, fmt.Errorf("derived %s in family %q outside the allocation", a.Asset, a.Family)
		}
	}

	if _, err := insertAddressesTx(ctx, tx, userID, addrs); err != nil {
		return nil, err
	}

	for _, f := range families {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO address_index_counters (user_id, family, current_index) VALUES (?, ?, ?)
			 ON CONFLICT(user_id, family) DO UPDATE
			 SET current_index = excluded.current_index,
			     updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
			 WHERE excluded.current_index > address_index_counters.current_index`,
			userID, string(f), index,
		); err != nil {
			return nil, fmt.Errorf("advance %s counter for %s: %w", f, userID, classify(err))
		}
	}

	rows, err := addressesAtIndexTx(ctx, tx, userID, index)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit allocation: %w", classify(err))
	}

	slog.Debug("address index allocated", "userID", userID, "index", index, "rows", len(addrs))
	return &Allocation{Index: index, Addresses: filterFamilies(rows, families), Created: true}, nil
}

// CurrentIndex returns the highest allocated index of userID in family.
// ok is false when nothing has been allocated yet.
func (d *DB) CurrentIndex(ctx context.Context, userID string, family models.Family) (index uint32, ok bool, err error) {
	err = d.conn.QueryRowContext(ctx,
		"SELECT current_index FROM address_index_counters WHERE user_id = ? AND family = ?",
		userID, string(family),
	).Scan(&index)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read %s counter for %s: %w", family, userID, classify(err))
	}
	return index, true, nil
}

// Counters returns every family counter of userID.
func (d *DB) Counters(ctx context.Context, userID string) (map[models.Family]uint32, error) {
	rows, err := d.conn.QueryContext(ctx,
		"SELECT family, current_index FROM address_index_counters WHERE user_id = ?", userID,
	)
	if err != nil {
		return nil, fmt.Errorf("read counters for %s: %w", userID, classify(err))
	}
	defer rows.Close()

	out := make(map[models.Family]uint32)
	for rows.Next() {
		var f models.Family
		var idx uint32
		if err := rows.Scan(&f, &idx); err != nil {
			return nil, fmt.Errorf("scan counter row: %w", err)
		}
		out[f] = idx
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counter rows: %w", err)
	}
	return out, nil
}

func maxCounterTx(ctx context.Context, tx *sql.Tx, userID string, families []models.Family) (uint32, bool, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(families)), ",")
	args := make([]any, 0, len(families)+1)
	args = append(args, userID)
	for _, f := range families {
		args = append(args, string(f))
	}

	var current sql.NullInt64
	err := tx.QueryRowContext(ctx,
		"SELECT MAX(current_index) FROM address_index_counters WHERE user_id = ? AND family IN ("+placeholders+")",
		args...,
	).Scan(&current)
	if err != nil {
		return 0, false, fmt.Errorf("read counters for %s: %w", userID, classify(err))
	}
	if !current.Valid {
		return 0, false, nil
	}
	return uint32(current.Int64), true, nil
}

func addressesAtIndexTx(ctx context.Context, tx *sql.Tx, userID string, index uint32) ([]models.StoredAddress, error) {
	rows, err := tx.QueryContext(ctx,
		"SELECT "+addressColumns+" FROM derived_addresses WHERE user_id = ? AND address_index = ? ORDER BY id",
		userID, index,
	)
	if err != nil {
		return nil, fmt.Errorf("query addresses at %d for %s: %w", index, userID, classify(err))
	}
	defer rows.Close()
	return scanAddresses(rows)
}

func filterFamilies(rows []models.StoredAddress, families []models.Family) []models.StoredAddress {
	out := rows[:0]
	for _, r := range rows {
		if slices.Contains(families, r.Family) {
			out = append(out, r)
		}
	}
	return out
}
