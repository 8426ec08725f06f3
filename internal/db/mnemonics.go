package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
)

// InsertMnemonic stores the sealed mnemonic envelope for userID.
// The row is write-once: if one already exists nothing is written and
// inserted is false, which callers treat as success.
func (d *DB) InsertMnemonic(ctx context.Context, userID string, envelope []byte) (inserted bool, err error) {
	res, err := d.conn.ExecContext(ctx,
		"INSERT INTO user_mnemonics (user_id, envelope) VALUES (?, ?) ON CONFLICT(user_id) DO NOTHING",
		userID, envelope,
	)
	if err != nil {
		return false, fmt.Errorf("insert mnemonic for %s: %w", userID, classify(err))
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert mnemonic rows affected: %w", err)
	}

	slog.Debug("mnemonic stored", "userID", userID, "inserted", affected > 0)
	return affected > 0, nil
}

// GetMnemonic returns the sealed mnemonic envelope for userID.
func (d *DB) GetMnemonic(ctx context.Context, userID string) ([]byte, error) {
	var envelope []byte
	err := d.conn.QueryRowContext(ctx,
		"SELECT envelope FROM user_mnemonics WHERE user_id = ?", userID,
	).Scan(&envelope)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", userID, ErrMnemonicNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get mnemonic for %s: %w", userID, classify(err))
	}
	return envelope, nil
}

// ListUserIDs returns every user that has a stored mnemonic, ordered by id.
func (d *DB) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := d.conn.QueryContext(ctx, "SELECT user_id FROM user_mnemonics ORDER BY user_id")
	if err != nil {
		return nil, fmt.Errorf("list users: %w", classify(err))
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user rows: %w", err)
	}
	return ids, nil
}
