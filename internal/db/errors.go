package db

import (
	"errors"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/Fantasim/hdwallet/internal/config"
)

var (
	ErrMnemonicNotFound = errors.New("mnemonic not found")
	ErrAddressConflict  = errors.New("address conflicts with a stored row")
)

// classify marks SQLITE_BUSY and SQLITE_LOCKED as transient so callers can
// retry, and leaves every other error untouched.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return config.NewTransientError(err)
		}
	}
	return err
}

func isConstraint(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}
