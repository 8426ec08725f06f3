package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Fantasim/hdwallet/internal/api/httputil"
	"github.com/Fantasim/hdwallet/internal/config"
	"github.com/Fantasim/hdwallet/internal/db"
	"github.com/Fantasim/hdwallet/internal/keystore"
	"github.com/Fantasim/hdwallet/internal/ledger"
	"github.com/Fantasim/hdwallet/internal/metrics"
	"github.com/Fantasim/hdwallet/internal/wallet"
)

// errorMapping ties a sentinel to its HTTP status and error code.
// Client errors echo the error text; server errors get a fixed message.
type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

var errorMappings = []errorMapping{
	{ledger.ErrInvalidUserID, http.StatusBadRequest, config.ErrorInvalidUserID, ""},
	{wallet.ErrUnsupportedAsset, http.StatusBadRequest, config.ErrorUnsupportedAsset, ""},
	{ledger.ErrWalletNotInitialized, http.StatusNotFound, config.ErrorWalletNotInitialized, ""},
	{db.ErrAddressConflict, http.StatusConflict, config.ErrorAddressConflict, "derived address conflicts with a stored address"},
	{wallet.ErrInvalidMnemonic, http.StatusInternalServerError, config.ErrorInvalidMnemonic, "stored mnemonic is invalid"},
	{keystore.ErrDecrypt, http.StatusInternalServerError, config.ErrorInternal, "stored mnemonic could not be opened"},
	{wallet.ErrDerivation, http.StatusInternalServerError, config.ErrorDerivationFailure, "address derivation failed"},
	{wallet.ErrEncoding, http.StatusInternalServerError, config.ErrorEncodingFailure, "address encoding failed"},
	{wallet.ErrAddressFormatMismatch, http.StatusInternalServerError, config.ErrorAddressFormatMismatch, "derived address failed its format check"},
}

// writeServiceError maps err to a status and error code, logs it and counts it.
func writeServiceError(w http.ResponseWriter, m *metrics.Metrics, op string, err error) {
	status, code, message := http.StatusInternalServerError, config.ErrorInternal, "internal error"

	matched := false
	for _, em := range errorMappings {
		if errors.Is(err, em.target) {
			status, code, message = em.status, em.code, em.message
			if message == "" {
				message = err.Error()
			}
			matched = true
			break
		}
	}
	if !matched && config.IsTransient(err) {
		status, code, message = http.StatusServiceUnavailable, config.ErrorDatabase, "database busy, retry later"
	}

	if status >= http.StatusInternalServerError {
		slog.Error(op+" failed", "code", code, "error", err)
	} else {
		slog.Warn(op+" rejected", "code", code, "error", err)
	}

	m.Error(code)
	httputil.Error(w, status, code, message)
}
