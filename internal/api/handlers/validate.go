package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Fantasim/hdwallet/internal/api/httputil"
	"github.com/Fantasim/hdwallet/internal/config"
	"github.com/Fantasim/hdwallet/internal/db"
	"github.com/Fantasim/hdwallet/internal/models"
	"github.com/Fantasim/hdwallet/internal/wallet"
)

// AddressFinder looks up the stored row owning an address.
type AddressFinder interface {
	FindAddress(ctx context.Context, asset models.Asset, address string) (*models.StoredAddress, error)
}

type validationResult struct {
	Asset         models.Asset `json:"asset"`
	Address       string       `json:"address"`
	FormatValid   bool         `json:"formatValid"`
	ChecksumValid bool         `json:"checksumValid"`
	Reason        string       `json:"reason,omitempty"`
	Known         bool         `json:"known"`
	UserID        string       `json:"userId,omitempty"`
	AddressIndex  *uint32      `json:"addressIndex,omitempty"`
}

// ValidateAddress handles GET /api/validate?asset=&address=.
// It reports the format check, the checksum check and whether the address
// belongs to a stored wallet.
func ValidateAddress(registry *wallet.Registry, finder AddressFinder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assetParam := q.Get("asset")
		address := strings.TrimSpace(q.Get("address"))

		if address == "" {
			httputil.Error(w, http.StatusBadRequest, config.ErrorInvalidAddress, "address is required")
			return
		}

		spec, err := registry.Lookup(assetParam)
		if err != nil {
			slog.Warn("validate: unsupported asset", "asset", assetParam)
			httputil.Error(w, http.StatusBadRequest, config.ErrorUnsupportedAsset, err.Error())
			return
		}

		res := validationResult{
			Asset:       spec.Asset,
			Address:     address,
			FormatValid: wallet.ValidateAddressFormat(address, string(spec.Asset)),
		}
		if err := wallet.VerifyAddress(address, string(spec.Asset)); err != nil {
			res.Reason = err.Error()
		} else {
			res.ChecksumValid = true
		}

		if res.ChecksumValid && finder != nil {
			row, err := finder.FindAddress(r.Context(), spec.Asset, address)
			switch {
			case err == nil:
				res.Known = true
				res.UserID = row.UserID
				res.AddressIndex = &row.AddressIndex
			case !db.IsNotFound(err):
				slog.Error("validate: address lookup failed", "asset", spec.Asset, "error", err)
				httputil.Error(w, http.StatusInternalServerError, config.ErrorDatabase, "address lookup failed")
				return
			}
		}

		slog.Debug("address validated",
			"asset", spec.Asset,
			"formatValid", res.FormatValid,
			"checksumValid", res.ChecksumValid,
			"known", res.Known,
		)
		httputil.JSON(w, http.StatusOK, res)
	}
}
