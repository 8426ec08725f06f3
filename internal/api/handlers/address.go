package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Fantasim/hdwallet/internal/api/httputil"
	"github.com/Fantasim/hdwallet/internal/config"
	"github.com/Fantasim/hdwallet/internal/db"
	"github.com/Fantasim/hdwallet/internal/ledger"
	"github.com/Fantasim/hdwallet/internal/metrics"
	"github.com/Fantasim/hdwallet/internal/models"
)

type allocationResponse struct {
	UserID    string                 `json:"userId"`
	Index     uint32                 `json:"index"`
	Created   bool                   `json:"created"`
	Addresses []models.StoredAddress `json:"addresses"`
}

type verifyResponse struct {
	UserID     string                   `json:"userId"`
	Checked    int                      `json:"checked"`
	OK         bool                     `json:"ok"`
	Mismatches []models.AddressMismatch `json:"mismatches"`
}

func newAllocationResponse(userID string, alloc *db.Allocation) allocationResponse {
	addrs := alloc.Addresses
	if addrs == nil {
		addrs = []models.StoredAddress{}
	}
	return allocationResponse{
		UserID:    userID,
		Index:     alloc.Index,
		Created:   alloc.Created,
		Addresses: addrs,
	}
}

// InitializeWallet handles POST /api/users/{userID}/wallet.
// It answers 201 when the wallet was created and 200 when it already existed.
func InitializeWallet(svc *ledger.Service, m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		slog.Info("wallet initialization requested", "userID", userID, "remoteAddr", r.RemoteAddr)

		alloc, err := svc.Initialize(r.Context(), userID)
		if err != nil {
			writeServiceError(w, m, "initialize wallet", err)
			return
		}

		status := http.StatusOK
		if alloc.Created {
			status = http.StatusCreated
		}
		httputil.JSON(w, status, newAllocationResponse(userID, alloc))
	}
}

// NextAddresses handles POST /api/users/{userID}/addresses/next.
// An optional family query parameter limits the allocation to one asset family.
func NextAddresses(svc *ledger.Service, m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		family := strings.ToLower(r.URL.Query().Get("family"))

		slog.Info("next addresses requested",
			"userID", userID,
			"family", family,
			"remoteAddr", r.RemoteAddr,
		)

		var (
			alloc *db.Allocation
			err   error
		)
		if family == "" {
			alloc, err = svc.Next(r.Context(), userID)
		} else {
			alloc, err = svc.NextFamily(r.Context(), userID, models.Family(family))
		}
		if err != nil {
			writeServiceError(w, m, "allocate next index", err)
			return
		}

		httputil.JSON(w, http.StatusCreated, newAllocationResponse(userID, alloc))
	}
}

// ListAddresses handles GET /api/users/{userID}/addresses.
func ListAddresses(svc *ledger.Service, m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		userID := chi.URLParam(r, "userID")

		page := parseIntParam(r, "page", config.DefaultPage)
		pageSize := parseIntParam(r, "pageSize", config.DefaultPageSize)

		// Clamp page size
		if pageSize > config.MaxPageSize {
			pageSize = config.MaxPageSize
		}
		if pageSize < 1 {
			pageSize = config.DefaultPageSize
		}
		if page < 1 {
			page = config.DefaultPage
		}

		filter := db.AddressFilter{
			Asset:  models.Asset(r.URL.Query().Get("asset")),
			Offset: (page - 1) * pageSize,
			Limit:  pageSize,
		}

		addrs, total, err := svc.Addresses(r.Context(), userID, filter)
		if err != nil {
			writeServiceError(w, m, "list addresses", err)
			return
		}
		if addrs == nil {
			addrs = []models.StoredAddress{}
		}

		elapsed := time.Since(start).Milliseconds()
		slog.Info("addresses fetched",
			"userID", userID,
			"page", page,
			"pageSize", pageSize,
			"returned", len(addrs),
			"total", total,
			"elapsed_ms", elapsed,
		)

		httputil.JSONList(w, addrs, page, pageSize, int64(total), elapsed)
	}
}

// VerifyAddresses handles POST /api/users/{userID}/addresses/verify.
func VerifyAddresses(svc *ledger.Service, m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		slog.Info("address verification requested", "userID", userID, "remoteAddr", r.RemoteAddr)

		mismatches, checked, err := svc.Verify(r.Context(), userID)
		if err != nil {
			writeServiceError(w, m, "verify addresses", err)
			return
		}
		if mismatches == nil {
			mismatches = []models.AddressMismatch{}
		}

		httputil.JSON(w, http.StatusOK, verifyResponse{
			UserID:     userID,
			Checked:    checked,
			OK:         len(mismatches) == 0,
			Mismatches: mismatches,
		})
	}
}

// parseIntParam extracts an integer query parameter with a default value.
func parseIntParam(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		slog.Debug("invalid int param, using default",
			"key", key,
			"value", val,
			"default", defaultVal,
		)
		return defaultVal
	}
	return n
}
