package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/Fantasim/hdwallet/internal/db"
	"github.com/Fantasim/hdwallet/internal/keystore"
	"github.com/Fantasim/hdwallet/internal/ledger"
	"github.com/Fantasim/hdwallet/internal/metrics"
	"github.com/Fantasim/hdwallet/internal/models"
	"github.com/Fantasim/hdwallet/internal/wallet"
)

func setupTestDB(t *testing.T) *db.DB {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.sqlite")

	database, err := db.New(dbPath)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := database.RunMigrations(); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}

	t.Cleanup(func() { database.Close() })
	return database
}

func setupRouter(t *testing.T) (http.Handler, *db.DB) {
	t.Helper()
	database := setupTestDB(t)

	ks, err := keystore.New("handler test passphrase", keystore.LightParams)
	if err != nil {
		t.Fatal(err)
	}
	m := metrics.New()
	svc := ledger.NewService(database, ks, ledger.WithMetrics(m))

	r := chi.NewRouter()
	r.Get("/api/health", HealthHandler(database, "test"))
	r.Get("/api/assets", ListAssets(svc.Registry()))
	r.Get("/api/validate", ValidateAddress(svc.Registry(), database))
	r.Post("/api/users/{userID}/wallet", InitializeWallet(svc, m))
	r.Post("/api/users/{userID}/addresses/next", NextAddresses(svc, m))
	r.Get("/api/users/{userID}/addresses", ListAddresses(svc, m))
	r.Post("/api/users/{userID}/addresses/verify", VerifyAddresses(svc, m))
	return r, database
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

type envelope[T any] struct {
	Data T               `json:"data"`
	Meta *models.APIMeta `json:"meta"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var env envelope[T]
	if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return env
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp models.APIError
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return resp.Error.Code
}

func TestInitializeWallet(t *testing.T) {
	router, _ := setupRouter(t)

	w := do(t, router, http.MethodPost, "/api/users/alice/wallet")
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	first := decode[allocationResponse](t, w)
	if first.Data.Index != 0 || !first.Data.Created {
		t.Errorf("first init = %+v", first.Data)
	}
	if len(first.Data.Addresses) != len(wallet.DefaultAssets()) {
		t.Errorf("expected %d addresses, got %d", len(wallet.DefaultAssets()), len(first.Data.Addresses))
	}

	w = do(t, router, http.MethodPost, "/api/users/alice/wallet")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on repeat init, got %d", w.Code)
	}
	again := decode[allocationResponse](t, w)
	if again.Data.Created {
		t.Error("repeat init reported created")
	}
	if again.Data.Addresses[0].Address != first.Data.Addresses[0].Address {
		t.Error("repeat init returned different addresses")
	}
}

func TestNextAddresses(t *testing.T) {
	router, _ := setupRouter(t)

	w := do(t, router, http.MethodPost, "/api/users/bob/addresses/next")
	if w.Code != http.StatusNotFound {
		t.Fatalf("next before init: expected 404, got %d", w.Code)
	}
	if code := errorCode(t, w); code != "ERROR_WALLET_NOT_INITIALIZED" {
		t.Errorf("expected ERROR_WALLET_NOT_INITIALIZED, got %s", code)
	}

	do(t, router, http.MethodPost, "/api/users/bob/wallet")

	w = do(t, router, http.MethodPost, "/api/users/bob/addresses/next")
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if got := decode[allocationResponse](t, w).Data.Index; got != 1 {
		t.Errorf("expected index 1, got %d", got)
	}

	w = do(t, router, http.MethodPost, "/api/users/bob/addresses/next?family=tron")
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	tron := decode[allocationResponse](t, w).Data
	if tron.Index != 2 || len(tron.Addresses) != 2 {
		t.Errorf("tron allocation = index %d, %d rows; want 2 and 2", tron.Index, len(tron.Addresses))
	}

	w = do(t, router, http.MethodPost, "/api/users/bob/addresses/next?family=solana")
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown family: expected 400, got %d", w.Code)
	}
}

func TestListAddresses_Pagination(t *testing.T) {
	router, _ := setupRouter(t)
	do(t, router, http.MethodPost, "/api/users/carol/wallet")
	for range 3 {
		do(t, router, http.MethodPost, "/api/users/carol/addresses/next")
	}

	w := do(t, router, http.MethodGet, "/api/users/carol/addresses?page=2&pageSize=10")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	resp := decode[[]models.StoredAddress](t, w)
	if len(resp.Data) != 10 {
		t.Errorf("expected 10 rows on page 2, got %d", len(resp.Data))
	}
	if resp.Meta == nil || resp.Meta.Total != 24 || resp.Meta.Page != 2 {
		t.Errorf("unexpected meta %+v", resp.Meta)
	}

	w = do(t, router, http.MethodGet, "/api/users/carol/addresses?asset=btc")
	resp = decode[[]models.StoredAddress](t, w)
	if len(resp.Data) != 4 {
		t.Errorf("expected 4 BTC rows, got %d", len(resp.Data))
	}
	for _, a := range resp.Data {
		if a.Asset != models.AssetBTC {
			t.Errorf("filter leaked %s", a.Asset)
		}
	}

	w = do(t, router, http.MethodGet, "/api/users/carol/addresses?asset=DOGE")
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown asset: expected 400, got %d", w.Code)
	}

	w = do(t, router, http.MethodGet, "/api/users/nobody/addresses")
	resp = decode[[]models.StoredAddress](t, w)
	if resp.Data == nil || len(resp.Data) != 0 {
		t.Errorf("expected empty list, got %v", resp.Data)
	}
}

func TestVerifyAddresses(t *testing.T) {
	router, _ := setupRouter(t)
	do(t, router, http.MethodPost, "/api/users/dave/wallet")

	w := do(t, router, http.MethodPost, "/api/users/dave/addresses/verify")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	resp := decode[verifyResponse](t, w).Data
	if !resp.OK || resp.Checked != len(wallet.DefaultAssets()) {
		t.Errorf("verify = %+v", resp)
	}
}

func TestInvalidUserID(t *testing.T) {
	router, _ := setupRouter(t)

	w := do(t, router, http.MethodPost, "/api/users/-bad/wallet")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if code := errorCode(t, w); code != "ERROR_INVALID_USER_ID" {
		t.Errorf("expected ERROR_INVALID_USER_ID, got %s", code)
	}
}

func TestValidateAddress(t *testing.T) {
	router, _ := setupRouter(t)

	w := do(t, router, http.MethodPost, "/api/users/erin/wallet")
	alloc := decode[allocationResponse](t, w).Data
	var btc string
	for _, a := range alloc.Addresses {
		if a.Asset == models.AssetBTC {
			btc = a.Address
		}
	}

	tests := []struct {
		name     string
		query    string
		status   int
		format   bool
		checksum bool
		known    bool
	}{
		{"owned btc", "asset=BTC&address=" + btc, 200, true, true, true},
		{"foreign btc", "asset=BTC&address=bc1qcr8te4kr609gcawutmrza0j4xv80jy8z306fyu", 200, true, true, false},
		{"bad checksum", "asset=BTC&address=bc1qcr8te4kr609gcawutmrza0j4xv80jy8z306fyv", 200, true, false, false},
		{"eth on tron", "asset=USDT_TRON&address=0x9858effd232b4033e47d90003d41ec34ecaeda94", 200, false, false, false},
		{"unknown asset", "asset=DOGE&address=D8xyz", 400, false, false, false},
		{"missing address", "asset=ETH", 400, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, http.MethodGet, "/api/validate?"+tt.query)
			if w.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
			if tt.status != http.StatusOK {
				return
			}
			res := decode[validationResult](t, w).Data
			if res.FormatValid != tt.format || res.ChecksumValid != tt.checksum || res.Known != tt.known {
				t.Errorf("result = %+v", res)
			}
			if tt.known && (res.UserID != "erin" || res.AddressIndex == nil || *res.AddressIndex != 0) {
				t.Errorf("owner = %q/%v, want erin/0", res.UserID, res.AddressIndex)
			}
		})
	}
}

func TestListAssets(t *testing.T) {
	router, _ := setupRouter(t)

	w := do(t, router, http.MethodGet, "/api/assets")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	assets := decode[[]assetInfo](t, w).Data
	if len(assets) != len(wallet.DefaultAssets()) {
		t.Fatalf("expected %d assets, got %d", len(wallet.DefaultAssets()), len(assets))
	}
	if assets[3].Asset != models.AssetBTC || assets[3].PathTemplate != "m/84'/0'/0'/0" {
		t.Errorf("assets[3] = %+v", assets[3])
	}
}

type downDB struct{}

func (downDB) Ping(context.Context) error { return errors.New("disk gone") }

func TestHealthHandler(t *testing.T) {
	router, _ := setupRouter(t)

	w := do(t, router, http.MethodGet, "/api/health")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := decode[map[string]string](t, w).Data["status"]; got != "ok" {
		t.Errorf("status = %q", got)
	}

	w = httptest.NewRecorder()
	HealthHandler(downDB{}, "test").ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 when db is down, got %d", w.Code)
	}
}

func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{ledger.ErrInvalidUserID, 400, "ERROR_INVALID_USER_ID"},
		{wallet.ErrUnsupportedAsset, 400, "ERROR_UNSUPPORTED_ASSET"},
		{db.ErrAddressConflict, 409, "ERROR_ADDRESS_CONFLICT"},
		{wallet.ErrDerivation, 500, "ERROR_DERIVATION_FAILURE"},
		{wallet.ErrEncoding, 500, "ERROR_ENCODING_FAILURE"},
		{wallet.ErrAddressFormatMismatch, 500, "ERROR_ADDRESS_FORMAT_MISMATCH"},
		{errors.New("boom"), 500, "ERROR_INTERNAL"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeServiceError(w, nil, "test", tt.err)
			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			if code := errorCode(t, w); code != tt.code {
				t.Errorf("code = %s, want %s", code, tt.code)
			}
		})
	}
}
