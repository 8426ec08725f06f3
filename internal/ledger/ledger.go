// Package ledger owns the per-user address index: it creates a user's wallet,
// hands out the next receive index and checks stored rows against a fresh
// derivation. Mnemonics are kept sealed at rest and opened only for the
// duration of one call.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/Fantasim/hdwallet/internal/config"
	"github.com/Fantasim/hdwallet/internal/db"
	"github.com/Fantasim/hdwallet/internal/keystore"
	"github.com/Fantasim/hdwallet/internal/metrics"
	"github.com/Fantasim/hdwallet/internal/models"
	"github.com/Fantasim/hdwallet/internal/wallet"
)

var (
	ErrInvalidUserID        = errors.New("invalid user id")
	ErrWalletNotInitialized = errors.New("wallet not initialized")
)

var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:@-]{0,127}$`)

// Store is the persistence the ledger needs. *db.DB implements it.
type Store interface {
	InsertMnemonic(ctx context.Context, userID string, envelope []byte) (bool, error)
	GetMnemonic(ctx context.Context, userID string) ([]byte, error)
	AllocateFirst(ctx context.Context, userID string, families []models.Family, fn db.AllocateFunc) (*db.Allocation, error)
	AllocateNext(ctx context.Context, userID string, families []models.Family, fn db.AllocateFunc) (*db.Allocation, error)
	ListUserAddresses(ctx context.Context, userID string, f db.AddressFilter) ([]models.StoredAddress, int, error)
	StreamUserAddresses(ctx context.Context, userID string, fn func(models.StoredAddress) error) error
	CountUserAddresses(ctx context.Context, userID string) (int, error)
}

// Service runs the wallet lifecycle for many users over one Store.
type Service struct {
	store    Store
	keys     *keystore.Keystore
	registry *wallet.Registry
	metrics  *metrics.Metrics

	mnemonicBits int
	maxRetries   int
	backoff      time.Duration
}

// Option customizes a Service.
type Option func(*Service)

// WithRegistry overrides the default asset registry.
func WithRegistry(r *wallet.Registry) Option {
	return func(s *Service) { s.registry = r }
}

// WithMetrics records derivations and allocations on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithMnemonicBits sets the entropy of generated mnemonics (128 or 256).
func WithMnemonicBits(bits int) Option {
	return func(s *Service) { s.mnemonicBits = bits }
}

// WithRetry sets how often a transient store error is retried and the base backoff.
func WithRetry(maxRetries int, backoff time.Duration) Option {
	return func(s *Service) {
		s.maxRetries = maxRetries
		s.backoff = backoff
	}
}

// NewService creates a ledger service. keys seals and opens stored mnemonics.
func NewService(store Store, keys *keystore.Keystore, opts ...Option) *Service {
	s := &Service{
		store:        store,
		keys:         keys,
		registry:     wallet.DefaultRegistry(),
		mnemonicBits: config.MnemonicEntropyBits,
		maxRetries:   config.LedgerMaxRetries,
		backoff:      config.LedgerRetryBackoff,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry returns the asset registry the service derives with.
func (s *Service) Registry() *wallet.Registry {
	return s.registry
}

// ValidateUserID rejects empty or malformed user ids.
func ValidateUserID(userID string) error {
	if !userIDPattern.MatchString(userID) {
		return fmt.Errorf("%w: %q", ErrInvalidUserID, userID)
	}
	return nil
}

// Initialize makes sure userID has a mnemonic and its index-0 addresses.
// A new mnemonic is generated only when none is stored. When a concurrent
// call stores one first, that stored mnemonic is used instead. Calling it
// again for an initialized user returns the existing rows unchanged.
func (s *Service) Initialize(ctx context.Context, userID string) (*db.Allocation, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}

	if err := s.ensureMnemonic(ctx, userID); err != nil {
		return nil, err
	}

	alloc, err := s.allocate(ctx, userID, s.registry.Families(), true)
	if err != nil {
		return nil, err
	}

	slog.Info("wallet initialized",
		"userID", userID,
		"created", alloc.Created,
		"addresses", len(alloc.Addresses),
	)
	return alloc, nil
}

// Next allocates the next index for every asset family of userID and stores
// the derived batch. The index is max(current index) + 1.
func (s *Service) Next(ctx context.Context, userID string) (*db.Allocation, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}
	return s.allocate(ctx, userID, s.registry.Families(), false)
}

// NextFamily allocates the next index for a single asset family.
func (s *Service) NextFamily(ctx context.Context, userID string, family models.Family) (*db.Allocation, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}
	found := false
	for _, f := range s.registry.Families() {
		if f == family {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("family %q: %w", family, wallet.ErrUnsupportedAsset)
	}
	return s.allocate(ctx, userID, []models.Family{family}, false)
}

// Addresses returns a page of the stored addresses of userID.
func (s *Service) Addresses(ctx context.Context, userID string, f db.AddressFilter) ([]models.StoredAddress, int, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, 0, err
	}
	if f.Asset != "" {
		spec, err := s.registry.Lookup(string(f.Asset))
		if err != nil {
			return nil, 0, err
		}
		f.Asset = spec.Asset
	}
	return s.store.ListUserAddresses(ctx, userID, f)
}

// Export writes the stored addresses of userID to a JSON file in dir.
func (s *Service) Export(ctx context.Context, userID, dir string) (string, error) {
	if err := ValidateUserID(userID); err != nil {
		return "", err
	}
	return wallet.ExportUserAddresses(ctx, s.store, userID, dir)
}

// Verify re-derives every stored row of userID from its mnemonic and reports
// the rows that differ. Stored rows are never modified.
func (s *Service) Verify(ctx context.Context, userID string) ([]models.AddressMismatch, int, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, 0, err
	}

	d, err := s.openDeriver(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	defer d.Close()

	var (
		mismatches []models.AddressMismatch
		checked    int
	)
	err = s.store.StreamUserAddresses(ctx, userID, func(row models.StoredAddress) error {
		checked++
		if m, ok := compareRow(d, row); !ok {
			mismatches = append(mismatches, m)
		}
		return ctx.Err()
	})
	if err != nil {
		return nil, 0, fmt.Errorf("verify addresses for %s: %w", userID, err)
	}

	if len(mismatches) > 0 {
		slog.Warn("stored addresses do not match derivation",
			"userID", userID,
			"checked", checked,
			"mismatches", len(mismatches),
		)
	} else {
		slog.Info("stored addresses verified", "userID", userID, "checked", checked)
	}
	return mismatches, checked, nil
}

func compareRow(d *wallet.Deriver, row models.StoredAddress) (models.AddressMismatch, bool) {
	m := models.AddressMismatch{
		Asset:        row.Asset,
		AddressIndex: row.AddressIndex,
		Stored:       row.Address,
	}

	derived, err := d.Derive(string(row.Asset), row.AddressIndex)
	if err != nil {
		m.Reason = err.Error()
		return m, false
	}
	m.Derived = derived.Address

	switch {
	case derived.Address != row.Address:
		m.Reason = "address differs"
	case derived.DerivationPath != row.DerivationPath:
		m.Reason = fmt.Sprintf("path %s differs from %s", row.DerivationPath, derived.DerivationPath)
	default:
		return m, true
	}
	return m, false
}

func (s *Service) ensureMnemonic(ctx context.Context, userID string) error {
	_, err := s.store.GetMnemonic(ctx, userID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, db.ErrMnemonicNotFound) {
		return err
	}

	mnemonic, err := wallet.GenerateMnemonic(s.mnemonicBits)
	if err != nil {
		return err
	}
	plain := []byte(mnemonic)
	defer clear(plain)

	envelope, err := s.keys.Seal(plain)
	if err != nil {
		return fmt.Errorf("seal mnemonic for %s: %w", userID, err)
	}

	return s.retry(ctx, "store mnemonic", func() error {
		inserted, err := s.store.InsertMnemonic(ctx, userID, envelope)
		if err == nil && !inserted {
			slog.Info("mnemonic already stored by a concurrent initializer", "userID", userID)
		}
		return err
	})
}

func (s *Service) openDeriver(ctx context.Context, userID string) (*wallet.Deriver, error) {
	envelope, err := s.store.GetMnemonic(ctx, userID)
	if errors.Is(err, db.ErrMnemonicNotFound) {
		return nil, fmt.Errorf("user %s: %w", userID, ErrWalletNotInitialized)
	}
	if err != nil {
		return nil, err
	}

	plain, err := s.keys.Open(envelope)
	if err != nil {
		return nil, fmt.Errorf("open mnemonic for %s: %w", userID, err)
	}
	defer clear(plain)

	return wallet.NewDeriver(string(plain), s.registry)
}

func (s *Service) allocate(ctx context.Context, userID string, families []models.Family, first bool) (*db.Allocation, error) {
	d, err := s.openDeriver(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer d.Close()

	derive := func(index uint32) ([]models.DerivedAddress, error) {
		var out []models.DerivedAddress
		for _, f := range families {
			batch, err := d.FamilyBatch(f, index)
			if err != nil {
				return nil, err
			}
			out = append(out, batch...)
		}
		return out, nil
	}

	operation := "next"
	if first {
		operation = "initialize"
	}

	var alloc *db.Allocation
	err = s.retry(ctx, operation, func() error {
		var err error
		if first {
			alloc, err = s.store.AllocateFirst(ctx, userID, families, derive)
		} else {
			alloc, err = s.store.AllocateNext(ctx, userID, families, derive)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Allocation(operation, alloc.Created)
	if alloc.Created {
		for _, a := range alloc.Addresses {
			s.metrics.AddressesDerived(string(a.Asset), 1)
		}
	}

	slog.Debug("addresses allocated",
		"userID", userID,
		"operation", operation,
		"index", alloc.Index,
		"count", len(alloc.Addresses),
	)
	return alloc, nil
}

// retry runs fn until it succeeds, fails with a non-transient error, or the
// retry budget is spent. Backoff grows linearly unless the error carries its
// own delay.
func (s *Service) retry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		err = fn()
		if err == nil || !config.IsTransient(err) {
			return err
		}
		if attempt == s.maxRetries {
			break
		}

		wait := config.GetRetryAfter(err)
		if wait == 0 {
			wait = s.backoff * time.Duration(attempt+1)
		}
		slog.Warn("transient store error, retrying",
			"operation", op,
			"attempt", attempt+1,
			"wait", wait,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", op, ctx.Err())
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("%s: retries exhausted: %w", op, err)
}
