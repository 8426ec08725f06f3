package wallet

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"

	"github.com/Fantasim/hdwallet/internal/models"
)

// Deriver derives addresses for one mnemonic. It keeps the master key and the
// per-template parent keys in memory until Close is called, so it should live
// no longer than one request or job.
//
// A Deriver is safe for concurrent use.
type Deriver struct {
	registry *Registry
	master   *ExtendedKey

	mu      sync.Mutex
	parents map[string]*ExtendedKey
	closed  bool
}

// NewDeriver validates mnemonic and builds its master key. The seed buffer is
// wiped before returning. A nil registry means DefaultRegistry.
func NewDeriver(mnemonic string, registry *Registry) (*Deriver, error) {
	if registry == nil {
		registry = DefaultRegistry()
	}

	seed, err := MnemonicToSeed(mnemonic)
	if err != nil {
		return nil, err
	}
	defer clear(seed)

	master, err := MasterKeyFromSeed(seed)
	if err != nil {
		return nil, err
	}

	return &Deriver{
		registry: registry,
		master:   master,
		parents:  make(map[string]*ExtendedKey),
	}, nil
}

// Registry returns the registry the deriver resolves assets against.
func (d *Deriver) Registry() *Registry {
	return d.registry
}

// parentFor returns the key at template, deriving and caching it on first use.
// The public key is computed eagerly because hdkeychain caches it lazily on
// the parent, which would race when children are derived concurrently.
func (d *Deriver) parentFor(template DerivationPath) (*ExtendedKey, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, fmt.Errorf("deriver is closed: %w", ErrDerivation)
	}

	key := template.String()
	if parent, ok := d.parents[key]; ok {
		return parent, nil
	}

	parent, err := d.master.Derive(template)
	if err != nil {
		return nil, err
	}
	if _, err := parent.PublicKey(); err != nil {
		return nil, err
	}

	d.parents[key] = parent
	return parent, nil
}

// Derive returns the address of asset at index.
func (d *Deriver) Derive(asset string, index uint32) (models.DerivedAddress, error) {
	spec, err := d.registry.Lookup(asset)
	if err != nil {
		return models.DerivedAddress{}, err
	}
	return d.deriveSpec(spec, index)
}

func (d *Deriver) deriveSpec(spec AssetAddressSpec, index uint32) (models.DerivedAddress, error) {
	if index >= hdkeychain.HardenedKeyStart {
		return models.DerivedAddress{}, fmt.Errorf("address index %d out of range: %w", index, ErrDerivation)
	}

	enc, err := EncoderFor(spec.Kind)
	if err != nil {
		return models.DerivedAddress{}, err
	}

	parent, err := d.parentFor(spec.PathTemplate)
	if err != nil {
		return models.DerivedAddress{}, fmt.Errorf("derive %s parent: %w", spec.Asset, err)
	}

	child, err := parent.Derive(DerivationPath{{Index: index}})
	if err != nil {
		return models.DerivedAddress{}, fmt.Errorf("derive %s at index %d: %w", spec.Asset, index, err)
	}
	defer child.Zero()

	pub, err := child.PublicKey()
	if err != nil {
		return models.DerivedAddress{}, fmt.Errorf("derive %s at index %d: %w", spec.Asset, index, err)
	}

	addr, err := enc.Encode(pub)
	if err != nil {
		return models.DerivedAddress{}, fmt.Errorf("encode %s at index %d: %w", spec.Asset, index, err)
	}

	return models.DerivedAddress{
		Asset:          spec.Asset,
		Family:         spec.Family,
		Address:        addr,
		DerivationPath: child.Path().String(),
		AddressIndex:   index,
	}, nil
}

// Batch derives one address per registry asset at index, in registry order.
// Assets sharing a path (ERC-20, TRC-20) reuse the address of the first asset
// on that path. Every address is verified against its format before it is
// returned, and any failure fails the whole batch.
func (d *Deriver) Batch(index uint32) ([]models.DerivedAddress, error) {
	return d.batch(d.registry.Assets(), index)
}

// FamilyBatch is Batch restricted to the assets of one family.
func (d *Deriver) FamilyBatch(family models.Family, index uint32) ([]models.DerivedAddress, error) {
	var specs []AssetAddressSpec
	for _, s := range d.registry.Assets() {
		if s.Family == family {
			specs = append(specs, s)
		}
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("family %q: %w", family, ErrUnsupportedAsset)
	}
	return d.batch(specs, index)
}

func (d *Deriver) batch(specs []AssetAddressSpec, index uint32) ([]models.DerivedAddress, error) {
	out := make([]models.DerivedAddress, 0, len(specs))
	byPath := make(map[string]models.DerivedAddress, len(specs))

	for _, spec := range specs {
		key := fmt.Sprintf("%s|%d", spec.PathTemplate, spec.Kind)

		derived, ok := byPath[key]
		if !ok {
			var err error
			derived, err = d.deriveSpec(spec, index)
			if err != nil {
				return nil, err
			}
			if err := verifyForKind(derived.Address, spec); err != nil {
				return nil, fmt.Errorf("post-derivation check %s at index %d: %w", spec.Asset, index, err)
			}
			byPath[key] = derived
		}

		derived.Asset = spec.Asset
		derived.Family = spec.Family
		out = append(out, derived)
	}

	slog.Debug("address batch derived", "index", index, "count", len(out))
	return out, nil
}

// Close wipes the master and cached parent keys. The deriver is unusable afterwards.
func (d *Deriver) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	d.closed = true
	for k, p := range d.parents {
		p.Zero()
		delete(d.parents, k)
	}
	d.master.Zero()
}

// DeriveAddress derives the address of asset at index from mnemonic.
// It is a pure function of its inputs.
func DeriveAddress(mnemonic, asset string, index uint32) (models.DerivedAddress, error) {
	if _, err := DefaultRegistry().Lookup(asset); err != nil {
		return models.DerivedAddress{}, err
	}

	d, err := NewDeriver(mnemonic, nil)
	if err != nil {
		return models.DerivedAddress{}, err
	}
	defer d.Close()

	return d.Derive(asset, index)
}

// GenerateAddressBatch derives one address per supported asset at index.
// Callers pass currentMax+1, or 0 for a user's first addresses.
func GenerateAddressBatch(mnemonic string, index uint32) ([]models.DerivedAddress, error) {
	d, err := NewDeriver(mnemonic, nil)
	if err != nil {
		return nil, err
	}
	defer d.Close()

	return d.Batch(index)
}
