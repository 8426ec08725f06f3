package wallet

import (
	"fmt"
	"strings"

	"github.com/Fantasim/hdwallet/internal/config"
	"github.com/Fantasim/hdwallet/internal/models"
)

// AssetAddressSpec binds an asset to the path its addresses are derived under
// and to the encoder that turns the child key into an address.
type AssetAddressSpec struct {
	Asset        models.Asset
	Family       models.Family
	PathTemplate DerivationPath // the address index is appended as the last segment
	Kind         EncoderKind
}

// Registry is an immutable asset table. Build it once with NewRegistry.
type Registry struct {
	specs   []AssetAddressSpec
	byAsset map[string]int
}

var (
	ethereumPath = DerivationPath{
		{Index: config.BIP44Purpose, Hardened: true},
		{Index: config.ETHCoinType, Hardened: true},
		{Index: 0, Hardened: true},
		{Index: 0},
	}
	bitcoinPath = DerivationPath{
		{Index: config.BIP84Purpose, Hardened: true},
		{Index: config.BTCCoinType, Hardened: true},
		{Index: 0, Hardened: true},
		{Index: 0},
	}
	tronPath = DerivationPath{
		{Index: config.BIP44Purpose, Hardened: true},
		{Index: config.TRONCoinType, Hardened: true},
		{Index: 0, Hardened: true},
		{Index: 0},
	}
)

// DefaultAssets is the built-in asset table, in batch order.
// ERC-20 and TRC-20 tokens share the address of their chain's native coin.
func DefaultAssets() []AssetAddressSpec {
	return []AssetAddressSpec{
		{Asset: models.AssetETH, Family: models.FamilyEthereum, PathTemplate: ethereumPath, Kind: EncoderEthereum},
		{Asset: models.AssetUSDTERC20, Family: models.FamilyEthereum, PathTemplate: ethereumPath, Kind: EncoderEthereum},
		{Asset: models.AssetUSDCERC20, Family: models.FamilyEthereum, PathTemplate: ethereumPath, Kind: EncoderEthereum},
		{Asset: models.AssetBTC, Family: models.FamilyBitcoin, PathTemplate: bitcoinPath, Kind: EncoderBitcoin},
		{Asset: models.AssetTRX, Family: models.FamilyTron, PathTemplate: tronPath, Kind: EncoderTron},
		{Asset: models.AssetUSDTTRC20, Family: models.FamilyTron, PathTemplate: tronPath, Kind: EncoderTron},
	}
}

// assetAliases maps legacy symbols still found in stored rows to their canonical asset.
var assetAliases = map[string]models.Asset{
	"USDT_TRON":  models.AssetUSDTTRC20,
	"USDT_TRC20": models.AssetUSDTTRC20,
	"USDT_ERC20": models.AssetUSDTERC20,
	"USDC_ERC20": models.AssetUSDCERC20,
}

// NewRegistry builds a registry from specs. Duplicate assets, empty paths,
// hardened template tails and unknown encoder kinds are rejected.
func NewRegistry(specs []AssetAddressSpec) (*Registry, error) {
	r := &Registry{
		specs:   make([]AssetAddressSpec, 0, len(specs)),
		byAsset: make(map[string]int, len(specs)),
	}

	for _, s := range specs {
		key := strings.ToUpper(string(s.Asset))
		if key == "" {
			return nil, fmt.Errorf("registry: empty asset symbol")
		}
		if _, dup := r.byAsset[key]; dup {
			return nil, fmt.Errorf("registry: duplicate asset %s", s.Asset)
		}
		if len(s.PathTemplate) == 0 {
			return nil, fmt.Errorf("registry: asset %s has an empty path", s.Asset)
		}
		if _, err := EncoderFor(s.Kind); err != nil {
			return nil, fmt.Errorf("registry: asset %s: %w", s.Asset, err)
		}

		s.PathTemplate = append(DerivationPath{}, s.PathTemplate...)
		r.byAsset[key] = len(r.specs)
		r.specs = append(r.specs, s)
	}
	return r, nil
}

var defaultRegistry = mustRegistry(DefaultAssets())

func mustRegistry(specs []AssetAddressSpec) *Registry {
	r, err := NewRegistry(specs)
	if err != nil {
		panic(err)
	}
	return r
}

// DefaultRegistry returns the built-in registry.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Lookup resolves an asset symbol, case-insensitively and through known aliases.
func (r *Registry) Lookup(asset string) (AssetAddressSpec, error) {
	key := strings.ToUpper(strings.TrimSpace(asset))
	if canonical, ok := assetAliases[key]; ok {
		key = string(canonical)
	}

	i, ok := r.byAsset[key]
	if !ok {
		return AssetAddressSpec{}, fmt.Errorf("asset %q: %w", asset, ErrUnsupportedAsset)
	}
	return r.spec(i), nil
}

// Assets returns a copy of every spec, in registry order.
func (r *Registry) Assets() []AssetAddressSpec {
	out := make([]AssetAddressSpec, len(r.specs))
	for i := range r.specs {
		out[i] = r.spec(i)
	}
	return out
}

// Families returns the distinct families in registry order.
func (r *Registry) Families() []models.Family {
	var out []models.Family
	seen := make(map[models.Family]bool)
	for _, s := range r.specs {
		if !seen[s.Family] {
			seen[s.Family] = true
			out = append(out, s.Family)
		}
	}
	return out
}

// PathFor returns the full derivation path for asset at index.
func (r *Registry) PathFor(asset string, index uint32) (DerivationPath, error) {
	spec, err := r.Lookup(asset)
	if err != nil {
		return nil, err
	}
	return spec.PathTemplate.Child(index)
}

func (r *Registry) spec(i int) AssetAddressSpec {
	s := r.specs[i]
	s.PathTemplate = append(DerivationPath{}, s.PathTemplate...)
	return s
}
