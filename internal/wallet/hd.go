package wallet

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
)

// ExtendedKey is a BIP-32 extended key together with the path that produced it.
// Logged through slog it shows only its path; String returns the serialized key
// and must only be shown to its owner.
type ExtendedKey struct {
	key  *hdkeychain.ExtendedKey
	path DerivationPath
}

// MasterKeyFromSeed derives the BIP-32 master key (HMAC-SHA512 keyed with "Bitcoin seed").
func MasterKeyFromSeed(seed []byte) (*ExtendedKey, error) {
	key, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("derive master key: %w: %w", ErrDerivation, err)
	}

	slog.Debug("master key derived")
	return &ExtendedKey{key: key}, nil
}

// Derive walks path below k. Each segment is derived with the BIP-32 compliant
// algorithm, so hardened steps use 0x00||priv||index and normal steps pub||index.
func (k *ExtendedKey) Derive(path DerivationPath) (*ExtendedKey, error) {
	cur := k.key
	for i, seg := range path {
		next, err := cur.Derive(seg.ChildIndex())
		if err != nil {
			at := append(append(DerivationPath{}, k.path...), path[:i+1]...)
			if errors.Is(err, hdkeychain.ErrInvalidChild) {
				return nil, fmt.Errorf("derive %s: invalid child key: %w: %w", at, ErrDerivation, err)
			}
			return nil, fmt.Errorf("derive %s: %w: %w", at, ErrDerivation, err)
		}
		cur = next
	}

	full := make(DerivationPath, 0, len(k.path)+len(path))
	full = append(append(full, k.path...), path...)
	return &ExtendedKey{key: cur, path: full}, nil
}

// DeriveString parses s and derives it below k.
func (k *ExtendedKey) DeriveString(s string) (*ExtendedKey, error) {
	path, err := ParseDerivationPath(s)
	if err != nil {
		return nil, err
	}
	return k.Derive(path)
}

// Path returns the absolute path of k from the master key.
func (k *ExtendedKey) Path() DerivationPath {
	return append(DerivationPath{}, k.path...)
}

// IsPrivate reports whether k holds private key material.
func (k *ExtendedKey) IsPrivate() bool {
	return k.key.IsPrivate()
}

// Neuter returns the public-only counterpart of k.
func (k *ExtendedKey) Neuter() (*ExtendedKey, error) {
	pub, err := k.key.Neuter()
	if err != nil {
		return nil, fmt.Errorf("neuter key: %w: %w", ErrDerivation, err)
	}
	return &ExtendedKey{key: pub, path: k.Path()}, nil
}

// PublicKey returns the secp256k1 public key of k.
func (k *ExtendedKey) PublicKey() (*btcec.PublicKey, error) {
	pub, err := k.key.ECPubKey()
	if err != nil {
		return nil, fmt.Errorf("public key at %s: %w: %w", k.path, ErrEncoding, err)
	}
	return pub, nil
}

// String returns the base58 xprv/xpub serialization. Never log it.
func (k *ExtendedKey) String() string {
	return k.key.String()
}

// LogValue implements slog.LogValuer. Only the path and key kind are logged.
func (k *ExtendedKey) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("path", k.path.String()),
		slog.Bool("private", k.IsPrivate()),
	)
}

// Zero wipes the private material held by k.
func (k *ExtendedKey) Zero() {
	k.key.Zero()
}
