package wallet

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
)

// PathSegment is one step of a BIP-32 derivation path.
type PathSegment struct {
	Index    uint32
	Hardened bool
}

// ChildIndex returns the raw BIP-32 child number, with the hardened offset applied.
func (s PathSegment) ChildIndex() uint32 {
	if s.Hardened {
		return s.Index + hdkeychain.HardenedKeyStart
	}
	return s.Index
}

func (s PathSegment) String() string {
	if s.Hardened {
		return strconv.FormatUint(uint64(s.Index), 10) + "'"
	}
	return strconv.FormatUint(uint64(s.Index), 10)
}

// DerivationPath is an ordered list of segments below the master key.
type DerivationPath []PathSegment

// String renders the canonical form, e.g. m/84'/0'/0'/0/3.
func (p DerivationPath) String() string {
	var b strings.Builder
	b.WriteString("m")
	for _, seg := range p {
		b.WriteByte('/')
		b.WriteString(seg.String())
	}
	return b.String()
}

// Child returns a copy of p extended with a non-hardened index.
func (p DerivationPath) Child(index uint32) (DerivationPath, error) {
	if index >= hdkeychain.HardenedKeyStart {
		return nil, fmt.Errorf("child index %d out of range: %w", index, ErrDerivation)
	}
	out := make(DerivationPath, len(p), len(p)+1)
	copy(out, p)
	return append(out, PathSegment{Index: index}), nil
}

// ParseDerivationPath parses paths like m/44'/60'/0'/0/7.
// Hardened segments may be marked with ', h or H.
func ParseDerivationPath(s string) (DerivationPath, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) == 0 || parts[0] != "m" {
		return nil, fmt.Errorf("parse path %q: must start with m: %w", s, ErrDerivation)
	}

	path := make(DerivationPath, 0, len(parts)-1)
	for i, part := range parts[1:] {
		seg := PathSegment{}
		if n := len(part); n > 0 && (part[n-1] == '\'' || part[n-1] == 'h' || part[n-1] == 'H') {
			seg.Hardened = true
			part = part[:n-1]
		}
		if part == "" {
			return nil, fmt.Errorf("parse path %q: empty segment %d: %w", s, i+1, ErrDerivation)
		}

		idx, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("parse path %q: segment %d: %w: %w", s, i+1, ErrDerivation, err)
		}
		if idx >= hdkeychain.HardenedKeyStart {
			return nil, fmt.Errorf("parse path %q: segment %d index %d out of range: %w", s, i+1, idx, ErrDerivation)
		}

		seg.Index = uint32(idx)
		path = append(path, seg)
	}
	return path, nil
}

// MustParseDerivationPath is ParseDerivationPath for static paths; it panics on error.
func MustParseDerivationPath(s string) DerivationPath {
	p, err := ParseDerivationPath(s)
	if err != nil {
		panic(err)
	}
	return p
}
