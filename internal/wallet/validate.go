package wallet

import (
	"fmt"
	"regexp"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
)

var (
	ethereumAddressRe = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	bitcoinAddressRe  = regexp.MustCompile(`^bc1[0-9a-z]{39,59}$`)
	tronAddressRe     = regexp.MustCompile(`^T[0-9A-Za-z]{33}$`)
)

func formatPattern(kind EncoderKind) (*regexp.Regexp, error) {
	switch kind {
	case EncoderEthereum:
		return ethereumAddressRe, nil
	case EncoderBitcoin:
		return bitcoinAddressRe, nil
	case EncoderTron:
		return tronAddressRe, nil
	default:
		return nil, fmt.Errorf("encoder kind %s: %w", kind, ErrUnsupportedAsset)
	}
}

// ValidateAddressFormat reports whether address matches the canonical format of
// asset. Unknown assets never validate.
func ValidateAddressFormat(address, asset string) bool {
	spec, err := DefaultRegistry().Lookup(asset)
	if err != nil {
		return false
	}
	re, err := formatPattern(spec.Kind)
	if err != nil {
		return false
	}
	return re.MatchString(address)
}

// VerifyAddress is the strict form of ValidateAddressFormat: on top of the
// format it checks the bech32 and Base58Check checksums.
func VerifyAddress(address, asset string) error {
	spec, err := DefaultRegistry().Lookup(asset)
	if err != nil {
		return err
	}
	return verifyForKind(address, spec)
}

func verifyForKind(address string, spec AssetAddressSpec) error {
	re, err := formatPattern(spec.Kind)
	if err != nil {
		return err
	}
	if !re.MatchString(address) {
		return fmt.Errorf("%s address format: %w", spec.Asset, ErrAddressFormatMismatch)
	}

	switch spec.Kind {
	case EncoderBitcoin:
		decoded, err := btcutil.DecodeAddress(address, &chaincfg.MainNetParams)
		if err != nil {
			return fmt.Errorf("decode %s address: %w: %w", spec.Asset, ErrAddressFormatMismatch, err)
		}
		if _, ok := decoded.(*btcutil.AddressWitnessPubKeyHash); !ok {
			return fmt.Errorf("%s address is not P2WPKH: %w", spec.Asset, ErrAddressFormatMismatch)
		}
	case EncoderTron:
		if _, err := DecodeTronAddress(address); err != nil {
			return err
		}
	}
	return nil
}
