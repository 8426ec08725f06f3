package wallet

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/btcsuite/btcd/chaincfg"

	"github.com/Fantasim/hdwallet/internal/config"
)

type bitcoinEncoder struct{}

func (bitcoinEncoder) Kind() EncoderKind { return EncoderBitcoin }

// Encode returns the native SegWit (P2WPKH, witness v0) bech32 address:
// HASH160 of the compressed key as the witness program, HRP "bc".
func (bitcoinEncoder) Encode(pub *btcec.PublicKey) (string, error) {
	if err := checkPublicKey(pub); err != nil {
		return "", err
	}

	witnessProg := btcutil.Hash160(pub.SerializeCompressed())
	addr, err := btcutil.NewAddressWitnessPubKeyHash(witnessProg, &chaincfg.MainNetParams)
	if err != nil {
		return "", fmt.Errorf("create bech32 address: %w: %w", ErrEncoding, err)
	}
	return addr.EncodeAddress(), nil
}

// DecodeBitcoinWitnessProgram decodes a mainnet v0 bech32 address and returns
// its 20-byte witness program.
func DecodeBitcoinWitnessProgram(address string) ([]byte, error) {
	hrp, data, err := bech32.Decode(address)
	if err != nil {
		return nil, fmt.Errorf("bech32 decode: %w: %w", ErrAddressFormatMismatch, err)
	}
	if hrp != config.BTCBech32HRP {
		return nil, fmt.Errorf("bech32 prefix %q: %w", hrp, ErrAddressFormatMismatch)
	}
	if len(data) < 1 || data[0] != config.BTCWitnessVersion {
		return nil, fmt.Errorf("unsupported witness version: %w", ErrAddressFormatMismatch)
	}

	prog, err := bech32.ConvertBits(data[1:], 5, 8, false)
	if err != nil {
		return nil, fmt.Errorf("convert witness program: %w: %w", ErrAddressFormatMismatch, err)
	}
	if len(prog) != config.AddressHashLen {
		return nil, fmt.Errorf("witness program length %d: %w", len(prog), ErrAddressFormatMismatch)
	}
	return prog, nil
}
