package wallet

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/mr-tron/base58"

	"github.com/Fantasim/hdwallet/internal/config"
)

type tronEncoder struct{}

func (tronEncoder) Kind() EncoderKind { return EncoderTron }

// Encode returns Base58Check(0x41 || keccak account hash).
func (tronEncoder) Encode(pub *btcec.PublicKey) (string, error) {
	hash, err := keccakAccountHash(pub)
	if err != nil {
		return "", err
	}
	return encodeTronPayload(hash), nil
}

func encodeTronPayload(hash []byte) string {
	payload := make([]byte, 0, 1+len(hash)+config.TronChecksumLen)
	payload = append(payload, config.TronAddressPrefix)
	payload = append(payload, hash...)
	checksum := chainhash.DoubleHashB(payload)[:config.TronChecksumLen]
	return base58.Encode(append(payload, checksum...))
}

// DecodeTronAddress verifies the Base58Check envelope and version byte and
// returns the 20-byte account hash.
func DecodeTronAddress(address string) ([]byte, error) {
	raw, err := base58.Decode(address)
	if err != nil {
		return nil, fmt.Errorf("base58 decode: %w: %w", ErrAddressFormatMismatch, err)
	}
	if len(raw) != 1+config.AddressHashLen+config.TronChecksumLen {
		return nil, fmt.Errorf("tron address length %d: %w", len(raw), ErrAddressFormatMismatch)
	}

	payload, checksum := raw[:len(raw)-config.TronChecksumLen], raw[len(raw)-config.TronChecksumLen:]
	if !bytes.Equal(chainhash.DoubleHashB(payload)[:config.TronChecksumLen], checksum) {
		return nil, fmt.Errorf("tron address checksum: %w", ErrAddressFormatMismatch)
	}
	if payload[0] != config.TronAddressPrefix {
		return nil, fmt.Errorf("tron version byte 0x%02x: %w", payload[0], ErrAddressFormatMismatch)
	}
	return append([]byte(nil), payload[1:]...), nil
}
