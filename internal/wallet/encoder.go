package wallet

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// EncoderKind is the closed set of address encodings. Adding a kind means
// adding a case to EncoderFor; everything else dispatches through it.
type EncoderKind int

const (
	EncoderEthereum EncoderKind = iota + 1
	EncoderBitcoin
	EncoderTron
)

func (k EncoderKind) String() string {
	switch k {
	case EncoderEthereum:
		return "ethereum"
	case EncoderBitcoin:
		return "bitcoin"
	case EncoderTron:
		return "tron"
	default:
		return fmt.Sprintf("EncoderKind(%d)", int(k))
	}
}

// Encoder turns a child public key into a chain address.
type Encoder interface {
	Kind() EncoderKind
	Encode(pub *btcec.PublicKey) (string, error)
}

// EncoderFor returns the encoder for kind. Unknown kinds are never defaulted.
func EncoderFor(kind EncoderKind) (Encoder, error) {
	switch kind {
	case EncoderEthereum:
		return ethereumEncoder{}, nil
	case EncoderBitcoin:
		return bitcoinEncoder{}, nil
	case EncoderTron:
		return tronEncoder{}, nil
	default:
		return nil, fmt.Errorf("encoder kind %s: %w", kind, ErrUnsupportedAsset)
	}
}

// EncodePublicKeyBytes parses a compressed (33 byte) or uncompressed (65 byte)
// secp256k1 key and encodes it with kind.
func EncodePublicKeyBytes(kind EncoderKind, raw []byte) (string, error) {
	enc, err := EncoderFor(kind)
	if err != nil {
		return "", err
	}

	if len(raw) != btcec.PubKeyBytesLenCompressed && len(raw) != secp256k1.PubKeyBytesLenUncompressed {
		return "", fmt.Errorf("public key length %d: %w", len(raw), ErrEncoding)
	}
	pub, err := btcec.ParsePubKey(raw)
	if err != nil {
		return "", fmt.Errorf("parse public key: %w: %w", ErrEncoding, err)
	}
	return enc.Encode(pub)
}

func checkPublicKey(pub *btcec.PublicKey) error {
	if pub == nil {
		return fmt.Errorf("nil public key: %w", ErrEncoding)
	}
	if !pub.IsOnCurve() {
		return fmt.Errorf("public key not on curve: %w", ErrEncoding)
	}
	return nil
}
