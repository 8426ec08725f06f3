package wallet

import (
	"encoding/hex"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/Fantasim/hdwallet/internal/config"
)

type ethereumEncoder struct{}

func (ethereumEncoder) Kind() EncoderKind { return EncoderEthereum }

// Encode returns the lowercase 0x-prefixed address. EIP-55 casing is not applied.
func (ethereumEncoder) Encode(pub *btcec.PublicKey) (string, error) {
	hash, err := keccakAccountHash(pub)
	if err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(hash), nil
}

// keccakAccountHash is the last 20 bytes of Keccak-256 over the 64-byte X||Y
// public key. Ethereum and TRON both build their addresses from it.
func keccakAccountHash(pub *btcec.PublicKey) ([]byte, error) {
	if err := checkPublicKey(pub); err != nil {
		return nil, err
	}
	uncompressed := pub.SerializeUncompressed()
	digest := crypto.Keccak256(uncompressed[1:])
	return digest[len(digest)-config.AddressHashLen:], nil
}
