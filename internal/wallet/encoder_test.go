package wallet

import (
	"bytes"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// childPublicKey derives the public key of testMnemonic12 at path.
func childPublicKey(t *testing.T, path string) *btcec.PublicKey {
	t.Helper()

	seed, err := MnemonicToSeed(testMnemonic12)
	if err != nil {
		t.Fatal(err)
	}
	master, err := MasterKeyFromSeed(seed)
	if err != nil {
		t.Fatal(err)
	}
	child, err := master.DeriveString(path)
	if err != nil {
		t.Fatal(err)
	}
	pub, err := child.PublicKey()
	if err != nil {
		t.Fatal(err)
	}
	return pub
}

func TestEncoderFor(t *testing.T) {
	for _, kind := range []EncoderKind{EncoderEthereum, EncoderBitcoin, EncoderTron} {
		enc, err := EncoderFor(kind)
		if err != nil {
			t.Fatalf("EncoderFor(%s) error = %v", kind, err)
		}
		if enc.Kind() != kind {
			t.Errorf("EncoderFor(%s).Kind() = %s", kind, enc.Kind())
		}
	}

	for _, kind := range []EncoderKind{0, 4, -1} {
		if _, err := EncoderFor(kind); !errors.Is(err, ErrUnsupportedAsset) {
			t.Errorf("EncoderFor(%d) error = %v, want ErrUnsupportedAsset", int(kind), err)
		}
	}
}

func TestEthereumEncoder_KnownVector(t *testing.T) {
	pub := childPublicKey(t, "m/44'/60'/0'/0/0")

	addr, err := ethereumEncoder{}.Encode(pub)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	const want = "0x9858effd232b4033e47d90003d41ec34ecaeda94"
	if addr != want {
		t.Errorf("Encode() = %s, want %s", addr, want)
	}
	if addr != strings.ToLower(addr) {
		t.Error("Encode() applied mixed-case checksum")
	}

	// Same bytes go-ethereum derives from the key.
	if geth := strings.ToLower(crypto.PubkeyToAddress(*pub.ToECDSA()).Hex()); geth != addr {
		t.Errorf("go-ethereum address = %s, want %s", geth, addr)
	}
}

func TestBitcoinEncoder_KnownVector(t *testing.T) {
	// BIP-84 reference vector.
	pub := childPublicKey(t, "m/84'/0'/0'/0/0")

	addr, err := bitcoinEncoder{}.Encode(pub)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	const want = "bc1qcr8te4kr609gcawutmrza0j4xv80jy8z306fyu"
	if addr != want {
		t.Errorf("Encode() = %s, want %s", addr, want)
	}
}

func TestBitcoinEncoder_RoundTrip(t *testing.T) {
	for _, path := range []string{"m/84'/0'/0'/0/0", "m/84'/0'/0'/0/1", "m/84'/0'/0'/0/77"} {
		pub := childPublicKey(t, path)

		addr, err := bitcoinEncoder{}.Encode(pub)
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
		prog, err := DecodeBitcoinWitnessProgram(addr)
		if err != nil {
			t.Fatalf("DecodeBitcoinWitnessProgram(%s) error = %v", addr, err)
		}
		if want := btcutil.Hash160(pub.SerializeCompressed()); !bytes.Equal(prog, want) {
			t.Errorf("%s: witness program = %x, want %x", path, prog, want)
		}
	}
}

func TestDecodeBitcoinWitnessProgram_Invalid(t *testing.T) {
	for _, addr := range []string{
		"",
		"bc1qcr8te4kr609gcawutmrza0j4xv80jy8z306fyv", // bad checksum
		"tb1qw508d6qejxtdg4y5r3zarvary0c5xw7kxpjzsx", // testnet HRP
		"1BvBMSEYstWetqTFn5Au4m4GFg7xJaNVN2",         // legacy base58
	} {
		if _, err := DecodeBitcoinWitnessProgram(addr); !errors.Is(err, ErrAddressFormatMismatch) {
			t.Errorf("DecodeBitcoinWitnessProgram(%q) error = %v, want ErrAddressFormatMismatch", addr, err)
		}
	}
}

func TestTronEncoder_RoundTrip(t *testing.T) {
	for _, path := range []string{"m/44'/195'/0'/0/0", "m/44'/195'/0'/0/1", "m/44'/195'/0'/0/250"} {
		pub := childPublicKey(t, path)

		addr, err := tronEncoder{}.Encode(pub)
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
		if !strings.HasPrefix(addr, "T") || len(addr) != 34 {
			t.Errorf("%s: Encode() = %s, want 34 chars starting with T", path, addr)
		}

		hash, err := DecodeTronAddress(addr)
		if err != nil {
			t.Fatalf("DecodeTronAddress(%s) error = %v", addr, err)
		}
		want := crypto.PubkeyToAddress(*pub.ToECDSA()).Bytes()
		if !bytes.Equal(hash, want) {
			t.Errorf("%s: decoded hash = %x, want %x", path, hash, want)
		}
	}
}

func TestTronAndEthereumShareAccountHash(t *testing.T) {
	pub := childPublicKey(t, "m/44'/60'/0'/0/0")

	eth, err := ethereumEncoder{}.Encode(pub)
	if err != nil {
		t.Fatal(err)
	}
	trx, err := tronEncoder{}.Encode(pub)
	if err != nil {
		t.Fatal(err)
	}

	hash, err := DecodeTronAddress(trx)
	if err != nil {
		t.Fatal(err)
	}
	if "0x"+hex.EncodeToString(hash) != eth {
		t.Errorf("tron payload %x does not match ethereum address %s", hash, eth)
	}
}

func TestDecodeTronAddress_Invalid(t *testing.T) {
	valid := encodeTronPayload(bytes.Repeat([]byte{0xab}, 20))

	// Flip the last character to break the checksum.
	last := valid[len(valid)-1]
	repl := byte('2')
	if last == repl {
		repl = '3'
	}
	broken := valid[:len(valid)-1] + string(repl)

	for _, addr := range []string{"", "T", "0OIl", broken, valid[:len(valid)-2]} {
		if _, err := DecodeTronAddress(addr); !errors.Is(err, ErrAddressFormatMismatch) {
			t.Errorf("DecodeTronAddress(%q) error = %v, want ErrAddressFormatMismatch", addr, err)
		}
	}

	if _, err := DecodeTronAddress(valid); err != nil {
		t.Errorf("DecodeTronAddress(valid) error = %v", err)
	}
}

func TestTronEncoding_LeadingZeroHash(t *testing.T) {
	// The version byte keeps the payload from starting with zero, so the
	// encoding must still be 34 characters for an all-zero hash.
	addr := encodeTronPayload(make([]byte, 20))
	if len(addr) != 34 || addr[0] != 'T' {
		t.Errorf("encodeTronPayload(zero) = %s", addr)
	}
	hash, err := DecodeTronAddress(addr)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(hash, make([]byte, 20)) {
		t.Errorf("decoded = %x, want zeros", hash)
	}
}

func TestEncoders_RejectNilKey(t *testing.T) {
	for _, kind := range []EncoderKind{EncoderEthereum, EncoderBitcoin, EncoderTron} {
		enc, _ := EncoderFor(kind)
		if _, err := enc.Encode(nil); !errors.Is(err, ErrEncoding) {
			t.Errorf("%s Encode(nil) error = %v, want ErrEncoding", kind, err)
		}
	}
}

func TestEncodePublicKeyBytes(t *testing.T) {
	pub := childPublicKey(t, "m/44'/60'/0'/0/0")

	fromCompressed, err := EncodePublicKeyBytes(EncoderEthereum, pub.SerializeCompressed())
	if err != nil {
		t.Fatalf("EncodePublicKeyBytes(compressed) error = %v", err)
	}
	fromUncompressed, err := EncodePublicKeyBytes(EncoderEthereum, pub.SerializeUncompressed())
	if err != nil {
		t.Fatalf("EncodePublicKeyBytes(uncompressed) error = %v", err)
	}
	if fromCompressed != fromUncompressed {
		t.Errorf("compressed and uncompressed forms encode differently: %s vs %s", fromCompressed, fromUncompressed)
	}

	tests := []struct {
		name string
		raw  []byte
	}{
		{"empty", nil},
		{"wrong length", make([]byte, 32)},
		{"off curve", append([]byte{0x02}, bytes.Repeat([]byte{0xff}, 32)...)},
		{"uncompressed off curve", append([]byte{0x04}, bytes.Repeat([]byte{0xff}, 64)...)},
		{"uncompressed short", append([]byte{0x04}, make([]byte, 63)...)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := EncodePublicKeyBytes(EncoderBitcoin, tt.raw); !errors.Is(err, ErrEncoding) {
				t.Errorf("EncodePublicKeyBytes() error = %v, want ErrEncoding", err)
			}
		})
	}

	if _, err := EncodePublicKeyBytes(EncoderKind(99), pub.SerializeCompressed()); !errors.Is(err, ErrUnsupportedAsset) {
		t.Errorf("EncodePublicKeyBytes(unknown kind) error = %v, want ErrUnsupportedAsset", err)
	}
}
