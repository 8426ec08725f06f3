package wallet

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/tyler-smith/go-bip39"

	"github.com/Fantasim/hdwallet/internal/config"
)

// GenerateMnemonic returns a fresh BIP-39 English mnemonic.
// strengthBits must be 128 (12 words) or 256 (24 words).
func GenerateMnemonic(strengthBits int) (string, error) {
	if strengthBits != config.MnemonicEntropyBits && strengthBits != config.MnemonicEntropyBitsLong {
		return "", fmt.Errorf("generate mnemonic: entropy must be %d or %d bits, got %d",
			config.MnemonicEntropyBits, config.MnemonicEntropyBitsLong, strengthBits)
	}

	entropy, err := bip39.NewEntropy(strengthBits)
	if err != nil {
		return "", fmt.Errorf("generate entropy: %w", err)
	}
	defer clear(entropy)

	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("encode mnemonic: %w", err)
	}

	slog.Debug("mnemonic generated", "entropyBits", strengthBits)
	return mnemonic, nil
}

// NormalizeMnemonic lower-cases the phrase and collapses all whitespace to single spaces.
func NormalizeMnemonic(mnemonic string) string {
	return strings.Join(strings.Fields(strings.ToLower(mnemonic)), " ")
}

// ValidateMnemonic validates a BIP-39 mnemonic phrase (12 or 24 words).
func ValidateMnemonic(mnemonic string) error {
	normalized := NormalizeMnemonic(mnemonic)
	words := strings.Fields(normalized)

	if len(words) != config.MnemonicWords && len(words) != config.MnemonicWordsLong {
		return fmt.Errorf("expected %d or %d words, got %d: %w",
			config.MnemonicWords, config.MnemonicWordsLong, len(words), ErrInvalidMnemonic)
	}

	// Never echo the phrase or individual words back in the error.
	if !bip39.IsMnemonicValid(normalized) {
		return fmt.Errorf("validate mnemonic: unknown word or bad checksum: %w", ErrInvalidMnemonic)
	}

	slog.Debug("mnemonic validated", "wordCount", len(words))
	return nil
}

// IsMnemonicValid reports whether mnemonic passes ValidateMnemonic.
func IsMnemonicValid(mnemonic string) bool {
	return ValidateMnemonic(mnemonic) == nil
}

// MnemonicToSeed converts a BIP-39 mnemonic to a 64-byte seed (empty passphrase).
// The caller owns the returned slice and should clear it once the master key is built.
func MnemonicToSeed(mnemonic string) ([]byte, error) {
	if err := ValidateMnemonic(mnemonic); err != nil {
		return nil, err
	}

	seed, err := bip39.NewSeedWithErrorChecking(NormalizeMnemonic(mnemonic), "")
	if err != nil {
		return nil, fmt.Errorf("mnemonic to seed: %w", ErrInvalidMnemonic)
	}

	slog.Debug("seed derived from mnemonic", "seedLen", len(seed))
	return seed, nil
}

// ReadMnemonicFromFile reads a mnemonic from a file, trims whitespace, and validates it.
func ReadMnemonicFromFile(path string) (string, error) {
	slog.Info("reading mnemonic from file", "path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read mnemonic file %q: %w", path, err)
	}
	defer clear(data)

	mnemonic := NormalizeMnemonic(string(data))
	if mnemonic == "" {
		return "", fmt.Errorf("mnemonic file %q is empty: %w", path, ErrInvalidMnemonic)
	}

	if err := ValidateMnemonic(mnemonic); err != nil {
		return "", fmt.Errorf("mnemonic file %q: %w", path, err)
	}

	slog.Info("mnemonic read and validated from file")
	return mnemonic, nil
}
