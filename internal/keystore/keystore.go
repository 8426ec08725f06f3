// Package keystore encrypts mnemonics at rest with a passphrase-derived key
// (scrypt) and AES-256-GCM.
package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/scrypt"
)

const (
	// Version is the envelope format version written by Seal.
	Version = 1

	cipherName = "aes-256-gcm"
	kdfName    = "scrypt"
	saltLen    = 32
	keyLen     = 32
)

var (
	ErrEmptyPassphrase   = errors.New("keystore passphrase is empty")
	ErrDecrypt           = errors.New("keystore decryption failed")
	ErrUnsupportedFormat = errors.New("unsupported keystore format")
)

// Params are the scrypt cost parameters.
type Params struct {
	N int `json:"n"`
	R int `json:"r"`
	P int `json:"p"`
}

// DefaultParams is used for stored mnemonics.
var DefaultParams = Params{N: 1 << 15, R: 8, P: 1}

// LightParams trades strength for speed. Tests only.
var LightParams = Params{N: 1 << 12, R: 8, P: 1}

// Envelope is the JSON document stored in place of a plaintext mnemonic.
type Envelope struct {
	Version int    `json:"version"`
	ID      string `json:"id"`
	Crypto  struct {
		Cipher     string `json:"cipher"`
		Ciphertext string `json:"ciphertext"`
		Nonce      string `json:"nonce"`
		KDF        string `json:"kdf"`
		KDFParams  struct {
			Params
			DKLen int    `json:"dklen"`
			Salt  string `json:"salt"`
		} `json:"kdfparams"`
	} `json:"crypto"`
}

// Keystore seals and opens secrets under one passphrase.
type Keystore struct {
	passphrase []byte
	params     Params
}

// New returns a keystore for passphrase using params.
func New(passphrase string, params Params) (*Keystore, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}
	return &Keystore{passphrase: []byte(passphrase), params: params}, nil
}

// Seal encrypts secret and returns the JSON envelope. The envelope ID is bound
// to the ciphertext as additional data, so envelopes cannot be spliced.
func (k *Keystore) Seal(secret []byte) ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	derived, err := scrypt.Key(k.passphrase, salt, k.params.N, k.params.R, k.params.P, keyLen)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	defer clear(derived)

	aead, err := newGCM(derived)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	env := Envelope{Version: Version, ID: uuid.NewString()}
	ciphertext := aead.Seal(nil, nonce, secret, []byte(env.ID))

	env.Crypto.Cipher = cipherName
	env.Crypto.Ciphertext = hex.EncodeToString(ciphertext)
	env.Crypto.Nonce = hex.EncodeToString(nonce)
	env.Crypto.KDF = kdfName
	env.Crypto.KDFParams.Params = k.params
	env.Crypto.KDFParams.DKLen = keyLen
	env.Crypto.KDFParams.Salt = hex.EncodeToString(salt)

	out, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return out, nil
}

// Open decrypts an envelope produced by Seal. The KDF parameters are read
// from the envelope, so envelopes sealed with other params still open.
func (k *Keystore) Open(data []byte) ([]byte, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w: %w", ErrUnsupportedFormat, err)
	}
	if env.Version != Version || env.Crypto.Cipher != cipherName || env.Crypto.KDF != kdfName {
		return nil, fmt.Errorf("version %d cipher %q kdf %q: %w",
			env.Version, env.Crypto.Cipher, env.Crypto.KDF, ErrUnsupportedFormat)
	}
	if env.Crypto.KDFParams.DKLen != keyLen {
		return nil, fmt.Errorf("dklen %d: %w", env.Crypto.KDFParams.DKLen, ErrUnsupportedFormat)
	}

	salt, err := hex.DecodeString(env.Crypto.KDFParams.Salt)
	if err != nil {
		return nil, fmt.Errorf("decode salt: %w: %w", ErrUnsupportedFormat, err)
	}
	nonce, err := hex.DecodeString(env.Crypto.Nonce)
	if err != nil {
		return nil, fmt.Errorf("decode nonce: %w: %w", ErrUnsupportedFormat, err)
	}
	ciphertext, err := hex.DecodeString(env.Crypto.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w: %w", ErrUnsupportedFormat, err)
	}

	p := env.Crypto.KDFParams.Params
	derived, err := scrypt.Key(k.passphrase, salt, p.N, p.R, p.P, keyLen)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w: %w", ErrUnsupportedFormat, err)
	}
	defer clear(derived)

	aead, err := newGCM(derived)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("nonce length %d: %w", len(nonce), ErrUnsupportedFormat)
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, []byte(env.ID))
	if err != nil {
		// Wrong passphrase and tampering are indistinguishable here.
		return nil, ErrDecrypt
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return aead, nil
}
