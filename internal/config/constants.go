package config

import "time"

// Mnemonic
const (
	MnemonicEntropyBits     = 128 // 12 words
	MnemonicEntropyBitsLong = 256 // 24 words
	MnemonicWords           = 12
	MnemonicWordsLong       = 24
)

// BIP-44 / BIP-84 Derivation Paths
const (
	BIP44Purpose = 44
	BIP84Purpose = 84
	BTCCoinType  = 0   // m/84'/0'/0'/0/N
	ETHCoinType  = 60  // m/44'/60'/0'/0/N (ERC-20 tokens share it)
	TRONCoinType = 195 // m/44'/195'/0'/0/N (TRC-20 tokens share it)
)

// Address Encoding
const (
	TronAddressPrefix   = 0x41
	TronChecksumLen     = 4
	BTCWitnessVersion   = 0
	BTCBech32HRP        = "bc"
	AddressHashLen      = 20
	MaxGenerateRange    = 100_000
	GenerateProgressMod = 10_000
)

// Index Ledger
const (
	LedgerMaxRetries   = 5
	LedgerRetryBackoff = 50 * time.Millisecond
)

// Keystore
const (
	MinKeystorePassphraseLen = 12
)

// Server
const (
	ServerReadTimeout    = 30 * time.Second
	ServerWriteTimeout   = 60 * time.Second
	ServerIdleTimeout    = 120 * time.Second
	ServerMaxHeaderBytes = 1 << 20
	ShutdownTimeout      = 15 * time.Second
	APITimeout           = 30 * time.Second
)

// Pagination
const (
	DefaultPage     = 1
	DefaultPageSize = 100
	MaxPageSize     = 1000
)

// Logging
const (
	LogFilePrefix = "hdwallet-"
	LogMaxAgeDays = 30
)

// Database
const (
	DBBusyTimeout = 5000 // milliseconds
)
