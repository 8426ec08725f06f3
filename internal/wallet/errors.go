package wallet

import "errors"

// Every derivation failure wraps exactly one of these. None of them is retryable:
// callers must surface the error instead of substituting another address.
var (
	ErrInvalidMnemonic       = errors.New("invalid mnemonic")
	ErrUnsupportedAsset      = errors.New("unsupported asset")
	ErrDerivation            = errors.New("key derivation failed")
	ErrEncoding              = errors.New("address encoding failed")
	ErrAddressFormatMismatch = errors.New("address format mismatch")
)
