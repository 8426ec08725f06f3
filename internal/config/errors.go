package config

import (
	"errors"
	"time"
)

// Sentinel errors for internal use.
var (
	ErrInvalidConfig            = errors.New("invalid configuration")
	ErrMnemonicFileNotSet       = errors.New("mnemonic file path not configured")
	ErrKeystorePassphraseNotSet = errors.New("keystore passphrase not configured")
)

// TransientError wraps an error that should be retried.
type TransientError struct {
	Err        error
	RetryAfter time.Duration // 0 = use default backoff
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// NewTransientError wraps an error as transient (retriable).
func NewTransientError(err error) error {
	return &TransientError{Err: err}
}

// NewTransientErrorWithRetry wraps with explicit retry delay.
func NewTransientErrorWithRetry(err error, retryAfter time.Duration) error {
	return &TransientError{Err: err, RetryAfter: retryAfter}
}

// IsTransient returns true if the error is transient (retriable).
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// GetRetryAfter returns the retry delay if set, or 0.
func GetRetryAfter(err error) time.Duration {
	var te *TransientError
	if errors.As(err, &te) {
		return te.RetryAfter
	}
	return 0
}

// Error codes returned to API callers.
const (
	ErrorInvalidMnemonic       = "ERROR_INVALID_MNEMONIC"
	ErrorUnsupportedAsset      = "ERROR_UNSUPPORTED_ASSET"
	ErrorDerivationFailure     = "ERROR_DERIVATION_FAILURE"
	ErrorEncodingFailure       = "ERROR_ENCODING_FAILURE"
	ErrorAddressFormatMismatch = "ERROR_ADDRESS_FORMAT_MISMATCH"
	ErrorAddressConflict       = "ERROR_ADDRESS_CONFLICT"
	ErrorWalletNotInitialized  = "ERROR_WALLET_NOT_INITIALIZED"
	ErrorInvalidUserID         = "ERROR_INVALID_USER_ID"
	ErrorInvalidAddress        = "ERROR_INVALID_ADDRESS"
	ErrorDatabase              = "ERROR_DATABASE"
	ErrorRateLimited           = "ERROR_RATE_LIMITED"
	ErrorIPNotAllowed          = "ERROR_IP_NOT_ALLOWED"
	ErrorInternal              = "ERROR_INTERNAL"
)
