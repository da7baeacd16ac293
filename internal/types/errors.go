package types

import "github.com/pkg/errors"

var (
	ErrAccountNotFound             = errors.New("account not found")
	ErrDuplicateAccountName        = errors.New("account name already in use")
	ErrRequestNotFound             = errors.New("request not found")
	ErrInvalidRequestID            = errors.New("request id is required")
	ErrDuplicateRequestID          = errors.New("request id already pending")
	ErrWalletNotFound              = errors.New("wallet not found for address")
	ErrUnsupportedSigningMethod    = errors.New("unsupported signing method")
	ErrSignatureVerificationFailed = errors.New("signature verification failed")
	ErrBundlerNotConfigured        = errors.New("bundler url not configured for chain")
	ErrBundlerSubmissionFailed     = errors.New("bundler rejected user operation")
	ErrEntropyUnavailable          = errors.New("entropy source unavailable")
	ErrInsufficientFunds           = errors.New("insufficient funds")
	ErrInsufficientDeposit         = errors.New("insufficient entry point deposit")
	ErrInvalidParams               = errors.New("invalid params")
)
