package vault

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

var (
	ErrPaused              = errors.New("vault: paused")
	ErrZeroAmount          = errors.New("vault: zero amount")
	ErrZeroAsset           = errors.New("vault: zero asset address")
	ErrUnknownAsset        = errors.New("vault: no price feed registered for asset")
	ErrNonPositivePrice    = errors.New("vault: oracle reported non-positive price")
	ErrStalePrice          = errors.New("vault: oracle price is stale")
	ErrInsufficientBalance = errors.New("vault: insufficient balance")
	ErrGlobalCapExceeded   = errors.New("vault: global value cap exceeded")
	ErrWithdrawCapExceeded = errors.New("vault: per-withdrawal cap exceeded")
	ErrReentrantCall       = errors.New("vault: reentrant call")
	ErrTransferFailed      = errors.New("vault: asset transfer failed")
	ErrAccessDenied        = errors.New("vault: access denied")
	ErrValueOverflow       = errors.New("vault: usd6 value overflows")
)

// GlobalCapError reports the would-be global total against the configured cap.
type GlobalCapError struct {
	NewTotal *uint256.Int
	Cap      *uint256.Int
}

func (e *GlobalCapError) Error() string {
	return fmt.Sprintf("vault: global value cap exceeded: total %s > cap %s", e.NewTotal, e.Cap)
}

func (e *GlobalCapError) Unwrap() error { return ErrGlobalCapExceeded }

// WithdrawCapError reports a single withdrawal's value against the per-call cap.
type WithdrawCapError struct {
	Value *uint256.Int
	Cap   *uint256.Int
}

func (e *WithdrawCapError) Error() string {
	return fmt.Sprintf("vault: per-withdrawal cap exceeded: value %s > cap %s", e.Value, e.Cap)
}

func (e *WithdrawCapError) Unwrap() error { return ErrWithdrawCapExceeded }
