package ledger

import "errors"

var (
	// ErrInvalidParameters is returned for out-of-range creation parameters,
	// unknown statuses and operations on a vault without capital.
	ErrInvalidParameters = errors.New("ledger: invalid parameters")

	// ErrVaultNotActive is returned for deposits and trade results on a
	// paused vault.
	ErrVaultNotActive = errors.New("ledger: vault is not active")

	// ErrVaultClosed is returned for deposits and trade results on a closed
	// vault.
	ErrVaultClosed = errors.New("ledger: vault is closed")

	// ErrBelowMinimumDeposit is returned when a deposit is smaller than the
	// vault's minimum.
	ErrBelowMinimumDeposit = errors.New("ledger: amount below minimum deposit")

	// ErrZeroSharesMinted is returned when a deposit is too small to mint a
	// single share unit at the current NAV-per-share.
	ErrZeroSharesMinted = errors.New("ledger: deposit would mint zero shares")

	// ErrInsufficientShares is returned when a withdrawal asks for zero shares
	// or more shares than the investor holds.
	ErrInsufficientShares = errors.New("ledger: insufficient shares")

	// ErrUnauthorized is returned when a manager-only operation is invoked by
	// another identity.
	ErrUnauthorized = errors.New("ledger: caller is not the vault manager")

	// ErrInvalidTransition is returned for status changes the state machine
	// does not allow.
	ErrInvalidTransition = errors.New("ledger: invalid status transition")

	// ErrNothingToCollect is returned when both fees are zero and the
	// collection was not forced.
	ErrNothingToCollect = errors.New("ledger: no fees to collect")

	// ErrNavDepleted is returned for deposits into a vault whose NAV was
	// floored to zero while shares are still outstanding.
	ErrNavDepleted = errors.New("ledger: vault NAV is depleted")
)
