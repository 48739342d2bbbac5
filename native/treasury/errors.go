package treasury

import "errors"

var (
	// ErrUnauthorized is returned when the caller fails the role check for an
	// operation.
	ErrUnauthorized = errors.New("treasury: caller not authorized")
	// ErrZeroAddress is returned when a null address is supplied where a real
	// principal or token is required.
	ErrZeroAddress = errors.New("treasury: zero address")
	// ErrNoOp is returned when a role update would assign the identical
	// current value.
	ErrNoOp = errors.New("treasury: redundant update")
	// ErrNotAKeeper is returned when removing an address that is not in the
	// keeper set.
	ErrNotAKeeper = errors.New("treasury: not a keeper")
	// ErrTokenNotSupported is returned when an operation references a token
	// absent from the whitelist.
	ErrTokenNotSupported = errors.New("treasury: token not supported")
	// ErrAlreadyWhitelisted is returned when adding a token or wrapped token
	// that is already registered.
	ErrAlreadyWhitelisted = errors.New("treasury: already whitelisted")
	// ErrNotWhitelisted is returned when removing a token that is not
	// registered.
	ErrNotWhitelisted = errors.New("treasury: not whitelisted")
	// ErrStablecoinCollateral is returned when whitelisting would register the
	// backed stablecoin itself on either side of a collateral mapping.
	ErrStablecoinCollateral = errors.New("treasury: stablecoin cannot be collateral")
	// ErrLengthMismatch is returned when batch arguments differ in length.
	ErrLengthMismatch = errors.New("treasury: length mismatch")
	// ErrInsufficientWithdrawable is returned when a withdrawal exceeds the
	// redeemable amount for the token.
	ErrInsufficientWithdrawable = errors.New("treasury: insufficient withdrawable")
	// ErrSweepNotAllowed is returned when sweeping a whitelisted token or a
	// wrapped token currently backing debt.
	ErrSweepNotAllowed = errors.New("treasury: sweep not allowed")
	// ErrZeroAmount is returned when an amount argument must be positive.
	ErrZeroAmount = errors.New("treasury: amount must be positive")
	// ErrStablecoinMismatch is returned when migrating to a successor that is
	// configured for a different stablecoin.
	ErrStablecoinMismatch = errors.New("treasury: stablecoin mismatch")
	// ErrSlippageExceeded is returned when the swap venue would deliver less
	// than the caller-supplied minimum output.
	ErrSlippageExceeded = errors.New("treasury: slippage exceeded")
	// ErrSwapFailed is returned when the swap venue rejects a conversion for
	// reasons other than slippage.
	ErrSwapFailed = errors.New("treasury: swap failed")
	// ErrWithdrawalFailed is returned when the yield market cannot satisfy a
	// redemption. The treasury never retries; callers decide.
	ErrWithdrawalFailed = errors.New("treasury: withdrawal failed")
	// ErrMigrationFailed is returned when moving positions to a successor
	// aborts. State partially moved by an underlying transfer fault is a
	// manual-recovery condition.
	ErrMigrationFailed = errors.New("treasury: migration failed")
	// ErrPositionsOutstanding is returned when delisting a token whose
	// wrapped balance is still held by custody.
	ErrPositionsOutstanding = errors.New("treasury: wrapped balance outstanding")

	errStateNotConfigured = errors.New("treasury: state not configured")
)
