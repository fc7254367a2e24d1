package loyalty

import "errors"

// Business-rule errors returned to callers. These are terminal: the
// caller should fix the request rather than retry. Storage failures are
// wrapped with fmt.Errorf and may be retried; the idempotency keys make
// retries safe.
var (
	ErrInvalidOrderTotal   = errors.New("order total must be positive")
	ErrInvalidOrderID      = errors.New("order id is required")
	ErrInvalidPointsAmount = errors.New("points amount must be positive")
	ErrInvalidAdjustment   = errors.New("adjustment amount must be non-zero")

	ErrInvalidReferralCode    = errors.New("referral code is invalid")
	ErrSelfReferral           = errors.New("cannot redeem your own referral code")
	ErrReferralAlreadyClaimed = errors.New("a referral has already been redeemed for this account")
	ErrReferralCodeNotFound   = errors.New("referral code not found")

	ErrAccountNotFound    = errors.New("loyalty account not found")
	ErrInsufficientPoints = errors.New("insufficient points balance")
	ErrExceedsSpendCap    = errors.New("requested points exceed the order spend cap")

	ErrProgramDisabled = errors.New("loyalty program is disabled")
	ErrAccountDisabled = errors.New("loyalty account is disabled")

	// ErrCodeGenerationExhausted is returned when every referral code
	// candidate collided; the caller may retry the whole operation.
	ErrCodeGenerationExhausted = errors.New("could not generate a unique referral code")

	// ErrDuplicateTransaction signals that the storage layer rejected a
	// ledger insert on an idempotency key. Callers treat this as "some
	// other invocation already did the work" and read back the winner's
	// state instead of surfacing an error.
	ErrDuplicateTransaction = errors.New("transaction already recorded")
)
