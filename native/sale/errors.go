package sale

import "errors"

// Admission errors are rejected before any state mutation.
var (
	ErrSaleInactive   = errors.New("sale: sale not active")
	ErrNotWhitelisted = errors.New("sale: participant not whitelisted")
	ErrOutOfRange     = errors.New("sale: amount outside investment range")
	ErrCooldownActive = errors.New("sale: cooldown active")
)

// Capacity errors are rejected atomically with no partial allocation.
var (
	ErrHardCapExceeded   = errors.New("sale: hard cap exceeded")
	ErrTierCapExceeded   = errors.New("sale: tier cap exceeded")
	ErrIncorrectPayment  = errors.New("sale: payment does not match token cost")
	ErrNoActiveTier      = errors.New("sale: no active tier")
	ErrInsufficientFunds = errors.New("sale: insufficient payment balance")
	ErrVaultUnderfunded  = errors.New("sale: token vault underfunded")
)

// Timing errors depend only on the clock; retrying later can succeed.
var (
	ErrCliffNotOver              = errors.New("sale: vesting cliff not over")
	ErrLockupNotOver             = errors.New("sale: lockup not over")
	ErrCurrentTierNotEnded       = errors.New("sale: current tier not ended")
	ErrDistributionNotReleasable = errors.New("sale: distribution not yet releasable")
	ErrRefundNotAvailable        = errors.New("sale: refund not available")
)

// State errors are permanent for the record in question.
var (
	ErrAlreadyClaimed     = errors.New("sale: distribution already claimed")
	ErrAlreadyRefunded    = errors.New("sale: already refunded")
	ErrNothingLocked      = errors.New("sale: nothing locked")
	ErrNothingAccrued     = errors.New("sale: no referral bonus accrued")
	ErrNothingInvested    = errors.New("sale: nothing invested")
	ErrSelfReferral       = errors.New("sale: self referral not allowed")
	ErrReferrerAlreadySet = errors.New("sale: referrer already set")
	ErrSoftCapReached     = errors.New("sale: soft cap reached, refunds disabled")
)

// Engine wiring and authorisation errors.
var (
	ErrNilState             = errors.New("sale: state not configured")
	ErrNilParams            = errors.New("sale: params not configured")
	ErrUnauthorized         = errors.New("sale: unauthorized")
	ErrInvalidAmount        = errors.New("sale: amount must be positive")
	ErrInvalidTier          = errors.New("sale: invalid tier definition")
	ErrTierOverlap          = errors.New("sale: tier windows must not overlap")
	ErrNoMoreTiers          = errors.New("sale: no further tier to advance to")
	ErrTierNotFound         = errors.New("sale: tier not found")
	ErrDistributionNotFound = errors.New("sale: distribution not found")
	ErrSaleFinalized        = errors.New("sale: sale finalized")
	ErrWrongPolicy          = errors.New("sale: operation not supported by release policy")
)
