package sale

import (
	"strconv"

	"crowdsale/core/events"
	"crowdsale/core/types"
)

const (
	// EventTypeTokensPurchased is emitted when a purchase commits.
	EventTypeTokensPurchased = "sale.tokens.purchased"
	// EventTypeTokensLocked is emitted when part of a purchase enters the lockup.
	EventTypeTokensLocked = "sale.tokens.locked"
	// EventTypeTokensUnlocked is emitted when a lockup is released.
	EventTypeTokensUnlocked = "sale.tokens.unlocked"
	// EventTypeTokensReleased is emitted when vested tokens are released.
	EventTypeTokensReleased = "sale.tokens.released"
	// EventTypeDistributionClaimed is emitted when a staged tranche is claimed.
	EventTypeDistributionClaimed = "sale.distribution.claimed"
	// EventTypeReferralBonusAccrued is emitted when a referrer earns a bonus.
	EventTypeReferralBonusAccrued = "sale.referral.accrued"
	// EventTypeReferralBonusClaimed is emitted when a referrer claims their bonus.
	EventTypeReferralBonusClaimed = "sale.referral.claimed"
	// EventTypeRefundClaimed is emitted when a participant reclaims their payment.
	EventTypeRefundClaimed = "sale.refund.claimed"
	// EventTypeTierAdded is emitted when the owner appends a tier.
	EventTypeTierAdded = "sale.tier.added"
	// EventTypeTierAdvanced is emitted when the sale moves to the next tier.
	EventTypeTierAdvanced = "sale.tier.advanced"
	// EventTypeSaleStatusUpdated is emitted when an owner flag changes.
	EventTypeSaleStatusUpdated = "sale.status.updated"
	// EventTypeWhitelistUpdated is emitted when the whitelist changes.
	EventTypeWhitelistUpdated = "sale.whitelist.updated"
	// EventTypeFundsWithdrawn is emitted when the owner withdraws the raise.
	EventTypeFundsWithdrawn = "sale.funds.withdrawn"
)

type eventEnvelope struct {
	evt *types.Event
}

func (e eventEnvelope) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e eventEnvelope) Event() *types.Event { return e.evt }

// WrapEvent converts a raw event payload into the emitter-friendly envelope.
func WrapEvent(evt *types.Event) events.Event { return eventEnvelope{evt: evt} }

// TokensPurchasedEvent captures a committed purchase.
func TokensPurchasedEvent(buyer, amount, price, tokens string, tier uint32) *types.Event {
	return &types.Event{
		Type: EventTypeTokensPurchased,
		Attributes: map[string]string{
			"buyer":  buyer,
			"amount": amount,
			"price":  price,
			"tokens": tokens,
			"tier":   strconv.FormatUint(uint64(tier), 10),
		},
	}
}

// TokensLockedEvent captures the lockup share of a purchase.
func TokensLockedEvent(buyer, amount string, unlockTime int64) *types.Event {
	return &types.Event{
		Type: EventTypeTokensLocked,
		Attributes: map[string]string{
			"buyer":      buyer,
			"amount":     amount,
			"unlockTime": strconv.FormatInt(unlockTime, 10),
		},
	}
}

// TokensUnlockedEvent captures a released lockup.
func TokensUnlockedEvent(buyer, amount string) *types.Event {
	return &types.Event{
		Type: EventTypeTokensUnlocked,
		Attributes: map[string]string{
			"buyer":  buyer,
			"amount": amount,
		},
	}
}

// TokensReleasedEvent captures a vesting release.
func TokensReleasedEvent(buyer, amount, totalReleased string) *types.Event {
	return &types.Event{
		Type: EventTypeTokensReleased,
		Attributes: map[string]string{
			"buyer":         buyer,
			"amount":        amount,
			"totalReleased": totalReleased,
		},
	}
}

// DistributionClaimedEvent captures a claimed staged tranche.
func DistributionClaimedEvent(buyer string, index int, amount string) *types.Event {
	return &types.Event{
		Type: EventTypeDistributionClaimed,
		Attributes: map[string]string{
			"buyer":  buyer,
			"index":  strconv.Itoa(index),
			"amount": amount,
		},
	}
}

// ReferralBonusAccruedEvent captures a referral accrual during a purchase.
func ReferralBonusAccruedEvent(referrer, buyer, amount string) *types.Event {
	return &types.Event{
		Type: EventTypeReferralBonusAccrued,
		Attributes: map[string]string{
			"referrer": referrer,
			"buyer":    buyer,
			"amount":   amount,
		},
	}
}

// ReferralBonusClaimedEvent captures a claimed referral bonus.
func ReferralBonusClaimedEvent(referrer, amount string) *types.Event {
	return &types.Event{
		Type: EventTypeReferralBonusClaimed,
		Attributes: map[string]string{
			"referrer": referrer,
			"amount":   amount,
		},
	}
}

// RefundClaimedEvent captures a soft-cap refund.
func RefundClaimedEvent(participant, amount string) *types.Event {
	return &types.Event{
		Type: EventTypeRefundClaimed,
		Attributes: map[string]string{
			"participant": participant,
			"amount":      amount,
		},
	}
}

// TierAddedEvent captures an appended tier definition.
func TierAddedEvent(index uint32, price, maxTokens string, start, end int64) *types.Event {
	return &types.Event{
		Type: EventTypeTierAdded,
		Attributes: map[string]string{
			"index":     strconv.FormatUint(uint64(index), 10),
			"price":     price,
			"maxTokens": maxTokens,
			"startTime": strconv.FormatInt(start, 10),
			"endTime":   strconv.FormatInt(end, 10),
		},
	}
}

// TierAdvancedEvent captures the sale moving to the next tier.
func TierAdvancedEvent(index uint32) *types.Event {
	return &types.Event{
		Type: EventTypeTierAdvanced,
		Attributes: map[string]string{
			"index": strconv.FormatUint(uint64(index), 10),
		},
	}
}

// SaleStatusUpdatedEvent captures an owner flag change.
func SaleStatusUpdatedEvent(flag string, value bool) *types.Event {
	return &types.Event{
		Type: EventTypeSaleStatusUpdated,
		Attributes: map[string]string{
			"flag":  flag,
			"value": strconv.FormatBool(value),
		},
	}
}

// WhitelistUpdatedEvent captures a whitelist batch update.
func WhitelistUpdatedEvent(count int, allowed bool) *types.Event {
	return &types.Event{
		Type: EventTypeWhitelistUpdated,
		Attributes: map[string]string{
			"count":   strconv.Itoa(count),
			"allowed": strconv.FormatBool(allowed),
		},
	}
}

// FundsWithdrawnEvent captures an owner withdrawal of the raise.
func FundsWithdrawnEvent(owner, amount string) *types.Event {
	return &types.Event{
		Type: EventTypeFundsWithdrawn,
		Attributes: map[string]string{
			"owner":  owner,
			"amount": amount,
		},
	}
}
