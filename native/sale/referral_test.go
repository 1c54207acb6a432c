package sale

import (
	"errors"
	"testing"
)

func TestSetReferrerOnce(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(t, state, testParams())

	buyer := addr(0x40)
	referrer := addr(0x41)
	if err := engine.SetReferrer(buyer, buyer); !errors.Is(err, ErrSelfReferral) {
		t.Fatalf("expected self referral rejection, got %v", err)
	}
	if err := engine.SetReferrer(buyer, referrer); err != nil {
		t.Fatalf("set referrer failed: %v", err)
	}
	if err := engine.SetReferrer(buyer, addr(0x42)); !errors.Is(err, ErrReferrerAlreadySet) {
		t.Fatalf("expected already set rejection, got %v", err)
	}
}

func TestReferralAccrualAndClaim(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(t, state, testParams())
	activateSale(t, engine)

	buyer := addr(0x43)
	referrer := addr(0x44)
	if err := engine.SetReferrer(buyer, referrer); err != nil {
		t.Fatalf("set referrer failed: %v", err)
	}
	whitelist(t, engine, buyer)
	state.setPayment(buyer, eth(1))
	state.setTokens(tokenVault, eth(1_000_000))

	receipt, err := engine.BuyTokens(buyer, eth(1))
	if err != nil {
		t.Fatalf("buy failed: %v", err)
	}
	// Default referral rate is 5% of the granted tokens.
	wantBonus := bpsShare(receipt.TokensGranted, defaultReferralBps)
	account, err := engine.Participant(referrer)
	if err != nil {
		t.Fatalf("referrer record: %v", err)
	}
	if account.BonusAccrued.Cmp(wantBonus) != 0 {
		t.Fatalf("accrued bonus: want %s got %s", wantBonus, account.BonusAccrued)
	}

	claimed, err := engine.ClaimReferralBonus(referrer)
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if claimed.Cmp(wantBonus) != 0 {
		t.Fatalf("claimed bonus: want %s got %s", wantBonus, claimed)
	}
	if state.account(referrer).BalanceToken.Cmp(wantBonus) != 0 {
		t.Fatalf("bonus not delivered to balance")
	}
	if _, err := engine.ClaimReferralBonus(referrer); !errors.Is(err, ErrNothingAccrued) {
		t.Fatalf("expected nothing accrued after claim, got %v", err)
	}
}

func TestClaimReferralBonusWithoutAccrual(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(t, state, testParams())

	if _, err := engine.ClaimReferralBonus(addr(0x45)); !errors.Is(err, ErrNothingAccrued) {
		t.Fatalf("expected nothing accrued, got %v", err)
	}
}
