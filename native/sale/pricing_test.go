package sale

import (
	"errors"
	"math/big"
	"testing"
)

func TestCurrentPriceRamp(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(t, state, testParams())
	base := testParams().BasePrice

	if got := engine.CurrentPrice(saleStart); got.Cmp(base) != 0 {
		t.Fatalf("price at start: want %s got %s", base, got)
	}
	if got := engine.CurrentPrice(saleStart - day); got.Cmp(base) != 0 {
		t.Fatalf("price before start: want %s got %s", base, got)
	}

	// Half way through the ramp the price has risen by 25%.
	midway := engine.CurrentPrice(saleStart + 15*day)
	wantMid := new(big.Int).Mul(base, big.NewInt(12_500))
	wantMid.Div(wantMid, big.NewInt(10_000))
	if midway.Cmp(wantMid) != 0 {
		t.Fatalf("price at midpoint: want %s got %s", wantMid, midway)
	}

	// At and beyond the ramp window the price clamps at 150%.
	ceiling := new(big.Int).Mul(base, big.NewInt(15_000))
	ceiling.Div(ceiling, big.NewInt(10_000))
	if got := engine.CurrentPrice(saleStart + 30*day); got.Cmp(ceiling) != 0 {
		t.Fatalf("price at ramp end: want %s got %s", ceiling, got)
	}
	if got := engine.CurrentPrice(saleStart + 400*day); got.Cmp(ceiling) != 0 {
		t.Fatalf("price after ramp: want %s got %s", ceiling, got)
	}
}

func TestCurrentPriceMonotonic(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(t, state, testParams())

	previous := big.NewInt(0)
	for offset := int64(0); offset <= 40*day; offset += day {
		price := engine.CurrentPrice(saleStart + offset)
		if price.Cmp(previous) < 0 {
			t.Fatalf("price decreased at day %d: %s < %s", offset/day, price, previous)
		}
		previous = price
	}
}

func TestRisingPriceReducesGrant(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(t, state, testParams())
	activateSale(t, engine)

	buyer := addr(0x10)
	whitelist(t, engine, buyer)
	state.setPayment(buyer, eth(2))
	state.setTokens(tokenVault, eth(1_000_000))

	receiptAtStart, err := engine.BuyTokens(buyer, eth(1))
	if err != nil {
		t.Fatalf("buy at start failed: %v", err)
	}
	engine.SetNowFunc(func() int64 { return saleStart + 15*day })
	receiptLater, err := engine.BuyTokens(buyer, eth(1))
	if err != nil {
		t.Fatalf("buy at day 15 failed: %v", err)
	}
	if receiptLater.TokensGranted.Cmp(receiptAtStart.TokensGranted) >= 0 {
		t.Fatalf("later purchase should grant fewer tokens: %s vs %s",
			receiptLater.TokensGranted, receiptAtStart.TokensGranted)
	}
}

func TestWindowedTierPricing(t *testing.T) {
	state := newMockState()
	params := testParams()
	params.TierModel = TierModelWindowed
	engine := newTestEngine(t, state, params)
	if _, err := engine.ToggleActive(owner); err != nil {
		t.Fatalf("toggle active: %v", err)
	}

	tierPrice := big.NewInt(2_000_000_000_000_000) // 0.002 per token
	if _, err := engine.AddTier(owner, &Tier{
		Price:     tierPrice,
		MaxTokens: eth(10_000),
		StartTime: saleStart,
		EndTime:   saleStart + 10*day,
	}); err != nil {
		t.Fatalf("add tier: %v", err)
	}

	buyer := addr(0x11)
	whitelist(t, engine, buyer)
	state.setPayment(buyer, eth(10))
	state.setTokens(tokenVault, eth(1_000_000))

	receipt, err := engine.BuyTokens(buyer, eth(1))
	if err != nil {
		t.Fatalf("buy failed: %v", err)
	}
	if receipt.Price.Cmp(tierPrice) != 0 {
		t.Fatalf("tier price not used: %s", receipt.Price)
	}
	if receipt.TokensGranted.Cmp(eth(500)) != 0 {
		t.Fatalf("unexpected grant: %s", receipt.TokensGranted)
	}

	// Outside the tier window no tier is active.
	engine.SetNowFunc(func() int64 { return saleStart + 20*day })
	if _, err := engine.BuyTokens(buyer, eth(1)); !errors.Is(err, ErrNoActiveTier) {
		t.Fatalf("expected no active tier, got %v", err)
	}
}

func TestWindowedTierCap(t *testing.T) {
	state := newMockState()
	params := testParams()
	params.TierModel = TierModelWindowed
	engine := newTestEngine(t, state, params)
	if _, err := engine.ToggleActive(owner); err != nil {
		t.Fatalf("toggle active: %v", err)
	}
	if _, err := engine.AddTier(owner, &Tier{
		Price:     big.NewInt(1_000_000_000_000_000),
		MaxTokens: eth(1_500),
		StartTime: saleStart,
		EndTime:   saleStart + 10*day,
	}); err != nil {
		t.Fatalf("add tier: %v", err)
	}

	buyer := addr(0x12)
	whitelist(t, engine, buyer)
	state.setPayment(buyer, eth(10))
	state.setTokens(tokenVault, eth(1_000_000))

	if _, err := engine.BuyTokens(buyer, eth(1)); err != nil {
		t.Fatalf("first buy failed: %v", err)
	}
	// The second 1000-token grant would push the tier past its 1500 cap.
	if _, err := engine.BuyTokens(buyer, eth(1)); !errors.Is(err, ErrTierCapExceeded) {
		t.Fatalf("expected tier cap rejection, got %v", err)
	}
	tier, err := engine.Tier(0)
	if err != nil {
		t.Fatalf("tier: %v", err)
	}
	if tier.TokensSold.Cmp(eth(1_000)) != 0 {
		t.Fatalf("rejected purchase mutated tier sold count: %s", tier.TokensSold)
	}
}
