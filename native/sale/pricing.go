package sale

import "math/big"

// CurrentPrice returns the unit price at the supplied time. The price ramps
// linearly from the base price at sale start to 150% of it after the ramp
// window and stays clamped at the ceiling afterwards. Pure function of "now".
func (e *Engine) CurrentPrice(now int64) *big.Int {
	base := e.params.BasePrice
	elapsed := now - e.params.StartTime
	if elapsed <= 0 {
		return cloneBigInt(base)
	}
	rampBps := int64(priceRampBps)
	if elapsed < priceRampSeconds {
		rampBps = priceRampBps * elapsed / priceRampSeconds
	}
	price := new(big.Int).Mul(base, big.NewInt(bpsDenominator+rampBps))
	return price.Div(price, big.NewInt(bpsDenominator))
}

// activeTier resolves the tier the sale currently sells from under the
// windowed model: the tier the admin pointer rests on, provided "now" falls
// inside its half-open window.
func (e *Engine) activeTier(counters *Counters, now int64) (*Tier, error) {
	count, err := e.state.TierCount()
	if err != nil {
		return nil, err
	}
	if count == 0 || counters.CurrentTier >= count {
		return nil, ErrNoActiveTier
	}
	tier, ok, err := e.state.TierGet(counters.CurrentTier)
	if err != nil {
		return nil, err
	}
	if !ok || tier == nil {
		return nil, ErrNoActiveTier
	}
	if now < tier.StartTime || now >= tier.EndTime {
		return nil, ErrNoActiveTier
	}
	return normalizeTier(tier), nil
}

// bandFor resolves the discount band containing the purchase amount.
func (e *Engine) bandFor(amount *big.Int) (*Tier, error) {
	count, err := e.state.TierCount()
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < count; i++ {
		tier, ok, err := e.state.TierGet(i)
		if err != nil {
			return nil, err
		}
		if !ok || tier == nil {
			continue
		}
		tier = normalizeTier(tier)
		if tier.MinPurchase.Sign() > 0 && amount.Cmp(tier.MinPurchase) < 0 {
			continue
		}
		if tier.MaxPurchase.Sign() > 0 && amount.Cmp(tier.MaxPurchase) > 0 {
			continue
		}
		return tier, nil
	}
	return nil, ErrNoActiveTier
}

func normalizeTier(t *Tier) *Tier {
	if t.Price == nil {
		t.Price = big.NewInt(0)
	}
	if t.MaxTokens == nil {
		t.MaxTokens = big.NewInt(0)
	}
	if t.TokensSold == nil {
		t.TokensSold = big.NewInt(0)
	}
	if t.MinPurchase == nil {
		t.MinPurchase = big.NewInt(0)
	}
	if t.MaxPurchase == nil {
		t.MaxPurchase = big.NewInt(0)
	}
	return t
}

// QuotedPrice returns the unit price a purchase committed right now would pay,
// together with the tier it would be attributed to. Discount-band sales quote
// the ramp price with zero attribution since the band depends on the purchase
// amount.
func (e *Engine) QuotedPrice() (*big.Int, uint32, error) {
	if err := e.ready(); err != nil {
		return nil, 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.now()
	if e.params.TierModel == TierModelWindowed {
		counters, err := e.loadCounters()
		if err != nil {
			return nil, 0, err
		}
		tier, err := e.activeTier(counters, now)
		if err != nil {
			return nil, 0, err
		}
		return cloneBigInt(tier.Price), tier.Index, nil
	}
	return e.CurrentPrice(now), 0, nil
}

// Tier returns a copy of the tier at the supplied index.
func (e *Engine) Tier(index uint32) (*Tier, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	tier, ok, err := e.state.TierGet(index)
	if err != nil {
		return nil, err
	}
	if !ok || tier == nil {
		return nil, ErrTierNotFound
	}
	return normalizeTier(tier).Clone(), nil
}

// TierCount returns the number of defined tiers.
func (e *Engine) TierCount() (uint32, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.TierCount()
}
