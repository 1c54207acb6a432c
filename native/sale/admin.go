package sale

import "math/big"

func (e *Engine) requireOwner(caller [20]byte) error {
	if caller != e.params.Owner {
		return ErrUnauthorized
	}
	return nil
}

// ToggleActive flips the sale's active flag.
func (e *Engine) ToggleActive(caller [20]byte) (bool, error) {
	return e.toggleFlag(caller, func(c *Counters) *bool { return &c.Active }, "active")
}

// ToggleCooldown flips the per-participant purchase cooldown.
func (e *Engine) ToggleCooldown(caller [20]byte) (bool, error) {
	return e.toggleFlag(caller, func(c *Counters) *bool { return &c.CooldownEnabled }, "cooldown")
}

// ToggleVesting flips whether new purchases accrue a vesting share. When
// disabled, the would-be vesting share is delivered immediately; the flat
// lockup still applies.
func (e *Engine) ToggleVesting(caller [20]byte) (bool, error) {
	return e.toggleFlag(caller, func(c *Counters) *bool { return &c.VestingEnabled }, "vesting")
}

// Pause halts purchases without touching the active flag.
func (e *Engine) Pause(caller [20]byte) error {
	_, err := e.setFlag(caller, func(c *Counters) *bool { return &c.Paused }, true, "paused")
	return err
}

// Unpause resumes purchases.
func (e *Engine) Unpause(caller [20]byte) error {
	_, err := e.setFlag(caller, func(c *Counters) *bool { return &c.Paused }, false, "paused")
	return err
}

func (e *Engine) toggleFlag(caller [20]byte, field func(*Counters) *bool, name string) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireOwner(caller); err != nil {
		return false, err
	}
	counters, err := e.loadCounters()
	if err != nil {
		return false, err
	}
	flag := field(counters)
	*flag = !*flag
	if err := e.state.CountersPut(counters); err != nil {
		return false, err
	}
	e.emit(SaleStatusUpdatedEvent(name, *flag))
	return *flag, nil
}

func (e *Engine) setFlag(caller [20]byte, field func(*Counters) *bool, value bool, name string) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireOwner(caller); err != nil {
		return false, err
	}
	counters, err := e.loadCounters()
	if err != nil {
		return false, err
	}
	flag := field(counters)
	*flag = value
	if err := e.state.CountersPut(counters); err != nil {
		return false, err
	}
	e.emit(SaleStatusUpdatedEvent(name, value))
	return value, nil
}

// AddTier appends a tier definition. Windowed tiers must not overlap and must
// be monotonically increasing in start time; tiers are never deleted.
func (e *Engine) AddTier(caller [20]byte, tier *Tier) (*Tier, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireOwner(caller); err != nil {
		return nil, err
	}
	if tier == nil {
		return nil, ErrInvalidTier
	}
	candidate := normalizeTier(tier.Clone())
	candidate.TokensSold = big.NewInt(0)

	count, err := e.state.TierCount()
	if err != nil {
		return nil, err
	}
	switch e.params.TierModel {
	case TierModelWindowed:
		if candidate.Price.Sign() <= 0 || candidate.EndTime <= candidate.StartTime {
			return nil, ErrInvalidTier
		}
		if count > 0 {
			previous, ok, err := e.state.TierGet(count - 1)
			if err != nil {
				return nil, err
			}
			if ok && previous != nil && candidate.StartTime < previous.EndTime {
				return nil, ErrTierOverlap
			}
		}
	case TierModelDiscount:
		if candidate.DiscountBps > bpsDenominator {
			return nil, ErrInvalidTier
		}
		if candidate.MaxPurchase.Sign() > 0 && candidate.MinPurchase.Cmp(candidate.MaxPurchase) > 0 {
			return nil, ErrInvalidTier
		}
	}
	candidate.Index = count
	if err := e.state.TierPut(candidate); err != nil {
		return nil, err
	}
	e.emit(TierAddedEvent(candidate.Index, candidate.Price.String(), candidate.MaxTokens.String(), candidate.StartTime, candidate.EndTime))
	return candidate.Clone(), nil
}

// AdvanceTier moves the sale pointer to the next tier. Advancement is
// strictly sequential and only allowed after the current tier's window has
// ended; it never skips or rewinds.
func (e *Engine) AdvanceTier(caller [20]byte) (uint32, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireOwner(caller); err != nil {
		return 0, err
	}
	counters, err := e.loadCounters()
	if err != nil {
		return 0, err
	}
	count, err := e.state.TierCount()
	if err != nil {
		return 0, err
	}
	if count == 0 || counters.CurrentTier >= count {
		return 0, ErrNoMoreTiers
	}
	current, ok, err := e.state.TierGet(counters.CurrentTier)
	if err != nil {
		return 0, err
	}
	if !ok || current == nil {
		return 0, ErrTierNotFound
	}
	if e.now() <= current.EndTime {
		return 0, ErrCurrentTierNotEnded
	}
	if counters.CurrentTier+1 >= count {
		return 0, ErrNoMoreTiers
	}
	counters.CurrentTier++
	if err := e.state.CountersPut(counters); err != nil {
		return 0, err
	}
	e.emit(TierAdvancedEvent(counters.CurrentTier))
	return counters.CurrentTier, nil
}

// UpdateWhitelist adds or removes the supplied addresses from the whitelist.
func (e *Engine) UpdateWhitelist(caller [20]byte, addrs [][20]byte, allowed bool) error {
	if err := e.ready(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	for _, addr := range addrs {
		participant, err := e.loadParticipant(addr)
		if err != nil {
			return err
		}
		participant.Whitelisted = allowed
		if err := e.state.ParticipantPut(participant); err != nil {
			return err
		}
	}
	e.emit(WhitelistUpdatedEvent(len(addrs), allowed))
	return nil
}

// WithdrawFunds transfers the funds vault's collected payment balance to the
// owner.
func (e *Engine) WithdrawFunds(caller [20]byte) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireOwner(caller); err != nil {
		return nil, err
	}
	vault, err := e.state.GetAccount(e.params.FundsVault[:])
	if err != nil {
		return nil, err
	}
	vault = ensureAccount(vault)
	withdrawn := new(big.Int).Set(vault.BalancePayment)
	if withdrawn.Sign() == 0 {
		return big.NewInt(0), nil
	}
	owner, err := e.state.GetAccount(e.params.Owner[:])
	if err != nil {
		return nil, err
	}
	owner = ensureAccount(owner)
	vault.BalancePayment = big.NewInt(0)
	owner.BalancePayment = new(big.Int).Add(owner.BalancePayment, withdrawn)
	if err := e.state.PutAccount(e.params.FundsVault[:], vault); err != nil {
		return nil, err
	}
	if err := e.state.PutAccount(e.params.Owner[:], owner); err != nil {
		return nil, err
	}
	e.emit(FundsWithdrawnEvent(hexAddr(e.params.Owner), withdrawn.String()))
	return withdrawn, nil
}

// Finalize marks the sale as finished. The transition is one-way; purchases
// are rejected afterwards while refunds and claims remain available.
func (e *Engine) Finalize(caller [20]byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	counters, err := e.loadCounters()
	if err != nil {
		return err
	}
	if counters.Finalized {
		return ErrSaleFinalized
	}
	counters.Finalized = true
	counters.Active = false
	if err := e.state.CountersPut(counters); err != nil {
		return err
	}
	e.emit(SaleStatusUpdatedEvent("finalized", true))
	return nil
}
