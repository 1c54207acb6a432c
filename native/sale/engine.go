package sale

import (
	"encoding/hex"
	"math/big"
	"sync"
	"time"

	"crowdsale/core/events"
	"crowdsale/core/types"
)

const (
	bpsDenominator = 10_000

	// Linear price ramp: base price grows by 50% over the first 30 days.
	priceRampBps     = 5_000
	priceRampSeconds = 30 * 24 * 60 * 60

	// PolicyVesting defaults.
	defaultImmediateBps   = 2_500
	defaultLockupShareBps = 2_500
	defaultCliffSeconds   = 90 * 24 * 60 * 60
	defaultVestingSeconds = 365 * 24 * 60 * 60
	defaultLockupSeconds  = 180 * 24 * 60 * 60

	// PolicyStaged split: half on purchase, a quarter after each delay.
	stagedImmediateBps    = 5_000
	stagedTrancheBps      = 2_500
	stagedTrancheOneDelay = 30 * 24 * 60 * 60
	stagedTrancheTwoDelay = 60 * 24 * 60 * 60

	defaultCooldownSeconds = 60 * 60
	defaultReferralBps     = 500
)

// tokenUnit converts between whole tokens and their smallest denomination.
var tokenUnit = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

type engineState interface {
	CountersGet() (*Counters, bool, error)
	CountersPut(*Counters) error
	TierGet(index uint32) (*Tier, bool, error)
	TierPut(*Tier) error
	TierCount() (uint32, error)
	ParticipantGet(addr [20]byte) (*Participant, bool, error)
	ParticipantPut(*Participant) error
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
}

// Engine wires the crowdsale settlement logic with persistence and event
// emission. Every exported operation is a single all-or-nothing transition:
// the mutex serializes callers and all validation happens before the first
// state write, so a rejection implies no state mutation occurred.
type Engine struct {
	mu      sync.Mutex
	state   engineState
	emitter events.Emitter
	params  *Params
	nowFn   func() int64
}

// NewEngine constructs a sale engine with default dependencies.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetParams installs the sale configuration. The params are normalized and
// validated before use; invalid params are rejected.
func (e *Engine) SetParams(params *Params) error {
	if params == nil {
		return ErrNilParams
	}
	normalized := params.Clone().Normalize()
	if err := normalized.Validate(); err != nil {
		return err
	}
	e.params = normalized
	return nil
}

// Params returns a copy of the installed sale configuration.
func (e *Engine) Params() *Params { return e.params.Clone() }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || evt == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(WrapEvent(evt))
}

// now is read once per transition so every component observes the same clock.
func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if e.params == nil {
		return ErrNilParams
	}
	return nil
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func isZeroAddress(addr [20]byte) bool {
	var zero [20]byte
	return addr == zero
}

func hexAddr(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

func ensureAccount(acc *types.Account) *types.Account {
	if acc == nil {
		return &types.Account{BalancePayment: big.NewInt(0), BalanceToken: big.NewInt(0)}
	}
	if acc.BalancePayment == nil {
		acc.BalancePayment = big.NewInt(0)
	}
	if acc.BalanceToken == nil {
		acc.BalanceToken = big.NewInt(0)
	}
	return acc
}

func newParticipant(addr [20]byte) *Participant {
	return &Participant{
		Address:       addr,
		TotalInvested: big.NewInt(0),
		TotalTokens:   big.NewInt(0),
		LockedTokens:  big.NewInt(0),
		BonusAccrued:  big.NewInt(0),
	}
}

func newCounters() *Counters {
	return &Counters{
		TotalRaised:     big.NewInt(0),
		TotalTokensSold: big.NewInt(0),
		VestingEnabled:  true,
	}
}

func (e *Engine) loadCounters() (*Counters, error) {
	counters, ok, err := e.state.CountersGet()
	if err != nil {
		return nil, err
	}
	if !ok || counters == nil {
		counters = newCounters()
	}
	if counters.TotalRaised == nil {
		counters.TotalRaised = big.NewInt(0)
	}
	if counters.TotalTokensSold == nil {
		counters.TotalTokensSold = big.NewInt(0)
	}
	return counters, nil
}

func (e *Engine) loadParticipant(addr [20]byte) (*Participant, error) {
	participant, ok, err := e.state.ParticipantGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok || participant == nil {
		participant = newParticipant(addr)
	}
	if participant.TotalInvested == nil {
		participant.TotalInvested = big.NewInt(0)
	}
	if participant.TotalTokens == nil {
		participant.TotalTokens = big.NewInt(0)
	}
	if participant.LockedTokens == nil {
		participant.LockedTokens = big.NewInt(0)
	}
	if participant.BonusAccrued == nil {
		participant.BonusAccrued = big.NewInt(0)
	}
	return participant, nil
}

func bpsShare(amount *big.Int, bps uint32) *big.Int {
	share := new(big.Int).Mul(amount, big.NewInt(int64(bps)))
	return share.Div(share, big.NewInt(bpsDenominator))
}

// transferToken moves tokens from the token vault to the recipient. The vault
// balance is checked before any write.
func (e *Engine) transferToken(to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	vault, err := e.state.GetAccount(e.params.TokenVault[:])
	if err != nil {
		return err
	}
	vault = ensureAccount(vault)
	if vault.BalanceToken.Cmp(amount) < 0 {
		return ErrVaultUnderfunded
	}
	recipient, err := e.state.GetAccount(to[:])
	if err != nil {
		return err
	}
	recipient = ensureAccount(recipient)
	vault.BalanceToken = new(big.Int).Sub(vault.BalanceToken, amount)
	recipient.BalanceToken = new(big.Int).Add(recipient.BalanceToken, amount)
	if err := e.state.PutAccount(e.params.TokenVault[:], vault); err != nil {
		return err
	}
	return e.state.PutAccount(to[:], recipient)
}

// BuyTokens processes a purchase: admission, pricing, capacity reservation,
// release scheduling and referral accrual, committed as one transition.
func (e *Engine) BuyTokens(buyer [20]byte, amount *big.Int) (*Receipt, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	now := e.now()

	counters, err := e.loadCounters()
	if err != nil {
		return nil, err
	}
	participant, err := e.loadParticipant(buyer)
	if err != nil {
		return nil, err
	}
	if err := e.admit(counters, participant, now, amount); err != nil {
		return nil, err
	}

	tier, price, err := e.resolvePricing(counters, now, amount)
	if err != nil {
		return nil, err
	}

	tokensGranted := new(big.Int).Mul(amount, tokenUnit)
	tokensGranted.Div(tokensGranted, price)
	if tokensGranted.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if e.params.ReleasePolicy == PolicyStaged {
		// Staged sales demand an exact payment for a whole token amount.
		cost := new(big.Int).Mul(tokensGranted, price)
		cost.Div(cost, tokenUnit)
		if cost.Cmp(amount) != 0 {
			return nil, ErrIncorrectPayment
		}
	}
	if e.params.TierModel == TierModelDiscount && tier != nil && tier.DiscountBps > 0 {
		tokensGranted = new(big.Int).Add(tokensGranted, bpsShare(tokensGranted, tier.DiscountBps))
	}

	// Capacity check: reserve whole or reject whole.
	newRaised := new(big.Int).Add(counters.TotalRaised, amount)
	if newRaised.Cmp(e.params.HardCap) > 0 {
		return nil, ErrHardCapExceeded
	}
	if tier != nil && tier.MaxTokens != nil && tier.MaxTokens.Sign() > 0 {
		newSold := new(big.Int).Add(tier.TokensSold, tokensGranted)
		if newSold.Cmp(tier.MaxTokens) > 0 {
			return nil, ErrTierCapExceeded
		}
	}

	// Debit the payment before any token movement.
	buyerAccount, err := e.state.GetAccount(buyer[:])
	if err != nil {
		return nil, err
	}
	buyerAccount = ensureAccount(buyerAccount)
	if buyerAccount.BalancePayment.Cmp(amount) < 0 {
		return nil, ErrInsufficientFunds
	}

	// Compute the release split up front so vault funding is validated before
	// the first write.
	immediate, locked, vested, tranches := e.splitAllocation(counters, tokensGranted, now)
	tokenVault, err := e.state.GetAccount(e.params.TokenVault[:])
	if err != nil {
		return nil, err
	}
	tokenVault = ensureAccount(tokenVault)
	if tokenVault.BalanceToken.Cmp(tokensGranted) < 0 {
		return nil, ErrVaultUnderfunded
	}

	// Commit: payment to the funds vault, immediate share to the buyer. The
	// locked/vesting/tranche share stays in the token vault until claimed.
	buyerAccount.BalancePayment = new(big.Int).Sub(buyerAccount.BalancePayment, amount)
	fundsVault, err := e.state.GetAccount(e.params.FundsVault[:])
	if err != nil {
		return nil, err
	}
	fundsVault = ensureAccount(fundsVault)
	fundsVault.BalancePayment = new(big.Int).Add(fundsVault.BalancePayment, amount)
	if immediate.Sign() > 0 {
		tokenVault.BalanceToken = new(big.Int).Sub(tokenVault.BalanceToken, immediate)
		buyerAccount.BalanceToken = new(big.Int).Add(buyerAccount.BalanceToken, immediate)
	}
	if err := e.state.PutAccount(buyer[:], buyerAccount); err != nil {
		return nil, err
	}
	if err := e.state.PutAccount(e.params.FundsVault[:], fundsVault); err != nil {
		return nil, err
	}
	if err := e.state.PutAccount(e.params.TokenVault[:], tokenVault); err != nil {
		return nil, err
	}

	participant.TotalInvested = new(big.Int).Add(participant.TotalInvested, amount)
	participant.TotalTokens = new(big.Int).Add(participant.TotalTokens, tokensGranted)
	participant.LastPurchaseTime = now
	if locked.Sign() > 0 {
		participant.LockedTokens = new(big.Int).Add(participant.LockedTokens, locked)
		participant.LockStart = now
	}
	if vested.Sign() > 0 {
		if participant.Vesting == nil {
			participant.Vesting = &VestingSchedule{
				TotalAmount:    big.NewInt(0),
				ReleasedAmount: big.NewInt(0),
				StartTime:      now,
				Duration:       e.params.VestingDuration,
				Cliff:          e.params.VestingCliff,
			}
		}
		participant.Vesting.TotalAmount = new(big.Int).Add(participant.Vesting.TotalAmount, vested)
	}
	participant.Distributions = append(participant.Distributions, tranches...)
	if err := e.state.ParticipantPut(participant); err != nil {
		return nil, err
	}

	counters.TotalRaised = newRaised
	counters.TotalTokensSold = new(big.Int).Add(counters.TotalTokensSold, tokensGranted)
	if err := e.state.CountersPut(counters); err != nil {
		return nil, err
	}
	tierIndex := uint32(0)
	if tier != nil {
		tier.TokensSold = new(big.Int).Add(tier.TokensSold, tokensGranted)
		if err := e.state.TierPut(tier); err != nil {
			return nil, err
		}
		tierIndex = tier.Index
	}

	var bonus *big.Int
	if participant.ReferrerSet && e.params.ReferralBps > 0 {
		bonus, err = e.accrueReferral(participant.Referrer, tokensGranted)
		if err != nil {
			return nil, err
		}
	}

	e.emit(TokensPurchasedEvent(hexAddr(buyer), amount.String(), price.String(), tokensGranted.String(), tierIndex))
	if locked.Sign() > 0 {
		e.emit(TokensLockedEvent(hexAddr(buyer), locked.String(), participant.LockStart+e.params.LockupDuration))
	}
	if bonus != nil && bonus.Sign() > 0 {
		e.emit(ReferralBonusAccruedEvent(hexAddr(participant.Referrer), hexAddr(buyer), bonus.String()))
	}

	return &Receipt{
		Buyer:         buyer,
		Amount:        cloneBigInt(amount),
		Price:         cloneBigInt(price),
		TokensGranted: cloneBigInt(tokensGranted),
		Immediate:     immediate,
		Locked:        locked,
		Vested:        vested,
		TierIndex:     tierIndex,
		PurchasedAt:   now,
	}, nil
}

// resolvePricing selects the active tier (or band) and the unit price for the
// purchase according to the configured tier model.
func (e *Engine) resolvePricing(counters *Counters, now int64, amount *big.Int) (*Tier, *big.Int, error) {
	switch e.params.TierModel {
	case TierModelWindowed:
		tier, err := e.activeTier(counters, now)
		if err != nil {
			return nil, nil, err
		}
		price := tier.Price
		if price == nil || price.Sign() <= 0 {
			price = e.CurrentPrice(now)
		}
		return tier, price, nil
	case TierModelDiscount:
		tier, err := e.bandFor(amount)
		if err != nil {
			return nil, nil, err
		}
		return tier, e.CurrentPrice(now), nil
	default:
		return nil, nil, ErrNoActiveTier
	}
}

// splitAllocation divides a token grant into the immediate, locked, vesting
// and tranche shares mandated by the release policy. Rounding dust lands on
// the immediate share so the parts always sum to the grant.
func (e *Engine) splitAllocation(counters *Counters, tokens *big.Int, now int64) (immediate, locked, vested *big.Int, tranches []Distribution) {
	switch e.params.ReleasePolicy {
	case PolicyStaged:
		first := bpsShare(tokens, stagedTrancheBps)
		second := bpsShare(tokens, stagedTrancheBps)
		immediate = new(big.Int).Sub(tokens, new(big.Int).Add(first, second))
		tranches = []Distribution{
			{Amount: first, ReleaseTime: now + stagedTrancheOneDelay},
			{Amount: second, ReleaseTime: now + stagedTrancheTwoDelay},
		}
		return immediate, big.NewInt(0), big.NewInt(0), tranches
	default:
		locked = bpsShare(tokens, e.params.LockupBps)
		vested = big.NewInt(0)
		if counters.VestingEnabled {
			vestingBps := bpsDenominator - e.params.ImmediateBps - e.params.LockupBps
			vested = bpsShare(tokens, vestingBps)
		}
		immediate = new(big.Int).Sub(tokens, new(big.Int).Add(locked, vested))
		return immediate, locked, vested, nil
	}
}

func (e *Engine) accrueReferral(referrer [20]byte, tokensGranted *big.Int) (*big.Int, error) {
	bonus := bpsShare(tokensGranted, e.params.ReferralBps)
	if bonus.Sign() == 0 {
		return bonus, nil
	}
	account, err := e.loadParticipant(referrer)
	if err != nil {
		return nil, err
	}
	account.BonusAccrued = new(big.Int).Add(account.BonusAccrued, bonus)
	if err := e.state.ParticipantPut(account); err != nil {
		return nil, err
	}
	return bonus, nil
}

// Participant returns a copy of the per-address sale record.
func (e *Engine) Participant(addr [20]byte) (*Participant, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	participant, err := e.loadParticipant(addr)
	if err != nil {
		return nil, err
	}
	return participant.Clone(), nil
}

// Counters returns a copy of the sale-wide counters.
func (e *Engine) Counters() (*Counters, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	counters, err := e.loadCounters()
	if err != nil {
		return nil, err
	}
	return counters.Clone(), nil
}
