package sale

import (
	"fmt"
	"math/big"
)

// ReleasePolicy selects how the non-immediate share of a purchase is released
// back to the participant. The two policies are mutually exclusive for a given
// sale and are fixed at configuration time.
type ReleasePolicy uint8

const (
	// PolicyVesting delivers an immediate share and splits the remainder
	// between a flat lockup and a cliff-plus-duration vesting schedule.
	PolicyVesting ReleasePolicy = iota
	// PolicyStaged delivers half immediately and the rest as dated tranches.
	PolicyStaged
)

// Valid reports whether the policy value is within the supported range.
func (p ReleasePolicy) Valid() bool {
	return p == PolicyVesting || p == PolicyStaged
}

// TierModel selects how tiers are matched against a purchase.
type TierModel uint8

const (
	// TierModelWindowed matches the tier whose time window contains "now" and
	// prices purchases at the tier's fixed price.
	TierModelWindowed TierModel = iota
	// TierModelDiscount matches the band whose purchase-amount range contains
	// the payment and grants bonus tokens on top of the ramp price.
	TierModelDiscount
)

// Valid reports whether the tier model value is within the supported range.
func (m TierModel) Valid() bool {
	return m == TierModelWindowed || m == TierModelDiscount
}

// Params holds the immutable sale configuration supplied at boot. Monetary
// values are wei-style integers; shares and rates are basis points.
type Params struct {
	Owner      [20]byte
	TokenVault [20]byte
	FundsVault [20]byte

	BasePrice     *big.Int
	SoftCap       *big.Int
	HardCap       *big.Int
	MinInvestment *big.Int
	MaxInvestment *big.Int

	StartTime int64
	EndTime   int64

	ReleasePolicy ReleasePolicy
	TierModel     TierModel

	CooldownSeconds int64
	ReferralBps     uint32

	// PolicyVesting split. ImmediateBps is delivered on purchase, LockupBps
	// enters the flat lockup, and the remainder accrues to the vesting
	// schedule.
	ImmediateBps    uint32
	LockupBps       uint32
	VestingCliff    int64
	VestingDuration int64
	LockupDuration  int64
}

// Clone produces a deep copy of the params.
func (p *Params) Clone() *Params {
	if p == nil {
		return nil
	}
	clone := *p
	clone.BasePrice = cloneBigInt(p.BasePrice)
	clone.SoftCap = cloneBigInt(p.SoftCap)
	clone.HardCap = cloneBigInt(p.HardCap)
	clone.MinInvestment = cloneBigInt(p.MinInvestment)
	clone.MaxInvestment = cloneBigInt(p.MaxInvestment)
	return &clone
}

// Normalize ensures pointer fields are non-nil and fills unset durations with
// the engine defaults. The method returns the receiver to allow chaining.
func (p *Params) Normalize() *Params {
	if p == nil {
		return nil
	}
	if p.BasePrice == nil {
		p.BasePrice = big.NewInt(0)
	}
	if p.SoftCap == nil {
		p.SoftCap = big.NewInt(0)
	}
	if p.HardCap == nil {
		p.HardCap = big.NewInt(0)
	}
	if p.MinInvestment == nil {
		p.MinInvestment = big.NewInt(0)
	}
	if p.MaxInvestment == nil {
		p.MaxInvestment = big.NewInt(0)
	}
	if p.CooldownSeconds <= 0 {
		p.CooldownSeconds = defaultCooldownSeconds
	}
	if p.ReferralBps == 0 {
		p.ReferralBps = defaultReferralBps
	}
	if p.ImmediateBps == 0 {
		p.ImmediateBps = defaultImmediateBps
	}
	if p.LockupBps == 0 {
		p.LockupBps = defaultLockupShareBps
	}
	if p.VestingCliff <= 0 {
		p.VestingCliff = defaultCliffSeconds
	}
	if p.VestingDuration <= 0 {
		p.VestingDuration = defaultVestingSeconds
	}
	if p.LockupDuration <= 0 {
		p.LockupDuration = defaultLockupSeconds
	}
	return p
}

// Validate performs static validation of the sale configuration.
func (p *Params) Validate() error {
	if p == nil {
		return fmt.Errorf("nil sale params")
	}
	if !p.ReleasePolicy.Valid() {
		return fmt.Errorf("invalid release policy: %d", p.ReleasePolicy)
	}
	if !p.TierModel.Valid() {
		return fmt.Errorf("invalid tier model: %d", p.TierModel)
	}
	if p.BasePrice == nil || p.BasePrice.Sign() <= 0 {
		return fmt.Errorf("base price must be positive")
	}
	if p.HardCap == nil || p.HardCap.Sign() <= 0 {
		return fmt.Errorf("hard cap must be positive")
	}
	if p.SoftCap != nil && p.SoftCap.Cmp(p.HardCap) > 0 {
		return fmt.Errorf("soft cap must not exceed hard cap")
	}
	if p.MinInvestment != nil && p.MaxInvestment != nil &&
		p.MaxInvestment.Sign() > 0 && p.MinInvestment.Cmp(p.MaxInvestment) > 0 {
		return fmt.Errorf("min investment must not exceed max investment")
	}
	if p.EndTime != 0 && p.EndTime <= p.StartTime {
		return fmt.Errorf("end time must follow start time")
	}
	if p.ImmediateBps+p.LockupBps > bpsDenominator {
		return fmt.Errorf("immediate and lockup shares must not exceed %d bps", bpsDenominator)
	}
	if p.ReferralBps > bpsDenominator {
		return fmt.Errorf("referral rate must not exceed %d bps", bpsDenominator)
	}
	if isZeroAddress(p.TokenVault) {
		return fmt.Errorf("token vault must be configured")
	}
	if isZeroAddress(p.FundsVault) {
		return fmt.Errorf("funds vault must be configured")
	}
	return nil
}

// Tier is one segment of the sale. Windowed tiers carry a fixed price and a
// half-open [StartTime, EndTime) activity window; discount bands carry a
// purchase-amount range and a bonus rate instead.
type Tier struct {
	Index      uint32   `json:"index"`
	Price      *big.Int `json:"price"`
	MaxTokens  *big.Int `json:"maxTokens"`
	TokensSold *big.Int `json:"tokensSold"`
	StartTime  int64    `json:"startTime"`
	EndTime    int64    `json:"endTime"`

	MinPurchase *big.Int `json:"minPurchase"`
	MaxPurchase *big.Int `json:"maxPurchase"`
	DiscountBps uint32   `json:"discountBps"`
}

// Clone returns a deep copy of the tier.
func (t *Tier) Clone() *Tier {
	if t == nil {
		return nil
	}
	clone := *t
	clone.Price = cloneBigInt(t.Price)
	clone.MaxTokens = cloneBigInt(t.MaxTokens)
	clone.TokensSold = cloneBigInt(t.TokensSold)
	clone.MinPurchase = cloneBigInt(t.MinPurchase)
	clone.MaxPurchase = cloneBigInt(t.MaxPurchase)
	return &clone
}

// VestingSchedule accumulates the vesting share of a participant's purchases.
// ReleasedAmount never decreases and never exceeds TotalAmount.
type VestingSchedule struct {
	TotalAmount    *big.Int `json:"totalAmount"`
	ReleasedAmount *big.Int `json:"releasedAmount"`
	StartTime      int64    `json:"startTime"`
	Duration       int64    `json:"duration"`
	Cliff          int64    `json:"cliff"`
}

// Clone returns a deep copy of the schedule.
func (v *VestingSchedule) Clone() *VestingSchedule {
	if v == nil {
		return nil
	}
	clone := *v
	clone.TotalAmount = cloneBigInt(v.TotalAmount)
	clone.ReleasedAmount = cloneBigInt(v.ReleasedAmount)
	return &clone
}

// Distribution is one dated tranche of a staged-policy purchase. Claimed is
// monotone: once set it never reverts.
type Distribution struct {
	Amount      *big.Int `json:"amount"`
	ReleaseTime int64    `json:"releaseTime"`
	Claimed     bool     `json:"claimed"`
}

// Clone returns a deep copy of the distribution.
func (d *Distribution) Clone() *Distribution {
	if d == nil {
		return nil
	}
	clone := *d
	clone.Amount = cloneBigInt(d.Amount)
	return &clone
}

// Participant is the per-address sale record. Entries are keyed by the
// participant address; no participant can mutate another's record.
type Participant struct {
	Address          [20]byte         `json:"address"`
	Whitelisted      bool             `json:"whitelisted"`
	TotalInvested    *big.Int         `json:"totalInvested"`
	TotalTokens      *big.Int         `json:"totalTokens"`
	LastPurchaseTime int64            `json:"lastPurchaseTime"`
	LockedTokens     *big.Int         `json:"lockedTokens"`
	LockStart        int64            `json:"lockStart"`
	Vesting          *VestingSchedule `json:"vesting,omitempty"`
	Distributions    []Distribution   `json:"distributions,omitempty"`
	Referrer         [20]byte         `json:"referrer"`
	ReferrerSet      bool             `json:"referrerSet"`
	BonusAccrued     *big.Int         `json:"bonusAccrued"`
	Refunded         bool             `json:"refunded"`
}

// Clone returns a deep copy of the participant record.
func (p *Participant) Clone() *Participant {
	if p == nil {
		return nil
	}
	clone := *p
	clone.TotalInvested = cloneBigInt(p.TotalInvested)
	clone.TotalTokens = cloneBigInt(p.TotalTokens)
	clone.LockedTokens = cloneBigInt(p.LockedTokens)
	clone.BonusAccrued = cloneBigInt(p.BonusAccrued)
	clone.Vesting = p.Vesting.Clone()
	if len(p.Distributions) > 0 {
		clone.Distributions = make([]Distribution, len(p.Distributions))
		for i := range p.Distributions {
			clone.Distributions[i] = *p.Distributions[i].Clone()
		}
	}
	return &clone
}

// Counters is the sale-wide mutable state shared across all participants. It
// is read and written only inside a single serialized engine transition.
type Counters struct {
	TotalRaised     *big.Int `json:"totalRaised"`
	TotalTokensSold *big.Int `json:"totalTokensSold"`
	CurrentTier     uint32   `json:"currentTier"`
	Active          bool     `json:"active"`
	CooldownEnabled bool     `json:"cooldownEnabled"`
	VestingEnabled  bool     `json:"vestingEnabled"`
	Paused          bool     `json:"paused"`
	Finalized       bool     `json:"finalized"`
}

// Clone returns a deep copy of the counters.
func (c *Counters) Clone() *Counters {
	if c == nil {
		return nil
	}
	clone := *c
	clone.TotalRaised = cloneBigInt(c.TotalRaised)
	clone.TotalTokensSold = cloneBigInt(c.TotalTokensSold)
	return &clone
}

// Receipt summarises a committed purchase.
type Receipt struct {
	Buyer         [20]byte `json:"buyer"`
	Amount        *big.Int `json:"amount"`
	Price         *big.Int `json:"price"`
	TokensGranted *big.Int `json:"tokensGranted"`
	Immediate     *big.Int `json:"immediate"`
	Locked        *big.Int `json:"locked"`
	Vested        *big.Int `json:"vested"`
	TierIndex     uint32   `json:"tierIndex"`
	PurchasedAt   int64    `json:"purchasedAt"`
}
