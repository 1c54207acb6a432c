package sale

import (
	"errors"
	"math/big"
	"testing"

	"crowdsale/core/types"
)

type mockState struct {
	counters     *Counters
	tiers        []*Tier
	participants map[[20]byte]*Participant
	accounts     map[string]*types.Account
}

func newMockState() *mockState {
	return &mockState{
		participants: make(map[[20]byte]*Participant),
		accounts:     make(map[string]*types.Account),
	}
}

func (m *mockState) CountersGet() (*Counters, bool, error) {
	if m.counters == nil {
		return nil, false, nil
	}
	return m.counters.Clone(), true, nil
}

func (m *mockState) CountersPut(counters *Counters) error {
	m.counters = counters.Clone()
	return nil
}

func (m *mockState) TierGet(index uint32) (*Tier, bool, error) {
	if int(index) >= len(m.tiers) {
		return nil, false, nil
	}
	return m.tiers[index].Clone(), true, nil
}

func (m *mockState) TierPut(tier *Tier) error {
	if tier == nil {
		return nil
	}
	if int(tier.Index) < len(m.tiers) {
		m.tiers[tier.Index] = tier.Clone()
		return nil
	}
	m.tiers = append(m.tiers, tier.Clone())
	return nil
}

func (m *mockState) TierCount() (uint32, error) {
	return uint32(len(m.tiers)), nil
}

func (m *mockState) ParticipantGet(addr [20]byte) (*Participant, bool, error) {
	participant, ok := m.participants[addr]
	if !ok {
		return nil, false, nil
	}
	return participant.Clone(), true, nil
}

func (m *mockState) ParticipantPut(participant *Participant) error {
	if participant == nil {
		return nil
	}
	m.participants[participant.Address] = participant.Clone()
	return nil
}

func (m *mockState) GetAccount(addr []byte) (*types.Account, error) {
	if acc, ok := m.accounts[string(addr)]; ok && acc != nil {
		return acc.Clone(), nil
	}
	return nil, nil
}

func (m *mockState) PutAccount(addr []byte, account *types.Account) error {
	if account == nil {
		delete(m.accounts, string(addr))
		return nil
	}
	m.accounts[string(addr)] = account.Clone()
	return nil
}

func (m *mockState) setPayment(addr [20]byte, amount *big.Int) {
	m.accounts[string(addr[:])] = &types.Account{BalancePayment: new(big.Int).Set(amount), BalanceToken: big.NewInt(0)}
}

func (m *mockState) setTokens(addr [20]byte, amount *big.Int) {
	m.accounts[string(addr[:])] = &types.Account{BalancePayment: big.NewInt(0), BalanceToken: new(big.Int).Set(amount)}
}

func (m *mockState) account(addr [20]byte) *types.Account {
	if acc, ok := m.accounts[string(addr[:])]; ok {
		return acc.Clone()
	}
	return &types.Account{BalancePayment: big.NewInt(0), BalanceToken: big.NewInt(0)}
}

func addr(last byte) [20]byte {
	var out [20]byte
	out[19] = last
	return out
}

const (
	day       = int64(24 * 60 * 60)
	saleStart = int64(1_000)
)

var (
	owner      = addr(0xEE)
	tokenVault = addr(0xAA)
	fundsVault = addr(0xBB)
)

// eth converts whole payment units to wei-style integers.
func eth(units int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(units), tokenUnit)
}

func testParams() *Params {
	return &Params{
		Owner:      owner,
		TokenVault: tokenVault,
		FundsVault: fundsVault,
		// 0.001 payment units per whole token.
		BasePrice:     big.NewInt(1_000_000_000_000_000),
		SoftCap:       eth(10),
		HardCap:       eth(100),
		StartTime:     saleStart,
		EndTime:       saleStart + 365*day,
		TierModel:     TierModelDiscount,
		ReleasePolicy: PolicyVesting,
	}
}

func newTestEngine(t *testing.T, state *mockState, params *Params) *Engine {
	t.Helper()
	engine := NewEngine()
	engine.SetState(state)
	if err := engine.SetParams(params); err != nil {
		t.Fatalf("set params: %v", err)
	}
	engine.SetNowFunc(func() int64 { return saleStart })
	return engine
}

// activateSale flips the active flag and installs an unbounded discount band
// so purchases have a tier to land in.
func activateSale(t *testing.T, engine *Engine) {
	t.Helper()
	if _, err := engine.ToggleActive(owner); err != nil {
		t.Fatalf("toggle active: %v", err)
	}
	if _, err := engine.AddTier(owner, &Tier{}); err != nil {
		t.Fatalf("add band: %v", err)
	}
}

func whitelist(t *testing.T, engine *Engine, addrs ...[20]byte) {
	t.Helper()
	if err := engine.UpdateWhitelist(owner, addrs, true); err != nil {
		t.Fatalf("whitelist: %v", err)
	}
}

func TestBuyTokensBasePriceGrant(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(t, state, testParams())
	activateSale(t, engine)

	buyer := addr(0x01)
	whitelist(t, engine, buyer)
	state.setPayment(buyer, eth(1))
	state.setTokens(tokenVault, eth(1_000_000))

	receipt, err := engine.BuyTokens(buyer, eth(1))
	if err != nil {
		t.Fatalf("buy failed: %v", err)
	}
	// 1 unit at 0.001 per token buys 1000 tokens.
	want := eth(1000)
	if receipt.TokensGranted.Cmp(want) != 0 {
		t.Fatalf("unexpected grant: want %s got %s", want, receipt.TokensGranted)
	}
	if state.account(fundsVault).BalancePayment.Cmp(eth(1)) != 0 {
		t.Fatalf("funds vault not credited")
	}
	if state.account(buyer).BalancePayment.Sign() != 0 {
		t.Fatalf("buyer payment not debited")
	}
	counters, err := engine.Counters()
	if err != nil {
		t.Fatalf("counters: %v", err)
	}
	if counters.TotalRaised.Cmp(eth(1)) != 0 {
		t.Fatalf("unexpected total raised: %s", counters.TotalRaised)
	}
	if counters.TotalTokensSold.Cmp(want) != 0 {
		t.Fatalf("unexpected tokens sold: %s", counters.TotalTokensSold)
	}
}

func TestBuyTokensSplitsAllocation(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(t, state, testParams())
	activateSale(t, engine)

	buyer := addr(0x02)
	whitelist(t, engine, buyer)
	state.setPayment(buyer, eth(1))
	state.setTokens(tokenVault, eth(1_000_000))

	receipt, err := engine.BuyTokens(buyer, eth(1))
	if err != nil {
		t.Fatalf("buy failed: %v", err)
	}
	total := new(big.Int).Add(receipt.Immediate, receipt.Locked)
	total.Add(total, receipt.Vested)
	if total.Cmp(receipt.TokensGranted) != 0 {
		t.Fatalf("split does not sum to grant: %s vs %s", total, receipt.TokensGranted)
	}
	// Default split: 25% immediate, 25% locked, 50% vesting.
	if receipt.Locked.Cmp(eth(250)) != 0 {
		t.Fatalf("unexpected locked share: %s", receipt.Locked)
	}
	if receipt.Vested.Cmp(eth(500)) != 0 {
		t.Fatalf("unexpected vesting share: %s", receipt.Vested)
	}
	if state.account(buyer).BalanceToken.Cmp(receipt.Immediate) != 0 {
		t.Fatalf("immediate share not delivered")
	}

	participant, err := engine.Participant(buyer)
	if err != nil {
		t.Fatalf("participant: %v", err)
	}
	if participant.LockedTokens.Cmp(receipt.Locked) != 0 {
		t.Fatalf("locked tokens not recorded")
	}
	if participant.Vesting == nil || participant.Vesting.TotalAmount.Cmp(receipt.Vested) != 0 {
		t.Fatalf("vesting schedule not recorded")
	}
}

func TestBuyTokensHardCapAtomic(t *testing.T) {
	state := newMockState()
	params := testParams()
	params.SoftCap = eth(1)
	params.HardCap = eth(3)
	engine := newTestEngine(t, state, params)
	activateSale(t, engine)

	first := addr(0x03)
	second := addr(0x04)
	whitelist(t, engine, first, second)
	state.setPayment(first, eth(2))
	state.setPayment(second, eth(2))
	state.setTokens(tokenVault, eth(1_000_000))

	if _, err := engine.BuyTokens(first, eth(2)); err != nil {
		t.Fatalf("first buy failed: %v", err)
	}
	if _, err := engine.BuyTokens(second, eth(2)); !errors.Is(err, ErrHardCapExceeded) {
		t.Fatalf("expected hard cap rejection, got %v", err)
	}
	counters, err := engine.Counters()
	if err != nil {
		t.Fatalf("counters: %v", err)
	}
	if counters.TotalRaised.Cmp(eth(2)) != 0 {
		t.Fatalf("rejected purchase mutated totalRaised: %s", counters.TotalRaised)
	}
	if state.account(second).BalancePayment.Cmp(eth(2)) != 0 {
		t.Fatalf("rejected purchase debited the buyer")
	}
}

func TestBuyTokensDiscountBandBonus(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(t, state, testParams())
	if _, err := engine.ToggleActive(owner); err != nil {
		t.Fatalf("toggle active: %v", err)
	}
	// A 10% bonus band for purchases of at least 1 unit.
	if _, err := engine.AddTier(owner, &Tier{MinPurchase: eth(1), DiscountBps: 1_000}); err != nil {
		t.Fatalf("add band: %v", err)
	}

	buyer := addr(0x05)
	whitelist(t, engine, buyer)
	state.setPayment(buyer, eth(2))
	state.setTokens(tokenVault, eth(1_000_000))

	receipt, err := engine.BuyTokens(buyer, eth(1))
	if err != nil {
		t.Fatalf("buy failed: %v", err)
	}
	if receipt.TokensGranted.Cmp(eth(1100)) != 0 {
		t.Fatalf("bonus not applied: %s", receipt.TokensGranted)
	}

	// Below the band's minimum there is no matching band.
	if _, err := engine.BuyTokens(buyer, big.NewInt(1_000_000)); !errors.Is(err, ErrNoActiveTier) {
		t.Fatalf("expected no active tier, got %v", err)
	}
}

func TestBuyTokensVaultConservation(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(t, state, testParams())
	activateSale(t, engine)

	buyer := addr(0x06)
	whitelist(t, engine, buyer)
	state.setPayment(buyer, eth(5))
	supply := eth(1_000_000)
	state.setTokens(tokenVault, supply)

	receipt, err := engine.BuyTokens(buyer, eth(5))
	if err != nil {
		t.Fatalf("buy failed: %v", err)
	}
	vaultTokens := state.account(tokenVault).BalanceToken
	buyerTokens := state.account(buyer).BalanceToken
	sum := new(big.Int).Add(vaultTokens, buyerTokens)
	if sum.Cmp(supply) != 0 {
		t.Fatalf("token supply changed: want %s got %s", supply, sum)
	}
	// Only the immediate share left the vault.
	wantVault := new(big.Int).Sub(supply, receipt.Immediate)
	if vaultTokens.Cmp(wantVault) != 0 {
		t.Fatalf("vault delta mismatch: want %s got %s", wantVault, vaultTokens)
	}
}

func TestBuyTokensUnderfundedVaultRejects(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(t, state, testParams())
	activateSale(t, engine)

	buyer := addr(0x07)
	whitelist(t, engine, buyer)
	state.setPayment(buyer, eth(1))
	state.setTokens(tokenVault, eth(10))

	if _, err := engine.BuyTokens(buyer, eth(1)); !errors.Is(err, ErrVaultUnderfunded) {
		t.Fatalf("expected vault underfunded, got %v", err)
	}
	if state.account(buyer).BalancePayment.Cmp(eth(1)) != 0 {
		t.Fatalf("rejected purchase debited the buyer")
	}
}

func TestEngineStatePersistsAcrossRestart(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(t, state, testParams())
	activateSale(t, engine)

	buyer := addr(0x08)
	whitelist(t, engine, buyer)
	state.setPayment(buyer, eth(1))
	state.setTokens(tokenVault, eth(1_000_000))
	if _, err := engine.BuyTokens(buyer, eth(1)); err != nil {
		t.Fatalf("buy failed: %v", err)
	}

	restarted := NewEngine()
	restarted.SetState(state)
	if err := restarted.SetParams(testParams()); err != nil {
		t.Fatalf("set params: %v", err)
	}
	restarted.SetNowFunc(func() int64 { return saleStart })

	counters, err := restarted.Counters()
	if err != nil {
		t.Fatalf("counters after restart: %v", err)
	}
	if counters.TotalRaised.Cmp(eth(1)) != 0 {
		t.Fatalf("raise did not persist: %s", counters.TotalRaised)
	}
	participant, err := restarted.Participant(buyer)
	if err != nil {
		t.Fatalf("participant after restart: %v", err)
	}
	if participant.TotalInvested.Cmp(eth(1)) != 0 {
		t.Fatalf("investment did not persist: %s", participant.TotalInvested)
	}
}
