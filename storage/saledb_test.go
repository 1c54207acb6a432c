package storage

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"crowdsale/core/types"
	"crowdsale/native/sale"
)

func testAddr(last byte) [20]byte {
	var out [20]byte
	out[19] = last
	return out
}

func TestSaleStoreCountersRoundTrip(t *testing.T) {
	store := NewSaleStore(NewMemDB())

	_, ok, err := store.CountersGet()
	require.NoError(t, err)
	require.False(t, ok)

	counters := &sale.Counters{
		TotalRaised:     big.NewInt(1_234),
		TotalTokensSold: big.NewInt(9_999),
		CurrentTier:     2,
		Active:          true,
		VestingEnabled:  true,
	}
	require.NoError(t, store.CountersPut(counters))

	loaded, ok, err := store.CountersGet()
	require.NoError(t, err)
	require.True(t, ok)
	require.Zero(t, loaded.TotalRaised.Cmp(counters.TotalRaised))
	require.Zero(t, loaded.TotalTokensSold.Cmp(counters.TotalTokensSold))
	require.Equal(t, uint32(2), loaded.CurrentTier)
	require.True(t, loaded.Active)
}

func TestSaleStoreTierIndexing(t *testing.T) {
	store := NewSaleStore(NewMemDB())

	count, err := store.TierCount()
	require.NoError(t, err)
	require.Zero(t, count)

	for i := uint32(0); i < 3; i++ {
		require.NoError(t, store.TierPut(&sale.Tier{
			Index:      i,
			Price:      big.NewInt(int64(i+1) * 1000),
			MaxTokens:  big.NewInt(500),
			TokensSold: big.NewInt(0),
		}))
	}
	count, err = store.TierCount()
	require.NoError(t, err)
	require.Equal(t, uint32(3), count)

	tier, ok, err := store.TierGet(1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Zero(t, tier.Price.Cmp(big.NewInt(2000)))

	// Updating an existing tier must not bump the count.
	tier.TokensSold = big.NewInt(42)
	require.NoError(t, store.TierPut(tier))
	count, err = store.TierCount()
	require.NoError(t, err)
	require.Equal(t, uint32(3), count)

	_, ok, err = store.TierGet(7)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSaleStoreParticipantRoundTrip(t *testing.T) {
	store := NewSaleStore(NewMemDB())
	addr := testAddr(0x01)

	_, ok, err := store.ParticipantGet(addr)
	require.NoError(t, err)
	require.False(t, ok)

	participant := &sale.Participant{
		Address:       addr,
		Whitelisted:   true,
		TotalInvested: big.NewInt(77),
		TotalTokens:   big.NewInt(77_000),
		LockedTokens:  big.NewInt(19_250),
		BonusAccrued:  big.NewInt(0),
		Vesting: &sale.VestingSchedule{
			TotalAmount:    big.NewInt(38_500),
			ReleasedAmount: big.NewInt(100),
			StartTime:      1_000,
			Duration:       3_600,
			Cliff:          600,
		},
		Distributions: []sale.Distribution{
			{Amount: big.NewInt(10), ReleaseTime: 2_000},
			{Amount: big.NewInt(10), ReleaseTime: 3_000, Claimed: true},
		},
	}
	require.NoError(t, store.ParticipantPut(participant))

	loaded, ok, err := store.ParticipantGet(addr)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, loaded.Whitelisted)
	require.Zero(t, loaded.TotalInvested.Cmp(participant.TotalInvested))
	require.NotNil(t, loaded.Vesting)
	require.Zero(t, loaded.Vesting.TotalAmount.Cmp(participant.Vesting.TotalAmount))
	require.Len(t, loaded.Distributions, 2)
	require.True(t, loaded.Distributions[1].Claimed)
}

func TestSaleStoreAccounts(t *testing.T) {
	store := NewSaleStore(NewMemDB())
	addr := testAddr(0x02)

	account, err := store.GetAccount(addr[:])
	require.NoError(t, err)
	require.Nil(t, account)

	require.NoError(t, store.PutAccount(addr[:], &types.Account{
		BalancePayment: big.NewInt(5),
		BalanceToken:   big.NewInt(12),
	}))
	account, err = store.GetAccount(addr[:])
	require.NoError(t, err)
	require.NotNil(t, account)
	require.Zero(t, account.BalancePayment.Cmp(big.NewInt(5)))
	require.Zero(t, account.BalanceToken.Cmp(big.NewInt(12)))
}

func TestSaleStoreBacksEngine(t *testing.T) {
	store := NewSaleStore(NewMemDB())
	engine := sale.NewEngine()
	engine.SetState(store)
	require.NoError(t, engine.SetParams(&sale.Params{
		Owner:      testAddr(0xEE),
		TokenVault: testAddr(0xAA),
		FundsVault: testAddr(0xBB),
		BasePrice:  big.NewInt(1_000),
		HardCap:    big.NewInt(1_000_000),
		StartTime:  0,
	}))
	engine.SetNowFunc(func() int64 { return 10 })

	ownerAddr := testAddr(0xEE)
	_, err := engine.ToggleActive(ownerAddr)
	require.NoError(t, err)

	counters, ok, err := store.CountersGet()
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, counters.Active)
}
