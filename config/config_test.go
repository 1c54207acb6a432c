package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"crowdsale/native/sale"
)

func TestLoadCreatesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sale.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":8545", cfg.RPCAddress)
	require.NotEmpty(t, cfg.OwnerAddress)
	require.FileExists(t, path)
	require.FileExists(t, cfg.OwnerKeyPath)

	// A second load must reuse the generated key, not mint a new one.
	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.OwnerAddress, reloaded.OwnerAddress)
}

func TestSaleParamsConversion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sale.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
RPCAddress = ":9000"
OwnerAddress = "0x00000000000000000000000000000000000000ee"
TokenVaultAddress = "0x00000000000000000000000000000000000000aa"
FundsVaultAddress = "0x00000000000000000000000000000000000000bb"
BasePrice = "1000000000000000"
SoftCap = "10000000000000000000"
HardCap = "100000000000000000000"
StartTime = 1000
EndTime = 2000
ReleasePolicy = "staged"
TierModel = "windowed"
ReferralBps = 250
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.RPCAddress)

	params, err := cfg.SaleParams()
	require.NoError(t, err)
	require.Equal(t, sale.PolicyStaged, params.ReleasePolicy)
	require.Equal(t, sale.TierModelWindowed, params.TierModel)
	require.Equal(t, byte(0xEE), params.Owner[19])
	require.Equal(t, "1000000000000000", params.BasePrice.String())
	require.Equal(t, int64(1000), params.StartTime)
	require.Equal(t, uint32(250), params.ReferralBps)

	require.NoError(t, params.Normalize().Validate())
}

func TestSaleParamsRejectsBadValues(t *testing.T) {
	cfg := &Config{HardCap: "not-a-number"}
	_, err := cfg.SaleParams()
	require.Error(t, err)

	cfg = &Config{OwnerAddress: "0x123"}
	_, err = cfg.SaleParams()
	require.Error(t, err)

	cfg = &Config{ReleasePolicy: "cliffhanger"}
	_, err = cfg.SaleParams()
	require.Error(t, err)
}

func TestParseTiers(t *testing.T) {
	tiers, err := ParseTiers([]byte(`
tiers:
  - price: "2000000000000000"
    maxTokens: "500000000000000000000"
    startTime: 1000
    endTime: 2000
  - price: "3000000000000000"
    maxTokens: "500000000000000000000"
    startTime: 2000
    endTime: 3000
`))
	require.NoError(t, err)
	require.Len(t, tiers, 2)
	require.Equal(t, "2000000000000000", tiers[0].Price.String())
	require.Equal(t, int64(3000), tiers[1].EndTime)

	_, err = ParseTiers([]byte("tiers:\n  - price: \"banana\"\n"))
	require.Error(t, err)
}
