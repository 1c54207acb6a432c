package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"crowdsale/crypto"
	"crowdsale/native/sale"

	"github.com/BurntSushi/toml"
)

type Config struct {
	RPCAddress   string `toml:"RPCAddress"`
	DataDir      string `toml:"DataDir"`
	OwnerKeyPath string `toml:"OwnerKeyPath"`
	RPCJWTSecret string `toml:"RPCJWTSecret"`
	TiersFile    string `toml:"TiersFile"`

	OwnerAddress      string `toml:"OwnerAddress"`
	TokenVaultAddress string `toml:"TokenVaultAddress"`
	FundsVaultAddress string `toml:"FundsVaultAddress"`

	BasePrice     string `toml:"BasePrice"`
	SoftCap       string `toml:"SoftCap"`
	HardCap       string `toml:"HardCap"`
	MinInvestment string `toml:"MinInvestment"`
	MaxInvestment string `toml:"MaxInvestment"`

	StartTime int64 `toml:"StartTime"`
	EndTime   int64 `toml:"EndTime"`

	ReleasePolicy string `toml:"ReleasePolicy"`
	TierModel     string `toml:"TierModel"`

	CooldownSeconds int64  `toml:"CooldownSeconds"`
	ReferralBps     uint32 `toml:"ReferralBps"`
	ImmediateBps    uint32 `toml:"ImmediateBps"`
	LockupBps       uint32 `toml:"LockupBps"`
	VestingCliff    int64  `toml:"VestingCliff"`
	VestingDuration int64  `toml:"VestingDuration"`
	LockupDuration  int64  `toml:"LockupDuration"`
}

// Load loads the configuration from the given path.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if err := ensureOwnerKey(path, cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = ":8545"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./sale-data"
	}

	return cfg, nil
}

// ensureOwnerKey generates and persists an owner key when the config does not
// name an owner address, and fills OwnerAddress from the key.
func ensureOwnerKey(configPath string, cfg *Config) error {
	if strings.TrimSpace(cfg.OwnerAddress) != "" {
		return nil
	}

	keyPath := cfg.OwnerKeyPath
	if keyPath == "" {
		keyPath = defaultKeyPath(configPath)
	}

	var key *crypto.PrivateKey
	if _, err := os.Stat(keyPath); os.IsNotExist(err) {
		key, err = crypto.GeneratePrivateKey()
		if err != nil {
			return err
		}
		if err := crypto.SaveToFile(keyPath, key); err != nil {
			return err
		}
	} else if err != nil {
		return err
	} else {
		key, err = crypto.LoadFromFile(keyPath)
		if err != nil {
			return err
		}
	}

	cfg.OwnerAddress = key.PubKey().Address().String()
	if cfg.OwnerKeyPath != keyPath {
		cfg.OwnerKeyPath = keyPath
		return persist(configPath, cfg)
	}
	return nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}

	keyPath := defaultKeyPath(path)
	if err := crypto.SaveToFile(keyPath, key); err != nil {
		return nil, err
	}

	cfg := &Config{
		RPCAddress:    ":8545",
		DataDir:       "./sale-data",
		OwnerKeyPath:  keyPath,
		OwnerAddress:  key.PubKey().Address().String(),
		BasePrice:     "1000000000000000",
		HardCap:       "100000000000000000000",
		ReleasePolicy: "vesting",
		TierModel:     "discount",
	}

	if err := persist(path, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func defaultKeyPath(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), "owner.key")
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// SaleParams converts the file representation into engine parameters. Numeric
// strings are decimal wei amounts; policy and model names are matched
// case-insensitively.
func (c *Config) SaleParams() (*sale.Params, error) {
	params := &sale.Params{
		StartTime:       c.StartTime,
		EndTime:         c.EndTime,
		CooldownSeconds: c.CooldownSeconds,
		ReferralBps:     c.ReferralBps,
		ImmediateBps:    c.ImmediateBps,
		LockupBps:       c.LockupBps,
		VestingCliff:    c.VestingCliff,
		VestingDuration: c.VestingDuration,
		LockupDuration:  c.LockupDuration,
	}

	var err error
	if params.Owner, err = parseAddress("OwnerAddress", c.OwnerAddress); err != nil {
		return nil, err
	}
	if params.TokenVault, err = parseAddress("TokenVaultAddress", c.TokenVaultAddress); err != nil {
		return nil, err
	}
	if params.FundsVault, err = parseAddress("FundsVaultAddress", c.FundsVaultAddress); err != nil {
		return nil, err
	}

	if params.BasePrice, err = parseAmount("BasePrice", c.BasePrice); err != nil {
		return nil, err
	}
	if params.SoftCap, err = parseAmount("SoftCap", c.SoftCap); err != nil {
		return nil, err
	}
	if params.HardCap, err = parseAmount("HardCap", c.HardCap); err != nil {
		return nil, err
	}
	if params.MinInvestment, err = parseAmount("MinInvestment", c.MinInvestment); err != nil {
		return nil, err
	}
	if params.MaxInvestment, err = parseAmount("MaxInvestment", c.MaxInvestment); err != nil {
		return nil, err
	}

	switch strings.ToLower(strings.TrimSpace(c.ReleasePolicy)) {
	case "", "vesting":
		params.ReleasePolicy = sale.PolicyVesting
	case "staged":
		params.ReleasePolicy = sale.PolicyStaged
	default:
		return nil, fmt.Errorf("unknown ReleasePolicy %q", c.ReleasePolicy)
	}

	switch strings.ToLower(strings.TrimSpace(c.TierModel)) {
	case "windowed":
		params.TierModel = sale.TierModelWindowed
	case "", "discount":
		params.TierModel = sale.TierModelDiscount
	default:
		return nil, fmt.Errorf("unknown TierModel %q", c.TierModel)
	}

	return params, nil
}

func parseAddress(field, value string) ([20]byte, error) {
	if strings.TrimSpace(value) == "" {
		return [20]byte{}, nil
	}
	addr, err := crypto.DecodeAddress(value)
	if err != nil {
		return [20]byte{}, fmt.Errorf("%s: %w", field, err)
	}
	return [20]byte(addr), nil
}

func parseAmount(field, value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("%s: %q is not a non-negative decimal amount", field, value)
	}
	return amount, nil
}
