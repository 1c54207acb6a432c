package config

import (
	"fmt"
	"os"

	"crowdsale/native/sale"

	"gopkg.in/yaml.v3"
)

// TierSpec is one entry of the tier schedule file. Windowed schedules use
// price/maxTokens/startTime/endTime; discount schedules use
// minPurchase/maxPurchase/discountBps.
type TierSpec struct {
	Price       string `yaml:"price"`
	MaxTokens   string `yaml:"maxTokens"`
	StartTime   int64  `yaml:"startTime"`
	EndTime     int64  `yaml:"endTime"`
	MinPurchase string `yaml:"minPurchase"`
	MaxPurchase string `yaml:"maxPurchase"`
	DiscountBps uint32 `yaml:"discountBps"`
}

type tierFile struct {
	Tiers []TierSpec `yaml:"tiers"`
}

// LoadTiers reads a YAML tier schedule and converts it into engine tiers in
// file order. Indexes are assigned by the engine when the tiers are added.
func LoadTiers(path string) ([]*sale.Tier, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseTiers(raw)
}

// ParseTiers decodes a YAML tier schedule document.
func ParseTiers(raw []byte) ([]*sale.Tier, error) {
	var doc tierFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("tier schedule: %w", err)
	}
	tiers := make([]*sale.Tier, 0, len(doc.Tiers))
	for i, spec := range doc.Tiers {
		tier := &sale.Tier{
			StartTime:   spec.StartTime,
			EndTime:     spec.EndTime,
			DiscountBps: spec.DiscountBps,
		}
		var err error
		if tier.Price, err = parseAmount(fmt.Sprintf("tiers[%d].price", i), spec.Price); err != nil {
			return nil, err
		}
		if tier.MaxTokens, err = parseAmount(fmt.Sprintf("tiers[%d].maxTokens", i), spec.MaxTokens); err != nil {
			return nil, err
		}
		if tier.MinPurchase, err = parseAmount(fmt.Sprintf("tiers[%d].minPurchase", i), spec.MinPurchase); err != nil {
			return nil, err
		}
		if tier.MaxPurchase, err = parseAmount(fmt.Sprintf("tiers[%d].maxPurchase", i), spec.MaxPurchase); err != nil {
			return nil, err
		}
		tiers = append(tiers, tier)
	}
	return tiers, nil
}
