package scoring

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tables holds the keyword sets the engine matches against. A profile file
// can replace any of the sets wholesale; unset sets keep their defaults.
type Tables struct {
	HighRisk          []string `yaml:"high_risk"`
	MediumRisk        []string `yaml:"medium_risk"`
	SocialEngineering []string `yaml:"social_engineering"`
	Crypto            []string `yaml:"crypto"`
	Transfer          []string `yaml:"transfer"`
}

// DefaultTables returns the built-in keyword sets.
func DefaultTables() Tables {
	return Tables{
		HighRisk: []string{
			"offshore", "crypto", "bitcoin", "ethereum", "darknet",
			"untraceable", "laundering", "tax evasion", "sanctions",
			"immediately", "urgent", "rush", "today", "asap",
		},
		MediumRisk: []string{
			"verify account", "confirm identity", "update payment",
			"click link", "verify credentials", "supply code",
		},
		SocialEngineering: []string{
			"prize winner", "congratulations", "claim reward",
			"act now", "limited time", "exclusive offer",
		},
		Crypto: []string{
			"crypto", "bitcoin", "ethereum", "blockchain", "wallet",
			"coin", "token", "nft", "defi", "dapp",
		},
		Transfer: []string{
			"transfer", "send", "wire", "deposit", "withdraw",
			"move funds", "transaction",
		},
	}
}

// LoadProfile reads a YAML keyword profile and overlays it on the defaults.
func LoadProfile(path string) (Tables, error) {
	tables := DefaultTables()

	data, err := os.ReadFile(path)
	if err != nil {
		return tables, fmt.Errorf("scoring: read profile %s: %w", path, err)
	}

	var overlay Tables
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return tables, fmt.Errorf("scoring: parse profile %s: %w", path, err)
	}

	if overlay.HighRisk != nil {
		tables.HighRisk = overlay.HighRisk
	}
	if overlay.MediumRisk != nil {
		tables.MediumRisk = overlay.MediumRisk
	}
	if overlay.SocialEngineering != nil {
		tables.SocialEngineering = overlay.SocialEngineering
	}
	if overlay.Crypto != nil {
		tables.Crypto = overlay.Crypto
	}
	if overlay.Transfer != nil {
		tables.Transfer = overlay.Transfer
	}
	return tables, nil
}
