package config

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
	"token-registry.backend/internal/domain/entities"
)

// NetworkCatalogFile is the YAML layout of the network catalog
type NetworkCatalogFile struct {
	Networks []entities.Network `yaml:"networks"`
}

// DefaultNetworks is used when no catalog file is configured
func DefaultNetworks() []entities.Network {
	return []entities.Network{
		{ChainID: 1, Name: "Ethereum", Symbol: "ETH", Decimals: 18},
		{ChainID: 10, Name: "Optimism", Symbol: "ETH", Decimals: 18},
		{ChainID: 56, Name: "BNB Smart Chain", Symbol: "BNB", Decimals: 18},
		{ChainID: 137, Name: "Polygon", Symbol: "POL", Decimals: 18, MirrorContract: "0x0000000000000000000000000000000000001010"},
		{ChainID: 8453, Name: "Base", Symbol: "ETH", Decimals: 18},
		{ChainID: 42161, Name: "Arbitrum One", Symbol: "ETH", Decimals: 18},
		{ChainID: 11155111, Name: "Sepolia", Symbol: "ETH", Decimals: 18, IsTestnet: true},
	}
}

// LoadNetworks reads the catalog from a YAML file, or returns the defaults for an empty path
func LoadNetworks(path string) ([]entities.Network, error) {
	if path == "" {
		return DefaultNetworks(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read network catalog: %w", err)
	}

	var file NetworkCatalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse network catalog: %w", err)
	}

	if err := ValidateNetworks(file.Networks); err != nil {
		return nil, err
	}
	return file.Networks, nil
}

// ValidateNetworks validates the catalog
func ValidateNetworks(networks []entities.Network) error {
	if len(networks) == 0 {
		return fmt.Errorf("network catalog is empty")
	}

	seen := make(map[int64]struct{}, len(networks))
	for i, n := range networks {
		if n.ChainID <= 0 {
			return fmt.Errorf("network %d: chain_id must be positive", i)
		}
		if _, dup := seen[n.ChainID]; dup {
			return fmt.Errorf("network %d: duplicate chain_id %d", i, n.ChainID)
		}
		seen[n.ChainID] = struct{}{}

		if n.Symbol == "" {
			return fmt.Errorf("network %d: symbol is required", i)
		}
		if n.Decimals < 0 || n.Decimals > 36 {
			return fmt.Errorf("network %d: decimals must be between 0 and 36", i)
		}
		if n.MirrorContract != "" && !common.IsHexAddress(n.MirrorContract) {
			return fmt.Errorf("network %d: mirror_contract %q is not a hex address", i, n.MirrorContract)
		}
	}
	return nil
}
