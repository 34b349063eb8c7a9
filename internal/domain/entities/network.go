package entities

import "sort"

// Network represents a blockchain the wallet tracks assets on
type Network struct {
	ChainID        int64  `json:"chainId" yaml:"chain_id"`
	Name           string `json:"name" yaml:"name"`
	Symbol         string `json:"symbol" yaml:"symbol"`
	Decimals       int    `json:"decimals" yaml:"decimals"`
	MirrorContract string `json:"mirrorContract,omitempty" yaml:"mirror_contract"`
	IsTestnet      bool   `json:"isTestnet" yaml:"is_testnet"`
}

// HasMirrorContract reports whether the network declares a fungible contract standing in for its native currency
func (n Network) HasMirrorContract() bool {
	return n.MirrorContract != ""
}

// NetworkCatalog is the set of configured networks keyed by chain id
type NetworkCatalog struct {
	byChainID map[int64]Network
}

// NewNetworkCatalog creates a catalog from a list of networks. Later entries win on duplicate chain ids.
func NewNetworkCatalog(networks []Network) *NetworkCatalog {
	c := &NetworkCatalog{byChainID: make(map[int64]Network, len(networks))}
	for _, n := range networks {
		c.byChainID[n.ChainID] = n
	}
	return c
}

// Get returns the network for a chain id
func (c *NetworkCatalog) Get(chainID int64) (Network, bool) {
	n, ok := c.byChainID[chainID]
	return n, ok
}

// All returns every network ordered by chain id
func (c *NetworkCatalog) All() []Network {
	out := make([]Network, 0, len(c.byChainID))
	for _, n := range c.byChainID {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChainID < out[j].ChainID })
	return out
}

// Resolve maps chain ids to networks, skipping unknown ids. An empty input resolves to every network.
func (c *NetworkCatalog) Resolve(chainIDs []int64) ([]Network, []int64) {
	if len(chainIDs) == 0 {
		return c.All(), nil
	}
	var (
		found   []Network
		missing []int64
	)
	for _, id := range chainIDs {
		if n, ok := c.byChainID[id]; ok {
			found = append(found, n)
		} else {
			missing = append(missing, id)
		}
	}
	return found, missing
}

// ChainIDs returns the chain ids of the given networks
func ChainIDs(networks []Network) []int64 {
	ids := make([]int64, 0, len(networks))
	for _, n := range networks {
		ids = append(ids, n.ChainID)
	}
	return ids
}
