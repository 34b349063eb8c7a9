// Package predicates holds token identity normalization and the filters every token query is built from.
package predicates

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"token-registry.backend/internal/domain/entities"
)

// CanonicalAddress normalizes a contract address to its EIP-55 checksum form.
// An empty address stays empty; it is stored but never listed.
func CanonicalAddress(addr string) (string, error) {
	a := strings.TrimSpace(addr)
	if a == "" {
		return "", nil
	}
	if !strings.HasPrefix(a, "0x") && !strings.HasPrefix(a, "0X") {
		a = "0x" + a
	}
	a = strings.ToLower(a)
	if !common.IsHexAddress(a) {
		return "", fmt.Errorf("invalid contract address: %q", addr)
	}
	return common.HexToAddress(a).Hex(), nil
}

// CanonicalKey normalizes the address and pairs it with the chain id
func CanonicalKey(addr string, chainID int64) (entities.Key, error) {
	contract, err := CanonicalAddress(addr)
	if err != nil {
		return entities.Key{}, err
	}
	return entities.Key{Contract: contract, ChainID: chainID}, nil
}

// SameContract compares two addresses ignoring checksum casing
func SameContract(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// Filter is a conjunction of token conditions. Zero fields do not constrain.
type Filter struct {
	ChainIDs         []int64
	IsDisabled       *bool
	NonEmptyContract bool
	Contract         string
}

// Matches evaluates the filter against a token
func (f Filter) Matches(t *entities.Token) bool {
	if f.ChainIDs != nil && !containsChain(f.ChainIDs, t.ChainID) {
		return false
	}
	if f.IsDisabled != nil && t.IsDisabled != *f.IsDisabled {
		return false
	}
	if f.NonEmptyContract && t.Contract == "" {
		return false
	}
	if f.Contract != "" && t.Contract != f.Contract {
		return false
	}
	return true
}

// ChainSet returns the filter's chain ids as a set. Nil means every chain.
func (f Filter) ChainSet() map[int64]struct{} {
	if f.ChainIDs == nil {
		return nil
	}
	set := make(map[int64]struct{}, len(f.ChainIDs))
	for _, id := range f.ChainIDs {
		set[id] = struct{}{}
	}
	return set
}

// FilterEnabled matches tokens on the given chains whose disabled flag equals disabled and whose contract is non-empty
func FilterEnabled(chainIDs []int64, disabled bool) Filter {
	ids := chainIDs
	if ids == nil {
		ids = []int64{}
	}
	return Filter{
		ChainIDs:         ids,
		IsDisabled:       &disabled,
		NonEmptyContract: true,
	}
}

// NonEmptyContractOn matches every token with a contract on one chain
func NonEmptyContractOn(chainID int64) Filter {
	return Filter{ChainIDs: []int64{chainID}, NonEmptyContract: true}
}

// ByContract matches a contract on any chain
func ByContract(contract string) Filter {
	return Filter{Contract: contract}
}

// MaskNativeWhenMirrored drops a network's native placeholder when the network's mirror contract is also present.
// Other tokens, including other networks' placeholders, are kept.
func MaskNativeWhenMirrored(networks []entities.Network, tokens []*entities.Token) []*entities.Token {
	masked := make(map[int64]struct{})
	for _, n := range networks {
		if !n.HasMirrorContract() {
			continue
		}
		hasPlaceholder, hasMirror := false, false
		for _, t := range tokens {
			if t.ChainID != n.ChainID {
				continue
			}
			if t.IsNativePlaceholder() {
				hasPlaceholder = true
			} else if SameContract(t.Contract, n.MirrorContract) {
				hasMirror = true
			}
		}
		if hasPlaceholder && hasMirror {
			masked[n.ChainID] = struct{}{}
		}
	}
	if len(masked) == 0 {
		return tokens
	}

	out := make([]*entities.Token, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := masked[t.ChainID]; ok && t.IsNativePlaceholder() {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Less orders tokens by chain id then contract, the order every listing and snapshot uses
func Less(a, b *entities.Token) bool {
	if a.ChainID != b.ChainID {
		return a.ChainID < b.ChainID
	}
	return a.Contract < b.Contract
}

// Sort orders tokens in place
func Sort(tokens []*entities.Token) {
	sort.SliceStable(tokens, func(i, j int) bool { return Less(tokens[i], tokens[j]) })
}

func containsChain(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
