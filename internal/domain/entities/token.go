package entities

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/volatiletech/null/v8"
)

// NativeCryptoAddress is the sentinel contract address of a network's native currency placeholder
const NativeCryptoAddress = "0x0000000000000000000000000000000000000000"

// TokenType represents the asset kind of a token
type TokenType string

const (
	TokenTypeNative           TokenType = "nativeCryptocurrency"
	TokenTypeERC20            TokenType = "erc20"
	TokenTypeERC875           TokenType = "erc875"
	TokenTypeERC721           TokenType = "erc721"
	TokenTypeERC721ForTickets TokenType = "erc721ForTickets"
	TokenTypeERC1155          TokenType = "erc1155"
)

// IsValid reports whether the type is a known asset kind
func (t TokenType) IsValid() bool {
	switch t {
	case TokenTypeNative, TokenTypeERC20, TokenTypeERC875, TokenTypeERC721, TokenTypeERC721ForTickets, TokenTypeERC1155:
		return true
	}
	return false
}

// IsFungible reports whether the balance is a single numeric amount
func (t TokenType) IsFungible() bool {
	return t == TokenTypeNative || t == TokenTypeERC20
}

// IsNonFungible reports whether the balance is a set of item identifiers
func (t TokenType) IsNonFungible() bool {
	return t.IsValid() && !t.IsFungible()
}

// ShouldUpdateBalanceWhenDetected reports whether a freshly detected contract of this kind carries its item ids
func (t TokenType) ShouldUpdateBalanceWhenDetected() bool {
	switch t {
	case TokenTypeERC875, TokenTypeERC721ForTickets, TokenTypeERC1155:
		return true
	}
	return false
}

// Key is the composite identity of a token: canonical contract address and chain id
type Key struct {
	Contract string `json:"contract"`
	ChainID  int64  `json:"chainId"`
}

// String returns the primary key form "<contract>-<chainId>"
func (k Key) String() string {
	return k.Contract + "-" + strconv.FormatInt(k.ChainID, 10)
}

// ParseKey parses the "<contract>-<chainId>" form. The contract part is not canonicalized.
func ParseKey(s string) (Key, error) {
	i := strings.LastIndex(s, "-")
	if i < 0 {
		return Key{}, fmt.Errorf("invalid token key %q", s)
	}
	chainID, err := strconv.ParseInt(s[i+1:], 10, 64)
	if err != nil {
		return Key{}, fmt.Errorf("invalid chain id in token key %q: %w", s, err)
	}
	return Key{Contract: s[:i], ChainID: chainID}, nil
}

// Token is a stored asset balance and its metadata
type Token struct {
	Contract   string    `json:"contract"`
	ChainID    int64     `json:"chainId"`
	Name       string    `json:"name"`
	Symbol     string    `json:"symbol"`
	Decimals   int       `json:"decimals"`
	Type       TokenType `json:"type"`
	Value      string    `json:"value"`
	Balance    []string  `json:"balance,omitempty"`
	IsCustom   bool      `json:"isCustom"`
	IsDisabled bool      `json:"isDisabled"`
	Visible    bool      `json:"visible"`
	SortIndex  null.Int  `json:"sortIndex"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Key returns the identity of the token
func (t *Token) Key() Key {
	return Key{Contract: t.Contract, ChainID: t.ChainID}
}

// IsNativePlaceholder reports whether the token is the reserved native currency record
func (t *Token) IsNativePlaceholder() bool {
	return strings.EqualFold(t.Contract, NativeCryptoAddress)
}

// Clone returns a deep copy of the token
func (t *Token) Clone() *Token {
	c := *t
	if t.Balance != nil {
		c.Balance = append([]string(nil), t.Balance...)
	}
	return &c
}

// NewNativeToken builds the canonical native currency placeholder for a network
func NewNativeToken(n Network) *Token {
	return &Token{
		Contract: NativeCryptoAddress,
		ChainID:  n.ChainID,
		Name:     n.Name,
		Symbol:   n.Symbol,
		Decimals: n.Decimals,
		Type:     TokenTypeNative,
		Value:    "0",
		Visible:  true,
	}
}

// ContractRef identifies a contract on a network. Used for removed, delegate and hidden contract markers.
type ContractRef struct {
	Contract string `json:"contract"`
	ChainID  int64  `json:"chainId"`
}

// Key returns the ref as a token key
func (r ContractRef) Key() Key {
	return Key{Contract: r.Contract, ChainID: r.ChainID}
}

// ERCToken describes a contract found by detection or added by the user
type ERCToken struct {
	Contract string    `json:"contract"`
	ChainID  int64     `json:"chainId"`
	Name     string    `json:"name"`
	Symbol   string    `json:"symbol"`
	Decimals int       `json:"decimals"`
	Type     TokenType `json:"type"`
	Balance  []string  `json:"balance,omitempty"`
}

// ToToken converts the descriptor into a custom token. Item ids are copied only when copyBalance is set.
func (e ERCToken) ToToken(copyBalance bool) *Token {
	t := &Token{
		Contract: e.Contract,
		ChainID:  e.ChainID,
		Name:     e.Name,
		Symbol:   e.Symbol,
		Decimals: e.Decimals,
		Type:     e.Type,
		Value:    "0",
		IsCustom: true,
		Visible:  true,
	}
	if copyBalance && len(e.Balance) > 0 {
		t.Balance = append([]string(nil), e.Balance...)
	}
	return t
}

// TokenUpdate is a metadata-only upsert. Balance, flags and order of an existing record are left untouched.
type TokenUpdate struct {
	Contract string    `json:"contract"`
	ChainID  int64     `json:"chainId"`
	Name     string    `json:"name"`
	Symbol   string    `json:"symbol"`
	Decimals int       `json:"decimals"`
	Type     TokenType `json:"type"`
}

// Key returns the identity the update applies to
func (u TokenUpdate) Key() Key {
	return Key{Contract: u.Contract, ChainID: u.ChainID}
}
