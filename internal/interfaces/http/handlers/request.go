package handlers

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/math"
	"token-registry.backend/internal/domain/entities"
	domainerrors "token-registry.backend/internal/domain/errors"
)

// UpdateFieldRequest is the body of a single field mutation. Field selects which payload member is read.
type UpdateFieldRequest struct {
	Field    string   `json:"field" binding:"required"`
	Value    string   `json:"value,omitempty"`
	Balance  []string `json:"balance,omitempty"`
	Name     string   `json:"name,omitempty"`
	Type     string   `json:"type,omitempty"`
	Disabled *bool    `json:"disabled,omitempty"`
	Hidden   *bool    `json:"hidden,omitempty"`
}

// Action converts the request into a domain update action
func (r UpdateFieldRequest) Action() (entities.UpdateAction, error) {
	switch r.Field {
	case entities.SetValue{}.Field():
		amount, err := parseAmount(r.Value)
		if err != nil {
			return nil, err
		}
		return entities.SetValue{Value: amount}, nil
	case entities.SetNonFungibleBalance{}.Field():
		return entities.SetNonFungibleBalance{Balance: r.Balance}, nil
	case entities.SetName{}.Field():
		return entities.SetName{Name: r.Name}, nil
	case entities.SetType{}.Field():
		return entities.SetType{Type: entities.TokenType(r.Type)}, nil
	case entities.SetDisabled{}.Field():
		if r.Disabled == nil {
			return nil, invalid("disabled is required")
		}
		return entities.SetDisabled{Disabled: *r.Disabled}, nil
	case entities.SetHidden{}.Field():
		if r.Hidden == nil {
			return nil, invalid("hidden is required")
		}
		return entities.SetHidden{Hidden: *r.Hidden}, nil
	}
	return nil, invalid(fmt.Sprintf("unknown field %q", r.Field))
}

// BatchRequest is an ordered list of batch operations
type BatchRequest struct {
	Operations []BatchOperationRequest `json:"operations" binding:"required"`
}

// BatchOperationRequest is the tagged JSON form of a batch operation
type BatchOperationRequest struct {
	Type                    string                `json:"type" binding:"required"`
	Contract                *entities.ContractRef `json:"contract,omitempty"`
	Token                   json.RawMessage       `json:"token,omitempty"`
	CopyBalance             bool                  `json:"copyBalance,omitempty"`
	Name                    string                `json:"name,omitempty"`
	Symbol                  string                `json:"symbol,omitempty"`
	Decimals                int                   `json:"decimals,omitempty"`
	Key                     *entities.Key         `json:"key,omitempty"`
	OnlyIfNoExistingBalance bool                  `json:"onlyIfNoExistingBalance,omitempty"`
	Update                  *UpdateFieldRequest   `json:"update,omitempty"`
}

// Operation converts the request into a domain batch operation
func (r BatchOperationRequest) Operation() (entities.BatchOperation, error) {
	switch r.Type {
	case entities.AddDelegateContract{}.Kind():
		ref, err := r.contract()
		if err != nil {
			return nil, err
		}
		return entities.AddDelegateContract{Contract: ref}, nil
	case entities.AddRemovedContract{}.Kind():
		ref, err := r.contract()
		if err != nil {
			return nil, err
		}
		return entities.AddRemovedContract{Contract: ref}, nil
	case entities.AddHiddenContract{}.Kind():
		ref, err := r.contract()
		if err != nil {
			return nil, err
		}
		return entities.AddHiddenContract{Contract: ref}, nil
	case entities.AddDetectedToken{}.Kind():
		var token entities.ERCToken
		if err := r.decodeToken(&token); err != nil {
			return nil, err
		}
		return entities.AddDetectedToken{Token: token, CopyBalance: r.CopyBalance}, nil
	case entities.AddToken{}.Kind():
		var token entities.Token
		if err := r.decodeToken(&token); err != nil {
			return nil, err
		}
		return entities.AddToken{Token: token}, nil
	case entities.AddFungibleIfAbsent{}.Kind():
		if r.Key == nil {
			return nil, invalid("key is required")
		}
		return entities.AddFungibleIfAbsent{
			Name:                    r.Name,
			Symbol:                  r.Symbol,
			Decimals:                r.Decimals,
			Key:                     *r.Key,
			OnlyIfNoExistingBalance: r.OnlyIfNoExistingBalance,
		}, nil
	case entities.UpdateToken{}.Kind():
		if r.Key == nil || r.Update == nil {
			return nil, invalid("key and update are required")
		}
		action, err := r.Update.Action()
		if err != nil {
			return nil, err
		}
		return entities.UpdateToken{Key: *r.Key, Action: action}, nil
	}
	return nil, invalid(fmt.Sprintf("unknown operation type %q", r.Type))
}

func (r BatchOperationRequest) contract() (entities.ContractRef, error) {
	if r.Contract == nil {
		return entities.ContractRef{}, invalid("contract is required")
	}
	return *r.Contract, nil
}

func (r BatchOperationRequest) decodeToken(v interface{}) error {
	if len(r.Token) == 0 {
		return invalid("token is required")
	}
	if err := json.Unmarshal(r.Token, v); err != nil {
		return invalid("token: " + err.Error())
	}
	return nil
}

// parseAmount accepts decimal or 0x-prefixed hex amounts
func parseAmount(s string) (*big.Int, error) {
	trimmed := strings.TrimSpace(s)
	amount, ok := math.ParseBig256(trimmed)
	if !ok || trimmed == "" {
		return nil, invalid(fmt.Sprintf("invalid amount %q", s))
	}
	return amount, nil
}

// parseChainIDs parses a comma separated chain id list. An empty string means every network.
func parseChainIDs(s string) ([]int64, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, invalid(fmt.Sprintf("invalid chain id %q", p))
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseChainID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, invalid(fmt.Sprintf("invalid chain id %q", s))
	}
	return id, nil
}

func parseKey(s string) (entities.Key, error) {
	key, err := entities.ParseKey(s)
	if err != nil {
		return entities.Key{}, invalid(err.Error())
	}
	return key, nil
}

func invalid(message string) error {
	return domainerrors.NewError(message, domainerrors.ErrInvalidInput)
}
