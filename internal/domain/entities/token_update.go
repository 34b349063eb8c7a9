package entities

import (
	"errors"
	"math/big"
)

// UpdateAction is a single field mutation applied to a stored token
type UpdateAction interface {
	updateAction()
	// Field names the mutated field in logs and request payloads
	Field() string
}

// SetValue replaces the fungible amount
type SetValue struct {
	Value *big.Int
}

// SetDisabled sets the hard exclusion flag
type SetDisabled struct {
	Disabled bool
}

// SetNonFungibleBalance reconciles the set of held item identifiers
type SetNonFungibleBalance struct {
	Balance []string
}

// SetName replaces the display name
type SetName struct {
	Name string
}

// SetType replaces the asset kind
type SetType struct {
	Type TokenType
}

// SetHidden toggles visibility. Hiding also clears the sort index.
type SetHidden struct {
	Hidden bool
}

func (SetValue) updateAction()              {}
func (SetDisabled) updateAction()           {}
func (SetNonFungibleBalance) updateAction() {}
func (SetName) updateAction()               {}
func (SetType) updateAction()               {}
func (SetHidden) updateAction()             {}

func (SetValue) Field() string              { return "value" }
func (SetDisabled) Field() string           { return "isDisabled" }
func (SetNonFungibleBalance) Field() string { return "nonFungibleBalance" }
func (SetName) Field() string               { return "name" }
func (SetType) Field() string               { return "type" }
func (SetHidden) Field() string             { return "isHidden" }

// ValidateAction checks that an action carries a usable payload
func ValidateAction(a UpdateAction) error {
	switch act := a.(type) {
	case nil:
		return errors.New("missing update action")
	case SetValue:
		if act.Value == nil {
			return errors.New("value action requires an amount")
		}
		if act.Value.Sign() < 0 {
			return errors.New("value must not be negative")
		}
	case SetType:
		if !act.Type.IsValid() {
			return errors.New("unknown token type " + string(act.Type))
		}
	}
	return nil
}
