package entities

import (
	"errors"
	"fmt"
)

// BatchOperation is one item of an ordered list of mutations applied in a single transaction
type BatchOperation interface {
	batchOperation()
	// Kind identifies the operation in results, logs and metrics
	Kind() string
	// Validate rejects malformed operations before the transaction opens
	Validate() error
}

// AddDelegateContract records a proxy/delegate contract
type AddDelegateContract struct {
	Contract ContractRef
}

// AddDetectedToken upserts a detected contract, optionally copying its item ids
type AddDetectedToken struct {
	Token       ERCToken
	CopyBalance bool
}

// AddRemovedContract records a contract that no longer applies
type AddRemovedContract struct {
	Contract ContractRef
}

// AddHiddenContract records a contract the user hid
type AddHiddenContract struct {
	Contract ContractRef
}

// AddToken upserts a fully formed token record
type AddToken struct {
	Token Token
}

// AddFungibleIfAbsent upserts an erc20 token, keeping the stored amount. With OnlyIfNoExistingBalance set,
// a stored non-zero amount skips the insert.
type AddFungibleIfAbsent struct {
	Name                    string
	Symbol                  string
	Decimals                int
	Key                     Key
	OnlyIfNoExistingBalance bool
}

// UpdateToken applies a single field mutation to a stored token
type UpdateToken struct {
	Key    Key
	Action UpdateAction
}

func (AddDelegateContract) batchOperation() {}
func (AddDetectedToken) batchOperation()    {}
func (AddRemovedContract) batchOperation()  {}
func (AddHiddenContract) batchOperation()   {}
func (AddToken) batchOperation()            {}
func (AddFungibleIfAbsent) batchOperation() {}
func (UpdateToken) batchOperation()         {}

func (AddDelegateContract) Kind() string { return "addDelegateContract" }
func (AddDetectedToken) Kind() string    { return "addDetectedToken" }
func (AddRemovedContract) Kind() string  { return "addRemovedContract" }
func (AddHiddenContract) Kind() string   { return "addHiddenContract" }
func (AddToken) Kind() string            { return "addToken" }
func (AddFungibleIfAbsent) Kind() string { return "addFungibleIfAbsent" }
func (UpdateToken) Kind() string         { return "updateToken" }

var errMissingChainID = errors.New("chain id is required")

func validateRef(contract string, chainID int64) error {
	if chainID <= 0 {
		return errMissingChainID
	}
	if contract == "" {
		return errors.New("contract address is required")
	}
	return nil
}

func (o AddDelegateContract) Validate() error {
	return validateRef(o.Contract.Contract, o.Contract.ChainID)
}

func (o AddDetectedToken) Validate() error {
	if err := validateRef(o.Token.Contract, o.Token.ChainID); err != nil {
		return err
	}
	if !o.Token.Type.IsValid() {
		return fmt.Errorf("unknown token type %q", o.Token.Type)
	}
	return nil
}

func (o AddRemovedContract) Validate() error {
	return validateRef(o.Contract.Contract, o.Contract.ChainID)
}

func (o AddHiddenContract) Validate() error {
	return validateRef(o.Contract.Contract, o.Contract.ChainID)
}

func (o AddToken) Validate() error {
	if o.Token.ChainID <= 0 {
		return errMissingChainID
	}
	if !o.Token.Type.IsValid() {
		return fmt.Errorf("unknown token type %q", o.Token.Type)
	}
	return nil
}

func (o AddFungibleIfAbsent) Validate() error {
	if err := validateRef(o.Key.Contract, o.Key.ChainID); err != nil {
		return err
	}
	if o.Decimals < 0 {
		return errors.New("decimals must not be negative")
	}
	return nil
}

func (o UpdateToken) Validate() error {
	if err := validateRef(o.Key.Contract, o.Key.ChainID); err != nil {
		return err
	}
	return ValidateAction(o.Action)
}

// BatchItemResult reports the outcome of one batch operation
type BatchItemResult struct {
	Index   int    `json:"index"`
	Kind    string `json:"kind"`
	Key     *Key   `json:"key,omitempty"`
	Changed bool   `json:"changed"`
	Skipped bool   `json:"skipped"`
	Found   bool   `json:"found"`
	Token   *Token `json:"token,omitempty"`
	Error   string `json:"error,omitempty"`
}

// BatchResult is the aggregate outcome of a batch. Applied is false when nothing was committed.
type BatchResult struct {
	Applied bool              `json:"applied"`
	Items   []BatchItemResult `json:"items"`
}

// Changed reports whether any item changed stored state
func (r *BatchResult) Changed() bool {
	for _, it := range r.Items {
		if it.Changed {
			return true
		}
	}
	return false
}
