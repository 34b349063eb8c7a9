package models

import (
	"time"
)

// Token is the tokens table. The composite primary key is (contract, chain_id).
type Token struct {
	Contract   string `gorm:"type:varchar(42);primaryKey;autoIncrement:false"`
	ChainID    int64  `gorm:"primaryKey;autoIncrement:false"`
	Name       string `gorm:"type:varchar(255);not null;default:''"`
	Symbol     string `gorm:"type:varchar(64);not null;default:''"`
	Decimals   int    `gorm:"not null;default:0"`
	Type       string `gorm:"type:varchar(32);not null;default:'erc20'"`
	Value      string `gorm:"type:varchar(100);not null;default:'0'"` // BigInt as string
	IsCustom   bool   `gorm:"not null;default:false"`
	IsDisabled bool   `gorm:"not null;default:false;index"`
	Visible    bool   `gorm:"not null"`
	SortIndex  *int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (Token) TableName() string {
	return "tokens"
}

// TokenBalance is one held item identifier of a non-fungible token
type TokenBalance struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Contract  string `gorm:"type:varchar(42);not null;index:idx_token_balances_token,priority:1"`
	ChainID   int64  `gorm:"not null;index:idx_token_balances_token,priority:2"`
	Position  int    `gorm:"not null"`
	Item      string `gorm:"type:text;not null"`
	CreatedAt time.Time
}

func (TokenBalance) TableName() string {
	return "token_balances"
}

// RemovedContract marks a contract that no longer applies, e.g. self-destructed
type RemovedContract struct {
	Contract  string `gorm:"type:varchar(42);primaryKey;autoIncrement:false"`
	ChainID   int64  `gorm:"primaryKey;autoIncrement:false"`
	CreatedAt time.Time
}

func (RemovedContract) TableName() string {
	return "removed_contracts"
}

// DelegateContract marks a proxy/delegate contract
type DelegateContract struct {
	Contract  string `gorm:"type:varchar(42);primaryKey;autoIncrement:false"`
	ChainID   int64  `gorm:"primaryKey;autoIncrement:false"`
	CreatedAt time.Time
}

func (DelegateContract) TableName() string {
	return "delegate_contracts"
}

// HiddenContract marks a contract the user hid
type HiddenContract struct {
	Contract  string `gorm:"type:varchar(42);primaryKey;autoIncrement:false"`
	ChainID   int64  `gorm:"primaryKey;autoIncrement:false"`
	CreatedAt time.Time
}

func (HiddenContract) TableName() string {
	return "hidden_contracts"
}

// All returns every model of the token store, in migration order
func All() []interface{} {
	return []interface{}{
		&Token{},
		&TokenBalance{},
		&RemovedContract{},
		&DelegateContract{},
		&HiddenContract{},
	}
}
