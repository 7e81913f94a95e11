package domain

import (
	"time"
)

// AccountType classifies an account within the chart of accounts
type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeEquity    AccountType = "equity"
	AccountTypeRevenue   AccountType = "revenue"
	AccountTypeExpense   AccountType = "expense"
)

// AccountTypes lists every valid type in display order
var AccountTypes = []AccountType{
	AccountTypeAsset,
	AccountTypeLiability,
	AccountTypeEquity,
	AccountTypeRevenue,
	AccountTypeExpense,
}

// IsValid checks the type against the enumerated set
func (t AccountType) IsValid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity,
		AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// IsDebitNormal returns true when a positive net balance sits on the debit side
func (t AccountType) IsDebitNormal() bool {
	return t == AccountTypeAsset || t == AccountTypeExpense
}

// Account represents one node in a company's chart of accounts
type Account struct {
	ID        int64       `json:"id"`
	CompanyID string      `json:"company_id"`
	Code      string      `json:"code"` // unique within company
	Name      string      `json:"name"`
	Type      AccountType `json:"type"`
	ParentID  *int64      `json:"parent_id,omitempty"`
	IsActive  bool        `json:"is_active"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// AccountCreate represents data needed to create a new account
type AccountCreate struct {
	CompanyID string
	Code      string
	Name      string
	Type      AccountType
	ParentID  *int64
}

// AccountNode is an account with its children, used by the tree view
type AccountNode struct {
	Account  *Account       `json:"account"`
	Children []*AccountNode `json:"children,omitempty"`
}

// AccountTree groups the active accounts of a company by type, children
// nested under parents, parentless accounts at the root of their type group
type AccountTree struct {
	CompanyID string                         `json:"company_id"`
	Groups    map[AccountType][]*AccountNode `json:"groups"`
}

// AccountFilter represents filter criteria for account queries
type AccountFilter struct {
	CompanyID string
	Type      *AccountType
	IsActive  *bool
	Code      *string
}
