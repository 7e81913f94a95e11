package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountBalance is the materialized signed total (debits − credits) of an
// account across all posted lines. It is a cache over the journal log, never
// authoritative: a full recompute from the log must always reproduce it.
type AccountBalance struct {
	AccountID int64           `json:"account_id"`
	Balance   decimal.Decimal `json:"balance"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// TrialBalanceRow reports one account on its natural side. Debit-normal
// accounts (asset, expense) show a positive net total as a debit balance,
// credit-normal ones (liability, equity, revenue) as a credit balance; the
// opposite side is zero.
type TrialBalanceRow struct {
	AccountID     int64           `json:"account_id"`
	Code          string          `json:"code"`
	Name          string          `json:"name"`
	Type          AccountType     `json:"type"`
	DebitBalance  decimal.Decimal `json:"debit_balance"`
	CreditBalance decimal.Decimal `json:"credit_balance"`
}

// TrialBalance is the company-wide snapshot; TotalDebit must equal TotalCredit
type TrialBalance struct {
	CompanyID   string             `json:"company_id"`
	AsOf        *time.Time         `json:"as_of,omitempty"`
	Rows        []*TrialBalanceRow `json:"rows"`
	TotalDebit  decimal.Decimal    `json:"total_debit"`
	TotalCredit decimal.Decimal    `json:"total_credit"`
}

// NewTrialBalanceRow places a signed net total on the account's natural side
func NewTrialBalanceRow(a *Account, net decimal.Decimal) *TrialBalanceRow {
	row := &TrialBalanceRow{
		AccountID:     a.ID,
		Code:          a.Code,
		Name:          a.Name,
		Type:          a.Type,
		DebitBalance:  decimal.Zero,
		CreditBalance: decimal.Zero,
	}
	if a.Type.IsDebitNormal() {
		row.DebitBalance = net
	} else {
		row.CreditBalance = net.Neg()
	}
	return row
}
