package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerLine is a posted journal line joined with its parent entry's
// metadata and annotated with the running balance of its account right
// after the line applies.
type LedgerLine struct {
	LineID         int64           `json:"line_id"`
	EntryID        int64           `json:"entry_id"`
	AccountID      int64           `json:"account_id"`
	EntryDate      time.Time       `json:"entry_date"`
	Description    string          `json:"description"`
	Reference      string          `json:"reference"`
	Debit          decimal.Decimal `json:"debit"`
	Credit         decimal.Decimal `json:"credit"`
	Memo           *string         `json:"memo,omitempty"`
	RunningBalance decimal.Decimal `json:"running_balance"`
}

// LedgerFilter selects general-ledger lines. Page is 1-indexed.
type LedgerFilter struct {
	AccountID *int64
	StartDate *time.Time
	EndDate   *time.Time
	Page      int
	PageSize  int
}

// Page carries the pagination contract shared by list responses: Total is
// the full matching count irrespective of pagination.
type Page struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
	Total    int `json:"total"`
}

// GeneralLedger is one page of the chronological ledger view
type GeneralLedger struct {
	CompanyID string        `json:"company_id"`
	Lines     []*LedgerLine `json:"lines"`
	Page      Page          `json:"page"`
}

// EntryPage is one page of journal entries
type EntryPage struct {
	CompanyID string          `json:"company_id"`
	Entries   []*JournalEntry `json:"entries"`
	Page      Page            `json:"page"`
}

// AccountStatement summarizes one account over a period: the balance walking
// in, every posted line inside the window, and the balance walking out.
type AccountStatement struct {
	Account        *Account        `json:"account"`
	PeriodStart    time.Time       `json:"period_start"`
	PeriodEnd      time.Time       `json:"period_end"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	Lines          []*LedgerLine   `json:"lines"`
	TotalDebits    decimal.Decimal `json:"total_debits"`
	TotalCredits   decimal.Decimal `json:"total_credits"`
	ClosingBalance decimal.Decimal `json:"closing_balance"`
}
