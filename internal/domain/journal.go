package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryStatus represents the lifecycle state of a journal entry
type EntryStatus string

const (
	EntryStatusDraft     EntryStatus = "draft"
	EntryStatusPosted    EntryStatus = "posted"
	EntryStatusCancelled EntryStatus = "cancelled"
)

// IsValid checks the status against the enumerated set
func (s EntryStatus) IsValid() bool {
	switch s {
	case EntryStatusDraft, EntryStatusPosted, EntryStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether the status may move to next. Posted and
// cancelled are terminal; a reversal is a new entry, never a mutation of
// the original.
func (s EntryStatus) CanTransitionTo(next EntryStatus) bool {
	if s != EntryStatusDraft {
		return false
	}
	return next == EntryStatusPosted || next == EntryStatusCancelled
}

// BalanceTolerance absorbs floating rounding on the debit/credit equality
// check: 0.01 currency units, absolute.
var BalanceTolerance = decimal.NewFromFloat(0.01)

// JournalEntry represents a double-entry transaction header with its lines
type JournalEntry struct {
	ID          int64          `json:"id"`
	CompanyID   string         `json:"company_id"`
	EntryDate   time.Time      `json:"entry_date"`
	Description string         `json:"description"`
	Reference   string         `json:"reference"`
	Status      EntryStatus    `json:"status"`
	ReversalOf  *int64         `json:"reversal_of,omitempty"`
	Lines       []*JournalLine `json:"lines"`
	CreatedAt   time.Time      `json:"created_at"`
}

// JournalLine is a single debit or credit against one account. A line is
// owned by its entry and is written and read together with it. Order within
// the entry is display order only.
type JournalLine struct {
	ID        int64           `json:"id"`
	EntryID   int64           `json:"entry_id"`
	AccountID int64           `json:"account_id"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
	Memo      *string         `json:"memo,omitempty"`
	LineNo    int             `json:"line_no"`
}

// Signed returns the line's effect on its account balance (debit − credit)
func (l *JournalLine) Signed() decimal.Decimal {
	return l.Debit.Sub(l.Credit)
}

// IsDebit reports whether the line carries a debit amount
func (l *JournalLine) IsDebit() bool {
	return l.Debit.IsPositive()
}

// JournalEntryCreate represents data needed to create a new draft entry
type JournalEntryCreate struct {
	CompanyID   string
	EntryDate   time.Time
	Description string
	Reference   string
	Lines       []*JournalLineCreate
}

// JournalLineCreate is one requested line of a new entry
type JournalLineCreate struct {
	AccountID int64
	Debit     decimal.Decimal
	Credit    decimal.Decimal
	Memo      *string
}

// Totals returns the entry's summed debits and credits
func (e *JournalEntry) Totals() (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, l := range e.Lines {
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	return debit, credit
}

// Delta returns |Σdebit − Σcredit| for the entry
func (e *JournalEntry) Delta() decimal.Decimal {
	debit, credit := e.Totals()
	return debit.Sub(credit).Abs()
}

// IsBalanced reports whether the entry balances within tolerance
func (e *JournalEntry) IsBalanced() bool {
	return e.Delta().LessThanOrEqual(BalanceTolerance)
}

// AccountDeltas sums the signed effect per distinct account. Lines on the
// same account stay individual records; only their balance impact is additive.
func (e *JournalEntry) AccountDeltas() map[int64]decimal.Decimal {
	deltas := make(map[int64]decimal.Decimal, len(e.Lines))
	for _, l := range e.Lines {
		deltas[l.AccountID] = deltas[l.AccountID].Add(l.Signed())
	}
	return deltas
}

// EntryFilter represents filter criteria for journal entry queries
type EntryFilter struct {
	Status    *EntryStatus
	Reference *string
	StartDate *time.Time
	EndDate   *time.Time
	Page      int
	PageSize  int
}
