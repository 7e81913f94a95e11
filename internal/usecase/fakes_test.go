package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"ledger-service/internal/domain"
	"ledger-service/internal/pub"
	xerrors "ledger-service/pkg/xerrors"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// memStore is the shared in-memory state behind the fake repositories, so
// the composite ledger fake sees the same journal the others write.
type memStore struct {
	mu            sync.Mutex
	nextAccountID int64
	nextEntryID   int64
	nextLineID    int64
	accounts      map[int64]*domain.Account
	entries       map[int64]*domain.JournalEntry
	balances      map[int64]decimal.Decimal
}

func newMemStore() *memStore {
	return &memStore{
		accounts: make(map[int64]*domain.Account),
		entries:  make(map[int64]*domain.JournalEntry),
		balances: make(map[int64]decimal.Decimal),
	}
}

func copyEntry(e *domain.JournalEntry) *domain.JournalEntry {
	c := *e
	c.Lines = nil
	for _, l := range e.Lines {
		lc := *l
		c.Lines = append(c.Lines, &lc)
	}
	return &c
}

func copyAccount(a *domain.Account) *domain.Account {
	c := *a
	return &c
}

// postedLinesSorted returns every posted line of a company in ledger order:
// entry date, then entry id, then line number.
func (s *memStore) postedLinesSorted(companyID string) []*domain.LedgerLine {
	type sortable struct {
		entry *domain.JournalEntry
		line  *domain.JournalLine
	}
	var all []sortable
	for _, e := range s.entries {
		if e.CompanyID != companyID || e.Status != domain.EntryStatusPosted {
			continue
		}
		for _, l := range e.Lines {
			all = append(all, sortable{entry: e, line: l})
		}
	}
	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if !a.entry.EntryDate.Equal(b.entry.EntryDate) {
			return a.entry.EntryDate.Before(b.entry.EntryDate)
		}
		if a.entry.ID != b.entry.ID {
			return a.entry.ID < b.entry.ID
		}
		return a.line.LineNo < b.line.LineNo
	})

	running := make(map[int64]decimal.Decimal)
	var lines []*domain.LedgerLine
	for _, s := range all {
		running[s.line.AccountID] = running[s.line.AccountID].Add(s.line.Signed())
		lines = append(lines, &domain.LedgerLine{
			LineID:         s.line.ID,
			EntryID:        s.entry.ID,
			AccountID:      s.line.AccountID,
			EntryDate:      s.entry.EntryDate,
			Description:    s.entry.Description,
			Reference:      s.entry.Reference,
			Debit:          s.line.Debit,
			Credit:         s.line.Credit,
			Memo:           s.line.Memo,
			RunningBalance: running[s.line.AccountID],
		})
	}
	return lines
}

// ===============================
// fake account repository
// ===============================

type fakeAccountRepo struct {
	store *memStore
}

func (r *fakeAccountRepo) BeginTx(ctx context.Context) (pgx.Tx, error) { return nil, nil }

func (r *fakeAccountRepo) Create(ctx context.Context, in *domain.AccountCreate) (*domain.Account, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, a := range r.store.accounts {
		if a.CompanyID == in.CompanyID && a.Code == in.Code {
			return nil, xerrors.ErrDuplicateCode
		}
	}

	r.store.nextAccountID++
	now := time.Now().UTC()
	a := &domain.Account{
		ID:        r.store.nextAccountID,
		CompanyID: in.CompanyID,
		Code:      in.Code,
		Name:      in.Name,
		Type:      in.Type,
		ParentID:  in.ParentID,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.store.accounts[a.ID] = a
	return copyAccount(a), nil
}

func (r *fakeAccountRepo) GetByID(ctx context.Context, accountID int64) (*domain.Account, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	a, ok := r.store.accounts[accountID]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return copyAccount(a), nil
}

func (r *fakeAccountRepo) GetByCode(ctx context.Context, companyID, code string) (*domain.Account, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, a := range r.store.accounts {
		if a.CompanyID == companyID && a.Code == code {
			return copyAccount(a), nil
		}
	}
	return nil, xerrors.ErrNotFound
}

func (r *fakeAccountRepo) GetManyByIDs(ctx context.Context, accountIDs []int64) (map[int64]*domain.Account, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	result := make(map[int64]*domain.Account)
	for _, id := range accountIDs {
		if a, ok := r.store.accounts[id]; ok {
			result[id] = copyAccount(a)
		}
	}
	return result, nil
}

func (r *fakeAccountRepo) ListByCompany(ctx context.Context, filter *domain.AccountFilter) ([]*domain.Account, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var accounts []*domain.Account
	for _, a := range r.store.accounts {
		if a.CompanyID != filter.CompanyID {
			continue
		}
		if filter.Type != nil && a.Type != *filter.Type {
			continue
		}
		if filter.IsActive != nil && a.IsActive != *filter.IsActive {
			continue
		}
		if filter.Code != nil && a.Code != *filter.Code {
			continue
		}
		accounts = append(accounts, copyAccount(a))
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Code < accounts[j].Code })
	return accounts, nil
}

func (r *fakeAccountRepo) SetActive(ctx context.Context, accountID int64, active bool) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	a, ok := r.store.accounts[accountID]
	if !ok {
		return xerrors.ErrNotFound
	}
	a.IsActive = active
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *fakeAccountRepo) HasJournalLines(ctx context.Context, accountID int64) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, e := range r.store.entries {
		for _, l := range e.Lines {
			if l.AccountID == accountID {
				return true, nil
			}
		}
	}
	return false, nil
}

// ===============================
// fake journal repository
// ===============================

type fakeJournalRepo struct {
	store *memStore
}

func (r *fakeJournalRepo) BeginTx(ctx context.Context) (pgx.Tx, error) { return nil, nil }

func (r *fakeJournalRepo) CreateEntry(ctx context.Context, e *domain.JournalEntry) error {
	return r.CreateEntryTx(ctx, nil, e)
}

func (r *fakeJournalRepo) CreateEntryTx(ctx context.Context, tx pgx.Tx, e *domain.JournalEntry) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.createLocked(e)
}

func (r *fakeJournalRepo) createLocked(e *domain.JournalEntry) error {
	r.store.nextEntryID++
	e.ID = r.store.nextEntryID
	e.CreatedAt = time.Now().UTC()
	for i, l := range e.Lines {
		r.store.nextLineID++
		l.ID = r.store.nextLineID
		l.EntryID = e.ID
		l.LineNo = i + 1
	}
	r.store.entries[e.ID] = copyEntry(e)
	return nil
}

func (r *fakeJournalRepo) GetEntry(ctx context.Context, entryID int64) (*domain.JournalEntry, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	e, ok := r.store.entries[entryID]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return copyEntry(e), nil
}

func (r *fakeJournalRepo) UpdateStatusTx(ctx context.Context, tx pgx.Tx, entryID int64, from, to domain.EntryStatus) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	e, ok := r.store.entries[entryID]
	if !ok || e.Status != from {
		return xerrors.ErrNotFound
	}
	e.Status = to
	return nil
}

func (r *fakeJournalRepo) ListEntries(ctx context.Context, companyID string, filter *domain.EntryFilter) ([]*domain.JournalEntry, int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var matched []*domain.JournalEntry
	for _, e := range r.store.entries {
		if e.CompanyID != companyID {
			continue
		}
		if filter.Status != nil && e.Status != *filter.Status {
			continue
		}
		if filter.Reference != nil && e.Reference != *filter.Reference {
			continue
		}
		if filter.StartDate != nil && e.EntryDate.Before(*filter.StartDate) {
			continue
		}
		if filter.EndDate != nil && e.EntryDate.After(*filter.EndDate) {
			continue
		}
		matched = append(matched, copyEntry(e))
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].EntryDate.Equal(matched[j].EntryDate) {
			return matched[i].EntryDate.After(matched[j].EntryDate)
		}
		return matched[i].ID > matched[j].ID
	})

	total := len(matched)
	start := (filter.Page - 1) * filter.PageSize
	if start >= total {
		return nil, total, nil
	}
	end := start + filter.PageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

// ===============================
// fake balance repository
// ===============================

type fakeBalanceRepo struct {
	store *memStore
}

func (r *fakeBalanceRepo) Get(ctx context.Context, accountID int64) (*domain.AccountBalance, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return &domain.AccountBalance{
		AccountID: accountID,
		Balance:   r.store.balances[accountID],
		UpdatedAt: time.Now().UTC(),
	}, nil
}

func (r *fakeBalanceRepo) ApplyDeltaTx(ctx context.Context, tx pgx.Tx, accountID int64, delta decimal.Decimal) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.balances[accountID] = r.store.balances[accountID].Add(delta)
	return nil
}

func (r *fakeBalanceRepo) ReplaceCompanyTx(ctx context.Context, tx pgx.Tx, companyID string, totals map[int64]decimal.Decimal) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.replaceLocked(companyID, totals)
	return nil
}

func (r *fakeBalanceRepo) replaceLocked(companyID string, totals map[int64]decimal.Decimal) {
	for id, a := range r.store.accounts {
		if a.CompanyID == companyID {
			delete(r.store.balances, id)
		}
	}
	for id, total := range totals {
		r.store.balances[id] = total
	}
}

func (r *fakeBalanceRepo) SumPostedLines(ctx context.Context, accountID int64, asOf *time.Time) (decimal.Decimal, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	total := decimal.Zero
	for _, e := range r.store.entries {
		if e.Status != domain.EntryStatusPosted {
			continue
		}
		if asOf != nil && e.EntryDate.After(*asOf) {
			continue
		}
		for _, l := range e.Lines {
			if l.AccountID == accountID {
				total = total.Add(l.Signed())
			}
		}
	}
	return total, nil
}

func (r *fakeBalanceRepo) SumPostedByCompany(ctx context.Context, companyID string, asOf *time.Time) (map[int64]decimal.Decimal, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.sumLocked(companyID, asOf), nil
}

func (r *fakeBalanceRepo) sumLocked(companyID string, asOf *time.Time) map[int64]decimal.Decimal {
	totals := make(map[int64]decimal.Decimal)
	for _, e := range r.store.entries {
		if e.CompanyID != companyID || e.Status != domain.EntryStatusPosted {
			continue
		}
		if asOf != nil && e.EntryDate.After(*asOf) {
			continue
		}
		for _, l := range e.Lines {
			totals[l.AccountID] = totals[l.AccountID].Add(l.Signed())
		}
	}
	return totals
}

// ===============================
// fake composite ledger repository
// ===============================

type fakeLedgerRepo struct {
	store *memStore
}

func (r *fakeLedgerRepo) PostEntry(ctx context.Context, entryID int64, deltas map[int64]decimal.Decimal) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	e, ok := r.store.entries[entryID]
	if !ok || e.Status != domain.EntryStatusDraft {
		return xerrors.ErrNotFound
	}
	e.Status = domain.EntryStatusPosted
	for accountID, delta := range deltas {
		r.store.balances[accountID] = r.store.balances[accountID].Add(delta)
	}
	return nil
}

func (r *fakeLedgerRepo) ReverseEntry(ctx context.Context, originalID int64, reversal *domain.JournalEntry) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	original, ok := r.store.entries[originalID]
	if !ok {
		return xerrors.ErrNotFound
	}
	if original.Status != domain.EntryStatusPosted {
		return xerrors.ErrEntryNotPosted
	}
	reversal.Status = domain.EntryStatusPosted
	jr := &fakeJournalRepo{store: r.store}
	if err := jr.createLocked(reversal); err != nil {
		return err
	}
	for accountID, delta := range reversal.AccountDeltas() {
		r.store.balances[accountID] = r.store.balances[accountID].Add(delta)
	}
	return nil
}

func (r *fakeLedgerRepo) CancelEntry(ctx context.Context, entryID int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	e, ok := r.store.entries[entryID]
	if !ok || e.Status != domain.EntryStatusDraft {
		return xerrors.ErrNotFound
	}
	e.Status = domain.EntryStatusCancelled
	return nil
}

func (r *fakeLedgerRepo) RecomputeAll(ctx context.Context, companyID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	br := &fakeBalanceRepo{store: r.store}
	br.replaceLocked(companyID, br.sumLocked(companyID, nil))
	return nil
}

func (r *fakeLedgerRepo) GeneralLedger(ctx context.Context, companyID string, filter *domain.LedgerFilter) ([]*domain.LedgerLine, int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var matched []*domain.LedgerLine
	for _, l := range r.store.postedLinesSorted(companyID) {
		if filter.AccountID != nil && l.AccountID != *filter.AccountID {
			continue
		}
		if filter.StartDate != nil && l.EntryDate.Before(*filter.StartDate) {
			continue
		}
		if filter.EndDate != nil && l.EntryDate.After(*filter.EndDate) {
			continue
		}
		matched = append(matched, l)
	}

	total := len(matched)
	start := (filter.Page - 1) * filter.PageSize
	if start >= total {
		return nil, total, nil
	}
	end := start + filter.PageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

// ===============================
// fake event publisher
// ===============================

type fakePublisher struct {
	mu     sync.Mutex
	events []*pub.LedgerEvent
}

func (p *fakePublisher) Publish(ctx context.Context, event *pub.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) eventTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var types []string
	for _, e := range p.events {
		types = append(types, e.EventType)
	}
	return types
}

// ===============================
// test harness
// ===============================

type ledgerFixture struct {
	store     *memStore
	accountUC *AccountUsecase
	journalUC *JournalUsecase
	balanceUC *BalanceUsecase
	ledgerUC  *LedgerUsecase
	publisher *fakePublisher
}

func newLedgerFixture() *ledgerFixture {
	store := newMemStore()
	accountRepo := &fakeAccountRepo{store: store}
	journalRepo := &fakeJournalRepo{store: store}
	balanceRepo := &fakeBalanceRepo{store: store}
	ledgerRepo := &fakeLedgerRepo{store: store}
	locks := NewCompanyLocks()
	publisher := &fakePublisher{}

	return &ledgerFixture{
		store:     store,
		accountUC: NewAccountUsecase(accountRepo, nil),
		journalUC: NewJournalUsecase(journalRepo, accountRepo, ledgerRepo, locks, nil, publisher),
		balanceUC: NewBalanceUsecase(balanceRepo, accountRepo, ledgerRepo, locks, nil),
		ledgerUC:  NewLedgerUsecase(ledgerRepo, journalRepo, accountRepo, balanceRepo, nil),
		publisher: publisher,
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func (f *ledgerFixture) mustAccount(companyID, code, name string, accountType domain.AccountType) *domain.Account {
	a, err := f.accountUC.CreateAccount(context.Background(), &domain.AccountCreate{
		CompanyID: companyID,
		Code:      code,
		Name:      name,
		Type:      accountType,
	})
	if err != nil {
		panic(err)
	}
	return a
}

func (f *ledgerFixture) mustEntry(companyID string, entryDate time.Time, description string, lines ...*domain.JournalLineCreate) *domain.JournalEntry {
	e, err := f.journalUC.CreateEntry(context.Background(), &domain.JournalEntryCreate{
		CompanyID:   companyID,
		EntryDate:   entryDate,
		Description: description,
		Lines:       lines,
	})
	if err != nil {
		panic(err)
	}
	return e
}

func debitLine(accountID int64, amount string) *domain.JournalLineCreate {
	return &domain.JournalLineCreate{AccountID: accountID, Debit: dec(amount), Credit: decimal.Zero}
}

func creditLine(accountID int64, amount string) *domain.JournalLineCreate {
	return &domain.JournalLineCreate{AccountID: accountID, Debit: decimal.Zero, Credit: dec(amount)}
}
