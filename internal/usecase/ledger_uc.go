package usecase

import (
	"context"
	"fmt"
	"time"

	"ledger-service/internal/domain"
	"ledger-service/internal/repository"
	xerrors "ledger-service/pkg/xerrors"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// LedgerUsecase serves the read side: general ledger views, paginated
// journal entry lists, and account statements.
type LedgerUsecase struct {
	ledgerRepo  repository.LedgerRepository
	journalRepo repository.JournalRepository
	accountRepo repository.AccountRepository
	balanceRepo repository.BalanceRepository
	redisClient *redis.Client
}

func NewLedgerUsecase(
	ledgerRepo repository.LedgerRepository,
	journalRepo repository.JournalRepository,
	accountRepo repository.AccountRepository,
	balanceRepo repository.BalanceRepository,
	redisClient *redis.Client,
) *LedgerUsecase {
	return &LedgerUsecase{
		ledgerRepo:  ledgerRepo,
		journalRepo: journalRepo,
		accountRepo: accountRepo,
		balanceRepo: balanceRepo,
		redisClient: redisClient,
	}
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

// GetGeneralLedger returns one page of the chronological, account-filterable
// view of posted lines with running balances. Pages are 1-indexed; Total is
// the full matching count.
func (uc *LedgerUsecase) GetGeneralLedger(ctx context.Context, companyID string, filter *domain.LedgerFilter) (*domain.GeneralLedger, error) {
	if filter == nil {
		filter = &domain.LedgerFilter{}
	}
	filter.Page, filter.PageSize = normalizePage(filter.Page, filter.PageSize)

	cacheKey := uc.ledgerCacheKey(companyID, filter)

	var cached domain.GeneralLedger
	if cacheGetJSON(ctx, uc.redisClient, cacheKey, &cached) {
		return &cached, nil
	}

	lines, total, err := uc.ledgerRepo.GeneralLedger(ctx, companyID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query general ledger: %w", err)
	}

	result := &domain.GeneralLedger{
		CompanyID: companyID,
		Lines:     lines,
		Page: domain.Page{
			Page:     filter.Page,
			PageSize: filter.PageSize,
			Total:    total,
		},
	}

	cacheSetJSON(ctx, uc.redisClient, cacheKey, result, 1*time.Minute)

	return result, nil
}

// GetJournalEntries returns one page of a company's entries with their lines
func (uc *LedgerUsecase) GetJournalEntries(ctx context.Context, companyID string, filter *domain.EntryFilter) (*domain.EntryPage, error) {
	if filter == nil {
		filter = &domain.EntryFilter{}
	}
	filter.Page, filter.PageSize = normalizePage(filter.Page, filter.PageSize)

	cacheKey := uc.entriesCacheKey(companyID, filter)

	var cached domain.EntryPage
	if cacheGetJSON(ctx, uc.redisClient, cacheKey, &cached) {
		return &cached, nil
	}

	entries, total, err := uc.journalRepo.ListEntries(ctx, companyID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list journal entries: %w", err)
	}

	result := &domain.EntryPage{
		CompanyID: companyID,
		Entries:   entries,
		Page: domain.Page{
			Page:     filter.Page,
			PageSize: filter.PageSize,
			Total:    total,
		},
	}

	cacheSetJSON(ctx, uc.redisClient, cacheKey, result, 30*time.Second)

	return result, nil
}

// GetAccountStatement summarizes one account over a period: opening balance
// walking in, every posted line in the window, and the closing balance.
func (uc *LedgerUsecase) GetAccountStatement(ctx context.Context, companyID string, accountID int64, from, to time.Time) (*domain.AccountStatement, error) {
	account, err := uc.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.CompanyID != companyID {
		return nil, xerrors.ErrNotFound
	}

	beforePeriod := from.Add(-time.Nanosecond)
	opening, err := uc.balanceRepo.SumPostedLines(ctx, accountID, &beforePeriod)
	if err != nil {
		return nil, fmt.Errorf("failed to compute opening balance: %w", err)
	}

	stmt := &domain.AccountStatement{
		Account:        account,
		PeriodStart:    from,
		PeriodEnd:      to,
		OpeningBalance: opening,
		TotalDebits:    decimal.Zero,
		TotalCredits:   decimal.Zero,
	}

	// Walk the window page by page so large periods stay bounded
	filter := &domain.LedgerFilter{
		AccountID: &accountID,
		StartDate: &from,
		EndDate:   &to,
		Page:      1,
		PageSize:  maxPageSize,
	}
	for {
		lines, total, err := uc.ledgerRepo.GeneralLedger(ctx, companyID, filter)
		if err != nil {
			return nil, fmt.Errorf("failed to list statement lines: %w", err)
		}
		stmt.Lines = append(stmt.Lines, lines...)
		if len(stmt.Lines) >= total || len(lines) == 0 {
			break
		}
		filter.Page++
	}

	closing := opening
	for _, l := range stmt.Lines {
		stmt.TotalDebits = stmt.TotalDebits.Add(l.Debit)
		stmt.TotalCredits = stmt.TotalCredits.Add(l.Credit)
		closing = closing.Add(l.Debit.Sub(l.Credit))
	}
	stmt.ClosingBalance = closing

	return stmt, nil
}

// GetEntry fetches a single entry scoped to a company
func (uc *LedgerUsecase) GetEntry(ctx context.Context, companyID string, entryID int64) (*domain.JournalEntry, error) {
	entry, err := uc.journalRepo.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.CompanyID != companyID {
		return nil, xerrors.ErrNotFound
	}
	return entry, nil
}

func (uc *LedgerUsecase) ledgerCacheKey(companyID string, f *domain.LedgerFilter) string {
	key := fmt.Sprintf("ledger:%s", companyID)
	if f.AccountID != nil {
		key += fmt.Sprintf(":acct_%d", *f.AccountID)
	}
	if f.StartDate != nil {
		key += fmt.Sprintf(":from_%d", f.StartDate.Unix())
	}
	if f.EndDate != nil {
		key += fmt.Sprintf(":to_%d", f.EndDate.Unix())
	}
	return key + fmt.Sprintf(":page_%d:size_%d", f.Page, f.PageSize)
}

func (uc *LedgerUsecase) entriesCacheKey(companyID string, f *domain.EntryFilter) string {
	key := fmt.Sprintf("entries:%s", companyID)
	if f.Status != nil {
		key += fmt.Sprintf(":status_%s", *f.Status)
	}
	if f.Reference != nil {
		key += fmt.Sprintf(":ref_%s", *f.Reference)
	}
	if f.StartDate != nil {
		key += fmt.Sprintf(":from_%d", f.StartDate.Unix())
	}
	if f.EndDate != nil {
		key += fmt.Sprintf(":to_%d", f.EndDate.Unix())
	}
	return key + fmt.Sprintf(":page_%d:size_%d", f.Page, f.PageSize)
}
