package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ledger-service/internal/domain"
	"ledger-service/internal/pub"
	"ledger-service/internal/repository"
	"ledger-service/pkg/utils"
	xerrors "ledger-service/pkg/xerrors"

	"github.com/redis/go-redis/v9"
)

// EventPublisher is satisfied by pub.LedgerEventPublisher
type EventPublisher interface {
	Publish(ctx context.Context, event *pub.LedgerEvent) error
}

// JournalUsecase validates and commits journal entries and drives the
// draft/posted/cancelled lifecycle. Posting and reversing serialize per
// company through the shared lock registry.
type JournalUsecase struct {
	journalRepo repository.JournalRepository
	accountRepo repository.AccountRepository
	ledgerRepo  repository.LedgerRepository
	locks       *CompanyLocks
	redisClient *redis.Client
	publisher   EventPublisher
	refGen      *utils.EntryReferenceGenerator
}

func NewJournalUsecase(
	journalRepo repository.JournalRepository,
	accountRepo repository.AccountRepository,
	ledgerRepo repository.LedgerRepository,
	locks *CompanyLocks,
	redisClient *redis.Client,
	publisher EventPublisher,
) *JournalUsecase {
	return &JournalUsecase{
		journalRepo: journalRepo,
		accountRepo: accountRepo,
		ledgerRepo:  ledgerRepo,
		locks:       locks,
		redisClient: redisClient,
		publisher:   publisher,
		refGen:      utils.NewEntryReferenceGenerator(),
	}
}

// CreateEntry validates and persists a new draft entry. A draft has no
// balance effect; every validation failure is reported before any write.
func (uc *JournalUsecase) CreateEntry(ctx context.Context, in *domain.JournalEntryCreate) (*domain.JournalEntry, error) {
	if in.CompanyID == "" {
		return nil, fmt.Errorf("%w: company_id is required", xerrors.ErrValidation)
	}
	if in.EntryDate.IsZero() {
		return nil, fmt.Errorf("%w: entry_date is required", xerrors.ErrValidation)
	}

	entry := &domain.JournalEntry{
		CompanyID:   in.CompanyID,
		EntryDate:   in.EntryDate,
		Description: in.Description,
		Reference:   in.Reference,
		Status:      domain.EntryStatusDraft,
	}
	if entry.Reference == "" {
		entry.Reference = uc.refGen.Next()
	}

	for _, lc := range in.Lines {
		entry.Lines = append(entry.Lines, &domain.JournalLine{
			AccountID: lc.AccountID,
			Debit:     lc.Debit,
			Credit:    lc.Credit,
			Memo:      lc.Memo,
		})
	}

	if err := uc.validateEntry(ctx, entry); err != nil {
		return nil, err
	}

	if err := uc.journalRepo.CreateEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to create journal entry: %w", err)
	}

	return entry, nil
}

// validateEntry enforces the double-entry invariants: at least 2 lines,
// exactly one positive side per line, live same-company accounts, and
// total debits equal to total credits within tolerance.
func (uc *JournalUsecase) validateEntry(ctx context.Context, e *domain.JournalEntry) error {
	if len(e.Lines) < 2 {
		return xerrors.ErrInsufficientLines
	}

	accountIDs := make([]int64, 0, len(e.Lines))
	for i, l := range e.Lines {
		if l.Debit.IsNegative() || l.Credit.IsNegative() {
			return fmt.Errorf("%w: line %d has a negative amount", xerrors.ErrValidation, i+1)
		}
		if l.Debit.IsPositive() == l.Credit.IsPositive() {
			return fmt.Errorf("%w: line %d must have exactly one of debit or credit", xerrors.ErrValidation, i+1)
		}
		accountIDs = append(accountIDs, l.AccountID)
	}

	accounts, err := uc.accountRepo.GetManyByIDs(ctx, accountIDs)
	if err != nil {
		return fmt.Errorf("failed to resolve line accounts: %w", err)
	}
	for _, l := range e.Lines {
		account, ok := accounts[l.AccountID]
		if !ok || !account.IsActive || account.CompanyID != e.CompanyID {
			return fmt.Errorf("%w: account %d", xerrors.ErrInvalidAccountReference, l.AccountID)
		}
	}

	if !e.IsBalanced() {
		return &xerrors.UnbalancedEntryError{Delta: e.Delta()}
	}

	return nil
}

// GetEntry fetches an entry with its lines, with caching. Posted and
// cancelled entries are immutable, so they cache longer than drafts.
func (uc *JournalUsecase) GetEntry(ctx context.Context, entryID int64) (*domain.JournalEntry, error) {
	cacheKey := fmt.Sprintf("entry:id:%d", entryID)

	var cached domain.JournalEntry
	if cacheGetJSON(ctx, uc.redisClient, cacheKey, &cached) {
		return &cached, nil
	}

	entry, err := uc.journalRepo.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}

	ttl := 30 * time.Second
	if entry.Status != domain.EntryStatusDraft {
		ttl = 5 * time.Minute
	}
	cacheSetJSON(ctx, uc.redisClient, cacheKey, entry, ttl)

	return entry, nil
}

// PostEntry transitions a draft entry to posted and applies its balance
// deltas atomically. The entry is re-validated under the company lock to
// defend against account deactivation between create and post.
func (uc *JournalUsecase) PostEntry(ctx context.Context, entryID int64) (*domain.JournalEntry, error) {
	entry, err := uc.journalRepo.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}

	mu := uc.locks.Get(entry.CompanyID)
	mu.Lock()
	defer mu.Unlock()

	if entry.Status != domain.EntryStatusDraft {
		return nil, xerrors.ErrEntryNotDraft
	}
	if err := uc.validateEntry(ctx, entry); err != nil {
		return nil, err
	}

	if err := uc.ledgerRepo.PostEntry(ctx, entryID, entry.AccountDeltas()); err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			// The guarded update found no draft row: a racing caller won
			return nil, xerrors.ErrEntryNotDraft
		}
		return nil, fmt.Errorf("failed to post entry: %w", err)
	}
	entry.Status = domain.EntryStatusPosted

	uc.invalidateAfterPosting(ctx, entry)
	uc.publish(ctx, "entry.posted", entry)

	return entry, nil
}

// CancelEntry discards a draft entry. Posted entries are permanent record;
// corrections go through ReverseEntry.
func (uc *JournalUsecase) CancelEntry(ctx context.Context, entryID int64) (*domain.JournalEntry, error) {
	entry, err := uc.journalRepo.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}

	if entry.Status != domain.EntryStatusDraft {
		return nil, xerrors.ErrCannotCancelPosted
	}

	if err := uc.ledgerRepo.CancelEntry(ctx, entryID); err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			return nil, xerrors.ErrCannotCancelPosted
		}
		return nil, fmt.Errorf("failed to cancel entry: %w", err)
	}
	entry.Status = domain.EntryStatusCancelled

	cacheDel(ctx, uc.redisClient, fmt.Sprintf("entry:id:%d", entryID))
	uc.publish(ctx, "entry.cancelled", entry)

	return entry, nil
}

// ReverseEntry creates and posts a new entry that swaps debit and credit on
// every line of a posted original. The original stays posted and untouched;
// the pair nets every affected account back to its prior balance.
func (uc *JournalUsecase) ReverseEntry(ctx context.Context, entryID int64, date time.Time) (*domain.JournalEntry, error) {
	original, err := uc.journalRepo.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}

	mu := uc.locks.Get(original.CompanyID)
	mu.Lock()
	defer mu.Unlock()

	if original.Status != domain.EntryStatusPosted {
		return nil, xerrors.ErrEntryNotPosted
	}
	if date.IsZero() {
		date = time.Now().UTC()
	}

	reversal := buildReversal(original, date, uc.refGen.Next())

	if err := uc.ledgerRepo.ReverseEntry(ctx, original.ID, reversal); err != nil {
		if errors.Is(err, xerrors.ErrEntryNotPosted) {
			return nil, xerrors.ErrEntryNotPosted
		}
		return nil, fmt.Errorf("failed to reverse entry: %w", err)
	}

	uc.invalidateAfterPosting(ctx, reversal)
	uc.publish(ctx, "entry.reversed", reversal)

	return reversal, nil
}

// buildReversal produces the posted mirror of an entry: same accounts and
// amounts, sides swapped, memos annotated, linked back to the original.
func buildReversal(original *domain.JournalEntry, date time.Time, reference string) *domain.JournalEntry {
	originalID := original.ID
	reversal := &domain.JournalEntry{
		CompanyID:   original.CompanyID,
		EntryDate:   date,
		Description: fmt.Sprintf("Reversal of %s", original.Reference),
		Reference:   reference,
		Status:      domain.EntryStatusPosted,
		ReversalOf:  &originalID,
	}

	for _, l := range original.Lines {
		memo := fmt.Sprintf("reversal of line %d", l.LineNo)
		if l.Memo != nil {
			memo = fmt.Sprintf("reversal: %s", *l.Memo)
		}
		reversal.Lines = append(reversal.Lines, &domain.JournalLine{
			AccountID: l.AccountID,
			Debit:     l.Credit,
			Credit:    l.Debit,
			Memo:      &memo,
		})
	}

	return reversal
}

// invalidateAfterPosting drops every cached view a posting can stale out
func (uc *JournalUsecase) invalidateAfterPosting(ctx context.Context, e *domain.JournalEntry) {
	keys := []string{fmt.Sprintf("entry:id:%d", e.ID)}
	for accountID := range e.AccountDeltas() {
		keys = append(keys, fmt.Sprintf("balance:acct:%d", accountID))
	}
	cacheDel(ctx, uc.redisClient, keys...)
	cacheDelPattern(ctx, uc.redisClient, fmt.Sprintf("trialbalance:%s:*", e.CompanyID))
	cacheDelPattern(ctx, uc.redisClient, fmt.Sprintf("ledger:%s:*", e.CompanyID))
	cacheDelPattern(ctx, uc.redisClient, fmt.Sprintf("entries:%s:*", e.CompanyID))
}

func (uc *JournalUsecase) publish(ctx context.Context, eventType string, e *domain.JournalEntry) {
	if uc.publisher == nil {
		return
	}
	_ = uc.publisher.Publish(ctx, pub.EntryEvent(eventType, e))
}
