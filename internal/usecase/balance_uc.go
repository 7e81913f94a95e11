package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"ledger-service/internal/domain"
	"ledger-service/internal/repository"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// BalanceUsecase serves account balances and trial balances. The
// materialized account_balances table is a cache over the journal log;
// point-in-time reads and full recomputes derive straight from the log.
type BalanceUsecase struct {
	balanceRepo repository.BalanceRepository
	accountRepo repository.AccountRepository
	ledgerRepo  repository.LedgerRepository
	locks       *CompanyLocks
	redisClient *redis.Client
}

func NewBalanceUsecase(
	balanceRepo repository.BalanceRepository,
	accountRepo repository.AccountRepository,
	ledgerRepo repository.LedgerRepository,
	locks *CompanyLocks,
	redisClient *redis.Client,
) *BalanceUsecase {
	return &BalanceUsecase{
		balanceRepo: balanceRepo,
		accountRepo: accountRepo,
		ledgerRepo:  ledgerRepo,
		locks:       locks,
		redisClient: redisClient,
	}
}

// GetBalance returns the signed total of an account. With no as-of date it
// reads the materialized balance; as-of reads always derive from the
// journal log, which keeps historical answers exact regardless of cache
// state.
func (uc *BalanceUsecase) GetBalance(ctx context.Context, accountID int64, asOf *time.Time) (decimal.Decimal, error) {
	if asOf != nil {
		total, err := uc.balanceRepo.SumPostedLines(ctx, accountID, asOf)
		if err != nil {
			return decimal.Zero, fmt.Errorf("failed to derive balance: %w", err)
		}
		return total, nil
	}

	cacheKey := fmt.Sprintf("balance:acct:%d", accountID)

	var cached domain.AccountBalance
	if cacheGetJSON(ctx, uc.redisClient, cacheKey, &cached) {
		return cached.Balance, nil
	}

	balance, err := uc.balanceRepo.Get(ctx, accountID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get balance: %w", err)
	}

	cacheSetJSON(ctx, uc.redisClient, cacheKey, balance, 1*time.Minute)

	return balance.Balance, nil
}

// GetTrialBalance lists every active account of a company with its net
// total reported on the account's natural side. Total debits always equal
// total credits, mirroring the entry-level invariant at ledger level.
func (uc *BalanceUsecase) GetTrialBalance(ctx context.Context, companyID string, asOf *time.Time) (*domain.TrialBalance, error) {
	cacheKey := fmt.Sprintf("trialbalance:%s:all", companyID)
	if asOf != nil {
		cacheKey = fmt.Sprintf("trialbalance:%s:asof_%d", companyID, asOf.Unix())
	}

	var cached domain.TrialBalance
	if cacheGetJSON(ctx, uc.redisClient, cacheKey, &cached) {
		return &cached, nil
	}

	active := true
	accounts, err := uc.accountRepo.ListByCompany(ctx, &domain.AccountFilter{
		CompanyID: companyID,
		IsActive:  &active,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	totals, err := uc.balanceRepo.SumPostedByCompany(ctx, companyID, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to sum posted lines: %w", err)
	}

	tb := &domain.TrialBalance{
		CompanyID:   companyID,
		AsOf:        asOf,
		TotalDebit:  decimal.Zero,
		TotalCredit: decimal.Zero,
	}

	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Code < accounts[j].Code })
	for _, a := range accounts {
		row := domain.NewTrialBalanceRow(a, totals[a.ID])
		tb.Rows = append(tb.Rows, row)
		tb.TotalDebit = tb.TotalDebit.Add(row.DebitBalance)
		tb.TotalCredit = tb.TotalCredit.Add(row.CreditBalance)
	}

	cacheSetJSON(ctx, uc.redisClient, cacheKey, tb, 1*time.Minute)

	return tb, nil
}

// RecomputeAll rebuilds a company's materialized balances from the journal
// log. Scoped under the same company lock as posting, so a rebuild never
// interleaves with an in-flight post.
func (uc *BalanceUsecase) RecomputeAll(ctx context.Context, companyID string) error {
	mu := uc.locks.Get(companyID)
	mu.Lock()
	defer mu.Unlock()

	if err := uc.ledgerRepo.RecomputeAll(ctx, companyID); err != nil {
		return fmt.Errorf("failed to recompute balances: %w", err)
	}

	cacheDelPattern(ctx, uc.redisClient, "balance:acct:*")
	cacheDelPattern(ctx, uc.redisClient, fmt.Sprintf("trialbalance:%s:*", companyID))

	return nil
}
