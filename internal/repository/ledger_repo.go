package repository

import (
	"context"
	"fmt"
	"time"

	"ledger-service/internal/domain"
	xerrors "ledger-service/pkg/xerrors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// LedgerRepository coordinates the multi-table writes of the ledger core:
// every method is a single database transaction, so a failed post or
// reversal leaves no partial state behind.
type LedgerRepository interface {
	PostEntry(ctx context.Context, entryID int64, deltas map[int64]decimal.Decimal) error
	ReverseEntry(ctx context.Context, originalID int64, reversal *domain.JournalEntry) error
	CancelEntry(ctx context.Context, entryID int64) error
	RecomputeAll(ctx context.Context, companyID string) error
	GeneralLedger(ctx context.Context, companyID string, filter *domain.LedgerFilter) ([]*domain.LedgerLine, int, error)
}

type ledgerRepo struct {
	db          *pgxpool.Pool
	journalRepo JournalRepository
	balanceRepo BalanceRepository
}

func NewLedgerRepo(db *pgxpool.Pool, journalRepo JournalRepository, balanceRepo BalanceRepository) LedgerRepository {
	return &ledgerRepo{
		db:          db,
		journalRepo: journalRepo,
		balanceRepo: balanceRepo,
	}
}

func (r *ledgerRepo) beginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return nil, xerrors.NewStorageError("begin transaction", err)
	}
	return tx, nil
}

// PostEntry flips a draft entry to posted and applies the per-account
// balance deltas in one transaction. The guarded status update resolves
// racing posts of the same entry to a single winner.
func (r *ledgerRepo) PostEntry(ctx context.Context, entryID int64, deltas map[int64]decimal.Decimal) error {
	tx, err := r.beginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := r.journalRepo.UpdateStatusTx(ctx, tx, entryID, domain.EntryStatusDraft, domain.EntryStatusPosted); err != nil {
		return err
	}

	for accountID, delta := range deltas {
		if err := r.balanceRepo.ApplyDeltaTx(ctx, tx, accountID, delta); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return xerrors.NewStorageError("commit post entry", err)
	}
	return nil
}

// ReverseEntry inserts the reversing entry already posted and applies its
// balance deltas, all in one transaction. The original entry is not touched.
func (r *ledgerRepo) ReverseEntry(ctx context.Context, originalID int64, reversal *domain.JournalEntry) error {
	tx, err := r.beginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// Guard: the original must still be posted at commit time
	var status domain.EntryStatus
	err = tx.QueryRow(ctx, `SELECT status FROM journal_entries WHERE id=$1 FOR UPDATE`, originalID).Scan(&status)
	if err != nil {
		if err == pgx.ErrNoRows {
			return xerrors.ErrNotFound
		}
		return xerrors.NewStorageError("lock original entry", err)
	}
	if status != domain.EntryStatusPosted {
		return xerrors.ErrEntryNotPosted
	}

	reversal.Status = domain.EntryStatusPosted
	if err := r.journalRepo.CreateEntryTx(ctx, tx, reversal); err != nil {
		return err
	}

	for accountID, delta := range reversal.AccountDeltas() {
		if err := r.balanceRepo.ApplyDeltaTx(ctx, tx, accountID, delta); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return xerrors.NewStorageError("commit reverse entry", err)
	}
	return nil
}

// CancelEntry flips a draft entry to cancelled. No balance effect.
func (r *ledgerRepo) CancelEntry(ctx context.Context, entryID int64) error {
	tx, err := r.beginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := r.journalRepo.UpdateStatusTx(ctx, tx, entryID, domain.EntryStatusDraft, domain.EntryStatusCancelled); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return xerrors.NewStorageError("commit cancel entry", err)
	}
	return nil
}

// RecomputeAll rebuilds the materialized balances of a company from the
// posted journal lines alone. Running it twice with no intervening posts
// yields identical rows.
func (r *ledgerRepo) RecomputeAll(ctx context.Context, companyID string) error {
	tx, err := r.beginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		DELETE FROM account_balances
		WHERE account_id IN (SELECT id FROM accounts WHERE company_id=$1)
	`, companyID)
	if err != nil {
		return xerrors.NewStorageError("clear company balances", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO account_balances (account_id, balance, updated_at)
		SELECT l.account_id, COALESCE(SUM(l.debit - l.credit), 0), $3
		FROM journal_lines l
		JOIN journal_entries e ON e.id = l.entry_id
		WHERE e.company_id=$1 AND e.status=$2
		GROUP BY l.account_id
	`, companyID, domain.EntryStatusPosted, time.Now().UTC())
	if err != nil {
		return xerrors.NewStorageError("rebuild company balances", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return xerrors.NewStorageError("commit recompute", err)
	}
	return nil
}

// GeneralLedger returns one page of posted lines joined with their entry
// metadata, each row carrying the running balance of its account. The
// window aggregate runs over the company's full posted history before the
// date filter applies, so a filtered view still shows true running balances.
func (r *ledgerRepo) GeneralLedger(ctx context.Context, companyID string, filter *domain.LedgerFilter) ([]*domain.LedgerLine, int, error) {
	where := ``
	args := []interface{}{companyID, domain.EntryStatusPosted}

	if filter.AccountID != nil {
		args = append(args, *filter.AccountID)
		where += fmt.Sprintf(" AND q.account_id=$%d", len(args))
	}
	if filter.StartDate != nil {
		args = append(args, *filter.StartDate)
		where += fmt.Sprintf(" AND q.entry_date >= $%d", len(args))
	}
	if filter.EndDate != nil {
		args = append(args, *filter.EndDate)
		where += fmt.Sprintf(" AND q.entry_date <= $%d", len(args))
	}

	base := `
		FROM (
			SELECT l.id AS line_id, l.entry_id, l.account_id, e.entry_date,
			       e.description, e.reference, l.debit, l.credit, l.memo,
			       SUM(l.debit - l.credit) OVER (
			           PARTITION BY l.account_id
			           ORDER BY e.entry_date, e.id, l.line_no
			       ) AS running_balance
			FROM journal_lines l
			JOIN journal_entries e ON e.id = l.entry_id
			WHERE e.company_id=$1 AND e.status=$2
		) q
		WHERE 1=1` + where

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) `+base, args...).Scan(&total); err != nil {
		return nil, 0, xerrors.NewStorageError("count ledger lines", err)
	}

	args = append(args, filter.PageSize, (filter.Page-1)*filter.PageSize)
	query := `SELECT q.line_id, q.entry_id, q.account_id, q.entry_date, q.description, q.reference,
	                 q.debit, q.credit, q.memo, q.running_balance ` + base +
		fmt.Sprintf(` ORDER BY q.entry_date ASC, q.entry_id ASC, q.line_id ASC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, xerrors.NewStorageError("query general ledger", err)
	}
	defer rows.Close()

	var lines []*domain.LedgerLine
	for rows.Next() {
		var l domain.LedgerLine
		if err := rows.Scan(&l.LineID, &l.EntryID, &l.AccountID, &l.EntryDate, &l.Description,
			&l.Reference, &l.Debit, &l.Credit, &l.Memo, &l.RunningBalance); err != nil {
			return nil, 0, xerrors.NewStorageError("scan ledger line", err)
		}
		lines = append(lines, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, xerrors.NewStorageError("iterate ledger lines", err)
	}

	return lines, total, nil
}
