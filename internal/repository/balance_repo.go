package repository

import (
	"context"
	"errors"
	"time"

	"ledger-service/internal/domain"
	xerrors "ledger-service/pkg/xerrors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type BalanceRepository interface {
	// Materialized view reads
	Get(ctx context.Context, accountID int64) (*domain.AccountBalance, error)

	// Incremental and full update paths; both run inside the caller's tx
	ApplyDeltaTx(ctx context.Context, tx pgx.Tx, accountID int64, delta decimal.Decimal) error
	ReplaceCompanyTx(ctx context.Context, tx pgx.Tx, companyID string, totals map[int64]decimal.Decimal) error

	// Derivations straight from the journal log (the source of truth)
	SumPostedLines(ctx context.Context, accountID int64, asOf *time.Time) (decimal.Decimal, error)
	SumPostedByCompany(ctx context.Context, companyID string, asOf *time.Time) (map[int64]decimal.Decimal, error)
}

type balanceRepo struct {
	db *pgxpool.Pool
}

func NewBalanceRepo(db *pgxpool.Pool) BalanceRepository {
	return &balanceRepo{db: db}
}

// Get fetches the materialized balance for an account. Accounts with no
// posted lines have no row; that reads as a zero balance, not an error.
func (r *balanceRepo) Get(ctx context.Context, accountID int64) (*domain.AccountBalance, error) {
	row := r.db.QueryRow(ctx, `
		SELECT account_id, balance, updated_at
		FROM account_balances
		WHERE account_id=$1
	`, accountID)

	var b domain.AccountBalance
	err := row.Scan(&b.AccountID, &b.Balance, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &domain.AccountBalance{AccountID: accountID, Balance: decimal.Zero}, nil
		}
		return nil, xerrors.NewStorageError("get account balance", err)
	}
	return &b, nil
}

// ApplyDeltaTx upserts balance += delta for one account inside the posting
// transaction, so the status flip and the balance move commit together
func (r *balanceRepo) ApplyDeltaTx(ctx context.Context, tx pgx.Tx, accountID int64, delta decimal.Decimal) error {
	if tx == nil {
		return errors.New("transaction cannot be nil")
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO account_balances (account_id, balance, updated_at)
		VALUES ($1,$2,$3)
		ON CONFLICT (account_id)
		DO UPDATE SET balance = account_balances.balance + EXCLUDED.balance, updated_at = EXCLUDED.updated_at
	`, accountID, delta, time.Now().UTC())
	if err != nil {
		return xerrors.NewStorageError("apply balance delta", err)
	}
	return nil
}

// ReplaceCompanyTx overwrites every materialized balance of a company with
// the supplied totals. Used by the full recompute path.
func (r *balanceRepo) ReplaceCompanyTx(ctx context.Context, tx pgx.Tx, companyID string, totals map[int64]decimal.Decimal) error {
	if tx == nil {
		return errors.New("transaction cannot be nil")
	}

	_, err := tx.Exec(ctx, `
		DELETE FROM account_balances
		WHERE account_id IN (SELECT id FROM accounts WHERE company_id=$1)
	`, companyID)
	if err != nil {
		return xerrors.NewStorageError("clear company balances", err)
	}

	now := time.Now().UTC()
	for accountID, total := range totals {
		_, err := tx.Exec(ctx, `
			INSERT INTO account_balances (account_id, balance, updated_at)
			VALUES ($1,$2,$3)
		`, accountID, total, now)
		if err != nil {
			return xerrors.NewStorageError("insert recomputed balance", err)
		}
	}

	return nil
}

// SumPostedLines computes an account's signed total (debit − credit) from
// posted lines, optionally bounded by an as-of date
func (r *balanceRepo) SumPostedLines(ctx context.Context, accountID int64, asOf *time.Time) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(l.debit - l.credit), 0)
		FROM journal_lines l
		JOIN journal_entries e ON e.id = l.entry_id
		WHERE l.account_id=$1 AND e.status=$2`
	args := []interface{}{accountID, domain.EntryStatusPosted}

	if asOf != nil {
		args = append(args, *asOf)
		query += ` AND e.entry_date <= $3`
	}

	var total decimal.Decimal
	if err := r.db.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return decimal.Zero, xerrors.NewStorageError("sum posted lines", err)
	}
	return total, nil
}

// SumPostedByCompany computes signed totals for every account of a company
// in one scan of the journal log
func (r *balanceRepo) SumPostedByCompany(ctx context.Context, companyID string, asOf *time.Time) (map[int64]decimal.Decimal, error) {
	query := `
		SELECT l.account_id, COALESCE(SUM(l.debit - l.credit), 0)
		FROM journal_lines l
		JOIN journal_entries e ON e.id = l.entry_id
		WHERE e.company_id=$1 AND e.status=$2`
	args := []interface{}{companyID, domain.EntryStatusPosted}

	if asOf != nil {
		args = append(args, *asOf)
		query += ` AND e.entry_date <= $3`
	}
	query += ` GROUP BY l.account_id`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, xerrors.NewStorageError("sum posted lines by company", err)
	}
	defer rows.Close()

	totals := make(map[int64]decimal.Decimal)
	for rows.Next() {
		var accountID int64
		var total decimal.Decimal
		if err := rows.Scan(&accountID, &total); err != nil {
			return nil, xerrors.NewStorageError("scan balance row", err)
		}
		totals[accountID] = total
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.NewStorageError("iterate balance rows", err)
	}

	return totals, nil
}
