package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ledger-service/internal/domain"
	xerrors "ledger-service/pkg/xerrors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AccountRepository interface {
	Create(ctx context.Context, in *domain.AccountCreate) (*domain.Account, error)
	GetByID(ctx context.Context, accountID int64) (*domain.Account, error)
	GetByCode(ctx context.Context, companyID, code string) (*domain.Account, error)
	GetManyByIDs(ctx context.Context, accountIDs []int64) (map[int64]*domain.Account, error)
	ListByCompany(ctx context.Context, filter *domain.AccountFilter) ([]*domain.Account, error)
	SetActive(ctx context.Context, accountID int64, active bool) error
	HasJournalLines(ctx context.Context, accountID int64) (bool, error)

	BeginTx(ctx context.Context) (pgx.Tx, error)
}

type accountRepo struct {
	db *pgxpool.Pool
}

// NewAccountRepo creates a new account repository
func NewAccountRepo(db *pgxpool.Pool) AccountRepository {
	return &accountRepo{db: db}
}

func (r *accountRepo) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return nil, xerrors.NewStorageError("begin transaction", err)
	}
	return tx, nil
}

// Query helpers to reduce duplication
const baseSelectAccount = `
	SELECT id, company_id, code, name, type, parent_id, is_active, created_at, updated_at
	FROM accounts`

// scanAccount scans a row into a domain.Account
func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	err := row.Scan(
		&a.ID, &a.CompanyID, &a.Code, &a.Name, &a.Type,
		&a.ParentID, &a.IsActive, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrNotFound
		}
		return nil, xerrors.NewStorageError("scan account", err)
	}
	return &a, nil
}

// scanAccountRows scans multiple rows into a domain.Account slice
func scanAccountRows(rows pgx.Rows) ([]*domain.Account, error) {
	defer rows.Close()
	var accounts []*domain.Account

	for rows.Next() {
		var a domain.Account
		err := rows.Scan(
			&a.ID, &a.CompanyID, &a.Code, &a.Name, &a.Type,
			&a.ParentID, &a.IsActive, &a.CreatedAt, &a.UpdatedAt,
		)
		if err != nil {
			return nil, xerrors.NewStorageError("scan account row", err)
		}
		accounts = append(accounts, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, xerrors.NewStorageError("iterate account rows", err)
	}

	return accounts, nil
}

// Create inserts a new active account. The (company_id, code) unique index
// is the authority on code collisions under concurrent creates.
func (r *accountRepo) Create(ctx context.Context, in *domain.AccountCreate) (*domain.Account, error) {
	now := time.Now().UTC()
	a := &domain.Account{
		CompanyID: in.CompanyID,
		Code:      in.Code,
		Name:      in.Name,
		Type:      in.Type,
		ParentID:  in.ParentID,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := r.db.QueryRow(ctx, `
		INSERT INTO accounts (company_id, code, name, type, parent_id, is_active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id
	`, a.CompanyID, a.Code, a.Name, a.Type, a.ParentID, a.IsActive, a.CreatedAt, a.UpdatedAt).Scan(&a.ID)
	if err != nil {
		if xerrors.IsUniqueViolation(err) {
			return nil, xerrors.ErrDuplicateCode
		}
		return nil, xerrors.NewStorageError("create account", err)
	}

	return a, nil
}

// GetByID fetches an account by primary key
func (r *accountRepo) GetByID(ctx context.Context, accountID int64) (*domain.Account, error) {
	row := r.db.QueryRow(ctx, baseSelectAccount+` WHERE id=$1`, accountID)
	return scanAccount(row)
}

// GetByCode fetches an account by its company-scoped code (unique index)
func (r *accountRepo) GetByCode(ctx context.Context, companyID, code string) (*domain.Account, error) {
	row := r.db.QueryRow(ctx, baseSelectAccount+` WHERE company_id=$1 AND code=$2`, companyID, code)
	return scanAccount(row)
}

// GetManyByIDs fetches a batch of accounts keyed by ID. Missing IDs are
// simply absent from the map; the caller decides whether that is an error.
func (r *accountRepo) GetManyByIDs(ctx context.Context, accountIDs []int64) (map[int64]*domain.Account, error) {
	if len(accountIDs) == 0 {
		return map[int64]*domain.Account{}, nil
	}

	rows, err := r.db.Query(ctx, baseSelectAccount+` WHERE id = ANY($1)`, accountIDs)
	if err != nil {
		return nil, xerrors.NewStorageError("query accounts by ids", err)
	}

	accounts, err := scanAccountRows(rows)
	if err != nil {
		return nil, err
	}

	result := make(map[int64]*domain.Account, len(accounts))
	for _, a := range accounts {
		result[a.ID] = a
	}
	return result, nil
}

// ListByCompany fetches accounts for a company, optionally narrowed by filter,
// ordered by code for stable tree building
func (r *accountRepo) ListByCompany(ctx context.Context, filter *domain.AccountFilter) ([]*domain.Account, error) {
	query := baseSelectAccount + ` WHERE company_id=$1`
	args := []interface{}{filter.CompanyID}

	if filter.Type != nil {
		args = append(args, *filter.Type)
		query += fmt.Sprintf(" AND type=$%d", len(args))
	}
	if filter.IsActive != nil {
		args = append(args, *filter.IsActive)
		query += fmt.Sprintf(" AND is_active=$%d", len(args))
	}
	if filter.Code != nil {
		args = append(args, *filter.Code)
		query += fmt.Sprintf(" AND code=$%d", len(args))
	}
	query += ` ORDER BY code ASC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, xerrors.NewStorageError("query accounts by company", err)
	}

	return scanAccountRows(rows)
}

// SetActive flips the soft-active flag. Accounts are never physically
// removed once referenced by the journal.
func (r *accountRepo) SetActive(ctx context.Context, accountID int64, active bool) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE accounts SET is_active=$1, updated_at=$2 WHERE id=$3
	`, active, time.Now().UTC(), accountID)
	if err != nil {
		return xerrors.NewStorageError("update account active flag", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

// HasJournalLines reports whether any journal line references the account
func (r *accountRepo) HasJournalLines(ctx context.Context, accountID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM journal_lines WHERE account_id=$1)
	`, accountID).Scan(&exists)
	if err != nil {
		return false, xerrors.NewStorageError("check account journal lines", err)
	}
	return exists, nil
}
