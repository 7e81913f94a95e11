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

type JournalRepository interface {
	CreateEntry(ctx context.Context, e *domain.JournalEntry) error
	CreateEntryTx(ctx context.Context, tx pgx.Tx, e *domain.JournalEntry) error
	GetEntry(ctx context.Context, entryID int64) (*domain.JournalEntry, error)
	UpdateStatusTx(ctx context.Context, tx pgx.Tx, entryID int64, from, to domain.EntryStatus) error
	ListEntries(ctx context.Context, companyID string, filter *domain.EntryFilter) ([]*domain.JournalEntry, int, error)

	BeginTx(ctx context.Context) (pgx.Tx, error)
}

type journalRepo struct {
	db *pgxpool.Pool
}

func NewJournalRepo(db *pgxpool.Pool) JournalRepository {
	return &journalRepo{db: db}
}

func (r *journalRepo) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return nil, xerrors.NewStorageError("begin transaction", err)
	}
	return tx, nil
}

// CreateEntry inserts an entry and all its lines atomically. The entry and
// line IDs are filled in on success; nothing is persisted on failure.
func (r *journalRepo) CreateEntry(ctx context.Context, e *domain.JournalEntry) error {
	tx, err := r.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := r.CreateEntryTx(ctx, tx, e); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return xerrors.NewStorageError("commit journal entry", err)
	}
	return nil
}

// CreateEntryTx inserts an entry and its lines inside an existing transaction
func (r *journalRepo) CreateEntryTx(ctx context.Context, tx pgx.Tx, e *domain.JournalEntry) error {
	if tx == nil {
		return errors.New("transaction cannot be nil")
	}

	e.CreatedAt = time.Now().UTC()
	err := tx.QueryRow(ctx, `
		INSERT INTO journal_entries (company_id, entry_date, description, reference, status, reversal_of, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id
	`, e.CompanyID, e.EntryDate, e.Description, e.Reference, e.Status, e.ReversalOf, e.CreatedAt).Scan(&e.ID)
	if err != nil {
		return xerrors.NewStorageError("insert journal entry", err)
	}

	for i, l := range e.Lines {
		l.EntryID = e.ID
		l.LineNo = i + 1
		err := tx.QueryRow(ctx, `
			INSERT INTO journal_lines (entry_id, account_id, debit, credit, memo, line_no)
			VALUES ($1,$2,$3,$4,$5,$6)
			RETURNING id
		`, l.EntryID, l.AccountID, l.Debit, l.Credit, l.Memo, l.LineNo).Scan(&l.ID)
		if err != nil {
			return xerrors.NewStorageError("insert journal line", err)
		}
	}

	return nil
}

// GetEntry fetches an entry with its lines in display order
func (r *journalRepo) GetEntry(ctx context.Context, entryID int64) (*domain.JournalEntry, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, company_id, entry_date, description, reference, status, reversal_of, created_at
		FROM journal_entries
		WHERE id=$1
	`, entryID)

	var e domain.JournalEntry
	err := row.Scan(&e.ID, &e.CompanyID, &e.EntryDate, &e.Description, &e.Reference, &e.Status, &e.ReversalOf, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrNotFound
		}
		return nil, xerrors.NewStorageError("get journal entry", err)
	}

	lines, err := r.linesForEntries(ctx, []int64{e.ID})
	if err != nil {
		return nil, err
	}
	e.Lines = lines[e.ID]

	return &e, nil
}

// UpdateStatusTx performs a guarded status transition. The WHERE clause on
// the current status is what makes two concurrent posts of the same entry
// resolve to exactly one winner.
func (r *journalRepo) UpdateStatusTx(ctx context.Context, tx pgx.Tx, entryID int64, from, to domain.EntryStatus) error {
	if tx == nil {
		return errors.New("transaction cannot be nil")
	}
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("illegal status transition %s -> %s", from, to)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE journal_entries SET status=$1 WHERE id=$2 AND status=$3
	`, to, entryID, from)
	if err != nil {
		return xerrors.NewStorageError("update entry status", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

// ListEntries returns one page of a company's entries plus the total count,
// newest entry date first, creation order as tie-break
func (r *journalRepo) ListEntries(ctx context.Context, companyID string, filter *domain.EntryFilter) ([]*domain.JournalEntry, int, error) {
	where := ` WHERE company_id=$1`
	args := []interface{}{companyID}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		where += fmt.Sprintf(" AND status=$%d", len(args))
	}
	if filter.Reference != nil {
		args = append(args, *filter.Reference)
		where += fmt.Sprintf(" AND reference=$%d", len(args))
	}
	if filter.StartDate != nil {
		args = append(args, *filter.StartDate)
		where += fmt.Sprintf(" AND entry_date >= $%d", len(args))
	}
	if filter.EndDate != nil {
		args = append(args, *filter.EndDate)
		where += fmt.Sprintf(" AND entry_date <= $%d", len(args))
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM journal_entries`+where, args...).Scan(&total); err != nil {
		return nil, 0, xerrors.NewStorageError("count journal entries", err)
	}

	args = append(args, filter.PageSize, (filter.Page-1)*filter.PageSize)
	query := `
		SELECT id, company_id, entry_date, description, reference, status, reversal_of, created_at
		FROM journal_entries` + where +
		fmt.Sprintf(` ORDER BY entry_date DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, xerrors.NewStorageError("query journal entries", err)
	}
	defer rows.Close()

	var entries []*domain.JournalEntry
	var ids []int64
	for rows.Next() {
		var e domain.JournalEntry
		if err := rows.Scan(&e.ID, &e.CompanyID, &e.EntryDate, &e.Description, &e.Reference, &e.Status, &e.ReversalOf, &e.CreatedAt); err != nil {
			return nil, 0, xerrors.NewStorageError("scan journal entry row", err)
		}
		entries = append(entries, &e)
		ids = append(ids, e.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, xerrors.NewStorageError("iterate journal entry rows", err)
	}

	lines, err := r.linesForEntries(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for _, e := range entries {
		e.Lines = lines[e.ID]
	}

	return entries, total, nil
}

// linesForEntries loads the lines of a set of entries keyed by entry ID
func (r *journalRepo) linesForEntries(ctx context.Context, entryIDs []int64) (map[int64][]*domain.JournalLine, error) {
	result := make(map[int64][]*domain.JournalLine, len(entryIDs))
	if len(entryIDs) == 0 {
		return result, nil
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, entry_id, account_id, debit, credit, memo, line_no
		FROM journal_lines
		WHERE entry_id = ANY($1)
		ORDER BY entry_id ASC, line_no ASC
	`, entryIDs)
	if err != nil {
		return nil, xerrors.NewStorageError("query journal lines", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l domain.JournalLine
		if err := rows.Scan(&l.ID, &l.EntryID, &l.AccountID, &l.Debit, &l.Credit, &l.Memo, &l.LineNo); err != nil {
			return nil, xerrors.NewStorageError("scan journal line row", err)
		}
		result[l.EntryID] = append(result[l.EntryID], &l)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.NewStorageError("iterate journal line rows", err)
	}

	return result, nil
}
