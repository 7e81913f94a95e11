package xerrors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// Generic
var (
	ErrNotFound       = errors.New("not found")
	ErrValidation     = errors.New("invalid input provided")
	ErrInternalServer = errors.New("internal server error")
)

// Account registry
var (
	ErrInvalidType   = errors.New("invalid account type")
	ErrDuplicateCode = errors.New("account code already exists in company")
	ErrInvalidParent = errors.New("invalid parent account")
	ErrAccountInUse  = errors.New("account is referenced by journal lines")
)

// Journal engine
var (
	ErrInsufficientLines       = errors.New("journal entry requires at least 2 lines")
	ErrInvalidAccountReference = errors.New("line references unknown, inactive or foreign-company account")
	ErrEntryNotDraft           = errors.New("journal entry is not in draft status")
	ErrEntryNotPosted          = errors.New("journal entry is not posted")
	ErrCannotCancelPosted      = errors.New("posted entries cannot be cancelled")
)

// UnbalancedEntryError reports a debit/credit mismatch beyond tolerance.
// Delta is the absolute difference between total debits and total credits.
type UnbalancedEntryError struct {
	Delta decimal.Decimal
}

func (e *UnbalancedEntryError) Error() string {
	return fmt.Sprintf("journal entry is unbalanced: debits and credits differ by %s", e.Delta.StringFixed(2))
}

// StorageError wraps database/infrastructure failures. The wrapped operation
// committed nothing, so callers may retry.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError wraps err unless it is already a known domain kind.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// ParsePGErrorCode extracts the SQLSTATE from a postgres error.
func ParsePGErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code // e.g. 23505 for unique_violation
	}
	return "unknown"
}

// IsUniqueViolation reports whether err is a postgres unique_violation.
func IsUniqueViolation(err error) bool {
	return ParsePGErrorCode(err) == "23505"
}
