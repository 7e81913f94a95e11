package service

import (
	"context"
	"sort"
	"testing"
	"time"

	"ledger-service/internal/domain"
	"ledger-service/internal/usecase"
	xerrors "ledger-service/pkg/xerrors"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type seedAccountRepo struct {
	nextID   int64
	accounts map[int64]*domain.Account
}

func newSeedAccountRepo() *seedAccountRepo {
	return &seedAccountRepo{accounts: make(map[int64]*domain.Account)}
}

func (r *seedAccountRepo) BeginTx(ctx context.Context) (pgx.Tx, error) { return nil, nil }

func (r *seedAccountRepo) Create(ctx context.Context, in *domain.AccountCreate) (*domain.Account, error) {
	for _, a := range r.accounts {
		if a.CompanyID == in.CompanyID && a.Code == in.Code {
			return nil, xerrors.ErrDuplicateCode
		}
	}
	r.nextID++
	a := &domain.Account{
		ID:        r.nextID,
		CompanyID: in.CompanyID,
		Code:      in.Code,
		Name:      in.Name,
		Type:      in.Type,
		ParentID:  in.ParentID,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	r.accounts[a.ID] = a
	return a, nil
}

func (r *seedAccountRepo) GetByID(ctx context.Context, accountID int64) (*domain.Account, error) {
	if a, ok := r.accounts[accountID]; ok {
		return a, nil
	}
	return nil, xerrors.ErrNotFound
}

func (r *seedAccountRepo) GetByCode(ctx context.Context, companyID, code string) (*domain.Account, error) {
	for _, a := range r.accounts {
		if a.CompanyID == companyID && a.Code == code {
			return a, nil
		}
	}
	return nil, xerrors.ErrNotFound
}

func (r *seedAccountRepo) GetManyByIDs(ctx context.Context, accountIDs []int64) (map[int64]*domain.Account, error) {
	result := make(map[int64]*domain.Account)
	for _, id := range accountIDs {
		if a, ok := r.accounts[id]; ok {
			result[id] = a
		}
	}
	return result, nil
}

func (r *seedAccountRepo) ListByCompany(ctx context.Context, filter *domain.AccountFilter) ([]*domain.Account, error) {
	var accounts []*domain.Account
	for _, a := range r.accounts {
		if a.CompanyID == filter.CompanyID {
			accounts = append(accounts, a)
		}
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Code < accounts[j].Code })
	return accounts, nil
}

func (r *seedAccountRepo) SetActive(ctx context.Context, accountID int64, active bool) error {
	a, ok := r.accounts[accountID]
	if !ok {
		return xerrors.ErrNotFound
	}
	a.IsActive = active
	return nil
}

func (r *seedAccountRepo) HasJournalLines(ctx context.Context, accountID int64) (bool, error) {
	return false, nil
}

func TestSeedCompany(t *testing.T) {
	repo := newSeedAccountRepo()
	seeder := NewChartSeeder(usecase.NewAccountUsecase(repo, nil), zap.NewNop())
	ctx := context.Background()

	created, err := seeder.SeedCompany(ctx, "acme")
	require.NoError(t, err)
	assert.Len(t, created, len(defaultChart))

	// children point at their template parents
	cash, err := repo.GetByCode(ctx, "acme", "1100")
	require.NoError(t, err)
	assets, err := repo.GetByCode(ctx, "acme", "1000")
	require.NoError(t, err)
	require.NotNil(t, cash.ParentID)
	assert.Equal(t, assets.ID, *cash.ParentID)
	assert.Nil(t, assets.ParentID)
}

func TestSeedCompanyIdempotent(t *testing.T) {
	repo := newSeedAccountRepo()
	seeder := NewChartSeeder(usecase.NewAccountUsecase(repo, nil), zap.NewNop())
	ctx := context.Background()

	_, err := seeder.SeedCompany(ctx, "acme")
	require.NoError(t, err)

	again, err := seeder.SeedCompany(ctx, "acme")
	require.NoError(t, err)
	assert.Empty(t, again, "second run creates nothing")

	accounts, err := repo.ListByCompany(ctx, &domain.AccountFilter{CompanyID: "acme"})
	require.NoError(t, err)
	assert.Len(t, accounts, len(defaultChart))
}

func TestSeedCompanyTopsUpPartialChart(t *testing.T) {
	repo := newSeedAccountRepo()
	uc := usecase.NewAccountUsecase(repo, nil)
	seeder := NewChartSeeder(uc, zap.NewNop())
	ctx := context.Background()

	// the company already carved out its own 1000 root
	_, err := uc.CreateAccount(ctx, &domain.AccountCreate{
		CompanyID: "acme", Code: "1000", Name: "All the assets", Type: domain.AccountTypeAsset,
	})
	require.NoError(t, err)

	created, err := seeder.SeedCompany(ctx, "acme")
	require.NoError(t, err)
	assert.Len(t, created, len(defaultChart)-1)

	// children still attach to the pre-existing root
	cash, err := repo.GetByCode(ctx, "acme", "1100")
	require.NoError(t, err)
	existing, err := repo.GetByCode(ctx, "acme", "1000")
	require.NoError(t, err)
	assert.Equal(t, "All the assets", existing.Name)
	require.NotNil(t, cash.ParentID)
	assert.Equal(t, existing.ID, *cash.ParentID)
}

func TestSeedCompanyRequiresCompanyID(t *testing.T) {
	seeder := NewChartSeeder(usecase.NewAccountUsecase(newSeedAccountRepo(), nil), zap.NewNop())

	_, err := seeder.SeedCompany(context.Background(), "")
	assert.ErrorIs(t, err, xerrors.ErrValidation)
}
