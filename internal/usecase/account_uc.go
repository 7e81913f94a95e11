package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"ledger-service/internal/domain"
	"ledger-service/internal/repository"
	xerrors "ledger-service/pkg/xerrors"

	"github.com/redis/go-redis/v9"
)

// AccountUsecase owns the chart of accounts of each company
type AccountUsecase struct {
	accountRepo repository.AccountRepository
	redisClient *redis.Client
}

// NewAccountUsecase initializes a new AccountUsecase
func NewAccountUsecase(accountRepo repository.AccountRepository, redisClient *redis.Client) *AccountUsecase {
	return &AccountUsecase{
		accountRepo: accountRepo,
		redisClient: redisClient,
	}
}

// CreateAccount validates and creates a new active account in the company's
// chart of accounts
func (uc *AccountUsecase) CreateAccount(ctx context.Context, in *domain.AccountCreate) (*domain.Account, error) {
	if in.CompanyID == "" || in.Code == "" || in.Name == "" {
		return nil, fmt.Errorf("%w: company_id, code and name are required", xerrors.ErrValidation)
	}
	if !in.Type.IsValid() {
		return nil, xerrors.ErrInvalidType
	}

	// Pre-check the code; the unique index stays the authority under races
	if _, err := uc.accountRepo.GetByCode(ctx, in.CompanyID, in.Code); err == nil {
		return nil, xerrors.ErrDuplicateCode
	} else if !errors.Is(err, xerrors.ErrNotFound) {
		return nil, fmt.Errorf("failed to check account code: %w", err)
	}

	if in.ParentID != nil {
		if err := uc.validateParent(ctx, in.CompanyID, *in.ParentID); err != nil {
			return nil, err
		}
	}

	account, err := uc.accountRepo.Create(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	uc.invalidateCompanyCache(ctx, in.CompanyID)

	return account, nil
}

// validateParent checks that the parent exists, is active, belongs to the
// same company, and that its ancestor chain terminates
func (uc *AccountUsecase) validateParent(ctx context.Context, companyID string, parentID int64) error {
	seen := make(map[int64]bool)
	next := &parentID

	for next != nil {
		if seen[*next] {
			return fmt.Errorf("%w: parent chain contains a cycle", xerrors.ErrInvalidParent)
		}
		seen[*next] = true

		parent, err := uc.accountRepo.GetByID(ctx, *next)
		if err != nil {
			if errors.Is(err, xerrors.ErrNotFound) {
				return fmt.Errorf("%w: parent account %d does not exist", xerrors.ErrInvalidParent, *next)
			}
			return fmt.Errorf("failed to resolve parent account: %w", err)
		}
		if parent.CompanyID != companyID {
			return fmt.Errorf("%w: parent belongs to another company", xerrors.ErrInvalidParent)
		}
		if !parent.IsActive {
			return fmt.Errorf("%w: parent account is inactive", xerrors.ErrInvalidParent)
		}
		next = parent.ParentID
	}

	return nil
}

// GetAccount fetches a single account with caching
func (uc *AccountUsecase) GetAccount(ctx context.Context, accountID int64) (*domain.Account, error) {
	cacheKey := fmt.Sprintf("account:id:%d", accountID)

	var cached domain.Account
	if cacheGetJSON(ctx, uc.redisClient, cacheKey, &cached) {
		return &cached, nil
	}

	account, err := uc.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	cacheSetJSON(ctx, uc.redisClient, cacheKey, account, 5*time.Minute)

	return account, nil
}

// GetAccountByCode resolves an account by its company-scoped code
func (uc *AccountUsecase) GetAccountByCode(ctx context.Context, companyID, code string) (*domain.Account, error) {
	return uc.accountRepo.GetByCode(ctx, companyID, code)
}

// GetAccountTree returns the active accounts of a company as an ordered
// forest: grouped by type, children nested under parents, accounts whose
// parent is missing or inactive surfacing at the root of their type group.
func (uc *AccountUsecase) GetAccountTree(ctx context.Context, companyID string) (*domain.AccountTree, error) {
	cacheKey := fmt.Sprintf("account:tree:%s", companyID)

	var cached domain.AccountTree
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

	tree := buildAccountTree(companyID, accounts)

	cacheSetJSON(ctx, uc.redisClient, cacheKey, tree, 5*time.Minute)

	return tree, nil
}

func buildAccountTree(companyID string, accounts []*domain.Account) *domain.AccountTree {
	nodes := make(map[int64]*domain.AccountNode, len(accounts))
	for _, a := range accounts {
		nodes[a.ID] = &domain.AccountNode{Account: a}
	}

	tree := &domain.AccountTree{
		CompanyID: companyID,
		Groups:    make(map[domain.AccountType][]*domain.AccountNode),
	}

	for _, a := range accounts {
		node := nodes[a.ID]
		if a.ParentID != nil {
			if parent, ok := nodes[*a.ParentID]; ok {
				parent.Children = append(parent.Children, node)
				continue
			}
		}
		// No parent, or the parent is not in the active set: root of its group
		tree.Groups[a.Type] = append(tree.Groups[a.Type], node)
	}

	for _, roots := range tree.Groups {
		sortNodes(roots)
	}

	return tree
}

func sortNodes(nodes []*domain.AccountNode) {
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].Account.Code < nodes[j].Account.Code
	})
	for _, n := range nodes {
		sortNodes(n.Children)
	}
}

// DeactivateAccount soft-disables an account. Accounts referenced by any
// journal line stay in place to preserve ledger history.
func (uc *AccountUsecase) DeactivateAccount(ctx context.Context, accountID int64) error {
	account, err := uc.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return err
	}

	inUse, err := uc.accountRepo.HasJournalLines(ctx, accountID)
	if err != nil {
		return fmt.Errorf("failed to check account usage: %w", err)
	}
	if inUse {
		return xerrors.ErrAccountInUse
	}

	if err := uc.accountRepo.SetActive(ctx, accountID, false); err != nil {
		return fmt.Errorf("failed to deactivate account: %w", err)
	}

	uc.invalidateCompanyCache(ctx, account.CompanyID)
	cacheDel(ctx, uc.redisClient, fmt.Sprintf("account:id:%d", accountID))

	return nil
}

func (uc *AccountUsecase) invalidateCompanyCache(ctx context.Context, companyID string) {
	cacheDel(ctx, uc.redisClient, fmt.Sprintf("account:tree:%s", companyID))
}
