package service

import (
	"context"
	"errors"
	"fmt"

	"ledger-service/internal/domain"
	"ledger-service/internal/usecase"
	xerrors "ledger-service/pkg/xerrors"

	"go.uber.org/zap"
)

// seedAccount is one row of the default chart template. Parent links are by
// code, so the template stays readable and company-independent.
type seedAccount struct {
	Code       string
	Name       string
	Type       domain.AccountType
	ParentCode string
}

// defaultChart is a compact general-purpose chart of accounts. Codes follow
// the usual convention: 1xxx assets, 2xxx liabilities, 3xxx equity,
// 4xxx revenue, 5xxx expenses.
var defaultChart = []seedAccount{
	{Code: "1000", Name: "Assets", Type: domain.AccountTypeAsset},
	{Code: "1100", Name: "Cash", Type: domain.AccountTypeAsset, ParentCode: "1000"},
	{Code: "1200", Name: "Bank", Type: domain.AccountTypeAsset, ParentCode: "1000"},
	{Code: "1300", Name: "Accounts Receivable", Type: domain.AccountTypeAsset, ParentCode: "1000"},

	{Code: "2000", Name: "Liabilities", Type: domain.AccountTypeLiability},
	{Code: "2100", Name: "Accounts Payable", Type: domain.AccountTypeLiability, ParentCode: "2000"},
	{Code: "2200", Name: "Taxes Payable", Type: domain.AccountTypeLiability, ParentCode: "2000"},

	{Code: "3000", Name: "Equity", Type: domain.AccountTypeEquity},
	{Code: "3100", Name: "Owner's Capital", Type: domain.AccountTypeEquity, ParentCode: "3000"},
	{Code: "3200", Name: "Retained Earnings", Type: domain.AccountTypeEquity, ParentCode: "3000"},

	{Code: "4000", Name: "Revenue", Type: domain.AccountTypeRevenue},
	{Code: "4100", Name: "Sales", Type: domain.AccountTypeRevenue, ParentCode: "4000"},

	{Code: "5000", Name: "Expenses", Type: domain.AccountTypeExpense},
	{Code: "5100", Name: "Cost of Goods Sold", Type: domain.AccountTypeExpense, ParentCode: "5000"},
	{Code: "5200", Name: "Rent Expense", Type: domain.AccountTypeExpense, ParentCode: "5000"},
	{Code: "5300", Name: "Salaries Expense", Type: domain.AccountTypeExpense, ParentCode: "5000"},
}

// ChartSeeder bootstraps a new company with the default chart of accounts
type ChartSeeder struct {
	accountUC *usecase.AccountUsecase
	logger    *zap.Logger
}

func NewChartSeeder(accountUC *usecase.AccountUsecase, logger *zap.Logger) *ChartSeeder {
	return &ChartSeeder{
		accountUC: accountUC,
		logger:    logger,
	}
}

// SeedCompany creates every template account the company does not already
// have. Re-running it is safe: existing codes are skipped, so a partially
// seeded or customized chart is topped up rather than duplicated.
func (s *ChartSeeder) SeedCompany(ctx context.Context, companyID string) ([]*domain.Account, error) {
	if companyID == "" {
		return nil, fmt.Errorf("%w: company_id is required", xerrors.ErrValidation)
	}

	created := make([]*domain.Account, 0, len(defaultChart))
	idByCode := make(map[string]int64, len(defaultChart))

	// Template order guarantees parents precede children
	for _, seed := range defaultChart {
		var parentID *int64
		if seed.ParentCode != "" {
			if id, ok := idByCode[seed.ParentCode]; ok {
				parentID = &id
			}
		}

		account, err := s.accountUC.CreateAccount(ctx, &domain.AccountCreate{
			CompanyID: companyID,
			Code:      seed.Code,
			Name:      seed.Name,
			Type:      seed.Type,
			ParentID:  parentID,
		})
		if errors.Is(err, xerrors.ErrDuplicateCode) {
			existing, err := s.accountUC.GetAccountByCode(ctx, companyID, seed.Code)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve existing account %s: %w", seed.Code, err)
			}
			idByCode[seed.Code] = existing.ID
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to seed account %s: %w", seed.Code, err)
		}

		idByCode[seed.Code] = account.ID
		created = append(created, account)
	}

	s.logger.Info("seeded chart of accounts",
		zap.String("company_id", companyID),
		zap.Int("created", len(created)),
		zap.Int("skipped", len(defaultChart)-len(created)),
	)

	return created, nil
}
