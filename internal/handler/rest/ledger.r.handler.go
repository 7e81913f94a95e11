package hrest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"ledger-service/internal/domain"
	"ledger-service/internal/service"
	"ledger-service/internal/usecase"
	xerrors "ledger-service/pkg/xerrors"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// LedgerRestHandler is the thin HTTP surface over the ledger core. Tenant
// resolution and authentication live in the gateway in front of it; the
// company ID arrives pre-validated in the URL.
type LedgerRestHandler struct {
	accountUC *usecase.AccountUsecase
	journalUC *usecase.JournalUsecase
	balanceUC *usecase.BalanceUsecase
	ledgerUC  *usecase.LedgerUsecase
	seeder    *service.ChartSeeder
	logger    *zap.Logger
}

func NewLedgerRestHandler(
	accountUC *usecase.AccountUsecase,
	journalUC *usecase.JournalUsecase,
	balanceUC *usecase.BalanceUsecase,
	ledgerUC *usecase.LedgerUsecase,
	seeder *service.ChartSeeder,
	logger *zap.Logger,
) *LedgerRestHandler {
	return &LedgerRestHandler{
		accountUC: accountUC,
		journalUC: journalUC,
		balanceUC: balanceUC,
		ledgerUC:  ledgerUC,
		seeder:    seeder,
		logger:    logger,
	}
}

func (h *LedgerRestHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/companies/{companyID}", func(r chi.Router) {
		r.Post("/accounts", h.CreateAccount)
		r.Post("/accounts/seed", h.SeedChart)
		r.Get("/accounts/tree", h.GetAccountTree)
		r.Post("/accounts/{accountID}/deactivate", h.DeactivateAccount)
		r.Get("/accounts/{accountID}/balance", h.GetBalance)
		r.Get("/accounts/{accountID}/statement", h.GetAccountStatement)

		r.Post("/entries", h.CreateEntry)
		r.Get("/entries", h.GetJournalEntries)
		r.Get("/entries/{entryID}", h.GetEntry)
		r.Post("/entries/{entryID}/post", h.PostEntry)
		r.Post("/entries/{entryID}/cancel", h.CancelEntry)
		r.Post("/entries/{entryID}/reverse", h.ReverseEntry)

		r.Get("/trial-balance", h.GetTrialBalance)
		r.Get("/general-ledger", h.GetGeneralLedger)
		r.Post("/balances/recompute", h.RecomputeBalances)
	})

	return r
}

// ===============================
// ACCOUNTS
// ===============================

type CreateAccountJSON struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	ParentID *int64 `json:"parent_id,omitempty"`
}

func (h *LedgerRestHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	companyID := chi.URLParam(r, "companyID")

	var in CreateAccountJSON
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	account, err := h.accountUC.CreateAccount(r.Context(), &domain.AccountCreate{
		CompanyID: companyID,
		Code:      in.Code,
		Name:      in.Name,
		Type:      domain.AccountType(in.Type),
		ParentID:  in.ParentID,
	})
	if err != nil {
		h.handleError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, account)
}

func (h *LedgerRestHandler) SeedChart(w http.ResponseWriter, r *http.Request) {
	created, err := h.seeder.SeedCompany(r.Context(), chi.URLParam(r, "companyID"))
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"created": created,
		"seeded":  len(created),
	})
}

func (h *LedgerRestHandler) GetAccountTree(w http.ResponseWriter, r *http.Request) {
	tree, err := h.accountUC.GetAccountTree(r.Context(), chi.URLParam(r, "companyID"))
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, tree)
}

func (h *LedgerRestHandler) DeactivateAccount(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.int64Param(w, r, "accountID")
	if !ok {
		return
	}
	if err := h.accountUC.DeactivateAccount(r.Context(), accountID); err != nil {
		h.handleError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

func (h *LedgerRestHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.int64Param(w, r, "accountID")
	if !ok {
		return
	}

	asOf, ok := h.timeQuery(w, r, "as_of")
	if !ok {
		return
	}

	balance, err := h.balanceUC.GetBalance(r.Context(), accountID, asOf)
	if err != nil {
		h.handleError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"account_id": accountID,
		"balance":    balance,
	})
}

func (h *LedgerRestHandler) GetAccountStatement(w http.ResponseWriter, r *http.Request) {
	companyID := chi.URLParam(r, "companyID")
	accountID, ok := h.int64Param(w, r, "accountID")
	if !ok {
		return
	}

	from, ok := h.timeQuery(w, r, "from")
	if !ok {
		return
	}
	to, ok := h.timeQuery(w, r, "to")
	if !ok {
		return
	}

	now := time.Now().UTC()
	if to == nil {
		to = &now
	}
	if from == nil {
		monthAgo := now.AddDate(0, -1, 0)
		from = &monthAgo
	}

	stmt, err := h.ledgerUC.GetAccountStatement(r.Context(), companyID, accountID, *from, *to)
	if err != nil {
		h.handleError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, stmt)
}

// ===============================
// JOURNAL ENTRIES
// ===============================

type CreateEntryLineJSON struct {
	AccountID int64           `json:"account_id"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
	Memo      *string         `json:"memo,omitempty"`
}

type CreateEntryJSON struct {
	EntryDate   time.Time             `json:"entry_date"`
	Description string                `json:"description"`
	Reference   string                `json:"reference"`
	Lines       []CreateEntryLineJSON `json:"lines"`
}

func (h *LedgerRestHandler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	companyID := chi.URLParam(r, "companyID")

	var in CreateEntryJSON
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	create := &domain.JournalEntryCreate{
		CompanyID:   companyID,
		EntryDate:   in.EntryDate,
		Description: in.Description,
		Reference:   in.Reference,
	}
	for _, l := range in.Lines {
		create.Lines = append(create.Lines, &domain.JournalLineCreate{
			AccountID: l.AccountID,
			Debit:     l.Debit,
			Credit:    l.Credit,
			Memo:      l.Memo,
		})
	}

	entry, err := h.journalUC.CreateEntry(r.Context(), create)
	if err != nil {
		h.handleError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, entry)
}

func (h *LedgerRestHandler) GetEntry(w http.ResponseWriter, r *http.Request) {
	companyID := chi.URLParam(r, "companyID")
	entryID, ok := h.int64Param(w, r, "entryID")
	if !ok {
		return
	}

	entry, err := h.ledgerUC.GetEntry(r.Context(), companyID, entryID)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, entry)
}

func (h *LedgerRestHandler) PostEntry(w http.ResponseWriter, r *http.Request) {
	entryID, ok := h.int64Param(w, r, "entryID")
	if !ok {
		return
	}

	entry, err := h.journalUC.PostEntry(r.Context(), entryID)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, entry)
}

func (h *LedgerRestHandler) CancelEntry(w http.ResponseWriter, r *http.Request) {
	entryID, ok := h.int64Param(w, r, "entryID")
	if !ok {
		return
	}

	entry, err := h.journalUC.CancelEntry(r.Context(), entryID)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, entry)
}

type ReverseEntryJSON struct {
	Date time.Time `json:"date"`
}

func (h *LedgerRestHandler) ReverseEntry(w http.ResponseWriter, r *http.Request) {
	entryID, ok := h.int64Param(w, r, "entryID")
	if !ok {
		return
	}

	var in ReverseEntryJSON
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&in)
	}

	reversal, err := h.journalUC.ReverseEntry(r.Context(), entryID, in.Date)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, reversal)
}

func (h *LedgerRestHandler) GetJournalEntries(w http.ResponseWriter, r *http.Request) {
	companyID := chi.URLParam(r, "companyID")

	filter := &domain.EntryFilter{
		Page:     h.intQuery(r, "page", 1),
		PageSize: h.intQuery(r, "page_size", 0),
	}
	if s := r.URL.Query().Get("status"); s != "" {
		status := domain.EntryStatus(s)
		if !status.IsValid() {
			h.writeError(w, http.StatusBadRequest, "invalid status filter")
			return
		}
		filter.Status = &status
	}
	if ref := r.URL.Query().Get("reference"); ref != "" {
		filter.Reference = &ref
	}
	var ok bool
	if filter.StartDate, ok = h.timeQuery(w, r, "from"); !ok {
		return
	}
	if filter.EndDate, ok = h.timeQuery(w, r, "to"); !ok {
		return
	}

	page, err := h.ledgerUC.GetJournalEntries(r.Context(), companyID, filter)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, page)
}

// ===============================
// LEDGER VIEWS
// ===============================

func (h *LedgerRestHandler) GetTrialBalance(w http.ResponseWriter, r *http.Request) {
	companyID := chi.URLParam(r, "companyID")

	asOf, ok := h.timeQuery(w, r, "as_of")
	if !ok {
		return
	}

	tb, err := h.balanceUC.GetTrialBalance(r.Context(), companyID, asOf)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, tb)
}

func (h *LedgerRestHandler) GetGeneralLedger(w http.ResponseWriter, r *http.Request) {
	companyID := chi.URLParam(r, "companyID")

	filter := &domain.LedgerFilter{
		Page:     h.intQuery(r, "page", 1),
		PageSize: h.intQuery(r, "page_size", 0),
	}
	if s := r.URL.Query().Get("account_id"); s != "" {
		accountID, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid account_id")
			return
		}
		filter.AccountID = &accountID
	}
	var ok bool
	if filter.StartDate, ok = h.timeQuery(w, r, "from"); !ok {
		return
	}
	if filter.EndDate, ok = h.timeQuery(w, r, "to"); !ok {
		return
	}

	ledger, err := h.ledgerUC.GetGeneralLedger(r.Context(), companyID, filter)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ledger)
}

func (h *LedgerRestHandler) RecomputeBalances(w http.ResponseWriter, r *http.Request) {
	companyID := chi.URLParam(r, "companyID")

	if err := h.balanceUC.RecomputeAll(r.Context(), companyID); err != nil {
		h.handleError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "recomputed"})
}

// ===============================
// HELPERS
// ===============================

func (h *LedgerRestHandler) int64Param(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	v, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return v, true
}

func (h *LedgerRestHandler) intQuery(r *http.Request, name string, def int) int {
	if s := r.URL.Query().Get(name); s != "" {
		if v, err := strconv.Atoi(s); err == nil {
			return v
		}
	}
	return def
}

func (h *LedgerRestHandler) timeQuery(w http.ResponseWriter, r *http.Request, name string) (*time.Time, bool) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		if t, err = time.Parse("2006-01-02", s); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid "+name+" date")
			return nil, false
		}
	}
	return &t, true
}

func (h *LedgerRestHandler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("failed to encode response", zap.Error(err))
	}
}

func (h *LedgerRestHandler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

// handleError maps domain error kinds onto transport codes
func (h *LedgerRestHandler) handleError(w http.ResponseWriter, err error) {
	var unbalanced *xerrors.UnbalancedEntryError
	if errors.As(err, &unbalanced) {
		h.writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": unbalanced.Error(),
			"delta": unbalanced.Delta,
		})
		return
	}

	var storage *xerrors.StorageError
	if errors.As(err, &storage) {
		h.logger.Error("storage failure", zap.Error(err))
		h.writeError(w, http.StatusServiceUnavailable, "storage temporarily unavailable, retry")
		return
	}

	switch {
	case errors.Is(err, xerrors.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, xerrors.ErrValidation),
		errors.Is(err, xerrors.ErrInvalidType),
		errors.Is(err, xerrors.ErrInvalidParent),
		errors.Is(err, xerrors.ErrInsufficientLines),
		errors.Is(err, xerrors.ErrInvalidAccountReference):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, xerrors.ErrDuplicateCode),
		errors.Is(err, xerrors.ErrAccountInUse),
		errors.Is(err, xerrors.ErrEntryNotDraft),
		errors.Is(err, xerrors.ErrEntryNotPosted),
		errors.Is(err, xerrors.ErrCannotCancelPosted):
		h.writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("unhandled error", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
