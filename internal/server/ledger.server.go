package server

import (
	"context"
	"net/http"
	"time"

	"ledger-service/internal/config"
	hrest "ledger-service/internal/handler/rest"
	"ledger-service/internal/pub"
	"ledger-service/internal/repository"
	"ledger-service/internal/service"
	"ledger-service/internal/usecase"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// LedgerServer wires the ledger core and serves it over HTTP
type LedgerServer struct {
	httpServer *http.Server
	publisher  *pub.LedgerEventPublisher
	logger     *zap.Logger
}

func NewLedgerServer(cfg config.AppConfig) (*LedgerServer, error) {
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}

	// --- DB connection ---
	dbpool, err := config.ConnectDB()
	if err != nil {
		return nil, err
	}

	// --- Redis client ---
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       0,
	})

	// --- Event publisher ---
	publisher := pub.NewLedgerEventPublisher(cfg.KafkaBrokers, logger)

	// --- Repositories ---
	accountRepo := repository.NewAccountRepo(dbpool)
	journalRepo := repository.NewJournalRepo(dbpool)
	balanceRepo := repository.NewBalanceRepo(dbpool)
	ledgerRepo := repository.NewLedgerRepo(dbpool, journalRepo, balanceRepo)

	// --- Usecases ---
	locks := usecase.NewCompanyLocks()
	accountUC := usecase.NewAccountUsecase(accountRepo, rdb)
	journalUC := usecase.NewJournalUsecase(journalRepo, accountRepo, ledgerRepo, locks, rdb, publisher)
	balanceUC := usecase.NewBalanceUsecase(balanceRepo, accountRepo, ledgerRepo, locks, rdb)
	ledgerUC := usecase.NewLedgerUsecase(ledgerRepo, journalRepo, accountRepo, balanceRepo, rdb)

	// --- Services ---
	seeder := service.NewChartSeeder(accountUC, logger)

	// --- REST handler ---
	handler := hrest.NewLedgerRestHandler(accountUC, journalUC, balanceUC, ledgerUC, seeder, logger)

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      handler.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &LedgerServer{
		httpServer: httpServer,
		publisher:  publisher,
		logger:     logger,
	}, nil
}

// Run serves HTTP until the server is shut down
func (s *LedgerServer) Run() error {
	s.logger.Info("ledger HTTP server starting", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and flushes the publisher
func (s *LedgerServer) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	if err := s.publisher.Close(); err != nil {
		s.logger.Warn("failed to close event publisher", zap.Error(err))
	}
	_ = s.logger.Sync()
	return nil
}
