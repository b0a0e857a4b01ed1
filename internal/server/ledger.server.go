package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kardiguemagassa/paymybuddy/internal/config"
	hrest "github.com/kardiguemagassa/paymybuddy/internal/handler/rest"
	"github.com/kardiguemagassa/paymybuddy/internal/pub"
	"github.com/kardiguemagassa/paymybuddy/internal/repository"
	"github.com/kardiguemagassa/paymybuddy/internal/service"
	"github.com/kardiguemagassa/paymybuddy/internal/usecase"
)

// Run wires the ledger service together and serves HTTP until ctx is
// cancelled, then drains in-flight requests.
func Run(ctx context.Context, cfg config.AppConfig, log *zap.Logger) error {
	dbpool, err := config.ConnectDB(log)
	if err != nil {
		return err
	}
	defer dbpool.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       0,
	})
	defer rdb.Close()

	// --- Repositories ---
	accountRepo := repository.NewAccountRepo(dbpool)
	connRepo := repository.NewConnectionRepo(dbpool)
	txnRepo := repository.NewTransactionRepo(dbpool)
	ledgerRepo := repository.NewLedgerRepo(dbpool)

	// --- Services ---
	fxService := service.NewFXService()
	locks := usecase.NewPairLocker(cfg.LockTimeout)
	events := pub.NewEventPublisher(rdb)

	// --- Usecases ---
	accountUC := usecase.NewAccountUsecase(accountRepo, log)
	connUC := usecase.NewConnectionUsecase(accountRepo, connRepo, locks, log)
	txUC := usecase.NewTransactionUsecase(accountRepo, connRepo, ledgerRepo, txnRepo,
		fxService, locks, events, rdb, log)

	// --- HTTP handler ---
	handler := hrest.NewLedgerRestHandler(accountUC, txUC, connUC, fxService, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	handler.RegisterRoutes(r)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("ledger HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}
