package api

import (
	"net/http"

	"github.com/ayo6706/ledger-engine/internal/api/handler"
	"github.com/ayo6706/ledger-engine/internal/api/middleware"
	"github.com/ayo6706/ledger-engine/internal/api/spec"
	"github.com/ayo6706/ledger-engine/internal/config"
	"github.com/ayo6706/ledger-engine/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
)

type Router struct {
	cfg          *config.Config
	logger       *zap.Logger
	transactions *service.TransactionService
	accounts     *service.AccountService
	db           handler.Pinger
	redis        redis.Cmdable
}

// NewRouter wires the HTTP surface. db and redis may be nil when the
// corresponding backend is not configured.
func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	transactions *service.TransactionService,
	accounts *service.AccountService,
	db handler.Pinger,
	redis redis.Cmdable,
) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		cfg:          cfg,
		logger:       logger,
		transactions: transactions,
		accounts:     accounts,
		db:           db,
		redis:        redis,
	}
}

func (api *Router) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.TraceMiddleware)
	r.Use(middleware.RecoverMiddleware(api.logger))
	r.Use(middleware.LoggingMiddleware(api.logger))
	r.Use(middleware.MetricsMiddleware)

	healthHandler := handler.NewHealthHandler(api.db, api.redis)
	transactionHandler := handler.NewTransactionHandler(api.transactions)
	accountHandler := handler.NewAccountHandler(api.accounts, api.transactions.Gate())

	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/openapi.yaml", spec.OpenAPIHandler())
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/swagger/index.html", http.StatusMovedPermanently)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.PublicRateLimiter(api.cfg.PublicRateLimitRPS))

		r.Post("/v1/transactions", transactionHandler.ProcessTransaction)
		r.Get("/v1/transactions/{referenceId}", transactionHandler.GetTransaction)

		r.Post("/v1/accounts", accountHandler.CreateAccount)
		r.Get("/v1/accounts/{id}", accountHandler.GetAccount)
		r.Get("/v1/accounts/{id}/transactions", accountHandler.ListTransactions)
		r.Get("/v1/accounts/{id}/validation", accountHandler.Validate)
		r.Patch("/v1/accounts/{id}/status", accountHandler.SetAccountStatus)

		r.Patch("/v1/clients/{id}/status", accountHandler.SetClientStatus)
	})

	return r
}
