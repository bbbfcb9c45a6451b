package http

import (
	"context"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/numgate/numgate/internal/catalog"
	"github.com/numgate/numgate/internal/config"
	"github.com/numgate/numgate/internal/http/middleware"
	"github.com/numgate/numgate/internal/identity"
	"github.com/numgate/numgate/internal/logger"
	"github.com/numgate/numgate/internal/metrics"
	"github.com/numgate/numgate/internal/provider"
	"github.com/numgate/numgate/internal/repository"
	"github.com/numgate/numgate/internal/service/commission"
	ledgersvc "github.com/numgate/numgate/internal/service/ledger"
	"github.com/numgate/numgate/internal/service/rental"
)

type Server struct{ e *echo.Echo }

func NewServer(cfg config.Config, mysqlDB, clickhouseDB *sqlx.DB, rds *redis.Client) *Server {
	// repos (MySQL)
	accountsRepo := repository.NewAccountsRepository(mysqlDB)
	walletRepo := repository.NewWalletRepository()
	ledgerRepo := repository.NewLedgerRepository()
	partnersRepo := repository.NewPartnersRepository(mysqlDB)
	rentalsRepo := repository.NewRentalsRepository(mysqlDB)
	historyRepo := repository.NewHistoryRepository(mysqlDB)
	commissionsRepo := repository.NewCommissionsRepository(mysqlDB)
	keyAuditRepo := repository.NewKeyAuditRepository(mysqlDB)
	withdrawalsRepo := repository.NewWithdrawalsRepository(mysqlDB)
	outboxRepo := repository.NewOutboxRepository(mysqlDB)

	// repos (ClickHouse)
	eventsRepo := repository.NewEventsRepository(clickhouseDB)

	// external collaborators
	idp := identity.NewClient(cfg.Identity.BaseURL, cfg.Identity.APIKey, cfg.Identity.TimeoutMs)
	numProvider := provider.NewClient(
		cfg.Provider.BaseURL,
		cfg.Provider.APIKey,
		cfg.Provider.TimeoutMs,
		cfg.Provider.Breaker.FailThreshold,
		cfg.Provider.Breaker.OpenForMs,
	)

	// services
	cat := catalog.New(cfg.Catalog)
	ledgerSvc := ledgersvc.New(walletRepo, ledgerRepo)
	engine := commission.New(partnersRepo, accountsRepo, commissionsRepo)
	rentalSvc := rental.New(
		mysqlDB,
		cat,
		numProvider,
		ledgerSvc,
		engine,
		rentalsRepo,
		historyRepo,
		outboxRepo,
		cfg.Rental.TTL,
		cfg.Rental.OTPMinDigits,
		cfg.Rental.OTPMaxDigits,
	)

	// echo
	e := echo.New()
	e.HideBanner = true
	e.Use(echoMid.Recover(), echoMid.Logger())

	metrics.MustRegister(prometheus.DefaultRegisterer)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	// middlewares
	authMW := middleware.Auth(accountsRepo, idp)
	rlMW := middleware.RateLimit(middleware.RateLimitConfig{
		Redis:          rds,
		DefaultRPS:     cfg.RateLimit.RPS,
		KeyPrefix:      "rl:acct:",
		Window:         time.Second,
		RetryAfterHint: true,
	})

	// public routes
	e.GET("/services", servicesHandler(cat))
	e.POST("/register", registerHandler(idp, accountsRepo))
	e.POST("/resetPassword", resetPasswordHandler(idp))

	// authenticated buyer surface (API key or bearer)
	e.GET("/getBalance", balanceHandler(), authMW)
	e.GET("/getNumber", getNumberHandler(rentalSvc), authMW, rlMW)
	e.GET("/getOtp", getOtpHandler(rentalSvc), authMW, rlMW)
	e.GET("/cancelNumber", cancelNumberHandler(rentalSvc), authMW)
	e.GET("/getHistory", getHistoryHandler(historyRepo), authMW)

	changeKey := changeAPIKeyHandler(mysqlDB, accountsRepo, keyAuditRepo, rds, cfg.Rotation.MaxPerHour)
	e.POST("/changeApiKey", changeKey, authMW, rlMW)
	e.POST("/dashboard/changeApiKey", changeKey, authMW, rlMW)

	// partner surface (bearer sessions only)
	p := e.Group("/partner", authMW, middleware.RequireBearer())
	p.POST("/register", partnerRegisterHandler(partnersRepo, cfg.Partners.AllowReferred))
	p.GET("/info", partnerInfoHandler(partnersRepo))
	p.GET("/stats", partnerStatsHandler(partnersRepo))
	p.GET("/prices", partnerPricesHandler(partnersRepo, cat))
	p.GET("/sales", partnerSalesHandler(partnersRepo, commissionsRepo))
	p.POST("/withdraw", partnerWithdrawHandler(mysqlDB, partnersRepo, withdrawalsRepo))

	// admin surface
	a := e.Group("/admin", authMW, middleware.RequireBearer(), middleware.RequireAdmin())
	a.GET("/stats", adminStatsHandler(accountsRepo, rentalsRepo, eventsRepo))
	a.GET("/users", adminUsersHandler(accountsRepo))
	a.POST("/adjustBalance", adminAdjustHandler(mysqlDB, ledgerSvc, accountsRepo))
	a.POST("/partner/status", adminPartnerStatusHandler(partnersRepo))
	a.POST("/withdraw/complete", adminCompleteWithdrawalHandler(mysqlDB, withdrawalsRepo, partnersRepo))
	a.POST("/user/purge", adminPurgeHandler(mysqlDB, accountsRepo))

	return &Server{e: e}
}

func (s *Server) Start(addr string) error {
	logger.Log.Info("http: listening", zap.String("addr", addr))
	return s.e.Start(addr)
}
func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }
