package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jaaptech/nepalipay/internal"
	"github.com/jaaptech/nepalipay/internal/core/events"
	"github.com/jaaptech/nepalipay/internal/payment"
	paymentpostgres "github.com/jaaptech/nepalipay/internal/payment/postgres"
	"github.com/jaaptech/nepalipay/internal/paymentgateway"
	"github.com/jaaptech/nepalipay/internal/transport/rest"
	"github.com/jaaptech/nepalipay/pkg/logger"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle payment API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config  *internal.Config
	DB      *sqlx.DB
	Router  *chi.Mux
	Manager *payment.Manager
	Logger  *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	setupRoutes(deps)

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:         addr,
		Handler:      deps.Router,
		ReadTimeout:  deps.Config.Server.ReadTimeout,
		WriteTimeout: deps.Config.Server.WriteTimeout,
		IdleTimeout:  deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("received signal, shutting down", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("server shutdown error", "error", err)
		}
		if deps.DB != nil {
			if err := deps.DB.Close(); err != nil {
				deps.Logger.Error("database close error", "error", err)
			}
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("server stopped")
}

func setupRoutes(deps *Dependencies) {
	handler := payment.NewHandler(deps.Manager, deps.Logger)

	var sqlDB *sql.DB
	if deps.DB != nil {
		sqlDB = deps.DB.DB
	}
	rest.RegisterAllRoutes(deps.Router, sqlDB, handler, deps.Logger)
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	env := "development"
	if config.Observability.Logging.Format == "json" {
		env = "production"
	}
	logger.Init(env, config.Observability.Logging.Level)
	log := logger.LoggerWrapper()

	var db *sqlx.DB
	var gormDB *gorm.DB
	if config.Persistence.Enabled {
		db, err = initDB(config.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}

		gormDB, err = gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: db.DB}), &gorm.Config{})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize orm: %w", err)
		}
	}

	eventBus := events.NewEventBus(log)
	registry := paymentgateway.NewRegistry(config, log)

	var paymentService *payment.PaymentService
	var refundService *payment.RefundService
	if gormDB != nil {
		txRepo := paymentpostgres.NewTransactionRepository(gormDB)
		refundRepo := paymentpostgres.NewRefundRepository(gormDB)
		paymentService = payment.NewPaymentService(txRepo, &config.Persistence, eventBus, log)
		refundService = payment.NewRefundService(refundRepo, paymentService, eventBus, log)
	} else {
		// Ledger services stay wired even without a database so every
		// ledger call fails fast instead of panicking on a nil service.
		paymentService = payment.NewPaymentService(nil, &config.Persistence, eventBus, log)
		refundService = payment.NewRefundService(nil, paymentService, eventBus, log)
	}

	manager := payment.NewManager(config, registry, paymentService, refundService, log)

	return &Dependencies{
		Config:  config,
		Logger:  log,
		DB:      db,
		Router:  chi.NewRouter(),
		Manager: manager,
	}, nil
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}
