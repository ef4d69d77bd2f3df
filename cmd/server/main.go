package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/dukerupert/ledgerly/internal"
	"github.com/dukerupert/ledgerly/internal/auth"
	"github.com/dukerupert/ledgerly/internal/billing"
	"github.com/dukerupert/ledgerly/internal/clock"
	"github.com/dukerupert/ledgerly/internal/email"
	"github.com/dukerupert/ledgerly/internal/events"
	"github.com/dukerupert/ledgerly/internal/handler/api"
	"github.com/dukerupert/ledgerly/internal/handler/webhook"
	"github.com/dukerupert/ledgerly/internal/jobs"
	"github.com/dukerupert/ledgerly/internal/middleware"
	"github.com/dukerupert/ledgerly/internal/pdf"
	"github.com/dukerupert/ledgerly/internal/postgres"
	"github.com/dukerupert/ledgerly/internal/router"
	"github.com/dukerupert/ledgerly/internal/routes"
	"github.com/dukerupert/ledgerly/internal/scheduler"
	"github.com/dukerupert/ledgerly/internal/service"
	"github.com/dukerupert/ledgerly/internal/storage"
	"github.com/dukerupert/ledgerly/internal/telemetry"
	"github.com/dukerupert/ledgerly/internal/worker"
)

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)
	zerolog.DefaultContextLogger = &logger

	// Initialize Sentry
	reporter, flushSentry, err := telemetry.InitSentry(telemetry.SentryConfig{
		DSN:              cfg.Sentry.DSN,
		Enabled:          cfg.Sentry.Enabled,
		Environment:      cfg.Sentry.Environment,
		Release:          cfg.Sentry.Release,
		SampleRate:       cfg.Sentry.SampleRate,
		TracesSampleRate: cfg.Sentry.TracesSampleRate,
	}, logger)
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}
	defer flushSentry()

	// Initialize database/sql connection for migrations
	logger.Info().Msg("Connecting to database...")
	sqlDB, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	logger.Info().Msg("Database connection established")

	logger.Info().Msg("Running database migrations...")
	if err := internal.RunMigrations(sqlDB); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info().Msg("Database migrations completed successfully")

	// Initialize pgx connection pool for application
	pool, err := pgxpool.New(ctx, cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	// Stores
	accountStore := postgres.NewAccountStore(pool)
	clientStore := postgres.NewClientStore(pool)
	invoiceStore := postgres.NewInvoiceStore(pool)
	webhookEventStore := postgres.NewWebhookEventStore(pool)
	emailLogStore := postgres.NewEmailLogStore(pool)
	notificationStore := postgres.NewNotificationStore(pool)
	jobStore := postgres.NewJobStore(pool)

	clk := clock.Real{}
	registry := prometheus.DefaultRegisterer
	businessMetrics := telemetry.NewBusinessMetrics("ledgerly", registry)

	// Billing provider
	var billingProvider billing.Provider
	if cfg.Stripe.SecretKey != "" {
		stripeConfig := billing.StripeConfig{
			APIKey:        cfg.Stripe.SecretKey,
			WebhookSecret: cfg.Stripe.WebhookSecret,
		}
		stripeProvider, err := billing.NewStripeProvider(stripeConfig)
		if err != nil {
			return fmt.Errorf("failed to initialize Stripe provider: %w", err)
		}
		billingProvider = stripeProvider
		logger.Info().Bool("test_mode", stripeConfig.IsTestMode()).Msg("Stripe billing provider initialized")
	} else {
		billingProvider = billing.NewMockProvider()
		logger.Warn().Msg("STRIPE_SECRET_KEY not set, using mock billing provider")
	}

	// Object storage for rendered PDFs
	fileStorage, err := storage.NewStorage(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	logger.Info().Str("provider", cfg.Storage.Provider).Msg("Storage initialized")

	// Email
	var sender email.Sender
	switch cfg.Email.Provider {
	case "postmark":
		sender = email.NewPostmarkSender(cfg.Email.PostmarkAPIKey, cfg.Email.From)
	case "log":
		sender = email.NewLogSender(logger)
	default:
		sender = email.NewSMTPSender(email.SMTPConfig{
			Host:     cfg.Email.Host,
			Port:     int(cfg.Email.Port),
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
			FromName: cfg.Email.FromName,
		}, logger)
	}
	mailer, err := email.NewService(sender, cfg.Email.From, cfg.Email.FromName)
	if err != nil {
		return fmt.Errorf("failed to initialize email service: %w", err)
	}

	// Notification fan-out
	var publisher events.Publisher = events.Nop{}
	if cfg.NATS.URL != "" {
		nc, err := events.Connect(cfg.NATS.URL, cfg.NATS.SubjectPrefix, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer nc.Close()
		publisher = nc
		logger.Info().Str("url", cfg.NATS.URL).Msg("NATS publisher connected")
	}

	// Services
	tokens, err := auth.NewTokenIssuer(auth.TokenConfig{
		Secret:     cfg.JWT.Secret,
		AccessTTL:  cfg.JWT.AccessExpiresIn,
		RefreshTTL: cfg.JWT.RefreshExpiresIn,
	}, clk)
	if err != nil {
		return fmt.Errorf("failed to initialize token issuer: %w", err)
	}

	notificationService := service.NewNotificationService(notificationStore, publisher, clk, businessMetrics, logger)
	accountService := service.NewAccountService(accountStore, tokens, clk, logger)
	clientService := service.NewClientService(clientStore, clk, logger)

	invoiceService, err := service.NewInvoiceService(service.InvoiceDeps{
		Invoices:          invoiceStore,
		Clients:           clientStore,
		Accounts:          accountStore,
		Notifications:     notificationService,
		Billing:           billingProvider,
		Renderer:          pdf.NewRenderer(),
		Storage:           fileStorage,
		Queue:             jobStore,
		Clock:             clk,
		Metrics:           businessMetrics,
		Logger:            logger,
		PaymentSuccessURL: cfg.FrontendURL + "/payment/success",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize invoice service: %w", err)
	}

	sweepService := service.NewSweepService(invoiceStore, clientStore, notificationService, jobStore, clk, businessMetrics, logger)
	reconciler := service.NewReconciler(billingProvider, invoiceService, webhookEventStore, clk, businessMetrics, reporter, logger)
	dispatcher := service.NewEmailDispatcher(invoiceStore, clientStore, accountStore, emailLogStore, mailer, clk, businessMetrics, logger)

	// ==========================================================================
	// Background worker and daily schedule
	// ==========================================================================

	jobWorker := worker.NewWorker(jobStore, clk, businessMetrics, worker.Config{
		PollInterval:   cfg.Worker.PollInterval,
		MaxConcurrency: cfg.Worker.Concurrency,
	}, logger)
	jobWorker.Handle(jobs.JobTypeMarkOverdueInvoices, sweepService.HandleMarkOverdueJob)
	jobWorker.Handle(jobs.JobTypeInvoiceSent, dispatcher.HandleInvoiceSent)
	jobWorker.Handle(jobs.JobTypeInvoiceOverdue, dispatcher.HandleInvoiceOverdue)
	jobWorker.Handle(jobs.JobTypeCleanupFinishedJobs, service.CleanupFinishedJobs(jobStore, clk, logger))

	sched, err := scheduler.New(clk, scheduler.Config{}, logger,
		scheduler.Task{
			Name:     jobs.JobTypeMarkOverdueInvoices,
			Schedule: scheduler.Daily{Hour: cfg.Worker.OverdueSweepHour},
			Run: func(ctx context.Context, slot time.Time) error {
				_, err := jobs.EnqueueMarkOverdueInvoices(ctx, jobStore, slot)
				return err
			},
		},
		scheduler.Task{
			Name:     jobs.JobTypeCleanupFinishedJobs,
			Schedule: scheduler.Daily{Hour: 3},
			Run: func(ctx context.Context, slot time.Time) error {
				_, err := jobs.EnqueueCleanupFinishedJobs(ctx, jobStore, slot)
				return err
			},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to initialize scheduler: %w", err)
	}

	// ==========================================================================
	// Build route dependencies
	// ==========================================================================

	authRateLimiter := middleware.NewRateLimiter(middleware.AuthRateLimiterConfig())
	defer authRateLimiter.Stop()
	defaultRateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	defer defaultRateLimiter.Stop()

	apiDeps := routes.APIDeps{
		Tokens:              tokens,
		AuthHandler:         api.NewAuthHandler(accountService),
		ClientHandler:       api.NewClientHandler(clientService),
		InvoiceHandler:      api.NewInvoiceHandler(invoiceService),
		NotificationHandler: api.NewNotificationHandler(notificationService),
		AdminHandler:        api.NewAdminHandler(sweepService, clk),
		AuthRateLimit:       authRateLimiter.Middleware,
	}

	webhookDeps := routes.WebhookDeps{
		StripeHandler: webhook.NewStripeHandler(reconciler).HandleWebhook,
	}

	httpMetrics := middleware.NewMetrics("ledgerly", registry)

	opsDeps := routes.OpsDeps{
		Health: func(w http.ResponseWriter, req *http.Request) {
			if err := pool.Ping(req.Context()); err != nil {
				http.Error(w, "database unavailable", http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		},
		Metrics: httpMetrics.Handler(),
	}
	if cfg.Storage.Provider == "local" {
		opsDeps.UploadsDir = cfg.Storage.LocalPath
	}

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	securityConfig := middleware.DefaultSecurityHeadersConfig()
	if cfg.Env == "dev" {
		securityConfig.HSTSMaxAge = 0
	}

	r := router.New(
		middleware.RequestID,
		middleware.WithRequestLogger(logger),
		middleware.WithClientIP(),
		router.Recovery(),
		reporter.Middleware(),
		httpMetrics.Middleware,
		middleware.SecurityHeaders(securityConfig),
		router.CORS([]string{cfg.FrontendURL}),
		defaultRateLimiter.Middleware,
		router.Logger(),
	)

	routes.RegisterOpsRoutes(r, opsDeps)
	routes.RegisterWebhookRoutes(r, webhookDeps)
	routes.RegisterAPIRoutes(r, apiDeps)

	// ==========================================================================
	// Start server, worker and scheduler
	// ==========================================================================

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		jobWorker.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		sched.Start(ctx)
	}()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("address", srv.Addr).Msg("Starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		stop()
		wg.Wait()
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	wg.Wait()
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
