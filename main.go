package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"secursales/internal/audit"
	"secursales/internal/auth"
	catalogapp "secursales/internal/catalog/application"
	catalogrepo "secursales/internal/catalog/infrastructure/postgres"
	cataloginterfaces "secursales/internal/catalog/interfaces"
	"secursales/internal/eventing"
	eventingrepo "secursales/internal/eventing/infrastructure/postgres"
	"secursales/internal/observability/metrics"
	salesapp "secursales/internal/sales/application"
	salesrepo "secursales/internal/sales/infrastructure/postgres"
	salesinterfaces "secursales/internal/sales/interfaces"
	"secursales/migrations"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	_ = godotenv.Load()
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}
	if err := migrations.Up(ctx, db); err != nil {
		logger.Fatalf("db migrate error: %v", err)
	}

	metrics.Init(db, logger)
	auditRepo := audit.NewRepository(db)

	salesCfg, err := salesapp.LoadConfig(cfg.SalesConfigPath)
	if err != nil {
		logger.Fatalf("sales config error: %v", err)
	}
	pricer, err := salesCfg.Pricer()
	if err != nil {
		logger.Fatalf("pricer error: %v", err)
	}

	productService, err := catalogapp.NewService(catalogrepo.NewRepository(db))
	if err != nil {
		logger.Fatalf("catalog service error: %v", err)
	}
	productHandler, err := cataloginterfaces.NewProductHandler(productService, cfg.TenantID, auditRepo)
	if err != nil {
		logger.Fatalf("product handler error: %v", err)
	}

	orderRepo := salesrepo.NewOrderRepository(db)
	ledgerRepo := salesrepo.NewLedgerRepository(db)
	orderService, err := salesapp.NewOrderService(orderRepo, ledgerRepo, productService, pricer)
	if err != nil {
		logger.Fatalf("order service error: %v", err)
	}
	outboxStore := eventingrepo.NewOutboxStore(db)
	dispatcher, err := eventing.NewDispatcher(outboxStore, logger)
	if err != nil {
		logger.Fatalf("outbox dispatcher error: %v", err)
	}
	dispatcher.Handle(salesapp.PaymentRecordedEvent,
		salesinterfaces.PaymentRecordedHandler(salesinterfaces.NewLoggingPublisher(logger)))
	go dispatcher.Run(ctx, cfg.OutboxInterval)

	paymentService, err := salesapp.NewPaymentService(ledgerRepo,
		salesapp.WithPublisher(salesinterfaces.NewOutboxPublisher(eventing.NewPublisher(outboxStore, nil))),
		salesapp.WithMaxRetries(cfg.PaymentMaxRetries),
		salesapp.WithPaymentLogger(logger),
	)
	if err != nil {
		logger.Fatalf("payment service error: %v", err)
	}
	salesHandler, err := salesinterfaces.NewSalesHandler(orderService, paymentService, cfg.TenantID, auditRepo, logger)
	if err != nil {
		logger.Fatalf("sales handler error: %v", err)
	}

	overdueScanner, err := salesapp.NewOverdueScanner(ledgerRepo, salesapp.SystemClock{}, logger)
	if err != nil {
		logger.Fatalf("overdue scanner error: %v", err)
	}
	go salesapp.NewScheduler(overdueScanner, cfg.OverdueScanAt, logger).Start(ctx)

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy,
		auth.WithCookieName(cfg.CookieName),
		auth.WithAPIKey(cfg.APIKey, cfg.TenantID, auth.RoleAgent),
	)

	router := newRouter(logger, authMiddleware, salesHandler, productHandler)
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Printf("http listening on %s", cfg.HTTPAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal(err)
	}
}

type routeRegistrar interface {
	Register(r chi.Router)
}

func newRouter(logger *log.Logger, authMiddleware *auth.Middleware, handlers ...routeRegistrar) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(correlationMiddleware)
	r.Use(func(next http.Handler) http.Handler { return loggingMiddleware(next, logger) })
	r.Use(authMiddleware.Wrap)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Route("/api/v1", func(api chi.Router) {
		for _, h := range handlers {
			h.Register(api)
		}
	})
	return r
}

type config struct {
	DatabaseURL       string
	HTTPAddr          string
	TenantID          string
	JWTSecret         string
	CookieName        string
	APIKey            string
	OverdueScanAt     string
	PaymentMaxRetries int
	SalesConfigPath   string
	OutboxInterval    time.Duration
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:       getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:          getenvDefault("HTTP_ADDR", ":8080"),
		TenantID:          getenvDefault("TENANT_ID", "assurvente"),
		JWTSecret:         getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		CookieName:        getenvDefault("AUTH_COOKIE_NAME", auth.DefaultCookieName),
		APIKey:            getenvDefault("API_KEY", ""),
		OverdueScanAt:     getenvDefault("OVERDUE_SCAN_AT", "02:00"),
		PaymentMaxRetries: getenvIntDefault("PAYMENT_MAX_RETRIES", 5),
		SalesConfigPath:   getenvDefault("SALES_CONFIG", ""),
		OutboxInterval:    getenvDuration("OUTBOX_DISPATCH_INTERVAL", 5*time.Second),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func correlationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := eventing.WithCorrelationID(r.Context(), middleware.GetReqID(r.Context()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s req=%s", r.Method, r.URL.Path, resp.status, time.Since(start), middleware.GetReqID(r.Context()))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
