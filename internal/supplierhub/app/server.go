package app

import (
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"

	"supplierhub_api/config"
	"supplierhub_api/internal/supplierhub/app/web/handlers"
	"supplierhub_api/internal/supplierhub/business/services/diff"
	"supplierhub_api/internal/supplierhub/business/services/feed"
	"supplierhub_api/internal/supplierhub/business/services/fetch"
	"supplierhub_api/internal/supplierhub/business/services/guard"
	"supplierhub_api/internal/supplierhub/business/services/preview"
	"supplierhub_api/internal/supplierhub/business/services/pricing"
	"supplierhub_api/internal/supplierhub/business/services/rates"
	"supplierhub_api/internal/supplierhub/business/services/rollback"
	"supplierhub_api/internal/supplierhub/business/services/run"
	"supplierhub_api/internal/supplierhub/storage"
	"supplierhub_api/metrics"
	"supplierhub_api/migrations/infrastructure"
	"supplierhub_api/pkg/dbconnect"
	"supplierhub_api/pkg/dbconnect/migration"
	"supplierhub_api/pkg/logger"
	"supplierhub_api/pkg/middleware"
)

type SupplierHubServer struct {
	dbconnect.Database
	cfg *config.AppConfig
	log logger.Logger
}

func NewServer(connector dbconnect.Database, cfg *config.AppConfig) *SupplierHubServer {
	_log := logger.NewLogger(os.Stdout, "[SupplierHubServer]")
	return &SupplierHubServer{Database: connector, cfg: cfg, log: _log}
}

func (s *SupplierHubServer) Run() {
	db, err := s.Connect()
	if err != nil {
		log.Fatalf("Error connecting to PostgreSQL: %s\n", err)
	}
	defer db.Close()

	migrationApply := []migration.MigrationInterface{
		&infrastructure.MigrationsSchema{},
		&infrastructure.SupplierhubSchema{},
		&infrastructure.CatalogProductTable{},
		&infrastructure.CatalogVariantTable{},
		&infrastructure.CatalogProductShopTable{},
		&infrastructure.CatalogStockTable{},
		&infrastructure.CatalogSpecificPriceTable{},
		&infrastructure.SupplierhubSourceTable{},
		&infrastructure.SupplierhubRunTable{},
		&infrastructure.SupplierhubLogTable{},
		&infrastructure.SupplierhubSnapshotTable{},
		&infrastructure.SupplierhubRateCacheTable{},
	}
	for _, _migration := range migrationApply {
		log.Printf("Applying migration: %T\n", _migration)
		if err := _migration.UpMigration(db); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
	}
	s.log.Log("Supplierhub migrations applied successfully!")

	sourceRepo := storage.NewSourceRepository(db)
	productRepo := storage.NewProductRepository(db)
	runRepo := storage.NewRunRepository(db)
	rateCacheRepo := storage.NewRateCacheRepository(db)
	priceUpdater := storage.NewPriceUpdater(db)
	stockUpdater := storage.NewStockUpdater(db)

	fetchOpts := fetch.DefaultOptions()
	fetchOpts.ConnectTimeout = time.Duration(s.cfg.Fetcher.ConnectTimeoutSec) * time.Second
	fetchOpts.ResponseTimeout = time.Duration(s.cfg.Fetcher.ResponseTimeoutSec) * time.Second
	fetchOpts.MaxRetries = s.cfg.Fetcher.MaxRetries
	fetchOpts.RatePerWindow = s.cfg.Fetcher.RateLimitPerWindow
	fetchOpts.RateWindow = time.Duration(s.cfg.Fetcher.RateWindowSec) * time.Second
	fetchOpts.MaxBodyBytes = s.cfg.Fetcher.MaxBodyBytes
	httpClient := fetch.NewHttpClient(fetchOpts, logger.NewLogger(os.Stdout, "[Fetcher]"))

	rateProvider := rates.NewTableProvider(httpClient, rateCacheRepo, "", logger.NewLogger(os.Stdout, "[Rates]"))
	pricingEngine := pricing.NewEngine(rateProvider, rates.BaseCurrency)
	loader := feed.NewLoader(httpClient, logger.NewLogger(os.Stdout, "[Feed]"))
	differ := diff.NewService(loader, productRepo, pricingEngine, logger.NewLogger(os.Stdout, "[Diff]"))
	guardSvc := guard.NewService(productRepo)

	runSvc := run.NewService(
		sourceRepo, differ, guardSvc,
		priceUpdater, stockUpdater, productRepo,
		runRepo, runRepo,
		logger.NewLogger(os.Stdout, "[Run]"),
	)
	rollbackSvc := rollback.NewService(runRepo, productRepo, runRepo, logger.NewLogger(os.Stdout, "[Rollback]"))
	previewSvc := preview.NewService(sourceRepo, loader)

	router := mux.NewRouter()
	router.Handle("/cron/run",
		middleware.PrometheusMiddleware(handlers.NewCronHandler(runSvc, s.cfg.Server.CronToken, s.log))).
		Methods(http.MethodGet)
	router.Handle("/api/preview",
		middleware.PrometheusMiddleware(handlers.TokenAuth(s.cfg.Server.CronToken,
			handlers.NewPreviewHandler(previewSvc, s.log)))).
		Methods(http.MethodGet)
	router.Handle("/api/runs/{id:[0-9]+}/rollback",
		middleware.PrometheusMiddleware(handlers.TokenAuth(s.cfg.Server.CronToken,
			handlers.NewRollbackHandler(rollbackSvc, runRepo, s.log)))).
		Methods(http.MethodPost)
	router.Handle("/api/runs/{id:[0-9]+}/logs.csv",
		middleware.PrometheusMiddleware(handlers.TokenAuth(s.cfg.Server.CronToken,
			handlers.NewLogsHandler(runSvc, s.log)))).
		Methods(http.MethodGet)
	router.Handle("/metrics", metrics.MetricsHandler())
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := s.Ping(); err != nil {
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	s.log.Log("Listening on %s", s.cfg.Server.Addr)
	log.Fatal(http.ListenAndServe(s.cfg.Server.Addr, router))
}
