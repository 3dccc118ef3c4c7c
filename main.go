package main

import (
	"encoding/json"
	stdlog "log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/username/bankimport/src/config"
	"github.com/username/bankimport/src/database"
	"github.com/username/bankimport/src/directory"
	"github.com/username/bankimport/src/handlers"
	"github.com/username/bankimport/src/ledger"
	"github.com/username/bankimport/src/logger"
	"github.com/username/bankimport/src/parsers/tbank"
	"github.com/username/bankimport/src/services"
	"github.com/username/bankimport/src/storage"
	"golang.org/x/time/rate"
)

var limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded", "path", r.URL.Path)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// pollNewReports drives the engine on a timer. The engine keeps no state
// between cycles beyond the processed-file markers, so a cycle that
// skipped or failed a report simply retries it on the next tick.
func pollNewReports(importService services.ImportService, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		if err := importService.ProcessNewReports(); err != nil {
			logger.L.Error("Processing cycle halted", "error", err)
		}
	}
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)

	logger.L.Info("Bank statement import service starting...")

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	database.RunMigrations(config.Cfg.DatabasePath)

	reportStore, err := storage.NewStore(config.Cfg.ReportsDir, tbank.NewCSVParser(), tbank.NewOFXParser())
	if err != nil {
		stdlog.Fatalf("Failed to open report store at %s: %v", config.Cfg.ReportsDir, err)
	}

	accountingLedger := ledger.NewSQLLedger(database.DB)
	bankDirectory := directory.NewSQLDirectory(database.DB)

	importService := services.NewImportService(reportStore, accountingLedger, bankDirectory, bankDirectory)

	reportHandler := handlers.NewReportHandler(importService)

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(handlers.ContextualLoggerMiddleware)
	r.Use(rateLimitMiddleware)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "Bank statement import service is running"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/reports", reportHandler.HandleUpload)
		r.Get("/reports", reportHandler.HandleListReports)
		r.Post("/reports/process", reportHandler.HandleProcessReports)
	})

	go pollNewReports(importService, config.Cfg.PollInterval)
	logger.L.Info("Report polling started", "dir", config.Cfg.ReportsDir, "interval", config.Cfg.PollInterval.String())

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		stdlog.Fatalf("Failed to start server: %v", err)
	}
}
