/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the attendance engine server: configuration,
  dependency injection, scheduler lifecycle, graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags, load .env if present
  2. Build engine.Config from environment
  3. Initialize SQLite store
  4. Wire services, notifier and the reconciliation scheduler
  5. Start HTTP server; start scheduler
  6. On SIGINT/SIGTERM: stop scheduler, drain server, close store

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: 8080)
  -db      SQLite database path (default: attendance.db)
           Use ":memory:" for an in-memory database

ENVIRONMENT:
  ATTENDANCE_CUTOFF, ON_TIME_THRESHOLD, SWEEP_SCHEDULE,
  REJECTION_SCHEDULE, REMINDER_SCHEDULE, TIMEZONE   (see engine/config.go)
  SMTP_HOST, SMTP_PORT, SMTP_USER, SMTP_PASSWORD, SMTP_FROM
  Without SMTP_HOST, notifications are logged instead of delivered.

SEE ALSO:
  - api/server.go: router configuration
  - reconcile/scheduler.go: job scheduling
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/warp/attendance-engine/api"
	"github.com/warp/attendance-engine/engine"
	"github.com/warp/attendance-engine/notify"
	"github.com/warp/attendance-engine/reconcile"
	"github.com/warp/attendance-engine/store/sqlite"
)

func main() {
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "attendance.db", "SQLite database path")
	flag.Parse()

	// Optional; env vars may come from the environment directly.
	if err := godotenv.Load(); err == nil {
		log.Printf("loaded .env")
	}

	cfg, err := engine.FromEnv()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	notifier := buildNotifier()
	clock := engine.SystemClock()

	ledger := engine.NewLedger(store, store, cfg, clock)
	leaves := engine.NewLeaveService(store, store, store, notifier, cfg, clock)
	grader := engine.NewGrader(store, store, clock)
	jobs := reconcile.NewJobs(store, notifier, cfg, clock)

	scheduler, err := reconcile.NewScheduler(jobs, cfg)
	if err != nil {
		log.Fatalf("Failed to build scheduler: %v", err)
	}

	handler := api.NewHandler(ledger, leaves, grader, store, jobs)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on http://localhost:%d", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	scheduler.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

func buildNotifier() engine.Notifier {
	host := os.Getenv("SMTP_HOST")
	if host == "" {
		log.Printf("SMTP_HOST unset; notifications will be logged only")
		return notify.Logger{}
	}

	port := 465
	if v := os.Getenv("SMTP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			port = p
		}
	}
	return notify.NewSMTP(notify.SMTPConfig{
		Host:     host,
		Port:     port,
		Username: os.Getenv("SMTP_USER"),
		Password: os.Getenv("SMTP_PASSWORD"),
		From:     os.Getenv("SMTP_FROM"),
	})
}
