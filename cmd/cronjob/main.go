package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"teambilling/internal/app"
	"teambilling/internal/clock"
	"teambilling/internal/config"
	"teambilling/internal/jobs"
	"teambilling/internal/logger"
	"teambilling/internal/metrics"
	"teambilling/internal/scheduler"
)

// cronjobFeeCacheSeconds caps the fee cache so an invoice run reads fee changes made shortly before it.
const cronjobFeeCacheSeconds = 10

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	runOnce := flag.String("run-once", "", "Run a specific job once and exit (e.g., 'daily-evaluation', 'generate-invoices', 'mark-late-invoices', 'all-daily')")
	asOfFlag := flag.String("as-of", "", "Evaluate as of this date (YYYY-MM-DD) instead of now; only with -run-once")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Failed to load .env: %v", err)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting billing cronjob runner...", "log_level", cfg.Log.Level)

	// Fee configuration is edited through the API server, which runs as another process.
	if cfg.Billing.FeeCacheSeconds > cronjobFeeCacheSeconds {
		cfg.Billing.FeeCacheSeconds = cronjobFeeCacheSeconds
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var clk clock.Clock = clock.System()
	if *asOfFlag != "" {
		d, err := time.Parse("2006-01-02", *asOfFlag)
		if err != nil {
			log.Fatalf("Invalid -as-of date: %v", err)
		}
		clk = clock.NewFixed(d.Add(24*time.Hour - time.Second))
	}

	a, err := app.New(ctx, cfg, clk)
	if err != nil {
		logger.Error("Failed to initialize application", "error", err)
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer a.Close()

	// Check if running a single job
	if *runOnce != "" {
		logger.Info("Running job once", "job", *runOnce, "as_of", clk.Now().Format(time.RFC3339))
		if !runJobOnce(a.Runner, *runOnce) {
			a.Close()
			os.Exit(1)
		}
		logger.Info("Job execution completed", "job", *runOnce)
		return
	}

	if cfg.Metrics.ListenAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(a.Registry))
		go func() {
			logger.Info("Metrics endpoint listening", "address", cfg.Metrics.ListenAddr)
			if err := http.ListenAndServe(cfg.Metrics.ListenAddr, mux); err != nil {
				logger.Error("Metrics endpoint error", "error", err)
			}
		}()
	}

	// Initialize Scheduler
	cronScheduler := scheduler.NewScheduler(a.Runner)

	// Start scheduler
	cronScheduler.Start()
	logger.Info("Cronjob scheduler is running. Press Ctrl+C to stop.")

	<-ctx.Done()

	// Graceful shutdown
	logger.Info("Shutting down cronjob scheduler...")
	cronScheduler.Stop()
	logger.Info("Cronjob scheduler stopped. Goodbye!")
}

// runJobOnce runs a specific job once and reports whether the name was known
func runJobOnce(jobRunner *jobs.JobRunner, jobName string) bool {
	switch jobName {
	case "daily-evaluation":
		jobRunner.DailyEvaluation()
	case "generate-invoices":
		jobRunner.MonthlyInvoices()
	case "mark-late-invoices":
		jobRunner.LateInvoices()
	case "all-daily":
		jobRunner.RunAllDailyJobs()
	default:
		logger.Error("Unknown job name", "job", jobName)
		fmt.Printf("Available jobs:\n")
		fmt.Printf("  - daily-evaluation\n")
		fmt.Printf("  - generate-invoices\n")
		fmt.Printf("  - mark-late-invoices\n")
		fmt.Printf("  - all-daily\n")
		return false
	}
	return true
}
