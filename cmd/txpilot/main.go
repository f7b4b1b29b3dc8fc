// Package main provides the entry point for txpilot. It loads configuration,
// wires the gateway, engine and runner together, starts the operational
// services and drives one batch of sample transfers to a terminal outcome.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/cmatc13/txpilot/internal/api"
	"github.com/cmatc13/txpilot/internal/archive"
	"github.com/cmatc13/txpilot/internal/gateway"
	"github.com/cmatc13/txpilot/internal/publisher"
	"github.com/cmatc13/txpilot/internal/submitter"
	"github.com/cmatc13/txpilot/internal/transfer"
	"github.com/cmatc13/txpilot/internal/wallet"
	"github.com/cmatc13/txpilot/pkg/config"
	"github.com/cmatc13/txpilot/pkg/health"
	"github.com/cmatc13/txpilot/pkg/logging"
	"github.com/cmatc13/txpilot/pkg/metrics"
	"github.com/cmatc13/txpilot/pkg/service"
)

func main() {
	os.Exit(run())
}

func run() int {
	fs := pflag.NewFlagSet("txpilot", pflag.ExitOnError)
	configFile := fs.String("config", "", "Path to configuration file")
	envFile := fs.String("env", ".env", "Path to dotenv file")
	config.RegisterFlags(fs)
	fs.Parse(os.Args[1:])

	opts := config.DefaultLoadOptions()
	opts.ConfigFile = *configFile
	opts.EnvFile = *envFile
	opts.Flags = fs

	cfg, err := config.LoadWithOptions(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}

	logger := logging.New(logging.Config{
		Level:       logging.LogLevel(cfg.Log.Level),
		Output:      os.Stdout,
		ServiceName: "txpilot",
		Environment: cfg.Log.Environment,
	})

	metricsCollector := metrics.New(metrics.Config{
		Namespace:   cfg.Metrics.Namespace,
		ServiceName: "txpilot",
	})

	uptimeDone := make(chan struct{})
	defer close(uptimeDone)
	metricsCollector.RecordUptime(uptimeDone)

	healthRegistry := health.NewRegistry(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := gateway.NewClient(cfg.RPC.URL, cfg.RPC.RequestTimeout)
	healthRegistry.Register("gateway", health.GatewayChecker(cfg.RPC.URL, client.Ping))

	signer, err := wallet.Load(cfg.Wallet.KeypairPath)
	if err != nil {
		logger.Error("Failed to load wallet", "error", err)
		return 1
	}
	if cfg.Wallet.KeypairPath == "" {
		logger.Info("Generated ephemeral wallet", "address", signer.Address)
	} else {
		logger.Info("Loaded wallet", "address", signer.Address)
	}

	registry := service.NewRegistry(logger)

	var runArchive *archive.RedisArchive
	if cfg.Redis.Address != "" {
		runArchive, err = archive.NewRedisArchive(cfg.Redis)
		if err != nil {
			logger.Error("Failed to connect to run archive", "error", err)
			return 1
		}
		healthRegistry.Register("redis", health.RedisChecker(cfg.Redis.Address, runArchive.Ping))
		if err := registry.Register(archive.NewArchiveService(runArchive)); err != nil {
			logger.Error("Failed to register archive service", "error", err)
			return 1
		}
	}

	var resultPublisher *publisher.KafkaPublisher
	if cfg.Kafka.Brokers != "" {
		resultPublisher, err = publisher.NewKafkaPublisher(cfg.Kafka, logger)
		if err != nil {
			logger.Error("Failed to create result publisher", "error", err)
			return 1
		}
		if err := registry.Register(publisher.NewPublisherService(resultPublisher)); err != nil {
			logger.Error("Failed to register publisher service", "error", err)
			return 1
		}
	}

	var runStore api.RunStore
	if runArchive != nil {
		runStore = runArchive
	}
	apiServer := api.NewServer(cfg, logger, metricsCollector, healthRegistry, runStore)
	if err := registry.Register(api.NewAPIService(apiServer, logger)); err != nil {
		logger.Error("Failed to register API service", "error", err)
		return 1
	}

	if err := registry.StartAll(ctx); err != nil {
		logger.Error("Failed to start services", "error", err)
		return 1
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer stopCancel()
		if err := registry.StopAll(stopCtx); err != nil {
			logger.Error("Error during shutdown", "error", err)
		}
	}()

	if cfg.Submitter.MinBalance > 0 {
		balance, err := client.GetBalance(ctx, signer.Address)
		if err != nil {
			logger.Warn("Could not check wallet balance before run", "error", err.Error())
		} else if balance < cfg.Submitter.MinBalance {
			logger.Error("Wallet balance below minimum",
				"address", signer.Address,
				"balance", balance,
				"min_balance", cfg.Submitter.MinBalance,
			)
			return 1
		}
	}

	jobs, err := buildJobs(cfg, signer)
	if err != nil {
		logger.Error("Failed to build transaction jobs", "error", err)
		return 1
	}

	backoff := submitter.NewBackoffPolicy(cfg.Backoff)
	engine := submitter.NewEngine(client, backoff, metricsCollector, logger, cfg.Submitter)

	var archiver submitter.RunArchiver
	if runArchive != nil {
		archiver = runArchive
	}
	var pub submitter.ResultPublisher
	if resultPublisher != nil {
		pub = resultPublisher
	}
	runner := submitter.NewRunner(engine, client, metricsCollector, logger, cfg.Submitter, signer.Address, archiver, pub)

	summary := runner.Run(ctx, jobs)
	apiServer.SetSummary(summary)

	printSummary(summary)

	// Leave the metrics endpoint up long enough for one final scrape.
	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
	}

	if summary.SuccessRatio() < cfg.Submitter.SuccessThreshold {
		return 1
	}
	return 0
}

// buildJobs creates one signed sample transfer per requested transaction,
// each to a freshly generated recipient.
func buildJobs(cfg *config.Config, signer *wallet.Wallet) ([]*submitter.TransactionJob, error) {
	jobs := make([]*submitter.TransactionJob, 0, cfg.Submitter.NumTransactions)

	for i := 0; i < cfg.Submitter.NumTransactions; i++ {
		recipient, err := wallet.NewWallet()
		if err != nil {
			return nil, fmt.Errorf("failed to generate recipient wallet: %w", err)
		}

		nonce := fmt.Sprintf("%d-%d", time.Now().UnixNano(), i)
		t, err := transfer.New(signer.Address, recipient.Address, cfg.Submitter.TransferAmount, nonce)
		if err != nil {
			return nil, fmt.Errorf("failed to create transfer: %w", err)
		}
		if err := t.Sign(signer); err != nil {
			return nil, fmt.Errorf("failed to sign transfer: %w", err)
		}

		payload, err := t.Encode()
		if err != nil {
			return nil, fmt.Errorf("failed to encode transfer: %w", err)
		}

		jobs = append(jobs, submitter.NewJob(payload, cfg.Submitter.MaxRetries, cfg.Submitter.ConfirmationTimeout))
	}

	return jobs, nil
}

// printSummary writes the human-readable run report to stdout.
func printSummary(s *submitter.RunSummary) {
	fmt.Printf("\nRun Results:\n")
	fmt.Printf("  Run ID: %s\n", s.RunID)
	fmt.Printf("  Duration: %.2f seconds\n", s.FinishedAt.Sub(s.StartedAt).Seconds())
	fmt.Printf("  Total Transactions: %d\n", s.Total)
	fmt.Printf("  Confirmed: %d (%.2f%%)\n", s.Succeeded, s.SuccessRatio()*100)
	fmt.Printf("  Failed: %d\n", s.Failed)
	fmt.Printf("  Cancelled: %d\n", s.Cancelled)
	fmt.Printf("  Balance: %d -> %d\n", s.BalanceBefore, s.BalanceAfter)

	if len(s.Latencies) > 0 {
		var sum time.Duration
		for _, l := range s.Latencies {
			sum += l
		}
		fmt.Printf("  Average Confirmation Latency: %d ms\n", (sum / time.Duration(len(s.Latencies))).Milliseconds())
	}
}
