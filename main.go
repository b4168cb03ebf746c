package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/stablepay-hq/payrunner/pkg/circuitbreaker"
	"github.com/stablepay-hq/payrunner/pkg/config"
	"github.com/stablepay-hq/payrunner/pkg/dispatcher"
	"github.com/stablepay-hq/payrunner/pkg/keymanager"
	"github.com/stablepay-hq/payrunner/pkg/ledgerstore"
	"github.com/stablepay-hq/payrunner/pkg/logger"
	"github.com/stablepay-hq/payrunner/pkg/metrics"
	"github.com/stablepay-hq/payrunner/pkg/tonchain"
)

func main() {
	// Load configuration from environment variables
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	lg := logger.NewStdLogger(cfg.LoggerConfig.Coloring, cfg.LoggerConfig.Level)

	// Derive the treasury key and refuse to run from the wrong account. This
	// happens before any store read.
	signer, err := keymanager.FromMnemonic(cfg.WalletMnemonic)
	if err != nil {
		log.Fatalf("Failed to derive treasury key: %v", err)
	}
	if err := signer.VerifyTreasury(cfg.Treasury); err != nil {
		log.Fatalf("Refusing to start: %v", err)
	}
	lg.InfoWith(logger.Keys, "treasury wallet %s verified", signer.Address().String())

	// Set up context with cancellation on SIGINT/SIGTERM. Cancellation takes
	// effect between rows; a partial batch is a safe, resumable state.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signalCh
		lg.Notice("Received termination signal, finishing current row...")
		cancel()
	}()

	store := ledgerstore.New(cfg.LedgerAPIURL, cfg.LedgerAPIKey, cfg.LedgerTable, cfg.CallTimeout, lg)

	chain, err := tonchain.Connect(ctx, cfg.TonConfigURL, cfg.CallTimeout, lg)
	if err != nil {
		log.Fatalf("Failed to connect to the chain: %v", err)
	}

	breaker := circuitbreaker.NewCircuitBreaker(
		cfg.CircuitBreaker.Enabled,
		cfg.CircuitBreaker.Threshold,
		cfg.CircuitBreaker.WindowDuration,
		cfg.CircuitBreaker.ResetTimeout,
		lg,
	)

	d := dispatcher.New(dispatcher.Options{
		Store:          store,
		Chain:          chain,
		Signer:         signer,
		Breaker:        breaker,
		Logger:         lg,
		JettonMaster:   cfg.JettonMaster,
		AttachTON:      cfg.AttachTON,
		ForwardTON:     cfg.ForwardTON.Nano(),
		TokenDecimals:  cfg.TokenDecimals,
		BatchLimit:     cfg.BatchLimit,
		PacingInterval: cfg.PacingInterval,
	})

	rep, err := d.Run(ctx)
	if pushErr := metrics.Push(cfg.PushgatewayURL); pushErr != nil {
		lg.Error("Failed to push metrics: %v", pushErr)
	}
	if err != nil {
		log.Fatalf("Batch run failed: %v", err)
	}

	lg.Info("Run complete: %d fetched, %d sent, %d failed, final seqno %d",
		rep.Fetched, rep.Sent, rep.Failed, rep.FinalSeqno)
	if rep.StoreWriteFailures > 0 {
		lg.Error("%d status writes failed after broadcast, reconcile before the next run", rep.StoreWriteFailures)
	}
}
