package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vultisig/vultisig-go/common"
	"golang.org/x/sync/errgroup"

	"github.com/vultisig/app-recovery/internal/evm"
	"github.com/vultisig/app-recovery/internal/graceful"
	"github.com/vultisig/app-recovery/internal/metrics"
	"github.com/vultisig/app-recovery/internal/recovery"
	"github.com/vultisig/app-recovery/internal/util"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	cfg, err := newConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Fatalf("invalid LOG_LEVEL: %v", err)
	}
	logger.SetLevel(level)

	chain, err := common.FromString(cfg.Chain)
	if err != nil {
		logger.Fatalf("invalid CHAIN: %v", err)
	}

	var fixedGasPrice *big.Int
	if cfg.FixedGasPrice != "" {
		fixedGasPrice, err = util.ToBaseUnits(cfg.FixedGasPrice, util.GweiDecimals)
		if err != nil {
			logger.Fatalf("invalid FIXED_GAS_PRICE_GWEI: %v", err)
		}
	}

	metricsServer := metrics.StartMetricsServer(cfg.Metrics, []string{metrics.ServiceRecovery}, logger)
	defer func() {
		if metricsServer != nil {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer stopCancel()
			if err := metricsServer.Stop(stopCtx); err != nil {
				logger.Errorf("failed to stop metrics server: %v", err)
			}
		}
	}()

	// the recovery binary never runs a keysign ceremony
	network, err := evm.NewNetwork(ctx, chain, cfg.RpcURL, evm.NewParamsCache(), nil, logger)
	if err != nil {
		logger.Fatalf("failed to initialize %s network: %v", chain, err)
	}

	engine := recovery.NewEngine(
		chain.String(),
		network.Factory,
		recovery.NewEtherscanClient(cfg.Explorer.URL, cfg.Explorer.ApiKey, logger),
		network.Balance,
		logger,
		recovery.WithPacing(cfg.Pacing),
	)

	g, gctx := errgroup.WithContext(ctx)
	done := make(chan struct{})
	g.Go(func() error {
		defer close(done)
		outcome, err := engine.Recover(gctx, recovery.Request{
			UserKey:        cfg.UserKey,
			BackupKey:      cfg.BackupKey,
			Passphrase:     cfg.Passphrase,
			WalletContract: cfg.WalletContract,
			Destination:    cfg.Destination,
			TokenContract:  cfg.TokenContract,
			GasLimit:       cfg.GasLimit,
			FixedGasPrice:  fixedGasPrice,
		})
		if err != nil {
			return err
		}
		return writeOutcome(cfg.OutputFile, outcome)
	})
	g.Go(func() error {
		select {
		case sig := <-graceful.MakeSigintChan():
			logger.Infof("received exit signal: %v", sig)
			return fmt.Errorf("interrupted by %v", sig)
		case <-done:
			return nil
		}
	})

	if err = g.Wait(); err != nil {
		logger.Fatalf("recovery failed: %v", err)
	}
}

func writeOutcome(path string, outcome recovery.Outcome) error {
	body, err := json.MarshalIndent(outcome, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal outcome: %w", err)
	}
	if path == "" {
		_, err = fmt.Fprintln(os.Stdout, string(body))
		return err
	}
	if err = os.WriteFile(path, body, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
