package main

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/vultisig/app-recovery/internal/metrics"
)

type config struct {
	Chain          string        `envconfig:"CHAIN" default:"Ethereum"`
	RpcURL         string        `envconfig:"RPC_URL" required:"true"`
	Explorer       explorer
	UserKey        string        `envconfig:"USER_KEY" required:"true"`
	BackupKey      string        `envconfig:"BACKUP_KEY" required:"true"`
	Passphrase     string        `envconfig:"WALLET_PASSPHRASE"`
	WalletContract string        `envconfig:"WALLET_CONTRACT" required:"true"`
	Destination    string        `envconfig:"RECOVERY_DESTINATION" required:"true"`
	TokenContract  string        `envconfig:"TOKEN_CONTRACT"`
	GasLimit       uint64        `envconfig:"GAS_LIMIT"`
	FixedGasPrice  string        `envconfig:"FIXED_GAS_PRICE_GWEI"`
	Pacing         time.Duration `envconfig:"EXPLORER_PACING" default:"1s"`
	OutputFile     string        `envconfig:"OUTPUT_FILE"`
	LogLevel       string        `envconfig:"LOG_LEVEL" default:"info"`
	Metrics        metrics.Config
}

type explorer struct {
	URL    string `envconfig:"EXPLORER_URL" required:"true"`
	ApiKey string `envconfig:"EXPLORER_API_KEY"`
}

func newConfig() (config, error) {
	var cfg config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return config{}, fmt.Errorf("failed to process env var: %w", err)
	}
	return cfg, nil
}
