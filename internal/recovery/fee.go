package recovery

import (
	"context"
	"fmt"
	"math/big"

	"github.com/sirupsen/logrus"

	"github.com/vultisig/app-recovery/internal/evm"
	"github.com/vultisig/app-recovery/internal/util"
)

// Gas limit bounds of the recovery send.
const (
	DefaultGasLimit = 500000
	MinGasLimit     = 30000
	MaxGasLimit     = 20000000
)

// Live gas price bounds.
var (
	MinGasPrice = big.NewInt(1_000_000_000)
	MaxGasPrice = big.NewInt(1_000_000_000_000)
)

// GasPriceOracle suggests the current gas price, e.g. an ethclient.
type GasPriceOracle interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// FeeConfig is the caller's fee choice. FixedGasPrice skips the oracle and
// marks the outcome as using a fixed fee.
type FeeConfig struct {
	GasLimit      uint64
	FixedGasPrice *big.Int
}

func resolveGasLimit(limit uint64) (uint64, error) {
	if limit == 0 {
		return DefaultGasLimit, nil
	}
	if limit < MinGasLimit || limit > MaxGasLimit {
		return 0, fmt.Errorf("Gas limit must be between %d and %d", MinGasLimit, MaxGasLimit)
	}
	return limit, nil
}

// resolveFee returns the fee of the recovery and whether it is a configured
// fixed price rather than a live estimate.
func resolveFee(ctx context.Context, oracle GasPriceOracle, cfg FeeConfig, logger logrus.FieldLogger) (evm.Fee, bool, error) {
	limit, err := resolveGasLimit(cfg.GasLimit)
	if err != nil {
		return evm.Fee{}, false, err
	}

	if cfg.FixedGasPrice != nil {
		if cfg.FixedGasPrice.Sign() <= 0 {
			return evm.Fee{}, false, fmt.Errorf("invalid fixed gas price: %s", cfg.FixedGasPrice)
		}
		logger.WithFields(logrus.Fields{
			"gas_price_gwei": util.FormatGwei(cfg.FixedGasPrice),
			"gas_limit":      limit,
		}).Warn("using configured fixed gas price instead of a live estimate")
		return evm.Fee{GasPrice: new(big.Int).Set(cfg.FixedGasPrice), GasLimit: limit}, true, nil
	}

	if oracle == nil {
		return evm.Fee{}, false, fmt.Errorf("no gas price oracle and no fixed gas price configured")
	}
	price, err := oracle.SuggestGasPrice(ctx)
	if err != nil {
		return evm.Fee{}, false, fmt.Errorf("failed to estimate gas price: %w", err)
	}
	if price.Cmp(MinGasPrice) < 0 || price.Cmp(MaxGasPrice) > 0 {
		return evm.Fee{}, false, fmt.Errorf("Gas price %s Gwei is outside %s to %s Gwei",
			util.FormatGwei(price), util.FormatGwei(MinGasPrice), util.FormatGwei(MaxGasPrice))
	}
	return evm.Fee{GasPrice: price, GasLimit: limit}, false, nil
}
