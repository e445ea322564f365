package evm

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"
	rcommon "github.com/vultisig/vultisig-go/common"
)

// Network bundles the RPC-backed services of one EVM chain.
type Network struct {
	Chain   rcommon.Chain
	Params  *NetworkParams
	Factory *Factory
	Balance *balanceService
	Signer  *SignerService
}

func NewNetwork(
	ctx context.Context,
	chain rcommon.Chain,
	rpcUrl string,
	cache *ParamsCache,
	keysigner Keysigner,
	logger logrus.FieldLogger,
) (*Network, error) {
	blob, err := ParamsForChain(chain)
	if err != nil {
		return nil, fmt.Errorf("failed to render network params: %w", err)
	}
	params, err := LoadParams(cache, blob)
	if err != nil {
		return nil, fmt.Errorf("failed to load network params: %w", err)
	}

	rpc, err := ethclient.DialContext(ctx, rpcUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC: %w", err)
	}

	balance := newBalanceService(rpc)
	return &Network{
		Chain:   chain,
		Params:  params,
		Factory: NewFactory(params),
		Balance: balance,
		Signer:  NewSignerService(keysigner, rpc, logger.WithField("chain", chain.String())),
	}, nil
}
