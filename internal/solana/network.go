package solana

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/sirupsen/logrus"
)

// Network bundles the Solana services behind one RPC endpoint.
type Network struct {
	Factory *Factory
	Send    *SendService
	Signer  *SignerService
	rpc     RPC
}

func NewNetwork(ctx context.Context, rpcURL string, keysigner Keysigner, logger logrus.FieldLogger) (*Network, error) {
	rpcClient := rpc.New(rpcURL)

	_, err := rpcClient.GetVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Solana RPC: %w", err)
	}
	return newNetwork(rpcClient, keysigner, logger), nil
}

func newNetwork(rpcClient RPC, keysigner Keysigner, logger logrus.FieldLogger) *Network {
	factory := NewFactory()
	return &Network{
		Factory: factory,
		Send:    NewSendService(rpcClient, factory),
		Signer:  NewSignerService(keysigner, rpcClient, logger.WithField("chain", "Solana")),
		rpc:     rpcClient,
	}
}

func (n *Network) RPC() RPC { return n.rpc }
