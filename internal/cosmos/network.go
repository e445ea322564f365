package cosmos

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/vultisig/vultisig-go/common"
)

// Network bundles the services of one Cosmos-SDK chain.
type Network struct {
	Config  ChainConfig
	Factory *Factory
	Send    *SendService
	Signer  *SignerService
}

func NewNetwork(chain common.Chain, lcdURL string, cache *CodecCache, keysigner Keysigner, logger logrus.FieldLogger) (*Network, error) {
	cfg, err := ConfigForChain(chain)
	if err != nil {
		return nil, err
	}
	factory, err := NewFactory(cfg, cache)
	if err != nil {
		return nil, fmt.Errorf("cosmos: failed to create factory: %w", err)
	}
	client := NewClient(lcdURL)
	return &Network{
		Config:  cfg,
		Factory: factory,
		Send:    NewSendService(client, factory),
		Signer:  NewSignerService(keysigner, client, logger.WithField("chain", chain.String())),
	}, nil
}
