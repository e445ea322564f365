package utxo

import (
	"github.com/sirupsen/logrus"
	"github.com/vultisig/vultisig-go/common"

	"github.com/vultisig/app-recovery/internal/blockchair"
)

// Network bundles the services of one UTXO chain behind Blockchair.
type Network struct {
	Params  *ChainParams
	Factory *Factory
	Send    *SendService
	Signer  *SignerService
}

func NewNetwork(chain common.Chain, blockchairURL, apiKey string, keysigner Keysigner, logger logrus.FieldLogger) (*Network, error) {
	params, err := ParamsForChain(chain)
	if err != nil {
		return nil, err
	}
	client := blockchair.NewClient(blockchairURL, params.ExplorerPath, apiKey)
	factory := NewFactory(params)
	return &Network{
		Params:  params,
		Factory: factory,
		Send:    NewSendService(client, client, factory),
		Signer:  NewSignerService(keysigner, client, logger.WithField("chain", chain.String())),
	}, nil
}
