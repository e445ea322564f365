package xrp

import (
	"github.com/sirupsen/logrus"
)

// Network bundles the XRP services behind one JSON-RPC endpoint.
type Network struct {
	Factory *Factory
	Send    *SendService
	Signer  *SignerService
	client  *Client
}

func NewNetwork(rpcURL string, keysigner Keysigner, logger logrus.FieldLogger) *Network {
	client := NewClient(rpcURL)
	return &Network{
		Factory: NewFactory(),
		Send:    NewSendService(client),
		Signer:  NewSignerService(keysigner, client, logger.WithField("chain", "XRP")),
		client:  client,
	}
}

func (n *Network) Client() AccountInfoProvider { return n.client }
