package recovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	ecommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/sirupsen/logrus"

	"github.com/vultisig/app-recovery/internal/evm"
	"github.com/vultisig/app-recovery/internal/metrics"
)

// Explorer is the chain state the recovery engine reads.
type Explorer interface {
	Nonce(ctx context.Context, address ecommon.Address) (uint64, error)
	Balance(ctx context.Context, address ecommon.Address) (*big.Int, error)
	TokenBalance(ctx context.Context, token, owner ecommon.Address) (*big.Int, error)
	SequenceID(ctx context.Context, wallet ecommon.Address) (uint64, error)
}

var _ Explorer = (*EtherscanClient)(nil)

// EtherscanClient queries an Etherscan-compatible /api endpoint.
type EtherscanClient struct {
	url        string
	apiKey     string
	httpClient *http.Client
	logger     logrus.FieldLogger
	metrics    *metrics.RecoveryMetrics
}

func NewEtherscanClient(baseURL, apiKey string, logger logrus.FieldLogger) *EtherscanClient {
	return &EtherscanClient{
		url:    strings.TrimSuffix(baseURL, "/"),
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:  logger,
		metrics: metrics.NewRecoveryMetrics(),
	}
}

type explorerResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

func (c *EtherscanClient) query(ctx context.Context, params url.Values) (res *explorerResponse, err error) {
	action := params.Get("action")
	start := time.Now()
	defer func() {
		status := metrics.StatusOK
		switch {
		case errors.Is(err, ErrRateLimited):
			status = metrics.StatusRateLimited
		case err != nil:
			status = metrics.StatusError
		}
		c.metrics.RecordExplorerRequest(action, status, time.Since(start))
	}()

	if c.apiKey != "" {
		params.Set("apikey", c.apiKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"/api?"+params.Encode(), nil)
	if err != nil {
		return nil, &ExplorerError{Action: action, Err: err}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ExplorerError{Action: action, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ExplorerError{Action: action, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}
	res = &explorerResponse{}
	if err = json.NewDecoder(resp.Body).Decode(res); err != nil {
		return nil, &ExplorerError{Action: action, Err: fmt.Errorf("malformed response: %w", err)}
	}

	// proxy calls answer in JSON-RPC form and carry no status
	if res.Status == "0" {
		switch res.Message {
		case "NOTOK":
			return nil, ErrRateLimited
		case "No transactions found":
		default:
			return nil, &ExplorerError{Action: action, Err: fmt.Errorf("%s: %s", res.Message, string(res.Result))}
		}
	}

	c.logger.WithFields(logrus.Fields{
		"action":   action,
		"duration": time.Since(start).String(),
	}).Debug("explorer query")
	return res, nil
}

func (res *explorerResponse) stringResult() (string, error) {
	var s string
	if err := json.Unmarshal(res.Result, &s); err != nil {
		return "", fmt.Errorf("unexpected result %s", string(res.Result))
	}
	return s, nil
}

// Nonce counts the transactions address sent, which is its next nonce.
func (c *EtherscanClient) Nonce(ctx context.Context, address ecommon.Address) (uint64, error) {
	res, err := c.query(ctx, url.Values{
		"module":  {"account"},
		"action":  {"txlist"},
		"address": {address.Hex()},
	})
	if err != nil {
		return 0, err
	}
	var txs []struct {
		From string `json:"from"`
	}
	if err = json.Unmarshal(res.Result, &txs); err != nil {
		return 0, &ExplorerError{Action: "txlist", Err: fmt.Errorf("Unable to find next nonce, got: %s", string(res.Result))}
	}
	var nonce uint64
	for _, tx := range txs {
		if strings.EqualFold(tx.From, address.Hex()) {
			nonce++
		}
	}
	return nonce, nil
}

func (c *EtherscanClient) Balance(ctx context.Context, address ecommon.Address) (*big.Int, error) {
	res, err := c.query(ctx, url.Values{
		"module":  {"account"},
		"action":  {"balance"},
		"address": {address.Hex()},
		"tag":     {"latest"},
	})
	if err != nil {
		return nil, err
	}
	return decimalResult(res, "balance", address)
}

func (c *EtherscanClient) TokenBalance(ctx context.Context, token, owner ecommon.Address) (*big.Int, error) {
	res, err := c.query(ctx, url.Values{
		"module":          {"account"},
		"action":          {"tokenbalance"},
		"contractaddress": {token.Hex()},
		"address":         {owner.Hex()},
		"tag":             {"latest"},
	})
	if err != nil {
		return nil, err
	}
	return decimalResult(res, "tokenbalance", owner)
}

func decimalResult(res *explorerResponse, action string, address ecommon.Address) (*big.Int, error) {
	s, err := res.stringResult()
	if err != nil {
		return nil, &ExplorerError{Action: action, Err: err}
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, &ExplorerError{Action: action, Err: fmt.Errorf("Could not obtain address balance for %s, got: %s", address.Hex(), s)}
	}
	return v, nil
}

// SequenceID calls getNextSequenceId() on the wallet contract.
func (c *EtherscanClient) SequenceID(ctx context.Context, wallet ecommon.Address) (uint64, error) {
	res, err := c.query(ctx, url.Values{
		"module": {"proxy"},
		"action": {"eth_call"},
		"to":     {wallet.Hex()},
		"data":   {hexutil.Encode(evm.GetNextSequenceIDData())},
		"tag":    {"latest"},
	})
	if err != nil {
		return 0, err
	}
	s, err := res.stringResult()
	if err != nil {
		return 0, &ExplorerError{Action: "eth_call", Err: err}
	}
	raw, err := hexutil.Decode(s)
	if err != nil {
		return 0, &ExplorerError{Action: "eth_call", Err: fmt.Errorf("Could not obtain sequence ID, got: %s", s)}
	}
	id, err := evm.DecodeUint256(raw)
	if err != nil {
		return 0, &ExplorerError{Action: "eth_call", Err: err}
	}
	if !id.IsUint64() {
		return 0, &ExplorerError{Action: "eth_call", Err: fmt.Errorf("sequence id out of range: %s", id)}
	}
	return id.Uint64(), nil
}
