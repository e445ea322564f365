package xrp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// minBaseFee is the reference cost of a transaction in drops.
const minBaseFee = 10

// AccountInfoProvider fetches the account and ledger state a payment needs.
type AccountInfoProvider interface {
	GetAccountInfo(ctx context.Context, address string) (sequence uint32, err error)
	GetCurrentLedger(ctx context.Context) (ledgerIndex uint32, err error)
	GetBaseFee(ctx context.Context) (feeDrops uint64, err error)
}

// Submitter relays a signed blob to the network.
type Submitter interface {
	Submit(ctx context.Context, blobHex string) (engineResult string, err error)
}

// Client talks XRPL JSON-RPC.
type Client struct {
	rpcURL     string
	httpClient *http.Client
}

func NewClient(rpcURL string) *Client {
	return &Client{
		rpcURL: rpcURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type xrplRequest struct {
	Method  string           `json:"method"`
	Params  []map[string]any `json:"params"`
	ID      int              `json:"id"`
	JSONRPC string           `json:"jsonrpc"`
}

type xrplResponse struct {
	Result xrplResult `json:"result"`
}

type xrplResult struct {
	Status              string      `json:"status,omitempty"`
	AccountData         accountData `json:"account_data,omitempty"`
	LedgerIndex         any         `json:"ledger_index,omitempty"`
	Info                serverInfo  `json:"info,omitempty"`
	EngineResult        string      `json:"engine_result,omitempty"`
	EngineResultMessage string      `json:"engine_result_message,omitempty"`
	Error               string      `json:"error,omitempty"`
	ErrorMessage        string      `json:"error_message,omitempty"`
}

type accountData struct {
	Account  string `json:"Account"`
	Sequence any    `json:"Sequence"`
}

type serverInfo struct {
	ValidatedLedger validatedLedger `json:"validated_ledger,omitempty"`
}

type validatedLedger struct {
	Seq     any `json:"seq,omitempty"`
	BaseFee any `json:"base_fee_xrp,omitempty"`
}

func (c *Client) makeRequest(ctx context.Context, command string, params map[string]any) (*xrplResult, error) {
	reqBody := xrplRequest{
		Method:  command,
		Params:  []map[string]any{params},
		ID:      1,
		JSONRPC: "2.0",
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("xrp: failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("xrp: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("xrp: failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("xrp: unexpected status code: %d", resp.StatusCode)
	}

	var xrplResp xrplResponse
	if err = json.NewDecoder(resp.Body).Decode(&xrplResp); err != nil {
		return nil, fmt.Errorf("xrp: failed to decode response: %w", err)
	}
	if xrplResp.Result.Error != "" {
		return nil, fmt.Errorf("xrp: XRPL error: %s - %s", xrplResp.Result.Error, xrplResp.Result.ErrorMessage)
	}
	return &xrplResp.Result, nil
}

func parseUint(name string, v any) (uint64, error) {
	switch n := v.(type) {
	case float64:
		return uint64(n), nil
	case string:
		u, err := strconv.ParseUint(n, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("xrp: failed to parse %s: %w", name, err)
		}
		return u, nil
	default:
		return 0, fmt.Errorf("xrp: unexpected %s type: %T", name, v)
	}
}

// GetAccountInfo fetches the account sequence number.
func (c *Client) GetAccountInfo(ctx context.Context, address string) (uint32, error) {
	res, err := c.makeRequest(ctx, "account_info", map[string]any{
		"account":      address,
		"strict":       true,
		"ledger_index": "validated",
	})
	if err != nil {
		return 0, fmt.Errorf("xrp: failed to get account info: %w", err)
	}
	seq, err := parseUint("sequence", res.AccountData.Sequence)
	if err != nil {
		return 0, err
	}
	return uint32(seq), nil
}

// GetCurrentLedger fetches the current validated ledger index.
func (c *Client) GetCurrentLedger(ctx context.Context) (uint32, error) {
	res, err := c.makeRequest(ctx, "ledger", map[string]any{
		"ledger_index": "validated",
	})
	if err != nil {
		return 0, fmt.Errorf("xrp: failed to get current ledger: %w", err)
	}
	idx, err := parseUint("ledger index", res.LedgerIndex)
	if err != nil {
		return 0, err
	}
	return uint32(idx), nil
}

// GetBaseFee returns the validated ledger's base fee in drops, never less than
// the reference cost.
func (c *Client) GetBaseFee(ctx context.Context) (uint64, error) {
	res, err := c.makeRequest(ctx, "server_info", map[string]any{})
	if err != nil {
		return 0, fmt.Errorf("xrp: failed to get base fee: %w", err)
	}

	baseFee := uint64(minBaseFee)
	switch v := res.Info.ValidatedLedger.BaseFee.(type) {
	case float64:
		baseFee = uint64(v * 1e6)
	case string:
		if f, er := strconv.ParseFloat(v, 64); er == nil {
			baseFee = uint64(f * 1e6)
		}
	}
	if baseFee < minBaseFee {
		baseFee = minBaseFee
	}
	return baseFee, nil
}

// Submit relays a signed blob. Only tesSUCCESS and queued results count as
// accepted.
func (c *Client) Submit(ctx context.Context, blobHex string) (string, error) {
	res, err := c.makeRequest(ctx, "submit", map[string]any{
		"tx_blob": blobHex,
	})
	if err != nil {
		return "", fmt.Errorf("xrp: failed to submit: %w", err)
	}
	switch res.EngineResult {
	case "tesSUCCESS", "terQUEUED":
		return res.EngineResult, nil
	default:
		return res.EngineResult, fmt.Errorf("xrp: transaction rejected: %s - %s", res.EngineResult, res.EngineResultMessage)
	}
}
