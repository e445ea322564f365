package cosmos

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"cosmossdk.io/math"
)

// AccountInfoProvider fetches the signer state a transaction needs.
type AccountInfoProvider interface {
	GetAccount(ctx context.Context, address string) (*AccountInfo, error)
	GetBalance(ctx context.Context, address, denom string) (math.Int, error)
}

// Broadcaster relays signed TxRaw bytes.
type Broadcaster interface {
	Broadcast(ctx context.Context, txRaw []byte) (txHash string, err error)
}

type AccountInfo struct {
	Address       string `json:"address"`
	AccountNumber uint64 `json:"account_number"`
	Sequence      uint64 `json:"sequence"`
}

// Client talks to the LCD REST gateway of a Cosmos-SDK node.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type lcdAccountResponse struct {
	Account struct {
		Type          string `json:"@type"`
		Address       string `json:"address"`
		AccountNumber string `json:"account_number"`
		Sequence      string `json:"sequence"`
		// legacy amino-JSON accounts nest the fields under value
		Value struct {
			Address       string `json:"address"`
			AccountNumber string `json:"account_number"`
			Sequence      string `json:"sequence"`
		} `json:"value,omitempty"`
	} `json:"account"`
}

type lcdBalanceResponse struct {
	Balances []struct {
		Denom  string `json:"denom"`
		Amount string `json:"amount"`
	} `json:"balances"`
}

type lcdBroadcastRequest struct {
	TxBytes string `json:"tx_bytes"`
	Mode    string `json:"mode"`
}

type lcdBroadcastResponse struct {
	TxResponse struct {
		TxHash string `json:"txhash"`
		Code   uint32 `json:"code"`
		RawLog string `json:"raw_log"`
	} `json:"tx_response"`
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cosmos: failed to make request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("cosmos: unexpected status code: %d, body: %s", resp.StatusCode, string(body))
	}
	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("cosmos: failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("cosmos: failed to create request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) GetAccount(ctx context.Context, address string) (*AccountInfo, error) {
	var lcdResp lcdAccountResponse
	if err := c.get(ctx, "/cosmos/auth/v1beta1/accounts/"+address, &lcdResp); err != nil {
		return nil, err
	}

	acc := lcdResp.Account
	if acc.AccountNumber == "" {
		acc.Address, acc.AccountNumber, acc.Sequence = acc.Value.Address, acc.Value.AccountNumber, acc.Value.Sequence
	}
	accountNumber, err := strconv.ParseUint(acc.AccountNumber, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("cosmos: failed to parse account number: %w", err)
	}
	sequence, err := strconv.ParseUint(acc.Sequence, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("cosmos: failed to parse sequence: %w", err)
	}

	return &AccountInfo{
		Address:       acc.Address,
		AccountNumber: accountNumber,
		Sequence:      sequence,
	}, nil
}

// GetBalance returns the spendable balance of denom, zero when absent.
func (c *Client) GetBalance(ctx context.Context, address, denom string) (math.Int, error) {
	var balResp lcdBalanceResponse
	if err := c.get(ctx, "/cosmos/bank/v1beta1/balances/"+address, &balResp); err != nil {
		return math.Int{}, err
	}
	for _, bal := range balResp.Balances {
		if bal.Denom == denom {
			amount, ok := math.NewIntFromString(bal.Amount)
			if !ok {
				return math.Int{}, fmt.Errorf("cosmos: failed to parse balance %q", bal.Amount)
			}
			return amount, nil
		}
	}
	return math.ZeroInt(), nil
}

// Broadcast submits in sync mode and fails on a non-zero check code.
func (c *Client) Broadcast(ctx context.Context, txRaw []byte) (string, error) {
	payload, err := json.Marshal(lcdBroadcastRequest{
		TxBytes: base64.StdEncoding.EncodeToString(txRaw),
		Mode:    "BROADCAST_MODE_SYNC",
	})
	if err != nil {
		return "", fmt.Errorf("cosmos: failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/cosmos/tx/v1beta1/txs", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("cosmos: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out lcdBroadcastResponse
	if err = c.do(req, &out); err != nil {
		return "", err
	}
	if out.TxResponse.Code != 0 {
		return out.TxResponse.TxHash, fmt.Errorf("cosmos: transaction rejected with code %d: %s", out.TxResponse.Code, out.TxResponse.RawLog)
	}
	return out.TxResponse.TxHash, nil
}
