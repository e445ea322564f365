package blockchair

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client talks to the Blockchair API for one chain, e.g. "bitcoin".
type Client struct {
	url        string
	chain      string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, chain, apiKey string) *Client {
	return &Client{
		url:    baseURL,
		chain:  chain,
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) call(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	if query == nil {
		query = url.Values{}
	}
	if c.apiKey != "" {
		query.Set("key", c.apiKey)
	}
	u := c.url + "/" + c.chain + path
	if len(query) != 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("blockchair: unexpected status %d: %s", resp.StatusCode, string(b))
	}
	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

type PushResponse struct {
	Data struct {
		TransactionHash string `json:"transaction_hash"`
	} `json:"data"`
}

// PushTransaction broadcasts a serialized transaction and returns its hash.
func (c *Client) PushTransaction(ctx context.Context, raw []byte) (string, error) {
	var res PushResponse
	err := c.call(ctx, http.MethodPost, "/push/transaction", nil, map[string]string{
		"data": hex.EncodeToString(raw),
	}, &res)
	if err != nil {
		return "", fmt.Errorf("failed to push tx: %w", err)
	}
	return res.Data.TransactionHash, nil
}

type Utxo struct {
	BlockId         int    `json:"block_id"`
	TransactionHash string `json:"transaction_hash"`
	Index           uint32 `json:"index"`
	Value           uint64 `json:"value"`
}

type addrInfoResponse struct {
	Data map[string]struct {
		Address struct {
			Type    string `json:"type"`
			Balance int64  `json:"balance"`
		} `json:"address"`
		Utxo []Utxo `json:"utxo"`
	} `json:"data"`
}

// GetAllUnspent fetches all UTXOs for an address.
func (c *Client) GetAllUnspent(ctx context.Context, address string) ([]Utxo, error) {
	var allUtxos []Utxo
	offset := 0
	const limit = 50

	for {
		var batch addrInfoResponse
		err := c.call(ctx, http.MethodGet, "/dashboards/address/"+address, url.Values{
			"offset": {strconv.Itoa(offset)},
			"limit":  {fmt.Sprintf("0,%d", limit)},
		}, nil, &batch)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch address info: %w", err)
		}

		val, ok := batch.Data[address]
		if !ok {
			break
		}

		allUtxos = append(allUtxos, val.Utxo...)
		if len(val.Utxo) < limit {
			break
		}
		offset += limit
	}

	return allUtxos, nil
}

// GetRawTransaction returns the raw bytes of a confirmed or mempool transaction.
func (c *Client) GetRawTransaction(ctx context.Context, txHash string) ([]byte, error) {
	type dataItem struct {
		RawTx string `json:"raw_transaction"`
	}
	var r struct {
		Data map[string]dataItem `json:"data"`
	}
	if err := c.call(ctx, http.MethodGet, "/raw/transaction/"+txHash, nil, nil, &r); err != nil {
		return nil, fmt.Errorf("failed to get raw tx: %w", err)
	}

	data, ok := r.Data[txHash]
	if !ok {
		return nil, fmt.Errorf("failed to get tx from response, hash=%s", txHash)
	}
	return hex.DecodeString(data.RawTx)
}

// SatsPerByte returns the fee rate Blockchair currently suggests.
func (c *Client) SatsPerByte(ctx context.Context) (uint64, error) {
	var r struct {
		Data struct {
			SuggestedFee uint64 `json:"suggested_transaction_fee_per_byte_sat"`
		} `json:"data"`
	}
	if err := c.call(ctx, http.MethodGet, "/stats", nil, nil, &r); err != nil {
		return 0, fmt.Errorf("failed to get stats: %w", err)
	}
	if r.Data.SuggestedFee == 0 {
		return 0, fmt.Errorf("blockchair: no suggested fee for %s", c.chain)
	}
	return r.Data.SuggestedFee, nil
}
