package blockchair

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClient(t *testing.T) {
	const addr = "bc1qtest"
	var pushed string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "secret", r.URL.Query().Get("key"))
		switch r.URL.Path {
		case "/bitcoin/dashboards/address/" + addr:
			utxos := []Utxo{}
			if r.URL.Query().Get("offset") == "0" {
				for i := 0; i < 50; i++ {
					utxos = append(utxos, Utxo{TransactionHash: "aa", Index: uint32(i), Value: 1000})
				}
			} else {
				utxos = append(utxos, Utxo{TransactionHash: "bb", Index: 0, Value: 5})
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": map[string]any{addr: map[string]any{"utxo": utxos}},
			})
		case "/bitcoin/raw/transaction/cc":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": map[string]any{"cc": map[string]string{"raw_transaction": "0102"}},
			})
		case "/bitcoin/push/transaction":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			pushed = body["data"]
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": map[string]string{"transaction_hash": "dd"},
			})
		case "/bitcoin/stats":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": map[string]any{"suggested_transaction_fee_per_byte_sat": 12},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	c := NewClient(srv.URL, "bitcoin", "secret")

	utxos, err := c.GetAllUnspent(ctx, addr)
	require.NoError(t, err)
	require.Len(t, utxos, 51)
	require.Equal(t, "bb", utxos[50].TransactionHash)

	raw, err := c.GetRawTransaction(ctx, "cc")
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2}, raw)

	hash, err := c.PushTransaction(ctx, []byte{0xde, 0xad})
	require.NoError(t, err)
	require.Equal(t, "dd", hash)
	require.Equal(t, hex.EncodeToString([]byte{0xde, 0xad}), pushed)

	rate, err := c.SatsPerByte(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(12), rate)

	_, err = c.GetRawTransaction(ctx, "missing")
	require.ErrorContains(t, err, "unexpected status 404")
}
