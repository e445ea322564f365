package xrp

import (
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	xrpgo "github.com/xyield/xrpl-go/binary-codec"
)

// Hash prefixes of the XRPL signing and id domains.
var (
	stxPrefix = []byte{0x53, 0x54, 0x58, 0x00} // "STX\0"
	smtPrefix = []byte{0x53, 0x4D, 0x54, 0x00} // "SMT\0"
	txnPrefix = []byte{0x54, 0x58, 0x4E, 0x00} // "TXN\0"
)

func sha512Half(parts ...[]byte) []byte {
	h := sha512.New()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)[:32]
}

// canonicalize encodes fields, decodes the result and encodes again so that
// field ordering and value representation match what the ledger produces.
func canonicalize(fields map[string]any) ([]byte, error) {
	hexStr, err := xrpgo.Encode(fields)
	if err != nil {
		return nil, fmt.Errorf("encode failed: %w", err)
	}
	decoded, err := xrpgo.Decode(strings.ToUpper(hexStr))
	if err != nil {
		return nil, fmt.Errorf("decode round-trip failed: %w", err)
	}
	canonicalHex, err := xrpgo.Encode(decoded)
	if err != nil {
		return nil, fmt.Errorf("re-encode failed: %w", err)
	}
	b, err := hex.DecodeString(canonicalHex)
	if err != nil {
		return nil, fmt.Errorf("hex to bytes failed: %w", err)
	}
	return b, nil
}

func decodeBlob(blob []byte) (map[string]any, error) {
	decoded, err := xrpgo.Decode(strings.ToUpper(hex.EncodeToString(blob)))
	if err != nil {
		return nil, fmt.Errorf("failed to decode transaction: %w", err)
	}
	return decoded, nil
}

// singleSigningHash is the digest a single-key account signs: SHA512Half of
// the STX prefix and the transaction carrying SigningPubKey but no
// TxnSignature.
func singleSigningHash(blob []byte) ([]byte, error) {
	decoded, err := decodeBlob(blob)
	if err != nil {
		return nil, err
	}
	delete(decoded, "TxnSignature")
	canonical, err := canonicalize(decoded)
	if err != nil {
		return nil, err
	}
	return sha512Half(stxPrefix, canonical), nil
}

// multisignHash is the digest one multisig signer signs. Each signer's digest
// commits to its own account id.
func multisignHash(unsigned []byte, account AccountID) []byte {
	return sha512Half(smtPrefix, unsigned, account[:])
}

// transactionID is the ledger hash of a signed blob, upper-case hex.
func transactionID(signed []byte) string {
	return strings.ToUpper(hex.EncodeToString(sha512Half(txnPrefix, signed)))
}

func signingPublicKey(blob []byte) ([]byte, error) {
	decoded, err := decodeBlob(blob)
	if err != nil {
		return nil, err
	}
	signingPubKeyHex, ok := decoded["SigningPubKey"].(string)
	if !ok {
		return nil, fmt.Errorf("SigningPubKey not found in transaction")
	}
	pub, err := hex.DecodeString(signingPubKeyHex)
	if err != nil {
		return nil, fmt.Errorf("failed to decode SigningPubKey: %w", err)
	}
	if len(pub) != 33 {
		return nil, fmt.Errorf("invalid public key length: expected 33 bytes, got %d", len(pub))
	}
	return pub, nil
}

// uintField reads a numeric field that the codec may surface as a Go number
// or a decimal string.
func uintField(fields map[string]any, name string) (uint64, bool, error) {
	v, ok := fields[name]
	if !ok {
		return 0, false, nil
	}
	switch n := v.(type) {
	case int:
		return uint64(n), true, nil
	case int64:
		return uint64(n), true, nil
	case uint32:
		return uint64(n), true, nil
	case uint64:
		return n, true, nil
	case float64:
		return uint64(n), true, nil
	case string:
		u, err := strconv.ParseUint(n, 10, 64)
		if err != nil {
			return 0, true, fmt.Errorf("invalid %s: %q", name, n)
		}
		return u, true, nil
	default:
		return 0, true, fmt.Errorf("unexpected %s type: %T", name, v)
	}
}

func stringField(fields map[string]any, name string) (string, bool) {
	s, ok := fields[name].(string)
	return s, ok
}

// signerEntries flattens a decoded Signers array into its inner objects.
func signerEntries(v any) ([]map[string]any, error) {
	var items []any
	switch arr := v.(type) {
	case nil:
		return nil, nil
	case []any:
		items = arr
	case []map[string]any:
		for _, m := range arr {
			items = append(items, m)
		}
	default:
		return nil, fmt.Errorf("unexpected Signers type: %T", v)
	}

	res := make([]map[string]any, 0, len(items))
	for _, it := range items {
		wrapper, ok := it.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("unexpected signer entry type: %T", it)
		}
		inner, ok := wrapper["Signer"].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("signer entry without Signer object")
		}
		res = append(res, inner)
	}
	return res, nil
}
