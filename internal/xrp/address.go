package xrp

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/mr-tron/base58"
)

var rippleAlphabet = base58.NewAlphabet("rpshnaf39wBUDNEGHJKLM4PQRST7VWXYZ2bcdeCg65jkm8oFqi1tuvAxyz")

const accountIDVersion = 0x00

// AccountID is the 20-byte hash160 behind a classic r-address.
type AccountID [20]byte

func (a AccountID) String() string {
	payload := append([]byte{accountIDVersion}, a[:]...)
	return base58.EncodeAlphabet(append(payload, checksum(payload)...), rippleAlphabet)
}

// Less orders account ids numerically, the order Signers must appear in.
func (a AccountID) Less(b AccountID) bool {
	return bytes.Compare(a[:], b[:]) < 0
}

func checksum(payload []byte) []byte {
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	return second[:4]
}

// DecodeAccountID parses a classic r-address.
func DecodeAccountID(address string) (AccountID, error) {
	var id AccountID
	raw, err := base58.DecodeAlphabet(address, rippleAlphabet)
	if err != nil {
		return id, fmt.Errorf("xrp: invalid address %s: %w", address, err)
	}
	if len(raw) != 25 || raw[0] != accountIDVersion {
		return id, fmt.Errorf("xrp: invalid address %s", address)
	}
	if !bytes.Equal(checksum(raw[:21]), raw[21:]) {
		return id, fmt.Errorf("xrp: invalid address checksum %s", address)
	}
	copy(id[:], raw[1:21])
	return id, nil
}

// AccountIDFromPublicKey derives the account of a compressed secp256k1 key.
func AccountIDFromPublicKey(pub []byte) (AccountID, error) {
	var id AccountID
	if len(pub) != 33 {
		return id, fmt.Errorf("xrp: invalid public key length: %d", len(pub))
	}
	copy(id[:], btcutil.Hash160(pub))
	return id, nil
}

// Address is an r-address with an optional destination tag, written as
// "r...?dt=123".
type Address struct {
	Account        AccountID
	DestinationTag *uint32
}

func ParseAddress(s string) (Address, error) {
	base, query, hasQuery := strings.Cut(s, "?")
	id, err := DecodeAccountID(base)
	if err != nil {
		return Address{}, err
	}
	res := Address{Account: id}
	if !hasQuery {
		return res, nil
	}
	key, value, ok := strings.Cut(query, "=")
	if !ok || key != "dt" {
		return Address{}, fmt.Errorf("xrp: invalid address query %q", query)
	}
	tag, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		return Address{}, fmt.Errorf("xrp: invalid destination tag %q", value)
	}
	t := uint32(tag)
	res.DestinationTag = &t
	return res, nil
}

func (a Address) String() string {
	if a.DestinationTag == nil {
		return a.Account.String()
	}
	return a.Account.String() + "?dt=" + strconv.FormatUint(uint64(*a.DestinationTag), 10)
}
