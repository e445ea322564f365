package address

// UTXOAddress is a chain-agnostic address for UTXO chains. Each chain
// implements it with its native library (btcutil, ltcutil).
type UTXOAddress interface {
	// String returns the chain-specific encoding, e.g. "bc1q...", "ltc1q...", "A...".
	String() string

	// ScriptAddress returns the hash the address commits to: a 20-byte pubkey
	// or script hash, or a 32-byte witness script hash.
	ScriptAddress() []byte

	// PayToAddrScript returns the scriptPubKey paying to this address.
	PayToAddrScript() ([]byte, error)
}
