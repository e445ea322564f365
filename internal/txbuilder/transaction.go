package txbuilder

// Transaction is what every chain builder produces. Chain packages add their
// own decoded view and signing methods on top.
type Transaction interface {
	State() State
	// ToBroadcastFormat returns the signed bytes when a signature is present,
	// or the canonical unsigned signing payload otherwise. Once the threshold is
	// met the first call seals the transaction.
	ToBroadcastFormat() ([]byte, error)
	Explain() (*Explanation, error)
	ID() string
}
