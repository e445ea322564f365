package txbuilder

import (
	"fmt"
)

// Well-known signer roles of a 2-of-3 custodial wallet, in combination order.
const (
	RoleUser     = "user"
	RoleBackup   = "backup"
	RolePlatform = "platform"
)

// Signature is one co-signer's contribution.
type Signature struct {
	Signer    string
	PublicKey []byte
	Bytes     []byte
}

// Coordinator collects signatures from a fixed set of signers and returns them
// in the order the target chain requires. A signature is either fully accepted
// or rejected with no change to the coordinator.
type Coordinator struct {
	order     []string
	threshold int
	sigs      map[string]Signature
	sealed    bool
}

func NewCoordinator(threshold int, order ...string) (*Coordinator, error) {
	if threshold <= 0 || threshold > len(order) {
		return nil, fmt.Errorf("invalid threshold %d for %d signers", threshold, len(order))
	}
	seen := make(map[string]struct{}, len(order))
	for _, s := range order {
		if _, ok := seen[s]; ok {
			return nil, fmt.Errorf("duplicate signer %q", s)
		}
		seen[s] = struct{}{}
	}
	return &Coordinator{
		order:     append([]string(nil), order...),
		threshold: threshold,
		sigs:      make(map[string]Signature, len(order)),
	}, nil
}

func (c *Coordinator) Add(sig Signature) error {
	if c.sealed {
		return NewSigningError("transaction is sealed for broadcast, no further signatures accepted")
	}
	if !c.knows(sig.Signer) {
		return NewSigningError("unknown signer %q", sig.Signer)
	}
	if _, ok := c.sigs[sig.Signer]; ok {
		return NewSigningError("signer %q already signed", sig.Signer)
	}
	if len(c.sigs) >= c.threshold {
		return NewSigningError("signature threshold %d already reached", c.threshold)
	}
	if len(sig.Bytes) == 0 {
		return NewSigningError("empty signature from %q", sig.Signer)
	}
	c.sigs[sig.Signer] = sig
	return nil
}

// Signatures returns the collected signatures in combination order.
func (c *Coordinator) Signatures() []Signature {
	res := make([]Signature, 0, len(c.sigs))
	for _, s := range c.order {
		if sig, ok := c.sigs[s]; ok {
			res = append(res, sig)
		}
	}
	return res
}

func (c *Coordinator) Has(signer string) bool {
	_, ok := c.sigs[signer]
	return ok
}

func (c *Coordinator) Count() int     { return len(c.sigs) }
func (c *Coordinator) Threshold() int { return c.threshold }
func (c *Coordinator) Order() []string {
	return append([]string(nil), c.order...)
}

func (c *Coordinator) State() State {
	if c.sealed {
		return Broadcastable
	}
	return StateFor(len(c.sigs), c.threshold)
}

// Seal moves a fully signed set to Broadcastable. Sealing twice is a no-op.
func (c *Coordinator) Seal() error {
	if c.sealed {
		return nil
	}
	if len(c.sigs) < c.threshold {
		return NewSigningError("cannot seal: %d of %d signatures present", len(c.sigs), c.threshold)
	}
	c.sealed = true
	return nil
}

func (c *Coordinator) knows(signer string) bool {
	for _, s := range c.order {
		if s == signer {
			return true
		}
	}
	return false
}
