package utxo

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/sirupsen/logrus"
	"github.com/vultisig/mobile-tss-lib/tss"

	"github.com/vultisig/app-recovery/internal/txbuilder"
)

// Keysigner runs a threshold signing ceremony over message digests and returns
// one response per message, keyed by the hex digest.
type Keysigner interface {
	Sign(ctx context.Context, publicKey string, messages [][]byte) (map[string]tss.KeysignResponse, error)
}

type Broadcaster interface {
	PushTransaction(ctx context.Context, raw []byte) (string, error)
}

type SignerService struct {
	keysigner   Keysigner
	broadcaster Broadcaster
	logger      logrus.FieldLogger
}

func NewSignerService(keysigner Keysigner, broadcaster Broadcaster, logger logrus.FieldLogger) *SignerService {
	return &SignerService{
		keysigner:   keysigner,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// Sign runs one ceremony over every input sighash for the wallet key
// publicKey, hex-encoded and compressed.
func (s *SignerService) Sign(ctx context.Context, t *Transaction, publicKey string) error {
	pub, err := hex.DecodeString(publicKey)
	if err != nil {
		return fmt.Errorf("invalid public key: %w", err)
	}
	hashes, err := t.SigningHashes()
	if err != nil {
		return err
	}

	signatures, err := s.keysigner.Sign(ctx, publicKey, hashes)
	if err != nil {
		return fmt.Errorf("failed to sign transaction: %w", err)
	}
	if len(signatures) != len(hashes) {
		return fmt.Errorf("expected %d signatures, got %d", len(hashes), len(signatures))
	}

	sigs := make([][]byte, 0, len(hashes))
	for i, h := range hashes {
		resp, ok := signatures[hex.EncodeToString(h)]
		if !ok {
			return fmt.Errorf("missing signature for input %d", i)
		}
		sig, err := txbuilder.FromKeysign(resp)
		if err != nil {
			return fmt.Errorf("invalid keysign response for input %d: %w", i, err)
		}
		sigs = append(sigs, toDER(sig))
	}
	if err = t.AddSignature(pub, sigs); err != nil {
		return fmt.Errorf("failed to add signature: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"signer": publicKey,
		"inputs": len(sigs),
		"state":  t.State().String(),
	}).Debug("tss signature attached")
	return nil
}

// toDER encodes the r || s prefix of a recoverable signature, normalizing s to
// the lower half of the order.
func toDER(sig []byte) []byte {
	var r, sc btcec.ModNScalar
	r.SetByteSlice(sig[:32])
	sc.SetByteSlice(sig[32:64])
	if sc.IsOverHalfOrder() {
		sc.Negate()
	}
	return ecdsa.NewSignature(&r, &sc).Serialize()
}

func (s *SignerService) Broadcast(ctx context.Context, t *Transaction) (string, error) {
	if t.State() < txbuilder.FullySigned {
		return "", fmt.Errorf("transaction is %s, not fully signed", t.State())
	}
	raw, err := t.ToBroadcastFormat()
	if err != nil {
		return "", fmt.Errorf("failed to encode transaction: %w", err)
	}
	hash, err := s.broadcaster.PushTransaction(ctx, raw)
	if err != nil {
		return "", fmt.Errorf("failed to broadcast transaction: %w", err)
	}
	s.logger.WithField("tx_hash", hash).Info("transaction broadcast")
	return hash, nil
}
