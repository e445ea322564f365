package cosmos

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/sirupsen/logrus"
	"github.com/vultisig/mobile-tss-lib/tss"

	"github.com/vultisig/app-recovery/internal/txbuilder"
)

// Keysigner runs a threshold signing ceremony over message digests and returns
// one response per message.
type Keysigner interface {
	Sign(ctx context.Context, publicKey string, messages [][]byte) (map[string]tss.KeysignResponse, error)
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

// Sign runs the ceremony over SHA-256 of the sign bytes.
func (s *SignerService) Sign(ctx context.Context, t *Transaction, publicKey string) error {
	pub, err := hex.DecodeString(publicKey)
	if err != nil {
		return fmt.Errorf("invalid public key: %w", err)
	}
	digest, err := t.SigningHash()
	if err != nil {
		return err
	}

	signatures, err := s.keysigner.Sign(ctx, publicKey, [][]byte{digest})
	if err != nil {
		return fmt.Errorf("failed to sign transaction: %w", err)
	}
	if len(signatures) != 1 {
		return fmt.Errorf("expected 1 signature, got %d", len(signatures))
	}
	var resp tss.KeysignResponse
	for _, sig := range signatures {
		resp = sig
	}

	sig, err := txbuilder.FromKeysign(resp)
	if err != nil {
		return fmt.Errorf("invalid keysign response: %w", err)
	}
	if err = t.AddSignature(pub, lowS(sig[:64])); err != nil {
		return fmt.Errorf("failed to add signature: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"digest": hex.EncodeToString(digest),
		"state":  t.State().String(),
	}).Debug("tss signature attached")
	return nil
}

// lowS rewrites s to the lower half of the curve order; the SDK rejects
// malleable signatures.
func lowS(rs []byte) []byte {
	var s btcec.ModNScalar
	s.SetByteSlice(rs[32:64])
	if !s.IsOverHalfOrder() {
		return rs
	}
	s.Negate()
	out := make([]byte, 64)
	copy(out, rs[:32])
	b := s.Bytes()
	copy(out[32:], b[:])
	return out
}

func (s *SignerService) Broadcast(ctx context.Context, t *Transaction) (string, error) {
	if t.State() < txbuilder.FullySigned {
		return "", fmt.Errorf("transaction is %s, not fully signed", t.State())
	}
	raw, err := t.ToBroadcastFormat()
	if err != nil {
		return "", fmt.Errorf("failed to encode transaction: %w", err)
	}
	hash, err := s.broadcaster.Broadcast(ctx, raw)
	if err != nil {
		return "", fmt.Errorf("failed to broadcast transaction: %w", err)
	}
	s.logger.WithField("tx_hash", hash).Info("transaction broadcast")
	return hash, nil
}
