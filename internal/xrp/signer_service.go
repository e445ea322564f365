package xrp

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
// one response per message.
type Keysigner interface {
	Sign(ctx context.Context, publicKey string, messages [][]byte) (map[string]tss.KeysignResponse, error)
}

type SignerService struct {
	keysigner Keysigner
	submitter Submitter
	logger    logrus.FieldLogger
}

func NewSignerService(keysigner Keysigner, submitter Submitter, logger logrus.FieldLogger) *SignerService {
	return &SignerService{
		keysigner: keysigner,
		submitter: submitter,
		logger:    logger,
	}
}

// Sign has the TSS vault behind publicKey sign tx, either as the single
// signing key or as one entry of the signer list.
func (s *SignerService) Sign(ctx context.Context, tx *Transaction, publicKey string) error {
	pub, err := hex.DecodeString(publicKey)
	if err != nil {
		return fmt.Errorf("invalid public key: %w", err)
	}
	digest, err := tx.SigningHash(pub)
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

	der, err := keysignToDER(resp)
	if err != nil {
		return fmt.Errorf("invalid keysign response: %w", err)
	}
	if err = tx.AddSignature(pub, der); err != nil {
		return fmt.Errorf("failed to add signature: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"digest": hex.EncodeToString(digest),
		"state":  tx.State().String(),
	}).Debug("tss signature attached")
	return nil
}

// keysignToDER converts an r, s pair to the canonical low-S DER encoding the
// ledger requires.
func keysignToDER(resp tss.KeysignResponse) ([]byte, error) {
	sig, err := txbuilder.FromKeysign(resp)
	if err != nil {
		return nil, err
	}
	var r, sv btcec.ModNScalar
	if overflow := r.SetByteSlice(sig[:32]); overflow {
		return nil, txbuilder.NewSigningError("R overflows the curve order")
	}
	if overflow := sv.SetByteSlice(sig[32:64]); overflow {
		return nil, txbuilder.NewSigningError("S overflows the curve order")
	}
	return ecdsa.NewSignature(&r, &sv).Serialize(), nil
}

// Broadcast submits a fully signed payment and returns its ledger hash.
func (s *SignerService) Broadcast(ctx context.Context, tx *Transaction) (string, error) {
	if tx.State() < txbuilder.FullySigned {
		return "", fmt.Errorf("transaction is %s, not fully signed", tx.State())
	}
	blob, err := tx.ToBroadcastHex()
	if err != nil {
		return "", fmt.Errorf("failed to encode transaction: %w", err)
	}
	result, err := s.submitter.Submit(ctx, blob)
	if err != nil {
		return "", fmt.Errorf("failed to broadcast transaction: %w", err)
	}

	id := tx.ID()
	s.logger.WithFields(logrus.Fields{
		"tx_hash":       id,
		"engine_result": result,
	}).Info("transaction broadcast")
	return id, nil
}
