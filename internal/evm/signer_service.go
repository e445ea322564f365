package evm

import (
	"context"
	"encoding/hex"
	"fmt"

	etypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"
	"github.com/vultisig/mobile-tss-lib/tss"

	"github.com/vultisig/app-recovery/internal/txbuilder"
)

// Keysigner runs a threshold signing ceremony over message digests and returns
// one response per message, keyed by the hex digest.
type Keysigner interface {
	Sign(ctx context.Context, publicKey string, messages [][]byte) (map[string]tss.KeysignResponse, error)
}

type broadcaster interface {
	SendTransaction(ctx context.Context, tx *etypes.Transaction) error
}

// SignerService attaches TSS signatures to built transactions and broadcasts
// them.
type SignerService struct {
	keysigner Keysigner
	rpc       broadcaster
	logger    logrus.FieldLogger
}

func NewSignerService(keysigner Keysigner, rpc broadcaster, logger logrus.FieldLogger) *SignerService {
	return &SignerService{
		keysigner: keysigner,
		rpc:       rpc,
		logger:    logger,
	}
}

// Sign runs the ceremony for the outer transaction digest. publicKey is the
// compressed hex key of the TSS vault.
func (s *SignerService) Sign(ctx context.Context, tx *Transaction, publicKey string) error {
	pub, err := hex.DecodeString(publicKey)
	if err != nil {
		return fmt.Errorf("invalid public key: %w", err)
	}

	digest := tx.SigningHash()
	signatures, err := s.keysigner.Sign(ctx, publicKey, [][]byte{digest})
	if err != nil {
		return fmt.Errorf("failed to sign transaction: %w", err)
	}
	if len(signatures) != 1 {
		return fmt.Errorf("expected 1 signature, got %d", len(signatures))
	}

	var signature tss.KeysignResponse
	for _, sig := range signatures {
		signature = sig
	}

	sig, err := txbuilder.FromKeysign(signature)
	if err != nil {
		return fmt.Errorf("invalid keysign response: %w", err)
	}
	if err = tx.AddSignature(pub, sig); err != nil {
		return fmt.Errorf("failed to add signature: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"digest": hex.EncodeToString(digest),
		"state":  tx.State().String(),
	}).Debug("tss signature attached")
	return nil
}

// Broadcast sends a fully signed transaction and returns its hash.
func (s *SignerService) Broadcast(ctx context.Context, tx *Transaction) (string, error) {
	if tx.State() < txbuilder.FullySigned {
		return "", fmt.Errorf("transaction is %s, not fully signed", tx.State())
	}
	if _, err := tx.ToBroadcastFormat(); err != nil {
		return "", fmt.Errorf("failed to seal transaction: %w", err)
	}
	signed, err := tx.EthTransaction()
	if err != nil {
		return "", fmt.Errorf("failed to assemble transaction: %w", err)
	}
	if err = s.rpc.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("failed to broadcast transaction: %w", err)
	}
	s.logger.WithField("tx_hash", signed.Hash().Hex()).Info("transaction broadcast")
	return signed.Hash().Hex(), nil
}
