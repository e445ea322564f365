package solana

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/sirupsen/logrus"
	"github.com/vultisig/mobile-tss-lib/tss"

	"github.com/vultisig/app-recovery/internal/txbuilder"
)

// Keysigner runs a threshold signing ceremony over messages and returns one
// response per message.
type Keysigner interface {
	Sign(ctx context.Context, publicKey string, messages [][]byte) (map[string]tss.KeysignResponse, error)
}

type SignerService struct {
	keysigner Keysigner
	rpcClient RPC
	logger    logrus.FieldLogger
}

func NewSignerService(keysigner Keysigner, rpcClient RPC, logger logrus.FieldLogger) *SignerService {
	return &SignerService{
		keysigner: keysigner,
		rpcClient: rpcClient,
		logger:    logger,
	}
}

// Sign runs an EdDSA ceremony for the vault behind publicKey, a base58
// address, over the transaction message.
func (s *SignerService) Sign(ctx context.Context, tx *Transaction, publicKey string) error {
	pub, err := solana.PublicKeyFromBase58(publicKey)
	if err != nil {
		return fmt.Errorf("invalid public key: %w", err)
	}

	signatures, err := s.keysigner.Sign(ctx, publicKey, [][]byte{tx.Message()})
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

	sig, err := txbuilder.FromKeysignEdDSA(resp)
	if err != nil {
		return fmt.Errorf("invalid keysign response: %w", err)
	}
	if err = tx.AddSignature(pub.Bytes(), sig); err != nil {
		return fmt.Errorf("failed to add signature: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"signer": publicKey,
		"state":  tx.State().String(),
	}).Debug("tss signature attached")
	return nil
}

// Broadcast sends a signed transaction and returns its signature, which is
// the transaction id.
func (s *SignerService) Broadcast(ctx context.Context, tx *Transaction) (string, error) {
	if tx.State() < txbuilder.FullySigned {
		return "", fmt.Errorf("transaction is %s, not fully signed", tx.State())
	}
	if _, err := tx.ToBroadcastFormat(); err != nil {
		return "", err
	}
	signed, err := tx.Signed()
	if err != nil {
		return "", err
	}

	sig, err := s.rpcClient.SendTransactionWithOpts(ctx, signed, rpc.TransactionOpts{
		PreflightCommitment: rpc.CommitmentFinalized,
	})
	if err != nil {
		return "", fmt.Errorf("failed to broadcast transaction: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"tx_hash": sig.String(),
	}).Info("transaction broadcast")
	return sig.String(), nil
}
