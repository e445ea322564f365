package solana

import (
	"context"
	"fmt"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// SendService prepares builders from live cluster state.
type SendService struct {
	rpcClient RPC
	factory   *Factory
	tokens    *tokenAccountService
}

func NewSendService(rpcClient RPC, factory *Factory) *SendService {
	return &SendService{
		rpcClient: rpcClient,
		factory:   factory,
		tokens:    newTokenAccountService(rpcClient),
	}
}

// BuildNativeTransfer returns a transfer builder with a fresh blockhash. The
// sender must cover amount plus the signature fee, and a transfer that creates
// the destination account must reach the rent-exempt minimum.
func (s *SendService) BuildNativeTransfer(ctx context.Context, from, to solana.PublicKey, amount uint64) (*Builder, error) {
	balance, err := s.rpcClient.GetBalance(ctx, from, rpc.CommitmentFinalized)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	if balance.Value < amount+LamportsPerSignature {
		return nil, fmt.Errorf(
			"solana: insufficient balance: %d lamports, need %d plus %d fee",
			balance.Value,
			amount,
			LamportsPerSignature,
		)
	}

	exists, err := s.tokens.CheckAccountExists(ctx, to)
	if err != nil {
		return nil, fmt.Errorf("failed to check destination account: %w", err)
	}
	if !exists {
		rentExempt, err := s.rpcClient.GetMinimumBalanceForRentExemption(ctx, 0, rpc.CommitmentFinalized)
		if err != nil {
			return nil, fmt.Errorf("failed to get rent exemption: %w", err)
		}
		if amount < rentExempt {
			return nil, fmt.Errorf(
				"transfer amount %d lamports is below rent-exempt minimum %d lamports for new account",
				amount,
				rentExempt,
			)
		}
	}

	b := s.factory.GetTransferBuilder()
	if err = s.prepare(ctx, b, from, to, amount); err != nil {
		return nil, err
	}
	return b, nil
}

// BuildTokenTransfer returns a TransferChecked builder between the associated
// token accounts of from and to. The destination account has to exist.
func (s *SendService) BuildTokenTransfer(ctx context.Context, mint, from, to solana.PublicKey, amount uint64) (*Builder, error) {
	tokenProgram, decimals, err := s.tokens.GetTokenProgram(ctx, mint)
	if err != nil {
		return nil, err
	}

	source, _, err := FindAssociatedTokenAddress(from, mint, tokenProgram)
	if err != nil {
		return nil, fmt.Errorf("failed to find source ATA: %w", err)
	}
	balance, err := s.tokens.GetTokenBalance(ctx, source)
	if err != nil {
		return nil, err
	}
	if balance < amount {
		return nil, fmt.Errorf("solana: insufficient token balance: %d, need %d", balance, amount)
	}

	dest, _, err := FindAssociatedTokenAddress(to, mint, tokenProgram)
	if err != nil {
		return nil, fmt.Errorf("failed to find destination ATA: %w", err)
	}
	exists, err := s.tokens.CheckAccountExists(ctx, dest)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("solana: destination token account %s does not exist", dest)
	}

	b := s.factory.GetTokenTransferBuilder()
	if err = b.Token(mint.String(), decimals, tokenProgram.String()); err != nil {
		return nil, err
	}
	if err = s.prepare(ctx, b, from, to, amount); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *SendService) prepare(ctx context.Context, b *Builder, from, to solana.PublicKey, amount uint64) error {
	block, err := s.rpcClient.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return fmt.Errorf("failed to get recent blockhash: %w", err)
	}
	if err = b.Sender(from.String()); err != nil {
		return err
	}
	if err = b.To(to.String()); err != nil {
		return err
	}
	if err = b.Amount(strconv.FormatUint(amount, 10)); err != nil {
		return err
	}
	return b.RecentBlockhash(block.Value.Blockhash.String())
}
