package solana

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
)

type tokenAccountService struct {
	rpcClient RPC
}

func newTokenAccountService(rpcClient RPC) *tokenAccountService {
	return &tokenAccountService{
		rpcClient: rpcClient,
	}
}

// GetTokenProgram returns the program owning mint, SPL token or Token-2022,
// and the mint decimals. Both programs share the base Mint layout.
func (s *tokenAccountService) GetTokenProgram(ctx context.Context, mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	accountInfo, err := s.rpcClient.GetAccountInfo(ctx, mint)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("solana: failed to get mint account info: %w", err)
	}
	if accountInfo == nil || accountInfo.Value == nil {
		return solana.PublicKey{}, 0, fmt.Errorf("solana: mint account not found: %s", mint)
	}

	owner := accountInfo.Value.Owner
	if owner != solana.TokenProgramID && owner != solana.Token2022ProgramID {
		return solana.PublicKey{}, 0, fmt.Errorf("solana: mint account is not owned by a token program: %s", owner)
	}

	var mintData token.Mint
	if err := mintData.UnmarshalWithDecoder(bin.NewBinDecoder(accountInfo.Value.Data.GetBinary())); err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("solana: failed to deserialize mint data: %w", err)
	}
	return owner, mintData.Decimals, nil
}

// FindAssociatedTokenAddress derives the associated token account of wallet
// for mint under tokenProgram.
func FindAssociatedTokenAddress(wallet, mint, tokenProgram solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{
			wallet[:],
			tokenProgram[:],
			mint[:],
		},
		solana.SPLAssociatedTokenAccountProgramID,
	)
}

func (s *tokenAccountService) CheckAccountExists(ctx context.Context, account solana.PublicKey) (bool, error) {
	accountInfo, err := s.rpcClient.GetAccountInfo(ctx, account)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("solana: failed to get account info: %w", err)
	}
	return accountInfo != nil && accountInfo.Value != nil, nil
}

func (s *tokenAccountService) GetTokenBalance(ctx context.Context, tokenAccount solana.PublicKey) (uint64, error) {
	balance, err := s.rpcClient.GetTokenAccountBalance(ctx, tokenAccount, rpc.CommitmentFinalized)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) || strings.Contains(err.Error(), "could not find account") {
			return 0, nil
		}
		return 0, fmt.Errorf("solana: failed to get token balance: %w", err)
	}
	if balance == nil || balance.Value == nil || balance.Value.Amount == "" {
		return 0, nil
	}

	amount, err := strconv.ParseUint(balance.Value.Amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("solana: failed to parse amount: %w", err)
	}
	return amount, nil
}
