package evm

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	ecommon "github.com/ethereum/go-ethereum/common"
)

// chainReader is the subset of ethclient.Client the balance service reads
// through.
type chainReader interface {
	BalanceAt(ctx context.Context, account ecommon.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account ecommon.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

type balanceService struct {
	rpc chainReader
}

func newBalanceService(rpc chainReader) *balanceService {
	return &balanceService{rpc: rpc}
}

func (s *balanceService) GetNativeBalance(ctx context.Context, address ecommon.Address) (*big.Int, error) {
	balance, err := s.rpc.BalanceAt(ctx, address, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get native balance: %w", err)
	}
	return balance, nil
}

func (s *balanceService) GetERC20Balance(ctx context.Context, tokenAddress, ownerAddress ecommon.Address) (*big.Int, error) {
	if tokenAddress == (ecommon.Address{}) {
		return s.GetNativeBalance(ctx, ownerAddress)
	}
	res, err := s.rpc.CallContract(ctx, ethereum.CallMsg{To: &tokenAddress, Data: BalanceOfData(ownerAddress)}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get ERC20 balance: %w", err)
	}
	balance, err := DecodeUint256(res)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ERC20 balance: %w", err)
	}
	return balance, nil
}

// GetSequenceID calls getNextSequenceId on a multisig wallet.
func (s *balanceService) GetSequenceID(ctx context.Context, wallet ecommon.Address) (uint64, error) {
	res, err := s.rpc.CallContract(ctx, ethereum.CallMsg{To: &wallet, Data: GetNextSequenceIDData()}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to get sequence id: %w", err)
	}
	seq, err := DecodeUint256(res)
	if err != nil {
		return 0, fmt.Errorf("failed to decode sequence id: %w", err)
	}
	if !seq.IsUint64() {
		return 0, fmt.Errorf("sequence id out of range: %s", seq)
	}
	return seq.Uint64(), nil
}

func (s *balanceService) GetNonce(ctx context.Context, address ecommon.Address) (uint64, error) {
	nonce, err := s.rpc.PendingNonceAt(ctx, address)
	if err != nil {
		return 0, fmt.Errorf("failed to get nonce: %w", err)
	}
	return nonce, nil
}

func (s *balanceService) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	price, err := s.rpc.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to suggest gas price: %w", err)
	}
	return price, nil
}
