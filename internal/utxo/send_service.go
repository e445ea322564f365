package utxo

import (
	"context"
	"fmt"
	"strconv"

	"github.com/vultisig/app-recovery/internal/blockchair"
)

// UnspentSource lists the outputs of an address and serves the raw funding
// transactions legacy inputs need.
type UnspentSource interface {
	GetAllUnspent(ctx context.Context, address string) ([]blockchair.Utxo, error)
	GetRawTransaction(ctx context.Context, txHash string) ([]byte, error)
}

type FeeProvider interface {
	SatsPerByte(ctx context.Context) (uint64, error)
}

var (
	_ UnspentSource = (*blockchair.Client)(nil)
	_ FeeProvider   = (*blockchair.Client)(nil)
)

// SendService builds spends of a multisig wallet from the live unspent set.
// Every unspent is spent, so the wallet is consolidated in one transaction.
type SendService struct {
	unspents UnspentSource
	fee      FeeProvider
	factory  *Factory
}

func NewSendService(unspents UnspentSource, fee FeeProvider, factory *Factory) *SendService {
	return &SendService{
		unspents: unspents,
		fee:      fee,
		factory:  factory,
	}
}

// BuildTransfer pays amount base units to to and returns the rest as change.
func (s *SendService) BuildTransfer(ctx context.Context, wallet *Wallet, to string, amount uint64) (*Builder, error) {
	b, err := s.prepare(ctx, wallet)
	if err != nil {
		return nil, err
	}
	if err = b.To(to, strconv.FormatUint(amount, 10)); err != nil {
		return nil, err
	}
	return b, nil
}

// BuildSweep sends the whole wallet balance, less the fee, to to.
func (s *SendService) BuildSweep(ctx context.Context, wallet *Wallet, to string) (*Builder, error) {
	b, err := s.prepare(ctx, wallet)
	if err != nil {
		return nil, err
	}
	if err = b.SweepTo(to); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *SendService) prepare(ctx context.Context, wallet *Wallet) (*Builder, error) {
	b := s.factory.GetTransferBuilder()
	if err := b.Wallet(wallet); err != nil {
		return nil, err
	}

	addr := wallet.Address().String()
	utxos, err := s.unspents.GetAllUnspent(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to get utxos: %w", err)
	}
	if len(utxos) == 0 {
		return nil, fmt.Errorf("%s: no unspent outputs for %s", s.factory.Params().Chain, addr)
	}

	for _, u := range utxos {
		unspent := Unspent{
			TxHash: u.TransactionHash,
			Index:  u.Index,
			Value:  u.Value,
		}
		if !s.factory.Params().Segwit {
			unspent.PrevTx, err = s.unspents.GetRawTransaction(ctx, u.TransactionHash)
			if err != nil {
				return nil, fmt.Errorf("failed to get previous transaction %s: %w", u.TransactionHash, err)
			}
		}
		if err = b.AddUnspent(unspent); err != nil {
			return nil, err
		}
	}

	satsPerByte, err := s.fee.SatsPerByte(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get sats per byte: %w", err)
	}
	if err = b.FeeRate(satsPerByte); err != nil {
		return nil, err
	}
	return b, nil
}
