package cosmos

import (
	"context"
	"fmt"
)

// SendService prepares builders from live account state.
type SendService struct {
	client  AccountInfoProvider
	factory *Factory
}

func NewSendService(client AccountInfoProvider, factory *Factory) *SendService {
	return &SendService{
		client:  client,
		factory: factory,
	}
}

// BuildTransfer returns a send builder with account number, sequence and
// public key filled in. The balance has to cover the amount plus the fee.
func (s *SendService) BuildTransfer(ctx context.Context, from, to, amount, pubKeyHex string) (*Builder, error) {
	b := s.factory.GetSendBuilder()
	if err := s.prepare(ctx, b, from, amount, pubKeyHex); err != nil {
		return nil, err
	}
	if err := b.To(to); err != nil {
		return nil, err
	}
	return b, nil
}

// BuildDelegation returns a Delegate or Undelegate builder the same way.
func (s *SendService) BuildDelegation(ctx context.Context, t TransactionType, from, validator, amount, pubKeyHex string) (*Builder, error) {
	b, err := s.factory.GetStakingBuilder(t)
	if err != nil {
		return nil, err
	}
	if err = s.prepare(ctx, b, from, amount, pubKeyHex); err != nil {
		return nil, err
	}
	if err = b.Validator(validator); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *SendService) prepare(ctx context.Context, b *Builder, from, amount, pubKeyHex string) error {
	if err := b.Sender(from); err != nil {
		return err
	}
	if err := b.Amount(amount); err != nil {
		return err
	}
	if err := b.PublicKey(pubKeyHex); err != nil {
		return err
	}

	acc, err := s.client.GetAccount(ctx, from)
	if err != nil {
		return fmt.Errorf("cosmos: failed to get account info: %w", err)
	}
	b.AccountNumber(acc.AccountNumber)
	b.Sequence(acc.Sequence)

	if b.txType == TypeUndelegate {
		return nil
	}
	balance, err := s.client.GetBalance(ctx, from, b.cfg.Denom)
	if err != nil {
		return fmt.Errorf("cosmos: failed to get balance: %w", err)
	}
	fee, err := b.fee()
	if err != nil {
		return err
	}
	need := b.amount.Add(fee.Amount.AmountOf(b.cfg.Denom))
	if balance.LT(need) {
		return fmt.Errorf("cosmos: insufficient balance: have %s%s, need %s%s", balance, b.cfg.Denom, need, b.cfg.Denom)
	}
	return nil
}
