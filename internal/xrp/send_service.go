package xrp

import (
	"context"
	"fmt"
	"strconv"
)

// ledgerBuffer bounds how long a built payment stays valid (~5 minutes).
const ledgerBuffer = 100

// PaymentRequest describes a payment to prepare from live account state.
type PaymentRequest struct {
	From        string
	To          string
	AmountDrops uint64
	// SigningPubKey selects single-key signing; Signers a multisig payment.
	SigningPubKey string
	Signers       []string
	Quorum        int
}

type SendService struct {
	client AccountInfoProvider
}

func NewSendService(client AccountInfoProvider) *SendService {
	return &SendService{
		client: client,
	}
}

// BuildPayment fills sequence, fee and LastLedgerSequence from the network.
func (s *SendService) BuildPayment(ctx context.Context, req PaymentRequest) (*Builder, error) {
	sequence, err := s.client.GetAccountInfo(ctx, req.From)
	if err != nil {
		return nil, fmt.Errorf("failed to get account sequence: %w", err)
	}
	return s.BuildPaymentWithSequence(ctx, req, sequence)
}

// BuildPaymentWithSequence builds with a caller-chosen sequence, for batches
// where each payment takes the next one.
func (s *SendService) BuildPaymentWithSequence(ctx context.Context, req PaymentRequest, sequence uint32) (*Builder, error) {
	currentLedger, err := s.client.GetCurrentLedger(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current ledger: %w", err)
	}
	baseFee, err := s.client.GetBaseFee(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get base fee: %w", err)
	}

	b := &Builder{}
	if err = b.Sender(req.From); err != nil {
		return nil, err
	}
	if err = b.To(req.To); err != nil {
		return nil, err
	}
	if err = b.Amount(strconv.FormatUint(req.AmountDrops, 10)); err != nil {
		return nil, err
	}
	b.Sequence(sequence)
	b.LastLedgerSequence(currentLedger + ledgerBuffer)

	fee := baseFee
	if req.SigningPubKey != "" {
		if err = b.SigningPubKey(req.SigningPubKey); err != nil {
			return nil, err
		}
	} else {
		quorum := req.Quorum
		if quorum == 0 {
			quorum = DefaultQuorum
		}
		if err = b.Quorum(quorum); err != nil {
			return nil, err
		}
		for _, signer := range req.Signers {
			if err = b.Signer(signer); err != nil {
				return nil, err
			}
		}
		fee = MultisigFee(baseFee, quorum)
	}
	if err = b.Fee(strconv.FormatUint(fee, 10)); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *SendService) GetSequence(ctx context.Context, address string) (uint32, error) {
	return s.client.GetAccountInfo(ctx, address)
}
