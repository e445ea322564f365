package solana

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/vultisig/mobile-tss-lib/tss"

	"github.com/vultisig/app-recovery/internal/keypair"
	"github.com/vultisig/app-recovery/internal/txbuilder"
)

var (
	testBlockhash = solana.Hash{1, 2, 3, 4, 5, 6, 7, 8}
	usdcMint      = solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
)

func testLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newKey(t *testing.T) *keypair.Ed25519 {
	t.Helper()
	k, err := keypair.NewEd25519()
	require.NoError(t, err)
	return k
}

func transferBuilder(t *testing.T, from, to solana.PublicKey, amount string) *Builder {
	t.Helper()
	b := NewFactory().GetTransferBuilder()
	require.NoError(t, b.Sender(from.String()))
	require.NoError(t, b.To(to.String()))
	require.NoError(t, b.Amount(amount))
	require.NoError(t, b.RecentBlockhash(testBlockhash.String()))
	return b
}

func TestTransfer_SignAndRoundTrip(t *testing.T) {
	sender, recipient := newKey(t), newKey(t)

	tx, err := transferBuilder(t, sender.Address(), recipient.Address(), "1500000").Build()
	require.NoError(t, err)
	require.Equal(t, txbuilder.Unsigned, tx.State())
	require.Empty(t, tx.ID())

	unsigned, err := tx.ToBroadcastFormat()
	require.NoError(t, err)

	require.NoError(t, tx.Sign(sender))
	require.Equal(t, txbuilder.FullySigned, tx.State())
	require.NotEmpty(t, tx.ID())

	raw, err := tx.ToBroadcastFormat()
	require.NoError(t, err)
	require.Equal(t, txbuilder.Broadcastable, tx.State())
	require.NotEqual(t, unsigned, raw)

	decoded, err := solana.TransactionFromBytes(raw)
	require.NoError(t, err)
	require.Equal(t, tx.ID(), decoded.Signatures[0].String())
	require.NoError(t, decoded.VerifySignatures())

	b, err := NewFactory().From(raw)
	require.NoError(t, err)
	rebuilt, err := b.Build()
	require.NoError(t, err)
	require.Equal(t, txbuilder.FullySigned, rebuilt.State())
	again, err := rebuilt.ToBroadcastFormat()
	require.NoError(t, err)
	require.Equal(t, raw, again)

	b, err = NewFactory().FromBase64(base64.StdEncoding.EncodeToString(unsigned))
	require.NoError(t, err)
	rebuilt, err = b.Build()
	require.NoError(t, err)
	require.Equal(t, txbuilder.Unsigned, rebuilt.State())
	require.Equal(t, tx.Message(), rebuilt.Message())
}

func TestTransfer_ChangedAmountDropsSignature(t *testing.T) {
	sender, recipient := newKey(t), newKey(t)
	b := transferBuilder(t, sender.Address(), recipient.Address(), "1500000")
	require.NoError(t, b.Sign(sender))
	tx, err := b.Build()
	require.NoError(t, err)
	raw, err := tx.ToBroadcastFormat()
	require.NoError(t, err)

	b, err = NewFactory().From(raw)
	require.NoError(t, err)
	require.NoError(t, b.Amount("1600000"))
	rebuilt, err := b.Build()
	require.NoError(t, err)
	require.Equal(t, txbuilder.Unsigned, rebuilt.State())

	require.NoError(t, rebuilt.Sign(sender))
	require.Equal(t, txbuilder.FullySigned, rebuilt.State())
}

func TestTransfer_WrongSigner(t *testing.T) {
	sender, recipient, other := newKey(t), newKey(t), newKey(t)
	tx, err := transferBuilder(t, sender.Address(), recipient.Address(), "10").Build()
	require.NoError(t, err)

	err = tx.Sign(other)
	require.True(t, txbuilder.IsSigningError(err))
	require.Contains(t, err.Error(), "cannot sign for fee payer")

	sig, err := sender.Sign([]byte("something else"))
	require.NoError(t, err)
	err = tx.AddSignature(sender.PublicKey(), sig)
	require.EqualError(t, err, "Signature does not verify for "+sender.Address().String())
	require.Equal(t, txbuilder.Unsigned, tx.State())

	pubOnly, err := keypair.Ed25519FromPublicKey(sender.Address().String())
	require.NoError(t, err)
	require.EqualError(t, tx.Sign(pubOnly), "Missing private key")

	require.NoError(t, tx.Sign(sender))
	require.Error(t, tx.Sign(sender))
}

func TestBuilder_Validation(t *testing.T) {
	sender, recipient := newKey(t), newKey(t)

	tests := []struct {
		name string
		prep func(b *Builder)
		err  string
	}{
		{
			name: "missing sender",
			prep: func(b *Builder) {},
			err:  "Invalid transaction: missing sender",
		},
		{
			name: "missing to",
			prep: func(b *Builder) {
				require.NoError(t, b.Sender(sender.Address().String()))
			},
			err: "Invalid transaction: missing to address",
		},
		{
			name: "missing amount",
			prep: func(b *Builder) {
				require.NoError(t, b.Sender(sender.Address().String()))
				require.NoError(t, b.To(recipient.Address().String()))
			},
			err: "Invalid transaction: missing amount",
		},
		{
			name: "missing blockhash",
			prep: func(b *Builder) {
				require.NoError(t, b.Sender(sender.Address().String()))
				require.NoError(t, b.To(recipient.Address().String()))
				require.NoError(t, b.Amount("5"))
			},
			err: "Invalid transaction: missing blockhash",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewFactory().GetTransferBuilder()
			tt.prep(b)
			_, err := b.Build()
			require.EqualError(t, err, tt.err)
			require.True(t, txbuilder.IsBuildError(err))
		})
	}

	token := NewFactory().GetTokenTransferBuilder()
	require.NoError(t, token.Sender(sender.Address().String()))
	require.NoError(t, token.To(recipient.Address().String()))
	require.NoError(t, token.Amount("5"))
	require.NoError(t, token.RecentBlockhash(testBlockhash.String()))
	_, err := token.Build()
	require.EqualError(t, err, "Invalid transaction: missing token")
}

func TestBuilder_Setters(t *testing.T) {
	b := NewFactory().GetTransferBuilder()
	require.EqualError(t, b.Sender("not-base58!"), "Invalid address: not-base58!")
	require.EqualError(t, b.To("0x1234"), "Invalid address: 0x1234")
	require.EqualError(t, b.Amount("0"), "Invalid amount: 0")
	require.Error(t, b.Amount("-1"))
	require.EqualError(t, b.RecentBlockhash("zz"), "Invalid blockhash: zz")
	require.EqualError(t, b.Token(usdcMint.String(), 6, solana.TokenProgramID.String()),
		"Token can only be set on a token transfer")

	tb := NewFactory().GetTokenTransferBuilder()
	require.EqualError(t, tb.Token(usdcMint.String(), 6, solana.SystemProgramID.String()),
		"Invalid token program: "+solana.SystemProgramID.String())

	k := newKey(t)
	require.NoError(t, b.Sign(k))
	require.EqualError(t, b.Sign(k), "Transaction already has a signer")
	require.EqualError(t, b.AddSignature(k.PublicKey(), make([]byte, 64)), "Transaction already has a signer")
}

func TestTokenTransfer_RoundTrip(t *testing.T) {
	sender, recipient := newKey(t), newKey(t)
	for _, program := range []solana.PublicKey{solana.TokenProgramID, solana.Token2022ProgramID} {
		t.Run(program.String(), func(t *testing.T) {
			b := NewFactory().GetTokenTransferBuilder()
			require.NoError(t, b.Sender(sender.Address().String()))
			require.NoError(t, b.To(recipient.Address().String()))
			require.NoError(t, b.Amount("2500000"))
			require.NoError(t, b.RecentBlockhash(testBlockhash.String()))
			require.NoError(t, b.Token(usdcMint.String(), 6, program.String()))
			require.NoError(t, b.Sign(sender))
			tx, err := b.Build()
			require.NoError(t, err)
			require.Equal(t, TypeTokenTransfer, tx.Type())

			raw, err := tx.ToBroadcastFormat()
			require.NoError(t, err)

			decoded, err := solana.TransactionFromBytes(raw)
			require.NoError(t, err)
			inst := decoded.Message.Instructions[0]
			require.Equal(t, program, decoded.Message.AccountKeys[inst.ProgramIDIndex])
			require.Equal(t, byte(transferCheckedDiscriminator), inst.Data[0])

			dest, _, err := FindAssociatedTokenAddress(recipient.Address(), usdcMint, program)
			require.NoError(t, err)
			e, err := tx.Explain()
			require.NoError(t, err)
			outputs := e.Get("outputs").([]txbuilder.Output)
			require.Equal(t, dest.String(), outputs[0].Address)
			require.Equal(t, usdcMint.String(), outputs[0].Token)

			loaded, err := NewFactory().From(raw)
			require.NoError(t, err)
			rebuilt, err := loaded.Build()
			require.NoError(t, err)
			require.Equal(t, txbuilder.FullySigned, rebuilt.State())
			again, err := rebuilt.ToBroadcastFormat()
			require.NoError(t, err)
			require.Equal(t, raw, again)
		})
	}
}

func TestFrom_Rejects(t *testing.T) {
	f := NewFactory()

	_, err := f.From(nil)
	require.EqualError(t, err, "Raw transaction is empty")

	_, err = f.FromBase64("%%%")
	require.True(t, txbuilder.IsInvalidTransaction(err))

	_, err = f.From([]byte{1, 2, 3})
	require.Error(t, err)

	sender := newKey(t)
	memo := solana.NewInstruction(
		solana.MemoProgramID,
		[]*solana.AccountMeta{{PublicKey: sender.Address(), IsSigner: true}},
		[]byte("hello"),
	)
	tx, err := solana.NewTransaction([]solana.Instruction{memo}, testBlockhash, solana.TransactionPayer(sender.Address()))
	require.NoError(t, err)
	tx.Signatures = []solana.Signature{{}}
	raw, err := tx.MarshalBinary()
	require.NoError(t, err)
	_, err = f.From(raw)
	require.True(t, txbuilder.IsNotSupported(err))
}

func TestExplain_Order(t *testing.T) {
	sender, recipient := newKey(t), newKey(t)
	tx, err := transferBuilder(t, sender.Address(), recipient.Address(), "1500000").Build()
	require.NoError(t, err)
	require.NoError(t, tx.Sign(sender))

	e, err := tx.Explain()
	require.NoError(t, err)
	require.Equal(t, []string{"id", "outputs", "outputAmount", "fee", "blockhash", "type"}, e.DisplayOrder)
	require.Equal(t, "1500000", e.Get("outputAmount"))
	require.Equal(t, map[string]string{"fee": "5000"}, e.Get("fee"))
	require.Equal(t, testBlockhash.String(), e.Get("blockhash"))
	require.Equal(t, "Transfer", e.Get("type"))

	out, err := json.Marshal(e)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(out, []byte(`{"id":"`+tx.ID()+`","outputs":`)))
}

type fakeRPC struct {
	balance      uint64
	tokenBalance string
	rentExempt   uint64
	accounts     map[solana.PublicKey]*rpc.Account
	sent         []*solana.Transaction
}

func (f *fakeRPC) GetAccountInfo(_ context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error) {
	acc, ok := f.accounts[account]
	if !ok {
		return nil, rpc.ErrNotFound
	}
	return &rpc.GetAccountInfoResult{Value: acc}, nil
}

func (f *fakeRPC) GetBalance(context.Context, solana.PublicKey, rpc.CommitmentType) (*rpc.GetBalanceResult, error) {
	return &rpc.GetBalanceResult{Value: f.balance}, nil
}

func (f *fakeRPC) GetTokenAccountBalance(context.Context, solana.PublicKey, rpc.CommitmentType) (*rpc.GetTokenAccountBalanceResult, error) {
	return &rpc.GetTokenAccountBalanceResult{Value: &rpc.UiTokenAmount{Amount: f.tokenBalance}}, nil
}

func (f *fakeRPC) GetMinimumBalanceForRentExemption(context.Context, uint64, rpc.CommitmentType) (uint64, error) {
	return f.rentExempt, nil
}

func (f *fakeRPC) GetLatestBlockhash(context.Context, rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	return &rpc.GetLatestBlockhashResult{Value: &rpc.LatestBlockhashResult{Blockhash: testBlockhash}}, nil
}

func (f *fakeRPC) SendTransactionWithOpts(_ context.Context, tx *solana.Transaction, _ rpc.TransactionOpts) (solana.Signature, error) {
	f.sent = append(f.sent, tx)
	return tx.Signatures[0], nil
}

func mintAccount(t *testing.T, program solana.PublicKey, decimals uint8) *rpc.Account {
	t.Helper()
	var buf bytes.Buffer
	mint := token.Mint{Supply: 1_000_000, Decimals: decimals, IsInitialized: true}
	require.NoError(t, mint.MarshalWithEncoder(bin.NewBinEncoder(&buf)))
	return &rpc.Account{Owner: program, Data: rpc.DataBytesOrJSONFromBytes(buf.Bytes())}
}

func TestSendService_NativeTransfer(t *testing.T) {
	ctx := context.Background()
	sender, recipient := newKey(t), newKey(t)
	fake := &fakeRPC{balance: 2_000_000, rentExempt: 890_880}
	svc := NewSendService(fake, NewFactory())

	b, err := svc.BuildNativeTransfer(ctx, sender.Address(), recipient.Address(), 1_000_000)
	require.NoError(t, err)
	tx, err := b.Build()
	require.NoError(t, err)
	e, err := tx.Explain()
	require.NoError(t, err)
	require.Equal(t, testBlockhash.String(), e.Get("blockhash"))

	_, err = svc.BuildNativeTransfer(ctx, sender.Address(), recipient.Address(), 1_000)
	require.ErrorContains(t, err, "below rent-exempt minimum")

	fake.accounts = map[solana.PublicKey]*rpc.Account{recipient.Address(): {Lamports: 1}}
	_, err = svc.BuildNativeTransfer(ctx, sender.Address(), recipient.Address(), 1_000)
	require.NoError(t, err)

	_, err = svc.BuildNativeTransfer(ctx, sender.Address(), recipient.Address(), 1_996_000)
	require.ErrorContains(t, err, "solana: insufficient balance")
}

func TestSendService_TokenTransfer(t *testing.T) {
	ctx := context.Background()
	sender, recipient := newKey(t), newKey(t)
	dest, _, err := FindAssociatedTokenAddress(recipient.Address(), usdcMint, solana.Token2022ProgramID)
	require.NoError(t, err)

	fake := &fakeRPC{
		tokenBalance: "5000000",
		accounts: map[solana.PublicKey]*rpc.Account{
			usdcMint: mintAccount(t, solana.Token2022ProgramID, 6),
		},
	}
	svc := NewSendService(fake, NewFactory())

	_, err = svc.BuildTokenTransfer(ctx, usdcMint, sender.Address(), recipient.Address(), 1_000_000)
	require.ErrorContains(t, err, "does not exist")

	fake.accounts[dest] = &rpc.Account{Owner: solana.Token2022ProgramID}
	b, err := svc.BuildTokenTransfer(ctx, usdcMint, sender.Address(), recipient.Address(), 1_000_000)
	require.NoError(t, err)
	tx, err := b.Build()
	require.NoError(t, err)
	require.Equal(t, uint8(6), tx.transfer.decimals)
	require.Equal(t, solana.Token2022ProgramID, tx.transfer.tokenProgram)
	require.Equal(t, dest, tx.transfer.destination)

	_, err = svc.BuildTokenTransfer(ctx, usdcMint, sender.Address(), recipient.Address(), 6_000_000)
	require.ErrorContains(t, err, "insufficient token balance")
}

type mockKeysigner struct {
	key   *keypair.Ed25519
	extra bool
}

func (m *mockKeysigner) Sign(_ context.Context, _ string, messages [][]byte) (map[string]tss.KeysignResponse, error) {
	res := make(map[string]tss.KeysignResponse, len(messages))
	for i, msg := range messages {
		sig, err := m.key.Sign(msg)
		if err != nil {
			return nil, err
		}
		resp, err := txbuilder.FormatKeysignEdDSA(sig)
		if err != nil {
			return nil, err
		}
		res[string(rune('a'+i))] = resp
	}
	if m.extra {
		res["extra"] = tss.KeysignResponse{}
	}
	return res, nil
}

func TestSignerService_TSS(t *testing.T) {
	ctx := context.Background()
	sender, recipient := newKey(t), newKey(t)
	fake := &fakeRPC{}

	tx, err := transferBuilder(t, sender.Address(), recipient.Address(), "1500000").Build()
	require.NoError(t, err)
	local, err := transferBuilder(t, sender.Address(), recipient.Address(), "1500000").Build()
	require.NoError(t, err)
	require.NoError(t, local.Sign(sender))

	svc := NewSignerService(&mockKeysigner{key: sender}, fake, testLogger())
	_, err = svc.Broadcast(ctx, tx)
	require.ErrorContains(t, err, "not fully signed")

	require.NoError(t, svc.Sign(ctx, tx, sender.Address().String()))
	require.Equal(t, local.ID(), tx.ID())

	id, err := svc.Broadcast(ctx, tx)
	require.NoError(t, err)
	require.Equal(t, tx.ID(), id)
	require.Len(t, fake.sent, 1)
	require.Equal(t, txbuilder.Broadcastable, tx.State())

	bad := NewSignerService(&mockKeysigner{key: sender, extra: true}, fake, testLogger())
	fresh, err := transferBuilder(t, sender.Address(), recipient.Address(), "1500000").Build()
	require.NoError(t, err)
	require.EqualError(t, bad.Sign(ctx, fresh, sender.Address().String()), "expected 1 signature, got 2")
}
