package evm

import (
	"math/big"

	ecommon "github.com/ethereum/go-ethereum/common"

	"github.com/vultisig/app-recovery/internal/txbuilder"
)

// stakingOperation is one Celo LockedGold or Election call.
type stakingOperation interface {
	kind() TransactionType
	encode(params *NetworkParams) (to ecommon.Address, value *big.Int, data []byte, err error)
}

// stakingFields is shared by the staking sub-builders; each only exposes the
// setters its call takes.
type stakingFields struct {
	amount  *big.Int
	group   *ecommon.Address
	lesser  *ecommon.Address
	greater *ecommon.Address
	index   *big.Int
	err     error
}

func (f *stakingFields) setAmount(v string) {
	amount, err := txbuilder.ParseValue(v)
	if err != nil {
		f.keep(err)
		return
	}
	f.amount = amount
}

func (f *stakingFields) setAddress(dst **ecommon.Address, v string) {
	addr, err := parseAddress(v)
	if err != nil {
		f.keep(err)
		return
	}
	*dst = &addr
}

func (f *stakingFields) setIndex(i uint64) {
	f.index = new(big.Int).SetUint64(i)
}

func (f *stakingFields) keep(err error) {
	if f.err == nil {
		f.err = err
	}
}

func (f *stakingFields) require(amount, group, neighbours, index bool) error {
	if f.err != nil {
		return f.err
	}
	switch {
	case amount && f.amount == nil:
		return txbuilder.NewBuildError("Missing amount")
	case group && f.group == nil:
		return txbuilder.NewBuildError("Missing group")
	case neighbours && (f.lesser == nil || f.greater == nil):
		return txbuilder.NewBuildError("Missing lesser or greater group")
	case index && f.index == nil:
		return txbuilder.NewBuildError("Missing index")
	}
	return nil
}

type LockBuilder struct{ f stakingFields }

func (b *LockBuilder) Amount(v string) *LockBuilder {
	b.f.setAmount(v)
	return b
}

func (b *LockBuilder) kind() TransactionType {
	return TypeStakingLock
}

func (b *LockBuilder) encode(p *NetworkParams) (ecommon.Address, *big.Int, []byte, error) {
	if err := b.f.require(true, false, false, false); err != nil {
		return ecommon.Address{}, nil, nil, err
	}
	data, err := lockMethod.pack()
	return p.lockedGold(), b.f.amount, data, err
}

type UnlockBuilder struct{ f stakingFields }

func (b *UnlockBuilder) Amount(v string) *UnlockBuilder {
	b.f.setAmount(v)
	return b
}

func (b *UnlockBuilder) kind() TransactionType {
	return TypeStakingUnlock
}

func (b *UnlockBuilder) encode(p *NetworkParams) (ecommon.Address, *big.Int, []byte, error) {
	if err := b.f.require(true, false, false, false); err != nil {
		return ecommon.Address{}, nil, nil, err
	}
	data, err := unlockMethod.pack(b.f.amount)
	return p.lockedGold(), new(big.Int), data, err
}

type WithdrawBuilder struct{ f stakingFields }

// Index selects the pending withdrawal to claim.
func (b *WithdrawBuilder) Index(i uint64) *WithdrawBuilder {
	b.f.setIndex(i)
	return b
}

func (b *WithdrawBuilder) kind() TransactionType {
	return TypeStakingWithdraw
}

func (b *WithdrawBuilder) encode(p *NetworkParams) (ecommon.Address, *big.Int, []byte, error) {
	if err := b.f.require(false, false, false, true); err != nil {
		return ecommon.Address{}, nil, nil, err
	}
	data, err := withdrawMethod.pack(b.f.index)
	return p.lockedGold(), new(big.Int), data, err
}

type VoteBuilder struct{ f stakingFields }

func (b *VoteBuilder) Amount(v string) *VoteBuilder {
	b.f.setAmount(v)
	return b
}

func (b *VoteBuilder) Group(a string) *VoteBuilder {
	b.f.setAddress(&b.f.group, a)
	return b
}

func (b *VoteBuilder) Lesser(a string) *VoteBuilder {
	b.f.setAddress(&b.f.lesser, a)
	return b
}

func (b *VoteBuilder) Greater(a string) *VoteBuilder {
	b.f.setAddress(&b.f.greater, a)
	return b
}

func (b *VoteBuilder) kind() TransactionType {
	return TypeStakingVote
}

func (b *VoteBuilder) encode(p *NetworkParams) (ecommon.Address, *big.Int, []byte, error) {
	if err := b.f.require(true, true, true, false); err != nil {
		return ecommon.Address{}, nil, nil, err
	}
	data, err := voteMethod.pack(*b.f.group, b.f.amount, *b.f.lesser, *b.f.greater)
	return p.election(), new(big.Int), data, err
}

type UnvoteBuilder struct{ f stakingFields }

func (b *UnvoteBuilder) Amount(v string) *UnvoteBuilder {
	b.f.setAmount(v)
	return b
}

func (b *UnvoteBuilder) Group(a string) *UnvoteBuilder {
	b.f.setAddress(&b.f.group, a)
	return b
}

func (b *UnvoteBuilder) Lesser(a string) *UnvoteBuilder {
	b.f.setAddress(&b.f.lesser, a)
	return b
}

func (b *UnvoteBuilder) Greater(a string) *UnvoteBuilder {
	b.f.setAddress(&b.f.greater, a)
	return b
}

func (b *UnvoteBuilder) Index(i uint64) *UnvoteBuilder {
	b.f.setIndex(i)
	return b
}

func (b *UnvoteBuilder) kind() TransactionType {
	return TypeStakingUnvote
}

func (b *UnvoteBuilder) encode(p *NetworkParams) (ecommon.Address, *big.Int, []byte, error) {
	if err := b.f.require(true, true, true, true); err != nil {
		return ecommon.Address{}, nil, nil, err
	}
	data, err := revokePendingMethod.pack(*b.f.group, b.f.amount, *b.f.lesser, *b.f.greater, b.f.index)
	return p.election(), new(big.Int), data, err
}

type ActivateBuilder struct{ f stakingFields }

func (b *ActivateBuilder) Group(a string) *ActivateBuilder {
	b.f.setAddress(&b.f.group, a)
	return b
}

func (b *ActivateBuilder) kind() TransactionType {
	return TypeStakingActivate
}

func (b *ActivateBuilder) encode(p *NetworkParams) (ecommon.Address, *big.Int, []byte, error) {
	if err := b.f.require(false, true, false, false); err != nil {
		return ecommon.Address{}, nil, nil, err
	}
	data, err := activateMethod.pack(*b.f.group)
	return p.election(), new(big.Int), data, err
}

// decodeStaking rebuilds the staking sub-builder from calldata.
func decodeStaking(t TransactionType, value *big.Int, data []byte) (stakingOperation, error) {
	switch t {
	case TypeStakingLock:
		return &LockBuilder{f: stakingFields{amount: value}}, nil
	case TypeStakingUnlock:
		v, err := unlockMethod.unpack(data)
		if err != nil {
			return nil, err
		}
		return &UnlockBuilder{f: stakingFields{amount: v[0].(*big.Int)}}, nil
	case TypeStakingWithdraw:
		v, err := withdrawMethod.unpack(data)
		if err != nil {
			return nil, err
		}
		return &WithdrawBuilder{f: stakingFields{index: v[0].(*big.Int)}}, nil
	case TypeStakingVote:
		v, err := voteMethod.unpack(data)
		if err != nil {
			return nil, err
		}
		group, lesser, greater := v[0].(ecommon.Address), v[2].(ecommon.Address), v[3].(ecommon.Address)
		return &VoteBuilder{f: stakingFields{group: &group, amount: v[1].(*big.Int), lesser: &lesser, greater: &greater}}, nil
	case TypeStakingUnvote:
		v, err := revokePendingMethod.unpack(data)
		if err != nil {
			return nil, err
		}
		group, lesser, greater := v[0].(ecommon.Address), v[2].(ecommon.Address), v[3].(ecommon.Address)
		return &UnvoteBuilder{f: stakingFields{
			group:   &group,
			amount:  v[1].(*big.Int),
			lesser:  &lesser,
			greater: &greater,
			index:   v[4].(*big.Int),
		}}, nil
	case TypeStakingActivate:
		v, err := activateMethod.unpack(data)
		if err != nil {
			return nil, err
		}
		group := v[0].(ecommon.Address)
		return &ActivateBuilder{f: stakingFields{group: &group}}, nil
	default:
		return nil, &txbuilder.NotSupportedError{Operation: t.String()}
	}
}
