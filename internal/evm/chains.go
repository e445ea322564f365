package evm

import (
	"encoding/json"
	"fmt"
	"math/big"

	ecommon "github.com/ethereum/go-ethereum/common"
	"github.com/vultisig/vultisig-go/common"

	"github.com/vultisig/app-recovery/internal/txbuilder"
)

// NetworkParams are the per-network constants a builder needs. They are parsed
// from a JSON blob and shared through a content-hash keyed cache.
type NetworkParams struct {
	Name                    string `json:"name"`
	ChainID                 uint64 `json:"chainId"`
	NativeOperationPrefix   string `json:"nativeOperationPrefix"`
	TokenOperationPrefix    string `json:"tokenOperationPrefix"`
	ForwarderImplementation string `json:"forwarderImplementationAddress,omitempty"`
	WalletImplementation    string `json:"walletImplementationAddress,omitempty"`
	WalletBytecode          string `json:"walletBytecode,omitempty"`
	LockedGold              string `json:"lockedGoldAddress,omitempty"`
	Election                string `json:"electionAddress,omitempty"`
}

func (p *NetworkParams) ChainIDBig() *big.Int {
	return new(big.Int).SetUint64(p.ChainID)
}

// SupportsStaking reports whether the network has staking contracts configured.
func (p *NetworkParams) SupportsStaking() bool {
	return p.LockedGold != "" && p.Election != ""
}

func (p *NetworkParams) lockedGold() ecommon.Address { return ecommon.HexToAddress(p.LockedGold) }
func (p *NetworkParams) election() ecommon.Address { return ecommon.HexToAddress(p.Election) }

// stakingTarget is the contract every call of staking type t is sent to.
func (p *NetworkParams) stakingTarget(t TransactionType) (ecommon.Address, bool) {
	if !p.SupportsStaking() {
		return ecommon.Address{}, false
	}
	switch t {
	case TypeStakingLock, TypeStakingUnlock, TypeStakingWithdraw:
		return p.lockedGold(), true
	case TypeStakingVote, TypeStakingUnvote, TypeStakingActivate:
		return p.election(), true
	}
	return ecommon.Address{}, false
}

func ParseNetworkParams(blob []byte) (*NetworkParams, error) {
	var p NetworkParams
	if err := json.Unmarshal(blob, &p); err != nil {
		return nil, fmt.Errorf("failed to parse network params: %w", err)
	}
	if p.ChainID == 0 {
		return nil, fmt.Errorf("network params %q: missing chainId", p.Name)
	}
	if p.NativeOperationPrefix == "" {
		p.NativeOperationPrefix = "ETHER"
	}
	if p.TokenOperationPrefix == "" {
		p.TokenOperationPrefix = "ERC20"
	}
	for _, addr := range []string{p.ForwarderImplementation, p.WalletImplementation, p.LockedGold, p.Election} {
		if addr != "" && !ecommon.IsHexAddress(addr) {
			return nil, fmt.Errorf("network params %q: invalid address %s", p.Name, addr)
		}
	}
	return &p, nil
}

// ParamsCache is the cache type builders share for NetworkParams.
type ParamsCache = txbuilder.Cache[*NetworkParams]

func NewParamsCache() *ParamsCache {
	return txbuilder.NewCache[*NetworkParams]()
}

// LoadParams resolves a params blob through the cache.
func LoadParams(cache *ParamsCache, blob []byte) (*NetworkParams, error) {
	return cache.Get(blob, ParseNetworkParams)
}

var (
	CeloMainnetParams = []byte(`{
	"name": "celo",
	"chainId": 42220,
	"nativeOperationPrefix": "CELO",
	"tokenOperationPrefix": "CELO-ERC20",
	"lockedGoldAddress": "0x6cC083Aed9e3ebe302A6336dBC7c921C9f03349E",
	"electionAddress": "0x8D6677192144292870907E3Fa8A5527fE55A7ff6"
}`)

	CeloAlfajoresParams = []byte(`{
	"name": "tcelo",
	"chainId": 44787,
	"nativeOperationPrefix": "CELO",
	"tokenOperationPrefix": "CELO-ERC20",
	"lockedGoldAddress": "0x6a4CC5693DC5BFA3799C699F3B941bA2Cb00c341",
	"electionAddress": "0x1c3eDf937CFc2F6F51784D20DEB1af1F9a8655fA"
}`)
)

// SupportedChains returns the EVM chains with a multisig wallet deployment.
func SupportedChains() []common.Chain {
	return []common.Chain{
		common.Ethereum,
		common.Arbitrum,
		common.Avalanche,
		common.BscChain,
		common.Base,
		common.Optimism,
		common.Polygon,
	}
}

// ParamsForChain renders the params blob for a registry chain.
func ParamsForChain(chain common.Chain) ([]byte, error) {
	evmID, err := chain.EvmID()
	if err != nil {
		return nil, fmt.Errorf("failed to get EVM ID: %w", err)
	}
	return json.Marshal(NetworkParams{
		Name:                  chain.String(),
		ChainID:               evmID.Uint64(),
		NativeOperationPrefix: nativePrefix(chain),
		TokenOperationPrefix:  "ERC20",
	})
}

func nativePrefix(chain common.Chain) string {
	switch chain {
	case common.Ethereum:
		return "ETHER"
	case common.Polygon:
		return "POLYGON"
	case common.Avalanche:
		return "AVAXC"
	case common.BscChain:
		return "BSC"
	default:
		return chain.String()
	}
}
