package cosmos

import (
	"slices"
	"strings"

	"github.com/cosmos/cosmos-sdk/codec"
	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	cryptocodec "github.com/cosmos/cosmos-sdk/crypto/codec"
	sdk "github.com/cosmos/cosmos-sdk/types"
	banktypes "github.com/cosmos/cosmos-sdk/x/bank/types"
	stakingtypes "github.com/cosmos/cosmos-sdk/x/staking/types"

	"github.com/vultisig/app-recovery/internal/txbuilder"
)

// CodecCache shares proto codecs between builders. A codec is keyed by the
// content hash of the message type URLs it registers.
type CodecCache = txbuilder.Cache[*codec.ProtoCodec]

func NewCodecCache() *CodecCache {
	return txbuilder.NewCache[*codec.ProtoCodec]()
}

var messageModules = map[string]string{
	sdk.MsgTypeURL(&banktypes.MsgSend{}):          "bank",
	sdk.MsgTypeURL(&stakingtypes.MsgDelegate{}):   "staking",
	sdk.MsgTypeURL(&stakingtypes.MsgUndelegate{}): "staking",
}

var registrars = map[string]func(codectypes.InterfaceRegistry){
	"bank":    banktypes.RegisterInterfaces,
	"staking": stakingtypes.RegisterInterfaces,
}

// messageURLs returns the type URLs a chain's builders produce.
func messageURLs(cfg ChainConfig) []string {
	urls := []string{sdk.MsgTypeURL(&banktypes.MsgSend{})}
	if cfg.Staking {
		urls = append(urls,
			sdk.MsgTypeURL(&stakingtypes.MsgDelegate{}),
			sdk.MsgTypeURL(&stakingtypes.MsgUndelegate{}),
		)
	}
	slices.Sort(urls)
	return urls
}

func newCodec(blob []byte) (*codec.ProtoCodec, error) {
	ir := codectypes.NewInterfaceRegistry()
	cryptocodec.RegisterInterfaces(ir)
	registered := make(map[string]bool)
	for _, url := range strings.Split(string(blob), "\n") {
		module, ok := messageModules[url]
		if !ok {
			return nil, &txbuilder.NotSupportedError{Operation: "cosmos message " + url}
		}
		if !registered[module] {
			registrars[module](ir)
			registered[module] = true
		}
	}
	return codec.NewProtoCodec(ir), nil
}

// LoadCodec resolves the codec for cfg through the cache.
func LoadCodec(cache *CodecCache, cfg ChainConfig) (*codec.ProtoCodec, error) {
	return cache.Get([]byte(strings.Join(messageURLs(cfg), "\n")), newCodec)
}
