package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/vultisig/vultisig-go/common"

	"github.com/vultisig/app-recovery/internal/evm"
	"github.com/vultisig/app-recovery/internal/keypair"
	"github.com/vultisig/app-recovery/internal/recovery"
)

var (
	flatPreset = flag.String("preset", "", "preset to execute: complete, encrypt")
	bundlePath = flag.String("bundle", "", "offline vault bundle produced by the recovery binary")
	userKey    = flag.String("user-key", "", "user key material, needed for unsigned-sweep bundles")
	backupKey  = flag.String("backup-key", "", "backup key material")
	passphrase = flag.String("passphrase", "", "wallet passphrase of encrypted keys")
	keyFile    = flag.String("key-file", "", "file holding the key to encrypt")
)

var presets = map[string]func(context.Context) error{
	"complete": completeBundle,
	"encrypt":  encryptKey,
}

func main() {
	flag.Parse()

	if *flatPreset == "" {
		panic("preset is required")
	}
	preset, ok := presets[*flatPreset]
	if !ok {
		panic(fmt.Sprintf("unknown preset: %s", *flatPreset))
	}

	ctx := context.Background()
	err := preset(ctx)
	if err != nil {
		panic(err)
	}
}

// completeBundle signs an offline vault bundle on an air-gapped machine and
// prints the broadcast-ready transaction.
func completeBundle(_ context.Context) error {
	raw, err := os.ReadFile(*bundlePath)
	if err != nil {
		return fmt.Errorf("failed to read bundle: %w", err)
	}
	bundle, err := recovery.ParseBundle(raw)
	if err != nil {
		return err
	}

	chain, err := common.FromString(bundle.Chain)
	if err != nil {
		return fmt.Errorf("unknown bundle chain %q: %w", bundle.Chain, err)
	}
	blob, err := evm.ParamsForChain(chain)
	if err != nil {
		return fmt.Errorf("failed to render network params: %w", err)
	}
	params, err := evm.LoadParams(evm.NewParamsCache(), blob)
	if err != nil {
		return fmt.Errorf("failed to load network params: %w", err)
	}

	var user *keypair.Secp256k1
	if *userKey != "" {
		user, err = recovery.AcquireKey("user", *userKey, *passphrase)
		if err != nil {
			return err
		}
	}
	backup, err := recovery.AcquireKey("backup", *backupKey, *passphrase)
	if err != nil {
		return err
	}

	signed, err := bundle.Complete(evm.NewFactory(params), user, backup)
	if err != nil {
		return fmt.Errorf("failed to complete bundle: %w", err)
	}
	out, err := json.MarshalIndent(signed, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

func encryptKey(_ context.Context) error {
	if *passphrase == "" {
		return fmt.Errorf("passphrase is required")
	}
	plain, err := os.ReadFile(*keyFile)
	if err != nil {
		return fmt.Errorf("failed to read key file: %w", err)
	}
	if _, err = keypair.Parse(string(plain)); err != nil {
		return fmt.Errorf("key file does not hold a usable key: %w", err)
	}
	enc, err := recovery.Encrypt(*passphrase, plain)
	if err != nil {
		return err
	}
	fmt.Println(enc)
	return nil
}
