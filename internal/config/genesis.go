package config

import (
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/veltrix-chain/corechain/internal/chain"
	"github.com/veltrix-chain/corechain/internal/controller"
	"github.com/veltrix-chain/corechain/internal/kerr"
	"github.com/veltrix-chain/corechain/internal/statenode"
)

// genesisEntryFixture is one (space, key, value) triple as it appears in a
// genesis YAML fixture, hex-encoded the way the rest of the CLI's wire
// format represents account/digest bytes.
type genesisEntryFixture struct {
	Space string `yaml:"space"`
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

// genesisFixture is the top-level shape of a genesis YAML file: the
// Ed25519 public key every block signature checks against, plus any
// preloaded objects (most commonly program bytecode and starting resource
// allowances).
type genesisFixture struct {
	GenesisPublicKey string                `yaml:"genesis_public_key"`
	Entries          []genesisEntryFixture `yaml:"entries"`
}

// spaceByName resolves a fixture's space name to its well-known system
// space id. Only system spaces are genesis-loadable; program-scoped spaces
// only come to exist once a program has run.
func spaceByName(name string) (uint32, error) {
	switch name {
	case "program_data":
		return statenode.SpaceProgramData, nil
	case "account_resources":
		return statenode.SpaceAccountResources, nil
	case "transaction_nonce":
		return statenode.SpaceTransactionNonce, nil
	default:
		return 0, kerr.New(kerr.CategoryController, "invalid-config", fmt.Sprintf("unknown genesis space %q", name))
	}
}

// LoadGenesisFixture reads a YAML genesis file (yaml.v2, distinct from the
// main config's yaml.v3 so the two loaders stay independently testable)
// and returns the entry list controller.Open expects plus the genesis
// signer recast as a user account (the natural owner of anything the
// fixture doesn't explicitly assign, such as the native token program's
// mint authority).
func LoadGenesisFixture(path string) ([]controller.GenesisEntry, chain.Account, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, chain.Account{}, kerr.Wrap(kerr.CategoryController, "invalid-config", fmt.Errorf("read genesis file %s: %w", path, err))
	}

	var fixture genesisFixture
	if err := yaml.Unmarshal(raw, &fixture); err != nil {
		return nil, chain.Account{}, kerr.Wrap(kerr.CategoryController, "invalid-config", fmt.Errorf("parse genesis file %s: %w", path, err))
	}

	pubKey, err := hex.DecodeString(fixture.GenesisPublicKey)
	if err != nil || len(pubKey) != 32 {
		return nil, chain.Account{}, kerr.New(kerr.CategoryController, "invalid-config", "genesis_public_key must be 32 bytes hex")
	}
	genesisAccount := chain.NewAccount(chain.AccountUser, pubKey)

	entries := make([]controller.GenesisEntry, 0, len(fixture.Entries)+1)
	entries = append(entries, controller.GenesisEntry{
		Space: statenode.SystemSpace(statenode.SpaceMetadata),
		Key:   statenode.MetadataGenesisKey,
		Value: pubKey,
	})

	for i, e := range fixture.Entries {
		spaceID, err := spaceByName(e.Space)
		if err != nil {
			return nil, chain.Account{}, err
		}
		key, err := hex.DecodeString(e.Key)
		if err != nil {
			return nil, chain.Account{}, kerr.New(kerr.CategoryController, "invalid-config", fmt.Sprintf("genesis entry %d: key is not valid hex", i))
		}
		value, err := hex.DecodeString(e.Value)
		if err != nil {
			return nil, chain.Account{}, kerr.New(kerr.CategoryController, "invalid-config", fmt.Sprintf("genesis entry %d: value is not valid hex", i))
		}
		entries = append(entries, controller.GenesisEntry{
			Space: statenode.SystemSpace(spaceID),
			Key:   key,
			Value: value,
		})
	}

	return entries, genesisAccount, nil
}

// AccountFromHex is a small shared helper for CLI-facing packages that
// need to turn a hex-encoded 33-byte account back into chain.Account.
func AccountFromHex(s string) (chain.Account, error) {
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != len(chain.Account{}) {
		return chain.Account{}, kerr.New(kerr.CategoryController, "invalid-argument", "account must be 33 bytes hex")
	}
	var a chain.Account
	copy(a[:], raw)
	return a, nil
}
