package config

import (
	"encoding/hex"
	"path/filepath"
	"strings"
	"testing"

	"github.com/veltrix-chain/corechain/internal/statenode"
	"github.com/veltrix-chain/corechain/internal/testutil"
)

func writeGenesisFixture(t *testing.T, body string) string {
	t.Helper()
	sandbox, err := testutil.NewSandbox()
	if err != nil {
		t.Fatalf("NewSandbox: %v", err)
	}
	t.Cleanup(func() { sandbox.Cleanup() })
	if err := sandbox.WriteFile("genesis.yaml", []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return sandbox.Path("genesis.yaml")
}

func TestLoadGenesisFixtureSeedsGenesisPublicKey(t *testing.T) {
	pubKey := strings.Repeat("ab", 32)
	path := writeGenesisFixture(t, "genesis_public_key: "+pubKey+"\n")

	entries, account, err := LoadGenesisFixture(path)
	if err != nil {
		t.Fatalf("LoadGenesisFixture: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1 (just the genesis public key)", len(entries))
	}
	if entries[0].Space != statenode.SystemSpace(statenode.SpaceMetadata) {
		t.Fatal("genesis entry must be seeded under the metadata system space")
	}
	if string(entries[0].Key) != string(statenode.MetadataGenesisKey) {
		t.Fatal("genesis entry must use the well-known genesis key")
	}
	wantKey, _ := hex.DecodeString(pubKey)
	if string(entries[0].Value) != string(wantKey) {
		t.Fatal("genesis entry value must be the decoded public key bytes")
	}
	if account.Type() != 0 {
		t.Fatalf("genesis account type = %d, want AccountUser (0)", account.Type())
	}
}

func TestLoadGenesisFixtureWithExtraEntries(t *testing.T) {
	pubKey := strings.Repeat("11", 32)
	key := hex.EncodeToString([]byte("some-key"))
	value := hex.EncodeToString([]byte("some-value"))
	body := "genesis_public_key: " + pubKey + "\n" +
		"entries:\n" +
		"  - space: account_resources\n" +
		"    key: " + key + "\n" +
		"    value: " + value + "\n"
	path := writeGenesisFixture(t, body)

	entries, _, err := LoadGenesisFixture(path)
	if err != nil {
		t.Fatalf("LoadGenesisFixture: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if entries[1].Space != statenode.SystemSpace(statenode.SpaceAccountResources) {
		t.Fatal("second entry must resolve to the account_resources system space")
	}
	if string(entries[1].Key) != "some-key" || string(entries[1].Value) != "some-value" {
		t.Fatal("second entry's key/value must be decoded from hex")
	}
}

func TestLoadGenesisFixtureRejectsBadPublicKeyLength(t *testing.T) {
	path := writeGenesisFixture(t, "genesis_public_key: ab\n")
	if _, _, err := LoadGenesisFixture(path); err == nil {
		t.Fatal("expected an error for a genesis public key that is not 32 bytes")
	}
}

func TestLoadGenesisFixtureRejectsUnknownSpace(t *testing.T) {
	pubKey := strings.Repeat("22", 32)
	body := "genesis_public_key: " + pubKey + "\n" +
		"entries:\n" +
		"  - space: not_a_real_space\n" +
		"    key: " + hex.EncodeToString([]byte("k")) + "\n" +
		"    value: " + hex.EncodeToString([]byte("v")) + "\n"
	path := writeGenesisFixture(t, body)

	if _, _, err := LoadGenesisFixture(path); err == nil {
		t.Fatal("expected an error for an unknown genesis space name")
	}
}

func TestLoadGenesisFixtureRejectsBadHexEntry(t *testing.T) {
	pubKey := strings.Repeat("33", 32)
	body := "genesis_public_key: " + pubKey + "\n" +
		"entries:\n" +
		"  - space: account_resources\n" +
		"    key: not-hex\n" +
		"    value: " + hex.EncodeToString([]byte("v")) + "\n"
	path := writeGenesisFixture(t, body)

	if _, _, err := LoadGenesisFixture(path); err == nil {
		t.Fatal("expected an error for a non-hex genesis entry key")
	}
}

func TestLoadGenesisFixtureRejectsMissingFile(t *testing.T) {
	if _, _, err := LoadGenesisFixture(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected an error for a missing genesis file")
	}
}

func TestAccountFromHexRoundTrips(t *testing.T) {
	pubKey := strings.Repeat("44", 32)
	path := writeGenesisFixture(t, "genesis_public_key: "+pubKey+"\n")
	_, account, err := LoadGenesisFixture(path)
	if err != nil {
		t.Fatalf("LoadGenesisFixture: %v", err)
	}

	parsed, err := AccountFromHex(hex.EncodeToString(account[:]))
	if err != nil {
		t.Fatalf("AccountFromHex: %v", err)
	}
	if parsed != account {
		t.Fatal("AccountFromHex must round-trip the hex-encoded account")
	}
}

func TestAccountFromHexRejectsWrongLength(t *testing.T) {
	if _, err := AccountFromHex("abcd"); err == nil {
		t.Fatal("expected an error for a hex string that doesn't decode to 33 bytes")
	}
}
