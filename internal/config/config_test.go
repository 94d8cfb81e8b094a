package config

import (
	"path/filepath"
	"testing"

	"github.com/veltrix-chain/corechain/internal/testutil"
)

func writeConfigFixture(t *testing.T, name string, body []byte) string {
	t.Helper()
	sandbox, err := testutil.NewSandbox()
	if err != nil {
		t.Fatalf("NewSandbox: %v", err)
	}
	t.Cleanup(func() { sandbox.Cleanup() })
	if err := sandbox.WriteFile(name, body, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return sandbox.Path(name)
}

func TestDefaultHasSaneFallbacks(t *testing.T) {
	c := Default()
	if c.Consensus.ForkAlgorithm != "fifo" {
		t.Fatalf("default fork algorithm = %q, want fifo", c.Consensus.ForkAlgorithm)
	}
	if c.Consensus.IrreversibilityWindow != 60 {
		t.Fatalf("default irreversibility window = %d, want 60", c.Consensus.IrreversibilityWindow)
	}
	if c.VM.MaxCallDepth == 0 || c.VM.MaxCompute == 0 {
		t.Fatal("default VM limits must be nonzero")
	}
}

func TestLoadWithEmptyPathReturnsDefaults(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\"): %v", err)
	}
	if c.Storage.Path != Default().Storage.Path {
		t.Fatalf("Load(\"\") storage path = %q, want default %q", c.Storage.Path, Default().Storage.Path)
	}
}

func TestLoadReadsYAMLFileOverDefaults(t *testing.T) {
	yaml := []byte(`
network:
  id: devnet
consensus:
  fork_algorithm: fifo
vm:
  max_call_depth: 8
  max_compute: 1000
storage:
  path: /var/lib/corechain
`)
	path := writeConfigFixture(t, "corechain.yaml", yaml)

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Network.ID != "devnet" {
		t.Fatalf("Network.ID = %q, want devnet", c.Network.ID)
	}
	if c.VM.MaxCallDepth != 8 {
		t.Fatalf("VM.MaxCallDepth = %d, want 8", c.VM.MaxCallDepth)
	}
	if c.Storage.Path != "/var/lib/corechain" {
		t.Fatalf("Storage.Path = %q, want /var/lib/corechain", c.Storage.Path)
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml")); err == nil {
		t.Fatal("expected Load to fail for a missing config file")
	}
}

func TestLoadDefaultsForkAlgorithmWhenFileOmitsIt(t *testing.T) {
	path := writeConfigFixture(t, "corechain.yaml", []byte("network:\n  id: devnet\n"))

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Consensus.ForkAlgorithm != "fifo" {
		t.Fatalf("fork algorithm = %q, want fifo fallback", c.Consensus.ForkAlgorithm)
	}
}

func TestDumpRoundTripsThroughYAML(t *testing.T) {
	c := Default()
	c.Network.ID = "devnet"

	out, err := Dump(c)
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}

	path := writeConfigFixture(t, "dumped.yaml", out)

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load(dumped): %v", err)
	}
	if reloaded.Network.ID != "devnet" {
		t.Fatalf("reloaded Network.ID = %q, want devnet", reloaded.Network.ID)
	}
}
