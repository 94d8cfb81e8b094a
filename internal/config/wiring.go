package config

import (
	"gopkg.in/yaml.v3"

	"github.com/veltrix-chain/corechain/internal/chain"
	"github.com/veltrix-chain/corechain/internal/execution"
	"github.com/veltrix-chain/corechain/internal/meter"
	"github.com/veltrix-chain/corechain/internal/programs"
	"github.com/veltrix-chain/corechain/internal/vm"
)

// BuildExecutionConfig assembles the execution-wide settings this config
// describes: resource limits/costs, the native program registry (the
// token system-program, owned by tokenOwner), and a shared WASM runner.
func BuildExecutionConfig(cfg *Config, tokenOwner chain.Account) execution.Config {
	registry := programs.NewRegistry()
	tokenID := chain.SystemProgram("token")
	registry.Register(tokenID, programs.NewTokenProgram(tokenID, tokenOwner))

	return execution.Config{
		MaxCallDepth: cfg.VM.MaxCallDepth,
		Limits: meter.Limits{
			Disk:    cfg.VM.MaxDisk,
			Network: cfg.VM.MaxNetwork,
			Compute: cfg.VM.MaxCompute,
		},
		Costs: meter.Costs{
			Disk:    cfg.VM.DiskCost,
			Network: cfg.VM.NetworkCost,
			Compute: cfg.VM.ComputeCost,
		},
		Registry:                registry,
		Runner:                  vm.New(),
		DefaultAccountResources: cfg.VM.DefaultAccountResources,
		ReadComputeLimit:        cfg.VM.ReadComputeLimit,
	}
}

// Dump renders cfg back to YAML for `corechaind config print`-style
// diagnostics, independent of the yaml.v2 genesis-fixture loader.
func Dump(cfg *Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}
