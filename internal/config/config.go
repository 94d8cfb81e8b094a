// Package config loads the engine's unified configuration: network and
// consensus-signer identity, VM/meter defaults, storage paths, and logging
// level. It uses a viper/mapstructure approach, with a single explicit
// config file plus environment overrides, since this engine has no
// per-environment deployment topology of its own.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/veltrix-chain/corechain/internal/kerr"
)

// EnvPrefix is the prefix AutomaticEnv uses, e.g. CORECHAIN_STORAGE_PATH
// overrides storage.path when the loaded config file sets storage.path.
const EnvPrefix = "CORECHAIN"

// Config is the unified engine configuration. Field layout mirrors the
// on-disk YAML one-to-one via mapstructure tags.
type Config struct {
	Network struct {
		ID          string `mapstructure:"id" json:"id" yaml:"id"`
		GenesisFile string `mapstructure:"genesis_file" json:"genesis_file" yaml:"genesis_file"`
	} `mapstructure:"network" json:"network" yaml:"network"`

	Consensus struct {
		ForkAlgorithm         string `mapstructure:"fork_algorithm" json:"fork_algorithm" yaml:"fork_algorithm"`
		IrreversibilityWindow uint64 `mapstructure:"irreversibility_window" json:"irreversibility_window" yaml:"irreversibility_window"`
	} `mapstructure:"consensus" json:"consensus" yaml:"consensus"`

	VM struct {
		MaxCallDepth            int    `mapstructure:"max_call_depth" json:"max_call_depth" yaml:"max_call_depth"`
		MaxDisk                 uint64 `mapstructure:"max_disk" json:"max_disk" yaml:"max_disk"`
		MaxNetwork              uint64 `mapstructure:"max_network" json:"max_network" yaml:"max_network"`
		MaxCompute              uint64 `mapstructure:"max_compute" json:"max_compute" yaml:"max_compute"`
		ReadComputeLimit        uint64 `mapstructure:"read_compute_limit" json:"read_compute_limit" yaml:"read_compute_limit"`
		DiskCost                uint64 `mapstructure:"disk_cost" json:"disk_cost" yaml:"disk_cost"`
		NetworkCost             uint64 `mapstructure:"network_cost" json:"network_cost" yaml:"network_cost"`
		ComputeCost             uint64 `mapstructure:"compute_cost" json:"compute_cost" yaml:"compute_cost"`
		DefaultAccountResources uint64 `mapstructure:"default_account_resources" json:"default_account_resources" yaml:"default_account_resources"`
	} `mapstructure:"vm" json:"vm" yaml:"vm"`

	Storage struct {
		Path  string `mapstructure:"path" json:"path" yaml:"path"`
		Reset bool   `mapstructure:"reset" json:"reset" yaml:"reset"`
	} `mapstructure:"storage" json:"storage" yaml:"storage"`

	Logging struct {
		Level string `mapstructure:"level" json:"level" yaml:"level"`
		File  string `mapstructure:"file" json:"file" yaml:"file"`
	} `mapstructure:"logging" json:"logging" yaml:"logging"`
}

// Default returns the configuration used when no file is supplied: FIFO
// forks, the glossary's reference irreversibility window, and resource
// limits generous enough for interactive use.
func Default() *Config {
	var c Config
	c.Consensus.ForkAlgorithm = "fifo"
	c.Consensus.IrreversibilityWindow = 60
	c.VM.MaxCallDepth = 64
	c.VM.MaxDisk = 1 << 24
	c.VM.MaxNetwork = 1 << 24
	c.VM.MaxCompute = 1 << 30
	c.VM.DiskCost = 1
	c.VM.NetworkCost = 1
	c.VM.ComputeCost = 1
	c.VM.DefaultAccountResources = 1 << 32
	c.Storage.Path = "corechain-data"
	c.Logging.Level = "info"
	return &c
}

// Load reads path (if non-empty) over the defaults; while that file is
// unmarshalled, a CORECHAIN_-prefixed environment variable overrides a key
// the file sets. Keys the file does not set take no environment override,
// and an empty path returns the defaults with no environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := Default()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, kerr.Wrap(kerr.CategoryController, "invalid-config", fmt.Errorf("read %s: %w", path, err))
		}
		if err := v.Unmarshal(cfg); err != nil {
			return nil, kerr.Wrap(kerr.CategoryController, "invalid-config", err)
		}
	}

	if cfg.Consensus.ForkAlgorithm == "" {
		cfg.Consensus.ForkAlgorithm = "fifo"
	}
	return cfg, nil
}
