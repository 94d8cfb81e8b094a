// Command corechaind is the execution engine's CLI: it opens a chain
// instance over a genesis fixture and drives it through a single
// process(block), process(transaction), read_program, or head query per
// invocation. The in-memory backend has no persistence across process
// lifetimes, so every invocation re-opens from the same genesis fixture
// rather than attaching to a long-lived daemon.
package main

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/veltrix-chain/corechain/internal/chain"
	"github.com/veltrix-chain/corechain/internal/config"
	"github.com/veltrix-chain/corechain/internal/controller"
	"github.com/veltrix-chain/corechain/internal/kerr"
)

var (
	flagConfig           string
	flagLogLevel         string
	flagGenesisFile      string
	flagForkAlgorithm    string
	flagReset            bool
	flagReadComputeLimit uint64
)

func main() {
	root := &cobra.Command{
		Use:           "corechaind",
		Short:         "corechain execution engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "override the configured log level")

	root.AddCommand(headCmd())
	root.AddCommand(processBlockCmd())
	root.AddCommand(processTransactionCmd())
	root.AddCommand(readProgramCmd())
	root.AddCommand(configCmd())

	if err := root.Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps a command failure to the CLI's exit-code contract:
// 1 for a structural/consensus refusal the caller can correct by changing
// its input, 2 for anything else (bad flags, unreadable files, a bug).
func exitCodeFor(err error) int {
	var kerrErr *kerr.Error
	if errors.As(err, &kerrErr) {
		return 1
	}
	return 2
}

func addChainFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagGenesisFile, "genesis", "", "path to a genesis YAML fixture (required)")
	cmd.Flags().StringVar(&flagForkAlgorithm, "fork-algorithm", "", "fork-choice algorithm override (fifo)")
	cmd.Flags().BoolVar(&flagReset, "reset", false, "log a fresh-start open instead of a resumed one")
	cmd.Flags().Uint64Var(&flagReadComputeLimit, "read-compute-limit", 0, "compute-bandwidth override for read_program")
	cmd.MarkFlagRequired("genesis")
}

// openChain builds the configured controller for one CLI invocation.
func openChain() (*controller.Controller, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagLogLevel != "" {
		cfg.Logging.Level = flagLogLevel
	}
	if flagForkAlgorithm != "" {
		cfg.Consensus.ForkAlgorithm = flagForkAlgorithm
	}
	if flagReadComputeLimit != 0 {
		cfg.VM.ReadComputeLimit = flagReadComputeLimit
	}
	if level, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
		logrus.SetLevel(level)
	}

	entries, genesisAccount, err := config.LoadGenesisFixture(flagGenesisFile)
	if err != nil {
		return nil, err
	}
	execCfg := config.BuildExecutionConfig(cfg, genesisAccount)
	return controller.Open(cfg.Storage.Path, entries, cfg.Consensus.ForkAlgorithm, flagReset, execCfg)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func headCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "head",
		Short: "print the currently elected head",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openChain()
			if err != nil {
				return err
			}
			defer c.Close()
			head := c.Head()
			return printJSON(map[string]any{
				"id":          head.ID.String(),
				"height":      head.Height,
				"merkle_root": head.MerkleRoot.String(),
				"network_id":  c.NetworkID().String(),
			})
		},
	}
	addChainFlags(cmd)
	return cmd
}

func processBlockCmd() *cobra.Command {
	var blockFile string
	var indexTo, now uint64
	cmd := &cobra.Command{
		Use:   "process-block",
		Short: "apply a block read from a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(blockFile)
			if err != nil {
				return fmt.Errorf("read block file %s: %w", blockFile, err)
			}
			var bj blockJSON
			if err := json.Unmarshal(raw, &bj); err != nil {
				return fmt.Errorf("parse block file %s: %w", blockFile, err)
			}
			block, err := bj.toChain()
			if err != nil {
				return err
			}

			c, err := openChain()
			if err != nil {
				return err
			}
			defer c.Close()

			receipt, err := c.ProcessBlock(block, indexTo, now)
			if err != nil {
				return err
			}
			return printJSON(blockReceiptJSON(receipt))
		},
	}
	addChainFlags(cmd)
	cmd.Flags().StringVar(&blockFile, "block", "", "path to a block JSON file (required)")
	cmd.Flags().Uint64Var(&indexTo, "index-to", 0, "explicit commit target height (0: default trailing window)")
	cmd.Flags().Uint64Var(&now, "now", 0, "caller's current time in ms since epoch, for the timestamp bounds check")
	cmd.MarkFlagRequired("block")
	return cmd
}

func processTransactionCmd() *cobra.Command {
	var txFile string
	var broadcast bool
	cmd := &cobra.Command{
		Use:   "process-transaction",
		Short: "apply a transaction read from a JSON file against head, without persisting it",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(txFile)
			if err != nil {
				return fmt.Errorf("read transaction file %s: %w", txFile, err)
			}
			var tj transactionJSON
			if err := json.Unmarshal(raw, &tj); err != nil {
				return fmt.Errorf("parse transaction file %s: %w", txFile, err)
			}
			tx, err := tj.toChain()
			if err != nil {
				return err
			}

			c, err := openChain()
			if err != nil {
				return err
			}
			defer c.Close()

			receipt, err := c.ProcessTransaction(tx, broadcast)
			if err != nil {
				return err
			}
			return printJSON(txReceiptJSON(receipt))
		},
	}
	addChainFlags(cmd)
	cmd.Flags().StringVar(&txFile, "transaction", "", "path to a transaction JSON file (required)")
	cmd.Flags().BoolVar(&broadcast, "broadcast", false, "log the transaction as broadcast-worthy")
	cmd.MarkFlagRequired("transaction")
	return cmd
}

func readProgramCmd() *cobra.Command {
	var accountHex, stdinHex string
	var arguments []string
	cmd := &cobra.Command{
		Use:   "read-program",
		Short: "invoke a program read-only against head, with relaxed exit tolerance",
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := config.AccountFromHex(accountHex)
			if err != nil {
				return err
			}
			stdin, err := hexBytes(stdinHex)
			if err != nil {
				return fmt.Errorf("--stdin: %w", err)
			}

			c, err := openChain()
			if err != nil {
				return err
			}
			defer c.Close()

			stdout, stderr, exitCode, err := c.ReadProgram(account, chain.CallInput{Stdin: stdin, Arguments: arguments})
			if err != nil {
				return err
			}
			return printJSON(map[string]any{
				"stdout":    hex.EncodeToString(stdout),
				"stderr":    hex.EncodeToString(stderr),
				"exit_code": exitCode,
			})
		},
	}
	addChainFlags(cmd)
	cmd.Flags().StringVar(&accountHex, "account", "", "hex-encoded 33-byte program account (required)")
	cmd.Flags().StringVar(&stdinHex, "stdin", "", "hex-encoded stdin payload")
	cmd.Flags().StringArrayVar(&arguments, "arg", nil, "program argument (repeatable)")
	cmd.MarkFlagRequired("account")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "inspect resolved configuration"}
	print := &cobra.Command{
		Use:   "print",
		Short: "print the resolved configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flagConfig)
			if err != nil {
				return err
			}
			out, err := config.Dump(cfg)
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(out)
			return err
		},
	}
	cmd.AddCommand(print)
	return cmd
}
