package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/coldbell/mango-v4-go/internal/config"
	"github.com/coldbell/mango-v4-go/internal/mango"
)

type sourceFactory func(cfg config.ClientConfig) mango.AccountSource

type rootOptions struct {
	rpcURL    string
	programID string
	newSource sourceFactory
}

func newRPCSource(cfg config.ClientConfig) mango.AccountSource {
	return mango.NewRPCSource(rpc.New(cfg.RPC.URL), cfg.RPC.Commitment, cfg.RPC.BatchSize)
}

// newRootCmd builds the command tree. A nil factory talks to the configured
// RPC node.
func newRootCmd(newSource sourceFactory) *cobra.Command {
	if newSource == nil {
		newSource = newRPCSource
	}
	opts := &rootOptions{newSource: newSource}

	cmd := &cobra.Command{
		Use:           "mango",
		Short:         "Inspect Mango v4 accounts, instructions and errors",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.rpcURL, "rpc", "", "RPC endpoint (overrides SOLANA_RPC_URL)")
	cmd.PersistentFlags().StringVar(&opts.programID, "program", "", "Mango program id (overrides MANGO_PROGRAM_ID)")

	cmd.AddCommand(
		newFetchCmd(opts),
		newDecodeCmd(),
		newErrorsCmd(),
		newInstructionsCmd(),
		newPDACmd(opts),
	)
	return cmd
}

func (o *rootOptions) clientConfig() (config.ClientConfig, error) {
	cfg, err := config.LoadClientConfig()
	if err != nil {
		return config.ClientConfig{}, err
	}
	if url := strings.TrimSpace(o.rpcURL); url != "" {
		cfg.RPC.URL = url
	}
	if id := strings.TrimSpace(o.programID); id != "" {
		pk, err := solana.PublicKeyFromBase58(id)
		if err != nil {
			return config.ClientConfig{}, fmt.Errorf("invalid --program: %w", err)
		}
		cfg.ProgramID = pk
	}
	return cfg, nil
}

// printJSON indents only for a terminal so piped output stays one line per
// document.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	if f, ok := w.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
