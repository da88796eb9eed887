package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"github.com/coldbell/mango-v4-go/internal/logging"
	"github.com/coldbell/mango-v4-go/internal/mango"
)

type fetchedAccount struct {
	Address string        `json:"address"`
	Kind    string        `json:"kind,omitempty"`
	Account mango.Account `json:"account,omitempty"`
	Error   string        `json:"error,omitempty"`
}

func newFetchCmd(root *rootOptions) *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "fetch <address>...",
		Short: "Fetch and decode program accounts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd, root, kind, args)
		},
	}
	cmd.Flags().StringVarP(&kind, "kind", "k", "", "account kind; detected from the discriminator when empty")
	return cmd
}

func runFetch(cmd *cobra.Command, root *rootOptions, kind string, args []string) error {
	addresses := make([]solana.PublicKey, 0, len(args))
	for _, arg := range args {
		pk, err := solana.PublicKeyFromBase58(arg)
		if err != nil {
			return fmt.Errorf("invalid address %q: %w", arg, err)
		}
		addresses = append(addresses, pk)
	}

	cfg, err := root.clientConfig()
	if err != nil {
		return err
	}
	logger, closeLogger, err := logging.NewStderr("mango", cfg.Log)
	if err != nil {
		return err
	}
	defer closeLogger()

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.RPC.Timeout)
	defer cancel()

	started := time.Now()
	infos, err := root.newSource(cfg).GetAccounts(ctx, addresses)
	if err != nil {
		return fmt.Errorf("fetch accounts: %w", err)
	}
	logger.Debug("fetched accounts", "rpc", cfg.RPC.URL, "count", len(addresses), "elapsed", time.Since(started))

	results := make([]fetchedAccount, len(addresses))
	failed := 0
	for i, address := range addresses {
		results[i] = decodeFetched(address, infos[i], cfg.ProgramID, kind)
		if results[i].Error != "" {
			failed++
			logger.Warn("account not decoded", "address", address, "err", results[i].Error)
		}
	}

	if len(results) == 1 {
		err = printJSON(cmd.OutOrStdout(), results[0])
	} else {
		err = printJSON(cmd.OutOrStdout(), results)
	}
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d accounts could not be decoded", failed, len(addresses))
	}
	return nil
}

func decodeFetched(address solana.PublicKey, info *mango.AccountInfo, programID solana.PublicKey, kind string) fetchedAccount {
	out := fetchedAccount{Address: address.String()}
	acc, err := mango.DecodeOwned(programID, address, info, kind)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.Kind = acc.AccountName()
	out.Account = acc
	return out
}
