package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"github.com/coldbell/mango-v4-go/internal/mango"
)

type pdaKind struct {
	args   []string
	derive func(programID solana.PublicKey, args []string) (solana.PublicKey, uint8, error)
}

var pdaKinds = map[string]pdaKind{
	"group": {
		args: []string{"creator", "group_num"},
		derive: func(programID solana.PublicKey, args []string) (solana.PublicKey, uint8, error) {
			creator, err := parseKey("creator", args[0])
			if err != nil {
				return solana.PublicKey{}, 0, err
			}
			num, err := parseUint("group_num", args[1], 32)
			if err != nil {
				return solana.PublicKey{}, 0, err
			}
			return mango.FindGroupAddress(programID, creator, uint32(num))
		},
	},
	"bank": {
		args: []string{"group", "token_index", "bank_num"},
		derive: func(programID solana.PublicKey, args []string) (solana.PublicKey, uint8, error) {
			group, tokenIndex, bankNum, err := parseTokenSlot(args)
			if err != nil {
				return solana.PublicKey{}, 0, err
			}
			return mango.FindBankAddress(programID, group, tokenIndex, bankNum)
		},
	},
	"vault": {
		args: []string{"group", "token_index", "bank_num"},
		derive: func(programID solana.PublicKey, args []string) (solana.PublicKey, uint8, error) {
			group, tokenIndex, bankNum, err := parseTokenSlot(args)
			if err != nil {
				return solana.PublicKey{}, 0, err
			}
			return mango.FindVaultAddress(programID, group, tokenIndex, bankNum)
		},
	},
	"mint-info": {
		args:   []string{"group", "mint"},
		derive: twoKeys(mango.FindMintInfoAddress),
	},
	"stub-oracle": {
		args:   []string{"group", "mint"},
		derive: twoKeys(mango.FindStubOracleAddress),
	},
	"serum3-market": {
		args:   []string{"group", "serum_market_external"},
		derive: twoKeys(mango.FindSerum3MarketAddress),
	},
	"serum3-open-orders": {
		args:   []string{"account", "serum_market"},
		derive: twoKeys(mango.FindSerum3OpenOrdersAddress),
	},
	"account": {
		args: []string{"group", "owner", "account_num"},
		derive: func(programID solana.PublicKey, args []string) (solana.PublicKey, uint8, error) {
			group, err := parseKey("group", args[0])
			if err != nil {
				return solana.PublicKey{}, 0, err
			}
			owner, err := parseKey("owner", args[1])
			if err != nil {
				return solana.PublicKey{}, 0, err
			}
			num, err := parseUint("account_num", args[2], 32)
			if err != nil {
				return solana.PublicKey{}, 0, err
			}
			return mango.FindMangoAccountAddress(programID, group, owner, uint32(num))
		},
	},
	"perp-market": {
		args: []string{"group", "perp_market_index"},
		derive: func(programID solana.PublicKey, args []string) (solana.PublicKey, uint8, error) {
			group, err := parseKey("group", args[0])
			if err != nil {
				return solana.PublicKey{}, 0, err
			}
			index, err := parseUint("perp_market_index", args[1], 16)
			if err != nil {
				return solana.PublicKey{}, 0, err
			}
			return mango.FindPerpMarketAddress(programID, group, mango.PerpMarketIndex(index))
		},
	},
	"serum3-index-reservation": {
		args: []string{"group", "market_index"},
		derive: func(programID solana.PublicKey, args []string) (solana.PublicKey, uint8, error) {
			group, err := parseKey("group", args[0])
			if err != nil {
				return solana.PublicKey{}, 0, err
			}
			index, err := parseUint("market_index", args[1], 16)
			if err != nil {
				return solana.PublicKey{}, 0, err
			}
			return mango.FindSerum3IndexReservationAddress(programID, group, mango.Serum3MarketIndex(index))
		},
	},
	"insurance-vault": {
		args: []string{"group"},
		derive: func(programID solana.PublicKey, args []string) (solana.PublicKey, uint8, error) {
			group, err := parseKey("group", args[0])
			if err != nil {
				return solana.PublicKey{}, 0, err
			}
			return mango.FindInsuranceVaultAddress(programID, group)
		},
	},
}

type pdaResult struct {
	Kind    string `json:"kind"`
	Address string `json:"address"`
	Bump    uint8  `json:"bump"`
}

func newPDACmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pda <kind> <seed>...",
		Short: "Derive a program address",
		Long:  "Derive a program address. Kinds:\n" + pdaUsage(),
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, ok := pdaKinds[args[0]]
			if !ok {
				return fmt.Errorf("unknown pda kind %q; expected one of:\n%s", args[0], pdaUsage())
			}
			seeds := args[1:]
			if len(seeds) != len(kind.args) {
				return fmt.Errorf("pda %s takes %d arguments: %s", args[0], len(kind.args), strings.Join(kind.args, " "))
			}

			cfg, err := root.clientConfig()
			if err != nil {
				return err
			}
			address, bump, err := kind.derive(cfg.ProgramID, seeds)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), pdaResult{Kind: args[0], Address: address.String(), Bump: bump})
		},
	}
}

func pdaUsage() string {
	names := make([]string, 0, len(pdaKinds))
	for name := range pdaKinds {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "  %s <%s>\n", name, strings.Join(pdaKinds[name].args, "> <"))
	}
	return b.String()
}

func twoKeys(find func(programID, a, b solana.PublicKey) (solana.PublicKey, uint8, error)) func(solana.PublicKey, []string) (solana.PublicKey, uint8, error) {
	return func(programID solana.PublicKey, args []string) (solana.PublicKey, uint8, error) {
		a, err := parseKey("first key", args[0])
		if err != nil {
			return solana.PublicKey{}, 0, err
		}
		b, err := parseKey("second key", args[1])
		if err != nil {
			return solana.PublicKey{}, 0, err
		}
		return find(programID, a, b)
	}
}

func parseTokenSlot(args []string) (solana.PublicKey, mango.TokenIndex, uint32, error) {
	group, err := parseKey("group", args[0])
	if err != nil {
		return solana.PublicKey{}, 0, 0, err
	}
	tokenIndex, err := parseUint("token_index", args[1], 16)
	if err != nil {
		return solana.PublicKey{}, 0, 0, err
	}
	bankNum, err := parseUint("bank_num", args[2], 32)
	if err != nil {
		return solana.PublicKey{}, 0, 0, err
	}
	return group, mango.TokenIndex(tokenIndex), uint32(bankNum), nil
}

func parseKey(name, raw string) (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(raw)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid %s %q: %w", name, raw, err)
	}
	return pk, nil
}

func parseUint(name, raw string, bits int) (uint64, error) {
	v, err := strconv.ParseUint(raw, 10, bits)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, raw, err)
	}
	return v, nil
}
