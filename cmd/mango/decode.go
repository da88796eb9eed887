package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/coldbell/mango-v4-go/internal/mango"
)

type decodedAccount struct {
	Kind    string        `json:"kind"`
	Account mango.Account `json:"account"`
}

func newDecodeCmd() *cobra.Command {
	var kind, encoding string
	cmd := &cobra.Command{
		Use:   "decode <data|->",
		Short: "Decode raw account bytes; - reads them from stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := args[0]
			if text == "-" {
				raw, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				text = strings.TrimSpace(string(raw))
			}

			data, err := mango.ParseData(encoding, text)
			if err != nil {
				return err
			}
			acc, err := mango.DecodeKind(kind, data)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), decodedAccount{Kind: acc.AccountName(), Account: acc})
		},
	}
	cmd.Flags().StringVarP(&kind, "kind", "k", "", "account kind; detected from the discriminator when empty")
	cmd.Flags().StringVarP(&encoding, "encoding", "e", mango.EncodingBase64, "input encoding: base64|base58|hex")
	return cmd
}
