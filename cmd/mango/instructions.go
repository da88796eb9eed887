package main

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coldbell/mango-v4-go/internal/codec"
	"github.com/coldbell/mango-v4-go/internal/mango"
)

type instructionSummary struct {
	Name   string `json:"name"`
	Opcode string `json:"opcode"`
}

type instructionDetail struct {
	instructionSummary
	Accounts []mango.AccountRole `json:"accounts"`
	Args     []codec.FieldInfo   `json:"args"`
}

func newInstructionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "instructions [name]",
		Short: "List instructions or show one's accounts and argument layout",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				defs := mango.Instructions()
				out := make([]instructionSummary, 0, len(defs))
				for _, def := range defs {
					out = append(out, summarize(def))
				}
				return printJSON(cmd.OutOrStdout(), out)
			}

			def, ok := mango.LookupInstruction(args[0])
			if !ok {
				return fmt.Errorf("unknown instruction %q", args[0])
			}
			detail := instructionDetail{
				instructionSummary: summarize(def),
				Accounts:           def.Accounts,
				Args:               []codec.FieldInfo{},
			}
			if def.Args != nil {
				schema, err := codec.SchemaFor(def.Args)
				if err != nil {
					return err
				}
				detail.Args = schema.Fields()
			}
			return printJSON(cmd.OutOrStdout(), detail)
		},
	}
}

func summarize(def mango.InstructionDef) instructionSummary {
	return instructionSummary{Name: def.Name, Opcode: hex.EncodeToString(def.Opcode[:])}
}
