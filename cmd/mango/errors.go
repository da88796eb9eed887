package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/coldbell/mango-v4-go/internal/mango"
)

type programErrorView struct {
	Code    uint32 `json:"code"`
	Hex     string `json:"hex"`
	Name    string `json:"name"`
	Message string `json:"message,omitempty"`
}

func toErrorView(e mango.ProgramError) programErrorView {
	return programErrorView{
		Code:    e.Code,
		Hex:     "0x" + strconv.FormatUint(uint64(e.Code), 16),
		Name:    e.Name,
		Message: e.Msg,
	}
}

func newErrorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "errors [code]",
		Short: "List program error codes or look one up (decimal or 0x hex)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				all := mango.ProgramErrors()
				views := make([]programErrorView, 0, len(all))
				for _, e := range all {
					views = append(views, toErrorView(e))
				}
				return printJSON(cmd.OutOrStdout(), views)
			}

			code, err := strconv.ParseUint(args[0], 0, 32)
			if err != nil {
				return fmt.Errorf("invalid code %q", args[0])
			}
			e, ok := mango.LookupError(uint32(code))
			if !ok {
				return fmt.Errorf("unknown program error %s", args[0])
			}
			return printJSON(cmd.OutOrStdout(), toErrorView(e))
		},
	}
}
