package main

import (
	"fmt"

	"github.com/spf13/cobra"

	lrx "github.com/lrx-lang/lrx"
)

func newTablesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tables <grammar>",
		Short: "Load a grammar table file and print a summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lang, err := lrx.LoadLanguageFile(args[0])
			if err != nil {
				return err
			}
			fmt.Println(lang.Describe())
			return nil
		},
	}
	return cmd
}
