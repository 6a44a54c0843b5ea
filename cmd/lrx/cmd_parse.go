package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	lrx "github.com/lrx-lang/lrx"
)

func newParseCmd() *cobra.Command {
	var grammarPath string
	var strict bool
	var trace bool

	cmd := &cobra.Command{
		Use:   "parse [file]",
		Short: "Parse a file (or stdin) with a grammar table and print the tree",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lang, err := lrx.LoadLanguageFile(grammarPath)
			if err != nil {
				return err
			}

			var text []byte
			if len(args) == 1 {
				text, err = os.ReadFile(args[0])
			} else {
				text, err = io.ReadAll(os.Stdin)
			}
			if err != nil {
				return err
			}

			cfg := lrx.NewConfig()
			cfg.Strict = strict
			cfg.Trace = trace
			tree, err := lang.ParseWithConfig(lrx.NewStringInput(string(text)), nil, cfg)
			if err != nil {
				return err
			}
			fmt.Print(tree.Pretty(lang))
			if tree.HasError() {
				fmt.Fprintln(os.Stderr, "input contains parse errors")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&grammarPath, "grammar", "g", "", "grammar table file (YAML)")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail on the first parse error")
	cmd.Flags().BoolVar(&trace, "trace", false, "trace driver decisions")
	cmd.MarkFlagRequired("grammar")
	return cmd
}
