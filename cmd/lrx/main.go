package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"

	_ "github.com/tliron/commonlog/simple"
)

var verbose int

func main() {
	rootCmd := &cobra.Command{
		Use:   "lrx",
		Short: "Drive LR parse tables against input and inspect the result",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			commonlog.Configure(verbose, nil)
		},
	}
	rootCmd.PersistentFlags().CountVarP(&verbose, "verbose", "v", "increase log verbosity")

	rootCmd.AddCommand(newParseCmd())
	rootCmd.AddCommand(newTablesCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
