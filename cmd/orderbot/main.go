package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	v := newViper()

	rootCmd := &cobra.Command{
		Use:           "orderbot",
		Short:         "Transactional core of the WhatsApp ordering bot",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	bindFlags(v, rootCmd.PersistentFlags())

	rootCmd.AddCommand(
		serveCmd(v),
		migrateCmd(v),
		sweepCmd(v),
		tokenCmd(v),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
