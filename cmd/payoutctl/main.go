package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

var (
	actor       string
	timeout     string
	commandName string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "payoutctl",
		Short:         "Merchant settlement and bulk payout operations",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			commandName = cmd.Name()
		},
	}

	rootCmd.PersistentFlags().StringVar(&actor, "actor", defaultActor(), "operator recorded as created_by")
	rootCmd.PersistentFlags().StringVar(&timeout, "timeout", "5m", "overall command timeout")

	rootCmd.AddCommand(eligibilityCmd())
	rootCmd.AddCommand(previewCmd())
	rootCmd.AddCommand(createCmd())
	rootCmd.AddCommand(createBatchCmd())
	rootCmd.AddCommand(reverseCmd())
	rootCmd.AddCommand(transitionCmd())
	rootCmd.AddCommand(syncCreditsCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func defaultActor() string {
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "cli"
}
