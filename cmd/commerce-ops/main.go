// commerce-ops bundles the operator tasks that run outside the API server:
// migrations, outbox recovery, report exports and intent rule checks.
//
// Usage (from backend directory):
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/commerce-ops <command>
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "commerce-ops",
		Short:         "Operator commands for the commerce backend",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(
		newMigrateCmd(),
		newOutboxCmd(),
		newReportCmd(),
		newIntentsCmd(),
	)
	return root
}
