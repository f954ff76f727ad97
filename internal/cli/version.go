package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the docgraph release.
const Version = "0.1.0"

const modulePath = "github.com/mesh-intelligence/docgraph"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the docgraph version",
		// Runs without configuration.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "docgraph v%s\nmodule: %s\n", Version, modulePath)
			return nil
		},
	}
}
