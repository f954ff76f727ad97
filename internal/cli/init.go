package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/docgraph/pkg/model"
	"github.com/mesh-intelligence/docgraph/pkg/types"
)

func (a *app) newInitCmd() *cobra.Command {
	var backend string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize docgraph storage",
		Long: "Create the configuration and data directories, write config.yaml if\n" +
			"missing, and store an empty project in the backend.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("backend") {
				a.cfg.Backend = backend
				if err := a.cfg.Validate(); err != nil {
					return userError("invalid configuration: %v", err)
				}
			}

			written, err := writeConfigIfMissing(a.configDir, types.Config{
				Backend:      a.cfg.Backend,
				DataDir:      a.flags.dataDir,
				SyncStrategy: a.cfg.SyncStrategy,
				LogLevel:     "warn",
				Blob:         types.BlobConfig{Driver: a.cfg.Blob.Driver},
			})
			if err != nil {
				return sysError("write config", err)
			}
			if written {
				a.logger.Info("config written", "dir", a.configDir)
			}

			var id string
			err = a.withDocument(cmd.Context(), func(doc *model.Document) error {
				id = doc.Project.UUID().String()
				return nil
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "docgraph initialized (%s backend, project %s)\n", a.cfg.Backend, id)
			return nil
		},
	}
	cmd.Flags().StringVar(&backend, "backend", types.BackendSQLite, "storage backend: sqlite, json or memory")
	return cmd
}
