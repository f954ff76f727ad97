package cli

import (
	"fmt"
	"path/filepath"

	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/docgraph/internal/jsonfile"
	"github.com/mesh-intelligence/docgraph/internal/paths"
	"github.com/mesh-intelligence/docgraph/pkg/model"
)

func (a *app) newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export-jsonl [path]",
		Short: "Write every object as one JSON line",
		Long: "Flatten the project into one record per object, with its parent and\n" +
			"slot, and write them to path (default: objects.jsonl in the data directory).",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := filepath.Join(a.cfg.DataDir, paths.ExportFileName)
			if len(args) == 1 {
				path = args[0]
			}
			return a.withDocument(cmd.Context(), func(doc *model.Document) error {
				n, err := jsonfile.ExportJSONL(path, doc.Project.WriteToDict())
				if err != nil {
					return sysError("export", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "exported %d objects to %s\n", n, path)
				return nil
			})
		},
	}
}

func (a *app) newMetricsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Open the document and print the collected metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := a.withDocument(cmd.Context(), func(*model.Document) error { return nil })
			if err != nil {
				return err
			}
			families, err := a.registry.Gather()
			if err != nil {
				return sysError("gather metrics", err)
			}
			for _, mf := range families {
				if _, err := expfmt.MetricFamilyToText(cmd.OutOrStdout(), mf); err != nil {
					return sysError("write metrics", err)
				}
			}
			return nil
		},
	}
}
