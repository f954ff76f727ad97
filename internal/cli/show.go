package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/docgraph/pkg/model"
)

func (a *app) newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display the project tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDocument(cmd.Context(), func(doc *model.Document) error {
				if a.flags.jsonMode {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					if err := enc.Encode(doc.Project.WriteToDict()); err != nil {
						return sysError("encode project", err)
					}
					return nil
				}
				printProject(cmd.OutOrStdout(), doc.Project)
				return nil
			})
		},
	}
}

func printProject(w io.Writer, p *model.Project) {
	fmt.Fprintf(w, "%s %q\n", describe(p), p.Title())
	for _, item := range p.DataItems() {
		fmt.Fprintf(w, "  %s %q created %s\n", describe(item), item.Title(), item.Created().Format("2006-01-02T15:04:05Z"))
	}
	for _, d := range p.DisplayItems() {
		shows := "-"
		if item := d.DataItem(); item != nil {
			shows = item.UUID().String()
		}
		fmt.Fprintf(w, "  %s %s showing %s\n", describe(d), d.DisplayType(), shows)
		for _, g := range d.Graphics() {
			fmt.Fprintf(w, "    %s %q bounds %s\n", describe(g), g.Label(), formatFloats(g.Bounds()))
		}
	}
}

func formatFloats(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%g", v)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
