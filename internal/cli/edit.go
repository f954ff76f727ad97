package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/docgraph/pkg/model"
)

// graphicTypes maps the --type flag to graphic type names.
var graphicTypes = map[string]string{
	"line":  model.TypeLineGraphic,
	"rect":  model.TypeRectGraphic,
	"point": model.TypePointGraphic,
}

func (a *app) newSetTitleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-title <title>",
		Short: "Rename the project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDocument(cmd.Context(), func(doc *model.Document) error {
				doc.Push(model.ChangePropertyCommand(doc.Project, doc.Project, "title", args[0]))
				fmt.Fprintf(cmd.OutOrStdout(), "title set to %q\n", doc.Project.Title())
				return nil
			})
		},
	}
}

func (a *app) newAddDisplayCmd() *cobra.Command {
	var title, displayType string
	cmd := &cobra.Command{
		Use:   "add-display",
		Short: "Add a data item and a display showing it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDocument(cmd.Context(), func(doc *model.Document) error {
				d := doc.Project.CreateDisplay(title, displayType)
				fmt.Fprintln(cmd.OutOrStdout(), d.UUID())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "data item title")
	cmd.Flags().StringVar(&displayType, "type", "image", "display type")
	return cmd
}

func (a *app) newRemoveDisplayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove-display <display-id>",
		Short: "Remove a display and its graphics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDocument(cmd.Context(), func(doc *model.Document) error {
				d, err := displayByID(doc, args[0])
				if err != nil {
					return err
				}
				removed := len(d.Graphics())
				c, err := model.RemoveDisplayItemCommand(doc.Project, d)
				if err != nil {
					return sysError("remove display", err)
				}
				doc.Push(c)
				fmt.Fprintf(cmd.OutOrStdout(), "removed display %s with %d graphics\n", args[0], removed)
				return nil
			})
		},
	}
}

func (a *app) newAddGraphicCmd() *cobra.Command {
	var (
		kind   string
		label  string
		bounds []float64
		index  int
	)
	cmd := &cobra.Command{
		Use:   "add-graphic <display-id>",
		Short: "Add a graphic to a display",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			typeName, ok := graphicTypes[kind]
			if !ok {
				return userError("%v: %q (want line, rect or point)", model.ErrUnknownGraphicType, kind)
			}
			return a.withDocument(cmd.Context(), func(doc *model.Document) error {
				d, err := displayByID(doc, args[0])
				if err != nil {
					return err
				}
				g, err := model.NewGraphic(typeName)
				if err != nil {
					return userError("%v", err)
				}
				g.SetLabel(label)
				if len(bounds) > 0 {
					g.SetBounds(bounds)
				}
				at := len(d.Graphics())
				if index >= 0 && index < at {
					at = index
				}
				doc.Push(model.InsertGraphicCommand(doc.Project, d, at, g))
				fmt.Fprintln(cmd.OutOrStdout(), g.UUID())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&kind, "type", "rect", "graphic type: line, rect or point")
	cmd.Flags().StringVar(&label, "label", "", "graphic label")
	cmd.Flags().Float64SliceVar(&bounds, "bounds", nil, "normalized top,left,height,width")
	cmd.Flags().IntVar(&index, "index", -1, "position among the display's graphics (default: last)")
	return cmd
}

func (a *app) newRemoveGraphicCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove-graphic <display-id> <graphic-id>",
		Short: "Remove a graphic from a display",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDocument(cmd.Context(), func(doc *model.Document) error {
				d, err := displayByID(doc, args[0])
				if err != nil {
					return err
				}
				spec, err := parseSpecifier("graphic", args[1])
				if err != nil {
					return err
				}
				g := d.GraphicBySpecifier(spec)
				if g == nil {
					return userError("%v: %s", model.ErrGraphicNotFound, args[1])
				}
				c, err := model.RemoveGraphicCommand(doc.Project, d, g)
				if errors.Is(err, model.ErrGraphicNotFound) {
					return userError("%v", err)
				} else if err != nil {
					return sysError("remove graphic", err)
				}
				doc.Push(c)
				fmt.Fprintf(cmd.OutOrStdout(), "removed graphic %s\n", args[1])
				return nil
			})
		},
	}
}
