package cli

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/docgraph/pkg/model"
)

func (a *app) newScriptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit-script [file]",
		Short: "Run edit commands in one session, with undo and redo",
		Long: "Run one command per line against a single open document. Lines take the\n" +
			"set-title, add-display, remove-display, add-graphic, remove-graphic, show,\n" +
			"undo and redo commands with their usual arguments; double quotes group\n" +
			"words. Lines starting with # are skipped. Reads standard input when file\n" +
			"is - or omitted. Undo history lasts until the script ends.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, name := cmd.InOrStdin(), "stdin"
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return userError("open script: %v", err)
				}
				defer f.Close()
				in, name = f, args[0]
			}
			return a.withDocument(cmd.Context(), func(doc *model.Document) error {
				a.active = doc
				defer func() { a.active = nil }()
				return a.runScript(cmd, in, name)
			})
		},
	}
}

func (a *app) runScript(cmd *cobra.Command, in io.Reader, name string) error {
	scanner := bufio.NewScanner(in)
	for line := 1; scanner.Scan(); line++ {
		fields, err := splitScriptLine(scanner.Text())
		if err != nil {
			return userError("%s:%d: %v", name, line, err)
		}
		if len(fields) == 0 {
			continue
		}
		step := a.newScriptRoot()
		step.SetArgs(fields)
		step.SetOut(cmd.OutOrStdout())
		step.SetErr(cmd.ErrOrStderr())
		if err := step.ExecuteContext(cmd.Context()); err != nil {
			return fmt.Errorf("%s:%d: %w", name, line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return sysError("read script", err)
	}
	return nil
}

// newScriptRoot builds the command tree one script line runs against.
func (a *app) newScriptRoot() *cobra.Command {
	root := &cobra.Command{
		Use:           "edit-script",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(a.newShowCmd())
	root.AddCommand(a.newSetTitleCmd())
	root.AddCommand(a.newAddDisplayCmd())
	root.AddCommand(a.newRemoveDisplayCmd())
	root.AddCommand(a.newAddGraphicCmd())
	root.AddCommand(a.newRemoveGraphicCmd())
	root.AddCommand(a.newUndoCmd())
	root.AddCommand(a.newRedoCmd())
	return root
}

// splitScriptLine splits a line on spaces, honoring double quotes.
func splitScriptLine(line string) ([]string, error) {
	r := csv.NewReader(strings.NewReader(line))
	r.Comma = ' '
	r.Comment = '#'
	r.TrimLeadingSpace = true
	record, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	fields := record[:0]
	for _, f := range record {
		if f != "" {
			fields = append(fields, f)
		}
	}
	return fields, nil
}

func (a *app) newUndoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "undo",
		Short: "Undo the last edit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDocument(cmd.Context(), func(doc *model.Document) error {
				if !doc.Undo.CanUndo() {
					return userError("nothing to undo")
				}
				title := doc.Undo.UndoTitle()
				if err := doc.Undo.Undo(); err != nil {
					return sysError("undo", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), title)
				return nil
			})
		},
	}
}

func (a *app) newRedoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "redo",
		Short: "Redo the last undone edit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDocument(cmd.Context(), func(doc *model.Document) error {
				if !doc.Undo.CanRedo() {
					return userError("nothing to redo")
				}
				title := doc.Undo.RedoTitle()
				if err := doc.Undo.Redo(); err != nil {
					return sysError("redo", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), title)
				return nil
			})
		},
	}
}
