// Package cli implements the docgraph command-line interface.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/docgraph/internal/metrics"
	"github.com/mesh-intelligence/docgraph/internal/paths"
	"github.com/mesh-intelligence/docgraph/pkg/model"
	"github.com/mesh-intelligence/docgraph/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	jsonMode  bool
}

// app is the state shared by one invocation's commands.
type app struct {
	flags rootFlags

	configDir string
	cfg       types.Config
	logger    *slog.Logger
	registry  *prometheus.Registry
	metrics   *metrics.Metrics

	// active is the document an edit script is running against.
	active *model.Document
}

// NewRootCmd creates the top-level "docgraph" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{registry: prometheus.NewRegistry()}
	a.metrics = metrics.New(a.registry)

	root := &cobra.Command{
		Use:   "docgraph",
		Short: "Inspect and edit persistent document graphs",
		Long: "docgraph opens a project document, a tree of data items, displays\n" +
			"and graphics, from SQLite, JSON or memory storage and edits it\n" +
			"through undoable commands.",
		Version: Version,
		// Do not print usage on errors returned by subcommands.
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.configure(cmd.ErrOrStderr())
		},
	}

	root.PersistentFlags().StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	root.PersistentFlags().StringVar(&a.flags.dataDir, "data-dir", "", "data directory (default: $(CWD)/"+paths.DefaultDataDirName+")")
	root.PersistentFlags().BoolVar(&a.flags.jsonMode, "json", false, "output in JSON format")

	root.AddCommand(newVersionCmd())
	root.AddCommand(a.newInitCmd())
	root.AddCommand(a.newShowCmd())
	root.AddCommand(a.newSetTitleCmd())
	root.AddCommand(a.newAddDisplayCmd())
	root.AddCommand(a.newRemoveDisplayCmd())
	root.AddCommand(a.newAddGraphicCmd())
	root.AddCommand(a.newRemoveGraphicCmd())
	root.AddCommand(a.newScriptCmd())
	root.AddCommand(a.newExportCmd())
	root.AddCommand(a.newMetricsCmd())

	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "docgraph:", err)
		os.Exit(exitCode(err))
	}
	os.Exit(exitSuccess)
}

// configure resolves directories, loads config.yaml and builds the logger.
func (a *app) configure(stderr io.Writer) error {
	configDir, err := paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return sysError("resolve config dir", err)
	}
	cfg, err := loadConfig(configDir)
	if err != nil {
		return sysError("load config", err)
	}
	dataDir, err := paths.ResolveDataDir(a.flags.dataDir, cfg.DataDir)
	if err != nil {
		return sysError("resolve data dir", err)
	}
	cfg.DataDir = dataDir
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return userError("invalid configuration: %v", err)
	}

	a.configDir = configDir
	a.cfg = cfg
	a.logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)}))
	return nil
}

func logLevel(name string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(name))); err != nil {
		return slog.LevelWarn
	}
	return level
}

// exitCodeError carries the process exit code for a failed command.
type exitCodeError struct {
	code int
	err  error
}

func (e *exitCodeError) Error() string { return e.err.Error() }
func (e *exitCodeError) Unwrap() error { return e.err }

func userError(format string, args ...any) error {
	return &exitCodeError{code: exitUserError, err: fmt.Errorf(format, args...)}
}

func sysError(what string, err error) error {
	return &exitCodeError{code: exitSysError, err: fmt.Errorf("%s: %w", what, err)}
}

// exitCode maps err to a process exit code. Errors not raised by a command,
// such as flag parsing failures, are user errors.
func exitCode(err error) int {
	var e *exitCodeError
	if errors.As(err, &e) {
		return e.code
	}
	return exitUserError
}
