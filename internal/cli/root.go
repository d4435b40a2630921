// Package cli wires the tagc commands: configuration, logging and services
// are assembled once in the root command and shared by the subcommands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tagc/internal/config"
	"tagc/internal/domain"
	"tagc/internal/logging"
	"tagc/internal/service"
)

const rootLongDescription = `tagc compiles the canonical animation tag table (CSV: code, has_param, description)
into the artifacts downstream systems consume: a C array, a JSON document and a
relational "tags" table.

Settings come from tagc.yaml, TAGC_* environment variables and flags, in that
order of increasing priority.`

// noConfig marks commands that run without a loaded configuration.
const noConfig = "noconfig"

// ExitError carries a specific process exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }
func (e *ExitError) Unwrap() error { return e.Err }

type rootCommand struct {
	cmd        *cobra.Command
	out        io.Writer
	errOut     io.Writer
	fs         afero.Fs
	configFile string

	cfg     *config.Config
	logger  *zap.Logger
	printer *printEmitter
	builds  *service.BuildService
}

// NewRootCommand builds the command tree. fs backs the source and the text
// artifacts; pass afero.NewOsFs() outside tests.
func NewRootCommand(out, errOut io.Writer, fs afero.Fs) *cobra.Command {
	root := &rootCommand{out: out, errOut: errOut, fs: fs}
	cmd := &cobra.Command{
		Use:           "tagc",
		Short:         "Compile the animation tag table into C, JSON and SQL artifacts",
		Long:          rootLongDescription,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[noConfig] != "" {
				return nil
			}
			return root.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if root.logger != nil {
				_ = root.logger.Sync()
			}
		},
	}
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	flags := cmd.PersistentFlags()
	flags.SortFlags = true
	flags.StringVarP(&root.configFile, "config", "c", "", "config file (default ./tagc.yaml when present)")
	flags.StringP("source", "s", "", "canonical tag table (CSV)")
	flags.String("comma", ",", "source field separator (\"tab\" for TSV)")
	flags.String("carray", "", "output path of the C array artifact")
	flags.String("json", "", "output path of the JSON artifact")
	flags.Bool("json-null", false, "write null instead of \"\" for absent descriptions in JSON")
	flags.String("sql", "", "output path of the SQLite artifact")
	flags.String("sql-driver", "", "relational driver: sqlite, mysql or postgres")
	flags.String("sql-dsn", "", "data source name for mysql/postgres")
	flags.StringSlice("only", nil, "build only these targets (carray,json,sql)")
	flags.Int("parallelism", 3, "number of targets emitted concurrently")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", "console", "log format: console or json")

	root.cmd = cmd
	cmd.AddCommand(
		buildCommand(root),
		checkCommand(root),
		verifyCommand(root),
		watchCommand(root),
		targetsCommand(root),
		mcpCommand(root),
	)
	return cmd
}

// setup resolves configuration and builds the logger and services.
func (r *rootCommand) setup(cmd *cobra.Command) error {
	v, err := config.NewViper(r.configFile, cmd.Flags())
	if err != nil {
		return &ExitError{Code: 2, Err: err}
	}
	cfg, err := config.Load(v)
	if err != nil {
		return &ExitError{Code: 2, Err: err}
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, r.errOut)
	if err != nil {
		return &ExitError{Code: 2, Err: err}
	}

	r.cfg = cfg
	r.logger = logger
	r.printer = &printEmitter{out: r.out}
	r.builds = service.NewBuildService(cfg, r.fs, logger, r.printer)
	return nil
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, args []string, out, errOut io.Writer, fs afero.Fs) int {
	cmd := NewRootCommand(out, errOut, fs)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	fmt.Fprintln(errOut, "Error:", err)
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	if domain.KindOf(err) == "" && !isBuildError(err) {
		// Unknown flags, bad arguments and similar usage errors.
		return 2
	}
	return 1
}

// buildError marks failures of a run, as opposed to usage errors.
type buildError struct{ err error }

func (e *buildError) Error() string { return e.err.Error() }
func (e *buildError) Unwrap() error { return e.err }

func isBuildError(err error) bool {
	var b *buildError
	return errors.As(err, &b)
}
