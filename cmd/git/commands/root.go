// Package commands provides the command line front end: global options and
// the hand-off to the dispatcher.
package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/gaold/git/internal/builtin"
	"github.com/gaold/git/internal/config"
	"github.com/gaold/git/internal/dispatch"
	"github.com/gaold/git/internal/event"
	"github.com/gaold/git/internal/logging"
	"github.com/gaold/git/internal/pager"
	"github.com/gaold/git/internal/setup"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var (
	// Version information set at build time
	Version   = "0.1.0"
	BuildTime = "dev"
)

// options holds the global flags.
type options struct {
	chdirs      []string
	gitDir      string
	workTree    string
	superPrefix string
	paginate    bool
	noPager     bool
	printLogs   bool
	logLevel    string
}

// app is one run of the front end.
type app struct {
	opts   options
	stdout io.Writer
	stderr io.Writer
	code   int
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "git [global options] <command> [<args>]",
		Short: "Dispatch builtin commands",
		Long: `git runs a builtin command after preparing the environment it needs:
the control directory and work tree, the working directory and the pager.

Run 'git help' to list the available commands.`,
		Version:       Version,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, args)
		},
	}

	flags := cmd.Flags()
	// Everything after the command name belongs to the command.
	flags.SetInterspersed(false)
	flags.StringArrayVarP(&a.opts.chdirs, "chdir", "C", nil, "Run as if started in `path`")
	flags.StringVar(&a.opts.gitDir, "git-dir", "", "Set the path to the control directory")
	flags.StringVar(&a.opts.workTree, "work-tree", "", "Set the path to the work tree")
	flags.StringVar(&a.opts.superPrefix, "super-prefix", "", "Prefix for paths shown by a nested invocation")
	flags.BoolVarP(&a.opts.paginate, "paginate", "p", false, "Pipe all output into a pager")
	flags.BoolVarP(&a.opts.noPager, "no-pager", "P", false, "Do not pipe output into a pager")
	flags.BoolVar(&a.opts.printLogs, "print-logs", false, "Print logs to stderr")
	flags.StringVar(&a.opts.logLevel, "log-level", "INFO", "Log level (DEBUG|INFO|WARN|ERROR)")
	_ = flags.MarkHidden("super-prefix")

	cmd.SetVersionTemplate(fmt.Sprintf("git version %s (%s)\n", Version, BuildTime))
	cmd.SetOut(a.stdout)
	cmd.SetErr(a.stderr)
	return cmd
}

// Execute runs the front end with the process arguments and returns the exit
// code.
func Execute() int {
	return run(os.Args[1:], os.Stdout, os.Stderr)
}

func run(args []string, stdout, stderr io.Writer) int {
	a := &app{stdout: stdout, stderr: stderr}
	cmd := newRootCmd(a)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return dispatch.ExitUsage
	}
	return a.code
}

func (a *app) run(cmd *cobra.Command, args []string) error {
	a.initLogging(cmd)

	for _, dir := range a.opts.chdirs {
		if dir == "" {
			continue
		}
		if err := os.Chdir(dir); err != nil {
			fmt.Fprintf(a.stderr, "fatal: cannot change to '%s': %v\n", dir, err)
			a.code = dispatch.ExitExecutionFailure
			return nil
		}
	}

	if a.opts.paginate && a.opts.noPager {
		return fmt.Errorf("--paginate and --no-pager are mutually exclusive")
	}

	env, err := a.loadEnv()
	if err != nil {
		return err
	}

	name, cmdArgs := "help", []string(nil)
	if len(args) > 0 {
		name, cmdArgs = args[0], args[1:]
	}

	gate := pager.NewGate()
	switch {
	case a.opts.paginate:
		gate.Set(pager.Enabled)
	case a.opts.noPager:
		gate.Set(pager.Disabled)
	}

	bus, stopTrace := a.startTrace(env)
	defer stopTrace()

	ctx, stop := signalContext()
	defer stop()

	registry := builtin.Registry(builtin.Options{Version: Version})
	d := &dispatch.Dispatcher{
		Registry: registry,
		Locator:  newLocator(env),
		Env:      env,
		Gate:     gate,
		PagerOptions: []pager.Option{
			pager.WithStreams(a.stdout, a.stderr),
		},
		Stderr:  a.stderr,
		Color:   pager.IsTerminal(a.stderr),
		Unknown: unknownCommand(registry),
		Bus:     bus,
	}
	a.code = d.Dispatch(ctx, name, cmdArgs)
	if len(args) == 0 && a.code == 0 {
		a.code = 1
	}
	return nil
}

// loadEnv reads the GIT_* environment and applies the global flags on top.
// Flags are exported again so nested invocations see them.
func (a *app) loadEnv() (config.Env, error) {
	env, err := config.LoadEnv()
	if err != nil {
		return config.Env{}, err
	}
	if a.opts.gitDir != "" {
		env.Dir = a.opts.gitDir
		_ = os.Setenv("GIT_DIR", a.opts.gitDir)
	}
	if a.opts.workTree != "" {
		env.WorkTree = a.opts.workTree
		_ = os.Setenv("GIT_WORK_TREE", a.opts.workTree)
	}
	if a.opts.superPrefix != "" {
		env.SuperPrefix = a.opts.superPrefix
		_ = os.Setenv("GIT_INTERNAL_SUPER_PREFIX", a.opts.superPrefix)
	}
	return env, nil
}

func (a *app) initLogging(cmd *cobra.Command) {
	cfg := logging.DefaultConfig()
	cfg.Output = a.stderr
	level, known := logging.ParseLevel(a.opts.logLevel)
	if a.opts.printLogs || cmd.Flags().Changed("log-level") {
		cfg.Level = level
	}
	logging.Init(cfg)
	if !known {
		logging.Warn().Str("level", a.opts.logLevel).Msg("unknown log level, using WARN")
	}
}

// startTrace subscribes a trace logger when GIT_TRACE asks for one.
func (a *app) startTrace(env config.Env) (*event.Bus, func()) {
	out, closer, err := event.TraceOutput(env.Trace, a.stderr)
	if err != nil {
		logging.Warn().Err(err).Msg("tracing disabled")
		return nil, func() {}
	}
	if out == nil {
		return nil, func() {}
	}

	bus := event.NewBus()
	if _, err := bus.Subscribe(event.TraceLogger(event.NewTraceLogger(out))); err != nil {
		logging.Warn().Err(err).Msg("tracing disabled")
	}
	return bus, func() {
		_ = bus.Close()
		_ = closer.Close()
	}
}

// newLocator reads repository layout from the control directory's own
// settings only.
func newLocator(env config.Env) *setup.Locator {
	locator := setup.NewLocator(afero.NewOsFs())
	locator.Ceilings = env.CeilingDirs
	locator.Explicit = setup.Explicit{ControlDir: env.Dir, WorkTree: env.WorkTree}
	locator.Settings = func(controlDir string) *config.Settings {
		settings, err := config.LoadRepository(controlDir)
		if err != nil {
			logging.Warn().Err(err).Msg("ignoring unreadable settings")
		}
		return settings
	}
	return locator
}

// signalContext is cancelled with a dispatch.SignalError when the process is
// interrupted.
func signalContext() (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	go func() {
		select {
		case sig := <-sigs:
			logging.Debug().Str("signal", sig.String()).Msg("interrupted")
			cancel(&dispatch.SignalError{Signal: sig.(syscall.Signal)})
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigs)
		cancel(nil)
	}
}
