// Package dispatch runs one builtin command: it resolves the entry, prepares
// the execution environment the entry declares, runs the handler and turns
// the outcome into an exit code.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gaold/git/internal/command"
	"github.com/gaold/git/internal/config"
	"github.com/gaold/git/internal/event"
	"github.com/gaold/git/internal/logging"
	"github.com/gaold/git/internal/pager"
	"github.com/gaold/git/internal/setup"
)

// Result describes a finished dispatch.
type Result struct {
	// Code is the process exit code.
	Code int
	// State is the last state before reporting: Succeeded, HandlerFailed,
	// Interrupted or one of the failure states.
	State State
	// Err is the error reported to the user, nil on success or when the
	// handler returned a status.
	Err     error
	Context setup.Context
}

// Dispatcher prepares and runs commands from a Registry. One Dispatcher runs
// one command per process; it is not safe for concurrent use.
type Dispatcher struct {
	Registry *command.Registry
	Locator  *setup.Locator
	Env      config.Env

	// Gate is the process-wide pager decision, possibly already set by
	// --paginate or --no-pager.
	Gate *pager.Gate
	// PagerOptions are applied to the pager controller built for the command.
	PagerOptions []pager.Option
	// LoadSettings reads configuration for a control directory ("" for
	// global settings only). Defaults to config.Load.
	LoadSettings func(controlDir string) (*config.Settings, error)

	// Stderr receives reports when no pager controller exists yet.
	Stderr io.Writer
	// Color enables colored "fatal:" prefixes.
	Color bool
	// Unknown reports an unknown command name. Defaults to a one-line message.
	Unknown func(w io.Writer, name string)

	// Bus receives a trace event for every state change. May be nil.
	Bus *event.Bus

	Getwd func() (string, error)
	Chdir func(dir string) error
}

// Dispatch runs name with args and returns the exit code.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args []string) int {
	return d.Run(ctx, name, args).Code
}

// Run runs name with args and returns the full result.
func (d *Dispatcher) Run(ctx context.Context, name string, args []string) Result {
	d.publish(event.DispatchStarted, name, map[string]any{"args": len(args)})
	res := d.run(ctx, name, args)
	d.publish(event.DispatchDone, name, map[string]any{"exit": res.Code, "state": res.State.String()})
	log := logging.ForCommand(name)
	log.Debug().Int("exit", res.Code).Str("state", res.State.String()).Msg("dispatch done")
	return res
}

func (d *Dispatcher) run(ctx context.Context, name string, args []string) Result {
	// Resolving
	entry, err := d.Registry.Lookup(name)
	if err != nil {
		d.publish(event.CommandNotFound, name, nil)
		d.unknown(d.stderr(), name)
		return Result{Code: ExitUnknownCommand, State: NotFound, Err: err}
	}
	caps := entry.Capabilities
	d.publish(event.CommandResolved, name, map[string]any{"capabilities": caps.String()})

	if d.Env.SuperPrefix != "" && !caps.SupportsSuperPrefix {
		err := fmt.Errorf("%s %w", name, ErrSuperPrefixUnsupported)
		d.fatal(d.stderr(), err)
		return Result{Code: ExitUsage, State: UsageFailed, Err: err}
	}

	sctx, res, ok := d.resolve(name, caps)
	if !ok {
		return res
	}
	d.publish(event.SetupReady, name, map[string]any{
		"controlDir": sctx.ControlDir,
		"workTree":   sctx.WorkTree,
		"prefix":     sctx.Prefix,
	})

	// Ready
	if res, ok := d.enterWorkTree(name, sctx); !ok {
		return res
	}

	pg := d.newPager(sctx.ControlDir)
	if !caps.DelaysPagerConfig {
		switch {
		case caps.UsesPager:
			pg.Request(name, pager.On)
		case caps.Discovers():
			pg.Request(name, pager.Punt)
		}
	}
	pg.Commit()
	d.publish(event.PagerDecided, name, map[string]any{
		"decision": pg.Gate().Get().String(),
		"running":  pg.Running(),
	})

	inv := &command.Invocation{
		Name:    name,
		Args:    args,
		Prefix:  sctx.Prefix,
		Context: sctx,
		Env:     d.Env,
		Pager:   pg,
	}
	return d.invoke(ctx, entry, inv)
}

// resolve locates the control directory according to caps.
func (d *Dispatcher) resolve(name string, caps command.Capabilities) (setup.Context, Result, bool) {
	if !caps.Discovers() {
		return setup.Context{}, Result{}, true
	}

	cwd, err := d.getwd()
	if err != nil {
		d.fatal(d.stderr(), fmt.Errorf("unable to get current working directory: %w", err))
		return setup.Context{}, Result{Code: ExitControlDirNotFound, State: ControlDirFailed, Err: err}, false
	}

	sctx, err := d.locator().Locate(cwd)
	if err != nil {
		if caps.RequiresControlDir {
			d.publish(event.ControlDirFailed, name, map[string]any{"error": err.Error()})
			d.fatal(d.stderr(), err)
			return setup.Context{}, Result{Code: ExitControlDirNotFound, State: ControlDirFailed, Err: err}, false
		}
		log := logging.ForCommand(name)
		log.Debug().Err(err).Msg("no control directory, continuing")
		sctx = setup.Context{}
	} else if caps.NeedsWorkTree() && sctx.WorkTree == "" {
		d.publish(event.WorkTreeFailed, name, map[string]any{"controlDir": sctx.ControlDir})
		d.fatal(d.stderr(), ErrWorkTreeRequired)
		return setup.Context{}, Result{Code: ExitWorkTreeRequired, State: WorkTreeFailed, Err: ErrWorkTreeRequired, Context: sctx}, false
	}

	if caps.SupportsSuperPrefix {
		sctx.SuperPrefix = d.Env.SuperPrefix
	}
	return sctx, Result{}, true
}

// enterWorkTree changes into the work tree root when it is not already the
// current directory.
func (d *Dispatcher) enterWorkTree(name string, sctx setup.Context) (Result, bool) {
	if sctx.WorkTree == "" {
		return Result{}, true
	}
	cwd, err := d.getwd()
	if err == nil && filepath.Clean(cwd) == sctx.WorkTree {
		return Result{}, true
	}
	if err := d.chdir(sctx.WorkTree); err != nil {
		err = fmt.Errorf("cannot change to '%s': %w", sctx.WorkTree, err)
		d.fatal(d.stderr(), err)
		return Result{Code: ExitControlDirNotFound, State: ControlDirFailed, Err: err, Context: sctx}, false
	}
	d.publish(event.DirectoryChanged, name, map[string]any{"dir": sctx.WorkTree})
	return Result{}, true
}

type outcome struct {
	code int
	err  error
}

// invoke runs the handler and always closes the pager before returning.
func (d *Dispatcher) invoke(ctx context.Context, entry command.Entry, inv *command.Invocation) Result {
	d.publish(event.HandlerInvoked, inv.Name, map[string]any{"prefix": inv.Prefix})

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("%s: panic: %v", inv.Name, r)}
			}
		}()
		code, err := entry.Handler.Run(ctx, inv)
		done <- outcome{code: code, err: err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-ctx.Done():
		return d.interrupted(ctx, inv)
	}

	if out.err != nil {
		failure := &ExecutionFailure{Command: inv.Name, Err: out.err}
		d.publish(event.HandlerFailed, inv.Name, map[string]any{"error": out.err.Error()})
		d.fatal(inv.Stderr(), failure)
		d.closePager(inv.Pager)
		return Result{Code: ExitExecutionFailure, State: HandlerFailed, Err: failure, Context: inv.Context}
	}

	d.publish(event.HandlerSucceeded, inv.Name, map[string]any{"status": out.code})
	d.closePager(inv.Pager)
	return Result{Code: out.code, State: Succeeded, Context: inv.Context}
}

// interrupted tears down the pager without waiting for the handler, which
// keeps running until the process exits.
func (d *Dispatcher) interrupted(ctx context.Context, inv *command.Invocation) Result {
	cause := context.Cause(ctx)
	code := ExitInterrupted
	var sig *SignalError
	if errors.As(cause, &sig) {
		code = sig.ExitCode()
	}
	d.publish(event.DispatchInterrupted, inv.Name, map[string]any{"cause": cause.Error()})
	if err := inv.Pager.Abort(); err != nil {
		logging.Debug().Err(err).Msg("pager aborted")
	}
	return Result{Code: code, State: Interrupted, Err: cause, Context: inv.Context}
}

func (d *Dispatcher) closePager(pg *pager.Controller) {
	if err := pg.Close(); err != nil {
		logging.Debug().Err(err).Msg("pager exited with error")
	}
}

func (d *Dispatcher) newPager(controlDir string) *pager.Controller {
	if d.Gate == nil {
		d.Gate = pager.NewGate()
	}
	opts := []pager.Option{
		pager.WithEnv(d.Env),
		pager.WithSettings(func() *config.Settings {
			settings, err := d.loadSettings(controlDir)
			if err != nil {
				logging.Warn().Err(err).Msg("ignoring unreadable settings")
			}
			return settings
		}),
	}
	if d.Stderr != nil {
		opts = append(opts, pager.WithStreams(os.Stdout, d.Stderr))
	}
	return pager.New(d.Gate, append(opts, d.PagerOptions...)...)
}

func (d *Dispatcher) loadSettings(controlDir string) (*config.Settings, error) {
	if d.LoadSettings != nil {
		return d.LoadSettings(controlDir)
	}
	return config.Load(controlDir, d.Env)
}

func (d *Dispatcher) locator() *setup.Locator {
	if d.Locator == nil {
		d.Locator = setup.NewLocator(nil)
	}
	return d.Locator
}

func (d *Dispatcher) getwd() (string, error) {
	if d.Getwd != nil {
		return d.Getwd()
	}
	return os.Getwd()
}

func (d *Dispatcher) chdir(dir string) error {
	if d.Chdir != nil {
		return d.Chdir(dir)
	}
	return os.Chdir(dir)
}

func (d *Dispatcher) stderr() io.Writer {
	if d.Stderr != nil {
		return d.Stderr
	}
	return os.Stderr
}

func (d *Dispatcher) publish(t event.Type, name string, data map[string]any) {
	if err := d.Bus.Publish(event.Event{Type: t, Command: name, Data: data}); err != nil {
		logging.Debug().Err(err).Str("event", string(t)).Msg("trace publish failed")
	}
}
