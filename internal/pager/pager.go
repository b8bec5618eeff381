// Package pager decides whether a command's output goes through a pager and
// runs the pager subprocess when it does.
package pager

import (
	"errors"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gaold/git/internal/config"
	"github.com/gaold/git/internal/logging"
)

// Policy is the default a caller applies when configuration is silent.
type Policy int

const (
	// Off disables paging unless configuration enables it.
	Off Policy = iota
	// On enables paging unless configuration disables it.
	On
	// Punt leaves the decision open so the caller can try another name.
	Punt
)

// DefaultAbortGrace is how long Abort waits for the pager to exit on its own.
const DefaultAbortGrace = 2 * time.Second

// Option configures a Controller.
type Option func(*Controller)

// WithEnv sets the environment overrides (GIT_PAGER, PAGER, GIT_PAGER_IN_USE).
func WithEnv(env config.Env) Option {
	return func(c *Controller) {
		c.env = env
	}
}

// WithSettings sets the deferred configuration lookup. It is called at most
// once, the first time a decision needs it.
func WithSettings(load func() *config.Settings) Option {
	return func(c *Controller) {
		c.loadSettings = load
	}
}

// WithStreams sets the original output and error streams.
func WithStreams(stdout, stderr io.Writer) Option {
	return func(c *Controller) {
		c.stdout, c.stderr = stdout, stderr
	}
}

// WithTerminalCheck replaces IsTerminal.
func WithTerminalCheck(fn func(io.Writer) bool) Option {
	return func(c *Controller) {
		c.isTerminal = fn
	}
}

// WithEnviron sets the base environment handed to the pager process.
func WithEnviron(environ []string) Option {
	return func(c *Controller) {
		c.environ = environ
	}
}

// WithAbortGrace overrides DefaultAbortGrace.
func WithAbortGrace(d time.Duration) Option {
	return func(c *Controller) {
		c.abortGrace = d
	}
}

// Controller owns the pager decision for one process and the pager
// subprocess, if any.
type Controller struct {
	gate         *Gate
	env          config.Env
	loadSettings func() *config.Settings
	isTerminal   func(io.Writer) bool
	environ      []string
	abortGrace   time.Duration

	settingsOnce sync.Once
	settings     *config.Settings

	mu       sync.Mutex
	stdout   io.Writer
	stderr   io.Writer
	program  string
	cmd      *exec.Cmd
	pipe     io.WriteCloser
	out      io.Writer
	errOut   io.Writer
	exited   chan struct{}
	waitErr  error
	finished bool
}

// New creates a Controller around gate. A nil gate gets a fresh one.
func New(gate *Gate, opts ...Option) *Controller {
	if gate == nil {
		gate = NewGate()
	}
	c := &Controller{
		gate:       gate,
		stdout:     os.Stdout,
		stderr:     os.Stderr,
		isTerminal: IsTerminal,
		abortGrace: DefaultAbortGrace,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.environ == nil {
		c.environ = os.Environ()
	}
	return c
}

// Gate returns the decision gate.
func (c *Controller) Gate() *Gate {
	return c.gate
}

// Request decides paging for cmd when the gate is still undecided, then
// starts the pager if the decision is Enabled. pager.<cmd> configuration wins
// over def; a program named there becomes the pager program.
func (c *Controller) Request(cmd string, def Policy) {
	if !c.gate.Decided() && !c.env.PagerInUse {
		c.decide(cmd, def)
	}
	c.Commit()
}

func (c *Controller) decide(cmd string, def Policy) {
	if setting, ok := c.Settings().PagerFor(cmd); ok {
		if setting.Enabled && setting.Program != "" {
			c.SetProgram(setting.Program)
		}
		c.gate.Set(decisionOf(setting.Enabled))
		logging.Debug().Str("cmd", cmd).Bool("enabled", setting.Enabled).Msg("pager decided by configuration")
		return
	}

	switch def {
	case On:
		c.gate.Set(Enabled)
	case Off:
		c.gate.Set(Disabled)
	case Punt:
		return
	}
	logging.Debug().Str("cmd", cmd).Str("decision", c.gate.Get().String()).Msg("pager decided by default")
}

// Commit starts the pager when the gate is Enabled, output is a terminal and
// no pager is running yet in this process or a parent.
func (c *Controller) Commit() {
	if c.gate.Get() != Enabled || c.env.PagerInUse {
		return
	}
	c.mu.Lock()
	running := c.cmd != nil
	stdout := c.stdout
	c.mu.Unlock()
	if running || !c.isTerminal(stdout) {
		return
	}
	if err := c.Start(); err != nil {
		logging.Warn().Err(err).Msg("unable to start pager, writing output directly")
	}
}

// SetProgram overrides the pager program for this process.
func (c *Controller) SetProgram(program string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.program = program
}

// Program returns the program Start would run, "" for none.
func (c *Controller) Program() string {
	c.mu.Lock()
	explicit := c.program
	c.mu.Unlock()
	return ResolveProgram(explicit, c.env, c.Settings())
}

// Settings returns the configuration, loading it on first use.
func (c *Controller) Settings() *config.Settings {
	c.settingsOnce.Do(func() {
		if c.loadSettings != nil {
			c.settings = c.loadSettings()
		}
	})
	return c.settings
}

// Running reports whether a pager subprocess is attached.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cmd != nil && !c.finished
}

// Stdout returns the stream command output should be written to.
func (c *Controller) Stdout() io.Writer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.out != nil {
		return c.out
	}
	return c.stdout
}

// Stderr returns the stream diagnostics should be written to. It is the pager
// only when the original error stream is a terminal.
func (c *Controller) Stderr() io.Writer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.errOut != nil {
		return c.errOut
	}
	return c.stderr
}

// Start spawns the pager and redirects output into it. It is a no-op when a
// pager already ran or the resolved program is empty. On error output keeps
// going to the original streams.
func (c *Controller) Start() error {
	program := c.Program()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cmd != nil || program == "" {
		return nil
	}

	stderrIsTerminal := c.isTerminal(c.stderr)
	switch c.stderr.(type) {
	case *os.File, *lockedWriter:
	default:
		// os/exec copies the pager's stderr on its own goroutine.
		c.stderr = &lockedWriter{w: c.stderr}
	}

	var (
		cmd  *exec.Cmd
		pipe io.WriteCloser
	)
	spawn := func() error {
		argv := commandLine(program)
		cmd = exec.Command(argv[0], argv[1:]...)
		cmd.Env = environ(c.environ)
		cmd.Stdout = c.stdout
		cmd.Stderr = c.stderr

		var err error
		if pipe, err = cmd.StdinPipe(); err != nil {
			return backoff.Permanent(err)
		}
		if err = cmd.Start(); err != nil {
			if errors.Is(err, syscall.EAGAIN) {
				logging.Debug().Err(err).Str("pager", program).Msg("retrying pager spawn")
				return err
			}
			return backoff.Permanent(err)
		}
		return nil
	}
	if err := backoff.Retry(spawn, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)); err != nil {
		return err
	}

	c.cmd = cmd
	c.pipe = pipe
	c.out = pipe
	if stderrIsTerminal {
		c.errOut = pipe
	}
	c.exited = make(chan struct{})
	go func() {
		err := cmd.Wait()
		c.mu.Lock()
		c.waitErr = err
		c.finished = true
		c.mu.Unlock()
		close(c.exited)
	}()

	logging.Debug().Str("pager", program).Int("pid", cmd.Process.Pid).Msg("pager started")
	return nil
}

// Close ends the pager's input and waits for it to drain and exit. Output
// goes back to the original streams afterwards. The pager's own exit status
// is returned for logging only.
func (c *Controller) Close() error {
	exited, ok := c.detach()
	if !ok {
		return nil
	}
	<-exited
	return c.exitErr()
}

// Abort ends the pager's input and gives it a short grace period to exit
// before killing it, so an interrupted command never leaves it behind.
func (c *Controller) Abort() error {
	exited, ok := c.detach()
	if !ok {
		return nil
	}
	select {
	case <-exited:
		return c.exitErr()
	case <-time.After(c.abortGrace):
	}

	c.mu.Lock()
	process := c.cmd.Process
	c.mu.Unlock()
	logging.Debug().Int("pid", process.Pid).Msg("killing pager")
	_ = process.Signal(syscall.SIGTERM)
	select {
	case <-exited:
	case <-time.After(c.abortGrace):
		_ = process.Kill()
		<-exited
	}
	return c.exitErr()
}

// detach closes the pipe and restores the original streams.
func (c *Controller) detach() (<-chan struct{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cmd == nil || c.pipe == nil {
		return nil, false
	}
	_ = c.pipe.Close()
	c.pipe = nil
	c.out = nil
	c.errOut = nil
	return c.exited, true
}

func (c *Controller) exitErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.waitErr
}

// lockedWriter serializes writes from the command and the pager process.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func decisionOf(enabled bool) Decision {
	if enabled {
		return Enabled
	}
	return Disabled
}
