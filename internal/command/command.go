package command

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/gaold/git/internal/config"
	"github.com/gaold/git/internal/pager"
	"github.com/gaold/git/internal/setup"
)

// Capabilities declare what a command needs before its handler runs.
type Capabilities struct {
	RequiresControlDir       bool `json:"requiresControlDir,omitempty"`
	RequiresControlDirGently bool `json:"requiresControlDirGently,omitempty"`
	UsesPager                bool `json:"usesPager,omitempty"`
	RequiresWorkTree         bool `json:"requiresWorkTree,omitempty"`
	SupportsSuperPrefix      bool `json:"supportsSuperPrefix,omitempty"`
	DelaysPagerConfig        bool `json:"delaysPagerConfig,omitempty"`
}

// Discovers reports whether the command asks for control directory discovery.
func (c Capabilities) Discovers() bool {
	return c.RequiresControlDir || c.RequiresControlDirGently
}

// NeedsWorkTree reports whether a missing work tree is fatal. RequiresWorkTree
// is ignored without a discovery mode.
func (c Capabilities) NeedsWorkTree() bool {
	return c.RequiresWorkTree && c.Discovers()
}

func (c Capabilities) String() string {
	var names []string
	add := func(set bool, name string) {
		if set {
			names = append(names, name)
		}
	}
	add(c.RequiresControlDir, "control-dir")
	add(c.RequiresControlDirGently, "control-dir-gently")
	add(c.UsesPager, "pager")
	add(c.RequiresWorkTree, "work-tree")
	add(c.SupportsSuperPrefix, "super-prefix")
	add(c.DelaysPagerConfig, "delay-pager-config")
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ",")
}

// Handler runs a command. The returned status becomes the process exit code.
// A non-nil error, or a panic, is reported as an execution failure instead.
//
// Output must be written to inv.Stdout() and inv.Stderr(). Only those writers
// are redirected into the pager; writes to os.Stdout, os.Stderr or the
// process logger bypass it.
type Handler interface {
	Run(ctx context.Context, inv *Invocation) (int, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, inv *Invocation) (int, error)

// Run calls f.
func (f HandlerFunc) Run(ctx context.Context, inv *Invocation) (int, error) {
	return f(ctx, inv)
}

// Entry is one row of the command table.
type Entry struct {
	Name         string
	Handler      Handler
	Capabilities Capabilities
	Summary      string
}

// Invocation is everything a handler receives.
type Invocation struct {
	Name string
	Args []string
	// Prefix is the path from the work tree root to the directory the command
	// was started in, slash separated, "" at the root.
	Prefix string
	// Context is empty when discovery was not requested or failed gently.
	Context setup.Context
	Env     config.Env
	// Pager is shared by the whole process. Handlers with DelaysPagerConfig
	// call Pager.Request themselves.
	Pager *pager.Controller
}

// Config returns the merged settings, loading them on first use.
func (inv *Invocation) Config() *config.Settings {
	if inv.Pager == nil {
		return nil
	}
	return inv.Pager.Settings()
}

// Stdout is where command output goes: the pager when one is running.
func (inv *Invocation) Stdout() io.Writer {
	if inv.Pager == nil {
		return os.Stdout
	}
	return inv.Pager.Stdout()
}

// Stderr is where diagnostics go.
func (inv *Invocation) Stderr() io.Writer {
	if inv.Pager == nil {
		return os.Stderr
	}
	return inv.Pager.Stderr()
}
