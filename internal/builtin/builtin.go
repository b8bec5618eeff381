// Package builtin holds the commands compiled into the binary. They report on
// the execution environment the dispatcher prepared and implement no
// repository logic of their own.
package builtin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gaold/git/internal/command"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
)

// Options configure the builtin table.
type Options struct {
	Version string
	// FS is the filesystem ls-files walks. Defaults to the OS filesystem.
	FS afero.Fs
}

// Registry returns the builtin command table.
func Registry(opts Options) *command.Registry {
	if opts.FS == nil {
		opts.FS = afero.NewOsFs()
	}

	var reg *command.Registry
	reg = command.MustRegistry(
		command.Entry{
			Name:    "config",
			Handler: command.HandlerFunc(runConfig),
			Capabilities: command.Capabilities{
				RequiresControlDirGently: true,
				DelaysPagerConfig:        true,
			},
			Summary: "Get and list settings",
		},
		command.Entry{
			Name: "help",
			Handler: command.HandlerFunc(func(ctx context.Context, inv *command.Invocation) (int, error) {
				return runHelp(inv, reg)
			}),
			Summary: "List the available commands",
		},
		command.Entry{
			Name:    "ls-files",
			Handler: &lsFiles{fs: opts.FS},
			Capabilities: command.Capabilities{
				RequiresControlDir:  true,
				RequiresWorkTree:    true,
				SupportsSuperPrefix: true,
			},
			Summary: "Show files in the work tree",
		},
		command.Entry{
			Name:    "rev-parse",
			Handler: command.HandlerFunc(runRevParse),
			Capabilities: command.Capabilities{
				RequiresControlDirGently: true,
				SupportsSuperPrefix:      true,
			},
			Summary: "Print repository locations",
		},
		command.Entry{
			Name:    "show-prefix",
			Handler: command.HandlerFunc(runShowPrefix),
			Capabilities: command.Capabilities{
				RequiresControlDir: true,
				UsesPager:          true,
			},
			Summary: "Print the current directory relative to the work tree",
		},
		command.Entry{
			Name:         "var",
			Handler:      command.HandlerFunc(runVar),
			Capabilities: command.Capabilities{RequiresControlDirGently: true},
			Summary:      "Show a logical variable",
		},
		command.Entry{
			Name: "version",
			Handler: command.HandlerFunc(func(ctx context.Context, inv *command.Invocation) (int, error) {
				fmt.Fprintf(inv.Stdout(), "git version %s\n", opts.Version)
				return 0, nil
			}),
			Summary: "Display version information",
		},
	)
	return reg
}

func runHelp(inv *command.Invocation, reg *command.Registry) (int, error) {
	out := inv.Stdout()
	fmt.Fprintln(out, "usage: git [-C <path>] [-p | -P] [--git-dir=<path>] [--work-tree=<path>] <command> [<args>]")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Available commands:")

	width := 0
	for _, name := range reg.Names() {
		width = max(width, len(name))
	}
	for _, e := range reg.Entries() {
		fmt.Fprintf(out, "   %-*s   %s\n", width, e.Name, e.Summary)
	}
	return 0, nil
}

func runShowPrefix(ctx context.Context, inv *command.Invocation) (int, error) {
	fmt.Fprintln(inv.Stdout(), inv.Prefix)
	return 0, nil
}

// newFlagSet returns a flag set that reports errors instead of exiting.
func newFlagSet(name string, stderr io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: git %s [<options>]\n\n", name)
		fmt.Fprint(stderr, fs.FlagUsages())
	}
	return fs
}

// usageError prints err and returns the conventional usage status.
func usageError(inv *command.Invocation, err error) (int, error) {
	if errors.Is(err, pflag.ErrHelp) {
		return 129, nil
	}
	fmt.Fprintf(inv.Stderr(), "error: %s\n", strings.TrimPrefix(err.Error(), "error: "))
	return 129, nil
}
