package builtin

import (
	"context"
	"fmt"
	"strconv"

	"github.com/gaold/git/internal/command"
	"github.com/gaold/git/internal/dispatch"
	"github.com/gaold/git/internal/setup"
	"github.com/spf13/pflag"
)

// query prints one rev-parse answer. Queries run in command-line order.
type query func(inv *command.Invocation) (string, error)

// queryFlag is a boolean pflag.Value that appends its query when set.
type queryFlag struct {
	q     query
	order *[]query
}

func (f *queryFlag) String() string { return "false" }
func (f *queryFlag) Type() string   { return "bool" }

func (f *queryFlag) Set(v string) error {
	set, err := strconv.ParseBool(v)
	if err != nil {
		return err
	}
	if set {
		*f.order = append(*f.order, f.q)
	}
	return nil
}

func runRevParse(ctx context.Context, inv *command.Invocation) (int, error) {
	var order []query
	fs := newFlagSet("rev-parse", inv.Stderr())
	add := func(name, usage string, q query) {
		fs.VarPF(&queryFlag{q: q, order: &order}, name, "", usage).NoOptDefVal = "true"
	}
	add("show-prefix", "path of the current directory relative to the work tree", showPrefix)
	add("show-toplevel", "absolute path of the work tree", showToplevel)
	add("git-dir", "path of the control directory", gitDir)
	add("is-bare-repository", "whether the repository is bare", isBare)
	add("is-inside-work-tree", "whether the current directory is inside the work tree", insideWorkTree)
	add("show-superprefix", "path of this repository inside its superproject", superPrefix)

	if err := fs.Parse(inv.Args); err != nil {
		return usageError(inv, err)
	}

	out := inv.Stdout()
	for _, q := range order {
		answer, err := q(inv)
		if err != nil {
			return 0, err
		}
		fmt.Fprintln(out, answer)
	}
	for _, arg := range fs.Args() {
		fmt.Fprintln(out, arg)
	}
	return 0, nil
}

func requireRepository(inv *command.Invocation) error {
	if !inv.Context.Found() {
		return setup.ErrNotFound
	}
	return nil
}

func showPrefix(inv *command.Invocation) (string, error) {
	return inv.Prefix, requireRepository(inv)
}

func showToplevel(inv *command.Invocation) (string, error) {
	if err := requireRepository(inv); err != nil {
		return "", err
	}
	if inv.Context.WorkTree == "" {
		return "", dispatch.ErrWorkTreeRequired
	}
	return inv.Context.WorkTree, nil
}

func gitDir(inv *command.Invocation) (string, error) {
	return inv.Context.ControlDir, requireRepository(inv)
}

func isBare(inv *command.Invocation) (string, error) {
	return strconv.FormatBool(inv.Context.Bare()), requireRepository(inv)
}

func insideWorkTree(inv *command.Invocation) (string, error) {
	return strconv.FormatBool(inv.Context.WorkTree != ""), requireRepository(inv)
}

func superPrefix(inv *command.Invocation) (string, error) {
	return inv.Context.SuperPrefix, nil
}

var _ pflag.Value = (*queryFlag)(nil)
