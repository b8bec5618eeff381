package builtin

import (
	"context"
	"errors"
	"fmt"

	"github.com/gaold/git/internal/command"
)

type variable struct {
	name  string
	value func(inv *command.Invocation) string
}

var variables = []variable{
	{"GIT_PAGER", func(inv *command.Invocation) string {
		if program := inv.Pager.Program(); program != "" {
			return program
		}
		return "cat"
	}},
	{"GIT_DIR", func(inv *command.Invocation) string { return inv.Context.ControlDir }},
	{"GIT_WORK_TREE", func(inv *command.Invocation) string { return inv.Context.WorkTree }},
	{"GIT_PREFIX", func(inv *command.Invocation) string { return inv.Prefix }},
}

func runVar(ctx context.Context, inv *command.Invocation) (int, error) {
	fs := newFlagSet("var", inv.Stderr())
	list := fs.BoolP("list", "l", false, "list all variables")
	if err := fs.Parse(inv.Args); err != nil {
		return usageError(inv, err)
	}

	out := inv.Stdout()
	if *list {
		for _, v := range variables {
			fmt.Fprintf(out, "%s=%s\n", v.name, v.value(inv))
		}
		return 0, nil
	}

	if fs.NArg() != 1 {
		return usageError(inv, errors.New("expected exactly one variable name"))
	}
	for _, v := range variables {
		if v.name == fs.Arg(0) {
			fmt.Fprintln(out, v.value(inv))
			return 0, nil
		}
	}
	return usageError(inv, fmt.Errorf("unknown variable %q", fs.Arg(0)))
}
