package builtin

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/gaold/git/internal/command"
	"github.com/gaold/git/internal/pager"
)

// runConfig reads settings. Only --list is paged, so the command decides on
// the pager itself once the mode is known.
func runConfig(ctx context.Context, inv *command.Invocation) (int, error) {
	fs := newFlagSet("config", inv.Stderr())
	get := fs.String("get", "", "print the value of `key`")
	list := fs.BoolP("list", "l", false, "list all settings")
	if err := fs.Parse(inv.Args); err != nil {
		return usageError(inv, err)
	}

	switch {
	case *list && *get != "":
		return usageError(inv, errors.New("only one action at a time"))
	case *list:
		inv.Pager.Request("config", pager.On)
		values := inv.Config().Values()
		keys := make([]string, 0, len(values))
		for k := range values {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := inv.Stdout()
		for _, k := range keys {
			fmt.Fprintf(out, "%s=%s\n", k, values[k])
		}
		return 0, nil
	case *get != "":
		value, ok := inv.Config().Get(*get)
		if !ok {
			return 1, nil
		}
		fmt.Fprintln(inv.Stdout(), value)
		return 0, nil
	default:
		fs.Usage()
		return 129, nil
	}
}
