package commands

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/gaold/git/internal/command"
)

// unknownCommand reports a command name that is not registered, with the
// closest registered names when there are any.
func unknownCommand(registry *command.Registry) func(w io.Writer, name string) {
	return func(w io.Writer, name string) {
		fmt.Fprintf(w, "git: '%s' is not a git command. See 'git help'.\n", name)

		similar := similarCommands(name, registry.Names())
		switch len(similar) {
		case 0:
			return
		case 1:
			fmt.Fprintln(w, "\nThe most similar command is")
		default:
			fmt.Fprintln(w, "\nThe most similar commands are")
		}
		for _, s := range similar {
			fmt.Fprintf(w, "\t%s\n", s)
		}
	}
}

// similarCommands returns the names closest to name by edit distance. A name
// that starts with the typed text counts as an exact match.
func similarCommands(name string, names []string) []string {
	type candidate struct {
		name     string
		distance int
	}

	limit := max(2, len(name)/3)
	var candidates []candidate
	for _, n := range names {
		d := levenshtein.ComputeDistance(name, n)
		if name != "" && strings.HasPrefix(n, name) {
			d = 0
		}
		if d <= limit {
			candidates = append(candidates, candidate{n, d})
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].distance != candidates[j].distance {
			return candidates[i].distance < candidates[j].distance
		}
		return candidates[i].name < candidates[j].name
	})

	best := candidates[0].distance
	var similar []string
	for _, c := range candidates {
		if c.distance != best {
			break
		}
		similar = append(similar, c.name)
	}
	return similar
}
