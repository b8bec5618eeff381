package builtin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gaold/git/internal/command"
	"github.com/gaold/git/internal/setup"
	"github.com/spf13/afero"
)

// lsFiles lists the files under the current directory of the work tree. It
// walks the filesystem; there is no index.
type lsFiles struct {
	fs afero.Fs
}

func (l *lsFiles) Run(ctx context.Context, inv *command.Invocation) (int, error) {
	fs := newFlagSet("ls-files", inv.Stderr())
	if err := fs.Parse(inv.Args); err != nil {
		return usageError(inv, err)
	}
	pathspecs := fs.Args()
	for _, p := range pathspecs {
		if !doublestar.ValidatePattern(p) {
			return usageError(inv, fmt.Errorf("invalid pathspec %q", p))
		}
	}

	base := filepath.Join(inv.Context.WorkTree, filepath.FromSlash(inv.Prefix))
	out := inv.Stdout()
	err := afero.Walk(l.fs, base, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == inv.Context.ControlDir || (path != base && info.Name() == setup.DefaultMarker) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if matchPathspec(pathspecs, rel) {
			fmt.Fprintln(out, inv.Context.SuperPrefix+rel)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("ls-files: %w", err)
	}
	return 0, nil
}

// matchPathspec reports whether rel matches any pathspec. A pathspec matches
// as a doublestar glob or as a leading directory. No pathspecs match all.
func matchPathspec(pathspecs []string, rel string) bool {
	if len(pathspecs) == 0 {
		return true
	}
	for _, p := range pathspecs {
		p = strings.TrimPrefix(p, "./")
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
		if dir := strings.TrimSuffix(p, "/"); dir != "" && strings.HasPrefix(rel, dir+"/") {
			return true
		}
	}
	return false
}
