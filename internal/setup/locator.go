// Package setup locates the control directory and work tree a command runs in.
package setup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gaold/git/internal/config"
	"github.com/gaold/git/internal/logging"
	"github.com/spf13/afero"
)

// DefaultMarker is the name of the control directory (or gitfile) looked for
// in each directory during discovery.
const DefaultMarker = ".git"

// ErrNotFound is returned when no control directory can be located.
var ErrNotFound = errors.New("not a git repository (or any of the parent directories)")

// Context describes where a command runs.
type Context struct {
	// ControlDir is the absolute path of the control directory, "" when none was found.
	ControlDir string
	// WorkTree is the absolute path of the work tree root, "" for a bare repository.
	WorkTree string
	// Prefix is the slash-separated path from WorkTree to the starting directory.
	Prefix string
	// SuperPrefix is prepended to paths shown to the user by nested invocations.
	SuperPrefix string
}

// Found reports whether a control directory was located.
func (c Context) Found() bool { return c.ControlDir != "" }

// Bare reports whether a control directory was located without a work tree.
func (c Context) Bare() bool { return c.Found() && c.WorkTree == "" }

// Explicit carries control directory and work tree overrides
// (--git-dir/GIT_DIR and --work-tree/GIT_WORK_TREE).
type Explicit struct {
	ControlDir string
	WorkTree   string
}

// Locator finds the control directory for a starting directory.
type Locator struct {
	// FS is the filesystem searched. Defaults to the OS filesystem.
	FS afero.Fs
	// Marker is the control directory name. Defaults to DefaultMarker.
	Marker string
	// Ceilings are absolute directories discovery never moves up into.
	Ceilings []string
	// Explicit disables discovery when ControlDir is set.
	Explicit Explicit
	// Settings returns the settings stored in a control directory, used for
	// core.bare and core.worktree. May be nil.
	Settings func(controlDir string) *config.Settings
}

// NewLocator creates a Locator over fs.
func NewLocator(fs afero.Fs) *Locator {
	return &Locator{FS: fs, Marker: DefaultMarker}
}

// Locate resolves the control directory, work tree and prefix for startDir.
// It returns an error wrapping ErrNotFound when there is no control directory.
func (l *Locator) Locate(startDir string) (Context, error) {
	start, err := filepath.Abs(startDir)
	if err != nil {
		return Context{}, err
	}

	var ctx Context
	if l.Explicit.ControlDir != "" {
		ctx, err = l.explicit(start)
	} else {
		ctx, err = l.discover(start)
	}
	if err != nil {
		return Context{}, err
	}

	ctx.Prefix = prefixOf(ctx.WorkTree, start)
	logging.Debug().
		Str("start", start).
		Str("controlDir", ctx.ControlDir).
		Str("workTree", ctx.WorkTree).
		Str("prefix", ctx.Prefix).
		Msg("located control directory")
	return ctx, nil
}

// discover walks up from start looking for the marker, a gitfile, or a bare
// control directory.
func (l *Locator) discover(start string) (Context, error) {
	ceilings := l.ceilings()
	current := start
	for {
		markerPath := filepath.Join(current, l.marker())
		if info, err := l.fs().Stat(markerPath); err == nil {
			if info.IsDir() {
				return l.withSettings(Context{ControlDir: markerPath, WorkTree: current}, current), nil
			}
			controlDir, err := l.readGitFile(markerPath, current)
			if err != nil {
				return Context{}, err
			}
			return l.withSettings(Context{ControlDir: controlDir, WorkTree: current}, current), nil
		}

		if l.isControlDir(current) {
			return l.withSettings(Context{ControlDir: current}, ""), nil
		}

		parent := filepath.Dir(current)
		if parent == current || ceilings[parent] {
			return Context{}, ErrNotFound
		}
		current = parent
	}
}

// explicit builds the context for an explicitly named control directory.
// Without an explicit work tree the starting directory is the work tree root
// unless settings say otherwise.
func (l *Locator) explicit(start string) (Context, error) {
	controlDir := absFrom(start, l.Explicit.ControlDir)
	info, err := l.fs().Stat(controlDir)
	if err != nil || !info.IsDir() {
		return Context{}, fmt.Errorf("%w: '%s'", ErrNotFound, l.Explicit.ControlDir)
	}

	if l.Explicit.WorkTree != "" {
		return Context{ControlDir: controlDir, WorkTree: absFrom(start, l.Explicit.WorkTree)}, nil
	}
	return l.withSettings(Context{ControlDir: controlDir, WorkTree: start}, start), nil
}

// withSettings applies core.bare and core.worktree from the control
// directory's settings. core.bare wins over core.worktree.
func (l *Locator) withSettings(ctx Context, defaultWorkTree string) Context {
	ctx.WorkTree = defaultWorkTree
	if l.Settings == nil {
		return ctx
	}
	s := l.Settings(ctx.ControlDir)
	if s == nil {
		return ctx
	}
	switch {
	case s.Core.Bare != nil && *s.Core.Bare:
		if s.Core.Worktree != "" {
			logging.Warn().Str("controlDir", ctx.ControlDir).Msg("core.bare and core.worktree do not make sense together")
		}
		ctx.WorkTree = ""
	case s.Core.Worktree != "":
		ctx.WorkTree = absFrom(ctx.ControlDir, s.Core.Worktree)
	}
	return ctx
}

// readGitFile reads a "gitdir: <path>" marker file.
func (l *Locator) readGitFile(path, dir string) (string, error) {
	content, err := afero.ReadFile(l.fs(), path)
	if err != nil {
		return "", fmt.Errorf("%w: cannot read %s: %v", ErrNotFound, path, err)
	}
	line := strings.TrimSpace(string(content))
	if !strings.HasPrefix(line, "gitdir: ") {
		return "", fmt.Errorf("%w: invalid gitfile format: %s", ErrNotFound, path)
	}
	controlDir := absFrom(dir, strings.TrimSpace(strings.TrimPrefix(line, "gitdir: ")))
	if info, err := l.fs().Stat(controlDir); err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: gitfile %s points to missing %s", ErrNotFound, path, controlDir)
	}
	return controlDir, nil
}

// isControlDir reports whether dir looks like a bare control directory:
// a HEAD file next to objects/ and refs/ directories.
func (l *Locator) isControlDir(dir string) bool {
	head, err := l.fs().Stat(filepath.Join(dir, "HEAD"))
	if err != nil || head.IsDir() {
		return false
	}
	for _, sub := range []string{"objects", "refs"} {
		info, err := l.fs().Stat(filepath.Join(dir, sub))
		if err != nil || !info.IsDir() {
			return false
		}
	}
	return true
}

func (l *Locator) ceilings() map[string]bool {
	set := make(map[string]bool, len(l.Ceilings))
	for _, dir := range l.Ceilings {
		// Relative entries are ignored.
		if dir == "" || !filepath.IsAbs(dir) {
			continue
		}
		set[filepath.Clean(dir)] = true
	}
	return set
}

func (l *Locator) fs() afero.Fs {
	if l.FS == nil {
		l.FS = afero.NewOsFs()
	}
	return l.FS
}

func (l *Locator) marker() string {
	if l.Marker == "" {
		return DefaultMarker
	}
	return l.Marker
}

// prefixOf returns the slash-separated path from workTree to dir, or "" when
// dir is the work tree root or lies outside it.
func prefixOf(workTree, dir string) string {
	if workTree == "" {
		return ""
	}
	rel, err := filepath.Rel(workTree, dir)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return ""
	}
	return filepath.ToSlash(rel)
}

func absFrom(base, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(base, path)
}
