package dispatch_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/gaold/git/internal/command"
	"github.com/gaold/git/internal/config"
	"github.com/gaold/git/internal/dispatch"
	"github.com/gaold/git/internal/pager"
	"github.com/gaold/git/internal/setup"
)

// world is a scratch directory tree plus a dispatcher running against the
// real filesystem.
type world struct {
	root   string
	gate   *pager.Gate
	stdout *bytes.Buffer
	stderr *bytes.Buffer
	chdirs []string
	tty    bool
}

func newWorld() *world {
	root, err := filepath.EvalSymlinks(GinkgoT().TempDir())
	Expect(err).NotTo(HaveOccurred())
	return &world{
		root:   root,
		gate:   pager.NewGate(),
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
	}
}

func (w *world) path(parts ...string) string {
	return filepath.Join(append([]string{w.root}, parts...)...)
}

func (w *world) mkdir(parts ...string) string {
	dir := w.path(parts...)
	Expect(os.MkdirAll(dir, 0755)).To(Succeed())
	return dir
}

func (w *world) dispatcher(entries ...command.Entry) *dispatch.Dispatcher {
	locator := setup.NewLocator(nil)
	locator.Marker = os.Getenv("SUITE_CONTROL_MARKER")
	// Keep discovery inside the scratch tree.
	locator.Ceilings = []string{filepath.Dir(w.root)}

	return &dispatch.Dispatcher{
		Registry: command.MustRegistry(entries...),
		Locator:  locator,
		Env:      config.Env{Pager: os.Getenv("SUITE_PAGER")},
		Gate:     w.gate,
		PagerOptions: []pager.Option{
			pager.WithStreams(w.stdout, w.stderr),
			pager.WithTerminalCheck(func(out io.Writer) bool { return w.tty && out == w.stdout }),
		},
		LoadSettings: func(string) (*config.Settings, error) { return nil, nil },
		Stderr:       w.stderr,
		Chdir: func(dir string) error {
			w.chdirs = append(w.chdirs, dir)
			return os.Chdir(dir)
		},
	}
}

// call records one handler invocation.
type call struct {
	prefix       string
	cwd          string
	pagerRunning bool
	context      setup.Context
}

func recording(calls *[]call, status int, output string) command.Handler {
	return command.HandlerFunc(func(ctx context.Context, inv *command.Invocation) (int, error) {
		cwd, _ := os.Getwd()
		*calls = append(*calls, call{
			prefix:       inv.Prefix,
			cwd:          cwd,
			pagerRunning: inv.Pager.Running(),
			context:      inv.Context,
		})
		if output != "" {
			fmt.Fprint(inv.Stdout(), output)
		}
		return status, nil
	})
}

var _ = Describe("Dispatcher", func() {
	var (
		w     *world
		calls []call
	)

	BeforeEach(func() {
		w = newWorld()
		calls = nil
	})

	Describe("a paged command inside a work tree", func() {
		It("changes to the root, pages output and returns the handler's status", func() {
			w.mkdir(".ctrl")
			start := w.mkdir("sub", "dir")
			Expect(os.Chdir(start)).To(Succeed())
			w.tty = true

			d := w.dispatcher(command.Entry{
				Name:         "X",
				Handler:      recording(&calls, 7, "through the pager\n"),
				Capabilities: command.Capabilities{RequiresControlDir: true, UsesPager: true},
			})
			code := d.Dispatch(context.Background(), "X", []string{"--flag"})

			Expect(code).To(Equal(7))
			Expect(w.chdirs).To(Equal([]string{w.root}))
			Expect(calls).To(HaveLen(1))
			Expect(calls[0].prefix).To(Equal("sub/dir"))
			Expect(calls[0].cwd).To(Equal(w.root))
			Expect(calls[0].pagerRunning).To(BeTrue(), "pager spawned before the handler ran")
			Expect(calls[0].context.ControlDir).To(Equal(w.path(".ctrl")))
			Expect(w.stdout.String()).To(Equal("THROUGH THE PAGER\n"))
			Expect(w.gate.Get()).To(Equal(pager.Enabled))
		})
	})

	Describe("a command requiring a control directory outside any repository", func() {
		It("fails before running the handler and without changing directory", func() {
			start := w.mkdir("nowhere", "deep")
			Expect(os.Chdir(start)).To(Succeed())

			d := w.dispatcher(command.Entry{
				Name:         "Y",
				Handler:      recording(&calls, 0, ""),
				Capabilities: command.Capabilities{RequiresControlDir: true},
			})
			code := d.Dispatch(context.Background(), "Y", nil)

			Expect(code).To(Equal(dispatch.ExitControlDirNotFound))
			Expect(calls).To(BeEmpty())
			Expect(w.chdirs).To(BeEmpty())
			Expect(w.stderr.String()).To(HavePrefix("fatal: not a git repository"))
		})

		It("still runs a gentle command with an empty context", func() {
			start := w.mkdir("nowhere")
			Expect(os.Chdir(start)).To(Succeed())

			d := w.dispatcher(command.Entry{
				Name:         "gentle",
				Handler:      recording(&calls, 0, ""),
				Capabilities: command.Capabilities{RequiresControlDirGently: true},
			})
			Expect(d.Dispatch(context.Background(), "gentle", nil)).To(Equal(0))
			Expect(calls).To(HaveLen(1))
			Expect(calls[0].context.ControlDir).To(BeEmpty())
			Expect(calls[0].cwd).To(Equal(start))
		})
	})

	Describe("a command that delays its pager configuration", func() {
		var entry func(request bool) command.Entry

		BeforeEach(func() {
			w.mkdir(".ctrl")
			Expect(os.Chdir(w.root)).To(Succeed())
			w.tty = true
			entry = func(request bool) command.Entry {
				return command.Entry{
					Name: "Z",
					Handler: command.HandlerFunc(func(ctx context.Context, inv *command.Invocation) (int, error) {
						if request {
							inv.Pager.Request("Z", pager.On)
						}
						fmt.Fprint(inv.Stdout(), "z output\n")
						return 0, nil
					}),
					Capabilities: command.Capabilities{RequiresControlDir: true, UsesPager: true, DelaysPagerConfig: true},
				}
			}
		})

		It("is never paged by the dispatcher", func() {
			d := w.dispatcher(entry(false))
			Expect(d.Dispatch(context.Background(), "Z", nil)).To(Equal(0))
			Expect(w.gate.Get()).To(Equal(pager.Undecided))
			Expect(w.stdout.String()).To(Equal("z output\n"))
		})

		It("is paged when the handler asks", func() {
			d := w.dispatcher(entry(true))
			Expect(d.Dispatch(context.Background(), "Z", nil)).To(Equal(0))
			Expect(w.gate.Get()).To(Equal(pager.Enabled))
			Expect(w.stdout.String()).To(Equal("Z OUTPUT\n"))
		})
	})

	Describe("discovery from any depth", func() {
		It("yields the path from the root as prefix", func() {
			depth, err := strconv.Atoi(os.Getenv("SUITE_DEPTH"))
			Expect(err).NotTo(HaveOccurred())
			w.mkdir(".ctrl")

			var segments []string
			for i := 0; i <= depth; i++ {
				calls = nil
				w.chdirs = nil
				start := w.mkdir(segments...)
				Expect(os.Chdir(start)).To(Succeed())

				d := w.dispatcher(command.Entry{
					Name:         "status",
					Handler:      recording(&calls, 0, ""),
					Capabilities: command.Capabilities{RequiresControlDir: true, RequiresWorkTree: true},
				})
				Expect(d.Dispatch(context.Background(), "status", nil)).To(Equal(0))
				Expect(calls).To(HaveLen(1))
				Expect(calls[0].prefix).To(Equal(strings.Join(segments, "/")))
				if i == 0 {
					Expect(w.chdirs).To(BeEmpty())
				} else {
					Expect(w.chdirs).To(Equal([]string{w.root}))
				}
				segments = append(segments, fmt.Sprintf("level%d", i+1))
			}
		})
	})

	Describe("a bare control directory", func() {
		It("fails commands that need a work tree", func() {
			bare := w.mkdir("repo.git")
			w.mkdir("repo.git", "objects")
			w.mkdir("repo.git", "refs")
			Expect(os.WriteFile(filepath.Join(bare, "HEAD"), []byte("ref: refs/heads/main\n"), 0644)).To(Succeed())
			Expect(os.Chdir(bare)).To(Succeed())

			d := w.dispatcher(command.Entry{
				Name:         "status",
				Handler:      recording(&calls, 0, ""),
				Capabilities: command.Capabilities{RequiresControlDir: true, RequiresWorkTree: true},
			})
			Expect(d.Dispatch(context.Background(), "status", nil)).To(Equal(dispatch.ExitWorkTreeRequired))
			Expect(calls).To(BeEmpty())
		})
	})

	Describe("the pager decision", func() {
		It("honors only the first request", func() {
			d := w.dispatcher(command.Entry{
				Name: "twice",
				Handler: command.HandlerFunc(func(ctx context.Context, inv *command.Invocation) (int, error) {
					inv.Pager.Request("twice", pager.Off)
					inv.Pager.Request("twice", pager.On)
					return 0, nil
				}),
				Capabilities: command.Capabilities{DelaysPagerConfig: true},
			})
			Expect(d.Dispatch(context.Background(), "twice", nil)).To(Equal(0))
			Expect(w.gate.Get()).To(Equal(pager.Disabled))
		})

		It("keeps a --no-pager override", func() {
			w.mkdir(".ctrl")
			Expect(os.Chdir(w.root)).To(Succeed())
			w.tty = true
			w.gate.Set(pager.Disabled)

			d := w.dispatcher(command.Entry{
				Name:         "log",
				Handler:      recording(&calls, 0, "raw\n"),
				Capabilities: command.Capabilities{RequiresControlDir: true, UsesPager: true},
			})
			Expect(d.Dispatch(context.Background(), "log", nil)).To(Equal(0))
			Expect(calls[0].pagerRunning).To(BeFalse())
			Expect(w.stdout.String()).To(Equal("raw\n"))
		})
	})
})
