package pager

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/creack/pty"
	"github.com/gaold/git/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func always(io.Writer) bool { return true }
func never(io.Writer) bool  { return false }

func settingsWith(pager map[string]config.PagerSetting) func() *config.Settings {
	return func() *config.Settings {
		return &config.Settings{Pager: pager}
	}
}

func TestGateFirstWriteWins(t *testing.T) {
	g := NewGate()
	assert.Equal(t, Undecided, g.Get())
	assert.False(t, g.Decided())

	assert.False(t, g.Set(Undecided))
	assert.True(t, g.Set(Disabled))
	assert.False(t, g.Set(Enabled))
	assert.Equal(t, Disabled, g.Get())
	assert.True(t, g.Decided())
}

func TestGateConcurrentSet(t *testing.T) {
	g := NewGate()
	var winners atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d := Enabled
			if i%2 == 0 {
				d = Disabled
			}
			if g.Set(d) {
				winners.Add(1)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int32(1), winners.Load())
	assert.True(t, g.Decided())
}

func TestRequestDefaults(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
		want   Decision
	}{
		{"on", On, Enabled},
		{"off", Off, Disabled},
		{"punt", Punt, Undecided},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(nil, WithTerminalCheck(never))
			c.Request("log", tt.policy)
			assert.Equal(t, tt.want, c.Gate().Get())
			assert.False(t, c.Running())
		})
	}
}

func TestRequestIsSetOnce(t *testing.T) {
	c := New(nil, WithTerminalCheck(never))
	c.Request("log", Off)
	c.Request("log", On)
	assert.Equal(t, Disabled, c.Gate().Get())
}

func TestRequestPuntThenCompatibilityName(t *testing.T) {
	c := New(nil,
		WithTerminalCheck(never),
		WithSettings(settingsWith(map[string]config.PagerSetting{"old-name": {Enabled: true}})),
	)
	c.Request("new-name", Punt)
	assert.Equal(t, Undecided, c.Gate().Get())
	c.Request("old-name", Off)
	assert.Equal(t, Enabled, c.Gate().Get())
}

func TestRequestConfigurationWins(t *testing.T) {
	c := New(nil,
		WithTerminalCheck(never),
		WithSettings(settingsWith(map[string]config.PagerSetting{
			"status": {Enabled: false},
			"diff":   {Enabled: true, Program: "delta"},
		})),
	)
	c.Request("status", On)
	assert.Equal(t, Disabled, c.Gate().Get())

	c = New(nil,
		WithTerminalCheck(never),
		WithSettings(settingsWith(map[string]config.PagerSetting{"diff": {Enabled: true, Program: "delta"}})),
	)
	c.Request("diff", Off)
	assert.Equal(t, Enabled, c.Gate().Get())
	assert.Equal(t, "delta", c.Program())
}

func TestRequestAfterOverride(t *testing.T) {
	gate := NewGate()
	gate.Set(Disabled)
	loaded := false
	c := New(gate, WithTerminalCheck(always), WithSettings(func() *config.Settings {
		loaded = true
		return nil
	}))
	c.Request("log", On)
	assert.Equal(t, Disabled, gate.Get())
	assert.False(t, loaded, "configuration is not consulted once decided")
	assert.False(t, c.Running())
}

func TestRequestInsidePager(t *testing.T) {
	c := New(nil, WithTerminalCheck(always), WithEnv(config.Env{PagerInUse: true}))
	c.Request("log", On)
	assert.Equal(t, Undecided, c.Gate().Get())
	assert.False(t, c.Running())
}

func TestResolveProgram(t *testing.T) {
	core := &config.Settings{Core: config.CoreSettings{Pager: "most"}}
	tests := []struct {
		name     string
		explicit string
		env      config.Env
		settings *config.Settings
		want     string
	}{
		{"default", "", config.Env{}, nil, "less"},
		{"system pager", "", config.Env{SystemPager: "more"}, nil, "more"},
		{"core.pager beats PAGER", "", config.Env{SystemPager: "more"}, core, "most"},
		{"GIT_PAGER beats core.pager", "", config.Env{Pager: "pg"}, core, "pg"},
		{"explicit beats all", "delta", config.Env{Pager: "pg"}, core, "delta"},
		{"cat disables", "", config.Env{Pager: "cat"}, core, ""},
		{"blank disables", "  ", config.Env{}, nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveProgram(tt.explicit, tt.env, tt.settings))
		})
	}
}

func TestCommandLine(t *testing.T) {
	assert.Equal(t, []string{"less"}, commandLine("less"))
	assert.Equal(t, []string{"less", "-R", "-S"}, commandLine("less -R -S"))
	assert.Equal(t, []string{"delta", "--theme", "Monokai Extended"}, commandLine(`delta --theme "Monokai Extended"`))
	assert.Equal(t, []string{"/bin/sh", "-c", "less | cat"}, commandLine("less | cat"))
	assert.Equal(t, []string{"/bin/sh", "-c", "less $OPTS"}, commandLine("less $OPTS"))
	assert.Equal(t, []string{"/bin/sh", "-c", "tee out >/dev/null"}, commandLine("tee out >/dev/null"))
	assert.Equal(t, []string{"/bin/sh", "-c", "LESS=R less"}, commandLine("LESS=R less"))
}

func TestEnviron(t *testing.T) {
	env := environ([]string{"HOME=/root"})
	assert.Contains(t, env, "LESS=FRX")
	assert.Contains(t, env, "LV=-c")
	assert.Contains(t, env, "GIT_PAGER_IN_USE=true")

	env = environ([]string{"LESS=R"})
	assert.Contains(t, env, "LESS=R")
	assert.NotContains(t, env, "LESS=FRX")
}

func TestStartPipesOutputThroughPager(t *testing.T) {
	var stdout, stderr bytes.Buffer
	c := New(nil,
		WithStreams(&stdout, &stderr),
		WithTerminalCheck(always),
		WithEnv(config.Env{Pager: "tr a-z A-Z"}),
	)

	c.Request("log", On)
	require.True(t, c.Running())
	assert.NotSame(t, &stdout, c.Stdout())
	assert.Equal(t, c.Stdout(), c.Stderr(), "stderr follows stdout when it is a terminal")

	_, err := io.WriteString(c.Stdout(), "first line\n")
	require.NoError(t, err)
	_, err = io.WriteString(c.Stderr(), "second line\n")
	require.NoError(t, err)

	require.NoError(t, c.Close())
	assert.Equal(t, "FIRST LINE\nSECOND LINE\n", stdout.String())
	assert.Empty(t, stderr.String())
	assert.False(t, c.Running())
	assert.Same(t, &stdout, c.Stdout())
}

func TestStartKeepsStderrWhenNotTerminal(t *testing.T) {
	var stdout, stderr bytes.Buffer
	c := New(nil,
		WithStreams(&stdout, &stderr),
		WithTerminalCheck(func(w io.Writer) bool { return w == &stdout }),
		WithEnv(config.Env{Pager: "cat -u"}),
	)
	c.Gate().Set(Enabled)
	c.Commit()
	require.True(t, c.Running())

	_, _ = io.WriteString(c.Stderr(), "diagnostic\n")
	_, _ = io.WriteString(c.Stdout(), "paged\n")
	require.NoError(t, c.Close())
	assert.Equal(t, "paged\n", stdout.String())
	assert.Equal(t, "diagnostic\n", stderr.String())
}

func TestPagerAndCommandShareStderr(t *testing.T) {
	var stdout, stderr bytes.Buffer
	c := New(nil,
		WithStreams(&stdout, &stderr),
		WithTerminalCheck(func(w io.Writer) bool { return w == &stdout }),
		WithEnv(config.Env{Pager: "echo from-pager >&2; cat -u"}),
	)
	c.Gate().Set(Enabled)
	c.Commit()
	require.True(t, c.Running())

	for i := 0; i < 50; i++ {
		_, err := io.WriteString(c.Stderr(), "from-command\n")
		require.NoError(t, err)
	}
	require.NoError(t, c.Close())

	assert.Contains(t, stderr.String(), "from-pager\n")
	assert.Equal(t, 50, strings.Count(stderr.String(), "from-command\n"))
	assert.Empty(t, stdout.String())
}

func TestCommitWithoutTerminal(t *testing.T) {
	var stdout bytes.Buffer
	c := New(nil, WithStreams(&stdout, io.Discard), WithTerminalCheck(never), WithEnv(config.Env{Pager: "tr a-z A-Z"}))
	c.Request("log", On)
	assert.Equal(t, Enabled, c.Gate().Get())
	assert.False(t, c.Running())
	assert.Same(t, &stdout, c.Stdout())
}

func TestCatMeansNoPager(t *testing.T) {
	var stdout bytes.Buffer
	c := New(nil, WithStreams(&stdout, io.Discard), WithTerminalCheck(always), WithEnv(config.Env{Pager: "cat"}))
	c.Request("log", On)
	assert.False(t, c.Running())
	assert.NoError(t, c.Close())
}

func TestSpawnFailureFallsBack(t *testing.T) {
	var stdout bytes.Buffer
	c := New(nil,
		WithStreams(&stdout, io.Discard),
		WithTerminalCheck(always),
		WithEnv(config.Env{Pager: filepath.Join(t.TempDir(), "no-such-pager")}),
	)
	c.Request("log", On)
	assert.False(t, c.Running())
	assert.Same(t, &stdout, c.Stdout())
	assert.NoError(t, c.Close())
}

func TestAbortKillsStuckPager(t *testing.T) {
	c := New(nil,
		WithStreams(io.Discard, io.Discard),
		WithTerminalCheck(always),
		WithEnv(config.Env{Pager: "sleep 30"}),
		WithAbortGrace(50*time.Millisecond),
	)
	require.NoError(t, c.Start())
	require.True(t, c.Running())

	start := time.Now()
	err := c.Abort()
	assert.Error(t, err, "a killed pager reports its signal")
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.False(t, c.Running())
}

func TestAbortLetsFinishedPagerExit(t *testing.T) {
	var stdout bytes.Buffer
	c := New(nil,
		WithStreams(&stdout, io.Discard),
		WithTerminalCheck(always),
		WithEnv(config.Env{Pager: "cat -u"}),
	)
	require.NoError(t, c.Start())
	_, _ = io.WriteString(c.Stdout(), "partial")
	assert.NoError(t, c.Abort())
	assert.Equal(t, "partial", stdout.String())
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, IsTerminal(&bytes.Buffer{}))

	f, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer f.Close()
	assert.False(t, IsTerminal(f))

	ptmx, tty, err := pty.Open()
	if err != nil {
		t.Skipf("pty unavailable: %v", err)
	}
	defer ptmx.Close()
	defer tty.Close()
	assert.True(t, IsTerminal(tty))
}
