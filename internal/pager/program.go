package pager

import (
	"os"
	"strings"

	"github.com/gaold/git/internal/config"
	"mvdan.cc/sh/v3/shell"
	"mvdan.cc/sh/v3/syntax"
)

// DefaultProgram is used when nothing else names a pager.
const DefaultProgram = "less"

// ResolveProgram picks the pager program: the explicit override, then
// GIT_PAGER, core.pager, PAGER and finally DefaultProgram. It returns "" when
// the chosen program is empty or "cat", meaning output should not be paged.
func ResolveProgram(explicit string, env config.Env, settings *config.Settings) string {
	program := firstNonEmpty(explicit, env.Pager, settings.CorePager(), env.SystemPager, DefaultProgram)
	program = strings.TrimSpace(program)
	if program == "" || program == "cat" {
		return ""
	}
	return program
}

// commandLine turns a pager program into argv. Programs made of a single
// simple command without expansions are split into words directly; anything
// else (pipes, redirections, variables) runs through the shell.
func commandLine(program string) []string {
	if isSimpleCommand(program) {
		if fields, err := shell.Fields(program, nil); err == nil && len(fields) > 0 {
			return fields
		}
	}
	return []string{detectShell(), "-c", program}
}

func isSimpleCommand(program string) bool {
	parser := syntax.NewParser(syntax.Variant(syntax.LangPOSIX), syntax.KeepComments(false))
	file, err := parser.Parse(strings.NewReader(program), "")
	if err != nil || len(file.Stmts) != 1 {
		return false
	}
	stmt := file.Stmts[0]
	if stmt.Background || stmt.Negated || len(stmt.Redirs) > 0 {
		return false
	}
	call, ok := stmt.Cmd.(*syntax.CallExpr)
	if !ok || len(call.Assigns) > 0 || len(call.Args) == 0 {
		return false
	}
	for _, word := range call.Args {
		for _, part := range word.Parts {
			switch p := part.(type) {
			case *syntax.Lit, *syntax.SglQuoted:
			case *syntax.DblQuoted:
				for _, inner := range p.Parts {
					if _, ok := inner.(*syntax.Lit); !ok {
						return false
					}
				}
			default:
				return false
			}
		}
	}
	return true
}

func detectShell() string {
	if _, err := os.Stat("/bin/sh"); err == nil {
		return "/bin/sh"
	}
	return "sh"
}

// environ returns the pager's environment: the parent's, with LESS and LV
// defaulted and GIT_PAGER_IN_USE set so nested invocations do not page again.
func environ(base []string) []string {
	env := append([]string(nil), base...)
	has := func(key string) bool {
		for _, kv := range env {
			if strings.HasPrefix(kv, key+"=") {
				return true
			}
		}
		return false
	}
	if !has("LESS") {
		env = append(env, "LESS=FRX")
	}
	if !has("LV") {
		env = append(env, "LV=-c")
	}
	return append(env, "GIT_PAGER_IN_USE=true")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
