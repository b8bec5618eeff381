package dispatch

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/gaold/git/internal/logging"
)

// fatal writes "fatal: <err>" to w and logs err.
func (d *Dispatcher) fatal(w io.Writer, err error) {
	logging.Debug().Err(err).Msg("fatal")
	fmt.Fprintf(w, "%s %v\n", d.paint(color.FgRed, "fatal:"), err)
}

func (d *Dispatcher) unknown(w io.Writer, name string) {
	if d.Unknown != nil {
		d.Unknown(w, name)
		return
	}
	fmt.Fprintf(w, "git: '%s' is not a git command. See 'git help'.\n", name)
}

func (d *Dispatcher) paint(attr color.Attribute, s string) string {
	c := color.New(attr, color.Bold)
	if d.Color {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c.Sprint(s)
}
