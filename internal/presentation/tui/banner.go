package tui

import (
	"fmt"
	"io"
	"os"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

var bannerLines = []struct {
	text  string
	color string
}{
	{`                        _                       `, "#38bdf8"},
	{`   ___ ___   __ ___ __| |_ ___ _ __ _ __ ___    `, "#22d3ee"},
	{`  / __/ _ \ / _' \ \/ /  _/ -_) '_/| '  ' _ \   `, "#2dd4bf"},
	{` | (_| (_) | (_| |>  <| ||  __/ |  | || || | |  `, "#34d399"},
	{`  \___\___/ \__,_/_/\_\\__\___|_|  |_||_||_|_|  `, "#4ade80"},
}

// PrintBanner writes the startup banner and version to w.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	p := out.ColorProfile()

	fmt.Fprintln(w)
	for _, line := range bannerLines {
		fmt.Fprintln(w, out.String(line.text).Foreground(p.Color(line.color)))
	}
	fmt.Fprintln(w, out.String("  coaxterm "+version).Faint())
	fmt.Fprintln(w)
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
