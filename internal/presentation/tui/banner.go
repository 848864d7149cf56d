package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/muesli/termenv"
)

// PrintBanner writes the storyline banner and version to out.
func PrintBanner(out io.Writer, version string) {
	p := termenv.ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{"  ___ _                  _ _          ", "#38bdf8"},
		{" / __| |_ ___ _ _ _  _  | (_)_ _  ___ ", "#60a5fa"},
		{" \\__ \\  _/ _ \\ '_| || | | | | ' \\/ -_)", "#818cf8"},
		{" |___/\\__\\___/_|  \\_, | |_|_|_||_\\___|", "#a78bfa"},
		{"                  |__/                ", "#c084fc"},
	}

	fmt.Fprintln(out)
	for _, l := range lines {
		fmt.Fprintln(out, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(out, termenv.String("  v"+strings.TrimSpace(version)).Faint())
	fmt.Fprintln(out)
}
