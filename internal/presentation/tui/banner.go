package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the raysim banner to w.
func PrintBanner(w io.Writer) {
	p := profile(w)
	lines := []struct {
		text, color string
	}{
		{" _ __ __ _ _   _ ___(_)_ __ ___  ", "#38bdf8"},
		{"| '__/ _` | | | / __| | '_ ` _ \\ ", "#60a5fa"},
		{"| | | (_| | |_| \\__ \\ | | | | | |", "#818cf8"},
		{"|_|  \\__,_|\\__, |___/_|_| |_| |_|", "#a78bfa"},
		{"           |___/                 ", "#c084fc"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, p.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}

func profile(w io.Writer) termenv.Profile {
	if !IsTerminal(w) {
		return termenv.Ascii
	}
	return termenv.ColorProfile()
}
