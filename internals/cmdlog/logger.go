// Package cmdlog loggs pretty stuff to the console
package cmdlog

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/jwalton/gchalk"
	"github.com/mattn/go-isatty"
)

// Logger loggs pretty stuff to the console
type Logger struct {
	emojis    bool
	color     bool
	indention int
}

// helper for indention
func (l *Logger) println(a string) {
	fmt.Println(strings.Repeat(" ", l.indention) + a)
}

// printEmoji prints string e only when emojis are enabled
func (l *Logger) printEmoji(e string) {
	if l.emojis {
		fmt.Print(e + " ")
	}
}

// Headline prints a bold cyan line
func (l *Logger) Headline(s string) {
	fmt.Println(gchalk.Bold(gchalk.Cyan(s)))
}

// Info prints a "normal" line
func (l *Logger) Info(s string) {
	l.println(s)
}

// Log prints a dimmed line
func (l *Logger) Log(s string) {
	fmt.Println(gchalk.Dim(s))
}

// Warn will print a warning
func (l *Logger) Warn(s string) {
	l.printEmoji("⚠️ ")
	fmt.Println(gchalk.Bold(gchalk.Yellow(s)))
}

// Fail will print the given message and then exit 1
func (l *Logger) Fail(s string) {
	l.printEmoji("💣")
	fmt.Print(gchalk.Bold(gchalk.Red("Error: ")))
	fmt.Println(gchalk.Bold(s))
	os.Exit(1)
}

// New returns a new Logger
func New() *Logger {
	emojis := runtime.GOOS != "windows"
	colorToggle := isatty.IsTerminal(os.Stdout.Fd())

	// disable color for CI
	if os.Getenv("CI") != "" {
		emojis = false
		colorToggle = false
	}
	if !colorToggle {
		gchalk.SetLevel(gchalk.LevelNone)
	}
	return &Logger{emojis: emojis, color: colorToggle}
}
