// Package console serializes everything the node prints for the operator.
//
// The command loop, the acceptor and every receiver goroutine write here.
// One mutex covers both streams so a line is never torn by another writer.
package console

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

const (
	DefaultPrompt = "> "

	colorMagenta = "\033[0;35m"
	colorReset   = "\033[0m"
)

type Options struct {
	Out    io.Writer
	Err    io.Writer
	Prompt string
	Color  bool
}

type Console struct {
	mu     sync.Mutex
	out    io.Writer
	err    io.Writer
	prompt string
	color  bool
}

// New fills unset options with stdout/stderr and the default prompt.
func New(opts Options) *Console {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Err == nil {
		opts.Err = os.Stderr
	}
	if opts.Prompt == "" {
		opts.Prompt = DefaultPrompt
	}
	return &Console{
		out:    opts.Out,
		err:    opts.Err,
		prompt: opts.Prompt,
		color:  opts.Color,
	}
}

// Printf writes command output. A trailing newline is added if missing.
func (c *Console) Printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprint(c.out, line(fmt.Sprintf(format, args...)))
}

// Errorf writes a diagnostic to the error stream.
func (c *Console) Errorf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprint(c.err, line(fmt.Sprintf(format, args...)))
}

// Notify prints something that happened in the background (new peer,
// incoming message, disconnect) on its own lines and then re-prints the
// prompt, since the operator was probably sitting at it.
func (c *Console) Notify(lines ...string) {
	var b strings.Builder
	b.WriteString("\n")
	for _, l := range lines {
		b.WriteString(line(l))
	}
	b.WriteString(c.prompt)

	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprint(c.out, b.String())
}

// Prompt prints the input prompt without a newline.
func (c *Console) Prompt() {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprint(c.out, c.prompt)
}

// Highlight wraps s in magenta when colour output is on.
func (c *Console) Highlight(s string) string {
	if !c.color {
		return s
	}
	return colorMagenta + s + colorReset
}

func line(s string) string {
	if strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
