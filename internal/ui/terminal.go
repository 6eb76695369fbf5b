// Package ui renders pipeline reports and prompts in the terminal.
package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

const (
	symbolInfo    = "✓"
	symbolWarning = "!"
	symbolError   = "✗"
)

// Terminal presents reports on a writer and asks yes/no questions through
// huh forms. It satisfies both grab.Presenter and bootstrap.Confirmer.
type Terminal struct {
	mu          sync.Mutex
	out         io.Writer
	in          io.Reader
	interactive bool
	accessible  bool
}

// NewTerminal creates a presenter bound to the process's stdio. Prompts are
// only shown when stdin is a terminal; accessible mode is used when stdout
// is not one.
func NewTerminal() *Terminal {
	stdinTTY := term.IsTerminal(int(os.Stdin.Fd()))
	stdoutTTY := term.IsTerminal(int(os.Stdout.Fd()))
	return &Terminal{
		out:         os.Stdout,
		in:          os.Stdin,
		interactive: stdinTTY,
		accessible:  stdinTTY && !stdoutTTY,
	}
}

// NewTerminalWith creates a presenter on explicit streams.
func NewTerminalWith(out io.Writer, in io.Reader, interactive, accessible bool) *Terminal {
	return &Terminal{out: out, in: in, interactive: interactive, accessible: accessible}
}

func (t *Terminal) Info(title, message string) {
	t.render(SuccessStyle, symbolInfo, title, message)
}

func (t *Terminal) Warning(title, message string) {
	t.render(WarningStyle, symbolWarning, title, message)
}

func (t *Terminal) Error(title, message string) {
	t.render(ErrorStyle, symbolError, title, message)
}

func (t *Terminal) render(style lipgloss.Style, symbol, title, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	headline, body, _ := strings.Cut(message, "\n")
	fmt.Fprintf(t.out, "%s %s %s\n", style.Render(symbol), TitleStyle.Render(title+":"), headline)
	if body == "" {
		return
	}
	fmt.Fprintln(t.out, detailStyle.Render(highlightCommand(body)))
}

// highlightCommand styles the "Command:" lines of a report body.
func highlightCommand(body string) string {
	lines := strings.Split(strings.TrimRight(body, "\n"), "\n")
	for i, line := range lines {
		if rest, ok := strings.CutPrefix(line, "Command: "); ok {
			lines[i] = SubtitleStyle.Render("Command: ") + CmdStyle.Render(rest)
		}
	}
	return strings.Join(lines, "\n")
}

// Confirm asks a yes/no question. Without an interactive terminal it answers
// no; aborting the prompt also counts as no. A done ctx closes the prompt and
// returns ctx.Err().
func (t *Terminal) Confirm(ctx context.Context, title, message, yes, no string) (bool, error) {
	if !t.interactive {
		return false, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	var accepted bool
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(title).
			Description(message).
			Affirmative(yes).
			Negative(no).
			Value(&accepted),
	)).
		WithAccessible(t.accessible).
		WithInput(t.in).
		WithOutput(t.out)

	if err := form.RunWithContext(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, fmt.Errorf("prompt failed: %w", err)
	}
	return accepted, nil
}
