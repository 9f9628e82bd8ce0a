package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"vidgrab/internal/resolver"
	"vidgrab/pkg/urls"
)

// LineReader supplies one line of user input per prompt. Implementations
// trim surrounding whitespace before returning the line.
type LineReader interface {
	Line(prompt string) (string, error)
}

// Readline reads interactive input from the terminal with line editing and
// history. Close releases the terminal when the app shuts down.
type Readline struct {
	rl *readline.Instance
}

var _ LineReader = (*Readline)(nil)

// NewReadline opens the terminal for interactive input.
func NewReadline() (*Readline, error) {
	rl, err := readline.New("")
	if err != nil {
		return nil, fmt.Errorf("init readline: %w", err)
	}

	return &Readline{rl: rl}, nil
}

// Line asks one question. Ctrl-C surfaces as readline.ErrInterrupt and
// Ctrl-D as io.EOF, both of which end the menu session.
func (r *Readline) Line(prompt string) (string, error) {
	r.rl.SetPrompt(prompt)

	line, err := r.rl.Readline()
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}

	return strings.TrimSpace(line), nil
}

// Close releases the terminal.
func (r *Readline) Close() error {
	return r.rl.Close()
}

// quitInput reports whether an input error means the user closed the session
// rather than something actually failing.
func quitInput(err error) bool {
	return errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF)
}

// CredentialPrompt adapts interactive input into the resolver's credential
// callback: when a site wants authentication, ask the user for a cookie
// file. An empty answer skips the item.
func CredentialPrompt(in LineReader, out io.Writer) resolver.CredentialFunc {
	return func(_ context.Context, url string) (string, error) {
		warnText.Fprintf(out, "\nAuthentication required for %s\n", url)

		line, err := in.Line("Cookie file path (Enter skips): ")
		if err != nil {
			return "", err
		}

		return urls.CleanLink(line), nil
	}
}
