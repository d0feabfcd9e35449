package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// terminalPrompter asks the operator for login codes on the terminal.
type terminalPrompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newTerminalPrompter(in io.Reader, out io.Writer) *terminalPrompter {
	return &terminalPrompter{in: bufio.NewReader(in), out: out}
}

func (p *terminalPrompter) Code(ctx context.Context) (string, error) {
	return p.ask(ctx, "Enter the login code Telegram sent you: ")
}

func (p *terminalPrompter) Password(ctx context.Context) (string, error) {
	return p.ask(ctx, "Enter your two-step verification password: ")
}

func (p *terminalPrompter) ask(ctx context.Context, label string) (string, error) {
	fmt.Fprint(p.out, label)

	type answer struct {
		line string
		err  error
	}
	ch := make(chan answer, 1)
	go func() {
		line, err := p.in.ReadString('\n')
		ch <- answer{strings.TrimSpace(line), err}
	}()

	select {
	case a := <-ch:
		if a.line == "" {
			if a.err != nil {
				return "", a.err
			}
			return "", errors.New("empty answer")
		}
		return a.line, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// noPrompter is used where nobody can answer, such as the daemon.
type noPrompter struct{}

var errInteractiveLogin = errors.New("session needs an interactive login; run `whoisscan scan live` once first")

func (noPrompter) Code(context.Context) (string, error)     { return "", errInteractiveLogin }
func (noPrompter) Password(context.Context) (string, error) { return "", errInteractiveLogin }
