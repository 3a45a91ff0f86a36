// Package prompt asks the user questions on a line-oriented terminal.
//
// Every question blocks until a line is read. End of input, an interrupt
// (context cancellation) or disabled interaction all yield ErrAborted so the
// caller can exit cleanly instead of crashing.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
)

// ErrAborted means the user (or the environment) declined to answer.
var ErrAborted = errors.New("input aborted")

// Prompter reads answers from in and writes questions to out.
type Prompter struct {
	in          *bufio.Reader
	out         io.Writer
	interactive bool
	lines       chan readResult
}

type readResult struct {
	line string
	err  error
}

// New returns an interactive Prompter.
func New(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out, interactive: true}
}

// NonInteractive makes every question fail with ErrAborted.
func (p *Prompter) NonInteractive() *Prompter {
	p.interactive = false
	return p
}

// Text asks for free text. The answer is returned without its line ending.
func (p *Prompter) Text(ctx context.Context, label string) (string, error) {
	return p.ask(ctx, label+": ")
}

// Confirm asks a yes/no question. Only "y" and "n" are accepted; anything
// else asks again.
func (p *Prompter) Confirm(ctx context.Context, question string) (bool, error) {
	for {
		answer, err := p.ask(ctx, question+" (y/n): ")
		if err != nil {
			return false, err
		}
		switch answer {
		case "y":
			return true, nil
		case "n":
			return false, nil
		}
		fmt.Fprintln(p.out, "Invalid input, please enter y or n")
	}
}

// Choice asks until the answer is one of choices.
func (p *Prompter) Choice(ctx context.Context, label string, choices []string) (string, error) {
	if len(choices) == 0 {
		return "", fmt.Errorf("prompt %q has no choices", label)
	}
	for {
		answer, err := p.ask(ctx, fmt.Sprintf("%s (%s): ", label, strings.Join(choices, ", ")))
		if err != nil {
			return "", err
		}
		if slices.Contains(choices, answer) {
			return answer, nil
		}
		fmt.Fprintln(p.out, "Invalid input, please enter one of the choices")
	}
}

// Int asks until the answer parses as an integer.
func (p *Prompter) Int(ctx context.Context, label string) (int, error) {
	for {
		answer, err := p.ask(ctx, label+": ")
		if err != nil {
			return 0, err
		}
		n, convErr := strconv.Atoi(strings.TrimSpace(answer))
		if convErr == nil {
			return n, nil
		}
		fmt.Fprintln(p.out, "Invalid input, please enter an integer")
	}
}

// ask writes the prompt and waits for one line or for ctx to end.
func (p *Prompter) ask(ctx context.Context, prompt string) (string, error) {
	if !p.interactive {
		return "", fmt.Errorf("%w: %q needs an answer but interaction is disabled", ErrAborted, strings.TrimSpace(prompt))
	}

	fmt.Fprint(p.out, prompt)

	// A single reader goroutine at a time; a read abandoned by cancellation
	// is picked up by the next question.
	if p.lines == nil {
		p.lines = make(chan readResult, 1)
		go p.readLine(p.lines)
	}

	select {
	case <-ctx.Done():
		fmt.Fprintln(p.out)
		return "", fmt.Errorf("%w: %v", ErrAborted, ctx.Err())
	case res := <-p.lines:
		p.lines = nil
		if res.err != nil {
			fmt.Fprintln(p.out)
			return "", fmt.Errorf("%w: %v", ErrAborted, res.err)
		}
		return res.line, nil
	}
}

func (p *Prompter) readLine(ch chan<- readResult) {
	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		ch <- readResult{err: err}
		return
	}
	ch <- readResult{line: strings.TrimRight(line, "\r\n")}
}

// Answer is a Confirmer that never asks and always returns its value.
type Answer bool

// Confirm returns bool(a).
func (a Answer) Confirm(context.Context, string) (bool, error) {
	return bool(a), nil
}
