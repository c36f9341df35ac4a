package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/clinicboard/clinicboard/internal/platform/feedback"
)

// promptConfirmer asks on the terminal. assumeYes answers every prompt.
type promptConfirmer struct {
	in        *bufio.Reader
	out       io.Writer
	assumeYes bool
}

func (p *promptConfirmer) Confirm(_ context.Context, prompt string) (bool, error) {
	if p.assumeYes {
		return true, nil
	}
	answer, err := readLine(p.in, p.out, prompt+" [y/N]: ")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

// routeTracker remembers the last route the dispatcher asked for. A
// terminal has no screens to switch, so the route is only logged.
type routeTracker struct {
	logger zerolog.Logger
	route  string
}

func (r *routeTracker) Navigate(route string) {
	r.route = route
	r.logger.Debug().Str("route", route).Msg("navigate")
}

// noticePrinter writes each notice as one line instead of a toast.
type noticePrinter struct {
	out io.Writer
}

func (p noticePrinter) Notify(message string, severity feedback.Severity) feedback.Notice {
	fmt.Fprintf(p.out, "[%s] %s\n", severity, message)
	return feedback.Notice{Message: message, Severity: severity, CreatedAt: time.Now()}
}

// readSecret reads without echo when stdin is a terminal and falls back to
// readLine for pipes and files.
func readSecret(stdin io.Reader, in *bufio.Reader, out io.Writer, prompt string) (string, error) {
	f, ok := stdin.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return readLine(in, out, prompt)
	}
	fmt.Fprint(out, prompt)
	b, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(out)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func readLine(in *bufio.Reader, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	line, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
