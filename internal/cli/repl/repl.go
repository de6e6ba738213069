package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/yndnr/crmdesk-go/internal/cli/output"
	"github.com/yndnr/crmdesk-go/internal/core/domain"
	"github.com/yndnr/crmdesk-go/internal/core/gate"
)

// ExecFunc runs one command line, already split into arguments.
type ExecFunc func(ctx context.Context, args []string) error

// REPL represents the Read-Eval-Print Loop.
type REPL struct {
	input     io.Reader
	reader    *bufio.Reader
	output    io.Writer
	completer *Completer
	history   *History
	exec      ExecFunc
	session   func() *domain.Session

	mu      sync.Mutex
	route   gate.Route
	subject string
	spinner *output.Spinner
}

// Option configures a REPL.
type Option func(*REPL)

// WithIO sets the input and output streams.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(r *REPL) {
		r.input = in
		r.output = out
	}
}

// WithHistory sets the history store.
func WithHistory(h *History) Option {
	return func(r *REPL) {
		r.history = h
	}
}

// WithExecutor sets the function that runs non-builtin commands.
func WithExecutor(fn ExecFunc) Option {
	return func(r *REPL) {
		r.exec = fn
	}
}

// WithSession sets the snapshot source for the prompt and for command
// routing. Without it the REPL uses the last route seen by Follow.
func WithSession(fn func() *domain.Session) Option {
	return func(r *REPL) {
		r.session = fn
	}
}

// commandRoutes lists the commands bound to one gate route.
var commandRoutes = map[string]gate.Route{
	"login": gate.RouteLogin,
	"fetch": gate.RouteShell,
}

// New creates a new REPL instance.
func New(opts ...Option) *REPL {
	r := &REPL{
		input:     os.Stdin,
		output:    os.Stdout,
		completer: NewCompleter(),
		history:   NewHistory(""),
		exec:      func(context.Context, []string) error { return nil },
		route:     gate.RouteLoading,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.reader = bufio.NewReader(r.input)
	r.spinner = output.NewSpinner(lockedWriter{r}, "Restoring session")
	return r
}

// Input returns the buffered reader the loop reads lines from. Commands
// that prompt for more input must read through it.
func (r *REPL) Input() io.Reader {
	return r.reader
}

// Follow tracks the gate route for the prompt and announces every change.
// It blocks until ctx ends or src closes.
func (r *REPL) Follow(ctx context.Context, src gate.Source) error {
	return gate.Watch(ctx, src, r.onRoute)
}

func (r *REPL) onRoute(route gate.Route, s *domain.Session) {
	if route == gate.RouteLoading {
		r.setRoute(route, "")
		r.spinner.Start()
		return
	}
	r.spinner.Stop()

	subject := ""
	if s != nil {
		subject = s.SubjectID()
	}
	r.setRoute(route, subject)

	switch route {
	case gate.RouteShell:
		r.printf("Signed in as %s.\n", subject)
	case gate.RouteLogin:
		msg := "Not signed in. Use `login` to sign in."
		if s != nil && s.LastError != "" {
			msg = "Could not read the saved session (" + s.LastError + "). Use `login` to sign in."
		}
		r.printf("%s\n", msg)
	}
}

func (r *REPL) setRoute(route gate.Route, subject string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.route = route
	r.subject = subject
}

func (r *REPL) current() (gate.Route, string) {
	if r.session != nil {
		s := r.session()
		if s == nil {
			return gate.RouteLoading, ""
		}
		return gate.Decide(s), s.SubjectID()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.route, r.subject
}

// Route returns the route the prompt currently reflects.
func (r *REPL) Route() gate.Route {
	route, _ := r.current()
	return route
}

// Prompt returns the prompt for the current route.
func (r *REPL) Prompt() string {
	route, subject := r.current()
	switch route {
	case gate.RouteShell:
		return "crmdesk[" + subject + "]> "
	case gate.RouteLogin:
		return "crmdesk[login]> "
	default:
		return "crmdesk[...]> "
	}
}

// Run starts the REPL loop. It returns nil on exit, quit or end of input.
func (r *REPL) Run(ctx context.Context) error {
	defer r.spinner.Stop()

	for ctx.Err() == nil {
		r.printf("%s", r.Prompt())

		line, err := r.reader.ReadString('\n')
		if errors.Is(err, io.EOF) && line == "" {
			r.printf("\n")
			return nil
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}

		args, perr := SplitArgs(line)
		if perr != nil {
			r.printf("Error: %v\n", perr)
			continue
		}
		if len(args) == 0 {
			continue
		}
		r.history.Add(line)

		switch args[0] {
		case "exit", "quit":
			return nil
		case "help":
			r.help(args[1:])
			continue
		case "history":
			for i, entry := range r.history.Entries() {
				r.printf("%4d  %s\n", i+1, entry)
			}
			continue
		}

		if !r.completer.Known(args[0]) {
			r.printf("Unknown command %q.", args[0])
			if s := r.completer.Suggest(args[0]); len(s) > 0 {
				r.printf(" Did you mean: %s?", strings.Join(s, ", "))
			}
			r.printf("\n")
			continue
		}

		if want, ok := commandRoutes[args[0]]; ok {
			if route := r.Route(); route != want {
				r.printf("%s\n", unavailable(route))
				continue
			}
		}

		if err := r.exec(ctx, args); err != nil {
			r.printf("Error: %v\n", err)
		}
	}
	return ctx.Err()
}

func unavailable(route gate.Route) string {
	switch route {
	case gate.RouteShell:
		return "Already signed in. Use `logout` first."
	case gate.RouteLogin:
		return "Not signed in. Use `login` first."
	default:
		return "The session is still loading."
	}
}

func (r *REPL) help(args []string) {
	prefix := strings.Join(args, " ")
	for _, cmd := range r.completer.Complete(prefix) {
		r.printf("  %s\n", cmd)
	}
}

func (r *REPL) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.output, format, args...)
}

// lockedWriter serializes spinner frames with prompt output.
type lockedWriter struct {
	r *REPL
}

func (w lockedWriter) Write(p []byte) (int, error) {
	w.r.mu.Lock()
	defer w.r.mu.Unlock()
	return w.r.output.Write(p)
}

// SplitArgs splits a command line on whitespace, honoring single and
// double quotes.
func SplitArgs(line string) ([]string, error) {
	var (
		args    []string
		current strings.Builder
		quote   rune
		inArg   bool
	)

	for _, c := range line {
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
				continue
			}
			current.WriteRune(c)
		case c == '"' || c == '\'':
			quote = c
			inArg = true
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			if inArg {
				args = append(args, current.String())
				current.Reset()
				inArg = false
			}
		default:
			current.WriteRune(c)
			inArg = true
		}
	}

	if quote != 0 {
		return nil, errors.New("unterminated quote")
	}
	if inArg {
		args = append(args, current.String())
	}
	return args, nil
}
