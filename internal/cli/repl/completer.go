package repl

import (
	"sort"
	"strings"
)

// Completer provides command suggestions for the REPL.
type Completer struct {
	commands []string
	roots    map[string]struct{}
}

// DefaultCommands lists the command lines the shell understands.
var DefaultCommands = []string{
	"login", "logout", "status", "refresh",
	"fetch", "config show", "version",
	"help", "history", "exit", "quit",
}

// NewCompleter creates a Completer over the given commands, or
// DefaultCommands when none are given.
func NewCompleter(commands ...string) *Completer {
	if len(commands) == 0 {
		commands = DefaultCommands
	}
	c := &Completer{
		commands: append([]string(nil), commands...),
		roots:    make(map[string]struct{}),
	}
	sort.Strings(c.commands)
	for _, cmd := range c.commands {
		root, _, _ := strings.Cut(cmd, " ")
		c.roots[root] = struct{}{}
	}
	return c
}

// Complete returns completion suggestions for the given prefix.
func (c *Completer) Complete(prefix string) []string {
	var suggestions []string
	for _, cmd := range c.commands {
		if strings.HasPrefix(cmd, prefix) {
			suggestions = append(suggestions, cmd)
		}
	}
	return suggestions
}

// Known reports whether name is a top-level command.
func (c *Completer) Known(name string) bool {
	_, ok := c.roots[name]
	return ok
}

// Suggest returns top-level commands within edit distance 2 of name.
func (c *Completer) Suggest(name string) []string {
	var out []string
	for root := range c.roots {
		if distance(name, root) <= 2 {
			out = append(out, root)
		}
	}
	sort.Strings(out)
	return out
}

// distance is the Levenshtein distance between a and b.
func distance(a, b string) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
