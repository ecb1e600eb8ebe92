package builder

import (
	"strings"

	"github.com/google/uuid"
)

// Flag is one named option in an argument vector. Switches carry no value.
type Flag struct {
	Name   string
	Value  string
	Switch bool
}

// Invocation is a fully assembled command for one external tool. It is built
// on demand and consumed immediately by a runner; nothing persists it.
type Invocation struct {
	ID         string
	Tool       Tool
	Binary     string
	Positional []string
	Flags      []Flag
	Extra      []string // free-form user arguments, passed through last
	WorkDir    string

	// Notices are human-readable remarks produced while building, such as
	// which capability-gated flags were enabled.
	Notices []string
}

func newInvocation(tool Tool, binary string) *Invocation {
	return &Invocation{
		ID:     uuid.NewString(),
		Tool:   tool,
		Binary: binary,
	}
}

// addFlag appends a valued flag. Empty values contribute nothing.
func (inv *Invocation) addFlag(name, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	inv.Flags = append(inv.Flags, Flag{Name: name, Value: value})
}

func (inv *Invocation) addSwitch(name string) {
	inv.Flags = append(inv.Flags, Flag{Name: name, Switch: true})
}

func (inv *Invocation) addPositional(values ...string) {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			inv.Positional = append(inv.Positional, v)
		}
	}
}

func (inv *Invocation) notice(msg string) {
	inv.Notices = append(inv.Notices, msg)
}

// Args returns the argument vector without the binary: positional arguments
// first, then flags in declaration order, then extra arguments.
func (inv *Invocation) Args() []string {
	args := make([]string, 0, len(inv.Positional)+2*len(inv.Flags)+len(inv.Extra))
	args = append(args, inv.Positional...)
	for _, f := range inv.Flags {
		args = append(args, f.Name)
		if !f.Switch {
			args = append(args, f.Value)
		}
	}
	return append(args, inv.Extra...)
}

// Argv returns the binary followed by Args.
func (inv *Invocation) Argv() []string {
	return append([]string{inv.Binary}, inv.Args()...)
}

// FlagValue reports the value of the first flag with the given name.
func (inv *Invocation) FlagValue(name string) (string, bool) {
	for _, f := range inv.Flags {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// HasFlag reports whether a flag or switch with the given name is present.
func (inv *Invocation) HasFlag(name string) bool {
	_, ok := inv.FlagValue(name)
	return ok
}

// String renders the command as a POSIX shell line.
func (inv *Invocation) String() string {
	return ShellJoin(inv.Argv())
}

// ShellJoin quotes each argument for a POSIX shell and joins them with spaces.
func ShellJoin(argv []string) string {
	quoted := make([]string, len(argv))
	for i, a := range argv {
		quoted[i] = ShellQuote(a)
	}
	return strings.Join(quoted, " ")
}

// ShellQuote returns s unchanged when it needs no quoting, otherwise wraps it
// in single quotes.
func ShellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if strings.IndexFunc(s, needsQuote) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func needsQuote(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	}
	return !strings.ContainsRune("_-./:=,+@%", r)
}
