// Package diag implements the diagnostic types shared by the parser and the
// CLI's error reporting (the ir builders' precondition checks panic with
// ir's own error type, which the parser records as a diagnostic). It
// generalizes the teacher's structured error type (a message plus a source
// location) into the four severities spec.md §7 names.
package diag

import (
	"fmt"
	"strings"
)

// Severity classifies a Diagnostic per spec.md §7's error kinds.
type Severity int

const (
	Precondition Severity = iota
	Parse
	Backend
	Resource
)

func (s Severity) String() string {
	switch s {
	case Precondition:
		return "precondition"
	case Parse:
		return "parse"
	case Backend:
		return "backend"
	case Resource:
		return "resource"
	default:
		return "error"
	}
}

// Diagnostic is one reported problem, optionally located in source text.
type Diagnostic struct {
	Severity Severity
	File     string
	Line     int
	Col      int
	EndLine  int
	EndCol   int
	Message  string
}

// Error implements the error interface so a Diagnostic can be panicked or
// returned anywhere an error is expected.
func (d *Diagnostic) Error() string {
	var b strings.Builder
	if d.File != "" {
		fmt.Fprintf(&b, "%s:", d.File)
		if d.Line > 0 {
			fmt.Fprintf(&b, "%d:%d: ", d.Line, d.Col)
		} else {
			b.WriteByte(' ')
		}
	}
	fmt.Fprintf(&b, "%s: %s", d.Severity, d.Message)
	return b.String()
}

// New builds a Diagnostic with no source location (precondition/backend
// reporting typically has none).
func New(sev Severity, format string, args ...any) *Diagnostic {
	return &Diagnostic{Severity: sev, Message: fmt.Sprintf(format, args...)}
}

// Atf builds a Diagnostic located at a single line/column.
func Atf(sev Severity, file string, line, col int, format string, args ...any) *Diagnostic {
	return &Diagnostic{Severity: sev, File: file, Line: line, Col: col, EndLine: line, EndCol: col, Message: fmt.Sprintf(format, args...)}
}

// Bag accumulates diagnostics up to a cap, matching spec.md §7's "continues
// to collect further errors up to a cap" parse-error policy.
type Bag struct {
	Cap   int
	items []*Diagnostic
}

// NewBag creates a Bag that stops accepting diagnostics after maxItems
// entries. A maxItems of 0 means unlimited.
func NewBag(maxItems int) *Bag {
	return &Bag{Cap: maxItems}
}

// Add appends d to the bag unless the cap has been reached. It reports
// whether the bag is now full (the caller should stop producing more).
func (b *Bag) Add(d *Diagnostic) (full bool) {
	if b.Cap > 0 && len(b.items) >= b.Cap {
		return true
	}
	b.items = append(b.items, d)
	return b.Cap > 0 && len(b.items) >= b.Cap
}

// Len reports how many diagnostics the bag holds.
func (b *Bag) Len() int { return len(b.items) }

// Empty reports whether the bag holds no diagnostics.
func (b *Bag) Empty() bool { return len(b.items) == 0 }

// Items returns the accumulated diagnostics in report order.
func (b *Bag) Items() []*Diagnostic { return b.items }

// ansiColor maps a Severity to the SGR code used when styling is enabled.
func ansiColor(sev Severity) string {
	switch sev {
	case Precondition:
		return "35" // magenta
	case Parse:
		return "31" // red
	case Backend:
		return "33" // yellow
	case Resource:
		return "31" // red
	default:
		return "0"
	}
}

// Render formats every diagnostic in the bag, one per line, optionally
// styled with ANSI color codes (disabled by the CLI's --no-color flag).
func (b *Bag) Render(color bool) string {
	var out strings.Builder
	for _, d := range b.items {
		if color {
			fmt.Fprintf(&out, "\x1b[%sm%s\x1b[0m\n", ansiColor(d.Severity), d.Error())
		} else {
			fmt.Fprintf(&out, "%s\n", d.Error())
		}
	}
	return out.String()
}
