// Package rpkierr centralizes error construction for the core: every
// error surfaces to the top-level caller with the path of the object
// under construction (spec.md section 7), and advisory conditions are
// reported on a Warnings channel rather than swallowed.
package rpkierr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an error per spec.md section 7.
type Kind int

const (
	// KindInput covers bad CIDR/AS/vCard fields, out-of-range
	// maxLength, and inherited-vs-explicit resource conflicts.
	KindInput Kind = iota
	// KindConsistency covers an EE requesting resources its issuer
	// doesn't hold, and an empty manifest fileList.
	KindConsistency
	// KindEncoding covers ASN.1 constraint violations.
	KindEncoding
	// KindCrypto covers key-generation and signing failures.
	KindCrypto
	// KindIO covers publication planner filesystem failures.
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindConsistency:
		return "consistency"
	case KindEncoding:
		return "encoding"
	case KindCrypto:
		return "crypto"
	case KindIO:
		return "io"
	default:
		return "unknown"
	}
}

// Error is a core error annotated with the object path under
// construction, e.g. "TA/CA1/<hex>.roa".
type Error struct {
	Kind Kind
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s at %s: %v", e.Kind, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap annotates err with a kind and construction path, preserving the
// causal chain via github.com/pkg/errors so callers retain a stack.
func Wrap(kind Kind, path string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Path: path, Err: errors.WithStack(err)}
}

// Wrapf is Wrap with a formatted message prepended to err.
func Wrapf(kind Kind, path string, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return Wrap(kind, path, errors.Wrapf(err, format, args...))
}

// Warnings is an advisory-condition sink (spec.md section 7). The
// zero value discards warnings; construction code should always be
// handed a non-nil Warnings via context so operators see pruning and
// similar advisories.
type Warnings chan string

// NewWarnings returns a buffered Warnings channel.
func NewWarnings() Warnings {
	return make(Warnings, 64)
}

// Emit records a warning without blocking construction; a full buffer
// drops the warning rather than stalling the pipeline, since warnings
// are advisory by definition.
func (w Warnings) Emit(format string, args ...any) {
	if w == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	select {
	case w <- msg:
	default:
	}
}

// Drain returns and removes all currently buffered warnings.
func (w Warnings) Drain() []string {
	if w == nil {
		return nil
	}
	var out []string
	for {
		select {
		case msg := <-w:
			out = append(out, msg)
		default:
			return out
		}
	}
}
