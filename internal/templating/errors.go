package templating

import (
	"errors"
	"fmt"
)

// ErrTemplating matches every *Error through errors.Is.
var ErrTemplating = errors.New("templating error")

// Kind separates failures in the template itself from failures while evaluating it.
type Kind int

const (
	// KindSyntax covers malformed templates: unclosed placeholders, unparsable expressions.
	KindSyntax Kind = iota
	// KindLoader covers references to templates that do not exist.
	KindLoader
	// KindRuntime covers failures while evaluating against the data.
	KindRuntime
)

func (k Kind) String() string {
	switch k {
	case KindSyntax:
		return "syntax"
	case KindLoader:
		return "loader"
	case KindRuntime:
		return "runtime"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is returned by every Engine.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("template %s error: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is ErrTemplating or an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	if target == ErrTemplating {
		return true
	}
	var other *Error
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}
	return false
}
