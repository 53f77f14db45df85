package query

import (
	"errors"
	"fmt"
)

var (
	ErrBinding = errors.New("query binding error")
	ErrSyntax  = errors.New("query syntax error")
)

// BindingError reports a placeholder that could not be bound to a value.
type BindingError struct {
	Placeholder string
	Reason      string
}

func (e *BindingError) Error() string {
	return fmt.Sprintf("cannot bind %s: %s", e.Placeholder, e.Reason)
}

func (e *BindingError) Unwrap() error {
	return ErrBinding
}

// SyntaxError reports a malformed template fragment.
type SyntaxError struct {
	Fragment string
	Reason   string
}

func (e *SyntaxError) Error() string {
	if e.Fragment == "" {
		return fmt.Sprintf("invalid query: %s", e.Reason)
	}
	return fmt.Sprintf("invalid query near %q: %s", e.Fragment, e.Reason)
}

func (e *SyntaxError) Unwrap() error {
	return ErrSyntax
}

func bindingErr(placeholder, format string, args ...any) error {
	return &BindingError{Placeholder: placeholder, Reason: fmt.Sprintf(format, args...)}
}

func syntaxErr(fragment, format string, args ...any) error {
	return &SyntaxError{Fragment: fragment, Reason: fmt.Sprintf(format, args...)}
}
