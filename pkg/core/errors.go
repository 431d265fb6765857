package core

import (
	"errors"
	"strings"
)

// Error kinds. Every failure surfaced by a strata component matches exactly
// one of these through errors.Is. All of them are fatal to a run.
var (
	ErrConfig    = errors.New("config error")
	ErrProducer  = errors.New("producer error")
	ErrTreeBuild = errors.New("tree build error")
	ErrStore     = errors.New("store error")
)

// Error tags a failure with its kind and the context needed to diagnose it.
type Error struct {
	Kind    error  // one of ErrConfig, ErrProducer, ErrTreeBuild, ErrStore
	Op      string // operation that failed, e.g. "commit" or "build tree"
	Version string // version id being processed, if any
	Path    string // filesystem or repository path involved, if any
	Err     error
}

// NewError wraps err with a kind and an operation name.
func NewError(kind error, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	var sb strings.Builder
	if e.Kind != nil {
		sb.WriteString(e.Kind.Error())
	}
	if e.Op != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Op)
	}
	if e.Version != "" {
		sb.WriteString(" (version ")
		sb.WriteString(e.Version)
		sb.WriteString(")")
	}
	if e.Path != "" {
		sb.WriteString(" [path ")
		sb.WriteString(e.Path)
		sb.WriteString("]")
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// WithVersion returns a copy of the error annotated with a version id,
// unless one is already set.
func (e *Error) WithVersion(id string) *Error {
	c := *e
	if c.Version == "" {
		c.Version = id
	}
	return &c
}

// Tag annotates err with a version id when err is a *Error, and wraps it
// with the given kind otherwise.
func Tag(kind error, op, versionID string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e.WithVersion(versionID)
	}
	return &Error{Kind: kind, Op: op, Version: versionID, Err: err}
}
