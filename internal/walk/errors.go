package walk

import (
	"fmt"
	"strings"
)

// ReadError reports an entry or module file that could not be read.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string { return fmt.Sprintf("reading %s: %v", e.Path, e.Err) }
func (e *ReadError) Unwrap() error { return e.Err }

// ParseError reports a file whose content the syntax source rejected.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string { return fmt.Sprintf("parsing %s: %v", e.Path, e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

// CycleError reports a module that resolves to a file already being visited
// higher up the same descent.
type CycleError struct {
	Module string
	Path   string
	Chain  []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("module %q resolves to %s, which is already being visited (%s)",
		e.Module, e.Path, strings.Join(e.Chain, " -> "))
}

// RenderError wraps the first error returned by the attached renderer.
type RenderError struct {
	Event string
	Err   error
}

func (e *RenderError) Error() string { return fmt.Sprintf("rendering %s: %v", e.Event, e.Err) }
func (e *RenderError) Unwrap() error { return e.Err }
