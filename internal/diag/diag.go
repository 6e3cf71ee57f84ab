// Package diag carries semantic diagnostics from the optimizer core out to
// callers. The core never aborts on a type error; it materializes error
// values and the driver aggregates them here at the end of the fixpoint.
package diag

import (
	"fmt"
	"go/token"
	"io"
	"sort"
)

// Code classifies a diagnostic.
type Code uint8

const (
	TypeMismatch Code = iota
	NilViolation
	ForwardRef
	ArityMismatch
	ArgConversion
)

func (c Code) String() string {
	switch c {
	case TypeMismatch:
		return "type mismatch"
	case NilViolation:
		return "nil violation"
	case ForwardRef:
		return "forward reference"
	case ArityMismatch:
		return "arity mismatch"
	case ArgConversion:
		return "argument conversion"
	}
	return "error"
}

// ErrMsg is one user-visible diagnostic with its parse location.
type ErrMsg struct {
	Pos  token.Pos
	Code Code
	Text string
}

func (e ErrMsg) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Text)
}

// Reporter accumulates diagnostics in arrival order.
type Reporter struct {
	msgs []ErrMsg
}

// Error records one diagnostic.
func (r *Reporter) Error(pos token.Pos, code Code, text string) {
	r.msgs = append(r.msgs, ErrMsg{Pos: pos, Code: code, Text: text})
}

// Errorf records a formatted diagnostic without a location.
func (r *Reporter) Errorf(code Code, format string, args ...interface{}) {
	r.msgs = append(r.msgs, ErrMsg{Code: code, Text: fmt.Sprintf(format, args...)})
}

// HasErrors reports whether anything was recorded.
func (r *Reporter) HasErrors() bool { return len(r.msgs) > 0 }

// Msgs returns the diagnostics sorted by position, stable for equal
// positions.
func (r *Reporter) Msgs() []ErrMsg {
	out := append([]ErrMsg(nil), r.msgs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Pos < out[j].Pos })
	return out
}

// Render writes one line per diagnostic.
func (r *Reporter) Render(w io.Writer) {
	for _, m := range r.Msgs() {
		fmt.Fprintf(w, "%s\n", m.Error())
	}
}
