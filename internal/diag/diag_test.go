package diag

import (
	"strings"
	"testing"
)

func TestReporterOrdersByPosition(t *testing.T) {
	r := &Reporter{}
	r.Error(20, TypeMismatch, "second")
	r.Error(5, NilViolation, "first")
	if !r.HasErrors() {
		t.Fatalf("expected errors")
	}
	msgs := r.Msgs()
	if msgs[0].Text != "first" || msgs[1].Text != "second" {
		t.Fatalf("messages must sort by position, got %v", msgs)
	}
}

func TestRender(t *testing.T) {
	r := &Reporter{}
	r.Errorf(ArityMismatch, "wanted %d args", 2)
	var sb strings.Builder
	r.Render(&sb)
	if !strings.Contains(sb.String(), "arity mismatch: wanted 2 args") {
		t.Fatalf("render output %q", sb.String())
	}
}
