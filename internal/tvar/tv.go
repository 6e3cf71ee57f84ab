// Package tvar implements Hindley-Milner style type variables: union-find
// with path compression, structural unification over tagged variants,
// iso-recursive cycles, nilable wrappers, let-polymorphic fresh
// instantiation and the delayed work lists that re-trigger prior
// unifications when a leaf later grows structure.
package tvar

import (
	"github.com/hashicorp/go-set/v3"

	"exopt/internal/types"
)

// Kind tags the variant of a type variable.
type Kind uint8

const (
	KLeaf Kind = iota
	KBase
	KPtr
	KLambda
	KStruct
	KClz
	KNil
	KErr
)

func (k Kind) String() string {
	switch k {
	case KLeaf:
		return "Leaf"
	case KBase:
		return "Base"
	case KPtr:
		return "Ptr"
	case KLambda:
		return "Lambda"
	case KStruct:
		return "Struct"
	case KClz:
		return "Clz"
	case KNil:
		return "Nil"
	case KErr:
		return "Err"
	}
	return "?"
}

// Dep is a graph node to re-enqueue when a type variable it watches makes
// progress. An interface keeps this package below the node graph.
type Dep interface{ UID() int }

var (
	cnt int // uid counter

	// touched collects deps of changed variables; the driver drains it
	// after every unification step.
	touched []Dep
)

// TV is one type variable. Leaders carry all state; a non-leader holds only
// its uf link.
type TV struct {
	kind Kind
	uid  int
	uf   *TV

	args   []*TV
	labels []string // KStruct: parallel to args
	open   bool     // KStruct: more fields may appear

	flow  types.Type // KBase payload
	nargs int        // KLambda: args holds nargs formals then the return

	errs []string // KErr: gathered messages

	mayNil bool // can be zero
	useNil bool // is dereferenced, must not be zero
	widen  byte // 0 never, 1 soft, 2 hard

	delayFresh   []*DelayFresh
	delayResolve []*TV
	deps         *set.Set[Dep]
}

func newTV(k Kind, args ...*TV) *TV {
	cnt++
	return &TV{kind: k, uid: cnt, args: args}
}

// NewLeaf makes an unconstrained variable.
func NewLeaf() *TV { return newTV(KLeaf) }

// NewBase wraps a concrete flow type.
func NewBase(t types.Type) *TV {
	tv := newTV(KBase)
	tv.flow = t
	tv.mayNil = types.MayNil(t)
	return tv
}

// NewPtr is a pointer-to variable.
func NewPtr(mayNil bool, obj *TV) *TV {
	tv := newTV(KPtr, obj)
	tv.mayNil = mayNil
	return tv
}

// NewLambda has nargs formals and a return in the last slot.
func NewLambda(formals []*TV, ret *TV) *TV {
	tv := newTV(KLambda, append(append([]*TV(nil), formals...), ret)...)
	tv.nargs = len(formals)
	return tv
}

// NewStruct is a structural record; open structs may infer more fields.
func NewStruct(labels []string, args []*TV, open bool) *TV {
	tv := newTV(KStruct, args...)
	tv.labels = append([]string(nil), labels...)
	tv.open = open
	return tv
}

// NewClz pairs a class structure with an instance.
func NewClz(clz, rhs *TV) *TV { return newTV(KClz, clz, rhs) }

// NewNil wraps a variable that may also be zero.
func NewNil(child *TV) *TV { return newTV(KNil, child) }

// NewErr is an error variable consuming its children for diagnostics.
func NewErr(msg string, kids ...*TV) *TV {
	tv := newTV(KErr, kids...)
	tv.errs = []string{msg}
	return tv
}

// UID is the dense unique id.
func (tv *TV) UID() int { return tv.uid }

// TVKind is the variant tag of the leader.
func (tv *TV) TVKind() Kind { return tv.Find().kind }

// Unified reports a non-leader.
func (tv *TV) Unified() bool { return tv.uf != nil }

// IsErr reports an error variable.
func (tv *TV) IsErr() bool { return tv.Find().kind == KErr }

// Errs returns the gathered error messages of an Err leader.
func (tv *TV) Errs() []string { return tv.Find().errs }

// Flow returns the Base payload, or nil.
func (tv *TV) Flow() types.Type { return tv.Find().flow }

// MayNil reports the may-be-zero flag.
func (tv *TV) MayNil() bool { return tv.Find().mayNil }

// UseNil reports the is-dereferenced flag.
func (tv *TV) UseNil() bool { return tv.Find().useNil }

// NilErr reports the simultaneous may-nil/use-nil contradiction.
func (tv *TV) NilErr() bool { t := tv.Find(); return t.mayNil && t.useNil }

// Find returns the leader with full path compression.
func (tv *TV) Find() *TV {
	if tv.uf == nil {
		return tv
	}
	if tv.uf.uf == nil {
		return tv.uf
	}
	leader := tv.uf
	for leader.uf != nil {
		leader = leader.uf
	}
	for u := tv; u != leader; {
		next := u.uf
		u.uf = leader
		u = next
	}
	return leader
}

// DebugFind is Find without rollup, for printing.
func (tv *TV) DebugFind() *TV {
	u := tv
	for u.uf != nil {
		u = u.uf
	}
	return u
}

// Arg returns the i'th child, rolled up.
func (tv *TV) Arg(i int) *TV {
	a := tv.args[i]
	if a == nil {
		return nil
	}
	f := a.Find()
	if f != a {
		tv.args[i] = f
	}
	return f
}

// Len is the child count.
func (tv *TV) Len() int { return len(tv.args) }

// NumArgs is the Lambda formal count.
func (tv *TV) NumArgs() int { return tv.Find().nargs }

// Ret is the Lambda return child.
func (tv *TV) Ret() *TV { t := tv.Find(); return t.Arg(t.nargs) }

// ArgOf looks up a struct field by label.
func (tv *TV) ArgOf(label string) *TV {
	t := tv.Find()
	for i, l := range t.labels {
		if l == label {
			return t.Arg(i)
		}
	}
	return nil
}

// DepsAdd registers a node for re-analysis when this variable changes.
func (tv *TV) DepsAdd(n Dep) {
	t := tv.Find()
	if t.deps == nil {
		t.deps = set.New[Dep](1)
	}
	t.deps.Insert(n)
}

// DepsAddDeep registers n on this variable and every reachable child.
func (tv *TV) DepsAddDeep(n Dep) {
	seen := map[*TV]bool{}
	var walk func(t *TV)
	walk = func(t *TV) {
		t = t.Find()
		if seen[t] {
			return
		}
		seen[t] = true
		t.DepsAdd(n)
		for i := range t.args {
			if t.args[i] != nil {
				walk(t.Arg(i))
			}
		}
	}
	walk(tv)
}

// depsWorkClear moves the watchers onto the touched list.
func (tv *TV) depsWorkClear() {
	if tv.deps == nil {
		return
	}
	touched = append(touched, tv.deps.Slice()...)
	tv.deps = nil
}

// TakeTouched drains the deps of every variable changed since the last
// call; the driver feeds them back into its flow worklist.
func TakeTouched() []Dep {
	t := touched
	touched = nil
	return t
}

// AddMayNil sets the may-be-zero flag; with both flags set the variable is
// in error.
func (tv *TV) AddMayNil(test bool) bool {
	t := tv.Find()
	if t.mayNil {
		return false
	}
	if test {
		return true
	}
	t.mayNil = true
	t.depsWorkClear()
	return true
}

// AddUseNil sets the dereference flag.
func (tv *TV) AddUseNil(test bool) bool {
	t := tv.Find()
	if t.useNil {
		return false
	}
	if test {
		return true
	}
	t.useNil = true
	t.depsWorkClear()
	return true
}

// StripNil clears may-nil, pushing nil-ness out of this variable.
func (tv *TV) StripNil() *TV {
	t := tv.Find()
	t.mayNil = false
	return t
}

// Union folds this leader into that leader; flags, widening, delayed lists
// and watchers migrate onto the survivor.
func (tv *TV) Union(that *TV) bool {
	if tv == that {
		return false
	}
	if tv.Unified() || that.Unified() {
		panic("tvar: union of a non-leader")
	}
	if tv.mayNil {
		that.AddMayNil(false)
	}
	if tv.useNil {
		that.AddUseNil(false)
	}
	that.Widen(tv.widen, false)

	// Delayed work migrates to the survivor, then onto the global queues.
	that.mergeDelayFresh(tv.delayFresh)
	tv.delayFresh = nil
	that.delayResolve = append(that.delayResolve, tv.delayResolve...)
	tv.delayResolve = nil
	that.moveDelay()

	if that.kind == KLeaf {
		if that.deps == nil {
			that.deps = tv.deps
		} else if tv.deps != nil {
			that.deps.InsertSlice(tv.deps.Slice())
		}
	} else {
		tv.depsWorkClear()
		that.depsWorkClear()
	}
	tv.uf = that
	tv.args = nil // non-leaders carry no structure
	tv.deps = nil
	return true
}

// dups closes unification cycles within one outer Unify call.
var dups map[[2]int]bool

// Unify folds this variable with that, in place. Returns progress; with
// test set nothing changes and the return is "would progress".
func (tv *TV) Unify(that *TV, test bool) bool {
	a, b := tv.Find(), that.Find()
	if a == b {
		return false
	}
	dups = map[[2]int]bool{}
	p := a.unify(b, test)
	dups = nil
	return p
}

func (tv *TV) unify(that *TV, test bool) bool {
	tv, that = tv.Find(), that.Find()
	if tv == that {
		return false
	}

	// A leaf absorbs any structure.
	if tv.kind != KLeaf && that.kind == KLeaf {
		return test || that.Union(tv)
	}
	if that.kind != KLeaf && tv.kind == KLeaf {
		return test || tv.Union(that)
	}

	// Nil unifies with a non-nil anything through its child.
	if tv.kind == KNil && that.kind != KNil {
		return tv.unifyNil(that, test)
	}
	if that.kind == KNil && tv.kind != KNil {
		return that.unifyNil(tv, test)
	}

	// Distinct variants collapse into an error holding both.
	if tv.kind != that.kind {
		if test {
			return true
		}
		if that.kind == KErr {
			return that.unifyErrInto(tv)
		}
		if tv.kind == KErr {
			return tv.unifyErrInto(that)
		}
		err := NewErr("cannot unify " + tv.kind.String() + " and " + that.kind.String())
		err.unifyErrInto(tv)
		err.unifyErrInto(that.Find())
		return true
	}

	// Cycle check; been there, done that.
	key := [2]int{tv.uid, that.uid}
	if dups[key] {
		return false
	}
	dups[key] = true
	if test {
		return true
	}

	// Merge subclass parts, folding the lower uid into the higher.
	if tv.uid < that.uid {
		tv.unifyImpl(that)
		tv.Find().Union(that.Find())
	} else {
		that.unifyImpl(tv)
		that.Find().Union(tv.Find())
	}
	return true
}

// unifyImpl merges structure from tv into that (both same kind, leaders).
func (tv *TV) unifyImpl(that *TV) {
	switch tv.kind {
	case KBase:
		that.flow = types.Meet(tv.flow, that.flow)
		if types.MayNil(that.flow) {
			that.mayNil = true
		}
	case KPtr:
		tv.Arg(0).unify(that.Arg(0), false)
	case KClz:
		tv.Arg(0).unify(that.Arg(0), false)
		if tv.Find().kind == KClz && that.Find().kind == KClz {
			tv.Find().Arg(1).unify(that.Find().Arg(1), false)
		}
	case KLambda:
		if tv.nargs != that.nargs {
			err := NewErr("mismatched argument lengths")
			err.unifyErrInto(that)
			return
		}
		for i := 0; i <= tv.nargs; i++ {
			if tv.Find().kind != KLambda || that.Find().kind != KLambda {
				return // a child collapsed this into an error
			}
			tv.Find().Arg(i).unify(that.Find().Arg(i), false)
		}
	case KStruct:
		tv.unifyStruct(that)
	case KNil:
		tv.Arg(0).unify(that.Arg(0), false)
	case KErr:
		that.errs = mergeErrs(that.errs, tv.errs)
		that.args = append(that.args, tv.args...)
	}
}

// unifyStruct walks fields by label. Open structs absorb unknown labels;
// a closed struct missing a label is a mismatch.
func (tv *TV) unifyStruct(that *TV) {
	for i, label := range tv.labels {
		lhs := tv.Arg(i)
		rhs := that.ArgOf(label)
		if rhs != nil {
			lhs.unify(rhs, false)
			continue
		}
		t := that.Find()
		if t.open {
			t.labels = append(t.labels, label)
			t.args = append(t.args, lhs)
			t.resolveKick()
			continue
		}
		err := NewErr("missing field " + label)
		err.unifyErrInto(t)
		return
	}
	t := that.Find()
	if !tv.open && t.open {
		t.open = false
	}
}

// unifyNil unifies a Nil wrapper with a non-nil variable: the wrapped child
// takes the structure and the other side learns it may be zero.
func (tv *TV) unifyNil(that *TV, test bool) bool {
	if test {
		return true
	}
	that.AddMayNil(false)
	child := tv.Arg(0)
	child.unify(that.Find(), false)
	tv.Find().Union(that.Find())
	return true
}

// unifyErrInto makes that into (part of) this error.
func (tv *TV) unifyErrInto(that *TV) bool {
	if tv.kind != KErr {
		panic("tvar: unifyErrInto on a non-error")
	}
	that = that.Find()
	if that == tv {
		return false
	}
	if that.kind == KErr {
		tv.errs = mergeErrs(tv.errs, that.errs)
		tv.args = append(tv.args, that.args...)
	} else {
		tv.args = append(tv.args, that)
	}
	that.Union(tv)
	return true
}

func mergeErrs(dst, src []string) []string {
	for _, s := range src {
		dup := false
		for _, d := range dst {
			if d == s {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, s)
		}
	}
	return dst
}

// UnifyErr forces this variable into an error with the given message.
func (tv *TV) UnifyErr(msg string, extra *TV, test bool) bool {
	if test {
		return true
	}
	err := NewErr(msg)
	if extra != nil {
		err.args = append(err.args, extra.Find())
	}
	return err.unifyErrInto(tv.Find())
}

// Reset clears the uid counter and global queues for test isolation.
func Reset() {
	cnt = 0
	touched = nil
	delayFreshQ = nil
	delayResolveQ = nil
}
