// Package types implements the hash-consed flow-type lattice: integers,
// floats, memory, pointers, function pointers, tuples and structs. Every
// value is interned, so equality is pointer identity, and every value caches
// its lattice dual so that Dual(Dual(t)) == t holds by construction.
package types

// Kind tags the variant of a Type.
type Kind uint8

const (
	KindScalar Kind = iota // named top/bottom/control markers
	KindNil                // nil-flagged scalars: NIL, XNIL, SCALAR ...
	KindInt
	KindFlt
	KindTuple
	KindFunPtr
	KindMemPtr
	KindObj // primitive memory object markers
	KindStr
	KindAry
	KindStruct
	KindMem
)

// Type is one interned lattice value.
type Type interface {
	Kind() Kind
	base() *tbase

	// hashContent is the variant-specific static hash; children contribute
	// their interned hash.
	hashContent() uint32
	// eqContent is shallow equality: same variant fields, children compared
	// by identity.
	eqContent(Type) bool
	// xdual builds a fresh, content-canonical dual; children contribute
	// their cached duals.
	xdual() Type
	// xmeet is the same-kind meet; receiver and argument are interned and
	// distinct.
	xmeet(Type) Type
	str(p *printer)
}

type tbase struct {
	kind Kind
	hash uint32
	dual Type
	uid  int

	// dualNameHint names a scalar's dual partner; not part of content.
	dualNameHint string
}

func (b *tbase) base() *tbase { return b }
func (b *tbase) Kind() Kind   { return b.kind }

var (
	interned map[uint32][]Type
	uidCNT   int
)

func newBase(k Kind) tbase {
	uidCNT++
	return tbase{kind: k, uid: uidCNT}
}

func find(t Type) Type {
	h := t.hashContent()
	for _, old := range interned[h] {
		if old.Kind() == t.Kind() && old.eqContent(t) {
			return old
		}
	}
	return nil
}

func insert(t Type) {
	b := t.base()
	b.hash = t.hashContent()
	interned[b.hash] = append(interned[b.hash], t)
}

// install interns t. On a duplicate the fresh value is dropped for the
// collector to reclaim and the canonical instance returned; otherwise t and
// its dual are inserted and cross-linked.
func install[T Type](t T) T {
	if old := find(t); old != nil {
		return old.(T)
	}
	insert(t)
	d := t.xdual()
	if d.Kind() == t.Kind() && d.eqContent(t) {
		t.base().dual = t // self-dual
		return t
	}
	insert(d)
	t.base().dual = d
	d.base().dual = t
	return t
}

// Dual is the cached lattice involution.
func Dual(t Type) Type { return t.base().dual }

// Hash exposes the interned static hash.
func Hash(t Type) uint32 { return t.base().hash }

// Meet is the lattice greatest lower bound.
func Meet(a, b Type) Type {
	if a == b {
		return a
	}
	if a == ALL || b == ALL {
		return ALL
	}
	if a == ANY {
		return b
	}
	if b == ANY {
		return a
	}
	if a.Kind() == b.Kind() {
		return a.xmeet(b)
	}
	return xmeetCross(a, b)
}

// Join is defined by the involution.
func Join(a, b Type) Type { return Dual(Meet(Dual(a), Dual(b))) }

// Isa reports that a sits at or above b in lattice order (meeting a with b
// yields b).
func Isa(a, b Type) bool { return Meet(a, b) == b }

// OOB collapses t to the given default's polarity: above-center values go to
// the default's dual, the rest to the default itself.
func OOB(t, dflt Type) Type {
	if AboveCenter(t) {
		return Dual(dflt)
	}
	return dflt
}

// AboveCenter reports a high lattice value.
func AboveCenter(t Type) bool {
	switch tt := t.(type) {
	case *TypeScalar:
		return tt.high
	case *TypeNilScalar:
		return tt.f.any
	case *TypeInt:
		return tt.f.any
	case *TypeFlt:
		return tt.f.any
	case *TypeTuple:
		if len(tt.ts) == 0 {
			return false
		}
		for _, e := range tt.ts {
			if !AboveCenter(e) {
				return false
			}
		}
		return true
	case *TypeFunPtr:
		return tt.fidxs.AboveCenter() || (tt.fidxs.IsCon() && AboveCenter(tt.dsp))
	case *TypeMemPtr:
		return tt.aliases.AboveCenter()
	case *TypeObjPrim:
		return tt.high
	case *TypeStr:
		return tt.any
	case *TypeAry:
		return tt.any
	case *TypeStruct:
		return tt.any
	case *TypeMem:
		return tt.any
	}
	return false
}

// IsCon reports a single concrete value.
func IsCon(t Type) bool {
	switch tt := t.(type) {
	case *TypeScalar:
		return false
	case *TypeNilScalar:
		return tt == NIL || tt == XNIL
	case *TypeInt:
		return tt.z == 0
	case *TypeFlt:
		return tt.z == 0
	case *TypeFunPtr:
		return tt.dsp == NoDisp && tt.fidxs.ABit() > 1
	case *TypeStr:
		return tt.con != ""
	}
	return false
}

// MayNil reports whether t can hold nil.
func MayNil(t Type) bool {
	switch tt := t.(type) {
	case *TypeNilScalar:
		return tt.f.nil_
	case *TypeInt:
		return tt.f.nil_
	case *TypeFlt:
		return tt.f.nil_
	case *TypeMemPtr:
		return tt.aliases.MayNil() || tt.aliases.MustNil()
	case *TypeFunPtr:
		return tt.fidxs.MayNil() || tt.fidxs.MustNil()
	}
	return false
}

// Widen pushes a scalar to its widest lattice element; used when a value can
// escape to unknown callers.
func Widen(t Type) Type {
	switch t.Kind() {
	case KindInt:
		return INT64
	case KindFlt:
		return FLT64
	case KindFunPtr:
		return GenericFunPtr
	case KindMemPtr:
		return PtrOBJ
	}
	return t
}

// BitShape grades the conversion from an actual argument into a formal:
// 0 is free, 1 is a bit-changing but implicit conversion, 99 needs a
// user-specified conversion.
func BitShape(actual, formal Type) int8 {
	if actual == NIL || actual == XNIL || actual == SCALAR || actual == XSCALAR {
		return 0
	}
	if AboveCenter(actual) {
		return 0 // dead or unresolved argument is free
	}
	if actual.Kind() == formal.Kind() {
		return 0
	}
	if formal == SCALAR || formal == NSCALR || formal == ALL {
		return 0
	}
	if actual.Kind() == KindInt && formal.Kind() == KindFlt {
		return 1
	}
	return 99
}

// xmeetCross handles meets across different variants.
func xmeetCross(a, b Type) Type {
	// Control mixes with nothing.
	if isCtrl(a) || isCtrl(b) {
		return ALL
	}
	// Memory and memory objects mix with nothing outside their own kinds.
	if a.Kind() == KindMem || b.Kind() == KindMem {
		return ALL
	}
	ao, bo := isObjKind(a), isObjKind(b)
	if ao != bo {
		return ALL
	}
	if ao { // two distinct object variants
		return objCrossMeet(a.(TypeObj), b.(TypeObj))
	}
	// Remaining kinds are all nilable scalars.
	return nilableCrossMeet(a, b)
}

func isCtrl(t Type) bool { return t == CTRL || t == XCTRL }

func isObjKind(t Type) bool {
	switch t.Kind() {
	case KindObj, KindStr, KindAry, KindStruct:
		return true
	}
	return false
}

// Reset drops every interned value and rebuilds the shared constants. Used
// by the test harness between runs.
func Reset() {
	interned = make(map[uint32][]Type)
	uidCNT = 0
	initScalars()
	initInts()
	initFlts()
	initObjs()
	initMems()
	initTuples()
	initPtrs()
}

func init() { Reset() }
