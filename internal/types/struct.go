package types

import "sort"

// Access classifies a struct field slot.
type Access uint8

const (
	AccessFinal Access = iota
	AccessRW
)

// Fld is one labeled struct field.
type Fld struct {
	Label  string
	Access Access
	T      Type
}

// TypeStruct is an ordered set of labeled fields.
type TypeStruct struct {
	tbase
	any  bool
	flds []Fld
}

// MakeStruct interns a struct from its fields.
func MakeStruct(flds ...Fld) *TypeStruct { return makeStruct(false, flds) }

func makeStruct(any bool, flds []Fld) *TypeStruct {
	return install(&TypeStruct{tbase: newBase(KindStruct), any: any, flds: flds})
}

func (t *TypeStruct) isObj() {}

// NumFlds is the field count.
func (t *TypeStruct) NumFlds() int { return len(t.flds) }

// FldAt returns the i'th field.
func (t *TypeStruct) FldAt(i int) Fld { return t.flds[i] }

// Find returns the field type for label, or nil.
func (t *TypeStruct) Find(label string) Type {
	for _, f := range t.flds {
		if f.Label == label {
			return f.T
		}
	}
	return nil
}

func (t *TypeStruct) hashContent() uint32 {
	h := uint32(KindStruct) * hashPrime
	for _, f := range t.flds {
		for _, c := range f.Label {
			h = h*31 + uint32(c)
		}
		h = mix(h, uint32(f.Access))
		h = mix(h, Hash(f.T))
	}
	if t.any {
		h ^= 0x8000
	}
	return h | 1
}

func (t *TypeStruct) eqContent(o Type) bool {
	s := o.(*TypeStruct)
	if t.any != s.any || len(t.flds) != len(s.flds) {
		return false
	}
	for i, f := range t.flds {
		g := s.flds[i]
		if f.Label != g.Label || f.Access != g.Access || f.T != g.T {
			return false
		}
	}
	return true
}

func (t *TypeStruct) xdual() Type {
	flds := make([]Fld, len(t.flds))
	for i, f := range t.flds {
		flds[i] = Fld{f.Label, f.Access, Dual(f.T)}
	}
	return &TypeStruct{tbase: newBase(KindStruct), any: !t.any, flds: flds}
}

func (t *TypeStruct) xmeet(o Type) Type {
	s := o.(*TypeStruct)
	if len(t.flds) != len(s.flds) {
		return OBJ
	}
	flds := make([]Fld, len(t.flds))
	for i, f := range t.flds {
		g := s.flds[i]
		if f.Label != g.Label {
			return OBJ
		}
		acc := f.Access
		if g.Access > acc {
			acc = g.Access
		}
		flds[i] = Fld{f.Label, acc, Meet(f.T, g.T)}
	}
	return makeStruct(t.any && s.any, flds)
}

func (t *TypeStruct) str(p *printer) {
	if t.any {
		p.s("~")
	}
	p.s("@{")
	for _, f := range t.flds {
		p.s(f.Label)
		p.s("=")
		p.typ(f.T)
		p.s(";")
	}
	p.s("}")
}

// ----------------------------------------------------------------------
// Cyclic types. Structs can point at pointers that point back; such values
// are built raw, closed into a cycle, and interned as one unit with the
// final hash installed only after the cycle closes.

// RawStruct builds an uninterned struct for cycle construction.
func RawStruct(flds ...Fld) *TypeStruct {
	return &TypeStruct{tbase: newBase(KindStruct), flds: flds}
}

// RawMemPtr builds an uninterned pointer for cycle construction.
func RawMemPtr(aliases *AliasSet, obj TypeObj) *TypeMemPtr {
	return &TypeMemPtr{tbase: newBase(KindMemPtr), aliases: aliases, obj: obj}
}

// SetFld patches field i of a raw struct; only legal before CloseCycle.
func (t *TypeStruct) SetFld(i int, ty Type) {
	if t.hash != 0 {
		panic("types: SetFld on an interned struct")
	}
	t.flds[i].T = ty
}

// CloseCycle interns a possibly-cyclic object graph rooted at head. Hashes
// are stabilized by iterating the mix over the members, then an existing
// cycle-equal instance is searched for; on a miss every member and its dual
// is installed.
func CloseCycle(head TypeObj) TypeObj {
	memberSet := map[Type]bool{}
	collectRaw(head, memberSet)
	if len(memberSet) == 0 {
		return head // already interned
	}
	// Iterate hashes to a stable approximation, in construction order so
	// equal-shaped cycles built at different times hash identically; cycle
	// members see each other's previous-round hash.
	members := make([]Type, 0, len(memberSet))
	for m := range memberSet {
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].base().uid < members[j].base().uid })
	for round := 0; round < 3; round++ {
		for _, m := range members {
			m.base().hash = m.hashContent()
		}
	}
	// An interned cycle-equal head wins.
	for _, old := range interned[head.base().hash] {
		if CycleEquals(old, head) {
			return old.(TypeObj)
		}
	}
	for _, m := range members {
		interned[m.base().hash] = append(interned[m.base().hash], m)
	}
	// Build the duals, linking before recursing so the dual cycle closes.
	dualOf := map[Type]Type{}
	rdual(head, dualOf)
	for raw, dl := range dualOf {
		dl.base().hash = dl.hashContent()
		interned[dl.base().hash] = append(interned[dl.base().hash], dl)
		raw.base().dual = dl
		dl.base().dual = raw
	}
	return head
}

func collectRaw(t Type, members map[Type]bool) {
	if t.base().hash != 0 || members[t] {
		return
	}
	members[t] = true
	switch tt := t.(type) {
	case *TypeStruct:
		for _, f := range tt.flds {
			collectRaw(f.T, members)
		}
	case *TypeMemPtr:
		collectRaw(tt.obj, members)
	case *TypeFunPtr:
		collectRaw(tt.dsp, members)
		collectRaw(tt.ret, members)
	}
}

// rdual builds the dual of a cyclic member, closing back-edges through the
// dualOf map.
func rdual(t Type, dualOf map[Type]Type) Type {
	if t.base().dual != nil {
		return t.base().dual // interned leaf
	}
	if d, ok := dualOf[t]; ok {
		return d
	}
	switch tt := t.(type) {
	case *TypeStruct:
		d := &TypeStruct{tbase: newBase(KindStruct), any: !tt.any, flds: make([]Fld, len(tt.flds))}
		dualOf[t] = d
		for i, f := range tt.flds {
			d.flds[i] = Fld{f.Label, f.Access, rdual(f.T, dualOf)}
		}
		return d
	case *TypeMemPtr:
		d := &TypeMemPtr{tbase: newBase(KindMemPtr), aliases: tt.aliases.Dual()}
		dualOf[t] = d
		d.obj = rdual(tt.obj, dualOf).(TypeObj)
		return d
	case *TypeFunPtr:
		d := &TypeFunPtr{tbase: newBase(KindFunPtr), fidxs: tt.fidxs.Dual(), nargs: tt.nargs}
		dualOf[t] = d
		d.dsp = rdual(tt.dsp, dualOf)
		d.ret = rdual(tt.ret, dualOf)
		return d
	}
	panic("types: rdual of a non-cyclic kind")
}

// CycleEquals is equality up to graph isomorphism, with a visited-pair memo
// breaking the recursion.
func CycleEquals(a, b Type) bool {
	return cycleEq(a, b, map[[2]int]bool{})
}

func cycleEq(a, b Type, seen map[[2]int]bool) bool {
	if a == b {
		return true
	}
	if a.Kind() != b.Kind() {
		return false
	}
	key := [2]int{a.base().uid, b.base().uid}
	if seen[key] {
		return true // assumed equal inside the cycle
	}
	seen[key] = true
	switch at := a.(type) {
	case *TypeStruct:
		bt := b.(*TypeStruct)
		if at.any != bt.any || len(at.flds) != len(bt.flds) {
			return false
		}
		for i, f := range at.flds {
			g := bt.flds[i]
			if f.Label != g.Label || f.Access != g.Access || !cycleEq(f.T, g.T, seen) {
				return false
			}
		}
		return true
	case *TypeMemPtr:
		bt := b.(*TypeMemPtr)
		return at.aliases == bt.aliases && cycleEq(at.obj, bt.obj, seen)
	case *TypeFunPtr:
		bt := b.(*TypeFunPtr)
		return at.fidxs == bt.fidxs && at.nargs == bt.nargs &&
			cycleEq(at.dsp, bt.dsp, seen) && cycleEq(at.ret, bt.ret, seen)
	}
	// Non-recursive kinds are interned, so identity above was the only out.
	return false
}
