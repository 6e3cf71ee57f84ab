package types

import "exopt/internal/bits"

// AliasSet is a bit set over the shared alias space.
type AliasSet = bits.Bits

func alias() *bits.Space { return bits.Alias }
func fun() *bits.Space   { return bits.Fun }

// TypeMemPtr is a pointer: a set of alias classes plus the pointed-at object
// approximation.
type TypeMemPtr struct {
	tbase
	aliases *bits.Bits
	obj     TypeObj
}

// PtrOBJ is the full pointer: any alias, any object, maybe nil.
var PtrOBJ *TypeMemPtr

func initPtrs() {
	PtrOBJ = MakeMemPtr(alias().Full(), OBJ)
	NoDisp = ANY
	GenericFunPtr = MakeFunPtr(fun().Full(), 1, ALL, ALL)
	EmptyFunPtr = MakeFunPtr(fun().Empty(), 0, ANY, ANY)
}

// MakeMemPtr interns a pointer.
func MakeMemPtr(aliases *bits.Bits, obj TypeObj) *TypeMemPtr {
	return install(&TypeMemPtr{tbase: newBase(KindMemPtr), aliases: aliases, obj: obj})
}

// Aliases exposes the alias set.
func (t *TypeMemPtr) Aliases() *bits.Bits { return t.aliases }

// Obj exposes the pointed-at object.
func (t *TypeMemPtr) Obj() TypeObj { return t.obj }

func (t *TypeMemPtr) hashContent() uint32 {
	h := uint32(KindMemPtr) * hashPrime
	h = mix(h, uint32(t.aliases.ABit())+0x55)
	for a := range t.aliases.All() {
		h = mix(h, uint32(a))
	}
	if t.aliases.AboveCenter() {
		h ^= 0x8000
	}
	h = mix(h, Hash(t.obj))
	return h | 1
}

func (t *TypeMemPtr) eqContent(o Type) bool {
	p := o.(*TypeMemPtr)
	return t.aliases == p.aliases && t.obj == p.obj
}

func (t *TypeMemPtr) xdual() Type {
	return &TypeMemPtr{tbase: newBase(KindMemPtr), aliases: t.aliases.Dual(), obj: Dual(t.obj).(TypeObj)}
}

func (t *TypeMemPtr) xmeet(o Type) Type {
	p := o.(*TypeMemPtr)
	return MakeMemPtr(t.aliases.Meet(p.aliases), Meet(t.obj, p.obj).(TypeObj))
}

// NotNil strips the nil alias.
func (t *TypeMemPtr) NotNil() Type {
	nn := t.aliases.NotNil()
	if nn == t.aliases {
		return t
	}
	return MakeMemPtr(nn, t.obj)
}

func (t *TypeMemPtr) str(p *printer) {
	p.s("*")
	p.s(t.aliases.String())
	p.typ(t.obj)
}
