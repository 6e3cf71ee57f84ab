package types

import (
	"fmt"

	"exopt/internal/bits"
)

// TypeFunPtr is a set of function indices with the display and return type.
// Formals live on the FunNode, not here. A single fidx is a classic code
// pointer; cloning a function splits its fidx for both copies.
type TypeFunPtr struct {
	tbase
	fidxs *bits.Bits
	nargs int
	dsp   Type
	ret   Type
}

var (
	// GenericFunPtr is the bottom function pointer: all functions.
	GenericFunPtr *TypeFunPtr
	// EmptyFunPtr calls nothing.
	EmptyFunPtr *TypeFunPtr
	// NoDisp marks the missing display slot.
	NoDisp Type
)

// MakeFunPtr interns a function pointer.
func MakeFunPtr(fidxs *bits.Bits, nargs int, dsp, ret Type) *TypeFunPtr {
	return install(&TypeFunPtr{tbase: newBase(KindFunPtr), fidxs: fidxs, nargs: nargs, dsp: dsp, ret: ret})
}

// FunPtrCon interns the single-function pointer for fidx.
func FunPtrCon(fidx, nargs int, ret Type) *TypeFunPtr {
	return MakeFunPtr(fun().MakeCon(fidx), nargs, NoDisp, ret)
}

// Fidxs exposes the function index set.
func (t *TypeFunPtr) Fidxs() *bits.Bits { return t.fidxs }

// Nargs is the formal count; no display slot is counted.
func (t *TypeFunPtr) Nargs() int { return t.nargs }

// Dsp is the display type.
func (t *TypeFunPtr) Dsp() Type { return t.dsp }

// Ret is the return type.
func (t *TypeFunPtr) Ret() Type { return t.ret }

// Fidx asserts a single function and returns its index.
func (t *TypeFunPtr) Fidx() int { return t.fidxs.Getbit() }

// MakeFrom rebuilds with a different fidx set.
func (t *TypeFunPtr) MakeFrom(fidxs *bits.Bits) *TypeFunPtr {
	return MakeFunPtr(fidxs, t.nargs, t.dsp, t.ret)
}

// MakeFromRet rebuilds with a different return.
func (t *TypeFunPtr) MakeFromRet(ret Type) *TypeFunPtr {
	return MakeFunPtr(t.fidxs, t.nargs, t.dsp, ret)
}

func rot(x uint32, k uint) uint32 { return x<<k | x>>(32-k) }

func (t *TypeFunPtr) hashContent() uint32 {
	h := uint32(KindFunPtr) * hashPrime
	h += rot(uint32(t.fidxs.ABit())+3, 4)
	for f := range t.fidxs.All() {
		h = mix(h, uint32(f))
	}
	if t.fidxs.AboveCenter() {
		h ^= 0x8000
	}
	h += rot(uint32(t.nargs), 8) + rot(Hash(t.dsp), 12) + rot(Hash(t.ret), 20)
	return h | 1
}

func (t *TypeFunPtr) eqContent(o Type) bool {
	f := o.(*TypeFunPtr)
	return t.fidxs == f.fidxs && t.nargs == f.nargs && t.dsp == f.dsp && t.ret == f.ret
}

func (t *TypeFunPtr) xdual() Type {
	return &TypeFunPtr{tbase: newBase(KindFunPtr), fidxs: t.fidxs.Dual(), nargs: t.nargs, dsp: Dual(t.dsp), ret: Dual(t.ret)}
}

func (t *TypeFunPtr) xmeet(o Type) Type {
	f := o.(*TypeFunPtr)
	fidxs := t.fidxs.Meet(f.fidxs)
	// Unequal arg counts: a low short function wins (the result is short),
	// a high short one loses (the result is long).
	mn, mx := t, f
	if f.nargs < t.nargs {
		mn, mx = f, t
	}
	nargs := mn.nargs
	if AboveCenter(mn) {
		nargs = mx.nargs
	}
	return MakeFunPtr(fidxs, nargs, Meet(t.dsp, f.dsp), Meet(t.ret, f.ret))
}

// NotNil strips the nil fidx.
func (t *TypeFunPtr) NotNil() Type {
	nn := t.fidxs.NotNil()
	if nn == t.fidxs {
		return t
	}
	return t.MakeFrom(nn)
}

func (t *TypeFunPtr) str(p *printer) {
	p.s(t.fidxs.String())
	p.s("{")
	if p.debug {
		p.typ(t.dsp)
		p.s(" ")
	}
	p.s(fmt.Sprintf("%d ->", t.nargs))
	p.typ(t.ret)
	p.s("}")
}
