package types

import (
	"fmt"
	"math"
)

// TypeFlt mirrors TypeInt over IEEE sizes 32 and 64.
type TypeFlt struct {
	tbase
	f   nilf
	z   int8
	con float64
}

var (
	FLT64 *TypeFlt
	FLT32 *TypeFlt
)

func initFlts() {
	FLT64 = MakeFlt(nilf{false, true, true}, 64, 0)
	FLT32 = MakeFlt(nilf{false, true, true}, 32, 0)
}

// FltCon interns a floating constant.
func FltCon(con float64) *TypeFlt {
	if con == 0 {
		return MakeFlt(nilf{false, true, false}, 0, 0)
	}
	return MakeFlt(nilf{false, false, true}, 0, con)
}

// MakeFlt interns after the same constant canonicalization ints use.
func MakeFlt(f nilf, z int8, con float64) *TypeFlt {
	if con != 0 && (f.nil_ || f.any) {
		z, con = flog(con), 0
	}
	return install(&TypeFlt{tbase: newBase(KindFlt), f: f, z: z, con: con})
}

func (t *TypeFlt) hashContent() uint32 {
	h := uint32(KindFlt) * hashPrime
	h = mix(h, uint32(t.z))
	b := math.Float64bits(t.con)
	h = mix(h, uint32(b)^uint32(b>>32))
	return mixFlags(h, t.f)
}

func (t *TypeFlt) eqContent(o Type) bool {
	ft := o.(*TypeFlt)
	return t.f == ft.f && t.z == ft.z && math.Float64bits(t.con) == math.Float64bits(ft.con)
}

func (t *TypeFlt) xdual() Type {
	if t.z == 0 {
		return &TypeFlt{tbase: newBase(KindFlt), f: t.f, z: 0, con: t.con}
	}
	return &TypeFlt{tbase: newBase(KindFlt), f: t.f.dual(), z: t.z, con: 0}
}

func (t *TypeFlt) lz() int8 {
	if t.z == 0 {
		return flog(t.con)
	}
	return t.z
}

func (t *TypeFlt) xmeet(o Type) Type {
	ft := o.(*TypeFlt)
	f := t.f.meet(ft.f)
	if f.any {
		return MakeFlt(f, min8(t.z, ft.z), 0)
	}
	lz0, lz1 := t.lz(), ft.lz()
	if t.z == 0 && ft.f.any && (ft.f.nil_ || ft.f.sub) && lz0 <= lz1 {
		return t
	}
	if ft.z == 0 && t.f.any && (t.f.nil_ || t.f.sub) && lz1 <= lz0 {
		return ft
	}
	var z int8
	switch {
	case t.f.any:
		z = lz1
	case ft.f.any:
		z = lz0
	default:
		z = max8(lz0, lz1)
	}
	return MakeFlt(f, z, 0)
}

func (t *TypeFlt) meetFlags(nf nilf) Type {
	f := t.f.meet(nf)
	if f == t.f {
		return t
	}
	if !f.sub {
		return NIL
	}
	return MakeFlt(f, t.lz(), 0)
}

// Con asserts a constant and returns it.
func (t *TypeFlt) Con() float64 {
	if t.z != 0 {
		panic("types: Con on a non-constant flt")
	}
	return t.con
}

func (t *TypeFlt) str(p *printer) {
	if t.z == 0 {
		p.s(fmt.Sprintf("%g", t.con))
		return
	}
	if t.f.any {
		p.s("~")
	}
	p.s(fmt.Sprintf("flt%d", t.z))
}

func flog(con float64) int8 {
	if con == float64(float32(con)) {
		return 32
	}
	return 64
}
