package types

import "fmt"

// TypeInt is the integer range lattice. z==0 means con holds a constant and
// the bit size derives from it; otherwise z is one of 1,8,16,32,64 and con
// is unused.
type TypeInt struct {
	tbase
	f   nilf
	z   int8
	con int64
}

var (
	INT64  *TypeInt
	INT32  *TypeInt
	INT16  *TypeInt
	INT8   *TypeInt
	BOOL   *TypeInt
	NINT64 *TypeInt // int64 minus nil
	NINT8  *TypeInt
	ZERO   *TypeInt
)

func initInts() {
	INT64 = MakeInt(nilf{false, true, true}, 64, 0)
	INT32 = MakeInt(nilf{false, true, true}, 32, 0)
	INT16 = MakeInt(nilf{false, true, true}, 16, 0)
	INT8 = MakeInt(nilf{false, true, true}, 8, 0)
	BOOL = MakeInt(nilf{false, true, true}, 1, 0)
	NINT64 = MakeInt(nilf{false, false, true}, 64, 0)
	NINT8 = MakeInt(nilf{false, false, true}, 8, 0)
	ZERO = IntCon(0)
}

// IntCon interns an integer constant.
func IntCon(con int64) *TypeInt {
	if con == 0 {
		return MakeInt(nilf{false, true, false}, 0, 0)
	}
	return MakeInt(nilf{false, false, true}, 0, con)
}

// MakeInt interns after canonicalizing: a constant that also admits nil is
// no longer a constant and falls to its log-size range.
func MakeInt(f nilf, z int8, con int64) *TypeInt {
	if con != 0 && (f.nil_ || f.any) {
		z, con = ilog(con), 0
	}
	return install(&TypeInt{tbase: newBase(KindInt), f: f, z: z, con: con})
}

func (t *TypeInt) hashContent() uint32 {
	h := uint32(KindInt) * hashPrime
	h = mix(h, uint32(t.z))
	h = mix(h, uint32(t.con)^uint32(uint64(t.con)>>32))
	return mixFlags(h, t.f)
}

func (t *TypeInt) eqContent(o Type) bool {
	i := o.(*TypeInt)
	return t.f == i.f && t.z == i.z && t.con == i.con
}

func (t *TypeInt) xdual() Type {
	if t.z == 0 {
		return &TypeInt{tbase: newBase(KindInt), f: t.f, z: 0, con: t.con} // constants are self-dual
	}
	return &TypeInt{tbase: newBase(KindInt), f: t.f.dual(), z: t.z, con: 0}
}

// effective bit size: a constant sizes as the log of its value.
func (t *TypeInt) lz() int8 {
	if t.z == 0 {
		return ilog(t.con)
	}
	return t.z
}

func (t *TypeInt) xmeet(o Type) Type {
	i := o.(*TypeInt)
	f := t.f.meet(i.f)
	if f.any { // both high: narrow
		return MakeInt(f, min8(t.z, i.z), 0)
	}
	lz0, lz1 := t.lz(), i.lz()
	// A constant meeting a compatible wider high keeps the constant.
	if t.z == 0 && i.f.any && (i.f.nil_ || i.f.sub) && lz0 <= lz1 {
		return t
	}
	if i.z == 0 && t.f.any && (t.f.nil_ || t.f.sub) && lz1 <= lz0 {
		return i
	}
	var z int8
	switch {
	case t.f.any:
		z = lz1
	case i.f.any:
		z = lz0
	default:
		z = max8(lz0, lz1)
	}
	return MakeInt(f, z, 0)
}

// meetFlags folds a NIL-family scalar into this integer.
func (t *TypeInt) meetFlags(nf nilf) Type {
	f := t.f.meet(nf)
	if f == t.f {
		return t
	}
	if !f.sub { // just zero remains
		return NIL
	}
	return MakeInt(f, t.lz(), 0)
}

// Con asserts a constant and returns it.
func (t *TypeInt) Con() int64 {
	if t.z != 0 {
		panic("types: Con on a non-constant int")
	}
	return t.con
}

func (t *TypeInt) str(p *printer) {
	if t.z == 0 {
		p.s(fmt.Sprintf("%d", t.con))
		return
	}
	if t.f.any {
		p.s("~")
	}
	if !t.f.nil_ {
		p.s("n")
	}
	p.s(fmt.Sprintf("int%d", t.z))
}

func ilog(con int64) int8 {
	switch {
	case 0 <= con && con <= 1:
		return 1
	case -128 <= con && con <= 127:
		return 8
	case -32768 <= con && con <= 32767:
		return 16
	case -2147483648 <= con && con <= 2147483647:
		return 32
	}
	return 64
}

func mix(h, v uint32) uint32 { return (h*31 + v) ^ (h >> 13) }

// hashPrime is a variable (not a const) so that Kind(k) * hashPrime is
// computed with wraparound uint32 arithmetic instead of being rejected as
// an overflowing constant expression.
var hashPrime uint32 = 0x9e3779b1

func mixFlags(h uint32, f nilf) uint32 {
	if f.any {
		h ^= 0x400
	}
	if f.nil_ {
		h ^= 0x200
	}
	if f.sub {
		h ^= 0x100
	}
	return h | 1
}

func min8(a, b int8) int8 {
	if a < b {
		return a
	}
	return b
}

func max8(a, b int8) int8 {
	if a > b {
		return a
	}
	return b
}
