package types

import "fmt"

// TypeObj is the family of values that live in a memory alias slot: structs,
// strings, arrays and the primitive markers.
type TypeObj interface {
	Type
	isObj()
}

// TypeObjPrim is a named memory-object marker. The four markers form a chain
// OBJ < ISUSED < UNUSED < XOBJ, which keeps their meets trivially lattice.
type TypeObjPrim struct {
	tbase
	name string
	rank int8
	high bool
}

var (
	OBJ    *TypeObjPrim // some object, fully used
	ISUSED *TypeObjPrim // alive: contents demanded
	UNUSED *TypeObjPrim // dead: contents not demanded
	XOBJ   *TypeObjPrim // dont-care object
)

func initObjs() {
	OBJ = makeObjPrim("obj", 0, false, "~obj")
	XOBJ = Dual(OBJ).(*TypeObjPrim)
	ISUSED = makeObjPrim("use", 1, false, "~use")
	UNUSED = Dual(ISUSED).(*TypeObjPrim)
	initStrs()
}

func makeObjPrim(name string, rank int8, high bool, dualName string) *TypeObjPrim {
	t := &TypeObjPrim{tbase: newBase(KindObj), name: name, rank: rank, high: high}
	t.dualNameHint = dualName
	return install(t)
}

func (t *TypeObjPrim) isObj() {}

func (t *TypeObjPrim) hashContent() uint32 {
	h := uint32(KindObj) * hashPrime
	for _, c := range t.name {
		h = h*31 + uint32(c)
	}
	if t.high {
		h ^= 0x8000
	}
	return h | 1
}

func (t *TypeObjPrim) eqContent(o Type) bool {
	p := o.(*TypeObjPrim)
	return t.name == p.name && t.high == p.high
}

func (t *TypeObjPrim) xdual() Type {
	d := &TypeObjPrim{tbase: newBase(KindObj), name: t.dualNameHint, rank: 3 - t.rank, high: !t.high}
	d.dualNameHint = t.name
	return d
}

func (t *TypeObjPrim) xmeet(o Type) Type {
	p := o.(*TypeObjPrim)
	if t.order() < p.order() {
		return t
	}
	return p
}

// order linearizes the marker chain: OBJ(0) < ISUSED(1) < UNUSED(2) < XOBJ(3).
// The dual constructor keeps rank and high in sync.
func (t *TypeObjPrim) order() int8 { return t.rank }

func (t *TypeObjPrim) str(p *printer) {
	if t.high {
		p.s("~")
	}
	p.s(t.name)
}

// objCrossMeet meets distinct object variants: a high marker yields the
// other side, anything else falls to the bottom object.
func objCrossMeet(a, b TypeObj) TypeObj {
	if ap, ok := a.(*TypeObjPrim); ok {
		if ap.high {
			return b
		}
		return OBJ
	}
	if bp, ok := b.(*TypeObjPrim); ok {
		if bp.high {
			return a
		}
		return OBJ
	}
	return OBJ
}

// TypeStr models string objects; con=="" is the full string range.
type TypeStr struct {
	tbase
	any bool
	con string
}

var STR *TypeStr

func initStrs() {
	STR = MakeStr(false, "")
}

// MakeStr interns a string object. Constants carry any==false.
func MakeStr(any bool, con string) *TypeStr {
	return install(&TypeStr{tbase: newBase(KindStr), any: any, con: con})
}

// StrCon interns a constant string.
func StrCon(con string) *TypeStr { return MakeStr(false, con) }

func (t *TypeStr) isObj() {}

func (t *TypeStr) hashContent() uint32 {
	h := uint32(KindStr) * hashPrime
	for _, c := range t.con {
		h = h*31 + uint32(c)
	}
	if t.any {
		h ^= 0x8000
	}
	return h | 1
}

func (t *TypeStr) eqContent(o Type) bool {
	s := o.(*TypeStr)
	return t.any == s.any && t.con == s.con
}

func (t *TypeStr) xdual() Type {
	if t.con != "" {
		return &TypeStr{tbase: newBase(KindStr), any: t.any, con: t.con} // constants self-dual
	}
	return &TypeStr{tbase: newBase(KindStr), any: !t.any, con: ""}
}

func (t *TypeStr) xmeet(o Type) Type {
	s := o.(*TypeStr)
	if t.any {
		return s
	}
	if s.any {
		return t
	}
	return STR // two distinct low strings
}

func (t *TypeStr) str(p *printer) {
	if t.con != "" {
		p.s(fmt.Sprintf("%q", t.con))
		return
	}
	if t.any {
		p.s("~")
	}
	p.s("str")
}

// TypeAry is a length x element array object.
type TypeAry struct {
	tbase
	any  bool
	len  Type
	elem Type
}

// MakeAry interns an array object.
func MakeAry(any bool, length, elem Type) *TypeAry {
	return install(&TypeAry{tbase: newBase(KindAry), any: any, len: length, elem: elem})
}

func (t *TypeAry) isObj() {}

// Len is the array length type.
func (t *TypeAry) Len() Type { return t.len }

// Elem is the array element type.
func (t *TypeAry) Elem() Type { return t.elem }

func (t *TypeAry) hashContent() uint32 {
	h := uint32(KindAry) * hashPrime
	h = mix(h, Hash(t.len))
	h = mix(h, Hash(t.elem))
	if t.any {
		h ^= 0x8000
	}
	return h | 1
}

func (t *TypeAry) eqContent(o Type) bool {
	a := o.(*TypeAry)
	return t.any == a.any && t.len == a.len && t.elem == a.elem
}

func (t *TypeAry) xdual() Type {
	return &TypeAry{tbase: newBase(KindAry), any: !t.any, len: Dual(t.len), elem: Dual(t.elem)}
}

func (t *TypeAry) xmeet(o Type) Type {
	a := o.(*TypeAry)
	return MakeAry(t.any && a.any, Meet(t.len, a.len), Meet(t.elem, a.elem))
}

func (t *TypeAry) str(p *printer) {
	if t.any {
		p.s("~")
	}
	p.s("[")
	p.typ(t.len)
	p.s("]")
	p.typ(t.elem)
}
