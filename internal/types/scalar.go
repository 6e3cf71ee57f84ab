package types

// TypeScalar is a named marker value: the lattice extrema and the control
// pair. Control is data like everything else in a sea of nodes.
type TypeScalar struct {
	tbase
	name string
	high bool
}

var (
	ANY   *TypeScalar // lattice top
	ALL   *TypeScalar // lattice bottom
	CTRL  *TypeScalar // reachable control
	XCTRL *TypeScalar // unreachable control
)

func makeScalar(name string, high bool, dualName string) *TypeScalar {
	t := &TypeScalar{tbase: newBase(KindScalar), name: name, high: high}
	t.dualNameHint = dualName
	return install(t)
}

func (t *TypeScalar) hashContent() uint32 {
	h := uint32(KindScalar) * hashPrime
	for _, c := range t.name {
		h = h*31 + uint32(c)
	}
	return h | 1
}

func (t *TypeScalar) eqContent(o Type) bool { return t.name == o.(*TypeScalar).name }

func (t *TypeScalar) xdual() Type {
	d := &TypeScalar{tbase: newBase(KindScalar), name: t.dualNameHint, high: !t.high}
	d.dualNameHint = t.name
	return d
}

func (t *TypeScalar) xmeet(o Type) Type {
	// Only the control pair shares this kind meet; extrema are peeled off in
	// Meet itself.
	return CTRL
}

func (t *TypeScalar) str(p *printer) { p.s(t.name) }

func initScalars() {
	ANY = makeScalar("any", true, "all")
	ALL = Dual(ANY).(*TypeScalar)
	CTRL = makeScalar("Ctrl", false, "~Ctrl")
	XCTRL = Dual(CTRL).(*TypeScalar)

	NIL = makeNilScalar(nilf{false, true, false})
	XNIL = Dual(NIL).(*TypeNilScalar)
	SCALAR = makeNilScalar(nilf{false, true, true})
	XSCALAR = Dual(SCALAR).(*TypeNilScalar)
	NSCALR = makeNilScalar(nilf{false, false, true})
	XNSCALR = Dual(NSCALR).(*TypeNilScalar)
}

// nilf is the three-flag nil algebra shared by every nilable scalar: any is
// high/low, nil is "the value set includes 0", sub is "includes non-zero".
// Dual flips polarity only; a high value's inclusions are choices.
type nilf struct {
	any  bool
	nil_ bool
	sub  bool
}

func (f nilf) dual() nilf { f.any = !f.any; return f }

// meet unions inclusions at equal polarity; across polarities the low side
// carries the result (the same weaker-but-monotone contract Bits uses).
func (a nilf) meet(b nilf) nilf {
	switch {
	case a.any == b.any:
		return nilf{a.any, a.nil_ || b.nil_, a.sub || b.sub}
	case a.any:
		return b
	default:
		return a
	}
}

// TypeNilScalar is a kind-free nilable scalar: NIL, XNIL and the SCALAR
// family that cross-kind meets of nilable values fall to.
type TypeNilScalar struct {
	tbase
	f nilf
}

var (
	NIL     *TypeNilScalar // exactly zero
	XNIL    *TypeNilScalar // high zero
	SCALAR  *TypeNilScalar // any nilable value
	XSCALAR *TypeNilScalar
	NSCALR  *TypeNilScalar // any non-nil value
	XNSCALR *TypeNilScalar
)

func makeNilScalar(f nilf) *TypeNilScalar {
	return install(&TypeNilScalar{tbase: newBase(KindNil), f: f})
}

func (t *TypeNilScalar) hashContent() uint32 {
	h := uint32(KindNil) * hashPrime
	if t.f.any {
		h ^= 0x40
	}
	if t.f.nil_ {
		h ^= 0x20
	}
	if t.f.sub {
		h ^= 0x10
	}
	return h | 1
}

func (t *TypeNilScalar) eqContent(o Type) bool { return t.f == o.(*TypeNilScalar).f }

func (t *TypeNilScalar) xdual() Type {
	return &TypeNilScalar{tbase: newBase(KindNil), f: t.f.dual()}
}

func (t *TypeNilScalar) xmeet(o Type) Type {
	return nilScalarFor(t.f.meet(o.(*TypeNilScalar).f))
}

func (t *TypeNilScalar) str(p *printer) {
	switch t {
	case NIL:
		p.s("nil")
	case XNIL:
		p.s("~nil")
	case SCALAR:
		p.s("Scalar")
	case XSCALAR:
		p.s("~Scalar")
	case NSCALR:
		p.s("nScalar")
	case XNSCALR:
		p.s("~nScalar")
	default:
		p.s("NilScalar")
	}
}

// nilScalarFor maps a flag triple back to its interned scalar.
func nilScalarFor(f nilf) *TypeNilScalar { return makeNilScalar(f) }

// nilFlagsOf projects any nilable value onto the flag algebra.
func nilFlagsOf(t Type) nilf {
	switch tt := t.(type) {
	case *TypeNilScalar:
		return tt.f
	case *TypeInt:
		return tt.f
	case *TypeFlt:
		return tt.f
	case *TypeMemPtr:
		return nilf{tt.aliases.AboveCenter(), tt.aliases.MayNil() || tt.aliases.MustNil(), tt.aliases.NotNil().ABit() != 0 || !tt.aliases.IsCon()}
	case *TypeFunPtr:
		return nilf{tt.fidxs.AboveCenter(), tt.fidxs.MayNil() || tt.fidxs.MustNil(), tt.fidxs.NotNil().ABit() != 0 || !tt.fidxs.IsCon()}
	}
	return nilf{false, true, true}
}

// nilableCrossMeet meets nilable scalars of different kinds. The NIL family
// folds into the typed side; unrelated kinds fall to the SCALAR family.
func nilableCrossMeet(a, b Type) Type {
	if a.Kind() == KindNil {
		return meetNilInto(a.(*TypeNilScalar), b)
	}
	if b.Kind() == KindNil {
		return meetNilInto(b.(*TypeNilScalar), a)
	}
	fa, fb := nilFlagsOf(a), nilFlagsOf(b)
	switch {
	case fa.any && !fb.any:
		return b
	case fb.any && !fa.any:
		return a
	default:
		return nilScalarFor(fa.meet(fb))
	}
}

func meetNilInto(n *TypeNilScalar, t Type) Type {
	if n == NIL || n == XNIL {
		switch tt := t.(type) {
		case *TypeInt:
			return tt.meetFlags(n.f)
		case *TypeFlt:
			return tt.meetFlags(n.f)
		case *TypeMemPtr:
			if n.f.any && !tt.aliases.AboveCenter() {
				return tt // high nil against a low pointer
			}
			if !n.f.any && tt.aliases.AboveCenter() {
				return NIL
			}
			return MakeMemPtr(tt.aliases.Meet(alias().Nil()), tt.obj)
		case *TypeFunPtr:
			if n.f.any && !tt.fidxs.AboveCenter() {
				return tt
			}
			if !n.f.any && tt.fidxs.AboveCenter() {
				return NIL
			}
			return MakeFunPtr(tt.fidxs.Meet(fun().Nil()), tt.nargs, tt.dsp, tt.ret)
		}
	}
	ft := nilFlagsOf(t)
	switch {
	case n.f.any && !ft.any:
		return t
	case ft.any && !n.f.any:
		return n
	default:
		return nilScalarFor(n.f.meet(ft))
	}
}
