package types

import (
	"testing"

	"github.com/stretchr/testify/require"

	"exopt/internal/bits"
)

func universe() []Type {
	return []Type{
		ANY, ALL, CTRL, XCTRL,
		NIL, XNIL, SCALAR, XSCALAR, NSCALR, XNSCALR,
		INT64, INT32, INT8, BOOL, NINT64, ZERO,
		Dual(INT64), Dual(INT8),
		IntCon(5), IntCon(-7), IntCon(123456789),
		FLT64, FLT32, Dual(FLT64), FltCon(3.5),
		OBJ, XOBJ, ISUSED, UNUSED, STR, StrCon("abc"),
		MakeStruct(Fld{"x", AccessFinal, INT64}, Fld{"y", AccessFinal, FLT64}),
		Dual(MakeStruct(Fld{"x", AccessFinal, INT64}, Fld{"y", AccessFinal, FLT64})),
		PtrOBJ, Dual(PtrOBJ),
		MakeMemPtr(bits.Alias.MakeCon(3), OBJ),
		GenericFunPtr, Dual(GenericFunPtr), EmptyFunPtr,
		MakeFunPtr(bits.Fun.MakeCon(4), 2, NoDisp, SCALAR),
		MEM, XMEM, ALLMEM, ANYMEM,
		MakeMemAlias(3, OBJ),
		IfAll, IfTrue, IfFalse, IfAny, TupRET,
	}
}

func TestInternIdentity(t *testing.T) {
	require.Same(t, IntCon(5), IntCon(5))
	require.Same(t, MakeStruct(Fld{"x", AccessFinal, INT64}), MakeStruct(Fld{"x", AccessFinal, INT64}))
	require.Same(t, MakeMemPtr(bits.Alias.MakeCon(3), OBJ), MakeMemPtr(bits.Alias.MakeCon(3), OBJ))
	require.Same(t, MakeTuple(CTRL, MEM, ALL), TupRET)
}

func TestDualInvolution(t *testing.T) {
	for _, a := range universe() {
		require.Same(t, a, Dual(Dual(a)), "dual(dual(%s))", Str(a))
	}
}

func TestMeetIdempotentCommutative(t *testing.T) {
	u := universe()
	for _, a := range u {
		require.Same(t, a, Meet(a, a), "meet(%s,%s)", Str(a), Str(a))
		for _, b := range u {
			ab, ba := Meet(a, b), Meet(b, a)
			require.Same(t, ab, ba, "meet(%s,%s) vs flipped: %s / %s", Str(a), Str(b), Str(ab), Str(ba))
		}
	}
}

// Associativity over the nilable scalars, where the three-flag algebra and
// the keep-constant rule interact; Bits inherits the source's weaker
// cross-polarity contract and is checked in its own package.
func TestMeetAssociativeNilable(t *testing.T) {
	u := []Type{
		ANY, ALL, NIL, XNIL, SCALAR, XSCALAR, NSCALR, XNSCALR,
		INT64, INT8, NINT64, ZERO, Dual(INT64), Dual(INT8),
		IntCon(5), IntCon(3), FLT64, Dual(FLT64), FltCon(2.5),
	}
	for _, a := range u {
		for _, b := range u {
			for _, c := range u {
				l := Meet(Meet(a, b), c)
				r := Meet(a, Meet(b, c))
				if l != r {
					t.Fatalf("assoc broken: (%s %s %s): %s vs %s",
						Str(a), Str(b), Str(c), Str(l), Str(r))
				}
			}
		}
	}
}

func TestJoinLaw(t *testing.T) {
	u := universe()
	for _, a := range u {
		for _, b := range u {
			require.Same(t, Dual(Meet(Dual(a), Dual(b))), Join(a, b))
		}
	}
}

func TestTopBottom(t *testing.T) {
	for _, a := range universe() {
		require.Same(t, a, Meet(a, ANY), "ANY is identity for %s", Str(a))
		require.Same(t, ALL, Meet(a, ALL), "ALL absorbs %s", Str(a))
	}
}

func TestIntMeet(t *testing.T) {
	require.Same(t, INT64, Meet(INT64, IntCon(5)))
	require.Same(t, INT64, Meet(INT64, INT8))
	// A constant survives against a compatible high.
	require.Same(t, IntCon(5), Meet(IntCon(5), Dual(INT64)))
	// Both high narrows.
	m := Meet(Dual(INT64), Dual(INT8))
	require.Same(t, Dual(INT8), m)
	// Two distinct constants widen to their log size, nil excluded.
	require.Same(t, NINT8, Meet(IntCon(3), IntCon(5)))
	require.True(t, IsCon(IntCon(5)))
	require.False(t, IsCon(INT64))
	require.EqualValues(t, 5, IntCon(5).Con())
}

func TestNilFolding(t *testing.T) {
	require.Same(t, INT64, Meet(NIL, INT64)) // int64 already admits zero
	withNil := Meet(NIL, NINT64)
	require.Same(t, INT64, withNil)
	require.Same(t, IntCon(5), Meet(XNIL, IntCon(5)))
	ptr := MakeMemPtr(bits.Alias.MakeCon(3), OBJ)
	pn := Meet(NIL, ptr).(*TypeMemPtr)
	require.True(t, pn.Aliases().MustNil())
}

func TestAboveCenter(t *testing.T) {
	require.True(t, AboveCenter(ANY))
	require.False(t, AboveCenter(ALL))
	require.True(t, AboveCenter(Dual(INT64)))
	require.False(t, AboveCenter(IntCon(5)))
	require.True(t, AboveCenter(IfAny))
	require.False(t, AboveCenter(IfTrue))
}

func TestFunPtrNargsRule(t *testing.T) {
	short := MakeFunPtr(bits.Fun.MakeCon(3), 1, NoDisp, SCALAR)
	long := MakeFunPtr(bits.Fun.MakeCon(4), 3, NoDisp, SCALAR)
	// A constant fidx with the high no-display is above center, so short is
	// the high side and its dual (display ALL) the low side.
	// Low short side wins.
	require.Equal(t, 1, Meet(Dual(short), long).(*TypeFunPtr).Nargs())
	// High short side loses.
	require.Equal(t, 3, Meet(short, long).(*TypeFunPtr).Nargs())
}

func TestFunPtrMeetParts(t *testing.T) {
	a := MakeFunPtr(bits.Fun.MakeCon(3), 2, NoDisp, IntCon(5))
	b := MakeFunPtr(bits.Fun.MakeCon(4), 2, NoDisp, IntCon(9))
	m := Meet(a, b).(*TypeFunPtr)
	require.True(t, m.Fidxs().Test(3))
	require.True(t, m.Fidxs().Test(4))
	require.Same(t, NINT8, m.Ret())
}

func TestMemMeetByAlias(t *testing.T) {
	obj := MakeStruct(Fld{"x", AccessFinal, IntCon(5)})
	a := MakeMemAlias(3, obj)
	b := MakeMemAlias(3, obj)
	require.Same(t, a, b)
	c := Meet(a, MakeMemAlias(3, OBJ)).(*TypeMem)
	require.Same(t, OBJ, c.At(3))
	require.Same(t, XOBJ, c.At(9)) // untouched aliases keep the dont-care default
}

func TestMemLd(t *testing.T) {
	obj := MakeStruct(Fld{"x", AccessFinal, IntCon(5)})
	mem := MakeMemAlias(3, obj)
	lo := mem.Ld(MakeMemPtr(bits.Alias.MakeCon(3), XOBJ))
	require.Same(t, obj, lo)
	// The dual of a single-alias pointer keeps its constant alias set, which
	// is not above center, so the load still meets.
	hi := mem.Ld(Dual(MakeMemPtr(bits.Alias.MakeCon(3), XOBJ)).(*TypeMemPtr))
	require.Same(t, obj, hi)
}

func TestMemMerge(t *testing.T) {
	obj := MakeStruct(Fld{"x", AccessFinal, IntCon(5)})
	m := ANYMEM.Merge(MakeMemAlias(4, obj))
	require.Same(t, obj, m.At(4))
	require.Panics(t, func() {
		m.St(MakeMemPtr(bits.Alias.MakeCon(4), obj), "x", IntCon(6))
	}, "field-level store is an explicit precondition")
}

func TestFlattenLiveFields(t *testing.T) {
	require.Same(t, ANYMEM, ALLMEM.FlattenLiveFields())
	obj := MakeStruct(Fld{"x", AccessFinal, IntCon(5)})
	f := ANYMEM.Merge(MakeMemAlias(4, obj)).FlattenLiveFields()
	require.Same(t, ISUSED, f.At(4))
	require.Same(t, UNUSED, f.At(2))
}

func TestStructMeet(t *testing.T) {
	a := MakeStruct(Fld{"x", AccessFinal, IntCon(5)}, Fld{"y", AccessFinal, IntCon(9)})
	b := MakeStruct(Fld{"x", AccessFinal, IntCon(6)}, Fld{"y", AccessFinal, IntCon(9)})
	m := Meet(a, b).(*TypeStruct)
	require.Same(t, NINT8, m.Find("x"))
	require.Same(t, IntCon(9), m.Find("y"))
	// Label mismatch bottoms out.
	c := MakeStruct(Fld{"z", AccessFinal, IntCon(1)})
	require.Same(t, OBJ, Meet(a, c))
}

func TestCyclicIntern(t *testing.T) {
	build := func() *TypeStruct {
		s := RawStruct(Fld{"next", AccessFinal, nil}, Fld{"v", AccessFinal, INT64})
		p := RawMemPtr(bits.Alias.MakeCon(3), s)
		s.SetFld(0, p)
		return CloseCycle(s).(*TypeStruct)
	}
	a := build()
	b := build()
	require.Same(t, a, b, "cycle-equal graphs intern to one instance")
	require.True(t, CycleEquals(a, b))
	// The dual cycle closes too.
	d := Dual(a).(*TypeStruct)
	require.Same(t, a, Dual(d))
	require.NotSame(t, a, d)
}

func TestOOB(t *testing.T) {
	require.Same(t, TupRET, OOB(ALL, TupRET))
	require.Same(t, Dual(TupRET), OOB(ANY, TupRET))
}

func TestIsa(t *testing.T) {
	require.True(t, Isa(IntCon(5), INT64))
	require.True(t, Isa(ANY, ALL))
	require.False(t, Isa(INT64, IntCon(5)))
}
