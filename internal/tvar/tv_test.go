package tvar

import (
	"testing"

	"github.com/stretchr/testify/require"

	"exopt/internal/types"
)

func TestFindIdempotent(t *testing.T) {
	a, b, c := NewLeaf(), NewLeaf(), NewLeaf()
	a.Union(b)
	b.Union(c)
	require.Same(t, a.Find(), a.Find().Find())
	require.Same(t, c, a.Find())
	require.Same(t, a.Find(), b.Find())
}

func TestUnionMergesFlags(t *testing.T) {
	a, b := NewLeaf(), NewLeaf()
	a.AddMayNil(false)
	a.Widen(2, false)
	a.Union(b)
	require.True(t, b.MayNil())
	require.False(t, a.Unified() && a.Find() != b)
}

func TestLeafAbsorbs(t *testing.T) {
	leaf := NewLeaf()
	base := NewBase(types.INT64)
	require.True(t, leaf.Unify(base, false))
	require.Same(t, leaf.Find(), base.Find())
	require.Equal(t, KBase, leaf.TVKind())
	// Idempotent afterwards.
	require.False(t, leaf.Unify(base, false))
}

func TestUnifySymmetry(t *testing.T) {
	mk := func() (*TV, *TV) {
		a := NewLambda([]*TV{NewLeaf()}, NewBase(types.INT64))
		b := NewLambda([]*TV{NewBase(types.FLT64)}, NewLeaf())
		return a, b
	}
	a1, b1 := mk()
	a1.Unify(b1, false)
	a2, b2 := mk()
	b2.Unify(a2, false)
	// Same leader structure either way (modulo representative).
	require.Same(t, a1.Find(), b1.Find())
	require.Same(t, a2.Find(), b2.Find())
	require.Equal(t, a1.Find().Str(), a2.Find().Str())
}

func TestBaseMeets(t *testing.T) {
	a := NewBase(types.IntCon(5))
	b := NewBase(types.IntCon(9))
	a.Unify(b, false)
	require.Same(t, types.NINT8, a.Flow())
}

func TestMismatchedKindsMakeErr(t *testing.T) {
	lam := NewLambda([]*TV{NewLeaf()}, NewLeaf())
	str := NewStruct([]string{"x"}, []*TV{NewLeaf()}, false)
	require.True(t, lam.Unify(str, false))
	require.True(t, lam.IsErr())
	require.True(t, str.IsErr())
	require.Same(t, lam.Find(), str.Find())
}

func TestLambdaArityErr(t *testing.T) {
	a := NewLambda([]*TV{NewLeaf()}, NewLeaf())
	b := NewLambda([]*TV{NewLeaf(), NewLeaf()}, NewLeaf())
	require.True(t, a.Unify(b, false))
	require.True(t, a.IsErr())
}

func TestTestModeHasNoEffect(t *testing.T) {
	a := NewLambda([]*TV{NewLeaf()}, NewBase(types.INT64))
	b := NewLambda([]*TV{NewBase(types.FLT64)}, NewLeaf())
	require.True(t, a.Unify(b, true))
	require.NotSame(t, a.Find(), b.Find())
	require.False(t, a.IsErr())
}

func TestStructUnifyByLabel(t *testing.T) {
	x1, y1 := NewBase(types.IntCon(5)), NewLeaf()
	a := NewStruct([]string{"x", "y"}, []*TV{x1, y1}, false)
	x2, y2 := NewLeaf(), NewBase(types.FLT64)
	b := NewStruct([]string{"x", "y"}, []*TV{x2, y2}, false)
	require.True(t, a.Unify(b, false))
	require.Same(t, x1.Find(), x2.Find())
	require.Same(t, types.IntCon(5), x2.Flow())
	require.Same(t, types.FLT64, y1.Flow())
}

func TestOpenStructAbsorbs(t *testing.T) {
	a := NewStruct([]string{"x"}, []*TV{NewBase(types.INT64)}, false)
	b := NewStruct(nil, nil, true)
	require.True(t, a.Unify(b, false))
	lead := a.Find()
	require.NotNil(t, lead.ArgOf("x"))
	require.False(t, lead.IsErr())
}

func TestNilWrapperUnify(t *testing.T) {
	inner := NewLeaf()
	n := NewNil(inner)
	p := NewPtr(false, NewLeaf())
	require.True(t, n.Unify(p, false))
	require.True(t, p.MayNil())
	require.Same(t, inner.Find(), p.Find())
}

func TestNilViolation(t *testing.T) {
	a := NewLeaf()
	a.AddMayNil(false)
	a.AddUseNil(false)
	require.True(t, a.NilErr())
}

func TestCyclicUnifyTerminates(t *testing.T) {
	// a = { a -> X }, b = { b -> Y }: iso-recursive lambdas unify.
	mkRec := func() *TV {
		lam := NewLambda([]*TV{NewLeaf()}, NewLeaf())
		lam.args[0] = lam // direct self-cycle through the formal
		return lam
	}
	a, b := mkRec(), mkRec()
	require.True(t, a.Unify(b, false))
	require.Same(t, a.Find(), b.Find())
}

func TestFreshUnifySoundness(t *testing.T) {
	// Generic identity { A -> A } fresh-unified at an int site.
	a := NewLeaf()
	id := NewLambda([]*TV{a}, a)
	argTV, retTV := NewBase(types.IntCon(7)), NewLeaf()
	site := NewLambda([]*TV{argTV}, retTV)
	require.True(t, id.FreshUnify(nil, site, nil, false))
	// Parallel structure: the site's argument and return collapsed.
	require.Same(t, argTV.Find(), retTV.Find())
	// The generic stays generic.
	require.Equal(t, KLeaf, a.TVKind())
	require.Equal(t, KLambda, id.TVKind())
	require.False(t, id.Find() == site.Find())

	// A second, unrelated site gets its own instance.
	arg2, ret2 := NewBase(types.FLT64), NewLeaf()
	site2 := NewLambda([]*TV{arg2}, ret2)
	require.True(t, id.FreshUnify(nil, site2, nil, false))
	require.Same(t, arg2.Find(), ret2.Find())
	require.NotSame(t, argTV.Find(), arg2.Find())
}

func TestFreshUnifyNongenForcesHardUnify(t *testing.T) {
	a := NewLeaf()
	id := NewLambda([]*TV{a}, a)
	argTV := NewBase(types.IntCon(7))
	site := NewLambda([]*TV{argTV}, NewLeaf())
	// With the formal in the non-generic set the leaf hard-unifies and the
	// generic is pinned.
	require.True(t, id.FreshUnify(nil, site, []*TV{a}, false))
	require.Equal(t, KBase, a.TVKind())
}

type fakeDep struct{ id int }

func (f *fakeDep) UID() int { return f.id }

func TestDelayFreshRefires(t *testing.T) {
	Reset()
	a := NewLeaf()
	id := NewLambda([]*TV{a}, a)
	retTV := NewLeaf()
	site := NewLambda([]*TV{NewLeaf()}, retTV)
	dep := &fakeDep{1}
	id.FreshUnify(dep, site, nil, false)
	// The generic leaf later grows structure; the parked fresh-unification
	// must re-fire and push it through to the site.
	a.Unify(NewBase(types.INT64), false)
	require.False(t, DelayedEmpty())
	require.True(t, DoDelayFresh())
	require.Same(t, types.INT64, retTV.Flow())
}

func TestTrialUnifyPure(t *testing.T) {
	lam := NewLambda([]*TV{NewLeaf()}, NewLeaf())
	str := NewStruct([]string{"x"}, []*TV{NewLeaf()}, false)
	require.False(t, lam.TrialUnifyOK(str))
	require.False(t, lam.IsErr(), "trial must not mutate")
	require.True(t, lam.TrialUnifyOK(NewLambda([]*TV{NewLeaf()}, NewLeaf())))
	a := NewBase(types.IntCon(5))
	require.True(t, a.TrialUnifyOK(NewBase(types.INT64)))
}

func TestTrialResolveInferredField(t *testing.T) {
	x := NewBase(types.INT64)
	inf := NewBase(types.IntCon(3))
	s := NewStruct([]string{"x", "_1"}, []*TV{x, inf}, false)
	s.TrialResolveAll()
	lead := s.Find()
	require.Equal(t, 1, lead.Len(), "inferred field folds into its match")
	require.Same(t, x.Find(), inf.Find())
}

func TestDelayResolveQueue(t *testing.T) {
	Reset()
	leaf := NewLeaf()
	s := NewStruct([]string{"x", "_1"}, []*TV{NewBase(types.INT64), leaf}, false)
	leaf.AddDelayResolve(s)
	// The leaf sharpens; its parked struct re-resolves between rounds.
	leaf.Unify(NewBase(types.IntCon(7)), false)
	require.False(t, DelayedEmpty())
	require.True(t, DoDelayResolve())
	require.Equal(t, 1, s.Find().Len())
}

func TestWidenPropagates(t *testing.T) {
	b := NewBase(types.IntCon(5))
	lam := NewLambda([]*TV{b}, NewLeaf())
	require.True(t, lam.Widen(2, false))
	require.Same(t, types.INT64, b.Flow())
	require.False(t, lam.Widen(1, false), "widen is monotone")
}

func TestDepsFireOnUnion(t *testing.T) {
	Reset()
	a := NewBase(types.IntCon(5))
	dep := &fakeDep{7}
	a.DepsAdd(dep)
	b := NewBase(types.IntCon(9))
	a.Unify(b, false)
	touched := TakeTouched()
	require.Contains(t, touched, Dep(dep))
}
