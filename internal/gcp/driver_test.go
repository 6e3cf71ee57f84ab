package gcp

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"exopt/internal/node"
	"exopt/internal/types"
)

// Constant return: the scope demands the result, memory stays untouched.
func TestConstantReturn(t *testing.T) {
	ResetToInit0()
	mem := node.NewCon(types.ALLMEM)
	rez := node.NewCon(types.IntCon(5))
	scope := node.NewScope(mem, rez)

	o := New()
	require.NoError(t, o.Run(scope))

	require.Same(t, types.ANYMEM, scope.Live())
	require.Same(t, types.ALL, rez.Live())
	require.Same(t, types.IntCon(5), rez.Val())
}

// New + store: the escaped pointer is fully alive and the root liveness is
// the flattened final memory.
func TestNewStoreLiveness(t *testing.T) {
	ResetToInit0()
	mmm := node.NewStartMem()
	fdx := node.NewCon(types.IntCon(5))
	fdy := node.NewCon(types.IntCon(9))
	obj := node.NewStructNode().
		AddFld("x", types.AccessFinal, fdx).
		AddFld("y", types.AccessFinal, fdy)
	ptr := node.NewNew()
	mem := node.NewStore(mmm, ptr, obj)
	ld := node.Keep(node.NewLd(mem, ptr))
	scope := node.NewScope(mem, ptr)

	o := New()
	require.NoError(t, o.Run(scope))
	require.Equal(t, "@{x=5;y=9;}", types.Str(ld.Val()), "load sees the stored object")

	memVal, ok := mem.Val().(*types.TypeMem)
	require.True(t, ok, "store produces memory, got %s", types.Str(mem.Val()))
	require.Same(t, types.ANYMEM, mmm.Val())
	require.Same(t, memVal.FlattenLiveFields(), scope.Live())
	require.Same(t, types.ALL, ptr.Live(), "escaped pointer is fully alive")
	require.Same(t, types.ALL, fdx.Live())
	wantObj := types.MakeStruct(
		types.Fld{Label: "x", Access: types.AccessFinal, T: types.IntCon(5)},
		types.Fld{Label: "y", Access: types.AccessFinal, T: types.IntCon(9)},
	)
	require.Same(t, wantObj, memVal.At(ptr.Alias()))
}

func buildIdentityCall(arg node.Node) (*node.ScopeNode, *node.FunNode, *node.CallNode, *node.CallEpiNode, *node.ProjNode) {
	fun := node.NewFun("id", types.SCALAR)
	parm := node.NewParm(fun, 0)
	pmem := node.NewParm(fun, node.MemParmIdx)
	node.NewRet(fun, pmem, parm, fun)

	ctrl := node.NewCon(types.CTRL)
	mem := node.NewCon(types.ALLMEM)
	defmem := node.NewDefMem()
	fdx := node.NewFunPtr(fun)
	call := node.NewCall(ctrl, mem, fdx, arg)
	cepi := node.NewCallEpi(call, defmem)
	rez := node.NewProj(cepi, 2)
	scope := node.NewScope(node.NewMProj(cepi), rez)
	return scope, fun, call, cepi, rez
}

// Trivial inline: a 1-use identity callee collapses the CallEpi into a copy
// and the callee body leaves the graph.
func TestTrivialInline(t *testing.T) {
	ResetToInit0()
	arg := node.NewCon(types.IntCon(42))
	scope, fun, _, cepi, _ := buildIdentityCall(arg)

	o := New()
	require.NoError(t, o.Run(scope))

	require.Same(t, types.IntCon(42), scope.Rez().Val())
	require.Same(t, arg, node.Node(scope.Rez()), "result collapses onto the call argument")
	require.True(t, node.IsDead(fun), "inlined Fun leaves the graph")
	require.True(t, node.IsDead(cepi) || cepi.NumUses() == 0 || cepi.IsCopy(2) != nil)
	for _, n := range Walk(scope) {
		_, isFun := n.(*node.FunNode)
		_, isRet := n.(*node.RetNode)
		require.False(t, isFun || isRet, "no Fun/Ret survives the inline: %s", n.Xstr())
	}
}

// If with a nil-excluded predicate takes only the true arm.
func TestIfNilExcludedPredicate(t *testing.T) {
	ResetToInit0()
	ctrl := node.NewCon(types.CTRL)
	pred := node.NewCon(types.NINT64) // int, nil excluded
	iff := node.NewIf(ctrl, pred)
	tArm := node.NewCProj(iff, 1)
	fArm := node.NewCProj(iff, 0)
	node.Keep(tArm)
	node.Keep(fArm)

	o := New()
	o.workFlow.add(ctrl)
	o.workFlow.add(pred)
	o.workFlow.add(iff)
	o.workFlow.add(tArm)
	o.workFlow.add(fArm)
	require.NoError(t, o.Iterate(nil))

	require.Same(t, types.IfTrue, iff.Val())
	require.Same(t, ctrl, iff.IsCopy(1))
	require.Nil(t, iff.IsCopy(0))
	require.Same(t, types.CTRL, tArm.Val())
	require.Same(t, types.XCTRL, fArm.Val())
}

// Fidx split: the call conservatively covers both clones; the CallEpi
// freezes until both are wired, then resumes its descent.
func TestFidxSplitFreeze(t *testing.T) {
	ResetToInit0()
	fun := node.NewFun("f", types.SCALAR)
	fun.SetNoInline()
	pmem := node.NewParm(fun, node.MemParmIdx)
	node.NewParm(fun, 0)
	node.NewRet(fun, pmem, node.NewCon(types.IntCon(5)), fun)
	parent := fun.Fidx()

	ctrl := node.NewCon(types.CTRL)
	mem := node.NewCon(types.ALLMEM)
	defmem := node.NewDefMem()
	fdx := node.NewCon(types.FunPtrCon(parent, 1, types.SCALAR))
	call := node.NewCall(ctrl, mem, fdx, node.NewCon(types.IntCon(1)))
	cepi := node.NewCallEpi(call, defmem)
	rez := node.NewProj(cepi, 2)
	scope := node.NewScope(node.NewMProj(cepi), rez)

	o := New(WithHM(false))
	o.Seed(scope)
	require.NoError(t, o.Iterate(scope))
	o.Reduce(scope) // wires the single target
	require.NoError(t, o.Iterate(scope))
	require.Same(t, types.IntCon(5), rez.Val())
	frozen := cepi.Val()

	// Split: the original keeps running under a new child fidx, the clone
	// gets its sibling; the call's parent set covers both.
	clone := node.CloneFun(fun)
	cmem := node.NewParm(clone, node.MemParmIdx)
	node.NewParm(clone, 0)
	cret := node.NewRet(clone, cmem, node.NewCon(types.IntCon(7)), clone)

	o.Seed(scope)
	require.NoError(t, o.Iterate(scope))
	require.Same(t, frozen, cepi.Val(), "one wired child of a split parent freezes the CallEpi")

	// Wiring the clone resumes lattice descent.
	cepi.Wire(call, clone, cret)
	o.Seed(scope)
	require.NoError(t, o.Iterate(scope))
	tt := cepi.Val().(*types.TypeTuple)
	require.Same(t, types.NINT8, tt.At(2), "both clones merge: 5 meet 7")
}

// HM polymorphic identity: each use site gets its own instance; the generic
// stays a Leaf -> Leaf lambda.
func TestPolymorphicIdentity(t *testing.T) {
	ResetToInit0()
	fun := node.NewFun("id", types.SCALAR)
	parm := node.NewParm(fun, 0)
	pmem := node.NewParm(fun, node.MemParmIdx)
	node.NewRet(fun, pmem, parm, fun)
	fdx := node.NewFunPtr(fun)
	siteInt := node.NewFresh(fdx, nil)
	sitePtr := node.NewFresh(fdx, nil)

	ctrl := node.NewCon(types.CTRL)
	mem := node.NewCon(types.ALLMEM)
	defmem := node.NewDefMem()
	argInt := node.NewCon(types.IntCon(7))
	callInt := node.NewCall(ctrl, mem, siteInt, argInt)
	epiInt := node.NewCallEpi(callInt, defmem)
	argPtr := node.NewNew()
	callPtr := node.NewCall(ctrl, node.NewMProj(epiInt), sitePtr, argPtr)
	epiPtr := node.NewCallEpi(callPtr, defmem)
	scope := node.NewScope(node.NewMProj(epiPtr), node.NewProj(epiPtr, 2))

	o := New()
	require.NoError(t, o.Run(scope))

	// The generic stays polymorphic.
	lam := fun.TV().Find()
	require.Equal(t, "Lambda", lam.TVKind().String())
	require.Same(t, lam.Arg(0), lam.Ret(), "identity ties argument to return")
	require.Equal(t, "Leaf", lam.Arg(0).TVKind().String())

	// Each site's result equals its argument.
	require.Same(t, argInt.TV().Find(), epiInt.TV().Find())
	require.Same(t, argPtr.TV().Find(), epiPtr.TV().Find())
	require.NotSame(t, epiInt.TV().Find(), epiPtr.TV().Find())
}

// Wiring then unwiring restores the def/use edges exactly.
func TestWiringRoundTrip(t *testing.T) {
	ResetToInit0()
	arg := node.NewCon(types.IntCon(42))
	scope, fun, call, cepi, _ := buildIdentityCall(arg)
	fun.SetNoInline()

	o := New(WithHM(false))
	o.Seed(scope)
	require.NoError(t, o.Iterate(scope))

	snap := edgeSnapshot(scope)
	require.True(t, cepi.CheckAndWire(), "wiring must add an edge")
	require.NotEmpty(t, cmp.Diff(snap, edgeSnapshot(scope)), "wiring changes the graph")
	cepi.Unwire(call, fun.Ret())
	if diff := cmp.Diff(snap, edgeSnapshot(scope)); diff != "" {
		t.Fatalf("unwire must restore the pre-wire edges (-want +got):\n%s", diff)
	}
}

// edgeSnapshot captures the def edges of every live node by uid.
func edgeSnapshot(scope *node.ScopeNode) map[int][]int {
	out := map[int][]int{}
	for _, n := range Walk(scope) {
		defs := make([]int, 0, n.NumIns())
		for i := 0; i < n.NumIns(); i++ {
			if n.In(i) == nil {
				defs = append(defs, -1)
			} else {
				defs = append(defs, n.In(i).UID())
			}
		}
		out[n.UID()] = defs
	}
	return out
}

// Values are monotone in their inputs: lowering an input never raises the
// output.
func TestValueMonotone(t *testing.T) {
	ResetToInit0()
	a := node.NewCon(types.IntCon(3))
	b := node.NewCon(types.IntCon(4))
	p := node.NewPrim("+", a, b)
	a.SetVal(types.Dual(types.INT64))
	b.SetVal(types.Dual(types.INT64))
	hi := p.Value()
	a.SetVal(types.IntCon(3))
	mid := p.Value()
	b.SetVal(types.INT64)
	lo := p.Value()
	require.True(t, types.Isa(hi, mid), "%s isa %s", types.Str(hi), types.Str(mid))
	require.True(t, types.Isa(mid, lo), "%s isa %s", types.Str(mid), types.Str(lo))
}

// The driver terminates within the nodes-times-lattice-height budget.
func TestFixpointTerminates(t *testing.T) {
	ResetToInit0()
	mem := node.NewCon(types.ALLMEM)
	x := node.NewCon(types.IntCon(1))
	var chain node.Node = x
	for i := 0; i < 20; i++ {
		chain = node.NewPrim("+", chain, node.NewCon(types.IntCon(1)))
	}
	scope := node.NewScope(mem, chain)

	o := New()
	require.NoError(t, o.Run(scope))
	require.Same(t, types.IntCon(21), scope.Rez().Val())
	require.Less(t, o.Iters(), len(Walk(scope))*64+256)
}

// An unresolved forward ref surfaces as a diagnostic, not a crash.
func TestForwardRefError(t *testing.T) {
	ResetToInit0()
	fr := node.NewForwardRef("fact", 3).Scoped()
	mem := node.NewCon(types.ALLMEM)
	scope := node.NewScope(mem, fr)

	o := New()
	err := o.Run(scope)
	require.Error(t, err)
	require.True(t, o.Reporter().HasErrors())
	require.Contains(t, o.Reporter().Msgs()[0].Text, "fact")
	require.Same(t, types.Dual(types.GenericFunPtr), fr.Val())
}

// Arity mismatch at a call surfaces through unification.
func TestArityMismatch(t *testing.T) {
	ResetToInit0()
	fun := node.NewFun("two", types.SCALAR, types.SCALAR)
	p0 := node.NewParm(fun, 0)
	pmem := node.NewParm(fun, node.MemParmIdx)
	node.NewParm(fun, 1)
	node.NewRet(fun, pmem, p0, fun)

	ctrl := node.NewCon(types.CTRL)
	mem := node.NewCon(types.ALLMEM)
	defmem := node.NewDefMem()
	fdx := node.NewFunPtr(fun)
	call := node.NewCall(ctrl, mem, fdx, node.NewCon(types.IntCon(1))) // one arg, wants two
	cepi := node.NewCallEpi(call, defmem)
	scope := node.NewScope(node.NewMProj(cepi), node.NewProj(cepi, 2))

	o := New()
	err := o.Run(scope)
	require.Error(t, err)
	found := false
	for _, m := range o.Reporter().Msgs() {
		if m.Code.String() == "arity mismatch" {
			found = true
		}
	}
	require.True(t, found, "expected an arity diagnostic, got %v", o.Reporter().Msgs())
}
