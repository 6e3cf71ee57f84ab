package node

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"exopt/internal/types"
)

func uses(n Node) []int {
	out := []int{}
	for _, u := range n.Uses() {
		out = append(out, u.UID())
	}
	return out
}

func TestEdgeMaintenance(t *testing.T) {
	a := NewCon(types.IntCon(1))
	b := NewCon(types.IntCon(2))
	p := NewPrim("+", a, b)

	if got, want := uses(a), []int{p.UID()}; !cmp.Equal(got, want) {
		t.Fatalf("use edge missing: %s", cmp.Diff(want, got))
	}
	c := NewCon(types.IntCon(3))
	SetDef(p, 1, c)
	if len(a.Uses()) != 0 {
		t.Fatalf("SetDef must drop the old use edge")
	}
	if got, want := uses(c), []int{p.UID()}; !cmp.Equal(got, want) {
		t.Fatalf("SetDef must add the new use edge: %s", cmp.Diff(want, got))
	}
}

func TestRemoveDefPreservesOrder(t *testing.T) {
	a, b, c := NewCon(types.IntCon(1)), NewCon(types.IntCon(2)), NewCon(types.IntCon(3))
	p := NewPrim("+", a, b)
	AddDef(p, c)
	RemoveDefAt(p, 2) // drops b
	if p.In(1) != Node(a) || p.In(2) != Node(c) {
		t.Fatalf("RemoveDefAt must keep order: got %v %v", p.In(1), p.In(2))
	}
}

func TestKillCascades(t *testing.T) {
	a := NewCon(types.IntCon(1))
	p := NewPrim("!", a)
	q := NewPrim("!", p)
	Kill(q)
	if !IsDead(q) || !IsDead(p) || !IsDead(a) {
		t.Fatalf("kill must cascade through newly-unused defs")
	}
}

func TestKillRespectsPins(t *testing.T) {
	a := NewCon(types.IntCon(1))
	Keep(a)
	p := NewPrim("!", a)
	Kill(p)
	if IsDead(a) {
		t.Fatalf("pinned nodes survive their last use")
	}
}

func TestSubsume(t *testing.T) {
	a := NewCon(types.IntCon(1))
	b := NewCon(types.IntCon(2))
	p := NewPrim("!", a)
	Keep(p)
	Subsume(a, b)
	if p.In(1) != Node(b) {
		t.Fatalf("subsume must redirect uses")
	}
	if !IsDead(a) {
		t.Fatalf("subsume kills the replaced node")
	}
}

func TestStoreValueMergesAlias(t *testing.T) {
	mmm := NewCon(types.ANYMEM)
	mmm.SetVal(types.ANYMEM)
	fx := NewCon(types.IntCon(5))
	fx.SetVal(fx.Value())
	obj := NewStructNode().AddFld("x", types.AccessFinal, fx)
	obj.SetVal(obj.Value())
	ptr := NewNew()
	ptr.SetVal(ptr.Value())
	st := NewStore(mmm, ptr, obj)
	mem, ok := st.Value().(*types.TypeMem)
	if !ok {
		t.Fatalf("store value must be memory")
	}
	if mem.At(ptr.Alias()) == types.XOBJ {
		t.Fatalf("stored alias must carry the object")
	}
}

func TestPrimFoldsConstants(t *testing.T) {
	a := NewCon(types.IntCon(3))
	b := NewCon(types.IntCon(4))
	a.SetVal(a.Value())
	b.SetVal(b.Value())
	p := NewPrim("*", a, b)
	if got := p.Value(); got != types.IntCon(12) {
		t.Fatalf("constant fold: got %s", types.Str(got))
	}
	b.SetVal(types.INT64)
	if got := p.Value(); got != types.INT64 {
		t.Fatalf("non-constant widens to the prim result: got %s", types.Str(got))
	}
}

func TestIfPredicateFlags(t *testing.T) {
	cases := []struct {
		pred types.Type
		want *types.TypeTuple
	}{
		{types.IntCon(0), types.IfFalse},
		{types.IntCon(7), types.IfTrue},
		{types.NINT64, types.IfTrue},
		{types.INT64, types.IfAll},
		{types.NIL, types.IfFalse},
		{types.Dual(types.INT64), types.IfAny},
	}
	for _, c := range cases {
		ctrl := NewCon(types.CTRL)
		ctrl.SetVal(types.CTRL)
		pred := NewCon(c.pred)
		pred.SetVal(c.pred)
		iff := NewIf(ctrl, pred)
		if got := iff.Value(); got != types.Type(c.want) {
			t.Fatalf("If(%s): got %s want %s", types.Str(c.pred), types.Str(got), types.Str(c.want))
		}
	}
}

func TestPhiSkipsDeadPaths(t *testing.T) {
	c1 := NewCon(types.CTRL)
	c1.SetVal(types.CTRL)
	c2 := NewCon(types.XCTRL)
	c2.SetVal(types.XCTRL)
	r := NewRegion(c1, c2)
	r.SetVal(r.Value())
	if r.Val() != types.CTRL {
		t.Fatalf("region with a live path is reachable")
	}
	a := NewCon(types.IntCon(5))
	a.SetVal(a.Value())
	b := NewCon(types.IntCon(9))
	b.SetVal(b.Value())
	phi := NewPhi(false, r, a, b)
	if got := phi.Value(); got != types.IntCon(5) {
		t.Fatalf("phi must skip the dead path: got %s", types.Str(got))
	}
	c2.SetVal(types.CTRL)
	if got := phi.Value(); got != types.NINT8 {
		t.Fatalf("both paths live meet the inputs: got %s", types.Str(got))
	}
}

func TestForwardRefStates(t *testing.T) {
	fr := NewForwardRef("f", 1)
	if !fr.IsForwardRef() {
		t.Fatalf("fresh forward ref is unresolved")
	}
	if fr.Value() != types.Dual(types.GenericFunPtr) {
		t.Fatalf("unresolved forward ref is the top function pointer")
	}
	fr.Scoped()
	if !fr.IsForwardRef() {
		t.Fatalf("scoped is still unresolved")
	}
	def := NewCon(types.FunPtrCon(2, 1, types.SCALAR))
	def.SetVal(def.Value())
	fr.Define(def)
	if fr.IsForwardRef() {
		t.Fatalf("defined forward ref resolves")
	}
	if fr.Value() != def.Val() {
		t.Fatalf("defined forward ref forwards its definition")
	}
}
