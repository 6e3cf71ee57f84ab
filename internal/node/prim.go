package node

import (
	"exopt/internal/tvar"
	"exopt/internal/types"
)

// PrimOp is one primitive's semantics: a constant folder plus its widened
// result and formal shapes.
type PrimOp struct {
	Name    string
	Fold    func(args []int64) int64
	Rtype   types.Type
	Formals []types.Type
}

// prims is the primitive library, bound by name for the parser.
var prims = map[string]*PrimOp{}

func registerPrim(p *PrimOp) { prims[p.Name] = p }

func init() { initPrims() }

// initPrims binds the library to the current lattice constants; Reset calls
// it again after the intern tables are rebuilt.
func initPrims() {
	prims = map[string]*PrimOp{}
	registerPrim(&PrimOp{"+", func(a []int64) int64 { return a[0] + a[1] }, types.INT64, []types.Type{types.INT64, types.INT64}})
	registerPrim(&PrimOp{"-", func(a []int64) int64 { return a[0] - a[1] }, types.INT64, []types.Type{types.INT64, types.INT64}})
	registerPrim(&PrimOp{"*", func(a []int64) int64 { return a[0] * a[1] }, types.INT64, []types.Type{types.INT64, types.INT64}})
	registerPrim(&PrimOp{"==", func(a []int64) int64 { return b2i(a[0] == a[1]) }, types.BOOL, []types.Type{types.INT64, types.INT64}})
	registerPrim(&PrimOp{"!", func(a []int64) int64 { return b2i(a[0] == 0) }, types.BOOL, []types.Type{types.INT64}})
}

func b2i(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// FindPrim resolves a primitive by name.
func FindPrim(name string) *PrimOp { return prims[name] }

// PrimNode applies a primitive to its args. Slot 0 is the (unused) control
// slot so arg indexing matches other op nodes.
type PrimNode struct {
	nbase
	op1 *PrimOp
}

// NewPrim applies the named primitive.
func NewPrim(name string, args ...Node) *PrimNode {
	p := prims[name]
	if p == nil {
		panic("node: unknown primitive " + name)
	}
	n := &PrimNode{op1: p}
	return initNode(n, "Prim", append([]Node{nil}, args...)...)
}

// Prim is the bound primitive.
func (n *PrimNode) Prim() *PrimOp { return n.op1 }

func (n *PrimNode) Xstr() string { return n.op1.Name }

func (n *PrimNode) HasTVar() bool { return true }

func (n *PrimNode) newTVar() *tvar.TV { return tvar.NewLeaf() }

// Value folds constants, collapses on dead args, and otherwise widens to
// the primitive's result type.
func (n *PrimNode) Value() types.Type {
	args := make([]int64, 0, n.NumIns()-1)
	allCon := true
	for i := 1; i < n.NumIns(); i++ {
		v := n.In(i).Val()
		if types.AboveCenter(v) {
			return types.Dual(n.op1.Rtype) // dead or unresolved input
		}
		iv, ok := v.(*types.TypeInt)
		if !ok {
			return n.op1.Rtype
		}
		if !types.IsCon(iv) {
			allCon = false
			continue
		}
		args = append(args, iv.Con())
	}
	if allCon && len(args) == n.NumIns()-1 {
		return types.IntCon(n.op1.Fold(args))
	}
	return n.op1.Rtype
}

// Unify pins the result and operands to the primitive's base shapes.
func (n *PrimNode) Unify(test bool) bool {
	progress := unifyBase(n.tv, n.op1.Rtype, test)
	if progress && test {
		return true
	}
	for i := 1; i < n.NumIns(); i++ {
		atv := n.In(i).TV()
		if atv == nil {
			continue
		}
		progress = unifyBase(atv, n.op1.Formals[i-1], test) || progress
		if progress && test {
			return true
		}
	}
	return progress
}

// unifyBase folds a concrete flow type into tv, without re-reporting
// progress once tv already sits at or below it.
func unifyBase(tv *tvar.TV, t types.Type, test bool) bool {
	if tv.TVKind() == tvar.KBase && types.Meet(tv.Flow(), t) == tv.Flow() {
		return false
	}
	if test {
		return true
	}
	return tv.Unify(tvar.NewBase(t), false)
}

// cloneWith copies this one-op body, substituting each input.
func (n *PrimNode) cloneWith(subst func(Node) Node) *PrimNode {
	c := &PrimNode{op1: n.op1}
	args := make([]Node, 0, n.NumIns()-1)
	for i := 1; i < n.NumIns(); i++ {
		args = append(args, subst(n.In(i)))
	}
	return initNode(c, "Prim", append([]Node{nil}, args...)...)
}
