package node

import (
	"fmt"

	"exopt/internal/bits"
	"exopt/internal/tvar"
	"exopt/internal/types"
)

// funTab maps fidx to its FunNode, clones included.
var funTab = map[int]*FunNode{}

func resetFuns() { funTab = map[int]*FunNode{} }

// FindFidx looks up the function for a fidx, walking no tree: clones
// register themselves.
func FindFidx(fidx int) *FunNode { return funTab[fidx] }

// FunNode is a function head. Input 0 is the default (unknown-caller) path;
// later inputs are CEProj edges from wired calls, index-aligned with every
// ParmNode's inputs.
type FunNode struct {
	nbase
	fidx    int
	name    string
	formals []types.Type
	ret     *RetNode
	noInline bool
}

// NewFun allocates a function with a fresh fidx under the all-functions
// parent.
func NewFun(name string, formals ...types.Type) *FunNode {
	fidx := bits.Fun.Split(1)
	n := &FunNode{fidx: fidx, name: name, formals: formals}
	initNode(n, "Fun", nil) // slot 0: unknown callers, none yet
	funTab[fidx] = n
	return n
}

// CloneFun splits the function's fidx for an inline copy: the old fidx
// becomes a pure parent, the original and the clone each take a fresh
// child. Interned sets naming the parent cover both children through the
// tree; only the split site hands out single-child sets. The clone's body
// is the caller's to build.
func CloneFun(orig *FunNode) *FunNode {
	parent := orig.fidx
	k1 := bits.Fun.Split(parent)
	k2 := bits.Fun.Split(parent)
	delete(funTab, parent)
	orig.fidx = k1
	funTab[k1] = orig
	n := &FunNode{fidx: k2, name: orig.name, formals: orig.formals}
	initNode(n, "Fun", nil)
	funTab[k2] = n
	return n
}

// Fidx is this function's index.
func (n *FunNode) Fidx() int { return n.fidx }

// Name is the user-visible label.
func (n *FunNode) Name() string { return n.name }

// Nargs is the formal count.
func (n *FunNode) Nargs() int { return len(n.formals) }

// Formal is the declared type of arg i.
func (n *FunNode) Formal(i int) types.Type { return n.formals[i] }

// Ret is the function's return node.
func (n *FunNode) Ret() *RetNode { return n.ret }

// SetNoInline turns inlining off for this function.
func (n *FunNode) SetNoInline() { n.noInline = true }

func (n *FunNode) Xstr() string { return fmt.Sprintf("Fun_%s[%d]", n.name, n.fidx) }

// Value: reached if any caller path is reachable.
func (n *FunNode) Value() types.Type {
	for i := 0; i < n.NumIns(); i++ {
		if in := n.In(i); in != nil && in.Val() == types.CTRL {
			return types.CTRL
		}
	}
	return types.XCTRL
}

func (n *FunNode) HasTVar() bool { return true }

func (n *FunNode) newTVar() *tvar.TV {
	formals := make([]*tvar.TV, len(n.formals))
	for i := range formals {
		formals[i] = tvar.NewLeaf()
	}
	return tvar.NewLambda(formals, tvar.NewLeaf())
}

// FunPtrNode is a function's first-class value. Its type tracks the
// function's fidx, so splits re-stamp every consumer on the next pass.
type FunPtrNode struct {
	nbase
	fun *FunNode
}

// NewFunPtr takes fun's address.
func NewFunPtr(fun *FunNode) *FunPtrNode {
	n := &FunPtrNode{fun: fun}
	return initNode(n, "FunPtr", fun)
}

// Fun is the pointed-at function.
func (n *FunPtrNode) Fun() *FunNode { return n.fun }

func (n *FunPtrNode) Xstr() string { return "&" + n.fun.name }

func (n *FunPtrNode) HasTVar() bool { return true }

func (n *FunPtrNode) Value() types.Type {
	ret := types.Type(types.ALL)
	if r := n.fun.ret; r != nil {
		if tt, ok := r.Val().(*types.TypeTuple); ok && tt.Len() == 3 {
			ret = tt.At(2)
		}
	}
	return types.MakeFunPtr(bits.Fun.MakeCon(n.fun.fidx), n.fun.Nargs(), types.NoDisp, ret)
}

// Unify shares the function's lambda.
func (n *FunPtrNode) Unify(test bool) bool {
	return n.tv.Unify(n.fun.TV(), test)
}

// ParmNode is a function parameter: a phi over the caller paths, aligned
// with the Fun's inputs. Input 0 is the Fun itself.
type ParmNode struct {
	nbase
	idx int
}

// NewParm declares parameter idx of fun.
func NewParm(fun *FunNode, idx int) *ParmNode {
	n := &ParmNode{idx: idx}
	return initNode(n, "Parm", fun)
}

// Idx is the parameter slot.
func (n *ParmNode) Idx() int { return n.idx }

// Fun is the owning function.
func (n *ParmNode) Fun() *FunNode { return n.In(0).(*FunNode) }

func (n *ParmNode) Xstr() string { return fmt.Sprintf("Parm%d", n.idx) }

func (n *ParmNode) IsMem() bool { return n.idx == MemParmIdx }

func (n *ParmNode) HasTVar() bool { return n.idx >= 0 }

// Value meets the actuals arriving on reachable caller paths.
func (n *ParmNode) Value() types.Type {
	fun := n.Fun()
	val := types.Type(types.ANY)
	for i := 1; i < n.NumIns(); i++ {
		if i < fun.NumIns() && fun.In(i) != nil && fun.In(i).Val() == types.XCTRL {
			continue // dead caller
		}
		val = types.Meet(val, n.In(i).Val())
	}
	return val
}

// Unify ties the parameter to its slot of the function's lambda.
func (n *ParmNode) Unify(test bool) bool {
	lam := n.Fun().TV()
	if n.idx < 0 || lam.TVKind() != tvar.KLambda || n.idx >= lam.NumArgs() {
		return false
	}
	return n.tv.Unify(lam.Find().Arg(n.idx), test)
}

// RetNode gathers a function's exit: (ctrl, mem, rez).
type RetNode struct {
	nbase
	fun *FunNode
}

// NewRet closes fun with its exit control, memory and result. Returns stay
// pinned until an inline retires them: they carry the function body before
// any call is wired.
func NewRet(ctrl, mem, rez Node, fun *FunNode) *RetNode {
	n := &RetNode{fun: fun}
	initNode(n, "Ret", ctrl, mem, rez)
	fun.ret = n
	Keep(n)
	return n
}

// Ctl is the returned control.
func (n *RetNode) Ctl() Node { return n.In(0) }

// Mem is the returned memory.
func (n *RetNode) Mem() Node { return n.In(1) }

// Rez is the returned value.
func (n *RetNode) Rez() Node { return n.In(2) }

// Fun is the owning function.
func (n *RetNode) Fun() *FunNode { return n.fun }

// Fidx is the owning function's index.
func (n *RetNode) Fidx() int { return n.fun.fidx }

func (n *RetNode) Xstr() string { return fmt.Sprintf("Ret_%s", n.fun.name) }

func (n *RetNode) IsMem() bool { return true }

func (n *RetNode) HasTVar() bool { return true }

func (n *RetNode) Value() types.Type {
	return types.MakeTuple(n.Ctl().Val(), n.Mem().Val(), n.Rez().Val())
}

// Unify ties the function's lambda return slot to the result.
func (n *RetNode) Unify(test bool) bool {
	lam := n.fun.TV()
	if lam.TVKind() != tvar.KLambda {
		return false
	}
	rtv := n.Rez().TV()
	if rtv == nil {
		return false
	}
	return lam.Ret().Unify(rtv, test)
}
