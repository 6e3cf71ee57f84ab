package node

import (
	"fmt"

	"exopt/internal/types"
)

// ProjNode projects one scalar slot out of a tuple-valued node.
type ProjNode struct {
	nbase
	idx int
}

// NewProj projects slot idx of t.
func NewProj(t Node, idx int) *ProjNode {
	n := &ProjNode{idx: idx}
	return initNode(n, "Proj", t)
}

// Idx is the projected slot.
func (n *ProjNode) Idx() int { return n.idx }

func (n *ProjNode) Xstr() string { return fmt.Sprintf("Proj%d", n.idx) }

func (n *ProjNode) HasTVar() bool { return true }

func (n *ProjNode) Value() types.Type { return projValue(n.In(0).Val(), n.idx, types.ALL) }

func (n *ProjNode) IdealReduce() Node { return projReduce(n, n.idx) }

// FindProj locates t's projection of slot idx, or nil.
func FindProj(t Node, idx int) *ProjNode {
	for _, u := range t.Uses() {
		if p, ok := u.(*ProjNode); ok && p.idx == idx {
			return p
		}
	}
	return nil
}

// CProjNode is a control projection.
type CProjNode struct {
	nbase
	idx int
}

// NewCProj projects control arm idx of t (If arms, call control).
func NewCProj(t Node, idx int) *CProjNode {
	n := &CProjNode{idx: idx}
	return initNode(n, "CProj", t)
}

// Idx is the projected control arm.
func (n *CProjNode) Idx() int { return n.idx }

func (n *CProjNode) Xstr() string { return fmt.Sprintf("CProj%d", n.idx) }

func (n *CProjNode) Value() types.Type {
	v := projValue(n.In(0).Val(), n.idx, types.CTRL)
	if v != types.CTRL && v != types.XCTRL {
		return types.OOB(v, types.CTRL)
	}
	return v
}

func (n *CProjNode) IdealReduce() Node { return projReduce(n, n.idx) }

// MProjNode is a memory projection.
type MProjNode struct {
	nbase
}

// NewMProj projects the memory slot (1) of t.
func NewMProj(t Node) *MProjNode { return initNode(&MProjNode{}, "MProj", t) }

func (n *MProjNode) IsMem() bool { return true }

func (n *MProjNode) Value() types.Type {
	v := projValue(n.In(0).Val(), 1, types.MEM)
	if _, ok := v.(*types.TypeMem); !ok {
		return types.OOB(v, types.MEM)
	}
	return v
}

func (n *MProjNode) IdealReduce() Node { return projReduce(n, 1) }

// projValue picks slot idx of a tuple value, collapsing out-of-band.
func projValue(v types.Type, idx int, dflt types.Type) types.Type {
	tt, ok := v.(*types.TypeTuple)
	if !ok {
		return types.OOB(v, dflt)
	}
	if idx >= tt.Len() {
		return types.OOB(v, dflt)
	}
	return tt.At(idx)
}

// projReduce folds a projection of a collapsed node onto the pass-through
// input.
func projReduce(n Node, idx int) Node {
	if c := n.In(0).IsCopy(idx); c != nil {
		return c
	}
	return nil
}

// CEProjNode is the call-graph control edge from a Call into a callee Fun.
type CEProjNode struct {
	nbase
}

// NewCEProj projects call control into a wired callee.
func NewCEProj(call *CallNode) *CEProjNode {
	return initNode(&CEProjNode{}, "CEProj", call)
}

// Call is the projecting call.
func (n *CEProjNode) Call() *CallNode { return n.In(0).(*CallNode) }

func (n *CEProjNode) Value() types.Type {
	call := n.Call()
	tcall, ok := call.Val().(*types.TypeTuple)
	if !ok {
		return types.OOB(call.Val(), types.CTRL)
	}
	// Reaches the callee only while the call itself can execute.
	if tcall.At(0) != types.CTRL && tcall.At(0) != types.ALL {
		return types.XCTRL
	}
	return types.CTRL
}

// GoodCall is the basic arg sanity gate for wiring: the call executes, its
// function value resolved, and the arity lines up.
func GoodCall(tcall *types.TypeTuple, fun *FunNode) bool {
	if tcall.At(0) != types.CTRL && tcall.At(0) != types.ALL {
		return false
	}
	tfp, ok := tcall.At(2).(*types.TypeFunPtr)
	if !ok {
		return false
	}
	return tfp.Nargs() == fun.Nargs()
}
