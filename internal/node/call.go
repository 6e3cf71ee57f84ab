package node

import (
	"exopt/internal/bits"
	"exopt/internal/types"
)

// PostGCP flips once the call graph is complete; CallEpi values may then
// lift past the parser-level default memory, and unwired fidxs freeze
// rather than widen.
var PostGCP bool

// CallNode carries (ctrl, mem, fptr, args...). Its value is the parallel
// tuple of input values; the call graph itself lives on the CallEpi.
type CallNode struct {
	nbase
}

// NewCall builds a call of fdx under ctrl with the given memory and args.
func NewCall(ctrl, mem, fdx Node, args ...Node) *CallNode {
	n := &CallNode{}
	return initNode(n, "Call", append([]Node{ctrl, mem, fdx}, args...)...)
}

// Ctl is the call control.
func (n *CallNode) Ctl() Node { return n.In(0) }

// Mem is the memory flowing into the call.
func (n *CallNode) Mem() Node { return n.In(1) }

// Fdx is the called function value.
func (n *CallNode) Fdx() Node { return n.In(2) }

// Nargs is the argument count.
func (n *CallNode) Nargs() int { return n.NumIns() - 3 }

// Arg is the i'th argument.
func (n *CallNode) Arg(i int) Node { return n.In(3 + i) }

func (n *CallNode) IsMem() bool { return true }

func (n *CallNode) Value() types.Type {
	ctl := n.Ctl().Val()
	if ctl != types.CTRL && ctl != types.ALL {
		return types.Dual(callBottom(n.Nargs()))
	}
	ts := make([]types.Type, 0, n.NumIns())
	ts = append(ts, types.CTRL, n.Mem().Val(), n.Fdx().Val())
	for i := 0; i < n.Nargs(); i++ {
		ts = append(ts, n.Arg(i).Val())
	}
	return types.MakeTuple(ts...)
}

func callBottom(nargs int) *types.TypeTuple {
	ts := make([]types.Type, 0, nargs+3)
	ts = append(ts, types.CTRL, types.MEM, types.GenericFunPtr)
	for i := 0; i < nargs; i++ {
		ts = append(ts, types.ALL)
	}
	return types.MakeTuple(ts...)
}

// EscAliases approximates the aliases escaping into the callee: everything
// reachable from any argument's pointer, plus function displays.
func (n *CallNode) EscAliases() *bits.Bits {
	esc := bits.Alias.Empty()
	for i := 0; i < n.Nargs(); i++ {
		esc = esc.Meet(escOf(n.Arg(i).Val()))
	}
	return esc
}

func escOf(v types.Type) *bits.Bits {
	switch tv := v.(type) {
	case *types.TypeMemPtr:
		return tv.Aliases().NotNil()
	case *types.TypeFunPtr:
		return escOf(tv.Dsp())
	case *types.TypeNilScalar:
		if v == types.NIL || v == types.XNIL {
			return bits.Alias.Empty()
		}
		return bits.Alias.NZero() // an unknown scalar may hold any pointer
	}
	if types.AboveCenter(v) || types.IsCon(v) {
		return bits.Alias.Empty()
	}
	if v.Kind() == types.KindInt || v.Kind() == types.KindFlt {
		return bits.Alias.Empty()
	}
	return bits.Alias.NZero()
}

// CallErr reports the first argument whose shape cannot convert freely into
// the callee's formal; such calls never inline.
func CallErr(tcall *types.TypeTuple, fun *FunNode) bool {
	if tcall.Len() < 3+fun.Nargs() {
		return true
	}
	for i := 0; i < fun.Nargs(); i++ {
		if types.BitShape(tcall.At(3+i), fun.Formal(i)) == 99 {
			return true
		}
	}
	return false
}
