package node

import "exopt/internal/types"

// IfNode splits control on a predicate. The value is a 2-slot control tuple
// (false-arm, true-arm) derived from the predicate's nil flags.
type IfNode struct {
	nbase
}

// NewIf tests pred under ctrl.
func NewIf(ctrl, pred Node) *IfNode { return initNode(&IfNode{}, "If", ctrl, pred) }

// Value: a predicate that is exactly zero takes only the false arm; one that
// excludes zero takes only the true arm; excluding both is dead, including
// both takes both.
func (n *IfNode) Value() types.Type {
	ctrl := n.In(0).Val()
	if ctrl != types.CTRL && ctrl != types.ALL {
		return types.IfAny // test is unreachable
	}
	if p, ok := n.In(0).(*CProjNode); ok && p.In(0) == Node(n) {
		return types.IfAny // dead self-cycle during dead-loop collapse
	}
	pred := n.In(1).Val()
	mayZero, maySub := predFlags(pred)
	switch {
	case mayZero && maySub:
		return types.IfAll
	case mayZero:
		return types.IfFalse
	case maySub:
		return types.IfTrue
	}
	return types.IfAny
}

// predFlags projects any predicate value onto (may-be-zero, may-be-nonzero).
func predFlags(pred types.Type) (bool, bool) {
	switch pred {
	case types.ANY, types.XCTRL:
		return false, false
	case types.ALL, types.CTRL:
		return true, true
	case types.NIL:
		return true, false
	}
	if types.AboveCenter(pred) {
		return false, false
	}
	if types.IsCon(pred) {
		if i, ok := pred.(*types.TypeInt); ok {
			return i.Con() == 0, i.Con() != 0
		}
	}
	return types.MayNil(pred), true
}

// IdealReduce kills the test once control is dead.
func (n *IfNode) IdealReduce() Node {
	if n.In(0).Val() == types.XCTRL && n.In(1) != nil {
		if _, ok := n.In(1).(*ConNode); !ok || n.In(1).Val() != types.ANY {
			SetDef(n, 1, NewCon(types.ANY))
			return n
		}
	}
	return nil
}

// IsCopy collapses a one-sided If: the taken arm is a copy of the inbound
// control, the dead arm is nothing.
func (n *IfNode) IsCopy(idx int) Node {
	tt, ok := n.val.(*types.TypeTuple)
	if !ok {
		return nil
	}
	switch tt {
	case types.IfAny:
		return NewCon(types.XCTRL)
	case types.IfTrue:
		if idx == 1 {
			return n.In(0)
		}
	case types.IfFalse:
		if idx == 0 {
			return n.In(0)
		}
	}
	return nil
}
