package node

import (
	"exopt/internal/tvar"
	"exopt/internal/types"
)

// ConNode is a constant; its value never moves.
type ConNode struct {
	nbase
	t types.Type
}

// NewCon builds a constant node.
func NewCon(t types.Type) *ConNode {
	n := &ConNode{t: t}
	return initNode(n, "Con")
}

func (n *ConNode) Xstr() string      { return types.Str(n.t) }
func (n *ConNode) Value() types.Type { return n.t }
func (n *ConNode) IsMem() bool       { _, ok := n.t.(*types.TypeMem); return ok }
func (n *ConNode) HasTVar() bool     { return !n.IsMem() && n.t != types.CTRL && n.t != types.XCTRL }

func (n *ConNode) newTVar() *tvar.TV {
	switch n.t.(type) {
	case *types.TypeFunPtr:
		return tvar.NewLeaf() // generic function pointer
	case *types.TypeMemPtr:
		return tvar.NewPtr(types.MayNil(n.t), tvar.NewLeaf())
	}
	if n.t == types.NIL {
		return tvar.NewNil(tvar.NewLeaf())
	}
	return tvar.NewBase(n.t)
}

// ScopeNode is the fixpoint root: it demands the program result and the
// final memory, turning liveness around.
type ScopeNode struct {
	nbase
}

// NewScope roots mem and rez. The scope is always pinned.
func NewScope(mem, rez Node) *ScopeNode {
	n := initNode(&ScopeNode{}, "Scope", mem, rez)
	Keep(n)
	return n
}

// Mem is the final program memory.
func (n *ScopeNode) Mem() Node { return n.In(0) }

// Rez is the program result.
func (n *ScopeNode) Rez() Node { return n.In(1) }

func (n *ScopeNode) IsMem() bool { return true }

func (n *ScopeNode) Value() types.Type { return types.ALL }

// ComputeLive of the root flattens the final memory: every object that
// exists is demanded shallowly, the unknown rest is not.
func (n *ScopeNode) ComputeLive() types.Type {
	v := n.Mem().Val()
	if mem, ok := v.(*types.TypeMem); ok {
		return mem.FlattenLiveFields()
	}
	if types.AboveCenter(v) {
		return types.ANYMEM // memory not computed yet
	}
	return types.ALLMEM
}

// LiveUse demands the result fully; the memory sees the root's own
// flattened liveness.
func (n *ScopeNode) LiveUse(def Node) types.Type {
	if def == n.Rez() && !def.IsMem() {
		return types.ALL
	}
	return n.live
}

// StartMemNode is program memory start: all things to-be-allocated.
type StartMemNode struct {
	nbase
}

// NewStartMem builds the initial memory.
func NewStartMem() *StartMemNode { return initNode(&StartMemNode{}, "StartMem") }

func (n *StartMemNode) IsMem() bool       { return true }
func (n *StartMemNode) Value() types.Type { return types.ANYMEM }

// DefMemNode tracks the parser-level worst-case memory: the meet of every
// allocation site's object, used to keep call memory at parser strength
// before the call graph is complete.
type DefMemNode struct {
	nbase
}

// NewDefMem builds the default-memory node; allocation sites are added as
// defs as they appear.
func NewDefMem() *DefMemNode { return initNode(&DefMemNode{}, "DefMem") }

func (n *DefMemNode) IsMem() bool { return true }

func (n *DefMemNode) Value() types.Type {
	mem := types.MEM
	for i := 0; i < n.NumIns(); i++ {
		nn, ok := n.In(i).(*NewNode)
		if !ok {
			continue
		}
		obj, ok := objOfNew(nn)
		if !ok {
			continue
		}
		mem = mem.Merge(types.MakeMemAlias(nn.Alias(), obj))
	}
	return mem
}

func objOfNew(nn *NewNode) (types.TypeObj, bool) {
	for _, u := range nn.Uses() {
		st, ok := u.(*StoreNode)
		if !ok || st.Ptr() != nn {
			continue
		}
		if obj, ok := st.Obj().Val().(types.TypeObj); ok {
			return obj, true
		}
	}
	return nil, false
}
