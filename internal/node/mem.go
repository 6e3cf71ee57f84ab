package node

import (
	"exopt/internal/bits"
	"exopt/internal/tvar"
	"exopt/internal/types"
)

// NewNode is an allocation site minting pointers into one alias class.
type NewNode struct {
	nbase
	alias int
}

// NewNew allocates a fresh alias class under the all-memory parent and
// returns its allocation node.
func NewNew() *NewNode {
	alias := bits.Alias.Split(1)
	n := &NewNode{alias: alias}
	return initNode(n, "New")
}

// Alias is this site's alias class.
func (n *NewNode) Alias() int { return n.alias }

func (n *NewNode) HasTVar() bool { return true }

func (n *NewNode) newTVar() *tvar.TV { return tvar.NewPtr(false, tvar.NewLeaf()) }

func (n *NewNode) Value() types.Type {
	return types.MakeMemPtr(bits.Alias.MakeCon(n.alias), types.OBJ)
}

// StoreNode installs a whole object into memory at a pointer's alias.
type StoreNode struct {
	nbase
}

// NewStore builds mem[ptr] = obj.
func NewStore(mem, ptr, obj Node) *StoreNode {
	return initNode(&StoreNode{}, "Store", mem, ptr, obj)
}

// Mem is the incoming memory.
func (n *StoreNode) Mem() Node { return n.In(0) }

// Ptr is the stored-through pointer.
func (n *StoreNode) Ptr() Node { return n.In(1) }

// Obj is the stored object.
func (n *StoreNode) Obj() Node { return n.In(2) }

func (n *StoreNode) IsMem() bool { return true }

func (n *StoreNode) Value() types.Type {
	mem, ok := n.Mem().Val().(*types.TypeMem)
	if !ok {
		return types.OOB(n.Mem().Val(), types.MEM)
	}
	ptr, ok := n.Ptr().Val().(*types.TypeMemPtr)
	if !ok {
		return types.OOB(n.Ptr().Val(), types.MEM)
	}
	obj, ok := n.Obj().Val().(types.TypeObj)
	if !ok {
		return types.OOB(n.Obj().Val(), types.MEM)
	}
	alias := ptr.Aliases().NotNil().ABit()
	if alias <= 0 {
		// Imprecise pointer: a whole-object store through several aliases
		// is a field-level St, an unimplemented precondition; stay at the
		// incoming memory meet worst-case.
		return types.Meet(mem, types.MEM)
	}
	return mem.Merge(types.MakeMemAlias(alias, obj))
}

// LiveUse: the stored object and pointer are always fully demanded, whether
// or not the stored alias is live downstream; memory passes the demand
// through.
func (n *StoreNode) LiveUse(def Node) types.Type {
	if def.IsMem() {
		if m, ok := n.live.(*types.TypeMem); ok {
			return m
		}
		return types.ALLMEM
	}
	return types.ALL
}

// LdNode loads through a pointer.
type LdNode struct {
	nbase
}

// NewLd builds a load of mem at ptr.
func NewLd(mem, ptr Node) *LdNode { return initNode(&LdNode{}, "Load", mem, ptr) }

func (n *LdNode) HasTVar() bool { return true }

func (n *LdNode) Value() types.Type {
	mem, ok := n.In(0).Val().(*types.TypeMem)
	if !ok {
		return types.OOB(n.In(0).Val(), types.ALL)
	}
	ptr, ok := n.In(1).Val().(*types.TypeMemPtr)
	if !ok {
		return types.OOB(n.In(1).Val(), types.ALL)
	}
	return mem.Ld(ptr)
}

// Unify: loading demands a non-nil pointer.
func (n *LdNode) Unify(test bool) bool {
	ptr := n.In(1)
	ptv := ptr.TV()
	if ptv == nil {
		return false
	}
	return ptv.AddUseNil(test)
}

// PhiNode merges values along a region's control paths.
type PhiNode struct {
	nbase
	mem bool
}

// NewPhi merges vs over region r; mem phis merge memory.
func NewPhi(mem bool, r Node, vs ...Node) *PhiNode {
	n := &PhiNode{mem: mem}
	return initNode(n, "Phi", append([]Node{r}, vs...)...)
}

func (n *PhiNode) IsMem() bool   { return n.mem }
func (n *PhiNode) HasTVar() bool { return !n.mem }

// Value meets the inputs whose control path is reachable.
func (n *PhiNode) Value() types.Type {
	r := n.In(0)
	val := deadFor(n)
	for i := 1; i < n.NumIns(); i++ {
		if r.NumIns() >= i && r.In(i-1) != nil && r.In(i-1).Val() == types.XCTRL {
			continue // dead path contributes nothing
		}
		val = types.Meet(val, n.In(i).Val())
	}
	return val
}

// Unify folds every live input into the phi.
func (n *PhiNode) Unify(test bool) bool {
	progress := false
	for i := 1; i < n.NumIns(); i++ {
		in := n.In(i)
		if in == nil || in.TV() == nil {
			continue
		}
		progress = n.tv.Unify(in.TV(), test) || progress
		if progress && test {
			return true
		}
	}
	return progress
}

// RegionNode joins control paths.
type RegionNode struct {
	nbase
}

// NewRegion joins the given control inputs.
func NewRegion(ctrls ...Node) *RegionNode {
	return initNode(&RegionNode{}, "Region", ctrls...)
}

func (n *RegionNode) Value() types.Type {
	for i := 0; i < n.NumIns(); i++ {
		if n.In(i) != nil && n.In(i).Val() == types.CTRL {
			return types.CTRL
		}
	}
	return types.XCTRL
}
