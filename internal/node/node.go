// Package node is the sea-of-nodes SSA graph: vertices with ordered def
// edges and reverse use edges, a cached flow value, a cached liveness, and
// an optional type variable. Control is data on a distinguished control
// type; there are no basic blocks.
package node

import (
	"fmt"

	"exopt/internal/tvar"
	"exopt/internal/types"
)

// Node is one graph vertex.
type Node interface {
	UID() int
	Op() string
	// Xstr is the short display label.
	Xstr() string

	In(i int) Node
	NumIns() int
	Uses() []Node
	NumUses() int

	Val() types.Type
	SetVal(types.Type)
	Live() types.Type
	SetLive(types.Type)
	TV() *tvar.TV

	// IsMem reports a memory-producing node; its liveness is a TypeMem.
	IsMem() bool
	// HasTVar reports participation in HM inference.
	HasTVar() bool

	// Value recomputes the flow value from the input values; pure, and
	// monotone downward across driver iterations.
	Value() types.Type
	// ComputeLive recomputes liveness from the uses.
	ComputeLive() types.Type
	// LiveUse is this node's liveness contribution to the given def.
	LiveUse(def Node) types.Type
	// Unify advances this node's type variable; with test set it only
	// reports whether progress would happen.
	Unify(test bool) bool
	// IdealReduce returns a replacement for this node, or nil.
	IdealReduce() Node
	// IsCopy exposes a collapsed node's pass-through input for slot idx.
	IsCopy(idx int) Node

	base() *nbase
}

var cnt int

// nbase carries the graph plumbing every node shares.
type nbase struct {
	self Node
	uid  int
	op   string
	defs []Node
	uses []Node
	val  types.Type
	live types.Type
	tv   *tvar.TV
	keep int
	dead bool
}

// initNode wires the embedded base and the initial def edges.
func initNode[T Node](n T, op string, defs ...Node) T {
	cnt++
	b := n.base()
	b.self = n
	b.uid = cnt
	b.op = op
	b.val = types.ANY
	if n.IsMem() {
		b.live = types.ANYMEM
	} else {
		b.live = types.ANY
	}
	for _, d := range defs {
		b.addDef(d)
	}
	if n.HasTVar() {
		b.tv = newTVarFor(n)
	}
	return n
}

func (b *nbase) base() *nbase { return b }

func (b *nbase) UID() int    { return b.uid }
func (b *nbase) Op() string  { return b.op }
func (b *nbase) Xstr() string { return b.op }

func (b *nbase) In(i int) Node { return b.defs[i] }
func (b *nbase) NumIns() int   { return len(b.defs) }
func (b *nbase) Uses() []Node  { return b.uses }
func (b *nbase) NumUses() int  { return len(b.uses) }

func (b *nbase) Val() types.Type        { return b.val }
func (b *nbase) SetVal(t types.Type)    { b.val = t }
func (b *nbase) Live() types.Type       { return b.live }
func (b *nbase) SetLive(t types.Type)   { b.live = t }
func (b *nbase) TV() *tvar.TV           { return b.tv }

func (b *nbase) IsMem() bool   { return false }
func (b *nbase) HasTVar() bool { return false }

func (b *nbase) Value() types.Type { return types.ALL }

// ComputeLive meets the contribution of every use; pinned nodes stay fully
// alive.
func (b *nbase) ComputeLive() types.Type {
	live := deadFor(b.self)
	if b.keep > 0 {
		return allFor(b.self)
	}
	for _, u := range b.uses {
		live = types.Meet(live, u.LiveUse(b.self))
	}
	return live
}

// LiveUse defaults: a memory def sees this node's own liveness flow
// through; a scalar def is simply alive.
func (b *nbase) LiveUse(def Node) types.Type {
	if def.IsMem() {
		if _, ok := b.live.(*types.TypeMem); ok {
			return b.live
		}
		return types.ALLMEM
	}
	return types.ALL
}

func (b *nbase) Unify(test bool) bool { return false }
func (b *nbase) IdealReduce() Node    { return nil }
func (b *nbase) IsCopy(idx int) Node  { return nil }

func deadFor(n Node) types.Type {
	if n.IsMem() {
		return types.ANYMEM
	}
	return types.ANY
}

func allFor(n Node) types.Type {
	if n.IsMem() {
		return types.ALLMEM
	}
	return types.ALL
}

// Keep pins the node against dead-node removal.
func Keep(n Node) Node { n.base().keep++; return n }

// Unkeep releases a pin.
func Unkeep(n Node) Node { n.base().keep--; return n }

// Keeped reports an active pin.
func Keeped(n Node) bool { return n.base().keep > 0 }

// IsDead reports a removed node.
func IsDead(n Node) bool { return n.base().dead }

func (b *nbase) addDef(d Node) {
	b.defs = append(b.defs, d)
	if d != nil {
		db := d.base()
		db.uses = append(db.uses, b.self)
	}
}

// AddDef appends a def edge, maintaining both sides.
func AddDef(n, d Node) { n.base().addDef(d) }

// SetDef replaces the i'th def edge.
func SetDef(n Node, i int, d Node) {
	b := n.base()
	old := b.defs[i]
	if old == d {
		return
	}
	b.defs[i] = d
	if d != nil {
		d.base().uses = append(d.base().uses, n)
	}
	if old != nil {
		delUse(old, n)
	}
}

// RemoveDefAt deletes the i'th def edge, preserving order. Order matters:
// Fun control paths and Parm inputs stay index-aligned.
func RemoveDefAt(n Node, i int) {
	b := n.base()
	old := b.defs[i]
	b.defs = append(b.defs[:i], b.defs[i+1:]...)
	if old != nil {
		delUse(old, n)
	}
}

func delUse(d, n Node) {
	db := d.base()
	for i, u := range db.uses {
		if u == n {
			db.uses = append(db.uses[:i], db.uses[i+1:]...)
			return
		}
	}
}

// FindDef returns the index of d among n's defs, or -1.
func FindDef(n, d Node) int {
	for i, x := range n.base().defs {
		if x == d {
			return i
		}
	}
	return -1
}

// Kill removes an unused, unpinned node, releasing its def edges. Newly
// useless defs are killed recursively.
func Kill(n Node) {
	b := n.base()
	if len(b.uses) > 0 || b.keep > 0 || b.dead {
		return
	}
	b.dead = true
	defs := b.defs
	b.defs = nil
	for _, d := range defs {
		if d == nil {
			continue
		}
		delUse(d, n)
		if d.NumUses() == 0 && !Keeped(d) {
			Kill(d)
		}
	}
}

// Subsume replaces every use of old with nu, then kills old.
func Subsume(old, nu Node) {
	for len(old.base().uses) > 0 {
		u := old.base().uses[0]
		i := FindDef(u, old)
		SetDef(u, i, nu)
	}
	Kill(old)
}

func (b *nbase) String() string {
	return fmt.Sprintf("%s#%d", b.op, b.uid)
}

// newTVarFor builds the node's initial type variable; nodes without a more
// specific shape start as a leaf.
func newTVarFor(n Node) *tvar.TV {
	if m, ok := n.(interface{ newTVar() *tvar.TV }); ok {
		return m.newTVar()
	}
	return tvar.NewLeaf()
}

// Reset clears the node id counter and the function table between runs and
// rebinds the primitive library to the current lattice constants.
func Reset() {
	cnt = 0
	resetFuns()
	initPrims()
}
