package node

import (
	"exopt/internal/tvar"
	"exopt/internal/types"
)

// FreshNode instantiates a let-bound polymorphic function at a use site:
// its variable is a fresh copy of the function's, cloned under the
// non-generic set of the enclosing scope.
type FreshNode struct {
	nbase
	nongen []*tvar.TV
}

// NewFresh wraps fdx for one use site with the scope's non-generic set.
func NewFresh(fdx Node, nongen []*tvar.TV) *FreshNode {
	n := &FreshNode{nongen: nongen}
	return initNode(n, "Fresh", fdx)
}

// Fdx is the generic function value.
func (n *FreshNode) Fdx() Node { return n.In(0) }

func (n *FreshNode) HasTVar() bool { return true }

func (n *FreshNode) Value() types.Type { return n.Fdx().Val() }

// Unify fresh-unifies the generic variable against this site's.
func (n *FreshNode) Unify(test bool) bool {
	ftv := n.Fdx().TV()
	if ftv == nil {
		return false
	}
	return ftv.FreshUnify(n, n.tv, n.nongen, test)
}

// StructNode builds a struct value out of field nodes.
type StructNode struct {
	nbase
	labels []string
	access []types.Access
}

// NewStructNode starts an empty struct value; AddFld appends its labeled
// fields.
func NewStructNode() *StructNode {
	return initNode(&StructNode{}, "Struct")
}

// AddFld appends a field.
func (n *StructNode) AddFld(label string, access types.Access, val Node) *StructNode {
	n.labels = append(n.labels, label)
	n.access = append(n.access, access)
	AddDef(n, val)
	return n
}

// Labels exposes the field labels in order.
func (n *StructNode) Labels() []string { return n.labels }

func (n *StructNode) HasTVar() bool { return true }

func (n *StructNode) newTVar() *tvar.TV { return tvar.NewLeaf() }

func (n *StructNode) Value() types.Type {
	flds := make([]types.Fld, n.NumIns())
	for i := 0; i < n.NumIns(); i++ {
		v := n.In(i).Val()
		flds[i] = types.Fld{Label: n.labels[i], Access: n.access[i], T: v}
	}
	return types.MakeStruct(flds...)
}

// Unify shapes this node's variable as a closed struct over the fields.
func (n *StructNode) Unify(test bool) bool {
	if n.tv.IsErr() {
		return false
	}
	args := make([]*tvar.TV, n.NumIns())
	for i := 0; i < n.NumIns(); i++ {
		tv := n.In(i).TV()
		if tv == nil {
			tv = tvar.NewLeaf()
		}
		args[i] = tv
	}
	if n.tv.TVKind() == tvar.KStruct {
		progress := false
		for i, l := range n.labels {
			if rhs := n.tv.ArgOf(l); rhs != nil {
				progress = args[i].Unify(rhs, test) || progress
				if progress && test {
					return true
				}
			}
		}
		return progress
	}
	if test {
		return true
	}
	return n.tv.Unify(tvar.NewStruct(n.labels, args, false), test)
}
