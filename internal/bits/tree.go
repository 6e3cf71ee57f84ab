package bits

// Tree records the parent relation between bit ids. Splitting a bit mints a
// new child id; a set parent bit stands for "any of its children", so
// canonicalization clears children whenever their parent is set.
type Tree struct {
	parent []int
	kids   [][]int
	closed []bool
}

// NewTree seeds the two reserved bits: 0 is nil, 1 is all-of-the-space.
func NewTree() *Tree {
	return &Tree{
		parent: []int{0, 0},
		kids:   [][]int{nil, nil},
		closed: []bool{false, false},
	}
}

// Len is the number of allocated bit ids.
func (t *Tree) Len() int { return len(t.parent) }

// Parent reports the parent of bit i, or 0 if i is a root.
func (t *Tree) Parent(i int) int {
	if i >= len(t.parent) {
		return 0
	}
	return t.parent[i]
}

// IsParent reports whether bit i has ever been split.
func (t *Tree) IsParent(i int) bool { return i < len(t.kids) && len(t.kids[i]) > 0 }

// Kids returns the direct children of bit i.
func (t *Tree) Kids(i int) []int {
	if i >= len(t.kids) {
		return nil
	}
	return t.kids[i]
}

// Closed reports whether bit i will never gain more children.
func (t *Tree) Closed(i int) bool { return i < len(t.closed) && t.closed[i] }

// Close marks bit i as never splitting again.
func (t *Tree) Close(i int) { t.closed[i] = true }

// Split allocates a fresh child id under parent. Existing interned sets that
// carry the parent bit conservatively cover the new child through the tree;
// only the split site hands out the single-child id.
func (t *Tree) Split(parent int) int {
	if parent < 0 || parent >= len(t.parent) {
		panic("bits: split of unallocated parent")
	}
	if t.closed[parent] {
		panic("bits: split of closed parent")
	}
	kid := len(t.parent)
	t.parent = append(t.parent, parent)
	t.kids = append(t.kids, nil)
	t.closed = append(t.closed, false)
	t.kids[parent] = append(t.kids[parent], kid)
	return kid
}
