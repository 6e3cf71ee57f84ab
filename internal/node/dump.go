package node

import (
	"fmt"
	"sort"
	"strings"

	"exopt/internal/types"
)

// Dump renders the graph reachable from the roots, one node per line, in
// uid order: label, def uids, value, type variable.
func Dump(roots ...Node) string {
	seen := map[int]Node{}
	var rec func(n Node)
	rec = func(n Node) {
		if n == nil || IsDead(n) {
			return
		}
		if _, ok := seen[n.UID()]; ok {
			return
		}
		seen[n.UID()] = n
		for i := 0; i < n.NumIns(); i++ {
			rec(n.In(i))
		}
		for _, u := range n.Uses() {
			rec(u)
		}
	}
	for _, r := range roots {
		rec(r)
	}

	uids := make([]int, 0, len(seen))
	for uid := range seen {
		uids = append(uids, uid)
	}
	sort.Ints(uids)

	var sb strings.Builder
	for _, uid := range uids {
		n := seen[uid]
		fmt.Fprintf(&sb, "%4d %-12s [", uid, n.Xstr())
		for i := 0; i < n.NumIns(); i++ {
			if i > 0 {
				sb.WriteByte(' ')
			}
			if n.In(i) == nil {
				sb.WriteByte('_')
			} else {
				fmt.Fprintf(&sb, "%d", n.In(i).UID())
			}
		}
		fmt.Fprintf(&sb, "] %s", types.Str(n.Val()))
		if tv := n.TV(); tv != nil {
			fmt.Fprintf(&sb, " tv=%s", tv.Str())
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
