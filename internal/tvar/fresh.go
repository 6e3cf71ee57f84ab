package tvar

import (
	"strconv"
	"strings"

	"exopt/internal/types"
)

// DelayFresh records a pending fresh-unification: when the generic lhs
// later grows structure, rhs must re-fresh-unify against it.
type DelayFresh struct {
	lhs, rhs *TV
	nongen   []*TV
	site     Dep
}

// update rolls both sides up to their leaders; reports change.
func (df *DelayFresh) update() bool {
	l, r := df.lhs.Find(), df.rhs.Find()
	changed := l != df.lhs || r != df.rhs
	df.lhs, df.rhs = l, r
	return changed
}

func (df *DelayFresh) eq(o *DelayFresh) bool {
	if df == o {
		return true
	}
	if df.lhs != o.lhs || df.rhs != o.rhs || df.site != o.site {
		return false
	}
	if len(df.nongen) != len(o.nongen) {
		return false
	}
	for i := range df.nongen {
		if df.nongen[i].Find() != o.nongen[i].Find() {
			return false
		}
	}
	return true
}

var (
	delayFreshQ   []*DelayFresh
	delayResolveQ []*TV

	// per-call state of a fresh unification
	freshVars map[*TV]*TV
	freshRoot *DelayFresh
)

// FreshUnify unifies a lazy fresh copy of this (the generic type) with
// that, cloning everything not reachable from the non-generic set. site is
// re-enqueued whenever a delayed re-fresh fires later.
func (tv *TV) FreshUnify(site Dep, that *TV, nongen []*TV, test bool) bool {
	a, b := tv.Find(), that.Find()
	if a == b {
		return false
	}
	freshVars = map[*TV]*TV{}
	dups = map[[2]int]bool{}
	freshRoot = &DelayFresh{lhs: a, rhs: b, nongen: nongen, site: site}
	p := a.freshUnify(b, test)
	freshVars, dups, freshRoot = nil, nil, nil
	return p
}

func (tv *TV) freshUnify(that *TV, test bool) bool {
	tv, that = tv.Find(), that.Find()
	if tv == that {
		return false
	}

	// Been here: the prior mapping unifies with that.
	if prior, ok := freshVars[tv]; ok {
		return prior.Find().unify(that, test)
	}

	// Occurs in the non-generic set: hard unify, no clone.
	if tv.nongenIn() {
		return tv.vput(that, tv.unify(that, test))
	}

	// A generic leaf imparts no structure yet; park a delayed re-fresh so a
	// later expansion retroactively unifies against that.
	if tv.kind == KLeaf {
		if !test {
			tv.addDelayFresh(freshRoot)
		}
		return tv.vput(that, false)
	}
	if that.kind == KLeaf {
		if test {
			return true
		}
		return tv.vput(that, that.Union(tv.fresh()))
	}

	// Nilable wrappers.
	if tv.kind == KNil && that.kind != KNil {
		if test {
			return true
		}
		p := tv.Arg(0).freshUnify(that, false)
		return tv.vput(that, that.AddMayNil(false) || p)
	}
	if that.kind == KNil && tv.kind != KNil {
		if test {
			return true
		}
		return tv.vput(that, tv.freshUnify(that.Arg(0), false))
	}

	if tv.kind != that.kind {
		if that.kind == KErr {
			return false // already sick; no new information
		}
		if test {
			return true
		}
		err := NewErr("cannot unify " + tv.kind.String() + " and " + that.kind.String())
		err.args = append(err.args, tv.fresh())
		return tv.vput(that, err.unifyErrInto(that.Find()))
	}

	progress := false
	if tv.mayNil && !that.mayNil {
		if test {
			return true
		}
		that.mayNil = true
		progress = true
	}
	if tv.kind == KBase {
		m := types.Meet(tv.flow, that.flow)
		if m != that.flow {
			if test {
				return true
			}
			that.flow = m
			that.depsWorkClear()
			progress = true
		}
		return tv.vput(that, progress)
	}

	tv.vput(that, progress) // early, closes cycles

	switch tv.kind {
	case KStruct:
		for i, label := range tv.labels {
			rhs := that.ArgOf(label)
			if rhs != nil {
				progress = tv.Arg(i).freshUnify(rhs, test) || progress
			} else if that.Find().open {
				if test {
					return true
				}
				t := that.Find()
				t.labels = append(t.labels, label)
				t.args = append(t.args, tv.Arg(i).fresh())
				t.resolveKick()
				progress = true
			} else {
				if test {
					return true
				}
				progress = that.UnifyErr("missing field "+label, nil, false) || progress
			}
			tv, that = tv.Find(), that.Find()
		}
	case KLambda:
		if tv.nargs != that.nargs {
			if test {
				return true
			}
			return that.UnifyErr("mismatched argument lengths", nil, false)
		}
		for i := 0; i <= tv.nargs; i++ {
			if tv.Find().kind != KLambda || that.Find().kind != KLambda {
				return progress // a child collapsed this into an error
			}
			progress = tv.Find().Arg(i).freshUnify(that.Find().Arg(i), test) || progress
			if progress && test {
				return true
			}
		}
	default:
		for i := range tv.args {
			if tv.args[i] == nil {
				continue
			}
			if i >= len(that.args) {
				break
			}
			progress = tv.Arg(i).freshUnify(that.Find().Arg(i), test) || progress
			if progress && test {
				return true
			}
		}
	}
	return progress
}

func (tv *TV) vput(that *TV, progress bool) bool {
	freshVars[tv] = that
	return progress
}

// Fresh returns a deep copy with generic leaves replaced by fresh ones;
// sub-trees in the non-generic set are shared, not copied, preserving
// cyclic structure.
func (tv *TV) Fresh(nongen []*TV) *TV {
	freshVars = map[*TV]*TV{}
	freshRoot = &DelayFresh{lhs: tv.Find(), rhs: tv.Find(), nongen: nongen}
	rez := tv.Find().fresh()
	freshVars, freshRoot = nil, nil
	return rez
}

func (tv *TV) fresh() *TV {
	tv = tv.Find()
	if rez, ok := freshVars[tv]; ok {
		return rez.Find()
	}
	if tv.nongenIn() {
		freshVars[tv] = tv
		return tv
	}
	t := tv.copy()
	tv.addDelayFresh(freshRoot) // related via fresh; track later growth
	freshVars[tv] = t
	for i := range tv.args {
		if tv.args[i] != nil {
			t.args[i] = tv.Arg(i).fresh()
		}
	}
	return t
}

// copy is a shallow clone with a new uid and empty bookkeeping.
func (tv *TV) copy() *TV {
	cnt++
	t := &TV{
		kind:   tv.kind,
		uid:    cnt,
		args:   append([]*TV(nil), tv.args...),
		labels: append([]string(nil), tv.labels...),
		open:   tv.open,
		flow:   tv.flow,
		nargs:  tv.nargs,
		errs:   append([]string(nil), tv.errs...),
		mayNil: tv.mayNil,
		useNil: tv.useNil,
		widen:  tv.widen,
	}
	return t
}

// nongenIn is the occurs check: does this variable appear inside any member
// of the active non-generic set?
func (tv *TV) nongenIn() bool {
	if freshRoot == nil || freshRoot.nongen == nil {
		return false
	}
	for i, ng := range freshRoot.nongen {
		if ng.Unified() {
			freshRoot.nongen[i] = ng.Find()
			ng = freshRoot.nongen[i]
		}
		if tv.occursIn(ng, map[*TV]bool{}) {
			return true
		}
	}
	return false
}

func (tv *TV) occursIn(x *TV, seen map[*TV]bool) bool {
	x = x.Find()
	if x == tv {
		return true
	}
	if seen[x] {
		return false
	}
	seen[x] = true
	for i := range x.args {
		if x.args[i] != nil && tv.occursIn(x.Arg(i), seen) {
			return true
		}
	}
	return false
}

// ----------------------------------------------------------------------
// Delayed lists.

func (tv *TV) addDelayFresh(df *DelayFresh) {
	if df == nil {
		return
	}
	df.update()
	for _, have := range tv.delayFresh {
		have.update()
		if df.eq(have) {
			return
		}
	}
	tv.delayFresh = append(tv.delayFresh, df)
}

func (tv *TV) mergeDelayFresh(dfs []*DelayFresh) {
	if len(dfs) == 0 {
		return
	}
	for _, df := range dfs {
		tv.addDelayFresh(df)
	}
	for i := range tv.args {
		if tv.args[i] != nil {
			tv.Arg(i).mergeDelayFresh(dfs)
		}
	}
}

// moveDelay promotes this variable's delayed work onto the global queues.
func (tv *TV) moveDelay() {
	delayFreshQ = append(delayFreshQ, tv.delayFresh...)
	delayResolveQ = append(delayResolveQ, tv.delayResolve...)
	tv.delayFresh = nil
	tv.delayResolve = nil
}

// AddDelayResolve parks a struct whose field labels may resolve once this
// variable sharpens.
func (tv *TV) AddDelayResolve(strct *TV) {
	t := tv.Find()
	for _, have := range t.delayResolve {
		if have.Find() == strct.Find() {
			return
		}
	}
	t.delayResolve = append(t.delayResolve, strct)
}

func (tv *TV) resolveKick() {
	delayResolveQ = append(delayResolveQ, tv.delayResolve...)
	tv.delayResolve = nil
}

// DoDelayFresh re-runs every parked fresh-unification; called by the driver
// between fixpoint rounds. Reports whether anything fired.
func DoDelayFresh() bool {
	fired := false
	for len(delayFreshQ) > 0 {
		df := delayFreshQ[len(delayFreshQ)-1]
		delayFreshQ = delayFreshQ[:len(delayFreshQ)-1]
		df.update()
		df.lhs.FreshUnify(df.site, df.rhs, df.nongen, false)
		if df.site != nil {
			touched = append(touched, df.site)
		}
		fired = true
	}
	return fired
}

// DoDelayResolve re-attempts field resolution on parked structs.
func DoDelayResolve() bool {
	fired := false
	for len(delayResolveQ) > 0 {
		s := delayResolveQ[len(delayResolveQ)-1]
		delayResolveQ = delayResolveQ[:len(delayResolveQ)-1]
		s.Find().TrialResolveAll()
		fired = true
	}
	return fired
}

// DelayedEmpty reports both delayed queues drained.
func DelayedEmpty() bool { return len(delayFreshQ) == 0 && len(delayResolveQ) == 0 }

// ----------------------------------------------------------------------
// Trial unification: side-effect-free "would unify succeed".

// TrialUnifyOK reports whether Unify would succeed without creating an
// error variable.
func (tv *TV) TrialUnifyOK(that *TV) bool {
	return tv.Find().trialUnify(that.Find(), map[[2]int]bool{})
}

func (tv *TV) trialUnify(that *TV, seen map[[2]int]bool) bool {
	tv, that = tv.Find(), that.Find()
	if tv == that {
		return true
	}
	key := [2]int{tv.uid, that.uid}
	if seen[key] {
		return true // visit once, assume it resolves
	}
	seen[key] = true
	if tv.kind == KLeaf || that.kind == KLeaf {
		return true
	}
	if tv.kind == KNil {
		return tv.Arg(0).trialUnify(that, seen)
	}
	if that.kind == KNil {
		return that.Arg(0).trialUnify(tv, seen)
	}
	if tv.kind != that.kind {
		return false
	}
	switch tv.kind {
	case KBase:
		return types.Meet(tv.flow, that.flow) != types.ALL
	case KLambda:
		if tv.nargs != that.nargs {
			return false
		}
		for i := 0; i <= tv.nargs; i++ {
			if !tv.Arg(i).trialUnify(that.Arg(i), seen) {
				return false
			}
		}
		return true
	case KStruct:
		for i, label := range tv.labels {
			rhs := that.ArgOf(label)
			if rhs == nil {
				if !that.open {
					return false
				}
				continue
			}
			if !tv.Arg(i).trialUnify(rhs, seen) {
				return false
			}
		}
		return true
	default:
		for i := range tv.args {
			if tv.args[i] == nil || i >= len(that.args) {
				continue
			}
			if !tv.Arg(i).trialUnify(that.Arg(i), seen) {
				return false
			}
		}
		return true
	}
}

// TrialResolveAll tries to pin every inferred field label (leading "_") to
// the unique concrete field it can unify with; ambiguity re-parks.
func (tv *TV) TrialResolveAll() {
	t := tv.Find()
	if t.kind != KStruct {
		return
	}
	resolved := map[int]int{} // inferred field -> concrete field
	for i, label := range t.labels {
		if !strings.HasPrefix(label, "_") {
			continue
		}
		match := -1
		for j, cand := range t.labels {
			if i == j || strings.HasPrefix(cand, "_") {
				continue
			}
			if t.Arg(i).TrialUnifyOK(t.Arg(j)) {
				if match != -1 {
					match = -2 // ambiguous; stays parked
					break
				}
				match = j
			}
		}
		if match >= 0 {
			resolved[i] = match
		}
	}
	if len(resolved) == 0 {
		return
	}
	var labels []string
	var args []*TV
	for i, label := range t.labels {
		if j, ok := resolved[i]; ok {
			t.Arg(i).unifyOuter(t.Arg(j))
			continue // folded into its concrete field
		}
		labels = append(labels, label)
		args = append(args, t.args[i])
	}
	t = t.Find()
	t.labels, t.args = labels, args
}

func (tv *TV) unifyOuter(that *TV) {
	dups = map[[2]int]bool{}
	tv.Find().unify(that.Find(), false)
	dups = nil
}

// ----------------------------------------------------------------------
// Widening.

// Widen raises the widening level monotonically and pushes it through the
// children once per raise. Hard widening drops a Base to its widest type.
func (tv *TV) Widen(level byte, test bool) bool {
	t := tv.Find()
	if t.widen >= level {
		return false
	}
	if test {
		return true
	}
	t.widen = level
	if t.kind == KBase && level == 2 {
		w := types.Widen(t.flow)
		if w != t.flow {
			t.flow = w
			t.depsWorkClear()
		}
	}
	for i := range t.args {
		if t.args[i] != nil {
			t.Arg(i).Widen(level, false)
		}
	}
	return true
}

// ----------------------------------------------------------------------
// Printing.

// Str renders the variable; leaves print as Vnnn, cycles break on revisit.
func (tv *TV) Str() string {
	var sb strings.Builder
	tv.str(&sb, map[*TV]bool{})
	return sb.String()
}

func (tv *TV) str(sb *strings.Builder, visit map[*TV]bool) {
	t := tv.Find()
	if visit[t] {
		sb.WriteString("$")
		return
	}
	switch t.kind {
	case KLeaf:
		sb.WriteString("V" + strconv.Itoa(t.uid))
	case KBase:
		sb.WriteString(types.Str(t.flow))
	case KPtr:
		visit[t] = true
		sb.WriteString("*")
		t.Arg(0).str(sb, visit)
		delete(visit, t)
	case KLambda:
		visit[t] = true
		sb.WriteString("{ ")
		for i := 0; i < t.nargs; i++ {
			t.Arg(i).str(sb, visit)
			sb.WriteString(" ")
		}
		sb.WriteString("-> ")
		t.Arg(t.nargs).str(sb, visit)
		sb.WriteString(" }")
		delete(visit, t)
	case KStruct:
		visit[t] = true
		sb.WriteString("@{")
		for i, l := range t.labels {
			sb.WriteString(l)
			sb.WriteString("=")
			t.Arg(i).str(sb, visit)
			sb.WriteString(";")
		}
		if t.open {
			sb.WriteString("...")
		}
		sb.WriteString("}")
		delete(visit, t)
	case KClz:
		visit[t] = true
		t.Arg(0).str(sb, visit)
		sb.WriteString(":")
		t.Arg(1).str(sb, visit)
		delete(visit, t)
	case KNil:
		visit[t] = true
		t.Arg(0).str(sb, visit)
		sb.WriteString("?")
		delete(visit, t)
	case KErr:
		sb.WriteString("[Err")
		for _, m := range t.errs {
			sb.WriteString(" " + m)
		}
		sb.WriteString("]")
	}
	if t.mayNil && t.kind != KNil {
		sb.WriteString("?")
	}
}
