// Package gcp drives the combined Global Constant Propagation and
// Hindley-Milner inference to a joint fixpoint over a sea-of-nodes graph.
// One worklist carries flow recomputation (values forward, liveness
// backward), one carries type-variable progress; the delayed
// fresh-unification and field-resolution queues drain between rounds.
package gcp

import (
	"fmt"

	"github.com/hashicorp/go-set/v3"
	"go.uber.org/zap"

	"exopt/internal/bits"
	"exopt/internal/diag"
	"exopt/internal/node"
	"exopt/internal/tvar"
	"exopt/internal/types"
)

// Option configures an Optimizer.
type Option func(*Optimizer)

// WithLogger routes driver tracing through a zap logger.
func WithLogger(l *zap.Logger) Option { return func(o *Optimizer) { o.log = l } }

// WithMaxIterations bounds the fixpoint; the default scales with the graph
// times the lattice height.
func WithMaxIterations(n int) Option { return func(o *Optimizer) { o.maxIter = n } }

// WithHM toggles the unification half of the fixpoint.
func WithHM(on bool) Option { return func(o *Optimizer) { o.hm = on } }

// Optimizer owns the worklists and runs graphs to their fixpoint.
type Optimizer struct {
	log     *zap.Logger
	maxIter int
	hm      bool

	workFlow  *workq
	workUnify *workq
	reporter  *diag.Reporter

	iters int
}

// New builds an Optimizer.
func New(opts ...Option) *Optimizer {
	o := &Optimizer{
		log:       zap.NewNop(),
		hm:        true,
		workFlow:  newWorkq(),
		workUnify: newWorkq(),
		reporter:  &diag.Reporter{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Reporter exposes the gathered diagnostics.
func (o *Optimizer) Reporter() *diag.Reporter { return o.reporter }

// Iters is the number of worklist pops taken so far.
func (o *Optimizer) Iters() int { return o.iters }

// workq is a FIFO with membership dedup.
type workq struct {
	q  []node.Node
	in *set.Set[node.Node]
}

func newWorkq() *workq { return &workq{in: set.New[node.Node](16)} }

func (w *workq) add(n node.Node) {
	if n == nil || node.IsDead(n) {
		return
	}
	if w.in.Insert(n) {
		w.q = append(w.q, n)
	}
}

func (w *workq) pop() node.Node {
	for len(w.q) > 0 {
		n := w.q[0]
		w.q = w.q[1:]
		w.in.Remove(n)
		if !node.IsDead(n) {
			return n
		}
	}
	return nil
}

func (w *workq) empty() bool { return len(w.q) == 0 }

// Walk gathers the graph reachable from the roots over both edge
// directions.
func Walk(roots ...node.Node) []node.Node {
	seen := set.New[node.Node](64)
	var out []node.Node
	var rec func(n node.Node)
	rec = func(n node.Node) {
		if n == nil || node.IsDead(n) || !seen.Insert(n) {
			return
		}
		out = append(out, n)
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
	return out
}

// Run optimizes the graph rooted at scope: iterate to a fixpoint, reduce,
// re-iterate until nothing moves, then finalize post-GCP and gather
// diagnostics. It returns an error on a nil scope, on non-convergence, and
// when diagnostics were reported.
func (o *Optimizer) Run(scope *node.ScopeNode) error {
	if scope == nil {
		return fmt.Errorf("gcp: optimization requires a non-nil scope")
	}
	o.Seed(scope)
	for round := 0; ; round++ {
		if err := o.Iterate(scope); err != nil {
			return err
		}
		if !o.Reduce(scope) {
			break
		}
		if round > o.bound(scope) {
			return fmt.Errorf("gcp: reduce did not converge")
		}
	}
	node.PostGCP = true
	o.Seed(scope)
	if err := o.Iterate(scope); err != nil {
		return err
	}
	o.gather(scope)
	if o.reporter.HasErrors() {
		return fmt.Errorf("gcp: optimization reported %d issue(s)", len(o.reporter.Msgs()))
	}
	return nil
}

// Seed enqueues the whole graph reachable from scope for recomputation.
func (o *Optimizer) Seed(scope *node.ScopeNode) {
	for _, n := range Walk(scope) {
		o.workFlow.add(n)
	}
}

func (o *Optimizer) bound(scope *node.ScopeNode) int {
	if o.maxIter > 0 {
		return o.maxIter
	}
	n := 0
	if scope != nil {
		n = len(Walk(scope))
	}
	// Nodes times a generous lattice height; monotonicity makes this a
	// safety net, not a tuning knob.
	return n*64 + 256
}

// Iterate drains the worklists to a joint fixpoint: values only fall,
// liveness only rises, type variables only expand or unify.
func (o *Optimizer) Iterate(scope *node.ScopeNode) error {
	bound := o.bound(scope)
	steps := 0
	for {
		n := o.workFlow.pop()
		if n == nil {
			n = o.workUnify.pop()
		}
		if n == nil {
			// Between rounds: delayed fresh and resolve work may reopen
			// the fixpoint. Both queues drain even when only one fires.
			if o.hm {
				fired := tvar.DoDelayFresh()
				fired = tvar.DoDelayResolve() || fired
				if fired {
					o.drainTouched()
					continue
				}
			}
			return nil
		}
		steps++
		o.iters++
		if steps > bound {
			return fmt.Errorf("gcp: fixpoint did not converge within %d steps", bound)
		}
		o.step(n)
	}
}

func (o *Optimizer) step(n node.Node) {
	// Forward flow. Value() is monotone in its inputs, so within one
	// Iterate the value only falls; graph rewrites between iterations
	// (wiring, inlining) may legitimately lift it.
	oldVal := n.Val()
	newVal := n.Value()
	if newVal != oldVal {
		n.SetVal(newVal)
		o.log.Debug("val", zap.Int("uid", n.UID()), zap.String("op", n.Xstr()), zap.String("val", types.Str(newVal)))
		for _, u := range n.Uses() {
			o.workFlow.add(u)
		}
		o.workFlow.add(n) // liveness may follow the value
	}

	// Backward flow: liveness only rises.
	oldLive := n.Live()
	newLive := n.ComputeLive()
	if newLive != oldLive {
		n.SetLive(newLive)
		for i := 0; i < n.NumIns(); i++ {
			o.workFlow.add(n.In(i))
		}
	}

	// HM progress re-enqueues every watcher of the touched variables.
	if o.hm && n.TV() != nil {
		if n.TV().NilErr() {
			return // already in error; nothing more to learn here
		}
		if n.Unify(false) {
			o.workUnify.add(n)
			for _, u := range n.Uses() {
				o.workUnify.add(u)
			}
			o.drainTouched()
		}
	}
}

func (o *Optimizer) drainTouched() {
	for _, d := range tvar.TakeTouched() {
		if nn, ok := d.(node.Node); ok {
			o.workFlow.add(nn)
			o.workUnify.add(nn)
		}
	}
}

// Reduce runs local rewrites to their own fixpoint; reports whether the
// graph changed at all. A changed graph is re-seeded whole, so nodes that
// wiring made reachable are computed by the next Iterate.
func (o *Optimizer) Reduce(scope *node.ScopeNode) bool {
	changed := false
	for {
		progress := false
		for _, n := range Walk(scope) {
			if node.IsDead(n) || n == node.Node(scope) {
				continue
			}
			r := n.IdealReduce()
			if r == nil {
				continue
			}
			progress, changed = true, true
			if r != n {
				o.log.Debug("reduce", zap.String("old", n.Xstr()), zap.String("new", r.Xstr()))
				node.Subsume(n, r)
				o.workFlow.add(r)
				for _, u := range r.Uses() {
					o.workFlow.add(u)
				}
			} else {
				o.workFlow.add(n)
				for _, u := range n.Uses() {
					o.workFlow.add(u)
				}
			}
		}
		// Sweep nodes the rewrites left unused.
		for _, n := range Walk(scope) {
			if n.NumUses() == 0 && !node.Keeped(n) && n != node.Node(scope) {
				node.Kill(n)
				progress, changed = true, true
			}
		}
		if !progress {
			if changed {
				o.Seed(scope)
			}
			return changed
		}
	}
}

// gather aggregates Err variables, nil violations and unresolved forward
// refs into user diagnostics once the fixpoint settles.
func (o *Optimizer) gather(scope *node.ScopeNode) {
	seenTV := set.New[int](8)
	for _, n := range Walk(scope) {
		if fr, ok := n.(*node.ForwardRefNode); ok && fr.IsForwardRef() {
			o.reporter.Error(fr.Pos(), diag.ForwardRef, "undefined name "+fr.Name())
		}
		if ce, ok := n.(*node.CallEpiNode); ok {
			if fun := ce.ArgShapeErr(); fun != nil {
				o.reporter.Errorf(diag.ArgConversion, "call of %s needs an explicit argument conversion", fun.Name())
			}
		}
		tv := n.TV()
		if tv == nil {
			continue
		}
		lead := tv.Find()
		if !seenTV.Insert(lead.UID()) {
			continue
		}
		if lead.IsErr() {
			for _, msg := range lead.Errs() {
				code := diag.TypeMismatch
				if msg == "mismatched argument lengths" {
					code = diag.ArityMismatch
				}
				o.reporter.Errorf(code, "%s: %s", n.Xstr(), msg)
			}
		}
		if lead.NilErr() {
			o.reporter.Errorf(diag.NilViolation, "%s: may be nil when dereferenced", n.Xstr())
		}
	}
}

// ResetToInit0 clears every piece of shared state: intern tables, split
// trees, id counters, queues. The test harness calls it between runs.
func ResetToInit0() {
	bits.Reset()
	types.Reset()
	tvar.Reset()
	node.Reset()
	node.PostGCP = false
}
