package node

import (
	"exopt/internal/bits"
	"exopt/internal/tvar"
	"exopt/internal/types"
)

// CallEpiNode is the merge point of every return reaching its Call. Slot 0
// is the Call, slot 1 the DefMem, later slots the wired Returns; each wired
// Return is a call-graph edge whose fidx appears in the Call's function set.
//
// Before the call graph is complete the all-functions type can appear at a
// Call, and the CallEpi must then assume any call may happen even though
// nothing is wired yet.
type CallEpiNode struct {
	nbase
	isCopy bool
}

// NewCallEpi closes call against the shared default memory.
func NewCallEpi(call *CallNode, defmem *DefMemNode) *CallEpiNode {
	n := &CallEpiNode{}
	return initNode(n, "CallEpi", call, defmem)
}

// Call is the matching call.
func (n *CallEpiNode) Call() *CallNode { return n.In(0).(*CallNode) }

// NWired is the count of wired Returns.
func (n *CallEpiNode) NWired() int { return n.NumIns() - 2 }

// Wired is the i'th wired Return.
func (n *CallEpiNode) Wired(i int) *RetNode { return n.In(i + 2).(*RetNode) }

func (n *CallEpiNode) Xstr() string {
	if n.isCopy {
		return "CopyEpi"
	}
	return "CallEpi"
}

func (n *CallEpiNode) IsMem() bool { return true }

func (n *CallEpiNode) IsCopy(idx int) Node {
	if n.isCopy {
		return n.In(idx)
	}
	return nil
}

// Value merges the wired callee returns the Call still targets. An unwired
// non-parent fidx freezes the value in place once the call graph is
// considered complete: a fresh split child always re-wires shortly, and
// widening instead would slide backwards down the lattice.
func (n *CallEpiNode) Value() types.Type {
	if n.isCopy {
		return n.val
	}
	call := n.Call()
	tcall, ok := call.Val().(*types.TypeTuple)
	if !ok || tcall.Len() < 3 {
		return types.OOB(call.Val(), types.TupRET)
	}
	if tcall.At(0) != types.CTRL && tcall.At(0) != types.ALL {
		return types.Dual(types.TupRET)
	}
	tfp, ok := tcall.At(2).(*types.TypeFunPtr)
	if !ok {
		return types.OOB(tcall.At(2), types.TupRET)
	}
	fidxs := tfp.Fidxs()
	if fidxs == bits.Fun.Empty() || fidxs.AboveCenter() {
		return types.MakeTuple(types.CTRL, types.ANYMEM, types.ANY) // unresolved
	}

	defmem := memOf(n.In(1).Val())
	tree := bits.Fun.Tree()

	if !fidxs.Test(1) { // not calling the whole world
	outer:
		for fidx := range fidxs.All() {
			if fidx == 0 {
				continue
			}
			kids := 0
			for i := 0; i < n.NWired(); i++ {
				rfidx := n.Wired(i).Fidx()
				if fidx == rfidx {
					continue outer // directly wired
				}
				if tree.Parent(rfidx) == fidx {
					kids++
				}
			}
			if tree.IsParent(fidx) {
				if kids == len(tree.Kids(fidx)) {
					continue // every split child wired
				}
				return n.val // freeze in place
			}
			if !PostGCP {
				fidxs = bits.Fun.Full() // unknown target pre-GCP
				break
			}
			return n.val // freeze in place
		}
	}

	trez := types.Type(types.ANY)
	tmem := types.Type(types.ANYMEM)
	if fidxs == bits.Fun.Full() {
		trez = types.ALL
		tmem = defmem
	} else {
		for i := 0; i < n.NWired(); i++ {
			ret := n.Wired(i)
			if !fidxs.TestRecur(ret.Fidx()) {
				continue // wired but no longer targeted
			}
			tret, ok := ret.Val().(*types.TypeTuple)
			if !ok {
				tretT := types.OOB(ret.Val(), types.TupRET).(*types.TypeTuple)
				tret = tretT
			}
			tmem = types.Meet(tmem, tret.At(1))
			trez = types.Meet(trez, tret.At(2))
		}
	}

	callerMem := memOf(call.Mem().Val())
	var tmem3 types.Type
	if n.keep == 0 && FindMProj(n) == nil {
		tmem3 = types.ANYMEM // nobody reads post-call memory
	} else {
		var dm *types.TypeMem
		if !PostGCP {
			dm = defmem
		}
		tmem3 = liveOut(callerMem, memOf(tmem), trez, call.EscAliases(), dm)
	}
	return types.MakeTuple(types.CTRL, tmem3, trez)
}

func memOf(v types.Type) *types.TypeMem {
	if m, ok := v.(*types.TypeMem); ok {
		return m
	}
	return types.OOB(v, types.MEM).(*types.TypeMem)
}

// FindMProj locates t's memory projection, or nil.
func FindMProj(t Node) *MProjNode {
	for _, u := range t.Uses() {
		if p, ok := u.(*MProjNode); ok {
			return p
		}
	}
	return nil
}

// escOut is the alias set escaping out of the call through its result.
func escOut(post *types.TypeMem, trez types.Type) *bits.Bits {
	if trez == types.NIL || trez == types.XNIL {
		return bits.Alias.Empty()
	}
	if tfp, ok := trez.(*types.TypeFunPtr); ok {
		trez = tfp.Dsp()
	}
	if tmp, ok := trez.(*types.TypeMemPtr); ok {
		return tmp.Aliases().NotNil()
	}
	if types.AboveCenter(trez) || types.IsCon(trez) {
		return bits.Alias.Empty()
	}
	if trez.Kind() == types.KindInt || trez.Kind() == types.KindFlt {
		return bits.Alias.Empty()
	}
	return bits.Alias.NZero()
}

// liveOut rebuilds post-call memory: escaping aliases meet the callee's
// exit memory, non-escaping aliases keep the caller's pre-call memory.
// Before the call graph completes, everything joins the parser default to
// stay at parser strength.
func liveOut(callerMem, postCall *types.TypeMem, trez types.Type, escIn *bits.Bits, defmem *types.TypeMem) types.Type {
	if callerMem == postCall && defmem == nil {
		return callerMem
	}
	escOut := escOut(postCall, trez)
	ln := callerMem.Len()
	if postCall.Len() > ln {
		ln = postCall.Len()
	}
	if defmem != nil && defmem.Len() > ln {
		ln = defmem.Len()
	}

	full := escIn == bits.Alias.NZero() || escIn == bits.Alias.Full() ||
		escOut == bits.Alias.NZero() || escOut == bits.Alias.Full()
	if full {
		mt := types.Meet(callerMem, postCall)
		if defmem == nil {
			return mt
		}
		return types.Join(mt, defmem)
	}
	if escIn == bits.Alias.Empty() && escOut == bits.Alias.Empty() {
		if defmem == nil {
			return callerMem
		}
		return types.Join(callerMem, defmem)
	}

	objs := make([]types.TypeObj, ln)
	for i := 1; i < ln; i++ {
		pre := callerMem.At(i)
		var obj types.Type = pre
		if escIn.TestRecur(i) || escOut.TestRecur(i) {
			obj = types.Meet(pre, postCall.At(i))
		}
		if defmem != nil {
			obj = types.Join(obj, defmem.At(i))
		}
		objs[i] = obj.(types.TypeObj)
	}
	return types.MakeMem(false, objs)
}

// CheckAndWire wires every resolvable fidx: not a split parent, not already
// wired, passing the basic call sanity check. Reports whether an edge was
// added.
func (n *CallEpiNode) CheckAndWire() bool {
	if n.isCopy {
		return false
	}
	call := n.Call()
	tcall, ok := call.Val().(*types.TypeTuple)
	if !ok || tcall.Len() < 3 {
		return false
	}
	tfp, ok := tcall.At(2).(*types.TypeFunPtr)
	if !ok {
		return false
	}
	fidxs := tfp.Fidxs()
	if fidxs == bits.Fun.Full() {
		return false // error call
	}
	if fidxs.AboveCenter() {
		return false // choices still to make
	}
	tree := bits.Fun.Tree()
	progress := false
	for fidx := range fidxs.All() {
		if fidx <= 1 || tree.IsParent(fidx) {
			continue // parents settle out through their children
		}
		fun := FindFidx(fidx)
		if fun == nil || IsDead(fun) {
			continue
		}
		ret := fun.Ret()
		if ret == nil || IsDead(ret) {
			continue
		}
		if FindDef(n, ret) != -1 {
			continue // wired already
		}
		if !GoodCall(tcall, fun) {
			continue
		}
		n.Wire(call, fun, ret)
		progress = true
	}
	return progress
}

// Wire adds the call-graph edge pair: Call control into the callee Fun
// (argument paths onto every Parm) and the Ret onto this CallEpi.
func (n *CallEpiNode) Wire(call *CallNode, fun *FunNode, ret *RetNode) {
	for _, u := range fun.Uses() {
		parm, ok := u.(*ParmNode)
		if !ok || parm.In(0) != Node(fun) {
			continue
		}
		var actual Node
		switch {
		case parm.Idx() == MemParmIdx:
			actual = NewMProj(call)
		case parm.Idx() >= call.Nargs():
			actual = NewCon(types.ALL) // missing arg; errors later but stays wired
		default:
			actual = NewProj(call, 3+parm.Idx())
		}
		AddDef(parm, actual)
	}
	AddDef(fun, NewCEProj(call))
	AddDef(n, ret)
}

// Unwire removes both directions of a call-graph edge.
func (n *CallEpiNode) Unwire(call *CallNode, ret *RetNode) *CallEpiNode {
	fun := ret.Fun()
	for i := 1; i < fun.NumIns(); i++ {
		cep, ok := fun.In(i).(*CEProjNode)
		if !ok || cep.Call() != call {
			continue
		}
		for _, u := range fun.Uses() {
			if parm, ok := u.(*ParmNode); ok && parm.In(0) == Node(fun) && parm.NumIns() > i {
				actual := parm.In(i)
				RemoveDefAt(parm, i)
				if actual != nil && actual.NumUses() == 0 {
					Kill(actual)
				}
			}
		}
		RemoveDefAt(fun, i)
		if cep.NumUses() == 0 {
			Kill(cep)
		}
		break
	}
	if i := FindDef(n, ret); i != -1 {
		RemoveDefAt(n, i)
	}
	return n
}

// IdealReduce: drop no-longer-targeted callees, wire new ones, and inline
// the recognized trivial bodies of a lone wired target.
func (n *CallEpiNode) IdealReduce() Node {
	if n.isCopy {
		return nil
	}
	call := n.Call()
	tcall, ok := call.Val().(*types.TypeTuple)
	if !ok || tcall.Len() < 3 {
		return nil
	}
	if tcall.At(0) != types.CTRL {
		return nil // call not executable
	}
	tfp, ok := tcall.At(2).(*types.TypeFunPtr)
	if !ok {
		return nil
	}
	fidxs := tfp.Fidxs()

	// Sharpened fidxs exclude a wired callee: cut the edge.
	if !fidxs.Test(1) {
		for i := 0; i < n.NWired(); i++ {
			ret := n.Wired(i)
			if !fidxs.TestRecur(ret.Fidx()) {
				n.Unwire(call, ret)
				return n
			}
		}
	}

	if n.CheckAndWire() {
		return n
	}

	// Inline needs exactly one wired target, exactly resolved.
	if n.NWired() != 1 {
		return nil
	}
	fidx := fidxs.ABit()
	if fidx == -1 || fidxs.AboveCenter() || bits.Fun.Tree().IsParent(fidx) {
		return nil
	}
	ret := n.Wired(0)
	fun := ret.Fun()
	if fun.Val() != types.CTRL || fun.noInline {
		return nil
	}
	if CallErr(tcall, fun) {
		return nil // needs a real conversion; suppress inlining
	}

	cctl, cmem := call.Ctl(), call.Mem()
	rctl, rmem, rrez := ret.Ctl(), ret.Mem(), ret.Rez()
	// A function that does nothing with memory uses the call memory directly.
	if p, ok := rmem.(*ParmNode); ok && p.In(0) == Node(fun) {
		rmem = cmem
	} else if rmem.Val() == types.ANYMEM {
		rmem = cmem
	}

	// Identity body: the return is a Parm.
	if p, ok := rrez.(*ParmNode); ok && p.In(0) == Node(fun) && rmem == cmem {
		arg := call.Arg(p.Idx())
		Unkeep(ret)
		return n.Unwire(call, ret).setIsCopy(cctl, cmem, arg)
	}
	// Constant body.
	if types.IsCon(rrez.Val()) && rctl == Node(fun) && rmem == cmem {
		Unkeep(ret)
		return n.Unwire(call, ret).setIsCopy(cctl, cmem, NewCon(rrez.Val()))
	}
	// One-op body over parameters and constants, no memory effects.
	if _, isParm := rrez.(*ParmNode); !isParm && rmem == cmem {
		prim, ok := rrez.(*PrimNode)
		if !ok {
			return nil
		}
		for i := 1; i < prim.NumIns(); i++ {
			in := prim.In(i)
			if in == nil || in == Node(fun) {
				continue
			}
			if p, ok := in.(*ParmNode); ok && p.In(0) == Node(fun) {
				continue
			}
			if _, ok := in.(*ConNode); ok {
				continue
			}
			return nil // not trivial
		}
		irez := prim.cloneWith(func(in Node) Node {
			if p, ok := in.(*ParmNode); ok && p.In(0) == Node(fun) {
				return call.Arg(p.Idx())
			}
			return in
		})
		Unkeep(ret)
		return n.Unwire(call, ret).setIsCopy(cctl, cmem, irez)
	}
	return nil
}

// ArgShapeErr reports the resolved callee whose formals need a non-free
// conversion from this call's arguments; such calls never inline and the
// driver surfaces them.
func (n *CallEpiNode) ArgShapeErr() *FunNode {
	if n.isCopy || n.NWired() != 1 {
		return nil
	}
	tcall, ok := n.Call().Val().(*types.TypeTuple)
	if !ok || tcall.Len() < 3 {
		return nil
	}
	fun := n.Wired(0).Fun()
	if tcall.Len() < 3+fun.Nargs() {
		return nil // an arity problem, reported through unification
	}
	if CallErr(tcall, fun) {
		return fun
	}
	return nil
}

func (n *CallEpiNode) setIsCopy(ctl, mem, rez Node) *CallEpiNode {
	n.isCopy = true
	for n.NumIns() > 0 {
		RemoveDefAt(n, n.NumIns()-1)
	}
	AddDef(n, ctl)
	AddDef(n, mem)
	AddDef(n, rez)
	return n
}

// LiveUse: the call stays as live as this node; the default memory dies
// once the call graph is complete; a wired return is live only while the
// call still targets it.
func (n *CallEpiNode) LiveUse(def Node) types.Type {
	if n.isCopy {
		return def.Live()
	}
	if def == n.In(0) {
		return n.live
	}
	if def == n.In(1) {
		if PostGCP {
			return types.ANYMEM
		}
		return n.live
	}
	tcall, ok := n.Call().Val().(*types.TypeTuple)
	if !ok || tcall.Len() < 3 {
		if types.AboveCenter(n.Call().Val()) {
			return types.ANYMEM
		}
		return n.live
	}
	tfp, ok := tcall.At(2).(*types.TypeFunPtr)
	if !ok {
		return n.live
	}
	fidxs := tfp.Fidxs()
	ret, ok := def.(*RetNode)
	if !ok {
		return n.live
	}
	if fidxs.AboveCenter() || !fidxs.TestRecur(ret.Fidx()) {
		return types.ANYMEM // call does not call this
	}
	return n.live
}

// Unify: the called function must be a lambda over the call's argument
// variables returning this node's variable.
func (n *CallEpiNode) Unify(test bool) bool {
	if n.isCopy {
		return false
	}
	if n.tv.IsErr() {
		return false // already sick
	}
	call := n.Call()
	fdx := call.Fdx()
	tfun := fdx.TV()
	if tfun == nil {
		return false
	}
	if tfun.IsErr() {
		return n.tv.Unify(tfun, test)
	}

	progress := false
	if tfun.TVKind() != tvar.KLambda {
		if test {
			return true
		}
		formals := make([]*tvar.TV, call.Nargs())
		for i := range formals {
			atv := call.Arg(i).TV()
			if atv == nil {
				atv = tvar.NewLeaf()
			}
			formals[i] = atv
		}
		progress = tfun.Unify(tvar.NewLambda(formals, n.tv), test)
		tfun = tfun.Find()
	}
	if tfun.TVKind() != tvar.KLambda {
		return progress // became an error
	}
	if tfun.NumArgs() != call.Nargs() {
		return n.tv.UnifyErr("mismatched argument lengths", tfun, test)
	}
	for i := 0; i < call.Nargs(); i++ {
		atv := call.Arg(i).TV()
		if atv == nil {
			continue
		}
		progress = atv.Unify(tfun.Find().Arg(i), test) || progress
		if progress && test {
			return true
		}
		tfun = tfun.Find()
		if tfun.IsErr() {
			return n.tv.Unify(tfun, test)
		}
	}
	progress = n.tv.Unify(tfun.Ret(), test) || progress
	return progress
}

func (n *CallEpiNode) HasTVar() bool { return true }

// MemParmIdx is the ParmNode index of the memory parameter.
const MemParmIdx = -1
