package types

import "fmt"

// TypeMem is the state of all memory: a sparse map from alias id to object
// approximation. Slot 0 is reserved (memory is never nil); slot 1 is the
// parent-of-all default. Slots equal to their tree default compress to nil.
type TypeMem struct {
	tbase
	any  bool
	objs []TypeObj
}

var (
	MEM    *TypeMem // every alias holds some object
	XMEM   *TypeMem
	ALLMEM *TypeMem // liveness bottom: everything demanded
	ANYMEM *TypeMem // liveness top: nothing demanded
)

func initMems() {
	MEM = makeMem(false, []TypeObj{nil, OBJ})
	XMEM = Dual(MEM).(*TypeMem)
	ALLMEM = makeMem(false, []TypeObj{nil, ISUSED})
	ANYMEM = Dual(ALLMEM).(*TypeMem)
}

func makeMem(any bool, objs []TypeObj) *TypeMem {
	return install(&TypeMem{tbase: newBase(KindMem), any: any, objs: objs})
}

// MakeMem canonicalizes and interns: default slot 1 fills with dont-care,
// slots equal to their parent's value compress away, trailing nils trim.
func MakeMem(any bool, objs []TypeObj) *TypeMem {
	as := append([]TypeObj(nil), objs...)
	if len(as) < 2 {
		as = append(as, make([]TypeObj, 2-len(as))...)
	}
	as[0] = nil
	if as[1] == nil {
		as[1] = XOBJ
	}
	tree := alias().Tree()
	for i := len(as) - 1; i >= 2; i-- {
		if as[i] == nil {
			continue
		}
		par := tree.Parent(i)
		if par == 0 {
			par = 1
		}
		if atSlot(as, par, tree) == as[i] {
			as[i] = nil
		}
	}
	n := len(as)
	for n > 2 && as[n-1] == nil {
		n--
	}
	return makeMem(any, as[:n])
}

// MakeMemAlias is the precise single-alias memory; all else is dont-care.
func MakeMemAlias(alias int, obj TypeObj) *TypeMem {
	as := make([]TypeObj, alias+2)
	as[1] = XOBJ
	as[alias] = obj
	return MakeMem(false, as)
}

func atSlot(as []TypeObj, i int, tree interface{ Parent(int) int }) TypeObj {
	for {
		if i < len(as) && as[i] != nil {
			return as[i]
		}
		if i <= 1 {
			return as[1]
		}
		if p := tree.Parent(i); p != 0 {
			i = p
		} else {
			i = 1
		}
	}
}

// At resolves an alias id through the split tree down to the slot-1 default.
func (t *TypeMem) At(i int) TypeObj { return atSlot(t.objs, i, alias().Tree()) }

// At0 is the direct slot, nil when defaulted.
func (t *TypeMem) At0(i int) TypeObj {
	if i < len(t.objs) {
		return t.objs[i]
	}
	return nil
}

// Len is the slot count.
func (t *TypeMem) Len() int { return len(t.objs) }

func (t *TypeMem) hashContent() uint32 {
	h := uint32(KindMem) * hashPrime
	for _, o := range t.objs {
		if o != nil {
			h = mix(h, Hash(o))
		} else {
			h = mix(h, 7)
		}
	}
	if t.any {
		h ^= 0x8000
	}
	return h | 1
}

func (t *TypeMem) eqContent(o Type) bool {
	m := o.(*TypeMem)
	if t.any != m.any || len(t.objs) != len(m.objs) {
		return false
	}
	for i, obj := range t.objs {
		if obj != m.objs[i] { // identity, not structural
			return false
		}
	}
	return true
}

func (t *TypeMem) xdual() Type {
	objs := make([]TypeObj, len(t.objs))
	for i, o := range t.objs {
		if o != nil {
			objs[i] = Dual(o).(TypeObj)
		}
	}
	return &TypeMem{tbase: newBase(KindMem), any: !t.any, objs: objs}
}

func (t *TypeMem) xmeet(o Type) Type {
	m := o.(*TypeMem)
	n := len(t.objs)
	if len(m.objs) > n {
		n = len(m.objs)
	}
	objs := make([]TypeObj, n)
	for i := 1; i < n; i++ {
		if i == 1 || t.At0(i) != nil || m.At0(i) != nil {
			objs[i] = Meet(t.At(i), m.At(i)).(TypeObj)
		}
	}
	return MakeMem(t.any && m.any, objs)
}

// Ld is the approximation of a load through ptr: join the per-alias objects
// when the pointer is high (a choice), meet when low. Alias 0 is skipped; a
// nil pointer on a low load is an error the caller reports.
func (t *TypeMem) Ld(ptr *TypeMemPtr) TypeObj {
	high := AboveCenter(ptr)
	var obj Type = XOBJ
	if high {
		obj = OBJ
	}
	for a := range ptr.aliases.All() {
		if a == 0 {
			continue
		}
		x := t.At(a)
		if high {
			obj = Join(obj, x)
		} else {
			obj = Meet(obj, x)
		}
	}
	return obj.(TypeObj)
}

// St is the field-granular store. Its design through split alias trees is
// not finalized; callers must route whole-object updates through Merge.
func (t *TypeMem) St(ptr *TypeMemPtr, fld string, val Type) *TypeMem {
	panic("types: field-level St is an unimplemented precondition; use Merge")
}

// Merge overwrites with a skinny single-alias memory, the whole-object form
// of a store.
func (t *TypeMem) Merge(mem *TypeMem) *TypeMem {
	ms := mem.objs
	aliasID := len(ms) - 1
	obj := ms[aliasID]
	if aliasID < 1 || obj == nil {
		panic("types: Merge wants a skinny memory")
	}
	for i := 2; i < aliasID; i++ {
		if ms[i] != nil {
			panic("types: Merge wants a single alias")
		}
	}
	n := len(t.objs)
	if aliasID+1 > n {
		n = aliasID + 1
	}
	objs := make([]TypeObj, n)
	copy(objs, t.objs)
	objs[aliasID] = obj
	return MakeMem(t.any, objs)
}

// FlattenLiveFields collapses contents to pure liveness: explicit slots
// become used, the default becomes unused.
func (t *TypeMem) FlattenLiveFields() *TypeMem {
	objs := make([]TypeObj, len(t.objs))
	objs[1] = UNUSED
	for i := 2; i < len(t.objs); i++ {
		if t.objs[i] != nil {
			objs[i] = ISUSED
		}
	}
	return MakeMem(true, objs)
}

func (t *TypeMem) str(p *printer) {
	if t == MEM {
		p.s("[mem]")
		return
	}
	if t == XMEM {
		p.s("[~mem]")
		return
	}
	if t.any {
		p.s("~")
	}
	p.s("[")
	for i := 1; i < len(t.objs); i++ {
		if t.objs[i] != nil {
			p.s(fmt.Sprintf("%d#:", i))
			p.typ(t.objs[i])
			p.s(",")
		}
	}
	p.s("]")
}
