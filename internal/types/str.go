package types

import "strings"

// printer renders types, breaking cycles with a visited set.
type printer struct {
	sb    strings.Builder
	visit map[int]bool
	debug bool
}

func (p *printer) s(s string) { p.sb.WriteString(s) }

func (p *printer) typ(t Type) {
	uid := t.base().uid
	switch t.Kind() {
	case KindStruct, KindMemPtr, KindFunPtr:
		if p.visit[uid] {
			p.s("$") // recursive printing cycle
			return
		}
		p.visit[uid] = true
		defer delete(p.visit, uid)
	}
	t.str(p)
}

// Str renders t, cycle-aware.
func Str(t Type) string {
	p := &printer{visit: map[int]bool{}}
	p.typ(t)
	return p.sb.String()
}

// StrDebug renders t with internal detail (displays, polarity marks).
func StrDebug(t Type) string {
	p := &printer{visit: map[int]bool{}, debug: true}
	p.typ(t)
	return p.sb.String()
}
