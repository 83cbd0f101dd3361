package proxy

import "fmt"

// ErrPassNotFound is returned by Before/After when no pass with the given
// name exists in the target pipeline (spec.md §3, "Pass").
type ErrPassNotFound struct {
	Kind string
	Name string
}

func (e *ErrPassNotFound) Error() string {
	return fmt.Sprintf("proxy: no such pass %q in %s pipeline", e.Name, e.Kind)
}

// NamedPass pairs a pass function with the name identity-based insertion
// (Before/After) locates it by (spec.md §3, "Pass").
type NamedPass[Fn any] struct {
	Name string
	Fn   Fn
}

// PassList is a per-instance ordered pipeline of named passes. Lists are
// copied per ProxyServer instance so Before/After insertions on one server
// never leak into another (spec.md §3, "Pipeline registry").
type PassList[Fn any] []NamedPass[Fn]

// Clone returns an independent copy of the list.
func (p PassList[Fn]) Clone() PassList[Fn] {
	out := make(PassList[Fn], len(p))
	copy(out, p)
	return out
}

// indexOfLast returns the index of the last pass named name, or -1.
// Matches spec.md §3's "before/after target the last match" allowance for
// duplicate names.
func (p PassList[Fn]) indexOfLast(name string) int {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i].Name == name {
			return i
		}
	}
	return -1
}

// Before inserts fn immediately before the pass named name.
func (p PassList[Fn]) Before(kind, name string, fn Fn) (PassList[Fn], error) {
	idx := p.indexOfLast(name)
	if idx < 0 {
		return p, &ErrPassNotFound{Kind: kind, Name: name}
	}
	out := make(PassList[Fn], 0, len(p)+1)
	out = append(out, p[:idx]...)
	out = append(out, NamedPass[Fn]{Name: "", Fn: fn})
	out = append(out, p[idx:]...)
	return out, nil
}

// After inserts fn immediately after the pass named name.
func (p PassList[Fn]) After(kind, name string, fn Fn) (PassList[Fn], error) {
	idx := p.indexOfLast(name)
	if idx < 0 {
		return p, &ErrPassNotFound{Kind: kind, Name: name}
	}
	out := make(PassList[Fn], 0, len(p)+1)
	out = append(out, p[:idx+1]...)
	out = append(out, NamedPass[Fn]{Name: "", Fn: fn})
	out = append(out, p[idx+1:]...)
	return out, nil
}
