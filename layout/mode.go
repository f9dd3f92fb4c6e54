// Package layout plans and materialises a resolved dependency graph under
// node_modules/, generalising project_manager.go's single "export a cached
// checkout into vendor/" pipeline into the two placement policies spec.md
// §4.7 names: Hoisted (classic npm-style, conflicts nested under their
// requirer) and Strict (every package isolated under its own store-backed
// directory, only direct dependencies visible at the top level).
package layout

// Mode selects a placement policy. The two modes share the same
// materialise step (store.Link per Placement); only planning differs,
// matching spec.md §9's "Dispatch over layout modes" closed variant.
type Mode int

const (
	Hoisted Mode = iota
	Strict
)

func (m Mode) String() string {
	if m == Strict {
		return "strict"
	}
	return "hoisted"
}
