package lattice

import "github.com/grailbio/hmgcp/bits"

// TypeMem maps alias index to object type, with a parent/child tree so
// that a missing child inherits the parent's object (spec.md §6). Slot
// 0 (bits.NoAlias) is reserved and never assigned an object type; slot 1
// (bits.UniversalAlias) is the universal default. Duplicate parent/child
// entries collapse: setting a child's type equal to its parent's current
// type removes the child's own entry rather than storing a redundant
// copy, and trailing entries equal to the universal default are trimmed
// on Compact.
type TypeMem struct {
	tree    *bits.AliasTree
	objects map[bits.AliasIndex]Type
}

// NewTypeMem creates an empty TypeMem. Callers typically share one
// *bits.AliasTree between the lattice's TypeMem and the allocator used
// to mint new alias indices, so parent/child relationships agree.
func NewTypeMem() *TypeMem {
	return &TypeMem{objects: map[bits.AliasIndex]Type{}}
}

// Bind associates tree with m, so Get can walk parent/child inheritance.
// Must be called once before first use if m was built with NewTypeMem
// alone (engine wiring calls this immediately after construction).
func (m *TypeMem) Bind(tree *bits.AliasTree) { m.tree = tree }

// Set records the object type for idx, collapsing to a no-op if it
// equals the type already inherited from idx's parent.
func (m *TypeMem) Set(idx bits.AliasIndex, t Type) {
	if m.tree != nil {
		if parentType, ok := m.lookupRaw(m.tree.Parent(idx)); ok && parentType.Equal(t) {
			delete(m.objects, idx)
			return
		}
	}
	m.objects[idx] = t
}

// Get returns the object type associated with idx, inheriting from the
// nearest ancestor that has one, defaulting to Top for the universal
// parent itself.
func (m *TypeMem) Get(idx bits.AliasIndex) Type {
	if t, ok := m.lookupRaw(idx); ok {
		return t
	}
	if m.tree == nil || idx == bits.UniversalAlias || idx == bits.NoAlias {
		return Top
	}
	return m.Get(m.tree.Parent(idx))
}

func (m *TypeMem) lookupRaw(idx bits.AliasIndex) (Type, bool) {
	t, ok := m.objects[idx]
	return t, ok
}

// Compact removes entries equal to the universal default, trimming
// trailing redundant state after a round of Set calls.
func (m *TypeMem) Compact() {
	def := m.Get(bits.UniversalAlias)
	for idx, t := range m.objects {
		if idx != bits.UniversalAlias && t.Equal(def) {
			delete(m.objects, idx)
		}
	}
}
