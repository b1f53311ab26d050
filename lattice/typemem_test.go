package lattice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/grailbio/hmgcp/bits"
)

func TestTypeMemDefaultsToTop(t *testing.T) {
	tree := bits.NewAliasTree()
	m := NewTypeMem()
	m.Bind(tree)
	assert.True(t, m.Get(bits.UniversalAlias).Equal(Top))
}

func TestTypeMemSetAndGet(t *testing.T) {
	tree := bits.NewAliasTree()
	m := NewTypeMem()
	m.Bind(tree)
	idx, _ := tree.NewAlias(bits.UniversalAlias)
	m.Set(idx, NewInt(3))
	assert.True(t, m.Get(idx).Equal(NewInt(3)))
}

func TestTypeMemChildInheritsParent(t *testing.T) {
	tree := bits.NewAliasTree()
	m := NewTypeMem()
	m.Bind(tree)
	parent, _ := tree.NewAlias(bits.UniversalAlias)
	m.Set(parent, NewInt(3))
	child, _ := tree.NewAlias(bits.AliasIndex(int(parent)))
	assert.True(t, m.Get(child).Equal(NewInt(3)))
}

func TestTypeMemSetEqualToParentCollapses(t *testing.T) {
	tree := bits.NewAliasTree()
	m := NewTypeMem()
	m.Bind(tree)
	parent, _ := tree.NewAlias(bits.UniversalAlias)
	m.Set(parent, NewInt(3))
	child, _ := tree.NewAlias(bits.AliasIndex(int(parent)))
	m.Set(child, NewInt(3))
	_, ok := m.lookupRaw(child)
	assert.False(t, ok)
	assert.True(t, m.Get(child).Equal(NewInt(3)))
}

func TestTypeMemCompactRemovesDefaults(t *testing.T) {
	tree := bits.NewAliasTree()
	m := NewTypeMem()
	m.Bind(tree)
	idx, _ := tree.NewAlias(bits.UniversalAlias)
	m.Set(idx, Top)
	m.Compact()
	_, ok := m.lookupRaw(idx)
	assert.False(t, ok)
}
