package infer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/grailbio/hmgcp/lattice"
	"github.com/grailbio/hmgcp/symbol"
)

func TestPrintSchemeLeafGetsLetterName(t *testing.T) {
	l := NewLeaf()
	assert.Equal(t, "A", PrintScheme(l))
}

func TestPrintSchemeDistinctLeavesGetDistinctNames(t *testing.T) {
	p := newPrinter()
	a := NewLeaf()
	b := NewLeaf()
	na := p.nameFor(a)
	nb := p.nameFor(b)
	assert.NotEqual(t, na, nb)
}

func TestPrintSchemeBaseRendersFlow(t *testing.T) {
	b := NewBase(lattice.NewInt(3))
	assert.Equal(t, "3", PrintScheme(b))
}

func TestPrintSchemeNilableAppendsQuestionMark(t *testing.T) {
	inner := NewBase(lattice.IntClass)
	outer := NewNilable(inner)
	assert.Equal(t, "int?", PrintScheme(outer))
}

func TestPrintSchemeFunRendersArrow(t *testing.T) {
	fn := NewLeaf()
	fn.isFun = true
	fn.setArg(symbol.ArgX, NewBase(lattice.IntClass))
	fn.setArg(symbol.Ret, NewBase(lattice.IntClass))
	assert.Equal(t, "{ int -> int }", PrintScheme(fn))
}

func TestPrintSchemeAliasRendersFields(t *testing.T) {
	rec := NewLeaf()
	rec.isAlias = true
	rec.setArg(symbol.Intern("a"), NewBase(lattice.NewInt(1)))
	assert.Equal(t, "@{a=1}", PrintScheme(rec))
}

func TestPrintSchemeOpenAliasHasEllipsis(t *testing.T) {
	rec := NewLeaf()
	rec.isAlias = true
	rec.open = true
	rec.setArg(symbol.Intern("a"), NewBase(lattice.NewInt(1)))
	assert.Equal(t, "@{a=1,...}", PrintScheme(rec))
}

func TestPrintSchemeCyclicStructureTerminates(t *testing.T) {
	rec := NewLeaf()
	rec.isAlias = true
	rec.setArg(symbol.Intern("self"), rec)
	out := PrintScheme(rec)
	assert.Contains(t, out, "self=")
}

func TestPrintFlowDelegatesToTypeString(t *testing.T) {
	assert.Equal(t, "3", PrintFlow(lattice.NewInt(3)))
}
