package infer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/grailbio/hmgcp/bits"
	"github.com/grailbio/hmgcp/lattice"
	"github.com/grailbio/hmgcp/symbol"
)

func TestUnifyTwoLeavesForwardsSmallerID(t *testing.T) {
	s := newSession()
	a := NewLeaf()
	b := NewLeaf()
	progress := s.Unify(a, b)
	assert.True(t, progress)
	assert.Equal(t, Find(a), Find(b))
}

func TestUnifyLeafWithNonLeafForwardsLeaf(t *testing.T) {
	s := newSession()
	leaf := NewLeaf()
	base := NewBase(lattice.NewInt(3))
	assert.True(t, s.Unify(leaf, base))
	assert.Equal(t, Find(base), Find(leaf))
}

func TestUnifySameNodeNoProgress(t *testing.T) {
	s := newSession()
	a := NewLeaf()
	assert.False(t, s.Unify(a, a))
}

func TestUnifyBasesSameKindMeets(t *testing.T) {
	s := newSession()
	a := NewBase(lattice.IntClass)
	b := NewBase(lattice.NewInt(3))
	s.Unify(a, b)
	rep := Find(a)
	assert.True(t, rep.flow.Equal(lattice.NewInt(3)))
}

func TestUnifyBasesConflictingConstantsSetsEflow(t *testing.T) {
	s := newSession()
	a := NewBase(lattice.NewInt(3))
	b := NewBase(lattice.NewFlt(1.5))
	s.Unify(a, b)
	rep := Find(a)
	assert.True(t, rep.hasEflow)
}

func TestUnifyStructuralFieldsRecurse(t *testing.T) {
	s := newSession()
	a := NewLeaf()
	av := NewBase(lattice.NewInt(3))
	a.setArg(symbol.ArgX, av)

	b := NewLeaf()
	bv := NewLeaf()
	b.setArg(symbol.ArgX, bv)

	s.Unify(a, b)
	rep := Find(a)
	fv := Find(rep.Arg(symbol.ArgX))
	assert.True(t, fv.hasFlow)
	assert.True(t, fv.flow.Equal(lattice.NewInt(3)))
}

func TestUnifyOpenStructGainsMissingField(t *testing.T) {
	s := newSession()
	a := NewLeaf()
	a.isAlias = true
	a.open = true

	b := NewLeaf()
	b.isAlias = true
	b.open = true
	bv := NewLeaf()
	b.setArg(symbol.ArgX, bv)

	s.Unify(a, b)
	rep := Find(a)
	assert.NotNil(t, rep.Arg(symbol.ArgX))
}

func TestUnifyClosedStructDropsUnmatchedField(t *testing.T) {
	s := newSession()
	a := NewLeaf()
	a.isAlias = true
	a.open = false
	a.setArg(symbol.ArgX, NewLeaf())

	b := NewLeaf()
	b.isAlias = true
	b.open = false

	s.Unify(a, b)
	rep := Find(a)
	assert.Nil(t, rep.Arg(symbol.ArgX))
}

func TestUnifyFunVsNonFunRecordsError(t *testing.T) {
	s := newSession()
	a := NewLeaf()
	a.isFun = true
	a.fidxs = bits.Empty.Set(2)
	a.setArg(symbol.Ret, NewLeaf())

	b := NewLeaf()
	b.isAlias = true
	b.setArg(symbol.ArgX, NewLeaf())

	s.Unify(a, b)
	rep := Find(a)
	assert.NotEmpty(t, rep.err)
}

func TestUnifyNilBaseWithIntBaseKeepsIntFlow(t *testing.T) {
	s := newSession()
	nilSide := NewBase(lattice.Nil)
	other := NewBase(lattice.NewInt(3))
	s.Unify(nilSide, other)
	rep := Find(other)
	assert.True(t, rep.flow.Equal(lattice.NewInt(3)))
}

func TestFreshUnifyCopiesGenericLeaf(t *testing.T) {
	s := newSession()
	lhs := NewLeaf()
	var nongen *VStack
	rhs1 := NewLeaf()
	s.FreshUnify(lhs, rhs1, nongen)
	rhs2 := NewLeaf()
	s.FreshUnify(lhs, rhs2, nongen)
	assert.NotEqual(t, Find(rhs1), Find(rhs2))
}

func TestFreshUnifySkipsNongenOccurringLeaf(t *testing.T) {
	s := newSession()
	lhs := NewLeaf()
	nongen := (*VStack)(nil).Push(lhs)
	rhs := NewLeaf()
	s.FreshUnify(lhs, rhs, nongen)
	assert.Equal(t, Find(lhs), Find(rhs))
}

func TestCycleEqualsIdenticalLeaves(t *testing.T) {
	s := newSession()
	a := NewLeaf()
	assert.True(t, s.CycleEquals(a, a))
}

func TestCycleEqualsStructurallyEqualBases(t *testing.T) {
	s := newSession()
	a := NewBase(lattice.NewInt(3))
	b := NewBase(lattice.NewInt(3))
	assert.True(t, s.CycleEquals(a, b))
}

func TestCycleEqualsDifferentFlowNotEqual(t *testing.T) {
	s := newSession()
	a := NewBase(lattice.NewInt(3))
	b := NewBase(lattice.NewInt(4))
	assert.False(t, s.CycleEquals(a, b))
}

func TestCycleEqualsHandlesSelfReferentialCycle(t *testing.T) {
	s := newSession()
	a := NewLeaf()
	a.setArg(symbol.ArgX, a)
	b := NewLeaf()
	b.setArg(symbol.ArgX, b)
	assert.True(t, s.CycleEquals(a, b))
}

func TestStringRendersLeafAndBase(t *testing.T) {
	l := NewLeaf()
	assert.Contains(t, l.String(), "V")
	b := NewBase(lattice.NewInt(3))
	assert.Equal(t, "3", b.String())
}
