package infer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/grailbio/hmgcp/bits"
	"github.com/grailbio/hmgcp/lattice"
	"github.com/grailbio/hmgcp/symbol"
)

func TestConPrepTreeSeedsNilableForZero(t *testing.T) {
	eng := NewEngine(Opts{})
	c := NewCon(lattice.NewInt(0))
	c.prepTree(nil, nil, eng)
	assert.True(t, Find(c.T2()).IsNilable())
}

func TestConPrepTreeNonZeroIsPlainBase(t *testing.T) {
	eng := NewEngine(Opts{})
	c := NewCon(lattice.NewInt(3))
	c.prepTree(nil, nil, eng)
	assert.False(t, Find(c.T2()).IsNilable())
	assert.Equal(t, lattice.NewInt(3), c.val(eng))
}

func TestConHMNeverMakesProgress(t *testing.T) {
	c := NewCon(lattice.NewInt(1))
	assert.False(t, c.hm(nil))
}

func TestFieldDiscoversOpenFieldOnLeaf(t *testing.T) {
	eng := NewEngine(Opts{})
	rec := NewIdent(symbol.Intern("p"))
	f := NewField(symbol.Intern("x"), rec)
	rec.t2 = NewLeaf()
	f.setParent(nil)
	rec.setParent(f)
	f.t2 = NewLeaf()

	progress := f.hm(eng)
	assert.True(t, progress)
	recRep := Find(rec.T2())
	assert.True(t, recRep.isAlias)
	assert.True(t, recRep.open)
	assert.Equal(t, f.T2(), Find(recRep.Arg(symbol.Intern("x"))))
}

func TestFieldValOnOpenStructMissingFieldIsTop(t *testing.T) {
	eng := NewEngine(Opts{})
	alias, _ := eng.aliases.NewAlias(bits.UniversalAlias)
	eng.typeMem.Set(alias, lattice.NewStruct([]lattice.Field{{Name: symbol.Intern("x"), Type: lattice.NewInt(1)}}, true))

	f := &Field{Name: symbol.Intern("y")}
	f.setFlow(lattice.Top)
	rec := &Con{}
	rec.setFlow(lattice.NewMemPtr(bits.Empty.Set(int(alias))))
	f.Rec = rec
	assert.Equal(t, lattice.Top, f.val(eng))
}

func TestFieldValOnClosedStructMissingFieldIsBottom(t *testing.T) {
	eng := NewEngine(Opts{})
	alias, _ := eng.aliases.NewAlias(bits.UniversalAlias)
	eng.typeMem.Set(alias, lattice.NewStruct([]lattice.Field{{Name: symbol.Intern("x"), Type: lattice.NewInt(1)}}, false))

	f := &Field{Name: symbol.Intern("y")}
	rec := &Con{}
	rec.setFlow(lattice.NewMemPtr(bits.Empty.Set(int(alias))))
	f.Rec = rec
	assert.Equal(t, lattice.Bottom, f.val(eng))
}

func TestRegisterCallerDedupesSameApply(t *testing.T) {
	lam := &Lambda{}
	app := &Apply{}
	registerCaller(lam, app)
	registerCaller(lam, app)
	assert.Len(t, lam.callers, 1)
}

func TestWidenConflictsTopLevelBottom(t *testing.T) {
	assert.Equal(t, lattice.Top, widenConflicts(nil, lattice.Bottom))
}

func TestWidenConflictsLeavesNonStructAlone(t *testing.T) {
	assert.Equal(t, lattice.NewInt(3), widenConflicts(nil, lattice.NewInt(3)))
}

func TestWidenConflictsNestedStructField(t *testing.T) {
	in := lattice.NewStruct([]lattice.Field{
		{Name: symbol.Intern("0"), Type: lattice.Bottom},
		{Name: symbol.Intern("1"), Type: lattice.NewInt(1)},
	}, false)
	out := widenConflicts(nil, in)
	f0, ok := out.Field(symbol.Intern("0"))
	assert.True(t, ok)
	assert.Equal(t, lattice.Top, f0)
	f1, ok := out.Field(symbol.Intern("1"))
	assert.True(t, ok)
	assert.Equal(t, lattice.NewInt(1), f1)
}

func TestWidenConflictsRecursesTwoLevelsDeep(t *testing.T) {
	inner := lattice.NewStruct([]lattice.Field{{Name: symbol.Intern("0"), Type: lattice.Bottom}}, false)
	outer := lattice.NewStruct([]lattice.Field{{Name: symbol.Intern("a"), Type: inner}}, false)
	out := widenConflicts(nil, outer)
	a, _ := out.Field(symbol.Intern("a"))
	inner0, ok := a.Field(symbol.Intern("0"))
	assert.True(t, ok)
	assert.Equal(t, lattice.Top, inner0)
}

func TestKnownPredicateZeroIsFalse(t *testing.T) {
	assert.Equal(t, predFalse, knownPredicate(lattice.NewInt(0)))
}

func TestKnownPredicateNonzeroIsTrue(t *testing.T) {
	assert.Equal(t, predTrue, knownPredicate(lattice.NewInt(5)))
}

func TestKnownPredicateNilIsFalse(t *testing.T) {
	assert.Equal(t, predFalse, knownPredicate(lattice.Nil))
}

func TestKnownPredicateClassIsUnknown(t *testing.T) {
	assert.Equal(t, predUnknown, knownPredicate(lattice.IntClass))
}

func TestArithFlowConstFolds(t *testing.T) {
	assert.Equal(t, lattice.NewInt(7), arithFlow(OpAdd, lattice.NewInt(3), lattice.NewInt(4)))
	assert.Equal(t, lattice.NewInt(12), arithFlow(OpMul, lattice.NewInt(3), lattice.NewInt(4)))
}

func TestArithFlowClassOnNonConst(t *testing.T) {
	assert.Equal(t, lattice.IntClass, arithFlow(OpAdd, lattice.IntClass, lattice.NewInt(4)))
}

func TestArithFlowBottomOnWrongKind(t *testing.T) {
	assert.Equal(t, lattice.Bottom, arithFlow(OpAdd, lattice.NewStr("x"), lattice.NewInt(4)))
}

func TestArithFlowTopPropagates(t *testing.T) {
	assert.Equal(t, lattice.Top, arithFlow(OpAdd, lattice.Top, lattice.NewInt(4)))
}

func TestDecFlowConstFolds(t *testing.T) {
	assert.Equal(t, lattice.NewInt(2), decFlow(lattice.NewInt(3)))
}

func TestStrFlowConstFolds(t *testing.T) {
	assert.Equal(t, lattice.NewStr("42"), strFlow(lattice.NewInt(42)))
}

func TestStrFlowNegativeConstFolds(t *testing.T) {
	assert.Equal(t, lattice.NewStr("-7"), strFlow(lattice.NewInt(-7)))
}

func TestEq0FlowOnNilIsTrue(t *testing.T) {
	assert.Equal(t, lattice.NewInt(1), eq0Flow(lattice.Nil))
}

func TestEq0FlowOnNonzeroIsFalse(t *testing.T) {
	assert.Equal(t, lattice.NewInt(0), eq0Flow(lattice.NewInt(3)))
}

func TestIsEmptyFlowOnEmptyStrIsTrue(t *testing.T) {
	assert.Equal(t, lattice.NewInt(1), isEmptyFlow(lattice.NewStr("")))
}

func TestIsEmptyFlowOnNonEmptyStrIsFalse(t *testing.T) {
	assert.Equal(t, lattice.NewInt(0), isEmptyFlow(lattice.NewStr("x")))
}

func TestBoolFlowFromEqualConstsIsTrue(t *testing.T) {
	assert.Equal(t, lattice.NewInt(1), boolFlowFrom(lattice.NewInt(3), lattice.NewInt(3)))
}

func TestBoolFlowFromDifferentConstsIsFalse(t *testing.T) {
	assert.Equal(t, lattice.NewInt(0), boolFlowFrom(lattice.NewInt(3), lattice.NewInt(4)))
}

func TestNotNilFlowOnNilIsBottom(t *testing.T) {
	assert.Equal(t, lattice.Bottom, notNilFlow(lattice.Nil))
}

func TestNotNilFlowPassesThroughOtherwise(t *testing.T) {
	assert.Equal(t, lattice.NewInt(5), notNilFlow(lattice.NewInt(5)))
}

func TestItoaZero(t *testing.T) {
	assert.Equal(t, "0", itoa(0))
}

func TestItoaNegative(t *testing.T) {
	assert.Equal(t, "-123", itoa(-123))
}

func TestItoaPositive(t *testing.T) {
	assert.Equal(t, "987", itoa(987))
}

func TestApplyHMNotYetFunctionBuildsAnyFunPlaceholder(t *testing.T) {
	eng := NewEngine(Opts{})
	fn := NewIdent(symbol.Intern("f"))
	arg := NewCon(lattice.NewInt(1))
	app := NewApply(fn, arg)
	fn.t2 = NewLeaf()
	arg.t2 = NewBase(lattice.NewInt(1))
	app.t2 = NewLeaf()

	progress := app.hm(eng)
	assert.True(t, progress)
	fnRep := Find(fn.T2())
	assert.True(t, fnRep.isFun)
	assert.True(t, fnRep.fidxs.Test(int(bits.AnyFun)))
}

func TestApplyValOnNonFunctionFlowIsTop(t *testing.T) {
	eng := NewEngine(Opts{})
	fn := &Con{}
	fn.setFlow(lattice.NewInt(1))
	app := &Apply{Fn: fn}
	assert.Equal(t, lattice.Top, app.val(eng))
}

func TestLetValDelegatesToBodyFlow(t *testing.T) {
	body := &Con{}
	body.setFlow(lattice.NewInt(9))
	l := &Let{Body: body}
	assert.Equal(t, lattice.NewInt(9), l.val(nil))
}

func TestLetHMNeverMakesProgress(t *testing.T) {
	l := &Let{}
	assert.False(t, l.hm(nil))
}

func TestRootValDelegatesToBodyFlow(t *testing.T) {
	body := &Con{}
	body.setFlow(lattice.NewInt(4))
	r := &Root{Body: body}
	assert.Equal(t, lattice.NewInt(4), r.val(nil))
}

func TestArgFlowDefaultsToTopWithoutFlow(t *testing.T) {
	assert.Equal(t, lattice.Top, argFlow(NewLeaf()))
}

func TestArgFlowReadsInstalledFlow(t *testing.T) {
	assert.Equal(t, lattice.NewInt(2), argFlow(NewBase(lattice.NewInt(2))))
}
