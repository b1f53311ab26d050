package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/grailbio/hmgcp/infer"
)

func TestParseIntLiteral(t *testing.T) {
	root, err := Parse("42")
	require.NoError(t, err)
	con, ok := root.Body.(*infer.Con)
	require.True(t, ok)
	assert.Equal(t, int64(42), con.Value.Int())
}

func TestParseNegativeIntLiteral(t *testing.T) {
	root, err := Parse("-7")
	require.NoError(t, err)
	con, ok := root.Body.(*infer.Con)
	require.True(t, ok)
	assert.Equal(t, int64(-7), con.Value.Int())
}

func TestParseFloatLiteral(t *testing.T) {
	root, err := Parse("3.5")
	require.NoError(t, err)
	con, ok := root.Body.(*infer.Con)
	require.True(t, ok)
	assert.Equal(t, 3.5, con.Value.Flt())
}

func TestParseStringLiteral(t *testing.T) {
	root, err := Parse(`"hello"`)
	require.NoError(t, err)
	con, ok := root.Body.(*infer.Con)
	require.True(t, ok)
	assert.Equal(t, "hello", con.Value.Str())
}

func TestParseLambda(t *testing.T) {
	root, err := Parse("{ x -> x }")
	require.NoError(t, err)
	lam, ok := root.Body.(*infer.Lambda)
	require.True(t, ok)
	assert.Len(t, lam.Params, 1)
	_, isIdent := lam.Body.(*infer.Ident)
	assert.True(t, isIdent)
}

func TestParseMultiParamLambda(t *testing.T) {
	root, err := Parse("{ x y -> x }")
	require.NoError(t, err)
	lam, ok := root.Body.(*infer.Lambda)
	require.True(t, ok)
	assert.Len(t, lam.Params, 2)
}

func TestParseLet(t *testing.T) {
	root, err := Parse("x = 1; x")
	require.NoError(t, err)
	_, ok := root.Body.(*infer.Let)
	assert.True(t, ok)
}

func TestParsePrimitivePairRecognizedByArity(t *testing.T) {
	root, err := Parse(`(pair 1 2)`)
	require.NoError(t, err)
	prim, ok := root.Body.(*infer.Primitive)
	require.True(t, ok)
	assert.Equal(t, infer.OpPair, prim.Op)
}

func TestParseShadowedPrimitiveNameBecomesApply(t *testing.T) {
	root, err := Parse(`pair = { a -> a }; (pair 1)`)
	require.NoError(t, err)
	let, ok := root.Body.(*infer.Let)
	require.True(t, ok)
	app, ok := let.Body.(*infer.Apply)
	require.True(t, ok, "shadowed 'pair' must parse as a generic Apply, not a Primitive")
	_, isIdent := app.Fn.(*infer.Ident)
	assert.True(t, isIdent)
}

func TestParseWrongArityPrimitiveFallsBackToApply(t *testing.T) {
	root, err := Parse(`(pair 1)`)
	require.NoError(t, err)
	_, ok := root.Body.(*infer.Apply)
	assert.True(t, ok, "pair called with one arg instead of two must not parse as infer.Primitive")
}

func TestParseFieldAccess(t *testing.T) {
	root, err := Parse(`x = @{a=1}; x.a`)
	require.NoError(t, err)
	let, ok := root.Body.(*infer.Let)
	require.True(t, ok)
	_, isField := let.Body.(*infer.Field)
	assert.True(t, isField)
}

func TestParseStructLiteral(t *testing.T) {
	root, err := Parse(`@{a=1,b=2}`)
	require.NoError(t, err)
	sl, ok := root.Body.(*infer.StructLit)
	require.True(t, ok)
	assert.Len(t, sl.Names, 2)
}

func TestParseIfSynthesizesNotNilGuardForBareIdent(t *testing.T) {
	root, err := Parse(`{ x -> (if x x 0) }`)
	require.NoError(t, err)
	lam, ok := root.Body.(*infer.Lambda)
	require.True(t, ok)
	prim, ok := lam.Body.(*infer.Primitive)
	require.True(t, ok)
	assert.Equal(t, infer.OpIf, prim.Op)
	thenLet, ok := prim.Args[1].(*infer.Let)
	require.True(t, ok, "bare-ident predicate must synthesize a NotNil-narrowing let around then")
	narrowing, ok := thenLet.Def.(*infer.Primitive)
	require.True(t, ok)
	assert.Equal(t, infer.OpNotNil, narrowing.Op)
}

func TestParseIfWithNonIdentPredicateSkipsNarrowing(t *testing.T) {
	root, err := Parse(`(if 1 2 3)`)
	require.NoError(t, err)
	prim, ok := root.Body.(*infer.Primitive)
	require.True(t, ok)
	assert.Equal(t, infer.OpIf, prim.Op)
	_, isLet := prim.Args[1].(*infer.Let)
	assert.False(t, isLet)
}

func TestParseApplyOfLetBoundFunction(t *testing.T) {
	root, err := Parse(`f = { x -> x }; (f 3)`)
	require.NoError(t, err)
	let, ok := root.Body.(*infer.Let)
	require.True(t, ok)
	app, ok := let.Body.(*infer.Apply)
	require.True(t, ok)
	assert.Len(t, app.Args, 1)
}

func TestParseFieldChainOnStructLiteral(t *testing.T) {
	root, err := Parse(`@{a=@{b=1}}.a.b`)
	require.NoError(t, err)
	outer, ok := root.Body.(*infer.Field)
	require.True(t, ok)
	_, ok = outer.Rec.(*infer.Field)
	assert.True(t, ok, "repeated '.' must chain into nested Field nodes")
}

func TestParseNumericFieldNameAfterDot(t *testing.T) {
	root, err := Parse(`(pair 2 3).0`)
	require.NoError(t, err)
	f, ok := root.Body.(*infer.Field)
	require.True(t, ok)
	assert.Equal(t, "0", f.Name.Str())
}

func TestParseTrailingInputIsError(t *testing.T) {
	_, err := Parse("1 2")
	assert.Error(t, err)
}

func TestParseUnterminatedStringIsError(t *testing.T) {
	_, err := Parse(`"abc`)
	assert.Error(t, err)
}

func TestParseUnexpectedCharacterIsError(t *testing.T) {
	_, err := Parse("#")
	assert.Error(t, err)
}

func TestParseEmptyInputIsError(t *testing.T) {
	_, err := Parse("")
	assert.Error(t, err)
}

func TestParseMismatchedParenIsError(t *testing.T) {
	_, err := Parse("(pair 1 2")
	assert.Error(t, err)
}
