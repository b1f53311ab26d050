package infer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/grailbio/hmgcp/lattice"
	"github.com/grailbio/hmgcp/symbol"
)

// buildLetPolymorphismProgram constructs `f = {x -> x}; (pair (f 3) (f "abc"))`
// directly from infer constructors, mirroring session_test.go's scenario 4
// without going through the parser (package infer cannot import package
// parser, which itself imports infer).
func buildLetPolymorphismProgram() *Root {
	x := symbol.Intern("x")
	f := symbol.Intern("f")
	lam := NewLambda([]symbol.ID{x}, NewIdent(x))
	pair := NewPrimitive(OpPair,
		NewApply(NewIdent(f), NewCon(lattice.NewInt(3))),
		NewApply(NewIdent(f), NewCon(lattice.NewStr("abc"))),
	)
	return NewRoot(NewLet(f, lam, pair))
}

// runFresh runs buildLetPolymorphismProgram to a fixed point with the
// given worklist ordering and returns the root's final flow type along
// with the engine that produced it (the root's flow is a KMemPtr --
// pair's result is reached through the memory lattice -- so comparing
// it meaningfully across two independent engines needs each one's own
// typeMem, not just the raw pointer).
func runFresh(randomize bool) (lattice.Type, *Engine) {
	eng := NewEngine(Opts{RandomizeWorklist: randomize})
	root := buildLetPolymorphismProgram()
	eng.Run(root)
	return root.Body.Flow(), eng
}

// Spec §4.5 requires the fixed point to be independent of worklist
// ordering; RandomizeWorklist exists precisely so tests can assert this.
// Alias indexes are allocated during prepTree, a deterministic tree walk
// that never runs through the (possibly randomized) worklist, so the
// two runs allocate identical alias indexes for the pair literal and
// ordered.Equal(randomized) -- a bare alias-set comparison -- is a valid
// confluence check on its own; derefStruct additionally confirms the
// struct each alias resolves to converged too, not just its address.
func TestConfluenceLetPolymorphismOrderIndependent(t *testing.T) {
	ordered, oEng := runFresh(false)
	randomized, rEng := runFresh(true)
	assert.True(t, ordered.Equal(randomized), "ordered=%v randomized=%v", ordered, randomized)
	assert.True(t, derefStruct(oEng, ordered).Equal(derefStruct(rEng, randomized)))
}

func TestConfluenceRepeatedRandomizedRunsAgree(t *testing.T) {
	first, firstEng := runFresh(true)
	for i := 0; i < 5; i++ {
		next, nextEng := runFresh(true)
		assert.True(t, first.Equal(next))
		assert.True(t, derefStruct(firstEng, first).Equal(derefStruct(nextEng, next)))
	}
}

// buildHigherOrderParamProgram constructs
// `map = {f xs -> (pair (f xs.0) (f xs.1))}; (map {q -> (pair q 1)} (pair 2 3))`
// directly, mirroring session_test.go's scenario 7.
func buildHigherOrderParamProgram() *Root {
	f := symbol.Intern("f")
	xs := symbol.Intern("xs")
	q := symbol.Intern("q")
	mapSym := symbol.Intern("map")

	mapBody := NewPrimitive(OpPair,
		NewApply(NewIdent(f), NewField(symbol.Intern("0"), NewIdent(xs))),
		NewApply(NewIdent(f), NewField(symbol.Intern("1"), NewIdent(xs))),
	)
	mapLam := NewLambda([]symbol.ID{f, xs}, mapBody)

	qLam := NewLambda([]symbol.ID{q}, NewPrimitive(OpPair, NewIdent(q), NewCon(lattice.NewInt(1))))
	pairArg := NewPrimitive(OpPair, NewCon(lattice.NewInt(2)), NewCon(lattice.NewInt(3)))

	call := NewApply(NewIdent(mapSym), qLam, pairArg)
	return NewRoot(NewLet(mapSym, mapLam, call))
}

func runHigherOrderParam(randomize bool) lattice.Type {
	eng := NewEngine(Opts{RandomizeWorklist: randomize})
	root := buildHigherOrderParamProgram()
	eng.Run(root)
	return root.Body.Flow()
}

func TestConfluenceHigherOrderParamOrderIndependent(t *testing.T) {
	ordered := runHigherOrderParam(false)
	randomized := runHigherOrderParam(true)
	assert.True(t, ordered.Equal(randomized), "ordered=%v randomized=%v", ordered, randomized)
}
