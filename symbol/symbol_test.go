package symbol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInternIdempotent(t *testing.T) {
	a := Intern("alpha-test-symbol")
	b := Intern("alpha-test-symbol")
	assert.Equal(t, a, b)
}

func TestInternDistinctNames(t *testing.T) {
	a := Intern("beta-test-symbol")
	b := Intern("gamma-test-symbol")
	assert.NotEqual(t, a, b)
}

func TestStrRoundTrips(t *testing.T) {
	id := Intern("delta-test-symbol")
	assert.Equal(t, "delta-test-symbol", id.Str())
}

func TestReservedLabelsDistinct(t *testing.T) {
	assert.NotEqual(t, Forward, Nilable)
	assert.NotEqual(t, Nilable, Ret)
	assert.NotEqual(t, ArgX, ArgY)
	assert.NotEqual(t, ArgY, ArgZ)
}

func TestArgLabelFirstThreeMatchReserved(t *testing.T) {
	assert.Equal(t, ArgX, ArgLabel(0))
	assert.Equal(t, ArgY, ArgLabel(1))
	assert.Equal(t, ArgZ, ArgLabel(2))
}

func TestArgLabelExtendsBeyondThree(t *testing.T) {
	l3 := ArgLabel(3)
	l4 := ArgLabel(4)
	assert.NotEqual(t, l3, l4)
	assert.NotEqual(t, l3, ArgX)
}

func TestArgLabelStable(t *testing.T) {
	assert.Equal(t, ArgLabel(5), ArgLabel(5))
}

func TestHashStableForSameID(t *testing.T) {
	id := Intern("epsilon-test-symbol")
	assert.Equal(t, id.Hash(), id.Hash())
}
