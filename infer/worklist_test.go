package infer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorklistFIFOOrder(t *testing.T) {
	w := NewWorklist(false)
	a := &Con{}
	b := &Con{}
	w.Push(a)
	w.Push(b)
	assert.Equal(t, Syntax(a), w.Pop())
	assert.Equal(t, Syntax(b), w.Pop())
	assert.True(t, w.Empty())
}

func TestWorklistDedups(t *testing.T) {
	w := NewWorklist(false)
	a := &Con{}
	w.Push(a)
	w.Push(a)
	w.Pop()
	assert.True(t, w.Empty())
}

func TestWorklistPushAllPreservesOrderWhenNotRandomized(t *testing.T) {
	w := NewWorklist(false)
	a := &Con{}
	b := &Con{}
	w.PushAll([]Syntax{a, b})
	assert.Equal(t, Syntax(a), w.Pop())
	assert.Equal(t, Syntax(b), w.Pop())
}

func TestWorklistPushAllRandomizedContainsAllItems(t *testing.T) {
	w := NewWorklist(true)
	a := &Con{}
	b := &Con{}
	c := &Con{}
	w.PushAll([]Syntax{a, b, c})
	seen := map[Syntax]bool{}
	for !w.Empty() {
		seen[w.Pop()] = true
	}
	assert.Len(t, seen, 3)
	assert.True(t, seen[a] && seen[b] && seen[c])
}

func TestWorklistPushNilIsNoop(t *testing.T) {
	w := NewWorklist(false)
	w.Push(nil)
	assert.True(t, w.Empty())
}
