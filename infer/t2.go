// Package infer implements the combined Hindley-Milner / Global Constant
// Propagation engine: the type-variable graph (T2), the Syntax AST nodes
// that drive it, the worklist fixed-point driver, the Apply-lift, and
// the Root boundary. It is grounded throughout on grailbio/gql's
// ast.go/ai.go/eval.go trio -- a tagged-sum AST with eval/hash/pos
// methods, an abstract-interpretation type overlay, and a binding-stack
// environment -- generalized from GQL's single-pass value evaluator into
// a two-lattice, multi-pass fixed-point engine.
package infer

import (
	"sort"

	"github.com/grailbio/hmgcp/bits"
	"github.com/grailbio/hmgcp/hash"
	"github.com/grailbio/hmgcp/lattice"
	"github.com/grailbio/hmgcp/symbol"
)

// T2 is a node of the HM type-variable graph. See spec §3 for the field
// contract. T2s are created during prepTree, by fresh copies, and by
// unify when a leaf meets a non-leaf; once forwarded they are never
// re-promoted.
type T2 struct {
	id int

	// args is the ordered-insertion label->T2 map. nil means no
	// structural children. Reserved labels live in package symbol
	// (Forward, Nilable, Ret, ArgX/Y/Z).
	args     map[symbol.ID]*T2
	argOrder []symbol.ID // insertion order, mirrored alongside args

	flow  lattice.Type // present iff this T2 is a base
	eflow lattice.Type // secondary base, present iff flow collided with an incompatible base
	hasFlow  bool
	hasEflow bool

	fidxs   bits.Set // present iff this T2 is a function
	isFun   bool
	aliases bits.Set // present iff this T2 is a struct
	isAlias bool

	open bool // meaningful only when isAlias

	err string

	deps []Syntax // AST nodes to revisit when this T2 changes
}

var nextT2ID = 0

// NewLeaf creates a fresh, structurally empty T2.
func NewLeaf() *T2 {
	nextT2ID++
	return &T2{id: nextT2ID}
}

// NewNilable creates a T2 wrapping inner under the reserved "?" label.
// A nilable is mutually exclusive with every other structural channel.
func NewNilable(inner *T2) *T2 {
	t := NewLeaf()
	t.setArg(symbol.Nilable, inner)
	return t
}

// NewBase creates a leaf carrying a concrete flow type.
func NewBase(f lattice.Type) *T2 {
	t := NewLeaf()
	t.flow = f
	t.hasFlow = true
	return t
}

func (t *T2) setArg(label symbol.ID, v *T2) {
	if t.args == nil {
		t.args = map[symbol.ID]*T2{}
	}
	if _, ok := t.args[label]; !ok {
		t.argOrder = append(t.argOrder, label)
	}
	t.args[label] = v
}

func (t *T2) delArg(label symbol.ID) {
	if t.args == nil {
		return
	}
	if _, ok := t.args[label]; !ok {
		return
	}
	delete(t.args, label)
	for i, l := range t.argOrder {
		if l == label {
			t.argOrder = append(t.argOrder[:i], t.argOrder[i+1:]...)
			break
		}
	}
}

// Arg returns the child at label, or nil.
func (t *T2) Arg(label symbol.ID) *T2 {
	if t.args == nil {
		return nil
	}
	return t.args[label]
}

// Args returns the child labels in insertion order.
func (t *T2) Args() []symbol.ID {
	return t.argOrder
}

// IsLeaf reports whether t has no structural channels at all (not
// counting forwarding, which is checked separately).
func (t *T2) IsLeaf() bool {
	return len(t.args) == 0 && !t.hasFlow && !t.isFun && !t.isAlias
}

// IsForwarded reports whether t is a union-find tombstone.
func (t *T2) IsForwarded() bool {
	return len(t.args) == 1 && t.argOrder[0] == symbol.Forward
}

// IsNilable reports whether t is a bare "?" wrapper: args holds only
// the Nilable label and every other channel is empty.
func (t *T2) IsNilable() bool {
	return len(t.args) == 1 && t.argOrder[0] == symbol.Nilable && !t.hasFlow && !t.isFun && !t.isAlias
}

// IsErr2 reports whether two incompatible channels are co-resident on t.
func (t *T2) IsErr2() bool {
	return t.hasEflow || t.err != ""
}

// AddDep records n in t.deps if not already present.
func (t *T2) AddDep(n Syntax) {
	for _, d := range t.deps {
		if d == n {
			return
		}
	}
	t.deps = append(t.deps, n)
}

// AddDepsWork enqueues every dependent of t onto w, and -- when a dep is
// a Lambda (registered because one of its parameter T2s changed) --
// every Apply node that calls that lambda too, per spec §4.1.7.
func (t *T2) AddDepsWork(w *Worklist) {
	for _, d := range t.deps {
		w.Push(d)
		if lam, ok := d.(*Lambda); ok {
			for _, app := range lam.callers {
				w.Push(app)
			}
		}
	}
}

// find returns the representative of t, compressing the ">>" forwarding
// chain in place (spec §4.1.1), and canonicalizes nilable-of-non-leaf:
// if t is a "?" node whose child is not itself a leaf, the wrapper is
// dissolved by folding nil into the child's base channels and lifting
// the child's other fields up, then t is forwarded to the (possibly
// further-resolved) child.
func find(t *T2) *T2 {
	// Compress the forwarding chain first.
	chain := []*T2{}
	cur := t
	for cur.IsForwarded() {
		chain = append(chain, cur)
		cur = cur.Arg(symbol.Forward)
	}
	rep := cur
	for _, n := range chain {
		if n != rep {
			n.args = map[symbol.ID]*T2{symbol.Forward: rep}
			n.argOrder = []symbol.ID{symbol.Forward}
		}
	}

	if !rep.IsNilable() {
		return rep
	}
	inner := find(rep.Arg(symbol.Nilable))
	if inner.IsLeaf() {
		return rep
	}
	// Dissolve: fold nil into inner's channels, merge deps, forward rep to inner.
	if inner.hasFlow {
		inner.flow = lattice.Meet(inner.flow, lattice.Nil)
	} else {
		inner.flow = lattice.Nil
		inner.hasFlow = true
	}
	if inner.isFun {
		inner.fidxs = inner.fidxs.Set(int(bits.NilFun))
	}
	if inner.isAlias {
		inner.aliases = inner.aliases.Set(int(bits.NoAlias))
	}
	for _, d := range rep.deps {
		inner.AddDep(d)
	}
	rep.args = map[symbol.ID]*T2{symbol.Forward: inner}
	rep.argOrder = []symbol.ID{symbol.Forward}
	rep.deps = nil
	return find(inner)
}

// Find is the public, canonicalizing representative lookup used by all
// mutating operations.
func Find(t *T2) *T2 { return find(t) }

// DebugFind performs only chain compression, without nilable collapse;
// it is the read-only variant used by asserts and printing so they don't
// themselves trigger the nil-canonicalization side effect.
func DebugFind(t *T2) *T2 {
	cur := t
	for cur.IsForwarded() {
		cur = cur.Arg(symbol.Forward)
	}
	return cur
}

// forwardTo rewrites loser to point at winner via the reserved ">>"
// label, clearing every other channel, and migrates loser's deps to
// winner.
func forwardTo(loser, winner *T2) {
	if loser == winner {
		return
	}
	for _, d := range loser.deps {
		winner.AddDep(d)
	}
	loser.args = map[symbol.ID]*T2{symbol.Forward: winner}
	loser.argOrder = []symbol.ID{symbol.Forward}
	loser.flow, loser.hasFlow = lattice.Type{}, false
	loser.eflow, loser.hasEflow = lattice.Type{}, false
	loser.fidxs, loser.isFun = bits.Empty, false
	loser.aliases, loser.isAlias = bits.Empty, false
	loser.open = false
	loser.err = ""
	loser.deps = nil
}

// hashShape computes a structural hash of t's current shape, as a cheap
// change digest; the worklist does not call it. It does not recurse into
// children's children -- one level of structure is enough to detect
// "nothing changed since last visit" cheaply, matching the teacher's use
// of gql.Hash as a change-detection digest rather than a full content
// hash.
func (t *T2) hashShape() hash.Hash {
	rep := DebugFind(t)
	h := hash.Int(int64(rep.id))
	if rep.hasFlow {
		h = h.Merge(hash.String(rep.flow.String()))
	}
	if rep.isFun {
		h = h.Merge(rep.fidxs.Hash())
	}
	if rep.isAlias {
		h = h.Merge(rep.aliases.Hash())
	}
	labels := append([]symbol.ID(nil), rep.argOrder...)
	sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })
	for _, l := range labels {
		h = h.Merge(hash.Int(int64(l)))
	}
	return h
}
