package infer

import (
	"fmt"

	"github.com/grailbio/hmgcp/bits"
	"github.com/grailbio/hmgcp/lattice"
	"github.com/grailbio/hmgcp/symbol"
)

// cyclePair keys the session-scoped cycle map used by both unify and
// cycleEquals (spec §4.1.2 rule 6, §4.1.8).
type cyclePair struct{ a, b int }

// session holds the per-Engine scratch state that spec §5 describes as
// "session-scoped maps... cleared at the beginning of each outermost
// call"; here they are fields of the owning Engine rather than process
// globals, per spec §9's "Global mutable state" note.
type session struct {
	unifyCycles map[cyclePair]bool
	eqCycles    map[cyclePair]bool
}

func newSession() *session {
	return &session{
		unifyCycles: map[cyclePair]bool{},
		eqCycles:    map[cyclePair]bool{},
	}
}

// Unify performs the top-level structural merge of a and b, returning
// whether any progress was made. This is the public entry point; nested
// recursive calls from unifyFlds go through unifyInner so the cycle map
// is shared across one outermost call.
func (s *session) Unify(a, b *T2) bool {
	s.unifyCycles = map[cyclePair]bool{}
	return s.unifyInner(a, b)
}

func (s *session) unifyInner(a, b *T2) bool {
	a, b = find(a), find(b)
	if a == b {
		return false
	}

	aLeaf, bLeaf := a.IsLeaf(), b.IsLeaf()
	switch {
	case aLeaf && bLeaf:
		winner, loser := smallerID(a, b)
		forwardTo(loser, winner)
		return true
	case aLeaf && !bLeaf:
		forwardTo(a, b)
		return true
	case !aLeaf && bLeaf:
		forwardTo(b, a)
		return true
	}

	if a.hasFlow && b.hasFlow {
		return s.unifyBases(a, b)
	}

	if a.hasFlow && lattice.MustNil(a.flow) && !b.hasFlow {
		return s.unifyNil(a, b)
	}
	if b.hasFlow && lattice.MustNil(b.flow) && !a.hasFlow {
		return s.unifyNil(b, a)
	}

	pair := cyclePair{a.id, b.id}
	if s.unifyCycles[pair] {
		return false
	}
	s.unifyCycles[pair] = true

	progress := s.unifyFlds(a, b)

	if a.isFun && b.isFun {
		if !a.fidxs.Equal(b.fidxs) {
			progress = true
			a.fidxs = a.fidxs.Union(b.fidxs)
		}
	} else if a.isFun != b.isFun {
		progress = true
		a.err = addErr(a.err, "Cannot unify function and non-function")
	}

	if a.isAlias && b.isAlias {
		if !a.aliases.Equal(b.aliases) {
			progress = true
			a.aliases = a.aliases.Union(b.aliases)
		}
		if a.open != b.open {
			progress = true
			a.open = a.open && b.open
		}
	} else if a.isAlias != b.isAlias {
		progress = true
		a.err = addErr(a.err, "Cannot unify struct and non-struct")
	}

	winner, loser := smallerID(a, b)
	if winner != a {
		// Migrate accumulated channels onto the actual surviving id.
		winner.fidxs, winner.isFun = a.fidxs, a.isFun || winner.isFun
		winner.aliases, winner.isAlias = a.aliases, a.isAlias || winner.isAlias
		winner.open = a.open || winner.open
		winner.err = addErr(winner.err, a.err)
	}
	forwardTo(loser, winner)
	return progress
}

func smallerID(a, b *T2) (winner, loser *T2) {
	if a.id <= b.id {
		return a, b
	}
	return b, a
}

func addErr(base, add string) string {
	if add == "" {
		return base
	}
	if base == "" {
		return add
	}
	return base + "; " + add
}

// unifyFlds recurses structurally over a.args and b.args (spec §4.1.3).
// For each key in a.args missing from b: added to b if b.open, else
// deleted from a. Then the mirror image over b.args not in a. Common
// keys recurse via unifyInner.
func (s *session) unifyFlds(a, b *T2) bool {
	progress := false
	for _, label := range append([]symbol.ID(nil), a.argOrder...) {
		av := a.Arg(label)
		bv := b.Arg(label)
		if bv == nil {
			if b.open {
				b.setArg(label, av)
				progress = true
			} else {
				a.delArg(label)
				progress = true
			}
			continue
		}
		if s.unifyInner(av, bv) {
			progress = true
		}
	}
	for _, label := range append([]symbol.ID(nil), b.argOrder...) {
		if a.Arg(label) != nil {
			continue
		}
		if a.open {
			a.setArg(label, b.Arg(label))
			progress = true
		} else {
			b.delArg(label)
			progress = true
		}
	}
	return progress
}

// unifyBases merges two T2s that both carry a concrete flow type (spec
// §4.1.5). The surviving (flow, eflow) pair is the top-two by priority
// Int > Flt > MemPtr > none; bases of the same kind meet, otherwise the
// higher-priority one (a, on a tie) keeps flow and the other is
// displaced into eflow.
func (s *session) unifyBases(a, b *T2) bool {
	winner, loser := smallerID(a, b)
	pa, pb := basePriority(a.flow), basePriority(b.flow)
	var newFlow, newEflow lattice.Type
	var hasEflow bool
	switch {
	case a.flow.Kind() == b.flow.Kind():
		newFlow = lattice.Meet(a.flow, b.flow)
		hasEflow = winner.hasEflow
		newEflow = winner.eflow
	case pa >= pb:
		newFlow = a.flow
		newEflow = b.flow
		hasEflow = true
	default:
		newFlow = b.flow
		newEflow = a.flow
		hasEflow = true
	}
	progress := !winner.hasFlow || !winner.flow.Equal(newFlow) || hasEflow != winner.hasEflow
	winner.flow, winner.hasFlow = newFlow, true
	if hasEflow {
		if winner.hasEflow && !winner.eflow.Equal(newEflow) {
			progress = true
		}
		winner.eflow, winner.hasEflow = newEflow, true
	}
	forwardTo(loser, winner)
	return progress
}

func basePriority(t lattice.Type) int {
	switch t.Kind() {
	case lattice.KInt:
		return 3
	case lattice.KFlt:
		return 2
	case lattice.KMemPtr:
		return 1
	default:
		return 0
	}
}

// unifyNil implements spec §4.1.2 rule 5 for a nil side against a T2
// that is not itself a base (two bases, one of them Nil, go through
// unifyBases instead). other is modified in place to admit nil: Nil
// becomes its flow (or is met into the flow it already has), a function
// gains the NilFun bit and an alias the NoAlias bit. nilSide is then
// forwarded to other. No copy is made.
func (s *session) unifyNil(nilSide, other *T2) bool {
	progress := false
	if other.hasFlow {
		merged := lattice.Meet(other.flow, lattice.Nil)
		if !other.flow.Equal(merged) {
			progress = true
		}
		other.flow = merged
	} else {
		other.flow = lattice.Nil
		other.hasFlow = true
		progress = true
	}
	if other.isFun && !other.fidxs.Test(int(bits.NilFun)) {
		other.fidxs = other.fidxs.Set(int(bits.NilFun))
		progress = true
	}
	if other.isAlias && !other.aliases.Test(int(bits.NoAlias)) {
		other.aliases = other.aliases.Set(int(bits.NoAlias))
		progress = true
	}
	forwardTo(nilSide, other)
	return progress || nilSide != other
}

// FreshUnify copies lhs on demand and unifies the copy with rhs (spec
// §4.1.6). A leaf of lhs reachable from nongen is not copied -- it is
// unified as-is (the occurs-check). Cycles in lhs are preserved via a
// copy map local to this call.
func (s *session) FreshUnify(lhs, rhs *T2, nongen *VStack) bool {
	copied := map[*T2]*T2{}
	fresh := freshCopy(lhs, nongen, copied)
	return s.Unify(fresh, rhs)
}

// freshCopy alpha-renames lhs, skipping (not copying) any leaf that
// occurs in nongen. Already-copied nodes are reused so cycles map to
// cycles, not unrollings.
func freshCopy(t *T2, nongen *VStack, copied map[*T2]*T2) *T2 {
	t = find(t)
	if c, ok := copied[t]; ok {
		return c
	}
	if t.IsLeaf() {
		if nongen.Occurs(t) {
			return t
		}
		c := NewLeaf()
		copied[t] = c
		return c
	}
	c := NewLeaf()
	copied[t] = c
	if t.hasFlow {
		c.flow, c.hasFlow = t.flow, true
	}
	if t.hasEflow {
		c.eflow, c.hasEflow = t.eflow, true
	}
	if t.isFun {
		c.fidxs, c.isFun = t.fidxs, true
	}
	if t.isAlias {
		c.aliases, c.isAlias, c.open = t.aliases, true, t.open
	}
	c.err = t.err
	for _, label := range t.argOrder {
		c.setArg(label, freshCopy(t.Arg(label), nongen, copied))
	}
	return c
}

// CycleEquals tests structural equality of a and b using a session-
// scoped pair map to defer decisions at cycle boundaries (spec §4.1.8):
// if a pair already being compared is revisited, it is assumed equal
// unless a disagreement is found elsewhere in the traversal.
func (s *session) CycleEquals(a, b *T2) bool {
	s.eqCycles = map[cyclePair]bool{}
	return s.cycleEqualsInner(a, b)
}

func (s *session) cycleEqualsInner(a, b *T2) bool {
	a, b = find(a), find(b)
	if a == b {
		return true
	}
	pair := cyclePair{a.id, b.id}
	if s.eqCycles[pair] {
		return true
	}
	s.eqCycles[pair] = true

	if a.hasFlow != b.hasFlow || a.isFun != b.isFun || a.isAlias != b.isAlias {
		return false
	}
	if a.hasFlow && !a.flow.Equal(b.flow) {
		return false
	}
	if a.isFun && !a.fidxs.Equal(b.fidxs) {
		return false
	}
	if a.isAlias && (!a.aliases.Equal(b.aliases) || a.open != b.open) {
		return false
	}
	if len(a.argOrder) != len(b.argOrder) {
		return false
	}
	for _, label := range a.argOrder {
		bv := b.Arg(label)
		if bv == nil {
			return false
		}
		if !s.cycleEqualsInner(a.Arg(label), bv) {
			return false
		}
	}
	return true
}

// String renders t for debugging, via DebugFind so printing never
// triggers nilable dissolution as a side effect.
func (t *T2) String() string {
	rep := DebugFind(t)
	if rep.hasFlow {
		s := rep.flow.String()
		if rep.hasEflow {
			s += fmt.Sprintf("|err:%s", rep.eflow.String())
		}
		return s
	}
	if rep.isFun {
		return fmt.Sprintf("fun%v", rep.fidxs.Slice())
	}
	if rep.isAlias {
		return fmt.Sprintf("struct%v", rep.aliases.Slice())
	}
	if rep.IsNilable() {
		return rep.Arg(symbol.Nilable).String() + "?"
	}
	if rep.IsLeaf() {
		return fmt.Sprintf("V%d", rep.id)
	}
	return fmt.Sprintf("T2#%d", rep.id)
}
