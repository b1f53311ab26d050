package infer

import (
	"fmt"

	"github.com/grailbio/hmgcp/bits"
	"github.com/grailbio/hmgcp/lattice"
	"github.com/grailbio/hmgcp/symbol"
)

// Pos is a source-text offset, stamped onto a node by the parser at
// construction time. Debugf/Logf/Panicf use it to prefix diagnostics
// with a source location, the same role gql.ASTNode's embedded
// scanner.Position field plays for gql.Debugf/gql.Logf/gql.Panicf
// (gql/log.go). The zero value means "unknown" (e.g. a node built
// directly by a test rather than by the parser).
type Pos int

func (p Pos) String() string { return fmt.Sprintf("offset %d", int(p)) }

// Syntax is the post-parse AST node interface (spec §3/§4.2). It mirrors
// the shape of gql.ASTNode's eval/hash/pos/String quartet: a tagged sum
// dispatched by dynamic type switch rather than an explicit tag field,
// per spec §9's "Dynamic dispatch" note.
type Syntax interface {
	// T2 returns the node's current HM type-variable handle. Callers
	// should pass it through Find before reading its shape.
	T2() *T2
	// Flow returns the node's current flow type, as last installed by
	// the driver. It is never mutated directly by hm/val.
	Flow() lattice.Type
	setFlow(lattice.Type)

	// hm performs unification implied by this node and reports whether
	// it made progress. Must be monotone: re-running after no other
	// change returns false.
	hm(eng *Engine) bool
	// val computes the node's new flow type from its children's current
	// flow and this node's HM type. Never mutates Flow(); the driver
	// installs the result.
	val(eng *Engine) lattice.Type
	// prepTree allocates T2s and performs prep-time structural
	// unification, returning the subtree's node count.
	prepTree(parent Syntax, nongen *VStack, eng *Engine) int

	// children returns this node's direct Syntax children, for the
	// generic parts of the driver (pass 3 re-enqueue, printing).
	children() []Syntax
	// parent returns the node's parent, set during prepTree.
	parent() Syntax
	setParent(Syntax)

	// Pos returns the node's source offset, as stamped by the parser.
	Pos() Pos
	SetPos(Pos)
}

// base holds the fields common to every node: its T2 handle, its
// current flow type, its parent link, and its source position.
type base struct {
	t2   *T2
	flow lattice.Type
	par  Syntax
	pos  Pos
}

func (b *base) T2() *T2                { return b.t2 }
func (b *base) Flow() lattice.Type     { return b.flow }
func (b *base) setFlow(f lattice.Type) { b.flow = f }
func (b *base) parent() Syntax         { return b.par }
func (b *base) setParent(p Syntax)     { b.par = p }
func (b *base) Pos() Pos               { return b.pos }
func (b *base) SetPos(p Pos)           { b.pos = p }

// enqueueParent pushes n's parent onto the worklist, the standard
// "something changed, tell whoever reads me" propagation used by most
// node kinds' hm/val contracts.
func enqueueParent(n Syntax, eng *Engine) {
	if p := n.parent(); p != nil {
		eng.work.Push(p)
	}
}

// ---- Con ------------------------------------------------------------

// Con is a literal constant (spec table: "0 seeds a nilable leaf").
type Con struct {
	base
	Value lattice.Type
}

func NewCon(v lattice.Type) *Con { return &Con{Value: v} }

func (c *Con) children() []Syntax { return nil }

func (c *Con) prepTree(parent Syntax, nongen *VStack, eng *Engine) int {
	c.setParent(parent)
	if c.Value.Kind() == lattice.KInt && c.Value.IsConst() && c.Value.Int() == 0 {
		c.t2 = NewNilable(NewBase(lattice.NewInt(0)))
	} else {
		c.t2 = NewBase(c.Value)
	}
	return 1
}

func (c *Con) hm(eng *Engine) bool { return false }

func (c *Con) val(eng *Engine) lattice.Type { return c.Value }

// ---- Ident ------------------------------------------------------------

// Ident references a bound name -- a lambda parameter or a let binding.
// binder is resolved lexically during prepTree. fresh is true whenever
// the binder is a Let, meaning each use must be freshly instantiated
// (spec §4.1.6, let-polymorphism).
type Ident struct {
	base
	Name   symbol.ID
	binder *T2
	flowOf func() lattice.Type
	nongen *VStack
	fresh  bool
}

func NewIdent(name symbol.ID) *Ident { return &Ident{Name: name} }

func (n *Ident) children() []Syntax { return nil }

func (n *Ident) prepTree(parent Syntax, nongen *VStack, eng *Engine) int {
	n.setParent(parent)
	n.nongen = nongen
	n.t2 = NewLeaf()
	b, flowOf, isLet := eng.lookup(n.Name, n)
	n.binder = b
	n.flowOf = flowOf
	n.fresh = isLet
	return 1
}

func (n *Ident) hm(eng *Engine) bool {
	if n.binder == nil {
		return false
	}
	if n.fresh {
		return eng.sess.FreshUnify(n.binder, n.t2, n.nongen)
	}
	return eng.sess.Unify(n.binder, n.t2)
}

func (n *Ident) val(eng *Engine) lattice.Type {
	if n.flowOf == nil {
		return lattice.Top
	}
	return n.flowOf()
}

// ---- Lambda ------------------------------------------------------------

// Lambda is a function literal. targs holds one T2 per declared
// parameter (looked up by Ident.prepTree via eng.lookup); types holds
// the corresponding current flow types; callers accumulates every Apply
// discovered to call this lambda, which the driver re-enqueues whenever
// the body's flow changes.
type Lambda struct {
	base
	Params  []symbol.ID
	Body    Syntax
	fidx    bits.FunIndex
	targs   []*T2
	types   []lattice.Type
	callers []*Apply
}

func NewLambda(params []symbol.ID, body Syntax) *Lambda {
	return &Lambda{Params: params, Body: body}
}

func (n *Lambda) children() []Syntax { return []Syntax{n.Body} }

func (n *Lambda) prepTree(parent Syntax, nongen *VStack, eng *Engine) int {
	n.setParent(parent)
	n.fidx, _ = eng.funs.New()
	n.targs = make([]*T2, len(n.Params))
	n.types = make([]lattice.Type, len(n.Params))
	for i := range n.Params {
		n.targs[i] = NewLeaf()
		n.types[i] = lattice.Top
	}
	inner := nongen.Push(n.targs...)
	eng.pushLambda(n)
	count := 1 + n.Body.prepTree(n, inner, eng)
	eng.popLambda()

	n.t2 = NewLeaf()
	n.t2.isFun = true
	n.t2.fidxs = bits.Empty.Set(int(n.fidx))
	for i, name := range n.Params {
		n.t2.setArg(symbol.ArgLabel(i), n.targs[i])
		_ = name
	}
	n.t2.setArg(symbol.Ret, n.Body.T2())
	return count
}

func (n *Lambda) hm(eng *Engine) bool {
	progress := false
	for i := range n.targs {
		label := symbol.ArgLabel(i)
		if eng.sess.Unify(n.t2.Arg(label), n.targs[i]) {
			progress = true
		}
	}
	if eng.sess.Unify(n.t2.Arg(symbol.Ret), n.Body.T2()) {
		progress = true
	}
	return progress
}

func (n *Lambda) val(eng *Engine) lattice.Type {
	for i := range n.types {
		n.types[i] = argFlow(n.targs[i])
	}
	return lattice.NewFunPtr(bits.Empty.Set(int(n.fidx)))
}

func argFlow(t *T2) lattice.Type {
	rep := DebugFind(t)
	if rep.hasFlow {
		return rep.flow
	}
	return lattice.Top
}

// argMeet narrows parameter i's flow by meeting in f, enqueueing the
// body if it changed -- used by Apply.val's callee-argument feed
// (spec §4.2).
//
// When f is itself a FunPtr, its fidxs are also unioned onto the
// parameter leaf's HM side (isFun/fidxs), not just its flow. A
// higher-order parameter's own T2 only becomes isFun in the first place
// through Apply.hm's "not yet a function" placeholder arrow (tagged
// bits.AnyFun, built from whatever the parameter's own call sites
// looked like before any concrete callee was known); once GCP discovers
// a real callee flowing into the parameter, Apply.hm needs that callee's
// real fidx available on the same leaf to wire the placeholder arrow
// into the callee's actual signature (see Apply.hm's anyFun branch) --
// without this, a parameter passed a concrete lambda and then invoked
// from inside the body could never connect its call sites' arguments to
// that lambda's own targs, and the lift at those call sites would have
// nothing to narrow against.
func (n *Lambda) argMeet(i int, f lattice.Type, eng *Engine) {
	old := argFlow(n.targs[i])
	merged := lattice.Meet(old, f)
	if !merged.Equal(old) {
		n.targs[i].flow = merged
		n.targs[i].hasFlow = true
		if merged.Kind() == lattice.KFunPtr {
			n.targs[i].isFun = true
			n.targs[i].fidxs = n.targs[i].fidxs.Union(merged.FunIndexes())
		}
		n.targs[i].AddDepsWork(eng.work)
		eng.work.Push(n.Body)
		eng.work.Push(n)
	}
}

// ---- Let ------------------------------------------------------------

// Let is `x=def; body`. Name is bound to Def's T2 for every Ident lookup
// inside Body, and every such Ident use is a let-polymorphic fresh
// instantiation (spec §4.1.6). Name is not in scope inside Def, and Def's
// subtree is prepared under nongen extended by one fresh leaf rather than
// by Def's own T2. The Let's own T2 is Body's.
type Let struct {
	base
	Name symbol.ID
	Def  Syntax
	Body Syntax
}

func NewLet(name symbol.ID, def, body Syntax) *Let { return &Let{Name: name, Def: def, Body: body} }

func (n *Let) children() []Syntax { return []Syntax{n.Def, n.Body} }

func (n *Let) prepTree(parent Syntax, nongen *VStack, eng *Engine) int {
	n.setParent(parent)
	defNongen := nongen.Push(NewLeaf())
	count := 1
	count += n.Def.prepTree(n, defNongen, eng)
	eng.pushLet(n.Name, n)
	count += n.Body.prepTree(n, nongen, eng)
	eng.popLet()
	n.t2 = n.Body.T2()
	return count
}

func (n *Let) hm(eng *Engine) bool { return false }

func (n *Let) val(eng *Engine) lattice.Type { return n.Body.Flow() }

// ---- Apply ------------------------------------------------------------

// Apply is `(f x0 x1 ...)`.
type Apply struct {
	base
	Fn   Syntax
	Args []Syntax
}

func NewApply(fn Syntax, args ...Syntax) *Apply { return &Apply{Fn: fn, Args: args} }

func (n *Apply) children() []Syntax { return append([]Syntax{n.Fn}, n.Args...) }

func (n *Apply) prepTree(parent Syntax, nongen *VStack, eng *Engine) int {
	n.setParent(parent)
	count := 1
	count += n.Fn.prepTree(n, nongen, eng)
	for _, a := range n.Args {
		count += a.prepTree(n, nongen, eng)
	}
	n.t2 = NewLeaf()
	return count
}

func (n *Apply) hm(eng *Engine) bool {
	fnRep := Find(n.Fn.T2())
	if !fnRep.isFun {
		arrow := NewLeaf()
		arrow.isFun = true
		arrow.fidxs = bits.Empty.Set(int(bits.AnyFun))
		if id, ok := n.Fn.(*Ident); ok && id.fresh {
			// A let-bound name's real arrow comes from FreshUnify, so its
			// placeholder is not tagged AnyFun.
			arrow.fidxs = bits.Empty
		}
		for i, a := range n.Args {
			arrow.setArg(symbol.ArgLabel(i), a.T2())
		}
		arrow.setArg(symbol.Ret, n.t2)
		return eng.sess.Unify(n.Fn.T2(), arrow)
	}
	progress := false
	// Unify actuals against fnRep's own Arg/Ret slots, not the callee
	// Lambda's targs directly: when Fn is a let-bound name, fnRep is the
	// fresh per-use instantiation FreshUnify built (see Ident.hm), and
	// its slots are independent of every other use of the same let. Going
	// through lam.targs here would force every call site of a polymorphic
	// function to agree on one argument type, defeating let-polymorphism
	// (spec.md §4.1.6). For a directly-applied lambda literal fnRep IS
	// lam.t2, so this has no effect on the monomorphic case.
	for i, a := range n.Args {
		formal := fnRep.Arg(symbol.ArgLabel(i))
		if formal == nil {
			break
		}
		if eng.sess.Unify(formal, a.T2()) {
			progress = true
		}
	}
	if ret := fnRep.Arg(symbol.Ret); ret != nil {
		if eng.sess.Unify(n.t2, ret) {
			progress = true
		}
	}
	// fnRep built from the "not yet a function" branch above still carries
	// bits.AnyFun once a concrete callee's flow is later discovered at
	// this same call site (Lambda.argMeet unions a discovered FunPtr's
	// fidx into the parameter leaf's HM fidxs too -- see its doc comment).
	// That case -- a higher-order parameter, not a let-bound name -- needs
	// fnRep's generic Arg/Ret wired into the newly-known callee's own
	// targs/Body.T2 so every call site of the parameter (there may be more
	// than one within the same lambda body, and they are correctly
	// monomorphic with each other, unlike the let-bound case above) shares
	// the callee's real structure for the lift to read. A fnRep that
	// reached isFun via FreshUnify (let-bound name) never carries AnyFun,
	// so this is skipped there, which is what keeps scenario 4 sound.
	anyFun := fnRep.fidxs.Test(int(bits.AnyFun))
	fnRep.fidxs.Iterate(func(fidx int) {
		lam := eng.lambdaByFidx(bits.FunIndex(fidx))
		if lam == nil {
			return
		}
		registerCaller(lam, n)
		if !anyFun {
			return
		}
		for i := range lam.targs {
			formal := fnRep.Arg(symbol.ArgLabel(i))
			if formal == nil {
				break
			}
			if eng.sess.Unify(formal, lam.targs[i]) {
				progress = true
			}
		}
		if ret := fnRep.Arg(symbol.Ret); ret != nil {
			if eng.sess.Unify(ret, lam.Body.T2()) {
				progress = true
			}
		}
	})
	return progress
}

func registerCaller(lam *Lambda, app *Apply) {
	for _, c := range lam.callers {
		if c == app {
			return
		}
	}
	lam.callers = append(lam.callers, app)
}

func (n *Apply) val(eng *Engine) lattice.Type {
	fnFlow := n.Fn.Flow()
	if fnFlow.Kind() != lattice.KFunPtr {
		return lattice.Top
	}
	ret := lattice.Bottom
	fnFlow.FunIndexes().Iterate(func(fidx int) {
		lam := eng.lambdaByFidx(bits.FunIndex(fidx))
		if lam == nil {
			ret = lattice.Top
			return
		}
		for i, a := range n.Args {
			if i >= len(lam.targs) {
				continue
			}
			lam.argMeet(i, a.Flow(), eng)
		}
		// Join, not Meet: ret accumulates across every possible callee this
		// FunPtr could name, and the result could be any one of their
		// bodies, not all of them simultaneously. Starting from Bottom (the
		// identity element for Join) and narrowing with Meet here would
		// collapse to Bottom the instant even one callee resolves, discarding
		// its body flow entirely instead of reflecting it.
		ret = lattice.Join(ret, lam.Body.Flow())
	})
	return applyLift(n, widenConflicts(eng, ret), eng)
}

// widenConflicts maps a Bottom found anywhere in t -- at the top level or
// nested inside a struct field -- back to Top, recursively. A Bottom
// reaching this point is GCP's cross-call-site merge (argMeet) reporting
// a conflict between two call sites that share one lambda parameter, not
// a proven-impossible value; applyLift's whole job is to use this call
// site's own HM-tracked arguments to recover what that shared merge lost,
// and Meet can only narrow, so a Bottom left in place would stay Bottom
// through the lift (Meet with Bottom is always Bottom) no matter how
// precise the input walk's data is. Widening first gives the lift
// something to narrow from again.
//
// A KMemPtr is dereferenced through eng.typeMem before widening: pair,
// triple, and struct literals all flow as pointers into the memory
// lattice now, not as inline structs, and a Bottom can just as well be
// hiding behind one of their fields.
func widenConflicts(eng *Engine, t lattice.Type) lattice.Type {
	if t.Kind() == lattice.KBottom {
		return lattice.Top
	}
	if t.Kind() == lattice.KMemPtr {
		return widenConflicts(eng, derefStruct(eng, t))
	}
	if t.Kind() != lattice.KStruct {
		return t
	}
	fields := t.Fields()
	widened := make([]lattice.Field, len(fields))
	for i, f := range fields {
		widened[i] = lattice.Field{Name: f.Name, Type: widenConflicts(eng, f.Type)}
	}
	return lattice.NewStruct(widened, t.Open())
}

// ---- StructLit ------------------------------------------------------------

// StructLit is `@{id=fe, ...}`.
type StructLit struct {
	base
	Names  []symbol.ID
	Values []Syntax
	alias  bits.AliasIndex
}

func NewStructLit(names []symbol.ID, values []Syntax) *StructLit {
	return &StructLit{Names: names, Values: values}
}

func (n *StructLit) children() []Syntax { return n.Values }

func (n *StructLit) prepTree(parent Syntax, nongen *VStack, eng *Engine) int {
	n.setParent(parent)
	count := 1
	for _, v := range n.Values {
		count += v.prepTree(n, nongen, eng)
	}
	n.alias, _ = eng.aliases.NewAlias(bits.UniversalAlias)
	n.t2 = NewLeaf()
	n.t2.isAlias = true
	n.t2.aliases = bits.Empty.Set(int(n.alias))
	n.t2.open = true
	for i, name := range n.Names {
		n.t2.setArg(name, n.Values[i].T2())
	}
	return count
}

func (n *StructLit) hm(eng *Engine) bool {
	progress := false
	for i, name := range n.Names {
		if eng.sess.Unify(n.t2.Arg(name), n.Values[i].T2()) {
			progress = true
		}
	}
	return progress
}

// val assembles the struct and writes it into the memory lattice at
// n.alias, returning a pointer rather than the struct itself: a struct
// literal's value is reached through a Field lookup the same way a
// record built by pair/triple is (Primitive.pairTripleVal), so both
// producers share the same KMemPtr/TypeMem indirection on the consumer
// side (Field.val, derefStruct).
func (n *StructLit) val(eng *Engine) lattice.Type {
	fields := make([]lattice.Field, len(n.Names))
	for i, name := range n.Names {
		fields[i] = lattice.Field{Name: name, Type: n.Values[i].Flow()}
	}
	eng.typeMem.Set(n.alias, lattice.NewStruct(fields, true))
	return lattice.NewMemPtr(bits.Empty.Set(int(n.alias)))
}

// ---- Field ------------------------------------------------------------

// Field is `rec.id`.
type Field struct {
	base
	Name symbol.ID
	Rec  Syntax
}

func NewField(name symbol.ID, rec Syntax) *Field { return &Field{Name: name, Rec: rec} }

func (n *Field) children() []Syntax { return []Syntax{n.Rec} }

func (n *Field) prepTree(parent Syntax, nongen *VStack, eng *Engine) int {
	n.setParent(parent)
	count := 1 + n.Rec.prepTree(n, nongen, eng)
	n.t2 = NewLeaf()
	return count
}

func (n *Field) hm(eng *Engine) bool {
	recRep := Find(n.Rec.T2())
	progress := false
	if recRep.IsNilable() {
		// spec §7.3: loading a field through a nilable record is only safe
		// once narrowed (e.g. by an `if`'s synthesized NotNil guard); record
		// the possibility here rather than silently unwrapping it.
		msg := "May be nil when loading field " + n.Name.Str()
		selfRep := Find(n.t2)
		if selfRep.err != msg {
			selfRep.err = addErr(selfRep.err, msg)
			progress = true
		}
		recRep = Find(recRep.Arg(symbol.Nilable))
	}
	if fv := recRep.Arg(n.Name); fv != nil {
		if eng.sess.Unify(n.t2, fv) {
			progress = true
		}
		return progress
	}
	if recRep.open || recRep.IsLeaf() {
		if !recRep.isAlias {
			recRep.isAlias = true
			recRep.open = true
			a, _ := eng.aliases.NewAlias(bits.UniversalAlias)
			recRep.aliases = bits.Empty.Set(int(a))
		}
		recRep.setArg(n.Name, n.t2)
		return true
	}
	msg := "Missing field " + n.Name.Str()
	if recRep.err != msg {
		recRep.err = addErr(recRep.err, msg)
		progress = true
	}
	return progress
}

// val reads the field through the memory lattice: Rec's flow is a
// KMemPtr (StructLit.val, Primitive.pairTripleVal both write through
// eng.typeMem rather than flowing an inline KStruct), so the record's
// shape has to be fetched from memory before the field can be picked
// out of it.
func (n *Field) val(eng *Engine) lattice.Type {
	recFlow := n.Rec.Flow()
	switch recFlow.Kind() {
	case lattice.KTop:
		return lattice.Top
	case lattice.KBottom, lattice.KNil:
		return lattice.Bottom
	case lattice.KMemPtr:
		return fieldOf(derefStruct(eng, recFlow), n.Name)
	default:
		return lattice.Top
	}
}

// fieldOf picks a field out of an already-dereferenced struct value.
func fieldOf(obj lattice.Type, name symbol.ID) lattice.Type {
	switch obj.Kind() {
	case lattice.KStruct:
		if f, ok := obj.Field(name); ok {
			return f
		}
		if obj.Open() {
			return lattice.Top
		}
		return lattice.Bottom
	case lattice.KBottom, lattice.KNil:
		return lattice.Bottom
	default:
		return lattice.Top
	}
}

// ---- Primitive ------------------------------------------------------------

// Op names a primitive operation (spec §6 table, §4.2's "primitives"
// row, §4.4's If rule). Each is folded into one node type rather than
// twelve, since their hm/val contracts are short, regular, and differ
// only in arity and the per-op switch below.
type Op int

const (
	OpIf Op = iota
	OpPair
	OpTriple
	OpEq
	OpEq0
	OpIsEmpty
	OpMul
	OpAdd
	OpDec
	OpStr
	OpFactor
	OpNotNil
)

// Primitive is a built-in operator application. alias is only used by
// OpPair/OpTriple, whose result is a fixed-arity record reached through
// the memory lattice the same way StructLit's is.
type Primitive struct {
	base
	Op    Op
	Args  []Syntax
	alias bits.AliasIndex
}

func NewPrimitive(op Op, args ...Syntax) *Primitive { return &Primitive{Op: op, Args: args} }

func (n *Primitive) children() []Syntax { return n.Args }

func (n *Primitive) prepTree(parent Syntax, nongen *VStack, eng *Engine) int {
	n.setParent(parent)
	count := 1
	for _, a := range n.Args {
		count += a.prepTree(n, nongen, eng)
	}
	n.t2 = NewLeaf()
	// pair/triple produce a fixed-arity, closed record (spec §6: "(a,b) →
	// @{0:a,1:b}", no trailing "..."), so the result T2 is marked an
	// alias the same way StructLit's is, with its positional fields
	// wired directly to the operands' own T2s rather than through a
	// separate unify step.
	if n.Op == OpPair || n.Op == OpTriple {
		a, _ := eng.aliases.NewAlias(bits.UniversalAlias)
		n.alias = a
		n.t2.isAlias = true
		n.t2.aliases = bits.Empty.Set(int(a))
		n.t2.open = false
		for i, label := range pairTripleLabels(n.Op) {
			n.t2.setArg(label, n.Args[i].T2())
		}
	}
	return count
}

func pairTripleLabels(op Op) []symbol.ID {
	if op == OpPair {
		return []symbol.ID{symbol.Intern("0"), symbol.Intern("1")}
	}
	return []symbol.ID{symbol.Intern("0"), symbol.Intern("1"), symbol.Intern("2")}
}

func (n *Primitive) hm(eng *Engine) bool {
	progress := false
	u := func(a, b *T2) {
		if eng.sess.Unify(a, b) {
			progress = true
		}
	}
	switch n.Op {
	case OpIf:
		return n.hmIf(eng)
	case OpPair, OpTriple:
		// Fields were wired directly to the operands' T2s in prepTree;
		// nothing further to unify structurally.
	case OpEq:
		u(n.Args[0].T2(), n.Args[1].T2())
	case OpEq0, OpDec, OpStr, OpIsEmpty, OpFactor:
		// unary, fixed domain/range; nothing to unify between operand and
		// result (their types differ), but the operand's own class is
		// constrained by the val() side via flow, not HM.
	case OpMul, OpAdd:
		// (int,int)->int: no cross-argument unification needed beyond each
		// argument independently settling to Int via its own flow.
	case OpNotNil:
		return n.hmNotNil(eng)
	}
	return progress
}

func (n *Primitive) hmIf(eng *Engine) bool {
	pred := n.Args[0].Flow()
	thenN, elseN := n.Args[1], n.Args[2]
	if lattice.AboveCenter(pred) {
		return false
	}
	known := knownPredicate(pred)
	progress := false
	u := func(a *T2) {
		if eng.sess.Unify(n.t2, a) {
			progress = true
		}
	}
	switch known {
	case predFalse:
		u(elseN.T2())
	case predTrue:
		u(thenN.T2())
	default:
		u(thenN.T2())
		u(elseN.T2())
	}
	return progress
}

type predKnown int

const (
	predUnknown predKnown = iota
	predTrue
	predFalse
)

func knownPredicate(f lattice.Type) predKnown {
	if lattice.MustNil(f) {
		return predFalse
	}
	if f.Kind() == lattice.KInt && f.IsConst() {
		if f.Int() == 0 {
			return predFalse
		}
		return predTrue
	}
	return predUnknown
}

func (n *Primitive) hmNotNil(eng *Engine) bool {
	inner := n.Args[0].T2()
	rep := Find(inner)
	if !rep.IsNilable() {
		return eng.sess.Unify(n.t2, inner)
	}
	child := rep.Arg(symbol.Nilable)
	childRep := Find(child)
	selfRep := Find(n.t2)
	// Open question (spec §9): skip the merge-then-reunify when both sides
	// are open structs awaiting more fields, to avoid picking an
	// ordering-dependent result while both are still growing; it proceeds
	// when at least one side is closed.
	if childRep.isAlias && selfRep.isAlias && childRep.open && selfRep.open {
		return false
	}
	return eng.sess.Unify(n.t2, child)
}

func (n *Primitive) val(eng *Engine) lattice.Type {
	switch n.Op {
	case OpIf:
		return n.valIf()
	case OpPair, OpTriple:
		return n.pairTripleVal(eng)
	case OpEq:
		return boolFlowFrom(n.Args[0].Flow(), n.Args[1].Flow())
	case OpEq0:
		return eq0Flow(n.Args[0].Flow())
	case OpIsEmpty:
		return isEmptyFlow(n.Args[0].Flow())
	case OpMul, OpAdd:
		return arithFlow(n.Op, n.Args[0].Flow(), n.Args[1].Flow())
	case OpDec:
		return decFlow(n.Args[0].Flow())
	case OpStr:
		return strFlow(n.Args[0].Flow())
	case OpFactor:
		return factorFlow(n.Args[0].Flow())
	case OpNotNil:
		return notNilFlow(n.Args[0].Flow())
	}
	return lattice.Top
}

// pairTripleVal assembles pair/triple's fixed-arity record and writes it
// into the memory lattice at n.alias, mirroring StructLit.val so both
// producers are read back the same way by Field.val/derefStruct.
func (n *Primitive) pairTripleVal(eng *Engine) lattice.Type {
	labels := pairTripleLabels(n.Op)
	fields := make([]lattice.Field, len(labels))
	for i, label := range labels {
		fields[i] = lattice.Field{Name: label, Type: n.Args[i].Flow()}
	}
	eng.typeMem.Set(n.alias, lattice.NewStruct(fields, false))
	return lattice.NewMemPtr(bits.Empty.Set(int(n.alias)))
}

func (n *Primitive) valIf() lattice.Type {
	pred := n.Args[0].Flow()
	switch knownPredicate(pred) {
	case predTrue:
		return n.Args[1].Flow()
	case predFalse:
		return n.Args[2].Flow()
	default:
		return lattice.Join(n.Args[1].Flow(), n.Args[2].Flow())
	}
}

func boolFlowFrom(a, b lattice.Type) lattice.Type {
	if a.Kind() == lattice.KTop || b.Kind() == lattice.KTop {
		return lattice.Top
	}
	if a.IsConst() && b.IsConst() && a.Equal(b) {
		return lattice.NewInt(1)
	}
	if a.IsConst() && b.IsConst() {
		return lattice.NewInt(0)
	}
	return lattice.IntClass
}

func eq0Flow(a lattice.Type) lattice.Type {
	if a.Kind() == lattice.KNil {
		return lattice.NewInt(1)
	}
	if a.Kind() == lattice.KInt && a.IsConst() {
		if a.Int() == 0 {
			return lattice.NewInt(1)
		}
		return lattice.NewInt(0)
	}
	if a.Kind() == lattice.KTop {
		return lattice.Top
	}
	return lattice.IntClass
}

func isEmptyFlow(a lattice.Type) lattice.Type {
	if a.Kind() == lattice.KStr && a.IsConst() {
		if a.Str() == "" {
			return lattice.NewInt(1)
		}
		return lattice.NewInt(0)
	}
	if a.Kind() == lattice.KTop {
		return lattice.Top
	}
	return lattice.IntClass
}

func arithFlow(op Op, a, b lattice.Type) lattice.Type {
	if a.Kind() == lattice.KTop || b.Kind() == lattice.KTop {
		return lattice.Top
	}
	if a.Kind() != lattice.KInt || b.Kind() != lattice.KInt {
		return lattice.Bottom
	}
	if a.IsConst() && b.IsConst() {
		if op == OpMul {
			return lattice.NewInt(a.Int() * b.Int())
		}
		return lattice.NewInt(a.Int() + b.Int())
	}
	return lattice.IntClass
}

func decFlow(a lattice.Type) lattice.Type {
	if a.Kind() == lattice.KTop {
		return lattice.Top
	}
	if a.Kind() != lattice.KInt {
		return lattice.Bottom
	}
	if a.IsConst() {
		return lattice.NewInt(a.Int() - 1)
	}
	return lattice.IntClass
}

func strFlow(a lattice.Type) lattice.Type {
	if a.Kind() == lattice.KTop {
		return lattice.Top
	}
	if a.Kind() != lattice.KInt {
		return lattice.Bottom
	}
	if a.IsConst() {
		return lattice.NewStr(itoa(a.Int()))
	}
	return lattice.StrClass
}

func factorFlow(a lattice.Type) lattice.Type {
	if a.Kind() == lattice.KTop {
		return lattice.Top
	}
	if a.Kind() != lattice.KFlt {
		return lattice.Bottom
	}
	return lattice.FltClass
}

func notNilFlow(a lattice.Type) lattice.Type {
	if a.Kind() == lattice.KNil {
		return lattice.Bottom
	}
	return a
}

func itoa(v int64) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// ---- Root ------------------------------------------------------------

// Root models the caller of the top-level expression (spec §4.6).
type Root struct {
	base
	Body Syntax
}

func NewRoot(body Syntax) *Root { return &Root{Body: body} }

func (n *Root) children() []Syntax { return []Syntax{n.Body} }

func (n *Root) prepTree(parent Syntax, nongen *VStack, eng *Engine) int {
	n.setParent(nil)
	count := 1 + n.Body.prepTree(n, nongen, eng)
	n.t2 = NewLeaf()
	return count
}

func (n *Root) hm(eng *Engine) bool {
	return eng.sess.Unify(n.t2, n.Body.T2())
}

func (n *Root) val(eng *Engine) lattice.Type {
	return n.Body.Flow()
}
