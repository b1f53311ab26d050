package infer

import (
	"fmt"

	"github.com/grailbio/hmgcp/bits"
	"github.com/grailbio/hmgcp/lattice"
	"github.com/grailbio/hmgcp/symbol"
)

// Opts configures an Engine, the same shape as gql.Opts{CacheDir: ...}
// configures a gql.Session (spec_full §1a).
type Opts struct {
	// MaxWorklistIterations bounds pass 1's main loop (spec §5's
	// "cnt < 10_000" guard, made configurable per spec's own suggestion).
	MaxWorklistIterations int
	// RandomizeWorklist shuffles the order in which each pass seeds the
	// worklist, for confluence testing
	// (spec §4.5 explicitly permits this for tests only).
	RandomizeWorklist bool
	// Trace, when set, records a human-readable line per worklist pop
	// into the Engine's ConvergenceTrace.
	Trace bool
}

// DefaultOpts returns the zero-value-safe default configuration.
func DefaultOpts() Opts {
	return Opts{MaxWorklistIterations: 10000}
}

// scopeBinding is one entry of the lexical lookup stack built during
// prepTree: a name visible to Ident nodes below this point in the tree.
type scopeBinding struct {
	name   symbol.ID
	t2     *T2
	flowOf func() lattice.Type
	isLet  bool
}

// Engine owns one inference run: the T2 graph's session-scoped unify
// state, the function/alias allocators, the worklist, and the lexical
// scope stack used only during prepTree. It is the Inference session
// object spec §9 asks for in place of process globals.
type Engine struct {
	Opts Opts

	sess    *session
	work    *Worklist
	funs    *bits.FunAllocator
	aliases *bits.AliasTree
	typeMem *lattice.TypeMem

	lambdasByFidx map[bits.FunIndex]*Lambda
	lambdaStack   []*Lambda
	scope         []scopeBinding

	root *Root

	trace    []string
	frozen   bool
}

// NewEngine creates an Engine with the given options.
func NewEngine(opts Opts) *Engine {
	if opts.MaxWorklistIterations == 0 {
		opts.MaxWorklistIterations = 10000
	}
	aliases := bits.NewAliasTree()
	typeMem := lattice.NewTypeMem()
	typeMem.Bind(aliases)
	return &Engine{
		Opts:          opts,
		sess:          newSession(),
		work:          NewWorklist(opts.RandomizeWorklist),
		funs:          bits.NewFunAllocator(),
		aliases:       aliases,
		typeMem:       typeMem,
		lambdasByFidx: map[bits.FunIndex]*Lambda{},
	}
}

func (e *Engine) pushLambda(lam *Lambda) {
	e.lambdasByFidx[lam.fidx] = lam
	e.lambdaStack = append(e.lambdaStack, lam)
	for i, name := range lam.Params {
		i := i
		e.scope = append(e.scope, scopeBinding{
			name:   name,
			t2:     lam.targs[i],
			flowOf: func() lattice.Type { return lam.types[i] },
		})
	}
}

func (e *Engine) popLambda() {
	n := len(e.lambdaStack[len(e.lambdaStack)-1].Params)
	e.scope = e.scope[:len(e.scope)-n]
	e.lambdaStack = e.lambdaStack[:len(e.lambdaStack)-1]
}

func (e *Engine) pushLet(name symbol.ID, let *Let) {
	e.scope = append(e.scope, scopeBinding{
		name:   name,
		t2:     let.Def.T2(),
		flowOf: func() lattice.Type { return let.Def.Flow() },
		isLet:  true,
	})
}

func (e *Engine) popLet() {
	e.scope = e.scope[:len(e.scope)-1]
}

// lookup resolves name against the innermost-first lexical scope stack,
// falling back to the primitive table (spec §6). The bool result is
// true when the binding is a let (requiring fresh instantiation at every
// Ident use, spec §4.1.6).
func (e *Engine) lookup(name symbol.ID, n Syntax) (*T2, func() lattice.Type, bool) {
	for i := len(e.scope) - 1; i >= 0; i-- {
		b := e.scope[i]
		if b.name == name {
			return b.t2, b.flowOf, b.isLet
		}
	}
	if prim, ok := primitiveByName[name]; ok {
		return prim.t2, func() lattice.Type { return prim.flow }, false
	}
	Logf(n, "infer: unbound identifier %q", name.Str())
	return nil, nil, false
}

func (e *Engine) lambdaByFidx(fidx bits.FunIndex) *Lambda {
	return e.lambdasByFidx[fidx]
}

// ConvergenceTrace returns the recorded worklist pop trace when
// Opts.Trace is set, for debugging non-terminating inputs (spec_full
// §4a).
func (e *Engine) ConvergenceTrace() []string { return e.trace }

// Run executes the full multi-pass fixed point over root (spec §4.5):
// pre-pass, pass 1 (unfrozen), pass 2 (root argument widening), pass 3
// (freeze), pass 4 (error propagation). Run is not reentrant while
// running -- a single Engine analyzes one program (spec §5).
func (e *Engine) Run(root *Root) {
	e.root = root
	root.prepTree(nil, nil, e)
	e.work.PushAll(allNodes(root))

	e.runToFixpoint()

	widenRootArguments(e, root)
	e.work.PushAll(allNodes(root))
	e.runToFixpoint()

	e.frozen = true
	e.work.PushAll(allNodes(root))
	e.runToFixpoint()

	propagateErrors(root)
}

func (e *Engine) runToFixpoint() {
	cnt := 0
	for !e.work.Empty() && cnt < e.Opts.MaxWorklistIterations {
		cnt++
		n := e.work.Pop()
		hmProgress := n.hm(e)
		if hmProgress {
			enqueueParent(n, e)
			for _, c := range n.children() {
				e.work.Push(c)
			}
		}
		newFlow := n.val(e)
		oldFlow := n.Flow()
		if newFlow.Kind() != lattice.KTop || oldFlow.Kind() != lattice.KTop {
			if !newFlow.Equal(oldFlow) {
				n.setFlow(newFlow)
				enqueueParent(n, e)
				if lam, ok := parentLambdaCallers(n); ok {
					for _, c := range lam.callers {
						e.work.Push(c)
					}
				}
			}
		}
		if e.Opts.Trace {
			e.trace = append(e.trace, nodeTraceLabel(n))
		}
	}
	if cnt >= e.Opts.MaxWorklistIterations {
		Logf(e.root, "infer: worklist did not converge after %d iterations", cnt)
	}
}

// parentLambdaCallers reports whether n is a Lambda body (its parent is
// the Lambda that owns it), so the Lambda's callers get re-examined when
// the body's flow changes.
func parentLambdaCallers(n Syntax) (*Lambda, bool) {
	p := n.parent()
	if lam, ok := p.(*Lambda); ok && lam.Body == n {
		return lam, true
	}
	return nil, false
}

func nodeTraceLabel(n Syntax) string {
	switch n.(type) {
	case *Con:
		return "Con"
	case *Ident:
		return "Ident"
	case *Lambda:
		return "Lambda"
	case *Let:
		return "Let"
	case *Apply:
		return "Apply"
	case *StructLit:
		return "StructLit"
	case *Field:
		return "Field"
	case *Primitive:
		return "Primitive"
	case *Root:
		return "Root"
	default:
		return "?"
	}
}

func allNodes(n Syntax) []Syntax {
	out := []Syntax{n}
	for _, c := range n.children() {
		out = append(out, allNodes(c)...)
	}
	return out
}

// propagateErrors is pass 4 (spec §4.5): a single visit that finalizes
// error messages. For a Field, if the record is both erroneous and open,
// note the missing field; if any struct erroneously contains a nil,
// propagate nil to all error channels to preserve monotonicity.
func propagateErrors(n Syntax) {
	if f, ok := n.(*Field); ok {
		recRep := Find(f.Rec.T2())
		if recRep.err != "" && recRep.open {
			note := fmt.Sprintf("(open record %s, field may be added later)", PrintScheme(f.Rec.T2()))
			recRep.err = addErr(recRep.err, note)
		}
	}
	if t := n.T2(); t != nil {
		rep := DebugFind(t)
		if rep.IsErr2() && containsNil(rep, map[*T2]bool{}) {
			if rep.hasEflow {
				rep.eflow = lattice.Meet(rep.eflow, lattice.Nil)
			}
		}
	}
	for _, c := range n.children() {
		propagateErrors(c)
	}
}

func containsNil(t *T2, seen map[*T2]bool) bool {
	t = DebugFind(t)
	if seen[t] {
		return false
	}
	seen[t] = true
	if t.hasFlow && lattice.MustNil(t.flow) {
		return true
	}
	for _, label := range t.argOrder {
		if containsNil(t.Arg(label), seen) {
			return true
		}
	}
	return false
}

// widenRootArguments is pass 2 (spec §4.6): for every root-reachable
// lambda, widen each parameter slot's constant flow to its class
// (lattice.Widen), unless fidx 1 (AnyFun) is among
// the escaping set, in which case no widening is performed because the
// effect is already total.
func widenRootArguments(e *Engine, root *Root) {
	rootFlow := root.Body.Flow()
	visitEscaping(rootFlow, e, map[bits.FunIndex]bool{})
}

func visitEscaping(f lattice.Type, e *Engine, seen map[bits.FunIndex]bool) {
	if f.Kind() != lattice.KFunPtr {
		return
	}
	if f.FunIndexes().Test(int(bits.AnyFun)) {
		return
	}
	f.FunIndexes().Iterate(func(fidx int) {
		idx := bits.FunIndex(fidx)
		if seen[idx] {
			return
		}
		seen[idx] = true
		lam := e.lambdaByFidx(idx)
		if lam == nil {
			return
		}
		for _, t := range lam.targs {
			// Meet can only narrow, so the widened class replaces the
			// slot's flow rather than being met into it.
			rep := DebugFind(t)
			old := argFlow(rep)
			if widened := lattice.Widen(old); !widened.Equal(old) {
				rep.flow, rep.hasFlow = widened, true
				rep.AddDepsWork(e.work)
				e.work.Push(lam.Body)
				e.work.Push(lam)
			}
		}
		visitEscaping(lam.Body.Flow(), e, seen)
	})
}

// primitiveBinding is a pre-bound, pre-typed value visible at every
// scope (spec §6), shadowable by a local let. Its T2 encodes the
// canonical HM signature via a Lambda-shaped arrow so Apply's ordinary
// function-call path handles it without special cases beyond dispatch
// on Op inside Primitive.
type primitiveBinding struct {
	t2   *T2
	flow lattice.Type
}

var primitiveByName map[symbol.ID]primitiveBinding

func init() {
	primitiveByName = map[symbol.ID]primitiveBinding{}
	register := func(name string) *T2 {
		t := NewLeaf()
		t.isFun = true
		t.fidxs = bits.Empty.Set(int(bits.AnyFun))
		primitiveByName[symbol.Intern(name)] = primitiveBinding{t2: t, flow: lattice.NewFunPtr(bits.Empty.Set(int(bits.AnyFun)))}
		return t
	}
	register("if")
	register("pair")
	register("triple")
	register("eq")
	register("eq0")
	register("isempty")
	register("*")
	register("+")
	register("dec")
	register("str")
	register("factor")
	register("notnil")
}
