package infer

import (
	"github.com/grailbio/hmgcp/bits"
	"github.com/grailbio/hmgcp/lattice"
	"github.com/grailbio/hmgcp/symbol"
)

// applyLift implements the HM->GCP lift (spec §4.3): after Apply.val has
// met actuals into callees and combined their returns into ret, this
// walks the call's HM structure in parallel with flow types to tighten
// ret using whatever polymorphic precision HM still carries at this
// particular call site.
//
// Note on join vs meet: spec §4.3 step 2 describes the output walk as
// tightening ret "via ret.join(xt)". In this package's lattice
// convention (Top = maximum/unconstrained, meet = narrows, join =
// generalizes -- see lattice.Meet/Join doc comments and DESIGN.md),
// narrowing is performed by meet, not join; join is reserved for the
// input walk's pre-freeze combining of repeated occurrences, where
// prematurely intersecting would discard information still arriving
// from a sibling occurrence. The output walk below therefore narrows
// with lattice.Meet, which is the operation that actually satisfies the
// spec's own audited invariant (§8: "lifted.isa(unlifted_ret)", i.e.
// lift only tightens -- meet, not join, is isa-decreasing).
func applyLift(n *Apply, ret lattice.Type, eng *Engine) lattice.Type {
	inputs := map[*T2]lattice.Type{}
	for _, a := range n.Args {
		walkInput(a.T2(), a.Flow(), inputs, eng, map[*T2]bool{})
	}

	lifted := walkOutput(Find(n.t2), ret, inputs, eng, map[*T2]bool{})

	if !lifted.IsA(ret) && !lifted.Equal(ret) {
		Logf(n, "infer: lift produced a looser type than unlifted return at apply node")
		return ret
	}
	return lifted
}

// walkInput records, for every leaf/base T2 reachable from t (through
// function returns, nilables, and struct fields -- never through
// function parameters), the flow type paired with it at this call site.
// Repeated occurrences combine with join pre-freeze (don't prematurely
// narrow while more occurrences may still arrive) and meet post-freeze
// (all occurrences are in by then; narrow for real).
func walkInput(t *T2, f lattice.Type, inputs map[*T2]lattice.Type, eng *Engine, seen map[*T2]bool) {
	rep := Find(t)
	if seen[rep] {
		return
	}
	seen[rep] = true

	if rep.IsNilable() {
		inner := rep.Arg(symbol.Nilable)
		walkInput(inner, stripNilFlow(f), inputs, eng, seen)
		return
	}
	if rep.isFun {
		// A function-typed leaf has no flow-level value of its own, but its
		// return position is reachable structure the same way a struct
		// field is: descend into it paired with the flow every possible
		// callee named by f would return, so a higher-order argument's own
		// result can still be narrowed by this call site.
		if retT2 := rep.Arg(symbol.Ret); retT2 != nil && f.Kind() == lattice.KFunPtr {
			walkInput(retT2, funcReturnFlow(f, eng), inputs, eng, seen)
		}
		return
	}
	if rep.isAlias {
		if obj := derefStruct(eng, f); obj.Kind() == lattice.KStruct {
			for _, label := range rep.argOrder {
				child := rep.Arg(label)
				if ft, ok := obj.Field(label); ok {
					walkInput(child, ft, inputs, eng, seen)
				}
			}
			return
		}
	}
	if rep.IsLeaf() || rep.hasFlow {
		if existing, ok := inputs[rep]; ok {
			if eng.frozen {
				inputs[rep] = lattice.Meet(existing, f)
			} else {
				inputs[rep] = lattice.Join(existing, f)
			}
		} else {
			inputs[rep] = f
		}
	}
}

// walkOutput mirrors walkInput over the result T2/flow pair, narrowing
// at every leaf/base using whatever the input walk recorded for the
// same T2. For a function-return position, recursion is guarded against
// infinite unfolding by the seen map, keyed by T2 identity after find,
// which is sufficient since a cycle revisits the same representative.
func walkOutput(t *T2, f lattice.Type, inputs map[*T2]lattice.Type, eng *Engine, seen map[*T2]bool) lattice.Type {
	rep := Find(t)
	if seen[rep] {
		return f
	}
	seen[rep] = true

	if rep.IsNilable() {
		inner := walkOutput(rep.Arg(symbol.Nilable), stripNilFlow(f), inputs, eng, seen)
		return lattice.Meet(f, inner)
	}
	if rep.isFun {
		// There is no lattice.Type that represents "this call's returned
		// closure has a more precisely known body" -- a Lambda's body flow
		// is inherent to its (shared) AST node, not something a single call
		// site can locally refine and hand back the way it can for a
		// struct's fields. Still descend, for the narrowing side effect on
		// whatever the callee's return itself reaches (and for the seen-set
		// cycle guard), but always return f unchanged at this level.
		if retT2 := rep.Arg(symbol.Ret); retT2 != nil && f.Kind() == lattice.KFunPtr {
			walkOutput(retT2, funcReturnFlow(f, eng), inputs, eng, seen)
		}
		return f
	}
	if rep.isAlias {
		if obj := derefStruct(eng, f); obj.Kind() == lattice.KStruct {
			var fields []lattice.Field
			for _, fld := range obj.Fields() {
				// A field the HM side doesn't mention is left as the GCP value
				// computed it -- there is nothing to refine it with.
				if child := rep.Arg(fld.Name); child != nil {
					fields = append(fields, lattice.Field{Name: fld.Name, Type: walkOutput(child, fld.Type, inputs, eng, seen)})
				} else {
					fields = append(fields, fld)
				}
			}
			return lattice.NewStruct(fields, obj.Open())
		}
	}
	if xt, ok := inputs[rep]; ok {
		return lattice.Meet(f, xt)
	}
	return f
}

func stripNilFlow(f lattice.Type) lattice.Type {
	if f.Kind() == lattice.KNil {
		return lattice.Top
	}
	return f
}

// funcReturnFlow joins the return flow of every lambda f's FunIndexes
// could name. Mirrors Apply.val's own per-callee combination: f may name
// several possible callees, the actual call returns exactly one of
// them, and Join (not Meet) is the identity-safe way to combine an
// unknown one-of-several into a single upper approximation.
func funcReturnFlow(f lattice.Type, eng *Engine) lattice.Type {
	if f.Kind() != lattice.KFunPtr {
		return lattice.Top
	}
	ret := lattice.Bottom
	f.FunIndexes().Iterate(func(fidx int) {
		lam := eng.lambdaByFidx(bits.FunIndex(fidx))
		if lam == nil {
			ret = lattice.Top
			return
		}
		ret = lattice.Join(ret, lam.Body.Flow())
	})
	return ret
}

// derefStruct dereferences a KMemPtr through eng.typeMem, Join-folding
// across every alias the pointer could name -- the same one-of-several
// combination funcReturnFlow and Apply.val use, for the same reason: a
// pointer that could name more than one allocation site resolves to
// exactly one of them at runtime, and Meet would collapse to Bottom the
// instant any single alias resolved. Any other kind passes through
// unchanged, so callers can use it as a normalizing prefix without
// first checking Kind() themselves.
func derefStruct(eng *Engine, f lattice.Type) lattice.Type {
	if f.Kind() != lattice.KMemPtr {
		return f
	}
	obj := lattice.Bottom
	f.AliasIndexes().Iterate(func(idx int) {
		obj = lattice.Join(obj, eng.typeMem.Get(bits.AliasIndex(idx)))
	})
	return obj
}
