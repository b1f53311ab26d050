package infer

import (
	"fmt"
	"strings"

	"github.com/grailbio/hmgcp/bits"
	"github.com/grailbio/hmgcp/lattice"
)

// cutoff bounds recursive function-signature expansion in Signature, so
// a self-applying or mutually-recursive lambda doesn't unfold forever
// (spec §4.6, "capped at the cyclic-precision bound (CUTOFF=1)").
const cutoff = 1

// Signature renders root's GCP flow type as program output (spec §6),
// expanding every reachable FunPtr into its call signature recursively
// up to cutoff levels of the same fidx.
func Signature(eng *Engine, root *Root) string {
	return signatureOf(eng, root.Body.Flow(), map[bits.FunIndex]int{})
}

func signatureOf(eng *Engine, f lattice.Type, depth map[bits.FunIndex]int) string {
	switch f.Kind() {
	case lattice.KFunPtr:
		var sigs []string
		f.FunIndexes().Iterate(func(fidx int) {
			idx := bits.FunIndex(fidx)
			if idx == bits.AnyFun {
				sigs = append(sigs, "any-fun")
				return
			}
			if depth[idx] >= cutoff {
				sigs = append(sigs, "...")
				return
			}
			lam := eng.lambdaByFidx(idx)
			if lam == nil {
				sigs = append(sigs, "?")
				return
			}
			next := cloneDepth(depth)
			next[idx]++
			var args []string
			for _, t := range lam.targs {
				args = append(args, signatureOf(eng, argFlow(t), next))
			}
			ret := signatureOf(eng, lam.Body.Flow(), next)
			sigs = append(sigs, fmt.Sprintf("(%s -> %s)", strings.Join(args, ", "), ret))
		})
		return strings.Join(sigs, "|")
	case lattice.KMemPtr:
		// Pair/triple/struct-literal results flow as pointers into the
		// memory lattice (infer/syntax.go's StructLit.val,
		// Primitive.pairTripleVal), not as inline structs; dereference
		// through eng.typeMem before rendering, or this would print the
		// opaque alias set instead of the record's actual shape.
		obj := derefStruct(eng, f)
		if obj.Kind() != lattice.KStruct {
			return obj.String()
		}
		fields := obj.Fields()
		parts := make([]string, len(fields))
		for i, fld := range fields {
			parts[i] = fmt.Sprintf("%s=%s", fld.Name.Str(), signatureOf(eng, fld.Type, depth))
		}
		suffix := ""
		if obj.Open() {
			suffix = ",..."
		}
		return fmt.Sprintf("@{%s%s}", strings.Join(parts, ","), suffix)
	default:
		return f.String()
	}
}

func cloneDepth(d map[bits.FunIndex]int) map[bits.FunIndex]int {
	out := make(map[bits.FunIndex]int, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}
