package infer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/grailbio/hmgcp/lattice"
	"github.com/grailbio/hmgcp/symbol"
)

// printer assigns deterministic names (A..Z, then V{id}) to the leaves
// of a printed HM scheme, the way the spec's Output section (§6)
// requires: "both deterministic up to fresh-variable naming". Grounded
// on the buffering/naming discipline of gql/termutil's BufferPrinter,
// trimmed of its terminal-pager and signal-handling machinery (no role
// in a library that never owns a terminal) -- see DESIGN.md.
type printer struct {
	names map[*T2]string
	next  int
}

func newPrinter() *printer { return &printer{names: map[*T2]string{}} }

func (p *printer) nameFor(t *T2) string {
	if n, ok := p.names[t]; ok {
		return n
	}
	var n string
	if p.next < 26 {
		n = string(rune('A' + p.next))
	} else {
		n = fmt.Sprintf("V%d", t.id)
	}
	p.next++
	p.names[t] = n
	return n
}

// PrintScheme renders t's HM type as a scheme with deterministic
// variable names.
func PrintScheme(t *T2) string {
	p := newPrinter()
	return p.printT2(t, map[*T2]bool{})
}

// printT2 renders rep's scheme, then layers on whatever diagnostics pass
// 4 (propagateErrors) recorded on it: a flow/eflow conflict renders as
// "Cannot unify A and B" (spec §7.1) in place of the scheme entirely,
// since the two conflicting bases ARE the diagnostic; any other err
// string (missing field, nil-deref -- spec §7.2/§7.3) is appended as a
// bracketed note after the ordinary scheme.
func (p *printer) printT2(t *T2, visiting map[*T2]bool) string {
	rep := DebugFind(t)
	if visiting[rep] {
		return p.nameFor(rep)
	}
	if rep.hasEflow {
		return fmt.Sprintf("Cannot unify %s and %s", rep.flow.String(), rep.eflow.String())
	}
	core := p.printCore(rep, visiting)
	if rep.err != "" {
		return core + " [" + rep.err + "]"
	}
	return core
}

func (p *printer) printCore(rep *T2, visiting map[*T2]bool) string {
	if rep.hasFlow {
		return rep.flow.String()
	}
	if rep.IsNilable() {
		visiting[rep] = true
		inner := p.printT2(rep.Arg(symbol.Nilable), visiting)
		delete(visiting, rep)
		return inner + "?"
	}
	if rep.isFun {
		visiting[rep] = true
		var args []string
		for i := 0; ; i++ {
			label := symbol.ArgLabel(i)
			v := rep.Arg(label)
			if v == nil {
				break
			}
			args = append(args, p.printT2(v, visiting))
		}
		ret := "?"
		if r := rep.Arg(symbol.Ret); r != nil {
			ret = p.printT2(r, visiting)
		}
		delete(visiting, rep)
		return "{ " + strings.Join(args, " ") + " -> " + ret + " }"
	}
	if rep.isAlias {
		visiting[rep] = true
		labels := append([]symbol.ID(nil), rep.argOrder...)
		sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })
		var parts []string
		for _, l := range labels {
			parts = append(parts, l.Str()+"="+p.printT2(rep.Arg(l), visiting))
		}
		delete(visiting, rep)
		suffix := ""
		if rep.open {
			suffix = ",..."
		}
		return "@{" + strings.Join(parts, ",") + suffix + "}"
	}
	if rep.IsLeaf() {
		return p.nameFor(rep)
	}
	return p.nameFor(rep)
}

// PrintFlow renders a flow type. Kept distinct from lattice.Type.String
// so callers of this package never need to import lattice just to print
// a result.
func PrintFlow(f lattice.Type) string { return f.String() }

// CollectErrors walks root's AST and returns every diagnostic pass 4
// recorded, in visitation order, one entry per distinct T2 (a T2 shared
// by several nodes -- e.g. a let-bound definition -- is only reported
// once). This is the structured counterpart to the bracketed notes
// PrintScheme embeds inline: callers that want to surface errors
// without parsing a scheme string (spec §7) use this instead.
func CollectErrors(root *Root) []string {
	var out []string
	seen := map[*T2]bool{}
	var walk func(n Syntax)
	walk = func(n Syntax) {
		if t := n.T2(); t != nil {
			rep := DebugFind(t)
			if !seen[rep] {
				seen[rep] = true
				if rep.hasEflow {
					out = append(out, fmt.Sprintf("Cannot unify %s and %s", rep.flow.String(), rep.eflow.String()))
				}
				if rep.err != "" {
					out = append(out, rep.err)
				}
			}
		}
		for _, c := range n.children() {
			walk(c)
		}
	}
	walk(root)
	return out
}
