package infer

// VStack is the non-generative environment: a singly-linked stack of
// T2s, one frame per lambda parameter and per let-binding (pushed only
// for the let's definition subtree). Used by freshCopy to decide which
// leaves must not be copied -- the "occurs in enclosing binder" check
// (spec §3, §4.1.6). Grounded on gql/eval.go's bindings/callFrame
// push/pop frame stack, specialized to hold *T2 instead of a Value.
type VStack struct {
	t2s  []*T2
	next *VStack
}

// Push returns a new VStack with one additional frame on top of s.
func (s *VStack) Push(t2s ...*T2) *VStack {
	return &VStack{t2s: t2s, next: s}
}

// Occurs reports whether t (after find) is reachable as one of the
// leaves captured by any frame in s -- i.e. it occurs in some enclosing
// binder's T2 and therefore must not be alpha-renamed by fresh.
func (s *VStack) Occurs(t *T2) bool {
	target := find(t)
	for frame := s; frame != nil; frame = frame.next {
		for _, bound := range frame.t2s {
			if occursIn(target, find(bound), map[*T2]bool{}) {
				return true
			}
		}
	}
	return false
}

func occursIn(target, root *T2, seen map[*T2]bool) bool {
	root = find(root)
	if root == target {
		return true
	}
	if seen[root] {
		return false
	}
	seen[root] = true
	for _, label := range root.argOrder {
		if occursIn(target, root.Arg(label), seen) {
			return true
		}
	}
	return false
}
