package infer

import "math/rand"

// Worklist is the deterministic queue of Syntax nodes pending
// re-evaluation (spec §4.5). Ordering is FIFO by default, matching
// "worklist ordering must be stable across runs given the same input";
// RandomizeWorklist shuffles each PushAll call (the seeding at the start
// of every pass) while single Pushes stay FIFO, the one randomization
// spec §4.5 permits, and only for confluence tests.
type Worklist struct {
	items     []Syntax
	queued    map[Syntax]bool
	randomize bool
	rng       *rand.Rand
}

// NewWorklist creates an empty Worklist.
func NewWorklist(randomize bool) *Worklist {
	w := &Worklist{queued: map[Syntax]bool{}, randomize: randomize}
	if randomize {
		w.rng = rand.New(rand.NewSource(1))
	}
	return w
}

// Push enqueues n if it is not already pending.
func (w *Worklist) Push(n Syntax) {
	if n == nil || w.queued[n] {
		return
	}
	w.queued[n] = true
	w.items = append(w.items, n)
}

// PushAll enqueues every node in ns, optionally shuffled.
func (w *Worklist) PushAll(ns []Syntax) {
	order := ns
	if w.randomize {
		order = append([]Syntax(nil), ns...)
		w.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}
	for _, n := range order {
		w.Push(n)
	}
}

// Pop removes and returns the next node in FIFO order.
func (w *Worklist) Pop() Syntax {
	n := w.items[0]
	w.items = w.items[1:]
	delete(w.queued, n)
	return n
}

// Empty reports whether the worklist has no pending nodes.
func (w *Worklist) Empty() bool { return len(w.items) == 0 }
