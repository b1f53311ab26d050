// Package symbol interns identifier names (record field labels, lambda
// parameter names, let-bound variable names) into small integers so that
// T2 and Syntax nodes can compare and hash names in O(1). It mirrors
// grailbio/gql's symbol package, trimmed of GOB marshaling and the
// genomics-specific predefined symbol table, which have no role here.
package symbol

import (
	"fmt"
	"sync"

	"github.com/grailbio/base/log"
	"github.com/grailbio/hmgcp/hash"
)

// ID is an interned name.
type ID int32

// Invalid is the zero ID, used as a sentinel for "no name".
const Invalid = ID(0)

// Reserved T2.args labels, interned once at init time. Forward, Nilable
// and the space-prefixed argument labels can never collide with a record
// field name, which the parser takes only from an identifier or digit
// token. Ret is the plain identifier "ret", so a record field written
// `ret` shares its label.
var (
	// Forward is the union-find redirect label, ">>".
	Forward = Intern(">>")
	// Nilable is the label under which a nilable's inner T2 hangs, "?".
	Nilable = Intern("?")
	// Ret is the label under which a function's return T2 hangs.
	Ret = Intern("ret")
	// ArgX, ArgY, ArgZ are the first three positional-argument labels.
	// Leading space keeps them distinct from any record field label a
	// source program could write.
	ArgX = Intern(" x")
	ArgY = Intern(" y")
	ArgZ = Intern(" z")
)

type table struct {
	mu    sync.Mutex
	names []string // names[id] = name; names[0] unused
	ids   map[string]ID
}

var symbols = table{
	names: []string{""},
	ids:   map[string]ID{},
}

// Intern finds or creates the ID for the given name.
func Intern(name string) ID {
	if name == "" {
		log.Panicf("symbol: empty name")
	}
	symbols.mu.Lock()
	defer symbols.mu.Unlock()
	if id, ok := symbols.ids[name]; ok {
		return id
	}
	id := ID(len(symbols.names))
	symbols.names = append(symbols.names, name)
	symbols.ids[name] = id
	return id
}

// Str returns the name this ID was interned from.
func (id ID) Str() string {
	symbols.mu.Lock()
	defer symbols.mu.Unlock()
	if int(id) <= 0 || int(id) >= len(symbols.names) {
		log.Panicf("symbol: id %d not found", id)
	}
	return symbols.names[id]
}

// Hash computes a stable hash of the symbol's name.
func (id ID) Hash() hash.Hash {
	return hash.String(id.Str())
}

// ArgLabel returns the positional-argument label for the given zero-based
// index. The first three reuse the canonical " x"," y"," z" labels spec.md
// §3 reserves by name; arity beyond that extends the same space-prefixed
// convention (" x3", " x4", ...) so arbitrary-arity lambdas stay
// representable without colliding with a record field label (field names
// can never start with a space -- the parser only accepts identifier
// characters there).
func ArgLabel(i int) ID {
	switch i {
	case 0:
		return ArgX
	case 1:
		return ArgY
	case 2:
		return ArgZ
	default:
		return Intern(fmt.Sprintf(" x%d", i))
	}
}
