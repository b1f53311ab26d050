// Package lattice implements the GCP flow-type lattice: the base Int,
// Flt, Str, FunPtr, MemPtr, Struct and Nil types spec.md §1 describes as
// "assumed to exist", restated here to the degree the inference core in
// package infer depends on them (spec.md §1: "its laws are restated in
// §6 to the degree the core depends on them"). It is grounded on
// grailbio/gql's ValueType (value_type.go) and the type-combining logic
// in ai.go's combineTypes, generalized from a 1-level type tag into a
// proper 3-level (Top / class / constant, plus Bottom) SCCP-style
// lattice.
package lattice

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/grailbio/hmgcp/bits"
	"github.com/grailbio/hmgcp/symbol"
)

// Kind classifies a Type, independent of whether it's a class or a
// concrete constant.
type Kind byte

const (
	// KTop is the unconstrained type: "haven't learned anything about
	// this expression yet". It is the value every flow field starts at.
	KTop Kind = iota
	// KBottom is the impossible type: two incompatible constants (or two
	// incompatible kinds) were forced to meet. Distinct from per-kind
	// "class" types -- KBottom carries no kind of its own.
	KBottom
	KInt
	KFlt
	KStr
	KFunPtr
	KMemPtr
	KStruct
	// KNil is the definite-nil value, used for a pointer/function/struct
	// position known to hold nothing.
	KNil
)

func (k Kind) String() string {
	switch k {
	case KTop:
		return "top"
	case KBottom:
		return "bottom"
	case KInt:
		return "int"
	case KFlt:
		return "flt"
	case KStr:
		return "str"
	case KFunPtr:
		return "fun"
	case KMemPtr:
		return "mem"
	case KStruct:
		return "struct"
	case KNil:
		return "nil"
	default:
		return "?"
	}
}

// Field is one named component of a Struct flow type.
type Field struct {
	Name symbol.ID
	Type Type
}

// Type is one element of the GCP flow lattice. The zero Type is KTop.
//
// Ordering convention (spec.md's Open Question on lattice direction is
// resolved here; see DESIGN.md): Top is the unique maximum (least
// information), Bottom is the unique minimum (a conflict: no concrete
// value satisfies it). Between them, for each Kind, a "class" value
// (IsConst==false, e.g. "some int") sits strictly below Top and strictly
// above any constant of that kind; a constant sits strictly below its
// class. isa(a,b) holds when a is reachable from b by zero or more
// narrowing (meet) steps -- i.e. a is at least as precise as b.
type Type struct {
	kind    Kind
	isConst bool

	i int64
	f float64
	s string

	fidxs bits.Set // KFunPtr
	alias bits.Set // KMemPtr: the set of alias indices this pointer could name

	fields []Field // KStruct
	open   bool     // KStruct: true if more fields may still appear
}

// Top is the unconstrained type.
var Top = Type{kind: KTop}

// Bottom is the impossible/conflicting type.
var Bottom = Type{kind: KBottom}

// Nil is the definite-nil type.
var Nil = Type{kind: KNil}

// IntClass is "some int, not yet known which".
var IntClass = Type{kind: KInt}

// FltClass is "some float, not yet known which".
var FltClass = Type{kind: KFlt}

// StrClass is "some string, not yet known which".
var StrClass = Type{kind: KStr}

// NewInt creates a constant int flow type.
func NewInt(v int64) Type { return Type{kind: KInt, isConst: true, i: v} }

// NewFlt creates a constant float flow type.
func NewFlt(v float64) Type { return Type{kind: KFlt, isConst: true, f: v} }

// NewStr creates a constant string flow type.
func NewStr(v string) Type { return Type{kind: KStr, isConst: true, s: v} }

// NewFunPtr creates a function-pointer flow type naming the given set of
// possible call targets.
func NewFunPtr(fidxs bits.Set) Type {
	if fidxs.IsEmpty() {
		return Bottom
	}
	return Type{kind: KFunPtr, fidxs: fidxs}
}

// NewMemPtr creates a pointer flow type naming the given set of possible
// alias classes.
func NewMemPtr(alias bits.Set) Type {
	if alias.IsEmpty() {
		return Bottom
	}
	return Type{kind: KMemPtr, alias: alias}
}

// NewStruct creates a struct flow type with the given fields. open
// indicates that the struct may still grow new fields (width-extension).
func NewStruct(fields []Field, open bool) Type {
	sorted := make([]Field, len(fields))
	copy(sorted, fields)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	return Type{kind: KStruct, fields: sorted, open: open}
}

// Kind returns the type's kind.
func (t Type) Kind() Kind { return t.kind }

// IsConst reports whether t is a concrete constant (only meaningful for
// KInt/KFlt/KStr; always false otherwise).
func (t Type) IsConst() bool { return t.isConst }

// Int returns the constant int value. REQUIRES: t.Kind()==KInt && t.IsConst().
func (t Type) Int() int64 { return t.i }

// Flt returns the constant float value. REQUIRES: t.Kind()==KFlt && t.IsConst().
func (t Type) Flt() float64 { return t.f }

// Str returns the constant string value. REQUIRES: t.Kind()==KStr && t.IsConst().
func (t Type) Str() string { return t.s }

// FunIndexes returns the function-pointer's possible call targets.
// REQUIRES: t.Kind()==KFunPtr.
func (t Type) FunIndexes() bits.Set { return t.fidxs }

// AliasIndexes returns the pointer's possible alias classes.
// REQUIRES: t.Kind()==KMemPtr.
func (t Type) AliasIndexes() bits.Set { return t.alias }

// Fields returns the struct's fields, sorted by name.
// REQUIRES: t.Kind()==KStruct.
func (t Type) Fields() []Field { return t.fields }

// Open reports whether the struct admits more fields.
// REQUIRES: t.Kind()==KStruct.
func (t Type) Open() bool { return t.open }

// Field looks up a named field. REQUIRES: t.Kind()==KStruct.
func (t Type) Field(name symbol.ID) (Type, bool) {
	for _, f := range t.fields {
		if f.Name == name {
			return f.Type, true
		}
	}
	return Type{}, false
}

// Equal reports whether two types denote the same lattice element.
func (t Type) Equal(other Type) bool {
	if t.kind != other.kind {
		return false
	}
	switch t.kind {
	case KTop, KBottom, KNil:
		return true
	case KInt:
		return t.isConst == other.isConst && (!t.isConst || t.i == other.i)
	case KFlt:
		return t.isConst == other.isConst && (!t.isConst || t.f == other.f)
	case KStr:
		return t.isConst == other.isConst && (!t.isConst || t.s == other.s)
	case KFunPtr:
		return t.fidxs.Equal(other.fidxs)
	case KMemPtr:
		return t.alias.Equal(other.alias)
	case KStruct:
		if t.open != other.open || len(t.fields) != len(other.fields) {
			return false
		}
		for i := range t.fields {
			if t.fields[i].Name != other.fields[i].Name || !t.fields[i].Type.Equal(other.fields[i].Type) {
				return false
			}
		}
		return true
	}
	return false
}

// rank places a type on the Top(3) > class(2) > const(1) > Bottom(0)
// scale, ignoring kind-specific payload. KNil is treated as a constant
// (rank 1): it denotes exactly one value, nothing.
func (t Type) rank() int {
	switch t.kind {
	case KTop:
		return 3
	case KBottom:
		return 0
	case KNil:
		return 1
	case KInt, KFlt, KStr:
		if t.isConst {
			return 1
		}
		return 2
	case KFunPtr, KMemPtr, KStruct:
		// Function pointers, memory pointers and structs have no separate
		// "constant" sub-level in this lattice: a FunPtr naming exactly one
		// fidx is as precise as this lattice gets for that kind, so it sits
		// at the class rank, one step below Top.
		return 2
	}
	return 3
}

// IsA reports whether t is at least as precise as other -- i.e. whether
// t is reachable from other by zero or more meet (narrowing) steps. This
// is the "isa" relation spec.md §1/§4.3/§8 names: GCP monotonicity
// requires flow_new.IsA(flow_old); the Apply-lift audit requires
// lifted.IsA(unlifted_ret) to hold whenever lift actually tightens.
func (t Type) IsA(other Type) bool {
	if other.kind == KTop {
		return true
	}
	if t.kind == KBottom {
		return true
	}
	if t.Equal(other) {
		return true
	}
	if t.kind != other.kind {
		return false
	}
	switch t.kind {
	case KInt, KFlt, KStr:
		// A constant isa its own class; a class isa nothing narrower than
		// itself except an identical class (handled by Equal above).
		return t.isConst && !other.isConst
	case KFunPtr:
		return isSubsetOf(t.fidxs, other.fidxs)
	case KMemPtr:
		return isSubsetOf(t.alias, other.alias)
	case KStruct:
		return structIsA(t, other)
	}
	return false
}

func isSubsetOf(a, b bits.Set) bool {
	return a.Meet(b).Equal(a)
}

func structIsA(t, other Type) bool {
	if t.open && !other.open {
		return false
	}
	for _, of := range other.fields {
		tf, ok := t.Field(of.Name)
		if !ok {
			return false
		}
		if !tf.IsA(of.Type) {
			return false
		}
	}
	return true
}

// Meet computes the narrowing (glb) of t and other: the most precise
// type both could simultaneously describe. Lambda.argMeet uses it to
// combine the flows reaching a parameter from its call sites, and the
// Apply-lift uses it to narrow a call's result (spec.md §3, §8).
func Meet(t, other Type) Type {
	if t.kind == KTop {
		return other
	}
	if other.kind == KTop {
		return t
	}
	if t.kind == KBottom || other.kind == KBottom {
		return Bottom
	}
	if t.kind != other.kind {
		return Bottom
	}
	switch t.kind {
	case KNil:
		return Nil
	case KInt:
		return meetScalar(t, other, func(a, b Type) bool { return a.i == b.i }, NewInt(t.i))
	case KFlt:
		return meetScalar(t, other, func(a, b Type) bool { return a.f == b.f }, NewFlt(t.f))
	case KStr:
		return meetScalar(t, other, func(a, b Type) bool { return a.s == b.s }, NewStr(t.s))
	case KFunPtr:
		m := t.fidxs.Meet(other.fidxs)
		return NewFunPtr(m)
	case KMemPtr:
		m := t.alias.Meet(other.alias)
		return NewMemPtr(m)
	case KStruct:
		return meetStruct(t, other)
	}
	return Bottom
}

func meetScalar(t, other Type, sameValue func(a, b Type) bool, asConst Type) Type {
	switch {
	case t.isConst && other.isConst:
		if sameValue(t, other) {
			return asConst
		}
		return Bottom
	case t.isConst && !other.isConst:
		return t
	case !t.isConst && other.isConst:
		return other
	default:
		return t // both classes of the same kind
	}
}

func meetStruct(t, other Type) Type {
	names := map[symbol.ID]bool{}
	for _, f := range t.fields {
		names[f.Name] = true
	}
	for _, f := range other.fields {
		names[f.Name] = true
	}
	var fields []Field
	for name := range names {
		tf, tok := t.Field(name)
		of, ook := other.Field(name)
		switch {
		case tok && ook:
			fields = append(fields, Field{name, Meet(tf, of)})
		case tok && t.open:
			fields = append(fields, Field{name, tf})
		case ook && other.open:
			fields = append(fields, Field{name, of})
		default:
			return Bottom // one side is closed and lacks a field the other requires
		}
	}
	return NewStruct(fields, t.open && other.open)
}

// Join computes the generalizing (lub) of t and other: the least
// specific type that both t and other refine. Used by the Apply-lift's
// input walk to combine repeated occurrences of the same argument T2
// before HM_FREEZE (spec.md §4.3): generalizing rather than intersecting
// avoids prematurely committing to one occurrence's value while other
// occurrences (and their constraints) are still being discovered.
func Join(t, other Type) Type {
	if t.Equal(other) {
		return t
	}
	if t.kind == KBottom {
		return other
	}
	if other.kind == KBottom {
		return t
	}
	if t.kind != other.kind {
		return Top
	}
	switch t.kind {
	case KNil:
		return Nil
	case KInt:
		return joinScalar(t, other, IntClass)
	case KFlt:
		return joinScalar(t, other, FltClass)
	case KStr:
		return joinScalar(t, other, StrClass)
	case KFunPtr:
		return NewFunPtr(t.fidxs.Union(other.fidxs))
	case KMemPtr:
		return NewMemPtr(t.alias.Union(other.alias))
	case KStruct:
		return joinStruct(t, other)
	}
	return Top
}

func joinScalar(t, other, class Type) Type {
	if t.isConst && other.isConst {
		return class // Equal already handled identical constants above
	}
	return class
}

func joinStruct(t, other Type) Type {
	var fields []Field
	for _, tf := range t.fields {
		if of, ok := other.Field(tf.Name); ok {
			fields = append(fields, Field{tf.Name, Join(tf.Type, of)})
		}
	}
	return NewStruct(fields, t.open || other.open)
}

// Dual reflects a type across the Top/Bottom extremes, leaving classes
// and constants fixed. It exists because spec.md §1 lists it among the
// base lattice collaborator operations; this module does not call it
// internally (no node's hm/val contract requires it), so it is provided
// for completeness and tested directly rather than exercised transitively.
func Dual(t Type) Type {
	switch t.kind {
	case KTop:
		return Bottom
	case KBottom:
		return Top
	default:
		return t
	}
}

// MustNil reports whether t is definitely the nil value.
func MustNil(t Type) bool { return t.kind == KNil }

// AboveCenter reports whether t is still "above the center line": no
// information has been learned about it yet. Used by If.hm (spec.md
// §4.4) to decide whether to wait rather than speculatively unify either
// arm.
func AboveCenter(t Type) bool { return t.kind == KTop }

// Widen maps a constant to its class, and leaves everything else
// unchanged. Used by the root boundary (spec.md §4.6) to give up on
// precise knowledge of arguments to escaping functions.
func Widen(t Type) Type {
	switch t.kind {
	case KInt:
		return IntClass
	case KFlt:
		return FltClass
	case KStr:
		return StrClass
	default:
		return t
	}
}

// String renders a human-readable, deterministic description -- used
// both for debugging and for the printed program output spec.md §6 asks
// for ("root's GCP flow type ... deterministic up to fresh-variable
// naming").
func (t Type) String() string {
	switch t.kind {
	case KTop:
		return "⊤"
	case KBottom:
		return "⊥"
	case KNil:
		return "nil"
	case KInt:
		if t.isConst {
			return strconv.FormatInt(t.i, 10)
		}
		return "int"
	case KFlt:
		if t.isConst {
			return strconv.FormatFloat(t.f, 'g', -1, 64)
		}
		return "flt"
	case KStr:
		if t.isConst {
			return strconv.Quote(t.s)
		}
		return "str"
	case KFunPtr:
		return fmt.Sprintf("fun%v", t.fidxs.Slice())
	case KMemPtr:
		return fmt.Sprintf("mem%v", t.alias.Slice())
	case KStruct:
		s := "@{"
		for i, f := range t.fields {
			if i > 0 {
				s += ","
			}
			s += f.Name.Str() + "=" + f.Type.String()
		}
		if t.open {
			if len(t.fields) > 0 {
				s += ","
			}
			s += "..."
		}
		return s + "}"
	}
	return "?"
}
