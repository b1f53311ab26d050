package parser

import (
	"strconv"

	"github.com/pkg/errors"
	"github.com/grailbio/hmgcp/infer"
	"github.com/grailbio/hmgcp/lattice"
	"github.com/grailbio/hmgcp/symbol"
)

// primitiveArity lists the built-in operators spec.md §6 pre-binds at
// every scope, and how many operands each takes. A name found here is
// parsed straight into an infer.Primitive node -- rather than an
// Apply(Ident(name), args) that would resolve through the engine's
// runtime scope lookup -- whenever it is not locally shadowed by an
// enclosing let at the point of use, matching "shadowable by a local
// let" statically (lets are lexically scoped, so static and dynamic
// shadowing agree here).
var primitiveArity = map[string]struct {
	op    infer.Op
	arity int
}{
	"if":      {infer.OpIf, 3},
	"pair":    {infer.OpPair, 2},
	"triple":  {infer.OpTriple, 3},
	"eq":      {infer.OpEq, 2},
	"eq0":     {infer.OpEq0, 1},
	"isempty": {infer.OpIsEmpty, 1},
	"*":       {infer.OpMul, 2},
	"+":       {infer.OpAdd, 2},
	"dec":     {infer.OpDec, 1},
	"str":     {infer.OpStr, 1},
	"factor":  {infer.OpFactor, 1},
	"notnil":  {infer.OpNotNil, 1},
}

// Parser turns source text into an infer.Syntax tree.
type Parser struct {
	lex   *lexer
	tok   token
	bound map[string]int // count of enclosing let/lambda bindings per name, for shadow tracking
}

// Parse parses the full contents of src as a single top-level
// expression and returns it wrapped in infer.Root, the engine's expected
// entry point.
func Parse(src string) (*infer.Root, error) {
	p := &Parser{lex: newLexer(src), bound: map[string]int{}}
	if err := p.advance(); err != nil {
		return nil, err
	}
	e, err := p.parseFE()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tEOF {
		return nil, errors.Errorf("parser: unexpected trailing input at offset %d", p.tok.pos)
	}
	root := infer.NewRoot(e)
	root.SetPos(infer.Pos(0))
	return root, nil
}

func (p *Parser) advance() error {
	t, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

func (p *Parser) expect(k tokenKind, what string) error {
	if p.tok.kind != k {
		return errors.Errorf("parser: expected %s at offset %d", what, p.tok.pos)
	}
	return p.advance()
}

// parseFE parses `fe ::= e | fe "." id`.
func (p *Parser) parseFE() (infer.Syntax, error) {
	e, err := p.parseE()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tDot {
		dotPos := p.tok.pos
		if err := p.advance(); err != nil {
			return nil, err
		}
		// A field name is usually an identifier, but pair/triple results
		// (spec.md §6: `pair : (a,b) -> @{0:a,1:b}`) carry positional
		// "0"/"1"/"2" field names, which the lexer -- having no parser
		// context -- tokenizes as a plain tNumber rather than tIdent.
		if p.tok.kind != tIdent && p.tok.kind != tNumber {
			return nil, errors.Errorf("parser: expected field name after '.' at offset %d", p.tok.pos)
		}
		name := symbol.Intern(p.tok.text)
		if err := p.advance(); err != nil {
			return nil, err
		}
		f := infer.NewField(name, e)
		f.SetPos(infer.Pos(dotPos))
		e = f
	}
	return e, nil
}

// parseE parses `e ::= number | string | "(" fe fe* ")" | "{" id* "->" fe "}" | id
//                    | id "=" fe ";" fe | "@{" (id "=" fe ",")* "}"`.
func (p *Parser) parseE() (infer.Syntax, error) {
	switch p.tok.kind {
	case tNumber:
		return p.parseNumber()
	case tString:
		pos := p.tok.pos
		s := p.tok.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		c := infer.NewCon(lattice.NewStr(s))
		c.SetPos(infer.Pos(pos))
		return c, nil
	case tLParen:
		return p.parseApply()
	case tLBrace:
		return p.parseLambda()
	case tAtLBrace:
		return p.parseStruct()
	case tIdent:
		return p.parseIdentOrLet()
	default:
		return nil, errors.Errorf("parser: unexpected token at offset %d", p.tok.pos)
	}
}

func (p *Parser) parseNumber() (infer.Syntax, error) {
	text := p.tok.text
	pos := p.tok.pos
	if err := p.advance(); err != nil {
		return nil, err
	}
	if containsDot(text) {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "parser: invalid float literal at offset %d", pos)
		}
		c := infer.NewCon(lattice.NewFlt(f))
		c.SetPos(infer.Pos(pos))
		return c, nil
	}
	v, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return nil, errors.Wrapf(err, "parser: invalid int literal at offset %d", pos)
	}
	c := infer.NewCon(lattice.NewInt(v))
	c.SetPos(infer.Pos(pos))
	return c, nil
}

func containsDot(s string) bool {
	for _, c := range s {
		if c == '.' {
			return true
		}
	}
	return false
}

// parseIdentOrLet parses `id` or `id "=" fe ";" fe`.
func (p *Parser) parseIdentOrLet() (infer.Syntax, error) {
	pos := p.tok.pos
	name := p.tok.text
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.tok.kind == tAssign {
		if err := p.advance(); err != nil {
			return nil, err
		}
		def, err := p.parseFE()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tSemi, "';'"); err != nil {
			return nil, err
		}
		sym := symbol.Intern(name)
		p.bound[name]++
		body, err := p.parseFE()
		if err != nil {
			return nil, err
		}
		p.bound[name]--
		let := infer.NewLet(sym, def, body)
		let.SetPos(infer.Pos(pos))
		return let, nil
	}
	id := infer.NewIdent(symbol.Intern(name))
	id.SetPos(infer.Pos(pos))
	return id, nil
}

// parseApply parses `"(" fe fe* ")"`, recognizing an un-shadowed
// primitive name in head position as an infer.Primitive rather than a
// generic Apply.
func (p *Parser) parseApply() (infer.Syntax, error) {
	pos := p.tok.pos
	if err := p.expect(tLParen, "'('"); err != nil {
		return nil, err
	}

	headName := ""
	if p.tok.kind == tIdent {
		headName = p.tok.text
	}
	isPrimitive := headName != "" && p.bound[headName] == 0
	var prim *primitiveEntry
	if isPrimitive {
		if e, ok := primitiveArity[headName]; ok {
			prim = &primitiveEntry{op: e.op, arity: e.arity}
		}
	}

	if prim != nil && prim.op == infer.OpIf {
		return p.parseIf(pos)
	}

	head, err := p.parseFE()
	if err != nil {
		return nil, err
	}
	var args []infer.Syntax
	for p.tok.kind != tRParen {
		a, err := p.parseFE()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
	}
	if err := p.advance(); err != nil { // consume ')'
		return nil, err
	}

	if prim != nil && len(args) == prim.arity {
		n := infer.NewPrimitive(prim.op, args...)
		n.SetPos(infer.Pos(pos))
		return n, nil
	}
	app := infer.NewApply(head, args...)
	app.SetPos(infer.Pos(pos))
	return app, nil
}

type primitiveEntry struct {
	op    infer.Op
	arity int
}

// parseIf parses `(if pred then else)`, synthesizing a NotNil-narrowing
// let around then when pred is a bare identifier (spec.md §6: "The
// parser synthesizes, for (if id then else), a NotNil(id)-guarded let
// that narrows id inside then").
func (p *Parser) parseIf(pos int) (infer.Syntax, error) {
	if err := p.advance(); err != nil { // consume 'if'
		return nil, err
	}
	predName := ""
	predPos := p.tok.pos
	if p.tok.kind == tIdent {
		predName = p.tok.text
	}
	pred, err := p.parseFE()
	if err != nil {
		return nil, err
	}
	thenE, err := p.parseFE()
	if err != nil {
		return nil, err
	}
	elseE, err := p.parseFE()
	if err != nil {
		return nil, err
	}
	if err := p.expect(tRParen, "')'"); err != nil {
		return nil, err
	}
	if _, isIdent := pred.(*infer.Ident); isIdent && predName != "" {
		sym := symbol.Intern(predName)
		narrowedIdent := infer.NewIdent(sym)
		narrowedIdent.SetPos(infer.Pos(predPos))
		narrowed := infer.NewPrimitive(infer.OpNotNil, narrowedIdent)
		narrowed.SetPos(infer.Pos(predPos))
		narrowedLet := infer.NewLet(sym, narrowed, thenE)
		narrowedLet.SetPos(infer.Pos(predPos))
		thenE = narrowedLet
	}
	n := infer.NewPrimitive(infer.OpIf, pred, thenE, elseE)
	n.SetPos(infer.Pos(pos))
	return n, nil
}

// parseLambda parses `"{" id* "->" fe "}"`.
func (p *Parser) parseLambda() (infer.Syntax, error) {
	pos := p.tok.pos
	if err := p.expect(tLBrace, "'{'"); err != nil {
		return nil, err
	}
	var params []symbol.ID
	var names []string
	for p.tok.kind == tIdent {
		names = append(names, p.tok.text)
		params = append(params, symbol.Intern(p.tok.text))
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if err := p.expect(tArrow, "'->'"); err != nil {
		return nil, err
	}
	for _, n := range names {
		p.bound[n]++
	}
	body, err := p.parseFE()
	if err != nil {
		return nil, err
	}
	for _, n := range names {
		p.bound[n]--
	}
	if err := p.expect(tRBrace, "'}'"); err != nil {
		return nil, err
	}
	lam := infer.NewLambda(params, body)
	lam.SetPos(infer.Pos(pos))
	return lam, nil
}

// parseStruct parses `"@{" (id "=" fe ",")* "}"`.
func (p *Parser) parseStruct() (infer.Syntax, error) {
	pos := p.tok.pos
	if err := p.advance(); err != nil { // consume '@{'
		return nil, err
	}
	var names []symbol.ID
	var values []infer.Syntax
	for p.tok.kind == tIdent {
		name := symbol.Intern(p.tok.text)
		if err := p.advance(); err != nil {
			return nil, err
		}
		if err := p.expect(tAssign, "'='"); err != nil {
			return nil, err
		}
		v, err := p.parseFE()
		if err != nil {
			return nil, err
		}
		names = append(names, name)
		values = append(values, v)
		if p.tok.kind == tComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}
	if err := p.expect(tRBrace, "'}'"); err != nil {
		return nil, err
	}
	sl := infer.NewStructLit(names, values)
	sl.SetPos(infer.Pos(pos))
	return sl, nil
}
