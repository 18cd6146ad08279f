package lite

import (
	"fmt"
)

type expr interface {
	position() int
}

type numberLit struct {
	pos int
	val float64
}

type stringLit struct {
	pos int
	val string
}

type identExpr struct {
	pos  int
	name string
}

// callExpr is either a builtin call or an index into a variable; the
// evaluator decides once it knows what name refers to.
type callExpr struct {
	pos  int
	name string
	args []expr
}

type unaryExpr struct {
	pos int
	op  string
	x   expr
}

type binaryExpr struct {
	pos  int
	op   string
	l, r expr
}

type rangeExpr struct {
	pos               int
	start, step, stop expr
}

type transposeExpr struct {
	pos int
	x   expr
}

type matrixLit struct {
	pos  int
	rows [][]expr
}

func (e *numberLit) position() int     { return e.pos }
func (e *stringLit) position() int     { return e.pos }
func (e *identExpr) position() int     { return e.pos }
func (e *callExpr) position() int      { return e.pos }
func (e *unaryExpr) position() int     { return e.pos }
func (e *binaryExpr) position() int    { return e.pos }
func (e *rangeExpr) position() int     { return e.pos }
func (e *transposeExpr) position() int { return e.pos }
func (e *matrixLit) position() int     { return e.pos }

type stmtKind int

const (
	stmtExpr stmtKind = iota
	stmtAssign
	stmtCommand
)

type statement struct {
	kind   stmtKind
	target string
	x      expr
	cmd    string
	args   []string
	echo   bool
}

// commandWords may be written in command syntax (clear a b, close all).
var commandWords = map[string]bool{
	"clear": true,
	"close": true,
	"clc":   true,
}

type parser struct {
	toks     []token
	i        int
	inMatrix bool
}

// parse turns command text into a statement list.
func parse(src string) ([]statement, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	return p.program()
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) peekAt(n int) token {
	if p.i+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.i+n]
}

func (p *parser) next() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *parser) isSeparator(t token) bool {
	return t.kind == tokNewline || t.kind == tokEOF || t.is(tokOp, ";") || t.is(tokOp, ",")
}

func (p *parser) expect(op string) error {
	t := p.next()
	if !t.is(tokOp, op) {
		return p.unexpected(t, fmt.Sprintf("expected %q", op))
	}
	return nil
}

func (p *parser) unexpected(t token, detail string) error {
	switch t.kind {
	case tokEOF:
		return fmt.Errorf("unexpected end of input: %s", detail)
	case tokNewline:
		return fmt.Errorf("unexpected end of line at %d: %s", t.pos, detail)
	case tokString:
		return fmt.Errorf("unexpected string at %d: %s", t.pos, detail)
	}
	return fmt.Errorf("unexpected %q at %d: %s", t.text, t.pos, detail)
}

func (p *parser) program() ([]statement, error) {
	var stmts []statement
	for {
		for t := p.peek(); t.kind != tokEOF && p.isSeparator(t); t = p.peek() {
			p.next()
		}
		if p.peek().kind == tokEOF {
			return stmts, nil
		}

		st, err := p.statement()
		if err != nil {
			return nil, err
		}

		t := p.peek()
		if !p.isSeparator(t) {
			return nil, p.unexpected(t, "expected end of statement")
		}
		st.echo = !t.is(tokOp, ";")
		stmts = append(stmts, st)
	}
}

func (p *parser) statement() (statement, error) {
	t := p.peek()
	if t.kind == tokIdent {
		after := p.peekAt(1)
		if after.is(tokOp, "=") {
			p.next()
			p.next()
			x, err := p.expression()
			if err != nil {
				return statement{}, err
			}
			return statement{kind: stmtAssign, target: t.text, x: x}, nil
		}
		if commandWords[t.text] && (p.isSeparator(after) || (after.kind == tokIdent && after.spaceBefore)) {
			p.next()
			st := statement{kind: stmtCommand, cmd: t.text}
			for p.peek().kind == tokIdent {
				st.args = append(st.args, p.next().text)
			}
			return st, nil
		}
	}

	x, err := p.expression()
	if err != nil {
		return statement{}, err
	}
	return statement{kind: stmtExpr, x: x}, nil
}

// expression parses a range, the loosest binding construct.
func (p *parser) expression() (expr, error) {
	start, err := p.additive()
	if err != nil {
		return nil, err
	}
	if !p.peek().is(tokOp, ":") {
		return start, nil
	}
	pos := p.next().pos
	second, err := p.additive()
	if err != nil {
		return nil, err
	}
	if !p.peek().is(tokOp, ":") {
		return &rangeExpr{pos: pos, start: start, stop: second}, nil
	}
	p.next()
	third, err := p.additive()
	if err != nil {
		return nil, err
	}
	return &rangeExpr{pos: pos, start: start, step: second, stop: third}, nil
}

func (p *parser) additive() (expr, error) {
	l, err := p.multiplicative()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if !t.is(tokOp, "+") && !t.is(tokOp, "-") {
			return l, nil
		}
		// Inside brackets "[1 -2]" is two elements while "[1 - 2]" is one.
		if p.inMatrix && t.spaceBefore && !p.peekAt(1).spaceBefore {
			return l, nil
		}
		p.next()
		r, err := p.multiplicative()
		if err != nil {
			return nil, err
		}
		l = &binaryExpr{pos: t.pos, op: t.text, l: l, r: r}
	}
}

func (p *parser) multiplicative() (expr, error) {
	l, err := p.unary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp || (t.text != "*" && t.text != "/" && t.text != ".*" && t.text != "./") {
			return l, nil
		}
		p.next()
		r, err := p.unary()
		if err != nil {
			return nil, err
		}
		l = &binaryExpr{pos: t.pos, op: t.text, l: l, r: r}
	}
}

// unary binds looser than power, so -2^2 is -4.
func (p *parser) unary() (expr, error) {
	t := p.peek()
	if t.is(tokOp, "-") || t.is(tokOp, "+") {
		p.next()
		x, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &unaryExpr{pos: t.pos, op: t.text, x: x}, nil
	}
	return p.power()
}

func (p *parser) power() (expr, error) {
	l, err := p.postfix()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if !t.is(tokOp, "^") && !t.is(tokOp, ".^") {
			return l, nil
		}
		p.next()
		r, err := p.powerOperand()
		if err != nil {
			return nil, err
		}
		l = &binaryExpr{pos: t.pos, op: t.text, l: l, r: r}
	}
}

// powerOperand allows a sign on the exponent: 2^-1.
func (p *parser) powerOperand() (expr, error) {
	t := p.peek()
	if t.is(tokOp, "-") || t.is(tokOp, "+") {
		p.next()
		x, err := p.powerOperand()
		if err != nil {
			return nil, err
		}
		return &unaryExpr{pos: t.pos, op: t.text, x: x}, nil
	}
	return p.postfix()
}

func (p *parser) postfix() (expr, error) {
	x, err := p.primary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if !t.is(tokOp, "'") && !t.is(tokOp, ".'") {
			return x, nil
		}
		p.next()
		x = &transposeExpr{pos: t.pos, x: x}
	}
}

func (p *parser) primary() (expr, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		return &numberLit{pos: t.pos, val: t.num}, nil
	case tokString:
		return &stringLit{pos: t.pos, val: t.text}, nil
	case tokIdent:
		open := p.peek()
		if open.is(tokOp, "(") && !(p.inMatrix && open.spaceBefore) {
			p.next()
			args, err := p.arguments()
			if err != nil {
				return nil, err
			}
			return &callExpr{pos: t.pos, name: t.text, args: args}, nil
		}
		return &identExpr{pos: t.pos, name: t.text}, nil
	case tokOp:
		switch t.text {
		case "(":
			saved := p.inMatrix
			p.inMatrix = false
			x, err := p.expression()
			p.inMatrix = saved
			if err != nil {
				return nil, err
			}
			if err := p.expect(")"); err != nil {
				return nil, err
			}
			return x, nil
		case "[":
			return p.matrix(t.pos)
		}
	}
	return nil, p.unexpected(t, "expected a value")
}

func (p *parser) arguments() ([]expr, error) {
	saved := p.inMatrix
	p.inMatrix = false
	defer func() { p.inMatrix = saved }()

	var args []expr
	if p.peek().is(tokOp, ")") {
		p.next()
		return args, nil
	}
	for {
		x, err := p.expression()
		if err != nil {
			return nil, err
		}
		args = append(args, x)
		t := p.next()
		if t.is(tokOp, ")") {
			return args, nil
		}
		if !t.is(tokOp, ",") {
			return nil, p.unexpected(t, `expected "," or ")"`)
		}
	}
}

func (p *parser) matrix(pos int) (expr, error) {
	saved := p.inMatrix
	p.inMatrix = true
	defer func() { p.inMatrix = saved }()

	lit := &matrixLit{pos: pos}
	var row []expr
	flush := func() {
		if len(row) > 0 {
			lit.rows = append(lit.rows, row)
		}
		row = nil
	}
	for {
		t := p.peek()
		switch {
		case t.is(tokOp, "]"):
			p.next()
			flush()
			return lit, nil
		case t.is(tokOp, ";") || t.kind == tokNewline:
			p.next()
			flush()
		case t.is(tokOp, ","):
			p.next()
		case t.kind == tokEOF:
			return nil, p.unexpected(t, `expected "]"`)
		default:
			x, err := p.expression()
			if err != nil {
				return nil, err
			}
			row = append(row, x)
		}
	}
}
