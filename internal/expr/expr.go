// Package expr parses and evaluates the restricted formula language used by
// expression params. A formula may use numbers, the variable t, the
// constant PI, the operators + - * / % with parentheses and unary minus,
// and calls to sin, cos, tan, abs, min, max, pow, sqrt. Names may carry a
// "Math." prefix. Nothing else is accepted.
package expr

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrSyntax is wrapped by every parse error.
var ErrSyntax = errors.New("expression syntax error")

type function struct {
	arity int // -1 = variadic, at least one argument
	call  func(args []float64) float64
}

var functions = map[string]function{
	"sin":  {1, func(a []float64) float64 { return math.Sin(a[0]) }},
	"cos":  {1, func(a []float64) float64 { return math.Cos(a[0]) }},
	"tan":  {1, func(a []float64) float64 { return math.Tan(a[0]) }},
	"abs":  {1, func(a []float64) float64 { return math.Abs(a[0]) }},
	"sqrt": {1, func(a []float64) float64 { return math.Sqrt(a[0]) }},
	"pow":  {2, func(a []float64) float64 { return math.Pow(a[0], a[1]) }},
	"min": {-1, func(a []float64) float64 {
		m := a[0]
		for _, v := range a[1:] {
			m = math.Min(m, v)
		}
		return m
	}},
	"max": {-1, func(a []float64) float64 {
		m := a[0]
		for _, v := range a[1:] {
			m = math.Max(m, v)
		}
		return m
	}},
}

// Expr is a parsed formula. It is immutable and safe for concurrent use.
type Expr struct {
	src  string
	root node
}

// Parse compiles src.
func Parse(src string) (*Expr, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	root, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, fmt.Errorf("%w: unexpected %q at %d", ErrSyntax, tok.text, tok.pos)
	}
	return &Expr{src: src, root: root}, nil
}

// Eval evaluates the formula with the variable t bound.
func (e *Expr) Eval(t float64) float64 {
	return e.root.eval(t)
}

// String returns the source text.
func (e *Expr) String() string { return e.src }

// Eval parses and evaluates src in one step.
func Eval(src string, t float64) (float64, error) {
	e, err := Parse(src)
	if err != nil {
		return 0, err
	}
	return e.Eval(t), nil
}

// --- AST ---

type node interface {
	eval(t float64) float64
}

type numberNode float64

func (n numberNode) eval(float64) float64 { return float64(n) }

type varNode struct{}

func (varNode) eval(t float64) float64 { return t }

type negNode struct{ x node }

func (n negNode) eval(t float64) float64 { return -n.x.eval(t) }

type binaryNode struct {
	op   byte
	l, r node
}

func (n binaryNode) eval(t float64) float64 {
	l, r := n.l.eval(t), n.r.eval(t)
	switch n.op {
	case '+':
		return l + r
	case '-':
		return l - r
	case '*':
		return l * r
	case '/':
		return l / r
	case '%':
		return math.Mod(l, r)
	}
	return math.NaN()
}

type callNode struct {
	fn   function
	args []node
}

func (n callNode) eval(t float64) float64 {
	vals := make([]float64, len(n.args))
	for i, a := range n.args {
		vals[i] = a.eval(t)
	}
	return n.fn.call(vals)
}

// --- lexer ---

type tokKind int

const (
	tokEOF tokKind = iota
	tokNum
	tokIdent
	tokOp
)

type token struct {
	kind tokKind
	text string
	pos  int
}

func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case isDigit(c) || (c == '.' && i+1 < len(src) && isDigit(src[i+1])):
			start := i
			for i < len(src) && (isDigit(src[i]) || src[i] == '.') {
				i++
			}
			if i < len(src) && (src[i] == 'e' || src[i] == 'E') {
				i++
				if i < len(src) && (src[i] == '+' || src[i] == '-') {
					i++
				}
				for i < len(src) && isDigit(src[i]) {
					i++
				}
			}
			toks = append(toks, token{tokNum, src[start:i], start})
		case isIdentStart(c):
			start := i
			for i < len(src) && (isIdentStart(src[i]) || isDigit(src[i]) || src[i] == '.') {
				i++
			}
			toks = append(toks, token{tokIdent, src[start:i], start})
		case strings.IndexByte("+-*/%(),", c) >= 0:
			toks = append(toks, token{tokOp, string(c), i})
			i++
		default:
			return nil, fmt.Errorf("%w: unexpected character %q at %d", ErrSyntax, c, i)
		}
	}
	toks = append(toks, token{tokEOF, "", len(src)})
	return toks, nil
}

func isDigit(c byte) bool      { return c >= '0' && c <= '9' }
func isIdentStart(c byte) bool { return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }

// --- parser ---

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	tok := p.toks[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) isOp(ops string) (byte, bool) {
	tok := p.peek()
	if tok.kind == tokOp && strings.IndexByte(ops, tok.text[0]) >= 0 {
		return tok.text[0], true
	}
	return 0, false
}

func (p *parser) expect(op string) error {
	tok := p.next()
	if tok.kind != tokOp || tok.text != op {
		return fmt.Errorf("%w: expected %q at %d", ErrSyntax, op, tok.pos)
	}
	return nil
}

// sum := product (('+'|'-') product)*
func (p *parser) parseSum() (node, error) {
	left, err := p.parseProduct()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.isOp("+-")
		if !ok {
			return left, nil
		}
		p.next()
		right, err := p.parseProduct()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, l: left, r: right}
	}
}

// product := unary (('*'|'/'|'%') unary)*
func (p *parser) parseProduct() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.isOp("*/%")
		if !ok {
			return left, nil
		}
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, l: left, r: right}
	}
}

// unary := ('-'|'+') unary | primary
func (p *parser) parseUnary() (node, error) {
	if op, ok := p.isOp("+-"); ok {
		p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if op == '-' {
			return negNode{x}, nil
		}
		return x, nil
	}
	return p.parsePrimary()
}

// primary := number | 't' | 'PI' | ident '(' args ')' | '(' sum ')'
func (p *parser) parsePrimary() (node, error) {
	tok := p.next()
	switch tok.kind {
	case tokNum:
		f, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad number %q at %d", ErrSyntax, tok.text, tok.pos)
		}
		return numberNode(f), nil

	case tokIdent:
		name := strings.TrimPrefix(tok.text, "Math.")
		switch name {
		case "t":
			return varNode{}, nil
		case "PI":
			return numberNode(math.Pi), nil
		}
		fn, ok := functions[name]
		if !ok {
			return nil, fmt.Errorf("%w: unknown name %q at %d", ErrSyntax, tok.text, tok.pos)
		}
		return p.parseCall(name, fn, tok.pos)

	case tokOp:
		if tok.text == "(" {
			inner, err := p.parseSum()
			if err != nil {
				return nil, err
			}
			if err := p.expect(")"); err != nil {
				return nil, err
			}
			return inner, nil
		}
	}
	return nil, fmt.Errorf("%w: unexpected %q at %d", ErrSyntax, tok.text, tok.pos)
}

func (p *parser) parseCall(name string, fn function, pos int) (node, error) {
	if err := p.expect("("); err != nil {
		return nil, err
	}
	var args []node
	if _, ok := p.isOp(")"); !ok {
		for {
			arg, err := p.parseSum()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if _, ok := p.isOp(","); !ok {
				break
			}
			p.next()
		}
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}

	if fn.arity >= 0 && len(args) != fn.arity {
		return nil, fmt.Errorf("%w: %s takes %d argument(s), got %d at %d", ErrSyntax, name, fn.arity, len(args), pos)
	}
	if fn.arity < 0 && len(args) == 0 {
		return nil, fmt.Errorf("%w: %s needs at least one argument at %d", ErrSyntax, name, pos)
	}
	return callNode{fn: fn, args: args}, nil
}
