package parsetree

import (
	"strings"

	"goseldon/domain/core"
	"goseldon/domain/dataset"
)

// Comparison is the relation between the normalised expression and zero
type Comparison string

const (
	LessEqualZero Comparison = "<="
	EqualZero     Comparison = "=="
)

// parser is a recursive-descent parser producing nodes directly.
//
//	constraint := expr [ ("<=" | ">=" | "==") expr ] EOF
//	expr       := term { ("+" | "-") term }
//	term       := unary { ("*" | "/") unary }
//	unary      := ("-" | "+") unary | power
//	power      := primary [ ("**" | "^") unary ]
//	primary    := NUMBER | IDENT [ "|" mask ] | IDENT "(" args ")" | "(" expr ")"
//	mask       := "[" cond { "," cond } "]" | cond
//	cond       := IDENT [ "=" ["-"] NUMBER ]
type parser struct {
	src   string
	toks  []token
	pos   int
	known map[string]NodeKind
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorf(t token, format string, args ...interface{}) error {
	return core.NewParseError(p.src, t.pos, format, args...)
}

func (p *parser) expect(kind tokenKind, what string) (token, error) {
	t := p.next()
	if t.kind != kind {
		return t, p.errorf(t, "expected %s, found %s", what, describe(t))
	}
	return t, nil
}

func describe(t token) string {
	if t.kind == tokEOF {
		return "end of input"
	}
	return "'" + t.text + "'"
}

// parseConstraint returns the normalised root and its comparison
func parseConstraint(src string, known map[string]NodeKind) (*Node, Comparison, error) {
	if strings.TrimSpace(src) == "" {
		return nil, "", core.NewParseError(src, -1, "empty constraint")
	}
	toks, err := lex(src)
	if err != nil {
		return nil, "", err
	}
	p := &parser{src: src, toks: toks, known: known}

	lhs, err := p.parseExpr()
	if err != nil {
		return nil, "", err
	}
	cmpTok := p.peek()
	if cmpTok.kind == tokEOF {
		return lhs, LessEqualZero, nil
	}
	if cmpTok.kind != tokCompare {
		return nil, "", p.errorf(cmpTok, "unexpected %s after expression", describe(cmpTok))
	}
	p.next()
	rhs, err := p.parseExpr()
	if err != nil {
		return nil, "", err
	}
	if t := p.peek(); t.kind != tokEOF {
		if t.kind == tokCompare {
			return nil, "", p.errorf(t, "only one comparison is allowed")
		}
		return nil, "", p.errorf(t, "unexpected %s after expression", describe(t))
	}

	rhsZero := rhs.Kind == ConstantNode && rhs.Value == 0
	switch cmpTok.text {
	case "<=":
		if rhsZero {
			return lhs, LessEqualZero, nil
		}
		return newInternal(OpSub, lhs, rhs), LessEqualZero, nil
	case ">=":
		if rhsZero {
			return negate(lhs), LessEqualZero, nil
		}
		return newInternal(OpSub, rhs, lhs), LessEqualZero, nil
	default:
		if rhsZero {
			return lhs, EqualZero, nil
		}
		return newInternal(OpSub, lhs, rhs), EqualZero, nil
	}
}

// negate folds literals and wraps everything else in mult(-1, x)
func negate(n *Node) *Node {
	if n.Kind == ConstantNode {
		return newConstant(-n.Value)
	}
	return newInternal(OpMult, newConstant(-1), n)
}

func (p *parser) parseExpr() (*Node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp || (t.text != "+" && t.text != "-") {
			return left, nil
		}
		p.next()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		op, _ := LookupInfix(t.text)
		left = newInternal(op, left, right)
	}
}

func (p *parser) parseTerm() (*Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp || (t.text != "*" && t.text != "/") {
			return left, nil
		}
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		op, _ := LookupInfix(t.text)
		left = newInternal(op, left, right)
	}
}

func (p *parser) parseUnary() (*Node, error) {
	t := p.peek()
	if t.kind == tokOp && (t.text == "-" || t.text == "+") {
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if t.text == "+" {
			return operand, nil
		}
		return negate(operand), nil
	}
	return p.parsePower()
}

func (p *parser) parsePower() (*Node, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	t := p.peek()
	if t.kind == tokOp && (t.text == "**" || t.text == "^") {
		p.next()
		exponent, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return newInternal(OpPow, base, exponent), nil
	}
	return base, nil
}

func (p *parser) parsePrimary() (*Node, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		return newConstant(t.num), nil
	case tokLParen:
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return inner, nil
	case tokIdent:
		if p.peek().kind == tokLParen {
			return p.parseCall(t)
		}
		return p.parseStatistic(t)
	case tokCompare:
		return nil, p.errorf(t, "comparison %q in the wrong place", t.text)
	}
	return nil, p.errorf(t, "expected a number, statistic or '(', found %s", describe(t))
}

func (p *parser) parseCall(name token) (*Node, error) {
	op, ok := LookupFunction(name.text)
	if !ok {
		return nil, p.errorf(name, "unknown function %q", name.text)
	}
	p.next() // (
	var args []*Node
	if p.peek().kind != tokRParen {
		for {
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.peek().kind != tokComma {
				break
			}
			p.next()
		}
	}
	if _, err := p.expect(tokRParen, "')'"); err != nil {
		return nil, err
	}
	if len(args) != op.Arity() {
		return nil, p.errorf(name, "%s takes %d argument(s), got %d", name.text, op.Arity(), len(args))
	}
	if op.Arity() == 1 {
		return newInternal(op, args[0], nil), nil
	}
	return newInternal(op, args[0], args[1]), nil
}

func (p *parser) parseStatistic(name token) (*Node, error) {
	kind, ok := p.known[name.text]
	if !ok {
		if _, isFunc := LookupFunction(name.text); isFunc {
			return nil, p.errorf(name, "function %q used without arguments", name.text)
		}
		return nil, p.errorf(name, "unknown statistic %q", name.text)
	}
	var conds []dataset.Condition
	if p.peek().kind == tokPipe {
		pipe := p.next()
		if kind == MEDBaseNode {
			return nil, p.errorf(pipe, "%s does not take a mask", name.text)
		}
		var err error
		if conds, err = p.parseMask(); err != nil {
			return nil, err
		}
	}
	return newBase(kind, name.text, conds), nil
}

func (p *parser) parseMask() ([]dataset.Condition, error) {
	if p.peek().kind != tokLBracket {
		c, err := p.parseCondition()
		if err != nil {
			return nil, err
		}
		return []dataset.Condition{c}, nil
	}
	open := p.next()
	var conds []dataset.Condition
	seen := map[string]bool{}
	for {
		c, err := p.parseCondition()
		if err != nil {
			return nil, err
		}
		if seen[c.Column] {
			return nil, p.errorf(open, "column %q appears twice in mask", c.Column)
		}
		seen[c.Column] = true
		conds = append(conds, c)
		t := p.next()
		if t.kind == tokRBracket {
			return conds, nil
		}
		if t.kind != tokComma {
			return nil, p.errorf(t, "malformed mask: expected ',' or ']', found %s", describe(t))
		}
	}
}

func (p *parser) parseCondition() (dataset.Condition, error) {
	col := p.next()
	if col.kind != tokIdent {
		return dataset.Condition{}, p.errorf(col, "malformed mask: expected a column name, found %s", describe(col))
	}
	c := dataset.Condition{Column: col.text, Value: 1}
	if p.peek().kind != tokAssign {
		return c, nil
	}
	p.next()
	sign := 1.0
	if t := p.peek(); t.kind == tokOp && t.text == "-" {
		p.next()
		sign = -1
	}
	v := p.next()
	if v.kind != tokNumber {
		return c, p.errorf(v, "malformed mask: expected a value for %q, found %s", col.text, describe(v))
	}
	c.Value = sign * v.num
	return c, nil
}
