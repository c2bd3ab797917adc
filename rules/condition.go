package rules

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// Expr is a parsed condition. The only implementations are *Comparison, *And, *Or and *Not.
type Expr interface {
	String() string
	isExpr()
}

// Operator is a comparison operator
type Operator string

const (
	OpEqual    Operator = "=="
	OpNotEqual Operator = "!="
)

// LiteralKind identifies how a literal was written
type LiteralKind int

const (
	LiteralString LiteralKind = iota
	LiteralNumber
	LiteralBool
)

// Literal is the right-hand side of a comparison
type Literal struct {
	Kind   LiteralKind
	Text   string
	Number float64
	Bool   bool
}

func (l Literal) String() string {
	switch l.Kind {
	case LiteralNumber:
		return l.Text
	case LiteralBool:
		return strconv.FormatBool(l.Bool)
	default:
		return "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(l.Text) + "'"
	}
}

// Comparison tests one answer against a literal
type Comparison struct {
	Question string
	Op       Operator
	Value    Literal
	// Pos is the offset of the question id in the source expression
	Pos int
}

// And is true when both operands are true
type And struct{ Left, Right Expr }

// Or is true when either operand is true
type Or struct{ Left, Right Expr }

// Not negates its operand
type Not struct{ Operand Expr }

func (*Comparison) isExpr() {}
func (*And) isExpr()        {}
func (*Or) isExpr()         {}
func (*Not) isExpr()        {}

func (c *Comparison) String() string {
	return c.Question + " " + string(c.Op) + " " + c.Value.String()
}

func (a *And) String() string { return "(" + a.Left.String() + " and " + a.Right.String() + ")" }
func (o *Or) String() string  { return "(" + o.Left.String() + " or " + o.Right.String() + ")" }
func (n *Not) String() string { return "not " + n.Operand.String() }

// References returns the question ids an expression reads, in first-seen order
func References(e Expr) []string {
	var ids []string
	seen := make(map[string]bool)
	var walk func(Expr)
	walk = func(e Expr) {
		switch n := e.(type) {
		case *Comparison:
			if !seen[n.Question] {
				seen[n.Question] = true
				ids = append(ids, n.Question)
			}
		case *And:
			walk(n.Left)
			walk(n.Right)
		case *Or:
			walk(n.Left)
			walk(n.Right)
		case *Not:
			walk(n.Operand)
		}
	}
	walk(e)
	return ids
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokNumber
	tokTrue
	tokFalse
	tokEq
	tokNeq
	tokAnd
	tokOr
	tokNot
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string // raw source text of the token
	val  string // decoded value for strings
	pos  int
}

var keywords = map[string]tokenKind{
	"and":   tokAnd,
	"or":    tokOr,
	"not":   tokNot,
	"true":  tokTrue,
	"false": tokFalse,
}

// ParseCondition parses a boolean condition expression. The always shortcut is not
// part of the grammar; callers check DocumentRule.IsAlways first.
func ParseCondition(expression string) (Expr, error) {
	tokens, err := lex(expression)
	if err != nil {
		return nil, err
	}

	p := &parser{src: expression, tokens: tokens}
	if p.peek().kind == tokEOF {
		return nil, p.errorAt(p.peek(), "empty condition")
	}

	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.errorAt(t, "unexpected token after expression")
	}
	return e, nil
}

func lex(src string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			tokens = append(tokens, token{kind: tokLParen, text: "(", pos: i})
			i++
		case c == ')':
			tokens = append(tokens, token{kind: tokRParen, text: ")", pos: i})
			i++
		case c == '=' || c == '!':
			if i+1 < len(src) && src[i+1] == '=' {
				kind := tokEq
				if c == '!' {
					kind = tokNeq
				}
				tokens = append(tokens, token{kind: kind, text: src[i : i+2], pos: i})
				i += 2
				continue
			}
			return nil, syntaxError(src, i, i+1, "unexpected character")
		case c == '\'':
			t, next, err := lexString(src, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, t)
			i = next
		case isDigit(c) || ((c == '-' || c == '+') && i+1 < len(src) && isDigit(src[i+1])):
			start := i
			i++
			for i < len(src) && isDigit(src[i]) {
				i++
			}
			if i < len(src) && src[i] == '.' {
				i++
				if i >= len(src) || !isDigit(src[i]) {
					return nil, syntaxError(src, start, i, "malformed number")
				}
				for i < len(src) && isDigit(src[i]) {
					i++
				}
			}
			if i < len(src) && isIdentChar(src[i]) {
				return nil, syntaxError(src, start, i+1, "malformed number")
			}
			tokens = append(tokens, token{kind: tokNumber, text: src[start:i], pos: start})
		case isIdentStart(c):
			start := i
			for i < len(src) && isIdentChar(src[i]) {
				i++
			}
			word := src[start:i]
			kind, ok := keywords[strings.ToLower(word)]
			if !ok {
				kind = tokIdent
			}
			tokens = append(tokens, token{kind: kind, text: word, pos: start})
		default:
			return nil, syntaxError(src, i, i+1, "unexpected character")
		}
	}
	tokens = append(tokens, token{kind: tokEOF, pos: len(src)})
	return tokens, nil
}

func lexString(src string, start int) (token, int, error) {
	var b strings.Builder
	i := start + 1
	for i < len(src) {
		switch src[i] {
		case '\\':
			if i+1 < len(src) && (src[i+1] == '\'' || src[i+1] == '\\') {
				b.WriteByte(src[i+1])
				i += 2
				continue
			}
			return token{}, 0, syntaxError(src, i, i+2, "invalid escape sequence")
		case '\'':
			return token{kind: tokString, text: src[start : i+1], val: b.String(), pos: start}, i + 1, nil
		default:
			b.WriteByte(src[i])
			i++
		}
	}
	return token{}, 0, syntaxError(src, start, len(src), "unterminated string literal")
}

type parser struct {
	src    string
	tokens []token
	pos    int
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOr {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &Or{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokAnd {
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &And{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (Expr, error) {
	if p.peek().kind == tokNot {
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Not{Operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Expr, error) {
	t := p.peek()
	switch t.kind {
	case tokLParen:
		p.next()
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if closing := p.peek(); closing.kind != tokRParen {
			return nil, p.errorAt(closing, "expected ')'")
		}
		p.next()
		return e, nil
	case tokIdent:
		return p.parseComparison()
	case tokEOF:
		return nil, p.errorAt(t, "unexpected end of condition, expected question id")
	default:
		return nil, p.errorAt(t, "expected question id")
	}
}

func (p *parser) parseComparison() (Expr, error) {
	ident := p.next()

	var op Operator
	switch t := p.peek(); t.kind {
	case tokEq:
		op = OpEqual
	case tokNeq:
		op = OpNotEqual
	default:
		return nil, p.errorAt(t, "expected '==' or '!=' after "+ident.text)
	}
	p.next()

	lit, err := p.parseLiteral()
	if err != nil {
		return nil, err
	}
	return &Comparison{Question: ident.text, Op: op, Value: lit, Pos: ident.pos}, nil
}

func (p *parser) parseLiteral() (Literal, error) {
	t := p.peek()
	switch t.kind {
	case tokString:
		p.next()
		return Literal{Kind: LiteralString, Text: t.val}, nil
	case tokNumber:
		n, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return Literal{}, p.errorAt(t, "malformed number")
		}
		p.next()
		return Literal{Kind: LiteralNumber, Text: t.text, Number: n}, nil
	case tokTrue, tokFalse:
		p.next()
		return Literal{Kind: LiteralBool, Text: strings.ToLower(t.text), Bool: t.kind == tokTrue}, nil
	case tokEOF:
		return Literal{}, p.errorAt(t, "unexpected end of condition, expected a literal")
	default:
		return Literal{}, p.errorAt(t, "expected a quoted string, number, true or false")
	}
}

func (p *parser) errorAt(t token, msg string) error {
	end := t.pos + len(t.text)
	if t.kind == tokEOF {
		// point at the last token so the message carries some context
		if p.pos > 0 {
			prev := p.tokens[p.pos-1]
			return &ConditionSyntaxError{Expression: p.src, Offset: utf8.RuneCountInString(p.src[:t.pos]), Fragment: prev.text, Message: msg}
		}
	}
	return syntaxError(p.src, t.pos, end, msg)
}

func syntaxError(src string, start, end int, msg string) *ConditionSyntaxError {
	if end > len(src) {
		end = len(src)
	}
	// never split a multi-byte character
	for end < len(src) && !utf8.RuneStart(src[end]) {
		end++
	}
	return &ConditionSyntaxError{Expression: src, Offset: utf8.RuneCountInString(src[:start]), Fragment: src[start:end], Message: msg}
}

func isDigit(c byte) bool      { return c >= '0' && c <= '9' }
func isIdentStart(c byte) bool { return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func isIdentChar(c byte) bool  { return isIdentStart(c) || isDigit(c) }
