package solver

import (
	"fmt"
	"strconv"
	"strings"
)

// Запись f(x), общая для обоих движков:
//
//	+ -        сложение, вычитание (левоассоциативны)
//	* /        умножение, деление (левоассоциативны)
//	-a +a      унарные знаки, слабее степени: -x^2 = -(x^2)
//	^ **       степень, правоассоциативна: x^2^3 = x^(2^3), показатель может быть со знаком
//	f(a, ...)  вызов функции, (a) скобки
//
// Числа: 2, 2.5, .5, 1e-3, 2,5 (десятичная запятая вне списка аргументов).
// canonical разбирает запись и печатает её заново с явными скобками и ** вместо ^,
// так что govaluate и expr-lang вычисляют одно и то же выражение.
func canonical(src string) (string, error) {
	toks, err := lex(src)
	if err != nil {
		return "", err
	}
	p := &parser{toks: toks}
	if p.peek().kind == tokEOF {
		return "", fmt.Errorf("empty expression")
	}
	out, err := p.expr()
	if err != nil {
		return "", err
	}
	if t := p.peek(); t.kind != tokEOF {
		return "", fmt.Errorf("unexpected %s at position %d", t, t.pos+1)
	}
	return out, nil
}

type tokKind int

const (
	tokEOF tokKind = iota
	tokNum
	tokIdent
	tokOp
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokKind
	text string
	num  float64
	pos  int
}

func (t token) String() string {
	if t.kind == tokEOF {
		return "end of expression"
	}
	return strconv.Quote(t.text)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func lex(src string) ([]token, error) {
	var toks []token
	// calls[i] — открыта ли i-я скобка вызовом функции; там запятая разделяет аргументы
	var calls []bool

	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++

		case isDigit(c) || (c == '.' && i+1 < len(src) && isDigit(src[i+1])):
			inCall := len(calls) > 0 && calls[len(calls)-1]
			t, n, err := lexNumber(src, i, inCall)
			if err != nil {
				return nil, err
			}
			toks = append(toks, t)
			i = n

		case isIdentStart(c):
			start := i
			for i < len(src) && (isIdentStart(src[i]) || isDigit(src[i])) {
				i++
			}
			toks = append(toks, token{kind: tokIdent, text: src[start:i], pos: start})

		case c == '*' && i+1 < len(src) && src[i+1] == '*':
			toks = append(toks, token{kind: tokOp, text: "^", pos: i})
			i += 2

		case strings.IndexByte("+-*/^", c) >= 0:
			toks = append(toks, token{kind: tokOp, text: string(c), pos: i})
			i++

		case c == '(':
			call := len(toks) > 0 && toks[len(toks)-1].kind == tokIdent
			calls = append(calls, call)
			toks = append(toks, token{kind: tokLParen, text: "(", pos: i})
			i++

		case c == ')':
			if len(calls) > 0 {
				calls = calls[:len(calls)-1]
			}
			toks = append(toks, token{kind: tokRParen, text: ")", pos: i})
			i++

		case c == ',':
			toks = append(toks, token{kind: tokComma, text: ",", pos: i})
			i++

		default:
			return nil, fmt.Errorf("unexpected character %q at position %d", src[i:i+1], i+1)
		}
	}
	return append(toks, token{kind: tokEOF, pos: len(src)}), nil
}

// lexNumber читает число с позиции i; inCall — число стоит в списке аргументов
func lexNumber(src string, i int, inCall bool) (token, int, error) {
	start := i
	var b strings.Builder

	digits := func() {
		for i < len(src) && isDigit(src[i]) {
			b.WriteByte(src[i])
			i++
		}
	}

	digits()
	switch {
	case i < len(src) && src[i] == '.':
		b.WriteByte('.')
		i++
		digits()
	case !inCall && i+1 < len(src) && src[i] == ',' && isDigit(src[i+1]):
		// 1,5 — десятичная запятая
		b.WriteByte('.')
		i++
		digits()
	}

	if i < len(src) && (src[i] == 'e' || src[i] == 'E') {
		j := i + 1
		if j < len(src) && (src[j] == '+' || src[j] == '-') {
			j++
		}
		// без цифр после e это константа e, а не порядок
		if j < len(src) && isDigit(src[j]) {
			b.WriteString(src[i:j])
			i = j
			digits()
		}
	}

	v, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return token{}, i, fmt.Errorf("bad number %q at position %d: %w", src[start:i], start+1, err)
	}
	return token{kind: tokNum, text: src[start:i], num: v, pos: start}, i, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) isOp(ops string) bool {
	t := p.peek()
	return t.kind == tokOp && strings.Contains(ops, t.text)
}

// expr — сумма слагаемых
func (p *parser) expr() (string, error) {
	left, err := p.term()
	if err != nil {
		return "", err
	}
	for p.isOp("+-") {
		op := p.next().text
		right, err := p.term()
		if err != nil {
			return "", err
		}
		left = "(" + left + " " + op + " " + right + ")"
	}
	return left, nil
}

// term — произведение множителей
func (p *parser) term() (string, error) {
	left, err := p.unary()
	if err != nil {
		return "", err
	}
	for p.isOp("*/") {
		op := p.next().text
		right, err := p.unary()
		if err != nil {
			return "", err
		}
		left = "(" + left + " " + op + " " + right + ")"
	}
	return left, nil
}

func (p *parser) unary() (string, error) {
	switch {
	case p.isOp("-"):
		p.next()
		v, err := p.unary()
		if err != nil {
			return "", err
		}
		return "(-" + v + ")", nil
	case p.isOp("+"):
		p.next()
		return p.unary()
	}
	return p.power()
}

func (p *parser) power() (string, error) {
	base, err := p.primary()
	if err != nil {
		return "", err
	}
	if !p.isOp("^") {
		return base, nil
	}
	p.next()
	// показатель разбирается как унарное выражение: отсюда правая ассоциативность и 2^-1
	exp, err := p.unary()
	if err != nil {
		return "", err
	}
	return "(" + base + " ** " + exp + ")", nil
}

func (p *parser) primary() (string, error) {
	t := p.next()
	switch t.kind {
	case tokNum:
		return formatNumber(t.num), nil

	case tokIdent:
		if p.peek().kind != tokLParen {
			return t.text, nil
		}
		p.next()
		args, err := p.args()
		if err != nil {
			return "", err
		}
		return t.text + "(" + strings.Join(args, ", ") + ")", nil

	case tokLParen:
		inner, err := p.expr()
		if err != nil {
			return "", err
		}
		if r := p.next(); r.kind != tokRParen {
			return "", fmt.Errorf("expected \")\" at position %d, got %s", r.pos+1, r)
		}
		return "(" + inner + ")", nil
	}
	return "", fmt.Errorf("unexpected %s at position %d", t, t.pos+1)
}

// args — аргументы вызова после открывающей скобки
func (p *parser) args() ([]string, error) {
	if p.peek().kind == tokRParen {
		p.next()
		return nil, nil
	}
	var args []string
	for {
		a, err := p.expr()
		if err != nil {
			return nil, err
		}
		args = append(args, a)

		t := p.next()
		switch t.kind {
		case tokComma:
			continue
		case tokRParen:
			return args, nil
		}
		return nil, fmt.Errorf("expected \",\" or \")\" at position %d, got %s", t.pos+1, t)
	}
}

// formatNumber печатает число без порядка и всегда с точкой:
// govaluate не понимает 1e-3, а expr-lang иначе читает целое
func formatNumber(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
