package conditional

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// The expression condition kind accepts a deliberately small language:
// numeric and quoted-string literals, the four arithmetic operators, six
// comparisons, ! && ||, and parentheses. Anything else is rejected before
// evaluation. Evaluation is a hand-rolled recursive-descent walk; no code is
// ever constructed from the input string.

type valueKind int

const (
	kindNumber valueKind = iota
	kindString
	kindBool
)

type value struct {
	kind valueKind
	num  float64
	str  string
	b    bool
}

func (v value) truthy() bool {
	switch v.kind {
	case kindNumber:
		return v.num != 0
	case kindString:
		return v.str != ""
	default:
		return v.b
	}
}

func numberValue(n float64) value { return value{kind: kindNumber, num: n} }
func stringValue(s string) value  { return value{kind: kindString, str: s} }
func boolValue(b bool) value      { return value{kind: kindBool, b: b} }

// checkExpressionChars rejects any character outside the permitted set.
// Quoted literal contents are exempt.
func checkExpressionChars(expr string) error {
	inQuote := byte(0)

	for i := 0; i < len(expr); i++ {
		c := expr[i]

		if inQuote != 0 {
			if c == inQuote {
				inQuote = 0
			}

			continue
		}

		switch {
		case c == '"' || c == '\'':
			inQuote = c
		case c >= '0' && c <= '9':
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
		case strings.IndexByte("+-*/().<>=!&|", c) >= 0:
		default:
			return fmt.Errorf("expression contains unsafe character %q", string(c))
		}
	}

	if inQuote != 0 {
		return errors.New("expression has an unterminated string literal")
	}

	return nil
}

type exprParser struct {
	input string
	pos   int
}

// evalExpression checks and evaluates a restricted expression.
func evalExpression(expr string) (value, error) {
	if err := checkExpressionChars(expr); err != nil {
		return value{}, err
	}

	p := &exprParser{input: expr}

	result, err := p.parseOr()
	if err != nil {
		return value{}, err
	}

	p.skipSpace()

	if p.pos < len(p.input) {
		return value{}, fmt.Errorf("unexpected trailing input at position %d", p.pos)
	}

	return result, nil
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if c != ' ' && c != '\t' && c != '\n' && c != '\r' {
			break
		}

		p.pos++
	}
}

func (p *exprParser) accept(token string) bool {
	p.skipSpace()

	if strings.HasPrefix(p.input[p.pos:], token) {
		p.pos += len(token)

		return true
	}

	return false
}

func (p *exprParser) parseOr() (value, error) {
	left, err := p.parseAnd()
	if err != nil {
		return value{}, err
	}

	for p.accept("||") {
		right, err := p.parseAnd()
		if err != nil {
			return value{}, err
		}

		left = boolValue(left.truthy() || right.truthy())
	}

	return left, nil
}

func (p *exprParser) parseAnd() (value, error) {
	left, err := p.parseNot()
	if err != nil {
		return value{}, err
	}

	for p.accept("&&") {
		right, err := p.parseNot()
		if err != nil {
			return value{}, err
		}

		left = boolValue(left.truthy() && right.truthy())
	}

	return left, nil
}

func (p *exprParser) parseNot() (value, error) {
	p.skipSpace()

	// "!" here must not swallow the first byte of "!=".
	if p.pos < len(p.input) && p.input[p.pos] == '!' &&
		(p.pos+1 >= len(p.input) || p.input[p.pos+1] != '=') {
		p.pos++

		inner, err := p.parseNot()
		if err != nil {
			return value{}, err
		}

		return boolValue(!inner.truthy()), nil
	}

	return p.parseComparison()
}

func (p *exprParser) parseComparison() (value, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return value{}, err
	}

	for _, op := range []string{"==", "!=", "<=", ">=", "<", ">"} {
		if p.accept(op) {
			right, err := p.parseAdditive()
			if err != nil {
				return value{}, err
			}

			return compare(op, left, right)
		}
	}

	return left, nil
}

func (p *exprParser) parseAdditive() (value, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return value{}, err
	}

	for {
		switch {
		case p.accept("+"):
			right, err := p.parseMultiplicative()
			if err != nil {
				return value{}, err
			}

			if left.kind == kindString || right.kind == kindString {
				left = stringValue(render(left) + render(right))
			} else {
				left = numberValue(left.num + right.num)
			}
		case p.accept("-"):
			right, err := p.parseMultiplicative()
			if err != nil {
				return value{}, err
			}

			left = numberValue(left.num - right.num)
		default:
			return left, nil
		}
	}
}

func (p *exprParser) parseMultiplicative() (value, error) {
	left, err := p.parseUnary()
	if err != nil {
		return value{}, err
	}

	for {
		switch {
		case p.accept("*"):
			right, err := p.parseUnary()
			if err != nil {
				return value{}, err
			}

			left = numberValue(left.num * right.num)
		case p.accept("/"):
			right, err := p.parseUnary()
			if err != nil {
				return value{}, err
			}

			if right.num == 0 {
				return value{}, errors.New("division by zero")
			}

			left = numberValue(left.num / right.num)
		default:
			return left, nil
		}
	}
}

func (p *exprParser) parseUnary() (value, error) {
	if p.accept("-") {
		inner, err := p.parseUnary()
		if err != nil {
			return value{}, err
		}

		return numberValue(-inner.num), nil
	}

	return p.parsePrimary()
}

func (p *exprParser) parsePrimary() (value, error) {
	p.skipSpace()

	if p.pos >= len(p.input) {
		return value{}, errors.New("unexpected end of expression")
	}

	c := p.input[p.pos]

	switch {
	case c == '(':
		p.pos++

		inner, err := p.parseOr()
		if err != nil {
			return value{}, err
		}

		if !p.accept(")") {
			return value{}, errors.New("missing closing parenthesis")
		}

		return inner, nil
	case c == '"' || c == '\'':
		return p.parseString(c)
	case c >= '0' && c <= '9' || c == '.':
		return p.parseNumber()
	default:
		return value{}, fmt.Errorf("unexpected character %q at position %d", string(c), p.pos)
	}
}

func (p *exprParser) parseString(quote byte) (value, error) {
	p.pos++
	start := p.pos

	for p.pos < len(p.input) && p.input[p.pos] != quote {
		p.pos++
	}

	if p.pos >= len(p.input) {
		return value{}, errors.New("unterminated string literal")
	}

	literal := p.input[start:p.pos]
	p.pos++

	return stringValue(literal), nil
}

func (p *exprParser) parseNumber() (value, error) {
	start := p.pos

	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if (c < '0' || c > '9') && c != '.' {
			break
		}

		p.pos++
	}

	num, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return value{}, fmt.Errorf("invalid number %q", p.input[start:p.pos])
	}

	return numberValue(num), nil
}

func compare(op string, left, right value) (value, error) {
	if left.kind == kindNumber && right.kind == kindNumber {
		return boolValue(compareOrdered(op, left.num, right.num)), nil
	}

	switch op {
	case "==":
		return boolValue(render(left) == render(right)), nil
	case "!=":
		return boolValue(render(left) != render(right)), nil
	default:
		return boolValue(compareOrdered(op, render(left), render(right))), nil
	}
}

func compareOrdered[T float64 | string](op string, left, right T) bool {
	switch op {
	case "==":
		return left == right
	case "!=":
		return left != right
	case "<":
		return left < right
	case "<=":
		return left <= right
	case ">":
		return left > right
	default:
		return left >= right
	}
}

func render(v value) string {
	switch v.kind {
	case kindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case kindString:
		return v.str
	default:
		return strconv.FormatBool(v.b)
	}
}
