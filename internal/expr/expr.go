// Package expr evaluates user-typed price expressions such as "20 + 5" or
// "15*2". Only decimal literals, + - * /, unary minus, and parentheses are
// accepted; there is deliberately no general evaluation surface.
package expr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrSyntax marks an expression the parser does not accept.
var ErrSyntax = errors.New("invalid price expression")

// Eval parses and evaluates a price expression, returning the exact
// decimal result.
func Eval(input string) (decimal.Decimal, error) {
	p := &parser{input: input}
	result, err := p.expression()
	if err != nil {
		return decimal.Zero, err
	}
	p.skipSpaces()
	if p.pos != len(p.input) {
		return decimal.Zero, fmt.Errorf("%w: unexpected %q at position %d", ErrSyntax, p.input[p.pos], p.pos)
	}
	return result, nil
}

// parser is a recursive-descent parser over the grammar:
//
//	expression = term   { ("+" | "-") term }
//	term       = factor { ("*" | "/") factor }
//	factor     = number | "-" factor | "(" expression ")"
type parser struct {
	input string
	pos   int
}

func (p *parser) expression() (decimal.Decimal, error) {
	left, err := p.term()
	if err != nil {
		return decimal.Zero, err
	}
	for {
		p.skipSpaces()
		switch {
		case p.consume('+'):
			right, err := p.term()
			if err != nil {
				return decimal.Zero, err
			}
			left = left.Add(right)
		case p.consume('-'):
			right, err := p.term()
			if err != nil {
				return decimal.Zero, err
			}
			left = left.Sub(right)
		default:
			return left, nil
		}
	}
}

func (p *parser) term() (decimal.Decimal, error) {
	left, err := p.factor()
	if err != nil {
		return decimal.Zero, err
	}
	for {
		p.skipSpaces()
		switch {
		case p.consume('*'):
			right, err := p.factor()
			if err != nil {
				return decimal.Zero, err
			}
			left = left.Mul(right)
		case p.consume('/'):
			right, err := p.factor()
			if err != nil {
				return decimal.Zero, err
			}
			if right.IsZero() {
				return decimal.Zero, fmt.Errorf("%w: division by zero", ErrSyntax)
			}
			left = left.Div(right)
		default:
			return left, nil
		}
	}
}

func (p *parser) factor() (decimal.Decimal, error) {
	p.skipSpaces()
	if p.consume('-') {
		value, err := p.factor()
		if err != nil {
			return decimal.Zero, err
		}
		return value.Neg(), nil
	}
	if p.consume('(') {
		value, err := p.expression()
		if err != nil {
			return decimal.Zero, err
		}
		p.skipSpaces()
		if !p.consume(')') {
			return decimal.Zero, fmt.Errorf("%w: missing closing parenthesis", ErrSyntax)
		}
		return value, nil
	}
	return p.number()
}

func (p *parser) number() (decimal.Decimal, error) {
	start := p.pos
	for p.pos < len(p.input) && (isDigit(p.input[p.pos]) || p.input[p.pos] == '.') {
		p.pos++
	}
	if p.pos == start {
		return decimal.Zero, fmt.Errorf("%w: expected number at position %d", ErrSyntax, start)
	}
	value, err := decimal.NewFromString(p.input[start:p.pos])
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: bad number %q", ErrSyntax, p.input[start:p.pos])
	}
	return value, nil
}

func (p *parser) consume(c byte) bool {
	if p.pos < len(p.input) && p.input[p.pos] == c {
		p.pos++
		return true
	}
	return false
}

func (p *parser) skipSpaces() {
	p.pos += len(p.input[p.pos:]) - len(strings.TrimLeft(p.input[p.pos:], " \t"))
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
