package utility

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"warden/apperr"
	"warden/bot"
)

const (
	maxExprLength = 200
	maxExprDepth  = 20
)

// evalExpr evaluates a bounded arithmetic expression supporting + - * /,
// parentheses and decimal numbers. Anything else is rejected.
func evalExpr(input string) (float64, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return 0, apperr.New(apperr.KindBadArgument, "Expression is empty.")
	}
	if len(input) > maxExprLength {
		return 0, apperr.New(apperr.KindBadArgument, "Expression is too long (max %d characters).", maxExprLength)
	}

	p := &exprParser{input: input}
	result, err := p.parseSum(0)
	if err != nil {
		return 0, err
	}
	p.skipSpaces()
	if p.pos < len(p.input) {
		return 0, apperr.New(apperr.KindBadArgument, "Unexpected character %q.", p.input[p.pos])
	}
	if math.IsInf(result, 0) || math.IsNaN(result) {
		return 0, apperr.New(apperr.KindBadArgument, "Expression result is not a number.")
	}
	return result, nil
}

// exprParser is a recursive-descent parser over + - * / ( ) and numbers
type exprParser struct {
	input string
	pos   int
}

func (p *exprParser) skipSpaces() {
	for p.pos < len(p.input) && p.input[p.pos] == ' ' {
		p.pos++
	}
}

func (p *exprParser) parseSum(depth int) (float64, error) {
	if depth > maxExprDepth {
		return 0, apperr.New(apperr.KindBadArgument, "Expression is nested too deeply.")
	}

	left, err := p.parseProduct(depth)
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpaces()
		if p.pos >= len(p.input) {
			return left, nil
		}
		op := p.input[p.pos]
		if op != '+' && op != '-' {
			return left, nil
		}
		p.pos++
		right, err := p.parseProduct(depth)
		if err != nil {
			return 0, err
		}
		if op == '+' {
			left += right
		} else {
			left -= right
		}
	}
}

func (p *exprParser) parseProduct(depth int) (float64, error) {
	left, err := p.parseUnary(depth)
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpaces()
		if p.pos >= len(p.input) {
			return left, nil
		}
		op := p.input[p.pos]
		if op != '*' && op != '/' {
			return left, nil
		}
		p.pos++
		right, err := p.parseUnary(depth)
		if err != nil {
			return 0, err
		}
		if op == '*' {
			left *= right
		} else {
			if right == 0 {
				return 0, apperr.New(apperr.KindBadArgument, "Division by zero.")
			}
			left /= right
		}
	}
}

func (p *exprParser) parseUnary(depth int) (float64, error) {
	p.skipSpaces()
	if p.pos < len(p.input) && p.input[p.pos] == '-' {
		p.pos++
		value, err := p.parseUnary(depth + 1)
		return -value, err
	}
	return p.parseAtom(depth)
}

func (p *exprParser) parseAtom(depth int) (float64, error) {
	p.skipSpaces()
	if p.pos >= len(p.input) {
		return 0, apperr.New(apperr.KindBadArgument, "Expression ends unexpectedly.")
	}

	if p.input[p.pos] == '(' {
		p.pos++
		value, err := p.parseSum(depth + 1)
		if err != nil {
			return 0, err
		}
		p.skipSpaces()
		if p.pos >= len(p.input) || p.input[p.pos] != ')' {
			return 0, apperr.New(apperr.KindBadArgument, "Missing closing parenthesis.")
		}
		p.pos++
		return value, nil
	}

	start := p.pos
	for p.pos < len(p.input) && (isDigit(p.input[p.pos]) || p.input[p.pos] == '.') {
		p.pos++
	}
	if start == p.pos {
		return 0, apperr.New(apperr.KindBadArgument, "Unexpected character %q.", p.input[p.pos])
	}

	value, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return 0, apperr.New(apperr.KindBadArgument, "%q is not a number.", p.input[start:p.pos])
	}
	return value, nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func (f *Feature) handleCalc(ctx context.Context, inv *bot.Invocation) (*bot.Reply, error) {
	result, err := evalExpr(inv.Args.String("expression"))
	if err != nil {
		return nil, err
	}

	formatted := strconv.FormatFloat(result, 'f', -1, 64)
	return &bot.Reply{Content: fmt.Sprintf("🧮 `%s` = **%s**", inv.Args.String("expression"), formatted)}, nil
}
