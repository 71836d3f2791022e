// Package parser turns source text into the ast expression tree.
package parser

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/covenant-lang/covenant/internal/ast"
	"github.com/covenant-lang/covenant/internal/config"
	"github.com/covenant-lang/covenant/internal/lexer"
	"github.com/covenant-lang/covenant/internal/types"
)

// ParseError is a syntax error with its source position.
type ParseError struct {
	Line   int
	Column int
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %d:%d: %s", e.Line, e.Column, e.Msg)
}

var (
	intMin  = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
	intMax  = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	uintMax = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
)

// Parse reads every top-level expression in the input.
func Parse(input string) ([]ast.Expr, error) {
	p := &parser{l: lexer.New(input)}
	p.next()

	var exprs []ast.Expr
	for p.cur.Type != lexer.EOF {
		e, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
	}
	return exprs, nil
}

// ParseOne reads exactly one expression and rejects trailing input.
func ParseOne(input string) (ast.Expr, error) {
	exprs, err := Parse(input)
	if err != nil {
		return nil, err
	}
	if len(exprs) != 1 {
		return nil, &ParseError{Line: 1, Column: 1, Msg: fmt.Sprintf("expected a single expression, got %d", len(exprs))}
	}
	return exprs[0], nil
}

type parser struct {
	l   *lexer.Lexer
	cur lexer.Token
}

func (p *parser) next() {
	p.cur = p.l.NextToken()
}

func (p *parser) errorf(tok lexer.Token, format string, args ...interface{}) error {
	return &ParseError{Line: tok.Line, Column: tok.Column, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) parseExpr(depth int) (ast.Expr, error) {
	tok := p.cur
	pos := ast.Span{Line: tok.Line, Column: tok.Column}

	switch tok.Type {
	case lexer.LPAREN:
		if depth+1 > config.MaxNestingDepth {
			return nil, p.errorf(tok, "expression nesting exceeds depth %d", config.MaxNestingDepth)
		}
		p.next()
		list := &ast.List{Pos: pos}
		for p.cur.Type != lexer.RPAREN {
			if p.cur.Type == lexer.EOF {
				return nil, p.errorf(tok, "unclosed parenthesis")
			}
			item, err := p.parseExpr(depth + 1)
			if err != nil {
				return nil, err
			}
			list.Items = append(list.Items, item)
		}
		p.next()
		return list, nil

	case lexer.RPAREN:
		return nil, p.errorf(tok, "unexpected )")

	case lexer.ATOM:
		p.next()
		return &ast.Atom{Pos: pos, Name: tok.Literal}, nil

	case lexer.INT:
		v, ok := new(big.Int).SetString(tok.Literal, 10)
		if !ok {
			return nil, p.errorf(tok, "invalid integer literal %q", tok.Literal)
		}
		if v.Cmp(intMin) < 0 || v.Cmp(intMax) > 0 {
			return nil, p.errorf(tok, "integer literal %s out of range", tok.Literal)
		}
		p.next()
		return &ast.IntLiteral{Pos: pos, Value: v}, nil

	case lexer.UINT:
		v, ok := new(big.Int).SetString(tok.Literal, 10)
		if !ok {
			return nil, p.errorf(tok, "invalid integer literal %q", tok.Literal)
		}
		if v.Cmp(uintMax) > 0 {
			return nil, p.errorf(tok, "integer literal u%s out of range", tok.Literal)
		}
		p.next()
		return &ast.UintLiteral{Pos: pos, Value: v}, nil

	case lexer.BUFFER:
		raw, err := hex.DecodeString(tok.Literal)
		if err != nil {
			return nil, p.errorf(tok, "invalid buffer literal")
		}
		p.next()
		return &ast.BufferLiteral{Pos: pos, Value: raw}, nil

	case lexer.STRING:
		p.next()
		return &ast.StringLiteral{Pos: pos, Value: tok.Literal}, nil

	case lexer.PRINCIPAL:
		p.next()
		return p.principalFromParts(tok, pos, strings.Split(tok.Literal, "."))

	case lexer.SUGARED:
		p.next()
		parts := strings.Split(strings.TrimPrefix(tok.Literal, "."), ".")
		switch len(parts) {
		case 1:
			if !types.IsValidContractName(parts[0]) {
				return nil, p.errorf(tok, "invalid contract name %q", parts[0])
			}
			return &ast.PrincipalLiteral{Pos: pos, Contract: parts[0]}, nil
		case 2:
			if !types.IsValidContractName(parts[0]) {
				return nil, p.errorf(tok, "invalid contract name %q", parts[0])
			}
			if !types.IsValidName(parts[1]) {
				return nil, p.errorf(tok, "invalid trait name %q", parts[1])
			}
			return &ast.FieldRef{Pos: pos, Contract: parts[0], Name: parts[1]}, nil
		default:
			return nil, p.errorf(tok, "malformed contract reference %q", tok.Literal)
		}

	case lexer.TRAITREF:
		if !types.IsValidName(tok.Literal) {
			return nil, p.errorf(tok, "invalid trait reference name %q", tok.Literal)
		}
		p.next()
		return &ast.TraitRef{Pos: pos, Name: tok.Literal}, nil

	case lexer.ILLEGAL:
		return nil, p.errorf(tok, "%s", tok.Literal)

	default:
		return nil, p.errorf(tok, "unexpected token %q", tok.Literal)
	}
}

func (p *parser) principalFromParts(tok lexer.Token, pos ast.Span, parts []string) (ast.Expr, error) {
	if !types.IsValidAddress(parts[0]) {
		return nil, p.errorf(tok, "invalid principal address %q", parts[0])
	}
	switch len(parts) {
	case 1:
		return &ast.PrincipalLiteral{Pos: pos, Address: parts[0]}, nil
	case 2:
		if !types.IsValidContractName(parts[1]) {
			return nil, p.errorf(tok, "invalid contract name %q", parts[1])
		}
		return &ast.PrincipalLiteral{Pos: pos, Address: parts[0], Contract: parts[1]}, nil
	case 3:
		if !types.IsValidContractName(parts[1]) {
			return nil, p.errorf(tok, "invalid contract name %q", parts[1])
		}
		if !types.IsValidName(parts[2]) {
			return nil, p.errorf(tok, "invalid trait name %q", parts[2])
		}
		return &ast.FieldRef{Pos: pos, Address: parts[0], Contract: parts[1], Name: parts[2]}, nil
	default:
		return nil, p.errorf(tok, "malformed principal literal")
	}
}
