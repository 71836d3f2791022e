// Package ast defines the expression tree produced by the parser. The
// surface syntax is s-expressions, so the tree is small: literals, atoms,
// trait references and lists.
package ast

import (
	"encoding/hex"
	"math/big"
	"strconv"
	"strings"
)

// Span locates a node in its source.
type Span struct {
	Line   int
	Column int
}

// Expr is a node of the expression tree. String renders the node back in
// source form.
type Expr interface {
	Span() Span
	String() string
}

// Atom is a bare name: a variable, keyword or function name.
type Atom struct {
	Pos  Span
	Name string
}

func (a *Atom) Span() Span     { return a.Pos }
func (a *Atom) String() string { return a.Name }

// IntLiteral is a signed integer literal.
type IntLiteral struct {
	Pos   Span
	Value *big.Int
}

func (i *IntLiteral) Span() Span     { return i.Pos }
func (i *IntLiteral) String() string { return i.Value.String() }

// UintLiteral is an unsigned integer literal, written with a u prefix.
type UintLiteral struct {
	Pos   Span
	Value *big.Int
}

func (u *UintLiteral) Span() Span     { return u.Pos }
func (u *UintLiteral) String() string { return "u" + u.Value.String() }

// BufferLiteral is a byte string literal, written in 0x hex form.
type BufferLiteral struct {
	Pos   Span
	Value []byte
}

func (b *BufferLiteral) Span() Span     { return b.Pos }
func (b *BufferLiteral) String() string { return "0x" + hex.EncodeToString(b.Value) }

// StringLiteral is a double-quoted ASCII string literal.
type StringLiteral struct {
	Pos   Span
	Value string
}

func (s *StringLiteral) Span() Span     { return s.Pos }
func (s *StringLiteral) String() string { return strconv.Quote(s.Value) }

// PrincipalLiteral names an account or contract. An empty Address is the
// sugared ".name" form that resolves against the current deployer.
type PrincipalLiteral struct {
	Pos      Span
	Address  string
	Contract string
}

func (p *PrincipalLiteral) Span() Span { return p.Pos }

func (p *PrincipalLiteral) String() string {
	if p.Address == "" {
		return "." + p.Contract
	}
	if p.Contract == "" {
		return "'" + p.Address
	}
	return "'" + p.Address + "." + p.Contract
}

// FieldRef names a trait within a contract, as used by use-trait and
// impl-trait. An empty Address resolves against the current deployer.
type FieldRef struct {
	Pos      Span
	Address  string
	Contract string
	Name     string
}

func (f *FieldRef) Span() Span { return f.Pos }

func (f *FieldRef) String() string {
	if f.Address == "" {
		return "." + f.Contract + "." + f.Name
	}
	return "'" + f.Address + "." + f.Contract + "." + f.Name
}

// TraitRef is a trait alias in a type position, written <name>.
type TraitRef struct {
	Pos  Span
	Name string
}

func (t *TraitRef) Span() Span     { return t.Pos }
func (t *TraitRef) String() string { return "<" + t.Name + ">" }

// List is a parenthesized sequence. In expression position the first item
// is the function to apply.
type List struct {
	Pos   Span
	Items []Expr
}

func (l *List) Span() Span { return l.Pos }

func (l *List) String() string {
	parts := make([]string, len(l.Items))
	for i, item := range l.Items {
		parts[i] = item.String()
	}
	return "(" + strings.Join(parts, " ") + ")"
}
