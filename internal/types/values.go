package types

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"
)

// Value is a runtime value. Values are immutable once constructed.
// String renders the value in its source literal form, and Equal is deep
// structural equality.
type Value interface {
	Type() string
	String() string
	Equal(other Value) bool
}

var (
	intMin  = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
	intMax  = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	uintMax = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
)

// FitsInt reports whether v is within the signed 128-bit range.
func FitsInt(v *big.Int) bool {
	return v.Cmp(intMin) >= 0 && v.Cmp(intMax) <= 0
}

// FitsUint reports whether v is within the unsigned 128-bit range.
func FitsUint(v *big.Int) bool {
	return v.Sign() >= 0 && v.Cmp(uintMax) <= 0
}

// IntValue is a signed 128-bit integer.
type IntValue struct {
	Val *big.Int
}

// NewInt copies v into an IntValue. The caller is responsible for the
// range; arithmetic and the codec enforce it.
func NewInt(v *big.Int) *IntValue {
	return &IntValue{Val: new(big.Int).Set(v)}
}

func NewIntFromInt64(v int64) *IntValue {
	return &IntValue{Val: big.NewInt(v)}
}

func (i *IntValue) Type() string   { return "int" }
func (i *IntValue) String() string { return i.Val.String() }

func (i *IntValue) Equal(other Value) bool {
	o, ok := other.(*IntValue)
	return ok && i.Val.Cmp(o.Val) == 0
}

// UintValue is an unsigned 128-bit integer.
type UintValue struct {
	Val *big.Int
}

func NewUint(v *big.Int) *UintValue {
	return &UintValue{Val: new(big.Int).Set(v)}
}

func NewUintFromUint64(v uint64) *UintValue {
	return &UintValue{Val: new(big.Int).SetUint64(v)}
}

func (u *UintValue) Type() string   { return "uint" }
func (u *UintValue) String() string { return "u" + u.Val.String() }

func (u *UintValue) Equal(other Value) bool {
	o, ok := other.(*UintValue)
	return ok && u.Val.Cmp(o.Val) == 0
}

// BoolValue is true or false. Use the True and False singletons.
type BoolValue struct {
	Val bool
}

var (
	True  = &BoolValue{Val: true}
	False = &BoolValue{Val: false}
)

// Bool returns the singleton for v.
func Bool(v bool) *BoolValue {
	if v {
		return True
	}
	return False
}

func (b *BoolValue) Type() string { return "bool" }

func (b *BoolValue) String() string {
	if b.Val {
		return "true"
	}
	return "false"
}

func (b *BoolValue) Equal(other Value) bool {
	o, ok := other.(*BoolValue)
	return ok && b.Val == o.Val
}

// BufferValue is an immutable byte string.
type BufferValue struct {
	Val []byte
}

// NewBuffer copies b into a BufferValue.
func NewBuffer(b []byte) *BufferValue {
	return &BufferValue{Val: append([]byte(nil), b...)}
}

func (b *BufferValue) Type() string   { return "buff" }
func (b *BufferValue) String() string { return "0x" + hex.EncodeToString(b.Val) }

func (b *BufferValue) Equal(other Value) bool {
	o, ok := other.(*BufferValue)
	return ok && bytes.Equal(b.Val, o.Val)
}

// StringValue is an ASCII string.
type StringValue struct {
	Val string
}

func (s *StringValue) Type() string   { return "string" }
func (s *StringValue) String() string { return strconv.Quote(s.Val) }

func (s *StringValue) Equal(other Value) bool {
	o, ok := other.(*StringValue)
	return ok && s.Val == o.Val
}

// PrincipalValue identifies an account or a deployed contract. A standard
// principal has an empty ContractName.
type PrincipalValue struct {
	Address      string
	ContractName string
}

// NewContractPrincipal wraps a contract identifier as a principal value.
func NewContractPrincipal(id ContractIdentifier) *PrincipalValue {
	return &PrincipalValue{Address: id.Address, ContractName: id.Name}
}

// ParsePrincipal parses the textual principal form, with or without the
// leading quote.
func ParsePrincipal(s string) (*PrincipalValue, error) {
	s = strings.TrimPrefix(s, "'")
	dot := strings.IndexByte(s, '.')
	if dot < 0 {
		if !IsValidAddress(s) {
			return nil, fmt.Errorf("invalid principal address %q", s)
		}
		return &PrincipalValue{Address: s}, nil
	}
	id, err := NewContractIdentifier(s[:dot], s[dot+1:])
	if err != nil {
		return nil, err
	}
	return NewContractPrincipal(id), nil
}

// IsContract reports whether the principal names a contract.
func (p *PrincipalValue) IsContract() bool {
	return p.ContractName != ""
}

// ContractID returns the contract identifier for a contract principal.
func (p *PrincipalValue) ContractID() (ContractIdentifier, bool) {
	if !p.IsContract() {
		return ContractIdentifier{}, false
	}
	return ContractIdentifier{Address: p.Address, Name: p.ContractName}, true
}

func (p *PrincipalValue) Type() string { return "principal" }

func (p *PrincipalValue) String() string {
	if p.IsContract() {
		return "'" + p.Address + "." + p.ContractName
	}
	return "'" + p.Address
}

func (p *PrincipalValue) Equal(other Value) bool {
	o, ok := other.(*PrincipalValue)
	return ok && p.Address == o.Address && p.ContractName == o.ContractName
}

// ListValue is an ordered sequence of values of one type.
type ListValue struct {
	Items []Value
}

func (l *ListValue) Type() string { return "list" }

func (l *ListValue) String() string {
	var sb strings.Builder
	sb.WriteString("(list")
	for _, item := range l.Items {
		sb.WriteByte(' ')
		sb.WriteString(item.String())
	}
	sb.WriteByte(')')
	return sb.String()
}

func (l *ListValue) Equal(other Value) bool {
	o, ok := other.(*ListValue)
	if !ok || len(l.Items) != len(o.Items) {
		return false
	}
	for i, item := range l.Items {
		if !item.Equal(o.Items[i]) {
			return false
		}
	}
	return true
}

// TupleValue is a set of named fields.
type TupleValue struct {
	Fields map[string]Value
}

// SortedFieldNames returns the field names in canonical order.
func (t *TupleValue) SortedFieldNames() []string {
	names := make([]string, 0, len(t.Fields))
	for name := range t.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (t *TupleValue) Type() string { return "tuple" }

func (t *TupleValue) String() string {
	var sb strings.Builder
	sb.WriteString("(tuple")
	for _, name := range t.SortedFieldNames() {
		sb.WriteString(" (")
		sb.WriteString(name)
		sb.WriteByte(' ')
		sb.WriteString(t.Fields[name].String())
		sb.WriteByte(')')
	}
	sb.WriteByte(')')
	return sb.String()
}

func (t *TupleValue) Equal(other Value) bool {
	o, ok := other.(*TupleValue)
	if !ok || len(t.Fields) != len(o.Fields) {
		return false
	}
	for name, v := range t.Fields {
		ov, ok := o.Fields[name]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// OptionalValue is either none or some inner value. A nil Val means none;
// use the None singleton.
type OptionalValue struct {
	Val Value
}

// None is the empty optional.
var None = &OptionalValue{}

// Some wraps v in an optional.
func Some(v Value) *OptionalValue {
	return &OptionalValue{Val: v}
}

// IsNone reports whether the optional is empty.
func (o *OptionalValue) IsNone() bool { return o.Val == nil }

func (o *OptionalValue) Type() string { return "optional" }

func (o *OptionalValue) String() string {
	if o.IsNone() {
		return "none"
	}
	return "(some " + o.Val.String() + ")"
}

func (o *OptionalValue) Equal(other Value) bool {
	v, ok := other.(*OptionalValue)
	if !ok {
		return false
	}
	if o.IsNone() || v.IsNone() {
		return o.IsNone() && v.IsNone()
	}
	return o.Val.Equal(v.Val)
}

// ResponseValue is the committed or aborted outcome of an operation.
// Committed carries the ok payload, otherwise Val is the err payload.
type ResponseValue struct {
	Committed bool
	Val       Value
}

// Ok wraps v in a committed response.
func Ok(v Value) *ResponseValue {
	return &ResponseValue{Committed: true, Val: v}
}

// Err wraps v in an aborted response.
func Err(v Value) *ResponseValue {
	return &ResponseValue{Committed: false, Val: v}
}

func (r *ResponseValue) Type() string { return "response" }

func (r *ResponseValue) String() string {
	if r.Committed {
		return "(ok " + r.Val.String() + ")"
	}
	return "(err " + r.Val.String() + ")"
}

func (r *ResponseValue) Equal(other Value) bool {
	o, ok := other.(*ResponseValue)
	return ok && r.Committed == o.Committed && r.Val.Equal(o.Val)
}
