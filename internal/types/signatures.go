package types

import (
	"fmt"
	"sort"
	"strings"
)

// TypeSignature describes the values a parameter or data variable accepts.
// Admits and AdmitsType are total: they report, they never fail.
//
// AdmitsType is a width check. A signature admits another when every value
// the other accepts is also acceptable here, so sequence types admit
// equal or shorter declared lengths.
type TypeSignature interface {
	String() string
	Admits(v Value) bool
	AdmitsType(other TypeSignature) bool
}

// FunctionSignature is the declared shape of a trait method.
type FunctionSignature struct {
	Args    []TypeSignature
	Returns TypeSignature
}

// IntType admits signed 128-bit integers.
type IntType struct{}

func (IntType) String() string { return "int" }

func (IntType) Admits(v Value) bool {
	_, ok := v.(*IntValue)
	return ok
}

func (IntType) AdmitsType(other TypeSignature) bool {
	_, ok := other.(IntType)
	return ok
}

// UintType admits unsigned 128-bit integers.
type UintType struct{}

func (UintType) String() string { return "uint" }

func (UintType) Admits(v Value) bool {
	_, ok := v.(*UintValue)
	return ok
}

func (UintType) AdmitsType(other TypeSignature) bool {
	_, ok := other.(UintType)
	return ok
}

// BoolType admits booleans.
type BoolType struct{}

func (BoolType) String() string { return "bool" }

func (BoolType) Admits(v Value) bool {
	_, ok := v.(*BoolValue)
	return ok
}

func (BoolType) AdmitsType(other TypeSignature) bool {
	_, ok := other.(BoolType)
	return ok
}

// PrincipalType admits standard and contract principals alike.
type PrincipalType struct{}

func (PrincipalType) String() string { return "principal" }

func (PrincipalType) Admits(v Value) bool {
	_, ok := v.(*PrincipalValue)
	return ok
}

func (PrincipalType) AdmitsType(other TypeSignature) bool {
	_, ok := other.(PrincipalType)
	return ok
}

// BufferType admits byte strings up to Length bytes.
type BufferType struct {
	Length uint32
}

func (t BufferType) String() string { return fmt.Sprintf("(buff %d)", t.Length) }

func (t BufferType) Admits(v Value) bool {
	b, ok := v.(*BufferValue)
	return ok && uint64(len(b.Val)) <= uint64(t.Length)
}

func (t BufferType) AdmitsType(other TypeSignature) bool {
	o, ok := other.(BufferType)
	return ok && o.Length <= t.Length
}

// StringType admits ASCII strings up to Length characters.
type StringType struct {
	Length uint32
}

func (t StringType) String() string { return fmt.Sprintf("(string %d)", t.Length) }

func (t StringType) Admits(v Value) bool {
	s, ok := v.(*StringValue)
	return ok && uint64(len(s.Val)) <= uint64(t.Length)
}

func (t StringType) AdmitsType(other TypeSignature) bool {
	o, ok := other.(StringType)
	return ok && o.Length <= t.Length
}

// ListType admits lists of at most MaxLength elements, each admitted by
// the element signature.
type ListType struct {
	MaxLength uint32
	Element   TypeSignature
}

func (t ListType) String() string {
	return fmt.Sprintf("(list %d %s)", t.MaxLength, t.Element)
}

func (t ListType) Admits(v Value) bool {
	l, ok := v.(*ListValue)
	if !ok || uint64(len(l.Items)) > uint64(t.MaxLength) {
		return false
	}
	for _, item := range l.Items {
		if !t.Element.Admits(item) {
			return false
		}
	}
	return true
}

func (t ListType) AdmitsType(other TypeSignature) bool {
	o, ok := other.(ListType)
	return ok && o.MaxLength <= t.MaxLength && t.Element.AdmitsType(o.Element)
}

// TupleType admits tuples with exactly the declared field set.
type TupleType struct {
	Fields map[string]TypeSignature
}

func (t TupleType) String() string {
	names := make([]string, 0, len(t.Fields))
	for name := range t.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	var sb strings.Builder
	sb.WriteString("(tuple")
	for _, name := range names {
		sb.WriteString(" (")
		sb.WriteString(name)
		sb.WriteByte(' ')
		sb.WriteString(t.Fields[name].String())
		sb.WriteByte(')')
	}
	sb.WriteByte(')')
	return sb.String()
}

func (t TupleType) Admits(v Value) bool {
	tv, ok := v.(*TupleValue)
	if !ok || len(tv.Fields) != len(t.Fields) {
		return false
	}
	for name, sig := range t.Fields {
		fv, ok := tv.Fields[name]
		if !ok || !sig.Admits(fv) {
			return false
		}
	}
	return true
}

func (t TupleType) AdmitsType(other TypeSignature) bool {
	o, ok := other.(TupleType)
	if !ok || len(o.Fields) != len(t.Fields) {
		return false
	}
	for name, sig := range t.Fields {
		osig, ok := o.Fields[name]
		if !ok || !sig.AdmitsType(osig) {
			return false
		}
	}
	return true
}

// OptionalType admits none and any admitted inner value.
type OptionalType struct {
	Inner TypeSignature
}

func (t OptionalType) String() string {
	return fmt.Sprintf("(optional %s)", t.Inner)
}

func (t OptionalType) Admits(v Value) bool {
	o, ok := v.(*OptionalValue)
	if !ok {
		return false
	}
	return o.IsNone() || t.Inner.Admits(o.Val)
}

func (t OptionalType) AdmitsType(other TypeSignature) bool {
	o, ok := other.(OptionalType)
	return ok && t.Inner.AdmitsType(o.Inner)
}

// ResponseType admits responses whose payload is admitted by the side the
// response took.
type ResponseType struct {
	Ok  TypeSignature
	Err TypeSignature
}

func (t ResponseType) String() string {
	return fmt.Sprintf("(response %s %s)", t.Ok, t.Err)
}

func (t ResponseType) Admits(v Value) bool {
	r, ok := v.(*ResponseValue)
	if !ok {
		return false
	}
	if r.Committed {
		return t.Ok.Admits(r.Val)
	}
	return t.Err.Admits(r.Val)
}

func (t ResponseType) AdmitsType(other TypeSignature) bool {
	o, ok := other.(ResponseType)
	return ok && t.Ok.AdmitsType(o.Ok) && t.Err.AdmitsType(o.Err)
}

// TraitReferenceType marks a parameter that expects a contract conforming
// to a trait. The name is a local alias; what it denotes depends on the
// trait reference table of the contract the signature appears in, so two
// references compare nominally by alias and resolution happens where the
// binding or conformance check runs. Plain value admission never accepts:
// binding a contract principal to a trait-typed parameter is handled by
// the function application itself.
type TraitReferenceType struct {
	Name string
}

func (t TraitReferenceType) String() string { return "<" + t.Name + ">" }

func (t TraitReferenceType) Admits(v Value) bool { return false }

func (t TraitReferenceType) AdmitsType(other TypeSignature) bool {
	o, ok := other.(TraitReferenceType)
	return ok && o.Name == t.Name
}
