package vm

import (
	"fmt"

	"github.com/covenant-lang/covenant/internal/types"
)

// IncorrectArgumentCountError reports an application with the wrong
// number of arguments.
type IncorrectArgumentCountError struct {
	Expected int
	Actual   int
}

func (e *IncorrectArgumentCountError) Error() string {
	return fmt.Sprintf("wrong number of arguments: expected %d, got %d", e.Expected, e.Actual)
}

// TypeValueError reports a value that fails admission against a declared
// type signature.
type TypeValueError struct {
	Expected types.TypeSignature
	Value    types.Value
}

func (e *TypeValueError) Error() string {
	return fmt.Sprintf("expected a value of type %s, got %s", e.Expected, e.Value)
}

// NameAlreadyUsedError reports a binding or definition that collides with
// an existing name.
type NameAlreadyUsedError struct {
	Name string
}

func (e *NameAlreadyUsedError) Error() string {
	return fmt.Sprintf("name %q is already in use", e.Name)
}

// BadTraitImplementationError reports a contract that does not satisfy a
// trait it was used as.
type BadTraitImplementationError struct {
	TraitName    string
	FunctionName string
}

func (e *BadTraitImplementationError) Error() string {
	return fmt.Sprintf("bad implementation of trait %q: function %q", e.TraitName, e.FunctionName)
}

// UndefinedFunctionError reports an application of an unknown name.
type UndefinedFunctionError struct {
	Name string
}

func (e *UndefinedFunctionError) Error() string {
	return fmt.Sprintf("undefined function %q", e.Name)
}

// UndefinedVariableError reports a reference to an unbound name.
type UndefinedVariableError struct {
	Name string
}

func (e *UndefinedVariableError) Error() string {
	return fmt.Sprintf("undefined variable %q", e.Name)
}

// NoSuchContractError reports a reference to a contract the datastore
// does not hold.
type NoSuchContractError struct {
	Contract types.ContractIdentifier
}

func (e *NoSuchContractError) Error() string {
	return fmt.Sprintf("no such contract %s", e.Contract)
}

// ContractAlreadyExistsError reports a deploy under a taken identifier.
type ContractAlreadyExistsError struct {
	Contract types.ContractIdentifier
}

func (e *ContractAlreadyExistsError) Error() string {
	return fmt.Sprintf("contract %s already exists", e.Contract)
}

// NoSuchPublicFunctionError reports a cross-contract call to a function
// that does not exist or is not callable from outside.
type NoSuchPublicFunctionError struct {
	Contract types.ContractIdentifier
	Name     string
}

func (e *NoSuchPublicFunctionError) Error() string {
	return fmt.Sprintf("contract %s has no public function %q", e.Contract, e.Name)
}

// NoSuchTupleFieldError reports a get on a missing tuple field.
type NoSuchTupleFieldError struct {
	Name string
}

func (e *NoSuchTupleFieldError) Error() string {
	return fmt.Sprintf("tuple has no field %q", e.Name)
}

// TraitReferenceUnknownError reports a use of a trait the named contract
// does not define.
type TraitReferenceUnknownError struct {
	Contract types.ContractIdentifier
	Name     string
}

func (e *TraitReferenceUnknownError) Error() string {
	return fmt.Sprintf("contract %s does not define trait %q", e.Contract, e.Name)
}

// ReadOnlyViolationError reports a write attempted while read-only
// enforcement is active.
type ReadOnlyViolationError struct {
	Op string
}

func (e *ReadOnlyViolationError) Error() string {
	return fmt.Sprintf("%s is not allowed in read-only context", e.Op)
}

// CostBudgetError reports an exhausted execution budget.
type CostBudgetError struct {
	Used  uint64
	Limit uint64
}

func (e *CostBudgetError) Error() string {
	return fmt.Sprintf("execution budget exceeded: used %d of %d", e.Used, e.Limit)
}

// CallStackDepthError reports function applications nested past the
// limit.
type CallStackDepthError struct {
	Depth int
}

func (e *CallStackDepthError) Error() string {
	return fmt.Sprintf("call depth limit reached at %d", e.Depth)
}

// ContextDepthError reports binding frames nested past the limit.
type ContextDepthError struct {
	Depth int
}

func (e *ContextDepthError) Error() string {
	return fmt.Sprintf("binding depth limit reached at %d", e.Depth)
}

// OperationError reports a built-in operation that failed on otherwise
// well-typed input: overflow, division by zero, unwrapping none.
type OperationError struct {
	Op     string
	Reason string
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// SyntaxError reports a malformed special form encountered at run time.
type SyntaxError struct {
	Form   string
	Reason string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s: %s", e.Form, e.Reason)
}

// InternalError reports a broken interpreter invariant. Seeing one is a
// bug, not a user error.
type InternalError struct {
	Msg string
}

func (e *InternalError) Error() string {
	return "internal error: " + e.Msg
}

func internalErrorf(format string, args ...interface{}) *InternalError {
	return &InternalError{Msg: fmt.Sprintf(format, args...)}
}

// EarlyReturn carries a value out of the enclosing function body. It is
// consumed at the function application boundary and never escapes a
// completed call.
type EarlyReturn struct {
	Value types.Value
}

func (e *EarlyReturn) Error() string {
	return "early return outside of a function body"
}
