package vm

import (
	"errors"
	"fmt"

	"github.com/covenant-lang/covenant/internal/ast"
	"github.com/covenant-lang/covenant/internal/types"
)

// DefineType is the visibility class a function is defined with.
type DefineType int

const (
	DefineTypeReadOnly DefineType = iota
	DefineTypePublic
	DefineTypePrivate
)

func (d DefineType) String() string {
	switch d {
	case DefineTypeReadOnly:
		return "read-only"
	case DefineTypePublic:
		return "public"
	case DefineTypePrivate:
		return "private"
	default:
		return fmt.Sprintf("DefineType(%d)", int(d))
	}
}

// FunctionIdentifier names a function unambiguously across the whole
// system. It is a plain value: two identifiers denote the same function
// exactly when they are equal, and they can key maps directly.
//
// Built-ins live under a reserved prefix that can never occur in a
// contract identifier, so a built-in and a contract function with the
// same short name stay distinct.
type FunctionIdentifier struct {
	identifier string
}

// NewNativeFunctionIdentifier names a built-in function.
func NewNativeFunctionIdentifier(name string) FunctionIdentifier {
	return FunctionIdentifier{identifier: "_native_:" + name}
}

// NewUserFunctionIdentifier names a function defined by a contract.
// Context is the textual identifier of the defining contract.
func NewUserFunctionIdentifier(name, context string) FunctionIdentifier {
	return FunctionIdentifier{identifier: context + ":" + name}
}

func (f FunctionIdentifier) String() string { return f.identifier }

// Parameter pairs a declared argument name with its type signature.
type Parameter struct {
	Name string
	Type types.TypeSignature
}

// DefinedFunction is a function defined by a contract. It is inert data
// until applied; construction performs no validation.
type DefinedFunction struct {
	identifier FunctionIdentifier
	name       string
	argTypes   []types.TypeSignature
	defineType DefineType
	arguments  []string
	body       ast.Expr
}

// NewDefinedFunction records a function definition. The parameters are
// split into parallel name and type sequences kept in declaration order.
// Arity and admission are checked at apply time, not here.
func NewDefinedFunction(name string, params []Parameter, defineType DefineType, body ast.Expr, context string) *DefinedFunction {
	argNames := make([]string, len(params))
	argTypes := make([]types.TypeSignature, len(params))
	for i, p := range params {
		argNames[i] = p.Name
		argTypes[i] = p.Type
	}
	return &DefinedFunction{
		identifier: NewUserFunctionIdentifier(name, context),
		name:       name,
		argTypes:   argTypes,
		defineType: defineType,
		arguments:  argNames,
		body:       body,
	}
}

func (f *DefinedFunction) Name() string { return f.name }

func (f *DefinedFunction) Identifier() FunctionIdentifier { return f.identifier }

// Visibility returns the class the function was defined with.
func (f *DefinedFunction) Visibility() DefineType { return f.defineType }

// Arity returns the declared parameter count.
func (f *DefinedFunction) Arity() int { return len(f.arguments) }

// IsPublic reports whether the function may be called from outside its
// defining contract. Read-only functions are public.
func (f *DefinedFunction) IsPublic() bool {
	return f.defineType == DefineTypePublic || f.defineType == DefineTypeReadOnly
}

// IsReadOnly reports whether the function is barred from writing to the
// datastore.
func (f *DefinedFunction) IsReadOnly() bool {
	return f.defineType == DefineTypeReadOnly
}

// ExecuteApply binds args to the declared parameters in a fresh local
// context and evaluates the body. The context never captures anything
// from the caller; the arguments are all a call sees.
//
// A parameter declared with a trait reference type that receives a
// contract principal is not admission-checked here. The principal is
// recorded against the trait it must satisfy, resolved through the
// current contract's trait reference table, and the conformance check
// runs where the contract is actually called through the trait.
func (f *DefinedFunction) ExecuteApply(args []types.Value, env *Environment) (types.Value, error) {
	if len(args) != len(f.arguments) {
		return nil, &IncorrectArgumentCountError{Expected: len(f.arguments), Actual: len(args)}
	}

	ctx := NewLocalContext()
	for i, name := range f.arguments {
		sig := f.argTypes[i]
		value := args[i]

		if trait, ok := sig.(types.TraitReferenceType); ok {
			if principal, isPrincipal := value.(*types.PrincipalValue); isPrincipal && principal.IsContract() {
				traitID, found := env.ContractContext.LookupTraitReference(trait.Name)
				if !found {
					return nil, internalErrorf("trait reference %q has no binding in contract %s", trait.Name, env.ContractContext.ID)
				}
				contractID, _ := principal.ContractID()
				if err := ctx.BindCallableContract(name, CallableContract{Contract: contractID, Trait: traitID}); err != nil {
					return nil, err
				}
				continue
			}
		}

		if !sig.Admits(value) {
			return nil, &TypeValueError{Expected: sig, Value: value}
		}
		if err := ctx.Bind(name, value); err != nil {
			return nil, err
		}
	}

	result, err := eval(f.body, env, ctx)
	if err != nil {
		var ret *EarlyReturn
		if errors.As(err, &ret) {
			return ret.Value, nil
		}
		return nil, err
	}
	return result, nil
}

// CheckTraitExpectations verifies that this function satisfies the
// signature traitID declares for a method with this function's name.
// definingContract is the contract that defines the trait and
// contractToCheck is the contract this function belongs to.
//
// Trait-typed parameters are compared nominally: each side's alias is
// resolved through its own contract's trait reference table and the
// canonical identities must be the same trait. No structural comparison
// of the referenced traits happens. Every other parameter pair is a
// width check: the declared trait parameter type must admit the
// implementation's parameter type.
func (f *DefinedFunction) CheckTraitExpectations(definingContract *ContractContext, traitID types.TraitIdentifier, contractToCheck *ContractContext) error {
	traitDef, ok := definingContract.LookupTraitDefinition(traitID.Name)
	if !ok {
		return internalErrorf("trait %s is not defined by contract %s", traitID.Name, definingContract.ID)
	}
	expected, ok := traitDef[f.name]
	if !ok {
		return internalErrorf("trait %s does not declare a function %q", traitID, f.name)
	}

	if len(expected.Args) != len(f.argTypes) {
		return &BadTraitImplementationError{TraitName: traitID.Name, FunctionName: f.name}
	}
	for i, want := range expected.Args {
		got := f.argTypes[i]
		wantTrait, wantIsTrait := want.(types.TraitReferenceType)
		gotTrait, gotIsTrait := got.(types.TraitReferenceType)

		if wantIsTrait && gotIsTrait {
			wantID, okWant := definingContract.LookupTraitReference(wantTrait.Name)
			gotID, okGot := contractToCheck.LookupTraitReference(gotTrait.Name)
			if !okWant || !okGot || wantID != gotID {
				return &BadTraitImplementationError{TraitName: traitID.Name, FunctionName: f.name}
			}
			continue
		}
		if !want.AdmitsType(got) {
			return &BadTraitImplementationError{TraitName: traitID.Name, FunctionName: f.name}
		}
	}
	return nil
}

// Apply routes a call by visibility. Private functions run directly in
// the caller's environment. Public and read-only functions always run
// through the transactional path, whatever the caller.
func (f *DefinedFunction) Apply(args []types.Value, env *Environment) (types.Value, error) {
	if f.defineType == DefineTypePrivate {
		return f.ExecuteApply(args, env)
	}
	return env.ExecuteFunctionAsTransaction(f, args, nil)
}

// NativeHandler is the implementation of a built-in function. Arguments
// arrive already evaluated.
type NativeHandler func(args []types.Value) (types.Value, error)

// SpecialHandler receives its argument expressions unevaluated together
// with the evaluation state, so the form controls evaluation order and
// scope itself.
type SpecialHandler func(args []ast.Expr, env *Environment, ctx *LocalContext) (types.Value, error)

// Callable is anything the evaluator can place in function position.
type Callable interface {
	Identifier() FunctionIdentifier
}

// UserFunction adapts a DefinedFunction to callable dispatch.
type UserFunction struct {
	Fn *DefinedFunction
}

func (u *UserFunction) Identifier() FunctionIdentifier { return u.Fn.Identifier() }

// NativeFunction is a built-in operating on evaluated values.
type NativeFunction struct {
	Name string
	Fn   NativeHandler
}

func (n *NativeFunction) Identifier() FunctionIdentifier {
	return NewNativeFunctionIdentifier(n.Name)
}

// SpecialFunction is a built-in form with its own evaluation rules.
type SpecialFunction struct {
	Name string
	Fn   SpecialHandler
}

func (s *SpecialFunction) Identifier() FunctionIdentifier {
	return NewNativeFunctionIdentifier(s.Name)
}

// CallableContract pairs a contract principal bound to a trait-typed
// parameter with the trait it is expected to satisfy.
type CallableContract struct {
	Contract types.ContractIdentifier
	Trait    types.TraitIdentifier
}
