package vm

import (
	"fmt"

	"github.com/covenant-lang/covenant/internal/ast"
	"github.com/covenant-lang/covenant/internal/types"
)

// specialTable lists the forms that control their own evaluation. The
// handlers reach specialTable again through eval, so the table is filled
// in init rather than in its declaration.
var specialTable = map[string]*SpecialFunction{}

func init() {
	for _, s := range []*SpecialFunction{
		{Name: "if", Fn: specialIf},
		{Name: "let", Fn: specialLet},
		{Name: "begin", Fn: specialBegin},
		{Name: "and", Fn: specialAnd},
		{Name: "or", Fn: specialOr},
		{Name: "asserts!", Fn: specialAsserts},
		{Name: "try!", Fn: specialTry},
		{Name: "unwrap!", Fn: specialUnwrap},
		{Name: "unwrap-err!", Fn: specialUnwrapErr},
		{Name: "get", Fn: specialGet},
		{Name: "tuple", Fn: specialTuple},
		{Name: "print", Fn: specialPrint},
		{Name: "var-get", Fn: specialVarGet},
		{Name: "var-set", Fn: specialVarSet},
		{Name: "contract-call?", Fn: specialContractCall},
	} {
		specialTable[s.Name] = s
	}
}

func evalBool(expr ast.Expr, env *Environment, ctx *LocalContext) (bool, error) {
	v, err := eval(expr, env, ctx)
	if err != nil {
		return false, err
	}
	b, ok := v.(*types.BoolValue)
	if !ok {
		return false, &TypeValueError{Expected: types.BoolType{}, Value: v}
	}
	return b.Val, nil
}

func specialIf(args []ast.Expr, env *Environment, ctx *LocalContext) (types.Value, error) {
	if len(args) != 3 {
		return nil, &IncorrectArgumentCountError{Expected: 3, Actual: len(args)}
	}
	cond, err := evalBool(args[0], env, ctx)
	if err != nil {
		return nil, err
	}
	if cond {
		return eval(args[1], env, ctx)
	}
	return eval(args[2], env, ctx)
}

// specialLet opens a child binding frame. Each initializer already sees
// the bindings before it.
func specialLet(args []ast.Expr, env *Environment, ctx *LocalContext) (types.Value, error) {
	if len(args) < 2 {
		return nil, &IncorrectArgumentCountError{Expected: 2, Actual: len(args)}
	}
	bindings, ok := args[0].(*ast.List)
	if !ok {
		return nil, &SyntaxError{Form: "let", Reason: "expected a list of bindings"}
	}
	inner, err := ctx.Extend()
	if err != nil {
		return nil, err
	}
	for _, b := range bindings.Items {
		pair, ok := b.(*ast.List)
		if !ok || len(pair.Items) != 2 {
			return nil, &SyntaxError{Form: "let", Reason: "each binding needs a name and a value"}
		}
		name, ok := pair.Items[0].(*ast.Atom)
		if !ok {
			return nil, &SyntaxError{Form: "let", Reason: "binding names must be plain names"}
		}
		if isReservedName(name.Name) {
			return nil, &NameAlreadyUsedError{Name: name.Name}
		}
		v, err := eval(pair.Items[1], env, inner)
		if err != nil {
			return nil, err
		}
		if err := inner.Bind(name.Name, v); err != nil {
			return nil, err
		}
	}
	var result types.Value
	for _, body := range args[1:] {
		result, err = eval(body, env, inner)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

func specialBegin(args []ast.Expr, env *Environment, ctx *LocalContext) (types.Value, error) {
	if len(args) == 0 {
		return nil, &IncorrectArgumentCountError{Expected: 1, Actual: 0}
	}
	var result types.Value
	var err error
	for _, e := range args {
		result, err = eval(e, env, ctx)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

func specialAnd(args []ast.Expr, env *Environment, ctx *LocalContext) (types.Value, error) {
	if len(args) == 0 {
		return nil, &IncorrectArgumentCountError{Expected: 1, Actual: 0}
	}
	for _, e := range args {
		b, err := evalBool(e, env, ctx)
		if err != nil {
			return nil, err
		}
		if !b {
			return types.False, nil
		}
	}
	return types.True, nil
}

func specialOr(args []ast.Expr, env *Environment, ctx *LocalContext) (types.Value, error) {
	if len(args) == 0 {
		return nil, &IncorrectArgumentCountError{Expected: 1, Actual: 0}
	}
	for _, e := range args {
		b, err := evalBool(e, env, ctx)
		if err != nil {
			return nil, err
		}
		if b {
			return types.True, nil
		}
	}
	return types.False, nil
}

// specialAsserts returns true when the condition holds and otherwise
// exits the enclosing function with the thrown value.
func specialAsserts(args []ast.Expr, env *Environment, ctx *LocalContext) (types.Value, error) {
	if len(args) != 2 {
		return nil, &IncorrectArgumentCountError{Expected: 2, Actual: len(args)}
	}
	cond, err := evalBool(args[0], env, ctx)
	if err != nil {
		return nil, err
	}
	if cond {
		return types.True, nil
	}
	thrown, err := eval(args[1], env, ctx)
	if err != nil {
		return nil, err
	}
	return nil, &EarlyReturn{Value: thrown}
}

// specialTry unwraps an ok or some value and exits the enclosing
// function with the input itself on err or none.
func specialTry(args []ast.Expr, env *Environment, ctx *LocalContext) (types.Value, error) {
	if len(args) != 1 {
		return nil, &IncorrectArgumentCountError{Expected: 1, Actual: len(args)}
	}
	v, err := eval(args[0], env, ctx)
	if err != nil {
		return nil, err
	}
	switch inner := v.(type) {
	case *types.OptionalValue:
		if inner.IsNone() {
			return nil, &EarlyReturn{Value: types.None}
		}
		return inner.Val, nil
	case *types.ResponseValue:
		if !inner.Committed {
			return nil, &EarlyReturn{Value: inner}
		}
		return inner.Val, nil
	default:
		return nil, &OperationError{Op: "try!", Reason: "expected an optional or response value, got " + v.Type()}
	}
}

func specialUnwrap(args []ast.Expr, env *Environment, ctx *LocalContext) (types.Value, error) {
	if len(args) != 2 {
		return nil, &IncorrectArgumentCountError{Expected: 2, Actual: len(args)}
	}
	v, err := eval(args[0], env, ctx)
	if err != nil {
		return nil, err
	}
	switch inner := v.(type) {
	case *types.OptionalValue:
		if !inner.IsNone() {
			return inner.Val, nil
		}
	case *types.ResponseValue:
		if inner.Committed {
			return inner.Val, nil
		}
	default:
		return nil, &OperationError{Op: "unwrap!", Reason: "expected an optional or response value, got " + v.Type()}
	}
	thrown, err := eval(args[1], env, ctx)
	if err != nil {
		return nil, err
	}
	return nil, &EarlyReturn{Value: thrown}
}

func specialUnwrapErr(args []ast.Expr, env *Environment, ctx *LocalContext) (types.Value, error) {
	if len(args) != 2 {
		return nil, &IncorrectArgumentCountError{Expected: 2, Actual: len(args)}
	}
	v, err := eval(args[0], env, ctx)
	if err != nil {
		return nil, err
	}
	resp, ok := v.(*types.ResponseValue)
	if !ok {
		return nil, &OperationError{Op: "unwrap-err!", Reason: "expected a response value, got " + v.Type()}
	}
	if !resp.Committed {
		return resp.Val, nil
	}
	thrown, err := eval(args[1], env, ctx)
	if err != nil {
		return nil, err
	}
	return nil, &EarlyReturn{Value: thrown}
}

func specialGet(args []ast.Expr, env *Environment, ctx *LocalContext) (types.Value, error) {
	if len(args) != 2 {
		return nil, &IncorrectArgumentCountError{Expected: 2, Actual: len(args)}
	}
	field, ok := args[0].(*ast.Atom)
	if !ok {
		return nil, &SyntaxError{Form: "get", Reason: "field must be a plain name"}
	}
	v, err := eval(args[1], env, ctx)
	if err != nil {
		return nil, err
	}
	tuple, ok := v.(*types.TupleValue)
	if !ok {
		return nil, &OperationError{Op: "get", Reason: "expected a tuple value, got " + v.Type()}
	}
	value, ok := tuple.Fields[field.Name]
	if !ok {
		return nil, &NoSuchTupleFieldError{Name: field.Name}
	}
	return value, nil
}

func specialTuple(args []ast.Expr, env *Environment, ctx *LocalContext) (types.Value, error) {
	if len(args) == 0 {
		return nil, &IncorrectArgumentCountError{Expected: 1, Actual: 0}
	}
	fields := make(map[string]types.Value, len(args))
	for _, arg := range args {
		pair, ok := arg.(*ast.List)
		if !ok || len(pair.Items) != 2 {
			return nil, &SyntaxError{Form: "tuple", Reason: "each field needs a name and a value"}
		}
		name, ok := pair.Items[0].(*ast.Atom)
		if !ok || !types.IsValidName(name.Name) {
			return nil, &SyntaxError{Form: "tuple", Reason: "field names must be plain names"}
		}
		if _, dup := fields[name.Name]; dup {
			return nil, &NameAlreadyUsedError{Name: name.Name}
		}
		v, err := eval(pair.Items[1], env, ctx)
		if err != nil {
			return nil, err
		}
		fields[name.Name] = v
	}
	return &types.TupleValue{Fields: fields}, nil
}

// specialPrint appends the rendered value to the transaction event log
// and passes the value through.
func specialPrint(args []ast.Expr, env *Environment, ctx *LocalContext) (types.Value, error) {
	if len(args) != 1 {
		return nil, &IncorrectArgumentCountError{Expected: 1, Actual: len(args)}
	}
	v, err := eval(args[0], env, ctx)
	if err != nil {
		return nil, err
	}
	g := env.Global
	g.emitEvent(v.String())
	if g.out != nil {
		fmt.Fprintln(g.out, v.String())
	}
	return v, nil
}

func specialVarGet(args []ast.Expr, env *Environment, ctx *LocalContext) (types.Value, error) {
	if len(args) != 1 {
		return nil, &IncorrectArgumentCountError{Expected: 1, Actual: len(args)}
	}
	name, ok := args[0].(*ast.Atom)
	if !ok {
		return nil, &SyntaxError{Form: "var-get", Reason: "variable must be a plain name"}
	}
	if _, declared := env.ContractContext.DataVars[name.Name]; !declared {
		return nil, &UndefinedVariableError{Name: name.Name}
	}
	raw, found, err := env.Global.store.Get(dataVarKey(env.ContractContext.ID, name.Name))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, internalErrorf("data variable %q of %s has no stored value", name.Name, env.ContractContext.ID)
	}
	return types.DeserializeHex(raw)
}

func specialVarSet(args []ast.Expr, env *Environment, ctx *LocalContext) (types.Value, error) {
	if len(args) != 2 {
		return nil, &IncorrectArgumentCountError{Expected: 2, Actual: len(args)}
	}
	name, ok := args[0].(*ast.Atom)
	if !ok {
		return nil, &SyntaxError{Form: "var-set", Reason: "variable must be a plain name"}
	}
	sig, declared := env.ContractContext.DataVars[name.Name]
	if !declared {
		return nil, &UndefinedVariableError{Name: name.Name}
	}
	if env.Global.InReadOnly() {
		return nil, &ReadOnlyViolationError{Op: "var-set"}
	}
	v, err := eval(args[1], env, ctx)
	if err != nil {
		return nil, err
	}
	if !sig.Admits(v) {
		return nil, &TypeValueError{Expected: sig, Value: v}
	}
	encoded, err := types.SerializeHex(v)
	if err != nil {
		return nil, err
	}
	if err := env.Global.store.Put(dataVarKey(env.ContractContext.ID, name.Name), encoded); err != nil {
		return nil, err
	}
	return types.True, nil
}

// specialContractCall invokes a public function of another contract. The
// callee is either a literal contract principal or a parameter bound
// through a trait; the trait route verifies conformance of the concrete
// contract before the call runs.
func specialContractCall(args []ast.Expr, env *Environment, ctx *LocalContext) (types.Value, error) {
	if len(args) < 2 {
		return nil, &IncorrectArgumentCountError{Expected: 2, Actual: len(args)}
	}
	fnAtom, ok := args[1].(*ast.Atom)
	if !ok {
		return nil, &SyntaxError{Form: "contract-call?", Reason: "function must be a plain name"}
	}
	fnName := fnAtom.Name

	var targetID types.ContractIdentifier
	var viaTrait *types.TraitIdentifier

	switch target := args[0].(type) {
	case *ast.PrincipalLiteral:
		if target.Contract == "" {
			return nil, &SyntaxError{Form: "contract-call?", Reason: "callee must be a contract principal"}
		}
		address := target.Address
		if address == "" {
			address = env.ContractContext.ID.Address
		}
		targetID = types.ContractIdentifier{Address: address, Name: target.Contract}
	case *ast.Atom:
		cc, bound := ctx.LookupCallableContract(target.Name)
		if !bound {
			if _, isVar := ctx.LookupVariable(target.Name); isVar {
				return nil, &SyntaxError{Form: "contract-call?", Reason: fmt.Sprintf("%s is not bound through a trait", target.Name)}
			}
			return nil, &UndefinedVariableError{Name: target.Name}
		}
		targetID = cc.Contract
		viaTrait = &cc.Trait
	default:
		return nil, &SyntaxError{Form: "contract-call?", Reason: "callee must be a contract principal or a trait parameter"}
	}

	if targetID == env.ContractContext.ID {
		return nil, &SyntaxError{Form: "contract-call?", Reason: "a contract cannot call itself"}
	}

	targetCtx, err := env.Global.GetContract(targetID)
	if err != nil {
		return nil, err
	}

	fn, found := targetCtx.LookupFunction(fnName)
	if viaTrait != nil {
		if !found {
			return nil, &BadTraitImplementationError{TraitName: viaTrait.Name, FunctionName: fnName}
		}
		defining := env.ContractContext
		if viaTrait.Contract != env.ContractContext.ID {
			defining, err = env.Global.GetContract(viaTrait.Contract)
			if err != nil {
				return nil, err
			}
		}
		if err := fn.CheckTraitExpectations(defining, *viaTrait, targetCtx); err != nil {
			return nil, err
		}
		if !fn.IsPublic() {
			return nil, &NoSuchPublicFunctionError{Contract: targetID, Name: fnName}
		}
	} else if !found || !fn.IsPublic() {
		return nil, &NoSuchPublicFunctionError{Contract: targetID, Name: fnName}
	}

	if env.Global.InReadOnly() && !fn.IsReadOnly() {
		return nil, &ReadOnlyViolationError{Op: "contract-call?"}
	}

	callArgs, err := evalArgs(args[2:], env, ctx)
	if err != nil {
		return nil, err
	}

	nested := env.NestedWith(targetCtx)
	if err := env.CallStack.Push(fn.Identifier()); err != nil {
		return nil, err
	}
	result, err := fn.Apply(callArgs, nested)
	if perr := env.CallStack.Pop(fn.Identifier()); perr != nil && err == nil {
		err = perr
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}
