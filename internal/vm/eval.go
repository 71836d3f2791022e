package vm

import (
	"github.com/covenant-lang/covenant/internal/ast"
	"github.com/covenant-lang/covenant/internal/config"
	"github.com/covenant-lang/covenant/internal/types"
)

// eval evaluates one expression. Every node charges one budget unit
// before it is examined.
func eval(expr ast.Expr, env *Environment, ctx *LocalContext) (types.Value, error) {
	if err := env.Global.cost.Tick(1); err != nil {
		return nil, err
	}

	switch e := expr.(type) {
	case *ast.IntLiteral:
		return types.NewInt(e.Value), nil
	case *ast.UintLiteral:
		return types.NewUint(e.Value), nil
	case *ast.BufferLiteral:
		return types.NewBuffer(e.Value), nil
	case *ast.StringLiteral:
		return &types.StringValue{Val: e.Value}, nil
	case *ast.PrincipalLiteral:
		address := e.Address
		if address == "" {
			address = env.ContractContext.ID.Address
		}
		return &types.PrincipalValue{Address: address, ContractName: e.Contract}, nil
	case *ast.Atom:
		return lookupAtom(e.Name, env, ctx)
	case *ast.List:
		return evalList(e, env, ctx)
	case *ast.TraitRef:
		return nil, &SyntaxError{Form: e.String(), Reason: "trait references are only valid in type positions"}
	case *ast.FieldRef:
		return nil, &SyntaxError{Form: e.String(), Reason: "trait field references are only valid in use-trait and impl-trait"}
	default:
		return nil, internalErrorf("unhandled expression %T", expr)
	}
}

// lookupAtom resolves a bare name. Keywords are reserved and cannot be
// shadowed; definitions reject them, so the order here is not
// observable. A trait-bound parameter reads back as the bound contract's
// principal.
func lookupAtom(name string, env *Environment, ctx *LocalContext) (types.Value, error) {
	switch name {
	case config.KeywordTrue:
		return types.True, nil
	case config.KeywordFalse:
		return types.False, nil
	case config.KeywordNone:
		return types.None, nil
	case config.KeywordTxSender:
		if env.Sender == nil {
			return nil, &UndefinedVariableError{Name: name}
		}
		return env.Sender, nil
	case config.KeywordContractCaller:
		if env.Caller == nil {
			return nil, &UndefinedVariableError{Name: name}
		}
		return env.Caller, nil
	case config.KeywordBlockHeight:
		return types.NewUintFromUint64(env.Global.blockHeight), nil
	}

	if v, ok := ctx.LookupVariable(name); ok {
		return v, nil
	}
	if cc, ok := ctx.LookupCallableContract(name); ok {
		return types.NewContractPrincipal(cc.Contract), nil
	}
	if v, ok := env.ContractContext.Variables[name]; ok {
		return v, nil
	}
	return nil, &UndefinedVariableError{Name: name}
}

func evalList(list *ast.List, env *Environment, ctx *LocalContext) (types.Value, error) {
	if len(list.Items) == 0 {
		return nil, &SyntaxError{Form: "()", Reason: "empty application"}
	}
	head, ok := list.Items[0].(*ast.Atom)
	if !ok {
		return nil, &SyntaxError{Form: list.String(), Reason: "function position must be a name"}
	}
	callable, err := env.LookupFunction(head.Name)
	if err != nil {
		return nil, err
	}
	return apply(callable, list.Items[1:], env, ctx)
}

// apply dispatches a callable. Special forms receive the expressions
// raw; everything else evaluates its arguments eagerly, left to right,
// and runs inside a call stack frame.
func apply(c Callable, argExprs []ast.Expr, env *Environment, ctx *LocalContext) (types.Value, error) {
	switch fn := c.(type) {
	case *SpecialFunction:
		return fn.Fn(argExprs, env, ctx)

	case *NativeFunction:
		args, err := evalArgs(argExprs, env, ctx)
		if err != nil {
			return nil, err
		}
		if err := env.CallStack.Push(fn.Identifier()); err != nil {
			return nil, err
		}
		result, err := fn.Fn(args)
		if perr := env.CallStack.Pop(fn.Identifier()); perr != nil && err == nil {
			err = perr
		}
		if err != nil {
			return nil, err
		}
		return result, nil

	case *UserFunction:
		args, err := evalArgs(argExprs, env, ctx)
		if err != nil {
			return nil, err
		}
		if err := env.CallStack.Push(fn.Identifier()); err != nil {
			return nil, err
		}
		result, err := fn.Fn.Apply(args, env)
		if perr := env.CallStack.Pop(fn.Identifier()); perr != nil && err == nil {
			err = perr
		}
		if err != nil {
			return nil, err
		}
		return result, nil

	default:
		return nil, internalErrorf("unknown callable %T", c)
	}
}

func evalArgs(exprs []ast.Expr, env *Environment, ctx *LocalContext) ([]types.Value, error) {
	args := make([]types.Value, 0, len(exprs))
	for _, e := range exprs {
		v, err := eval(e, env, ctx)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	return args, nil
}
