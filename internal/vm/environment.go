package vm

import (
	"github.com/covenant-lang/covenant/internal/types"
)

// Environment binds an evaluation to the global state, the contract the
// code belongs to, the call stack and the transaction identities.
type Environment struct {
	Global          *GlobalContext
	ContractContext *ContractContext
	CallStack       *CallStack

	// Sender is the principal the transaction runs as. It survives
	// cross-contract calls unchanged.
	Sender *types.PrincipalValue

	// Caller is the immediate caller: the sender at the top level, the
	// calling contract after a cross-contract call.
	Caller *types.PrincipalValue
}

func NewEnvironment(g *GlobalContext, cc *ContractContext, sender *types.PrincipalValue) *Environment {
	return &Environment{
		Global:          g,
		ContractContext: cc,
		CallStack:       NewCallStack(),
		Sender:          sender,
		Caller:          sender,
	}
}

// NestedWith returns an environment for executing inside another
// contract on behalf of this one. The sender is preserved and the caller
// becomes the contract issuing the call.
func (e *Environment) NestedWith(cc *ContractContext) *Environment {
	return &Environment{
		Global:          e.Global,
		ContractContext: cc,
		CallStack:       e.CallStack,
		Sender:          e.Sender,
		Caller:          types.NewContractPrincipal(e.ContractContext.ID),
	}
}

// withSender returns an environment running as sender, with the caller
// reset to match.
func (e *Environment) withSender(sender *types.PrincipalValue) *Environment {
	return &Environment{
		Global:          e.Global,
		ContractContext: e.ContractContext,
		CallStack:       e.CallStack,
		Sender:          sender,
		Caller:          sender,
	}
}

// ExecuteFunctionAsTransaction runs f inside a nested datastore frame.
// The frame commits when the call succeeds and rolls back when it fails.
// A public function returning an uncommitted response also rolls the
// frame back, but the response itself still travels to the caller as an
// ordinary value. A non-nil sender overrides the transaction sender for
// the duration of the call.
func (e *Environment) ExecuteFunctionAsTransaction(f *DefinedFunction, args []types.Value, sender *types.PrincipalValue) (types.Value, error) {
	env := e
	if sender != nil {
		env = e.withSender(sender)
	}

	g := env.Global
	if f.IsReadOnly() {
		g.beginReadOnly()
		defer g.endReadOnly()
	}

	g.store.Begin()
	result, err := f.ExecuteApply(args, env)
	if err != nil {
		g.store.Rollback()
		return nil, err
	}
	if resp, ok := result.(*types.ResponseValue); ok && !resp.Committed {
		g.store.Rollback()
		return result, nil
	}
	if err := g.store.Commit(); err != nil {
		return nil, err
	}
	return result, nil
}

// LookupFunction resolves a name in function position. Built-in forms
// are reserved and take precedence over contract definitions.
func (e *Environment) LookupFunction(name string) (Callable, error) {
	if s, ok := specialTable[name]; ok {
		return s, nil
	}
	if n, ok := nativeTable[name]; ok {
		return n, nil
	}
	if f, ok := e.ContractContext.LookupFunction(name); ok {
		return &UserFunction{Fn: f}, nil
	}
	return nil, &UndefinedFunctionError{Name: name}
}
