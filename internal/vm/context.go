package vm

import (
	"sort"

	"github.com/covenant-lang/covenant/internal/config"
	"github.com/covenant-lang/covenant/internal/types"
)

// LocalContext is one frame of call-local bindings. Frames chain to a
// parent and lookups walk the chain outward. Trait-bound contracts live
// in their own side table, owned by the frame exactly like the value
// bindings.
type LocalContext struct {
	parent    *LocalContext
	variables map[string]types.Value
	callables map[string]CallableContract
	depth     int
}

func NewLocalContext() *LocalContext {
	return &LocalContext{
		variables: make(map[string]types.Value),
		callables: make(map[string]CallableContract),
	}
}

// Extend opens a child frame. The chain depth is capped.
func (c *LocalContext) Extend() (*LocalContext, error) {
	if c.depth+1 > config.MaxContextDepth {
		return nil, &ContextDepthError{Depth: c.depth + 1}
	}
	return &LocalContext{
		parent:    c,
		variables: make(map[string]types.Value),
		callables: make(map[string]CallableContract),
		depth:     c.depth + 1,
	}, nil
}

// Bind adds a value binding to this frame. Rebinding a name already used
// in this frame fails; shadowing an outer frame is fine.
func (c *LocalContext) Bind(name string, v types.Value) error {
	if c.boundHere(name) {
		return &NameAlreadyUsedError{Name: name}
	}
	c.variables[name] = v
	return nil
}

// BindCallableContract records a contract principal under a trait-typed
// parameter name. The name shares one namespace with value bindings.
func (c *LocalContext) BindCallableContract(name string, cc CallableContract) error {
	if c.boundHere(name) {
		return &NameAlreadyUsedError{Name: name}
	}
	c.callables[name] = cc
	return nil
}

func (c *LocalContext) boundHere(name string) bool {
	if _, ok := c.variables[name]; ok {
		return true
	}
	_, ok := c.callables[name]
	return ok
}

// LookupVariable walks the frame chain for a value binding.
func (c *LocalContext) LookupVariable(name string) (types.Value, bool) {
	for f := c; f != nil; f = f.parent {
		if v, ok := f.variables[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// LookupCallableContract walks the frame chain for a trait binding.
func (c *LocalContext) LookupCallableContract(name string) (CallableContract, bool) {
	for f := c; f != nil; f = f.parent {
		if cc, ok := f.callables[name]; ok {
			return cc, true
		}
	}
	return CallableContract{}, false
}

// ContractContext is everything a deployed contract carries at run time:
// its functions, constants, data variable signatures and trait tables.
type ContractContext struct {
	ID types.ContractIdentifier

	Functions map[string]*DefinedFunction

	// Variables holds the contract's constants.
	Variables map[string]types.Value

	// DataVars holds the declared signatures of the contract's data
	// variables. The values themselves live in the datastore.
	DataVars map[string]types.TypeSignature

	// DefinedTraits maps a trait name to its method signatures.
	DefinedTraits map[string]map[string]types.FunctionSignature

	// ReferencedTraits maps a local alias introduced by use-trait to the
	// canonical identity of the trait it names.
	ReferencedTraits map[string]types.TraitIdentifier

	// Implemented lists the traits the contract claims to implement.
	Implemented []types.TraitIdentifier
}

func NewContractContext(id types.ContractIdentifier) *ContractContext {
	return &ContractContext{
		ID:               id,
		Functions:        make(map[string]*DefinedFunction),
		Variables:        make(map[string]types.Value),
		DataVars:         make(map[string]types.TypeSignature),
		DefinedTraits:    make(map[string]map[string]types.FunctionSignature),
		ReferencedTraits: make(map[string]types.TraitIdentifier),
	}
}

// LookupFunction returns a function the contract defines.
func (c *ContractContext) LookupFunction(name string) (*DefinedFunction, bool) {
	f, ok := c.Functions[name]
	return f, ok
}

// LookupTraitDefinition returns the method signatures of a trait this
// contract defines.
func (c *ContractContext) LookupTraitDefinition(name string) (map[string]types.FunctionSignature, bool) {
	def, ok := c.DefinedTraits[name]
	return def, ok
}

// LookupTraitReference resolves a local trait name to its canonical
// identity. Aliases from use-trait take precedence; a trait the contract
// defines itself is reachable under its own name.
func (c *ContractContext) LookupTraitReference(name string) (types.TraitIdentifier, bool) {
	if id, ok := c.ReferencedTraits[name]; ok {
		return id, true
	}
	if _, ok := c.DefinedTraits[name]; ok {
		return types.TraitIdentifier{Contract: c.ID, Name: name}, true
	}
	return types.TraitIdentifier{}, false
}

// FunctionNames returns the defined function names sorted.
func (c *ContractContext) FunctionNames() []string {
	names := make([]string, 0, len(c.Functions))
	for name := range c.Functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// boundName reports whether a top-level definition already uses name.
func (c *ContractContext) boundName(name string) bool {
	if _, ok := c.Functions[name]; ok {
		return true
	}
	if _, ok := c.Variables[name]; ok {
		return true
	}
	if _, ok := c.DataVars[name]; ok {
		return true
	}
	if _, ok := c.ReferencedTraits[name]; ok {
		return true
	}
	_, ok := c.DefinedTraits[name]
	return ok
}

// CallStack tracks the chain of function applications for depth
// enforcement and diagnostics.
type CallStack struct {
	stack []FunctionIdentifier
}

func NewCallStack() *CallStack { return &CallStack{} }

func (s *CallStack) Depth() int { return len(s.stack) }

func (s *CallStack) Push(id FunctionIdentifier) error {
	if len(s.stack)+1 > config.MaxCallDepth {
		return &CallStackDepthError{Depth: len(s.stack) + 1}
	}
	s.stack = append(s.stack, id)
	return nil
}

// Pop removes the newest frame, verifying it is the expected one.
func (s *CallStack) Pop(id FunctionIdentifier) error {
	n := len(s.stack)
	if n == 0 || s.stack[n-1] != id {
		return internalErrorf("call stack out of order on pop of %s", id)
	}
	s.stack = s.stack[:n-1]
	return nil
}
