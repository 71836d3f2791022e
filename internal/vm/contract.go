package vm

import (
	"math"
	"sort"

	"github.com/covenant-lang/covenant/internal/ast"
	"github.com/covenant-lang/covenant/internal/config"
	"github.com/covenant-lang/covenant/internal/types"
)

// isReservedName reports whether name collides with a keyword or a
// built-in function.
func isReservedName(name string) bool {
	switch name {
	case config.KeywordTrue, config.KeywordFalse, config.KeywordNone,
		config.KeywordTxSender, config.KeywordContractCaller, config.KeywordBlockHeight:
		return true
	}
	if _, ok := nativeTable[name]; ok {
		return true
	}
	_, ok := specialTable[name]
	return ok
}

// initializeContract builds the runtime context of a contract from its
// parsed source. With deploy set, top-level expressions run and data
// variables receive their initial stored values; on a restore the
// definitions are rebuilt but the datastore is left alone.
//
// Trait implementation claims are verified only after every definition
// has been processed, so a contract may claim a trait whose methods it
// defines further down.
func initializeContract(g *GlobalContext, id types.ContractIdentifier, exprs []ast.Expr, deploy bool) (*ContractContext, error) {
	cc := NewContractContext(id)
	env := NewEnvironment(g, cc, &types.PrincipalValue{Address: id.Address})
	topCtx := NewLocalContext()

	var claims []types.TraitIdentifier
	for _, expr := range exprs {
		handled, err := topLevelDefine(g, cc, expr, env, deploy, &claims)
		if err != nil {
			return nil, err
		}
		if handled {
			continue
		}
		if !deploy {
			continue
		}
		if _, err := eval(expr, env, topCtx); err != nil {
			return nil, err
		}
	}

	if err := verifyImplementedTraits(g, cc, claims); err != nil {
		return nil, err
	}
	return cc, nil
}

// topLevelDefine dispatches a definition form. It reports whether expr
// was one; anything else is left for the caller to evaluate. Trait
// implementation claims go on claims instead of being verified here.
func topLevelDefine(g *GlobalContext, cc *ContractContext, expr ast.Expr, env *Environment, deploy bool, claims *[]types.TraitIdentifier) (bool, error) {
	list, ok := expr.(*ast.List)
	if !ok || len(list.Items) == 0 {
		return false, nil
	}
	head, ok := list.Items[0].(*ast.Atom)
	if !ok {
		return false, nil
	}
	switch head.Name {
	case "define-public":
		return true, defineFunction(cc, list, DefineTypePublic)
	case "define-private":
		return true, defineFunction(cc, list, DefineTypePrivate)
	case "define-read-only":
		return true, defineFunction(cc, list, DefineTypeReadOnly)
	case "define-constant":
		return true, defineConstant(cc, list, env)
	case "define-data-var":
		return true, defineDataVar(cc, list, env, deploy)
	case "define-trait":
		return true, defineTrait(cc, list)
	case "use-trait":
		return true, useTrait(g, cc, list)
	case "impl-trait":
		claim, err := implTraitClaim(cc, list)
		if err != nil {
			return true, err
		}
		*claims = append(*claims, claim)
		return true, nil
	default:
		return false, nil
	}
}

// definitionName validates the name a top-level definition introduces.
func definitionName(cc *ContractContext, e ast.Expr, form string) (string, error) {
	atom, ok := e.(*ast.Atom)
	if !ok {
		return "", &SyntaxError{Form: form, Reason: "name must be a plain name"}
	}
	if !types.IsValidName(atom.Name) {
		return "", &SyntaxError{Form: form, Reason: "invalid name " + atom.Name}
	}
	if isReservedName(atom.Name) || cc.boundName(atom.Name) {
		return "", &NameAlreadyUsedError{Name: atom.Name}
	}
	return atom.Name, nil
}

func defineFunction(cc *ContractContext, list *ast.List, defineType DefineType) error {
	form := "define-" + defineType.String()
	if len(list.Items) != 3 {
		return &SyntaxError{Form: form, Reason: "expected a signature and a single body expression"}
	}
	sig, ok := list.Items[1].(*ast.List)
	if !ok || len(sig.Items) == 0 {
		return &SyntaxError{Form: form, Reason: "expected a signature list"}
	}
	name, err := definitionName(cc, sig.Items[0], form)
	if err != nil {
		return err
	}
	params, err := parseFunctionParameters(sig.Items[1:], form)
	if err != nil {
		return err
	}
	cc.Functions[name] = NewDefinedFunction(name, params, defineType, list.Items[2], cc.ID.String())
	return nil
}

// parseFunctionParameters reads (name type) pairs. Duplicate parameter
// names are not rejected here; the collision surfaces when the function
// is applied and the second binding fails.
func parseFunctionParameters(items []ast.Expr, form string) ([]Parameter, error) {
	params := make([]Parameter, 0, len(items))
	for _, item := range items {
		pair, ok := item.(*ast.List)
		if !ok || len(pair.Items) != 2 {
			return nil, &SyntaxError{Form: form, Reason: "each parameter needs a name and a type"}
		}
		atom, ok := pair.Items[0].(*ast.Atom)
		if !ok || !types.IsValidName(atom.Name) {
			return nil, &SyntaxError{Form: form, Reason: "parameter names must be plain names"}
		}
		if isReservedName(atom.Name) {
			return nil, &NameAlreadyUsedError{Name: atom.Name}
		}
		sig, err := parseTypeSignature(pair.Items[1], form)
		if err != nil {
			return nil, err
		}
		params = append(params, Parameter{Name: atom.Name, Type: sig})
	}
	return params, nil
}

func defineConstant(cc *ContractContext, list *ast.List, env *Environment) error {
	if len(list.Items) != 3 {
		return &SyntaxError{Form: "define-constant", Reason: "expected a name and a value"}
	}
	name, err := definitionName(cc, list.Items[1], "define-constant")
	if err != nil {
		return err
	}
	v, err := eval(list.Items[2], env, NewLocalContext())
	if err != nil {
		return err
	}
	cc.Variables[name] = v
	return nil
}

func defineDataVar(cc *ContractContext, list *ast.List, env *Environment, deploy bool) error {
	if len(list.Items) != 4 {
		return &SyntaxError{Form: "define-data-var", Reason: "expected a name, a type and an initial value"}
	}
	name, err := definitionName(cc, list.Items[1], "define-data-var")
	if err != nil {
		return err
	}
	sig, err := parseTypeSignature(list.Items[2], "define-data-var")
	if err != nil {
		return err
	}
	initial, err := eval(list.Items[3], env, NewLocalContext())
	if err != nil {
		return err
	}
	if !sig.Admits(initial) {
		return &TypeValueError{Expected: sig, Value: initial}
	}
	cc.DataVars[name] = sig
	if !deploy {
		return nil
	}
	encoded, err := types.SerializeHex(initial)
	if err != nil {
		return err
	}
	return env.Global.store.Put(dataVarKey(cc.ID, name), encoded)
}

func defineTrait(cc *ContractContext, list *ast.List) error {
	if len(list.Items) != 3 {
		return &SyntaxError{Form: "define-trait", Reason: "expected a name and a method list"}
	}
	name, err := definitionName(cc, list.Items[1], "define-trait")
	if err != nil {
		return err
	}
	methodList, ok := list.Items[2].(*ast.List)
	if !ok {
		return &SyntaxError{Form: "define-trait", Reason: "expected a method list"}
	}
	methods := make(map[string]types.FunctionSignature, len(methodList.Items))
	for _, m := range methodList.Items {
		decl, ok := m.(*ast.List)
		if !ok || len(decl.Items) != 3 {
			return &SyntaxError{Form: "define-trait", Reason: "each method needs a name, argument types and a return type"}
		}
		atom, ok := decl.Items[0].(*ast.Atom)
		if !ok || !types.IsValidName(atom.Name) {
			return &SyntaxError{Form: "define-trait", Reason: "method names must be plain names"}
		}
		if _, dup := methods[atom.Name]; dup {
			return &NameAlreadyUsedError{Name: atom.Name}
		}
		argList, ok := decl.Items[1].(*ast.List)
		if !ok {
			return &SyntaxError{Form: "define-trait", Reason: "method argument types must be a list"}
		}
		args := make([]types.TypeSignature, 0, len(argList.Items))
		for _, a := range argList.Items {
			sig, err := parseTypeSignature(a, "define-trait")
			if err != nil {
				return err
			}
			args = append(args, sig)
		}
		returns, err := parseTypeSignature(decl.Items[2], "define-trait")
		if err != nil {
			return err
		}
		methods[atom.Name] = types.FunctionSignature{Args: args, Returns: returns}
	}
	cc.DefinedTraits[name] = methods
	return nil
}

// useTrait introduces a local alias for a trait another contract
// defines. The reference is validated eagerly: the contract must exist
// and define the trait when the alias is introduced.
func useTrait(g *GlobalContext, cc *ContractContext, list *ast.List) error {
	if len(list.Items) != 3 {
		return &SyntaxError{Form: "use-trait", Reason: "expected an alias and a trait field"}
	}
	alias, err := definitionName(cc, list.Items[1], "use-trait")
	if err != nil {
		return err
	}
	field, ok := list.Items[2].(*ast.FieldRef)
	if !ok {
		return &SyntaxError{Form: "use-trait", Reason: "expected a trait field like 'ADDR.contract.trait"}
	}
	address := field.Address
	if address == "" {
		address = cc.ID.Address
	}
	contractID := types.ContractIdentifier{Address: address, Name: field.Contract}
	if contractID == cc.ID {
		return &SyntaxError{Form: "use-trait", Reason: "a contract's own traits are usable by name without an alias"}
	}
	target, err := g.GetContract(contractID)
	if err != nil {
		return err
	}
	if _, ok := target.LookupTraitDefinition(field.Name); !ok {
		return &TraitReferenceUnknownError{Contract: contractID, Name: field.Name}
	}
	cc.ReferencedTraits[alias] = types.TraitIdentifier{Contract: contractID, Name: field.Name}
	return nil
}

// implTraitClaim records an implementation claim for verification after
// all definitions are in.
func implTraitClaim(cc *ContractContext, list *ast.List) (types.TraitIdentifier, error) {
	if len(list.Items) != 2 {
		return types.TraitIdentifier{}, &SyntaxError{Form: "impl-trait", Reason: "expected a trait field"}
	}
	field, ok := list.Items[1].(*ast.FieldRef)
	if !ok {
		return types.TraitIdentifier{}, &SyntaxError{Form: "impl-trait", Reason: "expected a trait field like 'ADDR.contract.trait"}
	}
	address := field.Address
	if address == "" {
		address = cc.ID.Address
	}
	contractID := types.ContractIdentifier{Address: address, Name: field.Contract}
	return types.TraitIdentifier{Contract: contractID, Name: field.Name}, nil
}

func verifyImplementedTraits(g *GlobalContext, cc *ContractContext, claims []types.TraitIdentifier) error {
	for _, claim := range claims {
		defining := cc
		if claim.Contract != cc.ID {
			var err error
			defining, err = g.GetContract(claim.Contract)
			if err != nil {
				return err
			}
		}
		traitDef, ok := defining.LookupTraitDefinition(claim.Name)
		if !ok {
			return &TraitReferenceUnknownError{Contract: claim.Contract, Name: claim.Name}
		}
		for _, method := range sortedKeys(traitDef) {
			fn, ok := cc.LookupFunction(method)
			if !ok || !fn.IsPublic() {
				return &BadTraitImplementationError{TraitName: claim.Name, FunctionName: method}
			}
			if err := fn.CheckTraitExpectations(defining, claim, cc); err != nil {
				return err
			}
		}
		cc.Implemented = append(cc.Implemented, claim)
	}
	return nil
}

// parseTypeSignature reads a type expression.
func parseTypeSignature(expr ast.Expr, form string) (types.TypeSignature, error) {
	switch e := expr.(type) {
	case *ast.Atom:
		switch e.Name {
		case "int":
			return types.IntType{}, nil
		case "uint":
			return types.UintType{}, nil
		case "bool":
			return types.BoolType{}, nil
		case "principal":
			return types.PrincipalType{}, nil
		default:
			return nil, &SyntaxError{Form: form, Reason: "unknown type " + e.Name}
		}
	case *ast.TraitRef:
		return types.TraitReferenceType{Name: e.Name}, nil
	case *ast.List:
		if len(e.Items) == 0 {
			return nil, &SyntaxError{Form: form, Reason: "empty type expression"}
		}
		head, ok := e.Items[0].(*ast.Atom)
		if !ok {
			return nil, &SyntaxError{Form: form, Reason: "malformed type expression " + e.String()}
		}
		switch head.Name {
		case "buff":
			if len(e.Items) != 2 {
				return nil, &SyntaxError{Form: form, Reason: "buff takes a length"}
			}
			n, err := parseLengthLiteral(e.Items[1], form)
			if err != nil {
				return nil, err
			}
			return types.BufferType{Length: n}, nil
		case "string":
			if len(e.Items) != 2 {
				return nil, &SyntaxError{Form: form, Reason: "string takes a length"}
			}
			n, err := parseLengthLiteral(e.Items[1], form)
			if err != nil {
				return nil, err
			}
			return types.StringType{Length: n}, nil
		case "list":
			if len(e.Items) != 3 {
				return nil, &SyntaxError{Form: form, Reason: "list takes a length and an element type"}
			}
			n, err := parseLengthLiteral(e.Items[1], form)
			if err != nil {
				return nil, err
			}
			elem, err := parseTypeSignature(e.Items[2], form)
			if err != nil {
				return nil, err
			}
			return types.ListType{MaxLength: n, Element: elem}, nil
		case "tuple":
			if len(e.Items) < 2 {
				return nil, &SyntaxError{Form: form, Reason: "tuple takes at least one field"}
			}
			fields := make(map[string]types.TypeSignature, len(e.Items)-1)
			for _, f := range e.Items[1:] {
				pair, ok := f.(*ast.List)
				if !ok || len(pair.Items) != 2 {
					return nil, &SyntaxError{Form: form, Reason: "each tuple field needs a name and a type"}
				}
				atom, ok := pair.Items[0].(*ast.Atom)
				if !ok || !types.IsValidName(atom.Name) {
					return nil, &SyntaxError{Form: form, Reason: "tuple field names must be plain names"}
				}
				if _, dup := fields[atom.Name]; dup {
					return nil, &NameAlreadyUsedError{Name: atom.Name}
				}
				sig, err := parseTypeSignature(pair.Items[1], form)
				if err != nil {
					return nil, err
				}
				fields[atom.Name] = sig
			}
			return types.TupleType{Fields: fields}, nil
		case "optional":
			if len(e.Items) != 2 {
				return nil, &SyntaxError{Form: form, Reason: "optional takes an inner type"}
			}
			inner, err := parseTypeSignature(e.Items[1], form)
			if err != nil {
				return nil, err
			}
			return types.OptionalType{Inner: inner}, nil
		case "response":
			if len(e.Items) != 3 {
				return nil, &SyntaxError{Form: form, Reason: "response takes an ok type and an err type"}
			}
			okSig, err := parseTypeSignature(e.Items[1], form)
			if err != nil {
				return nil, err
			}
			errSig, err := parseTypeSignature(e.Items[2], form)
			if err != nil {
				return nil, err
			}
			return types.ResponseType{Ok: okSig, Err: errSig}, nil
		default:
			return nil, &SyntaxError{Form: form, Reason: "unknown type " + head.Name}
		}
	default:
		return nil, &SyntaxError{Form: form, Reason: "malformed type expression " + expr.String()}
	}
}

func parseLengthLiteral(expr ast.Expr, form string) (uint32, error) {
	lit, ok := expr.(*ast.IntLiteral)
	if !ok {
		return 0, &SyntaxError{Form: form, Reason: "length must be an integer literal"}
	}
	if !lit.Value.IsInt64() {
		return 0, &SyntaxError{Form: form, Reason: "length out of range"}
	}
	n := lit.Value.Int64()
	if n < 0 || n > math.MaxUint32 || n > int64(config.MaxSequenceLength) {
		return 0, &SyntaxError{Form: form, Reason: "length out of range"}
	}
	return uint32(n), nil
}

func sortedKeys(m map[string]types.FunctionSignature) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
