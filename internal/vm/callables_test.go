package vm

import (
	"errors"
	"testing"

	"github.com/covenant-lang/covenant/internal/ast"
	"github.com/covenant-lang/covenant/internal/config"
	"github.com/covenant-lang/covenant/internal/database"
	"github.com/covenant-lang/covenant/internal/parser"
	"github.com/covenant-lang/covenant/internal/types"
)

const (
	addrA = "SA000000000000000000"
	addrB = "SB000000000000000000"
)

func testEnv(t *testing.T) *Environment {
	t.Helper()
	g := NewGlobalContext(database.NewMemoryBackend(), 0)
	cc := NewContractContext(types.ContractIdentifier{Address: addrA, Name: "main"})
	return NewEnvironment(g, cc, &types.PrincipalValue{Address: addrA})
}

func mustExpr(t *testing.T, src string) ast.Expr {
	t.Helper()
	expr, err := parser.ParseOne(src)
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	return expr
}

func intParam(name string) Parameter {
	return Parameter{Name: name, Type: types.IntType{}}
}

func TestFunctionIdentifiers(t *testing.T) {
	native := NewNativeFunctionIdentifier("append")
	if got, want := native.String(), "_native_:append"; got != want {
		t.Errorf("native identifier = %q, want %q", got, want)
	}

	user := NewUserFunctionIdentifier("append", addrA+".main")
	if got, want := user.String(), addrA+".main:append"; got != want {
		t.Errorf("user identifier = %q, want %q", got, want)
	}

	if native == user {
		t.Errorf("built-in and contract identifiers for the same short name compare equal")
	}
	if native != NewNativeFunctionIdentifier("append") {
		t.Errorf("constructing the same identifier twice gives unequal values")
	}
	if user != NewUserFunctionIdentifier("append", addrA+".main") {
		t.Errorf("constructing the same user identifier twice gives unequal values")
	}

	seen := map[FunctionIdentifier]string{native: "native", user: "user"}
	if seen[NewNativeFunctionIdentifier("append")] != "native" {
		t.Errorf("identifier does not behave as a map key")
	}
}

func TestVisibility(t *testing.T) {
	tests := []struct {
		defineType   DefineType
		wantPublic   bool
		wantReadOnly bool
	}{
		{DefineTypeReadOnly, true, true},
		{DefineTypePublic, true, false},
		{DefineTypePrivate, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.defineType.String(), func(t *testing.T) {
			f := NewDefinedFunction("f", nil, tt.defineType, mustExpr(t, "true"), addrA+".main")
			if got := f.IsPublic(); got != tt.wantPublic {
				t.Errorf("IsPublic() = %v, want %v", got, tt.wantPublic)
			}
			if got := f.IsReadOnly(); got != tt.wantReadOnly {
				t.Errorf("IsReadOnly() = %v, want %v", got, tt.wantReadOnly)
			}
		})
	}
}

func TestExecuteApplyChecksArityFirst(t *testing.T) {
	f := NewDefinedFunction("add", []Parameter{intParam("x"), intParam("y")}, DefineTypePrivate, mustExpr(t, "(+ x y)"), addrA+".main")
	env := testEnv(t)

	// The lone argument is also ill-typed; the count must win.
	_, err := f.ExecuteApply([]types.Value{types.True}, env)
	var countErr *IncorrectArgumentCountError
	if !errors.As(err, &countErr) {
		t.Fatalf("got %v, want IncorrectArgumentCountError", err)
	}
	if countErr.Expected != 2 || countErr.Actual != 1 {
		t.Errorf("count error = expected %d actual %d, want expected 2 actual 1", countErr.Expected, countErr.Actual)
	}
}

func TestExecuteApplyAdmission(t *testing.T) {
	f := NewDefinedFunction("id", []Parameter{intParam("x")}, DefineTypePrivate, mustExpr(t, "x"), addrA+".main")
	env := testEnv(t)

	_, err := f.ExecuteApply([]types.Value{types.True}, env)
	var typeErr *TypeValueError
	if !errors.As(err, &typeErr) {
		t.Fatalf("got %v, want TypeValueError", err)
	}
	if _, ok := typeErr.Expected.(types.IntType); !ok {
		t.Errorf("expected signature = %s, want int", typeErr.Expected)
	}
	if !typeErr.Value.Equal(types.True) {
		t.Errorf("offending value = %s, want true", typeErr.Value)
	}
}

func TestExecuteApplyBindsInOrder(t *testing.T) {
	params := []Parameter{intParam("x"), intParam("y"), intParam("z")}
	f := NewDefinedFunction("sub", params, DefineTypePrivate, mustExpr(t, "(- x y z)"), addrA+".main")
	env := testEnv(t)

	args := []types.Value{
		types.NewIntFromInt64(10),
		types.NewIntFromInt64(3),
		types.NewIntFromInt64(2),
	}
	got, err := f.ExecuteApply(args, env)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if want := types.NewIntFromInt64(5); !got.Equal(want) {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestExecuteApplyDuplicateParameter(t *testing.T) {
	f := NewDefinedFunction("dup", []Parameter{intParam("x"), intParam("x")}, DefineTypePrivate, mustExpr(t, "x"), addrA+".main")
	env := testEnv(t)

	args := []types.Value{types.NewIntFromInt64(1), types.NewIntFromInt64(2)}
	_, err := f.ExecuteApply(args, env)
	var nameErr *NameAlreadyUsedError
	if !errors.As(err, &nameErr) {
		t.Fatalf("got %v, want NameAlreadyUsedError", err)
	}
	if nameErr.Name != "x" {
		t.Errorf("colliding name = %q, want %q", nameErr.Name, "x")
	}
}

func TestExecuteApplyEarlyReturn(t *testing.T) {
	f := NewDefinedFunction("bail", nil, DefineTypePrivate, mustExpr(t, "(asserts! false 7)"), addrA+".main")
	env := testEnv(t)

	got, err := f.ExecuteApply(nil, env)
	if err != nil {
		t.Fatalf("an early return must surface as a plain result, got error %v", err)
	}
	if want := types.NewIntFromInt64(7); !got.Equal(want) {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestExecuteApplyPropagatesOtherErrors(t *testing.T) {
	f := NewDefinedFunction("boom", []Parameter{intParam("x")}, DefineTypePrivate, mustExpr(t, "(/ x 0)"), addrA+".main")
	env := testEnv(t)

	_, err := f.ExecuteApply([]types.Value{types.NewIntFromInt64(1)}, env)
	var opErr *OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("got %v, want OperationError", err)
	}
}

func TestExecuteApplyTraitParameter(t *testing.T) {
	env := testEnv(t)
	traitID := types.TraitIdentifier{
		Contract: types.ContractIdentifier{Address: addrB, Name: "defs"},
		Name:     "token",
	}
	env.ContractContext.ReferencedTraits["token"] = traitID

	params := []Parameter{{Name: "t", Type: types.TraitReferenceType{Name: "token"}}}
	f := NewDefinedFunction("use-it", params, DefineTypePrivate, mustExpr(t, "t"), addrA+".main")

	// A trait-typed signature admits no plain value, yet a contract
	// principal must still bind.
	impl := types.NewContractPrincipal(types.ContractIdentifier{Address: addrB, Name: "impl"})
	got, err := f.ExecuteApply([]types.Value{impl}, env)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !got.Equal(impl) {
		t.Errorf("trait parameter reads back as %s, want %s", got, impl)
	}
}

func TestExecuteApplyUnknownTraitAlias(t *testing.T) {
	env := testEnv(t)
	params := []Parameter{{Name: "t", Type: types.TraitReferenceType{Name: "token"}}}
	f := NewDefinedFunction("use-it", params, DefineTypePrivate, mustExpr(t, "t"), addrA+".main")

	impl := types.NewContractPrincipal(types.ContractIdentifier{Address: addrB, Name: "impl"})
	_, err := f.ExecuteApply([]types.Value{impl}, env)
	var internal *InternalError
	if !errors.As(err, &internal) {
		t.Fatalf("got %v, want InternalError", err)
	}
}

func TestExecuteApplyStandardPrincipalNotDeferred(t *testing.T) {
	env := testEnv(t)
	env.ContractContext.ReferencedTraits["token"] = types.TraitIdentifier{
		Contract: types.ContractIdentifier{Address: addrB, Name: "defs"},
		Name:     "token",
	}
	params := []Parameter{{Name: "t", Type: types.TraitReferenceType{Name: "token"}}}
	f := NewDefinedFunction("use-it", params, DefineTypePrivate, mustExpr(t, "t"), addrA+".main")

	_, err := f.ExecuteApply([]types.Value{&types.PrincipalValue{Address: addrB}}, env)
	var typeErr *TypeValueError
	if !errors.As(err, &typeErr) {
		t.Fatalf("a standard principal must fail admission, got %v", err)
	}
}

func TestLocalContextSharedNamespace(t *testing.T) {
	ctx := NewLocalContext()
	if err := ctx.Bind("x", types.NewIntFromInt64(1)); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if err := ctx.BindCallableContract("x", CallableContract{}); err == nil {
		t.Errorf("binding a trait contract over a value binding succeeded")
	}

	if err := ctx.BindCallableContract("y", CallableContract{}); err != nil {
		t.Fatalf("bind callable: %v", err)
	}
	if err := ctx.Bind("y", types.NewIntFromInt64(2)); err == nil {
		t.Errorf("binding a value over a trait contract binding succeeded")
	}

	// Shadowing in a child frame is fine.
	child, err := ctx.Extend()
	if err != nil {
		t.Fatalf("extend: %v", err)
	}
	if err := child.Bind("x", types.NewIntFromInt64(3)); err != nil {
		t.Errorf("shadowing in a child frame: %v", err)
	}
	got, _ := child.LookupVariable("x")
	if want := types.NewIntFromInt64(3); !got.Equal(want) {
		t.Errorf("shadowed lookup = %s, want %s", got, want)
	}
	got, _ = ctx.LookupVariable("x")
	if want := types.NewIntFromInt64(1); !got.Equal(want) {
		t.Errorf("outer lookup = %s, want %s", got, want)
	}
}

func TestCallStackBounds(t *testing.T) {
	s := NewCallStack()
	id := NewNativeFunctionIdentifier("f")
	for i := 0; i < config.MaxCallDepth; i++ {
		if err := s.Push(id); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}
	var depthErr *CallStackDepthError
	if err := s.Push(id); !errors.As(err, &depthErr) {
		t.Fatalf("push past the limit gave %v, want CallStackDepthError", err)
	}

	other := NewNativeFunctionIdentifier("g")
	var internal *InternalError
	if err := s.Pop(other); !errors.As(err, &internal) {
		t.Fatalf("out of order pop gave %v, want InternalError", err)
	}
	if err := s.Pop(id); err != nil {
		t.Fatalf("pop: %v", err)
	}
}
