package vm

import (
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/covenant-lang/covenant/internal/config"
	"github.com/covenant-lang/covenant/internal/database"
	"github.com/covenant-lang/covenant/internal/types"
)

const counterSource = `
(define-data-var count uint u0)
(define-public (increment)
  (begin
    (var-set count (+ (var-get count) u1))
    (ok (var-get count))))
(define-read-only (get-count) (var-get count))
(define-public (fail-bump)
  (begin
    (var-set count (+ (var-get count) u1))
    (err u99)))
`

func mustDeploy(t *testing.T, s *Session, name, source string) string {
	t.Helper()
	if _, err := s.Deploy("", name, source); err != nil {
		t.Fatalf("deploy %s: %v", name, err)
	}
	return config.DefaultDeployer + "." + name
}

func mustCall(t *testing.T, s *Session, contract, function string, args ...types.Value) *Receipt {
	t.Helper()
	receipt, err := s.Call(contract, function, "", args)
	if err != nil {
		t.Fatalf("call %s.%s: %v", contract, function, err)
	}
	return receipt
}

func TestDeployAndCall(t *testing.T) {
	s := newTestSession(t)

	receipt, err := s.Deploy("", "counter", counterSource)
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if receipt.TxID == "" {
		t.Errorf("deploy receipt has no transaction id")
	}
	if want := "'" + config.DefaultDeployer + ".counter"; receipt.Result.String() != want {
		t.Errorf("deploy result = %s, want %s", receipt.Result, want)
	}

	id := config.DefaultDeployer + ".counter"
	if got := mustCall(t, s, id, "increment").Result.String(); got != "(ok u1)" {
		t.Errorf("first increment = %s, want (ok u1)", got)
	}
	if got := mustCall(t, s, id, "increment").Result.String(); got != "(ok u2)" {
		t.Errorf("second increment = %s, want (ok u2)", got)
	}
	if got := mustCall(t, s, id, "get-count").Result.String(); got != "u2" {
		t.Errorf("get-count = %s, want u2", got)
	}
}

func TestDeployDuplicate(t *testing.T) {
	s := newTestSession(t)
	mustDeploy(t, s, "counter", counterSource)

	_, err := s.Deploy("", "counter", counterSource)
	var exists *ContractAlreadyExistsError
	if !errors.As(err, &exists) {
		t.Fatalf("got %v, want ContractAlreadyExistsError", err)
	}
}

func TestCallRejectsPrivateAndMissing(t *testing.T) {
	s := newTestSession(t)
	id := mustDeploy(t, s, "vault", `
(define-private (secret) 1)
(define-public (visible) (ok 1))
`)

	var noFn *NoSuchPublicFunctionError
	if _, err := s.Call(id, "secret", "", nil); !errors.As(err, &noFn) {
		t.Errorf("calling a private function gave %v, want NoSuchPublicFunctionError", err)
	}
	if _, err := s.Call(id, "nothing", "", nil); !errors.As(err, &noFn) {
		t.Errorf("calling a missing function gave %v, want NoSuchPublicFunctionError", err)
	}

	var noContract *NoSuchContractError
	if _, err := s.Call(config.DefaultDeployer+".missing", "visible", "", nil); !errors.As(err, &noContract) {
		t.Errorf("calling a missing contract gave %v, want NoSuchContractError", err)
	}
}

func TestErrResponseRollsBack(t *testing.T) {
	s := newTestSession(t)
	id := mustDeploy(t, s, "counter", counterSource)

	mustCall(t, s, id, "increment")

	// The failed bump is not an error: the response travels back, only
	// the writes are discarded.
	if got := mustCall(t, s, id, "fail-bump").Result.String(); got != "(err u99)" {
		t.Errorf("fail-bump = %s, want (err u99)", got)
	}
	if got := mustCall(t, s, id, "get-count").Result.String(); got != "u1" {
		t.Errorf("count after failed bump = %s, want u1", got)
	}
}

func TestEarlyReturnRollsBack(t *testing.T) {
	s := newTestSession(t)
	id := mustDeploy(t, s, "guard", `
(define-data-var total uint u0)
(define-public (set-positive (n uint))
  (begin
    (var-set total n)
    (asserts! (< u0 n) (err u400))
    (ok n)))
(define-read-only (get-total) (var-get total))
`)

	if got := mustCall(t, s, id, "set-positive", types.NewUintFromUint64(0)).Result.String(); got != "(err u400)" {
		t.Errorf("set-positive u0 = %s, want (err u400)", got)
	}
	if got := mustCall(t, s, id, "get-total").Result.String(); got != "u0" {
		t.Errorf("total after rejected write = %s, want u0", got)
	}

	if got := mustCall(t, s, id, "set-positive", types.NewUintFromUint64(7)).Result.String(); got != "(ok u7)" {
		t.Errorf("set-positive u7 = %s, want (ok u7)", got)
	}
	if got := mustCall(t, s, id, "get-total").Result.String(); got != "u7" {
		t.Errorf("total = %s, want u7", got)
	}
}

func TestReadOnlyEnforcement(t *testing.T) {
	s := newTestSession(t)
	id := mustDeploy(t, s, "flags", `
(define-data-var flag bool false)
(define-read-only (peek) (var-get flag))
(define-read-only (sneak) (var-set flag true))
`)

	var roErr *ReadOnlyViolationError
	if _, err := s.Call(id, "sneak", "", nil); !errors.As(err, &roErr) {
		t.Fatalf("write inside read-only gave %v, want ReadOnlyViolationError", err)
	}
	if got := mustCall(t, s, id, "peek").Result.String(); got != "false" {
		t.Errorf("peek = %s, want false", got)
	}
}

func TestReadOnlyBlocksNestedWrites(t *testing.T) {
	s := newTestSession(t)
	mustDeploy(t, s, "store", `
(define-data-var n uint u0)
(define-public (write) (ok (var-set n u1)))
`)
	id := mustDeploy(t, s, "reader", `
(define-read-only (indirect) (contract-call? .store write))
`)

	var roErr *ReadOnlyViolationError
	if _, err := s.Call(id, "indirect", "", nil); !errors.As(err, &roErr) {
		t.Fatalf("nested write gave %v, want ReadOnlyViolationError", err)
	}
}

func TestDeployFailureLeavesNothing(t *testing.T) {
	s := newTestSession(t)

	_, err := s.Deploy("", "strict", "(define-data-var count uint 5)")
	var typeErr *TypeValueError
	if !errors.As(err, &typeErr) {
		t.Fatalf("mistyped initializer gave %v, want TypeValueError", err)
	}

	// The name is free again and the fixed source deploys.
	if _, err := s.Deploy("", "strict", "(define-data-var count uint u5)"); err != nil {
		t.Fatalf("redeploy after failure: %v", err)
	}

	_, err = s.Deploy("", "crash", "(define-data-var n int 0)\n(/ 1 0)")
	if err == nil {
		t.Fatalf("deploy with failing top-level expression succeeded")
	}
	var noContract *NoSuchContractError
	if _, err := s.Call(config.DefaultDeployer+".crash", "anything", "", nil); !errors.As(err, &noContract) {
		t.Errorf("failed deploy left the contract behind: %v", err)
	}
}

func TestConstantsAndTopLevel(t *testing.T) {
	s := newTestSession(t)
	id := mustDeploy(t, s, "config", `
(define-constant limit u10)
(define-data-var current uint u0)
(var-set current limit)
(define-read-only (get-limit) limit)
(define-read-only (get-current) (var-get current))
`)

	if got := mustCall(t, s, id, "get-limit").Result.String(); got != "u10" {
		t.Errorf("get-limit = %s, want u10", got)
	}
	if got := mustCall(t, s, id, "get-current").Result.String(); got != "u10" {
		t.Errorf("top-level write lost: get-current = %s, want u10", got)
	}
}

func TestStaticContractCall(t *testing.T) {
	s := newTestSession(t)
	mustDeploy(t, s, "math", "(define-public (double (n int)) (ok (* n 2)))")
	id := mustDeploy(t, s, "proxy", "(define-public (via (n int)) (contract-call? .math double n))")

	got := mustCall(t, s, id, "via", types.NewIntFromInt64(21)).Result.String()
	if got != "(ok 42)" {
		t.Errorf("via = %s, want (ok 42)", got)
	}
}

func TestCallerAndSenderTracking(t *testing.T) {
	s := newTestSession(t)
	whoID := mustDeploy(t, s, "identity", `
(define-public (callers) (ok (tuple (caller contract-caller) (sender tx-sender))))
`)
	relayID := mustDeploy(t, s, "relay", "(define-public (ask) (contract-call? .identity callers))")

	direct := mustCall(t, s, whoID, "callers").Result.String()
	wantDirect := "(ok (tuple (caller '" + config.DefaultDeployer + ") (sender '" + config.DefaultDeployer + ")))"
	if direct != wantDirect {
		t.Errorf("direct call = %s, want %s", direct, wantDirect)
	}

	relayed := mustCall(t, s, relayID, "ask").Result.String()
	wantRelayed := "(ok (tuple (caller '" + relayID + ") (sender '" + config.DefaultDeployer + ")))"
	if relayed != wantRelayed {
		t.Errorf("relayed call = %s, want %s", relayed, wantRelayed)
	}
}

func TestSenderOverride(t *testing.T) {
	s := newTestSession(t)
	id := mustDeploy(t, s, "identity", "(define-public (who) (ok tx-sender))")

	receipt, err := s.Call(id, "who", addrB, nil)
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if want := "(ok '" + addrB + ")"; receipt.Result.String() != want {
		t.Errorf("who = %s, want %s", receipt.Result, want)
	}
}

func TestSelfCallRejected(t *testing.T) {
	s := newTestSession(t)
	id := mustDeploy(t, s, "selfref", "(define-public (me) (contract-call? .selfref me))")

	_, err := s.Call(id, "me", "", nil)
	var synErr *SyntaxError
	if !errors.As(err, &synErr) {
		t.Fatalf("self call gave %v, want SyntaxError", err)
	}
	if !strings.Contains(err.Error(), "cannot call itself") {
		t.Errorf("self call error = %q", err)
	}
}

const tokenTraitSource = `
(define-trait token
  ((get-balance (principal) (response uint uint))))
`

const walletSource = `
(use-trait token .token-trait.token)
(define-public (check (t <token>))
  (contract-call? t get-balance tx-sender))
`

func TestDynamicDispatchThroughTrait(t *testing.T) {
	s := newTestSession(t)
	mustDeploy(t, s, "token-trait", tokenTraitSource)
	walletID := mustDeploy(t, s, "wallet", walletSource)

	alpha := mustDeploy(t, s, "alpha", "(define-public (get-balance (who principal)) (ok u100))")
	got := mustCall(t, s, walletID, "check", contractArg(t, alpha)).Result.String()
	if got != "(ok u100)" {
		t.Errorf("check alpha = %s, want (ok u100)", got)
	}

	broken := mustDeploy(t, s, "broken", "(define-public (get-balance (who principal) (extra uint)) (ok u0))")
	var bad *BadTraitImplementationError
	if _, err := s.Call(walletID, "check", "", []types.Value{contractArg(t, broken)}); !errors.As(err, &bad) {
		t.Errorf("arity-mismatched implementation gave %v, want BadTraitImplementationError", err)
	}

	absent := mustDeploy(t, s, "absent", "(define-public (something-else) (ok u1))")
	if _, err := s.Call(walletID, "check", "", []types.Value{contractArg(t, absent)}); !errors.As(err, &bad) {
		t.Errorf("missing method gave %v, want BadTraitImplementationError", err)
	}

	hidden := mustDeploy(t, s, "hidden", "(define-private (get-balance (who principal)) (ok u1))")
	var noFn *NoSuchPublicFunctionError
	if _, err := s.Call(walletID, "check", "", []types.Value{contractArg(t, hidden)}); !errors.As(err, &noFn) {
		t.Errorf("private implementation gave %v, want NoSuchPublicFunctionError", err)
	}
}

func contractArg(t *testing.T, id string) types.Value {
	t.Helper()
	cid, err := types.ParseContractIdentifier(id)
	if err != nil {
		t.Fatalf("parse contract id %q: %v", id, err)
	}
	return types.NewContractPrincipal(cid)
}

func TestImplTraitCheckedAtDeploy(t *testing.T) {
	s := newTestSession(t)
	mustDeploy(t, s, "token-trait", tokenTraitSource)

	if _, err := s.Deploy("", "good", `
(impl-trait .token-trait.token)
(define-public (get-balance (who principal)) (ok u1))
`); err != nil {
		t.Fatalf("conforming impl-trait deploy: %v", err)
	}

	var bad *BadTraitImplementationError
	if _, err := s.Deploy("", "bad-arity", `
(impl-trait .token-trait.token)
(define-public (get-balance) (ok u1))
`); !errors.As(err, &bad) {
		t.Errorf("non-conforming deploy gave %v, want BadTraitImplementationError", err)
	}

	if _, err := s.Deploy("", "bad-private", `
(impl-trait .token-trait.token)
(define-private (get-balance (who principal)) (ok u1))
`); !errors.As(err, &bad) {
		t.Errorf("private implementation deploy gave %v, want BadTraitImplementationError", err)
	}

	var unknown *TraitReferenceUnknownError
	if _, err := s.Deploy("", "bad-trait", `
(impl-trait .token-trait.nothing)
(define-public (get-balance (who principal)) (ok u1))
`); !errors.As(err, &unknown) {
		t.Errorf("impl of a missing trait gave %v, want TraitReferenceUnknownError", err)
	}
}

func TestUseTraitValidation(t *testing.T) {
	s := newTestSession(t)
	mustDeploy(t, s, "token-trait", tokenTraitSource)

	var noContract *NoSuchContractError
	if _, err := s.Deploy("", "w1", "(use-trait token .nowhere.token)"); !errors.As(err, &noContract) {
		t.Errorf("use-trait on a missing contract gave %v, want NoSuchContractError", err)
	}

	var unknown *TraitReferenceUnknownError
	if _, err := s.Deploy("", "w2", "(use-trait token .token-trait.absent)"); !errors.As(err, &unknown) {
		t.Errorf("use-trait on a missing trait gave %v, want TraitReferenceUnknownError", err)
	}
}

func TestBlockHeightAdvances(t *testing.T) {
	s := newTestSession(t)
	if got := s.BlockHeight(); got != 1 {
		t.Fatalf("initial height = %d, want 1", got)
	}

	receipt, err := s.Deploy("", "counter", counterSource)
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if receipt.BlockHeight != 1 {
		t.Errorf("deploy receipt height = %d, want 1", receipt.BlockHeight)
	}
	if got := s.BlockHeight(); got != 2 {
		t.Errorf("height after deploy = %d, want 2", got)
	}

	call := mustCall(t, s, config.DefaultDeployer+".counter", "increment")
	if call.BlockHeight != 2 {
		t.Errorf("call receipt height = %d, want 2", call.BlockHeight)
	}

	// Console evaluation reads the height without advancing it.
	if got := evalResult(t, s, "block-height"); got != "u3" {
		t.Errorf("block-height = %s, want u3", got)
	}
	if got := s.BlockHeight(); got != 3 {
		t.Errorf("height after eval = %d, want 3", got)
	}
}

func TestEventsResetPerTransaction(t *testing.T) {
	s := newTestSession(t)
	id := mustDeploy(t, s, "noisy", `
(define-public (announce (n int))
  (begin
    (print n)
    (print (+ n 1))
    (ok n)))
`)

	first := mustCall(t, s, id, "announce", types.NewIntFromInt64(5))
	if len(first.Events) != 2 || first.Events[0] != "5" || first.Events[1] != "6" {
		t.Errorf("first events = %v, want [5 6]", first.Events)
	}
	if first.Cost == 0 {
		t.Errorf("receipt reports zero cost")
	}

	second := mustCall(t, s, id, "announce", types.NewIntFromInt64(8))
	if len(second.Events) != 2 || second.Events[0] != "8" || second.Events[1] != "9" {
		t.Errorf("second events = %v, want [8 9]", second.Events)
	}
}

func TestContractInfo(t *testing.T) {
	s := newTestSession(t)
	id := mustDeploy(t, s, "mixed", `
(define-trait token ((get-balance (principal) (response uint uint))))
(define-public (pay) (ok u1))
(define-private (helper (n int)) n)
(define-read-only (view) u1)
`)

	info, err := s.ContractInfo(id)
	if err != nil {
		t.Fatalf("ContractInfo: %v", err)
	}
	if info.ID != id {
		t.Errorf("info id = %s, want %s", info.ID, id)
	}
	want := []FunctionInfo{
		{Name: "helper", Access: "private", Arity: 1},
		{Name: "pay", Access: "public", Arity: 0},
		{Name: "view", Access: "read-only", Arity: 0},
	}
	if len(info.Functions) != len(want) {
		t.Fatalf("functions = %v, want %v", info.Functions, want)
	}
	for i, fi := range want {
		if info.Functions[i] != fi {
			t.Errorf("functions[%d] = %v, want %v", i, info.Functions[i], fi)
		}
	}
	if len(info.Traits) != 1 || info.Traits[0] != "token" {
		t.Errorf("traits = %v, want [token]", info.Traits)
	}
}

// Reopening the store must rebuild contracts from source without
// repeating their deploy-time effects.
func TestPersistenceAcrossSessions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "covenant.db")
	log := logrus.New()
	log.SetOutput(io.Discard)

	source := `
(define-data-var count uint u0)
(var-set count u3)
(define-public (increment)
  (begin
    (var-set count (+ (var-get count) u1))
    (ok (var-get count))))
(define-read-only (get-count) (var-get count))
`

	backend, err := database.NewSQLiteBackend(path, log)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	s1 := NewSession(backend)
	id := mustDeploy(t, s1, "counter", source)
	if got := mustCall(t, s1, id, "increment").Result.String(); got != "(ok u4)" {
		t.Errorf("increment = %s, want (ok u4)", got)
	}
	if err := backend.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	backend2, err := database.NewSQLiteBackend(path, log)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer backend2.Close()

	s2 := NewSession(backend2)
	if got := mustCall(t, s2, id, "get-count").Result.String(); got != "u4" {
		t.Errorf("count after reopen = %s, want u4", got)
	}
	if got := mustCall(t, s2, id, "increment").Result.String(); got != "(ok u5)" {
		t.Errorf("increment after reopen = %s, want (ok u5)", got)
	}

	var exists *ContractAlreadyExistsError
	if _, err := s2.Deploy("", "counter", source); !errors.As(err, &exists) {
		t.Errorf("redeploy over a stored contract gave %v, want ContractAlreadyExistsError", err)
	}
}
