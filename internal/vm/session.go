package vm

import (
	"io"
	"sort"

	"github.com/google/uuid"

	"github.com/covenant-lang/covenant/internal/config"
	"github.com/covenant-lang/covenant/internal/database"
	"github.com/covenant-lang/covenant/internal/parser"
	"github.com/covenant-lang/covenant/internal/types"
)

// Option configures a Session.
type Option func(*Session)

// WithBudget caps the evaluation steps a single transaction may take.
func WithBudget(limit uint64) Option {
	return func(s *Session) { s.budget = limit }
}

// WithOutput directs values printed during execution to w.
func WithOutput(w io.Writer) Option {
	return func(s *Session) { s.out = w }
}

// Receipt describes one completed transaction.
type Receipt struct {
	TxID        string
	BlockHeight uint64
	Result      types.Value
	Events      []string
	Cost        uint64
}

// FunctionInfo describes one function a contract defines.
type FunctionInfo struct {
	Name   string
	Access string
	Arity  int
}

// ContractInfo describes a deployed contract.
type ContractInfo struct {
	ID        string
	Functions []FunctionInfo
	Traits    []string
}

// Session is the embedding surface of the virtual machine. One session
// owns one datastore; its methods are safe for concurrent use and run
// one transaction at a time.
type Session struct {
	g       *GlobalContext
	console *ContractContext
	budget  uint64
	out     io.Writer
}

// NewSession opens a session over backend.
func NewSession(backend database.Backend, opts ...Option) *Session {
	s := &Session{}
	for _, opt := range opts {
		opt(s)
	}
	s.g = NewGlobalContext(backend, s.budget)
	if s.out != nil {
		s.g.SetOut(s.out)
	}
	s.console = NewContractContext(types.ContractIdentifier{
		Address: config.DefaultDeployer,
		Name:    "console",
	})
	return s
}

// Deploy publishes a contract under deployer.name and runs its top-level
// forms. An empty deployer selects the default address. The receipt's
// result is the new contract's principal.
func (s *Session) Deploy(deployer, name, source string) (*Receipt, error) {
	if deployer == "" {
		deployer = config.DefaultDeployer
	}
	id, err := types.NewContractIdentifier(deployer, name)
	if err != nil {
		return nil, err
	}

	s.g.mu.Lock()
	defer s.g.mu.Unlock()

	s.g.beginMeter()
	if _, err := s.g.DeployContract(id, source); err != nil {
		return nil, err
	}
	r := s.receipt(types.NewContractPrincipal(id))
	s.g.blockHeight++
	return r, nil
}

// Call invokes a public function of a deployed contract as sender. An
// empty sender selects the default address.
func (s *Session) Call(contract, function, sender string, args []types.Value) (*Receipt, error) {
	id, err := types.ParseContractIdentifier(contract)
	if err != nil {
		return nil, err
	}
	if sender == "" {
		sender = config.DefaultDeployer
	}
	from, err := types.ParsePrincipal(sender)
	if err != nil {
		return nil, err
	}

	s.g.mu.Lock()
	defer s.g.mu.Unlock()

	s.g.beginMeter()
	cc, err := s.g.GetContract(id)
	if err != nil {
		return nil, err
	}
	fn, ok := cc.LookupFunction(function)
	if !ok || !fn.IsPublic() {
		return nil, &NoSuchPublicFunctionError{Contract: id, Name: function}
	}

	env := NewEnvironment(s.g, cc, from)
	if err := env.CallStack.Push(fn.Identifier()); err != nil {
		return nil, err
	}
	result, err := env.ExecuteFunctionAsTransaction(fn, args, nil)
	if perr := env.CallStack.Pop(fn.Identifier()); perr != nil && err == nil {
		err = perr
	}
	if err != nil {
		return nil, err
	}
	r := s.receipt(result)
	s.g.blockHeight++
	return r, nil
}

// Eval runs source in the session's console context. Definition forms
// persist across calls; other expressions evaluate in order and the last
// value becomes the result. Eval does not advance the block height.
func (s *Session) Eval(source string) (*Receipt, error) {
	exprs, err := parser.Parse(source)
	if err != nil {
		return nil, err
	}
	if len(exprs) == 0 {
		return nil, &SyntaxError{Form: "eval", Reason: "empty input"}
	}

	s.g.mu.Lock()
	defer s.g.mu.Unlock()

	s.g.beginMeter()
	env := NewEnvironment(s.g, s.console, &types.PrincipalValue{Address: config.DefaultDeployer})
	topCtx := NewLocalContext()

	var result types.Value
	var claims []types.TraitIdentifier
	for _, expr := range exprs {
		handled, err := topLevelDefine(s.g, s.console, expr, env, true, &claims)
		if err != nil {
			return nil, err
		}
		if handled {
			result = nil
			continue
		}
		result, err = eval(expr, env, topCtx)
		if err != nil {
			return nil, err
		}
	}
	if err := verifyImplementedTraits(s.g, s.console, claims); err != nil {
		return nil, err
	}
	return s.receipt(result), nil
}

// ParseValue evaluates a single literal expression, for turning textual
// call arguments into values. Anything that would write is rejected.
func (s *Session) ParseValue(source string) (types.Value, error) {
	expr, err := parser.ParseOne(source)
	if err != nil {
		return nil, err
	}

	s.g.mu.Lock()
	defer s.g.mu.Unlock()

	s.g.beginMeter()
	s.g.beginReadOnly()
	defer s.g.endReadOnly()

	env := NewEnvironment(s.g, s.console, &types.PrincipalValue{Address: config.DefaultDeployer})
	return eval(expr, env, NewLocalContext())
}

// ContractInfo describes a deployed contract's callable surface.
func (s *Session) ContractInfo(contract string) (*ContractInfo, error) {
	id, err := types.ParseContractIdentifier(contract)
	if err != nil {
		return nil, err
	}

	s.g.mu.Lock()
	defer s.g.mu.Unlock()

	cc, err := s.g.GetContract(id)
	if err != nil {
		return nil, err
	}
	info := &ContractInfo{ID: id.String()}
	for _, name := range cc.FunctionNames() {
		fn := cc.Functions[name]
		info.Functions = append(info.Functions, FunctionInfo{
			Name:   name,
			Access: fn.Visibility().String(),
			Arity:  fn.Arity(),
		})
	}
	for name := range cc.DefinedTraits {
		info.Traits = append(info.Traits, name)
	}
	sort.Strings(info.Traits)
	return info, nil
}

// BlockHeight returns the session's current block height.
func (s *Session) BlockHeight() uint64 {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	return s.g.blockHeight
}

func (s *Session) receipt(result types.Value) *Receipt {
	return &Receipt{
		TxID:        uuid.NewString(),
		BlockHeight: s.g.blockHeight,
		Result:      result,
		Events:      append([]string(nil), s.g.events...),
		Cost:        s.g.cost.Used(),
	}
}

// Check parses and initializes source against a throwaway datastore,
// reporting the first definition or top-level error. Nothing persists.
func Check(source string) error {
	g := NewGlobalContext(database.NewMemoryBackend(), 0)
	id := types.ContractIdentifier{Address: config.DefaultDeployer, Name: "check"}
	_, err := g.DeployContract(id, source)
	return err
}
