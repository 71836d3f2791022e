package vm

import (
	"io"
	"sync"

	"github.com/covenant-lang/covenant/internal/config"
	"github.com/covenant-lang/covenant/internal/database"
	"github.com/covenant-lang/covenant/internal/parser"
	"github.com/covenant-lang/covenant/internal/types"
)

// CostTracker meters evaluation steps against a per-transaction budget.
type CostTracker struct {
	used  uint64
	limit uint64
}

// NewCostTracker builds a tracker. A zero limit means unmetered.
func NewCostTracker(limit uint64) *CostTracker {
	return &CostTracker{limit: limit}
}

// Tick charges n units.
func (t *CostTracker) Tick(n uint64) error {
	t.used += n
	if t.limit > 0 && t.used > t.limit {
		return &CostBudgetError{Used: t.used, Limit: t.limit}
	}
	return nil
}

func (t *CostTracker) Used() uint64 { return t.used }

// GlobalContext owns the session-wide state: the datastore, the loaded
// contract cache, the block height and the per-transaction cost meter
// and event log.
type GlobalContext struct {
	mu sync.Mutex

	store     *database.RollbackWrapper
	contracts map[types.ContractIdentifier]*ContractContext

	blockHeight uint64
	budget      uint64

	cost          *CostTracker
	events        []string
	readOnlyDepth int

	// out receives printed values. May be nil.
	out io.Writer
}

// NewGlobalContext wraps a backend. A zero budget selects the default.
func NewGlobalContext(backend database.Backend, budget uint64) *GlobalContext {
	if budget == 0 {
		budget = config.DefaultExecutionBudget
	}
	return &GlobalContext{
		store:       database.NewRollbackWrapper(backend),
		contracts:   make(map[types.ContractIdentifier]*ContractContext),
		blockHeight: 1,
		budget:      budget,
		cost:        NewCostTracker(budget),
	}
}

func (g *GlobalContext) BlockHeight() uint64 { return g.blockHeight }

// SetOut directs printed values to w.
func (g *GlobalContext) SetOut(w io.Writer) { g.out = w }

// InReadOnly reports whether read-only enforcement is active.
func (g *GlobalContext) InReadOnly() bool { return g.readOnlyDepth > 0 }

func (g *GlobalContext) beginReadOnly() { g.readOnlyDepth++ }
func (g *GlobalContext) endReadOnly()   { g.readOnlyDepth-- }

func (g *GlobalContext) emitEvent(s string) {
	g.events = append(g.events, s)
}

// beginMeter resets the cost meter and event log for a fresh
// transaction.
func (g *GlobalContext) beginMeter() {
	g.cost = NewCostTracker(g.budget)
	g.events = nil
}

func contractSourceKey(id types.ContractIdentifier) string {
	return "contract::" + id.String() + "::source"
}

func dataVarKey(id types.ContractIdentifier, name string) string {
	return "vars::" + id.String() + "::" + name
}

// GetContract returns the runtime context of a deployed contract,
// restoring it from the datastore on first use.
func (g *GlobalContext) GetContract(id types.ContractIdentifier) (*ContractContext, error) {
	if cc, ok := g.contracts[id]; ok {
		return cc, nil
	}
	source, found, err := g.store.Get(contractSourceKey(id))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &NoSuchContractError{Contract: id}
	}
	exprs, err := parser.Parse(source)
	if err != nil {
		return nil, internalErrorf("stored contract %s does not parse: %v", id, err)
	}
	cc, err := initializeContract(g, id, exprs, false)
	if err != nil {
		return nil, err
	}
	g.contracts[id] = cc
	return cc, nil
}

// DeployContract parses source, runs its top-level forms inside a
// datastore frame and persists it under id. A failed deploy leaves no
// trace in the store.
func (g *GlobalContext) DeployContract(id types.ContractIdentifier, source string) (*ContractContext, error) {
	if _, ok := g.contracts[id]; ok {
		return nil, &ContractAlreadyExistsError{Contract: id}
	}
	_, found, err := g.store.Get(contractSourceKey(id))
	if err != nil {
		return nil, err
	}
	if found {
		return nil, &ContractAlreadyExistsError{Contract: id}
	}

	exprs, err := parser.Parse(source)
	if err != nil {
		return nil, err
	}

	g.store.Begin()
	cc, err := initializeContract(g, id, exprs, true)
	if err != nil {
		g.store.Rollback()
		return nil, err
	}
	if err := g.store.Put(contractSourceKey(id), source); err != nil {
		g.store.Rollback()
		return nil, err
	}
	if err := g.store.Commit(); err != nil {
		return nil, err
	}
	g.contracts[id] = cc
	return cc, nil
}
