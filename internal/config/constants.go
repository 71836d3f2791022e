// Package config holds the constants shared across the interpreter, the
// datastore and the CLI.
package config

// Source file extensions recognized by the CLI.
var SourceFileExtensions = []string{".cov", ".cvn"}

// SourceFileExt is the canonical source file extension.
const SourceFileExt = ".cov"

// Execution limits.
const (
	// MaxCallDepth caps nested function applications.
	MaxCallDepth = 64

	// MaxContextDepth caps chained local binding frames.
	MaxContextDepth = 256

	// MaxNestingDepth caps parenthesized nesting in source.
	MaxNestingDepth = 64

	// MaxValueDepth caps nesting of composite values in the codec.
	MaxValueDepth = 32

	// MaxSequenceLength caps declared buffer, string and list lengths.
	MaxSequenceLength = 1 << 20

	// DefaultExecutionBudget is the per-transaction evaluation budget.
	DefaultExecutionBudget = 500000
)

// Name length limits.
const (
	MaxNameLength         = 128
	MaxContractNameLength = 40
	MinAddressLength      = 20
	MaxAddressLength      = 41
)

// Keywords resolved by the evaluator.
const (
	KeywordTrue           = "true"
	KeywordFalse          = "false"
	KeywordNone           = "none"
	KeywordTxSender       = "tx-sender"
	KeywordContractCaller = "contract-caller"
	KeywordBlockHeight    = "block-height"
)

// Session and networking defaults.
const (
	// DefaultListenAddr is where the node serves gRPC.
	DefaultListenAddr = ":7444"

	// DefaultStorePath is the sqlite database used when none is configured.
	DefaultStorePath = "covenant.db"

	// ManifestFileName is the project manifest the deploy command looks for.
	ManifestFileName = "Covenant.yaml"

	// DefaultDeployer is the address used when no deployer is configured.
	DefaultDeployer = "SC000000000000000000002Q6VF78"
)
