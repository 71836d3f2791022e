package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/covenant-lang/covenant/internal/config"
	"github.com/covenant-lang/covenant/internal/database"
	"github.com/covenant-lang/covenant/internal/project"
	"github.com/covenant-lang/covenant/internal/types"
	"github.com/covenant-lang/covenant/internal/vm"
)

// openStore opens the datastore at path, or resolves it through the
// nearest manifest when path is empty.
func openStore(path string) (database.Backend, error) {
	if path == "" {
		manifestPath, err := project.Find(".")
		if err != nil {
			return nil, err
		}
		if manifestPath != "" {
			m, err := project.Load(manifestPath)
			if err != nil {
				return nil, err
			}
			path = m.StorePath()
		} else {
			path = config.DefaultStorePath
		}
	}
	return database.NewSQLiteBackend(path, newLogger())
}

// cmdDeploy publishes every contract of a project manifest, in manifest
// order, against the project datastore.
func cmdDeploy(args []string, stdout, stderr io.Writer) int {
	var manifestPath string
	for i := 0; i < len(args); i++ {
		if manifestPath != "" {
			fmt.Fprintf(stderr, "unexpected argument %q\n", args[i])
			return 2
		}
		manifestPath = args[i]
	}
	if manifestPath == "" {
		found, err := project.Find(".")
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		if found == "" {
			fmt.Fprintf(stderr, "no %s found; run from a project directory or pass a manifest path\n", config.ManifestFileName)
			return 1
		}
		manifestPath = found
	}

	m, err := project.Load(manifestPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	backend, err := database.NewSQLiteBackend(m.StorePath(), newLogger())
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer backend.Close()

	s := vm.NewSession(backend, vm.WithBudget(m.Budget), vm.WithOutput(stdout))
	for _, c := range m.Contracts {
		data, err := os.ReadFile(m.Resolve(c.Path))
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		receipt, err := s.Deploy(m.Deployer, c.Name, string(data))
		if err != nil {
			fmt.Fprintf(stderr, "deploy %s: %v\n", c.Name, err)
			return 1
		}
		fmt.Fprintf(stdout, "deployed %s.%s (tx %s, cost %d)\n",
			m.Deployer, c.Name, receipt.TxID, receipt.Cost)
	}
	return 0
}

// cmdCall invokes a public function against the project datastore.
// Arguments are source literals, for example u5 or 'SP123.token.
func cmdCall(args []string, stdout, stderr io.Writer) int {
	var positional []string
	var sender, store string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--sender":
			var err error
			sender, i, err = takeStringFlag(args, i)
			if err != nil {
				fmt.Fprintln(stderr, err)
				return 2
			}
		case "--store":
			var err error
			store, i, err = takeStringFlag(args, i)
			if err != nil {
				fmt.Fprintln(stderr, err)
				return 2
			}
		default:
			positional = append(positional, args[i])
		}
	}
	if len(positional) < 2 {
		fmt.Fprintln(stderr, "usage: covenant call <contract> <function> [arg ...]")
		return 2
	}
	contract, function, rawArgs := positional[0], positional[1], positional[2:]

	backend, err := openStore(store)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer backend.Close()

	s := vm.NewSession(backend, vm.WithOutput(stdout))
	callArgs := make([]types.Value, 0, len(rawArgs))
	for _, raw := range rawArgs {
		v, err := s.ParseValue(raw)
		if err != nil {
			fmt.Fprintf(stderr, "argument %q: %v\n", raw, err)
			return 1
		}
		callArgs = append(callArgs, v)
	}

	receipt, err := s.Call(contract, function, sender, callArgs)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	fmt.Fprintln(stdout, receipt.Result)
	return 0
}
