// Package cli implements the covenant command surface. The commands are
// thin wrappers over vm.Session; embedders who want programmatic access
// should use internal packages through their own wiring instead of
// shelling out.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/covenant-lang/covenant/internal/config"
	"github.com/covenant-lang/covenant/internal/database"
	"github.com/covenant-lang/covenant/internal/vm"
)

// Version is stamped at build time:
//
//	-ldflags "-X github.com/covenant-lang/covenant/pkg/cli.Version=v0.3.0"
var Version = "dev"

const usage = `covenant - a deterministic contract language runtime

Usage:
  covenant run <file.cov>             run a file against a throwaway store
  covenant check <file.cov> [...]     parse and initialize, report problems
  covenant deploy [manifest]          deploy a project's contracts
  covenant call <contract> <fn> [arg ...]
                                      call a public function
  covenant console                    interactive session
  covenant node                       serve the devnet gRPC API
  covenant version                    print the version

Options for deploy/call/console/node:
  --store <path>    datastore file (default: from manifest, else covenant.db)
  --sender <addr>   sender principal for call
  --budget <n>      per-transaction execution budget
  --listen <addr>   node listen address (default ` + config.DefaultListenAddr + `)
  --memory          node only: keep state in memory instead of a store file
`

// Entry is the covenant main. It exits the process.
func Entry() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var code int
	switch os.Args[1] {
	case "version", "-v", "-version", "--version":
		fmt.Println("covenant " + Version)
	case "help", "-h", "-help", "--help":
		fmt.Print(usage)
	case "run":
		code = cmdRun(os.Args[2:], os.Stdout, os.Stderr)
	case "check":
		code = cmdCheck(os.Args[2:], os.Stdout, os.Stderr)
	case "deploy":
		code = cmdDeploy(os.Args[2:], os.Stdout, os.Stderr)
	case "call":
		code = cmdCall(os.Args[2:], os.Stdout, os.Stderr)
	case "console":
		code = cmdConsole(os.Args[2:], os.Stdin, os.Stdout, os.Stderr)
	case "node":
		code = cmdNode(os.Args[2:], os.Stderr)
	default:
		if isSourceFile(os.Args[1]) {
			code = cmdRun(os.Args[1:], os.Stdout, os.Stderr)
			break
		}
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		fmt.Fprint(os.Stderr, usage)
		code = 2
	}
	os.Exit(code)
}

func isSourceFile(path string) bool {
	for _, ext := range config.SourceFileExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

func readSource(path string) (string, error) {
	if !isSourceFile(path) {
		return "", fmt.Errorf("%s: not a %s source file", path, config.SourceFileExt)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// cmdRun evaluates a source file in an ephemeral session. Definitions
// and state live only for the run; the last top-level value is printed.
func cmdRun(args []string, stdout, stderr io.Writer) int {
	var path string
	var budget uint64
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--budget":
			n, rest, err := takeUintFlag(args, i)
			if err != nil {
				fmt.Fprintln(stderr, err)
				return 2
			}
			budget, i = n, rest
		default:
			if path != "" {
				fmt.Fprintf(stderr, "unexpected argument %q\n", args[i])
				return 2
			}
			path = args[i]
		}
	}
	if path == "" {
		fmt.Fprintln(stderr, "usage: covenant run <file.cov>")
		return 2
	}

	source, err := readSource(path)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	s := vm.NewSession(database.NewMemoryBackend(),
		vm.WithBudget(budget), vm.WithOutput(stdout))
	receipt, err := s.Eval(source)
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", path, err)
		return 1
	}
	if receipt.Result != nil {
		fmt.Fprintln(stdout, receipt.Result)
	}
	return 0
}

// cmdCheck parses and initializes each file against a throwaway store.
func cmdCheck(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "usage: covenant check <file.cov> [...]")
		return 2
	}
	failed := 0
	for _, path := range args {
		source, err := readSource(path)
		if err == nil {
			err = vm.Check(source)
		}
		if err != nil {
			fmt.Fprintf(stderr, "%s: %v\n", path, err)
			failed++
			continue
		}
		fmt.Fprintf(stdout, "%s: ok\n", path)
	}
	if failed > 0 {
		return 1
	}
	return 0
}

func takeUintFlag(args []string, i int) (uint64, int, error) {
	if i+1 >= len(args) {
		return 0, i, fmt.Errorf("%s requires a value", args[i])
	}
	var n uint64
	if _, err := fmt.Sscanf(args[i+1], "%d", &n); err != nil {
		return 0, i, fmt.Errorf("%s: invalid value %q", args[i], args[i+1])
	}
	return n, i + 1, nil
}

func takeStringFlag(args []string, i int) (string, int, error) {
	if i+1 >= len(args) {
		return "", i, fmt.Errorf("%s requires a value", args[i])
	}
	return args[i+1], i + 1, nil
}

func newLogger() *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return log
}
