package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/covenant-lang/covenant/internal/database"
	"github.com/covenant-lang/covenant/internal/vm"
)

const (
	colorReset = "\x1b[0m"
	colorGreen = "\x1b[32m"
	colorRed   = "\x1b[31m"
)

// cmdConsole runs the interactive session. Input accumulates until the
// parentheses balance, so definitions can span lines. State lives in
// memory unless --store points at a datastore file.
func cmdConsole(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var store string
	var budget uint64
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--store":
			var err error
			store, i, err = takeStringFlag(args, i)
			if err != nil {
				fmt.Fprintln(stderr, err)
				return 2
			}
		case "--budget":
			var err error
			budget, i, err = takeUintFlag(args, i)
			if err != nil {
				fmt.Fprintln(stderr, err)
				return 2
			}
		default:
			fmt.Fprintf(stderr, "unexpected argument %q\n", args[i])
			return 2
		}
	}

	var backend database.Backend
	if store != "" {
		var err error
		backend, err = database.NewSQLiteBackend(store, newLogger())
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		defer backend.Close()
	} else {
		backend = database.NewMemoryBackend()
	}

	s := vm.NewSession(backend, vm.WithBudget(budget), vm.WithOutput(stdout))
	tty := isConsoleTTY(stdout)

	if tty {
		fmt.Fprintf(stdout, "covenant %s console; :help for commands\n", Version)
	}

	scanner := bufio.NewScanner(stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	var pending strings.Builder
	for {
		if tty {
			if pending.Len() == 0 {
				fmt.Fprint(stdout, "cov> ")
			} else {
				fmt.Fprint(stdout, "...> ")
			}
		}
		if !scanner.Scan() {
			if tty {
				fmt.Fprintln(stdout)
			}
			return 0
		}
		line := scanner.Text()

		if pending.Len() == 0 {
			switch strings.TrimSpace(line) {
			case "":
				continue
			case ":quit", ":q":
				return 0
			case ":help":
				fmt.Fprintln(stdout, "  :quit   leave the console")
				continue
			}
		}

		pending.WriteString(line)
		pending.WriteByte('\n')
		if openParens(pending.String()) > 0 {
			continue
		}
		input := pending.String()
		pending.Reset()

		receipt, err := s.Eval(input)
		if err != nil {
			printColored(stdout, tty, colorRed, err.Error())
			continue
		}
		if receipt.Result != nil {
			printColored(stdout, tty, colorGreen, receipt.Result.String())
		}
	}
}

func printColored(w io.Writer, tty bool, color, text string) {
	if tty {
		fmt.Fprintln(w, color+text+colorReset)
		return
	}
	fmt.Fprintln(w, text)
}

func isConsoleTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// openParens counts unclosed parentheses outside strings and comments.
// A negative count means excess closers; evaluation reports those.
func openParens(s string) int {
	depth := 0
	inString := false
	inComment := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case inComment:
			if c == '\n' {
				inComment = false
			}
		case inString:
			if c == '"' {
				inString = false
			}
		case c == '"':
			inString = true
		case c == ';':
			inComment = true
		case c == '(':
			depth++
		case c == ')':
			depth--
		}
	}
	return depth
}
