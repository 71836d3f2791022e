package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestRunPrintsLastValue(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "main.cov", `
(define-private (double (n int)) (* n 2))
(double 21)
`)

	var stdout, stderr bytes.Buffer
	if code := cmdRun([]string{path}, &stdout, &stderr); code != 0 {
		t.Fatalf("run exited %d: %s", code, stderr.String())
	}
	if got := strings.TrimSpace(stdout.String()); got != "42" {
		t.Errorf("run output = %q, want 42", got)
	}
}

func TestRunRejectsUnknownExtension(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "main.txt", "(+ 1 2)")

	var stdout, stderr bytes.Buffer
	if code := cmdRun([]string{path}, &stdout, &stderr); code == 0 {
		t.Fatalf("run accepted a .txt file")
	}
}

func TestCheckReportsPerFile(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.cov", "(define-private (f) 1)")
	bad := writeFile(t, dir, "bad.cov", "(define-private (f) 1")

	var stdout, stderr bytes.Buffer
	code := cmdCheck([]string{good, bad}, &stdout, &stderr)
	if code != 1 {
		t.Fatalf("check exited %d, want 1", code)
	}
	if !strings.Contains(stdout.String(), "good.cov: ok") {
		t.Errorf("stdout = %q, want good.cov reported ok", stdout.String())
	}
	if !strings.Contains(stderr.String(), "bad.cov") {
		t.Errorf("stderr = %q, want bad.cov reported", stderr.String())
	}
}

func TestDeployThenCall(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "counter.cov", `
(define-data-var count uint u0)
(define-public (bump)
  (begin
    (var-set count (+ (var-get count) u1))
    (ok (var-get count))))
`)
	manifest := writeFile(t, dir, "Covenant.yaml", `
project: demo
contracts:
  - path: counter.cov
`)
	store := filepath.Join(dir, "covenant.db")

	var stdout, stderr bytes.Buffer
	if code := cmdDeploy([]string{manifest}, &stdout, &stderr); code != 0 {
		t.Fatalf("deploy exited %d: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), ".counter") {
		t.Errorf("deploy output = %q, want the contract id", stdout.String())
	}

	stdout.Reset()
	stderr.Reset()
	code := cmdCall([]string{
		"SC000000000000000000002Q6VF78.counter", "bump", "--store", store,
	}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("call exited %d: %s", code, stderr.String())
	}
	if got := strings.TrimSpace(stdout.String()); got != "(ok u1)" {
		t.Errorf("call output = %q, want (ok u1)", got)
	}
}

func TestConsoleEvaluatesAndQuits(t *testing.T) {
	stdin := strings.NewReader("(+ 1 2)\n:quit\n")
	var stdout, stderr bytes.Buffer
	if code := cmdConsole(nil, stdin, &stdout, &stderr); code != 0 {
		t.Fatalf("console exited %d: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "3") {
		t.Errorf("console output = %q, want 3", stdout.String())
	}
}

func TestConsoleAccumulatesUntilBalanced(t *testing.T) {
	stdin := strings.NewReader("(define-private (f)\n  5)\n(f)\n")
	var stdout, stderr bytes.Buffer
	if code := cmdConsole(nil, stdin, &stdout, &stderr); code != 0 {
		t.Fatalf("console exited %d: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "5") {
		t.Errorf("console output = %q, want 5", stdout.String())
	}
}

func TestOpenParens(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"(+ 1 2)", 0},
		{"(define (f)", 1},
		{`(print "unbalanced ) inside")`, 0},
		{"(+ 1 2) ;; trailing (comment", 0},
		{"))", -2},
	}
	for _, c := range cases {
		if got := openParens(c.in); got != c.want {
			t.Errorf("openParens(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}
