package project

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/covenant-lang/covenant/internal/config"
)

// writeSources creates a manifest directory holding the named contract
// files, each with a placeholder body.
func writeSources(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		full := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(full, []byte("(define-public (noop) (ok true))\n"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func TestParse_ValidMinimal(t *testing.T) {
	dir := writeSources(t, "contracts/token.cov", "contracts/wallet.cov")
	yaml := `
project: demo
contracts:
  - name: token
    path: contracts/token.cov
  - name: wallet
    path: contracts/wallet.cov
`
	m, err := Parse([]byte(yaml), filepath.Join(dir, config.ManifestFileName))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Project != "demo" {
		t.Errorf("project = %q, want demo", m.Project)
	}
	if m.Deployer != config.DefaultDeployer {
		t.Errorf("deployer = %q, want default %q", m.Deployer, config.DefaultDeployer)
	}
	if m.Store != config.DefaultStorePath {
		t.Errorf("store = %q, want default %q", m.Store, config.DefaultStorePath)
	}
	if len(m.Contracts) != 2 {
		t.Fatalf("expected 2 contracts, got %d", len(m.Contracts))
	}
	if m.Contracts[0].Name != "token" || m.Contracts[1].Name != "wallet" {
		t.Errorf("contract names = %q, %q", m.Contracts[0].Name, m.Contracts[1].Name)
	}
	if got, want := m.StorePath(), filepath.Join(dir, config.DefaultStorePath); got != want {
		t.Errorf("store path = %q, want %q", got, want)
	}
}

func TestParse_AllFields(t *testing.T) {
	dir := writeSources(t, "main.cov")
	yaml := `
project: demo
deployer: SA000000000000000000
store: state/dev.db
budget: 1000
contracts:
  - path: main.cov
`
	m, err := Parse([]byte(yaml), filepath.Join(dir, config.ManifestFileName))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Deployer != "SA000000000000000000" {
		t.Errorf("deployer = %q", m.Deployer)
	}
	if m.Budget != 1000 {
		t.Errorf("budget = %d, want 1000", m.Budget)
	}
	if got, want := m.StorePath(), filepath.Join(dir, "state", "dev.db"); got != want {
		t.Errorf("store path = %q, want %q", got, want)
	}
}

func TestParse_DerivedNames(t *testing.T) {
	dir := writeSources(t, "contracts/token-trait.cov")
	yaml := `
contracts:
  - path: contracts/token-trait.cov
`
	m, err := Parse([]byte(yaml), filepath.Join(dir, config.ManifestFileName))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Contracts[0].Name != "token-trait" {
		t.Errorf("derived name = %q, want token-trait", m.Contracts[0].Name)
	}
}

func TestParse_Errors(t *testing.T) {
	dir := writeSources(t, "good.cov", "Bad.cov")
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "no contracts",
			yaml:    "project: empty\n",
			wantErr: "no contracts defined",
		},
		{
			name: "bad deployer",
			yaml: `
deployer: not-an-address
contracts:
  - path: good.cov
`,
			wantErr: "invalid deployer address",
		},
		{
			name: "missing path",
			yaml: `
contracts:
  - name: good
`,
			wantErr: "path is required",
		},
		{
			name: "duplicate names",
			yaml: `
contracts:
  - name: good
    path: good.cov
  - name: good
    path: good.cov
`,
			wantErr: `name "good" already used`,
		},
		{
			name: "invalid derived name",
			yaml: `
contracts:
  - path: Bad.cov
`,
			wantErr: "invalid contract name",
		},
		{
			name: "missing source",
			yaml: `
contracts:
  - name: ghost
    path: ghost.cov
`,
			wantErr: "not found",
		},
		{
			name: "unknown key",
			yaml: `
project: typo
bdget: 1000
contracts:
  - path: good.cov
`,
			wantErr: "field bdget not found",
		},
		{
			name: "unknown contract key",
			yaml: `
contracts:
  - path: good.cov
    owner: somebody
`,
			wantErr: "field owner not found",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml), filepath.Join(dir, config.ManifestFileName))
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadAndFind(t *testing.T) {
	dir := writeSources(t, "main.cov")
	manifestPath := filepath.Join(dir, config.ManifestFileName)
	yaml := "contracts:\n  - path: main.cov\n"
	if err := os.WriteFile(manifestPath, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	m, err := Load(manifestPath)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if m.Dir() != dir {
		t.Errorf("dir = %q, want %q", m.Dir(), dir)
	}

	nested := filepath.Join(dir, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	found, err := Find(nested)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found != manifestPath {
		t.Errorf("found = %q, want %q", found, manifestPath)
	}
}
