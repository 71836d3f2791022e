// Package project loads Covenant.yaml project manifests.
//
// A manifest names a datastore and an ordered list of contract sources.
// Deploy tooling reads it to publish a whole project in one step, with
// contracts later in the list free to reference earlier ones.
package project

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/covenant-lang/covenant/internal/config"
	"github.com/covenant-lang/covenant/internal/types"
)

// Manifest is the top-level Covenant.yaml configuration.
type Manifest struct {
	// Project is the project name. Informational only.
	Project string `yaml:"project"`

	// Deployer is the principal address contracts are published under.
	// Defaults to the built-in development address.
	Deployer string `yaml:"deployer,omitempty"`

	// Store is the datastore path, relative to the manifest directory.
	// Defaults to covenant.db next to the manifest.
	Store string `yaml:"store,omitempty"`

	// Budget caps evaluation steps per transaction. Zero selects the
	// default budget.
	Budget uint64 `yaml:"budget,omitempty"`

	// Contracts lists the contract sources in deploy order.
	Contracts []ContractEntry `yaml:"contracts"`

	dir string
}

// ContractEntry is one contract in the manifest.
type ContractEntry struct {
	// Name is the contract name it deploys under. Defaults to the
	// source file name without its extension.
	Name string `yaml:"name,omitempty"`

	// Path is the contract source file, relative to the manifest
	// directory.
	Path string `yaml:"path"`
}

// Load reads and parses a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse parses manifest content from bytes. The path argument anchors
// relative paths and appears in error messages. Decoding is strict: an
// unknown key is an error, not a silently dropped setting.
func Parse(data []byte, path string) (*Manifest, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var m Manifest
	if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	m.dir = filepath.Dir(path)
	m.setDefaults()
	if err := m.validate(path); err != nil {
		return nil, err
	}
	return &m, nil
}

// Find searches for Covenant.yaml starting from dir and walking up to
// parent directories. It returns an empty path when no manifest exists
// anywhere above dir.
func Find(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}

	for {
		candidate := filepath.Join(dir, config.ManifestFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}

		candidate = filepath.Join(dir, strings.ToLower(config.ManifestFileName))
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

func (m *Manifest) validate(path string) error {
	if len(m.Contracts) == 0 {
		return fmt.Errorf("%s: no contracts defined", path)
	}
	if !types.IsValidAddress(m.Deployer) {
		return fmt.Errorf("%s: invalid deployer address %q", path, m.Deployer)
	}

	seenNames := make(map[string]int)
	for i, c := range m.Contracts {
		if c.Path == "" {
			return fmt.Errorf("%s: contracts[%d]: path is required", path, i)
		}
		if !types.IsValidContractName(c.Name) {
			return fmt.Errorf("%s: contracts[%d]: invalid contract name %q", path, i, c.Name)
		}
		if prev, ok := seenNames[c.Name]; ok {
			return fmt.Errorf("%s: contracts[%d]: name %q already used by contracts[%d]", path, i, c.Name, prev)
		}
		seenNames[c.Name] = i

		src := m.Resolve(c.Path)
		info, err := os.Stat(src)
		if err != nil {
			return fmt.Errorf("%s: contracts[%d] (%s): source %q not found: %w", path, i, c.Name, c.Path, err)
		}
		if info.IsDir() {
			return fmt.Errorf("%s: contracts[%d] (%s): source %q is a directory", path, i, c.Name, c.Path)
		}
	}
	return nil
}

func (m *Manifest) setDefaults() {
	if m.Deployer == "" {
		m.Deployer = config.DefaultDeployer
	}
	if m.Store == "" {
		m.Store = config.DefaultStorePath
	}
	for i := range m.Contracts {
		if m.Contracts[i].Name == "" {
			base := filepath.Base(m.Contracts[i].Path)
			m.Contracts[i].Name = strings.TrimSuffix(base, filepath.Ext(base))
		}
	}
}

// Dir returns the directory the manifest was loaded from.
func (m *Manifest) Dir() string { return m.dir }

// Resolve turns a manifest-relative path into one usable from the
// current working directory.
func (m *Manifest) Resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.dir, p)
}

// StorePath returns the resolved datastore path.
func (m *Manifest) StorePath() string {
	return m.Resolve(m.Store)
}
