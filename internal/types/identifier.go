// Package types defines the runtime values, type signatures and identifiers
// shared by the interpreter, the codec and the datastore.
package types

import (
	"fmt"
	"strings"

	"github.com/covenant-lang/covenant/internal/config"
)

// ContractIdentifier names a deployed contract by deployer address and
// contract name. Its canonical textual form is "ADDRESS.name".
type ContractIdentifier struct {
	Address string
	Name    string
}

// NewContractIdentifier validates both parts and builds an identifier.
func NewContractIdentifier(address, name string) (ContractIdentifier, error) {
	if !IsValidAddress(address) {
		return ContractIdentifier{}, fmt.Errorf("invalid principal address %q", address)
	}
	if !IsValidContractName(name) {
		return ContractIdentifier{}, fmt.Errorf("invalid contract name %q", name)
	}
	return ContractIdentifier{Address: address, Name: name}, nil
}

// ParseContractIdentifier parses the canonical "ADDRESS.name" form.
func ParseContractIdentifier(s string) (ContractIdentifier, error) {
	dot := strings.IndexByte(s, '.')
	if dot < 0 {
		return ContractIdentifier{}, fmt.Errorf("invalid contract identifier %q: missing contract name", s)
	}
	return NewContractIdentifier(s[:dot], s[dot+1:])
}

func (c ContractIdentifier) String() string {
	return c.Address + "." + c.Name
}

// TraitIdentifier names a trait definition inside a specific contract.
// Two traits are the same trait exactly when their identifiers are equal.
type TraitIdentifier struct {
	Contract ContractIdentifier
	Name     string
}

func (t TraitIdentifier) String() string {
	return t.Contract.String() + "." + t.Name
}

// IsValidAddress reports whether s has the shape of a principal address:
// an 'S' followed by uppercase base-36 characters.
func IsValidAddress(s string) bool {
	if len(s) < config.MinAddressLength || len(s) > config.MaxAddressLength {
		return false
	}
	if s[0] != 'S' {
		return false
	}
	for i := 1; i < len(s); i++ {
		c := s[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

// IsValidContractName reports whether s is acceptable as a contract name:
// a lowercase letter followed by lowercase letters, digits and hyphens.
// The constraint keeps contract identifiers disjoint from the reserved
// built-in namespace, which starts with an underscore.
func IsValidContractName(s string) bool {
	if len(s) == 0 || len(s) > config.MaxContractNameLength {
		return false
	}
	if s[0] < 'a' || s[0] > 'z' {
		return false
	}
	for i := 1; i < len(s); i++ {
		c := s[i]
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') && c != '-' {
			return false
		}
	}
	return true
}

// IsValidName reports whether s is acceptable as a function, parameter,
// variable or trait name.
func IsValidName(s string) bool {
	if len(s) == 0 || len(s) > config.MaxNameLength {
		return false
	}
	if !isNameStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isNamePart(s[i]) {
			return false
		}
	}
	return true
}

func isNameStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNamePart(c byte) bool {
	return isNameStart(c) || (c >= '0' && c <= '9') || c == '-' || c == '_' || c == '?' || c == '!'
}
