package access

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalidConfig is returned when a rule list fails schema validation
	ErrInvalidConfig = errors.New("invalid access configuration")
	// ErrInvalidPath is returned when a storage path component has an invalid shape
	ErrInvalidPath = errors.New("invalid storage path")
)

// AccessType is the operation a user wants to perform on a path
type AccessType string

const (
	AccessCreate AccessType = "CREATE"
	AccessRead   AccessType = "READ"
	AccessUpdate AccessType = "UPDATE"
)

// ParseAccessType accepts any letter casing
func ParseAccessType(s string) (AccessType, error) {
	a := AccessType(strings.ToUpper(strings.TrimSpace(s)))
	if !a.Valid() {
		return "", fmt.Errorf("%w: unknown access type %q", ErrInvalidConfig, s)
	}
	return a, nil
}

func (a AccessType) Valid() bool {
	switch a {
	case AccessCreate, AccessRead, AccessUpdate:
		return true
	}
	return false
}

// AuthorizationType is the kind of on-chain check a rule performs
type AuthorizationType string

const (
	AuthorizationPublic  AuthorizationType = "PUBLIC"
	AuthorizationERC20   AuthorizationType = "ERC20"
	AuthorizationERC721  AuthorizationType = "ERC721"
	AuthorizationERC1155 AuthorizationType = "ERC1155"
)

func (t AuthorizationType) Valid() bool {
	switch t {
	case AuthorizationPublic, AuthorizationERC20, AuthorizationERC721, AuthorizationERC1155:
		return true
	}
	return false
}

// Value is an integer-or-reference field of a rule. Configuration files may
// write it as a number or as a string and it is kept as text.
type Value string

func (v Value) String() string {
	return string(v)
}

func (v Value) IsZero() bool {
	return v == ""
}

// UnmarshalYAML accepts integer and string scalars
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected an integer or string", node.Line)
	}
	switch node.ShortTag() {
	case "!!int", "!!str":
		*v = Value(node.Value)
		return nil
	}
	return fmt.Errorf("line %d: expected an integer or string, got %s", node.Line, node.ShortTag())
}

// Spec is the on-chain condition of a rule. ContractAddress, TokenID and
// MinimumBalance may each name a path variable instead of a literal.
type Spec struct {
	Blockchain        string            `yaml:"blockchain" json:"blockchain"`
	AuthorizationType AuthorizationType `yaml:"authorization_type" json:"authorization_type"`
	ContractAddress   string            `yaml:"contract_address,omitempty" json:"contract_address,omitempty"`
	TokenID           Value             `yaml:"token_id,omitempty" json:"token_id,omitempty"`
	MinimumBalance    Value             `yaml:"minimum_balance,omitempty" json:"minimum_balance,omitempty"`
}

// Rule grants Access on paths matching StoragePath when Authorization holds
type Rule struct {
	StoragePath   []string   `yaml:"storage_path" json:"storage_path"`
	Authorization Spec       `yaml:"authorization" json:"authorization"`
	Access        AccessType `yaml:"access" json:"access"`
}

// Clone returns a deep copy of r
func (r Rule) Clone() Rule {
	c := r
	c.StoragePath = append([]string(nil), r.StoragePath...)
	return c
}
