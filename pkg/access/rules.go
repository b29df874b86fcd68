package access

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/galxe/blobs3/pkg/common"
)

const defaultMinimumBalance Value = "1"

// RuleSet is an immutable list of rules sorted by ascending pattern length.
// Rules with equal length keep their configured order.
type RuleSet struct {
	rules []Rule
}

// NewRuleSet validates, normalizes and sorts rules
func NewRuleSet(rules []Rule) (*RuleSet, error) {
	normalized := make([]Rule, 0, len(rules))
	for i, r := range rules {
		n, err := normalizeRule(r.Clone())
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		normalized = append(normalized, n)
	}
	sort.SliceStable(normalized, func(i, j int) bool {
		return len(normalized[i].StoragePath) < len(normalized[j].StoragePath)
	})
	return &RuleSet{rules: normalized}, nil
}

// Load parses a YAML or JSON array of rules. Unknown fields are rejected.
func Load(data []byte) (*RuleSet, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var rules []Rule
	if err := dec.Decode(&rules); err != nil {
		if errors.Is(err, io.EOF) {
			return NewRuleSet(nil)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return NewRuleSet(rules)
}

// LoadRulesFile reads and parses the rule file at path
func LoadRulesFile(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read access config: %w", err)
	}
	return Load(data)
}

// Rules returns a copy of the sorted rules
func (s *RuleSet) Rules() []Rule {
	out := make([]Rule, len(s.rules))
	for i, r := range s.rules {
		out[i] = r.Clone()
	}
	return out
}

func (s *RuleSet) Len() int {
	return len(s.rules)
}

// Range calls fn for each rule in order until fn returns false.
// fn must not modify the rule's StoragePath.
func (s *RuleSet) Range(fn func(Rule) bool) {
	for _, r := range s.rules {
		if !fn(r) {
			return
		}
	}
}

func normalizeRule(r Rule) (Rule, error) {
	if !r.Access.Valid() {
		return r, fmt.Errorf("%w: unknown access %q", ErrInvalidConfig, r.Access)
	}
	vars := make(map[string]bool)
	for _, c := range r.StoragePath {
		if err := ValidateComponent(c); err != nil {
			return r, err
		}
		if IsVariable(c) {
			vars[c] = true
		}
	}

	spec := &r.Authorization
	if spec.Blockchain == "" {
		return r, fmt.Errorf("%w: blockchain is required", ErrInvalidConfig)
	}
	if !spec.AuthorizationType.Valid() {
		return r, fmt.Errorf("%w: unknown authorization_type %q", ErrInvalidConfig, spec.AuthorizationType)
	}

	switch spec.AuthorizationType {
	case AuthorizationERC20:
		if spec.ContractAddress == "" {
			return r, fmt.Errorf("%w: ERC20 requires contract_address", ErrInvalidConfig)
		}
	case AuthorizationERC721, AuthorizationERC1155:
		if spec.ContractAddress == "" || spec.TokenID.IsZero() {
			return r, fmt.Errorf("%w: %s requires contract_address and token_id", ErrInvalidConfig, spec.AuthorizationType)
		}
	}
	if spec.MinimumBalance.IsZero() &&
		(spec.AuthorizationType == AuthorizationERC20 || spec.AuthorizationType == AuthorizationERC1155) {
		spec.MinimumBalance = defaultMinimumBalance
	}

	if spec.ContractAddress != "" {
		if IsVariable(spec.ContractAddress) {
			if !vars[spec.ContractAddress] {
				return r, fmt.Errorf("%w: contract_address references %s which is not in storage_path", ErrInvalidConfig, spec.ContractAddress)
			}
		} else {
			addr, err := common.ToChecksumAddress(spec.ContractAddress)
			if err != nil {
				return r, fmt.Errorf("%w: contract_address: %w", ErrInvalidConfig, err)
			}
			spec.ContractAddress = addr
		}
	}

	fields := []struct {
		name string
		v    *Value
	}{
		{"token_id", &spec.TokenID},
		{"minimum_balance", &spec.MinimumBalance},
	}
	for _, f := range fields {
		name, v := f.name, f.v
		if v.IsZero() {
			continue
		}
		s := v.String()
		if IsVariable(s) {
			if !vars[s] {
				return r, fmt.Errorf("%w: %s references %s which is not in storage_path", ErrInvalidConfig, name, s)
			}
			continue
		}
		n, err := common.ParseBigInt(s)
		if err != nil {
			return r, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, name, err)
		}
		*v = Value(n.String())
	}
	return r, nil
}
