package authz

import (
	"context"
	"fmt"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"

	"github.com/galxe/blobs3/internal/metric"
	"github.com/galxe/blobs3/pkg/access"
	"github.com/galxe/blobs3/pkg/chain"
	"github.com/galxe/blobs3/pkg/common"
	"github.com/galxe/blobs3/pkg/common/contracts"
)

// Outcome labels of a single authorize call
const (
	OutcomeGranted = "granted"
	OutcomeDenied  = "denied"
	OutcomeError   = "error"
)

// Result labels of a single candidate rule
const (
	resultGranted        = "granted"
	resultDenied         = "denied"
	resultAnonymous      = "anonymous"
	resultChainMissing   = "chain_missing"
	resultChainUnhealthy = "chain_unhealthy"
	resultInvalidBinding = "invalid_binding"
	resultQueryError     = "query_error"
)

// Chains resolves chain names used by rules
type Chains interface {
	Get(name string) (*chain.Handle, bool)
}

type Config struct {
	Rules  *access.RuleSet
	Chains Chains
}

// Engine decides whether a user may access a path. It holds no mutable
// state and is safe for concurrent use.
type Engine struct {
	rules  *access.RuleSet
	chains Chains
}

func NewEngine(cfg *Config) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("[Authz] config is nil")
	}
	if cfg.Rules == nil {
		return nil, fmt.Errorf("[Authz] rules is nil")
	}
	if cfg.Chains == nil {
		return nil, fmt.Errorf("[Authz] chains is nil")
	}
	return &Engine{rules: cfg.Rules, chains: cfg.Chains}, nil
}

// Authorize returns the first rule, in rule set order, that grants user the
// access on path. An empty user is anonymous and only public rules apply.
// ok is false when no rule grants. Chain and query failures deny the rule
// they occur in and never fail the call.
func (e *Engine) Authorize(ctx context.Context, user string, accessType access.AccessType, path string) (rule access.Rule, ok bool, err error) {
	if !accessType.Valid() {
		metric.RecordAuthorization(string(accessType), OutcomeError)
		return access.Rule{}, false, fmt.Errorf("%w: unknown access type %q", access.ErrInvalidConfig, accessType)
	}

	var userAddr *ethcommon.Address
	if user != "" {
		addr, err := common.ParseAddress(user)
		if err != nil {
			metric.RecordAuthorization(string(accessType), OutcomeError)
			return access.Rule{}, false, err
		}
		userAddr = &addr
	}

	components := access.SplitPath(path)
	e.rules.Range(func(r access.Rule) bool {
		if err = ctx.Err(); err != nil {
			return false
		}
		if r.Access != accessType {
			return true
		}
		bindings, matched := access.Match(r.StoragePath, components)
		if !matched {
			return true
		}
		if e.evaluate(ctx, r, bindings, userAddr) {
			rule, ok = r.Clone(), true
			return false
		}
		return true
	})
	if err != nil {
		metric.RecordAuthorization(string(accessType), OutcomeError)
		return access.Rule{}, false, err
	}

	outcome := OutcomeDenied
	if ok {
		outcome = OutcomeGranted
	}
	metric.RecordAuthorization(string(accessType), outcome)
	log.Debug().
		Str("user", user).
		Str("access", string(accessType)).
		Str("path", path).
		Bool("authorized", ok).
		Strs("rule", rule.StoragePath).
		Msg("[Authz] decision")
	return rule, ok, nil
}

func (e *Engine) evaluate(ctx context.Context, r access.Rule, bindings map[string]string, user *ethcommon.Address) bool {
	spec := r.Authorization
	kind := string(spec.AuthorizationType)
	record := func(result string) {
		metric.RecordRuleEvaluation(kind, result)
	}

	if spec.AuthorizationType == access.AuthorizationPublic {
		record(resultGranted)
		return true
	}
	if user == nil {
		record(resultAnonymous)
		return false
	}

	h, found := e.chains.Get(spec.Blockchain)
	if !found {
		record(resultChainMissing)
		log.Warn().Str("chain", spec.Blockchain).Strs("rule", r.StoragePath).Msg("[Authz] rule references unknown chain")
		return false
	}
	if !h.Healthy() {
		record(resultChainUnhealthy)
		log.Debug().Str("chain", spec.Blockchain).Strs("rule", r.StoragePath).Msg("[Authz] skipping rule on unhealthy chain")
		return false
	}

	cond, err := bind(spec, bindings)
	if err != nil {
		record(resultInvalidBinding)
		log.Warn().Err(err).Strs("rule", r.StoragePath).Msg("[Authz] failed to substitute path variables")
		return false
	}

	granted, err := cond.check(ctx, h.Client(), *user)
	if err != nil {
		record(resultQueryError)
		log.Warn().Err(err).Str("chain", spec.Blockchain).Strs("rule", r.StoragePath).Msg("[Authz] token query failed")
		return false
	}
	if granted {
		record(resultGranted)
	} else {
		record(resultDenied)
	}
	return granted
}

// condition is a rule's spec with variables substituted and literals parsed
type condition struct {
	kind           access.AuthorizationType
	contract       ethcommon.Address
	tokenID        *big.Int
	minimumBalance *big.Int
}

func substitute(field string, bindings map[string]string) string {
	if v, ok := bindings[field]; ok {
		return v
	}
	return field
}

func bind(spec access.Spec, bindings map[string]string) (*condition, error) {
	c := &condition{kind: spec.AuthorizationType}

	contract, err := common.ParseAddress(substitute(spec.ContractAddress, bindings))
	if err != nil {
		return nil, fmt.Errorf("contract_address: %w", err)
	}
	c.contract = contract

	if spec.AuthorizationType == access.AuthorizationERC721 || spec.AuthorizationType == access.AuthorizationERC1155 {
		if c.tokenID, err = common.ParseBigInt(substitute(spec.TokenID.String(), bindings)); err != nil {
			return nil, fmt.Errorf("token_id: %w", err)
		}
	}
	if spec.AuthorizationType == access.AuthorizationERC20 || spec.AuthorizationType == access.AuthorizationERC1155 {
		if c.minimumBalance, err = common.ParseBigInt(substitute(spec.MinimumBalance.String(), bindings)); err != nil {
			return nil, fmt.Errorf("minimum_balance: %w", err)
		}
	}
	return c, nil
}

func (c *condition) check(ctx context.Context, client contracts.TokenQuerier, user ethcommon.Address) (bool, error) {
	switch c.kind {
	case access.AuthorizationERC20:
		balance, err := client.ERC20BalanceOf(ctx, c.contract, user)
		if err != nil {
			return false, err
		}
		return balance.Cmp(c.minimumBalance) >= 0, nil
	case access.AuthorizationERC721:
		owner, err := client.ERC721OwnerOf(ctx, c.contract, c.tokenID)
		if err != nil {
			return false, err
		}
		return owner == user, nil
	case access.AuthorizationERC1155:
		balance, err := client.ERC1155BalanceOf(ctx, c.contract, user, c.tokenID)
		if err != nil {
			return false, err
		}
		return balance.Cmp(c.minimumBalance) >= 0, nil
	}
	return false, fmt.Errorf("unsupported authorization type %q", c.kind)
}
