// Package governance reviews the permissions an extension declares before
// the host enables it. The extension engine itself never enforces them.
package governance

import (
	"context"
	"os"
	"path"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jllopis/launcher/pkg/config"
	"github.com/jllopis/launcher/pkg/errors"
	"github.com/jllopis/launcher/pkg/extension"
)

// Action is one (extension, permission) pair under review. Permission is
// empty when the extension declares none.
type Action struct {
	Extension  string
	Permission extension.Permission
	Metadata   map[string]string
}

// DecisionStatus is the outcome of a review.
type DecisionStatus string

const (
	DecisionStatusAllow   DecisionStatus = "allow"
	DecisionStatusDeny    DecisionStatus = "deny"
	DecisionStatusPending DecisionStatus = "pending"
)

// Decision is a review outcome. A decision without Status falls back to
// Allowed.
type Decision struct {
	Allowed bool
	Reason  string
	RuleID  string
	Status  DecisionStatus
}

func (d Decision) status() DecisionStatus {
	switch {
	case d.Status != "":
		return d.Status
	case d.Allowed:
		return DecisionStatusAllow
	}
	return DecisionStatusDeny
}

func (d Decision) IsAllowed() bool { return d.status() == DecisionStatusAllow }
func (d Decision) IsPending() bool { return d.status() == DecisionStatusPending }
func (d Decision) IsDenied() bool  { return d.status() == DecisionStatusDeny }

// PolicyEngine decides single actions.
type PolicyEngine interface {
	Evaluate(ctx context.Context, action Action) Decision
}

// ApprovalHook settles a pending action, usually by asking someone.
type ApprovalHook interface {
	Request(ctx context.Context, action Action) Decision
}

// Rule matches actions by glob on extension id and permission. Empty
// patterns match everything. Effect is allow, deny or pending; anything
// unrecognised allows.
type Rule struct {
	ID         string
	Effect     string
	Permission string
	Extension  string
	Reason     string
}

func (r Rule) matches(a Action) bool {
	return globMatch(r.Extension, a.Extension) && globMatch(r.Permission, string(a.Permission))
}

func (r Rule) decision() Decision {
	status, _ := parseEffect(r.Effect)
	return Decision{Allowed: status == DecisionStatusAllow, Reason: r.Reason, RuleID: r.ID, Status: status}
}

// parseEffect maps a rule effect to a status. ok is false for unknown
// effects, which allow.
func parseEffect(effect string) (status DecisionStatus, ok bool) {
	switch s := DecisionStatus(strings.ToLower(strings.TrimSpace(effect))); s {
	case DecisionStatusDeny, DecisionStatusPending, DecisionStatusAllow:
		return s, true
	case "":
		return DecisionStatusAllow, true
	}
	return DecisionStatusAllow, false
}

// RuleSet is a first-match PolicyEngine.
type RuleSet struct {
	Rules []Rule
	// DefaultDecision applies when no rule matches.
	DefaultDecision Decision
}

// NewRuleSet copies rules into a set that allows by default.
func NewRuleSet(rules []Rule) *RuleSet {
	return &RuleSet{
		Rules:           slices.Clone(rules),
		DefaultDecision: Decision{Allowed: true, Status: DecisionStatusAllow},
	}
}

func (r *RuleSet) Evaluate(_ context.Context, action Action) Decision {
	for _, rule := range r.Rules {
		if rule.matches(action) {
			return rule.decision()
		}
	}
	return r.DefaultDecision
}

// Actions lists the actions a descriptor implies: one per permission, or a
// single bare action when it declares none.
func Actions(d extension.Descriptor) []Action {
	if len(d.Permissions) == 0 {
		return []Action{{Extension: d.ID}}
	}
	out := make([]Action, len(d.Permissions))
	for i, p := range d.Permissions {
		out[i] = Action{Extension: d.ID, Permission: p}
	}
	return out
}

// Review evaluates every action of d. The first deny ends the review. The
// result is otherwise the first pending decision, or allow, and the pending
// actions come back annotated with the rule that parked them.
func Review(ctx context.Context, engine PolicyEngine, d extension.Descriptor) (Decision, []Action) {
	result := Decision{Allowed: true, Status: DecisionStatusAllow}
	var pending []Action
	for _, action := range Actions(d) {
		decision := engine.Evaluate(ctx, action)
		if decision.IsDenied() {
			decision.Allowed, decision.Status = false, DecisionStatusDeny
			return decision, nil
		}
		if !decision.IsPending() {
			continue
		}
		if pending == nil {
			result = decision
		}
		action.Metadata = map[string]string{"policy_rule_id": decision.RuleID, "policy_reason": decision.Reason}
		pending = append(pending, action)
	}
	return result, pending
}

// globMatch treats a malformed pattern as a literal.
func globMatch(pattern, value string) bool {
	if pattern == "" || pattern == value {
		return true
	}
	ok, err := path.Match(pattern, value)
	return err == nil && ok
}

// RuleSetFromConfig builds a rule set from inline config rules.
func RuleSetFromConfig(cfg config.GovernanceConfig) *RuleSet {
	return NewRuleSet(rulesFromConfig(cfg.Policies))
}

// LoadRuleSet builds a rule set from inline rules followed by the rules in
// cfg.PolicyFile, if set.
func LoadRuleSet(cfg config.GovernanceConfig) (*RuleSet, error) {
	rules := rulesFromConfig(cfg.Policies)
	if strings.TrimSpace(cfg.PolicyFile) != "" {
		fileRules, err := LoadPolicyFile(cfg.PolicyFile)
		if err != nil {
			return nil, err
		}
		rules = append(rules, fileRules...)
	}
	return NewRuleSet(rules), nil
}

type policyFile struct {
	Policies []config.PolicyRuleConfig `yaml:"policies"`
}

// LoadPolicyFile reads rules from a YAML document with a top-level
// "policies" list.
func LoadPolicyFile(filename string) ([]Rule, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.New(errors.CodeInvalidInput, "read policy file", err).
			WithContext("path", filename)
	}
	var doc policyFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.New(errors.CodeInvalidInput, "parse policy file", err).
			WithContext("path", filename)
	}
	for i, rule := range doc.Policies {
		if _, ok := parseEffect(rule.Effect); !ok {
			return nil, errors.Newf(errors.CodeInvalidInput, "policy %d: unknown effect %q", i, rule.Effect).
				WithContext("path", filename)
		}
	}
	return rulesFromConfig(doc.Policies), nil
}

func rulesFromConfig(policies []config.PolicyRuleConfig) []Rule {
	rules := make([]Rule, len(policies))
	for i, p := range policies {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			id = "rule"
		}
		rules[i] = Rule{
			ID:         id,
			Effect:     p.Effect,
			Permission: strings.ToLower(strings.TrimSpace(p.Permission)),
			Extension:  strings.TrimSpace(p.Extension),
			Reason:     p.Reason,
		}
	}
	return rules
}
