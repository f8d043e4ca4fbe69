// Copyright 2026 © The Launcher Authors
// SPDX-License-Identifier: Apache-2.0

package governance

import (
	"context"
	"log/slog"
	"path"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/launcher/pkg/errors"
	"github.com/jllopis/launcher/pkg/extension"
	"github.com/jllopis/launcher/pkg/telemetry"
)

// Enabler is the part of the manager the gate drives.
type Enabler interface {
	Extension(id string) (extension.Extension, bool)
	Enable(ctx context.Context, id string) bool
}

// Gate reviews an extension's declared permissions and enables it only
// when the review passes.
type Gate struct {
	allowlist    map[string]bool
	denylist     map[string]bool
	policyEngine PolicyEngine
	approval     ApprovalHook
	logger       *slog.Logger
	tracer       trace.Tracer
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// NewGate creates a gate. Without options every extension is allowed.
func NewGate(opts ...GateOption) *Gate {
	g := &Gate{
		allowlist: make(map[string]bool),
		denylist:  make(map[string]bool),
		logger:    slog.Default(),
		tracer:    otel.Tracer("launcher/governance"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// WithAllowlist restricts enabling to the given extension ids or patterns.
func WithAllowlist(ids []string) GateOption {
	return func(g *Gate) {
		addPatterns(g.allowlist, ids)
	}
}

// WithDenylist forbids the given extension ids or patterns.
func WithDenylist(ids []string) GateOption {
	return func(g *Gate) {
		addPatterns(g.denylist, ids)
	}
}

// WithPolicyEngine attaches a policy engine for permission review.
func WithPolicyEngine(engine PolicyEngine) GateOption {
	return func(g *Gate) {
		g.policyEngine = engine
	}
}

// WithApprovalHook sets the hook asked about pending permissions.
func WithApprovalHook(hook ApprovalHook) GateOption {
	return func(g *Gate) {
		g.approval = hook
	}
}

// WithGateLogger sets the logger.
func WithGateLogger(logger *slog.Logger) GateOption {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// Check decides whether d may be enabled.
// Evaluation order:
// 1. denylist match → deny
// 2. non-empty allowlist without a match → deny
// 3. policy review; a deny on any permission → deny
// 4. pending permissions → approval hook, each must be approved
// 5. otherwise → allow
func (g *Gate) Check(ctx context.Context, d extension.Descriptor) Decision {
	ctx, span := g.tracer.Start(ctx, "governance.check",
		trace.WithAttributes(telemetry.ExtensionAttributes(d.ID, d.Version)...))
	defer span.End()

	decision := g.check(ctx, d)
	span.SetAttributes(telemetry.PolicyAttributes(decision.IsAllowed(), decision.Reason)...)
	return decision
}

func (g *Gate) check(ctx context.Context, d extension.Descriptor) Decision {
	if matchesList(d.ID, g.denylist) {
		return Decision{Status: DecisionStatusDeny, Reason: "extension is in denylist"}
	}
	if len(g.allowlist) > 0 && !matchesList(d.ID, g.allowlist) {
		return Decision{Status: DecisionStatusDeny, Reason: "extension is not in allowlist"}
	}
	if g.policyEngine == nil {
		return Decision{Allowed: true, Status: DecisionStatusAllow}
	}

	decision, pending := Review(ctx, g.policyEngine, d)
	if decision.IsDenied() || len(pending) == 0 {
		return decision
	}
	if g.approval == nil {
		return Decision{Status: DecisionStatusDeny, Reason: "approval required", RuleID: decision.RuleID}
	}
	for _, action := range pending {
		answer := g.approval.Request(ctx, action)
		if !answer.IsAllowed() {
			answer.Allowed = false
			answer.Status = DecisionStatusDeny
			return answer
		}
		decision = answer
	}
	decision.Allowed = true
	decision.Status = DecisionStatusAllow
	return decision
}

// Enable reviews the loaded extension id and enables it when allowed.
// The bool reports whether the enabled set changed.
func (g *Gate) Enable(ctx context.Context, m Enabler, id string) (bool, error) {
	ext, ok := m.Extension(id)
	if !ok {
		return false, errors.Newf(errors.CodeNotFound, "extension %s is not loaded", id).
			WithContext("extension_id", id)
	}
	decision := g.Check(ctx, ext.Descriptor())
	if !decision.IsAllowed() {
		g.logger.WarnContext(ctx, "extension enable denied",
			"extension_id", id, "rule_id", decision.RuleID, "reason", decision.Reason)
		return false, errors.New(errors.CodePermissionDenied, "enable denied: "+decision.Reason, nil).
			WithContext("extension_id", id).
			WithContext("rule_id", decision.RuleID)
	}
	return m.Enable(ctx, id), nil
}

// FilterEnabled returns the ids among loaded extensions that pass the gate,
// preserving order. Unknown ids are dropped.
func (g *Gate) FilterEnabled(ctx context.Context, m Enabler, ids []string) []string {
	filtered := make([]string, 0, len(ids))
	for _, id := range ids {
		ext, ok := m.Extension(id)
		if !ok {
			continue
		}
		if g.Check(ctx, ext.Descriptor()).IsAllowed() {
			filtered = append(filtered, id)
		}
	}
	return filtered
}

// matchesList checks id against exact entries and glob patterns such as
// "com.launcher.*".
func matchesList(id string, list map[string]bool) bool {
	if list[id] {
		return true
	}
	for pattern := range list {
		if ok, err := path.Match(pattern, id); err == nil && ok {
			return true
		}
	}
	return false
}

func addPatterns(list map[string]bool, ids []string) {
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id != "" {
			list[id] = true
		}
	}
}
