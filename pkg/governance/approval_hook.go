// Copyright 2026 © The Launcher Authors
// SPDX-License-Identifier: Apache-2.0

package governance

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// ApprovalFunc adapts an ordinary function to ApprovalHook.
type ApprovalFunc func(ctx context.Context, action Action) Decision

// Request calls f.
func (f ApprovalFunc) Request(ctx context.Context, action Action) Decision {
	return f(ctx, action)
}

// FixedApproval answers every request with d. A zero Decision denies.
func FixedApproval(d Decision) ApprovalHook {
	if d.Status == "" {
		d.Status = DecisionStatusDeny
		if d.Allowed {
			d.Status = DecisionStatusAllow
		}
	}
	if d.Reason == "" {
		d.Reason = "approval decision not set"
	}
	return ApprovalFunc(func(context.Context, Action) Decision { return d })
}

// ConsoleApprovalHook asks an operator on a terminal. Answers starting
// with "y" grant; anything else, a closed input or a timeout denies.
type ConsoleApprovalHook struct {
	In      io.Reader
	Out     io.Writer
	Prompt  string
	Timeout time.Duration

	once  sync.Once
	lines chan string
}

// NewConsoleApprovalHook builds a hook reading answers from in and writing
// questions to out. Nil values fall back to stdin and stderr.
func NewConsoleApprovalHook(in io.Reader, out io.Writer) *ConsoleApprovalHook {
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stderr
	}
	return &ConsoleApprovalHook{In: in, Out: out, Prompt: "Grant? [y/N]: "}
}

// readLines starts a single reader shared by all requests. The channel is
// closed when the input ends.
func (h *ConsoleApprovalHook) readLines() <-chan string {
	h.once.Do(func() {
		h.lines = make(chan string)
		go func() {
			defer close(h.lines)
			scanner := bufio.NewScanner(h.In)
			for scanner.Scan() {
				h.lines <- scanner.Text()
			}
		}()
	})
	return h.lines
}

// Request describes the action and waits for an answer.
func (h *ConsoleApprovalHook) Request(ctx context.Context, action Action) Decision {
	h.describe(action)

	if h.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Timeout)
		defer cancel()
	}

	select {
	case <-ctx.Done():
		return Decision{Status: DecisionStatusDeny, Reason: "approval cancelled"}
	case line, ok := <-h.readLines():
		if !ok {
			return Decision{Status: DecisionStatusDeny, Reason: "approval input closed"}
		}
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "y") {
			return Decision{Allowed: true, Status: DecisionStatusAllow, Reason: "approved by operator"}
		}
		return Decision{Status: DecisionStatusDeny, Reason: "rejected by operator"}
	}
}

func (h *ConsoleApprovalHook) describe(action Action) {
	var b strings.Builder
	if action.Permission == "" {
		fmt.Fprintf(&b, "\nEnable extension %q?\n", action.Extension)
	} else {
		fmt.Fprintf(&b, "\nGrant permission %s to extension %q?\n", action.Permission, action.Extension)
	}
	if id := strings.TrimSpace(action.Metadata["policy_rule_id"]); id != "" {
		fmt.Fprintf(&b, "Rule: %s\n", id)
	}
	reason := strings.TrimSpace(action.Metadata["policy_reason"])
	if reason == "" {
		reason = "approval required"
	}
	fmt.Fprintf(&b, "Reason: %s\n%s", reason, h.Prompt)
	_, _ = io.WriteString(h.Out, b.String())
}

// ApprovalHookFromConfig maps the governance.approval setting to a hook.
// "allow" grants, "console" prompts on stdin and anything else denies.
func ApprovalHookFromConfig(mode string) ApprovalHook {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "allow":
		return FixedApproval(Decision{Allowed: true, Reason: "approved by configuration"})
	case "console":
		return NewConsoleApprovalHook(nil, nil)
	default:
		return FixedApproval(Decision{Reason: "approval disabled"})
	}
}
