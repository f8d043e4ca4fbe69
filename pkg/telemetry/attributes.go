// Copyright 2026 © The Launcher Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry provides OpenTelemetry integration with attributes for
// extension dispatch and assistant observability.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Semantic conventions for launcher telemetry.
const (
	// Extension attributes
	AttrExtensionID      = "launcher.extension.id"
	AttrExtensionVersion = "launcher.extension.version"
	AttrExtensionCount   = "launcher.extensions.count"

	// Dispatch attributes
	AttrHook      = "launcher.hook"
	AttrHookFault = "launcher.hook.fault"

	// Query attributes
	AttrQueryID        = "launcher.query.id"
	AttrQueryText      = "launcher.query.text"
	AttrQueryResponses = "launcher.query.responses"
	AttrResponseScore  = "launcher.response.priority"

	// Assistant attributes
	AttrAnswerID     = "launcher.answer.id"
	AttrAnswerSource = "launcher.answer.source"

	// LLM attributes (gen_ai conventions)
	AttrLLMModel    = "gen_ai.request.model"
	AttrLLMProvider = "gen_ai.system"

	// Governance attributes
	AttrPolicyAllowed = "launcher.policy.allowed"
	AttrPolicyReason  = "launcher.policy.reason"
)

// Hook names used as the AttrHook value.
const (
	HookInstall         = "on_install"
	HookEnable          = "on_enable"
	HookDisable         = "on_disable"
	HookUninstall       = "on_uninstall"
	HookLauncherStart   = "on_launcher_start"
	HookAppLaunched     = "on_app_launched"
	HookAppDrawerOpened = "on_app_drawer_opened"
	HookHomeLongPress   = "on_home_screen_long_press"
	HookAIQuery         = "on_ai_query"
	HookProvideWidget   = "provide_widget"
	HookProvideSearch   = "provide_search_provider"
	HookProvideTheme    = "provide_theme"
	HookSearch          = "search"
)

// DispatchAttributes returns attributes for an event fan-out span.
func DispatchAttributes(hook string, extensions int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrHook, hook),
		attribute.Int(AttrExtensionCount, extensions),
	}
}

// QueryAttributes returns attributes for a query span. The text is
// truncated to maxLen bytes.
func QueryAttributes(queryID, text string, maxLen int) []attribute.KeyValue {
	if maxLen <= 0 {
		maxLen = 200
	}
	if len(text) > maxLen {
		text = text[:maxLen] + "..."
	}
	attrs := []attribute.KeyValue{attribute.String(AttrQueryText, text)}
	if queryID != "" {
		attrs = append(attrs, attribute.String(AttrQueryID, queryID))
	}
	return attrs
}

// ResponseAttributes identifies a single extension response.
func ResponseAttributes(extensionID string, priority int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrExtensionID, extensionID),
		attribute.Int(AttrResponseScore, priority),
	}
}

// ExtensionAttributes describes one extension.
func ExtensionAttributes(id, version string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String(AttrExtensionID, id)}
	if version != "" {
		attrs = append(attrs, attribute.String(AttrExtensionVersion, version))
	}
	return attrs
}

// AnswerAttributes returns attributes for an assistant answer span.
func AnswerAttributes(answerID, source, model, provider string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrAnswerID, answerID),
		attribute.String(AttrAnswerSource, source),
	}
	if model != "" {
		attrs = append(attrs, attribute.String(AttrLLMModel, model))
	}
	if provider != "" {
		attrs = append(attrs, attribute.String(AttrLLMProvider, provider))
	}
	return attrs
}

// PolicyAttributes returns attributes for a permission review.
func PolicyAttributes(allowed bool, reason string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.Bool(AttrPolicyAllowed, allowed)}
	if reason != "" {
		attrs = append(attrs, attribute.String(AttrPolicyReason, reason))
	}
	return attrs
}
