// Copyright 2026 © The Launcher Authors
// SPDX-License-Identifier: Apache-2.0

// Package mcp connects the launcher to the Model Context Protocol in both
// directions. Server exposes the enabled extensions as MCP tools; Client and
// ToolExtension bridge tools of remote MCP servers in as extensions.
package mcp

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jllopis/launcher/pkg/assistant"
	"github.com/jllopis/launcher/pkg/errors"
	"github.com/jllopis/launcher/pkg/extension"
)

// Manager is the part of the extension manager exposed over MCP.
type Manager interface {
	QueryExtensions(ctx context.Context, query string, lc extension.LauncherContext) []extension.Response
	Search(ctx context.Context, query string) []extension.SearchResult
	Loaded() map[string]extension.Extension
	Enabled() []string
}

// Asker answers free-form questions; *assistant.Assistant implements it.
type Asker interface {
	Ask(ctx context.Context, query string, lc extension.LauncherContext) (*assistant.Answer, error)
}

// Server wraps the mcp-go server with the launcher tools.
type Server struct {
	mcpServer *server.MCPServer
	manager   Manager
	asker     Asker
	logger    *slog.Logger
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithAsker adds the "ask" tool backed by the assistant.
func WithAsker(a Asker) ServerOption {
	return func(s *Server) {
		s.asker = a
	}
}

// WithServerLogger sets the logger.
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates an MCP server exposing m.
func NewServer(name, version string, m Manager, opts ...ServerOption) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(name, version, server.WithToolCapabilities(false)),
		manager:   m,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mcpServer.AddTool(mcp.NewTool("query_extensions",
		mcp.WithDescription("Ask every enabled launcher extension to answer a query. Responses are ordered by priority, highest first."),
		mcp.WithString("query", mcp.Required(), mcp.Description("The user query")),
		mcp.WithString("current_app", mcp.Description("Package of the app in the foreground")),
		mcp.WithString("clipboard", mcp.Description("Current clipboard text")),
	), s.handleQuery)

	s.mcpServer.AddTool(mcp.NewTool("list_extensions",
		mcp.WithDescription("List installed launcher extensions and whether each is enabled."),
	), s.handleList)

	s.mcpServer.AddTool(mcp.NewTool("search",
		mcp.WithDescription("Run a query through every search provider of the enabled extensions."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search text")),
	), s.handleSearch)

	if s.asker != nil {
		s.mcpServer.AddTool(mcp.NewTool("ask",
			mcp.WithDescription("Ask the launcher assistant. Extensions answer first; the configured LLM answers otherwise."),
			mcp.WithString("query", mcp.Required(), mcp.Description("The question")),
			mcp.WithString("current_app", mcp.Description("Package of the app in the foreground")),
			mcp.WithString("clipboard", mcp.Description("Current clipboard text")),
		), s.handleAsk)
	}
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio serves on stdin/stdout until ctx is cancelled or stdin closes.
func (s *Server) ServeStdio(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// ExtensionInfo is one entry of the list_extensions result.
type ExtensionInfo struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Version     string                 `json:"version"`
	Author      string                 `json:"author,omitempty"`
	Description string                 `json:"description,omitempty"`
	Permissions []extension.Permission `json:"permissions,omitempty"`
	Enabled     bool                   `json:"enabled"`
}

func launcherContext(req mcp.CallToolRequest) extension.LauncherContext {
	lc := extension.NewLauncherContext()
	lc.CurrentApp = req.GetString("current_app", "")
	lc.Clipboard = req.GetString("clipboard", "")
	return lc
}

func (s *Server) handleQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	responses := s.manager.QueryExtensions(ctx, query, launcherContext(req))
	if responses == nil {
		responses = []extension.Response{}
	}
	return jsonResult(responses)
}

func (s *Server) handleList(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	enabled := make(map[string]bool)
	for _, id := range s.manager.Enabled() {
		enabled[id] = true
	}
	infos := make([]ExtensionInfo, 0)
	for id, ext := range s.manager.Loaded() {
		d := ext.Descriptor()
		infos = append(infos, ExtensionInfo{
			ID:          id,
			Name:        d.Name,
			Version:     d.Version,
			Author:      d.Author,
			Description: d.Description,
			Permissions: d.Permissions,
			Enabled:     enabled[id],
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return jsonResult(infos)
}

func (s *Server) handleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results := s.manager.Search(ctx, query)
	if results == nil {
		results = []extension.SearchResult{}
	}
	return jsonResult(results)
}

func (s *Server) handleAsk(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	answer, err := s.asker.Ask(ctx, query, launcherContext(req))
	if err != nil {
		s.logger.WarnContext(ctx, "mcp ask failed", "error", err)
		msg := err.Error()
		if le := errors.AsLauncherError(err); le != nil {
			msg = le.Reason()
		}
		return mcp.NewToolResultError(msg), nil
	}
	return jsonResult(answer)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.New(errors.CodeInternal, "encode tool result", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
