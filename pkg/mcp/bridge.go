package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jllopis/launcher/pkg/config"
	"github.com/jllopis/launcher/pkg/errors"
	"github.com/jllopis/launcher/pkg/extension"
	"github.com/jllopis/launcher/pkg/registry"
)

// DefaultRemotePriority is used when a bridged tool has no priority set.
const DefaultRemotePriority = 5

// ToolCaller abstracts MCP tool execution. *Client implements it.
type ToolCaller interface {
	CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error)
}

// ToolExtension answers assistant queries by calling one tool of a remote
// MCP server. The tool receives query, current_app and clipboard arguments;
// its text content becomes the response.
type ToolExtension struct {
	extension.Base
	caller   ToolCaller
	tool     string
	priority int
	closer   func() error
}

// NewToolExtension builds an extension around caller.
func NewToolExtension(desc extension.Descriptor, caller ToolCaller, tool string, priority int) *ToolExtension {
	if priority <= 0 {
		priority = DefaultRemotePriority
	}
	return &ToolExtension{
		Base:     extension.NewBase(desc),
		caller:   caller,
		tool:     tool,
		priority: priority,
	}
}

// OnAIQuery implements extension.Extension.
func (e *ToolExtension) OnAIQuery(ctx context.Context, query string, lc extension.LauncherContext) (*extension.Response, error) {
	args := map[string]any{"query": query}
	if lc.CurrentApp != "" {
		args["current_app"] = lc.CurrentApp
	}
	if lc.Clipboard != "" {
		args["clipboard"] = lc.Clipboard
	}

	result, err := e.caller.CallTool(ctx, e.tool, args)
	if err != nil {
		return nil, err
	}
	text, err := resultText(result)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	return &extension.Response{
		Text:     text,
		Priority: e.priority,
		Metadata: map[string]any{"mcp_tool": e.tool},
	}, nil
}

// OnUninstall closes the connection to the remote server.
func (e *ToolExtension) OnUninstall(context.Context) error {
	if e.closer != nil {
		return e.closer()
	}
	return nil
}

func resultText(result *mcp.CallToolResult) (string, error) {
	if result == nil {
		return "", errors.New(errors.CodeExtensionFault, "mcp tool result is nil", nil)
	}
	text := extractTextContent(result.Content)
	if result.IsError {
		return "", errors.New(errors.CodeExtensionFault, "mcp tool returned error: "+text, nil)
	}
	return text, nil
}

func extractTextContent(items []mcp.Content) string {
	var parts []string
	for _, item := range items {
		switch content := item.(type) {
		case mcp.TextContent:
			parts = append(parts, content.Text)
		case *mcp.TextContent:
			parts = append(parts, content.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// Dialer opens a client for one remote. The default dials stdio or
// streamable HTTP depending on the remote's settings.
type Dialer func(ctx context.Context, remote config.MCPRemoteConfig) (*Client, error)

// DialRemote is the default Dialer.
func DialRemote(ctx context.Context, remote config.MCPRemoteConfig) (*Client, error) {
	var opts []ClientOption
	if remote.TimeoutSeconds > 0 {
		opts = append(opts, WithTimeout(time.Duration(remote.TimeoutSeconds)*time.Second))
	}
	switch {
	case remote.Command != "":
		return NewClientWithStdio(ctx, remote.Command, remote.Args, opts...)
	case remote.URL != "":
		return NewClientWithStreamableHTTP(ctx, remote.URL, opts...)
	default:
		return nil, errors.Newf(errors.CodeInvalidInput, "mcp remote %s needs a command or a url", remote.ID)
	}
}

// RegisterRemotes adds one registry factory per remote. Connections are
// opened lazily when the extension is loaded and shared by later loads.
func RegisterRemotes(loader *registry.Loader, remotes []config.MCPRemoteConfig, dial Dialer, logger *slog.Logger) error {
	if dial == nil {
		dial = DialRemote
	}
	if logger == nil {
		logger = slog.Default()
	}
	for _, remote := range remotes {
		if strings.TrimSpace(remote.ID) == "" || remote.Tool == "" {
			return errors.New(errors.CodeInvalidInput, "mcp remote needs an id and a tool", nil).
				WithContext("extension_id", remote.ID)
		}
		loader.Register(remote.ID, remoteFactory(remote, dial, logger))
	}
	return nil
}

func remoteFactory(remote config.MCPRemoteConfig, dial Dialer, logger *slog.Logger) registry.Factory {
	var (
		mu      sync.Mutex
		client  *Client
		summary string
	)
	return func() (extension.Extension, error) {
		mu.Lock()
		defer mu.Unlock()
		if client == nil {
			ctx := context.Background()
			c, err := dial(ctx, remote)
			if err != nil {
				return nil, err
			}
			tool, found, err := c.Tool(ctx, remote.Tool)
			switch {
			case err != nil:
				// Some servers reject tools/list; the call may still work.
				logger.Warn("mcp remote tool list unavailable", "extension_id", remote.ID, "error", err)
			case !found:
				_ = c.Close()
				return nil, errors.Newf(errors.CodeNotFound, "mcp remote %s has no tool %q", remote.ID, remote.Tool).
					WithContext("extension_id", remote.ID)
			default:
				summary = tool.Description
			}
			client = c
			logger.Info("connected mcp remote", "extension_id", remote.ID, "tool", remote.Tool)
		}

		name := remote.Name
		if name == "" {
			name = remote.Tool
		}
		description := summary
		if description == "" {
			description = fmt.Sprintf("MCP tool %s", remote.Tool)
		}
		desc := extension.Descriptor{
			ID:          remote.ID,
			Name:        name,
			Version:     "1.0.0",
			Description: description,
			Permissions: []extension.Permission{extension.PermNetworkAccess},
		}
		ext := NewToolExtension(desc, client, remote.Tool, remote.Priority)
		ext.closer = func() error {
			mu.Lock()
			defer mu.Unlock()
			if client == nil {
				return nil
			}
			err := client.Close()
			client = nil
			return err
		}
		return ext, nil
	}
}
