package mcp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jllopis/launcher/pkg/errors"
	"github.com/jllopis/launcher/pkg/resilience"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultCacheTTL = 30 * time.Second
)

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithTimeout bounds every request to the remote server.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithRetry sets how many times a failed request is repeated and the first
// backoff. Zero retries makes a single attempt.
func WithRetry(retries int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		if retries >= 0 {
			c.policy.Attempts = retries + 1
		}
		if backoff > 0 {
			c.policy.Backoff.Initial = backoff
		}
	}
}

// WithToolCacheTTL sets how long the tool list is reused. Zero disables
// the cache.
func WithToolCacheTTL(ttl time.Duration) ClientOption {
	return func(c *Client) {
		if ttl >= 0 {
			c.cacheTTL = ttl
		}
	}
}

// Client is a remote MCP session used by bridged extensions. Requests are
// bounded, retried when recoverable and the tool list is cached.
type Client struct {
	raw      client.MCPClient
	timeout  time.Duration
	policy   resilience.Policy
	cacheTTL time.Duration
	now      func() time.Time

	mu        sync.Mutex
	tools     []mcp.Tool
	fetchedAt time.Time
}

// NewClient wraps an initialized MCP session.
func NewClient(raw client.MCPClient, opts ...ClientOption) *Client {
	policy := resilience.DefaultPolicy()
	policy.Attempts = 3
	policy.Backoff.Initial = 200 * time.Millisecond
	c := &Client{
		raw:      raw,
		timeout:  defaultTimeout,
		policy:   policy,
		cacheTTL: defaultCacheTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewClientWithStdio starts command and speaks MCP over its stdio.
func NewClientWithStdio(ctx context.Context, command string, args []string, opts ...ClientOption) (*Client, error) {
	raw, err := client.NewStdioMCPClient(command, nil, args...)
	if err != nil {
		return nil, errors.New(errors.CodeExtensionFault, "start mcp server "+command, err)
	}
	return handshake(ctx, raw, opts)
}

// NewClientWithStreamableHTTP connects to a remote server over streamable
// HTTP.
func NewClientWithStreamableHTTP(ctx context.Context, baseURL string, opts ...ClientOption) (*Client, error) {
	raw, err := client.NewStreamableHttpClient(baseURL, transport.WithHTTPTimeout(defaultTimeout))
	if err != nil {
		return nil, errors.New(errors.CodeExtensionFault, "connect mcp server "+baseURL, err)
	}
	return handshake(ctx, raw, opts)
}

// NewInProcessClient talks to srv directly.
func NewInProcessClient(ctx context.Context, srv *server.MCPServer, opts ...ClientOption) (*Client, error) {
	raw, err := client.NewInProcessClient(srv)
	if err != nil {
		return nil, errors.New(errors.CodeInternal, "in-process mcp client", err)
	}
	return handshake(ctx, raw, opts)
}

func handshake(ctx context.Context, raw *client.Client, opts []ClientOption) (*Client, error) {
	if err := raw.Start(ctx); err != nil {
		_ = raw.Close()
		return nil, errors.New(errors.CodeExtensionFault, "start mcp client", err)
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var req mcp.InitializeRequest
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{Name: "launcher", Version: "0.1.0"}
	if _, err := raw.Initialize(ctx, req); err != nil {
		_ = raw.Close()
		return nil, errors.New(errors.CodeExtensionFault, "initialize mcp session", err)
	}
	return NewClient(raw, opts...), nil
}

// request runs one bounded, retried call.
func request[T any](ctx context.Context, c *Client, fn func(ctx context.Context) (T, error)) (T, error) {
	return resilience.Retry(ctx, c.policy, func(ctx context.Context) (T, error) {
		return resilience.WithTimeoutResult(ctx, c.timeout, fn)
	})
}

// ListTools returns the tools the server offers, from cache when fresh.
func (c *Client) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	c.mu.Lock()
	if c.cacheTTL > 0 && c.tools != nil && c.now().Sub(c.fetchedAt) < c.cacheTTL {
		tools := append([]mcp.Tool(nil), c.tools...)
		c.mu.Unlock()
		return tools, nil
	}
	c.mu.Unlock()

	res, err := request(ctx, c, func(ctx context.Context) (*mcp.ListToolsResult, error) {
		return c.raw.ListTools(ctx, mcp.ListToolsRequest{})
	})
	if err != nil {
		return nil, err
	}

	if c.cacheTTL > 0 {
		c.mu.Lock()
		c.tools = append([]mcp.Tool{}, res.Tools...)
		c.fetchedAt = c.now()
		c.mu.Unlock()
	}
	return res.Tools, nil
}

// Tool looks up one tool by name.
func (c *Client) Tool(ctx context.Context, name string) (mcp.Tool, bool, error) {
	tools, err := c.ListTools(ctx)
	if err != nil {
		return mcp.Tool{}, false, err
	}
	for _, t := range tools {
		if t.Name == name {
			return t, true, nil
		}
	}
	return mcp.Tool{}, false, nil
}

// CallTool invokes a tool with args.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args

	res, err := request(ctx, c, func(ctx context.Context) (*mcp.CallToolResult, error) {
		return c.raw.CallTool(ctx, req)
	})
	if err != nil {
		return nil, fmt.Errorf("call tool %s: %w", name, err)
	}
	return res, nil
}

// Close ends the session.
func (c *Client) Close() error {
	return c.raw.Close()
}
