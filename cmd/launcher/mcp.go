package main

import (
	"context"
	"strings"

	"github.com/jllopis/launcher/pkg/config"
	"github.com/jllopis/launcher/pkg/mcp"
)

// runMCP serves the enabled extensions and the assistant over MCP stdio
// until stdin closes or the process is interrupted. When a config file is
// given it is watched and changes are applied in place.
func (c *cli) runMCP(ctx context.Context, args []string) error {
	if err := ensureNoArgs(args); err != nil {
		return err
	}

	cfg := c.cfg
	stdioSafe(cfg)
	a, err := newApp(ctx, cfg, c.errOut)
	if err != nil {
		return err
	}
	defer a.close(context.WithoutCancel(ctx))

	if path := configPath(c.flags.ConfigArgs); path != "" {
		watcher, _, err := config.WatchWithCLI(ctx, c.flags.ConfigArgs, config.WithWatchLogger(a.logger))
		if err != nil {
			a.logger.WarnContext(ctx, "config watch disabled", "path", path, "error", err)
		} else {
			defer watcher.Stop()
			watcher.OnChange(func(next *config.Config) {
				stdioSafe(next)
				a.reload(ctx, next)
			})
		}
	}

	srv := mcp.NewServer(cfg.MCP.ServerName, version, a.manager,
		mcp.WithAsker(a.assistant),
		mcp.WithServerLogger(a.logger),
	)
	a.manager.OnLauncherStart(ctx)
	a.logger.InfoContext(ctx, "serving mcp over stdio", "server", cfg.MCP.ServerName, "enabled", len(a.manager.Enabled()))
	if err := srv.ServeStdio(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// stdioSafe keeps stdin free for the protocol. Telemetry and logs
// already go to stderr.
func stdioSafe(cfg *config.Config) {
	if strings.EqualFold(strings.TrimSpace(cfg.Governance.Approval), "console") {
		cfg.Governance.Approval = "deny"
	}
}
