package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jllopis/launcher/pkg/assistant"
	"github.com/jllopis/launcher/pkg/config"
	"github.com/jllopis/launcher/pkg/core"
	"github.com/jllopis/launcher/pkg/errors"
	"github.com/jllopis/launcher/pkg/governance"
	"github.com/jllopis/launcher/pkg/manager"
	"github.com/jllopis/launcher/pkg/mcp"
	"github.com/jllopis/launcher/pkg/prefs"
	"github.com/jllopis/launcher/pkg/registry"
	"github.com/jllopis/launcher/pkg/samples"
	"github.com/jllopis/launcher/pkg/store"
	"github.com/jllopis/launcher/pkg/telemetry"
)

const serviceName = "launcher"

// app is the composition root: loader, store, manager, preferences,
// permission gate and assistant, built from one Config.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	loader    *registry.Loader
	store     store.ArtifactStore
	manager   *manager.Manager
	gate      *governance.Gate
	prefs     prefs.Store
	assistant *assistant.Assistant
	health    *core.HealthRegistry

	db         *sql.DB
	stopFollow func()
	shutdown   telemetry.ShutdownFunc
}

func newApp(ctx context.Context, cfg *config.Config, logOut io.Writer) (a *app, err error) {
	a = &app{cfg: cfg}
	defer func() {
		if err != nil {
			a.close(context.WithoutCancel(ctx))
		}
	}()

	a.logger = telemetry.ConfigureSlog(logOut, cfg.Log.Level, cfg.Log.Format)
	a.shutdown, err = telemetry.InitWithConfig(serviceName, version, telemetry.Config{
		Exporter:           cfg.Telemetry.Exporter,
		OTLPEndpoint:       cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure:       cfg.Telemetry.OTLPInsecure,
		OTLPTimeoutSeconds: cfg.Telemetry.OTLPTimeoutSeconds,
		OTLPHeaders:        cfg.Telemetry.OTLPHeaders,
		Writer:             logOut,
	})
	if err != nil {
		return a, err
	}
	metrics, err := telemetry.NewExtensionMetrics()
	if err != nil {
		a.logger.Warn("extension metrics disabled", "error", err)
		metrics = nil
	}

	a.loader = registry.New(registry.WithLogger(a.logger))
	if cfg.Extensions.Builtins {
		samples.Register(a.loader)
	}
	if err = mcp.RegisterRemotes(a.loader, cfg.MCP.Remotes, nil, a.logger); err != nil {
		return a, err
	}

	if err = a.openStores(); err != nil {
		return a, err
	}

	a.manager = manager.New(a.loader, a.store,
		manager.WithLogger(a.logger),
		manager.WithMetrics(metrics),
	)
	if err = a.manager.LoadInstalledExtensions(ctx); err != nil {
		return a, err
	}

	if err = a.buildGate(); err != nil {
		return a, err
	}
	if err = a.restoreEnabled(ctx); err != nil {
		return a, err
	}

	provider, err := assistant.NewProvider(ctx, cfg.LLM)
	if err != nil {
		return a, err
	}
	opts := []assistant.Option{
		assistant.WithConfig(cfg.Assistant),
		assistant.WithProviderName(cfg.LLM.Provider),
		assistant.WithLogger(a.logger),
		assistant.WithMetrics(metrics),
	}
	if cfg.LLM.TimeoutSeconds > 0 {
		opts = append(opts, assistant.WithTimeout(time.Duration(cfg.LLM.TimeoutSeconds)*time.Second))
	}
	a.assistant = assistant.New(a.manager, provider, opts...)

	a.health = core.NewHealthRegistry(0)
	a.health.RegisterChecker("extensions", a.manager.HealthChecker())
	a.health.RegisterChecker("assistant", a.assistant.HealthChecker())
	a.health.RegisterChecker("preferences", a.prefsHealth())
	return a, nil
}

// openStores builds the artifact store named by extensions.store and the
// preference store. Preferences live in the SQLite database unless the
// artifact store is in memory.
func (a *app) openStores() error {
	ext := a.cfg.Extensions
	kind := strings.ToLower(strings.TrimSpace(ext.Store))

	if kind != "memory" {
		db, err := openDatabase(ext.DatabasePath)
		if err != nil {
			return err
		}
		a.db = db
		ps, err := prefs.NewSQLiteStore(db)
		if err != nil {
			return err
		}
		a.prefs = ps
	} else {
		a.prefs = prefs.NewMemoryStore()
	}

	switch kind {
	case "", "dir":
		ds, err := store.NewDirStore(ext.Dir, ext.Suffix)
		if err != nil {
			return err
		}
		a.store = ds
	case "sqlite":
		ss, err := store.NewSQLiteStore(a.db)
		if err != nil {
			return err
		}
		a.store = ss
	case "memory":
		a.store = store.NewMemoryStore()
	default:
		return errors.Newf(errors.CodeInvalidInput, "unknown extension store %q", ext.Store).
			WithContext("store", ext.Store)
	}
	return nil
}

func openDatabase(path string) (*sql.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New(errors.CodeInvalidInput, "extensions.database_path is required", nil)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.New(errors.CodeStorage, "create database directory", err)
	}
	return store.OpenSQLite(path)
}

func (a *app) buildGate() error {
	gov := a.cfg.Governance
	rules, err := governance.LoadRuleSet(gov)
	if err != nil {
		return err
	}
	a.gate = governance.NewGate(
		governance.WithAllowlist(gov.Allowlist),
		governance.WithDenylist(gov.Denylist),
		governance.WithPolicyEngine(rules),
		governance.WithApprovalHook(governance.ApprovalHookFromConfig(gov.Approval)),
		governance.WithGateLogger(a.logger),
	)
	return nil
}

// restoreEnabled re-enables the persisted set through the gate, then the
// ids listed in extensions.enabled, and starts persisting later changes.
// Config-enabled ids are part of the baseline and are not persisted.
func (a *app) restoreEnabled(ctx context.Context) error {
	restored, err := prefs.Sync(ctx, a.manager, a.prefs, func(ctx context.Context, ids []string) []string {
		return a.gate.FilterEnabled(ctx, a.manager, ids)
	})
	if err != nil {
		return err
	}
	if len(restored) > 0 {
		a.logger.DebugContext(ctx, "restored enabled extensions", "extensions", restored)
	}
	a.applyConfigEnabled(ctx, a.cfg.Extensions.Enabled)
	a.stopFollow = prefs.Follow(ctx, a.manager, a.prefs, a.logger)
	return nil
}

func (a *app) applyConfigEnabled(ctx context.Context, ids []string) {
	for _, id := range ids {
		if _, err := a.gate.Enable(ctx, a.manager, id); err != nil {
			a.logger.WarnContext(ctx, "configured extension not enabled", "extension_id", id, "error", err)
		}
	}
}

// reload applies a changed config file: assistant tuning, the permission
// gate and the configured enabled list.
func (a *app) reload(ctx context.Context, cfg *config.Config) {
	a.cfg = cfg
	a.assistant.Update(cfg.Assistant)
	if err := a.buildGate(); err != nil {
		a.logger.WarnContext(ctx, "governance reload failed", "error", err)
		return
	}
	a.applyConfigEnabled(ctx, cfg.Extensions.Enabled)
	a.logger.InfoContext(ctx, "configuration reloaded")
}

func (a *app) prefsHealth() core.HealthChecker {
	return core.CheckFunc(func(ctx context.Context) core.HealthResult {
		result := core.HealthResult{
			Status:    core.HealthHealthy,
			Component: "preferences",
			LastCheck: time.Now(),
		}
		ids, err := a.prefs.Enabled(ctx)
		if err != nil {
			result.Status = core.HealthUnhealthy
			result.Message = err.Error()
			return result
		}
		result.Message = fmt.Sprintf("%d persisted", len(ids))
		return result
	})
}

// close stops persisting before the manager disables everything so the
// stored enabled set survives shutdown.
func (a *app) close(ctx context.Context) {
	if a.stopFollow != nil {
		a.stopFollow()
	}
	if a.manager != nil {
		a.manager.Close(ctx)
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil && a.logger != nil {
			a.logger.Warn("close database", "error", err)
		}
	}
	if a.shutdown != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		_ = a.shutdown(shutdownCtx)
	}
}
