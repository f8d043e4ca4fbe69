package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/jllopis/launcher/pkg/config"
	"github.com/jllopis/launcher/pkg/core"
	"github.com/jllopis/launcher/pkg/extension"
	"github.com/jllopis/launcher/pkg/manager"
	"github.com/jllopis/launcher/pkg/mcp"
	"github.com/jllopis/launcher/pkg/store"
)

type cli struct {
	flags  globalFlags
	cfg    *config.Config
	out    io.Writer
	errOut io.Writer
}

type availableResult struct {
	ID        string `json:"id"`
	Installed bool   `json:"installed"`
	Enabled   bool   `json:"enabled"`
}

type changeResult struct {
	ID      string `json:"id"`
	Action  string `json:"action"`
	Changed bool   `json:"changed"`
}

type statusResult struct {
	Version string              `json:"version"`
	Status  core.HealthStatus   `json:"status"`
	Checks  []core.HealthResult `json:"checks"`
	Stats   manager.Stats       `json:"stats"`
	Store   string              `json:"store"`
	LLM     string              `json:"llm_provider"`
	Enabled []string            `json:"enabled"`
}

func (c *cli) dispatch(ctx context.Context, cmd string, args []string) error {
	if cmd == "mcp" {
		return c.runMCP(ctx, args)
	}

	a, err := newApp(ctx, c.cfg, c.errOut)
	if err != nil {
		return err
	}
	defer a.close(context.WithoutCancel(ctx))

	switch cmd {
	case "list":
		return c.runList(a, args)
	case "available":
		return c.runAvailable(a, args)
	case "install":
		return c.runInstall(ctx, a, args)
	case "uninstall":
		return c.runUninstall(ctx, a, args)
	case "enable":
		return c.runEnable(ctx, a, args)
	case "disable":
		return c.runDisable(ctx, a, args)
	case "query":
		return c.runQuery(ctx, a, args)
	case "ask":
		return c.runAsk(ctx, a, args)
	case "search":
		return c.runSearch(ctx, a, args)
	case "widgets":
		return c.runWidgets(ctx, a, args)
	case "themes":
		return c.runThemes(ctx, a, args)
	case "event":
		return c.runEvent(ctx, a, args)
	case "status":
		return c.runStatus(ctx, a, args)
	default:
		return NewInvalidArgumentError("command", fmt.Sprintf("unknown command %q", cmd))
	}
}

func ensureNoArgs(args []string) error {
	if len(args) > 0 {
		return NewInvalidArgumentError("args", fmt.Sprintf("unexpected args: %v", args))
	}
	return nil
}

func requireID(cmd string, args []string) (string, error) {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return "", NewInvalidArgumentError("id", fmt.Sprintf("usage: launcher %s <id>", cmd))
	}
	return strings.TrimSpace(args[0]), nil
}

func extensionInfos(a *app) []mcp.ExtensionInfo {
	infos := make([]mcp.ExtensionInfo, 0)
	for id, ext := range a.manager.Loaded() {
		d := ext.Descriptor()
		infos = append(infos, mcp.ExtensionInfo{
			ID:          id,
			Name:        d.Name,
			Version:     d.Version,
			Author:      d.Author,
			Description: d.Description,
			Permissions: d.Permissions,
			Enabled:     a.manager.IsEnabled(id),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

func (c *cli) runList(a *app, args []string) error {
	if err := ensureNoArgs(args); err != nil {
		return err
	}
	infos := extensionInfos(a)
	if c.flags.JSON {
		return printJSON(c.out, infos)
	}
	if len(infos) == 0 {
		fmt.Fprintln(c.out, "no extensions installed")
		return nil
	}
	tbl := newTable(c.out, "ID", "NAME", "VERSION", "ENABLED", "PERMISSIONS")
	for _, info := range infos {
		perms := make([]string, 0, len(info.Permissions))
		for _, p := range info.Permissions {
			perms = append(perms, string(p))
		}
		tbl.row(info.ID, info.Name, info.Version, strconv.FormatBool(info.Enabled), strings.Join(perms, ","))
	}
	return tbl.flush()
}

func (c *cli) runAvailable(a *app, args []string) error {
	if err := ensureNoArgs(args); err != nil {
		return err
	}
	loaded := a.manager.Loaded()
	ids := a.loader.Registered()
	results := make([]availableResult, 0, len(ids))
	for _, id := range ids {
		_, installed := loaded[id]
		results = append(results, availableResult{ID: id, Installed: installed, Enabled: a.manager.IsEnabled(id)})
	}
	if c.flags.JSON {
		return printJSON(c.out, results)
	}
	tbl := newTable(c.out, "ID", "INSTALLED", "ENABLED")
	for _, res := range results {
		tbl.row(res.ID, strconv.FormatBool(res.Installed), strconv.FormatBool(res.Enabled))
	}
	return tbl.flush()
}

// runInstall accepts an artifact file or a bare identifier known to the
// loader. The latter stores an empty artifact.
func (c *cli) runInstall(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return NewInvalidArgumentError("artifact", "usage: launcher install <file|id>")
	}
	target := args[0]

	var artifact store.Artifact
	if info, err := os.Stat(target); err == nil && !info.IsDir() {
		artifact, err = store.ReadArtifact(target)
		if err != nil {
			return err
		}
	} else if slices.Contains(a.loader.Registered(), target) {
		artifact = store.Artifact{Name: target + store.DefaultSuffix}
	} else {
		return NewNotFoundError("extension", target)
	}

	id, err := a.manager.Install(ctx, artifact)
	if err != nil {
		return err
	}
	return c.printChange(changeResult{ID: id, Action: "installed", Changed: true})
}

func (c *cli) runUninstall(ctx context.Context, a *app, args []string) error {
	id, err := requireID("uninstall", args)
	if err != nil {
		return err
	}
	if _, ok := a.manager.Extension(id); !ok {
		return NewNotFoundError("extension", id)
	}
	if err := a.manager.Uninstall(ctx, id); err != nil {
		return err
	}
	return c.printChange(changeResult{ID: id, Action: "uninstalled", Changed: true})
}

func (c *cli) runEnable(ctx context.Context, a *app, args []string) error {
	id, err := requireID("enable", args)
	if err != nil {
		return err
	}
	changed, err := a.gate.Enable(ctx, a.manager, id)
	if err != nil {
		return err
	}
	return c.printChange(changeResult{ID: id, Action: "enabled", Changed: changed})
}

func (c *cli) runDisable(ctx context.Context, a *app, args []string) error {
	id, err := requireID("disable", args)
	if err != nil {
		return err
	}
	if _, ok := a.manager.Extension(id); !ok {
		return NewNotFoundError("extension", id)
	}
	changed := a.manager.Disable(ctx, id)
	return c.printChange(changeResult{ID: id, Action: "disabled", Changed: changed})
}

func (c *cli) printChange(res changeResult) error {
	if c.flags.JSON {
		return printJSON(c.out, res)
	}
	if !res.Changed {
		fmt.Fprintf(c.out, "%s already %s\n", res.ID, res.Action)
		return nil
	}
	fmt.Fprintf(c.out, "%s %s\n", res.ID, res.Action)
	return nil
}

// parseQueryArgs reads --app and --clipboard and joins the rest as the
// query text.
func parseQueryArgs(cmd string, args []string) (string, extension.LauncherContext, error) {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	currentApp := fs.String("app", "", "package of the foreground app")
	clipboard := fs.String("clipboard", "", "clipboard text")
	if err := fs.Parse(args); err != nil {
		return "", extension.LauncherContext{}, NewInvalidArgumentError(cmd, err.Error())
	}
	query := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if query == "" {
		return "", extension.LauncherContext{}, NewInvalidArgumentError("query", fmt.Sprintf("usage: launcher %s [--app A] [--clipboard C] <text>", cmd))
	}
	lc := extension.NewLauncherContext()
	lc.CurrentApp = *currentApp
	lc.Clipboard = *clipboard
	return query, lc, nil
}

func (c *cli) runQuery(ctx context.Context, a *app, args []string) error {
	query, lc, err := parseQueryArgs("query", args)
	if err != nil {
		return err
	}
	responses := a.manager.QueryExtensions(ctx, query, lc)
	if c.flags.JSON {
		if responses == nil {
			responses = []extension.Response{}
		}
		return printJSON(c.out, responses)
	}
	if len(responses) == 0 {
		fmt.Fprintln(c.out, "no extension answered")
		return nil
	}
	tbl := newTable(c.out, "PRIORITY", "EXTENSION", "RESPONSE")
	for _, r := range responses {
		tbl.row(strconv.Itoa(r.Priority), r.ExtensionID, clip(r.Text, 100))
	}
	return tbl.flush()
}

func (c *cli) runAsk(ctx context.Context, a *app, args []string) error {
	query, lc, err := parseQueryArgs("ask", args)
	if err != nil {
		return err
	}
	answer, err := a.assistant.Ask(ctx, query, lc)
	if err != nil {
		return err
	}
	if c.flags.JSON {
		return printJSON(c.out, answer)
	}
	fmt.Fprintln(c.out, answer.Text)
	return nil
}

func (c *cli) runSearch(ctx context.Context, a *app, args []string) error {
	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		return NewInvalidArgumentError("query", "usage: launcher search <text>")
	}
	results := a.manager.Search(ctx, query)
	if c.flags.JSON {
		if results == nil {
			results = []extension.SearchResult{}
		}
		return printJSON(c.out, results)
	}
	if len(results) == 0 {
		fmt.Fprintln(c.out, "no results")
		return nil
	}
	tbl := newTable(c.out, "PROVIDER", "TITLE", "SUBTITLE")
	for _, r := range results {
		tbl.row(r.ProviderID, clip(r.Title, 60), clip(r.Subtitle, 60))
	}
	return tbl.flush()
}

func (c *cli) runWidgets(ctx context.Context, a *app, args []string) error {
	if err := ensureNoArgs(args); err != nil {
		return err
	}
	widgets := a.manager.ExtensionWidgets(ctx)
	if c.flags.JSON {
		if widgets == nil {
			widgets = []extension.Widget{}
		}
		return printJSON(c.out, widgets)
	}
	tbl := newTable(c.out, "ID", "NAME", "SIZE", "RESIZABLE")
	for _, w := range widgets {
		size := fmt.Sprintf("%dx%d", w.DefaultSize.Width, w.DefaultSize.Height)
		tbl.row(w.ID, w.Name, size, strconv.FormatBool(w.Resizable))
	}
	return tbl.flush()
}

func (c *cli) runThemes(ctx context.Context, a *app, args []string) error {
	if err := ensureNoArgs(args); err != nil {
		return err
	}
	themes := a.manager.ExtensionThemes(ctx)
	if c.flags.JSON {
		if themes == nil {
			themes = []extension.Theme{}
		}
		return printJSON(c.out, themes)
	}
	tbl := newTable(c.out, "ID", "NAME", "PRIMARY", "BACKGROUND")
	for _, t := range themes {
		tbl.row(t.ID, t.Name, fmt.Sprintf("#%08X", t.Colors.Primary), fmt.Sprintf("#%08X", t.Colors.Background))
	}
	return tbl.flush()
}

// runEvent fans one launcher lifecycle event out to the enabled set.
func (c *cli) runEvent(ctx context.Context, a *app, args []string) error {
	usage := NewInvalidArgumentError("event", "usage: launcher event start|drawer|launched <app>|longpress <row> <col>")
	if len(args) == 0 {
		return usage
	}
	switch args[0] {
	case "start":
		if len(args) != 1 {
			return usage
		}
		a.manager.OnLauncherStart(ctx)
	case "drawer":
		if len(args) != 1 {
			return usage
		}
		a.manager.OnAppDrawerOpened(ctx)
	case "launched":
		if len(args) != 2 {
			return usage
		}
		a.manager.OnAppLaunched(ctx, args[1])
	case "longpress":
		if len(args) != 3 {
			return usage
		}
		row, errRow := strconv.Atoi(args[1])
		col, errCol := strconv.Atoi(args[2])
		if errRow != nil || errCol != nil {
			return usage
		}
		a.manager.OnHomeScreenLongPress(ctx, extension.GridPosition{Row: row, Column: col})
	default:
		return usage
	}
	stats := a.manager.Stats()
	if c.flags.JSON {
		return printJSON(c.out, map[string]any{"event": args[0], "faults": stats.LastFaults})
	}
	fmt.Fprintf(c.out, "%s dispatched to %d extensions (%d faults)\n", args[0], stats.Enabled, stats.LastFaults)
	return nil
}

func (c *cli) runStatus(ctx context.Context, a *app, args []string) error {
	if err := ensureNoArgs(args); err != nil {
		return err
	}
	checks, overall := a.health.CheckAll(ctx)
	res := statusResult{
		Version: version,
		Status:  overall,
		Checks:  checks,
		Stats:   a.manager.Stats(),
		Store:   c.cfg.Extensions.Store,
		LLM:     c.cfg.LLM.Provider,
		Enabled: a.manager.Enabled(),
	}
	if c.flags.JSON {
		return printJSON(c.out, res)
	}
	fmt.Fprintf(c.out, "version: %s\nstatus: %s\nstore: %s\nllm: %s\n", res.Version, res.Status, res.Store, res.LLM)
	fmt.Fprintf(c.out, "loaded: %d  enabled: %d  dispatches: %d  faults: %d\n\n",
		res.Stats.Loaded, res.Stats.Enabled, res.Stats.Dispatches, res.Stats.Faults)
	tbl := newTable(c.out, "COMPONENT", "STATUS", "MESSAGE")
	for _, check := range checks {
		tbl.row(check.Component, string(check.Status), clip(check.Message, 80))
	}
	return tbl.flush()
}
