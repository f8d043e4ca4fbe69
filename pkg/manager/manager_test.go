package manager

import (
	"bytes"
	"context"
	stderrors "errors"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/jllopis/launcher/pkg/core"
	"github.com/jllopis/launcher/pkg/errors"
	"github.com/jllopis/launcher/pkg/extension"
	"github.com/jllopis/launcher/pkg/registry"
	"github.com/jllopis/launcher/pkg/store"
)

// recorder collects hook invocations across extensions in call order.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, s)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recorder) count(s string) int {
	n := 0
	for _, c := range r.list() {
		if c == s {
			n++
		}
	}
	return n
}

type fakeExt struct {
	extension.Base
	rec *recorder

	installErr   error
	uninstallErr error
	eventPanic   bool
	queryPanic   bool
	queryErr     error
	response     *extension.Response
	onQuery      func(extension.LauncherContext)
	onUninstall  func()
	widget       *extension.Widget
	theme        *extension.Theme
	search       extension.SearchProvider
}

func newFake(id string, rec *recorder) *fakeExt {
	return &fakeExt{Base: extension.NewBase(extension.Descriptor{ID: id, Name: id, Version: "1.0.0"}), rec: rec}
}

func (f *fakeExt) OnInstall(context.Context) error {
	f.rec.add(f.ID() + ":install")
	return f.installErr
}

func (f *fakeExt) OnEnable(context.Context) error {
	f.rec.add(f.ID() + ":enable")
	return nil
}

func (f *fakeExt) OnDisable(context.Context) error {
	f.rec.add(f.ID() + ":disable")
	return nil
}

func (f *fakeExt) OnUninstall(context.Context) error {
	if f.onUninstall != nil {
		f.onUninstall()
	}
	f.rec.add(f.ID() + ":uninstall")
	return f.uninstallErr
}

func (f *fakeExt) OnAppLaunched(_ context.Context, appID string) error {
	if f.eventPanic {
		panic("broken extension")
	}
	f.rec.add(f.ID() + ":launched:" + appID)
	return nil
}

func (f *fakeExt) OnAIQuery(_ context.Context, _ string, lc extension.LauncherContext) (*extension.Response, error) {
	if f.queryPanic {
		panic("query exploded")
	}
	if f.onQuery != nil {
		f.onQuery(lc)
	}
	return f.response, f.queryErr
}

func (f *fakeExt) ProvideWidget() *extension.Widget                { return f.widget }
func (f *fakeExt) ProvideTheme() *extension.Theme                  { return f.theme }
func (f *fakeExt) ProvideSearchProvider() extension.SearchProvider { return f.search }

type harness struct {
	t      *testing.T
	loader *registry.Loader
	store  *store.MemoryStore
	rec    *recorder
	logs   *bytes.Buffer
	m      *Manager
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	h := &harness{
		t:      t,
		loader: registry.New(registry.WithLogger(logger)),
		store:  store.NewMemoryStore(),
		rec:    &recorder{},
		logs:   logs,
	}
	h.m = New(h.loader, h.store, WithLogger(logger))
	return h
}

// add registers ext and installs it.
func (h *harness) add(ext *fakeExt) {
	h.t.Helper()
	h.loader.RegisterFunc(ext.ID(), func() extension.Extension { return ext })
	if _, err := h.m.Install(context.Background(), store.Artifact{Name: ext.ID() + ".ext", Data: []byte(ext.ID())}); err != nil {
		h.t.Fatalf("install %s: %v", ext.ID(), err)
	}
}

func (h *harness) addEnabled(exts ...*fakeExt) {
	h.t.Helper()
	for _, ext := range exts {
		h.add(ext)
		h.m.Enable(context.Background(), ext.ID())
	}
}

func TestInstallPersistsAndRunsHook(t *testing.T) {
	h := newHarness(t)
	ext := newFake("com.example.a", h.rec)
	h.loader.RegisterFunc(ext.ID(), func() extension.Extension { return ext })

	id, err := h.m.Install(context.Background(), store.Artifact{Name: "/tmp/com.example.a.ext", Data: []byte("blob")})
	if err != nil {
		t.Fatalf("Install error: %v", err)
	}
	if id != "com.example.a" {
		t.Fatalf("unexpected id %q", id)
	}
	data, err := h.store.Get(context.Background(), id)
	if err != nil || string(data) != "blob" {
		t.Fatalf("expected persisted artifact, got %q %v", data, err)
	}
	if _, ok := h.m.Extension(id); !ok {
		t.Fatalf("expected extension to be loaded")
	}
	if h.m.IsEnabled(id) {
		t.Fatalf("install must not enable")
	}
	if got := h.rec.list(); !reflect.DeepEqual(got, []string{"com.example.a:install"}) {
		t.Fatalf("unexpected hooks %v", got)
	}
}

func TestInstallRejectsDuplicate(t *testing.T) {
	h := newHarness(t)
	h.add(newFake("com.example.a", h.rec))
	before := h.m.Loaded()

	_, err := h.m.Install(context.Background(), store.Artifact{Name: "com.example.a.ext"})
	if !errors.IsCode(err, errors.CodeAlreadyExists) {
		t.Fatalf("expected already exists, got %v", err)
	}
	if after := h.m.Loaded(); !reflect.DeepEqual(before, after) {
		t.Fatalf("loaded set changed: %v -> %v", before, after)
	}
	if h.rec.count("com.example.a:install") != 1 {
		t.Fatalf("install hook must run once")
	}
}

func TestInstallFailures(t *testing.T) {
	tests := []struct {
		name     string
		artifact store.Artifact
		register func(*registry.Loader)
		code     errors.ErrorCode
	}{
		{
			name:     "blank artifact name",
			artifact: store.Artifact{Name: ""},
			code:     errors.CodeInvalidInput,
		},
		{
			name:     "unregistered",
			artifact: store.Artifact{Name: "com.example.missing.ext"},
			code:     errors.CodeNotFound,
		},
		{
			name:     "factory panics",
			artifact: store.Artifact{Name: "com.example.boom.ext"},
			register: func(l *registry.Loader) {
				l.RegisterFunc("com.example.boom", func() extension.Extension { panic("no") })
			},
			code: errors.CodeExtensionFault,
		},
		{
			name:     "blank identity",
			artifact: store.Artifact{Name: "com.example.anon.ext"},
			register: func(l *registry.Loader) {
				l.RegisterFunc("com.example.anon", func() extension.Extension { return extension.NewBase(extension.Descriptor{}) })
			},
			code: errors.CodeInvalidInput,
		},
		{
			name:     "whitespace identity",
			artifact: store.Artifact{Name: "com.example.ws.ext"},
			register: func(l *registry.Loader) {
				l.RegisterFunc("com.example.ws", func() extension.Extension { return extension.NewBase(extension.Descriptor{ID: "  "}) })
			},
			code: errors.CodeInvalidInput,
		},
		{
			name:     "unknown permission",
			artifact: store.Artifact{Name: "com.example.perm.ext"},
			register: func(l *registry.Loader) {
				l.RegisterFunc("com.example.perm", func() extension.Extension {
					return extension.NewBase(extension.Descriptor{ID: "com.example.perm", Permissions: []extension.Permission{"read_minds"}})
				})
			},
			code: errors.CodeInvalidInput,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			if tc.register != nil {
				tc.register(h.loader)
			}
			_, err := h.m.Install(context.Background(), tc.artifact)
			if !errors.IsCode(err, tc.code) {
				t.Fatalf("expected %s, got %v", tc.code, err)
			}
			if len(h.m.Loaded()) != 0 {
				t.Fatalf("expected no loaded extensions")
			}
			if keys, _ := h.store.Keys(context.Background()); len(keys) != 0 {
				t.Fatalf("expected no stored artifacts, got %v", keys)
			}
		})
	}
}

func TestInstallHookFaultRollsBack(t *testing.T) {
	h := newHarness(t)
	ext := newFake("com.example.a", h.rec)
	ext.installErr = stderrors.New("disk full")
	h.loader.RegisterFunc(ext.ID(), func() extension.Extension { return ext })

	_, err := h.m.Install(context.Background(), store.Artifact{Name: "com.example.a.ext", Data: []byte("x")})
	if !errors.IsCode(err, errors.CodeExtensionFault) {
		t.Fatalf("expected extension fault, got %v", err)
	}
	if !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected cause in error, got %v", err)
	}
	if _, ok := h.m.Extension("com.example.a"); ok {
		t.Fatalf("expected rollback of loaded entry")
	}
	if _, err := h.store.Get(context.Background(), "com.example.a"); !errors.IsCode(err, errors.CodeNotFound) {
		t.Fatalf("expected rollback of artifact, got %v", err)
	}
}

type failingStore struct {
	*store.MemoryStore
}

func (*failingStore) Put(context.Context, string, []byte) error {
	return stderrors.New("read-only filesystem")
}

func TestInstallPersistenceFaultLeavesNoEntry(t *testing.T) {
	loader := registry.New()
	rec := &recorder{}
	ext := newFake("com.example.a", rec)
	loader.RegisterFunc(ext.ID(), func() extension.Extension { return ext })
	m := New(loader, &failingStore{store.NewMemoryStore()})

	_, err := m.Install(context.Background(), store.Artifact{Name: "com.example.a.ext"})
	if !errors.IsCode(err, errors.CodeStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
	if len(m.Loaded()) != 0 {
		t.Fatalf("expected empty loaded set")
	}
	if rec.count("com.example.a:install") != 0 {
		t.Fatalf("install hook must not run after a persistence fault")
	}
}

func TestEnableDisableIdempotent(t *testing.T) {
	h := newHarness(t)
	h.add(newFake("com.example.a", h.rec))
	ctx := context.Background()

	if !h.m.Enable(ctx, "com.example.a") {
		t.Fatalf("first enable should change state")
	}
	if h.m.Enable(ctx, "com.example.a") {
		t.Fatalf("second enable should be a no-op")
	}
	if h.rec.count("com.example.a:enable") != 1 {
		t.Fatalf("expected exactly one enable hook, got %v", h.rec.list())
	}
	if got := h.m.Enabled(); !reflect.DeepEqual(got, []string{"com.example.a"}) {
		t.Fatalf("expected id once in enabled set, got %v", got)
	}

	if !h.m.Disable(ctx, "com.example.a") || h.m.Disable(ctx, "com.example.a") {
		t.Fatalf("expected one effective disable")
	}
	if h.rec.count("com.example.a:disable") != 1 {
		t.Fatalf("expected exactly one disable hook, got %v", h.rec.list())
	}
	if h.m.IsEnabled("com.example.a") {
		t.Fatalf("expected disabled")
	}
}

func TestEnableUnknownIsNoop(t *testing.T) {
	h := newHarness(t)
	if h.m.Enable(context.Background(), "com.example.ghost") {
		t.Fatalf("enable of an unloaded id must be a no-op")
	}
	if len(h.m.Enabled()) != 0 {
		t.Fatalf("enabled set must stay empty")
	}
}

func TestUninstallDisablesFirst(t *testing.T) {
	h := newHarness(t)
	h.addEnabled(newFake("com.example.a", h.rec))

	if err := h.m.Uninstall(context.Background(), "com.example.a"); err != nil {
		t.Fatalf("Uninstall error: %v", err)
	}
	want := []string{"com.example.a:install", "com.example.a:enable", "com.example.a:disable", "com.example.a:uninstall"}
	if got := h.rec.list(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected hooks %v, got %v", want, got)
	}
	if h.m.IsEnabled("com.example.a") {
		t.Fatalf("expected removal from enabled set")
	}
	if _, ok := h.m.Extension("com.example.a"); ok {
		t.Fatalf("expected removal from loaded set")
	}
	if _, err := h.store.Get(context.Background(), "com.example.a"); !errors.IsCode(err, errors.CodeNotFound) {
		t.Fatalf("expected artifact deleted, got %v", err)
	}
}

func TestUninstallHookFaultStillRemoves(t *testing.T) {
	h := newHarness(t)
	ext := newFake("com.example.a", h.rec)
	ext.uninstallErr = stderrors.New("teardown failed")
	h.add(ext)

	err := h.m.Uninstall(context.Background(), "com.example.a")
	if !errors.IsCode(err, errors.CodeExtensionFault) {
		t.Fatalf("expected extension fault, got %v", err)
	}
	if _, ok := h.m.Extension("com.example.a"); ok {
		t.Fatalf("zombie entry left after failed teardown")
	}
	if keys, _ := h.store.Keys(context.Background()); len(keys) != 0 {
		t.Fatalf("expected artifact deleted, got %v", keys)
	}
}

func TestUninstallUnknown(t *testing.T) {
	h := newHarness(t)
	if err := h.m.Uninstall(context.Background(), "com.example.ghost"); !errors.IsCode(err, errors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestQueryFaultIsolation(t *testing.T) {
	h := newHarness(t)
	a := newFake("a", h.rec)
	a.response = &extension.Response{Text: "from a", Priority: 1}
	b := newFake("b", h.rec)
	b.queryPanic = true
	c := newFake("c", h.rec)
	c.response = &extension.Response{Text: "from c", Priority: 2}
	h.addEnabled(a, b, c)

	got := h.m.QueryExtensions(context.Background(), "hello", extension.NewLauncherContext())
	if len(got) != 2 {
		t.Fatalf("expected 2 responses, got %+v", got)
	}
	if got[0].ExtensionID != "c" || got[1].ExtensionID != "a" {
		t.Fatalf("expected [c a], got [%s %s]", got[0].ExtensionID, got[1].ExtensionID)
	}
	if !strings.Contains(h.logs.String(), "extension_id=b") {
		t.Fatalf("expected fault logged with extension id, got %s", h.logs.String())
	}
	if s := h.m.Stats(); s.Faults != 1 || s.LastFaults != 1 {
		t.Fatalf("expected one fault in stats, got %+v", s)
	}
}

func TestQueryErrorIsIsolated(t *testing.T) {
	h := newHarness(t)
	a := newFake("a", h.rec)
	a.queryErr = stderrors.New("nope")
	a.response = &extension.Response{Text: "ignored"}
	b := newFake("b", h.rec)
	b.response = &extension.Response{Text: "ok"}
	h.addEnabled(a, b)

	got := h.m.QueryExtensions(context.Background(), "q", extension.LauncherContext{})
	if len(got) != 1 || got[0].ExtensionID != "b" {
		t.Fatalf("expected only b, got %+v", got)
	}
}

func TestQueryPriorityOrdering(t *testing.T) {
	h := newHarness(t)
	var exts []*fakeExt
	for i, p := range []int{5, 10, 0} {
		ext := newFake(string(rune('a'+i)), h.rec)
		ext.response = &extension.Response{Priority: p}
		exts = append(exts, ext)
	}
	h.addEnabled(exts...)

	got := h.m.QueryExtensions(context.Background(), "q", extension.LauncherContext{})
	var priorities []int
	for _, r := range got {
		priorities = append(priorities, r.Priority)
	}
	if !reflect.DeepEqual(priorities, []int{10, 5, 0}) {
		t.Fatalf("expected [10 5 0], got %v", priorities)
	}
}

func TestQueryTiesKeepEnableOrder(t *testing.T) {
	h := newHarness(t)
	z := newFake("z", h.rec)
	z.response = &extension.Response{Priority: 3}
	a := newFake("a", h.rec)
	a.response = &extension.Response{Priority: 3}
	h.addEnabled(z, a)

	got := h.m.QueryExtensions(context.Background(), "q", extension.LauncherContext{})
	if len(got) != 2 || got[0].ExtensionID != "z" || got[1].ExtensionID != "a" {
		t.Fatalf("expected enable order [z a], got %+v", got)
	}
}

func TestQueryContextIsIsolatedPerExtension(t *testing.T) {
	h := newHarness(t)
	a := newFake("a", h.rec)
	a.onQuery = func(lc extension.LauncherContext) {
		lc.InstalledApps[0] = "tampered"
		lc.Metadata["k"] = "tampered"
	}
	var seen extension.LauncherContext
	b := newFake("b", h.rec)
	b.onQuery = func(lc extension.LauncherContext) { seen = lc }
	h.addEnabled(a, b)

	lc := extension.LauncherContext{InstalledApps: []string{"mail"}, Metadata: map[string]any{"k": "v"}}
	h.m.QueryExtensions(context.Background(), "q", lc)

	if seen.InstalledApps[0] != "mail" || seen.Metadata["k"] != "v" {
		t.Fatalf("mutation leaked between extensions: %+v", seen)
	}
	if lc.InstalledApps[0] != "mail" {
		t.Fatalf("mutation leaked to caller")
	}
}

func TestEventDispatchIsolatesPanics(t *testing.T) {
	h := newHarness(t)
	a := newFake("a", h.rec)
	b := newFake("b", h.rec)
	b.eventPanic = true
	c := newFake("c", h.rec)
	h.addEnabled(a, b, c)
	disabled := newFake("d", h.rec)
	h.add(disabled)

	h.m.OnAppLaunched(context.Background(), "mail")

	if h.rec.count("a:launched:mail") != 1 || h.rec.count("c:launched:mail") != 1 {
		t.Fatalf("expected a and c notified once, got %v", h.rec.list())
	}
	if h.rec.count("d:launched:mail") != 0 {
		t.Fatalf("disabled extension must not receive events")
	}
	if !strings.Contains(h.logs.String(), "extension hook panicked") {
		t.Fatalf("expected panic to be logged")
	}
}

type togglingExt struct {
	extension.Base
	m     *Manager
	other string
}

func (t *togglingExt) OnLauncherStart(ctx context.Context) error {
	t.m.Disable(ctx, t.other)
	return nil
}

type countingExt struct {
	extension.Base
	starts int
}

func (c *countingExt) OnLauncherStart(context.Context) error {
	c.starts++
	return nil
}

func TestDispatchUsesSnapshot(t *testing.T) {
	h := newHarness(t)
	toggler := &togglingExt{Base: extension.NewBase(extension.Descriptor{ID: "toggler"}), m: h.m, other: "counter"}
	counter := &countingExt{Base: extension.NewBase(extension.Descriptor{ID: "counter"})}
	h.loader.RegisterFunc("toggler", func() extension.Extension { return toggler })
	h.loader.RegisterFunc("counter", func() extension.Extension { return counter })
	ctx := context.Background()
	for _, id := range []string{"toggler", "counter"} {
		if _, err := h.m.Install(ctx, store.Artifact{Name: id}); err != nil {
			t.Fatalf("install: %v", err)
		}
		h.m.Enable(ctx, id)
	}

	h.m.OnLauncherStart(ctx)
	if counter.starts != 1 {
		t.Fatalf("extension disabled mid-dispatch should still run once, got %d", counter.starts)
	}
	h.m.OnLauncherStart(ctx)
	if counter.starts != 1 {
		t.Fatalf("disabled extension should be skipped on the next dispatch")
	}
}

type staticProvider struct {
	id      string
	results []extension.SearchResult
	err     error
}

func (p staticProvider) ID() string   { return p.id }
func (p staticProvider) Name() string { return p.id }
func (p staticProvider) Search(context.Context, string) ([]extension.SearchResult, error) {
	return p.results, p.err
}

func TestUIContributions(t *testing.T) {
	h := newHarness(t)
	a := newFake("a", h.rec)
	a.widget = &extension.Widget{ID: "a.widget", DefaultSize: extension.WidgetSize{Width: 2, Height: 2}}
	a.search = staticProvider{id: "a.search", results: []extension.SearchResult{{ID: "1", Title: "one"}}}
	b := newFake("b", h.rec)
	b.theme = &extension.Theme{ID: "b.theme"}
	b.search = staticProvider{id: "b.search", err: stderrors.New("offline")}
	h.addEnabled(a, b)
	ctx := context.Background()

	if w := h.m.ExtensionWidgets(ctx); len(w) != 1 || w[0].ID != "a.widget" {
		t.Fatalf("unexpected widgets %+v", w)
	}
	if th := h.m.ExtensionThemes(ctx); len(th) != 1 || th[0].ID != "b.theme" {
		t.Fatalf("unexpected themes %+v", th)
	}
	if p := h.m.SearchProviders(ctx); len(p) != 2 {
		t.Fatalf("expected 2 search providers, got %d", len(p))
	}
	results := h.m.Search(ctx, "one")
	if len(results) != 1 || results[0].ProviderID != "a.search" {
		t.Fatalf("unexpected search results %+v", results)
	}
}

func TestLoadInstalledExtensionsPartialFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.store.Put(ctx, "com.example.good", []byte("g"))
	h.store.Put(ctx, "com.example.bad", []byte("b"))
	h.loader.RegisterFunc("com.example.good", func() extension.Extension { return newFake("com.example.good", h.rec) })
	h.loader.Register("com.example.bad", func() (extension.Extension, error) { return nil, stderrors.New("corrupt") })

	if err := h.m.LoadInstalledExtensions(ctx); err != nil {
		t.Fatalf("LoadInstalledExtensions error: %v", err)
	}
	loaded := h.m.Loaded()
	if len(loaded) != 1 || loaded["com.example.good"] == nil {
		t.Fatalf("expected only the good extension, got %v", loaded)
	}
	if !strings.Contains(h.logs.String(), "com.example.bad") {
		t.Fatalf("expected failure logged for the bad artifact")
	}
	if h.m.Stats().LoadFailures != 1 {
		t.Fatalf("expected one load failure, got %+v", h.m.Stats())
	}
	if h.rec.count("com.example.good:install") != 0 {
		t.Fatalf("loading must not re-run the install hook")
	}
}

func TestLoadInstalledExtensionsSkipsInvalidIdentity(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.store.Put(ctx, "com.example.good", []byte("g"))
	h.store.Put(ctx, "com.example.ws", []byte("w"))
	h.store.Put(ctx, "com.example.anon", []byte("a"))
	h.loader.RegisterFunc("com.example.good", func() extension.Extension { return newFake("com.example.good", h.rec) })
	h.loader.RegisterFunc("com.example.ws", func() extension.Extension { return newFake(" \t", h.rec) })
	h.loader.RegisterFunc("com.example.anon", func() extension.Extension { return newFake("", h.rec) })

	if err := h.m.LoadInstalledExtensions(ctx); err != nil {
		t.Fatalf("LoadInstalledExtensions error: %v", err)
	}
	loaded := h.m.Loaded()
	if len(loaded) != 1 || loaded["com.example.good"] == nil {
		t.Fatalf("expected only the good extension, got %v", loaded)
	}
	if got := h.m.Stats().LoadFailures; got != 2 {
		t.Fatalf("expected two load failures, got %d", got)
	}
}

func TestEnableRefusedWhileUninstalling(t *testing.T) {
	const id = "com.example.a"
	ctx := context.Background()

	t.Run("from the uninstall hook", func(t *testing.T) {
		h := newHarness(t)
		ext := newFake(id, h.rec)
		h.loader.RegisterFunc(id, func() extension.Extension { return ext })
		if _, err := h.m.Install(ctx, store.Artifact{Name: id + ".ext"}); err != nil {
			t.Fatalf("Install: %v", err)
		}
		h.m.Enable(ctx, id)

		var reenabled bool
		ext.onUninstall = func() { reenabled = h.m.Enable(ctx, id) }
		if err := h.m.Uninstall(ctx, id); err != nil {
			t.Fatalf("Uninstall: %v", err)
		}
		if reenabled {
			t.Fatalf("Enable succeeded during uninstall")
		}
		if h.rec.count(id+":enable") != 1 || h.rec.count(id+":disable") != 1 {
			t.Fatalf("enable and disable hooks unbalanced: %v", h.rec.list())
		}
	})

	t.Run("from another goroutine", func(t *testing.T) {
		h := newHarness(t)
		ext := newFake(id, h.rec)
		h.loader.RegisterFunc(id, func() extension.Extension { return ext })
		if _, err := h.m.Install(ctx, store.Artifact{Name: id + ".ext"}); err != nil {
			t.Fatalf("Install: %v", err)
		}
		h.m.Enable(ctx, id)

		entered, release := make(chan struct{}), make(chan struct{})
		ext.onUninstall = func() {
			close(entered)
			<-release
		}
		done := make(chan error, 1)
		go func() { done <- h.m.Uninstall(ctx, id) }()

		<-entered
		if h.m.Enable(ctx, id) {
			t.Errorf("Enable succeeded during uninstall")
		}
		close(release)
		if err := <-done; err != nil {
			t.Fatalf("Uninstall: %v", err)
		}

		want := []string{id + ":install", id + ":enable", id + ":disable", id + ":uninstall"}
		if got := h.rec.list(); !reflect.DeepEqual(got, want) {
			t.Fatalf("hooks = %v, want %v", got, want)
		}
		if len(h.m.Enabled()) != 0 || len(h.m.Loaded()) != 0 {
			t.Fatalf("expected empty sets, got enabled=%v loaded=%v", h.m.Enabled(), h.m.Loaded())
		}
	})
}

type keysFailStore struct{ *store.MemoryStore }

func (*keysFailStore) Keys(context.Context) ([]string, error) {
	return nil, stderrors.New("permission denied")
}

func TestLoadInstalledExtensionsStoreFailure(t *testing.T) {
	m := New(registry.New(), &keysFailStore{store.NewMemoryStore()})
	if err := m.LoadInstalledExtensions(context.Background()); !errors.IsCode(err, errors.CodeStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
}

func TestObservableSets(t *testing.T) {
	h := newHarness(t)
	ch, cancel := h.m.EnabledValue().Subscribe()
	defer cancel()
	if got := <-ch; len(got) != 0 {
		t.Fatalf("expected empty initial set, got %v", got)
	}

	h.addEnabled(newFake("a", h.rec))
	if got := <-ch; !reflect.DeepEqual(got, []string{"a"}) {
		t.Fatalf("expected [a], got %v", got)
	}
	if got := h.m.LoadedValue().Get(); len(got) != 1 {
		t.Fatalf("expected one loaded extension, got %v", got)
	}
}

func TestCloseDisablesInReverseOrder(t *testing.T) {
	h := newHarness(t)
	h.addEnabled(newFake("a", h.rec), newFake("b", h.rec))

	h.m.Close(context.Background())

	calls := h.rec.list()
	tail := calls[len(calls)-2:]
	if !reflect.DeepEqual(tail, []string{"b:disable", "a:disable"}) {
		t.Fatalf("expected reverse disable order, got %v", tail)
	}
	if len(h.m.Enabled()) != 0 {
		t.Fatalf("expected nothing enabled after close")
	}
}

func TestHealthChecker(t *testing.T) {
	h := newHarness(t)
	a := newFake("a", h.rec)
	a.eventPanic = true
	h.addEnabled(a)
	ctx := context.Background()

	if got := h.m.HealthChecker().Check(ctx).Status; got != core.HealthHealthy {
		t.Fatalf("expected healthy before dispatch, got %s", got)
	}
	h.m.OnAppLaunched(ctx, "mail")
	if got := h.m.HealthChecker().Check(ctx).Status; got != core.HealthDegraded {
		t.Fatalf("expected degraded after a faulty dispatch, got %s", got)
	}
	h.m.OnAppDrawerOpened(ctx)
	if got := h.m.HealthChecker().Check(ctx).Status; got != core.HealthHealthy {
		t.Fatalf("expected healthy after a clean dispatch, got %s", got)
	}
}
