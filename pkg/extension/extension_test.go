package extension

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/jllopis/launcher/pkg/errors"
)

func TestBaseDefaults(t *testing.T) {
	ctx := context.Background()
	b := NewBase(Descriptor{ID: "com.example.noop", Name: "Noop", Permissions: []Permission{PermNetworkAccess}})

	if b.ID() != "com.example.noop" {
		t.Fatalf("unexpected id %q", b.ID())
	}
	for name, err := range map[string]error{
		"install":   b.OnInstall(ctx),
		"enable":    b.OnEnable(ctx),
		"disable":   b.OnDisable(ctx),
		"uninstall": b.OnUninstall(ctx),
		"start":     b.OnLauncherStart(ctx),
		"launched":  b.OnAppLaunched(ctx, "org.example.mail"),
		"drawer":    b.OnAppDrawerOpened(ctx),
		"longpress": b.OnHomeScreenLongPress(ctx, GridPosition{Row: 1, Column: 2}),
	} {
		if err != nil {
			t.Errorf("%s: expected nil error, got %v", name, err)
		}
	}
	resp, err := b.OnAIQuery(ctx, "anything", NewLauncherContext())
	if resp != nil || err != nil {
		t.Fatalf("expected default query hook to decline, got %v, %v", resp, err)
	}
	if b.ProvideWidget() != nil || b.ProvideSearchProvider() != nil || b.ProvideTheme() != nil {
		t.Fatalf("expected no UI contributions by default")
	}
}

func TestDescriptorIsCopied(t *testing.T) {
	perms := []Permission{PermReadContacts}
	b := NewBase(Descriptor{ID: "x", Permissions: perms})
	perms[0] = PermReadCalendar

	d := b.Descriptor()
	if d.Permissions[0] != PermReadContacts {
		t.Fatalf("descriptor must not alias caller slice")
	}
	d.Permissions[0] = PermAppUsageStats
	if b.Descriptor().Permissions[0] != PermReadContacts {
		t.Fatalf("descriptor must not alias internal slice")
	}
}

func TestDescriptorValidate(t *testing.T) {
	tests := []struct {
		name string
		desc Descriptor
		code errors.ErrorCode
	}{
		{"ok", Descriptor{ID: "com.launcher.notes", Permissions: []Permission{PermNetworkAccess}}, ""},
		{"blank", Descriptor{ID: "   "}, errors.CodeInvalidInput},
		{"unknown permission", Descriptor{ID: "x", Permissions: []Permission{"root"}}, errors.CodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.CodeOf(tt.desc.Validate()); got != tt.code {
				t.Fatalf("expected code %q, got %q", tt.code, got)
			}
		})
	}
}

func TestParsePermission(t *testing.T) {
	p, err := ParsePermission("NETWORK_ACCESS")
	if err != nil || p != PermNetworkAccess {
		t.Fatalf("expected network_access, got %q (%v)", p, err)
	}
	if _, err := ParsePermission("telepathy"); !errors.IsCode(err, errors.CodeInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if len(Permissions()) != 8 {
		t.Fatalf("expected eight permissions, got %d", len(Permissions()))
	}
}

func TestLauncherContextClone(t *testing.T) {
	orig := LauncherContext{
		InstalledApps: []string{"a", "b"},
		Metadata:      map[string]any{"k": "v"},
	}
	clone := orig.Clone()
	clone.InstalledApps[0] = "z"
	clone.Metadata["k"] = "changed"

	if orig.InstalledApps[0] != "a" || orig.Metadata["k"] != "v" {
		t.Fatalf("clone must not share slices or maps with the original")
	}
}

func TestLauncherContextBounded(t *testing.T) {
	var lc LauncherContext
	for i := 0; i < MaxNotifications+5; i++ {
		lc.RecentNotifications = append(lc.RecentNotifications, NotificationInfo{AppID: "app", Title: string(rune('a' + i))})
	}
	b := lc.Bounded()
	if len(b.RecentNotifications) != MaxNotifications {
		t.Fatalf("expected %d notifications, got %d", MaxNotifications, len(b.RecentNotifications))
	}
	if b.RecentNotifications[0].Title != lc.RecentNotifications[5].Title {
		t.Fatalf("expected the oldest entries to be dropped")
	}
}

func TestActionTaggedJSON(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	actions := []Action{
		OpenSettings{Target: "weather_settings"},
		CreateReminder{Text: "stand up", At: at},
		CustomIntent{Name: "share", Data: map[string]string{"text": "hi"}},
	}
	raw, err := MarshalActions(actions)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(raw), `"type":"open_settings"`) {
		t.Fatalf("expected tagged output, got %s", raw)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	for i, item := range items {
		got, err := UnmarshalAction(item)
		if err != nil {
			t.Fatalf("decode %d: %v", i, err)
		}
		if got.Kind() != actions[i].Kind() {
			t.Fatalf("kind mismatch at %d: %s vs %s", i, got.Kind(), actions[i].Kind())
		}
	}
	reminder, _ := UnmarshalAction(items[1])
	if r, ok := reminder.(CreateReminder); !ok || !r.At.Equal(at) {
		t.Fatalf("expected value CreateReminder with time, got %#v", reminder)
	}

	if _, err := UnmarshalAction([]byte(`{"type":"self_destruct"}`)); err == nil {
		t.Fatalf("expected error for unknown action type")
	}
}

func TestResponseJSONIncludesActions(t *testing.T) {
	resp := Response{ExtensionID: "com.launcher.weather", Text: "sunny", Priority: 8, Actions: []Action{OpenURL{URL: "https://example.org"}}}
	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["priority"].(float64) != 8 {
		t.Fatalf("unexpected priority: %v", decoded["priority"])
	}
	list, ok := decoded["actions"].([]any)
	if !ok || len(list) != 1 {
		t.Fatalf("expected one action, got %v", decoded["actions"])
	}
}
