package extension

import "time"

// MaxNotifications bounds LauncherContext.RecentNotifications.
const MaxNotifications = 20

// NotificationInfo is a recent notification visible to extensions.
type NotificationInfo struct {
	AppID     string    `json:"app_id"`
	Title     string    `json:"title,omitempty"`
	Text      string    `json:"text,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// LauncherContext is a read-only snapshot passed to every assistant query.
// The host builds a fresh one per call.
type LauncherContext struct {
	CurrentApp          string             `json:"current_app,omitempty"`
	RecentNotifications []NotificationInfo `json:"recent_notifications,omitempty"`
	Clipboard           string             `json:"clipboard,omitempty"`
	InstalledApps       []string           `json:"installed_apps,omitempty"`
	Timestamp           time.Time          `json:"timestamp"`
	Metadata            map[string]any     `json:"metadata,omitempty"`
}

// NewLauncherContext returns a context stamped with the current time.
func NewLauncherContext() LauncherContext {
	return LauncherContext{Timestamp: time.Now().UTC()}
}

// Bounded returns a copy whose notification list holds at most
// MaxNotifications entries (the most recent ones, by position).
func (c LauncherContext) Bounded() LauncherContext {
	out := c.Clone()
	if n := len(out.RecentNotifications); n > MaxNotifications {
		out.RecentNotifications = out.RecentNotifications[n-MaxNotifications:]
	}
	return out
}

// Clone returns a deep copy of the slices and the top-level metadata map,
// so one extension cannot observe another's mutations.
func (c LauncherContext) Clone() LauncherContext {
	out := c
	out.RecentNotifications = append([]NotificationInfo(nil), c.RecentNotifications...)
	out.InstalledApps = append([]string(nil), c.InstalledApps...)
	if c.Metadata != nil {
		out.Metadata = make(map[string]any, len(c.Metadata))
		for k, v := range c.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}
