package extension

import (
	"fmt"
	"strings"

	"github.com/jllopis/launcher/pkg/errors"
)

// Permission is a capability an extension declares it needs.
// The engine does not enforce permissions; hosts review them.
type Permission string

const (
	PermReadClipboard     Permission = "read_clipboard"
	PermReadNotifications Permission = "read_notifications"
	PermReadCalendar      Permission = "read_calendar"
	PermReadContacts      Permission = "read_contacts"
	PermAccessLocation    Permission = "access_location"
	PermSendNotifications Permission = "send_notifications"
	PermNetworkAccess     Permission = "network_access"
	PermAppUsageStats     Permission = "app_usage_stats"
)

var allPermissions = []Permission{
	PermReadClipboard,
	PermReadNotifications,
	PermReadCalendar,
	PermReadContacts,
	PermAccessLocation,
	PermSendNotifications,
	PermNetworkAccess,
	PermAppUsageStats,
}

// Permissions returns the closed set of known permissions.
func Permissions() []Permission {
	return append([]Permission(nil), allPermissions...)
}

// Valid reports whether p is one of the known permissions.
func (p Permission) Valid() bool {
	for _, known := range allPermissions {
		if p == known {
			return true
		}
	}
	return false
}

// ParsePermission accepts both "network_access" and "NETWORK_ACCESS".
func ParsePermission(s string) (Permission, error) {
	p := Permission(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", errors.New(errors.CodeInvalidInput, fmt.Sprintf("unknown permission %q", s), nil)
	}
	return p, nil
}

// Descriptor is the metadata of a loaded extension instance.
type Descriptor struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Version     string       `json:"version"`
	Author      string       `json:"author"`
	Description string       `json:"description"`
	Permissions []Permission `json:"permissions,omitempty"`
}

// Validate checks the invariants the manager enforces on install and on
// bulk load: a non-blank identity and only known permissions.
func (d Descriptor) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return errors.New(errors.CodeInvalidInput, "extension ID cannot be blank", nil)
	}
	for _, p := range d.Permissions {
		if !p.Valid() {
			return errors.New(errors.CodeInvalidInput, fmt.Sprintf("extension %s declares unknown permission %q", d.ID, p), nil)
		}
	}
	return nil
}

// HasPermission reports whether the descriptor declares p.
func (d Descriptor) HasPermission(p Permission) bool {
	for _, declared := range d.Permissions {
		if declared == p {
			return true
		}
	}
	return false
}
