package llm

import (
	"net/http"
	"strings"
)

// Backend carries the connection settings shared by the SDK-backed
// providers. The assistant owns retries, so adapters disable the SDK's own.
type Backend struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxTokens  int
	HTTPClient *http.Client
}

// PickModel returns the request model, then the backend model, then def.
func (b Backend) PickModel(requested, def string) string {
	switch {
	case requested != "":
		return requested
	case b.Model != "":
		return b.Model
	}
	return def
}

// SplitSystem separates system messages, joined by a blank line, from the
// conversation turns. Backends with a dedicated system field use it.
func SplitSystem(msgs []Message) (string, []Message) {
	var system []string
	turns := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		turns = append(turns, m)
	}
	return strings.Join(system, "\n\n"), turns
}
