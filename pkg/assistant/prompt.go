package assistant

import (
	"fmt"
	"strings"

	"github.com/jllopis/launcher/pkg/extension"
)

const (
	promptIntro = "You are an AI assistant integrated into an Android launcher. " +
		"You can help with app search, calculations, notes, and general tasks.\n\n"
	promptOutro = "\nProvide concise, helpful responses. When appropriate, suggest launcher actions.\n" +
		"Keep responses brief and conversational."
)

// BuildContextPrompt renders the launcher context as the system prompt sent
// to the LLM. At most maxNotifications notifications are listed, in the
// order the host supplied them.
func BuildContextPrompt(lc extension.LauncherContext, maxNotifications int) string {
	var b strings.Builder
	b.WriteString(promptIntro)
	b.WriteString("Current launcher context:\n")

	if lc.CurrentApp != "" {
		fmt.Fprintf(&b, "- Current app: %s\n", lc.CurrentApp)
	}

	notes := lc.RecentNotifications
	if maxNotifications >= 0 && len(notes) > maxNotifications {
		notes = notes[:maxNotifications]
	}
	if len(notes) > 0 {
		b.WriteString("- Recent notifications:\n")
		for _, n := range notes {
			fmt.Fprintf(&b, "  • %s: %s\n", n.AppID, notificationLabel(n))
		}
	}

	if lc.Clipboard != "" {
		fmt.Fprintf(&b, "- Clipboard: %q\n", lc.Clipboard)
	}
	if lc.InstalledApps != nil {
		fmt.Fprintf(&b, "- %d apps installed\n", len(lc.InstalledApps))
	}

	b.WriteString(promptOutro)
	return b.String()
}

func notificationLabel(n extension.NotificationInfo) string {
	switch {
	case n.Title != "":
		return n.Title
	case n.Text != "":
		return n.Text
	default:
		return "notification"
	}
}

// extensionHints lists the extension responses that did not qualify as a
// direct answer, so the model can build on them. Empty when there are none.
func extensionHints(responses []extension.Response) string {
	var b strings.Builder
	for _, r := range responses {
		if strings.TrimSpace(r.Text) == "" {
			continue
		}
		if b.Len() == 0 {
			b.WriteString("Installed extensions suggested:\n")
		}
		fmt.Fprintf(&b, "- [%s] %s\n", r.ExtensionID, r.Text)
	}
	return strings.TrimRight(b.String(), "\n")
}
