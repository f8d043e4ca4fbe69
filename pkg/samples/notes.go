package samples

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jllopis/launcher/pkg/extension"
)

// NotesPriority ranks note answers.
const NotesPriority = 9

// Notes keeps quick notes in memory for the lifetime of the instance.
type Notes struct {
	extension.Base

	mu    sync.Mutex
	notes []string
}

// NewNotes returns an empty notes extension.
func NewNotes() *Notes {
	return &Notes{Base: extension.NewBase(extension.Descriptor{
		ID:          NotesID,
		Name:        "Quick Notes",
		Version:     "1.0.0",
		Author:      author,
		Description: "Quick note-taking from the launcher",
	})}
}

// OnAIQuery saves "note: ..." and "remember: ..." queries and lists them
// for "show notes" or "my notes".
func (n *Notes) OnAIQuery(_ context.Context, query string, _ extension.LauncherContext) (*extension.Response, error) {
	lower := strings.ToLower(query)

	if strings.HasPrefix(lower, "note:") || strings.HasPrefix(lower, "remember:") {
		_, text, _ := strings.Cut(query, ":")
		text = strings.TrimSpace(text)
		if text == "" {
			return nil, nil
		}
		n.mu.Lock()
		n.notes = append(n.notes, text)
		n.mu.Unlock()
		return &extension.Response{
			Text:     fmt.Sprintf("Note saved: \"%s\"", text),
			Priority: NotesPriority,
		}, nil
	}

	if strings.Contains(lower, "show notes") || strings.Contains(lower, "my notes") {
		notes := n.Notes()
		body := "No notes saved yet."
		if len(notes) > 0 {
			lines := make([]string, len(notes))
			for i, note := range notes {
				lines[i] = "• " + note
			}
			body = strings.Join(lines, "\n")
		}
		return &extension.Response{
			Text:     "Your notes:\n" + body,
			Priority: NotesPriority,
		}, nil
	}

	return nil, nil
}

// Notes returns a copy of the saved notes in insertion order.
func (n *Notes) Notes() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.notes...)
}

// ProvideSearchProvider exposes the saved notes to drawer search.
func (n *Notes) ProvideSearchProvider() extension.SearchProvider {
	return notesSearch{notes: n}
}

type notesSearch struct {
	notes *Notes
}

func (notesSearch) ID() string   { return NotesID + ".search" }
func (notesSearch) Name() string { return "Notes" }

// Search matches notes case-insensitively.
func (s notesSearch) Search(ctx context.Context, query string) ([]extension.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, nil
	}
	var results []extension.SearchResult
	for i, note := range s.notes.Notes() {
		if !strings.Contains(strings.ToLower(note), q) {
			continue
		}
		results = append(results, extension.SearchResult{
			ID:       fmt.Sprintf("note-%d", i),
			Title:    note,
			Subtitle: "Quick Notes",
			Action:   extension.ShowMessage{Message: note},
		})
	}
	return results, nil
}
