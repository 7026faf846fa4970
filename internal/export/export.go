// Package export renders a finished result as markdown, PDF or DOCX.
package export

import (
	"errors"
	"fmt"
	"strings"

	"voicenotes/internal/domain"
	"voicenotes/internal/todo"
)

const (
	TabTranscript = "transcript"
	TabHighlights = "highlights"
	TabTodos      = "todos"
)

var ErrUnknownTab = errors.New("unknown tab")

const noTodosText = "No to-dos in this transcript"

// Document is everything a result page shows.
type Document struct {
	Title      string            `json:"title"`
	Transcript string            `json:"transcript"`
	Summary    string            `json:"summary"`
	TodosTree  []domain.TodoNode `json:"todos_tree"`
}

// Markdown renders one tab, or all three when tab is empty.
func Markdown(doc Document, tab string) (string, error) {
	switch tab {
	case TabTranscript:
		return "# Transcript\n\n" + doc.Transcript, nil
	case TabHighlights:
		return "# Summary\n\n" + doc.Summary, nil
	case TabTodos:
		if len(doc.TodosTree) == 0 {
			return "# To-do\n\n" + noTodosText, nil
		}
		return "# To-do\n\n" + todo.Markdown(doc.TodosTree), nil
	case "", "all":
		sections := make([]string, 0, 3)
		for _, t := range []string{TabTranscript, TabHighlights, TabTodos} {
			md, _ := Markdown(doc, t)
			sections = append(sections, "#"+md)
		}
		head := ""
		if title := strings.TrimSpace(doc.Title); title != "" {
			head = "# " + title + "\n\n"
		}
		return head + strings.Join(sections, "\n\n") + "\n", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownTab, tab)
	}
}
