package export

import (
	"fmt"
	"os"
	"strings"

	"github.com/gomutex/godocx"
	"github.com/gomutex/godocx/docx"

	"voicenotes/internal/domain"
	"voicenotes/internal/todo"
)

const (
	fontName = "Calibri"
	fontSize = 11
)

// DOCX builds a Word document with the same sections as PDF.
func DOCX(doc Document) ([]byte, error) {
	out, err := godocx.NewDocument()
	if err != nil {
		return nil, fmt.Errorf("create docx: %w", err)
	}

	title := strings.TrimSpace(doc.Title)
	if title == "" {
		title = "Voice note"
	}
	addRun(out.AddParagraph(""), title, true, 16)

	addHeading(out, "Transcript")
	addBody(out, doc.Transcript)

	addHeading(out, "Summary")
	addBody(out, doc.Summary)

	addHeading(out, "To-do")
	if len(doc.TodosTree) == 0 {
		addRun(out.AddParagraph(""), noTodosText, false, fontSize)
	}
	addTodos(out, doc.TodosTree, 0)

	// godocx only writes to a path.
	tmp, err := os.CreateTemp("", "voicenotes-*.docx")
	if err != nil {
		return nil, fmt.Errorf("create temp docx: %w", err)
	}
	path := tmp.Name()
	tmp.Close()
	defer os.Remove(path)

	if err := out.SaveTo(path); err != nil {
		return nil, fmt.Errorf("save docx: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read docx: %w", err)
	}
	return data, nil
}

func addHeading(doc *docx.RootDoc, text string) {
	doc.AddParagraph("")
	addRun(doc.AddParagraph(""), text, true, 14)
}

func addBody(doc *docx.RootDoc, content string) {
	content = strings.TrimSpace(content)
	if content == "" {
		addRun(doc.AddParagraph(""), "(empty)", false, fontSize)
		return
	}
	for _, line := range strings.Split(content, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			addRun(doc.AddParagraph(""), line, false, fontSize)
		}
	}
}

func addTodos(doc *docx.RootDoc, nodes []domain.TodoNode, depth int) {
	for _, n := range nodes {
		box := "☐ "
		if n.Done {
			box = "☑ "
		}
		text := strings.Repeat("    ", depth) + box + todo.FlatTitle(n.Title)
		if n.Due != nil && *n.Due != "" {
			text += " (" + *n.Due + ")"
		}
		addRun(doc.AddParagraph(""), text, false, fontSize)
		addTodos(doc, n.Children, depth+1)
	}
}

func addRun(p *docx.Paragraph, text string, bold bool, size uint64) {
	run := p.AddText(text).Font(fontName).Size(size).Color("000000")
	if bold {
		run.Bold(true)
	}
}
