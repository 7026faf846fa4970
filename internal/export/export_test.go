package export

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"voicenotes/internal/domain"
)

func sampleDoc() Document {
	due := "Friday"
	return Document{
		Title:      "Standup",
		Transcript: "we should ship on friday",
		Summary:    "Shipping Friday.",
		TodosTree: []domain.TodoNode{
			{Title: "Ship", Due: &due, Children: []domain.TodoNode{
				{Title: "Tag release", Done: true},
			}},
		},
	}
}

func TestMarkdownTabs(t *testing.T) {
	tests := []struct {
		tab  string
		doc  Document
		want string
	}{
		{TabTranscript, sampleDoc(), "# Transcript\n\nwe should ship on friday"},
		{TabHighlights, sampleDoc(), "# Summary\n\nShipping Friday."},
		{TabTodos, sampleDoc(), "# To-do\n\n- [ ] Ship\n  - [x] Tag release"},
		{TabTodos, Document{}, "# To-do\n\nNo to-dos in this transcript"},
	}

	for _, tt := range tests {
		t.Run(tt.tab, func(t *testing.T) {
			got, err := Markdown(tt.doc, tt.tab)
			if err != nil {
				t.Fatalf("Markdown() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Markdown() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMarkdownAll(t *testing.T) {
	got, err := Markdown(sampleDoc(), "")
	if err != nil {
		t.Fatalf("Markdown() error = %v", err)
	}

	for _, want := range []string{"# Standup\n", "## Transcript", "## Summary", "## To-do", "  - [x] Tag release"} {
		if !strings.Contains(got, want) {
			t.Errorf("Markdown() missing %q in %q", want, got)
		}
	}
	if strings.Index(got, "## Transcript") > strings.Index(got, "## To-do") {
		t.Error("sections out of order")
	}
}

func TestMarkdownUnknownTab(t *testing.T) {
	if _, err := Markdown(sampleDoc(), "keywords"); !errors.Is(err, ErrUnknownTab) {
		t.Errorf("Markdown() error = %v, want ErrUnknownTab", err)
	}
}

func TestPDF(t *testing.T) {
	data, err := PDF(sampleDoc(), time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC), Font{})
	if err != nil {
		t.Fatalf("PDF() error = %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Errorf("PDF() output does not start with a PDF header")
	}
}

func TestPDFEmptyDocument(t *testing.T) {
	data, err := PDF(Document{}, time.Now(), Font{})
	if err != nil {
		t.Fatalf("PDF() error = %v", err)
	}
	if len(data) == 0 {
		t.Error("PDF() returned no bytes")
	}
}

func TestPDFEmbedsUnicodeFont(t *testing.T) {
	doc := Document{
		Title:      "Планёрка",
		Transcript: "Завтра сдать отчёт. Ελληνικά too.",
		TodosTree: []domain.TodoNode{
			{Title: "Сдать\nотчёт", Children: []domain.TodoNode{{Title: "Проверить"}}},
		},
	}

	data, err := PDF(doc, time.Now(), Font{})
	if err != nil {
		t.Fatalf("PDF() error = %v", err)
	}
	for _, want := range []string{"/Subtype /Type0", "/Encoding /Identity-H", "/ToUnicode"} {
		if !bytes.Contains(data, []byte(want)) {
			t.Errorf("PDF() output missing %q, text was not written with a Unicode font", want)
		}
	}
}

func TestPDFRefusesTextWithoutGlyphs(t *testing.T) {
	doc := Document{Title: "会议", Transcript: "明天交报告"}

	if _, err := PDF(doc, time.Now(), Font{}); !errors.Is(err, ErrMissingGlyphs) {
		t.Fatalf("PDF() error = %v, want ErrMissingGlyphs", err)
	}

	due := "明天"
	doc = Document{TodosTree: []domain.TodoNode{{Title: "report", Due: &due}}}
	if _, err := PDF(doc, time.Now(), Font{}); !errors.Is(err, ErrMissingGlyphs) {
		t.Fatalf("PDF() error = %v, want ErrMissingGlyphs for a due date", err)
	}
}

func TestPDFWithLoadedFont(t *testing.T) {
	font, err := LoadFont("fonts/DejaVuSansCondensed.ttf")
	if err != nil {
		t.Fatalf("LoadFont() error = %v", err)
	}
	if !font.CJK {
		t.Error("a configured font is trusted with CJK text")
	}

	data, err := PDF(Document{Title: "Stand up", Transcript: "ship it"}, time.Now(), font)
	if err != nil {
		t.Fatalf("PDF() error = %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Error("PDF() output does not start with a PDF header")
	}
}

func TestLoadFontRejectsNonTrueType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "font.otf")
	if err := os.WriteFile(path, []byte("OTTO\x00\x01"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFont(path); err == nil {
		t.Error("LoadFont() should reject a non-TrueType file")
	}
	if _, err := LoadFont(filepath.Join(t.TempDir(), "missing.ttf")); err == nil {
		t.Error("LoadFont() should fail for a missing file")
	}
}

func TestDOCX(t *testing.T) {
	data, err := DOCX(sampleDoc())
	if err != nil {
		t.Fatalf("DOCX() error = %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("DOCX() output is not a zip archive: %v", err)
	}

	found := false
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			found = true
		}
	}
	if !found {
		t.Error("word/document.xml missing from docx")
	}
}
