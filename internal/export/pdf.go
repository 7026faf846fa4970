package export

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/jung-kurt/gofpdf/v2"

	"voicenotes/internal/domain"
	"voicenotes/internal/todo"
)

//go:embed fonts/DejaVuSansCondensed.ttf
var dejaVuRegular []byte

//go:embed fonts/DejaVuSansCondensed-Bold.ttf
var dejaVuBold []byte

// ErrMissingGlyphs means the document holds text the PDF font cannot draw.
var ErrMissingGlyphs = errors.New("pdf font has no glyphs for this text")

// Font is the TrueType font PDF writes with.
type Font struct {
	Name    string
	Regular []byte
	Bold    []byte
	// CJK marks fonts that cover Han, Kana and Hangul.
	CJK bool
}

// DefaultFont is the bundled DejaVu Sans Condensed. It covers Latin, Greek
// and Cyrillic but not CJK scripts.
func DefaultFont() Font {
	return Font{Name: "DejaVu", Regular: dejaVuRegular, Bold: dejaVuBold}
}

// LoadFont reads a TrueType font from path, for text the default font
// cannot draw. The font is used for both weights.
func LoadFont(path string) (Font, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Font{}, fmt.Errorf("read pdf font: %w", err)
	}
	if !isTrueType(data) {
		return Font{}, fmt.Errorf("pdf font %s is not a TrueType file", path)
	}
	return Font{Name: "Custom", Regular: data, CJK: true}, nil
}

func isTrueType(data []byte) bool {
	return len(data) >= 4 && (bytes.Equal(data[:4], []byte{0, 1, 0, 0}) || string(data[:4]) == "true")
}

// PDF lays the three tabs out one after the other on A4 pages. A zero Font
// means DefaultFont.
func PDF(doc Document, createdAt time.Time, font Font) ([]byte, error) {
	if len(font.Regular) == 0 {
		font = DefaultFont()
	}
	if !font.CJK {
		if r, ok := firstCJKRune(doc); ok {
			return nil, fmt.Errorf("%w: %q needs a CJK font (set PDF_FONT_PATH)", ErrMissingGlyphs, r)
		}
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	bold := font.Bold
	if len(bold) == 0 {
		bold = font.Regular
	}
	pdf.AddUTF8FontFromBytes(font.Name, "", font.Regular)
	pdf.AddUTF8FontFromBytes(font.Name, "B", bold)

	title := strings.TrimSpace(doc.Title)
	if title == "" {
		title = "Voice note"
	}
	pdf.SetTitle(title, true)
	pdf.SetAuthor("voicenotes", false)
	pdf.AddPage()

	pdf.SetFont(font.Name, "B", 18)
	pdf.Cell(0, 10, title)
	pdf.Ln(12)

	pdf.SetFont(font.Name, "", 12)
	pdf.Cell(0, 6, fmt.Sprintf("Created: %s", createdAt.Format("2006-01-02 15:04")))
	pdf.Ln(12)

	writeSection(pdf, font.Name, "Transcript", doc.Transcript)
	pdf.Ln(8)
	writeSection(pdf, font.Name, "Summary", doc.Summary)
	pdf.Ln(8)
	writeTodos(pdf, font.Name, doc.TodosTree)

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func writeHeading(pdf *gofpdf.Fpdf, family, title string) {
	pdf.SetFont(family, "B", 14)
	pdf.Cell(0, 8, title)
	pdf.Ln(10)
	pdf.SetFont(family, "", 12)
}

func writeSection(pdf *gofpdf.Fpdf, family, title, content string) {
	writeHeading(pdf, family, title)

	content = strings.TrimSpace(content)
	if content == "" {
		pdf.MultiCell(0, 6, "(empty)", "", "L", false)
		return
	}

	for _, line := range strings.Split(content, "\n") {
		if line = strings.TrimSpace(line); line == "" {
			continue
		}
		pdf.MultiCell(0, 6, line, "", "L", false)
	}
}

func writeTodos(pdf *gofpdf.Fpdf, family string, nodes []domain.TodoNode) {
	writeHeading(pdf, family, "To-do")

	if len(nodes) == 0 {
		pdf.MultiCell(0, 6, noTodosText, "", "L", false)
		return
	}

	left, _, _, _ := pdf.GetMargins()
	writeTodoNodes(pdf, left, nodes, 0)
}

func writeTodoNodes(pdf *gofpdf.Fpdf, left float64, nodes []domain.TodoNode, depth int) {
	for _, n := range nodes {
		pdf.SetX(left + float64(depth)*6)
		pdf.MultiCell(0, 6, todo.Line(n), "", "L", false)
		writeTodoNodes(pdf, left, n.Children, depth+1)
	}
}

func firstCJKRune(doc Document) (rune, bool) {
	texts := []string{doc.Title, doc.Transcript, doc.Summary}
	var walk func([]domain.TodoNode)
	walk = func(nodes []domain.TodoNode) {
		for _, n := range nodes {
			texts = append(texts, n.Title)
			if n.Due != nil {
				texts = append(texts, *n.Due)
			}
			walk(n.Children)
		}
	}
	walk(doc.TodosTree)

	for _, s := range texts {
		for _, r := range s {
			if unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul, unicode.Bopomofo) {
				return r, true
			}
		}
	}
	return 0, false
}
