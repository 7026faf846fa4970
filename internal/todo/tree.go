// Package todo edits and renders the hierarchical to-do tree returned by the
// summarizer.
package todo

import (
	"errors"
	"fmt"
	"strings"

	"voicenotes/internal/domain"
)

var ErrInvalidPath = errors.New("invalid to-do path")

// Clone returns a deep copy of nodes. Children are never nil in the copy.
func Clone(nodes []domain.TodoNode) []domain.TodoNode {
	out := make([]domain.TodoNode, len(nodes))
	for i, n := range nodes {
		out[i] = n
		if n.Due != nil {
			due := *n.Due
			out[i].Due = &due
		}
		out[i].Children = Clone(n.Children)
	}
	return out
}

// Toggle flips the completion flag of the node addressed by path, a list of
// child indices starting at the root. The input tree is left untouched.
func Toggle(nodes []domain.TodoNode, path []int) ([]domain.TodoNode, error) {
	if len(path) == 0 {
		return nil, ErrInvalidPath
	}

	next := Clone(nodes)
	level := next
	for depth, idx := range path {
		if idx < 0 || idx >= len(level) {
			return nil, fmt.Errorf("%w: index %d at depth %d", ErrInvalidPath, idx, depth)
		}
		if depth == len(path)-1 {
			level[idx].Done = !level[idx].Done
			break
		}
		level = level[idx].Children
	}

	return next, nil
}

// Markdown renders nodes as nested checklist lines, two spaces per level.
func Markdown(nodes []domain.TodoNode) string {
	var lines []string
	appendLines(&lines, nodes, 0)
	return strings.Join(lines, "\n")
}

func appendLines(lines *[]string, nodes []domain.TodoNode, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, n := range nodes {
		*lines = append(*lines, indent+Line(n))
		appendLines(lines, n.Children, depth+1)
	}
}

// Line renders one node as an unindented checklist item.
func Line(n domain.TodoNode) string {
	box := "[ ]"
	if n.Done {
		box = "[x]"
	}
	return fmt.Sprintf("- %s %s", box, FlatTitle(n.Title))
}

// FlatTitle keeps a title on one line. Titles with line breaks have their
// whitespace runs collapsed to single spaces.
func FlatTitle(title string) string {
	if !strings.ContainsAny(title, "\r\n") {
		return title
	}
	return strings.Join(strings.Fields(title), " ")
}

// Stats counts completed and total nodes at every depth.
func Stats(nodes []domain.TodoNode) (done, total int) {
	for _, n := range nodes {
		total++
		if n.Done {
			done++
		}
		d, t := Stats(n.Children)
		done += d
		total += t
	}
	return done, total
}

// Normalize turns a decoded JSON value into a tree. Anything that is not an
// array yields an empty tree; elements that are not objects are dropped.
func Normalize(raw any) []domain.TodoNode {
	items, ok := raw.([]any)
	if !ok {
		return []domain.TodoNode{}
	}

	nodes := make([]domain.TodoNode, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}

		node := domain.TodoNode{Children: Normalize(obj["children"])}
		if title, ok := obj["title"].(string); ok {
			node.Title = title
		}
		if due, ok := obj["due"].(string); ok {
			node.Due = &due
		}
		nodes = append(nodes, node)
	}
	return nodes
}
