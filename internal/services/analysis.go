package services

import (
	"context"
	"encoding/json"
	"strings"

	"voicenotes/internal/domain"
	"voicenotes/internal/todo"
)

const analysisSystemPrompt = `You are a task breakdown assistant. From the transcript the user provides, output strict JSON: {"summary":"a three to five sentence summary","todos_tree":[{"title":"...","due":null,"children":[{"title":"...","children":[]}]}]}. Rules: 1) todos_tree is hierarchical; 2) if there is nothing to do, todos_tree=[]; 3) each title is an actionable verb phrase and may carry time, quantity or section details; 4) write in the language of the transcript; 5) output JSON only, no explanations.`

// Analyzer derives a summary and a to-do tree from a transcript.
type Analyzer interface {
	Analyze(ctx context.Context, transcript string) (domain.AnalysisResult, error)
}

// ParseAnalysis reads a model reply. It never fails: anything that is not a
// JSON object degrades to an empty result, and fields of the wrong type fall
// back to their zero values.
func ParseAnalysis(content string) domain.AnalysisResult {
	result := domain.EmptyAnalysis()

	var parsed map[string]any
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &parsed); err != nil {
		return result
	}

	if summary, ok := parsed["summary"].(string); ok {
		result.Summary = summary
	}
	result.TodosTree = todo.Normalize(parsed["todos_tree"])
	return result
}

// stripCodeFence removes a ```json ... ``` wrapper some models add.
func stripCodeFence(content string) string {
	s := strings.TrimSpace(content)
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}
	s = strings.TrimSuffix(strings.TrimPrefix(s, "```"), "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], "{[") {
		s = s[nl+1:]
	}
	return strings.TrimSpace(s)
}
