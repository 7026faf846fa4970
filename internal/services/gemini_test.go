package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"voicenotes/internal/config"
	"voicenotes/internal/logger"
)

func newTestGemini(t *testing.T, status int, body string) (*GeminiService, *atomic.Int32, func()) {
	t.Helper()

	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if !strings.HasSuffix(r.URL.Path, "/models/gemini-test:generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("x-goog-api-key"); got != "gemini-key" {
			t.Errorf("unexpected api key header %q", got)
		}

		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if _, ok := payload["systemInstruction"]; !ok {
			t.Errorf("system instruction missing from %v", payload)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))

	cfg := config.Default()
	cfg.SummarizerProvider = config.ProviderGemini
	cfg.GeminiAPIKey = "gemini-key"
	cfg.GeminiModel = "gemini-test"
	cfg.GeminiBaseURL = ts.URL
	return NewGeminiService(cfg, logger.Discard()), &calls, ts.Close
}

func geminiReply(text string) string {
	body, _ := json.Marshal(map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"role": "model", "parts": []map[string]string{{"text": text}}}},
		},
	})
	return string(body)
}

func TestGeminiAnalyze(t *testing.T) {
	reply := "```json\n" + `{"summary":"Ship it.","todos_tree":[{"title":"Ship","due":"Friday","done":true,"children":[]}]}` + "\n```"
	svc, calls, done := newTestGemini(t, http.StatusOK, geminiReply(reply))
	defer done()

	result, err := svc.Analyze(context.Background(), "we should ship on friday")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
	if result.Summary != "Ship it." {
		t.Errorf("Summary = %q", result.Summary)
	}
	if len(result.TodosTree) != 1 || result.TodosTree[0].Title != "Ship" || result.TodosTree[0].Done {
		t.Errorf("TodosTree = %+v", result.TodosTree)
	}
}

func TestGeminiAnalyzeUnparseableReply(t *testing.T) {
	svc, _, done := newTestGemini(t, http.StatusOK, geminiReply("Sorry, I can't."))
	defer done()

	result, err := svc.Analyze(context.Background(), "text")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if result.Summary != "" || result.TodosTree == nil || len(result.TodosTree) != 0 {
		t.Errorf("Analyze() = %+v, want empty result", result)
	}
}

func TestGeminiAnalyzeAPIError(t *testing.T) {
	body := `{"error":{"code":403,"message":"API key not valid","status":"PERMISSION_DENIED"}}`
	svc, _, done := newTestGemini(t, http.StatusForbidden, body)
	defer done()

	_, err := svc.Analyze(context.Background(), "text")

	var upErr *UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("Analyze() error = %v, want *UpstreamError", err)
	}
	if upErr.Op != OpAnalyze || upErr.StatusCode != http.StatusForbidden {
		t.Errorf("UpstreamError = %+v", upErr)
	}
	if upErr.Details != "API key not valid" {
		t.Errorf("Details = %#v", upErr.Details)
	}
}
