// Package client drives one upload the way the upload page does: send the
// file with byte-level progress, wait for the transcript, then request the
// analysis, folding the three phases into one percentage.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"voicenotes/internal/domain"
	"voicenotes/internal/export"
	"voicenotes/internal/logger"
	"voicenotes/internal/todo"
)

type Stage string

const (
	StageIdle         Stage = "idle"
	StageUploading    Stage = "uploading"
	StageTranscribing Stage = "transcribing"
	StageAnalyzing    Stage = "analyzing"
	StageDone         Stage = "done"
	StageError        Stage = "error"
)

// Snapshot is a copy of the orchestrator state, safe to keep.
type Snapshot struct {
	Stage      Stage
	Progress   domain.Progress
	Filename   string
	Transcript string
	Summary    string
	TodosTree  []domain.TodoNode
	ActiveTab  string
	Err        error
}

func (s Snapshot) Percent() int {
	return s.Progress.Percent()
}

// Document returns the snapshot in the shape the exporters take.
func (s Snapshot) Document() export.Document {
	return export.Document{
		Title:      strings.TrimSuffix(s.Filename, filepath.Ext(s.Filename)),
		Transcript: s.Transcript,
		Summary:    s.Summary,
		TodosTree:  todo.Clone(s.TodosTree),
	}
}

type Option func(*Orchestrator)

func WithHTTPClient(c *http.Client) Option {
	return func(o *Orchestrator) { o.httpClient = c }
}

func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// WithOnChange registers a callback fired after every state change. Upload
// progress is reported from the transport's goroutine.
func WithOnChange(fn func(Snapshot)) Option {
	return func(o *Orchestrator) { o.onChange = fn }
}

type Orchestrator struct {
	baseURL    string
	httpClient *http.Client
	log        logger.Logger
	onChange   func(Snapshot)

	mu    sync.Mutex
	state Snapshot
}

func New(baseURL string, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			// Transcription polls upstream for up to a minute on top of the upload.
			Timeout: 10 * time.Minute,
		},
		log:   logger.Discard(),
		state: Snapshot{Stage: StageIdle, ActiveTab: export.TabTranscript},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Snapshot returns the current state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.copyLocked()
}

// RunFile uploads the file at path.
func (o *Orchestrator) RunFile(ctx context.Context, path string) (Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return o.Snapshot(), fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return o.Snapshot(), fmt.Errorf("stat audio file: %w", err)
	}

	name := filepath.Base(path)
	return o.Run(ctx, name, mimeFor(name), f, info.Size())
}

// Run sends one file through transcription and analysis. An analysis the
// server refuses still ends in StageDone with empty results. Upload and
// transcription failures return an error, as do transport errors and a 2xx
// analysis reply that is not JSON.
func (o *Orchestrator) Run(ctx context.Context, filename, mimeType string, r io.Reader, size int64) (Snapshot, error) {
	o.update(func(s *Snapshot) {
		*s = Snapshot{Stage: StageUploading, Filename: filename, ActiveTab: export.TabTranscript}
	})

	transcript, err := o.transcribe(ctx, filename, mimeType, r, size)
	if err != nil {
		o.fail(err)
		return o.Snapshot(), err
	}

	o.update(func(s *Snapshot) {
		s.Progress.UploadRatio = 1
		s.Progress.TranscribeDone = true
		s.Transcript = transcript
		s.Stage = StageAnalyzing
	})
	o.log.Info(ctx, "transcribed %s (%d chars)", filename, len(transcript))

	result, ok, err := o.analyze(ctx, transcript)
	if err != nil {
		o.fail(err)
		return o.Snapshot(), err
	}

	o.update(func(s *Snapshot) {
		s.Progress.AnalyzeDone = true
		s.Stage = StageDone
		if ok {
			s.Summary = result.Summary
			s.TodosTree = result.TodosTree
			s.ActiveTab = export.TabHighlights
		}
	})
	if !ok {
		o.log.Warn(ctx, "analysis unavailable for %s, keeping transcript only", filename)
	}

	return o.Snapshot(), nil
}

// Toggle flips the completion flag of the to-do at path.
func (o *Orchestrator) Toggle(path []int) error {
	o.mu.Lock()
	next, err := todo.Toggle(o.state.TodosTree, path)
	if err != nil {
		o.mu.Unlock()
		return err
	}
	o.state.TodosTree = next
	snap := o.copyLocked()
	o.mu.Unlock()

	o.notify(snap)
	return nil
}

// SetActiveTab switches the visible tab.
func (o *Orchestrator) SetActiveTab(tab string) error {
	switch tab {
	case export.TabTranscript, export.TabHighlights, export.TabTodos:
	default:
		return fmt.Errorf("%w: %s", export.ErrUnknownTab, tab)
	}
	o.update(func(s *Snapshot) { s.ActiveTab = tab })
	return nil
}

// Markdown renders a tab of the current result; an empty tab renders all.
func (o *Orchestrator) Markdown(tab string) (string, error) {
	return export.Markdown(o.Snapshot().Document(), tab)
}

func (o *Orchestrator) transcribe(ctx context.Context, filename, mimeType string, r io.Reader, size int64) (string, error) {
	head, tail, contentType, err := multipartFrame(filename, mimeType)
	if err != nil {
		return "", err
	}

	total := int64(len(head)) + size + int64(len(tail))
	body := &progressReader{
		r:     io.MultiReader(bytes.NewReader(head), r, bytes.NewReader(tail)),
		total: total,
		report: func(ratio float64) {
			o.update(func(s *Snapshot) {
				if s.Stage != StageUploading {
					return
				}
				s.Progress.UploadRatio = ratio
				if ratio >= 1 {
					s.Stage = StageTranscribing
				}
			})
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/transcribe", body)
	if err != nil {
		return "", fmt.Errorf("create transcribe request: %w", err)
	}
	req.ContentLength = total
	req.Header.Set("Content-Type", contentType)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read transcribe response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &StatusError{StatusCode: resp.StatusCode, Body: truncate(raw, 200)}
	}
	return string(raw), nil
}

func (o *Orchestrator) analyze(ctx context.Context, transcript string) (domain.AnalysisResult, bool, error) {
	payload, err := json.Marshal(map[string]string{"text": transcript})
	if err != nil {
		return domain.AnalysisResult{}, false, fmt.Errorf("encode analyze payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/analyze", bytes.NewReader(payload))
	if err != nil {
		return domain.AnalysisResult{}, false, fmt.Errorf("create analyze request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return domain.AnalysisResult{}, false, fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return domain.AnalysisResult{}, false, nil
	}

	var body struct {
		Summary   any `json:"summary"`
		TodosTree any `json:"todos_tree"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.AnalysisResult{}, false, fmt.Errorf("analysis response is not JSON: %w", err)
	}

	summary, _ := body.Summary.(string)
	return domain.AnalysisResult{Summary: summary, TodosTree: todo.Normalize(body.TodosTree)}, true, nil
}

func (o *Orchestrator) fail(err error) {
	o.update(func(s *Snapshot) {
		s.Stage = StageError
		s.Progress.UploadRatio = 0
		s.Err = err
	})
}

func (o *Orchestrator) update(fn func(*Snapshot)) {
	o.mu.Lock()
	fn(&o.state)
	snap := o.copyLocked()
	o.mu.Unlock()

	o.notify(snap)
}

func (o *Orchestrator) notify(snap Snapshot) {
	if o.onChange != nil {
		o.onChange(snap)
	}
}

func (o *Orchestrator) copyLocked() Snapshot {
	snap := o.state
	if snap.TodosTree != nil {
		snap.TodosTree = todo.Clone(snap.TodosTree)
	}
	return snap
}

// StatusError is a non-2xx answer from the transcription endpoint.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upload failed (%d): %s", e.StatusCode, e.Body)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// multipartFrame returns the bytes that go before and after the file
// content of a single-part form, so the body length is known up front.
func multipartFrame(filename, mimeType string) (head, tail []byte, contentType string, err error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	escaped := strings.NewReplacer("\\", "\\\\", `"`, "\\\"").Replace(filename)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escaped))
	h.Set("Content-Type", mimeType)

	if _, err := mw.CreatePart(h); err != nil {
		return nil, nil, "", fmt.Errorf("create multipart part: %w", err)
	}
	headLen := buf.Len()
	if err := mw.Close(); err != nil {
		return nil, nil, "", fmt.Errorf("close multipart writer: %w", err)
	}

	all := buf.Bytes()
	return all[:headLen], all[headLen:], mw.FormDataContentType(), nil
}

type progressReader struct {
	r      io.Reader
	total  int64
	read   int64
	report func(float64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 && p.total > 0 {
		p.read += int64(n)
		ratio := float64(p.read) / float64(p.total)
		if ratio > 1 {
			ratio = 1
		}
		p.report(ratio)
	}
	return n, err
}

func mimeFor(name string) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); t != "" {
		return t
	}
	return "application/octet-stream"
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n])
}
