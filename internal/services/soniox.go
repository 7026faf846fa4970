package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"voicenotes/internal/config"
	"voicenotes/internal/domain"
	"voicenotes/internal/logger"
)

const (
	filesPath          = "/v1/files"
	transcriptionsPath = "/v1/transcriptions"
	sttRequestTimeout  = 5 * time.Minute
)

// Transcriber turns an accepted upload into transcript text.
type Transcriber interface {
	Transcribe(ctx context.Context, upload domain.UploadedAudio) (string, error)
}

// SonioxService talks to an asynchronous STT provider: upload the file,
// create a job, then poll the job's transcript.
type SonioxService struct {
	apiKey       string
	baseURL      string
	model        string
	pollInterval time.Duration
	pollAttempts int
	httpClient   *http.Client
	log          logger.Logger
}

func NewSonioxService(cfg config.Config, log logger.Logger) *SonioxService {
	return &SonioxService{
		apiKey:       cfg.SonioxAPIKey,
		baseURL:      strings.TrimRight(cfg.SonioxBaseURL, "/"),
		model:        cfg.SonioxModel,
		pollInterval: cfg.PollInterval,
		pollAttempts: cfg.PollAttempts,
		httpClient: &http.Client{
			Timeout: sttRequestTimeout,
		},
		log: log,
	}
}

func (s *SonioxService) Transcribe(ctx context.Context, upload domain.UploadedAudio) (string, error) {
	if strings.TrimSpace(s.apiKey) == "" {
		return "", ErrAPIKeyMissing
	}

	fileID, err := s.uploadFile(ctx, upload)
	if err != nil {
		return "", err
	}
	s.log.Info(ctx, "uploaded %s (%d bytes) as file %s", upload.Filename, upload.Size, fileID)

	job, err := s.createJob(ctx, fileID)
	if err != nil {
		return "", err
	}
	s.log.Info(ctx, "created transcription %s", job.ID)

	transcript, err := s.poll(ctx, &job)
	if err != nil {
		return "", err
	}
	s.log.Info(ctx, "transcription %s ready after %d attempts (%d chars)", job.ID, job.Attempts, len(transcript))

	return transcript, nil
}

func (s *SonioxService) uploadFile(ctx context.Context, upload domain.UploadedAudio) (string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	filename := upload.Filename
	if filename == "" {
		filename = "audio"
	}

	part, err := writer.CreatePart(filePartHeader(filename, upload.MIME))
	if err != nil {
		return "", fmt.Errorf("create multipart file: %w", err)
	}
	if _, err := part.Write(upload.Data); err != nil {
		return "", fmt.Errorf("copy audio data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+filesPath, body)
	if err != nil {
		return "", fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	status, raw, err := s.do(req)
	if err != nil {
		return "", &UpstreamError{Op: OpUpload, Err: err}
	}

	parsed := decodeLoose(raw)
	if !isSuccess(status) {
		details := any(string(raw))
		if parsed != nil {
			details = parsed
		}
		return "", &UpstreamError{Op: OpUpload, StatusCode: status, Body: string(raw), Details: details}
	}

	fileID := nestedID(parsed, "file")
	if fileID == "" {
		return "", &ProtocolError{Op: OpUpload, Field: "file id", Details: parsed}
	}
	return fileID, nil
}

func (s *SonioxService) createJob(ctx context.Context, fileID string) (domain.TranscriptionJob, error) {
	payload := map[string]any{
		"model":       s.model,
		"file_id":     fileID,
		"timestamps":  true,
		"diarization": false,
	}

	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(payload); err != nil {
		return domain.TranscriptionJob{}, fmt.Errorf("encode transcription payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+transcriptionsPath, buf)
	if err != nil {
		return domain.TranscriptionJob{}, fmt.Errorf("create transcription request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	s.log.Debug(ctx, "transcription request body: %s", strings.TrimSpace(buf.String()))

	status, raw, err := s.do(req)
	if err != nil {
		return domain.TranscriptionJob{}, &UpstreamError{Op: OpCreate, Err: err}
	}

	if !isSuccess(status) {
		if status == http.StatusBadRequest {
			s.log.Warn(ctx, "transcription rejected with 400: %s", string(raw))
		}
		return domain.TranscriptionJob{}, &UpstreamError{
			Op:         OpCreate,
			StatusCode: status,
			Body:       string(raw),
			Details: map[string]any{
				"status_code": status,
				"response":    string(raw),
			},
		}
	}

	parsed := decodeLoose(raw)
	jobID := nestedID(parsed, "transcription")
	if jobID == "" {
		return domain.TranscriptionJob{}, &ProtocolError{Op: OpCreate, Field: "transcription id", Details: parsed}
	}

	return domain.TranscriptionJob{ID: jobID, FileID: fileID, State: domain.JobStateCreated}, nil
}

// poll fetches the transcript until tokens show up or the attempt budget is
// spent. Every failure short of that just means "not yet".
func (s *SonioxService) poll(ctx context.Context, job *domain.TranscriptionJob) (string, error) {
	transcriptURL := fmt.Sprintf("%s%s/%s/transcript", s.baseURL, transcriptionsPath, url.PathEscape(job.ID))
	job.State = domain.JobStatePending

	for attempt := 1; attempt <= s.pollAttempts; attempt++ {
		job.Attempts = attempt

		if text, ok := s.fetchTranscript(ctx, transcriptURL); ok {
			job.State = domain.JobStateReady
			return text, nil
		}

		if attempt == s.pollAttempts {
			break
		}

		timer := time.NewTimer(s.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", fmt.Errorf("poll transcription %s: %w", job.ID, ctx.Err())
		case <-timer.C:
		}
	}

	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("poll transcription %s: %w", job.ID, err)
	}

	job.State = domain.JobStateTimedOut
	s.log.Warn(ctx, "transcription %s not ready after %d attempts", job.ID, job.Attempts)
	return "", ErrTranscriptTimeout
}

func (s *SonioxService) fetchTranscript(ctx context.Context, transcriptURL string) (string, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, transcriptURL, nil)
	if err != nil {
		return "", false
	}

	status, raw, err := s.do(req)
	if err != nil {
		s.log.Debug(ctx, "poll transcript: %v", err)
		return "", false
	}
	if !isSuccess(status) {
		s.log.Debug(ctx, "poll transcript: status %d", status)
		return "", false
	}

	// Tokens are decoded one by one: a token without a string text adds
	// nothing instead of failing the whole reply.
	var payload struct {
		Tokens []json.RawMessage `json:"tokens"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil || len(payload.Tokens) == 0 {
		return "", false
	}

	var sb strings.Builder
	for _, token := range payload.Tokens {
		if obj, ok := decodeLoose(token).(map[string]any); ok {
			if text, ok := obj["text"].(string); ok {
				sb.WriteString(text)
			}
		}
	}
	return sb.String(), true
}

func (s *SonioxService) do(req *http.Request) (int, []byte, error) {
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("soniox request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read soniox response: %w", err)
	}
	return resp.StatusCode, raw, nil
}

func filePartHeader(filename, mimeType string) textproto.MIMEHeader {
	h := make(textproto.MIMEHeader)
	escaped := strings.NewReplacer("\\", "\\\\", `"`, "\\\"").Replace(filename)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escaped))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	h.Set("Content-Type", mimeType)
	return h
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// decodeLoose returns the JSON value in raw, or nil when raw is not JSON.
func decodeLoose(raw []byte) any {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}

// nestedID reads "id", falling back to "<wrapper>.id".
func nestedID(v any, wrapper string) string {
	obj, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	if id := idString(obj["id"]); id != "" {
		return id
	}
	if inner, ok := obj[wrapper].(map[string]any); ok {
		return idString(inner["id"])
	}
	return ""
}

func idString(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return fmt.Sprintf("%.0f", id)
	default:
		return ""
	}
}
