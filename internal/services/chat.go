package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"voicenotes/internal/config"
	"voicenotes/internal/domain"
	"voicenotes/internal/logger"
)

const (
	chatCompletionsPath = "/v1/chat/completions"
	chatRequestTimeout  = 2 * time.Minute
)

// ChatService summarizes transcripts through an OpenAI-compatible
// chat-completion endpoint.
type ChatService struct {
	apiKey     string
	baseURL    string
	model      string
	reqTimeout time.Duration
	httpClient *http.Client
	log        logger.Logger
}

func NewChatService(cfg config.Config, log logger.Logger) *ChatService {
	return &ChatService{
		apiKey:     cfg.ChatAPIKey,
		baseURL:    strings.TrimRight(cfg.ChatBaseURL, "/"),
		model:      cfg.ChatModel,
		reqTimeout: chatRequestTimeout,
		httpClient: &http.Client{
			Timeout: chatRequestTimeout,
		},
		log: log,
	}
}

func (s *ChatService) Analyze(ctx context.Context, transcript string) (domain.AnalysisResult, error) {
	if strings.TrimSpace(transcript) == "" {
		return domain.AnalysisResult{}, ErrEmptyText
	}
	if err := s.ensureAPIKey(); err != nil {
		return domain.AnalysisResult{}, err
	}

	payload := map[string]any{
		"model": s.model,
		"messages": []map[string]string{
			{"role": "system", "content": analysisSystemPrompt},
			{"role": "user", "content": transcript},
		},
		"temperature": 0.2,
	}

	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(payload); err != nil {
		return domain.AnalysisResult{}, fmt.Errorf("encode analysis payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+chatCompletionsPath, buf)
	if err != nil {
		return domain.AnalysisResult{}, fmt.Errorf("create analysis request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.do(req)
	if err != nil {
		return domain.AnalysisResult{}, &UpstreamError{Op: OpAnalyze, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.AnalysisResult{}, &UpstreamError{Op: OpAnalyze, Err: fmt.Errorf("read analysis response: %w", err)}
	}

	if !isSuccess(resp.StatusCode) {
		return domain.AnalysisResult{}, &UpstreamError{
			Op:         OpAnalyze,
			StatusCode: resp.StatusCode,
			Body:       string(raw),
			Details:    string(raw),
		}
	}

	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &response); err != nil {
		s.log.Warn(ctx, "analysis envelope is not JSON: %s", truncate(raw, 200))
	}

	content := ""
	if len(response.Choices) > 0 {
		content = response.Choices[0].Message.Content
	}

	result := ParseAnalysis(content)
	if result.Summary == "" && len(result.TodosTree) == 0 {
		s.log.Debug(ctx, "analysis reply yielded nothing: %s", truncate([]byte(content), 200))
	}
	return result, nil
}

func (s *ChatService) do(req *http.Request) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(req.Context(), s.reqTimeout)
	req = req.WithContext(ctx)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("chat request failed: %w", err)
	}

	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

func (s *ChatService) ensureAPIKey() error {
	if strings.TrimSpace(s.apiKey) == "" {
		return ErrAPIKeyMissing
	}
	return nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
