package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"voicenotes/internal/config"
	"voicenotes/internal/domain"
	"voicenotes/internal/logger"
)

// GeminiService is the Analyzer used when SUMMARIZER_PROVIDER=gemini.
type GeminiService struct {
	apiKey  string
	model   string
	baseURL string
	log     logger.Logger
}

func NewGeminiService(cfg config.Config, log logger.Logger) *GeminiService {
	return &GeminiService{
		apiKey:  cfg.GeminiAPIKey,
		model:   cfg.GeminiModel,
		baseURL: cfg.GeminiBaseURL,
		log:     log,
	}
}

func (s *GeminiService) Analyze(ctx context.Context, transcript string) (domain.AnalysisResult, error) {
	if strings.TrimSpace(transcript) == "" {
		return domain.AnalysisResult{}, ErrEmptyText
	}
	if strings.TrimSpace(s.apiKey) == "" {
		return domain.AnalysisResult{}, ErrAPIKeyMissing
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      s.apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: s.baseURL},
	})
	if err != nil {
		return domain.AnalysisResult{}, fmt.Errorf("create gemini client: %w", err)
	}

	temperature := float32(0.2)
	result, err := client.Models.GenerateContent(ctx, s.model, genai.Text(transcript), &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: analysisSystemPrompt}}},
		Temperature:       &temperature,
		ResponseMIMEType:  "application/json",
	})
	if err != nil {
		upErr := &UpstreamError{Op: OpAnalyze, Body: err.Error(), Details: err.Error(), Err: err}
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			upErr.StatusCode = apiErr.Code
			upErr.Details = apiErr.Message
		}
		return domain.AnalysisResult{}, upErr
	}

	return ParseAnalysis(candidateText(result)), nil
}

func candidateText(result *genai.GenerateContentResponse) string {
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}
