package services

import (
	"errors"
	"fmt"
)

var (
	ErrAPIKeyMissing     = errors.New("api key is not configured")
	ErrEmptyText         = errors.New("empty text")
	ErrTranscriptTimeout = errors.New("timed out waiting for transcript")
)

// Upstream operations, used to label errors.
const (
	OpUpload  = "upload"
	OpCreate  = "create transcription"
	OpAnalyze = "analyze"
)

// UpstreamError is a non-2xx answer from a provider, or a transport failure
// (StatusCode 0). Details carries what gets surfaced to the caller.
type UpstreamError struct {
	Op         string
	StatusCode int
	Body       string
	Details    any
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s failed: status %d body %s", e.Op, e.StatusCode, truncate([]byte(e.Body), 200))
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// ProtocolError means a provider answered 2xx but without a field we need.
type ProtocolError struct {
	Op      string
	Field   string
	Details any
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: response has no %s", e.Op, e.Field)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
