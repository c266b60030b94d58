package monitor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gazette-monitor/internal/llm"
	"gazette-monitor/internal/portal"
	"gazette-monitor/internal/shared/util"
)

const (
	StageLocate    = "locate"
	StageDownload  = "download"
	StageStore     = "store"
	StageExtract   = "extract"
	StageSummarize = "summarize"
	StageNotify    = "notify"
	StageRecord    = "record"
)

// StageError identifies the pipeline stage a run failed in.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(stage string, err error) error {
	return &StageError{Stage: stage, Err: err}
}

// StageOf returns the failing stage of err, or "" when err is not a StageError.
func StageOf(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// Retryable reports whether running again later may succeed.
// Portal and network trouble is retryable; a malformed edition is not.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, portal.ErrInvalidPDF) || errors.Is(err, portal.ErrEditionID) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	switch StageOf(err) {
	case StageLocate, StageDownload, StageStore, StageNotify, StageRecord:
		return true
	case StageSummarize:
		return llm.ShouldRetry(err)
	default:
		return false
	}
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 500
	return util.TruncateUTF8(msg, maxLen)
}
