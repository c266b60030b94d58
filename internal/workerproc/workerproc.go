package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"gazette-monitor/internal/monitor"
	"gazette-monitor/internal/queue"
)

// Runner executes one monitor run.
type Runner interface {
	Run(ctx context.Context, opts monitor.RunOptions) (monitor.Result, error)
}

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{BodyLen: 0, BodySHA: ""}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

func (e ErrDecode) Unwrap() error { return e.Err }

// ErrMissingRequestID indicates a message without a request id.
type ErrMissingRequestID struct {
	Meta MessageMeta
}

func (e ErrMissingRequestID) Error() string { return "missing request id" }

// ErrUnsupportedVersion indicates a payload written by a newer producer.
type ErrUnsupportedVersion struct {
	Meta      MessageMeta
	RequestID string
	Version   int
}

func (e ErrUnsupportedVersion) Error() string { return "unsupported message version" }

// ErrProcess indicates the run failed after successful parsing.
type ErrProcess struct {
	RequestID string
	Stage     string
	Retryable bool
	Err       error
}

func (e ErrProcess) Error() string {
	if e.Err == nil {
		return "process run"
	}
	return "process run: " + e.Err.Error()
}

func (e ErrProcess) Unwrap() error { return e.Err }

// Unrecoverable reports whether redelivering the message cannot help.
func Unrecoverable(err error) bool {
	var (
		empty   ErrEmptyBody
		decode  ErrDecode
		missing ErrMissingRequestID
		version ErrUnsupportedVersion
		proc    ErrProcess
	)
	switch {
	case errors.As(err, &empty), errors.As(err, &decode), errors.As(err, &missing), errors.As(err, &version):
		return true
	case errors.As(err, &proc):
		return !proc.Retryable
	default:
		return false
	}
}

// ParseMessage validates and decodes the queue payload.
func ParseMessage(body string) (queue.Message, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return queue.Message{}, meta, ErrEmptyBody{Meta: meta}
	}

	msg, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return queue.Message{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	if strings.TrimSpace(msg.RequestID) == "" {
		return msg, meta, ErrMissingRequestID{Meta: meta}
	}
	if msg.Version > queue.MessageVersion {
		return msg, meta, ErrUnsupportedVersion{Meta: meta, RequestID: msg.RequestID, Version: msg.Version}
	}
	return msg, meta, nil
}

type parsedMessageKey struct{}

// WithParsedMessage stores a decoded message in the context for reuse.
func WithParsedMessage(ctx context.Context, msg queue.Message) context.Context {
	return context.WithValue(ctx, parsedMessageKey{}, msg)
}

func parsedMessageFromContext(ctx context.Context) (queue.Message, bool) {
	if ctx == nil {
		return queue.Message{}, false
	}
	msg, ok := ctx.Value(parsedMessageKey{}).(queue.Message)
	return msg, ok
}

// HandleMessage parses, validates, and runs the monitor for a message payload.
func HandleMessage(ctx context.Context, runner Runner, body string) (monitor.Result, error) {
	if runner == nil {
		return monitor.Result{}, errors.New("monitor service not configured")
	}

	msg, ok := parsedMessageFromContext(ctx)
	if !ok {
		var err error
		msg, _, err = ParseMessage(body)
		if err != nil {
			return monitor.Result{}, err
		}
	}

	res, err := runner.Run(ctx, monitor.RunOptions{
		Force:     msg.Force,
		DryRun:    msg.DryRun,
		RequestID: msg.RequestID,
	})
	if err != nil {
		return res, ErrProcess{
			RequestID: msg.RequestID,
			Stage:     monitor.StageOf(err),
			Retryable: monitor.Retryable(err),
			Err:       err,
		}
	}
	return res, nil
}
