package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"gazette-monitor/internal/bootstrap"
	"gazette-monitor/internal/monitor"
	"gazette-monitor/internal/shared/config"
	"gazette-monitor/internal/shared/metrics"
	"gazette-monitor/internal/shared/telemetry"
	"gazette-monitor/internal/workerproc"
)

const (
	defaultSQSRegion          = "us-east-1"
	defaultVisibilitySeconds  = 900
	defaultShutdownTimeoutSec = 60
)

// receiveBackoff is the pause after a failed ReceiveMessage.
var receiveBackoff = 5 * time.Second

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(cfg)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}
	defer app.Close()

	if cfg.QueueURL == "" {
		if cfg.MonitorInterval <= 0 {
			log.Fatal("SQS_QUEUE_URL or MONITOR_INTERVAL is required")
		}
		log.Printf("worker started interval=%s", cfg.MonitorInterval)
		runTicker(ctx, app.Monitor, cfg.MonitorInterval)
		return
	}

	region := cfg.AWSRegion
	if region == "" {
		region = defaultSQSRegion
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}
	var sqsClient sqsAPI = sqs.NewFromConfig(awsCfg)

	visibilitySeconds := envInt("SQS_VISIBILITY_TIMEOUT_SECONDS", defaultVisibilitySeconds)
	shutdownTimeout := time.Duration(envInt("SHUTDOWN_TIMEOUT_SECONDS", defaultShutdownTimeoutSec)) * time.Second

	log.Printf("worker started queue=%s visibility=%ds", cfg.QueueURL, visibilitySeconds)

	// Runs are sequential, so at most one message is received and handled at a time.
	done := make(chan struct{})
	go func() {
		defer close(done)
		poll(ctx, sqsClient, cfg.QueueURL, app.Monitor, visibilitySeconds)
	}()

	<-ctx.Done()
	log.Printf("shutdown requested, waiting up to %s for the in-flight run", shutdownTimeout)
	select {
	case <-done:
	case <-time.After(shutdownTimeout):
		log.Printf("shutdown timeout reached; exiting with a run in flight")
	}
}

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

func poll(ctx context.Context, client sqsAPI, queueURL string, runner workerproc.Runner, visibilitySeconds int) {
	for ctx.Err() == nil {
		resp, err := client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(queueURL),
			MaxNumberOfMessages: 1,
			WaitTimeSeconds:     20,
			VisibilityTimeout:   int32(visibilitySeconds),
			MessageSystemAttributeNames: []sqstypes.MessageSystemAttributeName{
				sqstypes.MessageSystemAttributeNameApproximateReceiveCount,
			},
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				return
			}
			telemetry.Warn("worker.receive.failed", map[string]any{"error": err.Error(), "backoff_ms": receiveBackoff.Milliseconds()})
			select {
			case <-ctx.Done():
				return
			case <-time.After(receiveBackoff):
			}
			continue
		}
		for _, msg := range resp.Messages {
			metrics.IncRunJobsReceived()
			// The run itself outlives a shutdown signal so the record is left consistent.
			handleMessage(context.WithoutCancel(ctx), client, queueURL, runner, msg)
		}
	}
}

func runTicker(ctx context.Context, runner workerproc.Runner, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		runScheduled(ctx, runner)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func runScheduled(ctx context.Context, runner workerproc.Runner) {
	requestID := "tick-" + uuid.NewString()
	res, err := runner.Run(ctx, monitor.RunOptions{RequestID: requestID})
	if err != nil {
		telemetry.Error("worker.tick.failed", map[string]any{
			"request_id": requestID,
			"run_id":     res.RunID,
			"stage":      monitor.StageOf(err),
			"error":      err.Error(),
		})
		return
	}
	telemetry.Info("worker.tick.completed", map[string]any{
		"request_id": requestID,
		"run_id":     res.RunID,
		"status":     res.Status,
		"skipped":    res.Skipped,
	})
}

func handleMessage(ctx context.Context, client sqsAPI, queueURL string, runner workerproc.Runner, msg sqstypes.Message) {
	decoded, meta, err := workerproc.ParseMessage(aws.ToString(msg.Body))
	if err != nil {
		fields := baseFields(msg, decoded.RequestID)
		fields["body_len"] = meta.BodyLen
		if meta.BodySHA != "" {
			fields["body_sha256"] = meta.BodySHA
		}
		event := "worker.run.decode_failed"
		switch e := err.(type) {
		case workerproc.ErrEmptyBody:
			event = "worker.run.empty_body"
		case workerproc.ErrDecode:
			fields["error"] = e.Err.Error()
		case workerproc.ErrMissingRequestID:
			event = "worker.run.missing_id"
		case workerproc.ErrUnsupportedVersion:
			event = "worker.run.unsupported_version"
			fields["version"] = e.Version
		default:
			fields["error"] = err.Error()
		}
		telemetry.Error(event, fields)
		if deleteMessage(ctx, client, queueURL, msg, decoded.RequestID) {
			metrics.IncRunJobsDeletedUnrecoverable()
		}
		return
	}

	telemetry.Info("worker.run.received", baseFields(msg, decoded.RequestID))

	res, err := workerproc.HandleMessage(workerproc.WithParsedMessage(ctx, decoded), runner, "")
	if err != nil {
		fields := baseFields(msg, decoded.RequestID)
		fields["run_id"] = res.RunID
		fields["error"] = err.Error()
		var procErr workerproc.ErrProcess
		if errors.As(err, &procErr) {
			fields["stage"] = procErr.Stage
			fields["retryable"] = procErr.Retryable
		}
		telemetry.Error("worker.run.failed", fields)
		if workerproc.Unrecoverable(err) && deleteMessage(ctx, client, queueURL, msg, decoded.RequestID) {
			metrics.IncRunJobsDeletedUnrecoverable()
		}
		return
	}

	if deleteMessage(ctx, client, queueURL, msg, decoded.RequestID) {
		fields := baseFields(msg, decoded.RequestID)
		fields["run_id"] = res.RunID
		fields["status"] = res.Status
		fields["skipped"] = res.Skipped
		telemetry.Info("worker.run.completed", fields)
	}
}

func deleteMessage(ctx context.Context, client sqsAPI, queueURL string, msg sqstypes.Message, requestID string) bool {
	receipt := aws.ToString(msg.ReceiptHandle)
	if receipt == "" {
		fields := baseFields(msg, requestID)
		fields["error"] = "missing receipt handle"
		telemetry.Error("worker.run.delete_failed", fields)
		return false
	}
	if _, err := client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueURL),
		ReceiptHandle: aws.String(receipt),
	}); err != nil {
		fields := baseFields(msg, requestID)
		fields["error"] = err.Error()
		telemetry.Error("worker.run.delete_failed", fields)
		return false
	}
	return true
}

func baseFields(msg sqstypes.Message, requestID string) map[string]any {
	fields := map[string]any{
		"sqs_message_id": aws.ToString(msg.MessageId),
		"receive_count":  receiveCount(msg),
	}
	if strings.TrimSpace(requestID) != "" {
		fields["request_id"] = requestID
	}
	return fields
}

func receiveCount(msg sqstypes.Message) int {
	raw := msg.Attributes[string(sqstypes.MessageSystemAttributeNameApproximateReceiveCount)]
	if raw == "" {
		return 0
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return parsed
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return val
}
