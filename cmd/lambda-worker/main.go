package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=amd64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-worker

import (
	"context"
	"log"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"gazette-monitor/internal/bootstrap"
	"gazette-monitor/internal/shared/config"
	"gazette-monitor/internal/shared/metrics"
	"gazette-monitor/internal/shared/telemetry"
	"gazette-monitor/internal/workerproc"
)

var (
	initOnce sync.Once
	initErr  error
	runner   workerproc.Runner
)

func initApp() {
	cfg := config.Load()
	built, err := bootstrap.Build(cfg)
	if err != nil {
		initErr = err
		return
	}
	runner = built.Monitor
}

func handler(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	initOnce.Do(initApp)
	if initErr != nil {
		log.Printf("bootstrap error: %v", initErr)
		failures := make([]events.SQSBatchItemFailure, 0, len(event.Records))
		for _, record := range event.Records {
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
		return events.SQSEventResponse{BatchItemFailures: failures}, initErr
	}
	return handleBatch(ctx, runner, event), nil
}

// handleBatch reports retryable failures back to SQS; unrecoverable messages are dropped.
func handleBatch(ctx context.Context, r workerproc.Runner, event events.SQSEvent) events.SQSEventResponse {
	failures := make([]events.SQSBatchItemFailure, 0)
	for _, record := range event.Records {
		metrics.IncRunJobsReceived()
		res, err := workerproc.HandleMessage(ctx, r, record.Body)
		if err == nil {
			telemetry.Info("worker.run.completed", map[string]any{
				"sqs_message_id": record.MessageId,
				"run_id":         res.RunID,
				"status":         res.Status,
			})
			continue
		}
		telemetry.Error("worker.run.failed", map[string]any{
			"sqs_message_id": record.MessageId,
			"run_id":         res.RunID,
			"error":          err.Error(),
		})
		if workerproc.Unrecoverable(err) {
			metrics.IncRunJobsDeletedUnrecoverable()
			continue
		}
		failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
	}
	return events.SQSEventResponse{BatchItemFailures: failures}
}

func main() {
	lambda.Start(handler)
}
