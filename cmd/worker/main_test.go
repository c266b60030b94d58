package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"gazette-monitor/internal/monitor"
	"gazette-monitor/internal/portal"
	"gazette-monitor/internal/queue"
)

type fakeSQS struct {
	deleted []string
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	return &sqs.ReceiveMessageOutput{}, nil
}

func (f *fakeSQS) DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.deleted = append(f.deleted, aws.ToString(params.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

type fakeRunner struct {
	mu   sync.Mutex
	err  error
	runs []monitor.RunOptions
}

func (f *fakeRunner) Run(ctx context.Context, opts monitor.RunOptions) (monitor.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, opts)
	return monitor.Result{RunID: "run-1", Status: "notified"}, f.err
}

func (f *fakeRunner) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.runs)
}

func sqsMessage(t *testing.T, id string, msg queue.Message) sqstypes.Message {
	t.Helper()
	body, err := queue.EncodeMessage(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return sqstypes.Message{
		MessageId:     aws.String(id),
		ReceiptHandle: aws.String("r-" + id),
		Body:          aws.String(string(body)),
		Attributes:    map[string]string{"ApproximateReceiveCount": "1"},
	}
}

func TestWorkerDeletesMessageOnSuccess(t *testing.T) {
	client := &fakeSQS{}
	runner := &fakeRunner{}
	msg := sqsMessage(t, "m1", queue.NewMessage("req-1", true, false))

	handleMessage(context.Background(), client, "queue", runner, msg)

	if len(client.deleted) != 1 {
		t.Fatalf("expected delete, got %d", len(client.deleted))
	}
	if len(runner.runs) != 1 || !runner.runs[0].Force || runner.runs[0].RequestID != "req-1" {
		t.Fatalf("unexpected runs %+v", runner.runs)
	}
}

func TestWorkerKeepsMessageOnRetryableFailure(t *testing.T) {
	client := &fakeSQS{}
	runner := &fakeRunner{err: &monitor.StageError{Stage: monitor.StageLocate, Err: portal.ErrNoEdition}}
	msg := sqsMessage(t, "m2", queue.NewMessage("req-2", false, false))

	handleMessage(context.Background(), client, "queue", runner, msg)

	if len(client.deleted) != 0 {
		t.Fatalf("expected no delete, got %d", len(client.deleted))
	}
}

func TestWorkerDeletesOnUnrecoverableFailure(t *testing.T) {
	client := &fakeSQS{}
	runner := &fakeRunner{err: &monitor.StageError{Stage: monitor.StageDownload, Err: portal.ErrInvalidPDF}}
	msg := sqsMessage(t, "m3", queue.NewMessage("req-3", false, false))

	handleMessage(context.Background(), client, "queue", runner, msg)

	if len(client.deleted) != 1 {
		t.Fatalf("expected delete, got %d", len(client.deleted))
	}
}

func TestWorkerDeletesOnInvalidJSON(t *testing.T) {
	client := &fakeSQS{}
	runner := &fakeRunner{}
	msg := sqstypes.Message{
		MessageId:     aws.String("m4"),
		ReceiptHandle: aws.String("r4"),
		Body:          aws.String("{bad-json"),
	}

	handleMessage(context.Background(), client, "queue", runner, msg)

	if len(client.deleted) != 1 {
		t.Fatalf("expected delete, got %d", len(client.deleted))
	}
	if len(runner.runs) != 0 {
		t.Fatalf("runner should not be called")
	}
}

func TestWorkerSkipsDeleteWithoutReceipt(t *testing.T) {
	client := &fakeSQS{}
	msg := sqsMessage(t, "m5", queue.NewMessage("req-5", false, false))
	msg.ReceiptHandle = nil

	handleMessage(context.Background(), client, "queue", &fakeRunner{}, msg)

	if len(client.deleted) != 0 {
		t.Fatalf("expected no delete call")
	}
}

func TestRunTickerRunsImmediatelyAndStops(t *testing.T) {
	runner := &fakeRunner{err: errors.New("boom")}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		runTicker(ctx, runner, time.Hour)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for runner.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("ticker did not stop")
	}
	if runner.count() != 1 {
		t.Fatalf("expected one scheduled run, got %d", runner.count())
	}
	if got := runner.runs[0].RequestID; len(got) < 6 || got[:5] != "tick-" {
		t.Fatalf("unexpected request id %q", got)
	}
}

func TestReceiveCount(t *testing.T) {
	msg := sqstypes.Message{Attributes: map[string]string{"ApproximateReceiveCount": "3"}}
	if got := receiveCount(msg); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
	if got := receiveCount(sqstypes.Message{}); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

type failingSQS struct {
	fakeSQS
	mu    sync.Mutex
	calls int
}

func (f *failingSQS) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return nil, errors.New("service unavailable")
}

func TestPollBacksOffAfterReceiveError(t *testing.T) {
	old := receiveBackoff
	receiveBackoff = 50 * time.Millisecond
	t.Cleanup(func() { receiveBackoff = old })

	client := &failingSQS{}
	ctx, cancel := context.WithTimeout(context.Background(), 175*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		poll(ctx, client, "q", &fakeRunner{}, 30)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("poll did not stop after cancellation")
	}

	client.mu.Lock()
	defer client.mu.Unlock()
	if client.calls < 2 || client.calls > 5 {
		t.Fatalf("expected a few spaced receive attempts, got %d", client.calls)
	}
}
