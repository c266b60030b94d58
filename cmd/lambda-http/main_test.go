package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"testing"

	"github.com/aws/aws-lambda-go/events"

	"gazette-monitor/internal/shared/telemetry"
)

type fakeProxy struct {
	calls int
}

func (f *fakeProxy) ProxyWithContext(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	f.calls++
	return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusOK, Body: req.RawPath}, nil
}

func TestGatewayBuildsOnce(t *testing.T) {
	builds := 0
	fp := &fakeProxy{}
	gw := &gateway{build: func() (proxy, error) {
		builds++
		return fp, nil
	}}

	for i := 0; i < 3; i++ {
		resp, err := gw.handle(context.Background(), events.APIGatewayV2HTTPRequest{RawPath: "/api/v1/health"})
		if err != nil || resp.StatusCode != http.StatusOK || resp.Body != "/api/v1/health" {
			t.Fatalf("unexpected response %+v err=%v", resp, err)
		}
	}
	if builds != 1 || fp.calls != 3 {
		t.Fatalf("expected 1 build and 3 proxied calls, got %d and %d", builds, fp.calls)
	}
}

func TestGatewayBootstrapFailure(t *testing.T) {
	var buf bytes.Buffer
	telemetry.SetOutput(&buf)
	t.Cleanup(func() { telemetry.SetOutput(os.Stdout) })

	boom := errors.New("DATABASE_URL is required")
	gw := &gateway{build: func() (proxy, error) { return nil, boom }}

	resp, err := gw.handle(context.Background(), events.APIGatewayV2HTTPRequest{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected bootstrap error, got %v", err)
	}
	if resp.StatusCode != http.StatusInternalServerError || !strings.Contains(resp.Body, `"code":"bootstrap_failed"`) {
		t.Fatalf("unexpected response %+v", resp)
	}
	if strings.Contains(resp.Body, "DATABASE_URL") {
		t.Fatalf("bootstrap detail leaked into response: %s", resp.Body)
	}
	if !strings.Contains(buf.String(), "lambda.bootstrap.failed") {
		t.Fatalf("expected bootstrap log, got %s", buf.String())
	}
}
