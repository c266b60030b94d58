package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=arm64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"

	"gazette-monitor/internal/bootstrap"
	"gazette-monitor/internal/shared/config"
	"gazette-monitor/internal/shared/server/respond"
	"gazette-monitor/internal/shared/telemetry"
)

type proxy interface {
	ProxyWithContext(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error)
}

// gateway builds the HTTP app on the first invocation and reuses it for warm starts.
type gateway struct {
	build func() (proxy, error)

	once  sync.Once
	proxy proxy
	err   error
}

func buildProxy() (proxy, error) {
	app, err := bootstrap.Build(config.Load())
	if err != nil {
		return nil, err
	}
	return ginadapter.NewV2(app.Router), nil
}

func (g *gateway) handle(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	g.once.Do(func() {
		g.proxy, g.err = g.build()
		if g.err != nil {
			telemetry.Error("lambda.bootstrap.failed", map[string]any{"error": g.err.Error()})
		}
	})
	if g.err != nil {
		// Returning the error as well makes Lambda recycle the broken environment.
		return errorResponse(http.StatusInternalServerError, "bootstrap_failed", "Service failed to start"), g.err
	}
	return g.proxy.ProxyWithContext(ctx, req)
}

func errorResponse(status int, code, message string) events.APIGatewayV2HTTPResponse {
	body, _ := json.Marshal(respond.ErrorResponse{Error: respond.ErrorBody{Code: code, Message: message}})
	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Body:       string(body),
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

func main() {
	gw := &gateway{build: buildProxy}
	lambda.Start(gw.handle)
}
