// Package main implements the API Gateway Lambda entrypoint for the
// mail bridge. It exposes the same tool catalogue as the stdio server
// through a single POST endpoint.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/jarrod-lowe/jmap-service-libs/jmaperror"
	"github.com/jarrod-lowe/jmap-service-libs/logging"
	"github.com/jarrod-lowe/jmap-service-libs/plugincontract"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-lambda-go/otellambda"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-lambda-go/otellambda/xrayconfig"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"

	"github.com/jarrod-lowe/jmap-mail-bridge/internal/bridge"
	"github.com/jarrod-lowe/jmap-mail-bridge/internal/config"
	"github.com/jarrod-lowe/jmap-mail-bridge/internal/mailops"
	"github.com/jarrod-lowe/jmap-mail-bridge/internal/session"
	"github.com/jarrod-lowe/jmap-mail-bridge/internal/summary"
	"github.com/jarrod-lowe/jmap-mail-bridge/internal/transport"
)

var logger = logging.New()

// toolRequest is the POST body: one tool invocation.
type toolRequest struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args"`
}

type toolResponse struct {
	Text string `json:"text"`
}

type handler struct {
	bridge *bridge.Bridge
}

func newHandler(b *bridge.Bridge) *handler {
	return &handler{bridge: b}
}

// handle processes one tool invocation request.
func (h *handler) handle(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	var req toolRequest
	if err := json.Unmarshal([]byte(request.Body), &req); err != nil {
		return errorResponse(http.StatusBadRequest, jmaperror.InvalidArguments("request body must be JSON")), nil
	}
	if req.Tool == "" {
		return errorResponse(http.StatusBadRequest, jmaperror.InvalidArguments("tool field is required")), nil
	}

	text, err := h.bridge.Dispatch(ctx, req.Tool, plugincontract.Args(req.Args))
	if err != nil {
		var methodErr *jmaperror.MethodError
		if errors.As(err, &methodErr) {
			status := http.StatusInternalServerError
			switch methodErr.ErrType {
			case "unknownMethod", "invalidArguments":
				status = http.StatusBadRequest
			}
			return errorResponse(status, methodErr), nil
		}
		return errorResponse(http.StatusInternalServerError, jmaperror.ServerFail(err.Error(), err)), nil
	}

	body, err := json.Marshal(toolResponse{Text: text})
	if err != nil {
		return errorResponse(http.StatusInternalServerError, jmaperror.ServerFail(err.Error(), err)), nil
	}
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}, nil
}

// errorResponse renders a jmaperror.MethodError as an HTTP response.
func errorResponse(status int, methodErr *jmaperror.MethodError) events.APIGatewayProxyResponse {
	body, err := json.Marshal(methodErr.ToMap())
	if err != nil {
		body = []byte(`{"type":"serverFail"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}
}

func main() {
	ctx := context.Background()

	tp, err := xrayconfig.NewTracerProvider(ctx)
	if err != nil {
		logger.Error("FATAL: Failed to initialize tracer provider", slog.String("error", err.Error()))
		panic(err)
	}
	otel.SetTracerProvider(tp)

	cfg, err := config.Load(os.Getenv("MAIL_BRIDGE_CONFIG"))
	if err != nil {
		logger.Error("FATAL: Failed to load config", slog.String("error", err.Error()))
		panic(err)
	}

	httpClient := &http.Client{
		Timeout:   30 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	tc := transport.NewClient(httpClient, transport.Config{
		APIURL:            cfg.APIURL,
		SessionURL:        cfg.SessionURL,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
	})
	store := session.NewStore(tc)
	mail := mailops.NewClient(tc, store, logger)

	if token := os.Getenv(config.TokenEnvVar); token != "" {
		if _, err := store.Configure(ctx, token, cfg.AccountID); err != nil {
			logger.Error("FATAL: Token rejected", slog.String("error", err.Error()))
			panic(err)
		}
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		logger.Error("FATAL: Failed to load AWS config", slog.String("error", err.Error()))
		panic(err)
	}
	otelaws.AppendMiddlewares(&awsCfg.APIOptions)
	digester := summary.NewDigester(bedrockruntime.NewFromConfig(awsCfg), summary.Config{
		ModelID:   cfg.SummaryModelID,
		MaxLength: cfg.SummaryMaxLength,
	})

	h := newHandler(bridge.New(mail, digester, logger))
	lambda.Start(otellambda.InstrumentHandler(h.handle, xrayconfig.WithRecommendedOptions(tp)...))
}
