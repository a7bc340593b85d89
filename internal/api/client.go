package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-chat-sync/internal/middleware"
	"github.com/noah-isme/gema-chat-sync/internal/observability"
	"github.com/noah-isme/gema-chat-sync/internal/utils"
)

const defaultTimeout = 10 * time.Second

// CredentialSource yields the bearer attached to every authenticated call.
type CredentialSource interface {
	Current(ctx context.Context) (string, error)
}

// Client talks to the chat REST collaborator.
type Client struct {
	baseURL     *url.URL
	http        *http.Client
	credentials CredentialSource
	logger      zerolog.Logger
	tracer      trace.Tracer
}

// NewClient builds a client rooted at baseURL. A nil httpClient gets a default with a
// ten second timeout.
func NewClient(baseURL string, httpClient *http.Client, credentials CredentialSource, logger zerolog.Logger) (*Client, error) {
	parsed, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("api base url %q must be absolute", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	return &Client{
		baseURL:     parsed,
		http:        httpClient,
		credentials: credentials,
		logger:      logger.With().Str("component", "chat_api_client").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/gema-chat-sync/internal/api"),
	}, nil
}

type call struct {
	operation   string
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
	bearer      string
}

func jsonCall(operation, method, path string, payload interface{}) (call, error) {
	c := call{operation: operation, method: method, path: path}
	if payload == nil {
		return c, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return c, fmt.Errorf("%s: encode request: %w", operation, err)
	}
	c.body = bytes.NewReader(data)
	c.contentType = "application/json"
	return c, nil
}

func (c *Client) doJSON(ctx context.Context, operation, method, path string, payload, out interface{}) error {
	request, err := jsonCall(operation, method, path, payload)
	if err != nil {
		return err
	}
	return c.do(ctx, request, out)
}

func (c *Client) do(ctx context.Context, request call, out interface{}) error {
	ctx, span := c.tracer.Start(ctx, "chatapi."+request.operation)
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", request.method),
		attribute.String("chatapi.path", request.path),
	)

	target := *c.baseURL
	target.Path = target.Path + request.path
	if len(request.query) > 0 {
		target.RawQuery = request.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, request.method, target.String(), request.body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", request.operation, err)
	}
	req.Header.Set("Accept", "application/json")
	if request.contentType != "" {
		req.Header.Set("Content-Type", request.contentType)
	}

	_, correlationID := middleware.EnsureCorrelation(ctx)
	req.Header.Set(middleware.HeaderCorrelationID, correlationID)

	bearer := request.bearer
	if bearer == "" && c.credentials != nil {
		bearer, err = c.credentials.Current(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "credential unavailable")
			return fmt.Errorf("%s: %w", request.operation, err)
		}
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		observability.ObserveRESTCall(request.operation, 0, started)
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		c.logger.Warn().Err(err).Str("operation", request.operation).Str("correlation_id", correlationID).Msg("chat api request failed")
		return fmt.Errorf("%s: %w", request.operation, err)
	}
	defer resp.Body.Close()

	observability.ObserveRESTCall(request.operation, resp.StatusCode, started)
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode >= http.StatusBadRequest {
		envelope, _ := utils.DecodeEnvelope(resp.Body, nil)
		apiErr := &Error{Operation: request.operation, Status: resp.StatusCode, Message: envelope.Message}
		span.RecordError(apiErr)
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
		c.logger.Warn().
			Str("operation", request.operation).
			Int("status", resp.StatusCode).
			Str("correlation_id", correlationID).
			Msg("chat api returned error")
		return apiErr
	}

	if resp.StatusCode == http.StatusNoContent || out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	envelope, err := utils.DecodeEnvelope(resp.Body, out)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode failed")
		return fmt.Errorf("%s: %w", request.operation, err)
	}
	if !envelope.Success {
		return &Error{Operation: request.operation, Status: resp.StatusCode, Message: envelope.Message}
	}

	span.SetStatus(codes.Ok, "completed")
	return nil
}

func escape(segment string) string {
	return url.PathEscape(strings.TrimSpace(segment))
}
