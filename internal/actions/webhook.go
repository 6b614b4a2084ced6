package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/convohq/playbook/internal/expressions"
	"github.com/convohq/playbook/pkg/schema"
)

const defaultWebhookTimeout = 10 * time.Second

// WebhookAction implements the "webhook" action. It POSTs the execution's
// variable map as the JSON body to the configured URL. Delivery failures are
// logged and swallowed so a dead endpoint never stalls a conversation.
//
// An optional "payload_filter" param holds a jq expression that reshapes the
// variable map before delivery.
type WebhookAction struct {
	client *http.Client
	jq     expressions.Engine
	logger *slog.Logger
}

// NewWebhookAction creates a webhook action. A nil client gets a default with
// a 10s timeout.
func NewWebhookAction(client *http.Client, jq expressions.Engine, logger *slog.Logger) *WebhookAction {
	if client == nil {
		client = &http.Client{Timeout: defaultWebhookTimeout}
	}
	return &WebhookAction{client: client, jq: jq, logger: logger}
}

func (a *WebhookAction) Name() string { return string(schema.ActionWebhook) }

func (a *WebhookAction) Validate(params map[string]any) error {
	if stringParam(params, "url", "") == "" {
		return schema.NewError(schema.ErrCodeValidation, "webhook: missing required param 'url'")
	}
	return nil
}

func (a *WebhookAction) Execute(ctx context.Context, input ActionInput) error {
	url := stringParam(input.Params, "url", "")
	if url == "" {
		a.logger.WarnContext(ctx, "webhook: no url configured, skipping")
		return nil
	}

	payload := a.buildPayload(ctx, input)

	body, err := json.Marshal(payload)
	if err != nil {
		a.logger.ErrorContext(ctx, "webhook: payload marshal failed", slog.String("error", err.Error()))
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		a.logger.ErrorContext(ctx, "webhook: request build failed",
			slog.String("url", url),
			slog.String("error", err.Error()))
		return nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		a.logger.WarnContext(ctx, "webhook: delivery failed",
			slog.String("url", url),
			slog.String("error", err.Error()))
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		a.logger.WarnContext(ctx, "webhook: non-success response",
			slog.String("url", url),
			slog.Int("status", resp.StatusCode))
		return nil
	}

	a.logger.InfoContext(ctx, "webhook delivered",
		slog.String("url", url),
		slog.Int("status", resp.StatusCode))
	return nil
}

// buildPayload converts the variable map into the delivery body, optionally
// reshaped through a jq payload_filter.
func (a *WebhookAction) buildPayload(ctx context.Context, input ActionInput) any {
	payload := make(map[string]any, len(input.Variables))
	for name, value := range input.Variables {
		payload[name] = value
	}

	filter := stringParam(input.Params, "payload_filter", "")
	if filter == "" || a.jq == nil {
		return payload
	}

	out, err := a.jq.Evaluate(ctx, filter, payload)
	if err != nil {
		a.logger.WarnContext(ctx, "webhook: payload_filter failed, sending unfiltered payload",
			slog.String("filter", filter),
			slog.String("error", err.Error()))
		return payload
	}
	return out
}
