package alertengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
)

// SinkFunc adapts a plain function to the Sink interface.
type SinkFunc func(ctx context.Context, f Firing) error

func (fn SinkFunc) Deliver(ctx context.Context, f Firing) error { return fn(ctx, f) }

// LogSink writes firings to the process log. Always configured.
type LogSink struct{}

func (LogSink) Deliver(ctx context.Context, f Firing) error {
	log.Printf("[notify] alert %d fired: %s %s %g (value=%g)",
		f.AlertID, f.Metric, f.Condition, f.Threshold, f.Value)
	return nil
}

// WebhookSink POSTs each firing as JSON to an HTTP endpoint.
type WebhookSink struct {
	url    string
	client *http.Client
}

// NewWebhookSink creates a webhook sink for the given endpoint.
func NewWebhookSink(url string) *WebhookSink {
	return &WebhookSink{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (w *WebhookSink) Deliver(ctx context.Context, f Firing) error {
	body, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("webhook: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// RedisSink publishes firings to a Redis channel so other services can
// subscribe to the alert stream.
type RedisSink struct {
	client  *redis.Client
	channel string
}

// NewRedisSink creates a Redis pub/sub sink. Channel defaults to
// "pairstream:alerts" when empty.
func NewRedisSink(client *redis.Client, channel string) *RedisSink {
	if channel == "" {
		channel = "pairstream:alerts"
	}
	return &RedisSink{client: client, channel: channel}
}

func (r *RedisSink) Deliver(ctx context.Context, f Firing) error {
	body, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("redis sink: marshal: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, body).Err(); err != nil {
		return fmt.Errorf("redis sink: publish: %w", err)
	}
	return nil
}
