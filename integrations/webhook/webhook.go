package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"drinktab/core"
)

// Sink posts domain events to configured HTTP endpoints, retrying failed
// deliveries with exponential backoff.
// It is synchronous; register it on an async event bus to keep purchases fast.
type Sink struct {
	client     *http.Client
	endpoints  []string
	maxRetries uint64
	interval   time.Duration
	types      map[core.EventType]struct{}
	log        *slog.Logger
}

// Option configures a Sink.
type Option func(*Sink)

// WithClient overrides the HTTP client (defaults to 2s timeout).
func WithClient(c *http.Client) Option {
	return func(s *Sink) {
		if c != nil {
			s.client = c
		}
	}
}

// WithMaxRetries bounds the retries after the first attempt.
func WithMaxRetries(n int) Option {
	return func(s *Sink) {
		if n >= 0 {
			s.maxRetries = uint64(n)
		}
	}
}

// WithInitialInterval sets the first backoff delay.
func WithInitialInterval(d time.Duration) Option {
	return func(s *Sink) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithEventTypes restricts delivery to the given types; all types are sent by default.
func WithEventTypes(types ...core.EventType) Option {
	return func(s *Sink) {
		s.types = make(map[core.EventType]struct{}, len(types))
		for _, t := range types {
			s.types[t] = struct{}{}
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Sink) {
		if l != nil {
			s.log = l
		}
	}
}

// New creates a webhook sink.
func New(endpoints []string, opts ...Option) *Sink {
	s := &Sink{
		client:     &http.Client{Timeout: 2 * time.Second},
		maxRetries: 3,
		interval:   200 * time.Millisecond,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.endpoints = append([]string{}, endpoints...)
	return s
}

// Handle adapts the sink to the event bus handler signature.
func (s *Sink) Handle(ctx context.Context, e core.Event) {
	s.deliver(ctx, e)
}

// OnEvent posts the event JSON to all endpoints.
func (s *Sink) OnEvent(e core.Event) {
	s.deliver(context.Background(), e)
}

func (s *Sink) deliver(ctx context.Context, e core.Event) {
	if len(s.endpoints) == 0 {
		return
	}
	if s.types != nil {
		if _, ok := s.types[e.Type]; !ok {
			return
		}
	}
	body, err := json.Marshal(e)
	if err != nil {
		s.log.Error("webhook encode failed", "event", e.ID, "error", err)
		return
	}
	for _, ep := range s.endpoints {
		if err := s.post(ctx, ep, body); err != nil {
			s.log.Error("webhook delivery failed", "endpoint", ep, "event", e.ID, "type", e.Type, "error", err)
		}
	}
}

func (s *Sink) post(ctx context.Context, endpoint string, body []byte) error {
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := s.client.Do(req)
		if err != nil {
			return err
		}
		_ = resp.Body.Close()
		switch {
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("endpoint returned %d", resp.StatusCode)
		case resp.StatusCode >= 400:
			return backoff.Permanent(fmt.Errorf("endpoint returned %d", resp.StatusCode))
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.interval
	return backoff.RetryNotify(
		operation,
		backoff.WithContext(backoff.WithMaxRetries(b, s.maxRetries), ctx),
		func(err error, d time.Duration) {
			s.log.Warn("webhook attempt failed", "endpoint", endpoint, "error", err, "backoff", d)
		},
	)
}
