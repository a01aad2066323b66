package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/runnelhq/runnel/pkg/log"
)

// ErrInvalidRecipient is permanent: retrying the same recipient cannot
// succeed, so the dispatcher dead-letters instead of retrying.
var ErrInvalidRecipient = errors.New("notify: invalid recipient")

// Sink delivers one formatted message to a recipient. Implementations
// return ErrInvalidRecipient for unroutable recipients and plain errors for
// transient delivery failures.
type Sink interface {
	Deliver(ctx context.Context, recipient, message string) error
}

// ConsoleSink logs deliveries. It is the default sink for development and
// the reference behavior for tests.
type ConsoleSink struct {
	logger log.Logger
}

// NewConsoleSink builds a console sink.
func NewConsoleSink(logger log.Logger) *ConsoleSink {
	if logger == nil {
		logger = log.NewLogger()
	}
	return &ConsoleSink{logger: logger.WithComponent("notify.console")}
}

// Deliver implements Sink.
func (s *ConsoleSink) Deliver(_ context.Context, recipient, message string) error {
	if recipient == "" {
		return ErrInvalidRecipient
	}
	s.logger.Info("notification", log.Str("recipient", recipient), log.Str("message", message))
	return nil
}

// WebhookSink POSTs deliveries as JSON to a fixed URL.
type WebhookSink struct {
	url    string
	client *http.Client
}

// NewWebhookSink builds a webhook sink. timeout bounds each request.
func NewWebhookSink(url string, timeout time.Duration) *WebhookSink {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookSink{url: url, client: &http.Client{Timeout: timeout}}
}

type webhookBody struct {
	Recipient string `json:"recipient"`
	Message   string `json:"message"`
}

// Deliver implements Sink. 2xx succeeds, 400/404/422 are treated as an
// unroutable recipient, everything else is transient.
func (s *WebhookSink) Deliver(ctx context.Context, recipient, message string) error {
	if recipient == "" {
		return ErrInvalidRecipient
	}
	body, err := json.Marshal(webhookBody{Recipient: recipient, Message: message})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: webhook post: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusBadRequest,
		resp.StatusCode == http.StatusNotFound,
		resp.StatusCode == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: webhook rejected recipient %q (%d)", ErrInvalidRecipient, recipient, resp.StatusCode)
	default:
		return fmt.Errorf("notify: webhook status %d", resp.StatusCode)
	}
}
