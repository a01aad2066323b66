package notify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/runnelhq/runnel/internal/aggregate"
	"github.com/runnelhq/runnel/internal/dispatch"
	"github.com/runnelhq/runnel/internal/event"
)

type captureSink struct {
	mu       sync.Mutex
	messages []string
	failN    int
	calls    int
	err      error
}

func (s *captureSink) Deliver(_ context.Context, recipient, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failN {
		if s.err != nil {
			return s.err
		}
		return errors.New("downstream unavailable")
	}
	s.messages = append(s.messages, message)
	return nil
}

func alertEvent(t *testing.T, product string, value float64, closeMs int64) event.Event {
	t.Helper()
	a := aggregate.AlertEvent{
		ProductID:       product,
		ObservedValue:   value,
		Reason:          "LOW_STOCK",
		WindowCloseMs:   closeMs,
		WindowCloseTime: event.FormatTimestamp(closeMs),
	}
	payload, err := a.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	header := event.EncodeHeader(closeMs, map[string]string{
		event.HeaderKey:  product,
		event.HeaderType: aggregate.EventTypeAlert,
	})
	ev, err := event.Decode(0, 1, header, payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return ev
}

func TestDeliverFormatsMessage(t *testing.T) {
	sink := &captureSink{}
	h := NewHandler(sink, "ops@example.com", time.Minute, nil, nil)
	ev := alertEvent(t, "X", 5, 1700000060000)

	if err := h.Handle(context.Background(), []event.Event{ev}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(sink.messages) != 1 {
		t.Fatalf("messages = %d", len(sink.messages))
	}
	msg := sink.messages[0]
	if !strings.Contains(msg, "LOW_STOCK") || !strings.Contains(msg, "product X") {
		t.Fatalf("message = %q", msg)
	}
}

func TestRedeliveredAlertSuppressed(t *testing.T) {
	sink := &captureSink{}
	h := NewHandler(sink, "ops@example.com", time.Minute, nil, nil)
	ev := alertEvent(t, "X", 5, 1700000060000)

	for i := 0; i < 3; i++ {
		if err := h.Handle(context.Background(), []event.Event{ev}); err != nil {
			t.Fatalf("handle %d: %v", i, err)
		}
	}
	if len(sink.messages) != 1 {
		t.Fatalf("duplicate suppression failed: %d messages", len(sink.messages))
	}
}

func TestDistinctWindowsNotify(t *testing.T) {
	sink := &captureSink{}
	h := NewHandler(sink, "ops@example.com", time.Minute, nil, nil)
	batch := []event.Event{
		alertEvent(t, "X", 5, 1700000060000),
		alertEvent(t, "X", 4, 1700000120000),
	}
	if err := h.Handle(context.Background(), batch); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(sink.messages) != 2 {
		t.Fatalf("messages = %d, want one per window", len(sink.messages))
	}
}

func TestFailedDeliveryStaysEligible(t *testing.T) {
	sink := &captureSink{failN: 1}
	h := NewHandler(sink, "ops@example.com", time.Minute, nil, nil)
	ev := alertEvent(t, "X", 5, 1700000060000)

	err := h.Handle(context.Background(), []event.Event{ev})
	if err == nil || dispatch.IsPermanent(err) {
		t.Fatalf("first attempt should fail transient, got %v", err)
	}
	// dispatcher redelivers; the alert must not be stuck in the dedup set
	if err := h.Handle(context.Background(), []event.Event{ev}); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(sink.messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(sink.messages))
	}
}

func TestInvalidRecipientIsPermanent(t *testing.T) {
	sink := &captureSink{failN: 100, err: ErrInvalidRecipient}
	h := NewHandler(sink, "nobody", time.Minute, nil, nil)
	ev := alertEvent(t, "X", 5, 1700000060000)

	err := h.Handle(context.Background(), []event.Event{ev})
	if !dispatch.IsPermanent(err) {
		t.Fatalf("expected permanent error, got %v", err)
	}
}

func TestUndecodableAlertIsPermanent(t *testing.T) {
	h := NewHandler(&captureSink{}, "ops@example.com", time.Minute, nil, nil)
	bad, err := event.Decode(0, 9, event.EncodeHeader(1700000000000, nil), []byte(`{"product_id":7}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	herr := h.Handle(context.Background(), []event.Event{bad})
	if !dispatch.IsPermanent(herr) {
		t.Fatalf("expected permanent, got %v", herr)
	}
}

func TestConsoleSinkRejectsEmptyRecipient(t *testing.T) {
	s := NewConsoleSink(nil)
	if err := s.Deliver(context.Background(), "", "msg"); !errors.Is(err, ErrInvalidRecipient) {
		t.Fatalf("expected ErrInvalidRecipient, got %v", err)
	}
	if err := s.Deliver(context.Background(), "ops", "msg"); err != nil {
		t.Fatalf("deliver: %v", err)
	}
}

func TestWebhookSinkStatusMapping(t *testing.T) {
	status := http.StatusOK
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 1024)
		n, _ := r.Body.Read(buf)
		gotBody = string(buf[:n])
		w.WriteHeader(status)
	}))
	defer srv.Close()

	s := NewWebhookSink(srv.URL, time.Second)
	if err := s.Deliver(context.Background(), "ops", "hello"); err != nil {
		t.Fatalf("200 should succeed: %v", err)
	}
	if !strings.Contains(gotBody, `"recipient":"ops"`) {
		t.Fatalf("body = %q", gotBody)
	}

	status = http.StatusBadRequest
	if err := s.Deliver(context.Background(), "ops", "hello"); !errors.Is(err, ErrInvalidRecipient) {
		t.Fatalf("400 should map to invalid recipient, got %v", err)
	}

	status = http.StatusBadGateway
	err := s.Deliver(context.Background(), "ops", "hello")
	if err == nil || errors.Is(err, ErrInvalidRecipient) {
		t.Fatalf("502 should be transient, got %v", err)
	}
}

func TestBreakerOpensAndRecovers(t *testing.T) {
	sink := &captureSink{failN: 5}
	b := NewBreakerSink(sink, 50*time.Millisecond, nil)

	for i := 0; i < 5; i++ {
		if err := b.Deliver(context.Background(), "ops", "m"); err == nil {
			t.Fatalf("attempt %d should fail", i)
		}
	}
	// breaker open: inner sink not called
	before := sink.calls
	if err := b.Deliver(context.Background(), "ops", "m"); err == nil {
		t.Fatalf("open breaker should fail fast")
	}
	if sink.calls != before {
		t.Fatalf("open breaker still called the sink")
	}

	time.Sleep(70 * time.Millisecond)
	if err := b.Deliver(context.Background(), "ops", "m"); err != nil {
		t.Fatalf("half-open probe should succeed: %v", err)
	}
}

func TestBreakerIgnoresInvalidRecipient(t *testing.T) {
	sink := &captureSink{failN: 100, err: ErrInvalidRecipient}
	b := NewBreakerSink(sink, time.Minute, nil)
	for i := 0; i < 10; i++ {
		if err := b.Deliver(context.Background(), "bad", "m"); !errors.Is(err, ErrInvalidRecipient) {
			t.Fatalf("attempt %d: %v", i, err)
		}
	}
	// all ten reached the sink, the breaker never opened
	if sink.calls != 10 {
		t.Fatalf("calls = %d, want 10", sink.calls)
	}
}

func TestDedupTTLExpiry(t *testing.T) {
	d := newDedupSet(10 * time.Millisecond)
	now := time.Now()
	d.nowFn = func() time.Time { return now }
	d.Mark("k")
	if !d.Seen("k") {
		t.Fatalf("fresh key should be seen")
	}
	now = now.Add(20 * time.Millisecond)
	if d.Seen("k") {
		t.Fatalf("expired key should not be seen")
	}
}
