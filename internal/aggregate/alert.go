package aggregate

import (
	"encoding/json"

	"github.com/runnelhq/runnel/internal/event"
)

// EventTypeAlert is the header type carried by emitted alert events.
const EventTypeAlert = "alert"

// AlertEvent is the derived event appended to the alerts stream, one per
// (entity, window) violation.
type AlertEvent struct {
	ProductID       string  `json:"product_id"`
	ObservedValue   float64 `json:"observed_value"`
	Reason          string  `json:"reason"`
	WindowCloseMs   int64   `json:"window_close_ms"`
	WindowCloseTime string  `json:"window_close_time"`
}

// Encode renders the alert as an append-ready payload.
func (a AlertEvent) Encode() ([]byte, error) {
	return json.Marshal(a)
}

// DecodeAlert parses an alert event payload.
func DecodeAlert(payload []byte) (AlertEvent, error) {
	var a AlertEvent
	err := json.Unmarshal(payload, &a)
	return a, err
}

// DedupKey identifies the alert for notification-side suppression.
func (a AlertEvent) DedupKey() string {
	return a.ProductID + "@" + event.FormatTimestamp(a.WindowCloseMs)
}
