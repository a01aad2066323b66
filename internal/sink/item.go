package sink

import (
	"encoding/json"

	"github.com/runnelhq/runnel/internal/event"
)

// StoredItem is the persisted projection of one event, keyed by
// (PK, SK). PK groups all events for one path; SK is the event's
// ISO8601 millisecond timestamp so a range scan walks chronologically.
type StoredItem struct {
	PK           string          `json:"pk"`
	SK           string          `json:"sk"`
	Method       string          `json:"method"`
	StatusCode   int             `json:"status_code"`
	StatusFamily string          `json:"status_family"`
	ErrorCode    string          `json:"error_code,omitempty"`
	IsError      bool            `json:"is_error"`
	Message      string          `json:"message"`
	Event        json.RawMessage `json:"event"`
}

// StatusFamily buckets an HTTP status code ("2xx", "5xx"). Out-of-range
// codes report "n/a".
func StatusFamily(code int) string {
	if code < 100 || code > 599 {
		return "n/a"
	}
	switch code / 100 {
	case 1:
		return "1xx"
	case 2:
		return "2xx"
	case 3:
		return "3xx"
	case 4:
		return "4xx"
	default:
		return "5xx"
	}
}

// ItemFromEvent projects an event into its stored form. Missing fields get
// the same fallbacks the ingestion has always used: method "UNKNOWN", path
// "/", status -1.
func ItemFromEvent(ev *event.Event) StoredItem {
	method := ev.Str("method")
	if method == "" {
		method = "UNKNOWN"
	}
	path := ev.Str("path")
	if path == "" {
		path = "/"
	}

	status := -1
	if n, ok := ev.Num("status_code"); ok {
		status = int(n)
	}

	tsMs := ev.TimestampMs
	if s := ev.Str("timestamp"); s != "" {
		if ms, err := event.ParseTimestamp(s); err == nil {
			tsMs = ms
		}
	}

	errorCode := ev.Str("error_code")
	isErr := errorCode != "" || status >= 500

	return StoredItem{
		PK:           "path#" + path,
		SK:           event.FormatTimestamp(tsMs),
		Method:       method,
		StatusCode:   status,
		StatusFamily: StatusFamily(status),
		ErrorCode:    errorCode,
		IsError:      isErr,
		Message:      ev.Str("message"),
		Event:        append(json.RawMessage(nil), ev.Payload...),
	}
}
