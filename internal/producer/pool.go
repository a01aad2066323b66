package producer

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
)

// Option is one emittable sample: a logical event type plus its attributes.
// The pool is data, not logic, so deployments can swap it via a JSON file.
type Option struct {
	Type       string                 `json:"type"`
	Attributes map[string]interface{} `json:"attributes"`
}

// Key returns the partition key for the option: path for http events,
// product_id for inventory events, otherwise empty (partition 0).
func (o Option) Key() string {
	switch o.Type {
	case "http":
		if s, ok := o.Attributes["path"].(string); ok {
			return s
		}
	case "inventory":
		if s, ok := o.Attributes["product_id"].(string); ok {
			return s
		}
	}
	return ""
}

func httpOption(method, path string, status int, errorCode, message string) Option {
	attrs := map[string]interface{}{
		"method":      method,
		"path":        path,
		"status_code": status,
		"message":     message,
	}
	if errorCode != "" {
		attrs["error_code"] = errorCode
	}
	return Option{Type: "http", Attributes: attrs}
}

func inventoryOption(product string, inventory int) Option {
	return Option{Type: "inventory", Attributes: map[string]interface{}{
		"product_id": product,
		"inventory":  inventory,
	}}
}

// DefaultPool returns the built-in sample pool: simulated HTTP responses
// across the status families plus inventory readings, some below the usual
// low-stock threshold.
func DefaultPool() []Option {
	return []Option{
		// successes
		httpOption("GET", "/api/health", 200, "", "OK"),
		httpOption("GET", "/api/users", 200, "", "OK"),
		httpOption("POST", "/api/users", 201, "", "Created"),
		httpOption("PUT", "/api/users/42", 200, "", "Updated"),
		httpOption("DELETE", "/api/users/42", 204, "", "No Content"),
		httpOption("GET", "/static/logo.png", 304, "", "Not Modified"),

		// redirects
		httpOption("GET", "/", 301, "", "Moved Permanently"),
		httpOption("GET", "/old-endpoint", 302, "", "Found"),

		// client errors
		httpOption("GET", "/api/secret", 401, "EAUTH", "Unauthorized"),
		httpOption("GET", "/api/secret", 403, "EFORBIDDEN", "Forbidden"),
		httpOption("GET", "/api/unknown", 404, "ENOTFOUND", "Not Found"),
		httpOption("POST", "/api/users", 409, "ECONFLICT", "Conflict"),
		httpOption("GET", "/api/slow", 408, "ETIMEOUT", "Request Timeout"),
		httpOption("GET", "/api/limited", 429, "ERATE", "Too Many Requests"),

		// server errors
		httpOption("GET", "/api/report", 500, "ESERVER", "Internal Server Error"),
		httpOption("GET", "/api/proxy", 502, "EBADGATEWAY", "Bad Gateway"),
		httpOption("GET", "/api/external", 503, "EUNAVAILABLE", "Service Unavailable"),
		httpOption("GET", "/api/external", 504, "EGATEWAYTIMEOUT", "Gateway Timeout"),

		// inventory readings
		inventoryOption("P-1001", 42),
		inventoryOption("P-1002", 17),
		inventoryOption("P-1003", 8),
		inventoryOption("P-1004", 3),
		inventoryOption("P-1005", 0),
	}
}

// LoadPool reads a pool from a JSON file: an array of options.
func LoadPool(path string) ([]Option, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var pool []Option
	if err := json.Unmarshal(b, &pool); err != nil {
		return nil, fmt.Errorf("producer: parse pool %s: %w", path, err)
	}
	if len(pool) == 0 {
		return nil, fmt.Errorf("producer: pool %s is empty", path)
	}
	return pool, nil
}

// Choose picks one option uniformly. Pure given rng, so tests can pin the
// sequence with a seeded source.
func Choose(pool []Option, rng *rand.Rand) Option {
	return pool[rng.Intn(len(pool))]
}
