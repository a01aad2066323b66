package aggregate

import (
	"strings"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/runnelhq/runnel/internal/event"
)

// Predicate wraps a compiled CEL program evaluated once per candidate event.
// An empty expression matches nothing, so a misconfigured aggregator stays
// quiet instead of alerting on everything.
type Predicate struct {
	prog    cel.Program
	enabled bool
}

// NewPredicate compiles expr. Available variables: event_type (string),
// ts_ms (int), attrs (parsed payload), headers (string map), now_ms (int).
// "type" is reserved by CEL itself, hence the longer name.
func NewPredicate(expr string) (Predicate, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Predicate{}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("event_type", cel.StringType),
		cel.Variable("ts_ms", cel.IntType),
		cel.Variable("attrs", cel.DynType),
		cel.Variable("headers", cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable("now_ms", cel.IntType),
	)
	if err != nil {
		return Predicate{}, err
	}
	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return Predicate{}, iss.Err()
	}
	checked, iss2 := env.Check(ast)
	if iss2 != nil && iss2.Err() != nil {
		return Predicate{}, iss2.Err()
	}
	prog, err := env.Program(checked)
	if err != nil {
		return Predicate{}, err
	}
	return Predicate{prog: prog, enabled: true}, nil
}

// Eval reports whether ev satisfies the predicate. Evaluation errors count
// as non-matches.
func (p Predicate) Eval(ev *event.Event) bool {
	if !p.enabled {
		return false
	}
	headers := ev.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	var attrs any
	if ev.Attributes != nil {
		attrs = ev.Attributes
	} else {
		attrs = map[string]any{}
	}
	out, _, err := p.prog.Eval(map[string]any{
		"event_type": ev.Type(),
		"ts_ms":      ev.TimestampMs,
		"attrs":      attrs,
		"headers":    headers,
		"now_ms":     time.Now().UnixMilli(),
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
