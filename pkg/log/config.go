package log

// Config describes the process-wide logger settings.
type Config struct {
	// Level: debug|info|warn|error|fatal.
	Level string
	// Format: text|json.
	Format string
}

// ApplyConfig builds a Logger from a Config. Unknown values are rejected so
// misconfiguration is caught at startup rather than silently downgraded.
func ApplyConfig(cfg *Config) (Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	var formatter Formatter
	switch cfg.Format {
	case "", "text":
		formatter = &TextFormatter{}
	case "json":
		formatter = &JSONFormatter{}
	default:
		return nil, errUnknownFormat(cfg.Format)
	}
	return NewLogger(WithLevel(level), WithFormatter(formatter), WithOutput(NewConsoleOutput())), nil
}

type errUnknownFormat string

func (e errUnknownFormat) Error() string { return "log: unknown format " + string(e) }
