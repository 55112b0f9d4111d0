package wait

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Config describes a strategy by name, as written in fixture files.
type Config struct {
	Strategy   string
	Ports      []int
	Pattern    string
	Regexp     bool
	Occurrence int
	Path       string
	StatusCode int
	Command    []string
	Timeout    time.Duration
	Interval   time.Duration
}

// Factory builds a strategy from its configuration.
type Factory func(cfg Config) (Strategy, error)

var registry = map[string]Factory{
	"port":    newPortFromConfig,
	"log":     newLogFromConfig,
	"health":  newHealthFromConfig,
	"http":    newHTTPFromConfig,
	"running": newRunningFromConfig,
	"exec":    newExecFromConfig,
}

// Names returns the names FromConfig understands.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FromConfig builds the strategy named by cfg.Strategy.
func FromConfig(cfg Config) (Strategy, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Strategy))
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown wait strategy: %q (available: %s)", cfg.Strategy, strings.Join(Names(), ", "))
	}
	return factory(cfg)
}

func newPortFromConfig(cfg Config) (Strategy, error) {
	return ForListeningPorts(cfg.Ports...).
		WithStartupTimeout(cfg.Timeout).
		WithPollInterval(intervalOrDefault(cfg.Interval)), nil
}

func newLogFromConfig(cfg Config) (Strategy, error) {
	if cfg.Pattern == "" {
		return nil, errors.New("log strategy requires a pattern")
	}
	s := ForLog(cfg.Pattern).
		WithOccurrence(cfg.Occurrence).
		WithStartupTimeout(cfg.Timeout).
		WithPollInterval(intervalOrDefault(cfg.Interval))
	if cfg.Regexp {
		s.AsRegexp()
		if _, err := s.matcher(); err != nil {
			return nil, fmt.Errorf("log strategy: invalid regexp: %w", err)
		}
	}
	return s, nil
}

func newHealthFromConfig(cfg Config) (Strategy, error) {
	return ForHealthCheck().
		WithStartupTimeout(cfg.Timeout).
		WithPollInterval(intervalOrDefault(cfg.Interval)), nil
}

func newHTTPFromConfig(cfg Config) (Strategy, error) {
	path := cfg.Path
	if path == "" {
		path = "/"
	}
	s := ForHTTP(path).
		WithStartupTimeout(cfg.Timeout).
		WithPollInterval(intervalOrDefault(cfg.Interval))
	if len(cfg.Ports) > 1 {
		return nil, errors.New("http strategy takes a single port")
	}
	if len(cfg.Ports) == 1 {
		s.WithPort(cfg.Ports[0])
	}
	if cfg.StatusCode != 0 {
		want := cfg.StatusCode
		s.WithStatusCodeMatcher(func(code int) bool { return code == want })
	}
	return s, nil
}

func newRunningFromConfig(cfg Config) (Strategy, error) {
	return ForRunning().WithStartupTimeout(cfg.Timeout), nil
}

func newExecFromConfig(cfg Config) (Strategy, error) {
	if len(cfg.Command) == 0 {
		return nil, errors.New("exec strategy requires a command")
	}
	return ForExec(cfg.Command...).
		WithStartupTimeout(cfg.Timeout).
		WithPollInterval(intervalOrDefault(cfg.Interval)), nil
}

func intervalOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultPollInterval
	}
	return d
}
