package wait

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var errLogEnded = errors.New("log stream ended before the pattern matched")

// LogStrategy waits until the container log contains a line matching a pattern.
//
// The log is always read from the beginning, so lines printed before the strategy
// started count. When the stream ends without a match the strategy re-opens it after
// the poll interval and counts matches from zero again.
type LogStrategy struct {
	base
	pattern    string
	isRegexp   bool
	occurrence int
}

// ForLog waits for a line containing pattern.
func ForLog(pattern string) *LogStrategy {
	return &LogStrategy{
		base:       newBase("log"),
		pattern:    pattern,
		occurrence: 1,
	}
}

// AsRegexp interprets the pattern as a regular expression.
func (s *LogStrategy) AsRegexp() *LogStrategy {
	s.isRegexp = true
	return s
}

// WithOccurrence waits for the n-th matching line.
func (s *LogStrategy) WithOccurrence(n int) *LogStrategy {
	if n > 0 {
		s.occurrence = n
	}
	return s
}

// WithStartupTimeout sets how long to wait for the line.
func (s *LogStrategy) WithStartupTimeout(d time.Duration) *LogStrategy {
	s.setTimeout(d)
	return s
}

// WithPollInterval sets the pause before the stream is re-opened.
func (s *LogStrategy) WithPollInterval(d time.Duration) *LogStrategy {
	s.setInterval(d)
	return s
}

func (s *LogStrategy) matcher() (func(string) bool, error) {
	if !s.isRegexp {
		return func(line string) bool { return strings.Contains(line, s.pattern) }, nil
	}
	re, err := regexp.Compile(s.pattern)
	if err != nil {
		return nil, err
	}
	return re.MatchString, nil
}

func (s *LogStrategy) WaitUntilReady(ctx context.Context, target Target) error {
	match, err := s.matcher()
	if err != nil {
		return s.fail(fmt.Sprintf("invalid pattern %q", s.pattern), err)
	}

	return s.poll(ctx, func(ctx context.Context) error {
		stream, err := target.Logs(ctx)
		if err != nil {
			return fmt.Errorf("open logs: %w", err)
		}
		defer stream.Close()

		// Next blocks on a followed stream; closing it is the only way to unblock.
		stop := context.AfterFunc(ctx, func() { _ = stream.Close() })
		defer stop()

		seen := 0
		for stream.Next() {
			if !match(stream.Line()) {
				continue
			}
			seen++
			if seen >= s.occurrence {
				return nil
			}
		}
		if err := stream.Err(); err != nil && ctx.Err() == nil {
			return fmt.Errorf("read logs: %w", err)
		}
		if exitErr := s.checkExited(ctx, target); exitErr != nil {
			return exitErr
		}
		if seen > 0 {
			return fmt.Errorf("%w (%d of %d occurrences)", errLogEnded, seen, s.occurrence)
		}
		return errLogEnded
	})
}
