package wait

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rickgorman/testbox/pkg/engine"
)

// stubTarget is a scripted Target. Inspections and log openings are consumed in
// order; the last entry repeats.
type stubTarget struct {
	host      string
	exposed   []int
	mapped    map[int]int
	mappedErr error

	mu           sync.Mutex
	inspections  []engine.Inspection
	inspectCalls int
	logs         [][]string
	logOpens     int
	follow       bool
	exec         func(cmd []string) (engine.ExecResult, error)
}

func (s *stubTarget) ID() string { return "stub" }

func (s *stubTarget) Host(ctx context.Context) (string, error) {
	if s.host == "" {
		return "127.0.0.1", nil
	}
	return s.host, nil
}

func (s *stubTarget) ExposedPorts() []int { return s.exposed }

func (s *stubTarget) MappedPort(ctx context.Context, port int) (int, error) {
	if s.mappedErr != nil {
		return 0, s.mappedErr
	}
	hostPort, ok := s.mapped[port]
	if !ok {
		return 0, fmt.Errorf("port %d: %w", port, engine.ErrPortNotPublished)
	}
	return hostPort, nil
}

func (s *stubTarget) Inspect(ctx context.Context) (engine.Inspection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inspectCalls++
	if len(s.inspections) == 0 {
		return engine.Inspection{Status: engine.StatusRunning, Running: true}, nil
	}
	idx := s.inspectCalls - 1
	if idx >= len(s.inspections) {
		idx = len(s.inspections) - 1
	}
	return s.inspections[idx], nil
}

func (s *stubTarget) Logs(ctx context.Context) (engine.LogStream, error) {
	s.mu.Lock()
	s.logOpens++
	var lines []string
	if n := len(s.logs); n > 0 {
		idx := s.logOpens - 1
		if idx >= n {
			idx = n - 1
		}
		lines = s.logs[idx]
	}
	follow := s.follow
	s.mu.Unlock()

	if !follow {
		return engine.ScanLines(io.NopCloser(strings.NewReader(joinLines(lines)))), nil
	}
	pr, pw := io.Pipe()
	go func() {
		if _, err := io.WriteString(pw, joinLines(lines)); err != nil {
			return
		}
		<-ctx.Done()
		_ = pw.CloseWithError(ctx.Err())
	}()
	return engine.ScanLines(pr), nil
}

func (s *stubTarget) Exec(ctx context.Context, cmd []string) (engine.ExecResult, error) {
	if s.exec == nil {
		return engine.ExecResult{}, nil
	}
	return s.exec(cmd)
}

func (s *stubTarget) opens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logOpens
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

func running() engine.Inspection {
	return engine.Inspection{Status: engine.StatusRunning, Running: true}
}

func health(status string) engine.Inspection {
	insp := running()
	insp.Health = status
	return insp
}

// freePort returns a port nothing listens on.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	if err := ln.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return port
}

// listenAfter starts accepting on port after delay.
func listenAfter(t *testing.T, port int, delay time.Duration) {
	t.Helper()
	var (
		mu sync.Mutex
		ln net.Listener
	)
	timer := time.AfterFunc(delay, func() {
		l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err != nil {
			return
		}
		mu.Lock()
		ln = l
		mu.Unlock()
		go func() {
			for {
				conn, err := l.Accept()
				if err != nil {
					return
				}
				_ = conn.Close()
			}
		}()
	})
	t.Cleanup(func() {
		timer.Stop()
		mu.Lock()
		defer mu.Unlock()
		if ln != nil {
			_ = ln.Close()
		}
	})
}
