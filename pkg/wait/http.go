package wait

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rickgorman/testbox/pkg/engine"
)

// HTTPStrategy waits until an HTTP endpoint of the container answers with an
// accepted status code.
type HTTPStrategy struct {
	base
	path          string
	port          int
	method        string
	statusMatcher func(int) bool
	client        *http.Client
}

// ForHTTP waits for a GET on path to return 200. The port defaults to the lowest
// exposed port.
func ForHTTP(path string) *HTTPStrategy {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return &HTTPStrategy{
		base:   newBase("http"),
		path:   path,
		method: http.MethodGet,
		statusMatcher: func(code int) bool {
			return code == http.StatusOK
		},
		client: &http.Client{Timeout: probeTimeout},
	}
}

// WithPort sets the container port to query.
func (s *HTTPStrategy) WithPort(port int) *HTTPStrategy {
	s.port = port
	return s
}

// WithMethod sets the request method.
func (s *HTTPStrategy) WithMethod(method string) *HTTPStrategy {
	s.method = method
	return s
}

// WithStatusCodeMatcher replaces the "200 only" check.
func (s *HTTPStrategy) WithStatusCodeMatcher(fn func(int) bool) *HTTPStrategy {
	if fn != nil {
		s.statusMatcher = fn
	}
	return s
}

// WithStartupTimeout sets how long to wait for the endpoint.
func (s *HTTPStrategy) WithStartupTimeout(d time.Duration) *HTTPStrategy {
	s.setTimeout(d)
	return s
}

// WithPollInterval sets the pause between requests.
func (s *HTTPStrategy) WithPollInterval(d time.Duration) *HTTPStrategy {
	s.setInterval(d)
	return s
}

func (s *HTTPStrategy) WaitUntilReady(ctx context.Context, target Target) error {
	port := s.port
	if port == 0 {
		exposed := target.ExposedPorts()
		if len(exposed) == 0 {
			return s.fail("no port to query", errors.New("container exposes no ports"))
		}
		port = exposed[0]
		for _, p := range exposed[1:] {
			if p < port {
				port = p
			}
		}
	}

	client := s.client
	if client == nil {
		client = &http.Client{Timeout: probeTimeout}
	}
	method := s.method
	if method == "" {
		method = http.MethodGet
	}
	statusOK := s.statusMatcher
	if statusOK == nil {
		statusOK = func(code int) bool { return code == http.StatusOK }
	}

	return s.poll(ctx, func(ctx context.Context) error {
		host, err := target.Host(ctx)
		if err != nil {
			return fmt.Errorf("resolve host: %w", err)
		}
		hostPort, err := target.MappedPort(ctx, port)
		if err != nil {
			if errors.Is(err, engine.ErrPortNotPublished) {
				return s.fail(fmt.Sprintf("port %d was never published", port), err)
			}
			return err
		}

		url := "http://" + net.JoinHostPort(host, strconv.Itoa(hostPort)) + s.path
		req, err := http.NewRequestWithContext(ctx, method, url, nil)
		if err != nil {
			return s.fail("invalid request", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			if exitErr := s.checkExited(ctx, target); exitErr != nil {
				return exitErr
			}
			return err
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)

		if !statusOK(resp.StatusCode) {
			return fmt.Errorf("%s %s: unexpected status %d", method, s.path, resp.StatusCode)
		}
		return nil
	})
}
