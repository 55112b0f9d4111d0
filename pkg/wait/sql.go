package wait

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DSNFunc builds a data source name from the reachable host and mapped port.
type DSNFunc func(host string, port int) string

// SQLStrategy waits until a database driver can open a connection and ping it.
// The driver must be registered with database/sql by the caller.
type SQLStrategy struct {
	base
	driver string
	port   int
	dsn    DSNFunc
	query  string
}

// ForSQL waits for a successful ping through driver on the given container port.
func ForSQL(driver string, port int, dsn DSNFunc) *SQLStrategy {
	return &SQLStrategy{
		base:   newBase("sql"),
		driver: driver,
		port:   port,
		dsn:    dsn,
	}
}

// WithQuery runs query after the ping, for databases that accept connections before
// they accept statements.
func (s *SQLStrategy) WithQuery(query string) *SQLStrategy {
	s.query = query
	return s
}

// WithStartupTimeout sets how long to wait for the database.
func (s *SQLStrategy) WithStartupTimeout(d time.Duration) *SQLStrategy {
	s.setTimeout(d)
	return s
}

// WithPollInterval sets the pause between attempts.
func (s *SQLStrategy) WithPollInterval(d time.Duration) *SQLStrategy {
	s.setInterval(d)
	return s
}

func (s *SQLStrategy) WaitUntilReady(ctx context.Context, target Target) error {
	if s.driver == "" || s.dsn == nil {
		return s.fail("no driver or data source", nil)
	}
	return s.poll(ctx, func(ctx context.Context) error {
		host, err := target.Host(ctx)
		if err != nil {
			return fmt.Errorf("resolve host: %w", err)
		}
		hostPort, err := target.MappedPort(ctx, s.port)
		if err != nil {
			return err
		}

		db, err := sql.Open(s.driver, s.dsn(host, hostPort))
		if err != nil {
			return s.fail("open database", err)
		}
		defer db.Close()

		pctx, cancel := probeContext(ctx)
		defer cancel()
		if err := db.PingContext(pctx); err != nil {
			if exitErr := s.checkExited(ctx, target); exitErr != nil {
				return exitErr
			}
			return err
		}
		if s.query != "" {
			if _, err := db.ExecContext(pctx, s.query); err != nil {
				return err
			}
		}
		return nil
	})
}
