// Package postgres starts PostgreSQL fixtures that are ready to accept queries.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	// Registers the "pgx" database/sql driver used for readiness.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/rickgorman/testbox/pkg/fixture"
	"github.com/rickgorman/testbox/pkg/spec"
	"github.com/rickgorman/testbox/pkg/wait"
)

const (
	// DefaultImage is the default PostgreSQL image.
	DefaultImage = "postgres:16-alpine"

	// DefaultDatabase is the default PostgreSQL database name.
	DefaultDatabase = "testdb"

	// DefaultUser is the default PostgreSQL user.
	DefaultUser = "postgres"

	// DefaultPassword is the default PostgreSQL password.
	DefaultPassword = "password1"

	// Port is the port PostgreSQL listens on inside the container.
	Port = 5432

	// DefaultStartupTimeout bounds readiness.
	DefaultStartupTimeout = time.Minute

	// ReadyMessage is logged twice by the official image: once by the temporary
	// server that runs init scripts, once by the real one.
	ReadyMessage = "database system is ready to accept connections"

	initDir = "/docker-entrypoint-initdb.d"
)

// Option configures a PostgreSQL fixture.
type Option interface {
	apply(*config) error
}

type optionFunc func(*config) error

func (f optionFunc) apply(cfg *config) error {
	return f(cfg)
}

type config struct {
	image       string
	database    string
	user        string
	password    string
	name        string
	initScripts []string
	labels      map[string]string
	timeout     time.Duration
	strategy    wait.Strategy
}

func defaultConfig() *config {
	return &config{
		image:    DefaultImage,
		database: DefaultDatabase,
		user:     DefaultUser,
		password: DefaultPassword,
		labels:   map[string]string{"testbox.module": "postgres"},
		timeout:  DefaultStartupTimeout,
	}
}

// WithImage sets the PostgreSQL image.
func WithImage(image string) Option {
	return optionFunc(func(cfg *config) error {
		image = strings.TrimSpace(image)
		if image == "" {
			return errors.New("image must not be empty")
		}
		cfg.image = image
		return nil
	})
}

// WithDatabase sets the database name.
func WithDatabase(database string) Option {
	return optionFunc(func(cfg *config) error {
		database = strings.TrimSpace(database)
		if database == "" {
			return errors.New("database must not be empty")
		}
		cfg.database = database
		return nil
	})
}

// WithUser sets the database user.
func WithUser(user string) Option {
	return optionFunc(func(cfg *config) error {
		user = strings.TrimSpace(user)
		if user == "" {
			return errors.New("user must not be empty")
		}
		cfg.user = user
		return nil
	})
}

// WithPassword sets the database user password.
func WithPassword(password string) Option {
	return optionFunc(func(cfg *config) error {
		if password == "" {
			return errors.New("password must not be empty")
		}
		cfg.password = password
		return nil
	})
}

// WithName sets the container name.
func WithName(name string) Option {
	return optionFunc(func(cfg *config) error {
		cfg.name = strings.TrimSpace(name)
		return nil
	})
}

// WithInitScripts mounts .sql or .sh files into the image's init directory. They
// run in lexical order of their base names before the server accepts connections.
func WithInitScripts(paths ...string) Option {
	return optionFunc(func(cfg *config) error {
		for _, p := range paths {
			if p == "" {
				return errors.New("init script path must not be empty")
			}
			abs, err := filepath.Abs(p)
			if err != nil {
				return fmt.Errorf("failed to resolve init script %s: %w", p, err)
			}
			cfg.initScripts = append(cfg.initScripts, abs)
		}
		return nil
	})
}

// WithLabels merges labels into container labels.
func WithLabels(labels map[string]string) Option {
	return optionFunc(func(cfg *config) error {
		for key, value := range maps.Clone(labels) {
			key = strings.TrimSpace(key)
			if key == "" {
				return errors.New("label key must not be empty")
			}
			cfg.labels[key] = value
		}
		return nil
	})
}

// WithStartupTimeout bounds how long the server may take to accept queries.
func WithStartupTimeout(d time.Duration) Option {
	return optionFunc(func(cfg *config) error {
		if d <= 0 {
			return fmt.Errorf("startup timeout must be positive: %s", d)
		}
		cfg.timeout = d
		return nil
	})
}

// WithWaitStrategy replaces the default readiness check.
func WithWaitStrategy(s wait.Strategy) Option {
	return optionFunc(func(cfg *config) error {
		if s == nil {
			return errors.New("wait strategy must not be nil")
		}
		cfg.strategy = s
		return nil
	})
}

// Spec returns the container specification Run starts.
func Spec(options ...Option) (spec.Spec, error) {
	cfg, err := newConfig(options)
	if err != nil {
		return spec.Spec{}, err
	}
	return cfg.spec()
}

func newConfig(options []Option) (*config, error) {
	cfg := defaultConfig()
	for _, opt := range options {
		if opt == nil {
			continue
		}
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func (cfg *config) spec() (spec.Spec, error) {
	b := spec.New(cfg.image).
		WithExposedPorts(Port).
		WithEnv("POSTGRES_DB", cfg.database).
		WithEnv("POSTGRES_USER", cfg.user).
		WithEnv("POSTGRES_PASSWORD", cfg.password).
		WithWaitStrategy(cfg.waitStrategy())

	if cfg.name != "" {
		b.WithName(cfg.name)
	}
	for i, script := range cfg.initScripts {
		target := fmt.Sprintf("%s/%02d-%s", initDir, i, filepath.Base(script))
		b.WithReadOnlyBindMount(script, target)
	}
	for k, v := range cfg.labels {
		b.WithLabel(k, v)
	}
	return b.Build()
}

// waitStrategy waits for the second ready message, then for a real round trip
// through the pgx driver.
func (cfg *config) waitStrategy() wait.Strategy {
	if cfg.strategy != nil {
		return cfg.strategy
	}
	return wait.ForAll(
		wait.ForLog(ReadyMessage).WithOccurrence(2).WithStartupTimeout(cfg.timeout),
		wait.ForSQL("pgx", Port, DSN(cfg.user, cfg.password, cfg.database)).
			WithQuery("SELECT 1").
			WithStartupTimeout(cfg.timeout),
	).WithStartupTimeout(cfg.timeout)
}

// DSN builds postgres:// URLs for a mapped host and port.
func DSN(user, password, database string) wait.DSNFunc {
	return func(host string, port int) string {
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(user, password),
			Host:     net.JoinHostPort(host, strconv.Itoa(port)),
			Path:     "/" + database,
			RawQuery: "sslmode=disable",
		}
		return u.String()
	}
}

// Container is a running PostgreSQL fixture.
type Container struct {
	*fixture.Container
	Database string
	User     string
	Password string
}

// Run starts a PostgreSQL container and blocks until it accepts queries.
func Run(ctx context.Context, o *fixture.Orchestrator, options ...Option) (*Container, error) {
	if o == nil {
		return nil, errors.New("orchestrator must not be nil")
	}
	cfg, err := newConfig(options)
	if err != nil {
		return nil, err
	}
	s, err := cfg.spec()
	if err != nil {
		return nil, err
	}

	c, err := o.Start(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("start postgres: %w", err)
	}
	return &Container{
		Container: c,
		Database:  cfg.database,
		User:      cfg.user,
		Password:  cfg.password,
	}, nil
}

// ConnectionString returns a postgres:// URL for the fixture's mapped port.
func (c *Container) ConnectionString(ctx context.Context) (string, error) {
	host, err := c.Host(ctx)
	if err != nil {
		return "", err
	}
	port, err := c.MappedPort(ctx, Port)
	if err != nil {
		return "", err
	}
	return DSN(c.User, c.Password, c.Database)(host, port), nil
}
