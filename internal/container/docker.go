package container

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/archive"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/moby/patternmatcher/ignorefile"
	"github.com/rickgorman/testbox/internal/git"
	"github.com/rickgorman/testbox/pkg/engine"
)

// HostOverrideEnv overrides the host under which published ports are reachable.
const HostOverrideEnv = "TESTBOX_HOST_OVERRIDE"

// Client wraps the Docker client with our operations.
type Client struct {
	cli *client.Client
}

var _ engine.Engine = (*Client)(nil)

// NewClient creates a new Docker client wrapper.
func NewClient() (*Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, err
	}
	return &Client{cli: cli}, nil
}

// Close closes the underlying Docker client.
func (c *Client) Close() error {
	return c.cli.Close()
}

// ImageExists checks if an image exists locally.
func (c *Client) ImageExists(ctx context.Context, ref string) (bool, error) {
	_, _, err := c.cli.ImageInspectWithRaw(ctx, ref)
	if err != nil {
		if isNotFoundError(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// PullImage pulls ref unless it is already present. Progress is rendered to
// progress when it is not nil.
func (c *Client) PullImage(ctx context.Context, ref string, progress io.Writer) error {
	exists, err := c.ImageExists(ctx, ref)
	if err != nil {
		return fmt.Errorf("failed to inspect image: %w", err)
	}
	if exists {
		return nil
	}

	rc, err := c.cli.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image: %w", err)
	}
	defer rc.Close()

	if err := displayStream(rc, progress); err != nil {
		return fmt.Errorf("failed to pull image: %w", err)
	}
	return nil
}

// BuildImage builds an image from a local directory or a git URL and returns its tag.
func (c *Client) BuildImage(ctx context.Context, opts engine.BuildOptions) (string, error) {
	dir := opts.ContextPath
	if git.IsGitURL(dir) {
		cloned, cleanup, err := git.CloneTemp(ctx, dir)
		if err != nil {
			return "", err
		}
		defer cleanup()
		dir = cloned
	}

	buildContext, err := tarContext(dir)
	if err != nil {
		return "", err
	}
	defer buildContext.Close()

	resp, err := c.cli.ImageBuild(ctx, buildContext, types.ImageBuildOptions{
		Tags:        []string{opts.Tag},
		Dockerfile:  opts.Dockerfile,
		BuildArgs:   buildArgs(opts.Args),
		Remove:      true,
		ForceRemove: true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to build image: %w", err)
	}
	defer resp.Body.Close()

	// Build errors arrive in the stream, not as an API error.
	if err := displayStream(resp.Body, nil); err != nil {
		return "", fmt.Errorf("failed to build image: %w", err)
	}
	return opts.Tag, nil
}

// Host returns the address under which published ports are reachable: the
// override from the environment, the daemon's address for remote daemons, else
// localhost.
func (c *Client) Host(ctx context.Context) (string, error) {
	if host := os.Getenv(HostOverrideEnv); host != "" {
		return host, nil
	}
	return daemonHost(c.cli.DaemonHost())
}

// tarContext archives a build context, honoring its .dockerignore.
func tarContext(dir string) (io.ReadCloser, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read build context: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("build context %s is not a directory", dir)
	}

	excludes, err := readDockerignore(dir)
	if err != nil {
		return nil, err
	}

	tar, err := archive.TarWithOptions(dir, &archive.TarOptions{ExcludePatterns: excludes})
	if err != nil {
		return nil, fmt.Errorf("failed to create build context: %w", err)
	}
	return tar, nil
}

func readDockerignore(dir string) ([]string, error) {
	f, err := os.Open(filepath.Join(dir, ".dockerignore"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read .dockerignore: %w", err)
	}
	defer f.Close()

	patterns, err := ignorefile.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse .dockerignore: %w", err)
	}
	return patterns, nil
}

// displayStream drains a pull or build stream and returns the first error
// message the daemon sent.
func displayStream(r io.Reader, out io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	return jsonmessage.DisplayJSONMessagesStream(r, out, 0, false, nil)
}

// daemonHost derives the host of published ports from the daemon address.
func daemonHost(daemon string) (string, error) {
	u, err := url.Parse(daemon)
	if err != nil {
		return "", fmt.Errorf("failed to parse docker host %q: %w", daemon, err)
	}
	switch u.Scheme {
	case "tcp", "http", "https":
		host := u.Host
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}
		if host == "" || strings.HasPrefix(host, "0.0.0.0") {
			return "localhost", nil
		}
		return host, nil
	default:
		return "localhost", nil
	}
}

func buildArgs(args map[string]string) map[string]*string {
	if len(args) == 0 {
		return nil
	}
	out := make(map[string]*string, len(args))
	for k, v := range args {
		out[k] = &v
	}
	return out
}
