package container

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rickgorman/testbox/pkg/engine"
)

// ParseBindMount parses docker's "host:container[:ro|rw]" notation. Relative host
// paths are resolved against baseDir.
func ParseBindMount(s, baseDir string) (engine.BindMount, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return engine.BindMount{}, fmt.Errorf("invalid mount format: %s", s)
	}

	m := engine.BindMount{
		HostPath:      parts[0],
		ContainerPath: parts[1],
	}
	if m.HostPath == "" || m.ContainerPath == "" {
		return engine.BindMount{}, fmt.Errorf("invalid mount format: %s", s)
	}

	if len(parts) == 3 {
		switch parts[2] {
		case "ro":
			m.ReadOnly = true
		case "rw":
		default:
			return engine.BindMount{}, fmt.Errorf("invalid mount mode %q in %s", parts[2], s)
		}
	}

	m.HostPath = expandPath(m.HostPath)
	if !filepath.IsAbs(m.HostPath) && baseDir != "" {
		m.HostPath = filepath.Join(baseDir, m.HostPath)
	}
	return m, nil
}

// resolveHostPath returns the absolute form of a bind mount source, as the
// daemon requires.
func resolveHostPath(path string) (string, error) {
	abs, err := filepath.Abs(expandPath(path))
	if err != nil {
		return "", fmt.Errorf("failed to resolve bind mount source %s: %w", path, err)
	}
	return abs, nil
}

// expandPath expands ~ to home directory in paths.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}

	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return home
	}

	return path
}
