package ui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	noColor := color.NoColor
	color.NoColor = true
	out := Out
	buf := &bytes.Buffer{}
	Out = buf
	t.Cleanup(func() {
		Out = out
		color.NoColor = noColor
	})
	return buf
}

func TestMessages(t *testing.T) {
	tests := []struct {
		name  string
		print func()
		want  string
	}{
		{"info", func() { Info("starting %d fixtures", 2) }, "  → starting 2 fixtures\n"},
		{"success", func() { Success("ready") }, "  ✔ ready\n"},
		{"fail", func() { Fail("boom: %v", "oops") }, "  ✘ boom: oops\n"},
		{"warn", func() { Warn("slow") }, "  ○ slow\n"},
		{"dim", func() { DimMsg("quiet") }, "  quiet\n"},
		{"elapsed", func() { Elapsed("started", 1234567*time.Microsecond) }, "  started in 1.235s\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureOutput(t)
			tt.print()
			if got := buf.String(); got != tt.want {
				t.Errorf("output = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFixture(t *testing.T) {
	buf := captureOutput(t)

	Fixture("db", "postgres:16-alpine", map[int]string{
		8080: "localhost:49154",
		5432: "localhost:49153",
	})

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("Fixture() printed %d lines, want 3:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "db postgres:16-alpine") {
		t.Errorf("first line = %q, want name and image", lines[0])
	}
	if !strings.Contains(lines[1], "5432/tcp → localhost:49153") {
		t.Errorf("second line = %q, want port 5432 first", lines[1])
	}
	if !strings.Contains(lines[2], "8080/tcp → localhost:49154") {
		t.Errorf("third line = %q, want port 8080", lines[2])
	}
}

func TestHeaderFooterWidth(t *testing.T) {
	buf := captureOutput(t)
	Header()
	Footer()

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if !strings.Contains(lines[0], "testbox") {
		t.Errorf("Header() = %q, want testbox branding", lines[0])
	}
	if len([]rune(lines[0])) != len([]rune(lines[1])) {
		t.Errorf("Header() and Footer() widths differ: %q vs %q", lines[0], lines[1])
	}
}
