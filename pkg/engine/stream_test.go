package engine

import (
	"errors"
	"io"
	"strings"
	"testing"
)

type errReader struct {
	r   io.Reader
	err error
}

func (e *errReader) Read(p []byte) (int, error) {
	n, err := e.r.Read(p)
	if err == io.EOF {
		return n, e.err
	}
	return n, err
}

func (e *errReader) Close() error { return nil }

func TestScanLines(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"unix newlines", "a\nb\nc\n", []string{"a", "b", "c"}},
		{"no trailing newline", "a\nb", []string{"a", "b"}},
		{"windows newlines", "a\r\nb\r\n", []string{"a", "b"}},
		{"empty", "", nil},
		{"blank lines kept", "a\n\nb\n", []string{"a", "", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stream := ScanLines(io.NopCloser(strings.NewReader(tt.input)))
			defer stream.Close()

			var got []string
			for stream.Next() {
				got = append(got, stream.Line())
			}
			if err := stream.Err(); err != nil {
				t.Fatalf("Err() = %v, want nil", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d lines %q, want %d lines %q", len(got), got, len(tt.want), tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("line %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestScanLinesError(t *testing.T) {
	boom := errors.New("boom")
	stream := ScanLines(&errReader{r: strings.NewReader("first\n"), err: boom})

	if !stream.Next() || stream.Line() != "first" {
		t.Fatalf("expected first line")
	}
	if stream.Next() {
		t.Fatalf("Next() = true after error")
	}
	if !errors.Is(stream.Err(), boom) {
		t.Errorf("Err() = %v, want %v", stream.Err(), boom)
	}
}

func TestScanLinesTruncatesLongLines(t *testing.T) {
	long := strings.Repeat("x", 2*MaxLineSize+17)
	input := "booting\n" + long + "\nready\n" + long

	stream := ScanLines(io.NopCloser(strings.NewReader(input)))
	defer stream.Close()

	var got []string
	for stream.Next() {
		got = append(got, stream.Line())
	}
	if err := stream.Err(); err != nil {
		t.Fatalf("Err() = %v, want nil", err)
	}
	if len(got) != 4 {
		t.Fatalf("got %d lines, want 4", len(got))
	}
	if got[0] != "booting" || got[2] != "ready" {
		t.Errorf("lines around the long one = %q, %q, want booting, ready", got[0], got[2])
	}
	for _, i := range []int{1, 3} {
		if len(got[i]) != MaxLineSize {
			t.Errorf("line %d has %d bytes, want %d", i, len(got[i]), MaxLineSize)
		}
	}
}

func TestInspectionExited(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{StatusRunning, false},
		{StatusCreated, false},
		{StatusExited, true},
		{StatusDead, true},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			if got := (Inspection{Status: tt.status}).Exited(); got != tt.want {
				t.Errorf("Exited() = %v, want %v", got, tt.want)
			}
		})
	}
}
