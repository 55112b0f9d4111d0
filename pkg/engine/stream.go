package engine

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"sync"
)

// MaxLineSize is the longest log line a LogStream yields in full.
const MaxLineSize = 1024 * 1024

// LogStream is a pull-based sequence of log lines. It is not seekable; to read the log
// again from the beginning, open a new stream.
//
//	for stream.Next() {
//	    fmt.Println(stream.Line())
//	}
//	if err := stream.Err(); err != nil { ... }
type LogStream interface {
	// Next advances to the next line. It returns false at the end of the stream or
	// on error.
	Next() bool

	// Line returns the current line without its trailing newline.
	Line() string

	// Err returns the first non-EOF error encountered.
	Err() error

	// Close releases the underlying stream. It unblocks a pending Next.
	Close() error
}

type lineStream struct {
	rc     io.ReadCloser
	reader *bufio.Reader
	line   string
	err    error

	closeOnce sync.Once
	closeErr  error
}

// ScanLines turns a reader into a LogStream that yields one line at a time. Lines
// longer than MaxLineSize are truncated to their first MaxLineSize bytes; the rest
// of the line is discarded.
func ScanLines(rc io.ReadCloser) LogStream {
	return &lineStream{rc: rc, reader: bufio.NewReaderSize(rc, 64*1024)}
}

func (s *lineStream) Next() bool {
	if s.err != nil {
		return false
	}

	var buf []byte
	for {
		chunk, isPrefix, err := s.reader.ReadLine()
		if err != nil {
			s.err = err
			if len(buf) == 0 {
				return false
			}
			break
		}
		if room := MaxLineSize - len(buf); room > 0 {
			buf = append(buf, chunk[:min(len(chunk), room)]...)
		}
		if !isPrefix {
			break
		}
	}
	s.line = strings.TrimRight(string(buf), "\r")
	return true
}

func (s *lineStream) Line() string {
	return s.line
}

func (s *lineStream) Err() error {
	if errors.Is(s.err, io.EOF) {
		return nil
	}
	return s.err
}

func (s *lineStream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.rc.Close()
	})
	return s.closeErr
}
