package debuglog

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// FileSink writes entries as plain text, one entry per line group, flushing after each.
type FileSink struct {
	w      *bufio.Writer
	closer io.Closer
}

// NewFileSink truncates path and writes entries to it.
func NewFileSink(path string) (*FileSink, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open debug file: %w", err)
	}
	return &FileSink{w: bufio.NewWriter(file), closer: file}, nil
}

// NewWriterSink writes entries to w. Closing the sink does not close w.
func NewWriterSink(w io.Writer) *FileSink {
	return &FileSink{w: bufio.NewWriter(w)}
}

// Write appends the entry data followed by a newline.
func (s *FileSink) Write(entry Entry) error {
	s.w.WriteString(entry.Data)
	if !strings.HasSuffix(entry.Data, "\n") {
		s.w.WriteByte('\n')
	}
	return s.w.Flush()
}

// Close flushes and closes the underlying file.
func (s *FileSink) Close() error {
	if err := s.w.Flush(); err != nil {
		return err
	}
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
