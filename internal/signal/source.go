package signal

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Slice replays a fixed series.
type Slice struct {
	values []float64
	pos    int
}

// NewSlice returns a source over values. The slice is not copied.
func NewSlice(values []float64) *Slice {
	return &Slice{values: values}
}

// Next returns the next value of the series.
func (s *Slice) Next() (float64, bool, error) {
	if s.pos >= len(s.values) {
		return 0, false, nil
	}
	v := s.values[s.pos]
	s.pos++
	return v, true, nil
}

// LineSource reads one observation per line. A line is either a bare number
// or comma-separated fields whose last field is the value (for example
// "uptime,value"). Blank lines and lines starting with '#' are skipped.
type LineSource struct {
	scan   *bufio.Scanner
	closer io.Closer
	line   int
}

// NewLineSource reads observations from r. If r is an io.Closer, Close
// closes it.
func NewLineSource(r io.Reader) *LineSource {
	ls := &LineSource{scan: bufio.NewScanner(r)}
	if c, ok := r.(io.Closer); ok {
		ls.closer = c
	}
	return ls
}

// Next parses the next non-empty line.
func (ls *LineSource) Next() (float64, bool, error) {
	for ls.scan.Scan() {
		ls.line++
		text := strings.TrimSpace(ls.scan.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		field := text
		if i := strings.LastIndexByte(text, ','); i >= 0 {
			field = strings.TrimSpace(text[i+1:])
		}
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return 0, false, fmt.Errorf("line %d: failed to parse value %q: %w", ls.line, field, err)
		}
		return v, true, nil
	}
	if err := ls.scan.Err(); err != nil {
		return 0, false, fmt.Errorf("line %d: %w", ls.line, err)
	}
	return 0, false, nil
}

// Close closes the underlying reader when it is closable.
func (ls *LineSource) Close() error {
	if ls.closer == nil {
		return nil
	}
	return ls.closer.Close()
}
