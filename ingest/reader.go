package ingest

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"regexp"

	"github.com/hupe1980/shopmesh/catalog"
)

// nonFinite matches bare NaN/Infinity tokens written by dataframe exports.
var nonFinite = regexp.MustCompile(`([:\[,]\s*)-?(?:NaN|Infinity)(\s*[,}\]])`)

// SanitizeLine replaces bare NaN and Infinity values with null so the line
// is valid JSON.
func SanitizeLine(line []byte) []byte {
	for {
		next := nonFinite.ReplaceAll(line, []byte("${1}null${2}"))
		if bytes.Equal(next, line) {
			return next
		}
		line = next
	}
}

// LineError reports a record that could not be decoded.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }

func (e *LineError) Unwrap() error { return e.Err }

// Reader streams catalog records from JSON Lines input.
type Reader struct {
	scanner *bufio.Scanner
	line    int
}

// NewReader creates a Reader. Lines may be up to 4 MiB long.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	return &Reader{scanner: sc}
}

// Next returns the next record, io.EOF at the end, or a *LineError for a
// malformed line (reading may continue after it).
func (r *Reader) Next() (catalog.Record, error) {
	for r.scanner.Scan() {
		r.line++
		raw := bytes.TrimSpace(r.scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var rec catalog.Record
		if err := json.Unmarshal(SanitizeLine(raw), &rec); err != nil {
			return catalog.Record{}, &LineError{Line: r.line, Err: err}
		}
		return rec, nil
	}
	if err := r.scanner.Err(); err != nil {
		return catalog.Record{}, fmt.Errorf("read catalog: %w", err)
	}
	return catalog.Record{}, io.EOF
}
