// Package paramlog writes the tab-separated restraint parameter logs: a
// header row of column names, then one row per sample or window boundary.
// Logging is best effort; a failed open disables the writer rather than
// failing the restraint, since the log is never load-bearing for the
// physics.
package paramlog

import (
	"os"
	"strconv"
	"strings"
)

// Writer is an append-only tabular log for one restraint instance. The
// zero value and the result of a failed open are both safely disabled.
type Writer struct {
	f *os.File
}

// Open opens path for appending and writes the header row. On any error
// the returned writer is disabled and all writes become no-ops.
func Open(path string, columns []string) *Writer {
	return open(path, columns, os.O_APPEND|os.O_CREATE|os.O_WRONLY)
}

// Create truncates path, opens it for writing and writes the header row.
func Create(path string, columns []string) *Writer {
	return open(path, columns, os.O_TRUNC|os.O_CREATE|os.O_WRONLY)
}

func open(path string, columns []string, flag int) *Writer {
	f, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		return &Writer{}
	}
	w := &Writer{f: f}
	w.writeLine(strings.Join(columns, "\t"))
	return w
}

// Enabled reports whether rows will actually reach the file.
func (w *Writer) Enabled() bool {
	return w != nil && w.f != nil
}

// WriteRow appends one tab-separated row. Floats are written with six
// decimal places, booleans as 0/1, matching the reference log format.
func (w *Writer) WriteRow(values ...any) {
	if !w.Enabled() {
		return
	}
	fields := make([]string, len(values))
	for i, v := range values {
		fields[i] = formatField(v)
	}
	w.writeLine(strings.Join(fields, "\t"))
}

func formatField(v any) string {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'f', 6, 64)
	case bool:
		if x {
			return "1"
		}
		return "0"
	case int:
		return strconv.Itoa(x)
	case string:
		return x
	default:
		return ""
	}
}

func (w *Writer) writeLine(line string) {
	if _, err := w.f.WriteString(line + "\n"); err != nil {
		// A failed write disables further logging for this instance.
		_ = w.f.Close()
		w.f = nil
	}
}

// Close releases the file handle. Safe to call on a disabled or already
// closed writer.
func (w *Writer) Close() {
	if w == nil || w.f == nil {
		return
	}
	_ = w.f.Close()
	w.f = nil
}
