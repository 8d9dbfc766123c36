package logging

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/nvandessel/lhvsim/internal/constants"
	"github.com/nvandessel/lhvsim/internal/engine"
)

// TrialLogHeader is the first line of a fresh trial log.
const TrialLogHeader = "Setting A, Setting B, Angle A, Angle B, Spin A, Spin B, A Detected, B Detected, Hidden variable\n"

// TrialLog writes one comma-separated line per trial. Lines are buffered
// and written once the buffer passes constants.TrialLogFlushBytes.
// A nil TrialLog ignores every call.
//
// A TrialLog is not safe for concurrent use; the engine calls it from its
// single trial loop.
type TrialLog struct {
	file *os.File
	buf  bytes.Buffer
	err  error
}

var _ engine.TrialObserver = (*TrialLog)(nil)

// OpenTrialLog opens path for writing. A new log truncates the file and
// writes the header. With appendMode the file is extended, and the header
// is written only if the file is empty.
func OpenTrialLog(path string, appendMode bool) (*TrialLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if appendMode {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening trial log: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat trial log: %w", err)
	}

	l := &TrialLog{file: f}
	if info.Size() == 0 {
		l.buf.WriteString(TrialLogHeader)
	}
	return l, nil
}

// ObserveTrial appends one line for t.
func (l *TrialLog) ObserveTrial(t engine.Trial) {
	if l == nil || l.file == nil || l.err != nil {
		return
	}

	b := l.buf.AvailableBuffer()
	b = strconv.AppendInt(b, int64(t.SettingA), 10)
	b = append(b, ", "...)
	b = strconv.AppendInt(b, int64(t.SettingB), 10)
	b = append(b, ", "...)
	b = strconv.AppendFloat(b, t.AngleA, 'g', -1, 64)
	b = append(b, ", "...)
	b = strconv.AppendFloat(b, t.AngleB, 'g', -1, 64)
	b = append(b, ", "...)
	b = strconv.AppendInt(b, int64(t.OutcomeA), 10)
	b = append(b, ", "...)
	b = strconv.AppendInt(b, int64(t.OutcomeB), 10)
	b = append(b, ", "...)
	b = appendDetected(b, t.OutcomeA.Detected())
	b = append(b, ", "...)
	b = appendDetected(b, t.OutcomeB.Detected())
	b = append(b, ", "...)
	b = strconv.AppendFloat(b, math.Round(t.Lambda*100)/100, 'f', -1, 64)
	b = append(b, '\n')
	l.buf.Write(b)

	if l.buf.Len() > constants.TrialLogFlushBytes {
		l.Flush()
	}
}

func appendDetected(b []byte, detected bool) []byte {
	if detected {
		return append(b, '1')
	}
	return append(b, '0')
}

// Flush writes buffered lines to the file.
func (l *TrialLog) Flush() error {
	if l == nil || l.file == nil {
		return nil
	}
	if l.err != nil {
		return l.err
	}
	if l.buf.Len() == 0 {
		return nil
	}
	if _, err := l.file.Write(l.buf.Bytes()); err != nil {
		l.err = fmt.Errorf("writing trial log: %w", err)
		return l.err
	}
	l.buf.Reset()
	return nil
}

// Err returns the first write error, if any.
func (l *TrialLog) Err() error {
	if l == nil {
		return nil
	}
	return l.err
}

// Close flushes and closes the file. It returns the first error seen.
func (l *TrialLog) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	flushErr := l.Flush()
	closeErr := l.file.Close()
	l.file = nil
	if flushErr != nil {
		return flushErr
	}
	if closeErr != nil {
		return fmt.Errorf("closing trial log: %w", closeErr)
	}
	return nil
}
