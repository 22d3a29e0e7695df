package ddrescue

import (
	"bufio"
	"fmt"
	"os"
	"time"
)

// RateLog is the process-wide append-only sink of
// (elapsed_sec, ipos, current_rate, avg_rate, errors, errsize) rows.
type RateLog struct {
	f *os.File
	w *bufio.Writer
}

// OpenRateLog opens path for appending, creating it if necessary.
func OpenRateLog(path string) (*RateLog, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, &EnvironmentError{Msg: "cannot open rate log " + path, Err: err}
	}
	return &RateLog{f: f, w: bufio.NewWriter(f)}, nil
}

// Write appends one row. avgRate and currentRate are bytes/second.
func (rl *RateLog) Write(elapsed time.Duration, ipos int64, currentRate, avgRate float64, errors, errsize int64) {
	if rl == nil {
		return
	}
	fmt.Fprintf(rl.w, "%.0f\t0x%08X\t%10.0f\t%10.0f\t%8d\t0x%08X\n",
		elapsed.Seconds(), ipos, currentRate, avgRate, errors, errsize)
}

// Flush pushes buffered rows to disk without closing the sink (called at
// each mapfile flush point so an operator tailing the log sees timely
// updates).
func (rl *RateLog) Flush() error {
	if rl == nil {
		return nil
	}
	return rl.w.Flush()
}

// Close flushes and closes the sink.
func (rl *RateLog) Close() error {
	if rl == nil {
		return nil
	}
	if err := rl.w.Flush(); err != nil {
		rl.f.Close()
		return err
	}
	return rl.f.Close()
}

// ReadLog is the process-wide append-only sink recording every attempted
// read as (time, pos, size, outcome).
type ReadLog struct {
	f *os.File
	w *bufio.Writer
}

// OpenReadLog opens path for appending, creating it if necessary.
func OpenReadLog(path string) (*ReadLog, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, &EnvironmentError{Msg: "cannot open read log " + path, Err: err}
	}
	return &ReadLog{f: f, w: bufio.NewWriter(f)}, nil
}

// Outcome is the terminal classification of one attempted read, recorded
// in the read log.
type Outcome byte

const (
	OutcomeOK      Outcome = '+'
	OutcomeError   Outcome = '-'
	OutcomeTrimmed Outcome = '/'
	OutcomeSkip    Outcome = '>'
)

// Write appends one row.
func (rl *ReadLog) Write(t time.Time, pos, size int64, outcome Outcome) {
	if rl == nil {
		return
	}
	fmt.Fprintf(rl.w, "%s\t0x%08X\t0x%08X\t%c\n", t.Format(time.RFC3339), pos, size, outcome)
}

// Flush pushes buffered rows to disk.
func (rl *ReadLog) Flush() error {
	if rl == nil {
		return nil
	}
	return rl.w.Flush()
}

// Close flushes and closes the sink.
func (rl *ReadLog) Close() error {
	if rl == nil {
		return nil
	}
	if err := rl.w.Flush(); err != nil {
		rl.f.Close()
		return err
	}
	return rl.f.Close()
}
