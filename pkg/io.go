package ddrescue

import (
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"golang.org/x/sys/unix"
)

// interruptSignum latches the first terminating signal received, mirroring
// io.cc's "int volatile signum_" set from a true signal handler. Go cannot
// run arbitrary code inside an async-signal-handler context, so the latch
// is instead set by a dedicated goroutine fed by signal.Notify — the
// single-assignment semantics (first signal wins, further signals ignored
// until SetSignals is called again) are preserved.
var interruptSignum atomic.Int32

var signalCh chan os.Signal

// SetSignals arms SIGHUP/SIGINT/SIGTERM to set the interrupt latch, and
// ignores SIGUSR1/SIGUSR2, matching io.cc's set_signals. Call once at
// startup, before the rescue loop begins.
func SetSignals() {
	interruptSignum.Store(0)
	signal.Ignore(syscall.SIGUSR1, syscall.SIGUSR2)

	signalCh = make(chan os.Signal, 4)
	signal.Notify(signalCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		for sig := range signalCh {
			signum := int32(signalNumber(sig))
			interruptSignum.CompareAndSwap(0, signum)
		}
	}()
}

func signalNumber(sig os.Signal) int {
	if s, ok := sig.(syscall.Signal); ok {
		return int(s)
	}
	return 0
}

// Interrupted reports whether a terminating signal has been latched.
func Interrupted() bool { return interruptSignum.Load() > 0 }

// SignaledExit restores the default disposition for the latched signal
// and re-raises it against this process, so the shell sees the
// conventional 128+signum exit status rather than a clean exit. It
// returns 128+signum for callers that need a value even if the raise is
// somehow swallowed (io.cc's signaled_exit behaves the same way).
func SignaledExit() int {
	signum := int(interruptSignum.Load())
	if signum <= 0 {
		return ExitOK
	}
	signal.Stop(signalCh)
	signal.Reset(syscall.Signal(signum))
	unix.Kill(os.Getpid(), syscall.Signal(signum))
	return 128 + signum
}

// ReadBlock reads up to len(buf) bytes from fd starting at pos, retrying
// across EINTR, and returns the number of bytes actually read. A short
// read with err == nil means EOF. Grounded on io.cc's readblock.
func ReadBlock(fd int, buf []byte, pos int64) (int, error) {
	sz := 0
	for sz < len(buf) {
		n, err := unix.Pread(fd, buf[sz:], pos+int64(sz))
		if n > 0 {
			sz += n
			continue
		}
		if n == 0 {
			break // EOF
		}
		if err == unix.EINTR {
			continue
		}
		return sz, err
	}
	return sz, nil
}

// WriteBlock writes buf to fd starting at pos, retrying across EINTR, and
// returns the number of bytes actually written; a short write always
// indicates an error. Grounded on io.cc's writeblock.
func WriteBlock(fd int, buf []byte, pos int64) (int, error) {
	sz := 0
	for sz < len(buf) {
		n, err := unix.Pwrite(fd, buf[sz:], pos+int64(sz))
		if n > 0 {
			sz += n
			continue
		}
		if err == unix.EINTR {
			continue
		}
		if err == nil {
			err = io.ErrShortWrite
		}
		return sz, err
	}
	return sz, nil
}
