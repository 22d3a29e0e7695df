package ddrescue

import (
	"context"
	"time"

	"golang.org/x/sys/unix"
)

// Phase identifies one of the four stages of the rescue state machine.
type Phase int

const (
	PhaseCopying Phase = iota
	PhaseTrimming
	PhaseScraping
	PhaseRetrying
	phaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseCopying:
		return "copying"
	case PhaseTrimming:
		return "trimming"
	case PhaseScraping:
		return "scraping"
	case PhaseRetrying:
		return "retrying"
	default:
		return "done"
	}
}

// Config gathers every knob the rescue engine reads, mirroring the
// rescue (ddrescue) CLI surface.
type Config struct {
	ClusterSize  int64 // default 64 KiB
	HardBS       int64 // sector size, default 512
	SkipBS       int64 // skip floor, 0 disables skipping
	MaxSkipBS    int64
	MaxRetries   int   // -1 = infinite
	MaxErrors    int64 // -1 = unbounded
	MaxErrorsNew bool  // "+n" variant: count only new errors
	NoScrape     bool
	NoTrim       bool
	NoSplit      bool
	Reverse      bool
	Unidirectional bool
	ExitOnError  bool
	ReopenOnError bool
	VerifyOnError bool
	Sparse       bool
	Timeout      time.Duration // 0 disables
	MaxReadRate  float64       // bytes/sec, 0 disables
	MinReadRate  float64       // bytes/sec, 0 disables
	Pause        time.Duration // sleep between passes, 0 disables
	UpdateInterval time.Duration // default <=30s
	UpdateOps    int64
	CompleteOnly bool
	Cpass        map[Phase]bool // nil = all phases enabled
	MapfilePath  string
	CommandLine  string
}

func defaultConfig() Config {
	return Config{
		ClusterSize:    128 * 512,
		HardBS:         512,
		SkipBS:         64 * 1024,
		MaxRetries:     0,
		MaxErrors:      -1,
		UpdateInterval: 30 * time.Second,
		UpdateOps:      100,
	}
}

// Stats accumulates the per-run counters the engine reports and that
// the rate log records.
type Stats struct {
	ErrorsTotal     int64
	ErrorsNew       int64
	ErrSize         int64
	BytesRead       int64
	StartTime       time.Time
	LastSuccessTime time.Time
	LastGoodPos     int64
}

// Engine drives the four-phase rescue state machine against an input
// descriptor, an output descriptor, and a Mapbook. It is single-threaded
// and cooperative: blocking only happens at a few well-defined suspension
// points (positional read, positional write, rate-limit sleep, and the
// mapfile-flush rename).
type Engine struct {
	cfg     Config
	mb      *Mapbook
	domain  Domain
	inPath  string
	inFd    int
	outFd   int
	skip    *SkipController
	rateLog *RateLog
	readLog *ReadLog
	stats   Stats
}

// NewEngine builds an Engine. inFd and outFd are already-open positional
// file descriptors; the caller owns their lifetime. inPath is the path
// inFd was opened from, kept around so --reopen-on-error can reopen the
// real input file rather than just the existing descriptor.
func NewEngine(cfg Config, mb *Mapbook, domain Domain, inPath string, inFd, outFd int, rateLog *RateLog, readLog *ReadLog) *Engine {
	if cfg.ClusterSize <= 0 {
		cfg.ClusterSize = defaultConfig().ClusterSize
	}
	if cfg.HardBS <= 0 {
		cfg.HardBS = defaultConfig().HardBS
	}
	return &Engine{
		cfg:     cfg,
		mb:      mb,
		domain:  domain,
		inPath:  inPath,
		inFd:    inFd,
		outFd:   outFd,
		skip:    NewSkipController(cfg.SkipBS, cfg.MaxSkipBS),
		rateLog: rateLog,
		readLog: readLog,
		stats:   Stats{StartTime: nowFunc(), LastSuccessTime: nowFunc()},
	}
}

// nowFunc is a seam for deterministic tests.
var nowFunc = time.Now

// phaseEnabled reports whether phase p should run, honouring --cpass and
// the --no-trim/--no-scrape flags.
func (e *Engine) phaseEnabled(p Phase) bool {
	if e.cfg.Cpass != nil && !e.cfg.Cpass[p] {
		return false
	}
	switch p {
	case PhaseTrimming:
		return !e.cfg.NoTrim
	case PhaseScraping:
		return !e.cfg.NoScrape
	case PhaseRetrying:
		return e.cfg.MaxRetries != 0
	default:
		return true
	}
}

// Run executes every enabled phase in order and returns the final exit
// code. A signal observed mid-run aborts immediately after a final
// flush, returning 128+signum.
func (e *Engine) Run(ctx context.Context) (int, error) {
	phases := []Phase{PhaseCopying, PhaseTrimming, PhaseScraping, PhaseRetrying}
	ranFirst := false
	for _, p := range phases {
		if !e.phaseEnabled(p) {
			continue
		}
		if ranFirst && e.cfg.Pause > 0 {
			time.Sleep(e.cfg.Pause)
		}
		ranFirst = true
		e.mb.SetCurrent(e.mb.CurrentPos(), cursorStatusFor(p))
		code, err := e.runPhase(ctx, p)
		if code != ExitOK || err != nil {
			return code, err
		}
	}
	if err := e.flush(); err != nil {
		return ExitEnvironment, err
	}
	return ExitOK, nil
}

func cursorStatusFor(p Phase) Status {
	switch p {
	case PhaseCopying:
		return NonTried
	case PhaseTrimming:
		return NonTrimmed
	case PhaseScraping:
		return NonSplit
	default:
		return BadSector
	}
}

// runPhase runs one phase's iteration loop to completion.
func (e *Engine) runPhase(ctx context.Context, p Phase) (int, error) {
	retriesLeft := e.cfg.MaxRetries
	forward := !e.cfg.Reverse
	opsSinceFlush := int64(0)

	for {
		if Interrupted() {
			e.flush()
			return SignaledExit(), nil
		}
		if e.cfg.Timeout > 0 && nowFunc().Sub(e.stats.LastSuccessTime) > e.cfg.Timeout {
			e.flush()
			return ExitEnvironment, &EnvironmentError{Msg: "timeout: no progress"}
		}
		if e.cfg.MinReadRate > 0 && e.stats.BytesRead > 0 {
			elapsed := nowFunc().Sub(e.stats.StartTime).Seconds()
			if elapsed > 0 && e.currentAvgRate() < e.cfg.MinReadRate {
				e.flush()
				return ExitEnvironment, &EnvironmentError{Msg: "read rate below minimum"}
			}
		}

		target := e.pickTarget(p, forward)
		if target.IsEmpty() {
			if p == PhaseRetrying {
				if retriesLeft < 0 {
					continue // infinite retries: keep scanning bad regions
				}
				retriesLeft--
				if retriesLeft <= 0 {
					return ExitOK, nil
				}
				if !e.cfg.Unidirectional {
					forward = !forward
				}
				continue
			}
			return ExitOK, nil
		}

		e.rateLimit()

		buf := make([]byte, target.Size)
		n, rerr := ReadBlock(e.inFd, buf, target.Pos)

		if rerr != nil || int64(n) < target.Size {
			code := e.handleReadFailure(p, target, int64(n), rerr)
			if code != ExitOK {
				e.flush()
				return code, rerr
			}
		} else {
			if err := e.handleReadSuccess(p, target, buf); err != nil {
				e.flush()
				return ExitEnvironment, err
			}
		}

		opsSinceFlush++
		if opsSinceFlush >= e.cfg.UpdateOps || nowFunc().Sub(e.stats.LastSuccessTime) >= e.cfg.UpdateInterval {
			if err := e.flush(); err != nil {
				return ExitEnvironment, err
			}
			opsSinceFlush = 0
		}

		if p == PhaseCopying && e.noNonTriedLeft() {
			e.skip.MarkFullyScanned()
		}
	}
}

// findInDomain scans the domain area by area for the first run matching
// status, honouring forward to pick the leading or trailing area first.
// Scanning area-by-area (rather than the bounding Block{domain.Start(),
// domain.End()-domain.Start()}) keeps excluded gaps between areas out of
// every read/write/mark the engine performs.
func (e *Engine) findInDomain(status Status, forward bool) Block {
	n := e.domain.Blocks()
	if forward {
		for a := 0; a < n; a++ {
			if run := e.mb.FindChunk(e.domain.Area(a), status); !run.IsEmpty() {
				return run
			}
		}
		return Block{}
	}
	for a := n - 1; a >= 0; a-- {
		if run := e.mb.FindChunk(e.domain.Area(a), status); !run.IsEmpty() {
			return run
		}
	}
	return Block{}
}

// pickTarget selects the next range to attempt, per phase semantics.
func (e *Engine) pickTarget(p Phase, forward bool) Block {
	var status Status
	switch p {
	case PhaseCopying:
		status = NonTried
	case PhaseScraping:
		status = NonSplit
	case PhaseRetrying:
		status = BadSector
	case PhaseTrimming:
		return e.pickTrimTarget()
	}

	run := e.findInDomain(status, forward)
	if run.IsEmpty() {
		return Block{}
	}

	size := e.cfg.ClusterSize
	if p != PhaseCopying {
		size = e.cfg.HardBS
	}
	if forward {
		if run.Size > size {
			run.Size = size
		}
		return run
	}
	if run.Size > size {
		run = Block{Pos: run.End() - size, Size: size}
	}
	return run
}

// pickTrimTarget finds a sector-sized area adjoining a bad region from
// the good side.
func (e *Engine) pickTrimTarget() Block {
	run := e.findInDomain(NonTrimmed, true)
	if run.IsEmpty() {
		return Block{}
	}
	if run.Size > e.cfg.HardBS {
		run.Size = e.cfg.HardBS
	}
	return run
}

func (e *Engine) noNonTriedLeft() bool {
	for a := 0; a < e.domain.Blocks(); a++ {
		if !e.mb.FindChunk(e.domain.Area(a), NonTried).IsEmpty() {
			return false
		}
	}
	return true
}

// handleReadSuccess writes the range to the output (honouring sparse
// mode) and updates the map.
func (e *Engine) handleReadSuccess(p Phase, target Block, buf []byte) error {
	if !(e.cfg.Sparse && isAllZero(buf)) {
		if _, err := WriteBlock(e.outFd, buf, target.Pos); err != nil {
			return &EnvironmentError{Msg: "write error", Err: err}
		}
	}
	e.mb.ChangeChunkStatus(target, Finished)
	e.mb.SetCurrent(target.End(), Finished)
	e.stats.BytesRead += target.Size
	e.stats.LastSuccessTime = nowFunc()
	e.stats.LastGoodPos = target.Pos
	e.skip.OnSuccess()
	if e.readLog != nil {
		e.readLog.Write(nowFunc(), target.Pos, target.Size, OutcomeOK)
	}
	return nil
}

// handleReadFailure records the failure per phase and returns a nonzero
// exit code only for fatal conditions (--exit-on-error, max-errors
// exceeded, a failed --verify-on-error re-read, or a failed
// --reopen-on-error reopen).
func (e *Engine) handleReadFailure(p Phase, target Block, got int64, rerr error) int {
	e.stats.ErrorsTotal++
	if j := e.mb.FindIndex(target.Pos); j < e.mb.Sblocks() && e.mb.Sblock(j).Status.Good() {
		e.stats.ErrorsNew++
	}
	e.stats.ErrSize += target.Size - got
	if e.readLog != nil {
		e.readLog.Write(nowFunc(), target.Pos, target.Size, OutcomeError)
	}

	switch p {
	case PhaseCopying:
		e.mb.ChangeChunkStatus(target, NonTrimmed)
		skip := e.skip.OnError()
		if skip > 0 {
			e.mb.SetCurrent(target.Pos+skip, NonTried)
		}
		if e.readLog != nil {
			e.readLog.Write(nowFunc(), target.Pos, skip, OutcomeSkip)
		}
	case PhaseTrimming:
		e.mb.ChangeChunkStatus(target, NonSplit)
	case PhaseScraping, PhaseRetrying:
		e.mb.ChangeChunkStatus(target, BadSector)
	}

	if e.cfg.ExitOnError {
		return ExitEnvironment
	}
	if e.cfg.MaxErrors >= 0 {
		count := e.stats.ErrorsTotal
		if e.cfg.MaxErrorsNew {
			count = e.stats.ErrorsNew
		}
		if count > e.cfg.MaxErrors {
			return ExitEnvironment
		}
	}
	if e.cfg.VerifyOnError && !e.verifyLastGoodSector() {
		return ExitEnvironment
	}
	if e.cfg.ReopenOnError {
		unix.Close(e.inFd)
		fd, err := unix.Open(e.inPath, unix.O_RDONLY, 0)
		if err != nil {
			return ExitEnvironment
		}
		e.inFd = fd
	}
	return ExitOK
}

// verifyLastGoodSector re-reads the first sector of the most recent
// successful read (stats.LastGoodPos). A failure here means the drive itself is faulting, not
// just the sector that just failed, so the caller treats it as fatal.
func (e *Engine) verifyLastGoodSector() bool {
	buf := make([]byte, e.cfg.HardBS)
	n, err := ReadBlock(e.inFd, buf, e.stats.LastGoodPos)
	return err == nil && int64(n) == e.cfg.HardBS
}

// rateLimit sleeps as needed to keep the moving average at or below
// MaxReadRate.
func (e *Engine) rateLimit() {
	if e.cfg.MaxReadRate <= 0 {
		return
	}
	elapsed := nowFunc().Sub(e.stats.StartTime).Seconds()
	if elapsed <= 0 {
		return
	}
	avg := float64(e.stats.BytesRead) / elapsed
	if avg > e.cfg.MaxReadRate {
		overage := avg/e.cfg.MaxReadRate - 1
		time.Sleep(time.Duration(overage * float64(time.Second)))
	}
}

// flush persists the mapfile atomically and, if present, flushes the
// rate/read log buffers.
func (e *Engine) flush() error {
	if e.cfg.MapfilePath != "" {
		if err := e.mb.Save(e.cfg.MapfilePath, e.cfg.CommandLine); err != nil {
			return err
		}
	}
	e.rateLog.Write(nowFunc().Sub(e.stats.StartTime), e.mb.CurrentPos(),
		0, e.currentAvgRate(), e.stats.ErrorsTotal, e.stats.ErrSize)
	e.rateLog.Flush()
	e.readLog.Flush()
	return nil
}

func (e *Engine) currentAvgRate() float64 {
	elapsed := nowFunc().Sub(e.stats.StartTime).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(e.stats.BytesRead) / elapsed
}

func isAllZero(buf []byte) bool {
	for _, b := range buf {
		if b != 0 {
			return false
		}
	}
	return true
}
