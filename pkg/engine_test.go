package ddrescue

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func openRW(t *testing.T, path string, content []byte) int {
	t.Helper()
	if content != nil {
		require.NoError(t, os.WriteFile(path, content, 0o644))
	}
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT, 0o644)
	require.NoError(t, err)
	t.Cleanup(func() { unix.Close(fd) })
	return fd
}

func TestEngineRunCopiesWholeFile(t *testing.T) {
	dir := t.TempDir()
	content := make([]byte, 4096)
	for i := range content {
		content[i] = byte(i)
	}
	inPath := filepath.Join(dir, "in")
	inFd := openRW(t, inPath, content)
	outFd := openRW(t, filepath.Join(dir, "out"), nil)

	d := DomainFromBlocks([]Block{NewBlock(0, int64(len(content)))})
	mb := NewMapbook("", d)

	cfg := defaultConfig()
	cfg.ClusterSize = 512
	cfg.HardBS = 512
	cfg.NoTrim = true
	cfg.NoScrape = true
	cfg.MaxRetries = 0

	eng := NewEngine(cfg, mb, d, inPath, inFd, outFd, nil, nil)
	code, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ExitOK, code)
	assert.True(t, mb.DoneStatus(d, false))

	got := make([]byte, len(content))
	n, err := ReadBlock(outFd, got, 0)
	require.NoError(t, err)
	require.Equal(t, len(content), n)
	assert.Equal(t, content, got)
}

func TestEngineRunSkipsDisabledPhases(t *testing.T) {
	dir := t.TempDir()
	content := []byte("hello world this is a test")
	inPath := filepath.Join(dir, "in")
	inFd := openRW(t, inPath, content)
	outFd := openRW(t, filepath.Join(dir, "out"), nil)

	d := DomainFromBlocks([]Block{NewBlock(0, int64(len(content)))})
	mb := NewMapbook("", d)

	cfg := defaultConfig()
	cfg.ClusterSize = 8
	cfg.HardBS = 8
	cfg.NoTrim = true
	cfg.NoScrape = true
	cfg.MaxRetries = 0

	eng := NewEngine(cfg, mb, d, inPath, inFd, outFd, nil, nil)
	_, err := eng.Run(context.Background())
	require.NoError(t, err)

	assert.False(t, eng.phaseEnabled(PhaseTrimming))
	assert.False(t, eng.phaseEnabled(PhaseScraping))
	assert.False(t, eng.phaseEnabled(PhaseRetrying))
}

func TestEnginePhaseEnabledRespectsCpass(t *testing.T) {
	eng := &Engine{cfg: Config{Cpass: map[Phase]bool{PhaseCopying: true}}}
	assert.True(t, eng.phaseEnabled(PhaseCopying))
	assert.False(t, eng.phaseEnabled(PhaseTrimming))
}

func TestPickTargetSkipsDomainGaps(t *testing.T) {
	d := DomainFromBlocks([]Block{NewBlock(0, 10), NewBlock(20, 10)})
	mb := NewMapbook("", DomainFromBlocks([]Block{NewBlock(0, 30)}))

	eng := &Engine{cfg: Config{ClusterSize: 100, HardBS: 1}, mb: mb, domain: d}

	target := eng.pickTarget(PhaseCopying, true)
	require.False(t, target.IsEmpty())
	assert.True(t, d.Includes(target))
	assert.False(t, target.Overlaps(NewBlock(10, 10)))
}

func TestNoNonTriedLeftRespectsDomainGaps(t *testing.T) {
	d := DomainFromBlocks([]Block{NewBlock(0, 10), NewBlock(20, 10)})
	mb := NewMapbook("", DomainFromBlocks([]Block{NewBlock(0, 30)}))

	mb.ChangeChunkStatus(NewBlock(0, 10), Finished)
	mb.ChangeChunkStatus(NewBlock(20, 10), Finished)
	// The gap [10,20) is left NonTried, but it isn't part of the domain so
	// it must not count against completion.
	eng := &Engine{cfg: Config{HardBS: 1}, mb: mb, domain: d}

	assert.True(t, eng.noNonTriedLeft())
}

func TestHandleReadFailureReopensRealInputFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte("reopen target contents")
	inPath := filepath.Join(dir, "in")
	inFd := openRW(t, inPath, content)

	eng := &Engine{
		cfg:    Config{ReopenOnError: true, HardBS: 1},
		mb:     NewMapbook("", DomainFromBlocks([]Block{NewBlock(0, int64(len(content)))})),
		inPath: inPath,
		inFd:   inFd,
		skip:   NewSkipController(0, 0),
	}

	code := eng.handleReadFailure(PhaseCopying, NewBlock(0, 1), 0, nil)
	require.Equal(t, ExitOK, code)

	got := make([]byte, len(content))
	n, err := ReadBlock(eng.inFd, got, 0)
	require.NoError(t, err)
	assert.Equal(t, content, got[:n])
}

func TestHandleReadFailureVerifyOnErrorAbortsOnBadReverify(t *testing.T) {
	dir := t.TempDir()
	inFd := openRW(t, filepath.Join(dir, "in"), []byte("short"))

	eng := &Engine{
		cfg:   Config{VerifyOnError: true, HardBS: 4096},
		mb:    NewMapbook("", DomainFromBlocks([]Block{NewBlock(0, 5)})),
		inFd:  inFd,
		stats: Stats{LastGoodPos: 0},
		skip:  NewSkipController(0, 0),
	}

	code := eng.handleReadFailure(PhaseCopying, NewBlock(0, 1), 0, nil)
	assert.Equal(t, ExitEnvironment, code)
}

func TestRunPhaseAbortsOnMinReadRate(t *testing.T) {
	dir := t.TempDir()
	content := make([]byte, 4096)
	inPath := filepath.Join(dir, "in")
	inFd := openRW(t, inPath, content)
	outFd := openRW(t, filepath.Join(dir, "out"), nil)

	d := DomainFromBlocks([]Block{NewBlock(0, int64(len(content)))})
	mb := NewMapbook("", d)

	cfg := defaultConfig()
	cfg.ClusterSize = 512
	cfg.HardBS = 512
	cfg.NoTrim, cfg.NoScrape, cfg.MaxRetries = true, true, 0
	cfg.MinReadRate = 1 << 40 // unreachably high, forces an immediate abort

	eng := NewEngine(cfg, mb, d, inPath, inFd, outFd, nil, nil)
	code, err := eng.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, ExitEnvironment, code)
}

func TestRunSleepsBetweenPhasesWhenPauseSet(t *testing.T) {
	dir := t.TempDir()
	content := []byte("pause between phases")
	inPath := filepath.Join(dir, "in")
	inFd := openRW(t, inPath, content)
	outFd := openRW(t, filepath.Join(dir, "out"), nil)

	d := DomainFromBlocks([]Block{NewBlock(0, int64(len(content)))})
	mb := NewMapbook("", d)

	cfg := defaultConfig()
	cfg.ClusterSize = 8
	cfg.HardBS = 8
	cfg.MaxRetries = 0
	cfg.Pause = time.Millisecond

	eng := NewEngine(cfg, mb, d, inPath, inFd, outFd, nil, nil)
	start := time.Now()
	_, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), cfg.Pause)
}

func TestIsAllZero(t *testing.T) {
	assert.True(t, isAllZero(make([]byte, 16)))
	buf := make([]byte, 16)
	buf[15] = 1
	assert.False(t, isAllZero(buf))
}
