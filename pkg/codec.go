package ddrescue

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"unsafe"

	"github.com/google/vectorio"
	"golang.org/x/sys/unix"
)

// mapfileHeader gathers the scalars kept alongside the sblock sequence.
// Only CurrentPos and CurrentStatus are parsed and written; CurrentPass
// and InputSize are neither read from nor written to the mapfile.
type mapfileHeader struct {
	CurrentPos    int64
	CurrentStatus Status
	CurrentPass   int
	InputSize     int64
	HasInputSize  bool
	Comments      []string // leading '#' lines preserved verbatim on rewrite
}

// parseMapfile reads the mapfile text grammar. It is tolerant of
// comments and blank lines, intolerant of ordering or overlap
// violations, which come back as *CorruptError naming the offending line.
func parseMapfile(path string, r *bufio.Scanner) (mapfileHeader, []Sblock, error) {
	var hdr mapfileHeader
	var sblocks []Sblock
	haveCursor := false
	lastEnd := int64(-1)

	lineNum := 0
	for r.Scan() {
		lineNum++
		line := strings.TrimSpace(r.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			if !haveCursor {
				hdr.Comments = append(hdr.Comments, line)
			}
			continue
		}

		fields := strings.Fields(line)

		if !haveCursor {
			if len(fields) != 2 {
				return hdr, nil, &CorruptError{Path: path, Line: lineNum,
					Msg: "expected '<current_pos> <current_status>' header line"}
			}
			pos, err := strconv.ParseInt(fields[0], 0, 64)
			if err != nil {
				return hdr, nil, &CorruptError{Path: path, Line: lineNum,
					Msg: fmt.Sprintf("bad current_pos %q", fields[0])}
			}
			if len(fields[1]) != 1 || !IsStatus(fields[1][0]) {
				return hdr, nil, &CorruptError{Path: path, Line: lineNum,
					Msg: fmt.Sprintf("bad current_status %q", fields[1])}
			}
			hdr.CurrentPos = pos
			hdr.CurrentStatus = Status(fields[1][0])
			haveCursor = true
			continue
		}

		if len(fields) != 3 {
			return hdr, nil, &CorruptError{Path: path, Line: lineNum,
				Msg: "expected '<pos> <size> <status>' sblock line"}
		}
		pos, err := strconv.ParseInt(fields[0], 0, 64)
		if err != nil {
			return hdr, nil, &CorruptError{Path: path, Line: lineNum,
				Msg: fmt.Sprintf("bad pos %q", fields[0])}
		}
		size, err := strconv.ParseInt(fields[1], 0, 64)
		if err != nil {
			return hdr, nil, &CorruptError{Path: path, Line: lineNum,
				Msg: fmt.Sprintf("bad size %q", fields[1])}
		}
		if size <= 0 {
			return hdr, nil, &CorruptError{Path: path, Line: lineNum,
				Msg: "sblock size must be positive"}
		}
		if len(fields[2]) != 1 || !IsStatus(fields[2][0]) {
			return hdr, nil, &CorruptError{Path: path, Line: lineNum,
				Msg: fmt.Sprintf("bad status %q", fields[2])}
		}
		status := Status(fields[2][0])

		if lastEnd >= 0 {
			if pos < lastEnd {
				return hdr, nil, &CorruptError{Path: path, Line: lineNum,
					Msg: fmt.Sprintf("sblock at 0x%x overlaps previous end 0x%x", pos, lastEnd)}
			}
			if pos > lastEnd {
				return hdr, nil, &CorruptError{Path: path, Line: lineNum,
					Msg: fmt.Sprintf("gap in mapfile: previous end 0x%x, next start 0x%x", lastEnd, pos)}
			}
		}
		lastEnd = pos + size
		sblocks = append(sblocks, Sblock{Block: Block{Pos: pos, Size: size}, Status: status})
	}
	if err := r.Err(); err != nil {
		return hdr, nil, &CorruptError{Path: path, Msg: err.Error()}
	}
	if !haveCursor {
		return hdr, nil, &CorruptError{Path: path, Msg: "missing header line"}
	}
	return hdr, sblocks, nil
}

// writeMapfile serializes hdr and sblocks in canonical form (hex
// positions, one sblock per line, ascending) to f's underlying file
// descriptor, batching the lines into vectorio.WritevRaw calls of up to
// 1024 lines each rather than one write(2) per line.
func writeMapfile(f *os.File, hdr mapfileHeader, sblocks []Sblock, commandLine string) error {
	var lines [][]byte
	lines = append(lines, []byte(fmt.Sprintf("# Mapfile. Created by ddrescuego\n")))
	if commandLine != "" {
		lines = append(lines, []byte(fmt.Sprintf("# Command line: %s\n", commandLine)))
	}
	for _, c := range hdr.Comments {
		lines = append(lines, []byte(c+"\n"))
	}
	lines = append(lines, []byte(fmt.Sprintf("0x%08x %c\n", hdr.CurrentPos, hdr.CurrentStatus.Char())))
	for _, sb := range sblocks {
		lines = append(lines, []byte(fmt.Sprintf("0x%08x  0x%08x  %c\n", sb.Pos, sb.Size, sb.Status.Char())))
	}

	iovecs := make([]syscall.Iovec, len(lines))
	for i, l := range lines {
		iovecs[i] = syscall.Iovec{
			Base: (*byte)(unsafe.Pointer(&l[0])),
			Len:  uint64(len(l)),
		}
	}

	const iovMax = 1024 // conservative IOV_MAX fallback, see golang/go#58623
	for off := 0; off < len(iovecs); off += iovMax {
		end := off + iovMax
		if end > len(iovecs) {
			end = len(iovecs)
		}
		if _, err := vectorio.WritevRaw(uintptr(f.Fd()), iovecs[off:end]); err != nil {
			return fmt.Errorf("writev mapfile: %w", err)
		}
	}
	return nil
}

// atomicReplace fsyncs f, closes it, then renames it over path, so a
// crash mid-write never leaves path holding a half-written mapfile.
func atomicReplace(f *os.File, path string) error {
	if err := unix.Fsync(int(f.Fd())); err != nil {
		f.Close()
		return fmt.Errorf("fsync: %w", err)
	}
	tmpPath := f.Name()
	if err := f.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// tempPathFor returns "<path>.tmp" in the same directory as path, so the
// final os.Rename is within one filesystem.
func tempPathFor(path string) string {
	return filepath.Join(filepath.Dir(path), filepath.Base(path)+".tmp")
}
