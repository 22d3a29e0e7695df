package ddrescue

import (
	"bufio"
	"fmt"
	"os"
)

// Mapbook is the in-memory extent map: an ascending, gap-free, adjacent
// sequence of Sblocks covering the input file, plus the scalars persisted
// in the mapfile header. It mirrors the original's Mapbook/Logbook, kept
// as a plain slice (not the zerocopyskiplist set used elsewhere) because
// the engine needs indexed access and in-place splits at arbitrary
// positions, which a skiplist's ordered-insert API does not give cheaply.
type Mapbook struct {
	path          string
	sblocks       []Sblock
	currentPos    int64
	currentStatus Status
	comments      []string
}

// LoadMapbook reads path and validates the sblock sequence's invariants:
// ascending order, no gaps, no overlaps, and (unless strict is false) no
// two adjacent sblocks sharing a status, which a correctly-written
// mapfile never produces. strict=false accepts such redundant mapfiles;
// both binaries load with strict=true.
func LoadMapbook(path string, strict bool) (*Mapbook, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &EnvironmentError{Msg: "cannot open mapfile " + path, Err: err}
	}
	defer f.Close()

	hdr, sblocks, err := parseMapfile(path, bufio.NewScanner(f))
	if err != nil {
		return nil, err
	}

	if strict {
		for i := 1; i < len(sblocks); i++ {
			if sblocks[i].Status == sblocks[i-1].Status {
				return nil, &CorruptError{Path: path, Msg: fmt.Sprintf(
					"adjacent sblocks at 0x%x and 0x%x share status %c",
					sblocks[i-1].Pos, sblocks[i].Pos, sblocks[i].Status.Char())}
			}
		}
	}

	mb := &Mapbook{
		path:          path,
		sblocks:       sblocks,
		currentPos:    hdr.CurrentPos,
		currentStatus: hdr.CurrentStatus,
		comments:      hdr.Comments,
	}
	if err := mb.audit(); err != nil {
		return nil, err
	}
	return mb, nil
}

// NewMapbook builds a Mapbook covering exactly the given domain, every
// byte marked NonTried, for a fresh rescue with no pre-existing mapfile.
func NewMapbook(path string, d Domain) *Mapbook {
	sblocks := make([]Sblock, 0, d.Blocks())
	for i := 0; i < d.Blocks(); i++ {
		sblocks = append(sblocks, Sblock{Block: d.Area(i), Status: NonTried})
	}
	pos := int64(0)
	if d.Blocks() > 0 {
		pos = d.Start()
	}
	return &Mapbook{path: path, sblocks: sblocks, currentPos: pos, currentStatus: NonTried}
}

// Sblocks returns the number of sblocks in the map.
func (mb *Mapbook) Sblocks() int { return len(mb.sblocks) }

// Sblock returns the i'th sblock.
func (mb *Mapbook) Sblock(i int) Sblock { return mb.sblocks[i] }

// CurrentPos returns the persisted cursor (where the last run left off).
func (mb *Mapbook) CurrentPos() int64 { return mb.currentPos }

// CurrentStatus returns the persisted cursor's status.
func (mb *Mapbook) CurrentStatus() Status { return mb.currentStatus }

// SetCurrent updates the persisted cursor.
func (mb *Mapbook) SetCurrent(pos int64, status Status) {
	mb.currentPos = pos
	mb.currentStatus = status
}

// FindIndex returns the index of the sblock containing pos, or the index
// it would occupy (len(sblocks) if pos is past the end) if no sblock
// contains it. Binary search, mirroring the original's find_index.
func (mb *Mapbook) FindIndex(pos int64) int {
	lo, hi := 0, len(mb.sblocks)
	for lo < hi {
		mid := (lo + hi) / 2
		if mb.sblocks[mid].End() <= pos {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// ChangeSblockStatus overwrites the status of the i'th sblock in place,
// then merges it with neighbors sharing the new status (Compact's local
// form, applied eagerly so the vector never carries adjacent same-status
// runs).
func (mb *Mapbook) ChangeSblockStatus(i int, newStatus Status) {
	mb.sblocks[i].Status = newStatus
	mb.mergeAround(i)
}

// ChangeChunkStatus overwrites the status of every sblock area touching
// block to newStatus, splitting boundary sblocks as needed, and returns
// the net change in the number of sblocks of each status (statuses whose
// count did not change are absent).
func (mb *Mapbook) ChangeChunkStatus(block Block, newStatus Status) map[Status]int64 {
	delta := make(map[Status]int64)
	if block.IsEmpty() {
		return delta
	}
	for _, sb := range mb.sblocks {
		delta[sb.Status]--
	}

	i := mb.FindIndex(block.Pos)
	for i < len(mb.sblocks) && mb.sblocks[i].Pos < block.End() {
		sb := mb.sblocks[i]
		inter := sb.Block.Intersect(block)
		if inter.IsEmpty() {
			i++
			continue
		}

		if inter == sb.Block {
			mb.sblocks[i].Status = newStatus
			i++
			continue
		}

		// Partial overlap: split sb so the overlapped part can change
		// status independently of the rest.
		left, mid, right := splitThree(sb.Block, inter)
		replacement := make([]Sblock, 0, 3)
		if !left.IsEmpty() {
			replacement = append(replacement, Sblock{Block: left, Status: sb.Status})
		}
		replacement = append(replacement, Sblock{Block: mid, Status: newStatus})
		if !right.IsEmpty() {
			replacement = append(replacement, Sblock{Block: right, Status: sb.Status})
		}

		mb.sblocks = append(mb.sblocks[:i], append(replacement, mb.sblocks[i+1:]...)...)
		i += len(replacement)
	}

	mb.Compact()
	for _, sb := range mb.sblocks {
		delta[sb.Status]++
	}
	for st, n := range delta {
		if n == 0 {
			delete(delta, st)
		}
	}
	return delta
}

// splitThree splits whole into the parts before, equal to, and after
// inter, which must be a (possibly improper) sub-block of whole.
func splitThree(whole, inter Block) (left, mid, right Block) {
	left = Block{Pos: whole.Pos, Size: inter.Pos - whole.Pos}
	mid = inter
	right = Block{Pos: inter.End(), Size: whole.End() - inter.End()}
	return
}

// SplitSblockBy splits the sblock at index i into two at pos, duplicating
// its status on both halves. pos must lie strictly inside sblocks[i].
func (mb *Mapbook) SplitSblockBy(pos int64, i int) {
	sb := mb.sblocks[i]
	if !sb.Block.Includes(pos) || pos == sb.Pos {
		return
	}
	left, right := sb.Block.SplitAt(pos)
	mb.sblocks[i] = Sblock{Block: left, Status: sb.Status}
	tail := append([]Sblock{{Block: right, Status: sb.Status}}, mb.sblocks[i+1:]...)
	mb.sblocks = append(mb.sblocks[:i+1], tail...)
}

// TruncateVector drops (or shrinks) sblocks past end, then — if
// fillWithNonTried — appends a trailing NonTried sblock from the current
// end out to end, matching the original's truncate_vector behaviour when
// the input file has grown since the mapfile was written.
func (mb *Mapbook) TruncateVector(end int64, fillWithNonTried bool) {
	i := 0
	for i < len(mb.sblocks) && mb.sblocks[i].Pos < end {
		i++
	}
	if i > 0 && mb.sblocks[i-1].End() > end {
		mb.sblocks[i-1].Size = end - mb.sblocks[i-1].Pos
	}
	mb.sblocks = mb.sblocks[:i]

	if fillWithNonTried {
		cur := int64(0)
		if len(mb.sblocks) > 0 {
			cur = mb.sblocks[len(mb.sblocks)-1].End()
		}
		if cur < end {
			mb.sblocks = appendSblockJoined(mb.sblocks, Sblock{Block: Block{Pos: cur, Size: end - cur}, Status: NonTried})
		}
	}
}

// Compact merges every run of adjacent sblocks sharing a status into one,
// restoring the "no two touching same-status sblocks" invariant after any
// bulk mutation.
func (mb *Mapbook) Compact() {
	if len(mb.sblocks) < 2 {
		return
	}
	out := mb.sblocks[:1]
	for _, sb := range mb.sblocks[1:] {
		last := &out[len(out)-1]
		if last.Status == sb.Status && last.End() == sb.Pos {
			last.Size += sb.Size
			continue
		}
		out = append(out, sb)
	}
	mb.sblocks = out
}

func (mb *Mapbook) mergeAround(i int) {
	if i > 0 && mb.sblocks[i-1].Status == mb.sblocks[i].Status && mb.sblocks[i-1].End() == mb.sblocks[i].Pos {
		mb.sblocks[i-1].Size += mb.sblocks[i].Size
		mb.sblocks = append(mb.sblocks[:i], mb.sblocks[i+1:]...)
		i--
	}
	if i+1 < len(mb.sblocks) && mb.sblocks[i].Status == mb.sblocks[i+1].Status && mb.sblocks[i].End() == mb.sblocks[i+1].Pos {
		mb.sblocks[i].Size += mb.sblocks[i+1].Size
		mb.sblocks = append(mb.sblocks[:i+1], mb.sblocks[i+2:]...)
	}
}

func appendSblockJoined(sblocks []Sblock, sb Sblock) []Sblock {
	if n := len(sblocks); n > 0 && sblocks[n-1].Status == sb.Status && sblocks[n-1].End() == sb.Pos {
		sblocks[n-1].Size += sb.Size
		return sblocks
	}
	return append(sblocks, sb)
}

// FindChunk scans forward from the start of block for the first maximal
// run of targetStatus sblocks intersecting block, used by the engine to
// pick the next area to read in each phase.
func (mb *Mapbook) FindChunk(block Block, targetStatus Status) Block {
	i := mb.FindIndex(block.Pos)
	for i < len(mb.sblocks) && mb.sblocks[i].Pos < block.End() {
		if mb.sblocks[i].Status != targetStatus {
			i++
			continue
		}
		start := i
		for i < len(mb.sblocks) && mb.sblocks[i].Status == targetStatus && mb.sblocks[i].Pos < block.End() {
			i++
		}
		run := Block{Pos: mb.sblocks[start].Pos, Size: mb.sblocks[i-1].End() - mb.sblocks[start].Pos}
		return run.Intersect(block)
	}
	return Block{}
}

// DoneStatus reports whether every sblock intersecting d has a "done"
// status for the given minimum (Finished alone, or Finished+BadSector
// when includingBad is true). An sblock that only partly overlaps d is
// checked too.
func (mb *Mapbook) DoneStatus(d Domain, includingBad bool) bool {
	for i := range mb.sblocks {
		sb := mb.sblocks[i]
		if !d.Includes(sb.Block) && !overlapsDomain(d, sb.Block) {
			continue
		}
		switch sb.Status {
		case Finished:
			continue
		case BadSector:
			if includingBad {
				continue
			}
			return false
		default:
			return false
		}
	}
	return true
}

func overlapsDomain(d Domain, b Block) bool {
	for i := 0; i < d.Blocks(); i++ {
		if d.Area(i).Overlaps(b) {
			return true
		}
	}
	return false
}

// Save writes the mapbook to path atomically: serialize to a temp file in
// the same directory, fsync it, then rename over path. commandLine is
// recorded in the header comment for operator traceability.
func (mb *Mapbook) Save(path string, commandLine string) error {
	tmp := tempPathFor(path)
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return &EnvironmentError{Msg: "cannot create " + tmp, Err: err}
	}

	hdr := mapfileHeader{CurrentPos: mb.currentPos, CurrentStatus: mb.currentStatus, Comments: mb.comments}
	if err := writeMapfile(f, hdr, mb.sblocks, commandLine); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := atomicReplace(f, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// audit re-validates the positive-size/gap-free/non-overlap invariants
// when the "audit" debug flag is enabled, panicking via InternalPanic on
// violation (these would indicate a bug in this package, never bad user
// input, which LoadMapbook already rejects). Only LoadMapbook calls it;
// the mutators do not run it after changing the vector.
func (mb *Mapbook) audit() error {
	if !IsDebugEnabled("audit") {
		return nil
	}
	var lastEnd int64 = -1
	for i, sb := range mb.sblocks {
		if sb.Size <= 0 {
			InternalPanic("mapbook audit: sblock %d has non-positive size", i)
		}
		if lastEnd >= 0 && sb.Pos != lastEnd {
			InternalPanic("mapbook audit: gap/overlap before sblock %d", i)
		}
		lastEnd = sb.End()
	}
	return nil
}
