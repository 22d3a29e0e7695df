package ddrescue

import (
	"fmt"
	"math"
)

// This file implements the status-file algebra: logical combinators over
// finished bits, type mapping, domain restriction, block listing,
// done-ness testing and summary, operating on mapfiles as values.
// Grounded directly on ddrescuelog.cc's do_logic_ops/change_types/
// compare_logfiles/create_logfile/test_if_done/do_show_status.

// forEachInDomain walks the sblocks of mb that lie wholly inside one area
// of d, stopping once the domain has been passed (mirrors the repeated
// "if !domain.includes(sb) { if domain < sb break else continue }" guard
// that opens every ddrescuelog.cc operation). An sblock that only partly
// overlaps d is skipped. fn's return value is added to the index: 1 moves
// on, 0 revisits the same index, a negative value steps back.
func forEachInDomain(mb *Mapbook, d Domain, fn func(i int) int) {
	for i := 0; i < mb.Sblocks(); {
		sb := mb.Sblock(i)
		if !d.Includes(sb.Block) {
			if d.Less(sb.Block) {
				break
			}
			i++
			continue
		}
		delta := fn(i)
		i += delta
	}
}

// overlaySegments walks d, splitting it at every sblock boundary present
// in either logbook or logbook2, and calls fn once per resulting segment
// with the status each side assigns that segment. Mutating logbook
// through fn is safe: ChangeChunkStatus always locates its target by
// position, never by a stale index, so a merge triggered by an earlier
// segment can never corrupt a later one. This replaces ddrescuelog.cc's
// find_chunk-and-revisit dance (do_logic_ops), which assumes a vector
// layout this package does not guarantee under repeated in-place merges.
func overlaySegments(logbook, logbook2 *Mapbook, d Domain, fn func(seg Block, status1, status2 Status)) {
	for a := 0; a < d.Blocks(); a++ {
		area := d.Area(a)
		pos := area.Pos
		for pos < area.End() {
			i1 := logbook.FindIndex(pos)
			i2 := logbook2.FindIndex(pos)
			var st1, st2 Status
			end := area.End()
			if i1 < logbook.Sblocks() {
				sb1 := logbook.Sblock(i1)
				st1 = sb1.Status
				if sb1.End() < end {
					end = sb1.End()
				}
			}
			if i2 < logbook2.Sblocks() {
				sb2 := logbook2.Sblock(i2)
				st2 = sb2.Status
				if sb2.End() < end {
					end = sb2.End()
				}
			}
			seg := Block{Pos: pos, Size: end - pos}
			fn(seg, st1, st2)
			pos = end
		}
	}
}

// And computes the finished-AND of logbook and logbook2 in place on
// logbook: a byte stays finished only if it is finished in both; any
// byte finished in logbook but not in logbook2 becomes bad_sector.
func And(logbook, logbook2 *Mapbook, d Domain) {
	overlaySegments(logbook, logbook2, d, func(seg Block, st1, st2 Status) {
		if st1 != Finished {
			return
		}
		if st2 != Finished {
			logbook.ChangeChunkStatus(seg, BadSector)
		}
	})
	logbook.Compact()
}

// Or computes the finished-OR of logbook and logbook2 in place on
// logbook: a byte becomes finished if it is finished in either.
func Or(logbook, logbook2 *Mapbook, d Domain) {
	overlaySegments(logbook, logbook2, d, func(seg Block, st1, st2 Status) {
		if st1 != Finished && st2 == Finished {
			logbook.ChangeChunkStatus(seg, Finished)
		}
	})
	logbook.Compact()
}

// Xor computes the finished-XOR of logbook and logbook2 in place on
// logbook: a byte becomes finished if exactly one side marks it
// finished, bad_sector if both do.
func Xor(logbook, logbook2 *Mapbook, d Domain) {
	overlaySegments(logbook, logbook2, d, func(seg Block, st1, st2 Status) {
		switch {
		case st1 == Finished && st2 == Finished:
			logbook.ChangeChunkStatus(seg, BadSector)
		case st1 != Finished && st2 == Finished:
			logbook.ChangeChunkStatus(seg, Finished)
		}
	})
	logbook.Compact()
}

// ChangeTypes remaps every sblock whose status appears in types1 to the
// status at the same index in types2 (types2 is padded by repeating its
// last character if shorter than types1). Invert is the special case
// ChangeTypes(mb, d, "?*/-+", "++++-").
func ChangeTypes(mb *Mapbook, d Domain, types1, types2 []Status) {
	if len(types2) < len(types1) && len(types2) > 0 {
		last := types2[len(types2)-1]
		for len(types2) < len(types1) {
			types2 = append(types2, last)
		}
	}
	type remap struct {
		block  Block
		status Status
	}
	var remaps []remap
	forEachInDomain(mb, d, func(i int) int {
		sb := mb.Sblock(i)
		for j, t := range types1 {
			if sb.Status == t {
				remaps = append(remaps, remap{sb.Block, types2[j]})
				break
			}
		}
		return 1
	})
	for _, r := range remaps {
		mb.ChangeChunkStatus(r.block, r.status)
	}
	mb.Compact()
}

// Invert flips finished bytes to bad_sector and every other status to
// finished (ddrescuelog.cc's -n/--invert-logfile).
func Invert(mb *Mapbook, d Domain) {
	ChangeTypes(mb, d,
		[]Status{NonTried, NonTrimmed, NonSplit, BadSector, Finished},
		[]Status{Finished, Finished, Finished, Finished, BadSector})
}

// Compare reports whether logbook and logbook2 agree on every sblock
// within d (including having the same domain). The check runs in both
// directions, so a range within d covered by only one of the two counts
// as a difference. A non-nil error names the first disagreement,
// mirroring compare_logfiles' diagnostic.
func Compare(logbook, logbook2 *Mapbook, d Domain, path1, path2 string) error {
	var mismatch error
	for _, pair := range [2][2]*Mapbook{{logbook, logbook2}, {logbook2, logbook}} {
		a, b := pair[0], pair[1]
		forEachInDomain(a, d, func(i int) int {
			if mismatch != nil {
				return 1
			}
			sb := a.Sblock(i)
			j := b.FindIndex(sb.Pos)
			if j >= b.Sblocks() || b.Sblock(j) != sb {
				mismatch = fmt.Errorf("logfiles %q and %q differ", path1, path2)
			}
			return 1
		})
	}
	return mismatch
}

// ListBlocks returns, in ascending order with duplicates suppressed, the
// hardbs-sized block numbers of every byte in d whose status appears in
// types, using a BlockSet exactly as create-logfile's stdin side does.
func ListBlocks(mb *Mapbook, d Domain, types []Status, hardbs int64) []int64 {
	set := NewBlockSet()
	for i := 0; i < mb.Sblocks(); i++ {
		sb := mb.Sblock(i)
		for _, t := range types {
			if sb.Status == t {
				for a := 0; a < d.Blocks(); a++ {
					if part := sb.Block.Intersect(d.Area(a)); !part.IsEmpty() {
						set.AddRange(part.Pos/hardbs, (part.End()-1)/hardbs)
					}
				}
				break
			}
		}
	}
	return set.Slice()
}

// CreateFromBlocklist builds a fresh Mapbook covering d, every byte
// marked type2, except the hardbs-sized blocks named in blockNumbers,
// which are marked type1 (ddrescuelog.cc's create_logfile). A block
// number above math.MaxInt64/hardbs is rejected with an error.
func CreateFromBlocklist(d Domain, hardbs int64, blockNumbers []int64, type1, type2 Status) (*Mapbook, error) {
	if hardbs <= 0 {
		return nil, fmt.Errorf("invalid block size %d", hardbs)
	}
	mb := NewMapbook("", d)
	for i := 0; i < mb.Sblocks(); i++ {
		mb.ChangeSblockStatus(i, type2)
	}
	for _, blk := range blockNumbers {
		if blk > math.MaxInt64/hardbs {
			return nil, fmt.Errorf("block number %d too large for block size %d", blk, hardbs)
		}
		b := Block{Pos: blk * hardbs, Size: hardbs}
		if d.Includes(b) {
			mb.ChangeChunkStatus(b, type1)
		}
	}
	mb.TruncateVector(d.End(), true)
	return mb, nil
}

// DoneStatusDomain reports whether every sblock in d is Finished
// (test_if_done without deletion). An sblock that only partly overlaps d
// is checked too.
func DoneStatusDomain(mb *Mapbook, d Domain) bool {
	return mb.DoneStatus(d, false)
}

// SummaryStats is the aggregate produced by do_show_status: per-status
// byte totals, area counts (maximal runs after domain restriction), and
// the number of distinct error regions.
type SummaryStats struct {
	SizeByStatus  map[Status]int64
	AreasByStatus map[Status]int
	Errors        int
	DomainSize    int64
	DomainAreas   int
	CurrentPos    int64
	CurrentStatus Status
}

// Summary computes SummaryStats for mb restricted to d.
func Summary(mb *Mapbook, d Domain) SummaryStats {
	st := SummaryStats{
		SizeByStatus:  make(map[Status]int64),
		AreasByStatus: make(map[Status]int),
		DomainSize:    d.Size(),
		DomainAreas:   d.Blocks(),
		CurrentPos:    mb.CurrentPos(),
		CurrentStatus: mb.CurrentStatus(),
	}
	var oldStatus Status
	var prevEnd int64
	firstBlock, good := true, true
	forEachInDomain(mb, d, func(i int) int {
		sb := mb.Sblock(i)
		if !firstBlock && sb.Pos != prevEnd {
			// bytes outside d separate this sblock from the previous one
			firstBlock, good = true, true
		}
		prevEnd = sb.End()
		sc := firstBlock || sb.Status != oldStatus
		firstBlock = false
		st.SizeByStatus[sb.Status] += sb.Size
		switch sb.Status {
		case NonTried, Finished:
			good = true
		default:
			if good {
				good = false
				st.Errors++
			}
		}
		if sc {
			st.AreasByStatus[sb.Status]++
		}
		oldStatus = sb.Status
		return 1
	})
	return st
}
