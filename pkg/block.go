package ddrescue

import "fmt"

// Block is a half-open byte range [Pos, Pos+Size).
//
// Pos and Size are never negative in a well-formed Block; the zero value
// Block{} is the empty-block sentinel returned by lookups that find no
// match (see Mapbook.FindChunk).
type Block struct {
	Pos  int64
	Size int64
}

// NewBlock builds a Block, clamping a negative size to zero.
func NewBlock(pos, size int64) Block {
	if size < 0 {
		size = 0
	}
	return Block{Pos: pos, Size: size}
}

// End returns Pos+Size, the position just past the block.
func (b Block) End() int64 { return b.Pos + b.Size }

// IsEmpty reports whether the block has no bytes.
func (b Block) IsEmpty() bool { return b.Size <= 0 }

// Overlaps reports whether b and other share at least one byte.
func (b Block) Overlaps(other Block) bool {
	return b.Pos < other.End() && other.Pos < b.End()
}

// Includes reports whether pos lies within b.
func (b Block) Includes(pos int64) bool {
	return pos >= b.Pos && pos < b.End()
}

// IncludesBlock reports whether other lies entirely within b.
func (b Block) IncludesBlock(other Block) bool {
	return other.Pos >= b.Pos && other.End() <= b.End()
}

// Less reports whether b lies entirely before other (b.End() <= other.Pos).
// This mirrors the C++ Block::operator< used by ddrescue to test
// "domain precedes this sblock".
func (b Block) Less(other Block) bool {
	return b.End() <= other.Pos
}

// Intersect returns the overlap of b and other. The result is the empty
// sentinel (IsEmpty() true) when they do not overlap.
func (b Block) Intersect(other Block) Block {
	start := maxInt64(b.Pos, other.Pos)
	end := minInt64(b.End(), other.End())
	if end <= start {
		return Block{}
	}
	return Block{Pos: start, Size: end - start}
}

// SplitAt splits b at the absolute position pos into (left, right).
// pos must lie strictly within b; callers are expected to have checked
// this (spec-level invariant, not a runtime one here).
func (b Block) SplitAt(pos int64) (left, right Block) {
	left = Block{Pos: b.Pos, Size: pos - b.Pos}
	right = Block{Pos: pos, Size: b.End() - pos}
	return left, right
}

// Join merges b and other into a single block when they are adjacent
// (b.End() == other.Pos or other.End() == b.Pos). ok is false otherwise.
func (b Block) Join(other Block) (joined Block, ok bool) {
	if b.End() == other.Pos {
		return Block{Pos: b.Pos, Size: b.Size + other.Size}, true
	}
	if other.End() == b.Pos {
		return Block{Pos: other.Pos, Size: other.Size + b.Size}, true
	}
	return Block{}, false
}

func (b Block) String() string {
	return fmt.Sprintf("[0x%x, 0x%x)", b.Pos, b.End())
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
