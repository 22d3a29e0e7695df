package ddrescue

import (
	zcsl "github.com/mattkeenan/zerocopyskiplist"
)

// BlockSet is an ascending, duplicate-suppressing set of block numbers,
// backed by zerocopyskiplist with the block number itself as the ordered
// key rather than a path. It gives list-blocks and create-logfile the
// "duplicates suppressed, ascending order" container they need.
type BlockSet struct {
	sl *zcsl.ZeroCopySkiplist[int64, int64, struct{}]
}

// NewBlockSet returns an empty BlockSet.
func NewBlockSet() *BlockSet {
	getKey := func(item *int64) int64 { return *item }
	getSize := func(item *int64) int { return 8 }
	cmpKey := func(a, b int64) int {
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		default:
			return 0
		}
	}
	return &BlockSet{sl: zcsl.MakeZeroCopySkiplist[int64, int64, struct{}](16, getKey, getSize, cmpKey)}
}

// Add inserts n, a no-op if n is already present.
func (bs *BlockSet) Add(n int64) {
	bs.sl.Insert(&n, struct{}{})
}

// AddRange inserts every block number in [firstBlock, lastBlock].
func (bs *BlockSet) AddRange(firstBlock, lastBlock int64) {
	for n := firstBlock; n <= lastBlock; n++ {
		bs.Add(n)
	}
}

// Contains reports whether n was added.
func (bs *BlockSet) Contains(n int64) bool {
	item, _ := bs.sl.Find(n)
	return item != nil
}

// Len returns the number of distinct block numbers held.
func (bs *BlockSet) Len() int { return bs.sl.Length() }

// Slice returns the block numbers in ascending order.
func (bs *BlockSet) Slice() []int64 {
	out := make([]int64, 0, bs.sl.Length())
	for cur := bs.sl.First(); cur != nil; cur = cur.Next() {
		out = append(out, *cur.Item())
	}
	return out
}
