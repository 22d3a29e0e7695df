package ddrescue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapbookFrom(t *testing.T, dSize int64, finished ...Block) *Mapbook {
	t.Helper()
	d := DomainFromBlocks([]Block{NewBlock(0, dSize)})
	mb := NewMapbook("", d)
	for _, b := range finished {
		mb.ChangeChunkStatus(b, Finished)
	}
	return mb
}

func TestAndLogic(t *testing.T) {
	a := mapbookFrom(t, 100, NewBlock(0, 100))
	b := mapbookFrom(t, 100, NewBlock(0, 50))
	d := DomainFromBlocks([]Block{NewBlock(0, 100)})

	And(a, b, d)

	assert.True(t, a.DoneStatus(DomainFromBlocks([]Block{NewBlock(0, 50)}), false))
	for i := 0; i < a.Sblocks(); i++ {
		sb := a.Sblock(i)
		if sb.Pos >= 50 {
			assert.Equal(t, BadSector, sb.Status)
		}
	}
}

func TestOrLogic(t *testing.T) {
	a := mapbookFrom(t, 100, NewBlock(0, 50))
	b := mapbookFrom(t, 100, NewBlock(50, 50))
	d := DomainFromBlocks([]Block{NewBlock(0, 100)})

	Or(a, b, d)

	assert.True(t, a.DoneStatus(d, false))
}

func TestXorLogic(t *testing.T) {
	a := mapbookFrom(t, 100, NewBlock(0, 100))
	b := mapbookFrom(t, 100, NewBlock(0, 50))
	d := DomainFromBlocks([]Block{NewBlock(0, 100)})

	Xor(a, b, d)

	assert.Equal(t, BadSector, a.Sblock(a.FindIndex(10)).Status)
	assert.Equal(t, Finished, a.Sblock(a.FindIndex(60)).Status)
}

func TestInvert(t *testing.T) {
	mb := mapbookFrom(t, 100, NewBlock(0, 40))
	d := DomainFromBlocks([]Block{NewBlock(0, 100)})
	Invert(mb, d)

	assert.Equal(t, BadSector, mb.Sblock(mb.FindIndex(10)).Status)
	assert.Equal(t, Finished, mb.Sblock(mb.FindIndex(60)).Status)
}

func TestChangeTypes(t *testing.T) {
	mb := mapbookFrom(t, 100, NewBlock(0, 100))
	d := DomainFromBlocks([]Block{NewBlock(0, 100)})
	ChangeTypes(mb, d, []Status{Finished}, []Status{BadSector})
	assert.Equal(t, BadSector, mb.Sblock(0).Status)
}

func TestCompareEqual(t *testing.T) {
	a := mapbookFrom(t, 100, NewBlock(0, 50))
	b := mapbookFrom(t, 100, NewBlock(0, 50))
	d := DomainFromBlocks([]Block{NewBlock(0, 100)})
	require.NoError(t, Compare(a, b, d, "a.map", "b.map"))
}

func TestCompareDiffers(t *testing.T) {
	a := mapbookFrom(t, 100, NewBlock(0, 50))
	b := mapbookFrom(t, 100, NewBlock(0, 40))
	d := DomainFromBlocks([]Block{NewBlock(0, 100)})
	assert.Error(t, Compare(a, b, d, "a.map", "b.map"))
}

func TestListBlocks(t *testing.T) {
	mb := mapbookFrom(t, 1024, NewBlock(0, 512))
	d := DomainFromBlocks([]Block{NewBlock(0, 1024)})
	blocks := ListBlocks(mb, d, []Status{Finished}, 512)
	assert.Equal(t, []int64{0}, blocks)

	blocks = ListBlocks(mb, d, []Status{NonTried}, 512)
	assert.Equal(t, []int64{1}, blocks)
}

func TestCreateFromBlocklist(t *testing.T) {
	d := DomainFromBlocks([]Block{NewBlock(0, 1024)})
	mb, err := CreateFromBlocklist(d, 512, []int64{1}, BadSector, NonTried)
	require.NoError(t, err)
	assert.Equal(t, BadSector, mb.Sblock(mb.FindIndex(600)).Status)
	assert.Equal(t, NonTried, mb.Sblock(mb.FindIndex(100)).Status)
}

func TestDoneStatusDomain(t *testing.T) {
	mb := mapbookFrom(t, 100, NewBlock(0, 100))
	d := DomainFromBlocks([]Block{NewBlock(0, 100)})
	assert.True(t, DoneStatusDomain(mb, d))
}

func TestSummaryCounts(t *testing.T) {
	mb := mapbookFrom(t, 100, NewBlock(0, 40))
	d := DomainFromBlocks([]Block{NewBlock(0, 100)})
	st := Summary(mb, d)
	assert.Equal(t, int64(40), st.SizeByStatus[Finished])
	assert.Equal(t, int64(60), st.SizeByStatus[NonTried])
	assert.Equal(t, int64(100), st.DomainSize)
}
