package ddrescue

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempMapfile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.map")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadMapbookBasic(t *testing.T) {
	path := writeTempMapfile(t, "0x00000000 +\n0x00000000  0x00000100  +\n0x00000100  0x00000100  ?\n")
	mb, err := LoadMapbook(path, true)
	require.NoError(t, err)
	assert.Equal(t, 2, mb.Sblocks())
	assert.Equal(t, Finished, mb.Sblock(0).Status)
	assert.Equal(t, NonTried, mb.Sblock(1).Status)
}

func TestLoadMapbookGapIsCorrupt(t *testing.T) {
	path := writeTempMapfile(t, "0x00000000 +\n0x00000000  0x00000100  +\n0x00000200  0x00000100  ?\n")
	_, err := LoadMapbook(path, true)
	require.Error(t, err)
	var ce *CorruptError
	assert.ErrorAs(t, err, &ce)
}

func TestMapbookSaveRoundTrips(t *testing.T) {
	path := writeTempMapfile(t, "0x00000000 +\n0x00000000  0x00000100  +\n0x00000100  0x00000100  ?\n")
	mb, err := LoadMapbook(path, true)
	require.NoError(t, err)

	outPath := filepath.Join(t.TempDir(), "out.map")
	require.NoError(t, mb.Save(outPath, "ddrescue test"))

	reloaded, err := LoadMapbook(outPath, true)
	require.NoError(t, err)
	assert.Equal(t, mb.Sblocks(), reloaded.Sblocks())
	for i := 0; i < mb.Sblocks(); i++ {
		assert.Equal(t, mb.Sblock(i), reloaded.Sblock(i))
	}
}

func TestMapbookChangeChunkStatusSplits(t *testing.T) {
	d := DomainFromBlocks([]Block{NewBlock(0, 1000)})
	mb := NewMapbook("", d)

	delta := mb.ChangeChunkStatus(NewBlock(100, 200), Finished)
	assert.Equal(t, int64(1), delta[NonTried])
	assert.Equal(t, 3, mb.Sblocks())
	assert.Equal(t, NonTried, mb.Sblock(0).Status)
	assert.Equal(t, Finished, mb.Sblock(1).Status)
	assert.Equal(t, NonTried, mb.Sblock(2).Status)
	assert.Equal(t, NewBlock(100, 200), mb.Sblock(1).Block)
}

func TestMapbookChangeChunkStatusMerges(t *testing.T) {
	d := DomainFromBlocks([]Block{NewBlock(0, 300)})
	mb := NewMapbook("", d)
	mb.ChangeChunkStatus(NewBlock(0, 100), Finished)
	mb.ChangeChunkStatus(NewBlock(100, 100), Finished)
	require.Equal(t, 2, mb.Sblocks())
	assert.Equal(t, NewBlock(0, 200), mb.Sblock(0).Block)
}

func TestMapbookFindChunk(t *testing.T) {
	d := DomainFromBlocks([]Block{NewBlock(0, 300)})
	mb := NewMapbook("", d)
	mb.ChangeChunkStatus(NewBlock(100, 50), Finished)

	run := mb.FindChunk(NewBlock(0, 300), NonTried)
	assert.Equal(t, NewBlock(0, 100), run)
}

func TestMapbookSplitSblockBy(t *testing.T) {
	d := DomainFromBlocks([]Block{NewBlock(0, 100)})
	mb := NewMapbook("", d)
	mb.SplitSblockBy(40, 0)
	require.Equal(t, 2, mb.Sblocks())
	assert.Equal(t, NewBlock(0, 40), mb.Sblock(0).Block)
	assert.Equal(t, NewBlock(40, 60), mb.Sblock(1).Block)
	assert.Equal(t, mb.Sblock(0).Status, mb.Sblock(1).Status)
}

func TestMapbookTruncateVector(t *testing.T) {
	d := DomainFromBlocks([]Block{NewBlock(0, 100)})
	mb := NewMapbook("", d)
	mb.TruncateVector(60, true)
	assert.Equal(t, int64(60), mb.Sblock(mb.Sblocks()-1).End())
}

func TestMapbookDoneStatus(t *testing.T) {
	d := DomainFromBlocks([]Block{NewBlock(0, 100)})
	mb := NewMapbook("", d)
	assert.False(t, mb.DoneStatus(d, false))
	mb.ChangeChunkStatus(NewBlock(0, 100), Finished)
	assert.True(t, mb.DoneStatus(d, false))
}
