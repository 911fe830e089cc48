package wral

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestListJournalFilesSortedAndFiltered(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []uint64{2, 0, 1} {
		j, err := createJournal(journalPath(dir, "orders", n), n, n*10+1)
		require.NoError(t, err)
		require.NoError(t, j.seal(n*10+1, 0, nil))
		require.NoError(t, j.close())
	}
	// A file belonging to a different log name must be ignored.
	other, err := createJournal(journalPath(dir, "quotes", 0), 0, 1)
	require.NoError(t, err)
	require.NoError(t, other.seal(1, 0, nil))
	require.NoError(t, other.close())

	nums, err := listJournalFiles(dir, "orders")
	require.NoError(t, err)
	require.Equal(t, []uint64{0, 1, 2}, nums)
}

func TestListJournalFilesMissingDirectory(t *testing.T) {
	nums, err := listJournalFiles("/nonexistent/wral/dir", "orders")
	require.NoError(t, err)
	require.Nil(t, nums)
}

func sealedJournal(t *testing.T, dir, name string, n, first, last uint64, entries int) {
	t.Helper()
	j, err := createJournal(journalPath(dir, name, n), n, first)
	require.NoError(t, err)
	for seqno := first; seqno <= last; seqno++ {
		require.NoError(t, j.append(encodeRecord(seqno, []byte("x"))))
	}
	require.NoError(t, j.seal(last, uint64(entries), nil))
	require.NoError(t, j.close())
}

func TestScanDirectoryValidatesContiguity(t *testing.T) {
	dir := t.TempDir()
	sealedJournal(t, dir, "orders", 0, 1, 3, 3)
	sealedJournal(t, dir, "orders", 1, 4, 6, 3)

	infos, err := scanDirectory(dir, "orders")
	require.NoError(t, err)
	require.Len(t, infos, 2)
	require.Nil(t, currentFile(infos))
}

func TestScanDirectoryDetectsSeqnoGap(t *testing.T) {
	dir := t.TempDir()
	sealedJournal(t, dir, "orders", 0, 1, 3, 3)
	sealedJournal(t, dir, "orders", 1, 5, 7, 3) // gap: should start at 4

	_, err := scanDirectory(dir, "orders")
	require.Error(t, err)
	var ce *CorruptionError
	require.ErrorAs(t, err, &ce)
}

func TestScanDirectoryRejectsUnsealedNonLastFile(t *testing.T) {
	dir := t.TempDir()
	sealedJournal(t, dir, "orders", 0, 1, 3, 3)

	// File 1 has records but no trailer; create a phantom file 2 so file 1
	// is no longer the last file in the directory.
	j1, err := createJournal(journalPath(dir, "orders", 1), 1, 4)
	require.NoError(t, err)
	require.NoError(t, j1.append(encodeRecord(4, []byte("x"))))
	require.NoError(t, j1.close())

	j2, err := createJournal(journalPath(dir, "orders", 2), 2, 5)
	require.NoError(t, err)
	require.NoError(t, j2.seal(5, 1, nil))
	require.NoError(t, j2.close())

	_, err = scanDirectory(dir, "orders")
	require.Error(t, err)
	var ce *CorruptionError
	require.ErrorAs(t, err, &ce)
}

func TestCurrentFileDetectsUnsealedLastFile(t *testing.T) {
	dir := t.TempDir()
	sealedJournal(t, dir, "orders", 0, 1, 3, 3)

	j1, err := createJournal(journalPath(dir, "orders", 1), 1, 4)
	require.NoError(t, err)
	require.NoError(t, j1.append(encodeRecord(4, []byte("x"))))
	require.NoError(t, j1.close())

	infos, err := scanDirectory(dir, "orders")
	require.NoError(t, err)

	cur := currentFile(infos)
	require.NotNil(t, cur)
	require.EqualValues(t, 1, cur.FileNumber)
}

