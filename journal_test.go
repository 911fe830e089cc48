package wral

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateJournalWritesHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "j0")

	j, err := createJournal(path, 0, 1)
	require.NoError(t, err)
	require.NoError(t, j.close())

	res, err := scanJournal(path)
	require.NoError(t, err)
	require.Equal(t, fileVersion, res.Header.Version)
	require.EqualValues(t, 0, res.Header.FileNumber)
	require.EqualValues(t, 1, res.Header.FirstSeqno)
	require.Empty(t, res.Records)
	require.Nil(t, res.Trailer)
	require.False(t, res.Torn)
}

func TestJournalAppendAndScan(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "j0")

	j, err := createJournal(path, 0, 1)
	require.NoError(t, err)
	require.NoError(t, j.append(encodeRecord(1, []byte("a"))))
	require.NoError(t, j.append(encodeRecord(2, []byte("bb"))))
	require.NoError(t, j.sync())
	require.NoError(t, j.close())

	res, err := scanJournal(path)
	require.NoError(t, err)
	require.Len(t, res.Records, 2)
	require.EqualValues(t, 1, res.Records[0].Seqno)
	require.EqualValues(t, 2, res.Records[1].Seqno)
	require.Equal(t, []byte("a"), res.Records[0].Payload)
	require.Equal(t, []byte("bb"), res.Records[1].Payload)
}

func TestJournalSealWritesTrailer(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "j0")

	j, err := createJournal(path, 0, 1)
	require.NoError(t, err)
	require.NoError(t, j.append(encodeRecord(1, []byte("a"))))
	require.NoError(t, j.seal(1, 1, []byte("state")))
	require.NoError(t, j.close())

	res, err := scanJournal(path)
	require.NoError(t, err)
	require.NotNil(t, res.Trailer)
	require.EqualValues(t, 1, res.Trailer.LastSeqno)
	require.Equal(t, []byte("state"), res.Trailer.StateBlob)
	require.EqualValues(t, res.ValidOffset, journalHeaderSize+j.size)
}

func TestJournalTruncateRepairsTornTail(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "j0")

	j, err := createJournal(path, 0, 1)
	require.NoError(t, err)
	require.NoError(t, j.append(encodeRecord(1, []byte("a"))))
	validEnd := j.size
	require.NoError(t, j.append(encodeRecord(2, []byte("bb"))))
	require.NoError(t, j.close())

	// Corrupt the file on disk to look like a torn write of record 2.
	full := journalHeaderSize + j.size
	require.NoError(t, os.Truncate(path, full-2))

	res, err := scanJournal(path)
	require.NoError(t, err)
	require.True(t, res.Torn)
	require.Len(t, res.Records, 1)
	require.EqualValues(t, journalHeaderSize+validEnd, res.ValidOffset)

	j2, err := openJournalForAppend(path, 0, 1, res.ValidOffset)
	require.NoError(t, err)
	require.NoError(t, j2.truncate(res.ValidOffset))
	require.NoError(t, j2.close())

	res2, err := scanJournal(path)
	require.NoError(t, err)
	require.False(t, res2.Torn)
	require.Len(t, res2.Records, 1)
}
