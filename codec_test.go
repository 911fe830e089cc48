package wral

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRecordRoundTrip(t *testing.T) {
	payload := []byte("hello journal")
	buf := encodeRecord(42, payload)

	br := bufio.NewReader(bytes.NewReader(buf))
	rec, ok, err := nextRecordOrDone(br)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(42), rec.Seqno)
	require.Equal(t, payload, rec.Payload)
	require.Equal(t, len(buf), rec.Size)
}

func TestNextRecordOrDoneStopsAtTrailer(t *testing.T) {
	trailer := encodeTrailer(journalTrailer{LastSeqno: 5, EntryCount: 5, StateBlob: []byte("s")})
	br := bufio.NewReader(bytes.NewReader(trailer))
	_, ok, err := nextRecordOrDone(br)
	require.NoError(t, err)
	require.False(t, ok)
	require.True(t, peekIsTrailer(br))
}

func TestNextRecordOrDoneCleanEOF(t *testing.T) {
	br := bufio.NewReader(bytes.NewReader(nil))
	_, ok, err := nextRecordOrDone(br)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestNextRecordOrDoneDetectsCorruptCRC(t *testing.T) {
	buf := encodeRecord(1, []byte("payload"))
	buf[len(buf)-1] ^= 0xFF // flip a byte inside the CRC-covered region

	br := bufio.NewReader(bytes.NewReader(buf))
	_, ok, err := nextRecordOrDone(br)
	require.False(t, ok)
	require.ErrorIs(t, err, errBadCRC)
}

func TestNextRecordOrDoneDetectsTornTail(t *testing.T) {
	buf := encodeRecord(1, []byte("payload"))
	truncated := buf[:len(buf)-3]

	br := bufio.NewReader(bytes.NewReader(truncated))
	_, ok, err := nextRecordOrDone(br)
	require.False(t, ok)
	require.ErrorIs(t, err, errTorn)
}

func TestHeaderRoundTrip(t *testing.T) {
	h := journalHeader{Version: fileVersion, FileNumber: 7, FirstSeqno: 100}
	buf := encodeHeader(h)
	require.Len(t, buf, journalHeaderSize)

	got, err := decodeHeader(buf)
	require.NoError(t, err)
	require.Equal(t, h, got)
}

func TestDecodeHeaderRejectsBadMagic(t *testing.T) {
	buf := encodeHeader(journalHeader{Version: fileVersion})
	buf[0] = 'X'
	_, err := decodeHeader(buf)
	require.ErrorIs(t, err, errBadMagic)
}

func TestDecodeHeaderRejectsBadVersion(t *testing.T) {
	buf := encodeHeader(journalHeader{Version: fileVersion + 1})
	_, err := decodeHeader(buf)
	require.ErrorIs(t, err, errBadVersion)
}

func TestTrailerRoundTrip(t *testing.T) {
	tr := journalTrailer{LastSeqno: 99, EntryCount: 12, StateBlob: []byte("snapshot-bytes")}
	buf := encodeTrailer(tr)
	require.EqualValues(t, trailerSize(tr), len(buf))

	got, err := decodeTrailer(buf)
	require.NoError(t, err)
	require.Equal(t, tr, got)
}

func TestTrailerRoundTripEmptyBlob(t *testing.T) {
	tr := journalTrailer{LastSeqno: 1, EntryCount: 1}
	buf := encodeTrailer(tr)
	got, err := decodeTrailer(buf)
	require.NoError(t, err)
	require.Equal(t, tr, got)
}

func TestDecodeTrailerDetectsCRCMismatch(t *testing.T) {
	buf := encodeTrailer(journalTrailer{LastSeqno: 1, EntryCount: 1, StateBlob: []byte("x")})
	buf[8] ^= 0xFF
	_, err := decodeTrailer(buf)
	require.ErrorIs(t, err, errBadCRC)
}
