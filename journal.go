package wral

import (
	"bufio"
	"io"
	"os"
)

// defaultScanBufSize sizes the buffered reader used to scan a journal
// file during recovery and iteration.
const defaultScanBufSize = 64 * 1024

// journal is a single append-only file: HEADER || RECORD* || TRAILER?. It
// wraps one open file descriptor plus a running size, and is scoped to
// exactly one file — it knows nothing about rotation, which lives in the
// directory/writer layer.
type journal struct {
	path       string
	fileNumber uint64
	firstSeqno uint64

	file *os.File
	size int64 // bytes written after the header, including any trailer
	// sealed is set once seal() has written and fsynced the trailer.
	sealed bool
}

// createJournal writes a fresh header, fsyncs it, and returns a handle
// positioned at EOF (right after the header) ready for append.
func createJournal(path string, fileNumber, firstSeqno uint64) (*journal, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, ioErr("create", path, err)
	}
	hdr := encodeHeader(journalHeader{Version: fileVersion, FileNumber: fileNumber, FirstSeqno: firstSeqno})
	if _, err := f.Write(hdr); err != nil {
		f.Close()
		return nil, ioErr("write-header", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return nil, ioErr("fsync-header", path, err)
	}
	return &journal{path: path, fileNumber: fileNumber, firstSeqno: firstSeqno, file: f}, nil
}

// openJournalForAppend reopens an existing, unsealed journal file for
// continued writing at the given valid-data offset (past the header and
// any prior records, short of a torn tail already truncated by recovery).
func openJournalForAppend(path string, fileNumber, firstSeqno uint64, offset int64) (*journal, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o600)
	if err != nil {
		return nil, ioErr("open", path, err)
	}
	if _, err := f.Seek(offset, os.SEEK_SET); err != nil {
		f.Close()
		return nil, ioErr("seek", path, err)
	}
	return &journal{
		path:       path,
		fileNumber: fileNumber,
		firstSeqno: firstSeqno,
		file:       f,
		size:       offset - journalHeaderSize,
	}, nil
}

// append writes bytes to the OS file without fsyncing. Callers coordinate
// batching and fsync themselves (writer.go).
func (j *journal) append(b []byte) error {
	if j.sealed {
		return ioErr("write", j.path, os.ErrPermission)
	}
	n, err := j.file.Write(b)
	j.size += int64(n)
	if err != nil {
		return ioErr("write", j.path, err)
	}
	return nil
}

// sync fsyncs the file's data and metadata.
func (j *journal) sync() error {
	if err := j.file.Sync(); err != nil {
		return ioErr("fsync", j.path, err)
	}
	return nil
}

// truncate resets the file to exactly offset bytes (used to repair a torn
// tail found during recovery), and fsyncs the result.
func (j *journal) truncate(offset int64) error {
	if err := j.file.Truncate(offset); err != nil {
		return ioErr("truncate", j.path, err)
	}
	if _, err := j.file.Seek(offset, os.SEEK_SET); err != nil {
		return ioErr("seek", j.path, err)
	}
	j.size = offset - journalHeaderSize
	if err := j.sync(); err != nil {
		return err
	}
	return nil
}

// seal writes the trailer, fsyncs, and marks the journal read-only from
// this handle's point of view. Only the current (unsealed) journal is ever
// sealed; a frozen file is never reopened for writing.
func (j *journal) seal(lastSeqno, entryCount uint64, stateBlob []byte) error {
	trailer := encodeTrailer(journalTrailer{LastSeqno: lastSeqno, EntryCount: entryCount, StateBlob: stateBlob})
	if err := j.append(trailer); err != nil {
		return err
	}
	if err := j.sync(); err != nil {
		return err
	}
	j.sealed = true
	return nil
}

// close releases the file descriptor without sealing.
func (j *journal) close() error {
	if err := j.file.Close(); err != nil {
		return ioErr("close", j.path, err)
	}
	return nil
}

// scanResult is the outcome of a linear forward scan over one journal
// file: the header, the byte offsets of every record found, the trailer
// if one terminated the scan, and whether the scan stopped because of an
// unparseable tail (torn write) rather than a clean EOF or valid trailer.
type scanResult struct {
	Header      journalHeader
	Records     []scannedRecord
	Trailer     *journalTrailer
	Torn        bool
	ValidOffset int64 // byte offset (from file start) of the last valid boundary
}

type scannedRecord struct {
	Seqno   uint64
	Offset  int64 // file offset where this record starts
	Size    int
	Payload []byte
}

// scanJournal performs a linear forward scan over a journal file: it
// stops at the first invalid record, a valid trailer, or EOF, and reports
// which. It streams the file through a buffered reader rather than
// loading it whole, so recovery stays cheap even against a journal near
// JournalSizeLimit.
func scanJournal(path string) (scanResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return scanResult{}, ioErr("read", path, err)
	}
	defer f.Close()

	br := bufio.NewReaderSize(f, defaultScanBufSize)
	hdrBuf := make([]byte, journalHeaderSize)
	if _, err := io.ReadFull(br, hdrBuf); err != nil {
		return scanResult{}, corruptErr(path, "file shorter than header")
	}
	hdr, err := decodeHeader(hdrBuf)
	if err != nil {
		return scanResult{}, corruptErr(path, "bad header: %v", err)
	}

	result := scanResult{Header: hdr, ValidOffset: journalHeaderSize}
	offset := int64(journalHeaderSize)
	for {
		rec, ok, err := nextRecordOrDone(br)
		if err != nil {
			result.Torn = true
			return result, nil
		}
		if !ok {
			if peekIsTrailer(br) {
				rest, rerr := io.ReadAll(br)
				if rerr != nil {
					return scanResult{}, ioErr("read", path, rerr)
				}
				trailer, terr := decodeTrailer(rest)
				if terr != nil {
					result.Torn = true
					return result, nil
				}
				result.Trailer = &trailer
				result.ValidOffset = offset + trailerSize(trailer)
				return result, nil
			}
			return result, nil // clean EOF, no trailer
		}
		result.Records = append(result.Records, scannedRecord{Seqno: rec.Seqno, Offset: offset, Size: rec.Size, Payload: rec.Payload})
		offset += int64(rec.Size)
		result.ValidOffset = offset
	}
}
