package wral

import (
	"bufio"
	"io"
	"os"
)

// Iterator walks a fixed snapshot of the log taken at construction time:
// the sealed files that existed then, plus the current file truncated to
// whatever was durable at that moment. Entries appended after the
// snapshot was taken are never observed — a long-lived Iterator never
// blocks a concurrent Writer, and never sees a partial record past the
// snapshot's high-water mark.
type Iterator struct {
	codec PayloadCodec

	files []snapshotFile // oldest first
	idx   int

	br *bufio.Reader
	f  *os.File

	cur Entry
	err error
}

type snapshotFile struct {
	path       string
	validTo    int64 // snapshot bound: stop reading at this file offset
	firstSeqno uint64
	lastSeqno  uint64 // only meaningful for sealed files
	sealed     bool
}

// newIteratorSnapshot builds the file list an Iterator or Range will walk,
// from the writer's current view of the directory.
func newIteratorSnapshot(frozen []fileInfo, curPath string, curFirstSeqno uint64, curValidTo int64, hasCur bool) []snapshotFile {
	files := make([]snapshotFile, 0, len(frozen)+1)
	for _, fi := range frozen {
		files = append(files, snapshotFile{
			path:       fi.Path,
			validTo:    fi.ValidTo,
			firstSeqno: fi.Header.FirstSeqno,
			lastSeqno:  fi.Trailer.LastSeqno,
			sealed:     true,
		})
	}
	if hasCur {
		files = append(files, snapshotFile{
			path:       curPath,
			validTo:    curValidTo,
			firstSeqno: curFirstSeqno,
			sealed:     false,
		})
	}
	return files
}

func newIterator(files []snapshotFile, codec PayloadCodec) *Iterator {
	return &Iterator{codec: codec, files: files, idx: -1}
}

// openFile positions the iterator at the first record of files[idx],
// bounding reads to the snapshot's valid-data offset so a concurrent
// writer appending past that point (or a torn tail on the current file)
// is never visible to this iterator.
func (it *Iterator) openFile(idx int) error {
	sf := it.files[idx]
	f, err := os.Open(sf.path)
	if err != nil {
		it.err = ioErr("open", sf.path, err)
		return it.err
	}
	if _, err := f.Seek(journalHeaderSize, os.SEEK_SET); err != nil {
		f.Close()
		it.err = ioErr("seek", sf.path, err)
		return it.err
	}
	it.f = f
	bound := sf.validTo - journalHeaderSize
	it.br = bufio.NewReaderSize(io.LimitReader(f, bound), defaultScanBufSize)
	return nil
}

func (it *Iterator) closeCurrent() {
	if it.f != nil {
		it.f.Close()
		it.f = nil
		it.br = nil
	}
}

// Next advances to the next entry, returning false at the end of the
// snapshot or on error (check Err after a false return).
func (it *Iterator) Next() bool {
	if it.err != nil {
		return false
	}
	for {
		if it.br == nil {
			it.idx++
			if it.idx >= len(it.files) {
				return false
			}
			if it.files[it.idx].validTo <= journalHeaderSize {
				continue // empty file in the snapshot (e.g. freshly rotated, nothing committed yet)
			}
			if err := it.openFile(it.idx); err != nil {
				return false
			}
		}

		rec, ok, err := nextRecordOrDone(it.br)
		if err != nil {
			it.err = err
			it.closeCurrent()
			return false
		}
		if !ok {
			// Either clean EOF of the snapshot bound or a trailer boundary;
			// either way this file is exhausted for iteration purposes.
			it.closeCurrent()
			continue
		}
		payload := rec.Payload
		if it.codec != nil {
			decoded, derr := it.codec.Decompress(payload)
			if derr != nil {
				it.err = corruptErr(it.files[it.idx].path, "payload decompression failed for seqno %d: %v", rec.Seqno, derr)
				it.closeCurrent()
				return false
			}
			payload = decoded
		}
		it.cur = Entry{Seqno: rec.Seqno, Payload: payload}
		return true
	}
}

// Entry returns the entry most recently produced by Next.
func (it *Iterator) Entry() Entry { return it.cur }

// Err returns the first error encountered, if Next returned false because
// of one rather than reaching the end of the snapshot.
func (it *Iterator) Err() error { return it.err }

// Close releases the file handle the iterator currently has open, if any.
// Safe to call multiple times and safe to call without exhausting Next.
func (it *Iterator) Close() error {
	it.closeCurrent()
	return nil
}

// seekRange narrows files to just those overlapping [lo, hi] and, for the
// first overlapping file, advances past any sealed file's earlier entries
// by skipping whole files below lo using their header/trailer seqno
// ranges, so Range never scans a file it can prove is entirely out of
// bounds. Entries within the first and last overlapping file are still
// filtered one at a time since only whole-file bounds are known in
// advance.
func seekRange(files []snapshotFile, lo, hi uint64) []snapshotFile {
	if lo > hi {
		return nil
	}
	out := make([]snapshotFile, 0, len(files))
	for _, sf := range files {
		if sf.sealed {
			if sf.lastSeqno < lo || sf.firstSeqno > hi {
				continue
			}
		} else {
			// The current file's upper seqno bound isn't known without
			// scanning it; only prune it by firstSeqno.
			if sf.firstSeqno > hi {
				continue
			}
		}
		out = append(out, sf)
	}
	return out
}

// RangeIterator is an Iterator further bounded to [lo, hi] inclusive.
type RangeIterator struct {
	*Iterator
	lo, hi uint64
}

func newRangeIterator(files []snapshotFile, codec PayloadCodec, lo, hi uint64) *RangeIterator {
	return &RangeIterator{Iterator: newIterator(seekRange(files, lo, hi), codec), lo: lo, hi: hi}
}

// Next advances to the next entry within [lo, hi], skipping any
// out-of-range entries left over at the edges of the first/last
// overlapping file.
func (r *RangeIterator) Next() bool {
	for r.Iterator.Next() {
		seqno := r.cur.Seqno
		if seqno < r.lo {
			continue
		}
		if seqno > r.hi {
			r.closeCurrent()
			r.idx = len(r.files)
			return false
		}
		return true
	}
	return false
}
