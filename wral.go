package wral

import (
	"os"
)

// Wal is a durable, monotonically sequence-numbered, crash-recoverable
// journal for an abstract state machine S. A zero Wal is not usable; get
// one from Open.
type Wal[S any] struct {
	dir  string
	cfg  Config
	lock *dirLock
	w    *writer[S]
}

// Open opens (or creates) a log directory. If the directory already
// contains journal files for cfg.Name, they are validated and replayed
// before Open returns; a corrupt sealed file or a contiguity gap across
// files is reported as a *CorruptionError and Open fails closed. A torn
// tail on the current (unsealed) file is repaired in place rather than
// rejected, and logged via cfg.Logger.
func Open[S any](dir string, cfg Config, machine StateMachine[S]) (*Wal[S], error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, ioErr("mkdir", dir, err)
	}

	lock, err := acquireDirLock(dir, cfg.Name)
	if err != nil {
		return nil, err
	}

	rec, err := recover[S](dir, cfg.Name, machine, cfg.Compression, cfg.Logger)
	if err != nil {
		lock.release()
		return nil, err
	}

	var cur *journal
	var frozen []fileInfo
	if rec.HasCurrent {
		last := &rec.Infos[len(rec.Infos)-1]
		cur, err = openJournalForAppend(last.Path, last.FileNumber, last.Header.FirstSeqno, last.ValidTo)
		if err != nil {
			lock.release()
			return nil, err
		}
		frozen = rec.Infos[:len(rec.Infos)-1]
	} else {
		frozen = rec.Infos
	}

	w := newWriter[S](dir, cfg.Name, cfg, machine, rec, cur, frozen)
	return &Wal[S]{dir: dir, cfg: cfg, lock: lock, w: w}, nil
}

// AddEntry reserves the next sequence number, reduces it into the
// tracked state, and durably commits it (along with any other entries
// concurrently reserved into the same batch) before returning. It
// returns the assigned seqno on success.
func (l *Wal[S]) AddEntry(payload []byte) (uint64, error) {
	return l.w.addEntry(payload)
}

// Iter returns an Iterator over a snapshot of every entry currently
// durable in the log, oldest first. The snapshot is fixed at the moment
// Iter is called; entries committed afterward are not observed.
func (l *Wal[S]) Iter() *Iterator {
	frozen, curPath, curFirst, curValidTo, hasCur := l.w.snapshot()
	files := newIteratorSnapshot(frozen, curPath, curFirst, curValidTo, hasCur)
	return newIterator(files, l.cfg.Compression)
}

// Range returns an Iterator over the snapshot entries whose seqno falls
// in [lo, hi] inclusive. If lo > hi, or no entry falls in range, the
// returned iterator's first Next call returns false.
func (l *Wal[S]) Range(lo, hi uint64) *RangeIterator {
	frozen, curPath, curFirst, curValidTo, hasCur := l.w.snapshot()
	files := newIteratorSnapshot(frozen, curPath, curFirst, curValidTo, hasCur)
	return newRangeIterator(files, l.cfg.Compression, lo, hi)
}

// JournalCount returns the number of journal files currently on disk for
// this log, sealed and current combined.
func (l *Wal[S]) JournalCount() int {
	return l.w.journalCount()
}

// CurrentJournalSize returns the byte size (including header) of the
// current unsealed journal file, or 0 when there is no current file: on a
// fresh directory, or after reopening a log whose files are all sealed,
// until the next entry is committed.
func (l *Wal[S]) CurrentJournalSize() int64 {
	return l.w.currentJournalSize()
}

// Close seals the current journal file (writing a final trailer with the
// latest state) and releases the directory lock. Close does not itself
// wait for in-flight AddEntry calls to finish; callers must quiesce
// writers before calling Close.
func (l *Wal[S]) Close() error {
	werr := l.w.close()
	lerr := l.lock.release()
	if werr != nil {
		return werr
	}
	return lerr
}
