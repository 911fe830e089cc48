package wral

import (
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// commitBatch accumulates records reserved by one or more concurrent
// callers between two commits. Exactly one goroutine — whichever finds
// the writer idle, or else the leader of the previous batch once it has
// finished that one (see commit) — becomes its leader and performs the single
// write(2)/fsync(2) pair for the whole batch; every other goroutine that
// reserved into this batch is a follower that just waits on done.
type commitBatch[S any] struct {
	buf           []byte
	count         int
	firstSeqno    uint64
	lastSeqno     uint64
	stateSnapshot S // value of the writer's state immediately after this batch's last entry
	done          chan struct{}
	err           error
}

func newCommitBatch[S any]() *commitBatch[S] {
	return &commitBatch[S]{done: make(chan struct{})}
}

// writer is the mutable core: one exclusive lock over (nextSeqno, state,
// the accumulating batch, the current file), plus group-commit
// coordination that releases the lock while the leader's write/fsync is
// in flight so followers of the *next* batch can keep reserving.
type writer[S any] struct {
	mu sync.Mutex

	dir     string
	name    string
	cfg     Config
	machine StateMachine[S]

	nextSeqno  uint64
	state      S
	cur        *journal
	entryCount uint64 // entries written to cur since it was opened/rotated

	frozen []fileInfo // sealed files, oldest first, kept for reader snapshots

	batch      *commitBatch[S]
	committing bool
	poisoned   error
	closed     bool
}

func newWriter[S any](dir, name string, cfg Config, machine StateMachine[S], rec recovered[S], cur *journal, frozen []fileInfo) *writer[S] {
	return &writer[S]{
		dir:       dir,
		name:      name,
		cfg:       cfg,
		machine:   machine,
		nextSeqno: rec.NextSeqno,
		state:     rec.State,
		cur:       cur,
		frozen:    frozen,
	}
}

// addEntry implements the reservation phase followed by group commit.
func (w *writer[S]) addEntry(payload []byte) (uint64, error) {
	start := time.Now()
	stored := payload
	if w.cfg.Compression != nil {
		compressed, err := w.cfg.Compression.Compress(payload)
		if err != nil {
			return 0, errors.Wrap(err, "wral: compressing payload")
		}
		stored = compressed
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return 0, ErrClosed
	}
	if w.poisoned != nil {
		err := w.poisoned
		w.mu.Unlock()
		return 0, fmt.Errorf("%w: %w", ErrPoisoned, err)
	}

	seqno := w.nextSeqno
	w.nextSeqno++
	w.state = w.machine.Reduce(w.state, seqno, payload)

	if w.batch == nil {
		w.batch = newCommitBatch[S]()
	}
	b := w.batch
	if b.count == 0 {
		b.firstSeqno = seqno
	}
	b.buf = append(b.buf, encodeRecord(seqno, stored)...)
	b.count++
	b.lastSeqno = seqno

	amLeader := !w.committing
	if amLeader {
		w.committing = true
		w.batch = nil
		b.stateSnapshot = w.state
	}
	w.mu.Unlock()

	if amLeader {
		w.commit(b)
	} else {
		<-b.done
	}
	if b.err != nil {
		return 0, b.err
	}
	w.cfg.Metrics.observeAppend(start)
	return seqno, nil
}

// commit runs the leader's half of group commit for b, then keeps going:
// while this goroutine was writing and fsyncing b, other callers may have
// piled onto a fresh batch with nobody left to lead it, so the leader
// checks for that batch itself and commits it too, looping until nothing
// is left to drain. This is what lets a caller's AddEntry return without
// depending on some future, unrelated call to come along and rescue it.
func (w *writer[S]) commit(b *commitBatch[S]) {
	for b != nil {
		b = w.commitOnce(b)
	}
}

// commitOnce durably commits b: ensure a current file exists, append the
// batch, optionally fsync, roll back and poison on failure, and rotate
// under the writer lock when the soft size limit is crossed. It always
// closes b.done exactly once before returning, then hands back whatever
// batch accumulated followers while b was in flight so the same goroutine
// can lead that one too instead of relinquishing leadership.
func (w *writer[S]) commitOnce(b *commitBatch[S]) *commitBatch[S] {
	w.mu.Lock()
	if w.poisoned != nil {
		err := w.poisoned
		w.mu.Unlock()
		b.err = fmt.Errorf("%w: %w", ErrPoisoned, err)
		close(b.done)
		return w.nextOrStop()
	}

	if w.cur == nil {
		fileNumber := uint64(0)
		if len(w.frozen) > 0 {
			fileNumber = w.frozen[len(w.frozen)-1].FileNumber + 1
		}
		path := journalPath(w.dir, w.cfg.Name, fileNumber)
		j, err := createJournal(path, fileNumber, b.firstSeqno)
		if err != nil {
			w.poisoned = err
			w.mu.Unlock()
			b.err = fmt.Errorf("%w: %w", ErrPoisoned, err)
			close(b.done)
			return w.nextOrStop()
		}
		w.cur = j
	}
	cur := w.cur
	preOffset := cur.size
	w.mu.Unlock()

	writeErr := cur.append(b.buf)
	var syncErr error
	if writeErr == nil && !w.cfg.NoFsync {
		syncErr = cur.sync()
	}

	if writeErr != nil || syncErr != nil {
		failErr := writeErr
		if failErr == nil {
			failErr = syncErr
		}
		w.mu.Lock()
		w.nextSeqno = b.firstSeqno
		w.poisoned = failErr
		w.mu.Unlock()

		if terr := cur.truncate(journalHeaderSize + preOffset); terr != nil {
			w.cfg.Logger.Printf("wral: CRITICAL failed to truncate %s after write failure: %v", cur.path, terr)
		}
		w.cfg.Metrics.observePoison()
		b.err = fmt.Errorf("%w: %w", ErrPoisoned, failErr)
		close(b.done)
		return w.nextOrStop()
	}

	w.cfg.Metrics.observeBatch(b.count, cur.size-preOffset)

	w.mu.Lock()
	w.entryCount += uint64(b.count)
	needRotate := uint64(cur.size) >= w.cfg.JournalSizeLimit
	var sealed SealedJournal
	var rotateErr error
	if needRotate {
		sealed, rotateErr = w.rotateLocked(b.lastSeqno, b.stateSnapshot)
		if rotateErr != nil {
			w.poisoned = rotateErr
		}
	}
	w.mu.Unlock()

	if rotateErr != nil {
		w.cfg.Metrics.observePoison()
		b.err = fmt.Errorf("%w: %w", ErrPoisoned, rotateErr)
		close(b.done)
		return w.nextOrStop()
	}

	close(b.done)

	if needRotate && w.cfg.SealListener != nil {
		if err := w.cfg.SealListener.OnSeal(sealed); err != nil {
			w.cfg.Logger.Printf("wral: seal listener failed for %s: %v", sealed.Path, err)
		}
	}

	return w.nextOrStop()
}

// nextOrStop detaches the batch that accumulated followers while the
// caller was busy committing the previous one, snapshotting the writer's
// state for its trailer the same way addEntry's leader election does. If
// no batch accumulated, it clears committing so the next AddEntry call
// elects a fresh leader, and returns nil to end the commit loop.
func (w *writer[S]) nextOrStop() *commitBatch[S] {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.batch == nil {
		w.committing = false
		return nil
	}
	next := w.batch
	w.batch = nil
	next.stateSnapshot = w.state
	return next
}

// rotateLocked seals the current file and opens the next one. Caller must
// hold w.mu: rotation has to happen under the writer lock so a reader
// taking a snapshot never observes a directory with neither a current
// file nor the sealed one that replaced it.
func (w *writer[S]) rotateLocked(lastSeqno uint64, state S) (SealedJournal, error) {
	blob, err := w.machine.Encode(state)
	if err != nil {
		return SealedJournal{}, errors.Wrap(err, "wral: encoding state for trailer")
	}
	if err := w.cur.seal(lastSeqno, w.entryCount, blob); err != nil {
		return SealedJournal{}, err
	}
	sealed := SealedJournal{Path: w.cur.path, FileNumber: w.cur.fileNumber, FirstSeqno: w.cur.firstSeqno, LastSeqno: lastSeqno}
	w.frozen = append(w.frozen, fileInfo{
		FileNumber: w.cur.fileNumber,
		Path:       w.cur.path,
		Header:     journalHeader{Version: fileVersion, FileNumber: w.cur.fileNumber, FirstSeqno: w.cur.firstSeqno},
		Trailer:    &journalTrailer{LastSeqno: lastSeqno, EntryCount: w.entryCount, StateBlob: blob},
		ValidTo:    journalHeaderSize + w.cur.size,
	})
	sealedFileNumber := w.cur.fileNumber
	if err := w.cur.close(); err != nil {
		w.cur = nil
		return SealedJournal{}, err
	}
	// The just-sealed file is already durable on disk; only the follow-on
	// file's creation can still fail below. Clear cur first so a failure
	// here does not leave close() trying to reseal an already-closed
	// handle.
	w.cur = nil

	nextNumber := sealedFileNumber + 1
	nextPath := journalPath(w.dir, w.cfg.Name, nextNumber)
	next, err := createJournal(nextPath, nextNumber, lastSeqno+1)
	if err != nil {
		return SealedJournal{}, err
	}
	w.cur = next
	w.entryCount = 0
	w.cfg.Metrics.observeRotation()
	return sealed, nil
}

// close seals the current journal (if any) and marks the writer closed.
// It takes the lock for the whole operation: Close is not meant to race
// with concurrent AddEntry calls (callers must quiesce writers first, as
// documented on (*Wal[S]).Close).
func (w *writer[S]) close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if w.poisoned != nil {
		if w.cur != nil {
			w.cur.close()
		}
		return w.poisoned
	}
	if w.cur == nil {
		return nil
	}
	blob, err := w.machine.Encode(w.state)
	if err != nil {
		return errors.Wrap(err, "wral: encoding state for close trailer")
	}
	if err := w.cur.seal(w.nextSeqno-1, w.entryCount, blob); err != nil {
		return err
	}
	return w.cur.close()
}

// snapshot returns the reader-visible view of the directory: the sealed
// files plus the current file's path, first seqno, and valid-data
// high-water offset (or empty if no current file exists yet).
func (w *writer[S]) snapshot() (frozen []fileInfo, curPath string, curFirstSeqno uint64, curValidTo int64, hasCur bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	frozen = append([]fileInfo(nil), w.frozen...)
	if w.cur != nil {
		return frozen, w.cur.path, w.cur.firstSeqno, journalHeaderSize + w.cur.size, true
	}
	return frozen, "", 0, 0, false
}

func (w *writer[S]) journalCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := len(w.frozen)
	if w.cur != nil {
		n++
	}
	return n
}

func (w *writer[S]) currentJournalSize() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cur == nil {
		return 0
	}
	return journalHeaderSize + w.cur.size
}
