package wral

// recovered is what recovery derives from a directory scan: the sequence
// number the writer should assign next, the replayed state, the sorted
// file infos (sealed files plus, if present, the repaired current file),
// and whether a current (unsealed) file already exists.
type recovered[S any] struct {
	NextSeqno  uint64
	State      S
	Infos      []fileInfo
	HasCurrent bool
}

// recover scans and validates every journal file, replays the last sealed
// trailer's state forward through the current file's valid records, and
// repairs a torn tail on the current file in place.
func recover[S any](dir, name string, machine StateMachine[S], codec PayloadCodec, logger Logger) (recovered[S], error) {
	infos, err := scanDirectory(dir, name)
	if err != nil {
		return recovered[S]{}, err
	}

	var (
		nextSeqno  uint64 = 1
		state      S
		sealedTail *journalTrailer
	)

	// Seed state from the last sealed file's trailer, if any.
	for i := len(infos) - 1; i >= 0; i-- {
		if infos[i].Trailer != nil {
			sealedTail = infos[i].Trailer
			break
		}
	}
	if sealedTail != nil {
		state, err = machine.Decode(sealedTail.StateBlob)
		if err != nil {
			return recovered[S]{}, corruptErr(dir, "failed to decode trailer state: %v", err)
		}
		nextSeqno = sealedTail.LastSeqno + 1
	}

	cur := currentFile(infos)
	hasCurrent := cur != nil
	if hasCurrent {
		res, err := scanJournal(cur.Path)
		if err != nil {
			return recovered[S]{}, err
		}
		if res.Torn {
			logger.Printf("wral: repairing torn tail in %s at offset %d", cur.Path, res.ValidOffset)
			j, err := openJournalForAppend(cur.Path, cur.FileNumber, cur.Header.FirstSeqno, res.ValidOffset)
			if err != nil {
				return recovered[S]{}, err
			}
			if err := j.truncate(res.ValidOffset); err != nil {
				j.close()
				return recovered[S]{}, err
			}
			if err := j.close(); err != nil {
				return recovered[S]{}, err
			}
			cur.ValidTo = res.ValidOffset
			cur.Torn = false
		}
		for _, rec := range res.Records {
			payload := rec.Payload
			if codec != nil {
				decoded, err := codec.Decompress(payload)
				if err != nil {
					return recovered[S]{}, corruptErr(cur.Path, "payload decompression failed for seqno %d: %v", rec.Seqno, err)
				}
				payload = decoded
			}
			state = machine.Reduce(state, rec.Seqno, payload)
			if rec.Seqno+1 > nextSeqno {
				nextSeqno = rec.Seqno + 1
			}
		}
	}

	return recovered[S]{NextSeqno: nextSeqno, State: state, Infos: infos, HasCurrent: hasCurrent}, nil
}
