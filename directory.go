package wral

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

// fileNumberDigits zero-pads file_number so alphanumeric sort of file
// names equals numeric order.
const fileNumberDigits = 10

var journalNameRE = regexp.MustCompile(`^wral-(.+)-(\d{10})\.log$`)

// journalFileName returns "wral-<name>-<NNNNNNNNNN>.log".
func journalFileName(name string, fileNumber uint64) string {
	return fmt.Sprintf("wral-%s-%0*d.log", name, fileNumberDigits, fileNumber)
}

// journalPath joins dir and the file name for fileNumber.
func journalPath(dir, name string, fileNumber uint64) string {
	return filepath.Join(dir, journalFileName(name, fileNumber))
}

// listJournalFiles enumerates every wral-<name>-*.log file in dir and
// returns their file numbers sorted ascending. Files belonging to a
// different log name in the same directory are ignored.
func listJournalFiles(dir, name string) ([]uint64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, ioErr("readdir", dir, err)
	}

	var nums []uint64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := journalNameRE.FindStringSubmatch(e.Name())
		if m == nil || m[1] != name {
			continue
		}
		n, err := strconv.ParseUint(m[2], 10, 64)
		if err != nil {
			continue
		}
		nums = append(nums, n)
	}
	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })
	return nums, nil
}

// fileInfo bundles what the directory layer needs to know about each
// journal file, derived from a scan: its header, whether it is sealed
// (has a trailer), and — for the current file only — the valid-data
// high-water offset and whether a torn tail was found.
type fileInfo struct {
	FileNumber uint64
	Path       string
	Header     journalHeader
	Trailer    *journalTrailer
	ValidTo    int64
	Torn       bool
}

// scanDirectory scans every journal file in numeric order and validates
// contiguity across files (I2): last_seqno(file_i)+1 ==
// first_seqno(file_{i+1}), where file_i is sealed and file_{i+1} may be
// the current file. A gap or overlap is fatal corruption.
func scanDirectory(dir, name string) ([]fileInfo, error) {
	nums, err := listJournalFiles(dir, name)
	if err != nil {
		return nil, err
	}

	infos := make([]fileInfo, 0, len(nums))
	var prevLast uint64
	havePrev := false
	for i, n := range nums {
		path := journalPath(dir, name, n)
		res, err := scanJournal(path)
		if err != nil {
			return nil, err
		}
		if res.Trailer == nil && i != len(nums)-1 {
			return nil, corruptErr(path, "unsealed journal is not the last file in the directory")
		}
		fi := fileInfo{FileNumber: n, Path: path, Header: res.Header, Trailer: res.Trailer, ValidTo: res.ValidOffset, Torn: res.Torn}

		if havePrev && res.Header.FirstSeqno != prevLast+1 {
			return nil, corruptErr(path, "seqno gap: previous file ended at %d, this file starts at %d", prevLast, res.Header.FirstSeqno)
		}
		if res.Trailer != nil {
			if res.Torn {
				return nil, corruptErr(path, "torn record inside a sealed journal")
			}
			prevLast = res.Trailer.LastSeqno
			havePrev = true
		}
		infos = append(infos, fi)
	}
	return infos, nil
}

// currentFile returns the last file with no trailer — the live journal —
// or nil if every file on disk is sealed (a new current file must then be
// created by the caller with file_number = max+1).
func currentFile(infos []fileInfo) *fileInfo {
	if len(infos) == 0 {
		return nil
	}
	last := &infos[len(infos)-1]
	if last.Trailer == nil {
		return last
	}
	return nil
}
