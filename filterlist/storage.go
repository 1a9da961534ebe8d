package filterlist

import (
	"fmt"
	"log/slog"

	"github.com/AdguardTeam/contentfilter/rules"
	"github.com/AdguardTeam/golibs/errors"
)

// Storage combines several rule lists with unique IDs.  It can be scanned
// using a [StorageScanner] to fill a filter database.
type Storage struct {
	// lists are the rule lists in the order of precedence.
	lists []RuleList
}

// NewStorage creates a new instance of the Storage and validates the list of
// rules specified.
func NewStorage(lists []RuleList) (s *Storage, err error) {
	ids := make(map[int]struct{}, len(lists))
	for i, list := range lists {
		id := list.GetID()
		if _, ok := ids[id]; ok {
			return nil, fmt.Errorf("list at index %d: duplicate list id: %d", i, id)
		}

		ids[id] = struct{}{}
	}

	return &Storage{
		lists: lists,
	}, nil
}

// Lists returns the rule lists of the storage.  The caller must not modify the
// returned slice.
func (s *Storage) Lists() (lists []RuleList) {
	return s.lists
}

// NewScanner creates a new scanner of all the storage contents.  The lists are
// read one after another.
func (s *Storage) NewScanner(logger *slog.Logger) (sc *StorageScanner) {
	scanners := make([]*RuleScanner, 0, len(s.lists))
	for _, list := range s.lists {
		scanners = append(scanners, list.NewScanner(logger))
	}

	return &StorageScanner{
		Scanners: scanners,
	}
}

// Close closes the storage instance.
func (s *Storage) Close() (err error) {
	if len(s.lists) == 0 {
		return nil
	}

	var errs []error
	for _, l := range s.lists {
		err = l.Close()
		if err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Annotate(errors.Join(errs...), "closing rule lists: %w")
}

// StorageScanner scans multiple [RuleScanner] instances.
type StorageScanner struct {
	// Scanners is the list of list scanners backing this combined scanner.
	Scanners []*RuleScanner

	currentScanner    *RuleScanner
	currentScannerIdx int
}

// Scan advances to the next rule of the current list or of the following
// ones.
func (s *StorageScanner) Scan() (ok bool) {
	if len(s.Scanners) == 0 {
		return false
	}

	if s.currentScanner == nil {
		s.currentScannerIdx = 0
		s.currentScanner = s.Scanners[s.currentScannerIdx]
	}

	for {
		if s.currentScanner.Scan() {
			return true
		}

		if s.currentScannerIdx == len(s.Scanners)-1 {
			return false
		}

		s.currentScannerIdx++
		s.currentScanner = s.Scanners[s.currentScannerIdx]
	}
}

// Rule returns the current rule and its storage index, see [StorageIdx].
func (s *StorageScanner) Rule() (r rules.Rule, idx int64) {
	if s.currentScanner == nil {
		return nil, 0
	}

	r, lineIdx := s.currentScanner.Rule()
	if r == nil {
		return nil, 0
	}

	return r, StorageIdx(r.GetFilterListID(), lineIdx)
}

// Skipped returns the number of the lines that could not be decoded so far in
// all lists.
func (s *StorageScanner) Skipped() (n int) {
	for _, sc := range s.Scanners {
		n += sc.Skipped()
	}

	return n
}

// Infos returns the metadata of the lists by their IDs.
func (s *StorageScanner) Infos() (infos map[int]*Info) {
	infos = make(map[int]*Info, len(s.Scanners))
	for _, sc := range s.Scanners {
		infos[sc.listID] = sc.Info()
	}

	return infos
}

// Err returns the read errors of all the lists.
func (s *StorageScanner) Err() (err error) {
	var errs []error
	for _, sc := range s.Scanners {
		if err = sc.Err(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// StorageIdx converts a pair of the list ID and the line index to a single
// storage index.
func StorageIdx(listID, lineIdx int) (idx int64) {
	return int64(listID)<<32 | int64(lineIdx)&0xFFFFFFFF
}

// SplitStorageIdx converts the storage index back to the list ID and the line
// index.
func SplitStorageIdx(idx int64) (listID, lineIdx int) {
	return int(idx >> 32), int(idx & 0xFFFFFFFF)
}
