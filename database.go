package contentfilter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AdguardTeam/contentfilter/filterlist"
	"github.com/AdguardTeam/contentfilter/rules"
)

// filterClass is the index a network filter belongs to.
type filterClass uint8

// filterClass values.
const (
	classBlock filterClass = iota
	classAllow
	classImportant
	classImportantAllow
	classNum
)

// classOf returns the class of f.
func classOf(f *rules.Filter) (c filterClass) {
	switch {
	case f.Allow && f.Important:
		return classImportantAllow
	case f.Allow:
		return classAllow
	case f.Important:
		return classImportant
	default:
		return classBlock
	}
}

// Database is the compiled set of filters.  It is immutable once built and
// safe for concurrent use.
type Database struct {
	// Block contains the blocking filters.
	Block *FilterIndex

	// Allow contains the allowlist filters, "@@".
	Allow *FilterIndex

	// Important contains the blocking filters with $important.
	Important *FilterIndex

	// ImportantAllow contains the allowlist filters with $important.
	ImportantAllow *FilterIndex

	// Elements contains the element hiding rules.
	Elements *ElementContainer

	// Infos are the metadata of the compiled lists by their IDs.
	Infos map[int]*filterlist.Info
}

// newDatabase returns a new empty database.  expectedHosts is the estimated
// number of unrestricted hostname filters in each class, indexed by
// filterClass.
func newDatabase(expectedHosts [classNum]uint) (db *Database) {
	return &Database{
		Block:          NewFilterIndex(expectedHosts[classBlock]),
		Allow:          NewFilterIndex(expectedHosts[classAllow]),
		Important:      NewFilterIndex(expectedHosts[classImportant]),
		ImportantAllow: NewFilterIndex(expectedHosts[classImportantAllow]),
		Elements:       NewElementContainer(),
		Infos:          map[int]*filterlist.Info{},
	}
}

// NewDatabase returns a new empty database.
func NewDatabase() (db *Database) {
	return newDatabase([classNum]uint{})
}

// index returns the index of the class.
func (db *Database) index(c filterClass) (idx *FilterIndex) {
	switch c {
	case classAllow:
		return db.Allow
	case classImportant:
		return db.Important
	case classImportantAllow:
		return db.ImportantAllow
	default:
		return db.Block
	}
}

// Add adds r to the right index of db.  It returns false if r is a duplicate
// or isn't a supported rule.  Add must not be called concurrently with other
// methods.
func (db *Database) Add(r rules.Rule) (ok bool) {
	switch r := r.(type) {
	case *rules.Filter:
		return db.index(classOf(r)).Add(r)
	case *rules.ElementFilter:
		return db.Elements.Add(r)
	default:
		return false
	}
}

// Len returns the total number of rules in db.
func (db *Database) Len() (n int) {
	return db.Block.Len() + db.Allow.Len() + db.Important.Len() + db.ImportantAllow.Len() +
		db.Elements.Len()
}

// Compile decodes the lists and builds a database of their rules.  The lines
// that can't be decoded are skipped.  Filters with $badfilter disable the
// filters with the same text and are not added themselves.  The lists are
// read in order, which is the order of precedence of the filters.  Compile
// doesn't close the lists.
func Compile(ctx context.Context, logger *slog.Logger, lists []filterlist.RuleList) (db *Database, err error) {
	if logger == nil {
		logger = slog.Default()
	}

	start := time.Now()

	s, err := filterlist.NewStorage(lists)
	if err != nil {
		return nil, fmt.Errorf("compiling: %w", err)
	}

	// At first, we read all rules, so that the $badfilter rules could apply to
	// the rules above them and we could pre-allocate lookup tables.
	var all []rules.Rule
	var expectedHosts [classNum]uint
	badFilters := map[string]struct{}{}

	sc := s.NewScanner(logger)
	for sc.Scan() {
		if err = ctx.Err(); err != nil {
			return nil, fmt.Errorf("compiling: %w", err)
		}

		r, _ := sc.Rule()
		if f, ok := r.(*rules.Filter); ok {
			if f.BadFilter {
				badFilters[f.RuleText] = struct{}{}

				continue
			}

			if f.Kind == rules.KindHost {
				expectedHosts[classOf(f)]++
			}
		}

		all = append(all, r)
	}

	if err = sc.Err(); err != nil {
		return nil, fmt.Errorf("compiling: %w", err)
	}

	db = newDatabase(expectedHosts)
	db.Infos = sc.Infos()

	var disabled, duplicates int
	for _, r := range all {
		if _, ok := badFilters[r.Text()]; ok {
			disabled++

			continue
		}

		if !db.Add(r) {
			duplicates++
		}
	}

	logger.InfoContext(
		ctx,
		"compiled filters",
		"lists", len(lists),
		"rules", db.Len(),
		"elements", db.Elements.Len(),
		"skipped", sc.Skipped(),
		"disabled", disabled,
		"duplicates", duplicates,
		"elapsed", time.Since(start),
	)

	return db, nil
}
