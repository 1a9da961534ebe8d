// Package filterlist contains the filter list sources and the decoders of
// their text formats.
package filterlist

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/AdguardTeam/golibs/errors"
)

// Format is the text format of a filter list.
type Format uint8

// Format values.
const (
	// FormatABP is the Adblock Plus filter syntax.
	FormatABP Format = iota
	// FormatLegacy is the one-rule-per-line legacy syntax, see [DecodeLegacy].
	FormatLegacy
	// FormatHosts is the hosts-file syntax, "0.0.0.0 example.org".
	FormatHosts
)

// String implements the [fmt.Stringer] interface for Format.
func (f Format) String() (s string) {
	switch f {
	case FormatABP:
		return "abp"
	case FormatLegacy:
		return "legacy"
	case FormatHosts:
		return "hosts"
	default:
		return fmt.Sprintf("!bad_format_%d", f)
	}
}

// ParseFormat returns the format by its name.
func ParseFormat(name string) (f Format, err error) {
	switch strings.ToLower(name) {
	case "abp", "":
		return FormatABP, nil
	case "legacy":
		return FormatLegacy, nil
	case "hosts":
		return FormatHosts, nil
	default:
		return 0, fmt.Errorf("unknown list format %q", name)
	}
}

// RuleList represents a set of filtering rules.
type RuleList interface {
	// GetID returns the rule list identifier.
	GetID() (id int)

	// NewScanner creates a new scanner that reads the list contents.  logger
	// is used to report the skipped lines, if it's nil, [slog.Default] is
	// used.
	NewScanner(logger *slog.Logger) (scanner *RuleScanner)

	// Closer closes the underlying resources.
	io.Closer
}

// StringRuleList implements the [RuleList] interface that keeps the rules in
// a string.
type StringRuleList struct {
	// RulesText is the text of the list.
	RulesText string

	// ID is the rule list ID.
	ID int

	// Format is the syntax of RulesText.
	Format Format

	// IgnoreCosmetic tells the scanner to skip the element hiding rules.
	IgnoreCosmetic bool
}

// type check
var _ RuleList = (*StringRuleList)(nil)

// GetID implements the [RuleList] interface for *StringRuleList.
func (l *StringRuleList) GetID() (id int) {
	return l.ID
}

// NewScanner implements the [RuleList] interface for *StringRuleList.
func (l *StringRuleList) NewScanner(logger *slog.Logger) (sc *RuleScanner) {
	return NewRuleScanner(strings.NewReader(l.RulesText), &ScannerConfig{
		Logger:         logger,
		ListID:         l.ID,
		Format:         l.Format,
		IgnoreCosmetic: l.IgnoreCosmetic,
	})
}

// Close implements the [RuleList] interface for *StringRuleList.
func (l *StringRuleList) Close() (err error) {
	return nil
}

// FileRuleList implements the [RuleList] interface that reads the rules from a
// file.  Only one scanner of a FileRuleList must be in use at a time.
type FileRuleList struct {
	// mu protects file.
	mu *sync.Mutex

	file *os.File

	id             int
	format         Format
	ignoreCosmetic bool
}

// type check
var _ RuleList = (*FileRuleList)(nil)

// NewFileRuleList opens the file at path and returns a new rule list reading
// it.
func NewFileRuleList(id int, path string, f Format, ignoreCosmetic bool) (l *FileRuleList, err error) {
	// #nosec G304 -- The path is a trusted value from the configuration.
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening rule list: %w", err)
	}

	return &FileRuleList{
		mu:             &sync.Mutex{},
		file:           file,
		id:             id,
		format:         f,
		ignoreCosmetic: ignoreCosmetic,
	}, nil
}

// GetID implements the [RuleList] interface for *FileRuleList.
func (l *FileRuleList) GetID() (id int) {
	return l.id
}

// NewScanner implements the [RuleList] interface for *FileRuleList.  The
// scanner reads the file from the start.
func (l *FileRuleList) NewScanner(logger *slog.Logger) (sc *RuleScanner) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c := &ScannerConfig{
		Logger:         logger,
		ListID:         l.id,
		Format:         l.format,
		IgnoreCosmetic: l.ignoreCosmetic,
	}

	_, err := l.file.Seek(0, io.SeekStart)
	if err != nil {
		sc = NewRuleScanner(strings.NewReader(""), c)
		sc.err = errors.Annotate(err, "rewinding list %d: %w", l.id)

		return sc
	}

	return NewRuleScanner(l.file, c)
}

// Close implements the [RuleList] interface for *FileRuleList.
func (l *FileRuleList) Close() (err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.file.Close()
}
