package filterlist

import (
	"bufio"
	"io"
	"log/slog"
	"strings"

	"github.com/AdguardTeam/contentfilter/rules"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
)

// bom is the UTF-8 byte order mark some lists start with.
const bom = "\uFEFF"

// decodeFunc decodes a single line of a list.  Lines that hold no rules, such
// as comments, return no rules and no error.
type decodeFunc func(line string, listID int) (rs []rules.Rule, err error)

// ScannerConfig is the configuration structure for [NewRuleScanner].
type ScannerConfig struct {
	// Logger is used to report the skipped lines.  If it's nil,
	// [slog.Default] is used.
	Logger *slog.Logger

	// ListID is the ID of the list the rules belong to.
	ListID int

	// Format is the syntax of the list.
	Format Format

	// IgnoreCosmetic tells the scanner to skip the element hiding rules.
	IgnoreCosmetic bool
}

// RuleScanner implements an interface for reading filtering rules.
type RuleScanner struct {
	logger *slog.Logger
	reader *bufio.Reader
	decode decodeFunc
	info   *Info

	// err is the first read error.
	err error

	// pending are the rules decoded from the current line and not returned
	// yet.
	pending []rules.Rule

	// currentRule is the last rule returned by Scan.
	currentRule rules.Rule

	// currentIdx is the index of the line of currentRule.
	currentIdx int

	// lineIdx is the index of the next line.
	lineIdx int

	// skipped is the number of the lines that could not be decoded.
	skipped int

	listID         int
	ignoreCosmetic bool
	done           bool
}

// NewRuleScanner returns a new RuleScanner to read r.  c must not be nil.
func NewRuleScanner(r io.Reader, c *ScannerConfig) (s *RuleScanner) {
	s = &RuleScanner{
		logger:         c.Logger,
		reader:         bufio.NewReader(r),
		info:           &Info{},
		listID:         c.ListID,
		ignoreCosmetic: c.IgnoreCosmetic,
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	switch c.Format {
	case FormatLegacy:
		s.decode = DecodeLegacy
	case FormatHosts:
		s.decode = DecodeHosts
	default:
		s.decode = s.decodeABP
	}

	return s
}

// Scan advances the RuleScanner to the next rule, which will then be
// available through the Rule method.  It returns false when the scan stops,
// either by reaching the end of the input or an error.
func (s *RuleScanner) Scan() (ok bool) {
	for len(s.pending) == 0 {
		if s.done || s.err != nil {
			s.currentRule = nil

			return false
		}

		line, idx, more := s.readLine()
		if !more {
			s.done = true
		}

		s.decodeLine(line, idx)
	}

	s.currentRule = s.pending[0]
	s.pending = s.pending[1:]

	return true
}

// Rule returns the most recent rule generated by a call to Scan, and the index
// of the line this rule was decoded from.
func (s *RuleScanner) Rule() (r rules.Rule, idx int) {
	return s.currentRule, s.currentIdx
}

// Skipped returns the number of the lines that could not be decoded so far.
func (s *RuleScanner) Skipped() (n int) {
	return s.skipped
}

// Info returns the list metadata from the header comments read so far.
func (s *RuleScanner) Info() (info *Info) {
	return s.info
}

// Err returns the first non-EOF error that was encountered by the scanner.
func (s *RuleScanner) Err() (err error) {
	return s.err
}

// readLine reads the next line.  more is false if it's the last one.
func (s *RuleScanner) readLine() (line string, idx int, more bool) {
	line, err := s.reader.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			s.err = errors.Annotate(err, "reading list %d: %w", s.listID)
		}
	} else {
		more = true
	}

	idx = s.lineIdx
	if idx == 0 {
		line = strings.TrimPrefix(line, bom)
	}

	s.lineIdx++

	return strings.TrimSpace(line), idx, more
}

// decodeLine decodes line and queues the resulting rules.
func (s *RuleScanner) decodeLine(line string, idx int) {
	if line == "" {
		return
	}

	rs, err := s.decode(line, s.listID)
	if err != nil {
		s.skipped++
		s.logger.Debug(
			"skipping rule",
			"list_id", s.listID,
			"line", idx,
			"text", line,
			slogutil.KeyError, err,
		)

		return
	}

	for _, r := range rs {
		if _, ok := r.(*rules.ElementFilter); ok && s.ignoreCosmetic {
			continue
		}

		s.pending = append(s.pending, r)
	}

	s.currentIdx = idx
}

// decodeABP decodes the header comments into the list metadata and the rest
// with [DecodeABP].
func (s *RuleScanner) decodeABP(line string, listID int) (rs []rules.Rule, err error) {
	if line[0] == '!' {
		s.info.parseComment(line)

		return nil, nil
	}

	return DecodeABP(line, listID)
}
