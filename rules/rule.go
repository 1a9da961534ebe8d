package rules

import (
	"fmt"

	"github.com/AdguardTeam/golibs/errors"
)

// RuleSyntaxError represents an error while parsing a filtering rule.
type RuleSyntaxError struct {
	// Msg describes the problem.
	Msg string

	// RuleText is the text of the broken rule.
	RuleText string
}

// type check
var _ error = (*RuleSyntaxError)(nil)

// Error implements the error interface for *RuleSyntaxError.
func (e *RuleSyntaxError) Error() (msg string) {
	return fmt.Sprintf("syntax error: %s, rule: %s", e.Msg, e.RuleText)
}

const (
	// ErrUnsupportedRule signals that this might be a valid rule type, but it
	// is not yet supported by this library.
	ErrUnsupportedRule errors.Error = "this type of rules is unsupported"

	// ErrTooShort signals that the line is too short to be a rule.
	ErrTooShort errors.Error = "rule is too short"
)

// Rule is a base interface for all filtering rules.
type Rule interface {
	// Text returns the original rule text.
	Text() (text string)

	// GetFilterListID returns ID of the filter list this rule belongs to.
	GetFilterListID() (id int)
}
