package contentfilter_test

import (
	"context"
	"testing"

	"github.com/AdguardTeam/contentfilter"
	"github.com/AdguardTeam/contentfilter/filterlist"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/stretchr/testify/require"
)

// testListID is the identifier of the test rule lists.
const testListID = 1

// testLogger is the common logger for tests.
var testLogger = slogutil.NewDiscardLogger()

// newTestDatabase compiles the rules text as a single ABP list.
func newTestDatabase(tb testing.TB, rulesText string) (db *contentfilter.Database) {
	tb.Helper()

	db, err := contentfilter.Compile(context.Background(), testLogger, []filterlist.RuleList{
		&filterlist.StringRuleList{
			RulesText: rulesText,
			ID:        testListID,
		},
	})
	require.NoError(tb, err)

	return db
}
