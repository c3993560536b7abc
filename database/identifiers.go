package database

import (
	"regexp"

	"github.com/d3group/inventory-foundation-sdk/errs"
)

// identifierPattern is the allow-list for table and column names. Names are
// interpolated into SQL text rather than bound as parameters, so anything
// outside this pattern is rejected up front.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// QuoteIdentifier validates a SQL identifier against the allow-list and
// returns it double-quoted. Callers must still source names from trusted
// schema definitions; the allow-list only blocks structural injection.
func QuoteIdentifier(name string) (string, error) {
	if !identifierPattern.MatchString(name) {
		return "", errs.InvalidArgumentf("unsafe SQL identifier %q", name)
	}
	return `"` + name + `"`, nil
}

// QuoteIdentifiers quotes every name in the slice, failing on the first
// invalid one.
func QuoteIdentifiers(names []string) ([]string, error) {
	quoted := make([]string, len(names))
	for i, name := range names {
		q, err := QuoteIdentifier(name)
		if err != nil {
			return nil, err
		}
		quoted[i] = q
	}
	return quoted, nil
}
