package resolve

import (
	"encoding/csv"
	"io"

	"github.com/cockroachdb/errors"
)

// Table holds one record per distinct token.
type Table []Record

// csvHeader is the column layout of the resolution report.
var csvHeader = []string{"raw", "type", "resolved_key", "resolved_doi", "method"}

// Lookup returns the record for a raw token.
func (t Table) Lookup(raw string) (Record, bool) {
	for _, r := range t {
		if r.Raw == raw {
			return r, true
		}
	}
	return Record{}, false
}

// Unresolved returns the records no strategy could resolve.
func (t Table) Unresolved() Table {
	var out Table
	for _, r := range t {
		if !r.Resolved() {
			out = append(out, r)
		}
	}
	return out
}

// Replacements maps each raw token to the key it should be cited by. Tokens
// without a resolved key are omitted.
func (t Table) Replacements() map[string]string {
	m := make(map[string]string, len(t))
	for _, r := range t {
		if r.Resolved() && r.ResolvedKey != "" {
			m[r.Raw] = r.ResolvedKey
		}
	}
	return m
}

// Counts tallies records per method. Every method is present, possibly zero.
func (t Table) Counts() map[Method]int {
	counts := make(map[Method]int, len(Methods))
	for _, m := range Methods {
		counts[m] = 0
	}
	for _, r := range t {
		counts[r.Method]++
	}
	return counts
}

// WriteCSV writes the table as a CSV report with a header row.
func (t Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return errors.Wrap(err, "writing csv header")
	}
	for _, r := range t {
		row := []string{r.Raw, string(r.Kind), r.ResolvedKey, r.ResolvedDOI, string(r.Method)}
		if err := cw.Write(row); err != nil {
			return errors.Wrapf(err, "writing csv row for %q", r.Raw)
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flushing csv")
}
