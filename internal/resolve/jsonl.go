package resolve

import (
	"bufio"
	"encoding/json"
	"io"

	"github.com/cockroachdb/errors"
)

// MaxJSONLLineCapacity is the maximum buffer size for reading JSONL lines.
const MaxJSONLLineCapacity = 1024 * 1024

// WriteJSONL writes one record per line.
func (t Table) WriteJSONL(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for i, r := range t {
		data, err := json.Marshal(r)
		if err != nil {
			return errors.Wrapf(err, "encoding record %d", i)
		}
		if _, err := bw.Write(data); err != nil {
			return errors.Wrapf(err, "writing record %d", i)
		}
		if err := bw.WriteByte('\n'); err != nil {
			return errors.Wrap(err, "writing newline")
		}
	}
	return bw.Flush()
}

// ReadJSONL reads a table written by WriteJSONL. Empty lines are skipped.
func ReadJSONL(r io.Reader) (Table, error) {
	var table Table
	scanner := bufio.NewScanner(r)

	// Increase buffer size for long lines
	buf := make([]byte, MaxJSONLLineCapacity)
	scanner.Buffer(buf, MaxJSONLLineCapacity)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, errors.Wrapf(err, "parsing line %d", lineNum)
		}
		if rec.Raw == "" || rec.Method == "" {
			return nil, errors.Newf("line %d: record needs raw and method", lineNum)
		}
		table = append(table, rec)
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading records")
	}
	return table, nil
}
