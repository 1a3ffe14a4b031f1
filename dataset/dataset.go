// Package dataset holds the CSV table a workflow verifies.
//
// A Dataset is identified by the SHA-256 of its exact bytes. Bytes returns
// those bytes unchanged, so handing the same Dataset to the verifier twice
// produces the same input file.
package dataset

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/teranos/vgate/errors"
)

// Dataset is an immutable CSV table
type Dataset struct {
	name string
	raw  []byte
	hash string
}

// New creates a dataset from raw CSV content. The content is copied.
func New(name string, raw []byte) *Dataset {
	content := bytes.Clone(raw)
	sum := sha256.Sum256(content)
	return &Dataset{
		name: name,
		raw:  content,
		hash: hex.EncodeToString(sum[:]),
	}
}

// Load reads a CSV file
func Load(path string) (*Dataset, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "read dataset %s", path), errors.ErrInvalidDataset)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, errors.Mark(errors.Newf("dataset %s is empty", path), errors.ErrInvalidDataset)
	}
	return New(filepath.Base(path), raw), nil
}

// Name is the file name the dataset was loaded from, if any
func (d *Dataset) Name() string { return d.name }

// Hash is the lowercase hex SHA-256 of the content
func (d *Dataset) Hash() string { return d.hash }

// Bytes returns a copy of the exact content
func (d *Dataset) Bytes() []byte { return bytes.Clone(d.raw) }

// Size is the content length in bytes
func (d *Dataset) Size() int { return len(d.raw) }

// Stats describes the table's structure and its first column
type Stats struct {
	Headers     []string   `json:"headers"`
	RowCount    int        `json:"row_count"`
	ColumnCount int        `json:"column_count"`
	ColumnASum  int64      `json:"column_a_sum"`
	Parsed      int        `json:"column_a_parsed"`  // rows whose first column is an integer
	Skipped     int        `json:"column_a_skipped"` // rows whose first column is not
	Preview     [][]string `json:"preview,omitempty"`
}

const previewRows = 5

// Analyze reads the table. The first row is the header; the aggregate is
// the sum of the first column over data rows, skipping values that do not
// parse as integers.
func (d *Dataset) Analyze() (*Stats, error) {
	r := csv.NewReader(bytes.NewReader(d.raw))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, errors.Mark(errors.New("dataset has no header row"), errors.ErrInvalidDataset)
	}
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "parse header"), errors.ErrInvalidDataset)
	}

	st := &Stats{Headers: header, ColumnCount: len(header)}
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "parse row %d", st.RowCount+1), errors.ErrInvalidDataset)
		}

		st.RowCount++
		if len(st.Preview) < previewRows {
			st.Preview = append(st.Preview, record)
		}

		if v, ok := parseCell(record[0]); ok {
			st.ColumnASum += v
			st.Parsed++
		} else {
			st.Skipped++
		}
	}
	return st, nil
}

func parseCell(s string) (int64, bool) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return v, err == nil
}

// WithinThreshold is the business rule: the aggregate may not exceed the threshold
func WithinThreshold(aggregate, threshold int64) bool {
	return aggregate <= threshold
}

// AggregateHash is the hex SHA-256 of the aggregate's decimal form
func AggregateHash(aggregate int64) string {
	sum := sha256.Sum256([]byte(strconv.FormatInt(aggregate, 10)))
	return hex.EncodeToString(sum[:])
}
