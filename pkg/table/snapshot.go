package table

import (
	"errors"
	"fmt"
	"time"
)

// ErrRowUnresolved means the physical row of a record cannot be determined
// from the current snapshot. It points at a stale view and must not be retried.
var ErrRowUnresolved = errors.New("unable to resolve sheet row")

// firstDataRow is the physical row of snapshot index 0; row 1 is the header.
const firstDataRow = 2

// Record is one sheet row. Records are never modified in place.
type Record struct {
	row    int
	values map[string]Value
}

// Row is the 1-based physical row the record was read from.
func (r Record) Row() int { return r.row }

func (r Record) Get(col string) Value { return r.values[col] }

// With returns a copy of r with changes applied.
func (r Record) With(changes map[string]Value) Record {
	values := make(map[string]Value, len(r.values)+len(changes))
	for k, v := range r.values {
		values[k] = v
	}
	for k, v := range changes {
		values[k] = v
	}
	return Record{row: r.row, values: values}
}

// Snapshot is the full content of one sheet at a point in time.
type Snapshot struct {
	Schema    Schema
	Columns   []string
	Records   []Record
	FetchedAt time.Time
}

// EmptySnapshot is what readers get when nothing could be fetched.
func EmptySnapshot(schema Schema) *Snapshot {
	return &Snapshot{Schema: schema}
}

// NewSnapshot builds a snapshot from raw sheet values, header first.
func NewSnapshot(schema Schema, values [][]string, fetchedAt time.Time) *Snapshot {
	s := &Snapshot{Schema: schema, FetchedAt: fetchedAt}
	if len(values) == 0 {
		return s
	}
	s.Columns = CleanHeaders(values[0])
	s.Records = make([]Record, 0, len(values)-1)
	for i, raw := range values[1:] {
		rec := Record{row: i + firstDataRow, values: make(map[string]Value, len(s.Columns))}
		for j, col := range s.Columns {
			cell := ""
			if j < len(raw) {
				cell = raw[j]
			}
			if schema.IsDateColumn(col) {
				rec.values[col] = ParseDate(cell)
			} else {
				rec.values[col] = TextValue(cell)
			}
		}
		s.Records = append(s.Records, rec)
	}
	return s
}

func (s *Snapshot) Len() int { return len(s.Records) }

func (s *Snapshot) HasColumn(col string) bool {
	for _, c := range s.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// PhysicalRow resolves snapshot index i, counted on the unfiltered snapshot.
func (s *Snapshot) PhysicalRow(i int) (int, error) {
	if i < 0 || i >= len(s.Records) {
		return 0, fmt.Errorf("%w: index %d outside %d rows of %s", ErrRowUnresolved, i, len(s.Records), s.Schema.Sheet)
	}
	return i + firstDataRow, nil
}

// RecordAtRow returns the cached record held at a physical row.
func (s *Snapshot) RecordAtRow(row int) (Record, error) {
	i := row - firstDataRow
	if i < 0 || i >= len(s.Records) {
		return Record{}, fmt.Errorf("%w: row %d not in current %s snapshot", ErrRowUnresolved, row, s.Schema.Sheet)
	}
	return s.Records[i], nil
}

// Serialize renders r as sheet text in snapshot column order.
func (s *Snapshot) Serialize(r Record) []string {
	row := make([]string, len(s.Columns))
	for i, col := range s.Columns {
		row[i] = r.Get(col).String()
	}
	return row
}
