package mutation

import (
	"context"
	"errors"
	"fmt"

	"casenotes/pkg/sheets"
	"casenotes/pkg/table"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

var (
	// ErrRemoteWrite marks a failed append, update or clear. The store is
	// presumed unchanged.
	ErrRemoteWrite = errors.New("remote write failed")
	// ErrUnknownColumn rejects a change-set naming a column the snapshot lacks.
	ErrUnknownColumn = errors.New("unknown column")
)

var mutations = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "casenotes_mutations_total",
	Help: "Sheet mutations by operation and outcome.",
}, []string{"op", "outcome"})

// WriteError describes a remote call that failed during a mutation.
type WriteError struct {
	Op    string
	Sheet string
	Row   int
	Err   error
}

func (e *WriteError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("%s of %s row %d failed: %v", e.Op, e.Sheet, e.Row, e.Err)
	}
	return fmt.Sprintf("%s to %s failed: %v", e.Op, e.Sheet, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

func (e *WriteError) Is(target error) bool { return target == ErrRemoteWrite }

// Invalidator is the part of the snapshot cache a mutation needs.
type Invalidator interface {
	Invalidate()
}

// Sequencer turns one user action into exactly one remote write followed by
// a cache invalidation.
type Sequencer struct {
	store sheets.Store
	cache Invalidator
}

func NewSequencer(store sheets.Store, cache Invalidator) *Sequencer {
	return &Sequencer{store: store, cache: cache}
}

// Append adds a row to the end of the sheet. Fields are matched against the
// sheet's real header row, read fresh, since cleaned snapshot column names can
// differ from it; absent fields are written as "".
func (s *Sequencer) Append(ctx context.Context, schema table.Schema, fields map[string]table.Value) error {
	header, err := s.store.ReadHeader(ctx, schema.Sheet)
	if err == nil && len(header) == 0 {
		err = errors.New("sheet has no header row")
	}
	if err != nil {
		return s.failed(&WriteError{Op: "append", Sheet: schema.Sheet, Err: err})
	}

	row := make([]string, len(header))
	for i, h := range header {
		row[i] = fields[h].String()
	}
	if err := s.store.AppendRow(ctx, schema.Sheet, row); err != nil {
		return s.failed(&WriteError{Op: "append", Sheet: schema.Sheet, Err: err})
	}
	log.Infof("Appended row to %s", schema.Sheet)
	return s.done("append")
}

// Update rewrites the whole physical row: the cached record with changes
// overlaid, serialized in snapshot column order.
func (s *Sequencer) Update(ctx context.Context, snap *table.Snapshot, row int, changes map[string]table.Value) error {
	for col := range changes {
		if !snap.HasColumn(col) {
			return fmt.Errorf("%w %q in %s", ErrUnknownColumn, col, snap.Schema.Sheet)
		}
	}
	rec, err := snap.RecordAtRow(row)
	if err != nil {
		mutations.WithLabelValues("update", "unresolved").Inc()
		return err
	}

	values := snap.Serialize(rec.With(changes))
	a1 := sheets.RowRange(row, len(snap.Columns))
	log.Debugf("Updating %s!%s", snap.Schema.Sheet, a1)
	if err := s.store.UpdateRange(ctx, snap.Schema.Sheet, a1, values); err != nil {
		return s.failed(&WriteError{Op: "update", Sheet: snap.Schema.Sheet, Row: row, Err: err})
	}
	log.Infof("Updated %s row %d", snap.Schema.Sheet, row)
	return s.done("update")
}

// Delete clears the cells of a physical row. Rows are never removed so every
// other row keeps its number.
func (s *Sequencer) Delete(ctx context.Context, snap *table.Snapshot, row int) error {
	if _, err := snap.RecordAtRow(row); err != nil {
		mutations.WithLabelValues("delete", "unresolved").Inc()
		return err
	}

	a1 := sheets.RowRange(row, len(snap.Columns))
	log.Debugf("Clearing %s!%s", snap.Schema.Sheet, a1)
	if err := s.store.ClearRange(ctx, snap.Schema.Sheet, a1); err != nil {
		return s.failed(&WriteError{Op: "delete", Sheet: snap.Schema.Sheet, Row: row, Err: err})
	}
	log.Infof("Cleared %s row %d", snap.Schema.Sheet, row)
	return s.done("delete")
}

func (s *Sequencer) done(op string) error {
	s.cache.Invalidate()
	mutations.WithLabelValues(op, "ok").Inc()
	return nil
}

func (s *Sequencer) failed(err *WriteError) error {
	log.Errorf("Mutation failed: %v", err)
	mutations.WithLabelValues(err.Op, "error").Inc()
	return err
}
