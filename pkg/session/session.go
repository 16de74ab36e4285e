// Package session keeps the state of an edit or delete between the moment a
// user picks a note and the moment they confirm or cancel.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"casenotes/pkg/cache"
	"casenotes/pkg/table"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type Kind string

const (
	Edit   Kind = "edit"
	Delete Kind = "delete"
)

var (
	ErrNotFound  = errors.New("interaction not found")
	ErrEmptyNote = errors.New("note text is required")
)

// Interaction is one pending edit or delete of a note row.
type Interaction struct {
	ID       uuid.UUID   `json:"id"`
	Kind     Kind        `json:"kind"`
	Program  string      `json:"program"`
	Owner    string      `json:"-"`
	Entity   string      `json:"entity"`
	Row      int         `json:"row"`
	NoteDate table.Value `json:"note_date"`
	NoteText string      `json:"note_text"`
	Began    time.Time   `json:"began"`
}

// Change is what the user submits when committing an edit.
type Change struct {
	Date time.Time
	Text string
}

// Mutator applies committed interactions to the store.
type Mutator interface {
	Update(ctx context.Context, snap *table.Snapshot, row int, changes map[string]table.Value) error
	Delete(ctx context.Context, snap *table.Snapshot, row int) error
}

// SnapshotSource provides the current snapshots at commit time.
type SnapshotSource interface {
	Get(ctx context.Context) (cache.Snapshots, error)
}

// Tracker holds at most one pending interaction per program, user and client.
type Tracker struct {
	now func() time.Time

	mu    sync.Mutex
	byID  map[uuid.UUID]*Interaction
	byKey map[string]uuid.UUID
}

func NewTracker() *Tracker {
	return &Tracker{
		now:   time.Now,
		byID:  make(map[uuid.UUID]*Interaction),
		byKey: make(map[string]uuid.UUID),
	}
}

func key(program, owner, entity string) string {
	return strings.Join([]string{program, owner, entity}, "\x00")
}

// Begin starts an edit or delete of the note at row. Any pending interaction
// of the same user on the same client is replaced.
func (t *Tracker) Begin(kind Kind, snap *table.Snapshot, owner string, row int) (Interaction, error) {
	rec, err := snap.RecordAtRow(row)
	if err != nil {
		return Interaction{}, err
	}
	schema := snap.Schema
	in := &Interaction{
		ID:       uuid.New(),
		Kind:     kind,
		Program:  schema.Program,
		Owner:    owner,
		Entity:   rec.Get(schema.EntityColumn).Text(),
		Row:      row,
		NoteDate: rec.Get(table.ColumnNoteDate),
		NoteText: rec.Get(table.ColumnCaseNotes).Text(),
		Began:    t.now(),
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	k := key(in.Program, owner, in.Entity)
	if prev, ok := t.byKey[k]; ok {
		delete(t.byID, prev)
	}
	t.byKey[k] = in.ID
	t.byID[in.ID] = in
	log.Debugf("Began %s of %s row %d for %s", kind, in.Program, row, owner)
	return *in, nil
}

// Get returns the pending interaction id if owner started it.
func (t *Tracker) Get(id uuid.UUID, owner string) (Interaction, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	in, ok := t.byID[id]
	if !ok || in.Owner != owner {
		return Interaction{}, false
	}
	return *in, true
}

// Cancel discards a pending interaction.
func (t *Tracker) Cancel(id uuid.UUID, owner string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	in, ok := t.byID[id]
	if !ok || in.Owner != owner {
		return false
	}
	t.end(in)
	return true
}

// Commit applies a pending interaction. The row must still hold the same
// client, otherwise the view was stale and the interaction is dropped. The
// interaction is claimed for the whole commit, so a concurrent commit of the
// same id gets ErrNotFound.
func (t *Tracker) Commit(ctx context.Context, id uuid.UUID, owner string, change Change, snaps SnapshotSource, m Mutator) (Interaction, error) {
	in, ok := t.claim(id, owner)
	if !ok {
		return Interaction{}, ErrNotFound
	}
	err := t.apply(ctx, in, change, snaps, m)
	if err != nil && !errors.Is(err, table.ErrRowUnresolved) {
		t.restore(in)
	}
	return *in, err
}

func (t *Tracker) apply(ctx context.Context, in *Interaction, change Change, snaps SnapshotSource, m Mutator) error {
	schema, ok := table.SchemaFor(in.Program)
	if !ok {
		return fmt.Errorf("unknown program %q", in.Program)
	}

	var changes map[string]table.Value
	if in.Kind == Edit {
		text := strings.TrimSpace(change.Text)
		if text == "" {
			return ErrEmptyNote
		}
		date := in.NoteDate
		if !change.Date.IsZero() {
			date = table.DateValue(change.Date)
		} else if date.IsEmpty() {
			date = table.DateValue(t.now())
		}
		changes = map[string]table.Value{
			table.ColumnNoteDate:  date,
			table.ColumnCaseNotes: table.TextValue(text),
		}
	}

	all, err := snaps.Get(ctx)
	var fe *cache.FetchError
	if err != nil && !(errors.As(err, &fe) && fe.Kind == cache.QuotaExceeded) {
		return err
	}
	snap := all.For(schema)
	rec, err := snap.RecordAtRow(in.Row)
	if err != nil {
		return err
	}
	if rec.Get(schema.EntityColumn).Text() != in.Entity {
		return fmt.Errorf("%w: row %d no longer belongs to %s", table.ErrRowUnresolved, in.Row, in.Entity)
	}
	if in.Kind == Edit {
		return m.Update(ctx, snap, in.Row, changes)
	}
	return m.Delete(ctx, snap, in.Row)
}

// claim removes a pending interaction so that only one commit can run it.
func (t *Tracker) claim(id uuid.UUID, owner string) (*Interaction, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	in, ok := t.byID[id]
	if !ok || in.Owner != owner {
		return nil, false
	}
	t.end(in)
	return in, true
}

// restore puts back a claimed interaction after a failed commit, unless the
// user has started a newer one on the same client meanwhile.
func (t *Tracker) restore(in *Interaction) {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := key(in.Program, in.Owner, in.Entity)
	if _, taken := t.byKey[k]; taken {
		return
	}
	t.byKey[k] = in.ID
	t.byID[in.ID] = in
}

func (t *Tracker) end(in *Interaction) {
	delete(t.byID, in.ID)
	k := key(in.Program, in.Owner, in.Entity)
	if t.byKey[k] == in.ID {
		delete(t.byKey, k)
	}
}

// Pending counts interactions that are neither committed nor cancelled.
func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byID)
}
