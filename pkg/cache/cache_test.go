package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"casenotes/pkg/sheets"
	"casenotes/pkg/table"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

var start = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func newStore() *sheets.MockStore {
	return sheets.NewMockStore(map[string][][]string{
		"GRIT": {
			{"Youth Name", "Date", "Day of Case Note", "Case Notes"},
			{"Alex", "01/01/2024", "01/02/2024", "intake"},
		},
		"IPE": {
			{"Name of Client", "Date Received", "Day of Case Note", "Case Notes"},
			{"Jordan", "02/01/2024", "", "first call"},
			{"Riley", "02/03/2024", "02/04/2024", "visit"},
		},
	})
}

func TestGetServesCachedWithinTTL(t *testing.T) {
	store := newStore()
	c := New(store, DefaultTTL)
	ctx := context.Background()

	snaps, err := c.GetAt(ctx, start)
	require.NoError(t, err)
	assert.Equal(t, 1, snaps.GRIT.Len())
	assert.Equal(t, 2, snaps.IPE.Len())
	assert.Equal(t, 2, store.ReadAllCalls)

	for _, d := range []time.Duration{time.Second, time.Minute, DefaultTTL - time.Second} {
		_, err := c.GetAt(ctx, start.Add(d))
		require.NoError(t, err)
	}
	assert.Equal(t, 2, store.ReadAllCalls, "no remote read inside the expiry window")

	_, err = c.GetAt(ctx, start.Add(DefaultTTL))
	require.NoError(t, err)
	assert.Equal(t, 4, store.ReadAllCalls, "expired snapshot is re-fetched")
}

func TestInvalidateForcesRefetch(t *testing.T) {
	store := newStore()
	c := New(store, DefaultTTL)
	ctx := context.Background()

	_, err := c.GetAt(ctx, start)
	require.NoError(t, err)
	c.Invalidate()
	store.Sheets["GRIT"] = append(store.Sheets["GRIT"], []string{"Sam", "", "", "new"})

	snaps, err := c.GetAt(ctx, start.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, 4, store.ReadAllCalls)
	assert.Equal(t, 2, snaps.GRIT.Len())
}

func TestQuotaExceededServesStale(t *testing.T) {
	store := newStore()
	c := New(store, DefaultTTL)
	ctx := context.Background()

	first, err := c.GetAt(ctx, start)
	require.NoError(t, err)

	store.ReadAllErr = &googleapi.Error{Code: 429, Message: "Quota exceeded"}
	c.Invalidate()
	snaps, err := c.GetAt(ctx, start.Add(time.Second))

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, QuotaExceeded, fe.Kind)
	assert.Same(t, first.GRIT, snaps.GRIT)
	assert.Same(t, first.IPE, snaps.IPE)

	// Errors are not memoized: once the quota recovers the next call re-reads.
	store.ReadAllErr = nil
	calls := store.ReadAllCalls
	_, err = c.GetAt(ctx, start.Add(2*time.Second))
	require.NoError(t, err)
	assert.Greater(t, store.ReadAllCalls, calls)
}

func TestQuotaExceededWithoutCache(t *testing.T) {
	store := newStore()
	store.ReadAllErr = &googleapi.Error{Code: 429}
	c := New(store, DefaultTTL)

	snaps, err := c.GetAt(context.Background(), start)
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, QuotaExceeded, fe.Kind)
	assert.Equal(t, 0, snaps.GRIT.Len())
	assert.Equal(t, 0, snaps.IPE.Len())
}

func TestOtherErrorReturnsEmpty(t *testing.T) {
	store := newStore()
	c := New(store, DefaultTTL)
	ctx := context.Background()
	_, err := c.GetAt(ctx, start)
	require.NoError(t, err)

	store.ReadAllErr = errors.New("permission denied")
	c.Invalidate()
	snaps, err := c.GetAt(ctx, start.Add(time.Second))

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, Other, fe.Kind)
	assert.Equal(t, 0, snaps.GRIT.Len())
	assert.Equal(t, "GRIT", snaps.GRIT.Schema.Program)
}

func TestConcurrentGetIsSafe(t *testing.T) {
	store := newStore()
	c := New(store, DefaultTTL)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snaps, err := c.GetAt(ctx, start)
			assert.NoError(t, err)
			assert.Equal(t, 1, snaps.GRIT.Len())
		}()
	}
	wg.Wait()
	_, err := c.GetAt(ctx, start.Add(time.Second))
	require.NoError(t, err)
}

func TestSnapshotsFor(t *testing.T) {
	s := emptySnapshots()
	assert.Equal(t, "IPE", s.For(table.IPE).Schema.Program)
	assert.Equal(t, "GRIT", s.For(table.GRIT).Schema.Program)
}

// slowStore holds every ReadAll until release is closed.
type slowStore struct {
	*sheets.MockStore
	entered chan struct{}
	release chan struct{}
}

func (s *slowStore) ReadAll(ctx context.Context, sheet string) ([][]string, error) {
	s.entered <- struct{}{}
	<-s.release
	return s.MockStore.ReadAll(ctx, sheet)
}

func TestCancelledCallerLeavesSharedFetch(t *testing.T) {
	store := &slowStore{
		MockStore: newStore(),
		entered:   make(chan struct{}, 8),
		release:   make(chan struct{}),
	}
	c := New(store, DefaultTTL)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := c.GetAt(ctxA, start)
		errA <- err
	}()
	<-store.entered

	type result struct {
		snaps Snapshots
		err   error
	}
	resB := make(chan result, 1)
	go func() {
		snaps, err := c.GetAt(context.Background(), start)
		resB <- result{snaps, err}
	}()

	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)

	close(store.release)
	b := <-resB
	require.NoError(t, b.err)
	assert.Equal(t, 1, b.snaps.GRIT.Len())
	assert.Equal(t, 2, b.snaps.IPE.Len())
}
