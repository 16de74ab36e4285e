package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"casenotes/pkg/sheets"
	"casenotes/pkg/table"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL is how long a successful fetch is served without re-reading.
const DefaultTTL = 300 * time.Second

var (
	lookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "casenotes_cache_lookups_total",
		Help: "Snapshot cache lookups by result (hit, miss, stale).",
	}, []string{"result"})
	fetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "casenotes_cache_fetch_errors_total",
		Help: "Failed snapshot fetches by error kind.",
	}, []string{"kind"})
)

type ErrorKind int

const (
	Other ErrorKind = iota
	QuotaExceeded
)

func (k ErrorKind) String() string {
	if k == QuotaExceeded {
		return "quota_exceeded"
	}
	return "other"
}

// FetchError is returned when the store could not be read.
type FetchError struct {
	Kind ErrorKind
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching sheets (%s): %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Snapshots holds one snapshot per program sheet.
type Snapshots struct {
	GRIT *table.Snapshot
	IPE  *table.Snapshot
}

// For returns the snapshot of the given program.
func (s Snapshots) For(schema table.Schema) *table.Snapshot {
	if schema.Program == table.IPE.Program {
		return s.IPE
	}
	return s.GRIT
}

func emptySnapshots() Snapshots {
	return Snapshots{GRIT: table.EmptySnapshot(table.GRIT), IPE: table.EmptySnapshot(table.IPE)}
}

// Cache memoizes the last successful fetch of both sheets for a fixed window.
type Cache struct {
	store sheets.Store
	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group

	mu         sync.Mutex
	last       *Snapshots
	fetchedAt  time.Time
	fresh      bool
	generation uint64
}

func New(store sheets.Store, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{store: store, ttl: ttl, now: time.Now}
}

// Get returns the current snapshots, fetching them if the cached copy expired.
func (c *Cache) Get(ctx context.Context) (Snapshots, error) {
	return c.GetAt(ctx, c.now())
}

// GetAt is Get with an explicit clock reading.
func (c *Cache) GetAt(ctx context.Context, now time.Time) (Snapshots, error) {
	c.mu.Lock()
	if c.fresh && now.Sub(c.fetchedAt) < c.ttl {
		snaps := *c.last
		c.mu.Unlock()
		lookups.WithLabelValues("hit").Inc()
		log.Debugf("Snapshot cache hit, age %s", now.Sub(c.fetchedAt))
		return snaps, nil
	}
	c.mu.Unlock()

	lookups.WithLabelValues("miss").Inc()
	// The fetch is shared by every waiting caller, so it must outlive the
	// request that started it.
	ch := c.group.DoChan("snapshots", func() (interface{}, error) {
		return c.fetch(context.WithoutCancel(ctx), now)
	})
	select {
	case res := <-ch:
		return res.Val.(Snapshots), res.Err
	case <-ctx.Done():
		return emptySnapshots(), ctx.Err()
	}
}

// Invalidate makes the next Get re-fetch. The last snapshots are kept so they
// can still be served if that fetch hits the quota.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fresh = false
	c.generation++
	log.Debug("Snapshot cache invalidated")
}

func (c *Cache) fetch(ctx context.Context, now time.Time) (Snapshots, error) {
	c.mu.Lock()
	gen := c.generation
	c.mu.Unlock()

	var grit, ipe [][]string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		grit, err = c.store.ReadAll(gctx, table.GRIT.Sheet)
		return err
	})
	g.Go(func() (err error) {
		ipe, err = c.store.ReadAll(gctx, table.IPE.Sheet)
		return err
	})
	if err := g.Wait(); err != nil {
		return c.fetchFailed(err)
	}

	snaps := Snapshots{
		GRIT: table.NewSnapshot(table.GRIT, grit, now),
		IPE:  table.NewSnapshot(table.IPE, ipe, now),
	}
	log.Debugf("Fetched %d GRIT and %d IPE rows", snaps.GRIT.Len(), snaps.IPE.Len())

	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = &snaps
	c.fetchedAt = now
	// An invalidation that raced this fetch wins.
	c.fresh = gen == c.generation
	return snaps, nil
}

func (c *Cache) fetchFailed(err error) (Snapshots, error) {
	fe := &FetchError{Kind: Other, Err: err}
	if sheets.IsQuotaExceeded(err) {
		fe.Kind = QuotaExceeded
	}
	fetchErrors.WithLabelValues(fe.Kind.String()).Inc()

	c.mu.Lock()
	defer c.mu.Unlock()
	if fe.Kind == QuotaExceeded && c.last != nil {
		lookups.WithLabelValues("stale").Inc()
		log.Warnf("Sheets quota exceeded, serving snapshots from %s", c.fetchedAt.Format(time.RFC3339))
		return *c.last, fe
	}
	log.Errorf("Failed to fetch sheets: %v", err)
	return emptySnapshots(), fe
}
