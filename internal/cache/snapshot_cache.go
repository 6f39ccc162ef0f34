package cache

import (
	"time"

	"github.com/smallbiznis/eventra/internal/pricing/engine"
)

const defaultSnapshotTTL = 30 * time.Second

// SnapshotCache keeps assembled pricing snapshots for the public preview
// path. Entries are short-lived; the commit path revalidates capacity and
// sponsorship balances against the database regardless.
type SnapshotCache interface {
	Get(orgID, eventID string) (*engine.Snapshot, bool)
	Set(orgID, eventID string, snapshot *engine.Snapshot)
	Invalidate(orgID, eventID string)
}

type snapshotCache struct {
	snapshots Cache[string, *engine.Snapshot]
	ttl       time.Duration
}

// NewSnapshotCache returns an in-memory snapshot cache with the default TTL.
func NewSnapshotCache() SnapshotCache {
	return &snapshotCache{
		snapshots: NewTTLCache[string, *engine.Snapshot](),
		ttl:       defaultSnapshotTTL,
	}
}

func (c *snapshotCache) Get(orgID, eventID string) (*engine.Snapshot, bool) {
	return c.snapshots.Get(cacheKey(orgID, eventID))
}

func (c *snapshotCache) Set(orgID, eventID string, snapshot *engine.Snapshot) {
	c.snapshots.Set(cacheKey(orgID, eventID), snapshot, c.ttl)
}

func (c *snapshotCache) Invalidate(orgID, eventID string) {
	c.snapshots.Delete(cacheKey(orgID, eventID))
}
