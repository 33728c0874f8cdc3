package store

import (
	"time"

	"github.com/cuemby/rqstore/pkg/entitystore"
	"github.com/cuemby/rqstore/pkg/types"
)

// Stats samples the store's live entity counts. It satisfies
// metrics.StatsSource.
func (s *Store) Stats() types.Stats {
	db := s.db.Snapshot()

	var stale, fresh int
	for _, eid := range db.Scan(entitystore.AttrInstaqlQuery) {
		ent, ok := db.Entity(entitystore.ByID(eid))
		if !ok {
			continue
		}
		isStale, _ := ent.Get(entitystore.AttrInstaqlStale)
		if isStale == true {
			stale++
		} else {
			fresh++
		}
	}

	return types.Stats{
		Sessions:            len(db.ScanUnique(entitystore.AttrSessionID)),
		InstaqlQueriesStale: stale,
		InstaqlQueriesFresh: fresh,
		DatalogQueries:      len(db.Scan(entitystore.AttrDatalogAppID)),
		Subscriptions:       len(db.Scan(entitystore.AttrSubSessionID)),
		SampledAt:           time.Now(),
	}
}
