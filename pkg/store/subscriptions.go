package store

import (
	"context"

	"github.com/cuemby/rqstore/pkg/entitystore"
	"github.com/cuemby/rqstore/pkg/metrics"
	"github.com/cuemby/rqstore/pkg/types"
	"github.com/google/uuid"
)

// BumpInstaqlVersion increments the version of the (session, query)
// identity, creating it at version 1 if absent, and always clears
// stale?. It returns the new version.
func (s *Store) BumpInstaqlVersion(ctx context.Context, sessionID uuid.UUID, query types.QueryKey, returnType types.ReturnType) (int64, error) {
	identity := instaqlIdentity(sessionID.String(), string(query))
	var version int64

	bump := entitystore.Fn(func(db *entitystore.Database) ([]entitystore.Op, error) {
		if ent, ok := db.Entity(entitystore.ByUnique(entitystore.AttrInstaqlIdentity, identity)); ok {
			v, _ := ent.Get(entitystore.AttrInstaqlVersion)
			version = v.(int64) + 1
		} else {
			version = 1
		}
		op := entitystore.Upsert(entitystore.AttrInstaqlIdentity, identity, map[entitystore.Attr]any{
			entitystore.AttrInstaqlSessionID:  sessionID.String(),
			entitystore.AttrInstaqlQuery:      query,
			entitystore.AttrInstaqlVersion:    version,
			entitystore.AttrInstaqlStale:      false,
			entitystore.AttrInstaqlReturnType: returnType,
		})
		return []entitystore.Op{op}, nil
	})

	if _, err := s.db.Transact(ctx, "bump-instaql-version", bump); err != nil {
		return 0, err
	}
	metrics.TransactionsTotal.WithLabelValues("bump-instaql-version").Inc()
	return version, nil
}

// AddInstaqlQuery retracts any Subscription for (sessionID, query) left
// behind by a superseded version, sweeps orphaned DatalogQueries, and
// records resultHash on the InstaqlQuery identity if it still exists. It
// reports resultChanged, true iff the stored hash differs from
// resultHash or both are nil (forcing a send on first evaluation).
func (s *Store) AddInstaqlQuery(ctx context.Context, sessionID uuid.UUID, query types.QueryKey, v int64, resultHash *string) (bool, error) {
	identity := instaqlIdentity(sessionID.String(), string(query))
	var priorHash *string
	var resultChanged bool

	retractStragglers := entitystore.Fn(func(db *entitystore.Database) ([]entitystore.Op, error) {
		if ent, ok := db.Entity(entitystore.ByUnique(entitystore.AttrInstaqlIdentity, identity)); ok {
			if h, ok := ent.Get(entitystore.AttrInstaqlHash); ok && h != nil {
				priorHash = h.(*string)
			}
		}

		var ops []entitystore.Op
		for _, eid := range db.Find(entitystore.AttrSubInstaql, string(query)) {
			subEnt, ok := db.Entity(entitystore.ByID(eid))
			if !ok {
				continue
			}
			subSession, _ := subEnt.Get(entitystore.AttrSubSessionID)
			if subSession != sessionID.String() {
				continue
			}
			subV, _ := subEnt.Get(entitystore.AttrSubVersion)
			if subV.(int64) < v {
				ops = append(ops, entitystore.RetractEntity(eid))
			}
		}
		return ops, nil
	})

	sweep := entitystore.Fn(func(db *entitystore.Database) ([]entitystore.Op, error) {
		return sweepOrphanDatalog(db), nil
	})

	setHash := entitystore.Fn(func(db *entitystore.Database) ([]entitystore.Op, error) {
		resultChanged = !stringPtrEqual(priorHash, resultHash) || (priorHash == nil && resultHash == nil)

		if _, ok := db.Entity(entitystore.ByUnique(entitystore.AttrInstaqlIdentity, identity)); !ok {
			return nil, nil
		}
		return []entitystore.Op{
			entitystore.Upsert(entitystore.AttrInstaqlIdentity, identity, map[entitystore.Attr]any{
				entitystore.AttrInstaqlHash: resultHash,
			}),
		}, nil
	})

	res, err := s.db.Transact(ctx, "add-instaql-query", retractStragglers, sweep, setHash)
	if err != nil {
		return false, err
	}
	if swept := len(scanDatalogQueryEIDs(res.Before)) - len(scanDatalogQueryEIDs(res.After)); swept > 0 {
		metrics.OrphanDatalogQueriesSweptTotal.Add(float64(swept))
	}
	metrics.TransactionsTotal.WithLabelValues("add-instaql-query").Inc()
	return resultChanged, nil
}

// RemoveQuery retracts the InstaqlQuery identity, every Subscription
// matching (sessionID, query), and sweeps any DatalogQuery left orphaned
// as a result.
func (s *Store) RemoveQuery(ctx context.Context, sessionID uuid.UUID, query types.QueryKey) error {
	identity := instaqlIdentity(sessionID.String(), string(query))

	retract := entitystore.Fn(func(db *entitystore.Database) ([]entitystore.Op, error) {
		var ops []entitystore.Op
		if ent, ok := db.Entity(entitystore.ByUnique(entitystore.AttrInstaqlIdentity, identity)); ok {
			ops = append(ops, entitystore.RetractEntity(ent.EID))
		}
		for _, eid := range db.Find(entitystore.AttrSubInstaql, string(query)) {
			subEnt, ok := db.Entity(entitystore.ByID(eid))
			if !ok {
				continue
			}
			if subSession, _ := subEnt.Get(entitystore.AttrSubSessionID); subSession == sessionID.String() {
				ops = append(ops, entitystore.RetractEntity(eid))
			}
		}
		return ops, nil
	})

	sweep := entitystore.Fn(func(db *entitystore.Database) ([]entitystore.Op, error) {
		return sweepOrphanDatalog(db), nil
	})

	if _, err := s.db.Transact(ctx, "remove-query", retract, sweep); err != nil {
		return err
	}
	metrics.TransactionsTotal.WithLabelValues("remove-query").Inc()
	return nil
}

// GetStaleInstaqlQueries returns the InstaqlQuery records for sessionID
// whose stale? flag is set, the poll/notify read path the gateway uses
// after MarkStaleTopics reports this session as affected.
func (s *Store) GetStaleInstaqlQueries(sessionID uuid.UUID) []types.InstaqlQuery {
	db := s.db.Snapshot()
	var out []types.InstaqlQuery
	for _, eid := range db.Find(entitystore.AttrInstaqlSessionID, sessionID.String()) {
		ent, ok := db.Entity(entitystore.ByID(eid))
		if !ok {
			continue
		}
		stale, _ := ent.Get(entitystore.AttrInstaqlStale)
		if stale != true {
			continue
		}
		out = append(out, instaqlEntityToType(ent))
	}
	return out
}

// GetInstaqlQuery returns the current record for (sessionID, query),
// regardless of its stale? flag.
func (s *Store) GetInstaqlQuery(sessionID uuid.UUID, query types.QueryKey) (types.InstaqlQuery, bool) {
	identity := instaqlIdentity(sessionID.String(), string(query))
	ent, ok := s.db.Snapshot().Entity(entitystore.ByUnique(entitystore.AttrInstaqlIdentity, identity))
	if !ok {
		return types.InstaqlQuery{}, false
	}
	return instaqlEntityToType(ent), true
}

// ListSubscriptions returns every Subscription edge belonging to
// sessionID, the dependency graph a caller inspects to see which datalog
// queries a session's instaql queries currently rest on.
func (s *Store) ListSubscriptions(sessionID uuid.UUID) []types.Subscription {
	db := s.db.Snapshot()
	var out []types.Subscription
	for _, eid := range db.Find(entitystore.AttrSubSessionID, sessionID.String()) {
		ent, ok := db.Entity(entitystore.ByID(eid))
		if !ok {
			continue
		}
		out = append(out, subscriptionEntityToType(db, ent))
	}
	return out
}

func subscriptionEntityToType(db *entitystore.Database, ent entitystore.Entity) types.Subscription {
	var sub types.Subscription
	if v, ok := ent.Get(entitystore.AttrSubAppID); ok {
		sub.AppID, _ = uuid.Parse(v.(string))
	}
	if v, ok := ent.Get(entitystore.AttrSubSessionID); ok {
		sub.SessionID, _ = uuid.Parse(v.(string))
	}
	if v, ok := ent.Get(entitystore.AttrSubInstaql); ok {
		sub.InstaqlQuery = v.(types.QueryKey)
	}
	if v, ok := ent.Get(entitystore.AttrSubVersion); ok {
		sub.V = v.(int64)
	}
	if v, ok := ent.Get(entitystore.AttrSubDatalogRef); ok {
		if dqEnt, ok := db.Entity(entitystore.ByID(v.(entitystore.EID))); ok {
			if q, ok := dqEnt.Get(entitystore.AttrDatalogQuery); ok {
				sub.DatalogQuery = q.(types.QueryKey)
			}
		}
	}
	return sub
}

func instaqlEntityToType(ent entitystore.Entity) types.InstaqlQuery {
	var iq types.InstaqlQuery
	if v, ok := ent.Get(entitystore.AttrInstaqlSessionID); ok {
		iq.SessionID, _ = uuid.Parse(v.(string))
	}
	if v, ok := ent.Get(entitystore.AttrInstaqlQuery); ok {
		iq.Query = v.(types.QueryKey)
	}
	if v, ok := ent.Get(entitystore.AttrInstaqlStale); ok {
		iq.Stale = v.(bool)
	}
	if v, ok := ent.Get(entitystore.AttrInstaqlVersion); ok {
		iq.Version = v.(int64)
	}
	if v, ok := ent.Get(entitystore.AttrInstaqlHash); ok && v != nil {
		iq.Hash = v.(*string)
	}
	if v, ok := ent.Get(entitystore.AttrInstaqlReturnType); ok {
		iq.ReturnType = v.(types.ReturnType)
	}
	return iq
}

func stringPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// scanDatalogQueryEIDs lists every live DatalogQuery entity id, used to
// diff counts across a before/after pair for the orphan-sweep metric.
func scanDatalogQueryEIDs(db *entitystore.Database) []entitystore.EID {
	return db.Scan(entitystore.AttrDatalogAppID)
}
