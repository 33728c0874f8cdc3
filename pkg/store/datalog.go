package store

import (
	"context"
	"fmt"

	"github.com/cuemby/rqstore/pkg/entitystore"
	"github.com/cuemby/rqstore/pkg/metrics"
	"github.com/cuemby/rqstore/pkg/types"
	"github.com/google/uuid"
)

// SwapDatalogCacheDelay is the at-most-one-evaluation-per-key
// single-flight primitive: if the DatalogQuery identity already has a
// delayed_call installed, that one is returned; otherwise newDelay is
// installed and returned. Concurrent callers racing on the same
// (appID, query) all observe whichever delay won the store's write
// lock first.
func (s *Store) SwapDatalogCacheDelay(ctx context.Context, appID uuid.UUID, query types.QueryKey, newDelay any) (any, error) {
	identity := datalogIdentity(appID.String(), string(query))
	var effective any

	swap := entitystore.Fn(func(db *entitystore.Database) ([]entitystore.Op, error) {
		if ent, ok := db.Entity(entitystore.ByUnique(entitystore.AttrDatalogIdentity, identity)); ok {
			if d, ok := ent.Get(entitystore.AttrDatalogDelay); ok && d != nil {
				effective = d
				return nil, nil
			}
		}
		effective = newDelay
		return []entitystore.Op{
			entitystore.Upsert(entitystore.AttrDatalogIdentity, identity, map[entitystore.Attr]any{
				entitystore.AttrDatalogAppID: appID.String(),
				entitystore.AttrDatalogQuery: query,
				entitystore.AttrDatalogDelay: newDelay,
			}),
		}, nil
	})

	if _, err := s.db.Transact(ctx, "swap-datalog-cache-delay", swap); err != nil {
		return nil, err
	}
	return effective, nil
}

// RecordDatalogQueryStart attaches coarseTopics to the DatalogQuery
// identity (creating it if absent, or filling in topics if it exists
// without any), then inserts a Subscription edge from
// (sessionID, instaqlQuery) at version v to that DatalogQuery entity.
func (s *Store) RecordDatalogQueryStart(ctx context.Context, appID uuid.UUID, sessionID uuid.UUID, instaqlQuery types.QueryKey, v int64, datalogQuery types.QueryKey, coarseTopics []types.Topic) error {
	identity := datalogIdentity(appID.String(), string(datalogQuery))

	attachTopics := entitystore.Fn(func(db *entitystore.Database) ([]entitystore.Op, error) {
		if ent, ok := db.Entity(entitystore.ByUnique(entitystore.AttrDatalogIdentity, identity)); ok {
			if topics, ok := ent.Get(entitystore.AttrDatalogTopics); ok && topics != nil {
				return nil, nil
			}
		}
		return []entitystore.Op{
			entitystore.Upsert(entitystore.AttrDatalogIdentity, identity, map[entitystore.Attr]any{
				entitystore.AttrDatalogAppID: appID.String(),
				entitystore.AttrDatalogQuery: datalogQuery,
				entitystore.AttrDatalogTopics: coarseTopics,
			}),
		}, nil
	})

	addSubscription := entitystore.Fn(func(db *entitystore.Database) ([]entitystore.Op, error) {
		ent, ok := db.Entity(entitystore.ByUnique(entitystore.AttrDatalogIdentity, identity))
		if !ok {
			return nil, fmt.Errorf("store: datalog query %q vanished mid-transaction", identity)
		}
		return []entitystore.Op{
			entitystore.Create(map[entitystore.Attr]any{
				entitystore.AttrSubAppID:      appID.String(),
				entitystore.AttrSubSessionID:  sessionID.String(),
				entitystore.AttrSubInstaql:    instaqlQuery,
				entitystore.AttrSubDatalogRef: ent.EID,
				entitystore.AttrSubVersion:    v,
			}),
		}, nil
	})

	if _, err := s.db.Transact(ctx, "record-datalog-query-start", attachTopics, addSubscription); err != nil {
		return err
	}
	metrics.TransactionsTotal.WithLabelValues("record-datalog-query-start").Inc()
	return nil
}

// RecordDatalogQueryFinish replaces the DatalogQuery's topics with the
// refined set computed from its actual result.
func (s *Store) RecordDatalogQueryFinish(ctx context.Context, appID uuid.UUID, datalogQuery types.QueryKey, refinedTopics []types.Topic) error {
	identity := datalogIdentity(appID.String(), string(datalogQuery))
	op := entitystore.Upsert(entitystore.AttrDatalogIdentity, identity, map[entitystore.Attr]any{
		entitystore.AttrDatalogTopics: refinedTopics,
	})
	_, err := s.db.Transact(ctx, "record-datalog-query-finish", op)
	return err
}

// GetDatalogQuery returns the cached record for (appID, query), or false
// if nothing has started evaluating it yet.
func (s *Store) GetDatalogQuery(appID uuid.UUID, query types.QueryKey) (types.DatalogQuery, bool) {
	identity := datalogIdentity(appID.String(), string(query))
	ent, ok := s.db.Snapshot().Entity(entitystore.ByUnique(entitystore.AttrDatalogIdentity, identity))
	if !ok {
		return types.DatalogQuery{}, false
	}
	return datalogEntityToType(ent), true
}

func datalogEntityToType(ent entitystore.Entity) types.DatalogQuery {
	var dq types.DatalogQuery
	if v, ok := ent.Get(entitystore.AttrDatalogAppID); ok {
		dq.AppID, _ = uuid.Parse(v.(string))
	}
	if v, ok := ent.Get(entitystore.AttrDatalogQuery); ok {
		dq.Query = v.(types.QueryKey)
	}
	if v, ok := ent.Get(entitystore.AttrDatalogDelay); ok {
		dq.Delay = v
	}
	if v, ok := ent.Get(entitystore.AttrDatalogTopics); ok && v != nil {
		dq.Topics, _ = v.([]types.Topic)
	}
	return dq
}
