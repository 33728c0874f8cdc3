package store

import (
	"context"

	"github.com/cuemby/rqstore/pkg/entitystore"
	"github.com/cuemby/rqstore/pkg/metrics"
	"github.com/cuemby/rqstore/pkg/topic"
	"github.com/cuemby/rqstore/pkg/types"
	"github.com/google/uuid"
)

// MarkStaleTopics is the invalidator's entry point from the mutation
// pipeline. It matches ivTopics against every cached DatalogQuery for
// appID, bumps processed_tx_id to max(current, txID), marks every
// InstaqlQuery reached through a matching Subscription stale, retracts
// the matched DatalogQuery entities, and returns the distinct session
// ids whose queries were affected.
//
// Subscription and session resolution happen against the
// pre-transaction snapshot, since the DatalogQuery entities those
// references target are retracted later in the same transaction.
func (s *Store) MarkStaleTopics(ctx context.Context, appID uuid.UUID, txID int64, ivTopics []types.Topic) ([]uuid.UUID, error) {
	ctx, span := s.tracer.Start(ctx, "store.MarkStaleTopics")
	defer span.End()
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.InvalidationDuration)

	var affected []uuid.UUID

	invalidate := entitystore.Fn(func(db *entitystore.Database) ([]entitystore.Op, error) {
		var ops []entitystore.Op

		matched := map[entitystore.EID]bool{}
		for _, eid := range db.Find(entitystore.AttrDatalogAppID, appID.String()) {
			ent, ok := db.Entity(entitystore.ByID(eid))
			if !ok {
				continue
			}
			raw, _ := ent.Get(entitystore.AttrDatalogTopics)
			dqTopics, _ := raw.([]types.Topic)
			if topic.Intersects(ivTopics, dqTopics) {
				matched[eid] = true
			}
		}

		newTxID := txID
		if ent, ok := db.Entity(entitystore.ByUnique(entitystore.AttrTxMetaAppID, appID.String())); ok {
			if cur, ok := ent.Get(entitystore.AttrTxMetaProcessedTxID); ok {
				if c, ok := cur.(int64); ok && c > newTxID {
					newTxID = c
				}
			}
		}
		ops = append(ops, entitystore.Upsert(entitystore.AttrTxMetaAppID, appID.String(), map[entitystore.Attr]any{
			entitystore.AttrTxMetaProcessedTxID: newTxID,
		}))

		seenSessions := map[string]bool{}
		markedStale := map[string]bool{}
		for dqEID := range matched {
			for _, subEID := range db.Find(entitystore.AttrSubDatalogRef, dqEID) {
				subEnt, ok := db.Entity(entitystore.ByID(subEID))
				if !ok {
					continue
				}
				sessionIDStr, _ := subEnt.Get(entitystore.AttrSubSessionID)
				instaqlQuery, _ := subEnt.Get(entitystore.AttrSubInstaql)
				ss, _ := sessionIDStr.(string)
				iq, _ := instaqlQuery.(types.QueryKey)
				if ss == "" {
					continue
				}
				seenSessions[ss] = true

				identity := instaqlIdentity(ss, string(iq))
				if markedStale[identity] {
					continue
				}
				if _, ok := db.Entity(entitystore.ByUnique(entitystore.AttrInstaqlIdentity, identity)); ok {
					markedStale[identity] = true
					ops = append(ops, entitystore.Upsert(entitystore.AttrInstaqlIdentity, identity, map[entitystore.Attr]any{
						entitystore.AttrInstaqlStale: true,
					}))
				}
			}
		}

		for eid := range matched {
			ops = append(ops, entitystore.RetractEntity(eid))
		}

		for idStr := range seenSessions {
			if parsed, err := uuid.Parse(idStr); err == nil {
				affected = append(affected, parsed)
			}
		}

		return ops, nil
	})

	if _, err := s.db.Transact(ctx, "mark-stale-topics", invalidate); err != nil {
		return nil, err
	}
	metrics.InvalidationsTotal.Inc()
	metrics.SessionsAffectedPerInvalidation.Observe(float64(len(affected)))
	return affected, nil
}

// ProcessedTxID returns the TxMeta record tracking the highest mutation
// tx_id applied for appID, or false if no mutation has touched it yet.
func (s *Store) ProcessedTxID(appID uuid.UUID) (types.TxMeta, bool) {
	ent, ok := s.db.Snapshot().Entity(entitystore.ByUnique(entitystore.AttrTxMetaAppID, appID.String()))
	if !ok {
		return types.TxMeta{}, false
	}
	return txMetaEntityToType(ent), true
}

func txMetaEntityToType(ent entitystore.Entity) types.TxMeta {
	var meta types.TxMeta
	if v, ok := ent.Get(entitystore.AttrTxMetaAppID); ok {
		meta.AppID, _ = uuid.Parse(v.(string))
	}
	if v, ok := ent.Get(entitystore.AttrTxMetaProcessedTxID); ok {
		meta.ProcessedTxID = v.(int64)
	}
	return meta
}
