package entitystore

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cuemby/rqstore/pkg/log"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// TxResult carries the before/after snapshots of a committed transaction,
// letting the invalidator diff db_before against db_after without racing
// a concurrent writer.
type TxResult struct {
	Before *Database
	After  *Database
}

// Store is the single in-process owner of the entity
// store's current Database snapshot. Readers call Snapshot and never
// block; writers serialize on mu and publish their result by swapping
// current, so a reader that already loaded a snapshot keeps observing it
// unchanged for as long as it holds the reference.
type Store struct {
	mu      sync.Mutex
	current atomic.Pointer[Database]
	tracer  trace.Tracer
	logger  zerolog.Logger
}

// New creates an empty Store.
func New() *Store {
	s := &Store{
		tracer: otel.Tracer("rqstore/entitystore"),
		logger: log.WithComponent("entitystore"),
	}
	s.current.Store(newDatabase())
	return s
}

// Snapshot returns the current, immutable Database. It never blocks on a
// concurrent Transact.
func (s *Store) Snapshot() *Database {
	return s.current.Load()
}

// Transact serializes op against any other writer, applies each op in
// order against a staging buffer cloned from the current snapshot, and
// publishes the result atomically. tag identifies the caller's operation
// for tracing and metrics (e.g. "add-instaql-query", "mark-stale-topics").
//
// If any op returns an error the whole call is abandoned: no partial
// writes reach the published snapshot.
func (s *Store) Transact(ctx context.Context, tag string, ops ...Op) (TxResult, error) {
	_, span := s.tracer.Start(ctx, "entitystore.Transact", trace.WithAttributes(
		attribute.String("tag", tag),
		attribute.Int("op_count", len(ops)),
	))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.current.Load()
	tx := newTxn(before)

	for i, op := range ops {
		if err := op.apply(tx); err != nil {
			span.RecordError(err)
			return TxResult{}, fmt.Errorf("entitystore: transact %q op %d: %w", tag, i, err)
		}
	}

	after := &Database{
		entities: tx.entities,
		ave:      tx.aveTxn.Commit(),
		unique:   tx.uniqueTxn.Commit(),
		nextEID:  tx.nextEID,
	}
	s.current.Store(after)

	s.logger.Debug().Str("tag", tag).Int("ops", len(ops)).Int64("next_eid", int64(after.nextEID)).Msg("transaction committed")
	return TxResult{Before: before, After: after}, nil
}
