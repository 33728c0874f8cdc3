package entitystore_test

import (
	"context"
	"testing"

	"github.com/cuemby/rqstore/pkg/entitystore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsert_CreatesThenMerges(t *testing.T) {
	s := entitystore.New()
	ctx := context.Background()

	upsert := entitystore.Upsert(entitystore.AttrSessionID, "sess-1", map[entitystore.Attr]any{
		entitystore.AttrSessionVersions: map[string]string{"instant": "0.1.0"},
	})
	res, err := s.Transact(ctx, "add-session", upsert)
	require.NoError(t, err)
	assert.True(t, upsert.Created)

	ent, ok := res.After.Entity(entitystore.ByUnique(entitystore.AttrSessionID, "sess-1"))
	require.True(t, ok)
	assert.Equal(t, upsert.EID, ent.EID)

	second := entitystore.Upsert(entitystore.AttrSessionID, "sess-1", map[entitystore.Attr]any{
		entitystore.AttrSessionCreator: "user-1",
	})
	res2, err := s.Transact(ctx, "set-creator", second)
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, upsert.EID, second.EID)

	ent2, ok := res2.After.Entity(entitystore.ByID(upsert.EID))
	require.True(t, ok)
	_, hasVersions := ent2.Get(entitystore.AttrSessionVersions)
	assert.True(t, hasVersions, "merge must preserve prior attrs")
	creator, _ := ent2.Get(entitystore.AttrSessionCreator)
	assert.Equal(t, "user-1", creator)
}

func TestRetractEntity_IsIdempotent(t *testing.T) {
	s := entitystore.New()
	ctx := context.Background()

	upsert := entitystore.Upsert(entitystore.AttrSessionID, "sess-2", nil)
	_, err := s.Transact(ctx, "add-session", upsert)
	require.NoError(t, err)

	retract := entitystore.RetractEntity(upsert.EID)
	_, err = s.Transact(ctx, "remove-session", retract)
	require.NoError(t, err)
	assert.True(t, retract.Existed)

	again := entitystore.RetractEntity(upsert.EID)
	res, err := s.Transact(ctx, "remove-session", again)
	require.NoError(t, err)
	assert.False(t, again.Existed)

	_, ok := res.After.Entity(entitystore.ByID(upsert.EID))
	assert.False(t, ok)
}

func TestFind_ReturnsEveryMatchingEntity(t *testing.T) {
	s := entitystore.New()
	ctx := context.Background()
	sessionID := uuid.New().String()

	var eids []entitystore.EID
	for i := 0; i < 3; i++ {
		create := entitystore.Create(map[entitystore.Attr]any{
			entitystore.AttrSubSessionID: sessionID,
			entitystore.AttrSubInstaql:   "query-key",
			entitystore.AttrSubVersion:   int64(i),
		})
		res, err := s.Transact(ctx, "add-subscription", create)
		require.NoError(t, err)
		eids = append(eids, create.EID)
		_ = res
	}

	found := s.Snapshot().Find(entitystore.AttrSubSessionID, sessionID)
	assert.ElementsMatch(t, eids, found)
}

func TestFnOp_ComposesAgainstStagingBuffer(t *testing.T) {
	s := entitystore.New()
	ctx := context.Background()

	upsert := entitystore.Upsert(entitystore.AttrInstaqlIdentity, "sess-1|query-1", map[entitystore.Attr]any{
		entitystore.AttrInstaqlSessionID: "sess-1",
		entitystore.AttrInstaqlQuery:     "query-1",
		entitystore.AttrInstaqlStale:     false,
	})

	markStale := entitystore.Fn(func(db *entitystore.Database) ([]entitystore.Op, error) {
		_, ok := db.Entity(entitystore.ByUnique(entitystore.AttrInstaqlIdentity, "sess-1|query-1"))
		require.True(t, ok, "Fn must observe the upsert applied ahead of it in the same transaction")
		return []entitystore.Op{
			entitystore.Upsert(entitystore.AttrInstaqlIdentity, "sess-1|query-1", map[entitystore.Attr]any{
				entitystore.AttrInstaqlStale: true,
			}),
		}, nil
	})

	res, err := s.Transact(ctx, "add-and-mark-stale", upsert, markStale)
	require.NoError(t, err)

	ent, ok := res.After.Entity(entitystore.ByUnique(entitystore.AttrInstaqlIdentity, "sess-1|query-1"))
	require.True(t, ok)
	stale, _ := ent.Get(entitystore.AttrInstaqlStale)
	assert.Equal(t, true, stale)
}

func TestTransact_RollsBackOnError(t *testing.T) {
	s := entitystore.New()
	ctx := context.Background()

	upsert := entitystore.Upsert(entitystore.AttrSessionID, "sess-3", nil)
	_, err := s.Transact(ctx, "add-session", upsert)
	require.NoError(t, err)

	before := s.Snapshot()

	failing := entitystore.Fn(func(db *entitystore.Database) ([]entitystore.Op, error) {
		return nil, assert.AnError
	})
	_, err = s.Transact(ctx, "failing-op", entitystore.Upsert(entitystore.AttrSessionID, "sess-4", nil), failing)
	require.Error(t, err)

	assert.Same(t, before, s.Snapshot(), "a failed transaction must not publish any partial writes")
}
