package store_test

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	rqstore "github.com/cuemby/rqstore/pkg/store"
	"github.com/cuemby/rqstore/pkg/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func titleTopic(entity string) []types.Topic {
	return []types.Topic{
		{types.Keyword("ea"), types.Set(entity), types.Keyword("title")},
	}
}

func TestScenario_CreateRefreshCycle(t *testing.T) {
	ctx := context.Background()
	s := rqstore.New()

	appA := uuid.New()
	sessionS1 := uuid.New()
	query := types.QueryKey("todos")
	datalogQuery := types.QueryKey("DQ1")

	var buf bytes.Buffer
	require.NoError(t, s.AddSocket(ctx, sessionS1, &buf))
	require.NoError(t, s.SetSessionProps(ctx, sessionS1, &types.Auth{App: appA}, &types.Creator{Email: "owner@example.com"}, nil))

	v, err := s.BumpInstaqlVersion(ctx, sessionS1, query, types.ReturnTypeJoinRows)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	require.NoError(t, s.RecordDatalogQueryStart(ctx, appA, sessionS1, query, v, datalogQuery, titleTopic("e1")))
	require.NoError(t, s.RecordDatalogQueryFinish(ctx, appA, datalogQuery, titleTopic("e1")))

	changed, err := s.AddInstaqlQuery(ctx, sessionS1, query, v, strPtr("h1"))
	require.NoError(t, err)
	assert.True(t, changed, "first evaluation must always report changed")

	affected, err := s.MarkStaleTopics(ctx, appA, 10, titleTopic("e1"))
	require.NoError(t, err)
	require.Len(t, affected, 1)
	assert.Equal(t, sessionS1, affected[0])

	stale := s.GetStaleInstaqlQueries(sessionS1)
	require.Len(t, stale, 1)
	assert.True(t, stale[0].Stale)
}

func TestScenario_TypedReaders(t *testing.T) {
	ctx := context.Background()
	s := rqstore.New()

	appA := uuid.New()
	sessionS1 := uuid.New()
	query := types.QueryKey("todos")
	datalogQuery := types.QueryKey("DQ1")

	require.NoError(t, s.SetSessionProps(ctx, sessionS1, &types.Auth{App: appA}, &types.Creator{Email: "owner@example.com"}, nil))
	v, err := s.BumpInstaqlVersion(ctx, sessionS1, query, types.ReturnTypeJoinRows)
	require.NoError(t, err)
	require.NoError(t, s.RecordDatalogQueryStart(ctx, appA, sessionS1, query, v, datalogQuery, titleTopic("e1")))

	sess, ok := s.GetSession(sessionS1)
	require.True(t, ok)
	assert.Equal(t, sessionS1, sess.ID)
	assert.Equal(t, appA, sess.Auth.App)

	dq, ok := s.GetDatalogQuery(appA, datalogQuery)
	require.True(t, ok)
	assert.Equal(t, datalogQuery, dq.Query)
	assert.Equal(t, titleTopic("e1"), dq.Topics)

	subs := s.ListSubscriptions(sessionS1)
	require.Len(t, subs, 1)
	assert.Equal(t, query, subs[0].InstaqlQuery)
	assert.Equal(t, datalogQuery, subs[0].DatalogQuery)
	assert.Equal(t, v, subs[0].V)

	_, ok = s.GetSession(uuid.New())
	assert.False(t, ok)
}

func TestScenario_StaleSubscriptionEviction(t *testing.T) {
	ctx := context.Background()
	s := rqstore.New()

	appA := uuid.New()
	sessionS1 := uuid.New()
	query := types.QueryKey("todos")
	datalogQuery := types.QueryKey("DQ1")

	v1, err := s.BumpInstaqlVersion(ctx, sessionS1, query, types.ReturnTypeJoinRows)
	require.NoError(t, err)
	require.NoError(t, s.RecordDatalogQueryStart(ctx, appA, sessionS1, query, v1, datalogQuery, titleTopic("e1")))
	require.NoError(t, s.RecordDatalogQueryFinish(ctx, appA, datalogQuery, titleTopic("e1")))
	_, err = s.AddInstaqlQuery(ctx, sessionS1, query, v1, strPtr("h1"))
	require.NoError(t, err)

	v2, err := s.BumpInstaqlVersion(ctx, sessionS1, query, types.ReturnTypeJoinRows)
	require.NoError(t, err)
	assert.Equal(t, v1+1, v2)

	require.NoError(t, s.RecordDatalogQueryStart(ctx, appA, sessionS1, query, v2, datalogQuery, titleTopic("e1")))

	changed, err := s.AddInstaqlQuery(ctx, sessionS1, query, v2, strPtr("h1"))
	require.NoError(t, err)
	assert.False(t, changed, "identical hash must report unchanged")
}

func TestScenario_SessionTeardownCascade(t *testing.T) {
	ctx := context.Background()
	s := rqstore.New()

	appA := uuid.New()
	s1 := uuid.New()
	s2 := uuid.New()
	query := types.QueryKey("todos")
	datalogQuery := types.QueryKey("DQ-shared")

	for _, sess := range []uuid.UUID{s1, s2} {
		require.NoError(t, s.SetSessionProps(ctx, sess, &types.Auth{App: appA}, nil, nil))
		v, err := s.BumpInstaqlVersion(ctx, sess, query, types.ReturnTypeJoinRows)
		require.NoError(t, err)
		require.NoError(t, s.RecordDatalogQueryStart(ctx, appA, sess, query, v, datalogQuery, titleTopic("e1")))
	}

	require.NoError(t, s.RemoveSession(ctx, s1))
	assert.Equal(t, 1, s.Stats().DatalogQueries, "DQ must survive while S2 still references it")

	require.NoError(t, s.RemoveSession(ctx, s2))
	assert.Equal(t, 0, s.Stats().DatalogQueries, "DQ must be swept once its last subscriber is gone")
}

func TestLaw_IdempotentRemoval(t *testing.T) {
	ctx := context.Background()
	s := rqstore.New()
	sessionID := uuid.New()

	require.NoError(t, s.SetSessionProps(ctx, sessionID, &types.Auth{}, nil, nil))
	require.NoError(t, s.RemoveSession(ctx, sessionID))
	statsAfterFirst := s.Stats()

	require.NoError(t, s.RemoveSession(ctx, sessionID))
	statsAfterSecond := s.Stats()

	// SampledAt is the sampling time, not store state.
	statsAfterFirst.SampledAt, statsAfterSecond.SampledAt = time.Time{}, time.Time{}
	assert.Equal(t, statsAfterFirst, statsAfterSecond)
}

func TestLaw_SingleFlight(t *testing.T) {
	ctx := context.Background()
	s := rqstore.New()
	appA := uuid.New()
	query := types.QueryKey("q")

	var wg sync.WaitGroup
	results := make([]any, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		d, err := s.SwapDatalogCacheDelay(ctx, appA, query, "d1")
		require.NoError(t, err)
		results[0] = d
	}()
	go func() {
		defer wg.Done()
		d, err := s.SwapDatalogCacheDelay(ctx, appA, query, "d2")
		require.NoError(t, err)
		results[1] = d
	}()
	wg.Wait()

	assert.Equal(t, results[0], results[1], "both callers must observe the delay that won the race")
}

func TestLaw_VersionMonotonicity(t *testing.T) {
	ctx := context.Background()
	s := rqstore.New()
	sessionID := uuid.New()
	query := types.QueryKey("q")

	var last int64
	for i := 0; i < 5; i++ {
		v, err := s.BumpInstaqlVersion(ctx, sessionID, query, types.ReturnTypeTree)
		require.NoError(t, err)
		assert.Greater(t, v, last)
		last = v
	}
}

func TestScenario_SocketSendErrorPath(t *testing.T) {
	ctx := context.Background()
	s := rqstore.New()
	sessionID := uuid.New()

	require.NoError(t, s.SetSessionProps(ctx, sessionID, &types.Auth{}, nil, nil))

	err := s.SendEvent(ctx, sessionID, map[string]any{"op": "patch"})
	require.Error(t, err)
	var missing *rqstore.SocketMissing
	require.ErrorAs(t, err, &missing)

	assert.NotPanics(t, func() { s.TrySendEvent(ctx, sessionID, map[string]any{"op": "patch"}) })
}

func TestMarkStaleTopics_TxIDIsMonotonicUnderOutOfOrderCalls(t *testing.T) {
	ctx := context.Background()
	s := rqstore.New()
	appA := uuid.New()

	_, err := s.MarkStaleTopics(ctx, appA, 5, titleTopic("e1"))
	require.NoError(t, err)
	_, err = s.MarkStaleTopics(ctx, appA, 3, titleTopic("e1"))
	require.NoError(t, err)

	meta, ok := s.ProcessedTxID(appA)
	require.True(t, ok)
	assert.Equal(t, int64(5), meta.ProcessedTxID)
	assert.Equal(t, appA, meta.AppID)
}
