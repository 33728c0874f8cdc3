package main

import (
	"context"
	"fmt"

	"github.com/cuemby/rqstore/pkg/log"
	"github.com/cuemby/rqstore/pkg/store"
	"github.com/cuemby/rqstore/pkg/types"
	"github.com/google/uuid"
)

// namespace gives scenario files stable, human-readable ids ("S1", "A")
// a deterministic uuid.UUID, so a replay is reproducible across runs.
var namespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

func nameToUUID(name string) uuid.UUID {
	return uuid.NewMD5(namespace, []byte(name))
}

// loggingSocket discards event frames after logging them, standing in
// for a real websocket connection during a scenario replay.
type loggingSocket struct {
	sessionID string
}

func (w loggingSocket) Write(p []byte) (int, error) {
	log.Logger.Info().Str("session_id", w.sessionID).Str("frame", string(p)).Msg("socket frame written")
	return len(p), nil
}

func replayScenario(ctx context.Context, sc *Scenario) error {
	s := store.New()
	defer s.Close()

	for i, step := range sc.Steps {
		if err := runStep(ctx, s, step); err != nil {
			return fmt.Errorf("step %d (%s): %w", i, step.Op, err)
		}
	}

	stats := s.Stats()
	fmt.Printf("final stats: sessions=%d instaql_stale=%d instaql_fresh=%d datalog=%d subscriptions=%d\n",
		stats.Sessions, stats.InstaqlQueriesStale, stats.InstaqlQueriesFresh, stats.DatalogQueries, stats.Subscriptions)
	return nil
}

func runStep(ctx context.Context, s *store.Store, step Step) error {
	switch step.Op {
	case "add_socket":
		sessionID := nameToUUID(step.Session)
		return s.AddSocket(ctx, sessionID, loggingSocket{sessionID: step.Session})

	case "set_session_props":
		sessionID := nameToUUID(step.Session)
		appID := nameToUUID(step.App)
		return s.SetSessionProps(ctx, sessionID, &types.Auth{App: appID}, nil, nil)

	case "bump_instaql_version":
		sessionID := nameToUUID(step.Session)
		v, err := s.BumpInstaqlVersion(ctx, sessionID, types.QueryKey(step.Query), parseReturnType(step.ReturnType))
		if err != nil {
			return err
		}
		fmt.Printf("bump_instaql_version(%s, %s) -> %d\n", step.Session, step.Query, v)
		return nil

	case "record_datalog_query_start":
		appID := nameToUUID(step.App)
		sessionID := nameToUUID(step.Session)
		topics, err := decodeTopics(step.Topics)
		if err != nil {
			return err
		}
		v, _ := currentInstaqlVersion(s, sessionID, types.QueryKey(step.InstaqlQuery))
		return s.RecordDatalogQueryStart(ctx, appID, sessionID, types.QueryKey(step.InstaqlQuery), v, types.QueryKey(step.DatalogQuery), topics)

	case "record_datalog_query_finish":
		appID := nameToUUID(step.App)
		topics, err := decodeTopics(step.Topics)
		if err != nil {
			return err
		}
		return s.RecordDatalogQueryFinish(ctx, appID, types.QueryKey(step.DatalogQuery), topics)

	case "add_instaql_query":
		sessionID := nameToUUID(step.Session)
		v, _ := currentInstaqlVersion(s, sessionID, types.QueryKey(step.Query))
		changed, err := s.AddInstaqlQuery(ctx, sessionID, types.QueryKey(step.Query), v, step.Hash)
		if err != nil {
			return err
		}
		fmt.Printf("add_instaql_query(%s, %s) -> result_changed=%v\n", step.Session, step.Query, changed)
		return nil

	case "mark_stale_topics":
		appID := nameToUUID(step.App)
		topics, err := decodeTopics(step.Topics)
		if err != nil {
			return err
		}
		affected, err := s.MarkStaleTopics(ctx, appID, step.TxID, topics)
		if err != nil {
			return err
		}
		fmt.Printf("mark_stale_topics(%s, %d) -> %d session(s) affected\n", step.App, step.TxID, len(affected))
		return nil

	case "remove_query":
		sessionID := nameToUUID(step.Session)
		return s.RemoveQuery(ctx, sessionID, types.QueryKey(step.Query))

	case "remove_session":
		sessionID := nameToUUID(step.Session)
		return s.RemoveSession(ctx, sessionID)

	default:
		return fmt.Errorf("unrecognized step op %q", step.Op)
	}
}

// currentInstaqlVersion reads back the version BumpInstaqlVersion most
// recently assigned, for steps that need to reference it without a
// scenario file repeating the number at every call site.
func currentInstaqlVersion(s *store.Store, sessionID uuid.UUID, query types.QueryKey) (int64, bool) {
	iq, ok := s.GetInstaqlQuery(sessionID, query)
	if !ok {
		return 1, false
	}
	return iq.Version, true
}
