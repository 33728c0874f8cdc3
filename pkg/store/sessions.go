package store

import (
	"context"

	"github.com/cuemby/rqstore/pkg/entitystore"
	"github.com/cuemby/rqstore/pkg/metrics"
	"github.com/cuemby/rqstore/pkg/socket"
	"github.com/cuemby/rqstore/pkg/types"
	"github.com/google/uuid"
)

// resolveSession finds the session entity for sessionID against db, or
// returns a *SessionMissing error.
func resolveSession(db *entitystore.Database, sessionID uuid.UUID) (entitystore.Entity, error) {
	ent, ok := db.Entity(entitystore.ByUnique(entitystore.AttrSessionID, sessionID.String()))
	if !ok {
		return entitystore.Entity{}, &SessionMissing{SessionID: sessionID.String()}
	}
	return ent, nil
}

// AddSocket upserts the session, attaching sock; any prior socket is
// overwritten.
func (s *Store) AddSocket(ctx context.Context, sessionID uuid.UUID, sock socket.Socket) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.TransactionDuration, "add-socket")

	op := entitystore.Upsert(entitystore.AttrSessionID, sessionID.String(), map[entitystore.Attr]any{
		entitystore.AttrSessionSocket: sock,
	})
	_, err := s.db.Transact(ctx, "add-socket", op)
	if err != nil {
		return err
	}
	metrics.TransactionsTotal.WithLabelValues("add-socket").Inc()
	return nil
}

// SetSessionProps sets whichever of auth, creator, and versions are
// non-nil on the session, creating the session if it does not yet exist.
func (s *Store) SetSessionProps(ctx context.Context, sessionID uuid.UUID, auth *types.Auth, creator *types.Creator, versions map[string]string) error {
	set := map[entitystore.Attr]any{}
	if auth != nil {
		set[entitystore.AttrSessionAuth] = auth
	}
	if creator != nil {
		set[entitystore.AttrSessionCreator] = creator
	}
	if versions != nil {
		set[entitystore.AttrSessionVersions] = versions
	}
	op := entitystore.Upsert(entitystore.AttrSessionID, sessionID.String(), set)
	_, err := s.db.Transact(ctx, "set-session-props", op)
	if err != nil {
		return err
	}
	metrics.TransactionsTotal.WithLabelValues("set-session-props").Inc()
	return nil
}

// SetAuth sets only the session's auth context.
func (s *Store) SetAuth(ctx context.Context, sessionID uuid.UUID, auth types.Auth) error {
	return s.SetSessionProps(ctx, sessionID, &auth, nil, nil)
}

// SetCreator sets only the session's creator record.
func (s *Store) SetCreator(ctx context.Context, sessionID uuid.UUID, creator types.Creator) error {
	return s.SetSessionProps(ctx, sessionID, nil, &creator, nil)
}

// UpsertDatalogLoader attaches the datalog evaluator's request-coalescing
// loader handle to the session, creating the session if absent.
func (s *Store) UpsertDatalogLoader(ctx context.Context, sessionID uuid.UUID, loader any) error {
	op := entitystore.Upsert(entitystore.AttrSessionID, sessionID.String(), map[entitystore.Attr]any{
		entitystore.AttrSessionDatalogLoader: loader,
	})
	_, err := s.db.Transact(ctx, "upsert-datalog-loader", op)
	return err
}

// GetSession returns the typed record for sessionID, or false if no such
// session exists.
func (s *Store) GetSession(sessionID uuid.UUID) (types.Session, bool) {
	ent, ok := s.db.Snapshot().Entity(entitystore.ByUnique(entitystore.AttrSessionID, sessionID.String()))
	if !ok {
		return types.Session{}, false
	}
	return sessionEntityToType(ent), true
}

func sessionEntityToType(ent entitystore.Entity) types.Session {
	sess := types.Session{}
	if v, ok := ent.Get(entitystore.AttrSessionID); ok {
		sess.ID, _ = uuid.Parse(v.(string))
	}
	if v, ok := ent.Get(entitystore.AttrSessionSocket); ok {
		sess.Socket = v
	}
	if v, ok := ent.Get(entitystore.AttrSessionAuth); ok && v != nil {
		sess.Auth = v.(*types.Auth)
	}
	if v, ok := ent.Get(entitystore.AttrSessionCreator); ok && v != nil {
		sess.Creator = v.(*types.Creator)
	}
	if v, ok := ent.Get(entitystore.AttrSessionVersions); ok && v != nil {
		sess.Versions = v.(map[string]string)
	}
	if v, ok := ent.Get(entitystore.AttrSessionDatalogLoader); ok {
		sess.DatalogLoader = v
	}
	return sess
}

// RemoveSession atomically retracts the session, every InstaqlQuery and
// Subscription it owns, and sweeps any DatalogQuery that loses its last
// Subscription as a result. Removing a session that does not exist is a
// no-op.
func (s *Store) RemoveSession(ctx context.Context, sessionID uuid.UUID) error {
	ctx, span := s.tracer.Start(ctx, "store.RemoveSession")
	defer span.End()

	cascade := entitystore.Fn(func(db *entitystore.Database) ([]entitystore.Op, error) {
		ent, ok := db.Entity(entitystore.ByUnique(entitystore.AttrSessionID, sessionID.String()))
		if !ok {
			return nil, nil
		}

		var ops []entitystore.Op
		ops = append(ops, entitystore.RetractEntity(ent.EID))

		for _, eid := range db.Find(entitystore.AttrInstaqlSessionID, sessionID.String()) {
			ops = append(ops, entitystore.RetractEntity(eid))
		}
		for _, eid := range db.Find(entitystore.AttrSubSessionID, sessionID.String()) {
			ops = append(ops, entitystore.RetractEntity(eid))
		}
		return ops, nil
	})

	sweep := entitystore.Fn(func(db *entitystore.Database) ([]entitystore.Op, error) {
		return sweepOrphanDatalog(db), nil
	})

	_, err := s.db.Transact(ctx, "remove-session", cascade, sweep)
	if err != nil {
		return err
	}
	metrics.TransactionsTotal.WithLabelValues("remove-session").Inc()
	return nil
}

// SendEvent resolves the session's socket and writes event as a JSON
// frame. It returns *SessionMissing if the session doesn't exist,
// *SocketMissing if it has no socket bound, and *SocketError if the
// transport write fails.
func (s *Store) SendEvent(ctx context.Context, sessionID uuid.UUID, event any) error {
	ent, err := resolveSession(s.db.Snapshot(), sessionID)
	if err != nil {
		return err
	}
	raw, ok := ent.Get(entitystore.AttrSessionSocket)
	if !ok || raw == nil {
		return &SocketMissing{SessionID: sessionID.String()}
	}
	sock, ok := raw.(socket.Socket)
	if !ok {
		return &SocketMissing{SessionID: sessionID.String()}
	}
	if err := socket.WriteEvent(sock, event); err != nil {
		return &SocketError{SessionID: sessionID.String(), Cause: err}
	}
	return nil
}

// TrySendEvent is SendEvent but swallows SocketMissing/SocketError,
// logging them instead, for callers that cannot block or fail on a
// best-effort push.
func (s *Store) TrySendEvent(ctx context.Context, sessionID uuid.UUID, event any) {
	if err := s.SendEvent(ctx, sessionID, event); err != nil {
		s.logger.Warn().Str("session_id", sessionID.String()).Err(err).Msg("try_send_event suppressed error")
		metrics.SocketSendErrorsTotal.WithLabelValues(socketErrorKind(err)).Inc()
	}
}

func socketErrorKind(err error) string {
	switch err.(type) {
	case *SessionMissing:
		return "session_missing"
	case *SocketMissing:
		return "socket_missing"
	case *SocketError:
		return "socket_error"
	default:
		return "unknown"
	}
}
