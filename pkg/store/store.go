// Package store implements the Reactive Query Store: the session
// registry, subscription graph, datalog cache, and invalidator composed
// over an entitystore.Store.
package store

import (
	"github.com/cuemby/rqstore/pkg/entitystore"
	"github.com/cuemby/rqstore/pkg/log"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Store is the reactive query store's single handle. Its lifecycle is
// New -> (use)* -> Close; Close drops its entitystore and releases no
// other resources, since the store holds no durable state.
type Store struct {
	db     *entitystore.Store
	logger zerolog.Logger
	tracer trace.Tracer
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		db:     entitystore.New(),
		logger: log.WithComponent("store"),
		tracer: otel.Tracer("rqstore/store"),
	}
}

// Close releases the store's in-memory state. Since the store is not
// durable, this is equivalent to discarding the handle; it exists so
// callers have a symmetric lifecycle to pair with New.
func (s *Store) Close() error {
	s.db = entitystore.New()
	return nil
}

func instaqlIdentity(sessionID, query string) string {
	return sessionID + "\x1f" + query
}

func datalogIdentity(appID, query string) string {
	return appID + "\x1f" + query
}
