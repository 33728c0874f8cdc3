// Package types defines the reactive query store's entity shapes: the
// logical record layout the entity store indexes, independent of how any
// one collaborator (transport, auth, the datalog evaluator) encodes them.
package types

import (
	"time"

	"github.com/google/uuid"
)

// QueryKey is a canonical, comparable encoding of an opaque structured
// query (instaql or datalog). Callers are responsible for canonicalizing
// their query value into the same QueryKey for the same logical query —
// the store treats it as an opaque, hashable identity, never interprets it.
type QueryKey string

// ReturnType is the shape an instaql query was asked to return.
type ReturnType string

const (
	ReturnTypeJoinRows ReturnType = "join_rows"
	ReturnTypeTree     ReturnType = "tree"
)

// Auth describes the identity a session authenticated as.
type Auth struct {
	App   uuid.UUID
	User  uuid.UUID
	Admin bool
}

// Creator is the owning user record of the app a session belongs to.
type Creator struct {
	ID    uuid.UUID
	Email string
}

// Session is a connected client: its socket, auth context, and the opaque
// request-coalescing datalog loader it shares across concurrent queries.
type Session struct {
	ID            uuid.UUID
	Socket        any // opaque transport handle; see pkg/socket.Socket
	Auth          *Auth
	Creator       *Creator
	Versions      map[string]string // client library name -> version
	DatalogLoader any               // opaque request-coalescing handle
}

// TxMeta tracks the highest mutation tx_id processed for an app.
type TxMeta struct {
	AppID          uuid.UUID
	ProcessedTxID  int64
}

// InstaqlQuery is a user-level query issued by one session. The pair
// (SessionID, Query) is its unique identity.
type InstaqlQuery struct {
	SessionID  uuid.UUID
	Query      QueryKey
	Stale      bool
	Version    int64
	Hash       *string
	ReturnType ReturnType
}

// DatalogQuery is a low-level query cached per app, shared across every
// session whose instaql query happens to depend on it. The pair
// (AppID, Query) is its unique identity.
type DatalogQuery struct {
	AppID      uuid.UUID
	Query      QueryKey
	Delay      any // opaque lazy result holder; present once evaluation starts
	Topics     []Topic
}

// Subscription is the edge recording that an instaql query, at a given
// version, depends on a datalog query's result.
type Subscription struct {
	AppID        uuid.UUID
	SessionID    uuid.UUID
	InstaqlQuery QueryKey
	DatalogQuery QueryKey // the DatalogQuery identity this edge targets
	V            int64
}

// Stats is a point-in-time snapshot of the store's live entity counts.
type Stats struct {
	Sessions            int
	InstaqlQueriesStale int
	InstaqlQueriesFresh int
	DatalogQueries      int
	Subscriptions       int
	SampledAt           time.Time
}
