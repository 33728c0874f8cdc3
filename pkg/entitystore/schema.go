package entitystore

// Attr is an attribute name in the entity store's schema. Every entity
// shape in pkg/types is flattened into (entity, attr, value) datoms keyed
// by these names.
type Attr string

// attrKind says how an attribute participates in indexing.
type attrKind int

const (
	// plain attributes are stored on the entity but not indexed; they can
	// only be reached via Entity, never via Find.
	plain attrKind = iota
	// indexed attributes get an AVE (attribute-value-entity) index entry
	// per value, many entities per value.
	indexed
	// unique attributes form a composite or single-field unique identity:
	// at most one entity per value, upsertable by that value.
	unique
)

// Session attributes.
const (
	AttrSessionID            Attr = "session/id" // unique
	AttrSessionSocket        Attr = "session/socket"
	AttrSessionAuth          Attr = "session/auth"
	AttrSessionCreator       Attr = "session/creator"
	AttrSessionVersions      Attr = "session/versions"
	AttrSessionDatalogLoader Attr = "session/datalog-loader"
)

// TxMeta attributes.
const (
	AttrTxMetaAppID         Attr = "tx-meta/app-id" // unique
	AttrTxMetaProcessedTxID Attr = "tx-meta/processed-tx-id"
)

// InstaqlQuery attributes.
const (
	AttrInstaqlSessionID  Attr = "instaql/session-id" // indexed
	AttrInstaqlQuery      Attr = "instaql/query"      // indexed
	AttrInstaqlIdentity   Attr = "instaql/identity"   // unique composite
	AttrInstaqlStale      Attr = "instaql/stale?"
	AttrInstaqlVersion    Attr = "instaql/version"
	AttrInstaqlHash       Attr = "instaql/hash"
	AttrInstaqlReturnType Attr = "instaql/return-type"
)

// DatalogQuery attributes.
const (
	AttrDatalogAppID    Attr = "datalog/app-id" // indexed
	AttrDatalogQuery    Attr = "datalog/query"  // indexed
	AttrDatalogIdentity Attr = "datalog/identity" // unique composite
	AttrDatalogDelay    Attr = "datalog/delayed-call"
	AttrDatalogTopics   Attr = "datalog/topics"
)

// Subscription attributes. Subscriptions have no unique identity: many
// edges can share the same (session, instaql query) at different versions.
const (
	AttrSubAppID      Attr = "subscription/app-id"
	AttrSubSessionID  Attr = "subscription/session-id"    // indexed
	AttrSubInstaql    Attr = "subscription/instaql-query" // indexed
	AttrSubDatalogRef Attr = "subscription/datalog-query" // indexed, reference
	AttrSubVersion    Attr = "subscription/v"
)

var schema = map[Attr]attrKind{
	AttrSessionID: unique,

	AttrTxMetaAppID: unique,

	AttrInstaqlSessionID: indexed,
	AttrInstaqlQuery:     indexed,
	AttrInstaqlIdentity:  unique,

	AttrDatalogAppID:    indexed,
	AttrDatalogQuery:    indexed,
	AttrDatalogIdentity: unique,

	AttrSubSessionID:  indexed,
	AttrSubInstaql:    indexed,
	AttrSubDatalogRef: indexed,
}

func kindOf(attr Attr) attrKind {
	return schema[attr]
}
