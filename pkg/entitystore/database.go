package entitystore

import (
	"fmt"
	"sort"

	"github.com/google/btree"
	iradix "github.com/hashicorp/go-immutable-radix"
)

// EID is the internal integer identity of an entity.
type EID int64

// Entity is a read-only view of one entity's attributes as of a Database
// snapshot.
type Entity struct {
	EID   EID
	Attrs map[Attr]any
}

// Get returns the value of attr on the entity, or nil, false if unset.
func (e Entity) Get(attr Attr) (any, bool) {
	v, ok := e.Attrs[attr]
	return v, ok
}

// Lookup identifies an entity either by its raw EID or by a unique
// attribute's value.
type Lookup struct {
	EID   EID
	Attr  Attr
	Value any
	ByEID bool
}

// ByID builds a Lookup against a raw entity id.
func ByID(eid EID) Lookup { return Lookup{EID: eid, ByEID: true} }

// ByUnique builds a Lookup against a unique attribute's value.
func ByUnique(attr Attr, value any) Lookup { return Lookup{Attr: attr, Value: value} }

type entityRecord struct {
	eid   EID
	attrs map[Attr]any
}

func entityLess(a, b entityRecord) bool { return a.eid < b.eid }

// Database is an immutable point-in-time snapshot of the entity store: an
// entity table ordered by id (copy-on-write google/btree) plus two
// persistent radix-tree indexes (hashicorp/go-immutable-radix) — one for
// attribute-value-entity lookups on "indexed" attributes (multi-valued),
// one for "unique" attributes (single entity per value, the upsert key).
//
// Reads against a Database never block and never observe a transaction
// scheduled after the snapshot was taken; this is what lets the
// invalidator resolve Subscription references against db_before even
// after db_after has already retracted the DatalogQuery entities.
type Database struct {
	entities *btree.BTreeG[entityRecord]
	ave      *iradix.Tree // avKey -> map[EID]struct{}
	unique   *iradix.Tree // avKey -> EID
	nextEID  EID
}

func newDatabase() *Database {
	return &Database{
		entities: btree.NewG(32, entityLess),
		ave:      iradix.New(),
		unique:   iradix.New(),
	}
}

// Entity resolves a Lookup to its attribute map. It returns ok=false if no
// such entity exists — callers that need a typed SessionMissing error wrap
// this at the pkg/store layer, per spec.md §7.
func (db *Database) Entity(lookup Lookup) (Entity, bool) {
	if lookup.ByEID {
		rec, ok := db.entities.Get(entityRecord{eid: lookup.EID})
		if !ok {
			return Entity{}, false
		}
		return Entity{EID: rec.eid, Attrs: rec.attrs}, true
	}

	raw, ok := db.unique.Get(avKey(lookup.Attr, lookup.Value))
	if !ok {
		return Entity{}, false
	}
	eid := raw.(EID)
	rec, ok := db.entities.Get(entityRecord{eid: eid})
	if !ok {
		// The unique index and the entity table disagree: a bug in the
		// store's own commit path, not a caller error.
		panic(fmt.Sprintf("entitystore: unique index points at missing entity %d", eid))
	}
	return Entity{EID: rec.eid, Attrs: rec.attrs}, true
}

// Find returns the ids of every entity with the given value on an indexed
// attribute. It panics if attr is not declared "indexed" in the schema —
// that is a caller bug, not a runtime condition.
func (db *Database) Find(attr Attr, value any) []EID {
	if kindOf(attr) != indexed {
		panic(fmt.Sprintf("entitystore: attr %q is not indexed", attr))
	}
	raw, ok := db.ave.Get(avKey(attr, value))
	if !ok {
		return nil
	}
	set := raw.(map[EID]struct{})
	ids := make([]EID, 0, len(set))
	for eid := range set {
		ids = append(ids, eid)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Scan iterates every entity id that has a value set for attr, regardless
// of value, using the AVE index's prefix ordering. It panics if attr is
// not declared "indexed".
func (db *Database) Scan(attr Attr) []EID {
	if kindOf(attr) != indexed {
		panic(fmt.Sprintf("entitystore: attr %q is not indexed", attr))
	}
	prefix := []byte(string(attr) + "\x00")
	seen := make(map[EID]struct{})
	it := db.ave.Root().Iterator()
	it.SeekPrefix(prefix)
	for {
		_, raw, ok := it.Next()
		if !ok {
			break
		}
		for eid := range raw.(map[EID]struct{}) {
			seen[eid] = struct{}{}
		}
	}
	ids := make([]EID, 0, len(seen))
	for eid := range seen {
		ids = append(ids, eid)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ScanUnique returns the id of every entity with a value set for the
// given unique attribute, using the unique index's prefix ordering. It
// panics if attr is not declared "unique".
func (db *Database) ScanUnique(attr Attr) []EID {
	if kindOf(attr) != unique {
		panic(fmt.Sprintf("entitystore: attr %q is not a unique identity", attr))
	}
	prefix := []byte(string(attr) + "\x00")
	var ids []EID
	it := db.unique.Root().Iterator()
	it.SeekPrefix(prefix)
	for {
		_, raw, ok := it.Next()
		if !ok {
			break
		}
		ids = append(ids, raw.(EID))
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// lookupUnique resolves a unique attribute's value straight to an entity
// id without materializing the entity.
func (db *Database) lookupUnique(attr Attr, value any) (EID, bool) {
	raw, ok := db.unique.Get(avKey(attr, value))
	if !ok {
		return 0, false
	}
	return raw.(EID), true
}

func avKey(attr Attr, value any) []byte {
	return []byte(fmt.Sprintf("%s\x00%v", attr, value))
}
