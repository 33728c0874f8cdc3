package entitystore

import (
	"github.com/google/btree"
	iradix "github.com/hashicorp/go-immutable-radix"
)

// txn is the mutable staging buffer a single Transact call builds up
// before committing. It wraps a cloned (copy-on-write) entity table and
// two immutable-radix Txns; none of it is visible to readers until
// Store.Transact swaps the Store's current *Database pointer.
type txn struct {
	entities  *btree.BTreeG[entityRecord]
	aveTxn    *iradix.Txn
	uniqueTxn *iradix.Txn
	nextEID   EID
}

func newTxn(before *Database) *txn {
	return &txn{
		entities:  before.entities.Clone(),
		aveTxn:    before.ave.Txn(),
		uniqueTxn: before.unique.Txn(),
		nextEID:   before.nextEID,
	}
}

func (tx *txn) newEID() EID {
	tx.nextEID++
	return tx.nextEID
}

// snapshot produces a Database reflecting every op applied to this txn so
// far, for transaction functions that need to read their own
// transaction's intermediate state (spec.md §9: "apply each closure
// against a mutable staging buffer before commit").
func (tx *txn) snapshot() *Database {
	return &Database{
		entities: tx.entities.Clone(),
		ave:      tx.aveTxn.Commit(),
		unique:   tx.uniqueTxn.Commit(),
		nextEID:  tx.nextEID,
	}
}

func (tx *txn) getEntity(eid EID) (entityRecord, bool) {
	return tx.entities.Get(entityRecord{eid: eid})
}

func (tx *txn) putEntity(rec entityRecord) {
	tx.entities.ReplaceOrInsert(rec)
}

func (tx *txn) deleteEntity(eid EID) {
	tx.entities.Delete(entityRecord{eid: eid})
}

func (tx *txn) addToAVESet(attr Attr, value any, eid EID) {
	key := avKey(attr, value)
	raw, _ := tx.aveTxn.Get(key)
	var set map[EID]struct{}
	if raw != nil {
		old := raw.(map[EID]struct{})
		set = make(map[EID]struct{}, len(old)+1)
		for id := range old {
			set[id] = struct{}{}
		}
	} else {
		set = make(map[EID]struct{}, 1)
	}
	set[eid] = struct{}{}
	tx.aveTxn.Insert(key, set)
}

func (tx *txn) removeFromAVESet(attr Attr, value any, eid EID) {
	key := avKey(attr, value)
	raw, ok := tx.aveTxn.Get(key)
	if !ok {
		return
	}
	old := raw.(map[EID]struct{})
	if _, present := old[eid]; !present {
		return
	}
	if len(old) == 1 {
		tx.aveTxn.Delete(key)
		return
	}
	set := make(map[EID]struct{}, len(old)-1)
	for id := range old {
		if id != eid {
			set[id] = struct{}{}
		}
	}
	tx.aveTxn.Insert(key, set)
}

func (tx *txn) setUnique(attr Attr, value any, eid EID) {
	tx.uniqueTxn.Insert(avKey(attr, value), eid)
}

func (tx *txn) deleteUnique(attr Attr, value any) {
	tx.uniqueTxn.Delete(avKey(attr, value))
}

// indexEntity adds AVE/unique index entries for every schema-indexed or
// schema-unique attribute present on attrs, for a freshly created entity.
func (tx *txn) indexEntity(eid EID, attrs map[Attr]any) {
	for attr, value := range attrs {
		switch kindOf(attr) {
		case indexed:
			tx.addToAVESet(attr, value, eid)
		case unique:
			tx.setUnique(attr, value, eid)
		}
	}
}

// deindexEntity removes AVE/unique index entries for every schema-indexed
// or schema-unique attribute present on attrs, ahead of a retraction.
func (tx *txn) deindexEntity(eid EID, attrs map[Attr]any) {
	for attr, value := range attrs {
		switch kindOf(attr) {
		case indexed:
			tx.removeFromAVESet(attr, value, eid)
		case unique:
			tx.deleteUnique(attr, value)
		}
	}
}

func copyAttrs(attrs map[Attr]any) map[Attr]any {
	out := make(map[Attr]any, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}
