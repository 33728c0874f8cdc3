package entitystore

import "fmt"

// Op is one step of a Transact call. The built-in constructors below cover
// every mutation the reactive query store needs; FnOp is the
// transaction-function primitive from spec.md §4.1/§9 — a closure that
// observes the staging buffer as of the ops applied ahead of it and
// returns further ops to fold into the same, still-open transaction.
type Op interface {
	apply(tx *txn) error
}

// UpsertOp finds-or-creates the entity whose unique attribute Attr equals
// Value, merges Set into its attributes, and records the result. If no
// such entity exists, one is created with Set plus {Attr: Value}.
type UpsertOp struct {
	Attr Attr
	Value any
	Set   map[Attr]any

	// Populated once this op has been applied within its Transact call.
	EID     EID
	Created bool
	Attrs   map[Attr]any
}

// Upsert builds an UpsertOp. attr must be declared "unique" in the schema.
func Upsert(attr Attr, value any, set map[Attr]any) *UpsertOp {
	if kindOf(attr) != unique {
		panic(fmt.Sprintf("entitystore: attr %q is not a unique identity", attr))
	}
	return &UpsertOp{Attr: attr, Value: value, Set: set}
}

func (o *UpsertOp) apply(tx *txn) error {
	key := avKey(o.Attr, o.Value)
	if raw, found := tx.uniqueTxn.Get(key); found {
		eid := raw.(EID)
		rec, ok := tx.getEntity(eid)
		if !ok {
			// The unique index names an entity the table doesn't have: a bug
			// in the store's own commit path, not a caller error. Matches
			// Database.Entity's treatment of the same disagreement.
			panic(fmt.Sprintf("entitystore: dangling unique index entry for %s=%v", o.Attr, o.Value))
		}
		attrs := copyAttrs(rec.attrs)
		for k, v := range o.Set {
			attrs[k] = v
		}
		tx.putEntity(entityRecord{eid: eid, attrs: attrs})
		o.EID, o.Created, o.Attrs = eid, false, attrs
		return nil
	}

	eid := tx.newEID()
	attrs := copyAttrs(o.Set)
	attrs[o.Attr] = o.Value
	tx.putEntity(entityRecord{eid: eid, attrs: attrs})
	tx.indexEntity(eid, attrs)
	o.EID, o.Created, o.Attrs = eid, true, attrs
	return nil
}

// CreateOp unconditionally creates a new entity with no unique identity
// (used for Subscription edges, which have none).
type CreateOp struct {
	Set map[Attr]any

	EID EID
}

// Create builds a CreateOp.
func Create(set map[Attr]any) *CreateOp { return &CreateOp{Set: set} }

func (o *CreateOp) apply(tx *txn) error {
	eid := tx.newEID()
	attrs := copyAttrs(o.Set)
	tx.putEntity(entityRecord{eid: eid, attrs: attrs})
	tx.indexEntity(eid, attrs)
	o.EID = eid
	return nil
}

// RetractEntityOp retracts an entity and de-indexes every attribute it
// carried. Retracting an entity that does not exist is a no-op (spec.md
// §8's idempotent-removal law).
type RetractEntityOp struct {
	EID EID

	Existed bool
}

// RetractEntity builds a RetractEntityOp.
func RetractEntity(eid EID) *RetractEntityOp { return &RetractEntityOp{EID: eid} }

func (o *RetractEntityOp) apply(tx *txn) error {
	rec, ok := tx.getEntity(o.EID)
	if !ok {
		o.Existed = false
		return nil
	}
	tx.deindexEntity(o.EID, rec.attrs)
	tx.deleteEntity(o.EID)
	o.Existed = true
	return nil
}

// FnOp is the transaction-function primitive: F observes the staging
// buffer produced by every op applied ahead of it in the same Transact
// call, and returns further ops that get folded into that same
// transaction. Used for compositions like "retract stale subscriptions,
// then sweep orphans, then set a hash" where later steps must see the
// effects of earlier ones.
type FnOp struct {
	F func(db *Database) ([]Op, error)
}

// Fn builds an FnOp.
func Fn(f func(db *Database) ([]Op, error)) *FnOp { return &FnOp{F: f} }

func (o *FnOp) apply(tx *txn) error {
	db := tx.snapshot()
	ops, err := o.F(db)
	if err != nil {
		return err
	}
	for _, op := range ops {
		if err := op.apply(tx); err != nil {
			return err
		}
	}
	return nil
}
