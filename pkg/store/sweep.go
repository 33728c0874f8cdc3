package store

import "github.com/cuemby/rqstore/pkg/entitystore"

// sweepOrphanDatalog returns a RetractEntityOp for every DatalogQuery
// entity with no incoming Subscription reference. Run inside the same
// transaction as any op that removes Subscriptions (spec's "clean_stale_datalog").
func sweepOrphanDatalog(db *entitystore.Database) []entitystore.Op {
	var ops []entitystore.Op
	for _, eid := range db.Scan(entitystore.AttrDatalogAppID) {
		if len(db.Find(entitystore.AttrSubDatalogRef, eid)) == 0 {
			ops = append(ops, entitystore.RetractEntity(eid))
		}
	}
	return ops
}
