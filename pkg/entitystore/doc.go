/*
Package entitystore implements the indexed in-memory database underneath
the reactive query store: an attribute-indexed entity table with
copy-on-write snapshots, so a reader holding a *Database never observes a
concurrent writer's changes.

An entity is just a set of attribute/value pairs keyed by an EID. Attrs
declare one of three kinds in schema.go: plain (stored, not indexed),
indexed (queryable by Find/Scan, many entities may share a value), or
unique (queryable by lookupUnique, at most one entity per value — the
identity attributes sessions, instaql queries, datalog queries, and
subscriptions are built on).

Writes go through Store.Transact, which clones the current snapshot into a
staging txn, applies a list of Ops against it, and publishes the result
atomically. Ops compose: Upsert, Create, and RetractEntity cover the
common cases, and Fn lets a caller inspect the staging snapshot mid-
transaction and return further ops to apply, for operations whose effects
depend on what's already there (single-flight swaps, cascade deletes,
novelty detection against a prior value).
*/
package entitystore
