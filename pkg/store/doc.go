/*
Package store composes pkg/entitystore and pkg/topic into the Reactive
Query Store: the session registry, the subscription graph, the datalog
cache, and the invalidator. Every entry point that writes is one
entitystore.Transact call, so a subscription add, a session teardown
cascade, and an invalidation pass are each atomic with respect to
readers. Read entry points and SendEvent work on a snapshot.
*/
package store
