/*
Package types defines the reactive query store's record shapes: Session,
TxMeta, InstaqlQuery, DatalogQuery, Subscription, and Stats in types.go,
and the Topic tuple with its TopicPart and Comparator payloads in
topic.go. The types carry data only; pkg/store converts entitystore
entities into them and pkg/topic matches Topic values.
*/
package types
