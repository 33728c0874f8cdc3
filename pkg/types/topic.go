package types

// Topic is a fixed-arity tuple describing the datoms a query read (and
// thus what mutations could invalidate it). A mutation's "invalidation
// topic" and a cached DatalogQuery's "coarse topic" are both represented
// the same way; pkg/topic decides whether the two intersect.
type Topic []TopicPart

// TopicPart is one slot of a Topic tuple. Exactly one of the fields below
// is populated, selected by Kind.
type TopicPart struct {
	Kind TopicPartKind

	Keyword    any          // Kind == PartKeyword: an exact scalar
	Set        map[any]bool // Kind == PartSet: match on intersection
	Comparator *Comparator  // Kind == PartComparator
	Not        any          // Kind == PartNot: negated scalar
	// Kind == PartSymbol carries no payload; it is a wildcard.
}

// TopicPartKind selects which shape a TopicPart carries.
type TopicPartKind int

const (
	PartSymbol TopicPartKind = iota // wildcard, matches anything
	PartKeyword
	PartSet
	PartComparator
	PartNot
)

// ComparatorOp is one of the relational/string operators a $comparator
// topic part can carry.
type ComparatorOp int

const (
	CompGt ComparatorOp = iota
	CompGte
	CompLt
	CompLte
	CompLike
)

// Comparator is the payload of a {$comparator: {op, value}} topic part.
type Comparator struct {
	Op    ComparatorOp
	Value any
}

// Keyword builds an exact-scalar topic part.
func Keyword(v any) TopicPart { return TopicPart{Kind: PartKeyword, Keyword: v} }

// Symbol builds a wildcard topic part.
func Symbol() TopicPart { return TopicPart{Kind: PartSymbol} }

// Set builds a set-match topic part from the given members.
func Set(members ...any) TopicPart {
	s := make(map[any]bool, len(members))
	for _, m := range members {
		s[m] = true
	}
	return TopicPart{Kind: PartSet, Set: s}
}

// Cmp builds a $comparator topic part.
func Cmp(op ComparatorOp, value any) TopicPart {
	return TopicPart{Kind: PartComparator, Comparator: &Comparator{Op: op, Value: value}}
}

// NotEqual builds a $not topic part.
func NotEqual(v any) TopicPart { return TopicPart{Kind: PartNot, Not: v} }
