// Package topic implements the pure predicate layer that decides whether a
// mutation's invalidation topic intersects a cached datalog query's coarse
// topic set. It holds no state and performs no I/O; it is the inner loop
// of invalidation and is written to stay allocation-light.
package topic

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/cuemby/rqstore/pkg/types"
)

// Intersects reports whether any topic in iv matches any topic in dq.
// Matching is cut short at the first hit: O(|iv|·|dq|) worst case.
func Intersects(iv, dq []types.Topic) bool {
	for _, i := range iv {
		for _, d := range dq {
			if Match(i, d) {
				return true
			}
		}
	}
	return false
}

// Match reports whether an invalidation topic and a datalog-query topic of
// equal arity intersect, per-part, using the rules in the topic matcher
// design: keyword equality, symbol wildcards, set intersection, and
// comparator/negation predicates evaluated against the invalidation side's
// candidate values.
func Match(iv, dq types.Topic) bool {
	if len(iv) != len(dq) {
		return false
	}
	for i := range iv {
		if !matchPart(iv[i], dq[i]) {
			return false
		}
	}
	return true
}

func matchPart(iv, dq types.TopicPart) bool {
	if dq.Kind == types.PartSymbol || iv.Kind == types.PartSymbol {
		return true
	}

	candidates := ivCandidates(iv)

	switch dq.Kind {
	case types.PartKeyword:
		for _, v := range candidates {
			if v == dq.Keyword {
				return true
			}
		}
		return false

	case types.PartSet:
		for _, v := range candidates {
			if dq.Set[v] {
				return true
			}
		}
		return false

	case types.PartComparator:
		for _, v := range candidates {
			if compare(dq.Comparator.Op, v, dq.Comparator.Value) {
				return true
			}
		}
		return false

	case types.PartNot:
		for _, v := range candidates {
			if v != dq.Not {
				return true
			}
		}
		return false

	default:
		// Per the topic matcher's open question: an unrecognized dq part
		// shape is a programming error in the caller, not a silent
		// non-match. A malformed datalog-query topic was persisted.
		panic(fmt.Sprintf("topic: unrecognized datalog-query part kind %d", dq.Kind))
	}
}

// ivCandidates flattens an invalidation-side topic part into the set of
// concrete values it contributes, whether it was written as a bare scalar
// or an explicit set.
func ivCandidates(iv types.TopicPart) []any {
	switch iv.Kind {
	case types.PartKeyword:
		return []any{iv.Keyword}
	case types.PartSet:
		vals := make([]any, 0, len(iv.Set))
		for v := range iv.Set {
			vals = append(vals, v)
		}
		return vals
	default:
		panic(fmt.Sprintf("topic: invalidation topic part may not carry kind %d", iv.Kind))
	}
}

func compare(op types.ComparatorOp, v, target any) bool {
	if op == types.CompLike {
		s, ok1 := v.(string)
		pattern, ok2 := target.(string)
		if !ok1 || !ok2 {
			return false
		}
		return like(s, pattern)
	}

	vf, vok := toFloat(v)
	tf, tok := toFloat(target)
	if !vok || !tok {
		return false
	}
	switch op {
	case types.CompGt:
		return vf > tf
	case types.CompGte:
		return vf >= tf
	case types.CompLt:
		return vf < tf
	case types.CompLte:
		return vf <= tf
	default:
		panic(fmt.Sprintf("topic: unrecognized comparator op %d", op))
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

var likeCache sync.Map // string pattern -> *regexp.Regexp

// like implements SQL LIKE semantics: '_' matches any single character,
// '%' matches any run of characters, anchored to the whole string.
func like(s, pattern string) bool {
	re, ok := likeCache.Load(pattern)
	if !ok {
		compiled := regexp.MustCompile("^" + likeToRegexp(pattern) + "$")
		re, _ = likeCache.LoadOrStore(pattern, compiled)
	}
	return re.(*regexp.Regexp).MatchString(s)
}

func likeToRegexp(pattern string) string {
	var b strings.Builder
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	return b.String()
}
