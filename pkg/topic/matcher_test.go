package topic_test

import (
	"testing"

	"github.com/cuemby/rqstore/pkg/topic"
	"github.com/cuemby/rqstore/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatch_WildcardAgainstSet(t *testing.T) {
	// match_topic([:ea, #{e1}, :title], [:ea, ?, :title]) -> true
	iv := types.Topic{types.Keyword("ea"), types.Set("e1"), types.Keyword("title")}
	dq := types.Topic{types.Keyword("ea"), types.Symbol(), types.Keyword("title")}
	assert.True(t, topic.Match(iv, dq))
}

func TestMatch_ComparatorGt(t *testing.T) {
	// match_topic([:ea, #{e1}, 5], [:ea, ?, {$comparator:{op:$gt, value:3}}]) -> true
	iv := types.Topic{types.Keyword("ea"), types.Set("e1"), types.Keyword(5)}
	dq := types.Topic{types.Keyword("ea"), types.Symbol(), types.Cmp(types.CompGt, 3)}
	assert.True(t, topic.Match(iv, dq))
}

func TestMatch_Like(t *testing.T) {
	dq := func() types.Topic {
		return types.Topic{types.Keyword("ea"), types.Symbol(), types.Cmp(types.CompLike, "ap%")}
	}

	apple := types.Topic{types.Keyword("ea"), types.Set("e1"), types.Keyword("apple")}
	assert.True(t, topic.Match(apple, dq()))

	banana := types.Topic{types.Keyword("ea"), types.Set("e1"), types.Keyword("banana")}
	assert.False(t, topic.Match(banana, dq()))
}

func TestMatch_LikeSingleCharWildcard(t *testing.T) {
	dq := types.Topic{types.Cmp(types.CompLike, "a_ple")}
	assert.True(t, topic.Match(types.Topic{types.Keyword("apple")}, dq))
	assert.False(t, topic.Match(types.Topic{types.Keyword("aple")}, dq))
}

func TestMatch_NotEqual(t *testing.T) {
	dq := types.Topic{types.NotEqual("archived")}
	assert.True(t, topic.Match(types.Topic{types.Set("active", "archived")}, dq))
	assert.False(t, topic.Match(types.Topic{types.Keyword("archived")}, dq))
}

func TestMatch_SetIntersection(t *testing.T) {
	iv := types.Topic{types.Set("e1", "e2")}
	dq := types.Topic{types.Set("e2", "e3")}
	assert.True(t, topic.Match(iv, dq))

	dqNoOverlap := types.Topic{types.Set("e3", "e4")}
	assert.False(t, topic.Match(iv, dqNoOverlap))
}

func TestMatch_KeywordMismatch(t *testing.T) {
	iv := types.Topic{types.Keyword("ea")}
	dq := types.Topic{types.Keyword("av")}
	assert.False(t, topic.Match(iv, dq))
}

func TestMatch_ArityMismatch(t *testing.T) {
	iv := types.Topic{types.Keyword("ea"), types.Set("e1")}
	dq := types.Topic{types.Keyword("ea")}
	assert.False(t, topic.Match(iv, dq))
}

func TestMatch_UnrecognizedDqPartPanics(t *testing.T) {
	iv := types.Topic{types.Set("e1")}
	dq := types.Topic{{Kind: types.TopicPartKind(99)}}
	require.Panics(t, func() { topic.Match(iv, dq) })
}

func TestIntersects_MatchesLaterDqTopic(t *testing.T) {
	iv := []types.Topic{
		{types.Keyword("ea"), types.Set("e1"), types.Keyword("title")},
	}
	dq := []types.Topic{
		{types.Keyword("av"), types.Symbol(), types.Keyword("x")},
		{types.Keyword("ea"), types.Symbol(), types.Keyword("title")},
	}
	assert.True(t, topic.Intersects(iv, dq))
}

func TestIntersects_NoMatch(t *testing.T) {
	iv := []types.Topic{{types.Keyword("ea"), types.Set("e1")}}
	dq := []types.Topic{{types.Keyword("av"), types.Set("e2")}}
	assert.False(t, topic.Intersects(iv, dq))
}
