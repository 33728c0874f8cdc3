package main

import (
	"context"
	"testing"

	"github.com/cuemby/rqstore/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_ParsesSteps(t *testing.T) {
	sc, err := loadScenario("testdata/create_refresh_cycle.yaml")
	require.NoError(t, err)
	require.Len(t, sc.Steps, 8)
	assert.Equal(t, "add_socket", sc.Steps[0].Op)
	assert.Equal(t, "mark_stale_topics", sc.Steps[6].Op)
}

func TestDecodeTopics_DecodesSetAndKeywordParts(t *testing.T) {
	sc, err := loadScenario("testdata/create_refresh_cycle.yaml")
	require.NoError(t, err)

	var topicsStep = sc.Steps[3]
	topics, err := decodeTopics(topicsStep.Topics)
	require.NoError(t, err)
	require.Len(t, topics, 1)
	require.Len(t, topics[0], 3)
	assert.Equal(t, types.PartKeyword, topics[0][0].Kind)
	assert.Equal(t, types.PartSet, topics[0][1].Kind)
	assert.Equal(t, types.PartKeyword, topics[0][2].Kind)
}

func TestReplayScenario_RunsEndToEnd(t *testing.T) {
	sc, err := loadScenario("testdata/create_refresh_cycle.yaml")
	require.NoError(t, err)
	assert.NoError(t, replayScenario(context.Background(), sc))
}
