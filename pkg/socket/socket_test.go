package socket_test

import (
	"bufio"
	"bytes"
	"errors"
	"testing"

	"github.com/cuemby/rqstore/pkg/socket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingSocket struct{}

func (failingSocket) Write(p []byte) (int, error) { return 0, errors.New("connection reset") }

func TestWriteEvent_EncodesOneFrame(t *testing.T) {
	var buf bytes.Buffer
	err := socket.WriteEvent(&buf, map[string]any{"op": "patch", "tx-id": 42})
	require.NoError(t, err)

	scanner := bufio.NewScanner(&buf)
	require.True(t, scanner.Scan())
	assert.Contains(t, scanner.Text(), `"tx-id":42`)
	assert.False(t, scanner.Scan(), "exactly one frame must be written")
}

func TestWriteEvent_TransportFailureWraps(t *testing.T) {
	err := socket.WriteEvent(failingSocket{}, map[string]any{"op": "patch"})
	require.Error(t, err)
	assert.ErrorContains(t, err, "connection reset")
}
