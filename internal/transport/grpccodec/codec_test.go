package grpccodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONCodecRoundTrip(t *testing.T) {
	c := jsonCodec{}
	msg := RawMessage{Method: "tools/list", Result: []byte(`{"tools":[]}`)}

	data, err := c.Marshal(msg)
	require.NoError(t, err)

	var out RawMessage
	require.NoError(t, c.Unmarshal(data, &out))
	assert.Equal(t, msg.Method, out.Method)
}

func TestJSONCodecName(t *testing.T) {
	assert.Equal(t, "json", jsonCodec{}.Name())
	assert.Equal(t, "json", Name)
}
