package mtprotosender

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopRegistry(t *testing.T) {
	var r TypeRegistry = NoopRegistry{}
	assert.False(t, r.IsKnown(0x12345678))
	_, err := r.Read(NewDecodeBuf(nil))
	require.Error(t, err)
}
