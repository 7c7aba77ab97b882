package mtprotosender

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMigrateDC(t *testing.T) {
	cases := []struct {
		msg    string
		wantDC int32
		wantOK bool
	}{
		{"PHONE_MIGRATE_2", 2, true},
		{"NETWORK_MIGRATE_5", 5, true},
		{"USER_MIGRATE_10", 10, true},
		{"FLOOD_WAIT_30", 0, false},
		{"", 0, false},
	}
	for _, c := range cases {
		dc, ok := parseMigrateDC(c.msg)
		assert.Equal(t, c.wantOK, ok, "message %q", c.msg)
		if ok {
			assert.Equal(t, c.wantDC, dc, "message %q", c.msg)
		}
	}
}

func TestClassifyRPCErrorPlain(t *testing.T) {
	err := classifyRPCError(400, "FLOOD_WAIT_30", 0x1234)
	var rpcErr *RpcError
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, int32(400), rpcErr.Code)
	assert.Equal(t, "FLOOD_WAIT_30", rpcErr.Message)
	assert.Equal(t, uint32(0x1234), rpcErr.ConstructorID)

	var dcErr *InvalidDCError
	assert.False(t, errors.As(err, &dcErr))
}

func TestClassifyRPCErrorMigrate(t *testing.T) {
	err := classifyRPCError(303, "PHONE_MIGRATE_4", 0xabcd)
	var dcErr *InvalidDCError
	require.True(t, errors.As(err, &dcErr))
	assert.Equal(t, int32(4), dcErr.DC)
	assert.Equal(t, int32(303), dcErr.Code)
	assert.Equal(t, uint32(0xabcd), dcErr.ConstructorID)
}

func TestTruncatedErrorClassifiesAsErrTruncated(t *testing.T) {
	err := errTruncatedf("short read of %d bytes", 3)
	assert.ErrorIs(t, err, ErrTruncated)
	assert.Contains(t, err.Error(), "short read of 3 bytes")
}

func TestBadMessageErrorMessage(t *testing.T) {
	err := &BadMessageError{Code: 48}
	assert.Contains(t, err.Error(), "48")
}
