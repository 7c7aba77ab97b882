package mtprotosender

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestCompleteIsIdempotent(t *testing.T) {
	req := NewRequest([]byte("body"), true, 0xabcd)

	select {
	case <-req.Done():
		t.Fatal("request must not be done before completion")
	default:
	}

	req.Response = "first"
	req.complete()
	req.complete() // must not panic on a second close

	select {
	case <-req.Done():
	case <-time.After(time.Second):
		t.Fatal("request never completed")
	}

	resp, err := req.Wait()
	require.NoError(t, err)
	assert.Equal(t, "first", resp)
}

func TestRequestWaitSurfacesError(t *testing.T) {
	req := NewRequest([]byte("body"), false, 0)
	wantErr := errors.New("boom")
	req.Err = wantErr
	req.complete()

	_, err := req.Wait()
	assert.Equal(t, wantErr, err)
}
