package mtprotosender

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipeTransports builds a connected pair of TCPTransports over an
// in-memory net.Pipe, bypassing Connect/Dial so the abridged-framing
// Send/Recv logic can be tested without a real socket.
func pipeTransports() (client, server *TCPTransport) {
	a, b := net.Pipe()
	client = &TCPTransport{connected: true, conn: a}
	server = &TCPTransport{connected: true, conn: b}
	return client, server
}

func TestTCPTransportSendRecvRoundTrip(t *testing.T) {
	client, server := pipeTransports()
	defer client.Close()
	defer server.Close()

	for _, n := range []int{0, 4, 8, 512} {
		payload := make([]byte, n)
		for i := range payload {
			payload[i] = byte(i)
		}

		done := make(chan error, 1)
		go func() { done <- client.Send(payload) }()

		got, err := server.Recv()
		require.NoError(t, err)
		require.NoError(t, <-done)
		assert.Equal(t, payload, got)
	}
}

func TestTCPTransportSendRejectsUnalignedPayload(t *testing.T) {
	client, server := pipeTransports()
	defer client.Close()
	defer server.Close()

	err := client.Send([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestTCPTransportLargePayloadUsesExtendedLength(t *testing.T) {
	client, server := pipeTransports()
	defer client.Close()
	defer server.Close()

	// 0x7f words (508 bytes) is exactly the boundary where the abridged
	// framing must switch from a 1-byte to a 4-byte length header.
	payload := make([]byte, 0x7f*4)
	for i := range payload {
		payload[i] = byte(i)
	}

	done := make(chan error, 1)
	go func() { done <- client.Send(payload) }()

	got, err := server.Recv()
	require.NoError(t, err)
	require.NoError(t, <-done)
	assert.Equal(t, payload, got)
}

func TestClassifyNetErrTimeout(t *testing.T) {
	client, server := pipeTransports()
	defer client.Close()
	defer server.Close()

	client.ReadTimeout = 10 * time.Millisecond
	_, err := client.Recv()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestClassifyNetErrClosed(t *testing.T) {
	client, server := pipeTransports()
	defer server.Close()

	require.NoError(t, client.Close())
	_, err := server.Recv()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrClosed) || errors.Is(err, ErrTimeout))
}
