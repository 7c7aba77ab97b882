package mtprotosender

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMsgContainerRoundTrip(t *testing.T) {
	items := []msgContainerItem{
		{msgID: 111, seq: 1, body: []byte("abcd")},
		{msgID: 222, seq: 3, body: []byte{}},
		{msgID: 333, seq: 5, body: []byte("a longer payload here")},
	}
	encoded := encodeMsgContainer(items)

	d := NewDecodeBuf(encoded)
	code := d.UInt()
	require.Equal(t, crcMsgContainer, code)

	decoded, err := decodeMsgContainer(d)
	require.NoError(t, err)
	require.Len(t, decoded, len(items))
	for i, it := range items {
		assert.Equal(t, it.msgID, decoded[i].msgID)
		assert.Equal(t, it.seq, decoded[i].seq)
		assert.Equal(t, it.body, decoded[i].body)
	}
}

func TestMsgContainerTruncatedInnerBody(t *testing.T) {
	e := NewEncodeBuf(0)
	e.Int(1)    // count
	e.Long(1)   // msg_id
	e.Int(1)    // seq
	e.Int(1000) // innerLen, lies about the length
	e.Raw([]byte{1, 2, 3})
	d := NewDecodeBuf(e.Bytes())

	_, err := decodeMsgContainer(d)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestGzipPackedRoundTrip(t *testing.T) {
	payload := []byte("a payload worth compressing, repeated repeated repeated repeated")
	encoded, err := encodeGzipPacked(payload)
	require.NoError(t, err)

	d := NewDecodeBuf(encoded)
	code := d.UInt()
	require.Equal(t, crcGzipPacked, code)

	inner, err := decodeGzipPacked(d)
	require.NoError(t, err)
	assert.Equal(t, payload, inner.Rest())
}

func TestMsgsAckRoundTrip(t *testing.T) {
	ids := []int64{1, 2, 3, -4}
	encoded := encodeMsgsAck(ids)

	d := NewDecodeBuf(encoded)
	code := d.UInt()
	require.Equal(t, crcMsgsAck, code)

	decoded, err := decodeMsgsAck(d)
	require.NoError(t, err)
	assert.Equal(t, ids, decoded)
}

func TestPingPongRoundTrip(t *testing.T) {
	pingID := int64(0x0123456789abcdef)
	encoded := encodePing(pingID)

	d := NewDecodeBuf(encoded)
	code := d.UInt()
	require.Equal(t, crcPing, code)
	assert.Equal(t, pingID, d.Long())

	e := NewEncodeBuf(0)
	e.UInt(crcPong).Long(999).Long(pingID)
	d2 := NewDecodeBuf(e.Bytes())
	d2.UInt()
	reqMsgID, gotPingID, err := decodePong(d2)
	require.NoError(t, err)
	assert.Equal(t, int64(999), reqMsgID)
	assert.Equal(t, pingID, gotPingID)
}

func TestBadServerSaltDecode(t *testing.T) {
	e := NewEncodeBuf(0)
	e.Long(111).Int(3).Int(48).Long(0xcafebabe)
	d := NewDecodeBuf(e.Bytes())

	bss, err := decodeBadServerSalt(d)
	require.NoError(t, err)
	assert.Equal(t, int64(111), bss.badMsgID)
	assert.Equal(t, int32(3), bss.badMsgSeqNo)
	assert.Equal(t, int32(48), bss.errorCode)
	assert.Equal(t, int64(0xcafebabe), bss.newServerSalt)
}

func TestBadMsgNotificationDecodeAndRecoverability(t *testing.T) {
	e := NewEncodeBuf(0)
	e.Long(222).Int(1).Int(16)
	d := NewDecodeBuf(e.Bytes())

	bn, err := decodeBadMsgNotification(d)
	require.NoError(t, err)
	assert.Equal(t, int64(222), bn.badMsgID)
	assert.True(t, recoverableBadMsg(bn.errorCode))
	assert.False(t, recoverableBadMsg(32))
	assert.False(t, recoverableBadMsg(48))
}
