package mtprotosender

import (
	"bytes"
	"compress/gzip"
	"io"
)

// The seven core control constructors the sender dispatch switch
// recognizes, plus rpc_error (nested inside rpc_result) and ping (a
// convenience the sender doesn't strictly require but that the
// pong-correlation path exercises end to end).
const (
	crcRPCResult          uint32 = 0xf35c6d01
	crcPong               uint32 = 0x347773c5
	crcMsgContainer       uint32 = 0x73f1f8dc
	crcGzipPacked         uint32 = 0x3072cfa1
	crcBadServerSalt      uint32 = 0xedab447b
	crcBadMsgNotification uint32 = 0xa7eff811
	crcMsgsAck            uint32 = 0x62d6b459
	crcRPCError           uint32 = 0x2144ca19
	crcPing               uint32 = 0x7abe77ec
)

// msgContainerItem is one inner message of a msg_container.
type msgContainerItem struct {
	msgID int64
	seq   int32
	body  []byte
}

// decodeMsgContainer reads the count-prefixed array of inner messages.
// The constructor code itself must already be consumed by the caller.
// Each inner body is sliced out by its declared length regardless of
// how much of it the eventual dispatch consumes or fails on — this is
// what gives container dispatch its "skip to the next sibling on error"
// property for free, with no manual position bookkeeping.
func decodeMsgContainer(d *DecodeBuf) ([]msgContainerItem, error) {
	count := d.Int()
	if err := d.Err(); err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, errTruncatedf("decodeMsgContainer: negative count %d", count)
	}
	items := make([]msgContainerItem, 0, count)
	for i := int32(0); i < count; i++ {
		msgID := d.Long()
		seq := d.Int()
		innerLen := d.Int()
		if err := d.Err(); err != nil {
			return nil, err
		}
		body := d.Bytes(int(innerLen))
		if err := d.Err(); err != nil {
			return nil, err
		}
		items = append(items, msgContainerItem{msgID: msgID, seq: seq, body: body})
	}
	return items, nil
}

func encodeMsgContainer(items []msgContainerItem) []byte {
	e := NewEncodeBuf(16 + 16*len(items))
	e.UInt(crcMsgContainer)
	e.Int(int32(len(items)))
	for _, it := range items {
		e.Long(it.msgID)
		e.Int(it.seq)
		e.Int(int32(len(it.body)))
		e.Raw(it.body)
	}
	return e.Bytes()
}

// decodeGzipPacked reads the gzip'd string and returns a fresh reader
// over the decompressed bytes: gzip_decompress(body_of(gzip_packed(x))) == x.
func decodeGzipPacked(d *DecodeBuf) (*DecodeBuf, error) {
	packed := d.StringBytes()
	if err := d.Err(); err != nil {
		return nil, err
	}
	raw, err := gunzip(packed)
	if err != nil {
		return nil, err
	}
	return NewDecodeBuf(raw), nil
}

func encodeGzipPacked(payload []byte) ([]byte, error) {
	packed, err := gzipCompress(payload)
	if err != nil {
		return nil, err
	}
	e := NewEncodeBuf(8 + len(packed))
	e.UInt(crcGzipPacked)
	e.StringBytes(packed)
	return e.Bytes(), nil
}

func gunzip(b []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func gzipCompress(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(b); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// badServerSalt is bad_server_salt#edab447b bad_msg_id:long
// bad_msg_seqno:int error_code:int new_server_salt:long.
type badServerSalt struct {
	badMsgID     int64
	badMsgSeqNo  int32
	errorCode    int32
	newServerSalt int64
}

func decodeBadServerSalt(d *DecodeBuf) (badServerSalt, error) {
	v := badServerSalt{
		badMsgID:      d.Long(),
		badMsgSeqNo:   d.Int(),
		errorCode:     d.Int(),
		newServerSalt: d.Long(),
	}
	return v, d.Err()
}

// badMsgNotification is bad_msg_notification#a7eff811 bad_msg_id:long
// bad_msg_seqno:int error_code:int.
type badMsgNotification struct {
	badMsgID    int64
	badMsgSeqNo int32
	errorCode   int32
}

func decodeBadMsgNotification(d *DecodeBuf) (badMsgNotification, error) {
	v := badMsgNotification{
		badMsgID:    d.Long(),
		badMsgSeqNo: d.Int(),
		errorCode:   d.Int(),
	}
	return v, d.Err()
}

func decodeMsgsAck(d *DecodeBuf) ([]int64, error) {
	ids := d.VectorLong()
	return ids, d.Err()
}

func encodeMsgsAck(ids []int64) []byte {
	e := NewEncodeBuf(8 + 8*len(ids))
	e.UInt(crcMsgsAck)
	e.VectorLong(ids)
	return e.Bytes()
}

// encodePing builds ping#7abe77ec ping_id:long.
func encodePing(pingID int64) []byte {
	e := NewEncodeBuf(12)
	e.UInt(crcPing)
	e.Long(pingID)
	return e.Bytes()
}

// decodePong reads pong#347773c5 msg_id:long ping_id:long.
func decodePong(d *DecodeBuf) (msgID, pingID int64, err error) {
	msgID = d.Long()
	pingID = d.Long()
	return msgID, pingID, d.Err()
}
