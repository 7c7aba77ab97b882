package mtprotosender

import (
	"io"
	"net"
	"time"

	"github.com/ansel1/merry/v2"
	"golang.org/x/net/proxy"
)

// Transport is the downward byte-transport collaborator: a blocking
// send(bytes)/recv()->bytes pair. Framing below this interface
// (TCP/abridged/intermediate) is the transport's concern, not the
// core's.
type Transport interface {
	Connect() error
	Close() error
	IsConnected() bool
	Send(frame []byte) error
	// Recv returns ErrTimeout (recoverable) or ErrClosed (terminal).
	Recv() ([]byte, error)
}

// TCPTransport is a default, ambient realization of Transport: a plain
// TCP connection using MTProto's "abridged" length framing (a leading
// 0xef byte, then a 1-or-4-byte length prefix per packet) written once
// at connect time. Optional SOCKS5 dialing is available via
// golang.org/x/net/proxy for operators who need to reach a datacenter
// through a proxy.
type TCPTransport struct {
	Addr        string
	Dialer      proxy.Dialer // defaults to &net.Dialer{} when nil
	ReadTimeout time.Duration
	connected   bool
	conn        net.Conn
}

func NewTCPTransport(addr string) *TCPTransport {
	return &TCPTransport{Addr: addr, Dialer: &net.Dialer{}, ReadTimeout: 60 * time.Second}
}

func (t *TCPTransport) Connect() error {
	conn, err := t.Dialer.Dial("tcp", t.Addr)
	if err != nil {
		return merry.Wrap(err)
	}
	if _, err := conn.Write([]byte{0xef}); err != nil {
		conn.Close()
		return merry.Wrap(err)
	}
	t.conn = conn
	t.connected = true
	return nil
}

func (t *TCPTransport) Close() error {
	if !t.connected {
		return nil
	}
	t.connected = false
	return t.conn.Close()
}

func (t *TCPTransport) IsConnected() bool { return t.connected }

// Send writes one abridged-framed packet: a 1-byte length (in 4-byte
// words) when it is under 0x7f words, else 0x7f followed by a 3-byte
// length. Header and payload go out in a single Write.
func (t *TCPTransport) Send(payload []byte) error {
	if len(payload)%4 != 0 {
		return merry.Errorf("TCPTransport.Send: payload length %d not 4-byte aligned", len(payload))
	}
	words := len(payload) / 4
	var header []byte
	if words < 0x7f {
		header = []byte{byte(words)}
	} else {
		header = []byte{0x7f, byte(words), byte(words >> 8), byte(words >> 16)}
	}
	if _, err := t.conn.Write(append(header, payload...)); err != nil {
		return classifyNetErr(err)
	}
	return nil
}

func (t *TCPTransport) Recv() ([]byte, error) {
	if t.ReadTimeout > 0 {
		t.conn.SetReadDeadline(time.Now().Add(t.ReadTimeout))
	}
	var lenByte [1]byte
	if _, err := io.ReadFull(t.conn, lenByte[:]); err != nil {
		return nil, classifyNetErr(err)
	}
	words := int(lenByte[0])
	if words == 0x7f {
		var rest [3]byte
		if _, err := io.ReadFull(t.conn, rest[:]); err != nil {
			return nil, classifyNetErr(err)
		}
		words = int(rest[0]) | int(rest[1])<<8 | int(rest[2])<<16
	}
	payload := make([]byte, words*4)
	if _, err := io.ReadFull(t.conn, payload); err != nil {
		return nil, classifyNetErr(err)
	}
	return payload, nil
}

// classifiedNetErr lets classifyNetErr attach the recoverable/terminal
// kind without depending on merry internals for classification: errors.Is
// only needs the Is method below, so ErrTimeout/ErrClosed stay plain
// merry sentinels elsewhere in the package.
type classifiedNetErr struct {
	kind error
	err  error
}

func (e *classifiedNetErr) Error() string        { return e.kind.Error() + ": " + e.err.Error() }
func (e *classifiedNetErr) Unwrap() error        { return e.err }
func (e *classifiedNetErr) Is(target error) bool { return target == e.kind }

func classifyNetErr(err error) error {
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return &classifiedNetErr{kind: ErrTimeout, err: err}
	}
	return &classifiedNetErr{kind: ErrClosed, err: err}
}
