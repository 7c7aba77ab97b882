package mtprotosender

import "sync"

// Object is a decoded value from the type library or one of this
// core's own control messages. ConstructorID identifies which 32-bit
// TL constructor produced it.
type Object interface {
	ConstructorID() uint32
}

// Request is the caller's side of one RPC call. Ownership is shared:
// the caller holds it to await completion, the sender holds it
// (indexed by RequestMsgID) in its pending table to fulfill it.
type Request struct {
	BodyBytes      []byte // already-serialized request body
	ContentRelated bool   // controls sequence-number parity
	ConstructorID  uint32 // for error reporting

	// OnResponse decodes a successful rpc_result body. It receives a
	// reader positioned at the start of the (possibly gzip-decompressed)
	// response and returns the caller's typed value. If nil, Response is
	// left as the rest of the raw bytes the reader was given.
	OnResponse func(r *DecodeBuf) (interface{}, error)

	// RequestMsgID is set by the sender at send time (and again on any
	// bad_server_salt resend).
	RequestMsgID int64

	Response interface{}
	Err      error

	once sync.Once
	done chan struct{}
}

// NewRequest builds a Request ready to be handed to Sender.Send.
func NewRequest(body []byte, contentRelated bool, constructorID uint32) *Request {
	return &Request{
		BodyBytes:      body,
		ContentRelated: contentRelated,
		ConstructorID:  constructorID,
		done:           make(chan struct{}),
	}
}

// Done returns the one-shot completion signal: it closes exactly once,
// either when a reply is correlated in or on disconnect.
func (r *Request) Done() <-chan struct{} { return r.done }

// complete fires the completion signal. Safe to call more than once
// (e.g. both a late duplicate ack and the real reply racing in) — only
// the first call has any effect.
func (r *Request) complete() {
	r.once.Do(func() { close(r.done) })
}

// Wait blocks until the request completes and returns (response, error).
func (r *Request) Wait() (interface{}, error) {
	<-r.done
	return r.Response, r.Err
}
