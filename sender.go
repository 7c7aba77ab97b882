package mtprotosender

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ansel1/merry/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Sender is the pending table, ack queue, and dispatch loop that sit on
// top of the Framer/Transport/Session/TypeRegistry collaborators.
// bad_server_salt handling never re-enters Send from inside the receive
// path (it hands the stale request to retryQueue instead of calling Send
// directly), and the background receive loop shuts down on context
// cancellation.
type Sender struct {
	session   *Session
	framer    *Framer
	transport Transport
	registry  TypeRegistry
	log       Logger

	// LoggingOut mirrors a client's logging_out flag: while set, an
	// inbound msgs_ack also completes any pending request it names,
	// since a server that is mid-logout may never send a proper
	// rpc_result for requests already in flight.
	LoggingOut bool

	mu       sync.Mutex
	pending  map[int64]*Request
	ackQueue []int64

	// retryQueue is the non-reentrant hand-off for bad_server_salt
	// resends: the dispatch path that discovers the bad salt never calls
	// Send itself (Send locks mu, and dispatch is already invoked with mu
	// unlocked but from the same call stack that guards pending/session
	// access) — it posts here, and a dedicated goroutine drains it.
	retryQueue chan *Request

	unhandledMu sync.Mutex
	unhandled   []func(Object)

	// reconnectSem guards against overlapping reconnect attempts. The
	// reconnection *policy* (backoff, retry count) is left to the
	// caller; this only prevents two Connect calls from racing on the
	// same transport.
	reconnectSem *semaphore.Weighted

	group  *errgroup.Group
	cancel context.CancelFunc
}

// NewSender wires the collaborators together. registry may be nil, in
// which case every constructor outside the seven control messages is
// logged and discarded (NoopRegistry).
func NewSender(session *Session, transport Transport, registry TypeRegistry, logHandler LogHandler) *Sender {
	if registry == nil {
		registry = NoopRegistry{}
	}
	return &Sender{
		session:      session,
		framer:       NewFramer(session),
		transport:    transport,
		registry:     registry,
		log:          Logger{logHandler},
		pending:      make(map[int64]*Request),
		retryQueue:   make(chan *Request, 64),
		reconnectSem: semaphore.NewWeighted(1),
	}
}

// Connect opens the transport and starts the retry-queue worker under
// an errgroup supervised by ctx, plus the receive loop when
// backgroundRead is true. Callers that want to drive Receive themselves
// (e.g. single-threaded test harnesses) pass backgroundRead=false.
func (s *Sender) Connect(ctx context.Context, backgroundRead bool) error {
	if !s.reconnectSem.TryAcquire(1) {
		return merry.New("mtprotosender: Connect already in progress")
	}
	defer s.reconnectSem.Release(1)

	if err := s.transport.Connect(); err != nil {
		return merry.Wrap(err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(runCtx)
	s.group = group
	s.cancel = cancel

	group.Go(func() error { return s.retryLoop(groupCtx) })
	if backgroundRead {
		group.Go(func() error { return s.receiveLoop(groupCtx) })
	}
	return nil
}

// Disconnect cancels the background loops, closes the transport, and
// releases every pending request with ErrDisconnected.
func (s *Sender) Disconnect() error {
	if s.cancel != nil {
		s.cancel()
	}
	closeErr := s.transport.Close()
	if s.group != nil {
		_ = s.group.Wait() // loop errors are logged where they occur; only the transport-close error is surfaced here
	}
	s.releasePending(ErrDisconnected)
	return merry.Wrap(closeErr)
}

func (s *Sender) releasePending(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, req := range s.pending {
		req.Err = err
		req.complete()
		delete(s.pending, id)
	}
}

func (s *Sender) receiveLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if err := s.Receive(); err != nil {
			if errors.Is(err, ErrTimeout) {
				continue
			}
			if errors.Is(err, ErrTruncated) {
				s.log.Debug("receive loop: discarding malformed frame: %v", err)
				continue
			}
			if errors.Is(err, ErrClosed) {
				s.releasePending(ErrDisconnected)
				return nil
			}
			s.log.Error(err, "receive loop exiting")
			return err
		}
	}
}

func (s *Sender) retryLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case req := <-s.retryQueue:
			if err := s.Send(req); err != nil {
				s.log.Error(err, "resend after bad_server_salt failed for msg_id=%d", req.RequestMsgID)
			}
		}
	}
}

// AddUnhandledCallback registers a sink for any decoded Object whose
// constructor the dispatch switch doesn't itself own.
func (s *Sender) AddUnhandledCallback(cb func(Object)) {
	s.unhandledMu.Lock()
	defer s.unhandledMu.Unlock()
	s.unhandled = append(s.unhandled, cb)
}

func (s *Sender) notifyUnhandled(obj Object) {
	s.unhandledMu.Lock()
	cbs := make([]func(Object), len(s.unhandled))
	copy(cbs, s.unhandled)
	s.unhandledMu.Unlock()
	for _, cb := range cbs {
		cb(obj)
	}
}

// Send flushes any queued acks ahead of the new request, assigns it a
// fresh msg-id and sequence number, encrypts and transmits it, then
// indexes it in the pending table — in that order, so a request never
// goes out without first flushing the acks it owes the server.
func (s *Sender) Send(req *Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.flushAcksLocked(); err != nil {
		return err
	}
	msgID, err := s.sendRawLocked(req.BodyBytes, req.ContentRelated)
	if err != nil {
		return err
	}
	req.RequestMsgID = msgID
	s.pending[msgID] = req

	if err := s.session.Save(); err != nil {
		s.log.Error(err, "failed to persist session after send")
	}
	return nil
}

// Ping builds a ready-to-send ping request whose reply correlates back
// via pong's echoed msg_id rather than via req_msg_id.
func (s *Sender) Ping() *Request {
	pingID := randInt64()
	return NewRequest(encodePing(pingID), false, crcPing)
}

func (s *Sender) sendRawLocked(body []byte, contentRelated bool) (int64, error) {
	msgID := s.session.NewMsgID(time.Now())
	seq := s.session.NextSequence(contentRelated)
	frame, err := s.framer.Encrypt(body, msgID, seq)
	if err != nil {
		return 0, err
	}
	if err := s.transport.Send(frame); err != nil {
		return 0, err
	}
	return msgID, nil
}

func (s *Sender) flushAcksLocked() error {
	if len(s.ackQueue) == 0 {
		return nil
	}
	body := encodeMsgsAck(s.ackQueue)
	if _, err := s.sendRawLocked(body, false); err != nil {
		return err
	}
	s.ackQueue = s.ackQueue[:0]
	return nil
}

func (s *Sender) queueAck(msgID int64) {
	s.mu.Lock()
	s.ackQueue = append(s.ackQueue, msgID)
	s.mu.Unlock()
}

func (s *Sender) enqueueRetry(req *Request) {
	select {
	case s.retryQueue <- req:
	default:
		s.log.Warn("retry queue full, resending msg_id=%d from a background goroutine", req.RequestMsgID)
		go func() {
			if err := s.Send(req); err != nil {
				s.log.Error(err, "resend after bad_server_salt failed for msg_id=%d", req.RequestMsgID)
			}
		}()
	}
}

// Receive reads and dispatches exactly one transport frame. Callers
// driving their own loop (backgroundRead=false) call this directly;
// receiveLoop is the backgroundRead=true equivalent.
func (s *Sender) Receive() error {
	frame, err := s.transport.Recv()
	if err != nil {
		return err
	}
	payload, msgID, seq, err := s.framer.Decrypt(frame)
	if err != nil {
		return err
	}
	return s.dispatchFrame(msgID, seq, payload)
}

// dispatchFrame queues msgID for acknowledgement and dispatches its
// payload. Every top-level frame and every msg_container item goes
// through here exactly once; gzip_packed recursion does not (it shares
// its outer message's msg_id, so re-queuing it would ack the same id
// twice — a latent double-ack the Python original has and this
// implementation deliberately does not reproduce).
func (s *Sender) dispatchFrame(msgID int64, seq int32, payload []byte) error {
	s.queueAck(msgID)
	return s.dispatchPayload(msgID, seq, payload)
}

func (s *Sender) dispatchPayload(msgID int64, seq int32, payload []byte) error {
	d := NewDecodeBuf(payload)
	code := d.UInt()
	if err := d.Err(); err != nil {
		return err
	}

	switch code {
	case crcMsgContainer:
		items, err := decodeMsgContainer(d)
		if err != nil {
			return err
		}
		for _, it := range items {
			if err := s.dispatchFrame(it.msgID, it.seq, it.body); err != nil {
				s.log.Debug("container item msg_id=%d: %v", it.msgID, err)
			}
		}
		return nil

	case crcGzipPacked:
		inner, err := decodeGzipPacked(d)
		if err != nil {
			return err
		}
		return s.dispatchPayload(msgID, seq, inner.Rest())

	case crcRPCResult:
		return s.handleRPCResult(d)

	case crcPong:
		return s.handlePong(d)

	case crcBadServerSalt:
		return s.handleBadServerSalt(d)

	case crcBadMsgNotification:
		return s.handleBadMsgNotification(msgID, d)

	case crcMsgsAck:
		return s.handleMsgsAck(d)

	default:
		if s.registry.IsKnown(code) {
			d.SeekRelative(-4)
			obj, err := s.registry.Read(d)
			if err != nil {
				return err
			}
			s.notifyUnhandled(obj)
			return nil
		}
		s.log.Debug("unknown constructor 0x%08x, discarding", code)
		return nil
	}
}

// handleRPCResult is rpc_result#f35c6d01 req_msg_id:long result:Object.
// A request with no matching pending entry is not an error: it is
// logged and skipped, which also covers the "unknown or
// already-completed request" branch of the container skip-to-sibling
// property.
func (s *Sender) handleRPCResult(d *DecodeBuf) error {
	reqMsgID := d.Long()
	if err := d.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	req, ok := s.pending[reqMsgID]
	if ok {
		delete(s.pending, reqMsgID)
	}
	s.mu.Unlock()

	innerCode := d.PeekUInt()
	if innerCode == crcRPCError {
		d.UInt()
		errCode := d.Int()
		errMsg := d.String()
		if err := d.Err(); err != nil {
			return err
		}

		// Acknowledge the error immediately rather than waiting for the
		// next outbound send to carry it.
		s.mu.Lock()
		s.ackQueue = append(s.ackQueue, reqMsgID)
		flushErr := s.flushAcksLocked()
		s.mu.Unlock()
		if flushErr != nil {
			s.log.Error(flushErr, "failed to flush ack for rpc_error req_msg_id=%d", reqMsgID)
		}

		if ok {
			var constructorID uint32
			if s.session.ReportErrors {
				constructorID = req.ConstructorID
			}
			req.Err = classifyRPCError(errCode, errMsg, constructorID)
			req.complete()
		}
		return nil
	}

	if !ok {
		s.log.Debug("rpc_result for unknown or completed req_msg_id=%d, skipped", reqMsgID)
		return nil
	}

	var body *DecodeBuf
	if innerCode == crcGzipPacked {
		d.UInt()
		gz, err := decodeGzipPacked(d)
		if err != nil {
			req.Err = err
			req.complete()
			return err
		}
		body = gz
	} else {
		body = d
	}

	if req.OnResponse != nil {
		resp, err := req.OnResponse(body)
		if err != nil {
			req.Err = err
		} else {
			req.Response = resp
		}
	} else {
		req.Response = body.Rest()
	}
	req.complete()
	return nil
}

// handlePong correlates by the echoed req_msg_id the server embeds in
// pong's msg_id field, not by pong's own outer frame id.
func (s *Sender) handlePong(d *DecodeBuf) error {
	reqMsgID, _, err := decodePong(d)
	if err != nil {
		return err
	}
	s.mu.Lock()
	req, ok := s.pending[reqMsgID]
	if ok {
		delete(s.pending, reqMsgID)
	}
	s.mu.Unlock()
	if ok {
		req.complete()
	}
	return nil
}

// handleBadServerSalt rotates the session salt and hands the affected
// request to the retry queue instead of resending it inline, so this
// dispatch call never re-enters Send while the receive path is active.
func (s *Sender) handleBadServerSalt(d *DecodeBuf) error {
	bss, err := decodeBadServerSalt(d)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.session.Salt = bss.newServerSalt
	req, ok := s.pending[bss.badMsgID]
	if ok {
		delete(s.pending, bss.badMsgID)
	}
	s.mu.Unlock()

	if err := s.session.Save(); err != nil {
		s.log.Error(err, "failed to persist session after bad_server_salt")
	}
	if ok {
		s.enqueueRetry(req)
	}
	return nil
}

// handleBadMsgNotification recalibrates the session's time offset for
// the recoverable codes (16, 17) or surfaces a fatal BadMessageError
// for anything else.
func (s *Sender) handleBadMsgNotification(outerMsgID int64, d *DecodeBuf) error {
	bn, err := decodeBadMsgNotification(d)
	if err != nil {
		return err
	}
	if !recoverableBadMsg(bn.errorCode) {
		return &BadMessageError{Code: bn.errorCode}
	}

	s.mu.Lock()
	s.session.UpdateTimeOffset(outerMsgID, time.Now())
	s.mu.Unlock()

	if err := s.session.Save(); err != nil {
		s.log.Error(err, "failed to persist session after bad_msg_notification")
	}
	return nil
}

// handleMsgsAck completes pending requests the ack names only while
// LoggingOut is set: outside a logout, an ack is not itself a reply
// and must not fire a request's completion.
func (s *Sender) handleMsgsAck(d *DecodeBuf) error {
	ids, err := decodeMsgsAck(d)
	if err != nil {
		return err
	}
	if !s.LoggingOut {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if req, ok := s.pending[id]; ok {
			delete(s.pending, id)
			req.complete()
		}
	}
	return nil
}
