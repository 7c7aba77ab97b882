package mtprotosender

import (
	"fmt"

	"github.com/ansel1/merry/v2"
)

// Sentinel error kinds classified with merry.Is / errors.Is.
var (
	// ErrTruncated is raised by the codec or framer on short input.
	ErrTruncated = merry.New("mtprotosender: truncated input")

	// ErrAuthKeyMismatch is raised when a decrypted frame's auth_key_id
	// does not match the session's.
	ErrAuthKeyMismatch = merry.New("mtprotosender: auth_key_id mismatch")

	// ErrMsgKeyMismatch is raised when a decrypted frame's recomputed
	// msg_key does not match the one carried on the wire.
	ErrMsgKeyMismatch = merry.New("mtprotosender: msg_key mismatch")

	// ErrDisconnected is released to every pending request's completion
	// signal when the transport is torn down with replies outstanding.
	ErrDisconnected = merry.New("mtprotosender: disconnected with requests pending")

	// ErrTimeout is the transport's recoverable receive timeout.
	ErrTimeout = merry.New("mtprotosender: transport receive timeout")

	// ErrClosed is the transport's terminal "connection closed" signal.
	ErrClosed = merry.New("mtprotosender: transport closed")

	// ErrNoSessionData is returned by a SessionStore.Load with nothing
	// saved yet.
	ErrNoSessionData = merry.New("mtprotosender: no session data")
)

// truncatedError carries a specific short-input message while still
// classifying as ErrTruncated under errors.Is, so codec/framer call
// sites don't need to build a fresh merry error on every short read.
type truncatedError struct{ msg string }

func (e *truncatedError) Error() string        { return e.msg }
func (e *truncatedError) Is(target error) bool { return target == ErrTruncated }

func errTruncatedf(format string, args ...interface{}) error {
	return &truncatedError{msg: fmt.Sprintf(format, args...)}
}

// BadMessageError is the dispatcher's reaction to bad_msg_notification
// codes that are not recoverable by a time-offset correction.
type BadMessageError struct {
	Code int32
}

func (e *BadMessageError) Error() string {
	return fmt.Sprintf("mtprotosender: bad_msg_notification error_code=%d", e.Code)
}

// recoverableBadMsg reports whether error_code is one the session can
// self-correct by recalibrating its time offset.
func recoverableBadMsg(code int32) bool {
	return code == 16 || code == 17
}

// RpcError is the error an RPC call completes with when the server
// replies rpc_error(code, message) instead of a typed result.
type RpcError struct {
	Code          int32
	Message       string
	ConstructorID uint32 // 0 if the owning request's constructor wasn't recorded
}

func (e *RpcError) Error() string {
	if e.ConstructorID != 0 {
		return fmt.Sprintf("mtprotosender: rpc_error %d: %s (constructor 0x%08x)", e.Code, e.Message, e.ConstructorID)
	}
	return fmt.Sprintf("mtprotosender: rpc_error %d: %s", e.Code, e.Message)
}

// InvalidDCError is a distinguished RpcError flavor for the
// *_MIGRATE_<dc> family of error strings, letting an outer layer
// trigger datacenter migration. The migration policy itself is not
// implemented here, only the primitive that makes it implementable.
type InvalidDCError struct {
	RpcError
	DC int32
}

// classifyRPCError turns a raw (code, message) pair into the error
// taxonomy, optionally annotated with the owning request's constructor
// id when the session is configured to report errors.
func classifyRPCError(code int32, message string, constructorID uint32) error {
	if dc, ok := parseMigrateDC(message); ok {
		return &InvalidDCError{
			RpcError: RpcError{Code: code, Message: message, ConstructorID: constructorID},
			DC:       dc,
		}
	}
	return &RpcError{Code: code, Message: message, ConstructorID: constructorID}
}

// parseMigrateDC recognizes PHONE_MIGRATE_n / NETWORK_MIGRATE_n /
// USER_MIGRATE_n by scanning for a matching prefix and trailing
// integer.
func parseMigrateDC(message string) (int32, bool) {
	for _, prefix := range []string{"PHONE_MIGRATE_", "NETWORK_MIGRATE_", "USER_MIGRATE_"} {
		var dc int32
		n, _ := fmt.Sscanf(message, prefix+"%d", &dc)
		if n == 1 {
			return dc, true
		}
	}
	return 0, false
}
