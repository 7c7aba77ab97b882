package mtprotosender

import "crypto/sha1"

// authKeySize is the fixed size of an MTProto v1 authorization key.
const authKeySize = 256

// AuthKey is the 256-byte shared secret negotiated out of band by a
// Diffie-Hellman handshake (that negotiation is not part of this
// package). Only its bytes and derived KeyID are needed by the core.
type AuthKey struct {
	Key   []byte // exactly authKeySize bytes
	KeyID uint64 // lower 64 bits of SHA-1(Key)
}

// NewAuthKey wraps a raw negotiated key, computing its key_id.
func NewAuthKey(raw []byte) (*AuthKey, error) {
	if len(raw) != authKeySize {
		return nil, errTruncatedf("NewAuthKey: key must be %d bytes, got %d", authKeySize, len(raw))
	}
	sum := sha1.Sum(raw)
	keyID := NewDecodeBuf(sum[12:20]).ULong()
	return &AuthKey{Key: append([]byte(nil), raw...), KeyID: keyID}, nil
}
