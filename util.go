package mtprotosender

import (
	cryptorand "crypto/rand"
	"encoding/binary"
)

// randInt63 returns a random non-negative 64-bit value, used for the
// session id: random 64-bit, stable across reconnects.
func randInt63() int64 {
	var b [8]byte
	if _, err := cryptorand.Read(b[:]); err != nil {
		panic(err) // crypto/rand failing means the OS entropy source is broken
	}
	return int64(binary.LittleEndian.Uint64(b[:]) &^ (1 << 63))
}

// randInt64 returns a random 64-bit value with no sign constraint,
// used for ping_id bodies.
func randInt64() int64 {
	var b [8]byte
	if _, err := cryptorand.Read(b[:]); err != nil {
		panic(err)
	}
	return int64(binary.LittleEndian.Uint64(b[:]))
}

// randomPadding returns n random bytes, used by the framer to pad
// plaintext to a 16-byte boundary before AES-IGE encryption (0–15
// random bytes).
func randomPadding(n int) ([]byte, error) {
	b := make([]byte, n)
	if n == 0 {
		return b, nil
	}
	if _, err := cryptorand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}
