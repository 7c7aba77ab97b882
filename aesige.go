package mtprotosender

import (
	"crypto/aes"
	"crypto/sha1"
)

// calcMsgKey computes msg_key = SHA-1(plaintext)[4:20], the middle 16
// bytes of the digest over the *unpadded* plaintext.
func calcMsgKey(plaintext []byte) [16]byte {
	sum := sha1.Sum(plaintext)
	var key [16]byte
	copy(key[:], sum[4:20])
	return key
}

// calcKey derives (aes_key, aes_iv) from auth_key and msg_key per
// MTProto v1. fromClient selects the direction-dependent offset x (0
// for client→server, 8 for server→client).
func calcKey(authKey []byte, msgKey [16]byte, fromClient bool) (aesKey, aesIV [32]byte) {
	x := 0
	if !fromClient {
		x = 8
	}

	shaA := sha1Concat(msgKey[:], authKey[x:x+32])
	shaB := sha1Concat(authKey[x+32:x+48], msgKey[:], authKey[x+48:x+64])
	shaC := sha1Concat(authKey[x+64:x+96], msgKey[:])
	shaD := sha1Concat(msgKey[:], authKey[x+96:x+128])

	copy(aesKey[0:8], shaA[0:8])
	copy(aesKey[8:20], shaB[8:20])
	copy(aesKey[20:32], shaC[4:16])

	copy(aesIV[0:12], shaA[8:20])
	copy(aesIV[12:20], shaB[0:8])
	copy(aesIV[20:24], shaC[16:20])
	copy(aesIV[24:32], shaD[0:8])

	return aesKey, aesIV
}

func sha1Concat(parts ...[]byte) []byte {
	h := sha1.New()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

// encryptIGE and decryptIGE implement AES in Infinite Garble Extension
// mode. IGE has no ecosystem Go implementation to wire (see DESIGN.md);
// it is hand-rolled over crypto/aes, the same stdlib primitive the
// Python original builds its extensions.AES.encrypt_ige/decrypt_ige on.
//
// IGE encryption: c[i] = E(p[i] xor c[i-1]) xor p[i-1], with c[-1]=iv[0:16]
// and p[-1]=iv[16:32]. Decryption mirrors it with D in place of E.
func encryptIGE(plaintext, key, iv []byte) ([]byte, error) {
	if len(plaintext)%aes.BlockSize != 0 {
		return nil, errTruncatedf("encryptIGE: plaintext length %d not a multiple of %d", len(plaintext), aes.BlockSize)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	prevCipher := append([]byte(nil), iv[:aes.BlockSize]...)
	prevPlain := append([]byte(nil), iv[aes.BlockSize:]...)

	out := make([]byte, len(plaintext))
	var tmp [aes.BlockSize]byte
	for off := 0; off < len(plaintext); off += aes.BlockSize {
		p := plaintext[off : off+aes.BlockSize]
		xorBytes(tmp[:], p, prevCipher)
		block.Encrypt(tmp[:], tmp[:])
		xorBytes(tmp[:], tmp[:], prevPlain)

		copy(out[off:off+aes.BlockSize], tmp[:])
		prevCipher = append(prevCipher[:0], out[off:off+aes.BlockSize]...)
		prevPlain = append(prevPlain[:0], p...)
	}
	return out, nil
}

func decryptIGE(ciphertext, key, iv []byte) ([]byte, error) {
	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, errTruncatedf("decryptIGE: ciphertext length %d not a multiple of %d", len(ciphertext), aes.BlockSize)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	prevCipher := append([]byte(nil), iv[:aes.BlockSize]...)
	prevPlain := append([]byte(nil), iv[aes.BlockSize:]...)

	out := make([]byte, len(ciphertext))
	var tmp [aes.BlockSize]byte
	for off := 0; off < len(ciphertext); off += aes.BlockSize {
		c := ciphertext[off : off+aes.BlockSize]
		xorBytes(tmp[:], c, prevPlain)
		block.Decrypt(tmp[:], tmp[:])
		xorBytes(tmp[:], tmp[:], prevCipher)

		copy(out[off:off+aes.BlockSize], tmp[:])
		prevCipher = append(prevCipher[:0], c...)
		prevPlain = append(prevPlain[:0], out[off:off+aes.BlockSize]...)
	}
	return out, nil
}

func xorBytes(dst, a, b []byte) {
	for i := range dst {
		dst[i] = a[i] ^ b[i]
	}
}
