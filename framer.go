package mtprotosender

import "crypto/aes"

// minFrameSize is auth_key_id(8) + msg_key(16) + one AES block(16).
const minFrameSize = 8 + 16 + aes.BlockSize

// Framer turns a serialized request body plus its assigned msg-id/seq
// into the encrypted wire envelope, and turns an inbound frame back
// into (payload, msg_id, seq).
type Framer struct {
	session *Session

	// VerifyAuthKeyID and VerifyMsgKey gate the optional recomputed
	// msg_key and auth_key_id checks on decrypt. Both default false
	// (zero value) for a Framer built with &Framer{session: s});
	// NewFramer turns them on, matching a production client's posture.
	VerifyAuthKeyID bool
	VerifyMsgKey    bool

	// server makes the Framer play the server end of the session:
	// Encrypt derives the server→client keys and Decrypt the
	// client→server ones. NewFramer leaves it false (client end).
	server bool
}

func NewFramer(session *Session) *Framer {
	return &Framer{session: session, VerifyAuthKeyID: true, VerifyMsgKey: true}
}

// Encrypt builds plaintext = salt || session_id || msg_id || seq || len(body) || body || pad,
// computes msg_key over the unpadded form, derives (key, iv) for the
// direction this end sends in (client→server unless server is set),
// AES-IGE encrypts the padded plaintext, and
// emits auth_key_id || msg_key || ciphertext.
func (f *Framer) Encrypt(body []byte, msgID int64, seq int32) ([]byte, error) {
	unpadded := NewEncodeBuf(32 + len(body))
	unpadded.Long(f.session.Salt)
	unpadded.Long(f.session.ID)
	unpadded.Long(msgID)
	unpadded.Int(seq)
	unpadded.Int(int32(len(body)))
	unpadded.Raw(body)

	plain := unpadded.Bytes()
	msgKey := calcMsgKey(plain)

	padLen := (aes.BlockSize - len(plain)%aes.BlockSize) % aes.BlockSize
	pad, err := randomPadding(padLen)
	if err != nil {
		return nil, err
	}
	padded := append(append([]byte(nil), plain...), pad...)

	key, iv := calcKey(f.session.AuthKey.Key, msgKey, !f.server)
	cipherText, err := encryptIGE(padded, key[:], iv[:])
	if err != nil {
		return nil, err
	}

	out := NewEncodeBuf(8 + 16 + len(cipherText))
	out.ULong(f.session.AuthKey.KeyID)
	out.Raw(msgKey[:])
	out.Raw(cipherText)
	return out.Bytes(), nil
}

// Decrypt reverses Encrypt: auth_key_id || msg_key || ciphertext, AES-IGE
// decrypted with the direction this end receives in (server→client
// unless server is set), yielding
// (payload, remote_msg_id, remote_seq).
func (f *Framer) Decrypt(frame []byte) (payload []byte, msgID int64, seq int32, err error) {
	if len(frame) < minFrameSize {
		return nil, 0, 0, errTruncatedf("Decrypt: frame is %d bytes, need at least %d", len(frame), minFrameSize)
	}

	d := NewDecodeBuf(frame)
	authKeyID := d.ULong()
	msgKey := d.Bytes(16)
	cipherText := d.Bytes(d.Remaining())
	if err := d.Err(); err != nil {
		return nil, 0, 0, err
	}

	if f.VerifyAuthKeyID && authKeyID != f.session.AuthKey.KeyID {
		return nil, 0, 0, ErrAuthKeyMismatch
	}

	var msgKeyArr [16]byte
	copy(msgKeyArr[:], msgKey)
	key, iv := calcKey(f.session.AuthKey.Key, msgKeyArr, f.server)
	plain, err := decryptIGE(cipherText, key[:], iv[:])
	if err != nil {
		return nil, 0, 0, err
	}

	p := NewDecodeBuf(plain)
	_ = p.Long() // remote_salt — not currently validated against session.Salt
	_ = p.Long() // remote_session_id — not currently validated against session.ID
	remoteMsgID := p.Long()
	remoteSeq := p.Int()
	msgLen := p.Int()
	if p.Err() != nil {
		return nil, 0, 0, p.Err()
	}
	body := p.Bytes(int(msgLen))
	if err := p.Err(); err != nil {
		return nil, 0, 0, err
	}

	if f.VerifyMsgKey {
		// msg_key is computed over the unpadded plaintext; recompute
		// over exactly that prefix, not the random pad.
		unpaddedLen := p.Tell()
		recomputed := calcMsgKey(plain[:unpaddedLen])
		if recomputed != msgKeyArr {
			return nil, 0, 0, ErrMsgKeyMismatch
		}
	}

	return body, remoteMsgID, remoteSeq, nil
}
