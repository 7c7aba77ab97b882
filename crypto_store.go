package mtprotosender

import (
	"os"

	"github.com/ansel1/merry/v2"
	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

// EncryptedFileSessionStore wraps FileSessionStore's on-disk format with
// passphrase-based encryption at rest (salt || nonce || secretbox-sealed
// snapshot). A persisted auth_key is as sensitive as a password, so this
// gives an operator a real option not to write it in the clear: scrypt
// derives the box key from the passphrase and nacl/secretbox provides
// authenticated encryption, rather than hand-rolling either primitive.
type EncryptedFileSessionStore struct {
	Path       string
	Passphrase []byte
}

func NewEncryptedFileSessionStore(path string, passphrase []byte) *EncryptedFileSessionStore {
	return &EncryptedFileSessionStore{Path: path, Passphrase: passphrase}
}

const (
	scryptSaltSize = 16
	scryptN        = 1 << 15
	scryptR        = 8
	scryptP        = 1
	scryptKeyLen   = 32
)

func (s *EncryptedFileSessionStore) deriveKey(salt []byte) (*[32]byte, error) {
	raw, err := scrypt.Key(s.Passphrase, salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return nil, merry.Wrap(err)
	}
	var key [32]byte
	copy(key[:], raw)
	return &key, nil
}

func (s *EncryptedFileSessionStore) Save(snap SessionSnapshot) error {
	plain := NewEncodeBuf(64 + len(snap.AuthKey))
	plain.Long(snap.ID)
	plain.Long(snap.Salt)
	plain.Long(snap.TimeOffset)
	plain.StringBytes(snap.AuthKey)

	salt, err := randomPadding(scryptSaltSize)
	if err != nil {
		return err
	}
	key, err := s.deriveKey(salt)
	if err != nil {
		return err
	}

	nonceBytes, err := randomPadding(24)
	if err != nil {
		return err
	}
	var nonce [24]byte
	copy(nonce[:], nonceBytes)

	sealed := secretbox.Seal(nil, plain.Bytes(), &nonce, key)

	out := make([]byte, 0, len(salt)+len(nonce)+len(sealed))
	out = append(out, salt...)
	out = append(out, nonce[:]...)
	out = append(out, sealed...)

	if err := os.WriteFile(s.Path, out, 0o600); err != nil {
		return merry.Wrap(err)
	}
	return nil
}

func (s *EncryptedFileSessionStore) Load() (SessionSnapshot, error) {
	raw, err := os.ReadFile(s.Path)
	if os.IsNotExist(err) {
		return SessionSnapshot{}, ErrNoSessionData
	}
	if err != nil {
		return SessionSnapshot{}, merry.Wrap(err)
	}
	if len(raw) < scryptSaltSize+24 {
		return SessionSnapshot{}, errTruncatedf("EncryptedFileSessionStore.Load: file too short (%d bytes)", len(raw))
	}

	salt := raw[:scryptSaltSize]
	var nonce [24]byte
	copy(nonce[:], raw[scryptSaltSize:scryptSaltSize+24])
	sealed := raw[scryptSaltSize+24:]

	key, err := s.deriveKey(salt)
	if err != nil {
		return SessionSnapshot{}, err
	}

	plain, ok := secretbox.Open(nil, sealed, &nonce, key)
	if !ok {
		return SessionSnapshot{}, merry.New("mtprotosender: session file decryption failed (wrong passphrase or corrupt file)")
	}

	d := NewDecodeBuf(plain)
	snap := SessionSnapshot{
		ID:         d.Long(),
		Salt:       d.Long(),
		TimeOffset: d.Long(),
		AuthKey:    d.StringBytes(),
	}
	if d.Err() != nil {
		return SessionSnapshot{}, merry.Wrap(d.Err())
	}
	return snap, nil
}
