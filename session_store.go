package mtprotosender

import (
	"os"

	"github.com/ansel1/merry/v2"
)

// FileSessionStore persists a SessionSnapshot to a flat binary file
// using the same EncodeBuf/DecodeBuf round-trip as the wire codec.
type FileSessionStore struct {
	Path string
}

func NewFileSessionStore(path string) *FileSessionStore {
	return &FileSessionStore{Path: path}
}

func (s *FileSessionStore) Save(snap SessionSnapshot) error {
	f, err := os.Create(s.Path)
	if err != nil {
		return merry.Wrap(err)
	}
	defer f.Close()

	b := NewEncodeBuf(64 + len(snap.AuthKey))
	b.Long(snap.ID)
	b.Long(snap.Salt)
	b.Long(snap.TimeOffset)
	b.StringBytes(snap.AuthKey)

	if _, err := f.Write(b.Bytes()); err != nil {
		return merry.Wrap(err)
	}
	return nil
}

func (s *FileSessionStore) Load() (SessionSnapshot, error) {
	raw, err := os.ReadFile(s.Path)
	if os.IsNotExist(err) {
		return SessionSnapshot{}, ErrNoSessionData
	}
	if err != nil {
		return SessionSnapshot{}, merry.Wrap(err)
	}

	d := NewDecodeBuf(raw)
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
